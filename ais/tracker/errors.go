package tracker

import (
	"errors"

	"aistrack/ais/track"
)

var (
	ErrShutdown   = errors.New("Tracker has been shut down")
	ErrNilMessage = errors.New("Nil message")

	// Returned for messages older than the wallclock as well as for
	// messages older than the last update of their track
	ErrOutOfOrder   = track.ErrOutOfOrder
	ErrInvalidTrack = track.ErrInvalidTrack
)
