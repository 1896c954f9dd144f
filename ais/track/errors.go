package track

import (
	"errors"
)

var (
	ErrInvalidTrack = errors.New("Invalid track")
	ErrOutOfOrder   = errors.New("Update is not after the last update of the track")
)
