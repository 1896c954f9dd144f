package tracker

import (
	"time"

	"aistrack/ais"
	"aistrack/ais/track"
)

// Event is anything posted to subscribers. Events carry immutable Tracks, so
// subscribers may keep them without synchronisation.
type Event interface {
	// Name of the event, e.g. "TrackCreated"
	Name() string
}

// TrackEvent is embedded in every per-vessel event.
type TrackEvent struct {
	Track *track.Track
}

func (e TrackEvent) MMSI() ais.MMSI {
	return e.Track.MMSI()
}

type TrackCreated struct{ TrackEvent }
type TrackUpdated struct{ TrackEvent }

// TrackDynamicsUpdated follows the TrackUpdated of a dynamic report.
type TrackDynamicsUpdated struct{ TrackEvent }

// TrackDeleted is posted when a track has gone stale. Track is its last state.
type TrackDeleted struct{ TrackEvent }

type WallclockChanged struct {
	Wallclock time.Time
}

func (TrackCreated) Name() string         { return "TrackCreated" }
func (TrackUpdated) Name() string         { return "TrackUpdated" }
func (TrackDynamicsUpdated) Name() string { return "TrackDynamicsUpdated" }
func (TrackDeleted) Name() string         { return "TrackDeleted" }
func (WallclockChanged) Name() string     { return "WallclockChanged" }

type Subscriber interface {
	OnEvent(Event)
}

// SubscriberFunc adapts a function to a Subscriber.
type SubscriberFunc func(Event)

func (f SubscriberFunc) OnEvent(e Event) {
	f(e)
}
