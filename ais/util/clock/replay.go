package clock

import (
	"time"
)

/**
 * When replaying a recorded feed, we want some way to map the current time to
 * the time of the recording. Replay is responsible for doing exactly that.
 * When not enabled, it simply passes through values.
 */
type Replay struct {
	Enabled    bool
	StartTime  time.Time
	ReplayTime time.Time
	Speed      float64

	// Real clock, defaults to the wall clock
	Base C
}

// NewReplay starts a replay of a recording beginning at replayTime, running
// speed times faster than real time.
func NewReplay(replayTime time.Time, speed float64, base C) *Replay {
	if base == nil {
		base = &Real{}
	}
	if speed <= 0 {
		speed = 1
	}
	return &Replay{
		Enabled:    true,
		StartTime:  base.Now(),
		ReplayTime: replayTime,
		Speed:      speed,
		Base:       base,
	}
}

func (r *Replay) base() C {
	if r.Base == nil {
		return &Real{}
	}
	return r.Base
}

// Convert a replay time to real/actual time
func (r *Replay) ToReal(t time.Time) time.Time {
	if !r.Enabled {
		return t
	}

	sinceRT := t.Sub(r.ReplayTime)
	dilated := time.Duration(float64(sinceRT) / r.Speed)
	return r.StartTime.Add(dilated)
}

// Convert real/actual time to replay time
func (r *Replay) FromReal(t time.Time) time.Time {
	if !r.Enabled {
		return t
	}
	dilated := time.Duration(float64(t.Sub(r.StartTime)) * r.Speed)
	return r.ReplayTime.Add(dilated)
}

// Get the current replay time
func (r *Replay) Now() time.Time {
	now := r.base().Now()
	if !r.Enabled {
		return now
	}
	return r.FromReal(now)
}

// Until returns how long to wait before a message recorded at t is due.
func (r *Replay) Until(t time.Time) time.Duration {
	if !r.Enabled {
		return 0
	}
	return r.ToReal(t).Sub(r.base().Now())
}
