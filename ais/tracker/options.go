package tracker

import (
	"time"

	"aistrack/ais"
	"aistrack/ais/util/clock"
)

var (
	DefaultMaxHistoryAge    = 6 * time.Hour
	DefaultPruneCheckPeriod = 5 * time.Minute
	DefaultStalePeriod      = 30 * time.Minute
	DefaultStaleCheckPeriod = 1 * time.Minute
	DefaultShutdownTimeout  = 1 * time.Minute
)

// Options are the run-time tunables of a Tracker. Zero fields mean "keep the
// current value" in Reconfigure and "use the default" in New.
type Options struct {
	// Dynamic history older than this is pruned
	MaxHistoryAge time.Duration
	// Wallclock time between pruning sweeps
	PruneCheckPeriod time.Duration
	// Tracks silent for longer than this are deleted
	StalePeriod time.Duration
	// Wallclock time between staleness sweeps
	StaleCheckPeriod time.Duration
	// Bound on waiting for each worker pool at shutdown
	ShutdownTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxHistoryAge:    DefaultMaxHistoryAge,
		PruneCheckPeriod: DefaultPruneCheckPeriod,
		StalePeriod:      DefaultStalePeriod,
		StaleCheckPeriod: DefaultStaleCheckPeriod,
		ShutdownTimeout:  DefaultShutdownTimeout,
	}
}

// merge overlays the non-zero fields of o onto base.
func (o Options) merge(base Options) Options {
	if o.MaxHistoryAge > 0 {
		base.MaxHistoryAge = o.MaxHistoryAge
	}
	if o.PruneCheckPeriod > 0 {
		base.PruneCheckPeriod = o.PruneCheckPeriod
	}
	if o.StalePeriod > 0 {
		base.StalePeriod = o.StalePeriod
	}
	if o.StaleCheckPeriod > 0 {
		base.StaleCheckPeriod = o.StaleCheckPeriod
	}
	if o.ShutdownTimeout > 0 {
		base.ShutdownTimeout = o.ShutdownTimeout
	}
	return base
}

type Option func(*Tracker)

func WithOptions(o Options) Option {
	return func(t *Tracker) {
		t.opts = o.merge(t.opts)
	}
}

// WithClock sets the clock used for messages without a reception time.
func WithClock(c clock.C) Option {
	return func(t *Tracker) {
		t.clock = c
	}
}

// WithFilter makes the tracker ignore messages for which accept is false.
func WithFilter(accept func(*ais.Message) bool) Option {
	return func(t *Tracker) {
		t.accept = accept
	}
}

func WithName(name string) Option {
	return func(t *Tracker) {
		t.name = name
	}
}
