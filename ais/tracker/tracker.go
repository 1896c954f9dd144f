// Package tracker maintains the current Track of every vessel heard from, as
// driven by a stream of AIS messages.
//
// Time in the tracker is the wallclock: the timestamp of the latest accepted
// message. History pruning and deletion of stale tracks are run on a
// background worker whenever the wallclock has advanced far enough. State
// changes are posted to subscribers asynchronously.
package tracker

import (
	"container/heap"
	"encoding/binary"
	"sync"
	"time"

	"aistrack/ais"
	"aistrack/ais/log"
	"aistrack/ais/track"
	"aistrack/ais/util/clock"
	"aistrack/gogroup"

	"github.com/armon/go-metrics"
	"github.com/hashicorp/go-immutable-radix"
	"github.com/hashicorp/go-multierror"
	"github.com/pborman/uuid"
	"github.com/pkg/errors"
)

var trace = log.GetTracer("tracker")

type task int

const (
	taskPrune task = iota
	taskStale
)

type Tracker struct {
	name   string
	clock  clock.C
	accept func(*ais.Message) bool

	// Everything below is guarded by mu
	mu             sync.Mutex
	opts           Options
	tracks         *iradix.Tree
	stale          *staleHeap
	wallclock      time.Time
	lastPrune      time.Time
	lastStaleCheck time.Time
	prunePending   bool
	stalePending   bool
	shutdown       bool
	subs           map[string]*mailbox

	tasks    chan task
	group    gogroup.GoGroup
	sweeps   gogroup.GoGroup
	dispatch gogroup.GoGroup
}

func New(opts ...Option) *Tracker {
	t := &Tracker{
		name:   "tracker",
		clock:  &clock.Real{},
		opts:   DefaultOptions(),
		tracks: iradix.New(),
		stale:  newStaleHeap(),
		subs:   make(map[string]*mailbox),
		// One slot per kind of sweep; a kind is never queued twice
		tasks: make(chan task, 2),
	}
	for _, o := range opts {
		o(t)
	}

	t.group = gogroup.New(nil, t.name)
	t.group.ErrCallback(func(err error) {
		log.Error("%v: background error: %v", t.name, err)
	})
	t.sweeps = t.group.Child("sweeps")
	t.dispatch = t.group.Child("events")
	t.sweeps.Go(t.work)

	log.Info("%v created", t.name)
	return t
}

func key(mmsi ais.MMSI) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], uint64(mmsi))
	return k[:]
}

// Update applies msg, timestamped with its reception time. Messages without
// one are timestamped with the tracker's clock.
func (t *Tracker) Update(msg *ais.Message) error {
	if msg == nil {
		return t.UpdateAt(nil, time.Time{})
	}
	at := msg.Timestamp()
	if at.IsZero() {
		at = t.clock.Now()
	}
	return t.UpdateAt(msg, at)
}

// UpdateAt applies msg as received at the given time. On error the tracker
// is left as it was.
func (t *Tracker) UpdateAt(msg *ais.Message, at time.Time) error {
	if t.IsShutdown() {
		return ErrShutdown
	}
	if msg == nil {
		return ErrNilMessage
	}
	if t.accept != nil && !t.accept(msg) {
		metrics.IncrCounter([]string{"tracker", "update", "filtered"}, 1)
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.shutdown {
		return ErrShutdown
	}
	if err := t.apply(msg, at); err != nil {
		metrics.IncrCounter([]string{"tracker", "update", "rejected"}, 1)
		return err
	}
	metrics.IncrCounter([]string{"tracker", "update", "accepted"}, 1)
	t.scheduleSweeps()
	return nil
}

// Assumes mu is held
func (t *Tracker) apply(msg *ais.Message, at time.Time) error {
	if at.Before(t.wallclock) {
		return errors.Wrapf(ErrOutOfOrder, "wallclock is %v; message %v at %v is too old", t.wallclock, msg.MMSI, at)
	}

	if msg.Kind() == ais.KindOther {
		t.setWallclock(at)
		return nil
	}

	k := key(msg.MMSI)
	var (
		next    *track.Track
		created bool
		err     error
	)
	if prev, ok := t.tracks.Get(k); ok {
		next, err = prev.(*track.Track).WithUpdate(msg, at)
	} else {
		next, err = track.New(msg, at)
		created = true
	}
	if err != nil {
		return err
	}

	t.tracks, _, _ = t.tracks.Insert(k, next)
	t.stale.Upsert(staleEntry{mmsi: next.MMSI(), lastUpdate: next.TimeOfLastUpdate()})
	t.setWallclock(at)

	ev := TrackEvent{Track: next}
	if created {
		metrics.IncrCounter([]string{"tracker", "tracks", "created"}, 1)
		metrics.SetGauge([]string{"tracker", "tracks"}, float32(t.tracks.Len()))
		t.post(TrackCreated{ev})
		return nil
	}
	t.post(TrackUpdated{ev})
	if msg.Kind() == ais.KindDynamic {
		t.post(TrackDynamicsUpdated{ev})
	}
	return nil
}

// Assumes mu is held
func (t *Tracker) setWallclock(at time.Time) {
	t.wallclock = at
	t.post(WallclockChanged{Wallclock: at})
}

// Assumes mu is held
func (t *Tracker) post(e Event) {
	for _, mb := range t.subs {
		mb.push(e)
	}
}

// Assumes mu is held
func (t *Tracker) scheduleSweeps() {
	if !t.prunePending && t.lastPrune.Before(t.wallclock.Add(-t.opts.PruneCheckPeriod)) {
		t.prunePending = true
		t.tasks <- taskPrune
	}
	if !t.stalePending && t.lastStaleCheck.Before(t.wallclock.Add(-t.opts.StaleCheckPeriod)) {
		t.stalePending = true
		t.tasks <- taskStale
	}
}

// The background sweep worker
func (t *Tracker) work(g gogroup.GoGroup) error {
	for tk := range t.tasks {
		if g.Canceled() {
			return nil
		}
		switch tk {
		case taskPrune:
			t.pruneHistory()
		case taskStale:
			t.evictStale()
		}
	}
	return nil
}

// pruneHistory drops dynamic history older than the maximum age from every
// track.
func (t *Tracker) pruneHistory() {
	defer metrics.MeasureSince([]string{"tracker", "sweep", "prune"}, time.Now())

	t.mu.Lock()
	defer t.mu.Unlock()
	t.prunePending = false

	cutoff := t.wallclock.Add(-t.opts.MaxHistoryAge)
	retain := func(at time.Time) bool {
		return !at.Before(cutoff)
	}
	txn := t.tracks.Txn()
	pruned := 0
	t.tracks.Root().Walk(func(k []byte, v interface{}) bool {
		trk := v.(*track.Track)
		if oldest, ok := trk.OldestHistory(); ok && oldest.At.Before(cutoff) {
			txn.Insert(k, trk.WithPrunedHistory(retain))
			pruned++
		}
		return false
	})
	t.tracks = txn.Commit()
	t.lastPrune = t.wallclock
	trace.Logf("pruned history of %d tracks older than %v", pruned, cutoff)
}

// evictStale deletes every track that has not been updated within the stale
// period.
func (t *Tracker) evictStale() {
	defer metrics.MeasureSince([]string{"tracker", "sweep", "stale"}, time.Now())

	t.mu.Lock()
	defer t.mu.Unlock()
	t.stalePending = false

	cutoff := t.wallclock.Add(-t.opts.StalePeriod)
	evicted := 0
	for next, ok := t.stale.Peek(); ok && next.lastUpdate.Before(cutoff); next, ok = t.stale.Peek() {
		heap.Pop(t.stale)
		tracks, old, found := t.tracks.Delete(key(next.mmsi))
		if !found {
			continue
		}
		t.tracks = tracks
		evicted++
		t.post(TrackDeleted{TrackEvent{Track: old.(*track.Track)}})
	}
	t.lastStaleCheck = t.wallclock
	if evicted > 0 {
		metrics.IncrCounter([]string{"tracker", "tracks", "deleted"}, float32(evicted))
		metrics.SetGauge([]string{"tracker", "tracks"}, float32(t.tracks.Len()))
		trace.Logf("deleted %d tracks not updated since %v", evicted, cutoff)
	}
}

func (t *Tracker) IsTracked(mmsi ais.MMSI) bool {
	_, ok := t.Track(mmsi)
	return ok
}

func (t *Tracker) Track(mmsi ais.MMSI) (*track.Track, bool) {
	t.mu.Lock()
	tracks := t.tracks
	t.mu.Unlock()
	v, ok := tracks.Get(key(mmsi))
	if !ok {
		return nil, false
	}
	return v.(*track.Track), true
}

// Tracks returns a snapshot of all tracks, ordered by MMSI.
func (t *Tracker) Tracks() []*track.Track {
	t.mu.Lock()
	tracks := t.tracks
	t.mu.Unlock()

	out := make([]*track.Track, 0, tracks.Len())
	tracks.Root().Walk(func(_ []byte, v interface{}) bool {
		out = append(out, v.(*track.Track))
		return false
	})
	return out
}

func (t *Tracker) TrackCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tracks.Len()
}

func (t *Tracker) Wallclock() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.wallclock
}

func (t *Tracker) TimeOfLastPruning() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastPrune
}

func (t *Tracker) TimeOfLastStaleCheck() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastStaleCheck
}

func (t *Tracker) IsShutdown() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shutdown
}

func (t *Tracker) Options() Options {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.opts
}

// Reconfigure changes the non-zero periods of o at run time.
func (t *Tracker) Reconfigure(o Options) {
	t.mu.Lock()
	t.opts = o.merge(t.opts)
	opts := t.opts
	t.mu.Unlock()
	log.Info("%v reconfigured: %+v", t.name, opts)
}

func (t *Tracker) SetMaxHistoryAge(d time.Duration)    { t.Reconfigure(Options{MaxHistoryAge: d}) }
func (t *Tracker) SetPruneCheckPeriod(d time.Duration) { t.Reconfigure(Options{PruneCheckPeriod: d}) }
func (t *Tracker) SetStalePeriod(d time.Duration)      { t.Reconfigure(Options{StalePeriod: d}) }
func (t *Tracker) SetStaleCheckPeriod(d time.Duration) { t.Reconfigure(Options{StaleCheckPeriod: d}) }

// RegisterSubscriber attaches sub to the event stream and returns the id of
// the subscription. Each subscriber receives events in commit order on its
// own goroutine.
func (t *Tracker) RegisterSubscriber(sub Subscriber) string {
	id := uuid.New()
	mb := newMailbox(id, sub)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.shutdown {
		log.Warn("%v: subscriber registered after shutdown is ignored", t.name)
		return ""
	}
	t.subs[id] = mb
	t.dispatch.Go(mb.run)
	return id
}

// UnregisterSubscriber detaches a subscriber. Events already queued for it
// are still delivered.
func (t *Tracker) UnregisterSubscriber(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	mb, ok := t.subs[id]
	if !ok {
		return false
	}
	delete(t.subs, id)
	mb.close()
	return true
}

// Shutdown makes further updates fail and waits, within the shutdown timeout
// per worker pool, for pending sweeps and events to be processed.
func (t *Tracker) Shutdown() {
	t.mu.Lock()
	if t.shutdown {
		t.mu.Unlock()
		return
	}
	log.Info("%v shutdown requested", t.name)
	t.shutdown = true
	close(t.tasks)
	timeout := t.opts.ShutdownTimeout
	t.mu.Unlock()

	var overrun *multierror.Error
	if !t.sweeps.WaitTimeout(timeout) {
		overrun = multierror.Append(overrun, errors.Errorf("sweep worker still busy after %v", timeout))
	}

	t.mu.Lock()
	for id, mb := range t.subs {
		mb.close()
		delete(t.subs, id)
	}
	t.mu.Unlock()
	if !t.dispatch.WaitTimeout(timeout) {
		overrun = multierror.Append(overrun, errors.Errorf("event dispatch still busy after %v", timeout))
	}

	t.group.Cancel(nil)
	if err := overrun.ErrorOrNil(); err != nil {
		log.Warn("%v was shut down before all pending work was processed: %v", t.name, err)
	}
	log.Info("%v shutdown completed", t.name)
}
