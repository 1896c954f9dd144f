// Package track provides the immutable per-vessel state kept by the tracker.
package track

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"aistrack/ais"

	"github.com/google/btree"
	"github.com/pkg/errors"
)

const historyDegree = 8

// HistoryEntry is a dynamic report that was superseded by a later one, keyed
// by the time it was received.
type HistoryEntry struct {
	At     time.Time
	Report *ais.DynamicReport
}

func historyLess(a, b HistoryEntry) bool {
	return a.At.Before(b.At)
}

// Track is the consolidated knowledge about one MMSI. A Track is never
// modified after construction; the With* methods return new Tracks that share
// unchanged parts with the receiver.
type Track struct {
	static    *ais.Message
	staticAt  time.Time
	dynamic   *ais.Message
	dynamicAt time.Time
	aton      *ais.Message
	atonAt    time.Time

	// Clone() on a btree updates its copy-on-write context
	cloneMu sync.Mutex
	history *btree.BTreeG[HistoryEntry]
}

// New builds the first Track for an MMSI from a static, dynamic or AtoN
// message received at the given time.
func New(msg *ais.Message, at time.Time) (*Track, error) {
	t := &Track{}
	if err := t.assign(msg, at); err != nil {
		return nil, err
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Track) assign(msg *ais.Message, at time.Time) error {
	if msg == nil {
		return errors.Wrap(ErrInvalidTrack, "nil message")
	}
	switch msg.Kind() {
	case ais.KindStatic:
		t.static, t.staticAt = msg, at
	case ais.KindDynamic:
		t.dynamic, t.dynamicAt = msg, at
	case ais.KindAtoN:
		t.aton, t.atonAt = msg, at
	default:
		return errors.Wrapf(ErrInvalidTrack, "message type %d carries no trackable report", msg.Type)
	}
	return nil
}

// derive copies the receiver, sharing reports and a lazily cloned history.
func (t *Track) derive() *Track {
	return &Track{
		static:    t.static,
		staticAt:  t.staticAt,
		dynamic:   t.dynamic,
		dynamicAt: t.dynamicAt,
		aton:      t.aton,
		atonAt:    t.atonAt,
		history:   t.cloneHistory(),
	}
}

func (t *Track) cloneHistory() *btree.BTreeG[HistoryEntry] {
	if t.history == nil {
		return nil
	}
	t.cloneMu.Lock()
	defer t.cloneMu.Unlock()
	return t.history.Clone()
}

// WithUpdate dispatches on the kind of msg.
func (t *Track) WithUpdate(msg *ais.Message, at time.Time) (*Track, error) {
	switch msg.Kind() {
	case ais.KindStatic:
		return t.WithStaticUpdate(msg, at)
	case ais.KindDynamic:
		return t.WithDynamicUpdate(msg, at)
	case ais.KindAtoN:
		return t.WithAtoNUpdate(msg, at)
	}
	return nil, errors.Wrapf(ErrInvalidTrack, "message %v carries no trackable report", msg)
}

// WithStaticUpdate returns a Track carrying the static report of msg. Fields
// missing from msg keep their previously observed values.
func (t *Track) WithStaticUpdate(msg *ais.Message, at time.Time) (*Track, error) {
	r, ok := msg.Static()
	if !ok {
		return nil, errors.Wrapf(ErrInvalidTrack, "%v is not a static report", msg)
	}
	if err := t.checkOrder(at); err != nil {
		return nil, err
	}
	if prev := t.StaticReport(); prev != nil {
		merged := *msg
		merged.Report = r.Merge(prev)
		msg = &merged
	}

	n := t.derive()
	n.static, n.staticAt = msg, at
	if err := n.validate(); err != nil {
		return nil, err
	}
	return n, nil
}

// WithDynamicUpdate returns a Track carrying the dynamic report of msg. The
// receiver's dynamic report, if any, moves into history.
func (t *Track) WithDynamicUpdate(msg *ais.Message, at time.Time) (*Track, error) {
	if _, ok := msg.Dynamic(); !ok {
		return nil, errors.Wrapf(ErrInvalidTrack, "%v is not a dynamic report", msg)
	}
	if err := t.checkOrder(at); err != nil {
		return nil, err
	}

	n := t.derive()
	if prev := t.DynamicReport(); prev != nil {
		if n.history == nil {
			n.history = btree.NewG[HistoryEntry](historyDegree, historyLess)
		}
		n.history.ReplaceOrInsert(HistoryEntry{At: t.dynamicAt, Report: prev})
	}
	n.dynamic, n.dynamicAt = msg, at
	if err := n.validate(); err != nil {
		return nil, err
	}
	return n, nil
}

func (t *Track) WithAtoNUpdate(msg *ais.Message, at time.Time) (*Track, error) {
	if _, ok := msg.AtoN(); !ok {
		return nil, errors.Wrapf(ErrInvalidTrack, "%v is not an aid to navigation report", msg)
	}
	if err := t.checkOrder(at); err != nil {
		return nil, err
	}

	n := t.derive()
	n.aton, n.atonAt = msg, at
	if err := n.validate(); err != nil {
		return nil, err
	}
	return n, nil
}

// WithPrunedHistory returns a Track whose history only holds the entries for
// which retain returns true. The receiver is returned when nothing is
// dropped.
func (t *Track) WithPrunedHistory(retain func(time.Time) bool) *Track {
	if t.history == nil {
		return t
	}
	var drop []HistoryEntry
	t.history.Ascend(func(e HistoryEntry) bool {
		if !retain(e.At) {
			drop = append(drop, e)
		}
		return true
	})
	if len(drop) == 0 {
		return t
	}

	n := t.derive()
	for _, e := range drop {
		n.history.Delete(e)
	}
	if n.history.Len() == 0 {
		n.history = nil
	}
	return n
}

func (t *Track) checkOrder(at time.Time) error {
	if last := t.TimeOfLastUpdate(); !at.After(last) {
		return errors.Wrapf(ErrOutOfOrder, "mmsi %v: update at %v is not after %v", t.MMSI(), at, last)
	}
	return nil
}

func (t *Track) validate() error {
	if t.static == nil && t.dynamic == nil && t.aton == nil {
		return errors.Wrap(ErrInvalidTrack, "a static, dynamic or aid to navigation report must be provided")
	}

	slots := []struct {
		name string
		msg  *ais.Message
		at   time.Time
		kind ais.Kind
	}{
		{"static", t.static, t.staticAt, ais.KindStatic},
		{"dynamic", t.dynamic, t.dynamicAt, ais.KindDynamic},
		{"aton", t.aton, t.atonAt, ais.KindAtoN},
	}
	var mmsi ais.MMSI
	for _, s := range slots {
		if s.msg == nil {
			if !s.at.IsZero() {
				return errors.Wrapf(ErrInvalidTrack, "time of %s update given without a %s report", s.name, s.name)
			}
			continue
		}
		if s.at.IsZero() {
			return errors.Wrapf(ErrInvalidTrack, "%s report given without a time of update", s.name)
		}
		if s.msg.Kind() != s.kind {
			return errors.Wrapf(ErrInvalidTrack, "%v is not a %s report", s.msg, s.name)
		}
		if !s.msg.MMSI.Valid() {
			return errors.Wrapf(ErrInvalidTrack, "MMSI %d is invalid", s.msg.MMSI)
		}
		if mmsi != 0 && s.msg.MMSI != mmsi {
			return errors.Wrapf(ErrInvalidTrack, "reports must have the same MMSI, not %v and %v", mmsi, s.msg.MMSI)
		}
		mmsi = s.msg.MMSI
	}

	if t.static != nil && t.dynamic != nil {
		sc, dc := t.static.Class, t.dynamic.Class
		if sc != ais.ClassUnknown && dc != ais.ClassUnknown && sc != dc {
			return errors.Wrapf(ErrInvalidTrack, "static report is from transponder class %v, dynamic report is from class %v", sc, dc)
		}
	}
	return nil
}

func (t *Track) MMSI() ais.MMSI {
	switch {
	case t.dynamic != nil:
		return t.dynamic.MMSI
	case t.static != nil:
		return t.static.MMSI
	case t.aton != nil:
		return t.aton.MMSI
	}
	return 0
}

func (t *Track) TransponderClass() ais.TransponderClass {
	switch {
	case t.dynamic != nil && t.dynamic.Class != ais.ClassUnknown:
		return t.dynamic.Class
	case t.static != nil:
		return t.static.Class
	}
	return ais.ClassUnknown
}

// TimeOfLastUpdate is the latest of the static, dynamic and AtoN update times.
func (t *Track) TimeOfLastUpdate() time.Time {
	last := t.staticAt
	if t.dynamicAt.After(last) {
		last = t.dynamicAt
	}
	if t.atonAt.After(last) {
		last = t.atonAt
	}
	return last
}

// Zero when no static report has been received
func (t *Track) TimeOfStaticUpdate() time.Time  { return t.staticAt }
func (t *Track) TimeOfDynamicUpdate() time.Time { return t.dynamicAt }
func (t *Track) TimeOfAtoNUpdate() time.Time    { return t.atonAt }

// The message behind each report, nil when absent
func (t *Track) StaticMessage() *ais.Message  { return t.static }
func (t *Track) DynamicMessage() *ais.Message { return t.dynamic }
func (t *Track) AtoNMessage() *ais.Message    { return t.aton }

func (t *Track) StaticReport() *ais.StaticReport {
	if t.static == nil {
		return nil
	}
	r, _ := t.static.Static()
	return r
}

func (t *Track) DynamicReport() *ais.DynamicReport {
	if t.dynamic == nil {
		return nil
	}
	r, _ := t.dynamic.Dynamic()
	return r
}

func (t *Track) AtoNReport() *ais.AtoNReport {
	if t.aton == nil {
		return nil
	}
	r, _ := t.aton.AtoN()
	return r
}

// History returns the superseded dynamic reports, oldest first. The current
// dynamic report is never part of it.
func (t *Track) History() []HistoryEntry {
	if t.history == nil {
		return nil
	}
	out := make([]HistoryEntry, 0, t.history.Len())
	t.history.Ascend(func(e HistoryEntry) bool {
		out = append(out, e)
		return true
	})
	return out
}

func (t *Track) HistoryLen() int {
	if t.history == nil {
		return 0
	}
	return t.history.Len()
}

func (t *Track) OldestHistory() (HistoryEntry, bool) {
	if t.history == nil {
		return HistoryEntry{}, false
	}
	return t.history.Min()
}

func (t *Track) String() string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "Track{mmsi=%v, class=%v", t.MMSI(), t.TransponderClass())
	if v, ok := t.CallSign(); ok {
		fmt.Fprintf(&b, ", callsign=%q", v)
	}
	if v, ok := t.ShipName(); ok {
		fmt.Fprintf(&b, ", name=%q", v)
	}
	if v, ok := t.ShipType(); ok {
		fmt.Fprintf(&b, ", type=%d", v)
	}
	if lat, ok := t.Latitude(); ok {
		lon, _ := t.Longitude()
		fmt.Fprintf(&b, ", pos=%.5f,%.5f", lat, lon)
	}
	if v, ok := t.SpeedOverGround(); ok {
		fmt.Fprintf(&b, ", sog=%.1f", v)
	}
	if v, ok := t.CourseOverGround(); ok {
		fmt.Fprintf(&b, ", cog=%.1f", v)
	}
	if v, ok := t.TrueHeading(); ok {
		fmt.Fprintf(&b, ", heading=%d", v)
	}
	fmt.Fprintf(&b, ", history=%d, updated=%v}", t.HistoryLen(), t.TimeOfLastUpdate().Format(time.RFC3339))
	return b.String()
}
