package tracker

import (
	"sync"
	"testing"
	"time"

	"aistrack/ais"
	"aistrack/ais/util/clock"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var t0 = time.Date(2016, 3, 1, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) time.Time {
	return t0.Add(d)
}

func static(mmsi ais.MMSI, name string, when time.Time) *ais.Message {
	return &ais.Message{
		MMSI: mmsi, Type: 5, Class: ais.ClassA,
		Report:   &ais.StaticReport{Name: name, ShipType: 70},
		Metadata: &ais.Metadata{Received: when, Source: "test"},
	}
}

func dynamic(mmsi ais.MMSI, sog float64, when time.Time) *ais.Message {
	return &ais.Message{
		MMSI: mmsi, Type: 1, Class: ais.ClassA,
		Report:   &ais.DynamicReport{Latitude: 55, Longitude: 10, SpeedOverGround: sog},
		Metadata: &ais.Metadata{Received: when, Source: "test"},
	}
}

// recorder is a subscriber keeping every event it receives
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.Name())
	}
	return out
}

func (r *recorder) deleted(mmsi ais.MMSI) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if d, ok := e.(TrackDeleted); ok && d.MMSI() == mmsi {
			n++
		}
	}
	return n
}

func TestStaticThenDynamic(t *testing.T) {
	defer goleak.VerifyNone(t)
	tr := New()
	defer tr.Shutdown()

	require.NoError(t, tr.Update(static(100, "ALPHA", at(0))))
	require.NoError(t, tr.Update(dynamic(100, 12.3, at(10*time.Second))))

	trk, ok := tr.Track(100)
	require.True(t, ok)
	name, _ := trk.ShipName()
	assert.Equal(t, "ALPHA", name)
	sog, _ := trk.SpeedOverGround()
	assert.Equal(t, 12.3, sog)
	assert.Equal(t, at(10*time.Second), trk.TimeOfLastUpdate())
	assert.Equal(t, ais.MMSI(100), trk.MMSI())
	assert.Equal(t, at(10*time.Second), tr.Wallclock())
	assert.Equal(t, 1, tr.TrackCount())
	assert.True(t, tr.IsTracked(100))
	assert.False(t, tr.IsTracked(101))
}

func TestDynamicHistory(t *testing.T) {
	defer goleak.VerifyNone(t)
	tr := New()
	defer tr.Shutdown()

	for i, sog := range []float64{1, 2, 3, 4} {
		require.NoError(t, tr.Update(dynamic(200, sog, at(time.Duration(10*i)*time.Second))))
	}
	trk, ok := tr.Track(200)
	require.True(t, ok)
	h := trk.History()
	require.Len(t, h, 3)
	for i, e := range h {
		assert.Equal(t, at(time.Duration(10*i)*time.Second), e.At)
		assert.Equal(t, float64(i+1), e.Report.SpeedOverGround)
	}
}

func TestUpdateErrors(t *testing.T) {
	defer goleak.VerifyNone(t)
	tr := New()
	defer tr.Shutdown()

	require.NoError(t, tr.Update(dynamic(100, 1, at(time.Minute))))
	require.NoError(t, tr.Update(dynamic(101, 1, at(2*time.Minute))))

	tests := []struct {
		name string
		msg  *ais.Message
		err  error
	}{
		{"nil", nil, ErrNilMessage},
		{"before wallclock", dynamic(102, 1, at(time.Minute)), ErrOutOfOrder},
		{"same time as track", dynamic(101, 2, at(2*time.Minute)), ErrOutOfOrder},
		{"invalid mmsi", dynamic(0, 1, at(3*time.Minute)), ErrInvalidTrack},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tr.Update(tt.msg)
			assert.True(t, errors.Is(err, tt.err), "got %v", err)
		})
	}

	assert.Equal(t, at(2*time.Minute), tr.Wallclock(), "rejected messages leave the wallclock alone")
	assert.Equal(t, 2, tr.TrackCount())
	trk, _ := tr.Track(101)
	sog, _ := trk.SpeedOverGround()
	assert.Equal(t, 1.0, sog)

	// Same wallclock, other vessel
	assert.NoError(t, tr.Update(dynamic(102, 1, at(2*time.Minute))))
}

func TestShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)
	tr := New()
	rec := &recorder{}
	tr.RegisterSubscriber(rec)
	require.NoError(t, tr.Update(static(100, "ALPHA", at(0))))

	tr.Shutdown()
	assert.True(t, tr.IsShutdown())
	assert.True(t, errors.Is(tr.Update(static(100, "ALPHA", at(time.Second))), ErrShutdown))
	assert.True(t, errors.Is(tr.Update(nil), ErrShutdown), "shutdown is checked first")
	assert.Equal(t, []string{"WallclockChanged", "TrackCreated"}, rec.names(), "pending events are drained")
	assert.Empty(t, tr.RegisterSubscriber(rec))

	tr.Shutdown()
}

func TestEvents(t *testing.T) {
	defer goleak.VerifyNone(t)
	tr := New()
	rec := &recorder{}
	id := tr.RegisterSubscriber(rec)
	assert.NotEmpty(t, id)

	require.NoError(t, tr.Update(static(100, "ALPHA", at(0))))
	require.NoError(t, tr.Update(static(100, "ALPHA", at(time.Second))))
	require.NoError(t, tr.Update(dynamic(100, 3, at(2*time.Second))))
	require.NoError(t, tr.Update(&ais.Message{MMSI: 3, Type: 4, Metadata: &ais.Metadata{Received: at(3 * time.Second)}}))
	tr.Shutdown()

	assert.Equal(t, []string{
		"WallclockChanged", "TrackCreated",
		"WallclockChanged", "TrackUpdated",
		"WallclockChanged", "TrackUpdated", "TrackDynamicsUpdated",
		"WallclockChanged",
	}, rec.names())

	last := rec.events[len(rec.events)-1].(WallclockChanged)
	assert.Equal(t, at(3*time.Second), last.Wallclock)
	created := rec.events[1].(TrackCreated)
	assert.Equal(t, ais.MMSI(100), created.MMSI())
	assert.Nil(t, created.Track.DynamicReport(), "event holds the snapshot taken at the time")
}

func TestOtherMessagesOnlyMoveWallclock(t *testing.T) {
	defer goleak.VerifyNone(t)
	tr := New()
	defer tr.Shutdown()

	require.NoError(t, tr.Update(&ais.Message{MMSI: 2190047, Type: 4, Metadata: &ais.Metadata{Received: at(time.Hour)}}))
	assert.Equal(t, at(time.Hour), tr.Wallclock())
	assert.Zero(t, tr.TrackCount())
}

func TestClockFallback(t *testing.T) {
	defer goleak.VerifyNone(t)
	c := clock.NewMock(at(time.Hour))
	tr := New(WithClock(c))
	defer tr.Shutdown()

	msg := dynamic(100, 1, time.Time{})
	msg.Metadata = nil
	require.NoError(t, tr.Update(msg))
	assert.Equal(t, at(time.Hour), tr.Wallclock())

	require.NoError(t, tr.UpdateAt(dynamic(100, 2, at(0)), at(2*time.Hour)), "explicit time wins over metadata")
	assert.Equal(t, at(2*time.Hour), tr.Wallclock())
}

func TestFilter(t *testing.T) {
	defer goleak.VerifyNone(t)
	tr := New(WithFilter(func(m *ais.Message) bool { return m.MMSI != 666 }))
	defer tr.Shutdown()

	require.NoError(t, tr.Update(dynamic(666, 1, at(time.Hour))))
	require.NoError(t, tr.Update(dynamic(100, 1, at(0))))
	assert.False(t, tr.IsTracked(666))
	assert.True(t, tr.IsTracked(100))
	assert.Equal(t, at(0), tr.Wallclock())
}

func TestTracksSorted(t *testing.T) {
	defer goleak.VerifyNone(t)
	tr := New()
	defer tr.Shutdown()

	for i, mmsi := range []ais.MMSI{300000000, 5, 211000000, 70000} {
		require.NoError(t, tr.Update(dynamic(mmsi, 1, at(time.Duration(i)*time.Second))))
	}
	snapshot := tr.Tracks()
	require.Len(t, snapshot, 4)
	var got []ais.MMSI
	for _, trk := range snapshot {
		got = append(got, trk.MMSI())
	}
	assert.Equal(t, []ais.MMSI{5, 70000, 211000000, 300000000}, got)

	require.NoError(t, tr.Update(dynamic(6, 1, at(time.Minute))))
	assert.Len(t, snapshot, 4, "snapshots are not affected by later updates")
}

func TestStaleEviction(t *testing.T) {
	defer goleak.VerifyNone(t)
	tr := New()
	rec := &recorder{}
	tr.RegisterSubscriber(rec)

	require.NoError(t, tr.Update(dynamic(100, 1, at(0))))
	require.NoError(t, tr.Update(dynamic(200, 1, at(31*time.Minute))))

	assert.Eventually(t, func() bool { return !tr.IsTracked(100) }, 2*time.Second, time.Millisecond)
	assert.True(t, tr.IsTracked(200))

	// Another sweep must not report the track again
	require.NoError(t, tr.Update(dynamic(200, 1, at(40*time.Minute))))
	assert.Eventually(t, func() bool { return tr.TimeOfLastStaleCheck().Equal(at(40 * time.Minute)) }, 2*time.Second, time.Millisecond)

	tr.Shutdown()
	assert.Equal(t, 1, rec.deleted(100))
	assert.Equal(t, 0, rec.deleted(200))
	for _, trk := range tr.Tracks() {
		assert.NotEqual(t, ais.MMSI(100), trk.MMSI())
	}

	// A vessel heard from again starts over
	tr2 := New()
	defer tr2.Shutdown()
	require.NoError(t, tr2.Update(dynamic(100, 1, at(0))))
	trk, _ := tr2.Track(100)
	assert.Zero(t, trk.HistoryLen())
}

func TestStalePeriodAtRunTime(t *testing.T) {
	defer goleak.VerifyNone(t)
	tr := New()
	defer tr.Shutdown()
	tr.SetStalePeriod(5 * time.Minute)
	tr.SetStaleCheckPeriod(30 * time.Second)
	assert.Equal(t, 5*time.Minute, tr.Options().StalePeriod)
	assert.Equal(t, DefaultMaxHistoryAge, tr.Options().MaxHistoryAge)

	require.NoError(t, tr.Update(dynamic(100, 1, at(0))))
	require.NoError(t, tr.Update(dynamic(200, 1, at(6*time.Minute))))
	assert.Eventually(t, func() bool { return !tr.IsTracked(100) }, 2*time.Second, time.Millisecond)
}

func TestHistoryPruning(t *testing.T) {
	defer goleak.VerifyNone(t)
	tr := New(WithOptions(Options{MaxHistoryAge: time.Hour}))
	defer tr.Shutdown()

	var last time.Time
	for i := 0; i <= 18; i++ {
		last = at(time.Duration(i) * 10 * time.Minute)
		require.NoError(t, tr.Update(dynamic(200, float64(i), last)))
	}
	last = last.Add(6 * time.Minute)
	require.NoError(t, tr.Update(dynamic(200, 99, last)))

	assert.Eventually(t, func() bool { return tr.TimeOfLastPruning().Equal(last) }, 2*time.Second, time.Millisecond)

	trk, ok := tr.Track(200)
	require.True(t, ok)
	require.NotZero(t, trk.HistoryLen())
	cutoff := tr.Wallclock().Add(-time.Hour)
	for _, e := range trk.History() {
		assert.False(t, e.At.Before(cutoff), "%v is older than %v", e.At, cutoff)
	}
	sog, _ := trk.SpeedOverGround()
	assert.Equal(t, 99.0, sog, "pruning keeps the current report")
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	defer goleak.VerifyNone(t)
	tr := New()
	release := make(chan struct{})
	var delivered int
	var mu sync.Mutex
	tr.RegisterSubscriber(SubscriberFunc(func(Event) {
		<-release
		mu.Lock()
		delivered++
		mu.Unlock()
	}))
	rec := &recorder{}
	tr.RegisterSubscriber(rec)

	for i := 0; i < 50; i++ {
		require.NoError(t, tr.Update(dynamic(100, float64(i), at(time.Duration(i)*time.Second))))
	}
	// created: 2 events, then 3 per dynamic update
	want := 2 + 49*3
	assert.Eventually(t, func() bool { return len(rec.names()) == want }, 2*time.Second, time.Millisecond)

	close(release)
	tr.Shutdown()
	mu.Lock()
	assert.Equal(t, want, delivered)
	mu.Unlock()
}

func TestSubscriberPanic(t *testing.T) {
	defer goleak.VerifyNone(t)
	tr := New()
	calls := 0
	tr.RegisterSubscriber(SubscriberFunc(func(Event) {
		calls++
		panic("subscriber bug")
	}))

	require.NoError(t, tr.Update(dynamic(100, 1, at(0))))
	require.NoError(t, tr.Update(dynamic(100, 1, at(time.Second))))
	tr.Shutdown()
	assert.Equal(t, 5, calls)
}

func TestUnregister(t *testing.T) {
	defer goleak.VerifyNone(t)
	tr := New()
	defer tr.Shutdown()
	rec := &recorder{}
	id := tr.RegisterSubscriber(rec)

	require.NoError(t, tr.Update(dynamic(100, 1, at(0))))
	assert.True(t, tr.UnregisterSubscriber(id))
	assert.False(t, tr.UnregisterSubscriber(id))
	require.NoError(t, tr.Update(dynamic(100, 1, at(time.Second))))

	assert.Eventually(t, func() bool { return len(rec.names()) == 2 }, time.Second, time.Millisecond)
	assert.Never(t, func() bool { return len(rec.names()) > 2 }, 20*time.Millisecond, time.Millisecond)
}

func TestShutdownTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)
	tr := New(WithOptions(Options{ShutdownTimeout: 10 * time.Millisecond}))
	release := make(chan struct{})
	tr.RegisterSubscriber(SubscriberFunc(func(Event) { <-release }))
	require.NoError(t, tr.Update(dynamic(100, 1, at(0))))

	start := time.Now()
	tr.Shutdown()
	assert.Less(t, time.Since(start), time.Second, "shutdown gives up waiting")
	close(release)
}
