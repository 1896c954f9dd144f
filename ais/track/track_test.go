package track

import (
	"testing"
	"time"

	"aistrack/ais"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2016, 3, 1, 12, 0, 0, 0, time.UTC)

func at(sec int) time.Time {
	return t0.Add(time.Duration(sec) * time.Second)
}

func static(mmsi ais.MMSI, name string) *ais.Message {
	return &ais.Message{MMSI: mmsi, Type: 5, Class: ais.ClassA, Report: &ais.StaticReport{
		Name:      name,
		CallSign:  "OX1234",
		ShipType:  70,
		Dimension: ais.Dimension{ToBow: 100, ToStern: 20, ToPort: 8, ToStarboard: 9},
	}}
}

func dynamic(mmsi ais.MMSI, sog float64) *ais.Message {
	return &ais.Message{MMSI: mmsi, Type: 1, Class: ais.ClassA, Report: &ais.DynamicReport{
		Latitude:         55.5,
		Longitude:        10.5,
		SpeedOverGround:  sog,
		CourseOverGround: 90,
		TrueHeading:      88,
		Second:           13,
		Extended:         true,
	}}
}

func aton(mmsi ais.MMSI) *ais.Message {
	return &ais.Message{MMSI: mmsi, Type: 21, Report: &ais.AtoNReport{
		Name:      "BUOY",
		Latitude:  56,
		Longitude: 11,
		Dimension: ais.Dimension{ToBow: 1, ToStern: 1, ToPort: 1, ToStarboard: 1},
		Second:    42,
	}}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		msg  *ais.Message
		at   time.Time
		err  error
	}{
		{"static", static(100, "ALPHA"), at(0), nil},
		{"dynamic", dynamic(100, 1), at(0), nil},
		{"aton", aton(992190001), at(0), nil},
		{"nil", nil, at(0), ErrInvalidTrack},
		{"other", &ais.Message{MMSI: 100, Type: 4}, at(0), ErrInvalidTrack},
		{"zero time", static(100, "ALPHA"), time.Time{}, ErrInvalidTrack},
		{"zero mmsi", static(0, "ALPHA"), at(0), ErrInvalidTrack},
		{"negative mmsi", dynamic(-5, 1), at(0), ErrInvalidTrack},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trk, err := New(tt.msg, tt.at)
			if tt.err != nil {
				assert.True(t, errors.Is(err, tt.err), "got %v", err)
				assert.Nil(t, trk)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.msg.MMSI, trk.MMSI())
			assert.Equal(t, tt.at, trk.TimeOfLastUpdate())
			assert.Zero(t, trk.HistoryLen())
		})
	}
}

func TestStaticThenDynamic(t *testing.T) {
	trk, err := New(static(100, "ALPHA"), at(0))
	require.NoError(t, err)
	trk, err = trk.WithDynamicUpdate(dynamic(100, 12.3), at(10))
	require.NoError(t, err)

	name, ok := trk.ShipName()
	assert.True(t, ok)
	assert.Equal(t, "ALPHA", name)
	sog, ok := trk.SpeedOverGround()
	assert.True(t, ok)
	assert.Equal(t, 12.3, sog)
	assert.Equal(t, at(10), trk.TimeOfLastUpdate())
	assert.Equal(t, at(0), trk.TimeOfStaticUpdate())
	assert.Equal(t, at(10), trk.TimeOfDynamicUpdate())
	assert.Equal(t, ais.ClassA, trk.TransponderClass())
	assert.Zero(t, trk.HistoryLen(), "first dynamic report has nothing to supersede")
}

func TestHistory(t *testing.T) {
	trk, err := New(dynamic(200, 1), at(0))
	require.NoError(t, err)
	for i, sog := range []float64{2, 3, 4} {
		next, err := trk.WithDynamicUpdate(dynamic(200, sog), at(10*(i+1)))
		require.NoError(t, err)
		assert.Equal(t, i, trk.HistoryLen(), "receiver is unchanged")
		trk = next
	}

	h := trk.History()
	require.Len(t, h, 3)
	for i, e := range h {
		assert.Equal(t, at(10*i), e.At)
		assert.Equal(t, float64(i+1), e.Report.SpeedOverGround)
	}
	sog, _ := trk.SpeedOverGround()
	assert.Equal(t, 4.0, sog)

	oldest, ok := trk.OldestHistory()
	assert.True(t, ok)
	assert.Equal(t, at(0), oldest.At)
}

func TestPrunedHistory(t *testing.T) {
	trk, err := New(dynamic(200, 1), at(0))
	require.NoError(t, err)
	for i := 1; i <= 4; i++ {
		trk, err = trk.WithDynamicUpdate(dynamic(200, float64(i)), at(10*i))
		require.NoError(t, err)
	}
	require.Equal(t, 4, trk.HistoryLen())

	cutoff := at(20)
	pruned := trk.WithPrunedHistory(func(t time.Time) bool { return !t.Before(cutoff) })
	assert.Equal(t, 4, trk.HistoryLen())
	require.Equal(t, 2, pruned.HistoryLen())
	for _, e := range pruned.History() {
		assert.False(t, e.At.Before(cutoff))
	}
	assert.Equal(t, trk.TimeOfDynamicUpdate(), pruned.TimeOfDynamicUpdate())

	assert.Same(t, pruned, pruned.WithPrunedHistory(func(time.Time) bool { return true }))
	empty := pruned.WithPrunedHistory(func(time.Time) bool { return false })
	assert.Zero(t, empty.HistoryLen())
	_, ok := empty.OldestHistory()
	assert.False(t, ok)
}

func TestUpdateErrors(t *testing.T) {
	base, err := New(static(100, "ALPHA"), at(10))
	require.NoError(t, err)

	classB := dynamic(100, 1)
	classB.Class = ais.ClassB

	tests := []struct {
		name string
		msg  *ais.Message
		at   time.Time
		err  error
	}{
		{"same time", dynamic(100, 1), at(10), ErrOutOfOrder},
		{"earlier", dynamic(100, 1), at(5), ErrOutOfOrder},
		{"other mmsi", dynamic(101, 1), at(20), ErrInvalidTrack},
		{"class mismatch", classB, at(20), ErrInvalidTrack},
		{"no report", &ais.Message{MMSI: 100, Type: 4}, at(20), ErrInvalidTrack},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := base.WithUpdate(tt.msg, tt.at)
			assert.True(t, errors.Is(err, tt.err), "got %v", err)
		})
	}

	_, err = base.WithStaticUpdate(dynamic(100, 1), at(20))
	assert.True(t, errors.Is(err, ErrInvalidTrack))
	_, err = base.WithDynamicUpdate(static(100, "X"), at(20))
	assert.True(t, errors.Is(err, ErrInvalidTrack))
	_, err = base.WithAtoNUpdate(static(100, "X"), at(20))
	assert.True(t, errors.Is(err, ErrInvalidTrack))
}

func TestStaticFieldsDoNotRegress(t *testing.T) {
	trk, err := New(static(100, "ALPHA"), at(0))
	require.NoError(t, err)

	partB := &ais.Message{MMSI: 100, Type: 24, Class: ais.ClassA, Report: &ais.StaticReport{CallSign: "NEW"}}
	trk, err = trk.WithStaticUpdate(partB, at(10))
	require.NoError(t, err)

	name, ok := trk.ShipName()
	assert.True(t, ok)
	assert.Equal(t, "ALPHA", name)
	cs, _ := trk.CallSign()
	assert.Equal(t, "NEW", cs)
	bow, _ := trk.ToBow()
	assert.Equal(t, 100, bow)
	assert.Empty(t, partB.Report.(*ais.StaticReport).Name, "message is not modified")
}

func TestShipTypeNotAvailable(t *testing.T) {
	msg := static(100, "ALPHA")
	msg.Report.(*ais.StaticReport).ShipType = 0
	trk, err := New(msg, at(0))
	require.NoError(t, err)
	_, ok := trk.ShipType()
	assert.False(t, ok)
	_, ok = trk.ShipName()
	assert.True(t, ok)

	trk, err = New(static(100, "ALPHA"), at(0))
	require.NoError(t, err)
	st, ok := trk.ShipType()
	assert.True(t, ok)
	assert.Equal(t, 70, st)
}

func TestAccessorFallbacks(t *testing.T) {
	msg := aton(992190001)
	trk, err := New(msg, at(0))
	require.NoError(t, err)
	assert.Same(t, msg, trk.AtoNMessage())
	assert.Nil(t, trk.StaticMessage())
	assert.Equal(t, at(0), trk.TimeOfAtoNUpdate())
	assert.True(t, trk.TimeOfStaticUpdate().IsZero())

	lat, ok := trk.Latitude()
	assert.True(t, ok)
	assert.Equal(t, 56.0, lat)
	sec, ok := trk.Second()
	assert.True(t, ok)
	assert.Equal(t, 42, sec)
	bow, ok := trk.ToBow()
	assert.True(t, ok)
	assert.Equal(t, 1, bow)

	_, ok = trk.SpeedOverGround()
	assert.False(t, ok, "aids to navigation have no speed")
	_, ok = trk.CourseOverGround()
	assert.False(t, ok)
	_, ok = trk.TrueHeading()
	assert.False(t, ok)
	_, ok = trk.ShipName()
	assert.False(t, ok, "name of an aid comes from its own report, not the static slot")

	basic := dynamic(100, 5)
	basic.Report.(*ais.DynamicReport).Extended = false
	trk, err = New(basic, at(0))
	require.NoError(t, err)
	_, ok = trk.TrueHeading()
	assert.False(t, ok)
	_, ok = trk.Second()
	assert.False(t, ok)
	_, ok = trk.ToBow()
	assert.False(t, ok)
}

func TestString(t *testing.T) {
	trk, err := New(static(100, "ALPHA"), at(0))
	require.NoError(t, err)
	assert.Contains(t, trk.String(), "mmsi=000000100")
	assert.Contains(t, trk.String(), `name="ALPHA"`)
}
