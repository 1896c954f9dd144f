package nmea

import (
	"context"
	"strings"
	"testing"
	"time"

	"aistrack/ais"
	"aistrack/ais/util/clock"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestDecodePositionReport(t *testing.T) {
	d := NewDecoder("local", clock.NewMock(now))
	msg, err := d.Decode(posReport)
	require.NoError(t, err)
	require.NotNil(t, msg)

	assert.Equal(t, ais.MMSI(477553000), msg.MMSI)
	assert.Equal(t, 1, msg.Type)
	assert.Equal(t, ais.ClassA, msg.Class)
	assert.Equal(t, ais.KindDynamic, msg.Kind())
	assert.Equal(t, tagPayload, msg.Payload)
	assert.Equal(t, now, msg.Timestamp())
	assert.Equal(t, "local", msg.Metadata.Source)

	dyn, ok := msg.Dynamic()
	require.True(t, ok)
	assert.InDelta(t, 47.582833, dyn.Latitude, 1e-4)
	assert.InDelta(t, -122.345833, dyn.Longitude, 1e-4)
	assert.InDelta(t, 0, dyn.SpeedOverGround, 1e-6)
	assert.InDelta(t, 51, dyn.CourseOverGround, 1e-6)
	assert.Equal(t, 181, dyn.TrueHeading)
	assert.Equal(t, 15, dyn.Second)
	assert.True(t, dyn.Extended)
}

func TestDecodeTagBlock(t *testing.T) {
	d := NewDecoder("local", clock.NewMock(now))
	msg, err := d.Decode(tagged)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, time.Unix(1500000000, 0).UTC(), msg.Timestamp())
	assert.Equal(t, "station1", msg.Metadata.Source)
}

func TestDecodeMultipartStatic(t *testing.T) {
	d := NewDecoder("", nil)
	msg, err := d.Decode(staticPt1)
	require.NoError(t, err)
	assert.Nil(t, msg, "first fragment completes nothing")

	msg, err = d.Decode(staticPt2)
	require.NoError(t, err)
	require.NotNil(t, msg)

	assert.Equal(t, ais.MMSI(351759000), msg.MMSI)
	assert.Equal(t, 5, msg.Type)
	assert.Equal(t, ais.ClassA, msg.Class)
	assert.Equal(t, strings.Split(staticPt1, ",")[5]+"88888888880", msg.Payload)
	assert.Empty(t, d.fragments)

	st, ok := msg.Static()
	require.True(t, ok)
	assert.Equal(t, "3FOF8", st.CallSign)
	assert.Equal(t, "EVER DIADEM", st.Name)
	assert.Equal(t, 70, st.ShipType)
	assert.Equal(t, ais.Dimension{ToBow: 225, ToStern: 70, ToPort: 1, ToStarboard: 31}, st.Dimension)
}

func TestDecodeNotAIS(t *testing.T) {
	d := NewDecoder("", nil)
	msg, err := d.Decode(gll)
	assert.Nil(t, msg)
	assert.ErrorIs(t, err, ErrNotAIS)

	_, err = d.Decode("garbage")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestScan(t *testing.T) {
	input := strings.Join([]string{
		gll,
		posReport,
		"",
		"!AIVDM,1,1,,B,177KQJ5000G?tO`K>RA1wUbN0TKH,0*00",
		staticPt1,
		staticPt2,
	}, "\n")

	var got []*ais.Message
	err := Scan(context.Background(), strings.NewReader(input), NewDecoder("", nil), func(m *ais.Message) error {
		got = append(got, m)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Type)
	assert.Equal(t, 5, got[1].Type)
}

func TestScanStops(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	err := Scan(context.Background(), strings.NewReader(posReport+"\n"+posReport), NewDecoder("", nil), func(*ais.Message) error {
		calls++
		return stop
	})
	assert.Equal(t, stop, err)
	assert.Equal(t, 1, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = Scan(ctx, strings.NewReader(posReport), NewDecoder("", nil), func(*ais.Message) error {
		t.Error("handler called after cancel")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
