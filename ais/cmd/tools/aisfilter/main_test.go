package main

import (
	"strings"
	"testing"
	"time"

	"aistrack/ais/filter"
	"aistrack/gogroup"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	posReport = "!AIVDM,1,1,,B,177KQJ5000G?tO`K>RA1wUbN0TKH,0*5C"
	staticPt1 = "!AIVDM,2,1,1,A,55?MbV02;H;s<HtKR20EHE:0@T4@Dn2222222216L961O5Gf0NSQEp6ClRp8,0*1C"
	staticPt2 = "!AIVDM,2,2,1,A,88888888880,2*25"
	gll       = "$GPGLL,3554.4456,N,528.9195,W,,,*5A"
)

func run(t *testing.T, chain filter.Chain, lines ...string) (int, string) {
	var out strings.Builder
	n, err := copyAccepted(gogroup.New(nil, "test"), strings.NewReader(strings.Join(lines, "\n")), &out, chain)
	require.NoError(t, err)
	return n, out.String()
}

func TestCopyAccepted(t *testing.T) {
	expr, err := filter.NewExpression("msgid = 5", nil)
	require.NoError(t, err)
	defer expr.Close()

	n, out := run(t, filter.Chain{expr}, gll, posReport, staticPt1, staticPt2)
	assert.Equal(t, 1, n)
	assert.Equal(t, staticPt1+"\n"+staticPt2+"\n", out)
}

func TestCopyAcceptedDoublets(t *testing.T) {
	d, err := filter.NewDoublet(time.Minute, 10)
	require.NoError(t, err)

	n, out := run(t, filter.Chain{d}, posReport, posReport, staticPt1, staticPt2)
	assert.Equal(t, 2, n)
	assert.Equal(t, posReport+"\n"+staticPt1+"\n"+staticPt2+"\n", out)
}

func TestCopyAcceptedStatefulExpression(t *testing.T) {
	// the static data comes from a vessel with no position report, read as speed 0
	expr, err := filter.NewExpression("sog < 1", nil)
	require.NoError(t, err)
	defer expr.Close()

	n, _ := run(t, filter.Chain{expr}, posReport, staticPt1, staticPt2)
	assert.Equal(t, 2, n)
}
