package nmea

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// TagBlock holds the IEC 61162-450 fields relayed ahead of a sentence, as in
// \c:1500000000,s:station1*5B\!AIVDM,...
type TagBlock struct {
	// c: reception time, zero when absent
	Time time.Time
	// s: source station
	Source string
	// d: destination
	Destination string
	// g: sentence grouping
	Group string
	// t: free text
	Text string
}

// ParseTagBlock parses the text between the two backslashes. An optional
// checksum is verified when present. Unknown parameters are ignored.
func ParseTagBlock(text string) (TagBlock, error) {
	var tb TagBlock
	if i := strings.Index(text, checksumSep); i >= 0 {
		want := strings.ToUpper(text[i+1:])
		text = text[:i]
		if got := checksum(text); got != want {
			return tb, errors.Wrapf(ErrChecksum, "tag block [%s != %s]", got, want)
		}
	}
	if text == "" {
		return tb, nil
	}

	for _, param := range strings.Split(text, fieldSep) {
		kv := strings.SplitN(param, ":", 2)
		if len(kv) != 2 {
			return tb, errors.Wrapf(ErrMalformed, "tag block parameter %q", param)
		}
		switch kv[0] {
		case "c":
			secs, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return tb, errors.Wrapf(ErrMalformed, "tag block time %q", kv[1])
			}
			// Some relays send milliseconds
			if secs > 1e11 {
				tb.Time = time.Unix(0, secs*int64(time.Millisecond)).UTC()
			} else {
				tb.Time = time.Unix(secs, 0).UTC()
			}
		case "s":
			tb.Source = kv[1]
		case "d":
			tb.Destination = kv[1]
		case "g":
			tb.Group = kv[1]
		case "t":
			tb.Text = kv[1]
		}
	}
	return tb, nil
}
