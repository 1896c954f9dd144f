package nmea

import "errors"

var (
	ErrMalformed = errors.New("malformed sentence")
	ErrChecksum  = errors.New("checksum mismatch")
	ErrNotAIS    = errors.New("not an AIS sentence")
)
