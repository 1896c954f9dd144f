package ais

import (
	"errors"
)

var (
	ErrUnsupportedDigest = errors.New("Unsupported digest algorithm")
)
