package filter

import (
	"errors"
)

var (
	ErrUnknownField    = errors.New("Unknown field")
	ErrInvalidOperator = errors.New("Operator not supported for field")
	ErrInvalidLiteral  = errors.New("Literal not supported for field")
	ErrInvalidWindow   = errors.New("Doublet window must be positive")
)
