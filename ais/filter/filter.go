// Package filter decides which AIS messages to keep. It provides compiled
// filter expressions, which may consult and update a tracker, and a
// duplicate message filter.
package filter

import (
	"aistrack/ais"
)

// Filter accepts or rejects messages.
type Filter interface {
	Test(*ais.Message) bool
}

// Predicate is a compiled filter.
type Predicate func(*ais.Message) bool

func (p Predicate) Test(m *ais.Message) bool {
	return p(m)
}

// And short circuits: q is not evaluated when p rejects.
func (p Predicate) And(q Predicate) Predicate {
	return func(m *ais.Message) bool {
		return p(m) && q(m)
	}
}

// Or short circuits: q is not evaluated when p accepts.
func (p Predicate) Or(q Predicate) Predicate {
	return func(m *ais.Message) bool {
		return p(m) || q(m)
	}
}

func (p Predicate) Not() Predicate {
	return func(m *ais.Message) bool {
		return !p(m)
	}
}

// Chain accepts a message when every filter in it does. Filters are tested
// in order and testing stops at the first rejection.
type Chain []Filter

func (c Chain) Test(m *ais.Message) bool {
	for _, f := range c {
		if !f.Test(m) {
			return false
		}
	}
	return true
}
