package filter

import (
	"aistrack/ais"
	"aistrack/ais/filter/parser"
	"aistrack/ais/log"
	"aistrack/ais/track"
	"aistrack/ais/tracker"

	"github.com/pkg/errors"
)

// Registry is the tracker state an expression reads and keeps up to date.
// *tracker.Tracker implements it.
type Registry interface {
	Update(*ais.Message) error
	Track(ais.MMSI) (*track.Track, bool)
}

// Expression is a compiled filter expression.
//
// Expressions reading sog, cog, lat or lng write every static and dynamic
// message they test into their registry before evaluating it, whether the
// message is accepted or not. Callers sharing the registry with an ingestion
// path must not apply those messages a second time; see Ingests.
type Expression struct {
	text     string
	root     parser.Node
	pred     Predicate
	reg      Registry
	own      *tracker.Tracker
	stateful bool
}

// NewExpression compiles text. With a nil reg the expression keeps its own
// tracker, which Close shuts down.
func NewExpression(text string, reg Registry) (*Expression, error) {
	root, err := parser.Parse(text)
	if err != nil {
		return nil, err
	}
	e := &Expression{
		text:     text,
		root:     root,
		reg:      reg,
		stateful: Stateful(root),
	}
	if e.reg == nil && e.stateful {
		e.own = tracker.New(tracker.WithName("filter-tracker"))
		e.reg = e.own
	}
	e.pred, err = Compile(root, e.reg)
	if err != nil {
		e.Close()
		return nil, errors.Wrapf(err, "compile %q", text)
	}
	log.Debug("Compiled filter %v as %v", text, root)
	return e, nil
}

// Ingests reports whether testing m writes it into the registry.
func (e *Expression) Ingests(m *ais.Message) bool {
	if !e.stateful || m == nil {
		return false
	}
	switch m.Kind() {
	case ais.KindStatic, ais.KindDynamic:
		return true
	}
	return false
}

// Evaluate tests m. The error is the registry's, if it refused m; the
// verdict is valid either way.
func (e *Expression) Evaluate(m *ais.Message) (bool, error) {
	if m == nil {
		return false, tracker.ErrNilMessage
	}
	var err error
	if e.Ingests(m) {
		err = e.reg.Update(m)
	}
	return e.pred(m), err
}

func (e *Expression) Test(m *ais.Message) bool {
	ok, err := e.Evaluate(m)
	if err != nil {
		log.Debug("filter %v: could not track %v: %v", e.text, m, err)
	}
	return ok
}

func (e *Expression) String() string {
	return e.root.String()
}

// Close releases the private tracker, if any.
func (e *Expression) Close() {
	if e.own != nil {
		e.own.Shutdown()
	}
}
