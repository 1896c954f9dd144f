package filter

import (
	"aistrack/ais"
	"aistrack/ais/filter/op"
	"aistrack/ais/filter/parser"
	"aistrack/ais/track"

	"github.com/pkg/errors"
)

// Fields of the filter language
const (
	FieldMsgID = "msgid"
	FieldMMSI  = "mmsi"
	FieldSOG   = "sog"
	FieldCOG   = "cog"
	FieldLat   = "lat"
	FieldLng   = "lng"
)

// kinematic fields are read from dynamic reports, and from the tracker for
// static reports. They do not apply to any other message.
type kinematic struct {
	fromReport func(*ais.DynamicReport) float64
	fromTrack  func(*track.Track) (float64, bool)
	// Integer literals compare against the truncated value
	integral bool
}

var kinematics = map[string]kinematic{
	FieldSOG: {
		fromReport: func(r *ais.DynamicReport) float64 { return r.SpeedOverGround },
		fromTrack:  (*track.Track).SpeedOverGround,
		integral:   true,
	},
	FieldCOG: {
		fromReport: func(r *ais.DynamicReport) float64 { return r.CourseOverGround },
		fromTrack:  (*track.Track).CourseOverGround,
		integral:   true,
	},
	FieldLat: {
		fromReport: func(r *ais.DynamicReport) float64 { return r.Latitude },
		fromTrack:  (*track.Track).Latitude,
	},
	FieldLng: {
		fromReport: func(r *ais.DynamicReport) float64 { return r.Longitude },
		fromTrack:  (*track.Track).Longitude,
	},
}

var identities = map[string]func(*ais.Message) int64{
	FieldMsgID: func(m *ais.Message) int64 { return int64(m.Type) },
	FieldMMSI:  func(m *ais.Message) int64 { return int64(m.MMSI) },
}

// Stateful reports whether the expression reads any kinematic field, and so
// depends on tracked state.
func Stateful(n parser.Node) bool {
	switch n := n.(type) {
	case *parser.Binary:
		return Stateful(n.Left) || Stateful(n.Right)
	case *parser.Comparison:
		_, ok := kinematics[n.Field]
		return ok
	}
	return false
}

// Compile turns a syntax tree into a predicate. Kinematic fields of static
// reports are looked up in reg, which should already hold the message; a nil
// reg reads them as 0. Compile does not update reg, see Expression.
func Compile(n parser.Node, reg Registry) (Predicate, error) {
	c := compiler{reg: reg}
	return c.compile(n)
}

type compiler struct {
	reg Registry
}

func (c compiler) compile(n parser.Node) (Predicate, error) {
	switch n := n.(type) {
	case *parser.Binary:
		left, err := c.compile(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := c.compile(n.Right)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case op.And:
			return left.And(right), nil
		case op.Or:
			return left.Or(right), nil
		}
		return nil, errors.Errorf("unexpected operator %v", n.Op)
	case *parser.Comparison:
		return c.comparison(n)
	case *parser.Membership:
		return c.membership(n)
	}
	return nil, errors.Errorf("unexpected node %T", n)
}

func (c compiler) comparison(n *parser.Comparison) (Predicate, error) {
	if !n.Op.IsComparison() {
		return nil, errors.Wrapf(ErrInvalidOperator, "%v", n)
	}

	if get, ok := identities[n.Field]; ok {
		if n.Value.IsFloat {
			return nil, errors.Wrapf(ErrInvalidLiteral, "%v: %v takes integers only", n, n.Field)
		}
		oper, rhs := n.Op, n.Value.Int
		return func(m *ais.Message) bool {
			ok, _ := op.EvalInt(get(m), oper, rhs)
			return ok
		}, nil
	}

	k, ok := kinematics[n.Field]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownField, "%q", n.Field)
	}
	oper, lit := n.Op, n.Value
	integral := k.integral && !lit.IsFloat
	return func(m *ais.Message) bool {
		var v float64
		switch m.Kind() {
		case ais.KindDynamic:
			r, _ := m.Dynamic()
			v = k.fromReport(r)
		case ais.KindStatic:
			v = c.lookup(m.MMSI, k)
		default:
			// Field does not apply
			return true
		}
		if integral {
			ok, _ := op.EvalInt(int64(v), oper, lit.Int)
			return ok
		}
		ok, _ := op.EvalFloat(v, oper, lit.Float)
		return ok
	}, nil
}

// lookup reads the last known value of a kinematic field, 0 when unknown.
func (c compiler) lookup(mmsi ais.MMSI, k kinematic) float64 {
	if c.reg == nil {
		return 0
	}
	trk, ok := c.reg.Track(mmsi)
	if !ok {
		return 0
	}
	v, _ := k.fromTrack(trk)
	return v
}

func (c compiler) membership(n *parser.Membership) (Predicate, error) {
	get, ok := identities[n.Field]
	if !ok {
		if _, known := kinematics[n.Field]; known {
			return nil, errors.Wrapf(ErrInvalidOperator, "%v: in is only supported for %v and %v", n, FieldMsgID, FieldMMSI)
		}
		return nil, errors.Wrapf(ErrUnknownField, "%q", n.Field)
	}
	set := make(map[int64]struct{}, len(n.Values))
	for _, v := range n.Values {
		set[v] = struct{}{}
	}
	negated := n.Negated
	return func(m *ais.Message) bool {
		_, in := set[get(m)]
		return in != negated
	}, nil
}
