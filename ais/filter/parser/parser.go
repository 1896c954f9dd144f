// Package parser turns filter expression text into a syntax tree.
//
// The language has comparisons ("sog > 5.5", "mmsi != 219000000"),
// membership tests ("msgid in (1, 2, 3)", "mmsi not in (1, 2)") and the
// combinators "and" and "or", where "and" binds tighter. Parentheses group.
// Keywords are case insensitive.
//
// Integers are decimal with an optional sign. Floats need a fraction or an
// exponent: "5.5", ".5", "10.", "1e1" and "-2.5E-3" are all accepted.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"aistrack/ais/filter/op"

	"github.com/pkg/errors"
)

type Node interface {
	String() string
	node()
}

// Binary combines two expressions with op.And or op.Or.
type Binary struct {
	Op    op.Op
	Left  Node
	Right Node
}

// Comparison is "field op literal".
type Comparison struct {
	Field string
	Op    op.Op
	Value Literal
}

// Membership is "field [not] in (values)".
type Membership struct {
	Field   string
	Negated bool
	Values  []int64
}

// Literal is a number as written. Int is set for integer literals only.
type Literal struct {
	Text    string
	IsFloat bool
	Int     int64
	Float   float64
}

func (*Binary) node()     {}
func (*Comparison) node() {}
func (*Membership) node() {}

func (b *Binary) String() string {
	return fmt.Sprintf("(%v %v %v)", b.Left, b.Op, b.Right)
}

func (c *Comparison) String() string {
	return fmt.Sprintf("%v%v%v", c.Field, c.Op, c.Value.Text)
}

func (m *Membership) String() string {
	vals := make([]string, len(m.Values))
	for i, v := range m.Values {
		vals[i] = strconv.FormatInt(v, 10)
	}
	oper := op.In
	if m.Negated {
		oper = op.NotIn
	}
	return fmt.Sprintf("%v %v (%v)", m.Field, oper, strings.Join(vals, ", "))
}

// Parse parses one filter expression.
func Parse(text string) (Node, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("empty filter expression")
	}
	tree, err := grammar.ParseString("", text)
	if err != nil {
		return nil, errors.Wrapf(err, "parse %q", text)
	}
	node, err := tree.convert()
	if err != nil {
		return nil, errors.Wrapf(err, "parse %q", text)
	}
	return node, nil
}

func (e *expression) convert() (Node, error) {
	var out Node
	for _, c := range e.Or {
		n, err := c.convert()
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = n
		} else {
			out = &Binary{Op: op.Or, Left: out, Right: n}
		}
	}
	return out, nil
}

func (c *conjunction) convert() (Node, error) {
	var out Node
	for _, t := range c.And {
		n, err := t.convert()
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = n
		} else {
			out = &Binary{Op: op.And, Left: out, Right: n}
		}
	}
	return out, nil
}

func (t *term) convert() (Node, error) {
	if t.Group != nil {
		return t.Group.convert()
	}
	return t.Predicate.convert()
}

func (p *predicate) convert() (Node, error) {
	field := strings.ToLower(p.Field)
	if p.In != nil {
		m := &Membership{Field: field, Negated: p.In.Not}
		for _, v := range p.In.Values {
			i, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "%v: bad integer %q", p.Pos, v)
			}
			m.Values = append(m.Values, i)
		}
		return m, nil
	}

	oper, err := op.Parse(p.Cmp.Op)
	if err != nil {
		return nil, errors.Wrapf(err, "%v", p.Pos)
	}
	lit, err := p.Cmp.Value.literal()
	if err != nil {
		return nil, errors.Wrapf(err, "%v", p.Pos)
	}
	return &Comparison{Field: field, Op: oper, Value: lit}, nil
}

func (n *number) literal() (Literal, error) {
	if n.Float != nil {
		f, err := strconv.ParseFloat(*n.Float, 64)
		if err != nil {
			return Literal{}, errors.Wrapf(err, "bad number %q", *n.Float)
		}
		return Literal{Text: *n.Float, IsFloat: true, Float: f}, nil
	}
	i, err := strconv.ParseInt(*n.Int, 10, 64)
	if err != nil {
		return Literal{}, errors.Wrapf(err, "bad integer %q", *n.Int)
	}
	return Literal{Text: *n.Int, Int: i, Float: float64(i)}, nil
}
