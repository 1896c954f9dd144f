// Package op provides the comparison and logical operators of filter
// expressions.
package op

import (
	"fmt"
	"math"
	"strings"
)

type Op string

// Operators
const (
	Eq    Op = "="      // Equal
	Ne    Op = "!="     // Not Equal
	Gt    Op = ">"      // Greater Than
	Gte   Op = ">="     // Greater Than or Equal
	Lt    Op = "<"      // Less Than
	Lte   Op = "<="     // Less Than or Equal
	And   Op = "and"    // Logical And
	Or    Op = "or"     // Logical Or
	In    Op = "in"     // Set membership
	NotIn Op = "not in" // Set exclusion
)

// Epsilon is the tolerance of floating point equality.
const Epsilon = 10e-6

// Parse maps operator text to an Op. Keywords are case insensitive.
func Parse(s string) (Op, error) {
	o := Op(strings.ToLower(strings.Join(strings.Fields(s), " ")))
	switch o {
	case Eq, Ne, Gt, Gte, Lt, Lte, And, Or, In, NotIn:
		return o, nil
	}
	return "", fmt.Errorf("unexpected operator %q", s)
}

// IsComparison is true for the operators taking a single literal.
func (o Op) IsComparison() bool {
	switch o {
	case Eq, Ne, Gt, Gte, Lt, Lte:
		return true
	}
	return false
}

func EvalInt(i1 int64, oper Op, i2 int64) (bool, error) {
	switch oper {
	case Eq:
		return i1 == i2, nil
	case Ne:
		return i1 != i2, nil
	case Gt:
		return i1 > i2, nil
	case Gte:
		return i1 >= i2, nil
	case Lt:
		return i1 < i2, nil
	case Lte:
		return i1 <= i2, nil
	}
	return false, fmt.Errorf("unexpected operator %v", oper)
}

// EvalFloat compares two floats. Equality is within Epsilon, everything else
// is exact.
func EvalFloat(f1 float64, oper Op, f2 float64) (bool, error) {
	switch oper {
	case Eq:
		return math.Abs(f1-f2) < Epsilon, nil
	case Ne:
		return f1 != f2, nil
	case Gt:
		return f1 > f2, nil
	case Gte:
		return f1 >= f2, nil
	case Lt:
		return f1 < f2, nil
	case Lte:
		return f1 <= f2, nil
	}
	return false, fmt.Errorf("unexpected operator %v", oper)
}
