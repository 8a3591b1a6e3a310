package value

import (
	"fmt"

	"github.com/gangz/jbse/internal/typ"
)

// Expression is a primitive expression tree node. Unary is true iff
// Right is unused; an Expression is binary exactly when Unary is
// false, and the calculator and rewriters must preserve that.
type Expression struct {
	primitiveBase
	Unary    bool
	Operator Operator
	Left     Primitive
	Right    Primitive // nil when Unary
}

// NewExpression builds a raw (unrewritten) Expression node. Callers
// outside internal/calc should not call this directly — Calculator's
// builders are the sole constructors of primitive Values.
func NewExpression(calc Calculator, tag typ.Tag, unary bool, op Operator, left, right Primitive) *Expression {
	return &Expression{
		primitiveBase: primitiveBase{tag: tag, calc: calc},
		Unary:         unary,
		Operator:      op,
		Left:          left,
		Right:         right,
	}
}

func (e *Expression) IsSymbolic() bool { return true }

func (e *Expression) String() string {
	if e.Unary {
		return fmt.Sprintf("%s(%s)", e.Operator, e.Left)
	}
	return fmt.Sprintf("(%s %s %s)", e.Left, e.Operator, e.Right)
}

func (e *Expression) Accept(v Visitor) any { return v.VisitExpression(e) }
