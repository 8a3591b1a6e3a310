package rewrite

import "github.com/gangz/jbse/internal/value"

// InverseCancellation applies neg(neg(x)) = x and not(not(x)) = x
//, plus x - x = 0 and x ^ x = 0 for structurally equal
// operands.
type InverseCancellation struct {
	Base
}

func (ic *InverseCancellation) VisitExpression(e *value.Expression) any {
	if e.Unary {
		if inner, ok := e.Left.(*value.Expression); ok && inner.Unary && inner.Operator == e.Operator {
			switch e.Operator {
			case value.Neg, value.BoolNot:
				ic.setResult(inner.Left)
				return nil
			}
		}
		ic.setResult(e)
		return nil
	}

	if value.Equal(e.Left, e.Right) {
		switch e.Operator {
		case value.Sub, value.Xor:
			ic.setResult(value.NewSimplex(e.Calc(), e.Type(), int64(0)))
			return nil
		case value.Eq, value.Le, value.Ge:
			ic.setResult(value.NewSimplex(e.Calc(), e.Type(), true))
			return nil
		case value.Ne, value.Lt, value.Gt:
			ic.setResult(value.NewSimplex(e.Calc(), e.Type(), false))
			return nil
		}
	}

	ic.setResult(e)
	return nil
}
