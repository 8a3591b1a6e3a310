package rewrite

import "github.com/gangz/jbse/internal/value"

// ComparisonNormalization canonicalizes Gt/Ge into their Lt/Le mirror
// form with swapped operands, so
// "a > b" and "b < a" rewrite to the same Expression and value.Equal
// treats them as equal.
type ComparisonNormalization struct {
	Base
}

func (cn *ComparisonNormalization) VisitExpression(e *value.Expression) any {
	if e.Unary {
		cn.setResult(e)
		return nil
	}

	var mirror value.Operator
	switch e.Operator {
	case value.Gt:
		mirror = value.Lt
	case value.Ge:
		mirror = value.Le
	default:
		cn.setResult(e)
		return nil
	}

	cn.setResult(value.NewExpression(e.Calc(), e.Type(), false, mirror, e.Right, e.Left))
	return nil
}
