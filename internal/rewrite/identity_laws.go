package rewrite

import (
	"github.com/gangz/jbse/internal/typ"
	"github.com/gangz/jbse/internal/value"
)

// IdentityLaws applies the algebraic identities:
// x+0=x, x*1=x, x&0=0, x|0=x, x-0=x, 0*x=0, x/1=x. Only applies when
// exactly one side is a constant (both-constant Expressions are already
// folded away by ConstantFolding earlier in the chain).
type IdentityLaws struct {
	Base
}

func (id *IdentityLaws) VisitExpression(e *value.Expression) any {
	if e.Unary {
		id.setResult(e)
		return nil
	}

	leftConst, leftIsConst := asIntegralConst(e.Left)
	rightConst, rightIsConst := asIntegralConst(e.Right)

	switch e.Operator {
	case value.Add:
		if rightIsConst && rightConst == 0 {
			id.setResult(e.Left)
			return nil
		}
		if leftIsConst && leftConst == 0 {
			id.setResult(e.Right)
			return nil
		}
	case value.Sub:
		if rightIsConst && rightConst == 0 {
			id.setResult(e.Left)
			return nil
		}
	case value.Mul:
		if rightIsConst && rightConst == 1 {
			id.setResult(e.Left)
			return nil
		}
		if leftIsConst && leftConst == 1 {
			id.setResult(e.Right)
			return nil
		}
		if (rightIsConst && rightConst == 0) || (leftIsConst && leftConst == 0) {
			id.setResult(value.NewSimplex(e.Calc(), e.Type(), int64(0)))
			return nil
		}
	case value.Div:
		if rightIsConst && rightConst == 1 {
			id.setResult(e.Left)
			return nil
		}
	case value.And:
		if (rightIsConst && rightConst == 0) || (leftIsConst && leftConst == 0) {
			id.setResult(value.NewSimplex(e.Calc(), e.Type(), int64(0)))
			return nil
		}
	case value.Or:
		if rightIsConst && rightConst == 0 {
			id.setResult(e.Left)
			return nil
		}
		if leftIsConst && leftConst == 0 {
			id.setResult(e.Right)
			return nil
		}
	case value.Xor:
		if rightIsConst && rightConst == 0 {
			id.setResult(e.Left)
			return nil
		}
	case value.Shl, value.Shr, value.Ushr:
		if rightIsConst && rightConst == 0 {
			id.setResult(e.Left)
			return nil
		}
	case value.BoolAnd:
		if c, ok := asBoolConst(e.Left); ok {
			if !c {
				id.setResult(value.NewSimplex(e.Calc(), typ.Boolean, false))
				return nil
			}
			id.setResult(e.Right)
			return nil
		}
		if c, ok := asBoolConst(e.Right); ok {
			if !c {
				id.setResult(value.NewSimplex(e.Calc(), typ.Boolean, false))
				return nil
			}
			id.setResult(e.Left)
			return nil
		}
	case value.BoolOr:
		if c, ok := asBoolConst(e.Left); ok {
			if c {
				id.setResult(value.NewSimplex(e.Calc(), typ.Boolean, true))
				return nil
			}
			id.setResult(e.Right)
			return nil
		}
		if c, ok := asBoolConst(e.Right); ok {
			if c {
				id.setResult(value.NewSimplex(e.Calc(), typ.Boolean, true))
				return nil
			}
			id.setResult(e.Left)
			return nil
		}
	}

	id.setResult(e)
	return nil
}

func asIntegralConst(v value.Primitive) (int64, bool) {
	s, ok := v.(*value.Simplex)
	if !ok || !s.Type().IsIntegral() || s.Type() == typ.Boolean {
		return 0, false
	}
	return s.Int64(), true
}

func asBoolConst(v value.Primitive) (bool, bool) {
	s, ok := v.(*value.Simplex)
	if !ok || s.Type() != typ.Boolean {
		return false, false
	}
	return s.Bool(), true
}
