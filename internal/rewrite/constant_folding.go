package rewrite

import (
	"github.com/gangz/jbse/internal/hostarith"
	"github.com/gangz/jbse/internal/typ"
	"github.com/gangz/jbse/internal/value"
)

// ConstantFolding evaluates an Expression eagerly when every operand is
// already a Simplex, using host arithmetic. A
// division/remainder by a Simplex zero is left unfolded — the calculator
// layer, not the rewriter, is responsible for raising the modeled
// ArithmeticException, so folding a would-be division by zero here
// would bury that error silently.
type ConstantFolding struct {
	Base
}

func (c *ConstantFolding) VisitExpression(e *value.Expression) any {
	if e.Unary {
		c.foldUnary(e)
		return nil
	}
	c.foldBinary(e)
	return nil
}

func (c *ConstantFolding) foldUnary(e *value.Expression) {
	left, ok := e.Left.(*value.Simplex)
	if !ok {
		c.setResult(e)
		return
	}
	switch e.Operator {
	case value.Neg:
		c.setResult(foldNeg(left))
	case value.BoolNot:
		c.setResult(value.NewSimplex(left.Calc(), typ.Boolean, !left.Bool()))
	default:
		c.setResult(e)
	}
}

func foldNeg(s *value.Simplex) *value.Simplex {
	switch s.Type() {
	case typ.Float:
		return value.NewSimplex(s.Calc(), typ.Float, hostarith.Neg(s.Float32()))
	case typ.Double:
		return value.NewSimplex(s.Calc(), typ.Double, hostarith.Neg(s.Float64()))
	default:
		res := hostarith.Neg(s.Int64())
		if s.Type() == typ.Int {
			res = hostarith.Wrap32(res)
		}
		return value.NewSimplex(s.Calc(), s.Type(), res)
	}
}

func (c *ConstantFolding) foldBinary(e *value.Expression) {
	left, lok := e.Left.(*value.Simplex)
	right, rok := e.Right.(*value.Simplex)
	if !lok || !rok {
		c.setResult(e)
		return
	}

	if e.Operator.IsComparison() {
		c.setResult(foldComparison(e, left, right))
		return
	}

	switch left.Type() {
	case typ.Float:
		c.setResult(foldFloat32(e, left, right))
	case typ.Double:
		c.setResult(foldFloat64(e, left, right))
	default:
		c.setResult(foldIntegral(e, left, right))
	}
}

func foldIntegral(e *value.Expression, l, r *value.Simplex) value.Value {
	a, b := l.Int64(), r.Int64()
	if e.Type() == typ.Int && (e.Operator == value.Shl || e.Operator == value.Shr) {
		// An int shift uses only the low five bits of its distance.
		b &= 31
	}
	var res int64
	switch e.Operator {
	case value.Add:
		res = hostarith.Add(a, b)
	case value.Sub:
		res = hostarith.Sub(a, b)
	case value.Mul:
		res = hostarith.Mul(a, b)
	case value.Div:
		v, err := hostarith.IntDiv(a, b)
		if err != nil {
			return e
		}
		res = v
	case value.Rem:
		v, err := hostarith.IntRem(a, b)
		if err != nil {
			return e
		}
		res = v
	case value.And:
		res = hostarith.And(a, b)
	case value.Or:
		res = hostarith.Or(a, b)
	case value.Xor:
		res = hostarith.Xor(a, b)
	case value.Shl:
		res = hostarith.Shl(a, b)
	case value.Shr:
		res = hostarith.Shr(a, b)
	case value.Ushr:
		width := 64
		if e.Type() == typ.Int {
			width = 32
		}
		res = hostarith.Ushr(a, b, width)
	default:
		return e
	}
	if e.Type() == typ.Int {
		res = hostarith.Wrap32(res)
	}
	return value.NewSimplex(l.Calc(), e.Type(), res)
}

func foldFloat32(e *value.Expression, l, r *value.Simplex) value.Value {
	a, b := l.Float32(), r.Float32()
	var res float32
	switch e.Operator {
	case value.Add:
		res = hostarith.Add(a, b)
	case value.Sub:
		res = hostarith.Sub(a, b)
	case value.Mul:
		res = hostarith.Mul(a, b)
	case value.Div:
		res = hostarith.FloatDiv(a, b)
	case value.Rem:
		res = hostarith.FloatRem32(a, b)
	default:
		return e
	}
	return value.NewSimplex(l.Calc(), typ.Float, res)
}

func foldFloat64(e *value.Expression, l, r *value.Simplex) value.Value {
	a, b := l.Float64(), r.Float64()
	var res float64
	switch e.Operator {
	case value.Add:
		res = hostarith.Add(a, b)
	case value.Sub:
		res = hostarith.Sub(a, b)
	case value.Mul:
		res = hostarith.Mul(a, b)
	case value.Div:
		res = hostarith.FloatDiv(a, b)
	case value.Rem:
		res = hostarith.FloatRem64(a, b)
	default:
		return e
	}
	return value.NewSimplex(l.Calc(), typ.Double, res)
}

func foldComparison(e *value.Expression, l, r *value.Simplex) value.Value {
	var cmp int64
	switch l.Type() {
	case typ.Float:
		cmp = hostarith.Cmp(l.Float32(), r.Float32())
	case typ.Double:
		cmp = hostarith.Cmp(l.Float64(), r.Float64())
	case typ.Boolean:
		lb, rb := int64(0), int64(0)
		if l.Bool() {
			lb = 1
		}
		if r.Bool() {
			rb = 1
		}
		cmp = hostarith.Cmp(lb, rb)
	default:
		cmp = hostarith.Cmp(l.Int64(), r.Int64())
	}

	var result bool
	switch e.Operator {
	case value.Eq:
		result = cmp == 0
	case value.Ne:
		result = cmp != 0
	case value.Lt:
		result = cmp < 0
	case value.Le:
		result = cmp <= 0
	case value.Gt:
		result = cmp > 0
	case value.Ge:
		result = cmp >= 0
	default:
		return e
	}
	return value.NewSimplex(l.Calc(), typ.Boolean, result)
}
