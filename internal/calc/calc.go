// Package calc implements the Calculator: the sole
// constructor of internal/value's primitive algebra. It validates
// JVM-style type promotion, evaluates eagerly with host arithmetic
// (internal/hostarith) when every operand is concrete, otherwise builds
// a symbolic node, and pipes every result through a internal/rewrite
// Chain before handing it back. Every builder validates first, builds
// second, and returns (node, error) — never a silent coercion.
package calc

import (
	"github.com/gangz/jbse/internal/hostarith"
	"github.com/gangz/jbse/internal/rewrite"
	"github.com/gangz/jbse/internal/typ"
	"github.com/gangz/jbse/internal/value"
)

// Calculator is the concrete value.Calculator every State shares
//. It owns the rewrite chain and the
// monotonic id counter fresh Terms draw from.
type Calculator struct {
	chain      *rewrite.Chain
	nextTermID int
}

// New builds a Calculator with the default rewrite chain.
func New() *Calculator {
	return &Calculator{chain: rewrite.DefaultChain()}
}

// NewWithChain builds a Calculator with a caller-supplied rewrite
// chain, e.g. for tests that want to observe unrewritten Expressions.
func NewWithChain(chain *rewrite.Chain) *Calculator {
	return &Calculator{chain: chain}
}

func (c *Calculator) rewrite(v value.Value) value.Primitive {
	return c.chain.Rewrite(v).(value.Primitive)
}

// NewTerm mints a fresh symbolic Term with a process-unique id.
func (c *Calculator) NewTerm(tag typ.Tag, origin string) *value.Term {
	c.nextTermID++
	return value.NewTerm(c, tag, c.nextTermID, origin)
}

// NewAny builds the wildcard primitive of the given type.
func (c *Calculator) NewAny(tag typ.Tag) *value.Any {
	return value.NewAny(c, tag)
}

// ValOf wraps a host literal as a Simplex of the given tag.
func (c *Calculator) ValOf(tag typ.Tag, payload any) *value.Simplex {
	return value.NewSimplex(c, tag, payload)
}

// NewFunctionApplication builds an uninterpreted function node over the
// given arguments; used when an operator's backend has no
// native interpretation (see internal/decision/z3dec) or for a
// user-registered function.
func (c *Calculator) NewFunctionApplication(tag typ.Tag, name string, args []value.Primitive) (*value.FunctionApplication, error) {
	for _, a := range args {
		if a == nil {
			return nil, &InvalidOperandError{Op: name, Why: "nil argument"}
		}
	}
	return value.NewFunctionApplication(c, tag, name, args), nil
}

func wrapToTag(tag typ.Tag, v int64) int64 {
	switch tag {
	case typ.Int:
		return hostarith.Wrap32(v)
	case typ.Boolean:
		if v != 0 {
			return 1
		}
		return 0
	default:
		return v
	}
}

func promoteArith(lt, rt typ.Tag) (typ.Tag, bool) {
	return typ.BinaryResult(lt, rt)
}

func promoteShift(lt, rt typ.Tag) (typ.Tag, bool) {
	l := typ.Widens(lt)
	if l != typ.Int && l != typ.Long {
		return 0, false
	}
	if typ.Widens(rt) != typ.Int {
		return 0, false
	}
	return l, true
}

func promoteComparison(lt, rt typ.Tag) (typ.Tag, bool) {
	if lt == typ.Boolean && rt == typ.Boolean {
		return typ.Boolean, true
	}
	if _, ok := typ.BinaryResult(lt, rt); ok {
		return typ.Boolean, true
	}
	return 0, false
}

// promoteCmp validates operands for the three-way Cmp operator, which
// the hosted VM defines only for long/float/double (lcmp, fcmpl/g,
// dcmpl/g) — int pairs use the comparison operators directly, not Cmp.
func promoteCmp(lt, rt typ.Tag) (typ.Tag, bool) {
	common, ok := typ.BinaryResult(lt, rt)
	if !ok || common == typ.Int {
		return 0, false
	}
	return typ.Int, true
}

func (c *Calculator) binaryArith(op value.Operator, left, right value.Primitive) (value.Primitive, error) {
	if left == nil || right == nil {
		return nil, &InvalidOperandError{Op: op.String(), Why: "nil operand"}
	}
	resultTag, ok := promoteArith(left.Type(), right.Type())
	if !ok {
		return nil, &InvalidTypeError{Op: op.String(), Why: "operand types do not satisfy JVM binary promotion"}
	}
	if ls, lok := left.(*value.Simplex); lok {
		if rs, rok := right.(*value.Simplex); rok {
			res, err := evalIntegralOrFloat(op, resultTag, ls, rs)
			if err != nil {
				return nil, err
			}
			return res, nil
		}
	}
	expr := value.NewExpression(c, resultTag, false, op, left, right)
	return c.rewrite(expr), nil
}

func evalIntegralOrFloat(op value.Operator, resultTag typ.Tag, l, r *value.Simplex) (value.Primitive, error) {
	switch resultTag {
	case typ.Float:
		v, err := evalFloat32(op, l.Float32(), r.Float32())
		if err != nil {
			return nil, err
		}
		return value.NewSimplex(l.Calc(), typ.Float, v), nil
	case typ.Double:
		v, err := evalFloat64(op, l.Float64(), r.Float64())
		if err != nil {
			return nil, err
		}
		return value.NewSimplex(l.Calc(), typ.Double, v), nil
	default:
		v, err := evalIntegral(op, resultTag, l.Int64(), r.Int64())
		if err != nil {
			return nil, err
		}
		return value.NewSimplex(l.Calc(), resultTag, v), nil
	}
}

func evalIntegral(op value.Operator, resultTag typ.Tag, a, b int64) (int64, error) {
	switch op {
	case value.Add:
		return wrapToTag(resultTag, hostarith.Add(a, b)), nil
	case value.Sub:
		return wrapToTag(resultTag, hostarith.Sub(a, b)), nil
	case value.Mul:
		return wrapToTag(resultTag, hostarith.Mul(a, b)), nil
	case value.Div:
		v, err := hostarith.IntDiv(a, b)
		if err != nil {
			return 0, &ArithmeticError{Op: op.String(), Cause: err}
		}
		return wrapToTag(resultTag, v), nil
	case value.Rem:
		v, err := hostarith.IntRem(a, b)
		if err != nil {
			return 0, &ArithmeticError{Op: op.String(), Cause: err}
		}
		return wrapToTag(resultTag, v), nil
	case value.And:
		return wrapToTag(resultTag, hostarith.And(a, b)), nil
	case value.Or:
		return wrapToTag(resultTag, hostarith.Or(a, b)), nil
	case value.Xor:
		return wrapToTag(resultTag, hostarith.Xor(a, b)), nil
	default:
		return 0, &InvalidOperatorError{Op: op.String(), Why: "not an integral binary operator"}
	}
}

func evalFloat32(op value.Operator, a, b float32) (float32, error) {
	switch op {
	case value.Add:
		return hostarith.Add(a, b), nil
	case value.Sub:
		return hostarith.Sub(a, b), nil
	case value.Mul:
		return hostarith.Mul(a, b), nil
	case value.Div:
		return hostarith.FloatDiv(a, b), nil
	case value.Rem:
		return hostarith.FloatRem32(a, b), nil
	default:
		return 0, &InvalidOperatorError{Op: op.String(), Why: "not a floating binary operator"}
	}
}

func evalFloat64(op value.Operator, a, b float64) (float64, error) {
	switch op {
	case value.Add:
		return hostarith.Add(a, b), nil
	case value.Sub:
		return hostarith.Sub(a, b), nil
	case value.Mul:
		return hostarith.Mul(a, b), nil
	case value.Div:
		return hostarith.FloatDiv(a, b), nil
	case value.Rem:
		return hostarith.FloatRem64(a, b), nil
	default:
		return 0, &InvalidOperatorError{Op: op.String(), Why: "not a floating binary operator"}
	}
}

func (c *Calculator) Add(left, right value.Primitive) (value.Primitive, error) { return c.binaryArith(value.Add, left, right) }
func (c *Calculator) Sub(left, right value.Primitive) (value.Primitive, error) { return c.binaryArith(value.Sub, left, right) }
func (c *Calculator) Mul(left, right value.Primitive) (value.Primitive, error) { return c.binaryArith(value.Mul, left, right) }
func (c *Calculator) Div(left, right value.Primitive) (value.Primitive, error) { return c.binaryArith(value.Div, left, right) }
func (c *Calculator) Rem(left, right value.Primitive) (value.Primitive, error) { return c.binaryArith(value.Rem, left, right) }
func (c *Calculator) And(left, right value.Primitive) (value.Primitive, error) { return c.binaryArith(value.And, left, right) }
func (c *Calculator) Or(left, right value.Primitive) (value.Primitive, error)  { return c.binaryArith(value.Or, left, right) }
func (c *Calculator) Xor(left, right value.Primitive) (value.Primitive, error) { return c.binaryArith(value.Xor, left, right) }

func (c *Calculator) shift(op value.Operator, left, right value.Primitive) (value.Primitive, error) {
	if left == nil || right == nil {
		return nil, &InvalidOperandError{Op: op.String(), Why: "nil operand"}
	}
	resultTag, ok := promoteShift(left.Type(), right.Type())
	if !ok {
		return nil, &InvalidTypeError{Op: op.String(), Why: "left operand must be int/long, distance must be int"}
	}
	if ls, lok := left.(*value.Simplex); lok {
		if rs, rok := right.(*value.Simplex); rok {
			width := 64
			if resultTag == typ.Int {
				width = 32
			}
			// An int shift uses only the low five bits of its distance.
			dist := rs.Int64()
			if width == 32 {
				dist &= 31
			}
			var res int64
			switch op {
			case value.Shl:
				res = hostarith.Shl(ls.Int64(), dist)
			case value.Shr:
				res = hostarith.Shr(ls.Int64(), dist)
			case value.Ushr:
				res = hostarith.Ushr(ls.Int64(), rs.Int64(), width)
			}
			return value.NewSimplex(c, resultTag, wrapToTag(resultTag, res)), nil
		}
	}
	expr := value.NewExpression(c, resultTag, false, op, left, right)
	return c.rewrite(expr), nil
}

func (c *Calculator) Shl(left, right value.Primitive) (value.Primitive, error)  { return c.shift(value.Shl, left, right) }
func (c *Calculator) Shr(left, right value.Primitive) (value.Primitive, error)  { return c.shift(value.Shr, left, right) }
func (c *Calculator) Ushr(left, right value.Primitive) (value.Primitive, error) { return c.shift(value.Ushr, left, right) }

func (c *Calculator) Cmp(left, right value.Primitive) (value.Primitive, error) {
	if left == nil || right == nil {
		return nil, &InvalidOperandError{Op: "cmp", Why: "nil operand"}
	}
	if _, ok := promoteCmp(left.Type(), right.Type()); !ok {
		return nil, &InvalidTypeError{Op: "cmp", Why: "cmp requires matching long/float/double operands"}
	}
	if ls, lok := left.(*value.Simplex); lok {
		if rs, rok := right.(*value.Simplex); rok {
			return value.NewSimplex(c, typ.Int, cmpSimplex(ls, rs)), nil
		}
	}
	expr := value.NewExpression(c, typ.Int, false, value.Cmp, left, right)
	return c.rewrite(expr), nil
}

func cmpSimplex(l, r *value.Simplex) int64 {
	switch l.Type() {
	case typ.Float:
		return hostarith.CmpFloat(l.Float32(), r.Float32(), true)
	case typ.Double:
		return hostarith.CmpFloat(l.Float64(), r.Float64(), true)
	default:
		return hostarith.Cmp(l.Int64(), r.Int64())
	}
}

func (c *Calculator) Neg(v value.Primitive) (value.Primitive, error) {
	if v == nil {
		return nil, &InvalidOperandError{Op: "neg", Why: "nil operand"}
	}
	resultTag := typ.Widens(v.Type())
	if !resultTag.IsIntegral() && !resultTag.IsFloatingPoint() {
		return nil, &InvalidTypeError{Op: "neg", Why: "operand must be a numeric type"}
	}
	if s, ok := v.(*value.Simplex); ok {
		switch resultTag {
		case typ.Float:
			return value.NewSimplex(c, typ.Float, hostarith.Neg(s.Float32())), nil
		case typ.Double:
			return value.NewSimplex(c, typ.Double, hostarith.Neg(s.Float64())), nil
		default:
			return value.NewSimplex(c, resultTag, wrapToTag(resultTag, hostarith.Neg(s.Int64()))), nil
		}
	}
	expr := value.NewExpression(c, resultTag, true, value.Neg, v, nil)
	return c.rewrite(expr), nil
}

func (c *Calculator) Compare(op value.Operator, left, right value.Primitive) (value.Primitive, error) {
	if !op.IsComparison() {
		return nil, &InvalidOperatorError{Op: op.String(), Why: "Compare requires a comparison operator"}
	}
	if left == nil || right == nil {
		return nil, &InvalidOperandError{Op: op.String(), Why: "nil operand"}
	}
	if _, ok := promoteComparison(left.Type(), right.Type()); !ok {
		return nil, &InvalidTypeError{Op: op.String(), Why: "operand types do not satisfy JVM binary promotion"}
	}
	if ls, lok := left.(*value.Simplex); lok {
		if rs, rok := right.(*value.Simplex); rok {
			return value.NewSimplex(c, typ.Boolean, evalComparison(op, ls, rs)), nil
		}
	}
	expr := value.NewExpression(c, typ.Boolean, false, op, left, right)
	return c.rewrite(expr), nil
}

func evalComparison(op value.Operator, l, r *value.Simplex) bool {
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
	switch op {
	case value.Eq:
		return cmp == 0
	case value.Ne:
		return cmp != 0
	case value.Lt:
		return cmp < 0
	case value.Le:
		return cmp <= 0
	case value.Gt:
		return cmp > 0
	default: // value.Ge
		return cmp >= 0
	}
}

func (c *Calculator) boolBinary(op value.Operator, left, right value.Primitive) (value.Primitive, error) {
	if left == nil || right == nil {
		return nil, &InvalidOperandError{Op: op.String(), Why: "nil operand"}
	}
	if left.Type() != typ.Boolean || right.Type() != typ.Boolean {
		return nil, &InvalidTypeError{Op: op.String(), Why: "both operands must be boolean"}
	}
	if ls, lok := left.(*value.Simplex); lok {
		if rs, rok := right.(*value.Simplex); rok {
			var res bool
			if op == value.BoolAnd {
				res = ls.Bool() && rs.Bool()
			} else {
				res = ls.Bool() || rs.Bool()
			}
			return value.NewSimplex(c, typ.Boolean, res), nil
		}
	}
	expr := value.NewExpression(c, typ.Boolean, false, op, left, right)
	return c.rewrite(expr), nil
}

func (c *Calculator) BoolAnd(left, right value.Primitive) (value.Primitive, error) { return c.boolBinary(value.BoolAnd, left, right) }
func (c *Calculator) BoolOr(left, right value.Primitive) (value.Primitive, error)  { return c.boolBinary(value.BoolOr, left, right) }

func (c *Calculator) BoolNot(v value.Primitive) (value.Primitive, error) {
	if v == nil {
		return nil, &InvalidOperandError{Op: "!", Why: "nil operand"}
	}
	if v.Type() != typ.Boolean {
		return nil, &InvalidTypeError{Op: "!", Why: "operand must be boolean"}
	}
	if s, ok := v.(*value.Simplex); ok {
		return value.NewSimplex(c, typ.Boolean, !s.Bool()), nil
	}
	expr := value.NewExpression(c, typ.Boolean, true, value.BoolNot, v, nil)
	return c.rewrite(expr), nil
}

// Widen converts v to dst without loss (e.g. int -> long, float ->
// double); a same-type widening would be a redundant no-op node, so
// that case returns v unchanged.
func (c *Calculator) Widen(dst typ.Tag, v value.Primitive) (value.Primitive, error) {
	if v == nil {
		return nil, &InvalidOperandError{Op: "widen", Why: "nil operand"}
	}
	if v.Type() == dst {
		return v, nil
	}
	if !widens(v.Type(), dst) {
		return nil, &InvalidTypeError{Op: "widen", Why: "no widening conversion from " + v.Type().String() + " to " + dst.String()}
	}
	if s, ok := v.(*value.Simplex); ok {
		return value.NewSimplex(c, dst, widenSimplex(dst, s)), nil
	}
	conv := value.NewWideningConversion(c, dst, v)
	return c.rewrite(conv), nil
}

// Narrow converts v to dst, potentially lossy (e.g. int -> byte
// truncates, double -> int truncates toward zero).
func (c *Calculator) Narrow(dst typ.Tag, v value.Primitive) (value.Primitive, error) {
	if v == nil {
		return nil, &InvalidOperandError{Op: "narrow", Why: "nil operand"}
	}
	if v.Type() == dst {
		return v, nil
	}
	if s, ok := v.(*value.Simplex); ok {
		narrowed, err := narrowSimplex(dst, s)
		if err != nil {
			return nil, err
		}
		return value.NewSimplex(c, dst, narrowed), nil
	}
	conv := value.NewNarrowingConversion(c, dst, v)
	return c.rewrite(conv), nil
}

func widens(from, to typ.Tag) bool {
	switch from {
	case typ.Byte:
		return to == typ.Short || to == typ.Int || to == typ.Long || to == typ.Float || to == typ.Double
	case typ.Short, typ.Char:
		return to == typ.Int || to == typ.Long || to == typ.Float || to == typ.Double
	case typ.Int:
		return to == typ.Long || to == typ.Float || to == typ.Double
	case typ.Long:
		return to == typ.Float || to == typ.Double
	case typ.Float:
		return to == typ.Double
	default:
		return false
	}
}

func widenSimplex(dst typ.Tag, s *value.Simplex) any {
	switch dst {
	case typ.Float:
		if s.Type().IsFloatingPoint() {
			return float32(s.Float64())
		}
		return float32(s.Int64())
	case typ.Double:
		if s.Type() == typ.Float {
			return float64(s.Float32())
		}
		if s.Type() == typ.Double {
			return s.Float64()
		}
		return float64(s.Int64())
	default:
		return s.Int64()
	}
}

func narrowSimplex(dst typ.Tag, s *value.Simplex) (any, error) {
	switch s.Type() {
	case typ.Float:
		f := s.Float32()
		return narrowFloat(dst, float64(f))
	case typ.Double:
		return narrowFloat(dst, s.Float64())
	default:
		v, err := narrowInt(dst, s.Int64())
		return v, err
	}
}

func narrowInt(dst typ.Tag, v int64) (int64, error) {
	switch dst {
	case typ.Byte:
		return int64(int8(v)), nil
	case typ.Short:
		return int64(int16(v)), nil
	case typ.Char:
		return int64(uint16(v)), nil
	case typ.Int:
		return hostarith.Wrap32(v), nil
	case typ.Long:
		return v, nil
	default:
		return 0, &InvalidTypeError{Op: "narrow", Why: "no narrowing conversion to " + dst.String()}
	}
}

func narrowFloat(dst typ.Tag, v float64) (any, error) {
	switch dst {
	case typ.Int:
		return hostarith.Wrap32(int64(v)), nil
	case typ.Long:
		return int64(v), nil
	default:
		return 0, &InvalidTypeError{Op: "narrow", Why: "no narrowing conversion to " + dst.String()}
	}
}
