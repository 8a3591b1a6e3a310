package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gangz/jbse/internal/typ"
	"github.com/gangz/jbse/internal/value"
)

// The tests build raw nodes directly (the package under test sits below
// the Calculator, whose builders are the normal entry point).

func intConst(v int64) *value.Simplex { return value.NewSimplex(nil, typ.Int, v) }

func intTerm(id int, origin string) *value.Term {
	return value.NewTerm(nil, typ.Int, id, origin)
}

func TestConstantFoldingBinary(t *testing.T) {
	e := value.NewExpression(nil, typ.Int, false, value.Mul, intConst(6), intConst(7))
	res := DefaultChain().Rewrite(e)
	s, ok := res.(*value.Simplex)
	require.True(t, ok)
	assert.Equal(t, int64(42), s.Int64())
}

func TestConstantFoldingLeavesDivisionByZero(t *testing.T) {
	e := value.NewExpression(nil, typ.Int, false, value.Div, intConst(1), intConst(0))
	res := DefaultChain().Rewrite(e)
	_, stillExpr := res.(*value.Expression)
	assert.True(t, stillExpr, "div by zero must not fold; the calculator surfaces it")
}

func TestIdentityLaws(t *testing.T) {
	x := intTerm(1, "x")
	cases := []struct {
		op    value.Operator
		left  value.Primitive
		right value.Primitive
		want  string
	}{
		{value.Add, x, intConst(0), "x"},
		{value.Add, intConst(0), x, "x"},
		{value.Mul, x, intConst(1), "x"},
		{value.Mul, x, intConst(0), "0"},
		{value.And, x, intConst(0), "0"},
		{value.Or, x, intConst(0), "x"},
		{value.Sub, x, intConst(0), "x"},
		{value.Shl, x, intConst(0), "x"},
	}
	for _, tc := range cases {
		e := value.NewExpression(nil, typ.Int, false, tc.op, tc.left, tc.right)
		res := DefaultChain().Rewrite(e)
		assert.Equal(t, tc.want, res.String(), "%s on %s/%s", tc.op, tc.left, tc.right)
	}
}

func TestInverseCancellation(t *testing.T) {
	x := intTerm(1, "x")
	negneg := value.NewExpression(nil, typ.Int, true, value.Neg,
		value.NewExpression(nil, typ.Int, true, value.Neg, x, nil), nil)
	res := DefaultChain().Rewrite(negneg)
	assert.True(t, value.Equal(x, res), "neg(neg(x)) = x")

	sub := value.NewExpression(nil, typ.Int, false, value.Sub, x, intTerm(1, "x"))
	res = DefaultChain().Rewrite(sub)
	s, ok := res.(*value.Simplex)
	require.True(t, ok)
	assert.Equal(t, int64(0), s.Int64(), "x - x = 0")
}

func TestBoolNotNotCancellation(t *testing.T) {
	b := value.NewTerm(nil, typ.Boolean, 1, "b")
	notnot := value.NewExpression(nil, typ.Boolean, true, value.BoolNot,
		value.NewExpression(nil, typ.Boolean, true, value.BoolNot, b, nil), nil)
	res := DefaultChain().Rewrite(notnot)
	assert.True(t, value.Equal(b, res))
}

func TestAssociativityCanonicalizesCommutedOperands(t *testing.T) {
	x := intTerm(1, "x")
	y := intTerm(2, "y")
	xy := DefaultChain().Rewrite(value.NewExpression(nil, typ.Int, false, value.Add, x, y))
	yx := DefaultChain().Rewrite(value.NewExpression(nil, typ.Int, false, value.Add, y, x))
	assert.True(t, value.Equal(xy, yx), "x+y and y+x must share one canonical form")
}

func TestComparisonNormalization(t *testing.T) {
	x := intTerm(1, "x")
	y := intTerm(2, "y")
	gt := DefaultChain().Rewrite(value.NewExpression(nil, typ.Boolean, false, value.Gt, x, y))
	lt := DefaultChain().Rewrite(value.NewExpression(nil, typ.Boolean, false, value.Lt, y, x))
	assert.True(t, value.Equal(gt, lt), "a > b and b < a must share one canonical form")
}

func TestRewriteIdempotence(t *testing.T) {
	chain := DefaultChain()
	x := intTerm(1, "x")
	inputs := []value.Value{
		value.NewExpression(nil, typ.Int, false, value.Add, x, intConst(0)),
		value.NewExpression(nil, typ.Int, false, value.Add, intConst(2), intConst(3)),
		value.NewExpression(nil, typ.Boolean, false, value.Gt, x, intConst(5)),
		value.NewExpression(nil, typ.Int, false, value.Add, intTerm(2, "y"), x),
		x,
	}
	for _, in := range inputs {
		once := chain.Rewrite(in)
		twice := chain.Rewrite(once)
		assert.True(t, value.Equal(once, twice), "rewrite(rewrite(%s)) != rewrite(%s)", in, in)
	}
}
