package calc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gangz/jbse/internal/typ"
	"github.com/gangz/jbse/internal/value"
)

func TestEagerEvaluationInt(t *testing.T) {
	c := New()
	res, err := c.Add(c.ValOf(typ.Int, int64(2)), c.ValOf(typ.Int, int64(3)))
	require.NoError(t, err)
	s, ok := res.(*value.Simplex)
	require.True(t, ok, "all-concrete operands must fold eagerly")
	assert.Equal(t, int64(5), s.Int64())
	assert.Equal(t, typ.Int, s.Type())
}

func TestIntOverflowWraps(t *testing.T) {
	c := New()
	res, err := c.Add(c.ValOf(typ.Int, int64(0x7fffffff)), c.ValOf(typ.Int, int64(1)))
	require.NoError(t, err)
	assert.Equal(t, int64(-0x80000000), res.(*value.Simplex).Int64())
}

func TestDivisionByZeroSurfaces(t *testing.T) {
	c := New()
	_, err := c.Div(c.ValOf(typ.Int, int64(4)), c.ValOf(typ.Int, int64(0)))
	require.Error(t, err)
	var arith *ArithmeticError
	assert.ErrorAs(t, err, &arith)

	_, err = c.Rem(c.ValOf(typ.Long, int64(4)), c.ValOf(typ.Long, int64(0)))
	assert.Error(t, err)
}

func TestPromotionRejectsMixedWidths(t *testing.T) {
	c := New()
	_, err := c.Add(c.ValOf(typ.Int, int64(1)), c.ValOf(typ.Long, int64(1)))
	require.Error(t, err)
	var wrongType *InvalidTypeError
	assert.ErrorAs(t, err, &wrongType)
}

func TestNilOperandRejected(t *testing.T) {
	c := New()
	_, err := c.Add(nil, c.ValOf(typ.Int, int64(1)))
	var invalid *InvalidOperandError
	assert.ErrorAs(t, err, &invalid)
}

func TestByteShortPromoteToInt(t *testing.T) {
	c := New()
	res, err := c.Add(c.ValOf(typ.Byte, int64(100)), c.ValOf(typ.Short, int64(200)))
	require.NoError(t, err)
	assert.Equal(t, typ.Int, res.Type())
	assert.Equal(t, int64(300), res.(*value.Simplex).Int64())
}

func TestSymbolicOperandBuildsExpression(t *testing.T) {
	c := New()
	x := c.NewTerm(typ.Int, "x")
	res, err := c.Add(x, c.ValOf(typ.Int, int64(1)))
	require.NoError(t, err)
	expr, ok := res.(*value.Expression)
	require.True(t, ok)
	assert.True(t, expr.IsSymbolic())
	assert.Equal(t, typ.Int, expr.Type())
}

func TestIdentityRewriteCollapsesAddZero(t *testing.T) {
	c := New()
	x := c.NewTerm(typ.Int, "x")
	res, err := c.Add(x, c.ValOf(typ.Int, int64(0)))
	require.NoError(t, err)
	assert.True(t, value.Equal(x, res), "x + 0 must rewrite to x")
}

func TestWidenNarrowRoundtrip(t *testing.T) {
	// widen(T, narrow(T, p)) = p for a lossless narrowing.
	c := New()
	p := c.ValOf(typ.Int, int64(42))
	narrowed, err := c.Narrow(typ.Byte, p)
	require.NoError(t, err)
	widened, err := c.Widen(typ.Int, narrowed)
	require.NoError(t, err)
	assert.True(t, value.Equal(p, widened))
}

func TestNarrowTruncates(t *testing.T) {
	c := New()
	narrowed, err := c.Narrow(typ.Byte, c.ValOf(typ.Int, int64(0x1ff)))
	require.NoError(t, err)
	assert.Equal(t, int64(-1), narrowed.(*value.Simplex).Int64())
}

func TestWidenSameTypeIsIdentity(t *testing.T) {
	c := New()
	x := c.NewTerm(typ.Int, "x")
	res, err := c.Widen(typ.Int, x)
	require.NoError(t, err)
	assert.True(t, value.Primitive(x) == res, "no redundant widening to the same type")
}

func TestShiftDistanceMustBeInt(t *testing.T) {
	c := New()
	_, err := c.Shl(c.ValOf(typ.Long, int64(1)), c.ValOf(typ.Long, int64(2)))
	assert.Error(t, err)

	res, err := c.Shl(c.ValOf(typ.Int, int64(1)), c.ValOf(typ.Int, int64(4)))
	require.NoError(t, err)
	assert.Equal(t, int64(16), res.(*value.Simplex).Int64())
}

func TestCmpRejectsIntPairs(t *testing.T) {
	c := New()
	_, err := c.Cmp(c.ValOf(typ.Int, int64(1)), c.ValOf(typ.Int, int64(2)))
	assert.Error(t, err, "cmp is defined only for long/float/double")

	res, err := c.Cmp(c.ValOf(typ.Long, int64(1)), c.ValOf(typ.Long, int64(2)))
	require.NoError(t, err)
	assert.Equal(t, int64(-1), res.(*value.Simplex).Int64())
}

func TestComparisonFoldsConcretely(t *testing.T) {
	c := New()
	res, err := c.Compare(value.Lt, c.ValOf(typ.Int, int64(1)), c.ValOf(typ.Int, int64(2)))
	require.NoError(t, err)
	assert.Equal(t, true, res.(*value.Simplex).Bool())
	assert.Equal(t, typ.Boolean, res.Type())
}

func TestBooleanOperators(t *testing.T) {
	c := New()
	tr := c.ValOf(typ.Boolean, true)
	fa := c.ValOf(typ.Boolean, false)

	res, err := c.BoolAnd(tr, fa)
	require.NoError(t, err)
	assert.False(t, res.(*value.Simplex).Bool())

	res, err = c.BoolNot(fa)
	require.NoError(t, err)
	assert.True(t, res.(*value.Simplex).Bool())

	_, err = c.BoolAnd(tr, c.ValOf(typ.Int, int64(1)))
	assert.Error(t, err)
}

func TestFloatDivisionByZeroIsInfinity(t *testing.T) {
	// IEEE-754: no error at the calculator for float division by zero.
	c := New()
	res, err := c.Div(c.ValOf(typ.Float, float32(1)), c.ValOf(typ.Float, float32(0)))
	require.NoError(t, err)
	assert.True(t, res.(*value.Simplex).Float32() > 1e30)
}
