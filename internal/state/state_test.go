package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gangz/jbse/internal/calc"
	"github.com/gangz/jbse/internal/classhierarchy"
	"github.com/gangz/jbse/internal/decision"
	"github.com/gangz/jbse/internal/mem"
	"github.com/gangz/jbse/internal/typ"
	"github.com/gangz/jbse/internal/value"
)

func testHierarchy() *classhierarchy.Hierarchy {
	h := classhierarchy.New()
	h.Add(&classhierarchy.ClassFile{
		Name:        "demo/Main",
		AccessFlags: classhierarchy.AccPublic,
		Methods: []classhierarchy.Method{{
			Signature:   typ.NewSignature("demo/Main", "(I)I", "run"),
			AccessFlags: classhierarchy.AccPublic | classhierarchy.AccStatic,
			Code:        []byte{0x1a, 0xac}, // iload_0; ireturn
			MaxLocals:   1,
			Handlers: []classhierarchy.ExceptionHandler{
				{StartPC: 0, EndPC: 2, HandlerPC: 1, CatchType: "demo/Oops"},
			},
		}},
	})
	h.Add(&classhierarchy.ClassFile{
		Name:        "demo/Oops",
		AccessFlags: classhierarchy.AccPublic,
	})
	h.Add(&classhierarchy.ClassFile{
		Name:        "demo/WithInit",
		AccessFlags: classhierarchy.AccPublic,
		Fields: []classhierarchy.Field{
			{Signature: typ.NewSignature("demo/WithInit", "I", "f"), AccessFlags: classhierarchy.AccStatic},
		},
		Methods: []classhierarchy.Method{{
			Signature:   typ.NewSignature("demo/WithInit", "()V", "<clinit>"),
			AccessFlags: classhierarchy.AccStatic,
			Code:        []byte{0xb1}, // return
			MaxLocals:   0,
		}},
	})
	h.Add(&classhierarchy.ClassFile{
		Name:        "demo/Plain",
		AccessFlags: classhierarchy.AccPublic,
		Fields: []classhierarchy.Field{
			{Signature: typ.NewSignature("demo/Plain", "Z", "flag"), AccessFlags: classhierarchy.AccStatic},
		},
	})
	return h
}

func rootSig() typ.Signature { return typ.NewSignature("demo/Main", "(I)I", "run") }

func newTestState(t *testing.T) *State {
	t.Helper()
	s, err := New(calc.New(), testHierarchy(), rootSig())
	require.NoError(t, err)
	return s
}

func TestNewPopulatesSymbolicParameters(t *testing.T) {
	s := newTestState(t)
	f, err := s.CurrentFrame()
	require.NoError(t, err)
	p, ok := f.GetLocal(0)
	require.True(t, ok)
	term, isTerm := p.(*value.Term)
	require.True(t, isTerm)
	assert.Equal(t, typ.Int, term.Type())
	assert.Equal(t, "ROOT:0", term.Origin)
}

func TestCloneIndependence(t *testing.T) {
	s := newTestState(t)
	require.NoError(t, s.Push(s.Calculator().ValOf(typ.Int, int64(1))))
	_, _, err := s.CreateInstance("demo/Oops")
	require.NoError(t, err)

	clone := s.Clone()
	require.NoError(t, clone.Push(clone.Calculator().ValOf(typ.Int, int64(2))))
	require.NoError(t, clone.IncPC(1))
	clone.AddClause(&mem.ClauseAssumeClassInitialized{ClassName: "demo/Plain"})
	_, _, err = clone.CreateInstance("demo/Oops")
	require.NoError(t, err)

	// The parent observes none of it.
	f, _ := s.CurrentFrame()
	assert.Equal(t, 1, f.OperandCount())
	assert.Equal(t, 0, f.PC)
	assert.Equal(t, 0, s.PathCondition().Len())
	assert.Len(t, s.Heap().Positions(), 1)
	assert.Len(t, clone.Heap().Positions(), 2)
}

func TestIdentifierTracksDepth(t *testing.T) {
	s := newTestState(t)
	assert.Equal(t, "", s.Identifier())
	assert.Equal(t, 0, s.Depth())
	s.AppendBranch('L')
	s.AppendBranch('R')
	assert.Equal(t, "LR", s.Identifier())
	assert.Equal(t, 2, s.Depth())
	assert.Len(t, s.Identifier(), s.Depth())
}

func TestThrowCaughtByHandler(t *testing.T) {
	s := newTestState(t)
	require.NoError(t, s.Push(s.Calculator().ValOf(typ.Int, int64(9))))
	require.NoError(t, s.CreateThrowableAndThrowIt("demo/Oops"))

	assert.Equal(t, NotStuck, s.Stuck())
	f, _ := s.CurrentFrame()
	assert.Equal(t, 1, f.PC, "pc moved to the handler")
	assert.Equal(t, 1, f.OperandCount(), "operand stack cleared, throwable pushed")
	top, _ := f.Top()
	_, isRef := top.(*value.ReferenceConcrete)
	assert.True(t, isRef)
}

func TestThrowUncaughtEmptiesStack(t *testing.T) {
	s := newTestState(t)
	// java/lang/ArithmeticException matches no handler.
	require.NoError(t, s.CreateThrowableAndThrowIt(ArithmeticException))
	assert.Equal(t, StuckException, s.Stuck())
	require.NotNil(t, s.ExceptionReference())
	obj, ok := s.Heap().Get(s.ExceptionReference().HeapPos)
	require.True(t, ok)
	assert.Equal(t, ArithmeticException, obj.ClassName())
	assert.Equal(t, 0, s.Stack().Len(), "all frames unwound")
}

func TestStringLiteralInterning(t *testing.T) {
	s := newTestState(t)
	r1, err := s.ReferenceToStringLiteral("hello")
	require.NoError(t, err)
	r2, err := s.ReferenceToStringLiteral("hello")
	require.NoError(t, err)
	r3, err := s.ReferenceToStringLiteral("world")
	require.NoError(t, err)

	assert.Equal(t, r1.HeapPos, r2.HeapPos, "same literal interns to the same instance")
	assert.NotEqual(t, r1.HeapPos, r3.HeapPos)

	lit, ok := s.StringLiteralAt(r1.HeapPos)
	require.True(t, ok)
	assert.Equal(t, "hello", lit)
}

func TestEnsureKlassWithoutClinit(t *testing.T) {
	s := newTestState(t)
	dp := decision.NewAlwaysSat()
	mustExit, err := s.EnsureKlass("demo/Plain", dp)
	require.NoError(t, err)
	assert.False(t, mustExit, "no <clinit> to run")

	k, ok := s.GetKlass("demo/Plain")
	require.True(t, ok)
	assert.True(t, k.Initialized)
	v, ok := k.GetFieldValue(typ.NewSignature("demo/Plain", "Z", "flag"))
	require.True(t, ok)
	assert.Equal(t, false, v.(*value.Simplex).Bool(), "statics default-initialized")
	assert.Equal(t, 1, s.PathCondition().Len(), "initialization assumption recorded")
}

func TestEnsureKlassPushesClinitFrame(t *testing.T) {
	s := newTestState(t)
	dp := decision.NewAlwaysSat()
	before := s.Stack().Len()

	mustExit, err := s.EnsureKlass("demo/WithInit", dp)
	require.NoError(t, err)
	assert.True(t, mustExit)
	assert.Equal(t, before+1, s.Stack().Len())

	f, _ := s.CurrentFrame()
	assert.Equal(t, "<clinit>", f.Method.Name)
	assert.Equal(t, -1, f.ReturnPC, "re-execute the interrupted bytecode on return")

	// Second call: the Klass exists, no action.
	mustExit, err = s.EnsureKlass("demo/WithInit", dp)
	require.NoError(t, err)
	assert.False(t, mustExit)
	assert.Equal(t, before+1, s.Stack().Len())
}

func TestEnsureKlassHonorsPreInitializedAssumption(t *testing.T) {
	s := newTestState(t)
	dp := decision.NewAlwaysSat()
	// Pin demo/WithInit as pre-initialized on this path.
	require.NoError(t, dp.PushAssumption(&mem.ClauseAssumeClassInitialized{ClassName: "demo/WithInit"}))

	mustExit, err := s.EnsureKlass("demo/WithInit", dp)
	require.NoError(t, err)
	assert.False(t, mustExit, "pre-initialized class runs no <clinit>")
	k, ok := s.GetKlass("demo/WithInit")
	require.True(t, ok)
	assert.True(t, k.Initialized)
}

func TestDefaultValues(t *testing.T) {
	s := newTestState(t)
	assert.Equal(t, int64(0), s.DefaultValue(typ.Int).(*value.Simplex).Int64())
	assert.Equal(t, false, s.DefaultValue(typ.Boolean).(*value.Simplex).Bool())
	assert.Equal(t, float32(0), s.DefaultValue(typ.Float).(*value.Simplex).Float32())
	ref, isRef := s.DefaultValue(typ.Reference).(*value.ReferenceConcrete)
	require.True(t, isRef)
	assert.True(t, ref.IsNull)
}
