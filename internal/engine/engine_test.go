package engine_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gangz/jbse/internal/calc"
	"github.com/gangz/jbse/internal/classhierarchy"
	"github.com/gangz/jbse/internal/decision"
	"github.com/gangz/jbse/internal/ectx"
	"github.com/gangz/jbse/internal/engine"
	"github.com/gangz/jbse/internal/lics"
	"github.com/gangz/jbse/internal/mem"
	"github.com/gangz/jbse/internal/state"
	"github.com/gangz/jbse/internal/typ"
	"github.com/gangz/jbse/internal/value"
)

type fixture struct {
	calc *calc.Calculator
	hier *classhierarchy.Hierarchy
	ctx  *ectx.Ctx
	eng  *engine.Engine
}

func newFixture(hier *classhierarchy.Hierarchy, rules *lics.RuleSet) *fixture {
	c := calc.New()
	ctx := ectx.New(c, hier, decision.NewAlwaysSat(), rules)
	return &fixture{
		calc: c,
		hier: hier,
		ctx:  ctx,
		eng:  engine.New(ctx, zerolog.Nop()),
	}
}

func (f *fixture) start(t *testing.T, root typ.Signature) *state.State {
	t.Helper()
	s, err := state.New(f.calc, f.hier, root)
	require.NoError(t, err)
	require.NoError(t, f.eng.SetCurrent(s))
	return s
}

// stepToStuck drives the current path to its leaf, requiring that no
// fork happens along the way.
func (f *fixture) stepToStuck(t *testing.T) *state.State {
	t.Helper()
	for i := 0; i < 100; i++ {
		cur := f.eng.Current()
		if cur.Stuck() != state.NotStuck {
			return cur
		}
		rest, _, err := f.eng.Step()
		require.NoError(t, err)
		require.Empty(t, rest, "unexpected fork")
	}
	t.Fatal("no leaf within 100 steps")
	return nil
}

func staticMethod(sig typ.Signature, code []byte, maxLocals int, handlers ...classhierarchy.ExceptionHandler) classhierarchy.Method {
	return classhierarchy.Method{
		Signature:   sig,
		AccessFlags: classhierarchy.AccPublic | classhierarchy.AccStatic,
		Code:        code,
		MaxLocals:   maxLocals,
		Handlers:    handlers,
	}
}

// A getstatic of a compile-time-constant int field runs no
// <clinit>; the operand stack top becomes Simplex(I, 42); pc advances
// by 3.
func TestGetstaticConstantCarveOut(t *testing.T) {
	sigC := typ.NewSignature("demo/K", "I", "C")
	main := typ.NewSignature("demo/K", "()I", "main")
	h := classhierarchy.New()
	h.Add(&classhierarchy.ClassFile{
		Name: "demo/K",
		Fields: []classhierarchy.Field{{
			Signature:        sigC,
			AccessFlags:      classhierarchy.AccPublic | classhierarchy.AccStatic | classhierarchy.AccFinal,
			HasConstantValue: true,
			ConstantValue:    int64(42),
		}},
		ConstantPool: []classhierarchy.ConstantPoolEntry{
			{},
			{Kind: classhierarchy.CPFieldRef, Sig: sigC},
		},
		Methods: []classhierarchy.Method{
			staticMethod(main, []byte{0xb2, 0x00, 0x01, 0xac}, 0), // getstatic #1; ireturn
			staticMethod(typ.NewSignature("demo/K", "()V", "<clinit>"), []byte{0xb1}, 0),
		},
	})

	f := newFixture(h, nil)
	s := f.start(t, main)

	rest, forked, err := f.eng.Step()
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.False(t, forked)

	top, err := s.Top()
	require.NoError(t, err)
	assert.Equal(t, int64(42), top.(*value.Simplex).Int64())
	assert.Equal(t, typ.Int, top.Type())

	frame, _ := s.CurrentFrame()
	assert.Equal(t, 3, frame.PC)

	_, hasKlass := s.GetKlass("demo/K")
	assert.False(t, hasKlass, "the carve-out must not force initialization")
	assert.Equal(t, 0, s.PathCondition().Len())
}

// A getstatic of a non-constant field from a state with no
// Klass pushes a <clinit> frame, leaves the getstatic pc alone, and on
// return re-executes the bytecode against the initialized value.
func TestGetstaticRunsClinit(t *testing.T) {
	sigF := typ.NewSignature("demo/K2", "I", "F")
	main := typ.NewSignature("demo/K2", "()I", "main")
	h := classhierarchy.New()
	h.Add(&classhierarchy.ClassFile{
		Name: "demo/K2",
		Fields: []classhierarchy.Field{{
			Signature:   sigF,
			AccessFlags: classhierarchy.AccPublic | classhierarchy.AccStatic,
		}},
		ConstantPool: []classhierarchy.ConstantPoolEntry{
			{},
			{Kind: classhierarchy.CPFieldRef, Sig: sigF},
		},
		Methods: []classhierarchy.Method{
			staticMethod(main, []byte{0xb2, 0x00, 0x01, 0xac}, 0), // getstatic #1; ireturn
			// bipush 7; putstatic #1; return
			staticMethod(typ.NewSignature("demo/K2", "()V", "<clinit>"), []byte{0x10, 0x07, 0xb3, 0x00, 0x01, 0xb1}, 0),
		},
	})

	f := newFixture(h, nil)
	s := f.start(t, main)

	_, _, err := f.eng.Step()
	require.NoError(t, err)
	assert.Equal(t, 2, s.Stack().Len(), "a <clinit> frame was pushed")
	rootFrame := s.Stack().Frames()[0]
	assert.Equal(t, 0, rootFrame.PC, "the getstatic pc did not advance")

	leaf := f.stepToStuck(t)
	assert.Equal(t, state.StuckReturn, leaf.Stuck())
	require.NotNil(t, leaf.ReturnValue())
	assert.Equal(t, int64(7), leaf.ReturnValue().(*value.Simplex).Int64())

	var sawNotInitialized bool
	for _, c := range leaf.PathCondition().Clauses() {
		if ni, ok := c.(*mem.ClauseAssumeClassNotInitialized); ok && ni.ClassName == "demo/K2" {
			sawNotInitialized = true
		}
	}
	assert.True(t, sawNotInitialized)
}

// Loading at a symbolic index from an array of symbolic
// length forks an in-bounds child (identifier L) and an out-of-bounds
// child (identifier R) with the modeled exception.
func TestSymbolicArrayIndexForks(t *testing.T) {
	get := typ.NewSignature("demo/A", "(I)I", "get")
	h := classhierarchy.New()
	h.Add(&classhierarchy.ClassFile{
		Name: "demo/A",
		Methods: []classhierarchy.Method{
			// aload_1; iload_0; iaload; ireturn
			staticMethod(get, []byte{0x2b, 0x1a, 0x2e, 0xac}, 2),
		},
	})

	f := newFixture(h, nil)
	s := f.start(t, get)

	length := f.calc.NewTerm(typ.Int, "len")
	_, aref := s.CreateArray(typ.Int, length)
	frame, _ := s.CurrentFrame()
	frame.SetLocal(1, aref)

	for i := 0; i < 2; i++ { // aload_1; iload_0
		_, _, err := f.eng.Step()
		require.NoError(t, err)
	}

	rest, forked, err := f.eng.Step() // iaload
	require.NoError(t, err)
	require.True(t, forked)
	require.Len(t, rest, 1)

	in := f.eng.Current()
	out := rest[0]

	assert.Equal(t, "L", in.Identifier())
	assert.Equal(t, 1, in.Depth())
	assert.Equal(t, 1, in.PathCondition().Len())
	top, err := in.Top()
	require.NoError(t, err)
	assert.True(t, top.IsSymbolic(), "an unwritten slot reads as a fresh symbolic value")

	assert.Equal(t, "R", out.Identifier())
	assert.Equal(t, state.StuckException, out.Stuck())
	obj, ok := out.Heap().Get(out.ExceptionReference().HeapPos)
	require.True(t, ok)
	assert.Equal(t, state.ArrayIndexOutOfBoundsException, obj.ClassName())
}

// A LICS rule pinning ROOT:0 non-null with demo/Node the
// only expansion candidate yields exactly one EXPANDS successor; the
// NULL alternative is pruned before the decision procedure runs.
func TestLicsPinnedExpansion(t *testing.T) {
	sigValue := typ.NewSignature("demo/Node", "I", "value")
	sigNext := typ.NewSignature("demo/Node", "Ldemo/Node;", "next")
	first := typ.NewSignature("demo/Node", "(Ldemo/Node;)I", "first")
	h := classhierarchy.New()
	h.Add(&classhierarchy.ClassFile{
		Name: "demo/Node",
		Fields: []classhierarchy.Field{
			{Signature: sigValue, AccessFlags: classhierarchy.AccPublic},
			{Signature: sigNext, AccessFlags: classhierarchy.AccPublic},
		},
		ConstantPool: []classhierarchy.ConstantPoolEntry{
			{},
			{Kind: classhierarchy.CPFieldRef, Sig: sigValue},
		},
		Methods: []classhierarchy.Method{
			// aload_0; getfield #1; ireturn
			staticMethod(first, []byte{0x2a, 0xb4, 0x00, 0x01, 0xac}, 1),
		},
	})

	rules := lics.NewRuleSet(lics.Rule{OriginPattern: "ROOT:0", Kind: lics.NeverNull})
	f := newFixture(h, rules)
	f.start(t, first)

	_, _, err := f.eng.Step() // aload_0
	require.NoError(t, err)

	rest, forked, err := f.eng.Step() // getfield resolves the reference
	require.NoError(t, err)
	require.True(t, forked)
	assert.Empty(t, rest, "exactly one successor: NULL pruned, nothing to alias")

	child := f.eng.Current()
	assert.Equal(t, "L", child.Identifier())
	require.Equal(t, 1, child.PathCondition().Len())
	exp, ok := child.PathCondition().Clauses()[0].(*mem.ClauseAssumeExpands)
	require.True(t, ok)
	assert.Equal(t, "demo/Node", exp.ClassName)

	leaf := f.drainPath(t)
	assert.Equal(t, state.StuckReturn, leaf.Stuck())
	ret, isTerm := leaf.ReturnValue().(*value.Term)
	require.True(t, isTerm, "the expanded instance's field is a fresh Term")
	assert.Equal(t, "ROOT:0.value", ret.Origin)
}

// The heap scope bounds the per-class population of each candidate
// state's own heap: two independent root states on one engine both get
// their expansion under heapScope=1, while a state whose heap already
// holds a demo/Node has EXPANDS pruned in favor of NULL and ALIASES.
func TestHeapScopeCountsCandidateStateHeap(t *testing.T) {
	sigValue := typ.NewSignature("demo/Node", "I", "value")
	sigNext := typ.NewSignature("demo/Node", "Ldemo/Node;", "next")
	first := typ.NewSignature("demo/Node", "(Ldemo/Node;)I", "first")
	h := classhierarchy.New()
	h.Add(&classhierarchy.ClassFile{
		Name: "demo/Node",
		Fields: []classhierarchy.Field{
			{Signature: sigValue, AccessFlags: classhierarchy.AccPublic},
			{Signature: sigNext, AccessFlags: classhierarchy.AccPublic},
		},
		ConstantPool: []classhierarchy.ConstantPoolEntry{
			{},
			{Kind: classhierarchy.CPFieldRef, Sig: sigValue},
		},
		Methods: []classhierarchy.Method{
			// aload_0; getfield #1; ireturn
			staticMethod(first, []byte{0x2a, 0xb4, 0x00, 0x01, 0xac}, 1),
		},
	})

	f := newFixture(h, nil)
	f.ctx.HeapScope = 1

	expandsOf := func(children []*state.State) int {
		n := 0
		for _, c := range children {
			for _, cl := range c.PathCondition().Clauses() {
				if _, ok := cl.(*mem.ClauseAssumeExpands); ok {
					n++
				}
			}
		}
		return n
	}

	resolveFork := func() []*state.State {
		_, _, err := f.eng.Step() // aload_0
		require.NoError(t, err)
		rest, forked, err := f.eng.Step() // getfield resolves the reference
		require.NoError(t, err)
		require.True(t, forked)
		return append([]*state.State{f.eng.Current()}, rest...)
	}

	// First root state, empty heap: NULL and EXPANDS.
	f.start(t, first)
	children := resolveFork()
	require.Len(t, children, 2)
	assert.Equal(t, 1, expandsOf(children), "an empty heap fits one expansion")

	// Second, independent root state on the same engine: the first
	// path's expansion must not have consumed this path's budget.
	f.start(t, first)
	children = resolveFork()
	require.Len(t, children, 2)
	assert.Equal(t, 1, expandsOf(children))

	// A state whose heap already holds a demo/Node: the post-state
	// heap would exceed the limit, so EXPANDS is pruned and the
	// existing object is offered as an alias instead.
	s := f.start(t, first)
	_, _, err := s.CreateInstance("demo/Node")
	require.NoError(t, err)
	children = resolveFork()
	require.Len(t, children, 2)
	assert.Equal(t, 0, expandsOf(children), "expansion would exceed the per-class limit")
	alias := children[1]
	_, isAlias := alias.PathCondition().Clauses()[0].(*mem.ClauseAssumeAliases)
	assert.True(t, isAlias)
}

// drainPath is stepToStuck without the no-fork requirement; forks keep
// following the first successor.
func (f *fixture) drainPath(t *testing.T) *state.State {
	t.Helper()
	for i := 0; i < 100; i++ {
		cur := f.eng.Current()
		if cur.Stuck() != state.NotStuck {
			return cur
		}
		_, _, err := f.eng.Step()
		require.NoError(t, err)
	}
	t.Fatal("no leaf within 100 steps")
	return nil
}

// An idiv with a concrete zero divisor does not fork; the
// state throws the modeled ArithmeticException from the faulting pc.
func TestDivByZeroThrows(t *testing.T) {
	main := typ.NewSignature("demo/D", "()I", "main")
	caught := typ.NewSignature("demo/D", "()I", "caught")
	h := classhierarchy.New()
	h.Add(&classhierarchy.ClassFile{
		Name: "demo/D",
		Methods: []classhierarchy.Method{
			// iconst_4; iconst_0; idiv; ireturn
			staticMethod(main, []byte{0x07, 0x03, 0x6c, 0xac}, 0),
			// Same body, with a handler at pc 4: iconst_1; ireturn.
			staticMethod(caught, []byte{0x07, 0x03, 0x6c, 0xac, 0x04, 0xac}, 0,
				classhierarchy.ExceptionHandler{StartPC: 0, EndPC: 4, HandlerPC: 4, CatchType: state.ArithmeticException}),
		},
	})
	h.Add(&classhierarchy.ClassFile{Name: state.ArithmeticException})

	f := newFixture(h, nil)
	f.start(t, main)
	leaf := f.stepToStuck(t)
	assert.Equal(t, state.StuckException, leaf.Stuck())
	obj, ok := leaf.Heap().Get(leaf.ExceptionReference().HeapPos)
	require.True(t, ok)
	assert.Equal(t, state.ArithmeticException, obj.ClassName())

	// The handler variant proves the throw walks from the faulting pc.
	f2 := newFixture(h, nil)
	f2.start(t, caught)
	leaf = f2.stepToStuck(t)
	assert.Equal(t, state.StuckReturn, leaf.Stuck())
	assert.Equal(t, int64(1), leaf.ReturnValue().(*value.Simplex).Int64())
}

// A wide prefix followed by iload consumes a 2-byte index and
// advances the pc by 4 in total; the wide flag is cleared.
func TestWideIload(t *testing.T) {
	main := typ.NewSignature("demo/W", "(I)I", "main")
	h := classhierarchy.New()
	h.Add(&classhierarchy.ClassFile{
		Name: "demo/W",
		Methods: []classhierarchy.Method{
			// wide; iload 0x0000; ireturn
			staticMethod(main, []byte{0xc4, 0x15, 0x00, 0x00, 0xac}, 1),
		},
	})

	f := newFixture(h, nil)
	s := f.start(t, main)

	_, _, err := f.eng.Step() // wide
	require.NoError(t, err)
	assert.True(t, s.Wide())
	frame, _ := s.CurrentFrame()
	assert.Equal(t, 1, frame.PC)

	_, _, err = f.eng.Step() // widened iload
	require.NoError(t, err)
	assert.False(t, s.Wide(), "wide is one-shot")
	assert.Equal(t, 4, frame.PC)

	top, err := s.Top()
	require.NoError(t, err)
	assert.True(t, top.IsSymbolic(), "slot 0 holds the symbolic parameter")
}

// A symbolic binary branch forks TAKEN (L) then NOT_TAKEN (R), with the
// condition and its negation as the disambiguating clauses.
func TestSymbolicBranchForks(t *testing.T) {
	main := typ.NewSignature("demo/B", "(I)I", "main")
	h := classhierarchy.New()
	h.Add(&classhierarchy.ClassFile{
		Name: "demo/B",
		Methods: []classhierarchy.Method{
			// iload_0; ifle +5 -> 6; iconst_1; ireturn; iconst_0; ireturn
			staticMethod(main, []byte{0x1a, 0x9e, 0x00, 0x05, 0x04, 0xac, 0x03, 0xac}, 1),
		},
	})

	f := newFixture(h, nil)
	f.start(t, main)

	_, _, err := f.eng.Step() // iload_0
	require.NoError(t, err)
	rest, forked, err := f.eng.Step() // ifle
	require.NoError(t, err)
	require.True(t, forked)
	require.Len(t, rest, 1)

	taken := f.eng.Current()
	assert.Equal(t, "L", taken.Identifier())
	tf, _ := taken.CurrentFrame()
	assert.Equal(t, 6, tf.PC, "taken child jumped to the branch target")

	notTaken := rest[0]
	assert.Equal(t, "R", notTaken.Identifier())
	nf, _ := notTaken.CurrentFrame()
	assert.Equal(t, 4, nf.PC, "not-taken child fell through")

	// Fork conservation: the two clauses are each other's negation.
	tc := taken.PathCondition().Clauses()[0].(*mem.ClauseAssume)
	nc := notTaken.PathCondition().Clauses()[0].(*mem.ClauseAssume)
	neg, err := f.calc.BoolNot(tc.Cond)
	require.NoError(t, err)
	assert.True(t, value.Equal(neg, nc.Cond))
}

// A concrete branch takes its edge in place, without forking.
func TestConcreteBranchDoesNotFork(t *testing.T) {
	main := typ.NewSignature("demo/C", "()I", "main")
	h := classhierarchy.New()
	h.Add(&classhierarchy.ClassFile{
		Name: "demo/C",
		Methods: []classhierarchy.Method{
			// iconst_5; ifle +5 -> 6; iconst_1; ireturn; iconst_0; ireturn
			staticMethod(main, []byte{0x08, 0x9e, 0x00, 0x05, 0x04, 0xac, 0x03, 0xac}, 0),
		},
	})

	f := newFixture(h, nil)
	f.start(t, main)
	leaf := f.stepToStuck(t)
	assert.Equal(t, state.StuckReturn, leaf.Stuck())
	assert.Equal(t, int64(1), leaf.ReturnValue().(*value.Simplex).Int64())
	assert.Equal(t, "", leaf.Identifier(), "no fork, no identifier letter")
}

// An unknown opcode marks the state stuck-unsupported instead of
// failing the engine.
func TestUnsupportedOpcode(t *testing.T) {
	main := typ.NewSignature("demo/U", "()V", "main")
	h := classhierarchy.New()
	h.Add(&classhierarchy.ClassFile{
		Name: "demo/U",
		Methods: []classhierarchy.Method{
			staticMethod(main, []byte{0xba}, 0), // invokedynamic, not modeled
		},
	})

	f := newFixture(h, nil)
	f.start(t, main)
	rest, forked, err := f.eng.Step()
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.False(t, forked)
	assert.Equal(t, state.StuckUnsupported, f.eng.Current().Stuck())
}

// A native invocation surfaces as stuck-unsupported, never as a host
// error.
func TestNativeMethodUnsupported(t *testing.T) {
	main := typ.NewSignature("demo/N", "()V", "main")
	nat := typ.NewSignature("demo/N", "()V", "nat")
	h := classhierarchy.New()
	h.Add(&classhierarchy.ClassFile{
		Name: "demo/N",
		ConstantPool: []classhierarchy.ConstantPoolEntry{
			{},
			{Kind: classhierarchy.CPMethodRef, Sig: nat},
		},
		Methods: []classhierarchy.Method{
			staticMethod(main, []byte{0xb8, 0x00, 0x01, 0xb1}, 0), // invokestatic #1; return
			{Signature: nat, AccessFlags: classhierarchy.AccPublic | classhierarchy.AccStatic | classhierarchy.AccNative},
		},
	})

	f := newFixture(h, nil)
	f.start(t, main)
	_, _, err := f.eng.Step()
	require.NoError(t, err)
	assert.Equal(t, state.StuckUnsupported, f.eng.Current().Stuck())
	assert.Contains(t, f.eng.Current().UnsupportedReason(), "nat")
}

// Static call and return round-trip: arguments land in the callee's
// locals and the result resumes the caller past the invoke.
func TestInvokestaticRoundTrip(t *testing.T) {
	main := typ.NewSignature("demo/M", "()I", "main")
	inc := typ.NewSignature("demo/M", "(I)I", "inc")
	h := classhierarchy.New()
	h.Add(&classhierarchy.ClassFile{
		Name: "demo/M",
		ConstantPool: []classhierarchy.ConstantPoolEntry{
			{},
			{Kind: classhierarchy.CPMethodRef, Sig: inc},
		},
		Methods: []classhierarchy.Method{
			// iconst_4; invokestatic #1; ireturn
			staticMethod(main, []byte{0x07, 0xb8, 0x00, 0x01, 0xac}, 0),
			// iload_0; iconst_1; iadd; ireturn
			staticMethod(inc, []byte{0x1a, 0x04, 0x60, 0xac}, 1),
		},
	})

	f := newFixture(h, nil)
	f.start(t, main)
	leaf := f.stepToStuck(t)
	assert.Equal(t, state.StuckReturn, leaf.Stuck())
	assert.Equal(t, int64(5), leaf.ReturnValue().(*value.Simplex).Int64())
}
