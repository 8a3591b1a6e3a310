package runner

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gangz/jbse/internal/calc"
	"github.com/gangz/jbse/internal/classhierarchy"
	"github.com/gangz/jbse/internal/decision"
	"github.com/gangz/jbse/internal/lics"
	"github.com/gangz/jbse/internal/state"
	"github.com/gangz/jbse/internal/typ"
	"github.com/gangz/jbse/internal/value"
)

// classifyHierarchy is the three-way sign split:
// if (x > 0) return 1; if (x < 0) return -1; return 0;
func classifyHierarchy() (*classhierarchy.Hierarchy, typ.Signature) {
	sig := typ.NewSignature("demo/Calc", "(I)I", "classify")
	h := classhierarchy.New()
	h.Add(&classhierarchy.ClassFile{
		Name: "demo/Calc",
		Methods: []classhierarchy.Method{{
			Signature:   sig,
			AccessFlags: classhierarchy.AccPublic | classhierarchy.AccStatic,
			MaxLocals:   1,
			Code: []byte{
				0x1a,             // iload_0
				0x9e, 0x00, 0x05, // ifle -> 6
				0x04,             // iconst_1
				0xac,             // ireturn
				0x1a,             // iload_0
				0x9c, 0x00, 0x05, // ifge -> 12
				0x02, // iconst_m1
				0xac, // ireturn
				0x03, // iconst_0
				0xac, // ireturn
			},
		}},
	})
	return h, sig
}

func runClassify(t *testing.T, cfg Config) *Result {
	t.Helper()
	h, sig := classifyHierarchy()
	cfg.RootMethod = sig
	cfg.Logger = zerolog.Nop()
	r := New(cfg, calc.New(), h, decision.NewAlwaysSat())
	res, err := r.Run()
	require.NoError(t, err)
	return res
}

func leafIDs(res *Result) []string {
	ids := make([]string, len(res.Leaves))
	for i, l := range res.Leaves {
		ids[i] = l.Identifier()
	}
	return ids
}

func returnValues(t *testing.T, res *Result) []int64 {
	t.Helper()
	vals := make([]int64, len(res.Leaves))
	for i, l := range res.Leaves {
		require.Equal(t, state.StuckReturn, l.Stuck())
		vals[i] = l.ReturnValue().(*value.Simplex).Int64()
	}
	return vals
}

func TestClassifyExploresThreePaths(t *testing.T) {
	res := runClassify(t, Config{})
	assert.Equal(t, ExitNormal, res.Kind)
	assert.Equal(t, []string{"LL", "LR", "R"}, leafIDs(res))
	assert.Equal(t, []int64{0, -1, 1}, returnValues(t, res))
	assert.Empty(t, res.Unfinished)
	assert.NotEmpty(t, res.RunID)

	for _, l := range res.Leaves {
		assert.Len(t, l.Identifier(), l.Depth(), "identifier length equals depth")
	}
}

func TestDeterminism(t *testing.T) {
	first := runClassify(t, Config{})
	second := runClassify(t, Config{})
	assert.Equal(t, leafIDs(first), leafIDs(second), "same inputs, same identifiers in the same order")
}

func TestDepthScopeSkipsDeepChildren(t *testing.T) {
	res := runClassify(t, Config{DepthScope: 1})
	assert.Equal(t, ExitNormal, res.Kind)
	assert.Equal(t, []string{"R"}, leafIDs(res))
	assert.Len(t, res.Unfinished, 2, "LL and LR are beyond the depth scope")
}

func TestCountScopeStopsRun(t *testing.T) {
	res := runClassify(t, Config{CountScope: 1})
	assert.True(t, res.Explored > 0)
	assert.NotEmpty(t, res.Unfinished, "remaining states reported unfinished")
}

func TestIdentifierSubregion(t *testing.T) {
	res := runClassify(t, Config{IdentifierSubregion: "R"})
	assert.Equal(t, []string{"R"}, leafIDs(res))
	assert.Len(t, res.Unfinished, 1, "the L subtree is filtered out at its root")
	assert.Equal(t, "L", res.Unfinished[0].Identifier())
}

func TestSubregionPrefixLogic(t *testing.T) {
	assert.True(t, withinSubregion("", "LR"), "ancestors of the subregion are expanded")
	assert.True(t, withinSubregion("L", "LR"))
	assert.True(t, withinSubregion("LR", "LR"))
	assert.True(t, withinSubregion("LRL", "LR"), "descendants are inside the subregion")
	assert.False(t, withinSubregion("R", "LR"))
}

func TestHooksFire(t *testing.T) {
	var roots, pres, stucks int
	res := runClassify(t, Config{Actions: Actions{
		AtRoot:  func(*state.State) { roots++ },
		AtPre:   func(*state.State) { pres++ },
		AtStuck: func(*state.State) { stucks++ },
	}})
	assert.Equal(t, 1, roots)
	assert.Equal(t, 3, stucks)
	assert.True(t, pres >= 3, "one AtPre per step")
	assert.Len(t, res.Leaves, 3)
}

func TestObservedVariableNotification(t *testing.T) {
	sigF := typ.NewSignature("demo/Obs", "I", "f")
	main := typ.NewSignature("demo/Obs", "()I", "main")
	h := classhierarchy.New()
	h.Add(&classhierarchy.ClassFile{
		Name: "demo/Obs",
		Fields: []classhierarchy.Field{
			{Signature: sigF, AccessFlags: classhierarchy.AccStatic},
		},
		ConstantPool: []classhierarchy.ConstantPoolEntry{
			{},
			{Kind: classhierarchy.CPFieldRef, Sig: sigF},
		},
		Methods: []classhierarchy.Method{{
			Signature:   main,
			AccessFlags: classhierarchy.AccStatic,
			MaxLocals:   0,
			Code: []byte{
				0x10, 0x2a, // bipush 42
				0xb3, 0x00, 0x01, // putstatic #1
				0xb2, 0x00, 0x01, // getstatic #1
				0xac, // ireturn
			},
		}},
	})

	var changes []string
	cfg := Config{
		RootMethod: main,
		Logger:     zerolog.Nop(),
		Observed:   []ObservedVariable{{ClassName: "demo/Obs", FieldName: "f"}},
		Actions: Actions{
			AtObservedChange: func(s *state.State, class, field string, old, new value.Value) {
				changes = append(changes, class+"."+field+"="+new.String())
			},
		},
	}
	r := New(cfg, calc.New(), h, decision.NewAlwaysSat())
	res, err := r.Run()
	require.NoError(t, err)
	require.Len(t, res.Leaves, 1)
	assert.Equal(t, int64(42), res.Leaves[0].ReturnValue().(*value.Simplex).Int64())
	require.NotEmpty(t, changes, "the putstatic must be notified")
	assert.Equal(t, "demo/Obs.f=42", changes[len(changes)-1])
}

func TestTableswitchForksAllCases(t *testing.T) {
	sig := typ.NewSignature("demo/Sw", "(I)I", "pick")
	h := classhierarchy.New()
	h.Add(&classhierarchy.ClassFile{
		Name: "demo/Sw",
		Methods: []classhierarchy.Method{{
			Signature:   sig,
			AccessFlags: classhierarchy.AccStatic,
			MaxLocals:   1,
			Code: []byte{
				0x1a,       // 0: iload_0
				0xaa,       // 1: tableswitch
				0x00, 0x00, // 2-3: padding to the 4-byte boundary
				0x00, 0x00, 0x00, 0x1b, // default -> 1+27 = 28
				0x00, 0x00, 0x00, 0x00, // low = 0
				0x00, 0x00, 0x00, 0x01, // high = 1
				0x00, 0x00, 0x00, 0x17, // case 0 -> 1+23 = 24
				0x00, 0x00, 0x00, 0x19, // case 1 -> 1+25 = 26
				0x03, 0xac, // 24: iconst_0; ireturn
				0x04, 0xac, // 26: iconst_1; ireturn
				0x02, 0xac, // 28: iconst_m1; ireturn
			},
		}},
	})

	cfg := Config{RootMethod: sig, Logger: zerolog.Nop()}
	r := New(cfg, calc.New(), h, decision.NewAlwaysSat())
	res, err := r.Run()
	require.NoError(t, err)
	assert.Equal(t, []string{"L", "R", "a"}, leafIDs(res), "cases in ascending order, then the default")
	assert.Equal(t, []int64{0, 1, -1}, returnValues(t, res))
}

func TestNodeExpansionWithLics(t *testing.T) {
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
		Methods: []classhierarchy.Method{{
			Signature:   first,
			AccessFlags: classhierarchy.AccStatic,
			MaxLocals:   1,
			Code:        []byte{0x2a, 0xb4, 0x00, 0x01, 0xac}, // aload_0; getfield #1; ireturn
		}},
	})

	// Without rules: a null path and an expansion path.
	cfg := Config{RootMethod: first, Logger: zerolog.Nop()}
	r := New(cfg, calc.New(), h, decision.NewAlwaysSat())
	res, err := r.Run()
	require.NoError(t, err)
	assert.Len(t, res.Leaves, 2)
	assert.Equal(t, state.StuckException, res.Leaves[0].Stuck(), "NULL orders first, NPE path")
	assert.Equal(t, state.StuckReturn, res.Leaves[1].Stuck())

	// With a never-null rule: the NPE path disappears.
	cfg = Config{
		RootMethod: first,
		Logger:     zerolog.Nop(),
		LicsRules:  lics.NewRuleSet(lics.Rule{OriginPattern: "ROOT:0", Kind: lics.NeverNull}),
	}
	r = New(cfg, calc.New(), h, decision.NewAlwaysSat())
	res, err = r.Run()
	require.NoError(t, err)
	require.Len(t, res.Leaves, 1)
	assert.Equal(t, state.StuckReturn, res.Leaves[0].Stuck())
}
