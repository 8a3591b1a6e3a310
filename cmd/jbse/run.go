package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/gangz/jbse/internal/calc"
	"github.com/gangz/jbse/internal/classhierarchy"
	"github.com/gangz/jbse/internal/decision"
	"github.com/gangz/jbse/internal/decision/z3dec"
	"github.com/gangz/jbse/internal/lics"
	"github.com/gangz/jbse/internal/runner"
	"github.com/gangz/jbse/internal/state"
	"github.com/gangz/jbse/internal/typ"
)

var (
	flagDepth     int
	flagCount     int
	flagHeapScope int
	flagTimeout   time.Duration
	flagSubregion string
	flagVerbose   bool
	flagSolver    string
	flagNeverNull []string
	flagSample    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Explore a built-in sample method symbolically",
	Long: "run executes one of the built-in sample methods with fully symbolic\n" +
		"inputs and prints one line per explored path: the identifier, how the\n" +
		"path ended, and the accumulated path condition.",
	RunE: runExploration,
}

func init() {
	registerScopeFlags(runCmd.Flags())
	rootCmd.AddCommand(runCmd)
}

func registerScopeFlags(fs *pflag.FlagSet) {
	fs.IntVar(&flagDepth, "depth", 0, "maximum fork depth (0 = unbounded)")
	fs.IntVar(&flagCount, "count", 0, "maximum states to explore (0 = unbounded)")
	fs.IntVar(&flagHeapScope, "heap-scope", 0, "per-class heap population a path may reach through expansion (0 = unbounded)")
	fs.DurationVar(&flagTimeout, "timeout", 0, "wall-clock budget (0 = unbounded)")
	fs.StringVar(&flagSubregion, "subregion", "", "only expand states whose identifier has this prefix")
	fs.BoolVarP(&flagVerbose, "verbose", "v", false, "per-step debug logging")
	fs.StringVar(&flagSolver, "solver", "z3", "decision procedure: z3 or enumerate")
	fs.StringArrayVar(&flagNeverNull, "never-null", nil, "LICS rule: origins matching this glob never resolve to null (repeatable)")
	fs.StringVar(&flagSample, "sample", "classify", "sample method: classify or first")
}

func runExploration(cmd *cobra.Command, args []string) error {
	level := zerolog.InfoLevel
	if flagVerbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	hier := demoHierarchy()
	root, err := sampleMethod(flagSample)
	if err != nil {
		return err
	}

	var dec decision.Procedure
	switch flagSolver {
	case "z3":
		dec = decision.NewChain(z3dec.New(log), decision.NewAlwaysSat())
	case "enumerate":
		dec = decision.NewAlwaysSat()
	default:
		return fmt.Errorf("unknown solver %q", flagSolver)
	}

	rules := lics.NewRuleSet()
	for _, pattern := range flagNeverNull {
		rules.Add(lics.Rule{OriginPattern: pattern, Kind: lics.NeverNull})
	}

	r := runner.New(runner.Config{
		RootMethod:          root,
		DepthScope:          flagDepth,
		CountScope:          flagCount,
		HeapScope:           flagHeapScope,
		Timeout:             flagTimeout,
		IdentifierSubregion: flagSubregion,
		LicsRules:           rules,
		Logger:              log,
	}, calc.New(), hier, dec)

	res, err := r.Run()
	if err != nil {
		return err
	}

	fmt.Printf("exit: %s, explored %d states, %d pruned\n", res.Kind, res.Explored, res.Pruned)
	for _, leaf := range res.Leaves {
		describeLeaf(leaf)
	}
	if len(res.Unfinished) > 0 {
		fmt.Printf("%d states left unexplored\n", len(res.Unfinished))
	}
	return nil
}

func describeLeaf(s *state.State) {
	id := s.Identifier()
	if id == "" {
		id = "(root)"
	}
	outcome := s.Stuck().String()
	switch s.Stuck() {
	case state.StuckReturn:
		if v := s.ReturnValue(); v != nil {
			outcome = fmt.Sprintf("return %s", v)
		}
	case state.StuckException:
		if ref := s.ExceptionReference(); ref != nil {
			outcome = fmt.Sprintf("uncaught %s", ref)
		}
	case state.StuckUnsupported:
		outcome = fmt.Sprintf("unsupported (%s)", s.UnsupportedReason())
	}
	pc := s.PathCondition().String()
	if pc == "" {
		pc = "true"
	}
	fmt.Printf("  %-8s %-24s assuming %s\n", id, outcome, pc)
}

func sampleMethod(name string) (typ.Signature, error) {
	switch name {
	case "classify":
		return typ.NewSignature("demo/Calc", "(I)I", "classify"), nil
	case "first":
		return typ.NewSignature("demo/Node", "(Ldemo/Node;)I", "first"), nil
	default:
		return typ.Signature{}, fmt.Errorf("unknown sample %q", name)
	}
}

// demoHierarchy registers the two built-in sample classes.
//
// demo/Calc.classify(I)I is the three-way sign split:
//
//	if (x > 0) return 1; if (x < 0) return -1; return 0;
//
// demo/Node.first(Ldemo/Node;)I dereferences a symbolic list head:
//
//	return n.value;
func demoHierarchy() *classhierarchy.Hierarchy {
	h := classhierarchy.New()

	h.Add(&classhierarchy.ClassFile{
		Name:        "demo/Calc",
		AccessFlags: classhierarchy.AccPublic,
		Methods: []classhierarchy.Method{{
			Signature:   typ.NewSignature("demo/Calc", "(I)I", "classify"),
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

	nodeValue := typ.NewSignature("demo/Node", "I", "value")
	nodeNext := typ.NewSignature("demo/Node", "Ldemo/Node;", "next")
	h.Add(&classhierarchy.ClassFile{
		Name:        "demo/Node",
		AccessFlags: classhierarchy.AccPublic,
		Fields: []classhierarchy.Field{
			{Signature: nodeValue, AccessFlags: classhierarchy.AccPublic},
			{Signature: nodeNext, AccessFlags: classhierarchy.AccPublic},
		},
		ConstantPool: []classhierarchy.ConstantPoolEntry{
			{}, // slot 0 unused, as in the class-file format
			{Kind: classhierarchy.CPFieldRef, Sig: nodeValue},
		},
		Methods: []classhierarchy.Method{{
			Signature:   typ.NewSignature("demo/Node", "(Ldemo/Node;)I", "first"),
			AccessFlags: classhierarchy.AccPublic | classhierarchy.AccStatic,
			MaxLocals:   1,
			Code: []byte{
				0x2a,             // aload_0
				0xb4, 0x00, 0x01, // getfield #1 (Node.value)
				0xac, // ireturn
			},
		}},
	})

	return h
}
