package algo

import (
	"github.com/pkg/errors"

	"github.com/gangz/jbse/internal/bytecode"
	"github.com/gangz/jbse/internal/decision"
	"github.com/gangz/jbse/internal/ectx"
	"github.com/gangz/jbse/internal/mem"
	"github.com/gangz/jbse/internal/state"
	"github.com/gangz/jbse/internal/typ"
	"github.com/gangz/jbse/internal/value"
)

// Schemas (b) and (d): a concrete condition takes its branch in place;
// a symbolic one forks one child per feasible outcome with the
// disambiguating Assume clause.

func registerBranch(reg map[byte]Algorithm) {
	reg[bytecode.Goto] = Func(func(s *state.State, ctx *ectx.Ctx) error {
		code, pc, err := currentCode(s)
		if err != nil {
			return err
		}
		return s.SetPC(pc + int(bytecode.S2(code, pc+1)))
	})
	reg[bytecode.GotoW] = Func(func(s *state.State, ctx *ectx.Ctx) error {
		code, pc, err := currentCode(s)
		if err != nil {
			return err
		}
		return s.SetPC(pc + int(bytecode.S4(code, pc+1)))
	})

	unary := map[byte]value.Operator{
		bytecode.Ifeq: value.Eq, bytecode.Ifne: value.Ne,
		bytecode.Iflt: value.Lt, bytecode.Ifge: value.Ge,
		bytecode.Ifgt: value.Gt, bytecode.Ifle: value.Le,
	}
	for op, cmp := range unary {
		op, cmp := op, cmp
		reg[op] = Func(func(s *state.State, ctx *ectx.Ctx) error {
			v, err := s.PopPrimitive()
			if err != nil {
				return s.CreateThrowableAndThrowIt(state.VerifyError)
			}
			cond, err := compareToZero(ctx, cmp, v)
			if err != nil {
				return s.CreateThrowableAndThrowIt(state.VerifyError)
			}
			return branchOn(s, ctx, cond)
		})
	}

	binary := map[byte]value.Operator{
		bytecode.IfIcmpeq: value.Eq, bytecode.IfIcmpne: value.Ne,
		bytecode.IfIcmplt: value.Lt, bytecode.IfIcmpge: value.Ge,
		bytecode.IfIcmpgt: value.Gt, bytecode.IfIcmple: value.Le,
	}
	for op, cmp := range binary {
		op, cmp := op, cmp
		reg[op] = Func(func(s *state.State, ctx *ectx.Ctx) error {
			right, err := s.PopPrimitive()
			if err != nil {
				return s.CreateThrowableAndThrowIt(state.VerifyError)
			}
			left, err := s.PopPrimitive()
			if err != nil {
				return s.CreateThrowableAndThrowIt(state.VerifyError)
			}
			cond, err := ctx.Calc.Compare(cmp, left, right)
			if err != nil {
				return s.CreateThrowableAndThrowIt(state.VerifyError)
			}
			return branchOn(s, ctx, cond)
		})
	}

	reg[bytecode.IfAcmpeq] = refCompareBranch(true)
	reg[bytecode.IfAcmpne] = refCompareBranch(false)
	reg[bytecode.Ifnull] = refNullBranch(true)
	reg[bytecode.Ifnonnull] = refNullBranch(false)

	reg[bytecode.Tableswitch] = Func(execTableswitch)
	reg[bytecode.Lookupswitch] = Func(execLookupswitch)
}

// compareToZero builds the branch condition of the one-operand if
// family. A boolean-tagged operand compares against false, matching
// how a Z-typed field value reaches an ifeq.
func compareToZero(ctx *ectx.Ctx, cmp value.Operator, v value.Primitive) (value.Primitive, error) {
	if v.Type() == typ.Boolean {
		if cmp != value.Eq && cmp != value.Ne {
			return nil, &UnexpectedInternalError{Op: "if", Why: "ordered comparison on boolean"}
		}
		return ctx.Calc.Compare(cmp, v, ctx.Calc.ValOf(typ.Boolean, false))
	}
	return ctx.Calc.Compare(cmp, v, ctx.Calc.ValOf(typ.Int, int64(0)))
}

// branchOn takes the branch when cond is concretely true, falls through
// when concretely false (schema (b)), and otherwise forks TAKEN /
// NOT_TAKEN with the condition and its negation as Assume clauses
// (schema (d)). The branch target is read from the bytecode's 16-bit
// offset operand.
func branchOn(s *state.State, ctx *ectx.Ctx, cond value.Primitive) error {
	code, pc, err := currentCode(s)
	if err != nil {
		return err
	}
	target := pc + int(bytecode.S2(code, pc+1))

	if c, concrete := cond.(*value.Simplex); concrete {
		if c.Bool() {
			return s.SetPC(target)
		}
		return s.IncPC(3)
	}

	notCond, err := ctx.Calc.BoolNot(cond)
	if err != nil {
		return &UnexpectedInternalError{Op: "branch", Why: "negating condition", Wrap: err}
	}

	var alts []decision.Alternative
	takenOK, err := ctx.Dec.IsSat(cond)
	if err != nil {
		return errors.Wrap(err, "deciding branch")
	}
	if takenOK {
		alts = append(alts, decision.Alternative{Kind: decision.BranchTaken, Target: target})
	}
	fallOK, err := ctx.Dec.IsSat(notCond)
	if err != nil {
		return errors.Wrap(err, "deciding branch")
	}
	if fallOK {
		alts = append(alts, decision.Alternative{Kind: decision.BranchNotTaken, BranchNumber: 1})
	}
	decision.SortStable(alts)

	return forkApply(s, ctx, alts,
		func(child *state.State, alt decision.Alternative) (mem.Clause, error) {
			if alt.Kind == decision.BranchTaken {
				return &mem.ClauseAssume{Cond: cond}, child.SetPC(alt.Target)
			}
			return &mem.ClauseAssume{Cond: notCond}, child.IncPC(3)
		})
}

// refCompareBranch implements if_acmpeq/if_acmpne. Symbolic references
// are resolved first (resolve-and-retry: the fork children re-execute
// this bytecode with the operand pinned).
func refCompareBranch(wantEqual bool) Algorithm {
	return Func(func(s *state.State, ctx *ectx.Ctx) error {
		for depth := 0; depth <= 1; depth++ {
			done, err := resolveOrFork(s, ctx, depth)
			if done || err != nil {
				return err
			}
		}
		b, err := s.Pop()
		if err != nil {
			return s.CreateThrowableAndThrowIt(state.VerifyError)
		}
		a, err := s.Pop()
		if err != nil {
			return s.CreateThrowableAndThrowIt(state.VerifyError)
		}
		equal := sameReference(a, b)
		code, pc, err := currentCode(s)
		if err != nil {
			return err
		}
		if equal == wantEqual {
			return s.SetPC(pc + int(bytecode.S2(code, pc+1)))
		}
		return s.IncPC(3)
	})
}

func sameReference(a, b value.Value) bool {
	if isNullRef(a) && isNullRef(b) {
		return true
	}
	pa, oka := heapPosOf(a)
	pb, okb := heapPosOf(b)
	return oka && okb && pa == pb
}

func refNullBranch(wantNull bool) Algorithm {
	return Func(func(s *state.State, ctx *ectx.Ctx) error {
		done, err := resolveOrFork(s, ctx, 0)
		if done || err != nil {
			return err
		}
		v, err := s.Pop()
		if err != nil {
			return s.CreateThrowableAndThrowIt(state.VerifyError)
		}
		code, pc, err := currentCode(s)
		if err != nil {
			return err
		}
		if isNullRef(v) == wantNull {
			return s.SetPC(pc + int(bytecode.S2(code, pc+1)))
		}
		return s.IncPC(3)
	})
}

type switchCase struct {
	match  int32
	target int
}

func execTableswitch(s *state.State, ctx *ectx.Ctx) error {
	code, pc, err := currentCode(s)
	if err != nil {
		return err
	}
	base := pc + 1 + bytecode.SwitchPadding(pc)
	defaultTarget := pc + int(bytecode.S4(code, base))
	low := bytecode.S4(code, base+4)
	high := bytecode.S4(code, base+8)
	cases := make([]switchCase, 0, int(high-low)+1)
	for i := int32(0); i <= high-low; i++ {
		cases = append(cases, switchCase{
			match:  low + i,
			target: pc + int(bytecode.S4(code, base+12+int(i)*4)),
		})
	}
	return switchOn(s, ctx, cases, defaultTarget)
}

func execLookupswitch(s *state.State, ctx *ectx.Ctx) error {
	code, pc, err := currentCode(s)
	if err != nil {
		return err
	}
	base := pc + 1 + bytecode.SwitchPadding(pc)
	defaultTarget := pc + int(bytecode.S4(code, base))
	npairs := int(bytecode.S4(code, base+4))
	cases := make([]switchCase, 0, npairs)
	for i := 0; i < npairs; i++ {
		cases = append(cases, switchCase{
			match:  bytecode.S4(code, base+8+i*8),
			target: pc + int(bytecode.S4(code, base+8+i*8+4)),
		})
	}
	return switchOn(s, ctx, cases, defaultTarget)
}

// switchOn dispatches a table/lookup switch: a concrete selector jumps
// directly; a symbolic one forks one child per feasible case plus the
// default, whose clause is the conjunction of all the inequalities
//.
func switchOn(s *state.State, ctx *ectx.Ctx, cases []switchCase, defaultTarget int) error {
	sel, err := s.PopPrimitive()
	if err != nil {
		return s.CreateThrowableAndThrowIt(state.VerifyError)
	}

	if c, concrete := sel.(*value.Simplex); concrete {
		for _, cs := range cases {
			if int32(c.Int64()) == cs.match {
				return s.SetPC(cs.target)
			}
		}
		return s.SetPC(defaultTarget)
	}

	var alts []decision.Alternative
	conds := make(map[int]value.Primitive)
	branch := 0
	defaultCond := value.Primitive(nil)
	for _, cs := range cases {
		eq, cerr := ctx.Calc.Compare(value.Eq, sel, ctx.Calc.ValOf(typ.Int, int64(cs.match)))
		if cerr != nil {
			return s.CreateThrowableAndThrowIt(state.VerifyError)
		}
		ne, cerr := ctx.Calc.BoolNot(eq)
		if cerr != nil {
			return &UnexpectedInternalError{Op: "switch", Why: "negating case condition", Wrap: cerr}
		}
		if defaultCond == nil {
			defaultCond = ne
		} else {
			defaultCond, cerr = ctx.Calc.BoolAnd(defaultCond, ne)
			if cerr != nil {
				return &UnexpectedInternalError{Op: "switch", Why: "conjoining default condition", Wrap: cerr}
			}
		}
		ok, derr := ctx.Dec.IsSat(eq)
		if derr != nil {
			return errors.Wrap(derr, "deciding switch case")
		}
		if ok {
			alts = append(alts, decision.Alternative{
				Kind: decision.SwitchCase, BranchNumber: branch,
				CaseValue: cs.match, Target: cs.target,
			})
			conds[branch] = eq
			branch++
		}
	}
	if defaultCond == nil {
		// Degenerate switch with no cases always takes the default.
		return s.SetPC(defaultTarget)
	}
	ok, derr := ctx.Dec.IsSat(defaultCond)
	if derr != nil {
		return errors.Wrap(derr, "deciding switch default")
	}
	if ok {
		alts = append(alts, decision.Alternative{
			Kind: decision.SwitchCase, BranchNumber: branch,
			IsDefault: true, Target: defaultTarget,
		})
		conds[branch] = defaultCond
	}

	return forkApply(s, ctx, alts,
		func(child *state.State, alt decision.Alternative) (mem.Clause, error) {
			return &mem.ClauseAssume{Cond: conds[alt.BranchNumber]}, child.SetPC(alt.Target)
		})
}
