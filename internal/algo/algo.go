// Package algo is the Algorithm catalog: one
// implementation per bytecode family, organized by the four schemas —
// (a) purely local, (b) concrete branch/index, (c) field/method access
// with lazy initialization, (d) fork on a decision. Dispatch is a
// registry of small Algorithm values so the engine stays a table
// lookup.
package algo

import (
	"fmt"

	"github.com/gangz/jbse/internal/bytecode"
	"github.com/gangz/jbse/internal/decision"
	"github.com/gangz/jbse/internal/ectx"
	"github.com/gangz/jbse/internal/mem"
	"github.com/gangz/jbse/internal/state"
)

// Algorithm executes one bytecode on a state. Exec is a
// total function: hosted-VM failures are thrown into the state via
// CreateThrowableAndThrowIt, terminal conditions set stuck, infeasible
// forks return decision.ErrContradiction, and only invariant violations
// escape as an UnexpectedInternalError.
type Algorithm interface {
	Exec(s *state.State, ctx *ectx.Ctx) error
}

// Func adapts a function to the Algorithm interface.
type Func func(s *state.State, ctx *ectx.Ctx) error

func (f Func) Exec(s *state.State, ctx *ectx.Ctx) error { return f(s, ctx) }

// UnexpectedInternalError is the fatal error tier: an engine
// invariant was violated and the run must abort with the offending
// state preserved.
type UnexpectedInternalError struct {
	Op   string
	Why  string
	Wrap error
}

func (e *UnexpectedInternalError) Error() string {
	if e.Wrap != nil {
		return fmt.Sprintf("unexpected internal error in %s: %s: %v", e.Op, e.Why, e.Wrap)
	}
	return fmt.Sprintf("unexpected internal error in %s: %s", e.Op, e.Why)
}

func (e *UnexpectedInternalError) Unwrap() error { return e.Wrap }

// CannotInvokeNativeError is the engine-recoverable report that a
// native method has no model; the runner decides
// whether to stop the path or mark it unsupported.
type CannotInvokeNativeError struct {
	Method string
}

func (e *CannotInvokeNativeError) Error() string {
	return "cannot invoke native method " + e.Method
}

// Catalog builds the full opcode -> Algorithm registry.
func Catalog() map[byte]Algorithm {
	reg := make(map[byte]Algorithm)
	registerLocal(reg)
	registerBranch(reg)
	registerField(reg)
	registerInvoke(reg)
	registerObject(reg)
	return reg
}

// forkApply materializes one successor per alternative: clone the
// parent, push the disambiguating clause, run the alternative's effect,
// extend the identifier with the branch letter, bump the depth, and
// queue the clone in discovery order. The
// parent state is left untouched. An empty alternative set means the
// decision procedure rejected every outcome: the state is infeasible
//.
func forkApply(s *state.State, ctx *ectx.Ctx, alts []decision.Alternative,
	apply func(child *state.State, alt decision.Alternative) (mem.Clause, error)) error {
	if len(alts) == 0 {
		return decision.ErrContradiction
	}
	for _, alt := range alts {
		child := s.Clone()
		clause, err := apply(child, alt)
		if err != nil {
			return err
		}
		if clause != nil {
			child.AddClause(clause)
		}
		child.AppendBranch(decision.BranchLetter(alt.BranchNumber))
		ctx.AddSuccessor(child)
	}
	return nil
}

// advance moves the pc past the bytecode at hand, consuming the wide
// flag when the opcode honors it.
func advance(s *state.State, op byte, wide bool) error {
	return s.IncPC(bytecode.Length(op, wide))
}

// currentCode returns the active frame's bytecode buffer and pc.
func currentCode(s *state.State) ([]byte, int, error) {
	f, err := s.CurrentFrame()
	if err != nil {
		return nil, 0, err
	}
	return f.Code, f.PC, nil
}
