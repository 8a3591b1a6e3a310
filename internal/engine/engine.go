// Package engine implements the step loop: decode the current opcode,
// dispatch the Algorithm, and either mutate the current state in place
// or adopt the first forked successor, handing the rest to the
// runner's worklist. Queue management lives in internal/runner.
package engine

import (
	"github.com/pkg/errors"

	"github.com/gangz/jbse/internal/algo"
	"github.com/gangz/jbse/internal/bytecode"
	"github.com/gangz/jbse/internal/ectx"
	"github.com/gangz/jbse/internal/mem"
	"github.com/gangz/jbse/internal/state"
	"github.com/rs/zerolog"
)

// Engine holds the current state, the shared execution context and the
// algorithm catalog.
type Engine struct {
	ctx     *ectx.Ctx
	catalog map[byte]algo.Algorithm
	cur     *state.State
	log     zerolog.Logger
}

func New(ctx *ectx.Ctx, log zerolog.Logger) *Engine {
	return &Engine{
		ctx:     ctx,
		catalog: algo.Catalog(),
		log:     log,
	}
}

func (e *Engine) Current() *state.State { return e.cur }

// SetCurrent adopts a state and synchronizes the decision procedure's
// assumptions to its path condition, before any query runs on its
// behalf.
func (e *Engine) SetCurrent(s *state.State) error {
	e.cur = s
	return errors.Wrap(e.ctx.Dec.SetAssumptions(s.PathCondition().Clauses()), "synchronizing assumptions")
}

// Step executes one bytecode. On a fork the first
// successor becomes current and the rest are returned for the runner's
// worklist in discovery order; forked reports whether that adoption
// happened. A stuck state is left untouched.
func (e *Engine) Step() (rest []*state.State, forked bool, err error) {
	s := e.cur
	if s == nil {
		return nil, false, &algo.UnexpectedInternalError{Op: "step", Why: "no current state"}
	}
	if s.Stuck() != state.NotStuck {
		return nil, false, nil
	}

	op, ierr := s.GetInstruction(0)
	switch ierr.(type) {
	case nil:
	case state.ThreadStackEmptyError:
		s.SetStuckReturn()
		return nil, false, nil
	case *mem.InvalidProgramCounterError:
		return nil, false, s.CreateThrowableAndThrowIt(state.VerifyError)
	default:
		return nil, false, ierr
	}

	a, known := e.catalog[op]
	if !known {
		s.SetStuckUnsupported(bytecode.Mnemonic(op))
		return nil, false, nil
	}

	e.log.Debug().
		Str("id", s.Identifier()).
		Int("seq", s.SequenceNumber()).
		Str("op", bytecode.Mnemonic(op)).
		Msg("step")

	// Counted before dispatch so fork children clone the incremented
	// sequence number: the fork step lies on their path too.
	s.IncSequenceNumber()

	if xerr := a.Exec(s, e.ctx); xerr != nil {
		// Drop any half-built successors before reporting.
		e.ctx.DrainSuccessors()
		if native, isNative := xerr.(*algo.CannotInvokeNativeError); isNative {
			s.SetStuckUnsupported(native.Error())
			return nil, false, nil
		}
		// decision.ErrContradiction passes through untouched so the
		// runner can prune; anything else is the caller's to triage.
		return nil, false, xerr
	}

	succs := e.ctx.DrainSuccessors()
	if len(succs) == 0 {
		return nil, false, nil
	}
	if serr := e.SetCurrent(succs[0]); serr != nil {
		return nil, false, serr
	}
	return succs[1:], true, nil
}
