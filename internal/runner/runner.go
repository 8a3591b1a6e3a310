// Package runner drives the depth-first exploration: a LIFO worklist
// of states, scope limits, a cooperative wall-clock
// deadline, per-step hooks, observed-variable notification, and
// guaranteed decision-procedure release. The DFS order is fixed, not
// pluggable: reproducible identifiers depend on it.
package runner

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/gangz/jbse/internal/calc"
	"github.com/gangz/jbse/internal/classhierarchy"
	"github.com/gangz/jbse/internal/decision"
	"github.com/gangz/jbse/internal/ectx"
	"github.com/gangz/jbse/internal/engine"
	"github.com/gangz/jbse/internal/lics"
	"github.com/gangz/jbse/internal/state"
	"github.com/gangz/jbse/internal/typ"
	"github.com/gangz/jbse/internal/value"
)

// Hook is one of the runner's per-step callbacks.
type Hook func(s *state.State)

// Actions bundles the runner hooks; nil members are skipped.
type Actions struct {
	AtRoot          Hook
	AtPre           Hook
	AtPost          Hook
	AtStuck         Hook
	AtContradiction Hook
	// AtObservedChange fires when an observed static variable's value
	// changes between steps.
	AtObservedChange func(s *state.State, className, fieldName string, old, new value.Value)
}

// ObservedVariable names one (class, staticField) pair the runner
// watches.
type ObservedVariable struct {
	ClassName string
	FieldName string
}

// Config is the runner configuration. Zero scopes and
// timeout mean unbounded.
type Config struct {
	RootMethod          typ.Signature
	DepthScope          int
	CountScope          int
	HeapScope           int
	Timeout             time.Duration
	IdentifierSubregion string
	Actions             Actions
	LicsRules           *lics.RuleSet
	Observed            []ObservedVariable
	Logger              zerolog.Logger
}

// ExitKind is how a run ended. Unsupported
// bytecodes do not abort the run; they mark their own path and surface
// through Result.Unsupported.
type ExitKind int

const (
	ExitNormal ExitKind = iota
	ExitTimeout
	ExitInternalError
)

func (k ExitKind) String() string {
	switch k {
	case ExitNormal:
		return "normal"
	case ExitTimeout:
		return "timeout"
	case ExitInternalError:
		return "internal error"
	default:
		return "?"
	}
}

// Result summarizes a run: the stuck leaves, any states left unexplored
// (deadline, scopes, subregion filter), and the fatal-error state kept
// for post-mortem inspection.
type Result struct {
	Kind        ExitKind
	RunID       string
	Leaves      []*state.State
	Unfinished  []*state.State
	Explored    int
	Pruned      int
	Unsupported int
	FailedState *state.State
}

// Runner owns the engine, the shared context and the decision procedure
// for one exploration.
type Runner struct {
	cfg Config
	ctx *ectx.Ctx
	eng *engine.Engine
	dec   decision.Procedure
	log   zerolog.Logger
	runID string

	observed map[string]value.Value
}

func New(cfg Config, c *calc.Calculator, hier *classhierarchy.Hierarchy, dec decision.Procedure) *Runner {
	runID := uuid.NewString()
	log := cfg.Logger.With().Str("run_id", runID).Logger()
	ctx := ectx.New(c, hier, dec, cfg.LicsRules)
	ctx.HeapScope = cfg.HeapScope
	r := &Runner{
		cfg:      cfg,
		ctx:      ctx,
		eng:      engine.New(ctx, log),
		dec:      dec,
		log:      log,
		observed: make(map[string]value.Value),
	}
	r.runID = runID
	return r
}

// Run explores the state space depth-first until the worklist drains or
// a limit fires. The decision procedure is released on every exit path
//.
func (r *Runner) Run() (res *Result, err error) {
	defer func() {
		if cerr := r.dec.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "releasing decision procedure")
		}
	}()

	res = &Result{Kind: ExitNormal, RunID: r.runID}

	root, err := state.New(r.ctx.Calc, r.ctx.Hier, r.cfg.RootMethod)
	if err != nil {
		res.Kind = ExitInternalError
		return res, errors.Wrap(err, "building root state")
	}
	r.fire(r.cfg.Actions.AtRoot, root)

	var deadline time.Time
	if r.cfg.Timeout > 0 {
		deadline = time.Now().Add(r.cfg.Timeout)
	}

	worklist := []*state.State{root}
	for len(worklist) > 0 {
		if timedOut(deadline) {
			res.Kind = ExitTimeout
			res.Unfinished = append(res.Unfinished, worklist...)
			r.log.Info().Int("unfinished", len(worklist)).Msg("timeout reached")
			return res, nil
		}
		s := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		if !r.expandable(s, res) {
			continue
		}
		res.Explored++
		if r.cfg.CountScope > 0 && res.Explored > r.cfg.CountScope {
			res.Unfinished = append(res.Unfinished, s)
			res.Unfinished = append(res.Unfinished, worklist...)
			r.log.Info().Int("count_scope", r.cfg.CountScope).Msg("count scope reached")
			return res, nil
		}

		// Adopting a state replays its whole path condition into the
		// decision procedure; batch it imprecisely, then restore
		// checked mode before the first isSat* query.
		r.dec.GoFastAndImprecise()
		serr := r.eng.SetCurrent(s)
		r.dec.StopFastAndImprecise()
		if serr != nil {
			res.Kind = ExitInternalError
			res.FailedState = s
			return res, serr
		}

		var stop bool
		worklist, stop, err = r.explorePath(worklist, deadline, res)
		if err != nil {
			return res, err
		}
		if stop {
			res.Unfinished = append(res.Unfinished, worklist...)
			return res, nil
		}
	}
	r.log.Info().
		Int("explored", res.Explored).
		Int("leaves", len(res.Leaves)).
		Int("pruned", res.Pruned).
		Msg("exploration complete")
	return res, nil
}

// explorePath steps the current state until it sticks, forking children
// onto the worklist. Returned worklist entries are pushed so that pops
// come off in discovery order; stop is set when the count scope fires
// or the deadline passes.
func (r *Runner) explorePath(worklist []*state.State, deadline time.Time, res *Result) ([]*state.State, bool, error) {
	for {
		cur := r.eng.Current()
		if cur.Stuck() != state.NotStuck {
			r.leaf(cur, res)
			return worklist, false, nil
		}
		if timedOut(deadline) {
			res.Kind = ExitTimeout
			res.Unfinished = append(res.Unfinished, cur)
			return worklist, true, nil
		}

		r.fire(r.cfg.Actions.AtPre, cur)
		rest, forked, err := r.eng.Step()
		if err != nil {
			if errors.Is(err, decision.ErrContradiction) {
				res.Pruned++
				r.fire(r.cfg.Actions.AtContradiction, cur)
				r.log.Debug().Str("id", cur.Identifier()).Msg("contradiction, path pruned")
				return worklist, false, nil
			}
			res.Kind = ExitInternalError
			res.FailedState = cur
			return worklist, false, errors.Wrap(err, "fatal step failure")
		}
		for i := len(rest) - 1; i >= 0; i-- {
			worklist = append(worklist, rest[i])
		}
		if forked {
			adopted := r.eng.Current()
			res.Explored++
			r.logWorklist(len(worklist))
			if r.cfg.CountScope > 0 && res.Explored > r.cfg.CountScope {
				res.Unfinished = append(res.Unfinished, adopted)
				r.log.Info().Int("count_scope", r.cfg.CountScope).Msg("count scope reached")
				return worklist, true, nil
			}
			if !r.expandable(adopted, res) {
				return worklist, false, nil
			}
		}
		r.notifyObserved(r.eng.Current())
		r.fire(r.cfg.Actions.AtPost, r.eng.Current())
	}
}

// expandable applies the identifier-subregion filter and the depth
// scope; a state that fails either is recorded unfinished, not
// explored.
func (r *Runner) expandable(s *state.State, res *Result) bool {
	if p := r.cfg.IdentifierSubregion; p != "" && !withinSubregion(s.Identifier(), p) {
		res.Unfinished = append(res.Unfinished, s)
		return false
	}
	if r.cfg.DepthScope > 0 && s.Depth() > r.cfg.DepthScope {
		res.Unfinished = append(res.Unfinished, s)
		return false
	}
	return true
}

// withinSubregion admits states on the path to the subregion (their
// identifier is a prefix of the filter) and states inside it (the
// filter is a prefix of their identifier) — this is what makes
// resume/shard work.
func withinSubregion(id, prefix string) bool {
	if len(id) < len(prefix) {
		return id == prefix[:len(id)]
	}
	return id[:len(prefix)] == prefix
}

func (r *Runner) leaf(s *state.State, res *Result) {
	res.Leaves = append(res.Leaves, s)
	if s.Stuck() == state.StuckUnsupported {
		res.Unsupported++
	}
	r.fire(r.cfg.Actions.AtStuck, s)
	r.log.Debug().
		Str("id", s.Identifier()).
		Stringer("stuck", s.Stuck()).
		Int("path_len", s.PathCondition().Len()).
		Msg("leaf")
}

// notifyObserved diffs the watched static fields against their last
// seen values and fires the hook on change.
func (r *Runner) notifyObserved(s *state.State) {
	if r.cfg.Actions.AtObservedChange == nil {
		return
	}
	for _, ov := range r.cfg.Observed {
		klass, ok := s.GetKlass(ov.ClassName)
		if !ok {
			continue
		}
		sig := typ.NewSignature(ov.ClassName, "", ov.FieldName)
		cur, ok := klass.GetFieldValue(sig)
		if !ok {
			continue
		}
		key := ov.ClassName + "." + ov.FieldName
		last, seen := r.observed[key]
		if !seen || !value.Equal(last, cur) {
			// On first sight last is nil; the hook still fires so the
			// caller sees the variable come into existence.
			r.cfg.Actions.AtObservedChange(s, ov.ClassName, ov.FieldName, last, cur)
			r.observed[key] = cur
		}
	}
}

// logWorklist gauges the pending-exploration backlog after a fork.
func (r *Runner) logWorklist(n int) {
	r.log.Debug().Int("worklist", n).Msg("fork")
}

func (r *Runner) fire(h Hook, s *state.State) {
	if h != nil {
		h(s)
	}
}

func timedOut(deadline time.Time) bool {
	return !deadline.IsZero() && time.Now().After(deadline)
}
