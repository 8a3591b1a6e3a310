// Package z3dec is the Z3-backed DecisionProcedure: a translator from
// the primitive algebra to Z3 ASTs over one cached-constant context,
// an incremental solver (push/pop around each isSat query), and the
// path-condition bookkeeping the reference-resolution queries need.
package z3dec

import (
	"github.com/ebukreev/go-z3/z3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/gangz/jbse/internal/decision"
	"github.com/gangz/jbse/internal/mem"
	"github.com/gangz/jbse/internal/typ"
	"github.com/gangz/jbse/internal/value"
)

// Procedure implements decision.Procedure over a Z3 solver. Primitive
// Assume clauses are asserted into the solver; the reference-resolution
// and class-initialization clause kinds are tracked as path bookkeeping,
// since they constrain resolution identity rather than arithmetic.
type Procedure struct {
	ctx    *z3.Context
	config *z3.Config
	solver *z3.Solver
	tr     *translator

	fast bool
	log  zerolog.Logger

	resolutions map[string]resolution
	initialized map[string]bool
}

type resolution struct {
	kind      decision.Kind
	heapPos   int64
	className string
}

// New builds a Procedure with a fresh Z3 context and solver.
func New(log zerolog.Logger) *Procedure {
	config := &z3.Config{}
	ctx := z3.NewContext(config)
	return &Procedure{
		ctx:         ctx,
		config:      config,
		solver:      z3.NewSolver(ctx),
		tr:          newTranslator(ctx),
		log:         log,
		resolutions: make(map[string]resolution),
		initialized: make(map[string]bool),
	}
}

func (p *Procedure) SetAssumptions(clauses []mem.Clause) error {
	p.solver.Reset()
	p.resolutions = make(map[string]resolution)
	p.initialized = make(map[string]bool)
	for _, c := range clauses {
		if err := p.assertClause(c); err != nil {
			return err
		}
	}
	return nil
}

func (p *Procedure) PushAssumption(c mem.Clause) error {
	if err := p.assertClause(c); err != nil {
		return err
	}
	if p.fast {
		return nil
	}
	sat, err := p.solver.Check()
	if err != nil {
		return errors.Wrap(err, "checking pushed assumption")
	}
	if !sat {
		return decision.ErrContradiction
	}
	return nil
}

func (p *Procedure) assertClause(c mem.Clause) error {
	switch cl := c.(type) {
	case *mem.ClauseAssume:
		b, err := p.tr.translateBool(cl.Cond)
		if err != nil {
			return errors.Wrap(err, "translating assumption")
		}
		p.solver.Assert(b)
	case *mem.ClauseAssumeNull:
		p.resolutions[cl.Ref.Origin] = resolution{kind: decision.RefNull}
	case *mem.ClauseAssumeAliases:
		p.resolutions[cl.Ref.Origin] = resolution{kind: decision.RefAliases, heapPos: cl.HeapPos}
	case *mem.ClauseAssumeExpands:
		p.resolutions[cl.Ref.Origin] = resolution{kind: decision.RefExpands, className: cl.ClassName}
	case *mem.ClauseAssumeClassInitialized:
		p.initialized[cl.ClassName] = true
	case *mem.ClauseAssumeClassNotInitialized:
		p.initialized[cl.ClassName] = false
	}
	return nil
}

func (p *Procedure) IsSat(cond value.Primitive) (bool, error) {
	if s, concrete := cond.(*value.Simplex); concrete {
		return s.Bool(), nil
	}
	b, err := p.tr.translateBool(cond)
	if err != nil {
		return false, errors.Wrap(err, "translating query")
	}
	p.solver.Push()
	p.solver.Assert(b)
	sat, err := p.solver.Check()
	p.solver.Pop()
	if err != nil {
		return false, errors.Wrap(err, "solver check")
	}
	p.log.Debug().Str("cond", cond.String()).Bool("sat", sat).Msg("isSat")
	return sat, nil
}

func (p *Procedure) IsSatNull(ref *value.ReferenceSymbolic) (bool, error) {
	r, resolved := p.resolutions[ref.Origin]
	return !resolved || r.kind == decision.RefNull, nil
}

func (p *Procedure) IsSatAliases(ref *value.ReferenceSymbolic, heapPos int64, obj mem.Objekt) (bool, error) {
	r, resolved := p.resolutions[ref.Origin]
	return !resolved || (r.kind == decision.RefAliases && r.heapPos == heapPos), nil
}

func (p *Procedure) IsSatExpands(ref *value.ReferenceSymbolic, className string) (bool, error) {
	r, resolved := p.resolutions[ref.Origin]
	return !resolved || (r.kind == decision.RefExpands && r.className == className), nil
}

func (p *Procedure) IsSatInitialized(className string) (bool, error) {
	init, assumed := p.initialized[className]
	return !assumed || init, nil
}

func (p *Procedure) IsSatNotInitialized(className string) (bool, error) {
	init, assumed := p.initialized[className]
	return !assumed || !init, nil
}

// Simplify decides a boolean primitive that is forced by the current
// assumptions down to its literal, an equivalent primitive under those
// assumptions; other primitives pass through.
func (p *Procedure) Simplify(prim value.Primitive) (value.Primitive, error) {
	if prim.Type() != typ.Boolean {
		return prim, nil
	}
	if _, concrete := prim.(*value.Simplex); concrete {
		return prim, nil
	}
	canBeTrue, err := p.IsSat(prim)
	if err != nil {
		return nil, err
	}
	if !canBeTrue {
		return value.NewSimplex(prim.Calc(), typ.Boolean, false), nil
	}
	not, err := prim.Calc().BoolNot(prim)
	if err != nil {
		return nil, err
	}
	canBeFalse, err := p.IsSat(not)
	if err != nil {
		return nil, err
	}
	if !canBeFalse {
		return value.NewSimplex(prim.Calc(), typ.Boolean, true), nil
	}
	return prim, nil
}

// GoFastAndImprecise suspends the consistency check on
// PushAssumption; StopFastAndImprecise restores it.
func (p *Procedure) GoFastAndImprecise()   { p.fast = true }
func (p *Procedure) StopFastAndImprecise() { p.fast = false }

// Close releases the solver state. The underlying Z3 context is
// finalized by the runtime.
func (p *Procedure) Close() error {
	p.solver.Reset()
	p.tr.reset()
	return nil
}
