package decision

import (
	"github.com/gangz/jbse/internal/mem"
	"github.com/gangz/jbse/internal/value"
)

// AlwaysSat is the terminal chain link: it answers every feasibility
// query "yes", with one syntactic refinement — a concrete boolean
// Simplex condition is decided by its own value, and reference
// resolution queries honor resolutions already recorded on the path
// condition. Placed last in a chain it guarantees the engine always
// receives an answer; used alone it degrades the engine to pure path
// enumeration without pruning.
type AlwaysSat struct {
	resolutions map[string]resolution
	initialized map[string]bool
}

type resolution struct {
	kind      Kind
	heapPos   int64
	className string
}

func NewAlwaysSat() *AlwaysSat {
	return &AlwaysSat{
		resolutions: make(map[string]resolution),
		initialized: make(map[string]bool),
	}
}

func (a *AlwaysSat) SetAssumptions(clauses []mem.Clause) error {
	a.resolutions = make(map[string]resolution)
	a.initialized = make(map[string]bool)
	for _, c := range clauses {
		if err := a.PushAssumption(c); err != nil {
			return err
		}
	}
	return nil
}

func (a *AlwaysSat) PushAssumption(c mem.Clause) error {
	switch cl := c.(type) {
	case *mem.ClauseAssumeNull:
		a.resolutions[cl.Ref.Origin] = resolution{kind: RefNull}
	case *mem.ClauseAssumeAliases:
		a.resolutions[cl.Ref.Origin] = resolution{kind: RefAliases, heapPos: cl.HeapPos}
	case *mem.ClauseAssumeExpands:
		a.resolutions[cl.Ref.Origin] = resolution{kind: RefExpands, className: cl.ClassName}
	case *mem.ClauseAssumeClassInitialized:
		a.initialized[cl.ClassName] = true
	case *mem.ClauseAssumeClassNotInitialized:
		a.initialized[cl.ClassName] = false
	}
	return nil
}

func (a *AlwaysSat) IsSat(cond value.Primitive) (bool, error) {
	if s, ok := cond.(*value.Simplex); ok {
		return s.Bool(), nil
	}
	return true, nil
}

func (a *AlwaysSat) IsSatNull(ref *value.ReferenceSymbolic) (bool, error) {
	r, resolved := a.resolutions[ref.Origin]
	return !resolved || r.kind == RefNull, nil
}

func (a *AlwaysSat) IsSatAliases(ref *value.ReferenceSymbolic, heapPos int64, obj mem.Objekt) (bool, error) {
	r, resolved := a.resolutions[ref.Origin]
	return !resolved || (r.kind == RefAliases && r.heapPos == heapPos), nil
}

func (a *AlwaysSat) IsSatExpands(ref *value.ReferenceSymbolic, className string) (bool, error) {
	r, resolved := a.resolutions[ref.Origin]
	return !resolved || (r.kind == RefExpands && r.className == className), nil
}

func (a *AlwaysSat) IsSatInitialized(className string) (bool, error) {
	init, assumed := a.initialized[className]
	return !assumed || init, nil
}

func (a *AlwaysSat) IsSatNotInitialized(className string) (bool, error) {
	init, assumed := a.initialized[className]
	return !assumed || !init, nil
}

func (a *AlwaysSat) Simplify(p value.Primitive) (value.Primitive, error) { return p, nil }

func (a *AlwaysSat) GoFastAndImprecise()   {}
func (a *AlwaysSat) StopFastAndImprecise() {}

func (a *AlwaysSat) Close() error { return nil }
