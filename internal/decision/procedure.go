// Package decision defines the decision-procedure boundary: the
// Procedure interface the engine queries for
// feasibility, the DecisionAlternative enumeration with its stable
// ordering, and a chain-of-responsibility composition so a cheap
// syntactic decider can answer before an SMT backend is consulted.
package decision

import (
	"errors"

	"github.com/gangz/jbse/internal/mem"
	"github.com/gangz/jbse/internal/value"
)

// ErrNoDecision is returned by a Procedure in a chain that cannot answer
// the query; the chain falls through to the next link.
var ErrNoDecision = errors.New("procedure cannot decide")

// ErrContradiction reports that a pushed assumption made the current
// path condition unsatisfiable: the state is infeasible and the runner
// must prune it.
var ErrContradiction = errors.New("path condition is contradictory")

// Procedure is the oracle over path-condition clauses. It
// is stateful with respect to the current path condition: the engine
// calls SetAssumptions before the first query on a state, then
// incremental PushAssumption for clauses appended thereafter.
type Procedure interface {
	// SetAssumptions replaces the procedure's assumption set with the
	// given path condition, in order.
	SetAssumptions(clauses []mem.Clause) error
	// PushAssumption appends one clause. Outside fast-and-imprecise
	// mode the procedure checks consistency and returns ErrContradiction
	// when the assumption set becomes unsatisfiable.
	PushAssumption(c mem.Clause) error

	// IsSat reports whether cond is satisfiable under the current
	// assumptions.
	IsSat(cond value.Primitive) (bool, error)
	// IsSatNull reports whether ref may resolve to null.
	IsSatNull(ref *value.ReferenceSymbolic) (bool, error)
	// IsSatAliases reports whether ref may alias the object at heapPos.
	IsSatAliases(ref *value.ReferenceSymbolic, heapPos int64, obj mem.Objekt) (bool, error)
	// IsSatExpands reports whether ref may expand to a fresh instance of
	// className.
	IsSatExpands(ref *value.ReferenceSymbolic, className string) (bool, error)
	// IsSatInitialized / IsSatNotInitialized report whether className
	// may be assumed (not) initialized before the execution started.
	IsSatInitialized(className string) (bool, error)
	IsSatNotInitialized(className string) (bool, error)

	// Simplify returns a primitive equivalent to p under the current
	// assumptions; a procedure with no simplification returns p.
	Simplify(p value.Primitive) (value.Primitive, error)

	// GoFastAndImprecise / StopFastAndImprecise toggle the mode that
	// skips consistency checks on batched PushAssumption calls
	//.
	GoFastAndImprecise()
	StopFastAndImprecise()

	// Close releases backend resources; scoped to the runner's lifetime
	//.
	Close() error
}
