// Package ectx carries the shared execution context every Algorithm
// receives: the borrowed process-wide
// services plus the per-step successor collector. Splitting it out of
// the engine breaks the algo<->engine import cycle.
package ectx

import (
	"github.com/gangz/jbse/internal/calc"
	"github.com/gangz/jbse/internal/classhierarchy"
	"github.com/gangz/jbse/internal/decision"
	"github.com/gangz/jbse/internal/lics"
	"github.com/gangz/jbse/internal/state"
)

// Ctx is handed to Algorithm.Exec. Calc, Hier, Dec and Rules are
// effectively immutable for the run; successors accumulate during one
// step and are drained by the engine.
type Ctx struct {
	Calc  *calc.Calculator
	Hier  *classhierarchy.Hierarchy
	Dec   decision.Procedure
	Rules *lics.RuleSet

	// HeapScope caps the per-class heap population a state may reach
	// through EXPANDS; 0 is unbounded. The check is made against each
	// candidate state's own heap at resolution time, so sibling paths
	// never consume each other's budget.
	HeapScope int

	successors []*state.State
}

func New(c *calc.Calculator, hier *classhierarchy.Hierarchy, dec decision.Procedure, rules *lics.RuleSet) *Ctx {
	return &Ctx{
		Calc:  c,
		Hier:  hier,
		Dec:   dec,
		Rules: rules,
	}
}

// AddSuccessor appends one forked child in discovery order.
func (c *Ctx) AddSuccessor(s *state.State) { c.successors = append(c.successors, s) }

// DrainSuccessors returns and clears the children the last Exec
// produced.
func (c *Ctx) DrainSuccessors() []*state.State {
	out := c.successors
	c.successors = nil
	return out
}
