package decision

import (
	"github.com/pkg/errors"

	"github.com/gangz/jbse/internal/mem"
	"github.com/gangz/jbse/internal/value"
)

// Chain composes Procedures in a chain of responsibility: each query
// is offered to the links in order, and the
// first link that does not return ErrNoDecision answers. Assumption
// maintenance (SetAssumptions/PushAssumption) is broadcast to every
// link, since any of them may be asked the next query.
type Chain struct {
	links []Procedure
}

func NewChain(links ...Procedure) *Chain {
	return &Chain{links: links}
}

func (c *Chain) SetAssumptions(clauses []mem.Clause) error {
	for _, l := range c.links {
		if err := l.SetAssumptions(clauses); err != nil {
			return errors.Wrap(err, "setting assumptions on chain link")
		}
	}
	return nil
}

func (c *Chain) PushAssumption(cl mem.Clause) error {
	for _, l := range c.links {
		if err := l.PushAssumption(cl); err != nil {
			return err
		}
	}
	return nil
}

func (c *Chain) IsSat(cond value.Primitive) (bool, error) {
	for _, l := range c.links {
		ok, err := l.IsSat(cond)
		if errors.Is(err, ErrNoDecision) {
			continue
		}
		return ok, err
	}
	return false, ErrNoDecision
}

func (c *Chain) IsSatNull(ref *value.ReferenceSymbolic) (bool, error) {
	for _, l := range c.links {
		ok, err := l.IsSatNull(ref)
		if errors.Is(err, ErrNoDecision) {
			continue
		}
		return ok, err
	}
	return false, ErrNoDecision
}

func (c *Chain) IsSatAliases(ref *value.ReferenceSymbolic, heapPos int64, obj mem.Objekt) (bool, error) {
	for _, l := range c.links {
		ok, err := l.IsSatAliases(ref, heapPos, obj)
		if errors.Is(err, ErrNoDecision) {
			continue
		}
		return ok, err
	}
	return false, ErrNoDecision
}

func (c *Chain) IsSatExpands(ref *value.ReferenceSymbolic, className string) (bool, error) {
	for _, l := range c.links {
		ok, err := l.IsSatExpands(ref, className)
		if errors.Is(err, ErrNoDecision) {
			continue
		}
		return ok, err
	}
	return false, ErrNoDecision
}

func (c *Chain) IsSatInitialized(className string) (bool, error) {
	for _, l := range c.links {
		ok, err := l.IsSatInitialized(className)
		if errors.Is(err, ErrNoDecision) {
			continue
		}
		return ok, err
	}
	return false, ErrNoDecision
}

func (c *Chain) IsSatNotInitialized(className string) (bool, error) {
	for _, l := range c.links {
		ok, err := l.IsSatNotInitialized(className)
		if errors.Is(err, ErrNoDecision) {
			continue
		}
		return ok, err
	}
	return false, ErrNoDecision
}

func (c *Chain) Simplify(p value.Primitive) (value.Primitive, error) {
	current := p
	for _, l := range c.links {
		simplified, err := l.Simplify(current)
		if errors.Is(err, ErrNoDecision) {
			continue
		}
		if err != nil {
			return nil, err
		}
		current = simplified
	}
	return current, nil
}

func (c *Chain) GoFastAndImprecise() {
	for _, l := range c.links {
		l.GoFastAndImprecise()
	}
}

func (c *Chain) StopFastAndImprecise() {
	for _, l := range c.links {
		l.StopFastAndImprecise()
	}
}

// Close releases every link, keeping the first error but closing the
// rest regardless.
func (c *Chain) Close() error {
	var first error
	for _, l := range c.links {
		if err := l.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
