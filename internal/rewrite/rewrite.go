// Package rewrite implements the canonicalization/simplification
// pipeline: a chain of Rewriters, each a Visitor over the primitive
// algebra, applied after every Expression/Conversion/
// FunctionApplication the Calculator builds.
package rewrite

import "github.com/gangz/jbse/internal/value"

// Rewriter rewrites one primitive node at a time. Implementations
// override only the node kinds they care about; Base's defaults pass
// the node through unchanged, so a Rewriter that e.g. only folds
// constants does not need to implement all eleven Visit methods itself.
type Rewriter interface {
	value.Visitor
	// Result returns the value produced by the most recent Accept call.
	Result() value.Value
}

// Base is embedded by concrete rewriters to supply identity defaults for
// every node kind; a concrete rewriter overrides the handful of Visit*
// methods its law is about, and calls Base.setResult in each override.
type Base struct {
	result value.Value
}

func (b *Base) Result() value.Value { return b.result }

func (b *Base) setResult(v value.Value) { b.result = v }

func (b *Base) VisitSimplex(s *value.Simplex) any                         { b.setResult(s); return nil }
func (b *Base) VisitTerm(t *value.Term) any                               { b.setResult(t); return nil }
func (b *Base) VisitAny(a *value.Any) any                                 { b.setResult(a); return nil }
func (b *Base) VisitExpression(e *value.Expression) any                   { b.setResult(e); return nil }
func (b *Base) VisitWideningConversion(w *value.WideningConversion) any   { b.setResult(w); return nil }
func (b *Base) VisitNarrowingConversion(n *value.NarrowingConversion) any { b.setResult(n); return nil }
func (b *Base) VisitFunctionApplication(f *value.FunctionApplication) any { b.setResult(f); return nil }
func (b *Base) VisitReferenceConcrete(r *value.ReferenceConcrete) any     { b.setResult(r); return nil }
func (b *Base) VisitReferenceSymbolic(r *value.ReferenceSymbolic) any     { b.setResult(r); return nil }
func (b *Base) VisitNull(n *value.Null) any                               { b.setResult(n); return nil }
func (b *Base) VisitConstantPoolString(c *value.ConstantPoolString) any   { b.setResult(c); return nil }

// Chain composes a fixed, ordered sequence of Rewriters into one
// Rewriter: each rewrites the previous one's result in turn, bottom-up
// on the subtree the outer Calculator call is building. Rewriters are
// applied in the configured order on every node.
type Chain struct {
	rewriters []func() Rewriter
}

// DefaultChain is the rewriter sequence every Calculator uses unless
// overridden: constant folding first (so later laws see folded
// constants), then the algebraic identity laws, associativity
// canonicalization, inverse cancellation, and comparison normalization.
func DefaultChain() *Chain {
	return NewChain(
		func() Rewriter { return &ConstantFolding{} },
		func() Rewriter { return &IdentityLaws{} },
		func() Rewriter { return &Associativity{} },
		func() Rewriter { return &InverseCancellation{} },
		func() Rewriter { return &ComparisonNormalization{} },
	)
}

func NewChain(factories ...func() Rewriter) *Chain {
	return &Chain{rewriters: factories}
}

// Rewrite runs v through the whole chain once. Each rewriter individually
// maintains the "already normal form" check (so a no-op rewriter
// returns the identical node), which combined with running the chain
// exactly once per Calculator call gives idempotence:
// rewrite(rewrite(p)) = rewrite(p), since re-running the full chain on
// an already-normalized node is a no-op at every stage.
func (c *Chain) Rewrite(v value.Value) value.Value {
	current := v
	for _, factory := range c.rewriters {
		r := factory()
		current.Accept(r)
		current = r.Result()
	}
	return current
}
