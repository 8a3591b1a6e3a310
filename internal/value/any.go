package value

import "github.com/gangz/jbse/internal/typ"

// Any is the wildcard primitive, used in quantified
// contexts (e.g. a LICS rule asserting a property for every value of a
// type without naming one). It carries a type tag but no identity.
type Any struct {
	primitiveBase
}

func NewAny(calc Calculator, tag typ.Tag) *Any {
	return &Any{primitiveBase: primitiveBase{tag: tag, calc: calc}}
}

func (a *Any) IsSymbolic() bool { return true }

func (a *Any) String() string { return "*" }

func (a *Any) Accept(v Visitor) any { return v.VisitAny(a) }
