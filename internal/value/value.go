// Package value implements the symbolic value algebra: the
// sum type every heap slot, stack slot and local variable holds, built
// exclusively through a Calculator (see internal/calc) and rewritten by
// a Rewriter chain (see internal/rewrite).
package value

import "github.com/gangz/jbse/internal/typ"

// Value is the sealed sum type of the algebra. Every variant implements
// Type, String and Accept; the unexported value() marker method keeps
// the set closed to this package.
type Value interface {
	Type() typ.Tag
	String() string
	Accept(v Visitor) any
	IsSymbolic() bool
	value()
}

// Primitive is the subset of Value that the Calculator operates over:
// Simplex, Term, Any, Expression, the two Conversions and
// FunctionApplication. Every Primitive carries a back-pointer to the
// Calculator that built it, so combinators can build derived values without the
// caller re-threading a Calculator handle.
type Primitive interface {
	Value
	Calc() Calculator
}

// Calculator is the subset of internal/calc's Calculator interface that
// a Primitive needs for its back-pointer; kept here (rather than
// importing internal/calc) to avoid a value<->calc import cycle, since
// internal/calc necessarily imports internal/value to build Values.
type Calculator interface {
	Add(left, right Primitive) (Primitive, error)
	Sub(left, right Primitive) (Primitive, error)
	Mul(left, right Primitive) (Primitive, error)
	Div(left, right Primitive) (Primitive, error)
	Rem(left, right Primitive) (Primitive, error)
	And(left, right Primitive) (Primitive, error)
	Or(left, right Primitive) (Primitive, error)
	Xor(left, right Primitive) (Primitive, error)
	Shl(left, right Primitive) (Primitive, error)
	Shr(left, right Primitive) (Primitive, error)
	Ushr(left, right Primitive) (Primitive, error)
	Cmp(left, right Primitive) (Primitive, error)
	Neg(v Primitive) (Primitive, error)
	Compare(op Operator, left, right Primitive) (Primitive, error)
	BoolAnd(left, right Primitive) (Primitive, error)
	BoolOr(left, right Primitive) (Primitive, error)
	BoolNot(v Primitive) (Primitive, error)
	Widen(dst typ.Tag, v Primitive) (Primitive, error)
	Narrow(dst typ.Tag, v Primitive) (Primitive, error)
}

// Visitor is the double-dispatch target for every Value variant, used
// by both internal/rewrite (rewriting) and internal/decision/z3dec
// (translation to Z3 ASTs).
type Visitor interface {
	VisitSimplex(*Simplex) any
	VisitTerm(*Term) any
	VisitAny(*Any) any
	VisitExpression(*Expression) any
	VisitWideningConversion(*WideningConversion) any
	VisitNarrowingConversion(*NarrowingConversion) any
	VisitFunctionApplication(*FunctionApplication) any
	VisitReferenceConcrete(*ReferenceConcrete) any
	VisitReferenceSymbolic(*ReferenceSymbolic) any
	VisitNull(*Null) any
	VisitConstantPoolString(*ConstantPoolString) any
}

// primitiveBase is embedded by every Primitive variant to supply the
// Calculator back-pointer and the type tag without repeating both fields
// in every struct literal.
type primitiveBase struct {
	tag  typ.Tag
	calc Calculator
}

func (b primitiveBase) Type() typ.Tag    { return b.tag }
func (b primitiveBase) Calc() Calculator { return b.calc }
func (primitiveBase) value()             {}

// Equal reports structural equality by semantic content: two
// Expressions with structurally equal subtrees are equal, and two
// distinct Value instances are equal iff their canonical string forms
// match. This is the cheap, allocation-free substitute for a proper
// structural walk and is what the rewrite chain's hash-consing keys on.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Type() == b.Type() && a.String() == b.String()
}
