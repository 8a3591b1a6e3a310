package value

import "github.com/gangz/jbse/internal/typ"

// Null is the singleton null-reference value, distinct from
// ReferenceConcrete's IsNull flag: Null denotes the literal "null"
// constant as it appears pre-assignment (e.g. the aconst_null result),
// while a ReferenceConcrete with IsNull set is a local/field/stack slot
// that has been assigned that null value.
type Null struct{}

var theNull = &Null{}

// TheNull returns the shared Null singleton.
func TheNull() *Null { return theNull }

func (n *Null) Type() typ.Tag    { return typ.Null }
func (n *Null) IsSymbolic() bool { return false }
func (n *Null) value()           {}
func (n *Null) String() string   { return "null" }

func (n *Null) Accept(v Visitor) any { return v.VisitNull(n) }

// ConstantPoolString is a constant-pool UTF8 literal not yet lifted to a
// heap-resident String instance. State.ReferenceToStringLiteral
// performs the lift (interning).
type ConstantPoolString struct {
	Literal string
}

func NewConstantPoolString(literal string) *ConstantPoolString {
	return &ConstantPoolString{Literal: literal}
}

func (c *ConstantPoolString) Type() typ.Tag    { return typ.Reference }
func (c *ConstantPoolString) IsSymbolic() bool { return false }
func (c *ConstantPoolString) value()           {}
func (c *ConstantPoolString) String() string   { return c.Literal }

func (c *ConstantPoolString) Accept(v Visitor) any { return v.VisitConstantPoolString(c) }
