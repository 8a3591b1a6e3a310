package value

import (
	"strings"

	"github.com/gangz/jbse/internal/typ"
)

// FunctionApplication models a primitive operation the algebra does not
// interpret directly — the bitwise/shift family when the decision
// procedure's backend has no native bitvector support (see
// internal/decision/z3dec), or a user-registered uninterpreted function.
type FunctionApplication struct {
	primitiveBase
	Name string
	Args []Primitive
}

func NewFunctionApplication(calc Calculator, tag typ.Tag, name string, args []Primitive) *FunctionApplication {
	return &FunctionApplication{primitiveBase: primitiveBase{tag: tag, calc: calc}, Name: name, Args: args}
}

func (f *FunctionApplication) IsSymbolic() bool { return true }

func (f *FunctionApplication) String() string {
	parts := make([]string, len(f.Args))
	for i, a := range f.Args {
		parts[i] = a.String()
	}
	return f.Name + "(" + strings.Join(parts, ", ") + ")"
}

func (f *FunctionApplication) Accept(v Visitor) any { return v.VisitFunctionApplication(f) }
