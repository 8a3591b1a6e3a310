package z3dec

import (
	"fmt"

	"github.com/ebukreev/go-z3/z3"

	"github.com/gangz/jbse/internal/typ"
	"github.com/gangz/jbse/internal/value"
)

// translator lowers the primitive algebra to Z3 ASTs: one Visit method
// per node kind and a cache of named constants. Integral primitives
// map to mathematical
// integers and booleans to Z3 booleans; floating-point subtrees,
// bitwise/shift operators and function applications have no native
// interpretation here and become uninterpreted constants cached by
// their canonical string form, so structurally equal subtrees share one
// constant.
type translator struct {
	ctx  *z3.Context
	vars map[string]z3.Value
	err  error
}

func newTranslator(ctx *z3.Context) *translator {
	return &translator{ctx: ctx, vars: make(map[string]z3.Value)}
}

func (t *translator) reset() {
	t.vars = make(map[string]z3.Value)
}

// translate lowers p; a nil result carries the failure in t.err.
func (t *translator) translate(p value.Value) (z3.Value, error) {
	t.err = nil
	res := p.Accept(t)
	if t.err != nil {
		return nil, t.err
	}
	v, ok := res.(z3.Value)
	if !ok {
		return nil, fmt.Errorf("translation of %s produced no Z3 value", p)
	}
	return v, nil
}

// translateBool lowers a boolean-typed primitive.
func (t *translator) translateBool(p value.Value) (z3.Bool, error) {
	v, err := t.translate(p)
	if err != nil {
		return z3.Bool{}, err
	}
	b, ok := v.(z3.Bool)
	if !ok {
		return z3.Bool{}, fmt.Errorf("%s is not boolean under translation", p)
	}
	return b, nil
}

func (t *translator) fail(format string, args ...any) any {
	if t.err == nil {
		t.err = fmt.Errorf(format, args...)
	}
	return nil
}

// namedConst returns the cached constant for name, creating it with the
// sort matching tag on first use.
func (t *translator) namedConst(name string, tag typ.Tag) z3.Value {
	if v, cached := t.vars[name]; cached {
		return v
	}
	var v z3.Value
	switch {
	case tag == typ.Boolean:
		v = t.ctx.BoolConst(name)
	case tag.IsFloatingPoint():
		v = t.ctx.RealConst(name)
	default:
		v = t.ctx.IntConst(name)
	}
	t.vars[name] = v
	return v
}

func (t *translator) VisitSimplex(s *value.Simplex) any {
	switch s.Type() {
	case typ.Boolean:
		return t.ctx.FromBool(s.Bool())
	case typ.Float, typ.Double:
		// Folded by the calculator when possible; an unfolded float
		// literal becomes an uninterpreted real.
		return t.namedConst("fp:"+s.String(), s.Type())
	default:
		return t.ctx.FromInt(s.Int64(), t.ctx.IntSort())
	}
}

func (t *translator) VisitTerm(term *value.Term) any {
	return t.namedConst(term.String(), term.Type())
}

func (t *translator) VisitAny(a *value.Any) any {
	return t.namedConst("any:"+a.Type().String(), a.Type())
}

func (t *translator) VisitExpression(e *value.Expression) any {
	if e.Unary {
		return t.visitUnary(e)
	}
	if uninterpreted(e.Operator) || e.Left.Type().IsFloatingPoint() || e.Right.Type().IsFloatingPoint() {
		return t.namedConst(e.String(), e.Type())
	}
	left := e.Left.Accept(t)
	right := e.Right.Accept(t)
	if t.err != nil {
		return nil
	}

	switch e.Operator {
	case value.BoolAnd:
		return left.(z3.Bool).And(right.(z3.Bool))
	case value.BoolOr:
		return left.(z3.Bool).Or(right.(z3.Bool))
	}

	if e.Operator.IsComparison() {
		if e.Left.Type() == typ.Boolean {
			lb, rb := left.(z3.Bool), right.(z3.Bool)
			switch e.Operator {
			case value.Eq:
				return lb.Eq(rb)
			case value.Ne:
				return lb.Eq(rb).Not()
			default:
				return t.fail("ordered comparison %s on boolean operands", e.Operator)
			}
		}
		li, ri := left.(z3.Int), right.(z3.Int)
		switch e.Operator {
		case value.Eq:
			return li.Eq(ri)
		case value.Ne:
			return li.Eq(ri).Not()
		case value.Lt:
			return li.LT(ri)
		case value.Le:
			return li.LE(ri)
		case value.Gt:
			return li.GT(ri)
		default: // value.Ge
			return li.GE(ri)
		}
	}

	li, ri := left.(z3.Int), right.(z3.Int)
	switch e.Operator {
	case value.Add:
		return li.Add(ri)
	case value.Sub:
		return li.Sub(ri)
	case value.Mul:
		return li.Mul(ri)
	case value.Div:
		return li.Div(ri)
	case value.Rem:
		return li.Mod(ri)
	default:
		return t.fail("binary operator %s has no Z3 interpretation", e.Operator)
	}
}

func (t *translator) visitUnary(e *value.Expression) any {
	arg := e.Left.Accept(t)
	if t.err != nil {
		return nil
	}
	switch e.Operator {
	case value.BoolNot:
		return arg.(z3.Bool).Not()
	case value.Neg:
		if e.Type().IsFloatingPoint() {
			return t.namedConst(e.String(), e.Type())
		}
		return arg.(z3.Int).Neg()
	default:
		return t.fail("unary operator %s has no Z3 interpretation", e.Operator)
	}
}

// uninterpreted lists the operators the mathematical-integer theory
// cannot express; they are abstracted to uninterpreted constants, as
// the FunctionApplication kind documents.
func uninterpreted(op value.Operator) bool {
	switch op {
	case value.And, value.Or, value.Xor, value.Shl, value.Shr, value.Ushr, value.Cmp:
		return true
	default:
		return false
	}
}

func (t *translator) VisitWideningConversion(w *value.WideningConversion) any {
	// Widenings between integral types are identities over mathematical
	// integers; a widening into floating point is abstracted.
	if w.Type().IsFloatingPoint() {
		return t.namedConst(w.String(), w.Type())
	}
	return w.Arg.Accept(t)
}

func (t *translator) VisitNarrowingConversion(n *value.NarrowingConversion) any {
	// Narrowing truncates; there is no mathematical-integer equivalent,
	// so the whole subtree is abstracted.
	return t.namedConst(n.String(), n.Type())
}

func (t *translator) VisitFunctionApplication(f *value.FunctionApplication) any {
	return t.namedConst(f.String(), f.Type())
}

func (t *translator) VisitReferenceConcrete(r *value.ReferenceConcrete) any {
	return t.fail("reference %s is not a primitive", r)
}

func (t *translator) VisitReferenceSymbolic(r *value.ReferenceSymbolic) any {
	return t.fail("reference %s is not a primitive", r)
}

func (t *translator) VisitNull(*value.Null) any {
	return t.fail("null is not a primitive")
}

func (t *translator) VisitConstantPoolString(c *value.ConstantPoolString) any {
	return t.fail("string literal %q is not a primitive", c.Literal)
}
