package rewrite

import "github.com/gangz/jbse/internal/value"

// Associativity canonicalizes the operand order of commutative operators
// by a stable string key, so that e.g. "y + x" and "x + y" rewrite to
// the same Expression and structurally equal subtrees collapse to a
// single canonical form. This is also what lets
// value.Equal (string-based structural equality) treat commuted
// duplicates as equal.
type Associativity struct {
	Base
}

var commutative = map[value.Operator]bool{
	value.Add:     true,
	value.Mul:     true,
	value.And:     true,
	value.Or:      true,
	value.Xor:     true,
	value.Eq:      true,
	value.Ne:      true,
	value.BoolAnd: true,
	value.BoolOr:  true,
}

func (a *Associativity) VisitExpression(e *value.Expression) any {
	if e.Unary || !commutative[e.Operator] {
		a.setResult(e)
		return nil
	}
	if e.Left.String() > e.Right.String() {
		a.setResult(value.NewExpression(e.Calc(), e.Type(), false, e.Operator, e.Right, e.Left))
		return nil
	}
	a.setResult(e)
	return nil
}
