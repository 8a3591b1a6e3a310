package value

import (
	"fmt"

	"github.com/gangz/jbse/internal/typ"
)

// WideningConversion widens Arg (a smaller primitive type) to DstTag
// without loss, e.g. int -> long, float -> double.
type WideningConversion struct {
	primitiveBase
	Arg Primitive
}

func NewWideningConversion(calc Calculator, dst typ.Tag, arg Primitive) *WideningConversion {
	return &WideningConversion{primitiveBase: primitiveBase{tag: dst, calc: calc}, Arg: arg}
}

func (w *WideningConversion) IsSymbolic() bool { return true }

func (w *WideningConversion) String() string {
	return fmt.Sprintf("(%s) %s", w.Type(), w.Arg)
}

func (w *WideningConversion) Accept(v Visitor) any { return v.VisitWideningConversion(w) }

// NarrowingConversion narrows Arg to DstTag, potentially lossy (e.g.
// int -> byte truncates, double -> int truncates toward zero).
type NarrowingConversion struct {
	primitiveBase
	Arg Primitive
}

func NewNarrowingConversion(calc Calculator, dst typ.Tag, arg Primitive) *NarrowingConversion {
	return &NarrowingConversion{primitiveBase: primitiveBase{tag: dst, calc: calc}, Arg: arg}
}

func (n *NarrowingConversion) IsSymbolic() bool { return true }

func (n *NarrowingConversion) String() string {
	return fmt.Sprintf("(%s) %s", n.Type(), n.Arg)
}

func (n *NarrowingConversion) Accept(v Visitor) any { return v.VisitNarrowingConversion(n) }
