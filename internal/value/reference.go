package value

import (
	"fmt"

	"github.com/gangz/jbse/internal/typ"
)

// ReferenceConcrete is a reference already resolved to a specific heap
// position (or to null).
type ReferenceConcrete struct {
	HeapPos int64
	IsNull  bool
}

func NewReferenceConcrete(heapPos int64) *ReferenceConcrete {
	return &ReferenceConcrete{HeapPos: heapPos}
}

func NewReferenceConcreteNull() *ReferenceConcrete {
	return &ReferenceConcrete{IsNull: true}
}

func (r *ReferenceConcrete) Type() typ.Tag { return typ.Reference }
func (r *ReferenceConcrete) IsSymbolic() bool { return false }
func (r *ReferenceConcrete) value()           {}

func (r *ReferenceConcrete) String() string {
	if r.IsNull {
		return "null"
	}
	return fmt.Sprintf("Object[%d]", r.HeapPos)
}

func (r *ReferenceConcrete) Accept(v Visitor) any { return v.VisitReferenceConcrete(r) }

// ReferenceSymbolic is a reference whose resolution (null / alias / fresh
// expansion) is not yet fixed on this path. Origin is a human-readable
// access-path expression such as "ROOT.field.next", used both for
// display and as the string a LICS rule's glob pattern is matched
// against.
type ReferenceSymbolic struct {
	Origin string
	ID     int
	// StaticType is the declared reference type at the point the
	// symbolic reference was created; used to enumerate EXPANDS
	// alternatives.
	StaticType string
}

func NewReferenceSymbolic(id int, origin, staticType string) *ReferenceSymbolic {
	return &ReferenceSymbolic{Origin: origin, ID: id, StaticType: staticType}
}

func (r *ReferenceSymbolic) Type() typ.Tag { return typ.Reference }
func (r *ReferenceSymbolic) IsSymbolic() bool { return true }
func (r *ReferenceSymbolic) value()           {}

func (r *ReferenceSymbolic) String() string { return r.Origin }

func (r *ReferenceSymbolic) Accept(v Visitor) any { return v.VisitReferenceSymbolic(r) }
