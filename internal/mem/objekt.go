// Package mem implements the mutable cells a State owns:
// the heap of Objekts, the static area of Klasses, the operand-stack
// Frame and thread Stack, and the append-only PathCondition.
package mem

import (
	"fmt"

	"github.com/gangz/jbse/internal/typ"
	"github.com/gangz/jbse/internal/value"
)

// Objekt is the sealed sum of heap object kinds: Instance
// and Array. Both expose the class name, the field signatures they
// carry and typed get/put.
type Objekt interface {
	ClassName() string
	Signatures() []typ.Signature
	GetFieldValue(sig typ.Signature) (value.Value, bool)
	PutFieldValue(sig typ.Signature, v value.Value) error
	Clone() Objekt
	objekt()
}

// Instance is a heap object with named fields.
type Instance struct {
	className string
	fields    map[string]value.Value
	sigs      map[string]typ.Signature
}

// NewInstance allocates an Instance; the caller default-initializes
// every declared field before handing it to the heap, the same
// discipline Klass allocation follows for statics.
func NewInstance(className string, sigs []typ.Signature) *Instance {
	i := &Instance{
		className: className,
		fields:    make(map[string]value.Value, len(sigs)),
		sigs:      make(map[string]typ.Signature, len(sigs)),
	}
	for _, s := range sigs {
		i.sigs[s.Name] = s
	}
	return i
}

func (i *Instance) objekt() {}

func (i *Instance) ClassName() string { return i.className }

func (i *Instance) Signatures() []typ.Signature {
	out := make([]typ.Signature, 0, len(i.sigs))
	for _, s := range i.sigs {
		out = append(out, s)
	}
	return out
}

func (i *Instance) GetFieldValue(sig typ.Signature) (value.Value, bool) {
	v, ok := i.fields[sig.Name]
	return v, ok
}

// PutFieldValue enforces the invariant "every field's stored value has
// a type tag compatible with the signature descriptor".
func (i *Instance) PutFieldValue(sig typ.Signature, v value.Value) error {
	if _, declared := i.sigs[sig.Name]; !declared {
		return fmt.Errorf("field %s not declared on %s", sig.Name, i.className)
	}
	if want := sig.ReturnTag(); want != 0 && v.Type() != want && !compatibleReferenceAssignment(want, v.Type()) {
		return fmt.Errorf("field %s expects type %s, got %s", sig.Name, want, v.Type())
	}
	i.fields[sig.Name] = v
	return nil
}

func (i *Instance) Clone() Objekt {
	c := &Instance{className: i.className, fields: make(map[string]value.Value, len(i.fields)), sigs: i.sigs}
	for k, v := range i.fields {
		c.fields[k] = v
	}
	return c
}

// compatibleReferenceAssignment allows any reference-kind value
// (concrete ref, symbolic ref, null, constant-pool string) into a
// reference-typed field slot without requiring an exact tag match —
// the declaring descriptor names a class, not one of the reference
// Value variants.
func compatibleReferenceAssignment(want, got typ.Tag) bool {
	return want.IsReference() && got.IsReference()
}

// Array is a heap object holding a length and an index->value mapping
// where both index and value may be symbolic.
type Array struct {
	elemType typ.Tag
	length   value.Value
	elems    map[int64]value.Value
	// symbolicElems holds writes at a symbolic index, checked linearly
	// on read since they cannot be keyed by a concrete int64.
	symbolicElems []symbolicElem
}

type symbolicElem struct {
	index value.Value
	val   value.Value
}

func NewArray(elemType typ.Tag, length value.Value) *Array {
	return &Array{elemType: elemType, length: length, elems: make(map[int64]value.Value)}
}

func (a *Array) objekt() {}

func (a *Array) ClassName() string { return "[" + string(a.elemType) }

func (a *Array) Signatures() []typ.Signature { return nil }

func (a *Array) GetFieldValue(typ.Signature) (value.Value, bool) { return nil, false }

func (a *Array) PutFieldValue(typ.Signature, value.Value) error {
	return fmt.Errorf("array has no named fields")
}

func (a *Array) Length() value.Value { return a.length }

func (a *Array) ElemType() typ.Tag { return a.elemType }

// GetElement reads the slot at index, which may itself be symbolic
//. A concrete
// Simplex index is looked up directly; a symbolic index falls back to
// the slower structural scan over prior symbolic writes.
func (a *Array) GetElement(index value.Value) (value.Value, bool) {
	if s, ok := index.(*value.Simplex); ok {
		v, present := a.elems[s.Int64()]
		return v, present
	}
	for _, e := range a.symbolicElems {
		if value.Equal(e.index, index) {
			return e.val, true
		}
	}
	return nil, false
}

func (a *Array) PutElement(index, v value.Value) {
	if s, ok := index.(*value.Simplex); ok {
		a.elems[s.Int64()] = v
		return
	}
	for i, e := range a.symbolicElems {
		if value.Equal(e.index, index) {
			a.symbolicElems[i].val = v
			return
		}
	}
	a.symbolicElems = append(a.symbolicElems, symbolicElem{index: index, val: v})
}

func (a *Array) Clone() Objekt {
	c := &Array{elemType: a.elemType, length: a.length, elems: make(map[int64]value.Value, len(a.elems))}
	for k, v := range a.elems {
		c.elems[k] = v
	}
	c.symbolicElems = append(c.symbolicElems, a.symbolicElems...)
	return c
}
