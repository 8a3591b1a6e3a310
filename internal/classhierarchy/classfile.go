// Package classhierarchy is the read-only class/field/method oracle.
// Class-file binary parsing is an external collaborator; this package
// consumes already-parsed
// ClassFile records, registered programmatically on a Hierarchy, and
// implements the hosted-VM resolution and accessibility rules over them.
package classhierarchy

import (
	"github.com/gangz/jbse/internal/typ"
)

// Access flags, the subset the engine consults.
const (
	AccPublic    = 0x0001
	AccPrivate   = 0x0002
	AccProtected = 0x0004
	AccStatic    = 0x0008
	AccFinal     = 0x0010
	AccInterface = 0x0200
	AccAbstract  = 0x0400
	AccNative    = 0x0100
)

// ClassFile is the parsed form of one class: constant pool, fields,
// methods, supers, interfaces and access flags.
type ClassFile struct {
	Name         string
	SuperName    string // "" for the root class
	Interfaces   []string
	AccessFlags  int
	Fields       []Field
	Methods      []Method
	ConstantPool []ConstantPoolEntry
}

func (cf *ClassFile) IsInterface() bool { return cf.AccessFlags&AccInterface != 0 }

// Field is one declared field. A static final field compiled with a
// ConstantValue attribute carries its literal here; the getstatic
// carve-out reads it without forcing class initialization.
type Field struct {
	Signature   typ.Signature
	AccessFlags int
	// HasConstantValue marks a compile-time-constant static field;
	// ConstantValue then holds the host literal (int64/float32/float64)
	// or, for a string constant, a string.
	HasConstantValue bool
	ConstantValue    any
}

func (f *Field) IsStatic() bool { return f.AccessFlags&AccStatic != 0 }
func (f *Field) IsFinal() bool  { return f.AccessFlags&AccFinal != 0 }

// Method is one declared method with its code attribute, when present.
type Method struct {
	Signature   typ.Signature
	AccessFlags int
	Code        []byte
	MaxLocals   int
	Handlers    []ExceptionHandler
}

func (m *Method) IsStatic() bool   { return m.AccessFlags&AccStatic != 0 }
func (m *Method) IsNative() bool   { return m.AccessFlags&AccNative != 0 }
func (m *Method) IsAbstract() bool { return m.AccessFlags&AccAbstract != 0 }

// ExceptionHandler is one row of a method's exception table: the pc
// range it covers, the handler pc, and the caught class ("" catches
// everything, like a finally block).
type ExceptionHandler struct {
	StartPC   int
	EndPC     int
	HandlerPC int
	CatchType string
}

// Covers reports whether the handler's protected range contains pc.
func (h *ExceptionHandler) Covers(pc int) bool {
	return pc >= h.StartPC && pc < h.EndPC
}

// ConstantPoolEntry is one slot of the class's constant pool, the
// subset of entry kinds the algorithm catalog dereferences.
type ConstantPoolEntry struct {
	Kind CPKind
	// Int/Float/Double/Long/String literal payload for CPInt..CPString.
	Value any
	// Sig for CPFieldRef/CPMethodRef/CPInterfaceMethodRef; ClassName for
	// CPClass.
	Sig       typ.Signature
	ClassName string
}

type CPKind int

const (
	CPInt CPKind = iota
	CPLong
	CPFloat
	CPDouble
	CPString
	CPClass
	CPFieldRef
	CPMethodRef
	CPInterfaceMethodRef
)

// FieldRefAt dereferences a field-reference constant pool entry.
func (cf *ClassFile) FieldRefAt(index int) (typ.Signature, error) {
	e, err := cf.entryAt(index)
	if err != nil {
		return typ.Signature{}, err
	}
	if e.Kind != CPFieldRef {
		return typ.Signature{}, &InvalidIndexError{ClassName: cf.Name, Index: index}
	}
	return e.Sig, nil
}

// MethodRefAt dereferences a method- or interface-method-reference
// entry; interface reports which kind was found.
func (cf *ClassFile) MethodRefAt(index int) (sig typ.Signature, isInterface bool, err error) {
	e, err := cf.entryAt(index)
	if err != nil {
		return typ.Signature{}, false, err
	}
	switch e.Kind {
	case CPMethodRef:
		return e.Sig, false, nil
	case CPInterfaceMethodRef:
		return e.Sig, true, nil
	default:
		return typ.Signature{}, false, &InvalidIndexError{ClassName: cf.Name, Index: index}
	}
}

// ClassRefAt dereferences a class-reference entry.
func (cf *ClassFile) ClassRefAt(index int) (string, error) {
	e, err := cf.entryAt(index)
	if err != nil {
		return "", err
	}
	if e.Kind != CPClass {
		return "", &InvalidIndexError{ClassName: cf.Name, Index: index}
	}
	return e.ClassName, nil
}

// ConstantAt dereferences a loadable literal entry (ldc family).
func (cf *ClassFile) ConstantAt(index int) (*ConstantPoolEntry, error) {
	e, err := cf.entryAt(index)
	if err != nil {
		return nil, err
	}
	switch e.Kind {
	case CPInt, CPLong, CPFloat, CPDouble, CPString:
		return e, nil
	default:
		return nil, &InvalidIndexError{ClassName: cf.Name, Index: index}
	}
}

func (cf *ClassFile) entryAt(index int) (*ConstantPoolEntry, error) {
	if index < 0 || index >= len(cf.ConstantPool) {
		return nil, &InvalidIndexError{ClassName: cf.Name, Index: index}
	}
	return &cf.ConstantPool[index], nil
}

// FindField returns the field declared directly on cf with the given
// name, without walking the hierarchy.
func (cf *ClassFile) FindField(name string) (*Field, bool) {
	for i := range cf.Fields {
		if cf.Fields[i].Signature.Name == name {
			return &cf.Fields[i], true
		}
	}
	return nil, false
}

// FindMethod returns the method declared directly on cf with the given
// name and descriptor.
func (cf *ClassFile) FindMethod(name, descriptor string) (*Method, bool) {
	for i := range cf.Methods {
		m := &cf.Methods[i]
		if m.Signature.Name == name && m.Signature.Descriptor == descriptor {
			return m, true
		}
	}
	return nil, false
}

// HasClinit reports whether cf declares a static initializer.
func (cf *ClassFile) HasClinit() bool {
	_, ok := cf.FindMethod("<clinit>", "()V")
	return ok
}

// InstanceFieldSignatures collects the non-static field signatures of cf
// and its whole superclass chain, the set an Instance allocation carries.
func (h *Hierarchy) InstanceFieldSignatures(className string) ([]typ.Signature, error) {
	var sigs []typ.Signature
	for name := className; name != ""; {
		cf, err := h.GetClassFile(name)
		if err != nil {
			return nil, err
		}
		for i := range cf.Fields {
			if !cf.Fields[i].IsStatic() {
				sigs = append(sigs, cf.Fields[i].Signature)
			}
		}
		name = cf.SuperName
	}
	return sigs, nil
}

// StaticFieldSignatures collects the static field signatures declared
// directly on className, the set its Klass carries.
func (h *Hierarchy) StaticFieldSignatures(className string) ([]typ.Signature, error) {
	cf, err := h.GetClassFile(className)
	if err != nil {
		return nil, err
	}
	var sigs []typ.Signature
	for i := range cf.Fields {
		if cf.Fields[i].IsStatic() {
			sigs = append(sigs, cf.Fields[i].Signature)
		}
	}
	return sigs, nil
}
