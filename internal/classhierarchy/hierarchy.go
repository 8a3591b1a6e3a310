package classhierarchy

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/gangz/jbse/internal/typ"
)

// Hierarchy is the in-memory implementation of the oracle: a registry of
// ClassFiles plus the hosted-VM resolution and accessibility rules.
// Effectively immutable once populated; every State borrows the same
// instance.
type Hierarchy struct {
	classes map[string]*ClassFile
}

func New() *Hierarchy {
	return &Hierarchy{classes: make(map[string]*ClassFile)}
}

// Add registers a parsed class file. Later registrations under the same
// name replace earlier ones; callers populate the hierarchy before any
// state borrows it.
func (h *Hierarchy) Add(cf *ClassFile) { h.classes[cf.Name] = cf }

// Names returns every registered class name in lexicographic order, the
// order EXPANDS alternatives are enumerated in.
func (h *Hierarchy) Names() []string {
	names := make([]string, 0, len(h.classes))
	for n := range h.classes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// IsInstantiable reports whether name is a registered, concrete,
// non-interface class — the only kind a symbolic reference may expand
// to.
func (h *Hierarchy) IsInstantiable(name string) bool {
	cf, ok := h.classes[name]
	return ok && !cf.IsInterface() && cf.AccessFlags&AccAbstract == 0
}

func (h *Hierarchy) GetClassFile(name string) (*ClassFile, error) {
	cf, ok := h.classes[name]
	if !ok {
		return nil, &ClassFileNotFoundError{ClassName: name}
	}
	return cf, nil
}

// IsSubclass reports whether a is b or a transitive subclass (or
// subinterface implementor) of b.
func (h *Hierarchy) IsSubclass(a, b string) bool {
	if a == b {
		return true
	}
	cf, ok := h.classes[a]
	if !ok {
		return false
	}
	if cf.SuperName != "" && h.IsSubclass(cf.SuperName, b) {
		return true
	}
	for _, itf := range cf.Interfaces {
		if h.IsSubclass(itf, b) {
			return true
		}
	}
	return false
}

// IsAssignable decides reference assignability between two type names,
// where either may be an array descriptor ("[I", "[Lpkg/C;") or a plain
// class name. Arrays are covariant in their reference element type, as
// the hosted VM defines for aastore checks.
func (h *Hierarchy) IsAssignable(src, dst string) bool {
	if src == dst {
		return true
	}
	srcArr := strings.HasPrefix(src, "[")
	dstArr := strings.HasPrefix(dst, "[")
	switch {
	case srcArr && dstArr:
		se, de := src[1:], dst[1:]
		if strings.HasPrefix(se, "L") && strings.HasPrefix(de, "L") {
			return h.IsAssignable(trimClassDescriptor(se), trimClassDescriptor(de))
		}
		return se == de
	case srcArr && !dstArr:
		// An array is assignable only to java/lang/Object among
		// non-array targets.
		return dst == "java/lang/Object"
	case !srcArr && dstArr:
		return false
	default:
		return h.IsSubclass(src, dst)
	}
}

func trimClassDescriptor(d string) string {
	d = strings.TrimPrefix(d, "L")
	return strings.TrimSuffix(d, ";")
}

// ResolveField implements the hosted-VM field resolution order: the
// class named by the symbolic reference, then its
// direct superinterfaces recursively, then the superclass chain. The
// returned signature carries the actually declaring class.
func (h *Hierarchy) ResolveField(currentClass string, sig typ.Signature) (typ.Signature, error) {
	declaring, _, err := h.lookupField(sig.ClassName, sig.Name)
	if err != nil {
		return typ.Signature{}, err
	}
	resolved := sig.WithClass(declaring.Name)
	field, _ := declaring.FindField(sig.Name)
	if !h.isMemberAccessible(currentClass, declaring.Name, field.AccessFlags) {
		return typ.Signature{}, &FieldNotAccessibleError{ClassName: declaring.Name, FieldName: sig.Name, From: currentClass}
	}
	return resolved, nil
}

func (h *Hierarchy) lookupField(className, fieldName string) (*ClassFile, *Field, error) {
	cf, err := h.GetClassFile(className)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "resolving field %s", fieldName)
	}
	if f, ok := cf.FindField(fieldName); ok {
		return cf, f, nil
	}
	for _, itf := range cf.Interfaces {
		if dcf, f, err := h.lookupField(itf, fieldName); err == nil {
			return dcf, f, nil
		}
	}
	if cf.SuperName != "" {
		if dcf, f, err := h.lookupField(cf.SuperName, fieldName); err == nil {
			return dcf, f, nil
		}
	}
	return nil, nil, &FieldNotFoundError{ClassName: className, FieldName: fieldName}
}

// ResolveMethod implements method resolution: the named class, then the
// superclass chain, then superinterfaces. isInterface must match the
// resolved class's kind or resolution fails with MethodNotFound, the
// way the hosted VM raises IncompatibleClassChangeError for a
// class/interface kind mismatch.
func (h *Hierarchy) ResolveMethod(currentClass string, sig typ.Signature, isInterface bool) (typ.Signature, error) {
	start, err := h.GetClassFile(sig.ClassName)
	if err != nil {
		return typ.Signature{}, errors.Wrapf(err, "resolving method %s", sig.Name)
	}
	if start.IsInterface() != isInterface {
		return typ.Signature{}, &MethodNotFoundError{ClassName: sig.ClassName, MethodName: sig.Name}
	}
	declaring, method, err := h.lookupMethod(sig.ClassName, sig.Name, sig.Descriptor)
	if err != nil {
		return typ.Signature{}, err
	}
	if !h.isMemberAccessible(currentClass, declaring.Name, method.AccessFlags) {
		return typ.Signature{}, &MethodNotAccessibleError{ClassName: declaring.Name, MethodName: sig.Name, From: currentClass}
	}
	return sig.WithClass(declaring.Name), nil
}

func (h *Hierarchy) lookupMethod(className, name, descriptor string) (*ClassFile, *Method, error) {
	cf, err := h.GetClassFile(className)
	if err != nil {
		return nil, nil, err
	}
	if m, ok := cf.FindMethod(name, descriptor); ok {
		return cf, m, nil
	}
	if cf.SuperName != "" {
		if dcf, m, err := h.lookupMethod(cf.SuperName, name, descriptor); err == nil {
			return dcf, m, nil
		}
	}
	for _, itf := range cf.Interfaces {
		if dcf, m, err := h.lookupMethod(itf, name, descriptor); err == nil {
			return dcf, m, nil
		}
	}
	return nil, nil, &MethodNotFoundError{ClassName: className, MethodName: name}
}

// GetMethodCode returns the bytecode and frame size of a resolved
// method, failing with AttributeNotFound for abstract/native methods
// that carry no Code attribute.
func (h *Hierarchy) GetMethodCode(sig typ.Signature) (*Method, error) {
	cf, err := h.GetClassFile(sig.ClassName)
	if err != nil {
		return nil, err
	}
	m, ok := cf.FindMethod(sig.Name, sig.Descriptor)
	if !ok {
		return nil, &MethodNotFoundError{ClassName: sig.ClassName, MethodName: sig.Name}
	}
	if m.Code == nil {
		return nil, &AttributeNotFoundError{ClassName: sig.ClassName, Member: sig.Name, Attribute: "Code"}
	}
	return m, nil
}

// LookupVirtual selects the implementation actually invoked for a
// virtual/interface call on a receiver of dynamic class receiverClass:
// the first declaration found walking up from the receiver.
func (h *Hierarchy) LookupVirtual(receiverClass string, sig typ.Signature) (typ.Signature, error) {
	declaring, _, err := h.lookupMethod(receiverClass, sig.Name, sig.Descriptor)
	if err != nil {
		return typ.Signature{}, err
	}
	return sig.WithClass(declaring.Name), nil
}

// isMemberAccessible applies the hosted-VM access rules: public always;
// private only within the declaring class; protected and package-private
// within the same runtime package (same name prefix up to the last '/').
func (h *Hierarchy) isMemberAccessible(from, declaring string, flags int) bool {
	switch {
	case flags&AccPublic != 0:
		return true
	case flags&AccPrivate != 0:
		return from == declaring
	case flags&AccProtected != 0:
		return samePackage(from, declaring) || h.IsSubclass(from, declaring)
	default:
		return samePackage(from, declaring)
	}
}

func samePackage(a, b string) bool {
	return packageOf(a) == packageOf(b)
}

func packageOf(name string) string {
	i := strings.LastIndexByte(name, '/')
	if i < 0 {
		return ""
	}
	return name[:i]
}

// InitializationOrder returns className's superclasses (and
// superinterfaces declaring nonabstract methods) in the order their
// <clinit> must run before className's own: deepest ancestor first,
// with className itself as the last element.
func (h *Hierarchy) InitializationOrder(className string) ([]string, error) {
	var order []string
	seen := make(map[string]bool)
	var walk func(name string) error
	walk = func(name string) error {
		if seen[name] {
			return nil
		}
		seen[name] = true
		cf, err := h.GetClassFile(name)
		if err != nil {
			return err
		}
		if cf.SuperName != "" {
			if err := walk(cf.SuperName); err != nil {
				return err
			}
		}
		for _, itf := range cf.Interfaces {
			icf, err := h.GetClassFile(itf)
			if err != nil {
				return err
			}
			if interfaceHasNonabstractMethod(icf) {
				if err := walk(itf); err != nil {
					return err
				}
			}
		}
		order = append(order, name)
		return nil
	}
	if err := walk(className); err != nil {
		return nil, err
	}
	return order, nil
}

func interfaceHasNonabstractMethod(cf *ClassFile) bool {
	for i := range cf.Methods {
		if !cf.Methods[i].IsAbstract() {
			return true
		}
	}
	return false
}
