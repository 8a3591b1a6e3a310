package classhierarchy

import "fmt"

// The failure kinds of the class hierarchy oracle. Each is a distinct
// type so callers can map them onto the hosted-VM exception classes
// (NoClassDefFoundError, NoSuchFieldError, IllegalAccessError, ...)
// with a type switch.

type ClassFileNotFoundError struct {
	ClassName string
}

func (e *ClassFileNotFoundError) Error() string {
	return fmt.Sprintf("class file not found: %s", e.ClassName)
}

type FieldNotFoundError struct {
	ClassName string
	FieldName string
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("field not found: %s.%s", e.ClassName, e.FieldName)
}

type MethodNotFoundError struct {
	ClassName  string
	MethodName string
}

func (e *MethodNotFoundError) Error() string {
	return fmt.Sprintf("method not found: %s.%s", e.ClassName, e.MethodName)
}

type FieldNotAccessibleError struct {
	ClassName string
	FieldName string
	From      string
}

func (e *FieldNotAccessibleError) Error() string {
	return fmt.Sprintf("field %s.%s not accessible from %s", e.ClassName, e.FieldName, e.From)
}

type MethodNotAccessibleError struct {
	ClassName  string
	MethodName string
	From       string
}

func (e *MethodNotAccessibleError) Error() string {
	return fmt.Sprintf("method %s.%s not accessible from %s", e.ClassName, e.MethodName, e.From)
}

// InvalidIndexError reports a constant-pool index outside the pool, or
// pointing at an entry of the wrong kind for the requesting bytecode.
type InvalidIndexError struct {
	ClassName string
	Index     int
}

func (e *InvalidIndexError) Error() string {
	return fmt.Sprintf("invalid constant pool index %d in %s", e.Index, e.ClassName)
}

// AttributeNotFoundError reports a missing class-file attribute, e.g. a
// Code attribute requested for an abstract or native method.
type AttributeNotFoundError struct {
	ClassName string
	Member    string
	Attribute string
}

func (e *AttributeNotFoundError) Error() string {
	return fmt.Sprintf("attribute %s not found on %s.%s", e.Attribute, e.ClassName, e.Member)
}
