package state

import (
	"github.com/gangz/jbse/internal/mem"
	"github.com/gangz/jbse/internal/typ"
	"github.com/gangz/jbse/internal/value"
)

// Names of the modeled hosted-VM exception classes. VerifyError is the
// sentinel for bytecode-level verification failures.
const (
	VerifyError                    = "java/lang/VerifyError"
	NoClassDefFoundError           = "java/lang/NoClassDefFoundError"
	NoSuchFieldError               = "java/lang/NoSuchFieldError"
	NoSuchMethodError              = "java/lang/NoSuchMethodError"
	IllegalAccessError             = "java/lang/IllegalAccessError"
	IncompatibleClassChangeError   = "java/lang/IncompatibleClassChangeError"
	NullPointerException           = "java/lang/NullPointerException"
	ArrayIndexOutOfBoundsException = "java/lang/ArrayIndexOutOfBoundsException"
	ArithmeticException            = "java/lang/ArithmeticException"
	ClassCastException             = "java/lang/ClassCastException"
	NegativeArraySizeException     = "java/lang/NegativeArraySizeException"
	ArrayStoreException            = "java/lang/ArrayStoreException"
)

// CreateInstance allocates an instance of className on the heap with
// every instance field (own and inherited) default-initialized, and
// returns its position and a concrete reference to it.
func (s *State) CreateInstance(className string) (int64, *value.ReferenceConcrete, error) {
	sigs, err := s.hier.InstanceFieldSignatures(className)
	if err != nil {
		// Exception classes are routinely thrown without being
		// registered in a test hierarchy; model them as field-less.
		sigs = nil
	}
	obj := mem.NewInstance(className, sigs)
	for _, sig := range sigs {
		if perr := obj.PutFieldValue(sig, s.DefaultValue(sig.ReturnTag())); perr != nil {
			return 0, nil, perr
		}
	}
	pos := s.heap.Allocate(obj)
	return pos, value.NewReferenceConcrete(pos), nil
}

// CreateArray allocates an array of elemType with the given (possibly
// symbolic) length.
func (s *State) CreateArray(elemType typ.Tag, length value.Value) (int64, *value.ReferenceConcrete) {
	pos := s.heap.Allocate(mem.NewArray(elemType, length))
	return pos, value.NewReferenceConcrete(pos)
}

// CreateThrowableAndThrowIt allocates an instance of className and
// throws it: walk up the frame stack looking for a
// handler covering the current pc whose catch type admits the thrown
// class, unwinding frames while none matches; if the stack empties, the
// state goes stuck with the uncaught exception.
func (s *State) CreateThrowableAndThrowIt(className string) error {
	_, ref, err := s.CreateInstance(className)
	if err != nil {
		return err
	}
	return s.ThrowObject(ref, className)
}

// ThrowObject dispatches an already-allocated throwable.
func (s *State) ThrowObject(ref *value.ReferenceConcrete, className string) error {
	for {
		f, ok := s.stack.Current()
		if !ok {
			s.SetStuckException(ref)
			return nil
		}
		if h := s.findHandler(f, className); h != nil {
			f.ClearOperands()
			f.Push(ref)
			return f.IncPC(h.HandlerPC - f.PC)
		}
		s.stack.Pop()
	}
}

func (s *State) findHandler(f *mem.Frame, thrownClass string) *handlerMatch {
	m, err := s.hier.GetMethodCode(f.Method)
	if err != nil {
		return nil
	}
	for i := range m.Handlers {
		h := &m.Handlers[i]
		if !h.Covers(f.PC) {
			continue
		}
		if h.CatchType == "" || s.hier.IsSubclass(thrownClass, h.CatchType) {
			return &handlerMatch{HandlerPC: h.HandlerPC}
		}
	}
	return nil
}

type handlerMatch struct {
	HandlerPC int
}
