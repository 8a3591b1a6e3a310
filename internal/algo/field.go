package algo

import (
	"github.com/gangz/jbse/internal/bytecode"
	"github.com/gangz/jbse/internal/classhierarchy"
	"github.com/gangz/jbse/internal/ectx"
	"github.com/gangz/jbse/internal/state"
	"github.com/gangz/jbse/internal/typ"
	"github.com/gangz/jbse/internal/value"
)

// Schema (c): field access with lazy class initialization. Resolution
// failures become the modeled hosted-VM exceptions (tier 1 of the
// error taxonomy); a "must exit" from EnsureKlass leaves the pc
// unchanged so the bytecode re-executes after <clinit> returns.

func registerField(reg map[byte]Algorithm) {
	reg[bytecode.Getstatic] = Func(execGetstatic)
	reg[bytecode.Putstatic] = Func(execPutstatic)
	reg[bytecode.Getfield] = Func(execGetfield)
	reg[bytecode.Putfield] = Func(execPutfield)
}

// resolveFieldOperand reads the 2-byte constant-pool operand of a field
// bytecode and resolves the signature, throwing the tier-1 exception
// that matches the oracle's failure kind. The bool result reports
// whether execution may continue.
func resolveFieldOperand(s *state.State, ctx *ectx.Ctx) (typ.Signature, bool, error) {
	f, err := s.CurrentFrame()
	if err != nil {
		return typ.Signature{}, false, err
	}
	index := bytecode.U2(f.Code, f.PC+1)
	cf, err := ctx.Hier.GetClassFile(f.Method.ClassName)
	if err != nil {
		return typ.Signature{}, false, s.CreateThrowableAndThrowIt(state.NoClassDefFoundError)
	}
	sig, err := cf.FieldRefAt(index)
	if err != nil {
		return typ.Signature{}, false, s.CreateThrowableAndThrowIt(state.VerifyError)
	}
	resolved, err := ctx.Hier.ResolveField(f.Method.ClassName, sig)
	if err != nil {
		return typ.Signature{}, false, throwResolutionFailure(s, err)
	}
	return resolved, true, nil
}

// throwResolutionFailure maps an oracle failure kind onto the modeled
// exception class.
func throwResolutionFailure(s *state.State, err error) error {
	switch err.(type) {
	case *classhierarchy.ClassFileNotFoundError:
		return s.CreateThrowableAndThrowIt(state.NoClassDefFoundError)
	case *classhierarchy.FieldNotFoundError:
		return s.CreateThrowableAndThrowIt(state.NoSuchFieldError)
	case *classhierarchy.MethodNotFoundError:
		return s.CreateThrowableAndThrowIt(state.NoSuchMethodError)
	case *classhierarchy.FieldNotAccessibleError, *classhierarchy.MethodNotAccessibleError:
		return s.CreateThrowableAndThrowIt(state.IllegalAccessError)
	default:
		// Wrapped oracle errors keep their concrete type at the root.
		return s.CreateThrowableAndThrowIt(state.NoClassDefFoundError)
	}
}

func execGetstatic(s *state.State, ctx *ectx.Ctx) error {
	sig, ok, err := resolveFieldOperand(s, ctx)
	if !ok {
		return err
	}
	cf, err := ctx.Hier.GetClassFile(sig.ClassName)
	if err != nil {
		return s.CreateThrowableAndThrowIt(state.NoClassDefFoundError)
	}
	field, found := cf.FindField(sig.Name)
	if !found {
		return s.CreateThrowableAndThrowIt(state.NoSuchFieldError)
	}
	if !field.IsStatic() {
		return s.CreateThrowableAndThrowIt(state.IncompatibleClassChangeError)
	}

	// Compile-time-constant carve-out:
	// the literal is read straight from the constant pool, without
	// forcing class initialization; a string literal is interned.
	if field.IsFinal() && field.HasConstantValue {
		v, cerr := constantFieldValue(s, ctx, field)
		if cerr != nil {
			return cerr
		}
		if perr := s.Push(v); perr != nil {
			return perr
		}
		return s.IncPC(3)
	}

	mustExit, err := s.EnsureKlass(sig.ClassName, ctx.Dec)
	if err != nil {
		return err
	}
	if mustExit {
		return nil
	}
	klass, present := s.GetKlass(sig.ClassName)
	if !present {
		return &UnexpectedInternalError{Op: "getstatic", Why: "klass vanished after EnsureKlass"}
	}
	v, present := klass.GetFieldValue(sig)
	if !present {
		return &UnexpectedInternalError{Op: "getstatic", Why: "resolved static field has no value: " + sig.String()}
	}
	if err := s.Push(v); err != nil {
		return err
	}
	return s.IncPC(3)
}

func constantFieldValue(s *state.State, ctx *ectx.Ctx, field *classhierarchy.Field) (value.Value, error) {
	switch lit := field.ConstantValue.(type) {
	case string:
		return s.ReferenceToStringLiteral(lit)
	case float32:
		return ctx.Calc.ValOf(typ.Float, lit), nil
	case float64:
		return ctx.Calc.ValOf(typ.Double, lit), nil
	case int64:
		tag := field.Signature.ReturnTag()
		if !tag.IsIntegral() {
			tag = typ.Int
		}
		if tag == typ.Boolean {
			return ctx.Calc.ValOf(typ.Boolean, lit != 0), nil
		}
		return ctx.Calc.ValOf(tag, lit), nil
	default:
		return nil, &UnexpectedInternalError{Op: "getstatic", Why: "unsupported constant value kind"}
	}
}

func execPutstatic(s *state.State, ctx *ectx.Ctx) error {
	sig, ok, err := resolveFieldOperand(s, ctx)
	if !ok {
		return err
	}
	cf, err := ctx.Hier.GetClassFile(sig.ClassName)
	if err != nil {
		return s.CreateThrowableAndThrowIt(state.NoClassDefFoundError)
	}
	field, found := cf.FindField(sig.Name)
	if !found {
		return s.CreateThrowableAndThrowIt(state.NoSuchFieldError)
	}
	if !field.IsStatic() {
		return s.CreateThrowableAndThrowIt(state.IncompatibleClassChangeError)
	}
	mustExit, err := s.EnsureKlass(sig.ClassName, ctx.Dec)
	if err != nil {
		return err
	}
	if mustExit {
		return nil
	}
	v, err := s.Pop()
	if err != nil {
		return s.CreateThrowableAndThrowIt(state.VerifyError)
	}
	klass, present := s.GetKlass(sig.ClassName)
	if !present {
		return &UnexpectedInternalError{Op: "putstatic", Why: "klass vanished after EnsureKlass"}
	}
	if perr := klass.PutFieldValue(sig, v); perr != nil {
		return s.CreateThrowableAndThrowIt(state.VerifyError)
	}
	return s.IncPC(3)
}

func execGetfield(s *state.State, ctx *ectx.Ctx) error {
	sig, ok, err := resolveFieldOperand(s, ctx)
	if !ok {
		return err
	}
	done, err := resolveOrFork(s, ctx, 0)
	if done || err != nil {
		return err
	}
	ref, err := s.Pop()
	if err != nil {
		return s.CreateThrowableAndThrowIt(state.VerifyError)
	}
	if isNullRef(ref) {
		return s.CreateThrowableAndThrowIt(state.NullPointerException)
	}
	pos, isConcrete := heapPosOf(ref)
	if !isConcrete {
		return s.CreateThrowableAndThrowIt(state.VerifyError)
	}
	obj, present := s.Heap().Get(pos)
	if !present {
		return &UnexpectedInternalError{Op: "getfield", Why: "dangling heap reference"}
	}
	v, present := obj.GetFieldValue(sig)
	if !present {
		return s.CreateThrowableAndThrowIt(state.NoSuchFieldError)
	}
	if err := s.Push(v); err != nil {
		return err
	}
	return s.IncPC(3)
}

func execPutfield(s *state.State, ctx *ectx.Ctx) error {
	sig, ok, err := resolveFieldOperand(s, ctx)
	if !ok {
		return err
	}
	// The reference sits under the value operand.
	done, err := resolveOrFork(s, ctx, 1)
	if done || err != nil {
		return err
	}
	v, err := s.Pop()
	if err != nil {
		return s.CreateThrowableAndThrowIt(state.VerifyError)
	}
	ref, err := s.Pop()
	if err != nil {
		return s.CreateThrowableAndThrowIt(state.VerifyError)
	}
	if isNullRef(ref) {
		return s.CreateThrowableAndThrowIt(state.NullPointerException)
	}
	pos, isConcrete := heapPosOf(ref)
	if !isConcrete {
		return s.CreateThrowableAndThrowIt(state.VerifyError)
	}
	obj, present := s.Heap().Get(pos)
	if !present {
		return &UnexpectedInternalError{Op: "putfield", Why: "dangling heap reference"}
	}
	if perr := obj.PutFieldValue(sig, v); perr != nil {
		return s.CreateThrowableAndThrowIt(state.VerifyError)
	}
	return s.IncPC(3)
}
