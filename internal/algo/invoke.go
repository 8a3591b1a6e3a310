package algo

import (
	"github.com/gangz/jbse/internal/bytecode"
	"github.com/gangz/jbse/internal/classhierarchy"
	"github.com/gangz/jbse/internal/ectx"
	"github.com/gangz/jbse/internal/mem"
	"github.com/gangz/jbse/internal/state"
	"github.com/gangz/jbse/internal/typ"
	"github.com/gangz/jbse/internal/value"
)

// Schema (c) continued: method invocation, returns and athrow.

func registerInvoke(reg map[byte]Algorithm) {
	reg[bytecode.Invokestatic] = Func(execInvokestatic)
	reg[bytecode.Invokevirtual] = invokeInstance(false, true)
	reg[bytecode.Invokespecial] = invokeInstance(false, false)
	reg[bytecode.Invokeinterface] = invokeInstance(true, true)

	returns := map[byte]bool{
		bytecode.Ireturn: true, bytecode.Lreturn: true, bytecode.Freturn: true,
		bytecode.Dreturn: true, bytecode.Areturn: true, bytecode.Return: false,
	}
	for op, hasValue := range returns {
		op, hasValue := op, hasValue
		reg[op] = Func(func(s *state.State, ctx *ectx.Ctx) error {
			return execReturn(s, hasValue)
		})
	}

	reg[bytecode.Athrow] = Func(execAthrow)
}

// methodRefOperand reads and resolves the method reference of an invoke
// bytecode.
func methodRefOperand(s *state.State, ctx *ectx.Ctx, wantInterface bool) (typ.Signature, bool, error) {
	f, err := s.CurrentFrame()
	if err != nil {
		return typ.Signature{}, false, err
	}
	index := bytecode.U2(f.Code, f.PC+1)
	cf, err := ctx.Hier.GetClassFile(f.Method.ClassName)
	if err != nil {
		return typ.Signature{}, false, s.CreateThrowableAndThrowIt(state.NoClassDefFoundError)
	}
	sig, isInterface, err := cf.MethodRefAt(index)
	if err != nil {
		return typ.Signature{}, false, s.CreateThrowableAndThrowIt(state.VerifyError)
	}
	if isInterface != wantInterface {
		return typ.Signature{}, false, s.CreateThrowableAndThrowIt(state.IncompatibleClassChangeError)
	}
	resolved, err := ctx.Hier.ResolveMethod(f.Method.ClassName, sig, wantInterface)
	if err != nil {
		return typ.Signature{}, false, throwResolutionFailure(s, err)
	}
	return resolved, true, nil
}

func execInvokestatic(s *state.State, ctx *ectx.Ctx) error {
	sig, ok, err := methodRefOperand(s, ctx, false)
	if !ok {
		return err
	}
	m, err := ctx.Hier.GetMethodCode(sig)
	if err != nil {
		if isNativeMethod(ctx, sig) {
			return &CannotInvokeNativeError{Method: sig.String()}
		}
		return s.CreateThrowableAndThrowIt(state.IncompatibleClassChangeError)
	}
	if !m.IsStatic() {
		return s.CreateThrowableAndThrowIt(state.IncompatibleClassChangeError)
	}
	mustExit, err := s.EnsureKlass(sig.ClassName, ctx.Dec)
	if err != nil {
		return err
	}
	if mustExit {
		return nil
	}
	return pushCallFrame(s, sig, m, nil, bytecode.Length(bytecode.Invokestatic, false))
}

// invokeInstance builds the algorithm for invokevirtual, invokespecial
// and invokeinterface: virtualDispatch selects whether the receiver's
// dynamic class overrides the resolved declaration.
func invokeInstance(wantInterface, virtualDispatch bool) Algorithm {
	op := bytecode.Invokevirtual
	if wantInterface {
		op = bytecode.Invokeinterface
	}
	return Func(func(s *state.State, ctx *ectx.Ctx) error {
		sig, ok, err := methodRefOperand(s, ctx, wantInterface)
		if !ok {
			return err
		}
		nParams := len(sig.ParamTags())
		done, err := resolveOrFork(s, ctx, nParams)
		if done || err != nil {
			return err
		}
		f, err := s.CurrentFrame()
		if err != nil {
			return err
		}
		recv, present := f.OperandFromTop(nParams)
		if !present {
			return s.CreateThrowableAndThrowIt(state.VerifyError)
		}
		if isNullRef(recv) {
			return s.CreateThrowableAndThrowIt(state.NullPointerException)
		}
		target := sig
		if virtualDispatch {
			pos, isConcrete := heapPosOf(recv)
			if !isConcrete {
				return s.CreateThrowableAndThrowIt(state.VerifyError)
			}
			obj, found := s.Heap().Get(pos)
			if !found {
				return &UnexpectedInternalError{Op: bytecode.Mnemonic(op), Why: "dangling receiver reference"}
			}
			target, err = ctx.Hier.LookupVirtual(obj.ClassName(), sig)
			if err != nil {
				return throwResolutionFailure(s, err)
			}
		}
		m, err := ctx.Hier.GetMethodCode(target)
		if err != nil {
			if isNativeMethod(ctx, target) {
				return &CannotInvokeNativeError{Method: target.String()}
			}
			return s.CreateThrowableAndThrowIt(state.IncompatibleClassChangeError)
		}
		mustExit, err := s.EnsureKlass(target.ClassName, ctx.Dec)
		if err != nil {
			return err
		}
		if mustExit {
			return nil
		}
		return pushCallFrame(s, target, m, recv, bytecode.Length(op, false))
	})
}

func isNativeMethod(ctx *ectx.Ctx, sig typ.Signature) bool {
	cf, err := ctx.Hier.GetClassFile(sig.ClassName)
	if err != nil {
		return false
	}
	m, ok := cf.FindMethod(sig.Name, sig.Descriptor)
	return ok && m.IsNative()
}

// pushCallFrame pops the call arguments into the callee's local
// variable slots (receiver in slot 0 for instance calls, category-2
// values occupying two slots) and pushes the callee frame. The caller's
// pc stays put; the frame's ReturnPC records where the caller resumes.
func pushCallFrame(s *state.State, sig typ.Signature, m *classhierarchy.Method, recv value.Value, length int) error {
	caller, err := s.CurrentFrame()
	if err != nil {
		return err
	}
	params := sig.ParamTags()
	args := make([]value.Value, len(params))
	for i := len(params) - 1; i >= 0; i-- {
		v, ok := caller.Pop()
		if !ok {
			return s.CreateThrowableAndThrowIt(state.VerifyError)
		}
		args[i] = v
	}
	if recv != nil {
		if _, ok := caller.Pop(); !ok {
			return s.CreateThrowableAndThrowIt(state.VerifyError)
		}
	}

	callee := mem.NewFrame(sig, m.Code, m.MaxLocals)
	callee.ReturnPC = caller.PC + length
	slot := 0
	if recv != nil {
		callee.SetLocal(0, recv)
		slot = 1
	}
	for i, v := range args {
		if !callee.SetLocal(slot, v) {
			return s.CreateThrowableAndThrowIt(state.VerifyError)
		}
		if params[i].IsCategory2() {
			slot += 2
		} else {
			slot++
		}
	}
	s.Stack().Push(callee)
	return nil
}

// execReturn pops the callee frame; a non-void return hands the value
// to the caller's operand stack, or records it as the path's result
// when the thread stack empties (stuck=return). A negative ReturnPC (a
// <clinit> frame) leaves the caller's
// pc alone so the interrupted bytecode re-executes.
func execReturn(s *state.State, hasValue bool) error {
	var ret value.Value
	if hasValue {
		v, err := s.Pop()
		if err != nil {
			return s.CreateThrowableAndThrowIt(state.VerifyError)
		}
		ret = v
	}
	callee, ok := s.Stack().Pop()
	if !ok {
		s.SetStuckReturn()
		return nil
	}
	caller, present := s.Stack().Current()
	if !present {
		if hasValue {
			s.SetReturnValue(ret)
		}
		s.SetStuckReturn()
		return nil
	}
	if hasValue {
		caller.Push(ret)
	}
	if callee.ReturnPC >= 0 {
		return caller.IncPC(callee.ReturnPC - caller.PC)
	}
	return nil
}

func execAthrow(s *state.State, ctx *ectx.Ctx) error {
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
		return &UnexpectedInternalError{Op: "athrow", Why: "dangling throwable reference"}
	}
	cref, _ := ref.(*value.ReferenceConcrete)
	return s.ThrowObject(cref, obj.ClassName())
}
