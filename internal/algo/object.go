package algo

import (
	"github.com/pkg/errors"

	"github.com/gangz/jbse/internal/bytecode"
	"github.com/gangz/jbse/internal/decision"
	"github.com/gangz/jbse/internal/ectx"
	"github.com/gangz/jbse/internal/mem"
	"github.com/gangz/jbse/internal/state"
	"github.com/gangz/jbse/internal/typ"
	"github.com/gangz/jbse/internal/value"
)

// Allocation, array access with the bounds-check fork, and the
// type-test bytecodes.

func registerObject(reg map[byte]Algorithm) {
	reg[bytecode.New] = Func(execNew)
	reg[bytecode.Newarray] = Func(execNewarray)
	reg[bytecode.Anewarray] = Func(execAnewarray)
	reg[bytecode.Arraylength] = Func(execArraylength)
	reg[bytecode.Checkcast] = Func(execCheckcast)
	reg[bytecode.Instanceof] = Func(execInstanceof)

	loads := []byte{
		bytecode.Iaload, bytecode.Laload, bytecode.Faload, bytecode.Daload,
		bytecode.Aaload, bytecode.Baload, bytecode.Caload, bytecode.Saload,
	}
	for _, op := range loads {
		reg[op] = Func(execArrayLoad)
	}
	stores := []byte{
		bytecode.Iastore, bytecode.Lastore, bytecode.Fastore, bytecode.Dastore,
		bytecode.Aastore, bytecode.Bastore, bytecode.Castore, bytecode.Sastore,
	}
	for _, op := range stores {
		reg[op] = Func(execArrayStore)
	}
}

// classOperand reads the 2-byte class-reference operand of new /
// anewarray / checkcast / instanceof.
func classOperand(s *state.State, ctx *ectx.Ctx) (string, bool, error) {
	f, err := s.CurrentFrame()
	if err != nil {
		return "", false, err
	}
	index := bytecode.U2(f.Code, f.PC+1)
	cf, err := ctx.Hier.GetClassFile(f.Method.ClassName)
	if err != nil {
		return "", false, s.CreateThrowableAndThrowIt(state.NoClassDefFoundError)
	}
	name, err := cf.ClassRefAt(index)
	if err != nil {
		return "", false, s.CreateThrowableAndThrowIt(state.VerifyError)
	}
	return name, true, nil
}

func execNew(s *state.State, ctx *ectx.Ctx) error {
	className, ok, err := classOperand(s, ctx)
	if !ok {
		return err
	}
	if !ctx.Hier.IsInstantiable(className) {
		return s.CreateThrowableAndThrowIt(state.IncompatibleClassChangeError)
	}
	mustExit, err := s.EnsureKlass(className, ctx.Dec)
	if err != nil {
		return err
	}
	if mustExit {
		return nil
	}
	_, ref, err := s.CreateInstance(className)
	if err != nil {
		return err
	}
	if err := s.Push(ref); err != nil {
		return err
	}
	return s.IncPC(3)
}

// newarray primitive element type codes, as the class-file format
// defines them.
var newarrayTags = map[int]typ.Tag{
	4: typ.Boolean, 5: typ.Char, 6: typ.Float, 7: typ.Double,
	8: typ.Byte, 9: typ.Short, 10: typ.Int, 11: typ.Long,
}

func execNewarray(s *state.State, ctx *ectx.Ctx) error {
	code, pc, err := currentCode(s)
	if err != nil {
		return err
	}
	elem, known := newarrayTags[bytecode.U1(code, pc+1)]
	if !known {
		return s.CreateThrowableAndThrowIt(state.VerifyError)
	}
	return allocArray(s, ctx, elem, 2)
}

func execAnewarray(s *state.State, ctx *ectx.Ctx) error {
	if _, ok, err := classOperand(s, ctx); !ok {
		return err
	}
	return allocArray(s, ctx, typ.Reference, 3)
}

// allocArray pops the length and allocates. A symbolic length forks on
// its sign: the non-negative child allocates, the negative child throws
// the modeled NegativeArraySizeException.
func allocArray(s *state.State, ctx *ectx.Ctx, elem typ.Tag, length int) error {
	n, err := s.PopPrimitive()
	if err != nil {
		return s.CreateThrowableAndThrowIt(state.VerifyError)
	}

	if c, concrete := n.(*value.Simplex); concrete {
		if c.Int64() < 0 {
			return s.CreateThrowableAndThrowIt(state.NegativeArraySizeException)
		}
		_, ref := s.CreateArray(elem, n)
		if perr := s.Push(ref); perr != nil {
			return perr
		}
		return s.IncPC(length)
	}

	nonNeg, err := ctx.Calc.Compare(value.Ge, n, ctx.Calc.ValOf(typ.Int, int64(0)))
	if err != nil {
		return s.CreateThrowableAndThrowIt(state.VerifyError)
	}
	neg, err := ctx.Calc.BoolNot(nonNeg)
	if err != nil {
		return &UnexpectedInternalError{Op: "newarray", Why: "negating length condition", Wrap: err}
	}
	alts, err := binaryFeasible(ctx, nonNeg, neg, decision.BoundsIn, decision.BoundsOut)
	if err != nil {
		return err
	}
	return forkApply(s, ctx, alts,
		func(child *state.State, alt decision.Alternative) (mem.Clause, error) {
			if alt.Kind == decision.BoundsIn {
				_, ref := child.CreateArray(elem, n)
				if perr := child.Push(ref); perr != nil {
					return nil, perr
				}
				return &mem.ClauseAssume{Cond: nonNeg}, child.IncPC(length)
			}
			return &mem.ClauseAssume{Cond: neg}, child.CreateThrowableAndThrowIt(state.NegativeArraySizeException)
		})
}

// binaryFeasible asks the decision procedure about a two-way split and
// returns the feasible alternatives in stable order.
func binaryFeasible(ctx *ectx.Ctx, condA, condB value.Primitive, kindA, kindB decision.Kind) ([]decision.Alternative, error) {
	var alts []decision.Alternative
	okA, err := ctx.Dec.IsSat(condA)
	if err != nil {
		return nil, errors.Wrap(err, "deciding fork")
	}
	if okA {
		alts = append(alts, decision.Alternative{Kind: kindA})
	}
	okB, err := ctx.Dec.IsSat(condB)
	if err != nil {
		return nil, errors.Wrap(err, "deciding fork")
	}
	if okB {
		alts = append(alts, decision.Alternative{Kind: kindB, BranchNumber: 1})
	}
	decision.SortStable(alts)
	return alts, nil
}

func execArraylength(s *state.State, ctx *ectx.Ctx) error {
	done, err := resolveOrFork(s, ctx, 0)
	if done || err != nil {
		return err
	}
	ref, err := s.Pop()
	if err != nil {
		return s.CreateThrowableAndThrowIt(state.VerifyError)
	}
	arr, ok, err := arrayAt(s, ref)
	if !ok {
		return err
	}
	if err := s.Push(arr.Length()); err != nil {
		return err
	}
	return s.IncPC(1)
}

// arrayAt dereferences an array operand, throwing NullPointerException
// for null and VerifyError for a non-array object.
func arrayAt(s *state.State, ref value.Value) (*mem.Array, bool, error) {
	if isNullRef(ref) {
		return nil, false, s.CreateThrowableAndThrowIt(state.NullPointerException)
	}
	pos, isConcrete := heapPosOf(ref)
	if !isConcrete {
		return nil, false, s.CreateThrowableAndThrowIt(state.VerifyError)
	}
	obj, present := s.Heap().Get(pos)
	if !present {
		return nil, false, &UnexpectedInternalError{Op: "array access", Why: "dangling array reference"}
	}
	arr, isArray := obj.(*mem.Array)
	if !isArray {
		return nil, false, s.CreateThrowableAndThrowIt(state.VerifyError)
	}
	return arr, true, nil
}

// execArrayLoad implements the xaload family:
// with concrete index and length the bounds check is immediate; a
// symbolic one forks IN (clause 0 <= i < len, identifier letter L) and
// OUT (negation, letter R, modeled ArrayIndexOutOfBoundsException).
func execArrayLoad(s *state.State, ctx *ectx.Ctx) error {
	done, err := resolveOrFork(s, ctx, 1)
	if done || err != nil {
		return err
	}
	index, err := s.PopPrimitive()
	if err != nil {
		return s.CreateThrowableAndThrowIt(state.VerifyError)
	}
	aref, err := s.Pop()
	if err != nil {
		return s.CreateThrowableAndThrowIt(state.VerifyError)
	}
	arr, ok, err := arrayAt(s, aref)
	if !ok {
		return err
	}

	inBounds, outBounds, concrete, err := boundsConditions(ctx, index, arr)
	if err != nil {
		return err
	}
	if concrete != nil {
		if !*concrete {
			return s.CreateThrowableAndThrowIt(state.ArrayIndexOutOfBoundsException)
		}
		v := arrayElement(ctx, arr, index)
		if perr := s.Push(v); perr != nil {
			return perr
		}
		return s.IncPC(1)
	}

	alts, err := binaryFeasible(ctx, inBounds, outBounds, decision.BoundsIn, decision.BoundsOut)
	if err != nil {
		return err
	}
	return forkApply(s, ctx, alts,
		func(child *state.State, alt decision.Alternative) (mem.Clause, error) {
			if alt.Kind == decision.BoundsIn {
				carr, cok, cerr := arrayAt(child, aref)
				if !cok {
					return nil, cerr
				}
				v := arrayElement(ctx, carr, index)
				if perr := child.Push(v); perr != nil {
					return nil, perr
				}
				return &mem.ClauseAssume{Cond: inBounds}, child.IncPC(1)
			}
			return &mem.ClauseAssume{Cond: outBounds}, child.CreateThrowableAndThrowIt(state.ArrayIndexOutOfBoundsException)
		})
}

func execArrayStore(s *state.State, ctx *ectx.Ctx) error {
	done, err := resolveOrFork(s, ctx, 2)
	if done || err != nil {
		return err
	}
	v, err := s.Pop()
	if err != nil {
		return s.CreateThrowableAndThrowIt(state.VerifyError)
	}
	index, err := s.PopPrimitive()
	if err != nil {
		return s.CreateThrowableAndThrowIt(state.VerifyError)
	}
	aref, err := s.Pop()
	if err != nil {
		return s.CreateThrowableAndThrowIt(state.VerifyError)
	}
	arr, ok, err := arrayAt(s, aref)
	if !ok {
		return err
	}

	inBounds, outBounds, concrete, err := boundsConditions(ctx, index, arr)
	if err != nil {
		return err
	}
	if concrete != nil {
		if !*concrete {
			return s.CreateThrowableAndThrowIt(state.ArrayIndexOutOfBoundsException)
		}
		arr.PutElement(index, v)
		return s.IncPC(1)
	}

	alts, err := binaryFeasible(ctx, inBounds, outBounds, decision.BoundsIn, decision.BoundsOut)
	if err != nil {
		return err
	}
	return forkApply(s, ctx, alts,
		func(child *state.State, alt decision.Alternative) (mem.Clause, error) {
			if alt.Kind == decision.BoundsIn {
				carr, cok, cerr := arrayAt(child, aref)
				if !cok {
					return nil, cerr
				}
				carr.PutElement(index, v)
				return &mem.ClauseAssume{Cond: inBounds}, child.IncPC(1)
			}
			return &mem.ClauseAssume{Cond: outBounds}, child.CreateThrowableAndThrowIt(state.ArrayIndexOutOfBoundsException)
		})
}

// boundsConditions builds 0 <= i < len and its negation. When index and
// length are both concrete the check is decided on the spot and
// returned through the concrete pointer instead.
func boundsConditions(ctx *ectx.Ctx, index value.Primitive, arr *mem.Array) (in, out value.Primitive, concrete *bool, err error) {
	length, isPrim := arr.Length().(value.Primitive)
	if !isPrim {
		return nil, nil, nil, &UnexpectedInternalError{Op: "array access", Why: "array length is not a primitive"}
	}
	if ci, okI := index.(*value.Simplex); okI {
		if cl, okL := length.(*value.Simplex); okL {
			inside := ci.Int64() >= 0 && ci.Int64() < cl.Int64()
			return nil, nil, &inside, nil
		}
	}
	ge, err := ctx.Calc.Compare(value.Ge, index, ctx.Calc.ValOf(typ.Int, int64(0)))
	if err != nil {
		return nil, nil, nil, err
	}
	lt, err := ctx.Calc.Compare(value.Lt, index, length)
	if err != nil {
		return nil, nil, nil, err
	}
	in, err = ctx.Calc.BoolAnd(ge, lt)
	if err != nil {
		return nil, nil, nil, err
	}
	out, err = ctx.Calc.BoolNot(in)
	if err != nil {
		return nil, nil, nil, err
	}
	return in, out, nil, nil
}

// arrayElement reads a slot, minting a fresh unconstrained Term (or
// null for reference arrays) for a slot never written on this path, and
// recording it so later reads of the same slot agree.
func arrayElement(ctx *ectx.Ctx, arr *mem.Array, index value.Value) value.Value {
	if v, present := arr.GetElement(index); present {
		return v
	}
	var v value.Value
	if arr.ElemType().IsPrimitive() {
		v = ctx.Calc.NewTerm(arr.ElemType(), "")
	} else {
		v = value.NewReferenceConcreteNull()
	}
	arr.PutElement(index, v)
	return v
}

func execCheckcast(s *state.State, ctx *ectx.Ctx) error {
	className, ok, err := classOperand(s, ctx)
	if !ok {
		return err
	}
	done, err := resolveOrFork(s, ctx, 0)
	if done || err != nil {
		return err
	}
	top, err := s.Top()
	if err != nil {
		return s.CreateThrowableAndThrowIt(state.VerifyError)
	}
	if isNullRef(top) {
		return s.IncPC(3)
	}
	pos, isConcrete := heapPosOf(top)
	if !isConcrete {
		return s.CreateThrowableAndThrowIt(state.VerifyError)
	}
	obj, present := s.Heap().Get(pos)
	if !present {
		return &UnexpectedInternalError{Op: "checkcast", Why: "dangling reference"}
	}
	if !ctx.Hier.IsAssignable(obj.ClassName(), className) {
		return s.CreateThrowableAndThrowIt(state.ClassCastException)
	}
	return s.IncPC(3)
}

func execInstanceof(s *state.State, ctx *ectx.Ctx) error {
	className, ok, err := classOperand(s, ctx)
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
	result := int64(0)
	if !isNullRef(ref) {
		pos, isConcrete := heapPosOf(ref)
		if !isConcrete {
			return s.CreateThrowableAndThrowIt(state.VerifyError)
		}
		obj, present := s.Heap().Get(pos)
		if !present {
			return &UnexpectedInternalError{Op: "instanceof", Why: "dangling reference"}
		}
		if ctx.Hier.IsAssignable(obj.ClassName(), className) {
			result = 1
		}
	}
	if err := s.Push(ctx.Calc.ValOf(typ.Int, result)); err != nil {
		return err
	}
	return s.IncPC(3)
}
