package algo

import (
	"github.com/gangz/jbse/internal/bytecode"
	"github.com/gangz/jbse/internal/calc"
	"github.com/gangz/jbse/internal/classhierarchy"
	"github.com/gangz/jbse/internal/ectx"
	"github.com/gangz/jbse/internal/state"
	"github.com/gangz/jbse/internal/typ"
	"github.com/gangz/jbse/internal/value"
)

// Schema (a): purely local algorithms — no decision, no fork. Consume
// operands, produce operands and/or mutate the frame, advance the pc by
// the bytecode length.

func registerLocal(reg map[byte]Algorithm) {
	reg[bytecode.Nop] = Func(func(s *state.State, ctx *ectx.Ctx) error {
		return s.IncPC(1)
	})

	reg[bytecode.Wide] = Func(func(s *state.State, ctx *ectx.Ctx) error {
		if err := s.SetWide(); err != nil {
			return err
		}
		return s.IncPC(1)
	})

	registerConsts(reg)
	registerLoadsStores(reg)
	registerStackOps(reg)
	registerArithmetic(reg)
	registerConversions(reg)
	registerCmps(reg)
}

func registerConsts(reg map[byte]Algorithm) {
	reg[bytecode.AconstNull] = Func(func(s *state.State, ctx *ectx.Ctx) error {
		if err := s.Push(value.TheNull()); err != nil {
			return err
		}
		return s.IncPC(1)
	})

	iconsts := map[byte]int64{
		bytecode.IconstM1: -1, bytecode.Iconst0: 0, bytecode.Iconst1: 1,
		bytecode.Iconst2: 2, bytecode.Iconst3: 3, bytecode.Iconst4: 4, bytecode.Iconst5: 5,
	}
	for op, v := range iconsts {
		reg[op] = pushConst(typ.Int, v, 1)
	}
	reg[bytecode.Lconst0] = pushConst(typ.Long, int64(0), 1)
	reg[bytecode.Lconst1] = pushConst(typ.Long, int64(1), 1)
	reg[bytecode.Fconst0] = pushConst(typ.Float, float32(0), 1)
	reg[bytecode.Fconst1] = pushConst(typ.Float, float32(1), 1)
	reg[bytecode.Fconst2] = pushConst(typ.Float, float32(2), 1)
	reg[bytecode.Dconst0] = pushConst(typ.Double, float64(0), 1)
	reg[bytecode.Dconst1] = pushConst(typ.Double, float64(1), 1)

	reg[bytecode.Bipush] = Func(func(s *state.State, ctx *ectx.Ctx) error {
		code, pc, err := currentCode(s)
		if err != nil {
			return err
		}
		if err := s.Push(ctx.Calc.ValOf(typ.Int, int64(bytecode.S1(code, pc+1)))); err != nil {
			return err
		}
		return s.IncPC(2)
	})

	reg[bytecode.Sipush] = Func(func(s *state.State, ctx *ectx.Ctx) error {
		code, pc, err := currentCode(s)
		if err != nil {
			return err
		}
		if err := s.Push(ctx.Calc.ValOf(typ.Int, int64(bytecode.S2(code, pc+1)))); err != nil {
			return err
		}
		return s.IncPC(3)
	})

	reg[bytecode.Ldc] = ldcAlgorithm(1)
	reg[bytecode.LdcW] = ldcAlgorithm(2)
	reg[bytecode.Ldc2W] = ldcAlgorithm(2)
}

func pushConst(tag typ.Tag, payload any, length int) Algorithm {
	return Func(func(s *state.State, ctx *ectx.Ctx) error {
		if err := s.Push(ctx.Calc.ValOf(tag, payload)); err != nil {
			return err
		}
		return s.IncPC(length)
	})
}

// ldcAlgorithm loads a constant pool literal: numeric literals become
// Simplexes, string literals are interned into heap references via the
// state.
func ldcAlgorithm(indexWidth int) Algorithm {
	return Func(func(s *state.State, ctx *ectx.Ctx) error {
		f, err := s.CurrentFrame()
		if err != nil {
			return err
		}
		var index int
		if indexWidth == 1 {
			index = bytecode.U1(f.Code, f.PC+1)
		} else {
			index = bytecode.U2(f.Code, f.PC+1)
		}
		cf, err := ctx.Hier.GetClassFile(f.Method.ClassName)
		if err != nil {
			return s.CreateThrowableAndThrowIt(state.NoClassDefFoundError)
		}
		entry, err := cf.ConstantAt(index)
		if err != nil {
			return s.CreateThrowableAndThrowIt(state.VerifyError)
		}
		var v value.Value
		switch entry.Kind {
		case classhierarchy.CPInt:
			v = ctx.Calc.ValOf(typ.Int, entry.Value.(int64))
		case classhierarchy.CPLong:
			v = ctx.Calc.ValOf(typ.Long, entry.Value.(int64))
		case classhierarchy.CPFloat:
			v = ctx.Calc.ValOf(typ.Float, entry.Value.(float32))
		case classhierarchy.CPDouble:
			v = ctx.Calc.ValOf(typ.Double, entry.Value.(float64))
		case classhierarchy.CPString:
			ref, ierr := s.ReferenceToStringLiteral(entry.Value.(string))
			if ierr != nil {
				return ierr
			}
			v = ref
		default:
			return s.CreateThrowableAndThrowIt(state.VerifyError)
		}
		if err := s.Push(v); err != nil {
			return err
		}
		return s.IncPC(1 + indexWidth)
	})
}

func registerLoadsStores(reg map[byte]Algorithm) {
	loads := []byte{bytecode.Iload, bytecode.Lload, bytecode.Fload, bytecode.Dload, bytecode.Aload}
	for _, op := range loads {
		op := op
		reg[op] = Func(func(s *state.State, ctx *ectx.Ctx) error {
			return localLoad(s, op)
		})
	}
	stores := []byte{bytecode.Istore, bytecode.Lstore, bytecode.Fstore, bytecode.Dstore, bytecode.Astore}
	for _, op := range stores {
		op := op
		reg[op] = Func(func(s *state.State, ctx *ectx.Ctx) error {
			return localStore(s, op)
		})
	}

	shortLoads := map[byte]int{
		bytecode.Iload0: 0, bytecode.Iload1: 1, bytecode.Iload2: 2, bytecode.Iload3: 3,
		bytecode.Lload0: 0, bytecode.Lload1: 1, bytecode.Lload2: 2, bytecode.Lload3: 3,
		bytecode.Fload0: 0, bytecode.Fload1: 1, bytecode.Fload2: 2, bytecode.Fload3: 3,
		bytecode.Dload0: 0, bytecode.Dload1: 1, bytecode.Dload2: 2, bytecode.Dload3: 3,
		bytecode.Aload0: 0, bytecode.Aload1: 1, bytecode.Aload2: 2, bytecode.Aload3: 3,
	}
	for op, slot := range shortLoads {
		op, slot := op, slot
		reg[op] = Func(func(s *state.State, ctx *ectx.Ctx) error {
			return loadSlot(s, slot, 1)
		})
	}
	shortStores := map[byte]int{
		bytecode.Istore0: 0, bytecode.Istore1: 1, bytecode.Istore2: 2, bytecode.Istore3: 3,
		bytecode.Lstore0: 0, bytecode.Lstore1: 1, bytecode.Lstore2: 2, bytecode.Lstore3: 3,
		bytecode.Fstore0: 0, bytecode.Fstore1: 1, bytecode.Fstore2: 2, bytecode.Fstore3: 3,
		bytecode.Dstore0: 0, bytecode.Dstore1: 1, bytecode.Dstore2: 2, bytecode.Dstore3: 3,
		bytecode.Astore0: 0, bytecode.Astore1: 1, bytecode.Astore2: 2, bytecode.Astore3: 3,
	}
	for op, slot := range shortStores {
		op, slot := op, slot
		reg[op] = Func(func(s *state.State, ctx *ectx.Ctx) error {
			return storeSlot(s, slot, 1)
		})
	}

	reg[bytecode.Iinc] = Func(func(s *state.State, ctx *ectx.Ctx) error {
		f, err := s.CurrentFrame()
		if err != nil {
			return err
		}
		wide := s.ConsumeWide()
		var slot int
		var delta int64
		if wide {
			slot = bytecode.U2(f.Code, f.PC+1)
			delta = int64(bytecode.S2(f.Code, f.PC+3))
		} else {
			slot = bytecode.U1(f.Code, f.PC+1)
			delta = int64(bytecode.S1(f.Code, f.PC+1+1))
		}
		v, ok := f.GetLocal(slot)
		if !ok {
			return s.CreateThrowableAndThrowIt(state.VerifyError)
		}
		p, ok := v.(value.Primitive)
		if !ok {
			return s.CreateThrowableAndThrowIt(state.VerifyError)
		}
		sum, err := ctx.Calc.Add(p, ctx.Calc.ValOf(typ.Int, delta))
		if err != nil {
			return &UnexpectedInternalError{Op: "iinc", Why: "add failed", Wrap: err}
		}
		f.SetLocal(slot, sum)
		return advance(s, bytecode.Iinc, wide)
	})
}

// localLoad implements the iload family with the widened index
// encoding: under wide the index operand is two bytes
// and the instruction is one byte longer.
func localLoad(s *state.State, op byte) error {
	f, err := s.CurrentFrame()
	if err != nil {
		return err
	}
	wide := s.ConsumeWide()
	var slot int
	if wide {
		slot = bytecode.U2(f.Code, f.PC+1)
	} else {
		slot = bytecode.U1(f.Code, f.PC+1)
	}
	length := bytecode.Length(op, wide)
	return loadSlot(s, slot, length)
}

func loadSlot(s *state.State, slot, length int) error {
	f, err := s.CurrentFrame()
	if err != nil {
		return err
	}
	v, ok := f.GetLocal(slot)
	if !ok || v == nil {
		return s.CreateThrowableAndThrowIt(state.VerifyError)
	}
	f.Push(v)
	return s.IncPC(length)
}

func localStore(s *state.State, op byte) error {
	f, err := s.CurrentFrame()
	if err != nil {
		return err
	}
	wide := s.ConsumeWide()
	var slot int
	if wide {
		slot = bytecode.U2(f.Code, f.PC+1)
	} else {
		slot = bytecode.U1(f.Code, f.PC+1)
	}
	length := bytecode.Length(op, wide)
	return storeSlot(s, slot, length)
}

func storeSlot(s *state.State, slot, length int) error {
	f, err := s.CurrentFrame()
	if err != nil {
		return err
	}
	v, ok := f.Pop()
	if !ok {
		return s.CreateThrowableAndThrowIt(state.VerifyError)
	}
	if !f.SetLocal(slot, v) {
		return s.CreateThrowableAndThrowIt(state.VerifyError)
	}
	return s.IncPC(length)
}

func registerStackOps(reg map[byte]Algorithm) {
	reg[bytecode.Pop] = stackOp(func(f stackFrame) bool {
		_, ok := f.Pop()
		return ok
	})
	reg[bytecode.Pop2] = stackOp(func(f stackFrame) bool {
		v, ok := f.Pop()
		if !ok {
			return false
		}
		if v.Type().IsCategory2() {
			return true
		}
		_, ok = f.Pop()
		return ok
	})
	reg[bytecode.Dup] = stackOp(func(f stackFrame) bool {
		v, ok := f.Top()
		if !ok {
			return false
		}
		f.Push(v)
		return true
	})
	reg[bytecode.DupX1] = stackOp(func(f stackFrame) bool {
		a, ok1 := f.Pop()
		b, ok2 := f.Pop()
		if !ok1 || !ok2 {
			return false
		}
		f.Push(a)
		f.Push(b)
		f.Push(a)
		return true
	})
	reg[bytecode.DupX2] = stackOp(func(f stackFrame) bool {
		a, ok1 := f.Pop()
		b, ok2 := f.Pop()
		if !ok1 || !ok2 {
			return false
		}
		if b.Type().IsCategory2() {
			f.Push(a)
			f.Push(b)
			f.Push(a)
			return true
		}
		c, ok3 := f.Pop()
		if !ok3 {
			return false
		}
		f.Push(a)
		f.Push(c)
		f.Push(b)
		f.Push(a)
		return true
	})
	reg[bytecode.Dup2] = stackOp(func(f stackFrame) bool {
		a, ok := f.Pop()
		if !ok {
			return false
		}
		if a.Type().IsCategory2() {
			f.Push(a)
			f.Push(a)
			return true
		}
		b, ok2 := f.Pop()
		if !ok2 {
			return false
		}
		f.Push(b)
		f.Push(a)
		f.Push(b)
		f.Push(a)
		return true
	})
	reg[bytecode.Dup2X1] = stackOp(func(f stackFrame) bool {
		a, ok := f.Pop()
		if !ok {
			return false
		}
		if a.Type().IsCategory2() {
			b, ok2 := f.Pop()
			if !ok2 {
				return false
			}
			f.Push(a)
			f.Push(b)
			f.Push(a)
			return true
		}
		b, ok2 := f.Pop()
		c, ok3 := f.Pop()
		if !ok2 || !ok3 {
			return false
		}
		f.Push(b)
		f.Push(a)
		f.Push(c)
		f.Push(b)
		f.Push(a)
		return true
	})
	reg[bytecode.Dup2X2] = stackOp(func(f stackFrame) bool {
		a, ok := f.Pop()
		b, ok2 := f.Pop()
		if !ok || !ok2 {
			return false
		}
		if a.Type().IsCategory2() && b.Type().IsCategory2() {
			f.Push(a)
			f.Push(b)
			f.Push(a)
			return true
		}
		c, ok3 := f.Pop()
		if !ok3 {
			return false
		}
		f.Push(b)
		f.Push(a)
		f.Push(c)
		f.Push(b)
		f.Push(a)
		return true
	})
	reg[bytecode.Swap] = stackOp(func(f stackFrame) bool {
		a, ok1 := f.Pop()
		b, ok2 := f.Pop()
		if !ok1 || !ok2 {
			return false
		}
		f.Push(a)
		f.Push(b)
		return true
	})
}

// stackFrame is the slice of Frame the stack manipulation ops need.
type stackFrame interface {
	Push(value.Value)
	Pop() (value.Value, bool)
	Top() (value.Value, bool)
}

func stackOp(manip func(f stackFrame) bool) Algorithm {
	return Func(func(s *state.State, ctx *ectx.Ctx) error {
		f, err := s.CurrentFrame()
		if err != nil {
			return err
		}
		if !manip(f) {
			return s.CreateThrowableAndThrowIt(state.VerifyError)
		}
		return s.IncPC(1)
	})
}

type binaryBuilder func(c *calc.Calculator, l, r value.Primitive) (value.Primitive, error)

func registerArithmetic(reg map[byte]Algorithm) {
	binaries := map[byte]binaryBuilder{
		bytecode.Iadd: (*calc.Calculator).Add, bytecode.Ladd: (*calc.Calculator).Add,
		bytecode.Fadd: (*calc.Calculator).Add, bytecode.Dadd: (*calc.Calculator).Add,
		bytecode.Isub: (*calc.Calculator).Sub, bytecode.Lsub: (*calc.Calculator).Sub,
		bytecode.Fsub: (*calc.Calculator).Sub, bytecode.Dsub: (*calc.Calculator).Sub,
		bytecode.Imul: (*calc.Calculator).Mul, bytecode.Lmul: (*calc.Calculator).Mul,
		bytecode.Fmul: (*calc.Calculator).Mul, bytecode.Dmul: (*calc.Calculator).Mul,
		bytecode.Idiv: (*calc.Calculator).Div, bytecode.Ldiv: (*calc.Calculator).Div,
		bytecode.Fdiv: (*calc.Calculator).Div, bytecode.Ddiv: (*calc.Calculator).Div,
		bytecode.Irem: (*calc.Calculator).Rem, bytecode.Lrem: (*calc.Calculator).Rem,
		bytecode.Frem: (*calc.Calculator).Rem, bytecode.Drem: (*calc.Calculator).Rem,
		bytecode.Iand: (*calc.Calculator).And, bytecode.Land: (*calc.Calculator).And,
		bytecode.Ior: (*calc.Calculator).Or, bytecode.Lor: (*calc.Calculator).Or,
		bytecode.Ixor: (*calc.Calculator).Xor, bytecode.Lxor: (*calc.Calculator).Xor,
		bytecode.Ishl: (*calc.Calculator).Shl, bytecode.Lshl: (*calc.Calculator).Shl,
		bytecode.Ishr: (*calc.Calculator).Shr, bytecode.Lshr: (*calc.Calculator).Shr,
		bytecode.Iushr: (*calc.Calculator).Ushr, bytecode.Lushr: (*calc.Calculator).Ushr,
	}
	for op, build := range binaries {
		op, build := op, build
		reg[op] = Func(func(s *state.State, ctx *ectx.Ctx) error {
			return binaryArithmetic(s, ctx, build)
		})
	}

	for _, op := range []byte{bytecode.Ineg, bytecode.Lneg, bytecode.Fneg, bytecode.Dneg} {
		reg[op] = Func(func(s *state.State, ctx *ectx.Ctx) error {
			v, err := s.PopPrimitive()
			if err != nil {
				return s.CreateThrowableAndThrowIt(state.VerifyError)
			}
			res, err := ctx.Calc.Neg(v)
			if err != nil {
				return s.CreateThrowableAndThrowIt(state.VerifyError)
			}
			if err := s.Push(res); err != nil {
				return err
			}
			return s.IncPC(1)
		})
	}
}

// binaryArithmetic pops right then left, builds the result, and maps a
// division/remainder-by-zero from the calculator into the modeled
// ArithmeticException without advancing the pc: the throw walks frames
// for a handler from the faulting pc.
func binaryArithmetic(s *state.State, ctx *ectx.Ctx, build binaryBuilder) error {
	right, err := s.PopPrimitive()
	if err != nil {
		return s.CreateThrowableAndThrowIt(state.VerifyError)
	}
	left, err := s.PopPrimitive()
	if err != nil {
		return s.CreateThrowableAndThrowIt(state.VerifyError)
	}
	res, err := build(ctx.Calc, left, right)
	if err != nil {
		if _, zero := err.(*calc.ArithmeticError); zero {
			return s.CreateThrowableAndThrowIt(state.ArithmeticException)
		}
		return s.CreateThrowableAndThrowIt(state.VerifyError)
	}
	if err := s.Push(res); err != nil {
		return err
	}
	return s.IncPC(1)
}

func registerConversions(reg map[byte]Algorithm) {
	widenings := map[byte]typ.Tag{
		bytecode.I2l: typ.Long, bytecode.I2f: typ.Float, bytecode.I2d: typ.Double,
		bytecode.L2f: typ.Float, bytecode.L2d: typ.Double,
		bytecode.F2d: typ.Double,
	}
	for op, dst := range widenings {
		op, dst := op, dst
		reg[op] = Func(func(s *state.State, ctx *ectx.Ctx) error {
			return convert(s, func(v value.Primitive) (value.Primitive, error) {
				return ctx.Calc.Widen(dst, v)
			})
		})
	}
	narrowings := map[byte]typ.Tag{
		bytecode.L2i: typ.Int,
		bytecode.F2i: typ.Int, bytecode.F2l: typ.Long,
		bytecode.D2i: typ.Int, bytecode.D2l: typ.Long, bytecode.D2f: typ.Float,
	}
	for op, dst := range narrowings {
		op, dst := op, dst
		reg[op] = Func(func(s *state.State, ctx *ectx.Ctx) error {
			return convert(s, func(v value.Primitive) (value.Primitive, error) {
				return ctx.Calc.Narrow(dst, v)
			})
		})
	}
	// i2b/i2c/i2s truncate and re-widen: the result stays int-typed on
	// the operand stack, as the hosted VM defines.
	truncations := map[byte]typ.Tag{
		bytecode.I2b: typ.Byte, bytecode.I2c: typ.Char, bytecode.I2s: typ.Short,
	}
	for op, mid := range truncations {
		op, mid := op, mid
		reg[op] = Func(func(s *state.State, ctx *ectx.Ctx) error {
			return convert(s, func(v value.Primitive) (value.Primitive, error) {
				narrowed, err := ctx.Calc.Narrow(mid, v)
				if err != nil {
					return nil, err
				}
				return ctx.Calc.Widen(typ.Int, narrowed)
			})
		})
	}
}

func convert(s *state.State, conv func(value.Primitive) (value.Primitive, error)) error {
	v, err := s.PopPrimitive()
	if err != nil {
		return s.CreateThrowableAndThrowIt(state.VerifyError)
	}
	res, err := conv(v)
	if err != nil {
		return s.CreateThrowableAndThrowIt(state.VerifyError)
	}
	if err := s.Push(res); err != nil {
		return err
	}
	return s.IncPC(1)
}

func registerCmps(reg map[byte]Algorithm) {
	for _, op := range []byte{bytecode.Lcmp, bytecode.Fcmpl, bytecode.Fcmpg, bytecode.Dcmpl, bytecode.Dcmpg} {
		reg[op] = Func(func(s *state.State, ctx *ectx.Ctx) error {
			right, err := s.PopPrimitive()
			if err != nil {
				return s.CreateThrowableAndThrowIt(state.VerifyError)
			}
			left, err := s.PopPrimitive()
			if err != nil {
				return s.CreateThrowableAndThrowIt(state.VerifyError)
			}
			res, err := ctx.Calc.Cmp(left, right)
			if err != nil {
				return s.CreateThrowableAndThrowIt(state.VerifyError)
			}
			if err := s.Push(res); err != nil {
				return err
			}
			return s.IncPC(1)
		})
	}
}
