package mem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gangz/jbse/internal/typ"
	"github.com/gangz/jbse/internal/value"
)

func intVal(v int64) *value.Simplex { return value.NewSimplex(nil, typ.Int, v) }

func TestHeapAllocatePreservesIDs(t *testing.T) {
	h := NewHeap()
	p0 := h.Allocate(NewInstance("demo/A", nil))
	p1 := h.Allocate(NewInstance("demo/B", nil))
	assert.Equal(t, int64(0), p0)
	assert.Equal(t, int64(1), p1)

	clone := h.Clone()
	p2 := clone.Allocate(NewInstance("demo/C", nil))
	assert.Equal(t, int64(2), p2, "ids continue from the parent's counter, never reused")

	obj, ok := clone.Get(p0)
	require.True(t, ok)
	assert.Equal(t, "demo/A", obj.ClassName())
}

func TestHeapCloneIsDeep(t *testing.T) {
	sig := typ.NewSignature("demo/A", "I", "x")
	h := NewHeap()
	inst := NewInstance("demo/A", []typ.Signature{sig})
	require.NoError(t, inst.PutFieldValue(sig, intVal(1)))
	pos := h.Allocate(inst)

	clone := h.Clone()
	clonedObj, _ := clone.Get(pos)
	require.NoError(t, clonedObj.PutFieldValue(sig, intVal(99)))

	orig, _ := h.Get(pos)
	v, _ := orig.GetFieldValue(sig)
	assert.Equal(t, int64(1), v.(*value.Simplex).Int64(), "mutating a clone must not touch the parent")
}

func TestInstanceRejectsUndeclaredField(t *testing.T) {
	inst := NewInstance("demo/A", []typ.Signature{typ.NewSignature("demo/A", "I", "x")})
	err := inst.PutFieldValue(typ.NewSignature("demo/A", "I", "nope"), intVal(0))
	assert.Error(t, err)
}

func TestInstanceRejectsWrongTypedValue(t *testing.T) {
	sig := typ.NewSignature("demo/A", "I", "x")
	inst := NewInstance("demo/A", []typ.Signature{sig})
	err := inst.PutFieldValue(sig, value.NewSimplex(nil, typ.Long, int64(0)))
	assert.Error(t, err, "field type tag must match the descriptor")
}

func TestArraySymbolicIndex(t *testing.T) {
	arr := NewArray(typ.Int, intVal(10))
	i := value.NewTerm(nil, typ.Int, 1, "i")

	_, present := arr.GetElement(i)
	assert.False(t, present)

	arr.PutElement(i, intVal(5))
	v, present := arr.GetElement(value.NewTerm(nil, typ.Int, 1, "i"))
	require.True(t, present, "reads at a structurally equal symbolic index must agree")
	assert.Equal(t, int64(5), v.(*value.Simplex).Int64())

	arr.PutElement(intVal(0), intVal(7))
	v, present = arr.GetElement(intVal(0))
	require.True(t, present)
	assert.Equal(t, int64(7), v.(*value.Simplex).Int64())
}

func TestFrameOperandsAndLocals(t *testing.T) {
	f := NewFrame(typ.NewSignature("demo/A", "(I)V", "m"), []byte{0x00, 0x00}, 2)

	_, ok := f.Pop()
	assert.False(t, ok)

	f.Push(intVal(1))
	f.Push(intVal(2))
	top, ok := f.Top()
	require.True(t, ok)
	assert.Equal(t, int64(2), top.(*value.Simplex).Int64())

	v, ok := f.OperandFromTop(1)
	require.True(t, ok)
	assert.Equal(t, int64(1), v.(*value.Simplex).Int64())

	assert.True(t, f.SetLocal(0, intVal(9)))
	got, ok := f.GetLocal(0)
	require.True(t, ok)
	assert.Equal(t, int64(9), got.(*value.Simplex).Int64())
	assert.False(t, f.SetLocal(5, intVal(0)))
}

func TestFramePCBounds(t *testing.T) {
	f := NewFrame(typ.NewSignature("demo/A", "()V", "m"), []byte{0x00, 0x00, 0x00}, 0)
	require.NoError(t, f.IncPC(3))
	err := f.IncPC(1)
	var oob *InvalidProgramCounterError
	assert.ErrorAs(t, err, &oob)

	_, err = f.Instruction(0)
	assert.Error(t, err, "pc at end of code has no instruction")
}

func TestStackCloneIndependence(t *testing.T) {
	s := NewStack()
	f := NewFrame(typ.NewSignature("demo/A", "()V", "m"), []byte{0x00}, 1)
	f.Push(intVal(1))
	s.Push(f)

	c := s.Clone()
	cf, _ := c.Current()
	cf.Push(intVal(2))
	cf.PC = 1

	of, _ := s.Current()
	_, ok := of.Top()
	assert.True(t, ok)
	assert.Equal(t, 1, of.OperandCount())
	assert.Equal(t, 0, of.PC)
}

func TestPathConditionCloneIsEager(t *testing.T) {
	pc := NewPathCondition()
	pc.Push(&ClauseAssumeClassInitialized{ClassName: "demo/A"})

	clone := pc.Clone()
	clone.Push(&ClauseAssumeClassNotInitialized{ClassName: "demo/B"})

	assert.Equal(t, 1, pc.Len())
	assert.Equal(t, 2, clone.Len())
}

func TestKlassDefaults(t *testing.T) {
	sig := typ.NewSignature("demo/K", "I", "count")
	k := NewKlass("demo/K", []typ.Signature{sig})
	assert.False(t, k.Initialized)
	require.NoError(t, k.PutFieldValue(sig, intVal(0)))

	sa := NewStaticArea()
	sa.Put(k)
	got, ok := sa.Get("demo/K")
	require.True(t, ok)
	assert.Equal(t, "demo/K", got.ClassName())

	clone := sa.Clone()
	ck, _ := clone.Get("demo/K")
	require.NoError(t, ck.PutFieldValue(sig, intVal(5)))
	v, _ := k.GetFieldValue(sig)
	assert.Equal(t, int64(0), v.(*value.Simplex).Int64())
}
