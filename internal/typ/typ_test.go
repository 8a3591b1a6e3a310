package typ

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPromotion(t *testing.T) {
	assert.Equal(t, Int, Widens(Byte))
	assert.Equal(t, Int, Widens(Short))
	assert.Equal(t, Int, Widens(Char))
	assert.Equal(t, Long, Widens(Long))
	assert.Equal(t, Double, Widens(Double))
}

func TestBinaryResult(t *testing.T) {
	res, ok := BinaryResult(Byte, Int)
	assert.True(t, ok)
	assert.Equal(t, Int, res)

	_, ok = BinaryResult(Int, Long)
	assert.False(t, ok, "int and long do not mix without an explicit conversion")

	res, ok = BinaryResult(Double, Double)
	assert.True(t, ok)
	assert.Equal(t, Double, res)
}

func TestTagPredicates(t *testing.T) {
	assert.True(t, Long.IsCategory2())
	assert.True(t, Double.IsCategory2())
	assert.False(t, Int.IsCategory2())
	assert.True(t, Reference.IsReference())
	assert.True(t, Array.IsReference())
	assert.False(t, Reference.IsPrimitive())
}

func TestSignatureReturnTag(t *testing.T) {
	field := NewSignature("demo/C", "I", "x")
	assert.Equal(t, Int, field.ReturnTag())
	assert.False(t, field.IsMethod())

	method := NewSignature("demo/C", "(IJ)V", "m")
	assert.True(t, method.IsMethod())
	assert.Equal(t, Void, method.ReturnTag())
}

func TestParamTags(t *testing.T) {
	m := NewSignature("demo/C", "(I[JLjava/lang/String;D)V", "m")
	assert.Equal(t, []Tag{Int, Array, Reference, Double}, m.ParamTags())
}

func TestParamDescriptors(t *testing.T) {
	m := NewSignature("demo/C", "(I[JLjava/lang/String;)V", "m")
	assert.Equal(t, []string{"I", "[J", "Ljava/lang/String;"}, m.ParamDescriptors())
}
