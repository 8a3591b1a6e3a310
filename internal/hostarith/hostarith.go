// Package hostarith is the narrow, dependency-free sliver of host
// arithmetic shared by internal/calc (eager evaluation of all-Simplex
// operands) and internal/rewrite (constant
// folding): two's-complement integer wraparound and IEEE-754 float/
// double semantics, exactly as the hosted VM defines them.
package hostarith

import "math"

// DivByZeroError is returned by IntDiv/IntRem when the divisor is
// zero; it propagates up to the bytecode layer (ArithmeticException)
// rather than being swallowed here.
type DivByZeroError struct{}

func (DivByZeroError) Error() string { return "division or remainder by zero" }

// Ordered is the set of host numeric types the operators below are
// instantiated over.
type Ordered interface {
	int64 | float32 | float64
}

func Add[T Ordered](l, r T) T { return l + r }
func Sub[T Ordered](l, r T) T { return l - r }
func Mul[T Ordered](l, r T) T { return l * r }

func IntDiv(l, r int64) (int64, error) {
	if r == 0 {
		return 0, DivByZeroError{}
	}
	return l / r, nil
}

func IntRem(l, r int64) (int64, error) {
	if r == 0 {
		return 0, DivByZeroError{}
	}
	return l % r, nil
}

func FloatDiv[T float32 | float64](l, r T) T { return l / r }

func FloatRem32(l, r float32) float32 { return float32(math.Mod(float64(l), float64(r))) }
func FloatRem64(l, r float64) float64 { return math.Mod(l, r) }

func And(l, r int64) int64  { return l & r }
func Or(l, r int64) int64   { return l | r }
func Xor(l, r int64) int64  { return l ^ r }
func Shl(l int64, dist int64) int64 { return l << (uint64(dist) & 63) }
func Shr(l int64, dist int64) int64 { return l >> (uint64(dist) & 63) }

// Ushr is the logical (zero-filling) right shift, as JVM ishr/iushr
// distinguish. width selects a 32-bit (int) or 64-bit (long) operand.
func Ushr(l int64, dist int64, width int) int64 {
	mask := uint64(63)
	if width == 32 {
		mask = 31
	}
	d := uint64(dist) & mask
	if width == 32 {
		return int64(int32(uint32(l) >> d))
	}
	return int64(uint64(l) >> d)
}

// Wrap32 truncates v to the two's-complement range of a 32-bit int,
// the wraparound every binary int-width operation (add/sub/mul/shift)
// must apply before the result is stored back into a Simplex tagged
// Int — Payload is always int64, so nothing narrows the width for free.
func Wrap32(v int64) int64 { return int64(int32(v)) }

func Neg[T Ordered](v T) T { return -v }

func Cmp[T Ordered](l, r T) int64 {
	switch {
	case l < r:
		return -1
	case l > r:
		return 1
	default:
		return 0
	}
}

// CmpFloat implements the JVM's fcmpl/fcmpg and dcmpl/dcmpg NaN
// handling: gtOnNaN selects whether an incomparable (NaN-involving)
// operand pair yields 1 (the *g variants) or -1 (the *l variants).
func CmpFloat[T float32 | float64](l, r T, gtOnNaN bool) int64 {
	if isNaN(l) || isNaN(r) {
		if gtOnNaN {
			return 1
		}
		return -1
	}
	return Cmp(l, r)
}

func isNaN[T float32 | float64](v T) bool {
	return float64(v) != float64(v)
}
