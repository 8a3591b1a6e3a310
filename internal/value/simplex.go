package value

import (
	"fmt"

	"github.com/gangz/jbse/internal/typ"
)

// Simplex is a concrete primitive literal. Payload holds the
// host-language representation appropriate to Tag: int64 for
// byte/char/short/int/long, bool for boolean, float32 for float,
// float64 for double.
type Simplex struct {
	primitiveBase
	Payload any
}

// NewSimplex constructs a Simplex; calc may be nil for values built
// before a Calculator exists (e.g. bootstrapping tests), in which case
// Calc() returns nil and the caller must not dereference it.
func NewSimplex(calc Calculator, tag typ.Tag, payload any) *Simplex {
	return &Simplex{primitiveBase: primitiveBase{tag: tag, calc: calc}, Payload: payload}
}

func (s *Simplex) IsSymbolic() bool { return false }

func (s *Simplex) String() string {
	switch v := s.Payload.(type) {
	case bool:
		return fmt.Sprintf("%t", v)
	case float32:
		return fmt.Sprintf("%g", v)
	case float64:
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (s *Simplex) Accept(v Visitor) any { return v.VisitSimplex(s) }

// Int64 returns the Payload as int64, for integral tags. It panics if
// Payload does not hold an int64 — callers must check Type() first, the
// way the rest of this package never silently coerces.
func (s *Simplex) Int64() int64 { return s.Payload.(int64) }

func (s *Simplex) Bool() bool { return s.Payload.(bool) }

func (s *Simplex) Float32() float32 { return s.Payload.(float32) }

func (s *Simplex) Float64() float64 { return s.Payload.(float64) }
