package value

import (
	"fmt"

	"github.com/gangz/jbse/internal/typ"
)

// Term is an abstract symbolic primitive leaf: a fresh
// unconstrained value of a given type, identified by a process-unique id
// and an optional human-readable origin (e.g. a parameter name) used for
// display and for LICS rule matching when a reference's static type
// resolves through a Term.
type Term struct {
	primitiveBase
	ID     int
	Origin string
}

func NewTerm(calc Calculator, tag typ.Tag, id int, origin string) *Term {
	return &Term{primitiveBase: primitiveBase{tag: tag, calc: calc}, ID: id, Origin: origin}
}

func (t *Term) IsSymbolic() bool { return true }

func (t *Term) String() string {
	if t.Origin != "" {
		return t.Origin
	}
	return fmt.Sprintf("$%s%d", t.Type(), t.ID)
}

func (t *Term) Accept(v Visitor) any { return v.VisitTerm(t) }
