package mem

import (
	"fmt"
	"strings"

	"github.com/gangz/jbse/internal/value"
)

// Clause is one assumption asserted along an execution path. The six
// kinds are a sealed sum: a primitive
// condition, the three reference-resolution outcomes (null, aliases,
// expands), and the class-initialization pair.
type Clause interface {
	fmt.Stringer
	clause()
}

// ClauseAssume asserts a boolean primitive condition.
type ClauseAssume struct {
	Cond value.Primitive
}

func (c *ClauseAssume) clause()        {}
func (c *ClauseAssume) String() string { return c.Cond.String() }

// ClauseAssumeNull records that a symbolic reference resolved to null.
type ClauseAssumeNull struct {
	Ref *value.ReferenceSymbolic
}

func (c *ClauseAssumeNull) clause()        {}
func (c *ClauseAssumeNull) String() string { return c.Ref.Origin + " == null" }

// ClauseAssumeAliases records that a symbolic reference resolved to an
// object already on the heap.
type ClauseAssumeAliases struct {
	Ref     *value.ReferenceSymbolic
	HeapPos int64
}

func (c *ClauseAssumeAliases) clause() {}
func (c *ClauseAssumeAliases) String() string {
	return fmt.Sprintf("%s aliases Object[%d]", c.Ref.Origin, c.HeapPos)
}

// ClauseAssumeExpands records that a symbolic reference resolved to a
// fresh object of the given class, allocated at HeapPos.
type ClauseAssumeExpands struct {
	Ref       *value.ReferenceSymbolic
	ClassName string
	HeapPos   int64
}

func (c *ClauseAssumeExpands) clause() {}
func (c *ClauseAssumeExpands) String() string {
	return fmt.Sprintf("%s expands to fresh %s at Object[%d]", c.Ref.Origin, c.ClassName, c.HeapPos)
}

// ClauseAssumeClassInitialized records the assumption that a class was
// already initialized before the symbolic execution started.
type ClauseAssumeClassInitialized struct {
	ClassName string
}

func (c *ClauseAssumeClassInitialized) clause()        {}
func (c *ClauseAssumeClassInitialized) String() string { return "pre-initialized(" + c.ClassName + ")" }

// ClauseAssumeClassNotInitialized is the complementary assumption.
type ClauseAssumeClassNotInitialized struct {
	ClassName string
}

func (c *ClauseAssumeClassNotInitialized) clause() {}
func (c *ClauseAssumeClassNotInitialized) String() string {
	return "not-initialized(" + c.ClassName + ")"
}

// PathCondition is the append-only ordered sequence of Clauses asserted
// along one path. Clones duplicate the list eagerly
//, so sibling states never share the backing slice.
type PathCondition struct {
	clauses []Clause
}

func NewPathCondition() *PathCondition { return &PathCondition{} }

func (pc *PathCondition) Push(c Clause) { pc.clauses = append(pc.clauses, c) }

func (pc *PathCondition) Len() int { return len(pc.clauses) }

// Clauses returns the assumptions in assertion order. Callers must not
// mutate the returned slice.
func (pc *PathCondition) Clauses() []Clause { return pc.clauses }

func (pc *PathCondition) Clone() *PathCondition {
	c := &PathCondition{clauses: make([]Clause, len(pc.clauses))}
	copy(c.clauses, pc.clauses)
	return c
}

func (pc *PathCondition) String() string {
	parts := make([]string, len(pc.clauses))
	for i, c := range pc.clauses {
		parts[i] = c.String()
	}
	return strings.Join(parts, " && ")
}
