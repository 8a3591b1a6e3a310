// Package state implements the State: the aggregate owning one path's
// heap, static area, thread stack, path condition and flags, with the
// deep-clone semantics forking depends on — copy every mutable cell,
// share the immutable ones (Value nodes, bytecode buffers, the
// borrowed Calculator/Hierarchy services).
package state

import (
	"fmt"

	"github.com/gangz/jbse/internal/calc"
	"github.com/gangz/jbse/internal/classhierarchy"
	"github.com/gangz/jbse/internal/mem"
	"github.com/gangz/jbse/internal/typ"
	"github.com/gangz/jbse/internal/value"
)

// StuckKind is the terminal status of a state.
type StuckKind int

const (
	NotStuck StuckKind = iota
	StuckReturn
	StuckException
	StuckUnsupported
)

func (k StuckKind) String() string {
	switch k {
	case NotStuck:
		return "running"
	case StuckReturn:
		return "return"
	case StuckException:
		return "exception"
	case StuckUnsupported:
		return "unsupported"
	default:
		return "?"
	}
}

// ThreadStackEmptyError reports an operation that needed an active
// frame on a state whose thread stack is empty. Recoverable: the caller
// sets stuck=return.
type ThreadStackEmptyError struct{}

func (ThreadStackEmptyError) Error() string { return "thread stack is empty" }

// State bundles the heap, static area, thread stack, path condition,
// flags, identifier and sequence number. It exclusively
// owns its mutable cells; Calculator and ClassHierarchy are borrowed
// process-wide services.
type State struct {
	calc *calc.Calculator
	hier *classhierarchy.Hierarchy

	heap       *mem.Heap
	staticArea *mem.StaticArea
	stack      *mem.Stack
	pathCond   *mem.PathCondition

	// stringLiterals interns constant-pool string literals: literal ->
	// heap_pos of the shared immutable string instance.
	stringLiterals map[string]int64

	stuck       StuckKind
	exceptionAt *value.ReferenceConcrete // set when stuck == StuckException
	unsupported string                   // set when stuck == StuckUnsupported

	identifier     string
	sequenceNumber int
	depth          int

	// returnValue holds the root method's result once stuck == StuckReturn
	// (nil for void).
	returnValue value.Value

	// nextRefID numbers fresh symbolic references minted on this path.
	nextRefID int
}

// New builds the root state: an empty heap/static area and a single
// frame invoking the root method, its parameter slots populated with
// fresh symbolic values (Terms for primitives, symbolic references for
// reference types) whose origins start at ROOT — the anchor every LICS
// origin pattern hangs off.
func New(c *calc.Calculator, hier *classhierarchy.Hierarchy, rootMethod typ.Signature) (*State, error) {
	cf, err := hier.GetClassFile(rootMethod.ClassName)
	if err != nil {
		return nil, err
	}
	m, err := hier.GetMethodCode(rootMethod)
	if err != nil {
		return nil, err
	}
	s := &State{
		calc:           c,
		hier:           hier,
		heap:           mem.NewHeap(),
		staticArea:     mem.NewStaticArea(),
		stack:          mem.NewStack(),
		pathCond:       mem.NewPathCondition(),
		stringLiterals: make(map[string]int64),
	}
	frame := mem.NewFrame(rootMethod, m.Code, m.MaxLocals)
	slot := 0
	if method, ok := cf.FindMethod(rootMethod.Name, rootMethod.Descriptor); ok && !method.IsStatic() {
		frame.SetLocal(0, value.NewReferenceSymbolic(s.NextRefID(), "ROOT:this", rootMethod.ClassName))
		slot = 1
	}
	for i, desc := range rootMethod.ParamDescriptors() {
		origin := fmt.Sprintf("ROOT:%d", i)
		tag := typ.Tag(desc[0])
		var v value.Value
		if tag.IsPrimitive() {
			v = c.NewTerm(tag, origin)
		} else {
			v = value.NewReferenceSymbolic(s.NextRefID(), origin, trimDescriptor(desc))
		}
		frame.SetLocal(slot, v)
		if tag.IsCategory2() {
			slot += 2
		} else {
			slot++
		}
	}
	s.stack.Push(frame)
	return s, nil
}

// trimDescriptor strips "Lpkg/C;" to "pkg/C"; array descriptors pass
// through.
func trimDescriptor(d string) string {
	if len(d) > 2 && d[0] == 'L' && d[len(d)-1] == ';' {
		return d[1 : len(d)-1]
	}
	return d
}

func (s *State) Calculator() *calc.Calculator          { return s.calc }
func (s *State) ClassHierarchy() *classhierarchy.Hierarchy { return s.hier }
func (s *State) Heap() *mem.Heap                       { return s.heap }
func (s *State) StaticArea() *mem.StaticArea           { return s.staticArea }
func (s *State) Stack() *mem.Stack                     { return s.stack }
func (s *State) PathCondition() *mem.PathCondition     { return s.pathCond }

func (s *State) Identifier() string  { return s.identifier }
func (s *State) SequenceNumber() int { return s.sequenceNumber }
func (s *State) Depth() int          { return s.depth }

// AppendBranch extends the identifier with one branch-choice letter
// and bumps the fork depth; called once per fork child, preserving
// len(identifier) == depth.
func (s *State) AppendBranch(letter byte) {
	s.identifier += string(letter)
	s.depth++
}

// IncSequenceNumber counts one engine step along this path.
func (s *State) IncSequenceNumber() { s.sequenceNumber++ }

func (s *State) Stuck() StuckKind { return s.stuck }

// ExceptionReference returns the uncaught throwable when stuck is
// StuckException.
func (s *State) ExceptionReference() *value.ReferenceConcrete { return s.exceptionAt }

// UnsupportedReason returns the opcode/feature description when stuck
// is StuckUnsupported.
func (s *State) UnsupportedReason() string { return s.unsupported }

func (s *State) SetStuckReturn() { s.stuck = StuckReturn }

// SetReturnValue records the root method's result; ReturnValue reads it.
func (s *State) SetReturnValue(v value.Value) { s.returnValue = v }
func (s *State) ReturnValue() value.Value     { return s.returnValue }

func (s *State) SetStuckException(ref *value.ReferenceConcrete) {
	s.stuck = StuckException
	s.exceptionAt = ref
}

func (s *State) SetStuckUnsupported(reason string) {
	s.stuck = StuckUnsupported
	s.unsupported = reason
}

// GetKlass returns the static-area Klass for className, if one exists
// on this path yet.
func (s *State) GetKlass(className string) (*mem.Klass, bool) {
	return s.staticArea.Get(className)
}

// CurrentFrame returns the active frame.
func (s *State) CurrentFrame() (*mem.Frame, error) {
	f, ok := s.stack.Current()
	if !ok {
		return nil, ThreadStackEmptyError{}
	}
	return f, nil
}

// GetInstruction returns the bytecode at pc+offset in the current frame
//.
func (s *State) GetInstruction(offset int) (byte, error) {
	f, err := s.CurrentFrame()
	if err != nil {
		return 0, err
	}
	return f.Instruction(offset)
}

// IncPC advances the current frame's pc by delta.
func (s *State) IncPC(delta int) error {
	f, err := s.CurrentFrame()
	if err != nil {
		return err
	}
	return f.IncPC(delta)
}

// SetPC jumps the current frame's pc to an absolute offset.
func (s *State) SetPC(pc int) error {
	f, err := s.CurrentFrame()
	if err != nil {
		return err
	}
	return f.IncPC(pc - f.PC)
}

// Wide reports (and ConsumeWide clears) the one-shot flag the wide
// prefix bytecode sets for the instruction that follows it; stored on
// the current frame so it cannot leak across an interleaved call.
func (s *State) Wide() bool {
	f, ok := s.stack.Current()
	return ok && f.Wide
}

func (s *State) SetWide() error {
	f, err := s.CurrentFrame()
	if err != nil {
		return err
	}
	f.Wide = true
	return nil
}

func (s *State) ConsumeWide() bool {
	f, ok := s.stack.Current()
	if !ok {
		return false
	}
	w := f.Wide
	f.Wide = false
	return w
}

// Push/Pop/Top operate on the current frame's operand stack.
func (s *State) Push(v value.Value) error {
	f, err := s.CurrentFrame()
	if err != nil {
		return err
	}
	f.Push(v)
	return nil
}

func (s *State) Pop() (value.Value, error) {
	f, err := s.CurrentFrame()
	if err != nil {
		return nil, err
	}
	v, ok := f.Pop()
	if !ok {
		return nil, fmt.Errorf("operand stack underflow in %s", f.Method)
	}
	return v, nil
}

func (s *State) Top() (value.Value, error) {
	f, err := s.CurrentFrame()
	if err != nil {
		return nil, err
	}
	v, ok := f.Top()
	if !ok {
		return nil, fmt.Errorf("operand stack empty in %s", f.Method)
	}
	return v, nil
}

// PopPrimitive pops and asserts a primitive operand.
func (s *State) PopPrimitive() (value.Primitive, error) {
	v, err := s.Pop()
	if err != nil {
		return nil, err
	}
	p, ok := v.(value.Primitive)
	if !ok {
		return nil, fmt.Errorf("operand is not a primitive: %s", v)
	}
	return p, nil
}

// AddClause appends one assumption to the path condition. The caller is
// responsible for mirroring it into the decision procedure via
// PushAssumption.
func (s *State) AddClause(c mem.Clause) { s.pathCond.Push(c) }

// NextRefID mints an id for a fresh symbolic reference on this path.
func (s *State) NextRefID() int {
	s.nextRefID++
	return s.nextRefID
}

// Clone deep-copies the state for forking: heap, static area, stack
// and path condition are copied; Value nodes, bytecode and the
// borrowed services are shared. Mutating the clone never changes the
// parent's observable state.
func (s *State) Clone() *State {
	c := &State{
		calc:           s.calc,
		hier:           s.hier,
		heap:           s.heap.Clone(),
		staticArea:     s.staticArea.Clone(),
		stack:          s.stack.Clone(),
		pathCond:       s.pathCond.Clone(),
		stringLiterals: make(map[string]int64, len(s.stringLiterals)),
		stuck:          s.stuck,
		exceptionAt:    s.exceptionAt,
		unsupported:    s.unsupported,
		identifier:     s.identifier,
		sequenceNumber: s.sequenceNumber,
		depth:          s.depth,
		returnValue:    s.returnValue,
		nextRefID:      s.nextRefID,
	}
	for k, v := range s.stringLiterals {
		c.stringLiterals[k] = v
	}
	return c
}

// DefaultValue is the default-initialization value for a field or array
// element of the given type tag: zero for primitives, null for
// references.
func (s *State) DefaultValue(tag typ.Tag) value.Value {
	switch {
	case tag == typ.Float:
		return s.calc.ValOf(typ.Float, float32(0))
	case tag == typ.Double:
		return s.calc.ValOf(typ.Double, float64(0))
	case tag == typ.Boolean:
		return s.calc.ValOf(typ.Boolean, false)
	case tag.IsPrimitive():
		return s.calc.ValOf(tag, int64(0))
	default:
		return value.NewReferenceConcreteNull()
	}
}
