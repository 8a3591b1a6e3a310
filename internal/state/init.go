package state

import (
	"github.com/pkg/errors"

	"github.com/gangz/jbse/internal/decision"
	"github.com/gangz/jbse/internal/mem"
	"github.com/gangz/jbse/internal/typ"
)

// EnsureKlass performs lazy class initialization: if a
// Klass for className already exists, no action; otherwise it allocates
// Klasses (default-initialized statics) for className and every
// superclass/superinterface that needs one, consults the decision
// procedure about the pre-initialized assumption, records the resulting
// clause, and pushes <clinit> frames where they must run.
//
// The returned mustExit is true when at least one <clinit> frame was
// pushed: the current bytecode must not advance its pc, so it re-executes
// after the initializers return.
func (s *State) EnsureKlass(className string, dp decision.Procedure) (mustExit bool, err error) {
	if _, exists := s.staticArea.Get(className); exists {
		return false, nil
	}

	order, err := s.hier.InitializationOrder(className)
	if err != nil {
		return false, err
	}

	// Superclasses run first (deepest ancestor first in order). Frames
	// are LIFO, so push the subclass's <clinit> first and the deepest
	// ancestor's last: the top of stack, hence the first to run, is the
	// ancestor.
	var toInitialize []string
	for _, name := range order {
		if _, exists := s.staticArea.Get(name); exists {
			continue
		}
		klass, kerr := s.allocateKlass(name)
		if kerr != nil {
			return false, kerr
		}

		notInit, derr := dp.IsSatNotInitialized(name)
		if derr != nil {
			return false, errors.Wrapf(derr, "deciding initialization of %s", name)
		}
		if !notInit {
			// The class must be assumed pre-initialized: record the
			// clause, mark the Klass done, run nothing.
			clause := &mem.ClauseAssumeClassInitialized{ClassName: name}
			s.AddClause(clause)
			if perr := dp.PushAssumption(clause); perr != nil {
				return false, perr
			}
			klass.Initialized = true
			continue
		}
		clause := &mem.ClauseAssumeClassNotInitialized{ClassName: name}
		s.AddClause(clause)
		if perr := dp.PushAssumption(clause); perr != nil {
			return false, perr
		}
		toInitialize = append(toInitialize, name)
	}

	for i := len(toInitialize) - 1; i >= 0; i-- {
		name := toInitialize[i]
		cf, cerr := s.hier.GetClassFile(name)
		if cerr != nil {
			return false, cerr
		}
		klass, _ := s.staticArea.Get(name)
		if !cf.HasClinit() {
			klass.Initialized = true
			continue
		}
		sig := typ.NewSignature(name, "()V", "<clinit>")
		m, merr := s.hier.GetMethodCode(sig)
		if merr != nil {
			return false, merr
		}
		// Marked initialized as the frame is pushed, so a <clinit>
		// touching its own statics does not re-enter.
		klass.Initialized = true
		frame := mem.NewFrame(sig, m.Code, m.MaxLocals)
		// A negative return pc tells the return algorithm to leave the
		// interrupted bytecode's pc alone, so it re-executes.
		frame.ReturnPC = -1
		s.stack.Push(frame)
		mustExit = true
	}
	return mustExit, nil
}

func (s *State) allocateKlass(className string) (*mem.Klass, error) {
	sigs, err := s.hier.StaticFieldSignatures(className)
	if err != nil {
		return nil, err
	}
	klass := mem.NewKlass(className, sigs)
	for _, sig := range sigs {
		if perr := klass.PutFieldValue(sig, s.DefaultValue(sig.ReturnTag())); perr != nil {
			return nil, perr
		}
	}
	s.staticArea.Put(klass)
	return klass, nil
}
