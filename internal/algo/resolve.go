package algo

import (
	"github.com/pkg/errors"

	"github.com/gangz/jbse/internal/decision"
	"github.com/gangz/jbse/internal/ectx"
	"github.com/gangz/jbse/internal/mem"
	"github.com/gangz/jbse/internal/state"
	"github.com/gangz/jbse/internal/value"
)

// resolveReference forks on the resolution of a symbolic reference:
// the NULL alternative, one
// ALIAS per compatible heap object, and one EXPANDS per instantiable
// class assignable to the reference's static type — pruned first by the
// LICS rules (before the decision procedure is consulted) and the heap
// scope, then filtered by isSat*.
//
// Each child's setter rewrites the slot the reference was read from;
// the pc is left unchanged so the bytecode re-executes on the child
// with the reference resolved.
func resolveReference(s *state.State, ctx *ectx.Ctx, ref *value.ReferenceSymbolic,
	setter func(child *state.State, resolved value.Value) error) error {

	var alts []decision.Alternative

	if ctx.Rules.AllowsNull(ref.Origin) {
		ok, err := ctx.Dec.IsSatNull(ref)
		if err != nil {
			return errors.Wrapf(err, "deciding null resolution of %s", ref.Origin)
		}
		if ok {
			alts = append(alts, decision.Alternative{Kind: decision.RefNull})
		}
	}

	for _, pos := range s.Heap().Positions() {
		obj, present := s.Heap().Get(pos)
		if !present {
			continue
		}
		if !ctx.Hier.IsAssignable(obj.ClassName(), ref.StaticType) {
			continue
		}
		if !ctx.Rules.AllowsAlias(ref.Origin, originOfHeapPos(s, pos)) {
			continue
		}
		ok, err := ctx.Dec.IsSatAliases(ref, pos, obj)
		if err != nil {
			return errors.Wrapf(err, "deciding alias resolution of %s", ref.Origin)
		}
		if ok {
			alts = append(alts, decision.Alternative{Kind: decision.RefAliases, HeapPos: pos})
		}
	}

	for _, className := range ctx.Hier.Names() {
		if !ctx.Hier.IsInstantiable(className) {
			continue
		}
		if !ctx.Hier.IsAssignable(className, ref.StaticType) {
			continue
		}
		if !ctx.Rules.AllowsExpansion(ref.Origin, className) {
			continue
		}
		// The heap scope forbids an expansion whose post-state heap
		// would exceed the per-class limit; the count is taken from
		// this candidate state's own heap, never from sibling paths.
		if ctx.HeapScope > 0 && heapInstanceCount(s, className) >= ctx.HeapScope {
			continue
		}
		ok, err := ctx.Dec.IsSatExpands(ref, className)
		if err != nil {
			return errors.Wrapf(err, "deciding expansion of %s", ref.Origin)
		}
		if ok {
			alts = append(alts, decision.Alternative{Kind: decision.RefExpands, ClassName: className})
		}
	}

	decision.SortStable(alts)

	return forkApply(s, ctx, alts,
		func(child *state.State, alt decision.Alternative) (mem.Clause, error) {
			switch alt.Kind {
			case decision.RefNull:
				return &mem.ClauseAssumeNull{Ref: ref}, setter(child, value.NewReferenceConcreteNull())
			case decision.RefAliases:
				return &mem.ClauseAssumeAliases{Ref: ref, HeapPos: alt.HeapPos},
					setter(child, value.NewReferenceConcrete(alt.HeapPos))
			default:
				pos, cref, err := expandFresh(child, ctx, alt.ClassName, ref.Origin)
				if err != nil {
					return nil, err
				}
				return &mem.ClauseAssumeExpands{Ref: ref, ClassName: alt.ClassName, HeapPos: pos},
					setter(child, cref)
			}
		})
}

// heapInstanceCount counts the objects of exactly className on s's
// heap, the population the heap scope bounds.
func heapInstanceCount(s *state.State, className string) int {
	n := 0
	for _, pos := range s.Heap().Positions() {
		if obj, present := s.Heap().Get(pos); present && obj.ClassName() == className {
			n++
		}
	}
	return n
}

// expandFresh allocates a fresh instance of className whose every field
// is itself symbolic: primitives become fresh Terms, references become
// fresh symbolic references, with origins extending the parent's origin
// expression (e.g. ROOT.next expands to fields ROOT.next.value,
// ROOT.next.next).
func expandFresh(child *state.State, ctx *ectx.Ctx, className, origin string) (int64, *value.ReferenceConcrete, error) {
	sigs, err := ctx.Hier.InstanceFieldSignatures(className)
	if err != nil {
		return 0, nil, err
	}
	obj := mem.NewInstance(className, sigs)
	for _, sig := range sigs {
		fieldOrigin := origin + "." + sig.Name
		tag := sig.ReturnTag()
		var fv value.Value
		if tag.IsPrimitive() {
			fv = ctx.Calc.NewTerm(tag, fieldOrigin)
		} else {
			fv = value.NewReferenceSymbolic(child.NextRefID(), fieldOrigin, classOfDescriptor(sig.Descriptor))
		}
		if perr := obj.PutFieldValue(sig, fv); perr != nil {
			return 0, nil, perr
		}
	}
	pos := child.Heap().Allocate(obj)
	return pos, value.NewReferenceConcrete(pos), nil
}

// classOfDescriptor strips a field descriptor "Lpkg/C;" to "pkg/C";
// array descriptors pass through unchanged.
func classOfDescriptor(d string) string {
	if len(d) > 2 && d[0] == 'L' && d[len(d)-1] == ';' {
		return d[1 : len(d)-1]
	}
	return d
}

// originOfHeapPos recovers the origin expression of the symbolic
// reference that expanded into the object at pos, scanning the path
// condition; objects allocated concretely (by new) have no origin and
// return "".
func originOfHeapPos(s *state.State, pos int64) string {
	for _, c := range s.PathCondition().Clauses() {
		if e, ok := c.(*mem.ClauseAssumeExpands); ok && e.HeapPos == pos {
			return e.Ref.Origin
		}
	}
	return ""
}

// resolvedTarget maps an already-recorded resolution of ref, if the
// path condition pins one; used to avoid re-forking a reference that
// was resolved earlier on this path.
func resolvedTarget(s *state.State, ref *value.ReferenceSymbolic) (value.Value, bool) {
	for _, c := range s.PathCondition().Clauses() {
		switch cl := c.(type) {
		case *mem.ClauseAssumeNull:
			if cl.Ref.Origin == ref.Origin {
				return value.NewReferenceConcreteNull(), true
			}
		case *mem.ClauseAssumeAliases:
			if cl.Ref.Origin == ref.Origin {
				return value.NewReferenceConcrete(cl.HeapPos), true
			}
		case *mem.ClauseAssumeExpands:
			if cl.Ref.Origin == ref.Origin {
				return value.NewReferenceConcrete(cl.HeapPos), true
			}
		}
	}
	return nil, false
}

// resolveOrFork is the entry algorithms use on a reference operand at
// stack depth depthFromTop: a reference already pinned by the path
// condition is rewritten in place (no fork, returns done=false so the
// caller proceeds); an unresolved one forks and returns done=true (the
// caller must not touch the state further).
func resolveOrFork(s *state.State, ctx *ectx.Ctx, depthFromTop int) (done bool, err error) {
	f, err := s.CurrentFrame()
	if err != nil {
		return false, err
	}
	v, ok := f.OperandFromTop(depthFromTop)
	if !ok {
		return false, s.CreateThrowableAndThrowIt(state.VerifyError)
	}
	ref, symbolic := v.(*value.ReferenceSymbolic)
	if !symbolic {
		return false, nil
	}
	if pinned, was := resolvedTarget(s, ref); was {
		f.SetOperandFromTop(depthFromTop, pinned)
		return false, nil
	}
	err = resolveReference(s, ctx, ref, func(child *state.State, resolved value.Value) error {
		cf, cerr := child.CurrentFrame()
		if cerr != nil {
			return cerr
		}
		cf.SetOperandFromTop(depthFromTop, resolved)
		return nil
	})
	return true, err
}

// isNullRef reports whether a (resolved) reference operand denotes null.
func isNullRef(v value.Value) bool {
	switch r := v.(type) {
	case *value.Null:
		return true
	case *value.ReferenceConcrete:
		return r.IsNull
	default:
		return false
	}
}

// heapPosOf extracts the heap position of a non-null concrete reference.
func heapPosOf(v value.Value) (int64, bool) {
	r, ok := v.(*value.ReferenceConcrete)
	if !ok || r.IsNull {
		return 0, false
	}
	return r.HeapPos, true
}
