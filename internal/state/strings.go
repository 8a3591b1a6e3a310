package state

import "github.com/gangz/jbse/internal/value"

const stringClassName = "java/lang/String"

// ReferenceToStringLiteral interns a constant-pool UTF8 literal: the
// first lift of a literal allocates an immutable
// string instance on the heap; later lifts of the same literal return a
// reference to the same heap position.
func (s *State) ReferenceToStringLiteral(utf8 string) (*value.ReferenceConcrete, error) {
	if pos, ok := s.stringLiterals[utf8]; ok {
		return value.NewReferenceConcrete(pos), nil
	}
	pos, ref, err := s.CreateInstance(stringClassName)
	if err != nil {
		return nil, err
	}
	s.stringLiterals[utf8] = pos
	return ref, nil
}

// StringLiteralAt reports the interned literal at a heap position, if
// that position holds an interned string; used by formatters and tests.
func (s *State) StringLiteralAt(pos int64) (string, bool) {
	for lit, p := range s.stringLiterals {
		if p == pos {
			return lit, true
		}
	}
	return "", false
}
