package typ

import "fmt"

// Signature identifies a field or method: the class that declares it
// (or, before resolution, the class the lookup started from), its
// descriptor, and its member name. The same record shape serves both
// fields and methods; methods carry a parenthesized parameter/return
// descriptor, fields a bare type descriptor.
type Signature struct {
	ClassName  string
	Descriptor string
	Name       string
}

func NewSignature(className, descriptor, name string) Signature {
	return Signature{ClassName: className, Descriptor: descriptor, Name: name}
}

func (s Signature) String() string {
	return fmt.Sprintf("%s:%s:%s", s.ClassName, s.Descriptor, s.Name)
}

// WithClass returns a copy of s rewritten to the given declaring class,
// used when resolution finds the member higher up the hierarchy than
// the lookup's starting class.
func (s Signature) WithClass(className string) Signature {
	s.ClassName = className
	return s
}

// IsMethod reports whether the descriptor is a method descriptor
// (parenthesized parameter list followed by a return type).
func (s Signature) IsMethod() bool {
	return len(s.Descriptor) > 0 && s.Descriptor[0] == '('
}

// ReturnTag extracts the tag of a method descriptor's return type, or
// the field descriptor's own tag when s is a field signature.
func (s Signature) ReturnTag() Tag {
	d := s.Descriptor
	if s.IsMethod() {
		i := indexRune(d, ')')
		if i < 0 || i+1 >= len(d) {
			return Void
		}
		d = d[i+1:]
	}
	if len(d) == 0 {
		return Void
	}
	return Tag(d[0])
}

// ParamTags splits a method descriptor's parameter list into its
// component type tags, collapsing array/reference descriptors to their
// leading tag ('[' or 'L').
func (s Signature) ParamTags() []Tag {
	if !s.IsMethod() {
		return nil
	}
	d := s.Descriptor[1:]
	var tags []Tag
	for i := 0; i < len(d) && d[i] != ')'; {
		switch d[i] {
		case '[':
			for i < len(d) && d[i] == '[' {
				i++
			}
			if i < len(d) && d[i] == 'L' {
				j := indexRune(d[i:], ';')
				i += j + 1
			} else if i < len(d) {
				i++
			}
			tags = append(tags, Array)
		case 'L':
			j := indexRune(d[i:], ';')
			tags = append(tags, Reference)
			i += j + 1
		default:
			tags = append(tags, Tag(d[i]))
			i++
		}
	}
	return tags
}

// ParamDescriptors splits a method descriptor's parameter list into the
// full descriptor of each parameter ("I", "[I", "Lpkg/C;", ...),
// preserving the information ParamTags collapses.
func (s Signature) ParamDescriptors() []string {
	if !s.IsMethod() {
		return nil
	}
	d := s.Descriptor[1:]
	var out []string
	for i := 0; i < len(d) && d[i] != ')'; {
		start := i
		for i < len(d) && d[i] == '[' {
			i++
		}
		if i < len(d) && d[i] == 'L' {
			j := indexRune(d[i:], ';')
			i += j + 1
		} else if i < len(d) {
			i++
		}
		out = append(out, d[start:i])
	}
	return out
}

func indexRune(s string, r byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == r {
			return i
		}
	}
	return -1
}
