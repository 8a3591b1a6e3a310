package mem

import (
	"fmt"

	"github.com/gangz/jbse/internal/typ"
	"github.com/gangz/jbse/internal/value"
)

// Klass is the static-area counterpart of an Instance:
// one per class, holding its static fields, created on demand by
// EnsureKlass with every declared static field
// default-initialized.
type Klass struct {
	className string
	fields    map[string]value.Value
	sigs      map[string]typ.Signature
	// Initialized tracks whether <clinit> has already run to completion
	// on this path, distinct from the Klass merely existing in the
	// static area.
	Initialized bool
}

func NewKlass(className string, sigs []typ.Signature) *Klass {
	k := &Klass{
		className: className,
		fields:    make(map[string]value.Value, len(sigs)),
		sigs:      make(map[string]typ.Signature, len(sigs)),
	}
	for _, s := range sigs {
		k.sigs[s.Name] = s
	}
	return k
}

func (k *Klass) ClassName() string { return k.className }

func (k *Klass) Signatures() []typ.Signature {
	out := make([]typ.Signature, 0, len(k.sigs))
	for _, s := range k.sigs {
		out = append(out, s)
	}
	return out
}

func (k *Klass) GetFieldValue(sig typ.Signature) (value.Value, bool) {
	v, ok := k.fields[sig.Name]
	return v, ok
}

func (k *Klass) PutFieldValue(sig typ.Signature, v value.Value) error {
	if _, declared := k.sigs[sig.Name]; !declared {
		return fmt.Errorf("static field %s not declared on %s", sig.Name, k.className)
	}
	k.fields[sig.Name] = v
	return nil
}

func (k *Klass) Clone() *Klass {
	c := &Klass{className: k.className, fields: make(map[string]value.Value, len(k.fields)), sigs: k.sigs, Initialized: k.Initialized}
	for name, v := range k.fields {
		c.fields[name] = v
	}
	return c
}

// StaticArea is the mapping class_name -> Klass.
type StaticArea struct {
	klasses map[string]*Klass
}

func NewStaticArea() *StaticArea {
	return &StaticArea{klasses: make(map[string]*Klass)}
}

func (sa *StaticArea) Get(className string) (*Klass, bool) {
	k, ok := sa.klasses[className]
	return k, ok
}

func (sa *StaticArea) Put(k *Klass) {
	sa.klasses[k.className] = k
}

func (sa *StaticArea) Clone() *StaticArea {
	c := &StaticArea{klasses: make(map[string]*Klass, len(sa.klasses))}
	for name, k := range sa.klasses {
		c.klasses[name] = k.Clone()
	}
	return c
}
