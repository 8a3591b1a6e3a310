// Package lics implements LICS rules: named
// origin-pattern constraints that prune reference-resolution
// alternatives before the decision procedure is consulted. Each rule
// pairs a glob over the textual origin of a symbolic reference (e.g.
// "ROOT.*.next") with one of never-null / may-expand-to / may-alias.
// Glob matching uses path.Match semantics with '.' as the
// separator-free wildcard domain.
package lics

import "path"

// RuleKind selects what a rule constrains.
type RuleKind int

const (
	// NeverNull prunes the NULL alternative for matching origins.
	NeverNull RuleKind = iota
	// ExpandsTo restricts EXPANDS alternatives for matching origins to
	// classes matching the rule's target pattern.
	ExpandsTo
	// AliasesTo restricts ALIASES alternatives for matching origins to
	// targets whose own origin matches the rule's target pattern.
	AliasesTo
)

// Rule is one origin-pattern constraint.
type Rule struct {
	// OriginPattern is the glob matched against a reference's origin.
	OriginPattern string
	Kind          RuleKind
	// TargetPattern is the class-name glob (ExpandsTo) or origin glob
	// (AliasesTo); unused for NeverNull.
	TargetPattern string
}

// RuleSet is the ordered rule list attached to the engine configuration.
type RuleSet struct {
	rules []Rule
}

func NewRuleSet(rules ...Rule) *RuleSet {
	return &RuleSet{rules: rules}
}

func (rs *RuleSet) Add(r Rule) { rs.rules = append(rs.rules, r) }

func matches(pattern, s string) bool {
	ok, err := path.Match(pattern, s)
	return err == nil && ok
}

// AllowsNull reports whether the NULL alternative survives for a
// reference with the given origin: pruned iff any NeverNull rule
// matches.
func (rs *RuleSet) AllowsNull(origin string) bool {
	if rs == nil {
		return true
	}
	for _, r := range rs.rules {
		if r.Kind == NeverNull && matches(r.OriginPattern, origin) {
			return false
		}
	}
	return true
}

// AllowsExpansion reports whether origin may expand to className. With
// no ExpandsTo rule matching the origin, every class is allowed; with
// one or more matching, the class must match at least one target
// pattern.
func (rs *RuleSet) AllowsExpansion(origin, className string) bool {
	if rs == nil {
		return true
	}
	constrained := false
	for _, r := range rs.rules {
		if r.Kind != ExpandsTo || !matches(r.OriginPattern, origin) {
			continue
		}
		constrained = true
		if matches(r.TargetPattern, className) {
			return true
		}
	}
	return !constrained
}

// AllowsAlias reports whether origin may alias a reference whose own
// origin is targetOrigin, with the same constrained-vs-open semantics
// as AllowsExpansion.
func (rs *RuleSet) AllowsAlias(origin, targetOrigin string) bool {
	if rs == nil {
		return true
	}
	constrained := false
	for _, r := range rs.rules {
		if r.Kind != AliasesTo || !matches(r.OriginPattern, origin) {
			continue
		}
		constrained = true
		if matches(r.TargetPattern, targetOrigin) {
			return true
		}
	}
	return !constrained
}
