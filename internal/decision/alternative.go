package decision

import (
	"fmt"
	"sort"
)

// Kind enumerates the decision-alternative families.
type Kind int

const (
	// Branch alternatives of a binary conditional.
	BranchTaken Kind = iota
	BranchNotTaken
	// One case (or the default) of a table/lookup switch.
	SwitchCase
	// Array access bounds outcomes.
	BoundsIn
	BoundsOut
	// Symbolic reference resolution outcomes.
	RefNull
	RefAliases
	RefExpands
)

func (k Kind) String() string {
	switch k {
	case BranchTaken:
		return "TAKEN"
	case BranchNotTaken:
		return "NOT_TAKEN"
	case SwitchCase:
		return "CASE"
	case BoundsIn:
		return "IN"
	case BoundsOut:
		return "OUT"
	case RefNull:
		return "NULL"
	case RefAliases:
		return "ALIASES"
	case RefExpands:
		return "EXPANDS"
	default:
		return "?"
	}
}

// Alternative is one possible outcome of a symbolic decision point: a
// tuple of kind, branch number, concreteness and per-kind extras.
// At most one alternative per fork is concrete; the runner uses the
// flag to distinguish concrete from symbolic forks.
type Alternative struct {
	Kind         Kind
	BranchNumber int
	IsConcrete   bool

	// HeapPos for RefAliases; ClassName for RefExpands.
	HeapPos   int64
	ClassName string

	// CaseValue/IsDefault for SwitchCase; Target is the jump pc for
	// branching kinds.
	CaseValue int32
	IsDefault bool
	Target    int
}

func (a Alternative) String() string {
	switch a.Kind {
	case RefAliases:
		return fmt.Sprintf("ALIASES(%d)", a.HeapPos)
	case RefExpands:
		return fmt.Sprintf("EXPANDS(%s)", a.ClassName)
	case SwitchCase:
		if a.IsDefault {
			return "DEFAULT"
		}
		return fmt.Sprintf("CASE(%d)", a.CaseValue)
	default:
		return a.Kind.String()
	}
}

// SortStable orders alternatives in the observable stable order:
// {NULL, ALIASES(asc heap_pos), EXPANDS(lexicographic class_name)} for
// reference resolution; ascending branch_number for branch kinds.
// Identifiers encode this order, so it is part of the determinism
// contract.
func SortStable(alts []Alternative) {
	sort.SliceStable(alts, func(i, j int) bool {
		a, b := alts[i], alts[j]
		if ra, rb := refRank(a.Kind), refRank(b.Kind); ra >= 0 && rb >= 0 {
			if ra != rb {
				return ra < rb
			}
			switch a.Kind {
			case RefAliases:
				return a.HeapPos < b.HeapPos
			case RefExpands:
				return a.ClassName < b.ClassName
			default:
				return false
			}
		}
		return a.BranchNumber < b.BranchNumber
	})
	for i := range alts {
		alts[i].BranchNumber = i
	}
}

func refRank(k Kind) int {
	switch k {
	case RefNull:
		return 0
	case RefAliases:
		return 1
	case RefExpands:
		return 2
	default:
		return -1
	}
}

// BranchLetter encodes one branch choice of a fork as the identifier
// letter appended to the child's identifier:
// the first two children get L and R, further switch arms count up
// from 'a'.
func BranchLetter(branchNumber int) byte {
	switch branchNumber {
	case 0:
		return 'L'
	case 1:
		return 'R'
	default:
		return byte('a' + branchNumber - 2)
	}
}
