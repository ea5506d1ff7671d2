package allele

import (
	"fmt"
	"strconv"
)

// SignalPeptideLength is the number of leader residues that precede the mature
// protein in full-length HLA class I reference sequences. Mutations are named
// by mature-protein position, so they may need to be shifted by this amount to
// align with a reference that retains the leader.
const SignalPeptideLength = 24

// Mutation is a point substitution, named by 1-based residue position, e.g.,
// N80I.
type Mutation struct {
	Position int
	From     byte
	To       byte
}

func (m Mutation) String() string {
	return fmt.Sprintf("%c%d%c", m.From, m.Position, m.To)
}

// ParseMutation parses a substitution written as
// <original residue><position><replacement residue>.
func ParseMutation(s string) (Mutation, error) {
	out := Mutation{}

	if len(s) < 3 {
		return out, fmt.Errorf("mutation %q is too short: %w", s, ErrUnparseable)
	}

	from, to := s[0], s[len(s)-1]
	if !isResidue(from) || !isResidue(to) {
		return out, fmt.Errorf("mutation %q does not name two residues: %w", s, ErrUnparseable)
	}

	pos, err := strconv.Atoi(s[1 : len(s)-1])
	if err != nil || pos < 1 {
		return out, fmt.Errorf("mutation %q has no valid position: %w", s, ErrUnparseable)
	}

	out.Position = pos
	out.From = from
	out.To = to

	return out, nil
}

// CheckMutations reports whether every mutation's original residue is present
// in seq once positions are shifted by offset (0-based index = Position - 1 +
// offset). An empty mutation list always aligns.
func CheckMutations(seq string, muts []Mutation, offset int) bool {
	for _, m := range muts {
		idx := m.Position - 1 + offset
		if idx < 0 || idx >= len(seq) {
			return false
		}
		if seq[idx] != m.From {
			return false
		}
	}

	return true
}

// ApplyMutations substitutes each mutation into seq at Position - 1 + offset.
// The residues are not checked; see CheckMutations.
func ApplyMutations(seq string, muts []Mutation, offset int) string {
	if len(muts) == 0 {
		return seq
	}

	b := []byte(seq)
	for _, m := range muts {
		idx := m.Position - 1 + offset
		if idx < 0 || idx >= len(b) {
			continue
		}
		b[idx] = m.To
	}

	return string(b)
}

// Mutate applies muts to the reference sequence seq. Positions are first
// interpreted against seq directly, then against seq with a leading signal
// peptide. If neither alignment matches every original residue,
// ErrMutationMismatch is returned and no sequence is produced.
func Mutate(seq string, muts []Mutation) (string, error) {
	for _, offset := range []int{0, SignalPeptideLength} {
		if CheckMutations(seq, muts, offset) {
			return ApplyMutations(seq, muts, offset), nil
		}
	}

	return "", fmt.Errorf("%v: %w", muts, ErrMutationMismatch)
}

func isResidue(c byte) bool {
	return c >= 'A' && c <= 'Z'
}
