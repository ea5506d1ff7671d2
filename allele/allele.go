// Package allele parses HLA allele designations as they appear in paired
// TCR:pMHC tables. Inputs are frequently imperfect: the HLA- prefix may be
// missing, the separators may be dropped ("A0201"), only the serotype may be
// given ("HLA-A2"), or point mutations may be appended ("HLA-A*02:01 K66A
// E63Q mutant").
package allele

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrUnparseable is returned when a string cannot be interpreted as an HLA
	// allele designation.
	ErrUnparseable = errors.New("unparseable HLA allele")

	// ErrMutationMismatch is returned when the residues named by a set of
	// mutations do not align to a reference sequence.
	ErrMutationMismatch = errors.New("mutations do not align to reference")
)

// ImputationProbes is the number of subtypes (":01" through ":10") that are
// probed, in order, when only a serotype is known.
const ImputationProbes = 10

var (
	// HLA-A*02:01, A*02:01:01:02L, DRB1*15:01
	fieldedPattern = regexp.MustCompile(`^([A-Z][A-Z0-9]*)\*(\d{1,3})(?::(\d{2,4}))?(?::\d{2,3})*[A-Z]?$`)

	// A02:01, as used by NetMHC pseudosequence tables
	colonPattern = regexp.MustCompile(`^([ABCEFG])(\d{2,3}):(\d{2,4})$`)

	// A0201, B3508, A02174
	compactPattern = regexp.MustCompile(`^([ABCEFG])(\d{2})(\d{2,3})$`)

	// A2, B35
	serotypePattern = regexp.MustCompile(`^([ABCEFG])(\d{1,2})$`)
)

// Allele is a parsed HLA designation. Protein is empty when the designation
// names only a serotype (allele group).
type Allele struct {
	Gene      string
	Group     string
	Protein   string
	Mutations []Mutation
}

// Parse interprets s as an HLA allele designation. Case is ignored
// throughout, including in mutations. Fields beyond the second are discarded.
func Parse(s string) (Allele, error) {
	out := Allele{}

	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) == 0 {
		return out, fmt.Errorf("%q: %w", s, ErrUnparseable)
	}

	name := strings.ToUpper(fields[0])
	name = strings.TrimPrefix(name, "HLA-")

	if m := fieldedPattern.FindStringSubmatch(name); m != nil {
		out.Gene = m[1]
		out.Group = pad(m[2])
		if m[3] != "" {
			out.Protein = pad(m[3])
		}
	} else if m := colonPattern.FindStringSubmatch(name); m != nil {
		out.Gene, out.Group, out.Protein = m[1], m[2], m[3]
	} else if m := compactPattern.FindStringSubmatch(name); m != nil {
		out.Gene, out.Group, out.Protein = m[1], m[2], m[3]
	} else if m := serotypePattern.FindStringSubmatch(name); m != nil {
		out.Gene, out.Group = m[1], pad(m[2])
	} else {
		return out, fmt.Errorf("%q: %w", s, ErrUnparseable)
	}

	// Everything after the name is either a mutation or the word "mutant"
	for _, tok := range fields[1:] {
		if strings.EqualFold(tok, "mutant") {
			continue
		}
		mut, err := ParseMutation(strings.ToUpper(tok))
		if err != nil {
			return out, fmt.Errorf("%q: %w", s, err)
		}
		out.Mutations = append(out.Mutations, mut)
	}

	if len(out.Mutations) > 0 && !out.HasSubtype() {
		return out, fmt.Errorf("%q: mutations require a protein-level allele: %w", s, ErrUnparseable)
	}

	return out, nil
}

// HasSubtype reports whether the designation reaches protein (two-field)
// precision.
func (a Allele) HasSubtype() bool {
	return a.Protein != ""
}

// Base returns the two-field designation without any mutations, e.g.,
// HLA-B*08:01. For a serotype it returns the group only, e.g., HLA-A*02.
func (a Allele) Base() string {
	if !a.HasSubtype() {
		return fmt.Sprintf("HLA-%s*%s", a.Gene, a.Group)
	}

	return fmt.Sprintf("HLA-%s*%s:%s", a.Gene, a.Group, a.Protein)
}

// WithProtein returns a copy of a at the given protein field. Mutations are
// carried over.
func (a Allele) WithProtein(protein string) Allele {
	out := a
	out.Protein = protein
	return out
}

// String is the canonical designation. Mutated alleles are rendered as
// "HLA-B*08:01 N80I mutant".
func (a Allele) String() string {
	if len(a.Mutations) == 0 {
		return a.Base()
	}

	b := strings.Builder{}
	b.WriteString(a.Base())
	for _, m := range a.Mutations {
		b.WriteString(" ")
		b.WriteString(m.String())
	}
	b.WriteString(" mutant")

	return b.String()
}

// Candidates lists the two-field designations that should be tried, in order,
// when resolving a. An allele with a protein field is its own only candidate.
// A serotype expands to subtypes :01 through :10.
func (a Allele) Candidates() []Allele {
	if a.HasSubtype() {
		return []Allele{a}
	}

	out := make([]Allele, 0, ImputationProbes)
	for i := 1; i <= ImputationProbes; i++ {
		out = append(out, a.WithProtein(fmt.Sprintf("%02d", i)))
	}

	return out
}

// Standardize is a convenience that returns the canonical designation of s.
func Standardize(s string) (string, error) {
	a, err := Parse(s)
	if err != nil {
		return "", err
	}

	return a.String(), nil
}

func pad(field string) string {
	n, err := strconv.Atoi(field)
	if err != nil {
		return field
	}

	if len(field) >= 2 {
		return field
	}

	return fmt.Sprintf("%02d", n)
}
