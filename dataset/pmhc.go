package dataset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/carbocation/tcrpmhcdataset/allele"
)

// TokenSeparator joins a peptide to its MHC representation in a pMHC token.
const TokenSeparator = "[SEP]"

// PMHCKey is the identity of a pMHC: its peptide and the canonical form of its
// allele, mutations included.
type PMHCKey struct {
	Peptide string
	Allele  string
}

func (k PMHCKey) String() string {
	return k.Peptide + "_" + k.Allele
}

// PMHC is an immutable peptide:MHC record. Sequence attributes are resolved on
// first access through the dataset's resolver and memoized per key, so every
// PMHC sharing a dataset (and its splits) shares one resolution.
type PMHC struct {
	peptide string
	input   string
	allele  allele.Allele

	useMHC    bool
	usePseudo bool

	memo *resolutionMemo
}

// newPMHC validates the peptide and allele of row. The allele is parsed but
// not resolved. memo may be nil, in which case sequence attributes cannot be
// resolved.
func newPMHC(row Row, cfg Config, memo *resolutionMemo) (*PMHC, error) {
	cfg = cfg.normalized()

	peptide, err := cleanSequence("Epitope", row.Epitope)
	if err != nil {
		return nil, err
	}
	if peptide == "" {
		return nil, fmt.Errorf("missing Epitope")
	}

	input := strings.TrimSpace(row.Allele)
	if input == "" {
		return nil, fmt.Errorf("missing Allele")
	}
	a, err := allele.Parse(input)
	if err != nil {
		return nil, err
	}

	return &PMHC{
		peptide:   peptide,
		input:     input,
		allele:    a,
		useMHC:    cfg.UseMHC,
		usePseudo: cfg.UsePseudo,
		memo:      memo,
	}, nil
}

// Key is the identity of p.
func (p *PMHC) Key() PMHCKey {
	return PMHCKey{Peptide: p.peptide, Allele: p.allele.String()}
}

func (p *PMHC) Family() Family { return PMHCFamily }

// Peptide is the epitope sequence.
func (p *PMHC) Peptide() string { return p.peptide }

// Allele is the canonical allele designation, mutations included.
func (p *PMHC) Allele() string { return p.allele.String() }

// InputAllele is the allele as it appeared in the source table.
func (p *PMHC) InputAllele() string { return p.input }

// Mutations lists the point mutations applied to the allele, if any.
func (p *PMHC) Mutations() []allele.Mutation {
	out := make([]allele.Mutation, len(p.allele.Mutations))
	copy(out, p.allele.Mutations)
	return out
}

// Resolution returns the memoized lookup of p's canonical allele. Repeated
// calls, and calls on any PMHC with the same key in the same dataset, return
// the same pointer.
func (p *PMHC) Resolution() (*Resolved, error) {
	r := p.resolved()
	if r.err != nil {
		return nil, &ResolutionError{PMHC: p.Key(), Attribute: "allele", Err: r.err}
	}

	return r, nil
}

// Sequence is the full-length MHC sequence with any mutations applied.
func (p *PMHC) Sequence() (string, error) {
	r := p.resolved()
	if r.err != nil {
		return "", &ResolutionError{PMHC: p.Key(), Attribute: "sequence", Err: r.err}
	}
	if r.Sequence == "" {
		return "", &ResolutionError{PMHC: p.Key(), Attribute: "sequence", Err: r.seqErr}
	}

	return r.Sequence, nil
}

// Pseudosequence is the pseudosequence of the canonical allele. Mutations are
// not applied to it.
func (p *PMHC) Pseudosequence() (string, error) {
	r := p.resolved()
	if r.err != nil {
		return "", &ResolutionError{PMHC: p.Key(), Attribute: "pseudosequence", Err: r.err}
	}
	if r.Pseudo == "" {
		return "", &ResolutionError{PMHC: p.Key(), Attribute: "pseudosequence", Err: errNoPseudo}
	}

	return r.Pseudo, nil
}

// Token is the string handed to a model: the peptide alone, or the peptide
// joined by TokenSeparator to the pseudosequence or full MHC sequence.
func (p *PMHC) Token() (string, error) {
	switch {
	case p.useMHC:
		seq, err := p.Sequence()
		if err != nil {
			return "", err
		}
		return p.peptide + TokenSeparator + seq, nil
	case p.usePseudo:
		pseudo, err := p.Pseudosequence()
		if err != nil {
			return "", err
		}
		return p.peptide + TokenSeparator + pseudo, nil
	}

	return p.peptide, nil
}

func (p *PMHC) String() string {
	return fmt.Sprintf("pMHC(%s, %s)", p.peptide, p.allele)
}

func (p *PMHC) resolved() *Resolved {
	if p.memo == nil {
		return &Resolved{err: errNoResolver}
	}

	return p.memo.get(p)
}

func (p *PMHC) attribute(name string) (string, bool) {
	switch name {
	case "Epitope":
		return p.peptide, true
	case "Allele":
		return p.allele.String(), true
	}

	return "", false
}

var (
	errNoResolver = errors.New("no HLA reference configured")
	errNoSequence = errors.New("reference has no full-length sequence for this allele")
	errNoPseudo   = errors.New("reference has no pseudosequence for this allele")
)
