package dataset

import (
	"fmt"
	"strings"
)

// AminoAcids is the alphabet accepted for CDR3 loops, full chains and
// peptides.
const AminoAcids = "ACDEFGHIKLMNPQRSTVWY"

// cleanSequence trims and uppercases s, and returns an error naming column if
// any residue falls outside the amino-acid alphabet. Empty input is returned
// as-is.
func cleanSequence(column, s string) (string, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(AminoAcids, s[i]) < 0 {
			return "", fmt.Errorf("%s %q contains non-amino-acid residue %q at position %d", column, s, s[i], i+1)
		}
	}

	return s, nil
}

// TCRKey is the identity of a TCR under a given Config. Fields that do not
// take part in the identity are left empty.
type TCRKey struct {
	CDR3b string
	TRBV  string
	TRBJ  string
	CDR3a string
	TRAV  string
	TRAJ  string

	TRBFull string
	TRAFull string
}

func (k TCRKey) String() string {
	parts := []string{k.CDR3b, k.TRBV, k.TRBJ}
	if k.CDR3a != "" || k.TRAV != "" || k.TRAJ != "" {
		parts = append(parts, k.CDR3a, k.TRAV, k.TRAJ)
	}
	if k.TRBFull != "" {
		parts = append(parts, k.TRBFull)
	}
	if k.TRAFull != "" {
		parts = append(parts, k.TRAFull)
	}

	return strings.Join(parts, "_")
}

// TCR is an immutable T-cell receptor record. Construct it with NewTCR.
type TCR struct {
	cdr3b, trbv, trbj, trbd, trbFull string
	cdr3a, trav, traj, trad, traFull string

	useCDR3       bool
	useBothChains bool
}

// NewTCR validates the fields of row that describe a TCR. Which fields are
// mandatory depends on cfg: CDR3b, TRBV and TRBJ always are; CDR3a is when
// both chains are used; stitched chains are when CDR3 identity is off. Gene
// names pass through cfg.NormalizeGene when it is set.
func NewTCR(row Row, cfg Config) (*TCR, error) {
	cfg = cfg.normalized()

	gene := strings.TrimSpace
	if cfg.NormalizeGene != nil {
		gene = func(s string) string { return cfg.NormalizeGene(strings.TrimSpace(s)) }
	}

	t := &TCR{
		trbv:          gene(row.TRBV),
		trbj:          gene(row.TRBJ),
		trbd:          gene(row.TRBD),
		trav:          gene(row.TRAV),
		traj:          gene(row.TRAJ),
		trad:          gene(row.TRAD),
		useCDR3:       cfg.UseCDR3,
		useBothChains: cfg.UseBothChains,
	}

	var err error
	if t.cdr3b, err = cleanSequence("CDR3b", row.CDR3b); err != nil {
		return nil, err
	}
	if t.cdr3a, err = cleanSequence("CDR3a", row.CDR3a); err != nil {
		return nil, err
	}
	if t.trbFull, err = cleanSequence("TRB_stitched", row.TRBStitched); err != nil {
		return nil, err
	}
	if t.traFull, err = cleanSequence("TRA_stitched", row.TRAStitched); err != nil {
		return nil, err
	}

	required := []struct{ name, value string }{
		{"CDR3b", t.cdr3b},
		{"TRBV", t.trbv},
		{"TRBJ", t.trbj},
	}
	if cfg.UseBothChains {
		required = append(required, struct{ name, value string }{"CDR3a", t.cdr3a})
	}
	if !cfg.UseCDR3 {
		required = append(required, struct{ name, value string }{"TRB_stitched", t.trbFull})
		if cfg.UseBothChains {
			required = append(required, struct{ name, value string }{"TRA_stitched", t.traFull})
		}
	}
	for _, field := range required {
		if field.value == "" {
			return nil, fmt.Errorf("missing %s", field.name)
		}
	}

	return t, nil
}

// Key is the identity of t. Records that share a key are the same TCR.
func (t *TCR) Key() TCRKey {
	k := TCRKey{
		CDR3b: t.cdr3b,
		TRBV:  t.trbv,
		TRBJ:  t.trbj,
		CDR3a: t.cdr3a,
	}
	if t.useBothChains {
		k.TRAV = t.trav
		k.TRAJ = t.traj
	}
	if !t.useCDR3 {
		k.TRBFull = t.trbFull
		if t.useBothChains {
			k.TRAFull = t.traFull
		}
	}

	return k
}

// Token is the sequence handed to a model: the CDR3b loop, the CDR3b and
// CDR3a loops joined by "_" when both chains are used, or the full chains
// when CDR3 identity is off.
func (t *TCR) Token() string {
	switch {
	case !t.useCDR3 && t.useBothChains:
		return t.trbFull + "_" + t.traFull
	case !t.useCDR3:
		return t.trbFull
	case t.useBothChains:
		return t.cdr3b + "_" + t.cdr3a
	}

	return t.cdr3b
}

func (t *TCR) Family() Family { return TCRFamily }

func (t *TCR) CDR3b() string       { return t.cdr3b }
func (t *TCR) CDR3a() string       { return t.cdr3a }
func (t *TCR) TRBV() string        { return t.trbv }
func (t *TCR) TRBJ() string        { return t.trbj }
func (t *TCR) TRBD() string        { return t.trbd }
func (t *TCR) TRAV() string        { return t.trav }
func (t *TCR) TRAJ() string        { return t.traj }
func (t *TCR) TRAD() string        { return t.trad }
func (t *TCR) TRBStitched() string { return t.trbFull }
func (t *TCR) TRAStitched() string { return t.traFull }

func (t *TCR) String() string {
	return fmt.Sprintf("TCR(%s)", t.Key())
}

// attribute returns the value of a named TCR column, and false if the name
// is not a TCR column.
func (t *TCR) attribute(name string) (string, bool) {
	switch name {
	case "CDR3b":
		return t.cdr3b, true
	case "CDR3a":
		return t.cdr3a, true
	case "TRBV":
		return t.trbv, true
	case "TRBJ":
		return t.trbj, true
	case "TRBD":
		return t.trbd, true
	case "TRAV":
		return t.trav, true
	case "TRAJ":
		return t.traj, true
	case "TRAD":
		return t.trad, true
	case "TRB_stitched":
		return t.trbFull, true
	case "TRA_stitched":
		return t.traFull, true
	}

	return "", false
}
