package dataset

import (
	"fmt"
	"strings"
)

// Family names one side of the bipartite interaction graph.
type Family string

const (
	TCRFamily  Family = "tcr"
	PMHCFamily Family = "pmhc"
)

// ParseFamily accepts "tcr" or "pmhc", case-insensitively.
func ParseFamily(s string) (Family, error) {
	switch Family(strings.ToLower(strings.TrimSpace(s))) {
	case TCRFamily:
		return TCRFamily, nil
	case PMHCFamily:
		return PMHCFamily, nil
	}

	return "", configErrorf("unknown entity family %q; expected %q or %q", s, TCRFamily, PMHCFamily)
}

// Label is the display name of the family.
func (f Family) Label() string {
	if f == PMHCFamily {
		return "pMHC"
	}

	return "TCR"
}

// DefaultMaxRejectFraction is the share of rows that may be rejected before a
// load is considered to have failed.
const DefaultMaxRejectFraction = 0.5

// Config controls how rows are turned into entities and how a View is
// oriented.
type Config struct {
	// Source and Target set the orientation of the View. They must differ.
	Source Family
	Target Family

	// UseMHC represents a pMHC by its full-length MHC sequence. It takes
	// precedence over UsePseudo.
	UseMHC bool

	// UsePseudo represents a pMHC by its pseudosequence.
	UsePseudo bool

	// UseCDR3 identifies a TCR by its CDR3 loops. When false, the
	// full-length chain sequences are required and become part of the
	// identity.
	UseCDR3 bool

	// UseBothChains makes the alpha chain mandatory and part of the identity.
	UseBothChains bool

	// MaxRejectFraction is the largest share of rejected rows a load will
	// accept. Above it, nothing from the load is kept. Zero means
	// DefaultMaxRejectFraction; to refuse any rejected row, set a value
	// below 1/rows such as math.SmallestNonzeroFloat64.
	MaxRejectFraction float64

	// NormalizeGene, when set, rewrites every V, D and J gene name before it
	// becomes part of a TCR. Without it gene names are only trimmed, so
	// TRBV19 and TRBV19*01 are different genes. AlleleFreeGene is one choice.
	NormalizeGene func(string) string

	// Verbose logs every rejected row.
	Verbose bool
}

// DefaultConfig is a TCR → pMHC dataset keyed on CDR3b with pMHCs represented
// by their pseudosequence.
func DefaultConfig() Config {
	return Config{
		Source:            TCRFamily,
		Target:            PMHCFamily,
		UseMHC:            false,
		UsePseudo:         true,
		UseCDR3:           true,
		UseBothChains:     false,
		MaxRejectFraction: DefaultMaxRejectFraction,
	}
}

// Validate returns a *ConfigurationError if the configuration cannot be used.
func (c Config) Validate() error {
	if _, err := ParseFamily(string(c.Source)); err != nil {
		return err
	}
	if _, err := ParseFamily(string(c.Target)); err != nil {
		return err
	}
	if c.Source == c.Target {
		return configErrorf("source and target must differ; both are %q", c.Source)
	}
	if c.MaxRejectFraction < 0 || c.MaxRejectFraction > 1 {
		return configErrorf("MaxRejectFraction must be within [0, 1], got %v", c.MaxRejectFraction)
	}

	return nil
}

func (c Config) normalized() Config {
	out := c
	out.Source, _ = ParseFamily(string(c.Source))
	out.Target, _ = ParseFamily(string(c.Target))
	if out.UseMHC {
		out.UsePseudo = false
	}
	if out.MaxRejectFraction == 0 {
		out.MaxRejectFraction = DefaultMaxRejectFraction
	}

	return out
}

// AlleleFreeGene drops the allele suffix of a gene name and uppercases it, so
// "trbv19*01" becomes "TRBV19".
func AlleleFreeGene(gene string) string {
	gene = strings.ToUpper(strings.TrimSpace(gene))
	if i := strings.IndexByte(gene, '*'); i >= 0 {
		gene = gene[:i]
	}

	return gene
}

func (c Config) String() string {
	return fmt.Sprintf("source=%q, target=%q, use_mhc=%v, use_pseudo=%v, use_cdr3=%v, use_both_chains=%v",
		c.Source, c.Target, c.UseMHC, c.UsePseudo, c.UseCDR3, c.UseBothChains)
}
