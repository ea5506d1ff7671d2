package allele

import (
	"fmt"
	"strings"
)

// Resolution is the outcome of looking an allele up in a sequence reference.
// Sequence and Pseudo belong to the canonical (unmutated) allele named by
// Allele; either may be empty when the reference has only the other.
type Resolution struct {
	// Requested is the designation that was asked for.
	Requested string

	// Allele is the two-field designation that matched.
	Allele string

	Sequence string
	Pseudo   string

	// Imputed is set when Requested named only a serotype and Allele was
	// chosen by probing subtypes.
	Imputed bool
}

// Resolver maps an allele designation to its reference sequences.
// Implementations return an *AlleleNotFoundError when no candidate resolves.
type Resolver interface {
	Resolve(allele string) (*Resolution, error)
}

// AlleleNotFoundError is returned by a Resolver when neither the allele nor
// any of its imputation candidates has a known sequence.
type AlleleNotFoundError struct {
	Allele string
	Probed []string
}

func (e *AlleleNotFoundError) Error() string {
	if len(e.Probed) <= 1 {
		return fmt.Sprintf("allele %s not found in reference", e.Allele)
	}

	return fmt.Sprintf("allele %s not found in reference (probed %s)", e.Allele, strings.Join(e.Probed, ", "))
}
