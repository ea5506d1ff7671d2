package dataset

import (
	"fmt"

	"github.com/carbocation/tcrpmhcdataset/allele"
)

// Resolved is the sequence information attached to one pMHC key. Allele is
// the two-field designation the reference matched, which differs from the
// pMHC's own allele when the subtype was imputed.
type Resolved struct {
	Allele   string
	Sequence string
	Pseudo   string
	Imputed  bool

	err    error
	seqErr error
}

// resolutionMemo caches one Resolved per pMHC key, failures included. It is
// shared by a dataset and every view split from it. It is not safe for
// concurrent use.
type resolutionMemo struct {
	resolver allele.Resolver
	entries  map[PMHCKey]*Resolved
}

func newResolutionMemo(resolver allele.Resolver) *resolutionMemo {
	return &resolutionMemo{
		resolver: resolver,
		entries:  make(map[PMHCKey]*Resolved),
	}
}

func (m *resolutionMemo) get(p *PMHC) *Resolved {
	key := p.Key()
	if r, ok := m.entries[key]; ok {
		return r
	}

	r := m.resolve(p)
	m.entries[key] = r

	return r
}

func (m *resolutionMemo) resolve(p *PMHC) *Resolved {
	if m.resolver == nil {
		return &Resolved{err: errNoResolver}
	}

	res, err := m.resolver.Resolve(p.allele.Base())
	if err != nil {
		return &Resolved{err: err}
	}

	out := &Resolved{
		Allele:   res.Allele,
		Sequence: res.Sequence,
		Pseudo:   res.Pseudo,
		Imputed:  res.Imputed,
		seqErr:   errNoSequence,
	}

	if len(p.allele.Mutations) == 0 || res.Sequence == "" {
		return out
	}

	mutated, err := allele.Mutate(res.Sequence, p.allele.Mutations)
	if err != nil {
		// The canonical sequence is not what this pMHC presents, so it must
		// not be handed out in place of the mutant.
		out.Sequence = ""
		out.seqErr = fmt.Errorf("%s: %w", p.allele, err)
		return out
	}
	out.Sequence = mutated

	return out
}

// len is the number of memoized keys.
func (m *resolutionMemo) len() int {
	return len(m.entries)
}
