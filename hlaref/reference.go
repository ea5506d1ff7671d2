// Package hlaref resolves HLA allele designations to full-length MHC
// sequences and NetMHC-style 34-residue pseudosequences from reference tables.
package hlaref

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"

	"github.com/BenLubar/memoize"
	"github.com/carbocation/pfx"

	"github.com/carbocation/tcrpmhcdataset"
	"github.com/carbocation/tcrpmhcdataset/allele"
)

const (
	// SequenceColumn holds the full-length sequence in the consensus table.
	SequenceColumn = "Full Sequence"

	// PseudoColumn holds the pseudosequence in the pseudosequence table.
	PseudoColumn = "pseudo-sequence"
)

// Reference is an in-memory allele → sequence lookup. It satisfies
// allele.Resolver. Results are memoized per requested designation, so
// resolving the same string twice yields the same *allele.Resolution.
type Reference struct {
	seqs    map[string]string
	pseudos map[string]string

	resolve func(string) (*allele.Resolution, error)
}

// NewReference builds a Reference from allele → sequence maps. Keys are
// standardized to two-field designations; keys that cannot be parsed are
// skipped and, for duplicate keys after standardization, the first one wins in
// sorted key order.
func NewReference(seqs, pseudos map[string]string) *Reference {
	r := &Reference{
		seqs:    standardizeKeys(seqs),
		pseudos: standardizeKeys(pseudos),
	}

	r.resolve = memoize.Memoize(r.lookup).(func(string) (*allele.Resolution, error))

	return r
}

// LoadReference reads the full-sequence table at seqPath and the
// pseudosequence table at pseudoPath. Either path may be empty. The first
// column of each table is the allele; the value column is found by name.
func LoadReference(seqPath, pseudoPath string) (*Reference, error) {
	seqs, pseudos := map[string]string{}, map[string]string{}

	if seqPath != "" {
		m, err := readTableFile(seqPath, SequenceColumn)
		if err != nil {
			return nil, pfx.Err(err)
		}
		seqs = m
	}

	if pseudoPath != "" {
		m, err := readTableFile(pseudoPath, PseudoColumn)
		if err != nil {
			return nil, pfx.Err(err)
		}
		pseudos = m
	}

	log.Printf("Loaded %d full-length and %d pseudosequence HLA references\n", len(seqs), len(pseudos))

	return NewReference(seqs, pseudos), nil
}

// Resolve implements allele.Resolver. A designation that names only a serotype
// is imputed to the first of its :01 through :10 subtypes that the reference
// knows.
func (r *Reference) Resolve(designation string) (*allele.Resolution, error) {
	return r.resolve(designation)
}

// Len is the number of distinct alleles with any known sequence.
func (r *Reference) Len() int {
	return len(r.Alleles())
}

// Alleles lists every allele with a full sequence or a pseudosequence, sorted.
func (r *Reference) Alleles() []string {
	seen := make(map[string]struct{}, len(r.seqs))
	for k := range r.seqs {
		seen[k] = struct{}{}
	}
	for k := range r.pseudos {
		seen[k] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)

	return out
}

func (r *Reference) lookup(designation string) (*allele.Resolution, error) {
	a, err := allele.Parse(designation)
	if err != nil {
		return nil, err
	}

	// The reference holds canonical sequences only
	a.Mutations = nil

	probed := make([]string, 0, allele.ImputationProbes)
	for _, cand := range a.Candidates() {
		probed = append(probed, cand.Base())
	}

	// The first candidate with a full sequence wins. Only when none has one
	// does a pseudosequence-only candidate count.
	for _, table := range []map[string]string{r.seqs, r.pseudos} {
		for _, key := range probed {
			if _, ok := table[key]; !ok {
				continue
			}

			return &allele.Resolution{
				Requested: designation,
				Allele:    key,
				Sequence:  r.seqs[key],
				Pseudo:    r.pseudos[key],
				Imputed:   !a.HasSubtype(),
			}, nil
		}
	}

	return nil, &allele.AlleleNotFoundError{Allele: a.Base(), Probed: probed}
}

func readTableFile(path, valueColumn string) (map[string]string, error) {
	f, delim, err := tcrpmhcdataset.OpenTable(path, nil)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadTable(f, delim, valueColumn)
}

// ReadTable parses a delimited reference table whose first column is the
// allele and which has a column named valueColumn.
func ReadTable(r io.Reader, delim rune, valueColumn string) (map[string]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	entries, err := cr.ReadAll()
	if err != nil {
		return nil, pfx.Err(err)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("reference table is empty")
	}

	header := make(map[string]int)
	for i, name := range entries[0] {
		header[strings.TrimSpace(name)] = i
	}

	col, exists := header[valueColumn]
	if !exists {
		return nil, fmt.Errorf("reference table has no %q column. Columns: %v", valueColumn, entries[0])
	}

	out := make(map[string]string, len(entries)-1)
	for _, v := range entries[1:] {
		if len(v) <= col || len(v) == 0 {
			continue
		}
		seq := strings.ToUpper(strings.TrimSpace(v[col]))
		if seq == "" {
			continue
		}
		out[strings.TrimSpace(v[0])] = seq
	}

	return out, nil
}

func standardizeKeys(in map[string]string) map[string]string {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]string, len(in))
	skipped := 0
	for _, k := range keys {
		a, err := allele.Parse(k)
		if err != nil || !a.HasSubtype() || len(a.Mutations) > 0 {
			skipped++
			continue
		}
		if _, exists := out[a.Base()]; exists {
			continue
		}
		out[a.Base()] = in[k]
	}

	if skipped > 0 {
		log.Printf("Skipped %d reference entries that are not two-field HLA designations\n", skipped)
	}

	return out
}
