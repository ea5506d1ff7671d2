package dataset

import (
	"encoding/csv"
	"io"
	"log"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
)

// Rows flattens the view to one Row per interaction, in view order. Multiple
// references are joined with ReferenceSeparator. Pseudo and MHC are filled
// when the allele resolves and left empty otherwise; Unresolved lists the
// pMHCs concerned.
func (v *View) Rows() []Row {
	out := make([]Row, 0, len(v.edges))
	for _, e := range v.edges {
		t := v.index.tcrs[e.TCR].tcr
		p := v.index.pmhcs[e.PMHC].pmhc

		row := Row{
			CDR3a:       t.cdr3a,
			CDR3b:       t.cdr3b,
			TRAV:        t.trav,
			TRBV:        t.trbv,
			TRAJ:        t.traj,
			TRBJ:        t.trbj,
			TRAD:        t.trad,
			TRBD:        t.trbd,
			TRAStitched: t.traFull,
			TRBStitched: t.trbFull,
			Epitope:     p.peptide,
			Allele:      p.Allele(),
			Reference:   strings.Join(v.index.EdgeReferences(e), ReferenceSeparator),
		}
		if pseudo, err := p.Pseudosequence(); err == nil {
			row.Pseudo = pseudo
		}
		if seq, err := p.Sequence(); err == nil {
			row.MHC = seq
		}

		out = append(out, row)
	}

	return out
}

// Unresolved lists, in first-seen order, the pMHCs of the view whose MHC
// sequence or pseudosequence cannot be resolved.
func (v *View) Unresolved() []PMHCKey {
	var out []PMHCKey
	for _, p := range v.index.PMHCs() {
		_, seqErr := p.Sequence()
		_, pseudoErr := p.Pseudosequence()
		if seqErr != nil || pseudoErr != nil {
			out = append(out, p.Key())
		}
	}

	return out
}

// WriteCSV writes Rows to w as a comma-delimited table with a header. The
// output can be loaded again with a Loader. pMHCs exported with empty MHC or
// Pseudo cells are counted in the log.
func (v *View) WriteCSV(w io.Writer) error {
	rows := v.Rows()

	if unresolved := v.Unresolved(); len(unresolved) > 0 {
		log.Printf("%d of %d pMHCs were exported without a full MHC sequence or pseudosequence (first: %s)\n",
			len(unresolved), v.index.NumPMHCs(), unresolved[0])
	}

	cw := csv.NewWriter(w)
	if err := gocsv.MarshalCSV(&rows, gocsv.NewSafeCSVWriter(cw)); err != nil {
		return pfx.Err(err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return pfx.Err(err)
	}

	return nil
}
