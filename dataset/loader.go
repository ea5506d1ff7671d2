package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"

	"github.com/carbocation/tcrpmhcdataset"
	"github.com/carbocation/tcrpmhcdataset/allele"
)

// ReferenceSeparator joins several references in one Reference cell.
const ReferenceSeparator = ";"

// Row is one line of a paired TCR:pMHC table. Column names follow the
// VDJdb-derived convention. Pseudo and MHC are written on export and ignored
// on load, where they are recomputed from Allele.
type Row struct {
	CDR3a       string `csv:"CDR3a"`
	CDR3b       string `csv:"CDR3b"`
	TRAV        string `csv:"TRAV"`
	TRBV        string `csv:"TRBV"`
	TRAJ        string `csv:"TRAJ"`
	TRBJ        string `csv:"TRBJ"`
	TRAD        string `csv:"TRAD"`
	TRBD        string `csv:"TRBD"`
	TRAStitched string `csv:"TRA_stitched"`
	TRBStitched string `csv:"TRB_stitched"`
	Epitope     string `csv:"Epitope"`
	Allele      string `csv:"Allele"`
	Pseudo      string `csv:"Pseudo"`
	MHC         string `csv:"MHC"`
	Reference   string `csv:"Reference"`
}

// RequiredColumns lists the columns a table must carry under cfg.
func RequiredColumns(cfg Config) []string {
	cfg = cfg.normalized()

	out := []string{"CDR3b", "TRBV", "TRBJ", "Epitope", "Allele", "Reference"}
	if cfg.UseBothChains {
		out = append(out, "CDR3a")
	}
	if !cfg.UseCDR3 {
		out = append(out, "TRB_stitched")
		if cfg.UseBothChains {
			out = append(out, "TRA_stitched")
		}
	}

	return out
}

// LoadSummary describes the outcome of one load.
type LoadSummary struct {
	Rows       int
	Accepted   int
	Rejected   int
	Duplicates int

	// Reasons counts rejected rows by cause.
	Reasons map[string]int
}

// Loader accumulates rows from one or more tables into a single index. It is
// sealed once View is called.
type Loader struct {
	cfg    Config
	memo   *resolutionMemo
	index  *Index
	sealed bool
	view   *View
}

// NewLoader prepares an empty dataset. resolver supplies MHC sequences for
// pMHC attributes; it may be nil when no sequence-derived attribute will be
// used. The resolver is never consulted while loading.
func NewLoader(cfg Config, resolver allele.Resolver) (*Loader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	memo := newResolutionMemo(resolver)

	return &Loader{
		cfg:   cfg.normalized(),
		memo:  memo,
		index: newIndex(memo),
	}, nil
}

// LoadFile reads a delimited table from a local path or a gs:// URL. The
// table may be compressed, and its delimiter is detected.
func (l *Loader) LoadFile(path string, client *storage.Client) (LoadSummary, error) {
	rc, delim, err := tcrpmhcdataset.OpenTable(path, client)
	if err != nil {
		return LoadSummary{}, err
	}
	defer rc.Close()

	// Typed errors from LoadReader are returned as is so that callers can
	// still match them.
	summary, err := l.LoadReader(rc, delim)
	if err != nil {
		return summary, err
	}

	log.Printf("Loaded %d TCR:pMHC pairs from %d rows of %s\n", summary.Accepted, summary.Rows, path)

	return summary, nil
}

// LoadReader reads a delimited table with a header row. A *SchemaError is
// returned if a required column is missing.
func (l *Loader) LoadReader(r io.Reader, delim rune) (LoadSummary, error) {
	if l.sealed {
		return LoadSummary{}, configErrorf("loader has been sealed by View")
	}

	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return LoadSummary{}, pfx.Err(err)
	}
	if len(records) == 0 {
		return LoadSummary{}, &SchemaError{Msg: "table has no header", Missing: RequiredColumns(l.cfg)}
	}

	header := records[0]
	present := make(map[string]struct{}, len(header))
	for i, col := range header {
		col = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
		header[i] = col
		present[col] = struct{}{}
	}

	var missing []string
	for _, col := range RequiredColumns(l.cfg) {
		if _, ok := present[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return LoadSummary{}, &SchemaError{Msg: "required columns are absent", Missing: missing}
	}

	rows := []Row{}
	if err := gocsv.UnmarshalCSV(&recordReplayer{records: records}, &rows); err != nil {
		return LoadSummary{}, pfx.Err(err)
	}

	return l.LoadRows(rows)
}

// LoadRows adds rows to the dataset. Rows that cannot form a valid TCR and
// pMHC are rejected and counted. If the rejected share exceeds
// MaxRejectFraction, a *SchemaError is returned and none of the rows are kept.
func (l *Loader) LoadRows(rows []Row) (LoadSummary, error) {
	summary := LoadSummary{Rows: len(rows), Reasons: make(map[string]int)}
	if l.sealed {
		return summary, configErrorf("loader has been sealed by View")
	}

	type staged struct {
		tcr  *TCR
		pmhc *PMHC
		refs []string
	}

	accepted := make([]staged, 0, len(rows))
	for i, row := range rows {
		t, err := NewTCR(row, l.cfg)
		if err == nil {
			var p *PMHC
			p, err = newPMHC(row, l.cfg, l.memo)
			if err == nil {
				accepted = append(accepted, staged{tcr: t, pmhc: p, refs: splitReferences(row.Reference)})
				continue
			}
		}

		summary.Rejected++
		summary.Reasons[rejectReason(err)]++
		if l.cfg.Verbose {
			log.Printf("Skipping row %d: %v\n", i+1, err)
		}
	}

	if len(rows) > 0 {
		frac := float64(summary.Rejected) / float64(len(rows))
		if frac > l.cfg.MaxRejectFraction {
			return summary, &SchemaError{Msg: fmt.Sprintf("rejected %d of %d rows (%.1f%%), above the %.1f%% limit; nothing was loaded",
				summary.Rejected, len(rows), 100*frac, 100*l.cfg.MaxRejectFraction)}
		}
	}

	for _, s := range accepted {
		newEdge := false
		if len(s.refs) == 0 {
			newEdge = l.index.add(s.tcr, s.pmhc, "")
		}
		for _, ref := range s.refs {
			if l.index.add(s.tcr, s.pmhc, ref) {
				newEdge = true
			}
		}
		if !newEdge {
			summary.Duplicates++
		}
	}
	summary.Accepted = len(accepted)

	if summary.Rejected > 0 {
		log.Printf("Rejected %d of %d rows: %v\n", summary.Rejected, summary.Rows, summary.Reasons)
	}

	return summary, nil
}

// View seals the loader and returns the dataset oriented as configured.
// Repeated calls return the same View.
func (l *Loader) View() *View {
	if l.view == nil {
		l.sealed = true
		l.view = newView(l.index, l.cfg)
	}

	return l.view
}

// Index exposes the relational store being built.
func (l *Loader) Index() *Index {
	return l.index
}

func splitReferences(cell string) []string {
	var out []string
	for _, ref := range strings.Split(cell, ReferenceSeparator) {
		if ref = strings.TrimSpace(ref); ref != "" {
			out = append(out, ref)
		}
	}

	return out
}

// rejectReason collapses an error to a short category for the summary.
func rejectReason(err error) string {
	msg := err.Error()
	switch {
	case errors.Is(err, allele.ErrUnparseable):
		return "unparseable allele"
	case strings.HasPrefix(msg, "missing "):
		return msg
	case strings.Contains(msg, "non-amino-acid"):
		return "invalid residue"
	}

	return "invalid row"
}

// recordReplayer hands already-read records to gocsv.
type recordReplayer struct {
	records [][]string
	pos     int
}

func (r *recordReplayer) Read() ([]string, error) {
	if r.pos >= len(r.records) {
		return nil, io.EOF
	}
	rec := r.records[r.pos]
	r.pos++

	return rec, nil
}

func (r *recordReplayer) ReadAll() ([][]string, error) {
	out := r.records[r.pos:]
	r.pos = len(r.records)

	return out, nil
}
