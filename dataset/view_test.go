package dataset

import (
	"errors"
	"strings"
	"testing"
)

func TestViewOrderTCRSource(t *testing.T) {
	l, _ := loadPairs(t, DefaultConfig())
	v := l.View()

	if v.Len() != 6 {
		t.Fatalf("Len = %d, want 6", v.Len())
	}
	if v.String() != "TCR:pMHC Dataset of N=6. Mode:tcr -> pmhc." {
		t.Errorf("String = %q", v.String())
	}
	if v.NumSources() != 5 || v.NumTargets() != 5 {
		t.Errorf("NumSources = %d, NumTargets = %d", v.NumSources(), v.NumTargets())
	}

	want := []struct{ cdr3b, peptide string }{
		{"CASSIRSSYEQYF", "GILGFVFTL"},
		{"CASSLAPGATNEKLFF", "GILGFVFTL"},
		{"CASSLAPGATNEKLFF", "NLVPMVATV"},
		{"CASRPGLAGGRPEQYF", "FLRGRAYGL"},
		{"CASSPDRGEQFF", "HPVGEADYFEY"},
		{"CASSYSTGDEQYF", "KLGGALQAK"},
	}
	for i, w := range want {
		e, err := v.Edge(i)
		if err != nil {
			t.Fatal(err)
		}
		if e.TCR.CDR3b != w.cdr3b || e.PMHC.Peptide != w.peptide {
			t.Errorf("position %d = %s/%s, want %s/%s", i, e.TCR.CDR3b, e.PMHC.Peptide, w.cdr3b, w.peptide)
		}
	}
}

func TestViewAt(t *testing.T) {
	l, _ := loadPairs(t, DefaultConfig())
	v := l.View()

	p, err := v.At(0)
	if err != nil {
		t.Fatal(err)
	}
	if p.Source.Family() != TCRFamily || p.Target.Family() != PMHCFamily {
		t.Fatalf("pair oriented %s -> %s", p.Source.Family(), p.Target.Family())
	}

	// The interaction itself is supported by two rows
	if strings.Join(p.References, ",") != "PMID:1,PMID:2" {
		t.Errorf("edge references = %v", p.References)
	}

	// The pMHC carries every reference of every row sharing its peptide and
	// allele
	if got := strings.Join(p.Target.References(), ","); got != "PMID:1,PMID:2,PMID:3" {
		t.Errorf("pMHC references = %s", got)
	}
	if n := len(p.Target.Partners()); n != 2 {
		t.Errorf("pMHC has %d partners, want 2", n)
	}

	src, _ := p.Source.Token()
	if src != "CASSIRSSYEQYF" {
		t.Errorf("source token = %s", src)
	}
	trg, err := p.Target.Token()
	if err != nil {
		t.Fatal(err)
	}
	if trg != "GILGFVFTL[SEP]"+a0201Pseudo {
		t.Errorf("target token = %s", trg)
	}

	entry, ok := p.Source.(TCREntry)
	if !ok {
		t.Fatalf("source is %T", p.Source)
	}
	if entry.TCR.TRBV() != "TRBV19*01" {
		t.Errorf("TRBV = %s", entry.TCR.TRBV())
	}
}

func TestViewAtOutOfRange(t *testing.T) {
	l, _ := loadPairs(t, DefaultConfig())
	v := l.View()

	for _, i := range []int{-1, v.Len(), v.Len() + 10} {
		_, err := v.At(i)
		var ie *IndexError
		if !errors.As(err, &ie) {
			t.Errorf("At(%d): expected IndexError, got %v", i, err)
			continue
		}
		if ie.Len != v.Len() {
			t.Errorf("IndexError.Len = %d", ie.Len)
		}
	}
}

func TestViewPMHCSource(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Source, cfg.Target = PMHCFamily, TCRFamily
	l, _ := loadPairs(t, cfg)
	v := l.View()

	if v.String() != "TCR:pMHC Dataset of N=6. Mode:pmhc -> tcr." {
		t.Errorf("String = %q", v.String())
	}

	p, err := v.At(1)
	if err != nil {
		t.Fatal(err)
	}
	if p.Source.Family() != PMHCFamily {
		t.Fatalf("source family %s", p.Source.Family())
	}
	if p.Source.Key() != "GILGFVFTL_HLA-A*02:01" {
		t.Errorf("source = %s", p.Source.Key())
	}
	if tok, _ := p.Target.Token(); tok != "CASSLAPGATNEKLFF" {
		t.Errorf("target = %s", tok)
	}
}

func TestViewAtDoesNotMutate(t *testing.T) {
	l, _ := loadPairs(t, DefaultConfig())
	v := l.View()

	before := v.Index().Edges()
	for i := 0; i < v.Len(); i++ {
		p, _ := v.At(i)
		p.Source.Token()
		p.Target.Token()
	}
	after := v.Index().Edges()

	if len(before) != len(after) {
		t.Fatal("indexing changed the edge set")
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("indexing reordered edge %d", i)
		}
	}
	if err := v.Index().CheckConsistency(); err != nil {
		t.Error(err)
	}
}

func TestViewToMap(t *testing.T) {
	l, _ := loadPairs(t, DefaultConfig())

	// Pseudosequence tokens fail for pMHCs the reference cannot resolve
	var re *ResolutionError
	if _, err := l.View().ToMap(); !errors.As(err, &re) {
		t.Fatalf("expected ResolutionError, got %v", err)
	}

	cfg := DefaultConfig()
	cfg.UsePseudo = false
	l, _ = loadPairs(t, cfg)
	m, err := l.View().ToMap()
	if err != nil {
		t.Fatal(err)
	}
	if len(m) != 5 {
		t.Errorf("map has %d sources, want 5", len(m))
	}
	if got := strings.Join(m["CASSLAPGATNEKLFF"], ","); got != "GILGFVFTL,NLVPMVATV" {
		t.Errorf("targets = %s", got)
	}
}

func TestViewSourcesTargets(t *testing.T) {
	l, _ := loadPairs(t, DefaultConfig())
	v := l.View()

	sources := v.Sources()
	if len(sources) != 5 {
		t.Fatalf("%d sources", len(sources))
	}
	if tok, _ := sources[0].Token(); tok != "CASSIRSSYEQYF" {
		t.Errorf("first source = %s", tok)
	}

	targets := v.Targets()
	if len(targets) != 5 || targets[0].Family() != PMHCFamily {
		t.Fatalf("unexpected targets")
	}
}

func TestViewRows(t *testing.T) {
	l, _ := loadPairs(t, DefaultConfig())
	rows := l.View().Rows()

	if len(rows) != 6 {
		t.Fatalf("%d rows, want 6", len(rows))
	}
	if rows[0].Reference != "PMID:1;PMID:2" {
		t.Errorf("references = %s", rows[0].Reference)
	}
	if rows[0].Pseudo != a0201Pseudo {
		t.Errorf("pseudo = %s", rows[0].Pseudo)
	}
	if rows[3].Allele != "HLA-B*08:01 N80I mutant" || rows[3].MHC[103] != 'I' {
		t.Errorf("mutant row not exported: %+v", rows[3].Allele)
	}
	if rows[5].MHC != "" || rows[5].Pseudo != "" {
		t.Errorf("unresolvable allele should export empty sequences")
	}
}

func TestViewSummary(t *testing.T) {
	l, _ := loadPairs(t, DefaultConfig())
	s := l.View().Summary()

	for _, want := range []string{"tcrs=5", "pmhcs=5", "interactions=6"} {
		if !strings.Contains(s, want) {
			t.Errorf("summary %q lacks %q", s, want)
		}
	}
}

func TestViewUnresolved(t *testing.T) {
	l, _ := loadPairs(t, DefaultConfig())
	v := l.View()

	// HLA-B35 has no pseudosequence and HLA-C*07:02 is unknown
	got := v.Unresolved()
	if len(got) != 2 || got[0].Peptide != "HPVGEADYFEY" || got[1].Peptide != "KLGGALQAK" {
		t.Fatalf("Unresolved = %v", got)
	}

	rows := v.Rows()
	for _, r := range rows {
		if r.Epitope == "HPVGEADYFEY" && (r.Pseudo != "" || r.MHC == "") {
			t.Errorf("partially resolved row exported as %q/%q", r.Pseudo, r.MHC)
		}
	}
}
