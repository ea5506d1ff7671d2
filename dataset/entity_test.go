package dataset

import (
	"errors"
	"strings"
	"testing"

	"github.com/carbocation/tcrpmhcdataset/allele"
	"github.com/carbocation/tcrpmhcdataset/hlaref"
)

const (
	a0201Pseudo = "YFAMYGEKVAHTHVDTLYVRYHYYTWAVLAYTWY"
	b0801Pseudo = "YDSEYRNIFTNTDESNLYLSYNYYTWAVDAYTWY"
)

var testTCRRow = Row{
	CDR3b: "cASsIRSsYEqYF", TRBV: "TRBV19*01", TRBJ: "TRBJ2-7*01",
	CDR3a: "CATGLTGGGNKLTF", TRAV: "TRAV17*01", TRAJ: "TRAJ10*01",
	TRBStitched: "MSNQVLCCVVLCFLGANTVDG", TRAStitched: "METLLGLLILWLQLQWVSSKQ",
}

func TestNewTCRNormalizes(t *testing.T) {
	tcr, err := NewTCR(testTCRRow, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if tcr.CDR3b() != "CASSIRSSYEQYF" {
		t.Errorf("CDR3b = %s", tcr.CDR3b())
	}
	if tcr.Token() != "CASSIRSSYEQYF" {
		t.Errorf("Token = %s", tcr.Token())
	}
	if tcr.Family() != TCRFamily {
		t.Errorf("Family = %s", tcr.Family())
	}
}

func TestNewTCRRequiredFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Row)
		cfg    func(*Config)
	}{
		{"no CDR3b", func(r *Row) { r.CDR3b = "" }, nil},
		{"no TRBV", func(r *Row) { r.TRBV = " " }, nil},
		{"no TRBJ", func(r *Row) { r.TRBJ = "" }, nil},
		{"bad residue", func(r *Row) { r.CDR3b = "CASS1F" }, nil},
		{"no CDR3a with both chains", func(r *Row) { r.CDR3a = "" }, func(c *Config) { c.UseBothChains = true }},
		{"no TRB chain without CDR3", func(r *Row) { r.TRBStitched = "" }, func(c *Config) { c.UseCDR3 = false }},
		{"no TRA chain without CDR3", func(r *Row) { r.TRAStitched = "" }, func(c *Config) { c.UseCDR3 = false; c.UseBothChains = true }},
	}

	for _, c := range cases {
		row := testTCRRow
		c.mutate(&row)
		cfg := DefaultConfig()
		if c.cfg != nil {
			c.cfg(&cfg)
		}
		if _, err := NewTCR(row, cfg); err == nil {
			t.Errorf("%s: expected an error", c.name)
		}
	}

	// The alpha chain is optional for a beta-only dataset
	row := testTCRRow
	row.CDR3a = ""
	if _, err := NewTCR(row, DefaultConfig()); err != nil {
		t.Errorf("beta-only TCR rejected: %v", err)
	}
}

func TestTCRKeyAndToken(t *testing.T) {
	beta, _ := NewTCR(testTCRRow, DefaultConfig())

	cfg := DefaultConfig()
	cfg.UseBothChains = true
	paired, _ := NewTCR(testTCRRow, cfg)

	cfg.UseCDR3 = false
	full, _ := NewTCR(testTCRRow, cfg)

	if beta.Key() == paired.Key() {
		t.Error("alpha V/J genes should enter the key when both chains are used")
	}
	if paired.Token() != "CASSIRSSYEQYF_CATGLTGGGNKLTF" {
		t.Errorf("paired token = %s", paired.Token())
	}
	if full.Token() != testTCRRow.TRBStitched+"_"+testTCRRow.TRAStitched {
		t.Errorf("full-chain token = %s", full.Token())
	}
	if full.Key().TRBFull == "" || full.Key().TRAFull == "" {
		t.Errorf("full chains missing from key %v", full.Key())
	}

	// CDR3a is always part of identity
	other := testTCRRow
	other.CDR3a = "CAVRDSNYQLIW"
	b2, _ := NewTCR(other, DefaultConfig())
	if b2.Key() == beta.Key() {
		t.Error("TCRs differing in CDR3a share a key")
	}

	// TRBD is not
	other = testTCRRow
	other.TRBD = "TRBD1*01"
	b3, _ := NewTCR(other, DefaultConfig())
	if b3.Key() != beta.Key() {
		t.Error("TRBD should not affect identity")
	}
}

func TestNewTCRGeneNormalizer(t *testing.T) {
	bare := testTCRRow
	bare.TRBV, bare.TRBJ = "TRBV19", "trbj2-7"

	plain, _ := NewTCR(bare, DefaultConfig())
	allelic, _ := NewTCR(testTCRRow, DefaultConfig())
	if plain.Key() == allelic.Key() {
		t.Error("without a normalizer TRBV19 and TRBV19*01 should differ")
	}

	cfg := DefaultConfig()
	cfg.NormalizeGene = AlleleFreeGene
	plain, _ = NewTCR(bare, cfg)
	allelic, _ = NewTCR(testTCRRow, cfg)
	if plain.Key() != allelic.Key() {
		t.Errorf("normalized keys differ: %v vs %v", plain.Key(), allelic.Key())
	}
	if got := allelic.Key().TRBV; got != "TRBV19" {
		t.Errorf("TRBV = %s, want TRBV19", got)
	}
}

func newTestPMHC(t *testing.T, peptide, hla string, cfg Config, memo *resolutionMemo) *PMHC {
	t.Helper()

	p, err := newPMHC(Row{Epitope: peptide, Allele: hla}, cfg, memo)
	if err != nil {
		t.Fatal(err)
	}

	return p
}

func TestPMHCKeyCanonicalizesAllele(t *testing.T) {
	memo := newResolutionMemo(nil)
	a := newTestPMHC(t, "gilgFVFTL", "HLA-A0201", DefaultConfig(), memo)
	b := newTestPMHC(t, "GILGFVFTL", "HLA-A*02:01", DefaultConfig(), memo)

	if a.Key() != b.Key() {
		t.Errorf("%v != %v", a.Key(), b.Key())
	}
	if a.Allele() != "HLA-A*02:01" || a.InputAllele() != "HLA-A0201" {
		t.Errorf("Allele = %s, InputAllele = %s", a.Allele(), a.InputAllele())
	}
}

func TestPMHCInvalid(t *testing.T) {
	for _, row := range []Row{
		{Epitope: "", Allele: "HLA-A*02:01"},
		{Epitope: "GIL GFV", Allele: "HLA-A*02:01"},
		{Epitope: "GILGFVFTL", Allele: ""},
		{Epitope: "GILGFVFTL", Allele: "HLA-A*02:01 N80"},
		{Epitope: "GILGFVFTL", Allele: "mouse"},
	} {
		if _, err := newPMHC(row, DefaultConfig(), nil); err == nil {
			t.Errorf("%+v: expected an error", row)
		}
	}
}

func TestPMHCResolution(t *testing.T) {
	memo := newResolutionMemo(testReference(t))
	p := newTestPMHC(t, "GILGFVFTL", "HLA-A*02:01", DefaultConfig(), memo)

	pseudo, err := p.Pseudosequence()
	if err != nil {
		t.Fatal(err)
	}
	if pseudo != a0201Pseudo {
		t.Errorf("pseudo = %s", pseudo)
	}

	seq, err := p.Sequence()
	if err != nil {
		t.Fatal(err)
	}
	if len(seq) != 365 {
		t.Errorf("sequence has %d residues, want 365", len(seq))
	}

	tok, err := p.Token()
	if err != nil {
		t.Fatal(err)
	}
	if tok != "GILGFVFTL[SEP]"+a0201Pseudo {
		t.Errorf("token = %s", tok)
	}

	cfg := DefaultConfig()
	cfg.UseMHC = true
	full := newTestPMHC(t, "GILGFVFTL", "HLA-A*02:01", cfg, memo)
	if tok, _ := full.Token(); tok != "GILGFVFTL[SEP]"+seq {
		t.Errorf("use_mhc token should carry the full sequence")
	}

	cfg = DefaultConfig()
	cfg.UsePseudo = false
	bare := newTestPMHC(t, "GILGFVFTL", "HLA-A*02:01", cfg, memo)
	if tok, _ := bare.Token(); tok != "GILGFVFTL" {
		t.Errorf("peptide-only token = %s", tok)
	}
}

func TestPMHCResolutionIsMemoized(t *testing.T) {
	memo := newResolutionMemo(testReference(t))
	a := newTestPMHC(t, "GILGFVFTL", "HLA-A*02:01", DefaultConfig(), memo)
	b := newTestPMHC(t, "GILGFVFTL", "HLA-A0201", DefaultConfig(), memo)

	ra, err := a.Resolution()
	if err != nil {
		t.Fatal(err)
	}
	ra2, _ := a.Resolution()
	rb, _ := b.Resolution()
	if ra != ra2 || ra != rb {
		t.Error("resolutions of the same key should be the same pointer")
	}
	if memo.len() != 1 {
		t.Errorf("memo holds %d entries, want 1", memo.len())
	}
}

func TestPMHCMutantSequence(t *testing.T) {
	memo := newResolutionMemo(testReference(t))
	canonical := newTestPMHC(t, "GILGFVFTL", "HLA-B*08:01", DefaultConfig(), memo)
	mutant := newTestPMHC(t, "GILGFVFTL", "HLA-B*08:01 N80I mutant", DefaultConfig(), memo)

	if mutant.Allele() != "HLA-B*08:01 N80I mutant" {
		t.Errorf("Allele = %s", mutant.Allele())
	}
	if mutant.Key() == canonical.Key() {
		t.Error("a mutant shares its key with the canonical allele")
	}

	base, err := canonical.Sequence()
	if err != nil {
		t.Fatal(err)
	}
	seq, err := mutant.Sequence()
	if err != nil {
		t.Fatal(err)
	}

	// Residue 80 of the mature protein follows a 24-residue leader
	if base[103] != 'N' || seq[103] != 'I' {
		t.Errorf("residue 80: canonical %c, mutant %c", base[103], seq[103])
	}
	if base[:103] != seq[:103] || base[104:] != seq[104:] {
		t.Error("mutation changed more than one residue")
	}

	pseudo, err := mutant.Pseudosequence()
	if err != nil {
		t.Fatal(err)
	}
	if pseudo != b0801Pseudo {
		t.Errorf("mutant pseudo = %s, want the canonical %s", pseudo, b0801Pseudo)
	}
}

func TestPMHCMultipleMutations(t *testing.T) {
	memo := newResolutionMemo(testReference(t))

	a2 := newTestPMHC(t, "GILGFVFTL", "HLA-A*02:01 K66A E63Q mutant", DefaultConfig(), memo)
	seq, err := a2.Sequence()
	if err != nil {
		t.Fatal(err)
	}
	if seq[89] != 'A' || seq[86] != 'Q' {
		t.Errorf("K66A E63Q not applied: %c %c", seq[89], seq[86])
	}

	b35 := newTestPMHC(t, "GILGFVFTL", "HLA-B*35:08 Q65A T69A Q155A mutant", DefaultConfig(), memo)
	seq, err = b35.Sequence()
	if err != nil {
		t.Fatal(err)
	}
	if seq[88] != 'A' || seq[92] != 'A' || seq[178] != 'A' {
		t.Errorf("Q65A T69A Q155A not applied")
	}
}

func TestPMHCMismatchedMutationFails(t *testing.T) {
	memo := newResolutionMemo(testReference(t))
	p := newTestPMHC(t, "GILGFVFTL", "HLA-A*02:01 B66A T63Q mutant", DefaultConfig(), memo)

	_, err := p.Sequence()
	var re *ResolutionError
	if !errors.As(err, &re) {
		t.Fatalf("expected ResolutionError, got %v", err)
	}
	if !errors.Is(err, allele.ErrMutationMismatch) {
		t.Errorf("expected ErrMutationMismatch in chain, got %v", err)
	}

	// The canonical pseudosequence is still available
	if pseudo, err := p.Pseudosequence(); err != nil || pseudo != a0201Pseudo {
		t.Errorf("pseudo = %q, %v", pseudo, err)
	}
}

func TestPMHCImputedSerotype(t *testing.T) {
	memo := newResolutionMemo(testReference(t))
	p := newTestPMHC(t, "HPVGEADYFEY", "HLA-B35", DefaultConfig(), memo)

	if p.Allele() != "HLA-B*35" {
		t.Errorf("Allele = %s", p.Allele())
	}

	res, err := p.Resolution()
	if err != nil {
		t.Fatal(err)
	}
	if !res.Imputed || res.Allele != "HLA-B*35:08" {
		t.Errorf("resolution %+v", res)
	}

	if _, err := p.Sequence(); err != nil {
		t.Errorf("imputed sequence: %v", err)
	}

	// The reference has no B*35:08 pseudosequence
	_, err = p.Pseudosequence()
	var re *ResolutionError
	if !errors.As(err, &re) || re.Attribute != "pseudosequence" {
		t.Errorf("expected pseudosequence ResolutionError, got %v", err)
	}
}

func TestPMHCUnknownAllele(t *testing.T) {
	memo := newResolutionMemo(testReference(t))
	p := newTestPMHC(t, "KLGGALQAK", "HLA-C*07:02", DefaultConfig(), memo)

	_, err := p.Token()
	var nf *allele.AlleleNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected AlleleNotFoundError in chain, got %v", err)
	}
	if !strings.Contains(err.Error(), "KLGGALQAK") {
		t.Errorf("error does not name the pMHC: %v", err)
	}

	// Identity attributes are unaffected
	if p.Peptide() != "KLGGALQAK" || p.Allele() != "HLA-C*07:02" {
		t.Errorf("identity changed after failed resolution")
	}
}

func TestPMHCWithoutResolver(t *testing.T) {
	p := newTestPMHC(t, "GILGFVFTL", "HLA-A*02:01", DefaultConfig(), nil)

	var re *ResolutionError
	if _, err := p.Sequence(); !errors.As(err, &re) {
		t.Errorf("expected ResolutionError, got %v", err)
	}
}

func TestPMHCSerotypeTokenUsesFullSequenceSubtype(t *testing.T) {
	ref := hlaref.NewReference(
		map[string]string{"HLA-A*01:02": "GSHSMRYF"},
		map[string]string{"HLA-A*01:01": "YFAMYQENMAHTDANTLYIIYRDYTWVARVYRGY"},
	)
	cfg := DefaultConfig()
	cfg.UseMHC = true

	p := newTestPMHC(t, "GILGFVFTL", "HLA-A1", cfg, newResolutionMemo(ref))
	tok, err := p.Token()
	if err != nil {
		t.Fatal(err)
	}
	if tok != "GILGFVFTL"+TokenSeparator+"GSHSMRYF" {
		t.Errorf("token = %s", tok)
	}
}
