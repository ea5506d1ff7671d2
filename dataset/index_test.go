package dataset

import (
	"strings"
	"testing"
)

func TestIndexAdd(t *testing.T) {
	cfg := DefaultConfig()
	memo := newResolutionMemo(nil)
	ix := newIndex(memo)

	t1, _ := NewTCR(Row{CDR3b: "CASSIRSSYEQYF", TRBV: "TRBV19*01", TRBJ: "TRBJ2-7*01"}, cfg)
	t1dup, _ := NewTCR(Row{CDR3b: "cassirssyeqyf", TRBV: "TRBV19*01", TRBJ: "TRBJ2-7*01", TRBD: "TRBD1*01"}, cfg)
	p1 := newTestPMHC(t, "GILGFVFTL", "HLA-A*02:01", cfg, memo)
	p2 := newTestPMHC(t, "NLVPMVATV", "HLA-A*02:01", cfg, memo)

	if !ix.add(t1, p1, "a") {
		t.Error("first edge reported as seen")
	}
	if ix.add(t1dup, p1, "b") {
		t.Error("equivalent TCR produced a new edge")
	}
	if !ix.add(t1dup, p2, "") {
		t.Error("new pMHC did not produce a new edge")
	}

	if ix.NumTCRs() != 1 || ix.NumPMHCs() != 2 || ix.NumEdges() != 2 {
		t.Fatalf("got %d/%d/%d", ix.NumTCRs(), ix.NumPMHCs(), ix.NumEdges())
	}

	got, _ := ix.TCR(t1.Key())
	if got != t1 {
		t.Error("the first record of an entity should be canonical")
	}

	if refs := ix.TCRReferences(t1.Key()); strings.Join(refs, ",") != "a,b" {
		t.Errorf("TCR references = %v", refs)
	}
	if refs := ix.PMHCReferences(p2.Key()); len(refs) != 0 {
		t.Errorf("empty reference recorded: %v", refs)
	}

	partners := ix.PMHCsOf(t1.Key())
	if len(partners) != 2 || partners[0] != p1.Key() || partners[1] != p2.Key() {
		t.Errorf("partners = %v", partners)
	}

	if err := ix.CheckConsistency(); err != nil {
		t.Error(err)
	}
}

func TestSubIndexReferences(t *testing.T) {
	cfg := DefaultConfig()
	memo := newResolutionMemo(nil)
	ix := newIndex(memo)

	t1, _ := NewTCR(Row{CDR3b: "CASSIRSSYEQYF", TRBV: "TRBV19*01", TRBJ: "TRBJ2-7*01"}, cfg)
	t2, _ := NewTCR(Row{CDR3b: "CASSLAPGATNEKLFF", TRBV: "TRBV7-9*01", TRBJ: "TRBJ1-4*01"}, cfg)
	p1 := newTestPMHC(t, "GILGFVFTL", "HLA-A*02:01", cfg, memo)

	ix.add(t1, p1, "a")
	ix.add(t2, p1, "b")

	sub := ix.subIndex([]Edge{{TCR: t2.Key(), PMHC: p1.Key()}})

	// Only the references of retained edges remain
	if refs := sub.PMHCReferences(p1.Key()); strings.Join(refs, ",") != "b" {
		t.Errorf("sub-index pMHC references = %v", refs)
	}
	if _, ok := sub.TCR(t1.Key()); ok {
		t.Error("TCR without retained edges survived")
	}
	if sub.memo != ix.memo {
		t.Error("sub-index has its own memo")
	}
	if err := sub.CheckConsistency(); err != nil {
		t.Error(err)
	}
}

func TestCheckConsistencyDetectsOneSidedEdge(t *testing.T) {
	cfg := DefaultConfig()
	ix := newIndex(nil)

	t1, _ := NewTCR(Row{CDR3b: "CASSIRSSYEQYF", TRBV: "TRBV19*01", TRBJ: "TRBJ2-7*01"}, cfg)
	p1 := newTestPMHC(t, "GILGFVFTL", "HLA-A*02:01", cfg, nil)
	p2 := newTestPMHC(t, "NLVPMVATV", "HLA-A*02:01", cfg, nil)
	ix.add(t1, p1, "a")
	ix.add(t1, p2, "a")

	// Corrupt one side of the relation
	ix.tcrs[t1.Key()].partners.add(PMHCKey{Peptide: "KLGGALQAK", Allele: "HLA-A*03:01"})

	if err := ix.CheckConsistency(); err == nil {
		t.Error("expected an inconsistency")
	}
}
