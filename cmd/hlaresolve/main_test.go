package main

import (
	"strings"
	"testing"

	"github.com/carbocation/tcrpmhcdataset/hlaref"
)

func testReference(t *testing.T) *hlaref.Reference {
	t.Helper()

	ref, err := hlaref.LoadReference("../../hlaref/testdata/mhc_seq.csv", "../../hlaref/testdata/pseudo.csv")
	if err != nil {
		t.Fatal(err)
	}

	return ref
}

func TestResolveOne(t *testing.T) {
	ref := testReference(t)

	row := resolveOne(ref, "HLA-A2")
	if row[2] != "HLA-A*02:01" || row[3] != "true" || row[6] != "" {
		t.Errorf("serotype row = %v", row)
	}
	if row[5] != "YFAMYGEKVAHTHVDTLYVRYHYYTWAVLAYTWY" {
		t.Errorf("pseudo = %s", row[5])
	}

	row = resolveOne(ref, "HLA-B*08:01 N80I mutant")
	if row[6] != "" {
		t.Fatalf("mutant failed: %s", row[6])
	}
	if row[1] != "HLA-B*08:01 N80I mutant" || row[4][103] != 'I' {
		t.Errorf("mutant row = %v", row[:4])
	}
}

func TestResolveOneFailures(t *testing.T) {
	ref := testReference(t)

	for _, d := range []string{"not an allele", "HLA-C*07:02", "HLA-A*02:01 B66A T63Q mutant"} {
		row := resolveOne(ref, d)
		if row[6] == "" {
			t.Errorf("%s: expected an error column", d)
		}
		if row[4] != "" {
			t.Errorf("%s: sequence should be empty on failure", d)
		}
	}
}

func TestReadLines(t *testing.T) {
	got, err := readLines(strings.NewReader("HLA-A*02:01\n\n  HLA-B35 \n"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(got, "|") != "HLA-A*02:01|HLA-B35" {
		t.Errorf("lines = %v", got)
	}
}
