// hlaresolve prints the reference sequences an HLA reference assigns to each
// allele designation, applying point mutations where the designation carries
// them.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/carbocation/tcrpmhcdataset"
	"github.com/carbocation/tcrpmhcdataset/allele"
	_ "github.com/carbocation/tcrpmhcdataset/compileinfoprint"
	"github.com/carbocation/tcrpmhcdataset/hlaref"
)

var header = []string{"input", "allele", "resolved", "imputed", "sequence", "pseudo", "error"}

func main() {
	fmt.Fprintf(os.Stderr, "%q\n", os.Args)

	var seqPath, pseudoPath, alleles string
	flag.StringVar(&seqPath, "hla_seq", "", "Table of full-length MHC sequences with an 'Allele' and a 'Full Sequence' column")
	flag.StringVar(&pseudoPath, "hla_pseudo", "", "Table of MHC pseudosequences with an allele column and a 'pseudo-sequence' column")
	flag.StringVar(&alleles, "allele", "", "(Optional) Comma-delimited allele designations. If empty, one designation per line is read from stdin.")
	flag.Parse()

	if seqPath == "" && pseudoPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	ref, err := hlaref.LoadReference(tcrpmhcdataset.ExpandHome(seqPath), tcrpmhcdataset.ExpandHome(pseudoPath))
	if err != nil {
		log.Fatalln(err)
	}

	var designations []string
	if alleles != "" {
		designations = strings.Split(alleles, ",")
	} else {
		designations, err = readLines(os.Stdin)
		if err != nil {
			log.Fatalln(err)
		}
	}

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()

	fmt.Fprintln(w, strings.Join(header, "\t"))
	failed := 0
	for _, d := range designations {
		row := resolveOne(ref, strings.TrimSpace(d))
		if row[len(row)-1] != "" {
			failed++
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}

	log.Printf("Resolved %d of %d designations\n", len(designations)-failed, len(designations))
}

// resolveOne produces one output row. Failures are reported in the last
// column rather than stopping the run.
func resolveOne(r allele.Resolver, designation string) []string {
	out := make([]string, len(header))
	out[0] = designation

	a, err := allele.Parse(designation)
	if err != nil {
		out[len(out)-1] = err.Error()
		return out
	}
	out[1] = a.String()

	res, err := r.Resolve(a.Base())
	if err != nil {
		out[len(out)-1] = err.Error()
		return out
	}
	out[2] = res.Allele
	out[3] = strconv.FormatBool(res.Imputed)
	out[5] = res.Pseudo

	seq := res.Sequence
	if len(a.Mutations) > 0 && seq != "" {
		seq, err = allele.Mutate(seq, a.Mutations)
		if err != nil {
			out[len(out)-1] = err.Error()
			return out
		}
	}
	out[4] = seq

	return out
}

func readLines(r io.Reader) ([]string, error) {
	var out []string

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, pfx.Err(err)
	}

	return out, nil
}
