// tcrsplit loads TCR:pMHC interaction tables, resolves MHC alleles against an
// HLA reference, and writes a leakage-free train/test split of the
// interactions.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/aybabtme/uniplot/histogram"
	"github.com/carbocation/pfx"
	"github.com/carbocation/tcrpmhcdataset/allele"
	_ "github.com/carbocation/tcrpmhcdataset/compileinfoprint"
	"github.com/carbocation/tcrpmhcdataset/dataset"
	"github.com/carbocation/tcrpmhcdataset/hlaref"
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		flag.PrintDefaults()

		log.Println("Example JSONConfig file layout:")
		example := defaultJSONConfig()
		example.Inputs = []string{"~/vdjdb.csv.gz", "gs://bucket/mcpas.tsv"}
		example.HLASeq = "~/mhc_seq.csv"
		example.HLAPseudo = "~/pseudo.csv"
		example.TrainOut = "train.csv"
		example.TestOut = "test.csv"
		example.SplitOn = []string{"Epitope"}
		bts, err := json.MarshalIndent(example, "", "  ")
		if err == nil {
			log.Println(string(bts))
		}
	}
}

// Safe for concurrent use by multiple goroutines
var client *storage.Client

func main() {
	fmt.Fprintf(os.Stderr, "%q\n", os.Args)

	var jsonConfig, inputs, splitOn string
	cli := defaultJSONConfig()

	flag.StringVar(&jsonConfig, "config", "", "(Optional) JSONConfig file. Flags set on the command line override its values.")
	flag.StringVar(&inputs, "input", "", "Comma-delimited paths to interaction tables (CSV or TSV, optionally compressed, local or gs://)")
	flag.StringVar(&cli.HLASeq, "hla_seq", "", "(Optional) Table of full-length MHC sequences with an 'Allele' and a 'Full Sequence' column")
	flag.StringVar(&cli.HLAPseudo, "hla_pseudo", "", "(Optional) Table of MHC pseudosequences with an allele column and a 'pseudo-sequence' column")
	flag.StringVar(&cli.TrainOut, "train_out", "", "Path for the training partition")
	flag.StringVar(&cli.TestOut, "test_out", "", "Path for the test partition")
	flag.StringVar(&cli.Source, "source", cli.Source, "Source entity family: tcr or pmhc")
	flag.StringVar(&cli.Target, "target", cli.Target, "Target entity family: tcr or pmhc")
	flag.BoolVar(&cli.UseMHC, "use_mhc", cli.UseMHC, "Represent pMHCs by their full MHC sequence. Takes precedence over -use_pseudo.")
	flag.BoolVar(&cli.UsePseudo, "use_pseudo", cli.UsePseudo, "Represent pMHCs by their MHC pseudosequence")
	flag.BoolVar(&cli.UseCDR3, "use_cdr3", cli.UseCDR3, "Identify TCRs by CDR3 loops. If false, full-length chains are required.")
	flag.BoolVar(&cli.UseBothChains, "use_both_chains", cli.UseBothChains, "Require the alpha chain as well as the beta chain")
	flag.Float64Var(&cli.MaxRejectFraction, "max_reject", cli.MaxRejectFraction, "Largest fraction of rejected rows tolerated per input file. 0 uses the default.")
	flag.BoolVar(&cli.AlleleFreeGenes, "allele_free_genes", cli.AlleleFreeGenes, "Drop allele suffixes from V/D/J gene names, so TRBV19*01 and TRBV19 are the same gene")
	flag.Float64Var(&cli.TestSize, "test_size", cli.TestSize, "Target fraction of interactions placed in the test partition")
	flag.BoolVar(&cli.BalanceOnAllele, "balance", cli.BalanceOnAllele, "Match the test allele distribution to the whole dataset")
	flag.StringVar(&splitOn, "split_on", "", "(Optional) Comma-delimited attributes whose values may not cross partitions, e.g., Epitope or Epitope,Allele or Component")
	flag.Int64Var(&cli.Seed, "seed", cli.Seed, "Seed for ordering tied choices")
	flag.BoolVar(&cli.KeepCrossEdges, "keep_cross_edges", cli.KeepCrossEdges, "Keep interactions whose secondary entity lands in both partitions")
	flag.BoolVar(&cli.Verbose, "verbose", cli.Verbose, "Log every rejected row")
	flag.BoolVar(&cli.Histogram, "histogram", cli.Histogram, "Print a histogram of split group sizes to stderr")
	flag.Parse()

	cli.Inputs = splitList(inputs)
	cli.SplitOn = splitList(splitOn)

	conf := cli
	if jsonConfig != "" {
		var err error
		conf, err = ParseJSONConfigFromPath(jsonConfig)
		if err != nil {
			log.Println(err)
			flag.Usage()
			os.Exit(1)
		}
		conf.overrideFromFlags(flag.CommandLine, cli)
	}

	if len(conf.Inputs) == 0 || conf.TrainOut == "" || conf.TestOut == "" {
		flag.Usage()
		os.Exit(1)
	}

	// Initialize the Google Storage client only if we're pointing to Google
	// Storage paths.
	for _, input := range conf.Inputs {
		if strings.HasPrefix(input, "gs://") {
			var err error
			client, err = storage.NewClient(context.Background())
			if err != nil {
				log.Fatalln(err)
			}
			break
		}
	}

	if err := run(conf); err != nil {
		log.Fatalln(err)
	}
}

func run(conf JSONConfig) error {
	cfg, err := conf.DatasetConfig()
	if err != nil {
		return err
	}
	log.Println("Dataset configuration:", cfg)

	var resolver allele.Resolver
	if conf.HLASeq != "" || conf.HLAPseudo != "" {
		ref, err := hlaref.LoadReference(conf.HLASeq, conf.HLAPseudo)
		if err != nil {
			return err
		}
		resolver = ref
	}

	loader, err := dataset.NewLoader(cfg, resolver)
	if err != nil {
		return err
	}

	for _, input := range conf.Inputs {
		summary, err := loader.LoadFile(input, client)
		if err != nil {
			return err
		}
		logSummary(input, summary)
	}

	view := loader.View()
	log.Println(view)
	log.Println(view.Summary())

	train, test, report, err := view.Split(conf.SplitOptions())
	if err != nil {
		return err
	}
	log.Println("Split:", report)
	if conf.Histogram {
		// The number of buckets is arbitrary.
		hist := histogram.Hist(20, report.GroupSizes)
		if err := histogram.Fprint(os.Stderr, hist, histogram.Linear(40)); err != nil {
			return pfx.Err(err)
		}
	}
	log.Println("Train:", train)
	log.Println("Test:", test)

	if err := writeView(conf.TrainOut, train); err != nil {
		return err
	}

	return writeView(conf.TestOut, test)
}

func logSummary(input string, s dataset.LoadSummary) {
	log.Printf("%s: %d rows, %d accepted, %d rejected, %d duplicates\n", input, s.Rows, s.Accepted, s.Rejected, s.Duplicates)

	reasons := make([]string, 0, len(s.Reasons))
	for reason := range s.Reasons {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		log.Printf("\t%s: %d\n", reason, s.Reasons[reason])
	}
}

func writeView(path string, v *dataset.View) error {
	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}

	if err := v.WriteCSV(f); err != nil {
		f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return pfx.Err(err)
	}
	log.Printf("Wrote %d interactions to %s\n", v.Len(), path)

	return nil
}
