package main

import (
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/carbocation/tcrpmhcdataset"
	"github.com/carbocation/tcrpmhcdataset/dataset"
)

// JSONConfig mirrors the command line. Values set explicitly on the command
// line win over values from the file.
type JSONConfig struct {
	ConfigPath string `json:"-"`

	Inputs    []string `json:"inputs"`
	HLASeq    string   `json:"hla_seq"`
	HLAPseudo string   `json:"hla_pseudo"`
	TrainOut  string   `json:"train_out"`
	TestOut   string   `json:"test_out"`

	Source            string  `json:"source"`
	Target            string  `json:"target"`
	UseMHC            bool    `json:"use_mhc"`
	UsePseudo         bool    `json:"use_pseudo"`
	UseCDR3           bool    `json:"use_cdr3"`
	UseBothChains     bool    `json:"use_both_chains"`
	MaxRejectFraction float64 `json:"max_reject_fraction"`
	AlleleFreeGenes   bool    `json:"allele_free_genes"`

	TestSize        float64  `json:"test_size"`
	BalanceOnAllele bool     `json:"balance_on_allele"`
	SplitOn         []string `json:"split_on"`
	Seed            int64    `json:"seed"`
	KeepCrossEdges  bool     `json:"keep_cross_edges"`

	Verbose   bool `json:"verbose"`
	Histogram bool `json:"histogram"`
}

func defaultJSONConfig() JSONConfig {
	cfg := dataset.DefaultConfig()
	opts := dataset.DefaultSplitOptions()

	return JSONConfig{
		Source:            string(cfg.Source),
		Target:            string(cfg.Target),
		UseMHC:            cfg.UseMHC,
		UsePseudo:         cfg.UsePseudo,
		UseCDR3:           cfg.UseCDR3,
		UseBothChains:     cfg.UseBothChains,
		MaxRejectFraction: cfg.MaxRejectFraction,
		TestSize:          opts.TestSize,
		BalanceOnAllele:   opts.BalanceOnAllele,
		SplitOn:           opts.SplitOn,
		Seed:              opts.Seed,
		KeepCrossEdges:    opts.KeepCrossEdges,
	}
}

// ParseJSONConfigFromPath reads a JSONConfig on top of the defaults.
func ParseJSONConfigFromPath(path string) (JSONConfig, error) {
	f, err := os.Open(tcrpmhcdataset.ExpandHome(path))
	if err != nil {
		return defaultJSONConfig(), pfx.Err(err)
	}
	defer f.Close()

	out, err := ParseJSONConfig(f)
	out.ConfigPath = path

	return out, err
}

func ParseJSONConfig(r io.Reader) (JSONConfig, error) {
	out := defaultJSONConfig()

	if err := json.NewDecoder(r).Decode(&out); err != nil {
		if e, ok := err.(*json.SyntaxError); ok {
			log.Printf("syntax error at byte offset %d", e.Offset)
		}
		return out, pfx.Err(err)
	}

	// Interpret ~ if present
	for i, v := range out.Inputs {
		out.Inputs[i] = tcrpmhcdataset.ExpandHome(v)
	}
	out.HLASeq = tcrpmhcdataset.ExpandHome(out.HLASeq)
	out.HLAPseudo = tcrpmhcdataset.ExpandHome(out.HLAPseudo)
	out.TrainOut = tcrpmhcdataset.ExpandHome(out.TrainOut)
	out.TestOut = tcrpmhcdataset.ExpandHome(out.TestOut)

	return out, nil
}

// overrideFromFlags copies every flag that was set on the command line from
// cli into c.
func (c *JSONConfig) overrideFromFlags(fs *flag.FlagSet, cli JSONConfig) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			c.Inputs = cli.Inputs
		case "hla_seq":
			c.HLASeq = cli.HLASeq
		case "hla_pseudo":
			c.HLAPseudo = cli.HLAPseudo
		case "train_out":
			c.TrainOut = cli.TrainOut
		case "test_out":
			c.TestOut = cli.TestOut
		case "source":
			c.Source = cli.Source
		case "target":
			c.Target = cli.Target
		case "use_mhc":
			c.UseMHC = cli.UseMHC
		case "use_pseudo":
			c.UsePseudo = cli.UsePseudo
		case "use_cdr3":
			c.UseCDR3 = cli.UseCDR3
		case "use_both_chains":
			c.UseBothChains = cli.UseBothChains
		case "max_reject":
			c.MaxRejectFraction = cli.MaxRejectFraction
		case "allele_free_genes":
			c.AlleleFreeGenes = cli.AlleleFreeGenes
		case "test_size":
			c.TestSize = cli.TestSize
		case "balance":
			c.BalanceOnAllele = cli.BalanceOnAllele
		case "split_on":
			c.SplitOn = cli.SplitOn
		case "seed":
			c.Seed = cli.Seed
		case "keep_cross_edges":
			c.KeepCrossEdges = cli.KeepCrossEdges
		case "verbose":
			c.Verbose = cli.Verbose
		case "histogram":
			c.Histogram = cli.Histogram
		}
	})
}

func (c JSONConfig) DatasetConfig() (dataset.Config, error) {
	source, err := dataset.ParseFamily(c.Source)
	if err != nil {
		return dataset.Config{}, err
	}
	target, err := dataset.ParseFamily(c.Target)
	if err != nil {
		return dataset.Config{}, err
	}

	cfg := dataset.Config{
		Source:            source,
		Target:            target,
		UseMHC:            c.UseMHC,
		UsePseudo:         c.UsePseudo,
		UseCDR3:           c.UseCDR3,
		UseBothChains:     c.UseBothChains,
		MaxRejectFraction: c.MaxRejectFraction,
		Verbose:           c.Verbose,
	}
	if c.AlleleFreeGenes {
		cfg.NormalizeGene = dataset.AlleleFreeGene
	}

	return cfg, cfg.Validate()
}

func (c JSONConfig) SplitOptions() dataset.SplitOptions {
	return dataset.SplitOptions{
		TestSize:        c.TestSize,
		BalanceOnAllele: c.BalanceOnAllele,
		SplitOn:         c.SplitOn,
		Seed:            c.Seed,
		KeepCrossEdges:  c.KeepCrossEdges,
	}
}

// splitList parses a comma-delimited flag value, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}

	return out
}
