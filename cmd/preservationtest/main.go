// preservationtest asks whether the modules built in one condition are less
// preserved in another condition than chance would allow. It builds a null
// distribution of preservation Z-summaries from stratified random splits of
// the pooled samples (or loads one computed earlier), scores the real
// modules, and reports an empirical p-value per module against the
// size-matched null.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/carbocation/multiwgcna"
	_ "github.com/carbocation/multiwgcna/compileinfoprint"
	"github.com/carbocation/multiwgcna/permutation"
	"github.com/carbocation/multiwgcna/wgcna"
	"github.com/carbocation/pfx"
)

var (
	BufferSize = 4096
	STDOUT     = bufio.NewWriterSize(os.Stdout, BufferSize)
)

type options struct {
	expressionPath string
	samplesPath    string
	paramsPath     string
	nullIn         string
	nullOut        string
	histogram      bool
	plotPath       string

	cfg   permutation.Config
	match permutation.MatchOptions
}

func main() {
	defer STDOUT.Flush()

	var o options

	flag.StringVar(&o.expressionPath, "expression", "", "Genes x samples expression matrix (tab or comma delimited, optionally compressed, local or gs://)")
	flag.StringVar(&o.samplesPath, "samples", "", "Sample table")
	flag.StringVar(&o.paramsPath, "params", "", "Optional JSON file of network construction parameters")
	flag.StringVar(&o.cfg.ConditionFactor, "factor", "", "Sample table column holding the conditions")
	flag.StringVar(&o.cfg.ConstructIn, "construct", "", "Condition whose modules are tested")
	flag.StringVar(&o.cfg.TestIn, "test", "", "Condition in which preservation is measured")
	flag.StringVar(&o.cfg.ConfoundFactor, "confound", "", "Sample table column to balance between the synthetic groups. May be empty.")
	flag.IntVar(&o.cfg.Permutations, "permutations", permutation.DefaultPermutations, "Number of stratified random splits")
	flag.IntVar(&o.cfg.PresPermutations, "pres_permutations", 200, "Random gene sets per module when computing preservation Z statistics")
	flag.IntVar(&o.cfg.Workers, "workers", runtime.NumCPU(), "Replicates to run at once")
	flag.IntVar(&o.cfg.MinPerStratum, "min_per_stratum", 1, "Each confound level must put at least this many samples in each synthetic group")
	flag.Int64Var(&o.cfg.Seed, "seed", 1, "Random seed")
	flag.Float64Var(&o.cfg.OutlierThreshold, "outlier_threshold", 0.2, "Leave-one-out shift in mean intramodular correlation above which a module is an outlier")
	flag.IntVar(&o.cfg.LogEvery, "log_every", 10, "Log progress every this many replicates")
	flag.StringVar(&o.nullIn, "null", "", "Previously computed null distribution to use instead of running the permutations (local or gs://)")
	flag.StringVar(&o.nullOut, "null_out", "", "If set, write the computed null distribution here")
	flag.IntVar(&o.match.Window, "window", 0, "Null modules within this many genes of a module's size are size-matched")
	flag.Float64Var(&o.match.Fraction, "fraction", permutation.DefaultFraction, "Null modules within this fraction of a module's size are size-matched")
	flag.BoolVar(&o.histogram, "histogram", false, "Print a histogram of each module's size-matched null to stderr")
	flag.StringVar(&o.plotPath, "plot", "", "If set, write a PNG of null and observed Z summaries by module size here")
	flag.Parse()

	if o.expressionPath == "" || o.samplesPath == "" || o.cfg.ConditionFactor == "" || o.cfg.ConstructIn == "" || o.cfg.TestIn == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(context.Background(), o); err != nil {
		log.Fatalln(err)
	}
}

func run(ctx context.Context, o options) error {
	client, err := multiwgcna.NewStorageClientFor(ctx, o.expressionPath, o.samplesPath, o.nullIn)
	if err != nil {
		return pfx.Err(err)
	}

	params := multiwgcna.DefaultNetworkParams()
	if o.paramsPath != "" {
		params, err = multiwgcna.ParseParamsFromPath(o.paramsPath)
		if err != nil {
			return err
		}
	}
	o.cfg.Preservation.Power = params.Power
	o.cfg.Preservation.NetworkType = params.NetworkType

	builder, err := wgcna.New(params)
	if err != nil {
		return err
	}

	expr, err := multiwgcna.LoadExpression(ctx, o.expressionPath, client)
	if err != nil {
		return err
	}
	table, err := multiwgcna.LoadSampleTable(ctx, o.samplesPath, client)
	if err != nil {
		return err
	}

	var null []permutation.NullRecord
	if o.nullIn != "" {
		null, err = permutation.OpenNull(ctx, o.nullIn, client)
		if err != nil {
			return err
		}
		log.Printf("Loaded %d null records from %s\n", len(null), o.nullIn)
	} else {
		res, err := permutation.Run(ctx, expr, table, builder, o.cfg)
		if err != nil {
			return err
		}
		null = res.Null

		log.Printf("%d of %d replicates succeeded (%d dropped); %d null modules flagged as outliers, %d not assessed for outliers, %d could not be scored\n",
			res.Succeeded, o.cfg.Permutations, res.Dropped, res.OutlierModules, res.UnassessedModules, res.DegenerateModules)
		for _, f := range res.Failures {
			log.Println(f.Err)
		}

		if o.nullOut != "" {
			if err := writeNull(o.nullOut, null); err != nil {
				return err
			}
		}
	}

	for _, s := range permutation.Summarize(null) {
		log.Printf("Null size %d: n=%d mean=%.3f sd=%.3f range=[%.3f, %.3f]\n", s.Size, s.N, s.Mean, s.SD, s.Min, s.Max)
	}

	observed, err := permutation.Observed(expr, table, builder, o.cfg, null, o.match)
	if err != nil {
		return err
	}

	fmt.Fprintln(STDOUT, "module\tsize\tz_summary\tz_density\tz_connectivity\tis_outlier\tnull_n\tp")
	for _, obs := range observed {
		fmt.Fprintf(STDOUT, "%s\t%d\t%.5g\t%.5g\t%.5g\t%t\t%d\t%.5g\n",
			obs.Module, obs.Size, obs.ZSummary, obs.ZDensity, obs.ZConnectivity, obs.IsOutlier, obs.NullSize, obs.P)

		if o.histogram && obs.NullSize > 0 {
			fmt.Fprintf(os.Stderr, "Size-matched null of module %s (size %d, observed %.3f):\n", obs.Module, obs.Size, obs.ZSummary)
			hist := histogram.Hist(25, permutation.SizeMatched(null, obs.Size, o.match))
			if err := histogram.Fprint(os.Stderr, hist, histogram.Linear(5)); err != nil {
				return pfx.Err(err)
			}
		}
	}

	if o.plotPath != "" {
		if len(null) < 2 {
			log.Printf("Not plotting: only %d null records\n", len(null))
		} else if err := plotScores(o.plotPath, null, observed); err != nil {
			return err
		}
	}

	return nil
}

func writeNull(path string, null []permutation.NullRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()

	if err := permutation.WriteNull(f, null); err != nil {
		return pfx.Err(err)
	}
	log.Printf("Wrote %d null records to %s\n", len(null), path)

	return nil
}
