// rundme tests every module eigengene of a network for differential
// expression across the levels of a sample table factor, controlling for a
// reference factor, and writes one row per module and model term.
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"

	"github.com/carbocation/multiwgcna"
	_ "github.com/carbocation/multiwgcna/compileinfoprint"
	"github.com/carbocation/multiwgcna/dme"
	"github.com/carbocation/pfx"
)

func main() {
	var expressionPath, samplesPath, modulesPath, name, outFile string
	var opts dme.Options

	flag.StringVar(&expressionPath, "expression", "", "Genes x samples expression matrix the network was built on")
	flag.StringVar(&samplesPath, "samples", "", "Sample table")
	flag.StringVar(&modulesPath, "modules", "", "Gene/module assignment of the network (columns: gene, module)")
	flag.StringVar(&name, "network", multiwgcna.CombinedNetwork, "Name of the network")
	flag.StringVar(&opts.RefCondition, "ref", "", "Sample table column entered first as a controlling covariate. May be empty.")
	flag.StringVar(&opts.TestCondition, "test", "", "Sample table column to test")
	flag.StringVar(&opts.Correction, "correction", dme.CorrectionFDR, "Multiple-testing correction: fdr (BH), BY, bonferroni, holm, hochberg, or none")
	flag.BoolVar(&opts.Interaction, "interaction", false, "Also test the ref x test interaction")
	flag.BoolVar(&opts.IncludeUnassigned, "include_grey", false, "Also test the unassigned genes' eigengene")
	flag.StringVar(&opts.Method, "method", dme.MethodANOVA, "ANOVA, or PERMANOVA to permute eigengenes within ref strata for the test term")
	flag.IntVar(&opts.Permutations, "permutations", 999, "Permutations for PERMANOVA")
	flag.Int64Var(&opts.Seed, "seed", 1, "Random seed for PERMANOVA")
	flag.StringVar(&outFile, "out", "", "Output file. If not specified, writes to stdout")
	flag.Parse()

	if expressionPath == "" || samplesPath == "" || modulesPath == "" || opts.TestCondition == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	var out io.WriteCloser = os.Stdout
	if outFile != "" {
		var err error
		out, err = os.Create(outFile)
		if err != nil {
			log.Fatalln(err)
		}
	}
	defer out.Close()

	if err := run(context.Background(), expressionPath, samplesPath, modulesPath, name, opts, out); err != nil {
		log.Fatalln(err)
	}
}

func run(ctx context.Context, expressionPath, samplesPath, modulesPath, name string, opts dme.Options, out io.Writer) error {
	client, err := multiwgcna.NewStorageClientFor(ctx, expressionPath, samplesPath, modulesPath)
	if err != nil {
		return pfx.Err(err)
	}

	expr, err := multiwgcna.LoadExpression(ctx, expressionPath, client)
	if err != nil {
		return err
	}
	table, err := multiwgcna.LoadSampleTable(ctx, samplesPath, client)
	if err != nil {
		return err
	}
	net, err := multiwgcna.LoadAssignment(ctx, name, modulesPath, client, expr)
	if err != nil {
		return err
	}

	res, err := dme.Run(net, table, opts)
	if err != nil {
		return err
	}

	log.Printf("Tested %d modules of %s with %s; %d modules have a constant eigengene and %d p-values are undefined\n",
		len(res.Modules), net.Name, res.Method, res.DegenerateModules, res.Undefined)

	return dme.WriteCSV(out, res)
}
