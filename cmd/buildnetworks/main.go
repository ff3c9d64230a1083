// buildnetworks builds the combined co-expression network on every sample and
// one network per level of a condition factor, then writes each network's
// gene/module assignment and module eigengenes.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/carbocation/multiwgcna"
	_ "github.com/carbocation/multiwgcna/compileinfoprint"
	"github.com/carbocation/multiwgcna/wgcna"
	"github.com/carbocation/pfx"
)

func main() {
	var expressionPath, samplesPath, factor, paramsPath, outPrefix string
	var power float64
	var minModuleSize int

	flag.StringVar(&expressionPath, "expression", "", "Genes x samples expression matrix (tab or comma delimited, optionally compressed, local or gs://)")
	flag.StringVar(&samplesPath, "samples", "", "Sample table. First column is the sample identifier, the others are categorical factors.")
	flag.StringVar(&factor, "factor", "", "Sample table column whose levels each get their own network")
	flag.StringVar(&paramsPath, "params", "", "Optional JSON file of network construction parameters")
	flag.Float64Var(&power, "power", 0, "If set, overrides the soft-thresholding power")
	flag.IntVar(&minModuleSize, "min_module_size", 0, "If set, overrides the minimum module size")
	flag.StringVar(&outPrefix, "out", "multiwgcna", "Prefix of the output files. Writes <out>.<network>.modules.csv and <out>.<network>.eigengenes.tsv")
	flag.Parse()

	if expressionPath == "" || samplesPath == "" || factor == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	params := multiwgcna.DefaultNetworkParams()
	if paramsPath != "" {
		var err error
		params, err = multiwgcna.ParseParamsFromPath(paramsPath)
		if err != nil {
			log.Fatalln(err)
		}
	}
	if power > 0 {
		params.Power = power
	}
	if minModuleSize > 0 {
		params.MinModuleSize = minModuleSize
	}

	if err := run(context.Background(), expressionPath, samplesPath, factor, params, outPrefix); err != nil {
		log.Fatalln(err)
	}
}

func run(ctx context.Context, expressionPath, samplesPath, factor string, params multiwgcna.NetworkParams, outPrefix string) error {
	client, err := multiwgcna.NewStorageClientFor(ctx, expressionPath, samplesPath)
	if err != nil {
		return pfx.Err(err)
	}

	expr, err := multiwgcna.LoadExpression(ctx, expressionPath, client)
	if err != nil {
		return err
	}
	log.Printf("Loaded %d genes x %d samples\n", expr.NGenes(), expr.NSamples())

	table, err := multiwgcna.LoadSampleTable(ctx, samplesPath, client)
	if err != nil {
		return err
	}

	builder, err := wgcna.New(params)
	if err != nil {
		return err
	}

	networks, err := multiwgcna.BuildNetworks(builder, expr, table, factor)
	if err != nil {
		return err
	}

	for name, net := range networks {
		log.Printf("Network %s: %d modules, %d unassigned genes\n", name, len(net.AssignedModules()), net.Size(multiwgcna.Unassigned))

		if err := writeAssignment(fmt.Sprintf("%s.%s.modules.csv", outPrefix, name), net); err != nil {
			return err
		}
		if err := writeEigengenes(fmt.Sprintf("%s.%s.eigengenes.tsv", outPrefix, name), net); err != nil {
			return err
		}
	}

	return nil
}

func writeAssignment(path string, net *multiwgcna.Network) error {
	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()

	return multiwgcna.WriteAssignment(f, net)
}

func writeEigengenes(path string, net *multiwgcna.Network) error {
	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = '\t'

	if err := w.Write(append([]string{"module", "variance_explained"}, net.Samples()...)); err != nil {
		return pfx.Err(err)
	}
	for _, m := range net.Modules() {
		eig, _ := net.Eigengene(m)
		row := make([]string, 0, len(eig)+2)
		row = append(row, m, strconv.FormatFloat(net.VarianceExplained(m), 'g', 6, 64))
		for _, v := range eig {
			row = append(row, strconv.FormatFloat(v, 'g', 8, 64))
		}
		if err := w.Write(row); err != nil {
			return pfx.Err(err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return pfx.Err(err)
	}

	return nil
}
