// moduleoverlap tests every module of one network against every module of
// another for enrichment of shared genes and reports the best matches. With
// -trace, it instead follows one module of the first network into each of
// the others.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/carbocation/multiwgcna"
	_ "github.com/carbocation/multiwgcna/compileinfoprint"
	"github.com/carbocation/multiwgcna/overlap"
	"github.com/carbocation/pfx"
)

var (
	BufferSize = 4096
	STDOUT     = bufio.NewWriterSize(os.Stdout, BufferSize)
)

func main() {
	defer STDOUT.Flush()

	var pathA, pathB, nameA, nameB, trace string
	var bestOnly bool

	flag.StringVar(&pathA, "a", "", "Gene/module assignment of the first network (columns: gene, module)")
	flag.StringVar(&pathB, "b", "", "Gene/module assignment of the second network. With -trace, a comma-separated list of networks.")
	flag.StringVar(&nameA, "name_a", "A", "Name of the first network")
	flag.StringVar(&nameB, "name_b", "B", "Name of the second network. With -trace, a comma-separated list matching -b.")
	flag.StringVar(&trace, "trace", "", "If set, a module of the first network to follow into every network of -b")
	flag.BoolVar(&bestOnly, "best", false, "Only print each module's best match")
	flag.Parse()

	if pathA == "" || pathB == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	ctx := context.Background()

	if trace != "" {
		if err := runTrace(ctx, pathA, nameA, strings.Split(pathB, ","), strings.Split(nameB, ","), trace); err != nil {
			log.Fatalln(err)
		}
		return
	}

	if err := runOverlap(ctx, pathA, nameA, pathB, nameB, bestOnly); err != nil {
		log.Fatalln(err)
	}
}

func load(ctx context.Context, name, path string) (*multiwgcna.Network, error) {
	client, err := multiwgcna.NewStorageClientFor(ctx, path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	return multiwgcna.LoadAssignment(ctx, name, path, client, nil)
}

func runOverlap(ctx context.Context, pathA, nameA, pathB, nameB string, bestOnly bool) error {
	a, err := load(ctx, nameA, pathA)
	if err != nil {
		return err
	}
	b, err := load(ctx, nameB, pathB)
	if err != nil {
		return err
	}

	res, err := overlap.Compute(a, b)
	if err != nil {
		return err
	}
	corr := overlap.ResolveBestMatches(res)

	log.Printf("%d genes shared between %s and %s; %d bidirectional best matches\n", res.Universe, nameA, nameB, len(corr.Bidirectional))

	fmt.Fprintln(STDOUT, strings.Join([]string{"network_a", "module_a", "size_a", "network_b", "module_b", "size_b", "overlap", "p", "best_match", "bidirectional"}, "\t"))
	for i, ma := range res.ModulesA {
		best, hasBest := corr.Best[ma]

		for j, mb := range res.ModulesB {
			isBest := hasBest && best.To.Module == mb
			if bestOnly && !isBest {
				continue
			}

			fmt.Fprintf(STDOUT, "%s\t%s\t%d\t%s\t%s\t%d\t%d\t%.6g\t%t\t%t\n",
				nameA, ma, res.SizesA[i],
				nameB, mb, res.SizesB[j],
				res.Counts[i][j], res.P.At(i, j),
				isBest, isBest && corr.IsBidirectional(ma, mb))
		}
	}

	return nil
}

func runTrace(ctx context.Context, pathA, nameA string, pathsB, namesB []string, module string) error {
	if len(pathsB) != len(namesB) {
		return fmt.Errorf("%d networks given with -b but %d names with -name_b", len(pathsB), len(namesB))
	}

	from, err := load(ctx, nameA, pathA)
	if err != nil {
		return err
	}

	others := make([]*multiwgcna.Network, 0, len(pathsB))
	for i := range pathsB {
		net, err := load(ctx, namesB[i], pathsB[i])
		if err != nil {
			return err
		}
		others = append(others, net)
	}

	traces, err := overlap.TraceModule(from, module, others...)
	if err != nil {
		return err
	}

	fmt.Fprintln(STDOUT, strings.Join([]string{"from", "to", "overlap", "p", "bidirectional"}, "\t"))
	for _, t := range traces {
		if !t.Found {
			fmt.Fprintf(STDOUT, "%s\t%s:NA\t0\tNA\tfalse\n", t.From, t.To.Network)
			continue
		}
		fmt.Fprintf(STDOUT, "%s\t%s\t%d\t%.6g\t%t\n", t.From, t.To, t.Overlap, t.P, t.Bidirectional)
	}

	return nil
}
