// Package permutation builds a confound-controlled null distribution of module
// preservation scores. Samples of two conditions are pooled and repeatedly
// split into synthetic groups of the real group sizes, stratified on a
// confound factor; each split is networked and scored as the real data is.
package permutation

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"runtime"
	"sort"
	"sync"

	"github.com/carbocation/multiwgcna"
	"github.com/carbocation/multiwgcna/outlier"
	"github.com/carbocation/multiwgcna/preservation"
)

const DefaultPermutations = 100

type Config struct {
	// ConditionFactor is the sample table column holding the conditions;
	// ConstructIn and TestIn are two of its levels.
	ConditionFactor string
	ConstructIn     string
	TestIn          string

	// ConfoundFactor is balanced between the synthetic groups. If empty,
	// samples are split without stratification.
	ConfoundFactor string

	// Number of replicates
	Permutations int

	// PresPermutations, if set, overrides Preservation.Permutations.
	PresPermutations int
	Preservation     preservation.Options

	// Workers bounds the number of replicates run at once. Defaults to
	// runtime.NumCPU().
	Workers int

	// Each confound level must place at least this many samples in each
	// synthetic group. Defaults to 1.
	MinPerStratum int

	Seed int64

	// Passed to outlier.Detect for every synthetic construct network.
	OutlierThreshold float64

	// Logs progress every this many completed replicates. Zero is silent.
	LogEvery int
}

func (c Config) withDefaults() Config {
	if c.Permutations < 1 {
		c.Permutations = DefaultPermutations
	}
	if c.Workers < 1 {
		c.Workers = runtime.NumCPU()
	}
	if c.MinPerStratum < 1 {
		c.MinPerStratum = 1
	}
	if c.OutlierThreshold <= 0 {
		c.OutlierThreshold = outlier.DefaultThreshold
	}
	if c.PresPermutations > 0 {
		c.Preservation.Permutations = c.PresPermutations
	}
	return c
}

// NullRecord is the preservation score of one module of one replicate's
// synthetic construct network.
type NullRecord struct {
	Replicate int     `csv:"replicate"`
	Module    string  `csv:"module"`
	Size      int     `csv:"size"`
	Score     float64 `csv:"score"`
	IsOutlier bool    `csv:"is_outlier"`
}

// Failure is a replicate that produced no records. Err wraps
// multiwgcna.ErrReplicateFailure.
type Failure struct {
	Replicate int
	Err       error
}

type Result struct {
	Allocation *Allocation

	Null []NullRecord

	// Replicates run to completion, and replicates that failed or were never
	// run because the context was cancelled
	Succeeded int
	Dropped   int
	Failures  []Failure

	// Records flagged as coming from an outlier-driven module
	OutlierModules int
	// Modules whose preservation could not be scored
	DegenerateModules int
	// Modules the outlier detector could not assess, whose records are
	// therefore never flagged
	UnassessedModules int
}

// Run executes the permutation procedure. Setup errors (missing factors,
// infeasible stratification) are returned before any replicate runs.
// Replicate errors are recorded in the Result and never fail the run.
// Cancelling ctx stops further replicates from being scheduled; the records
// of replicates already started are kept.
func Run(ctx context.Context, expr *multiwgcna.Expression, table *multiwgcna.SampleTable, builder multiwgcna.Builder, cfg Config) (*Result, error) {
	cfg = cfg.withDefaults()

	alloc, err := Allocate(expr, table, cfg)
	if err != nil {
		return nil, err
	}

	col := &collector{}
	semaphore := make(chan struct{}, cfg.Workers)

	scheduled := 0
schedule:
	for r := 0; r < cfg.Permutations; r++ {
		select {
		case <-ctx.Done():
			break schedule
		case semaphore <- struct{}{}:
		}
		if ctx.Err() != nil {
			<-semaphore
			break schedule
		}
		scheduled++

		go func(r int) {
			defer func() { <-semaphore }()

			records, counts, err := replicate(r, expr, alloc, builder, cfg)
			col.add(r, records, counts, err)

			if done := col.completed(); cfg.LogEvery > 0 && done%cfg.LogEvery == 0 {
				log.Printf("Completed %d of %d replicates\n", done, cfg.Permutations)
			}
		}(r)
	}

	// Wait for the replicates in flight
	for i := 0; i < cap(semaphore); i++ {
		semaphore <- struct{}{}
	}

	res := col.result(cfg.Permutations)
	res.Allocation = alloc
	if scheduled < cfg.Permutations {
		log.Printf("Stopped after scheduling %d of %d replicates: %v\n", scheduled, cfg.Permutations, ctx.Err())
	}

	return res, nil
}

// replicateCounts tallies the modules of one replicate that yield no usable
// record or no outlier verdict.
type replicateCounts struct {
	degenerate int
	unassessed int
}

// replicate runs one stratified split. Its RNG is seeded from cfg.Seed and r
// alone, so a replicate's records do not depend on scheduling.
func replicate(r int, expr *multiwgcna.Expression, alloc *Allocation, builder multiwgcna.Builder, cfg Config) ([]NullRecord, replicateCounts, error) {
	var counts replicateCounts

	rng := rand.New(rand.NewSource(cfg.Seed + int64(r)))
	constructSamples, testSamples := alloc.Split(rng)

	constructExpr, err := expr.SubsetSamples(constructSamples)
	if err != nil {
		return nil, counts, err
	}
	testExpr, err := expr.SubsetSamples(testSamples)
	if err != nil {
		return nil, counts, err
	}

	net, err := builder.Build(fmt.Sprintf("%s_replicate%d", cfg.ConstructIn, r), constructExpr)
	if err != nil {
		return nil, counts, err
	}

	// The synthetic test group is networked as well, exactly as the real
	// test condition is, so a split that cannot be networked is dropped.
	if _, err := builder.Build(fmt.Sprintf("%s_replicate%d", cfg.TestIn, r), testExpr); err != nil {
		return nil, counts, err
	}

	rep, err := outlier.Detect(net, outlier.Options{Threshold: cfg.OutlierThreshold})
	if err != nil {
		return nil, counts, err
	}
	counts.unassessed = rep.Unassessed

	presOpts := cfg.Preservation
	presOpts.Seed = cfg.Preservation.Seed + cfg.Seed + int64(r)*1000003
	scores, err := preservation.Compute(net, testExpr, presOpts)
	if err != nil {
		return nil, counts, err
	}

	records := make([]NullRecord, 0, len(scores))
	for _, s := range scores {
		if s.Degenerate {
			counts.degenerate++
			continue
		}
		records = append(records, NullRecord{
			Replicate: r,
			Module:    s.Module,
			Size:      s.Size,
			Score:     s.ZSummary,
			IsOutlier: net.IsOutlier(s.Module),
		})
	}

	return records, counts, nil
}

// collector is the append-only sink shared by the replicate goroutines.
type collector struct {
	m          sync.Mutex
	null       []NullRecord
	failures   []Failure
	succeeded  int
	done       int
	degenerate int
	unassessed int
}

func (c *collector) add(r int, records []NullRecord, counts replicateCounts, err error) {
	c.m.Lock()
	defer c.m.Unlock()

	c.done++
	if err != nil {
		c.failures = append(c.failures, Failure{
			Replicate: r,
			Err:       fmt.Errorf("%w: replicate %d: %v", multiwgcna.ErrReplicateFailure, r, err),
		})
		return
	}

	c.succeeded++
	c.degenerate += counts.degenerate
	c.unassessed += counts.unassessed
	c.null = append(c.null, records...)
}

func (c *collector) completed() int {
	c.m.Lock()
	defer c.m.Unlock()

	return c.done
}

func (c *collector) result(requested int) *Result {
	c.m.Lock()
	defer c.m.Unlock()

	res := &Result{
		Null:              c.null,
		Succeeded:         c.succeeded,
		Dropped:           requested - c.succeeded,
		Failures:          c.failures,
		DegenerateModules: c.degenerate,
		UnassessedModules: c.unassessed,
	}

	SortNull(res.Null)
	sort.Slice(res.Failures, func(i, j int) bool { return res.Failures[i].Replicate < res.Failures[j].Replicate })

	for _, rec := range res.Null {
		if rec.IsOutlier {
			res.OutlierModules++
		}
	}

	return res
}

// SortNull orders records by replicate and then module.
func SortNull(null []NullRecord) {
	sort.SliceStable(null, func(i, j int) bool {
		if null[i].Replicate != null[j].Replicate {
			return null[i].Replicate < null[j].Replicate
		}
		return multiwgcna.ModuleLess(null[i].Module, null[j].Module)
	})
}
