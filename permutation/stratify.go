package permutation

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/carbocation/multiwgcna"
)

// Stratum is one level of the confound factor among the pooled samples.
type Stratum struct {
	Level   string
	Samples []string

	// Construct samples go to the synthetic construct group on every
	// replicate; the rest go to the synthetic test group.
	Construct int
}

func (s Stratum) Test() int { return len(s.Samples) - s.Construct }

// Allocation is the stratified split shared by every replicate. Group sizes
// match the real construct and test groups, and each confound level is
// represented in each group in proportion to its size.
type Allocation struct {
	Strata    []Stratum
	Construct int
	Test      int
}

// Allocate pools the samples of expr whose condition is cfg.ConstructIn or
// cfg.TestIn and distributes the construct group's seats across confound
// levels by largest remainder: every level first gets the floor of its
// proportional quota and the remaining seats go to the largest fractional
// parts, ties broken by the larger level and then by level name. It returns
// ErrInsufficientSamples if any level would contribute fewer than
// cfg.MinPerStratum samples to either group.
func Allocate(expr *multiwgcna.Expression, table *multiwgcna.SampleTable, cfg Config) (*Allocation, error) {
	cfg = cfg.withDefaults()

	factors := []string{cfg.ConditionFactor}
	if cfg.ConfoundFactor != "" {
		factors = append(factors, cfg.ConfoundFactor)
	}
	if err := table.RequireFactors(factors...); err != nil {
		return nil, err
	}
	if cfg.ConstructIn == cfg.TestIn {
		return nil, fmt.Errorf("%w: construct and test conditions are both %q", multiwgcna.ErrInvalidInput, cfg.ConstructIn)
	}

	a := &Allocation{}
	byLevel := make(map[string]*Stratum)
	for _, s := range expr.Samples() {
		cond, ok := table.Level(s, cfg.ConditionFactor)
		if !ok {
			return nil, fmt.Errorf("%w: sample %q is missing from the sample table", multiwgcna.ErrInvalidInput, s)
		}

		switch cond {
		case cfg.ConstructIn:
			a.Construct++
		case cfg.TestIn:
			a.Test++
		default:
			continue
		}

		level := ""
		if cfg.ConfoundFactor != "" {
			level, _ = table.Level(s, cfg.ConfoundFactor)
		}

		st, exists := byLevel[level]
		if !exists {
			st = &Stratum{Level: level}
			byLevel[level] = st
		}
		st.Samples = append(st.Samples, s)
	}

	if a.Construct == 0 {
		return nil, fmt.Errorf("%w: no samples have %s = %q", multiwgcna.ErrInvalidInput, cfg.ConditionFactor, cfg.ConstructIn)
	}
	if a.Test == 0 {
		return nil, fmt.Errorf("%w: no samples have %s = %q", multiwgcna.ErrInvalidInput, cfg.ConditionFactor, cfg.TestIn)
	}

	for _, st := range byLevel {
		a.Strata = append(a.Strata, *st)
	}
	sort.Slice(a.Strata, func(i, j int) bool { return a.Strata[i].Level < a.Strata[j].Level })

	allocateSeats(a.Strata, a.Construct)

	for _, st := range a.Strata {
		if st.Construct < cfg.MinPerStratum || st.Test() < cfg.MinPerStratum {
			return nil, fmt.Errorf("%w: %s level %q has %d samples, which allocate %d to %s and %d to %s; at least %d are needed in each",
				multiwgcna.ErrInsufficientSamples, cfg.ConfoundFactor, st.Level, len(st.Samples), st.Construct, cfg.ConstructIn, st.Test(), cfg.TestIn, cfg.MinPerStratum)
		}
	}

	return a, nil
}

// allocateSeats sets Construct on every stratum so that they sum to seats.
func allocateSeats(strata []Stratum, seats int) {
	total := 0
	for _, st := range strata {
		total += len(st.Samples)
	}

	type remainder struct {
		stratum int
		frac    float64
	}
	rems := make([]remainder, len(strata))

	given := 0
	for i := range strata {
		quota := float64(len(strata[i].Samples)) * float64(seats) / float64(total)
		floor := math.Floor(quota)
		strata[i].Construct = int(floor)
		given += int(floor)
		rems[i] = remainder{stratum: i, frac: quota - floor}
	}

	sort.SliceStable(rems, func(i, j int) bool {
		a, b := rems[i], rems[j]
		if a.frac != b.frac {
			return a.frac > b.frac
		}
		if na, nb := len(strata[a.stratum].Samples), len(strata[b.stratum].Samples); na != nb {
			return na > nb
		}
		return strata[a.stratum].Level < strata[b.stratum].Level
	})

	for k := 0; given < seats; k++ {
		strata[rems[k%len(rems)].stratum].Construct++
		given++
	}
}

// Split shuffles each stratum and assigns its first Construct samples to the
// construct group and the rest to the test group.
func (a *Allocation) Split(rng *rand.Rand) (construct, test []string) {
	construct = make([]string, 0, a.Construct)
	test = make([]string, 0, a.Test)

	for _, st := range a.Strata {
		shuffled := append([]string(nil), st.Samples...)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		construct = append(construct, shuffled[:st.Construct]...)
		test = append(test, shuffled[st.Construct:]...)
	}

	return construct, test
}
