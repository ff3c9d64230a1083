package overlap

import (
	"math"

	"github.com/BenLubar/memoize"
	fet "github.com/glycerine/golang-fisher-exact"
)

var memoizedUpperTail = memoize.Memoize(upperTail)

// UpperTail is the one-sided enrichment probability P(X >= overlap) of seeing
// at least overlap shared genes between a module of sizeA and a module of
// sizeB, both drawn from a universe of the given size. It is exactly 1 when
// overlap is 0 and always lies in [0,1]. UpperTail is safe to call from
// concurrent goroutines.
func UpperTail(overlap, sizeA, sizeB, universe int) float64 {
	return memoizedUpperTail.(func(int, int, int, int) float64)(overlap, sizeA, sizeB, universe)
}

func upperTail(overlap, sizeA, sizeB, universe int) float64 {
	if overlap <= 0 {
		return 1
	}

	// FisherExactTest computes Fisher's Exact Test for contingency tables.
	// Nomenclature:
	//
	//    n11  n12  | n1_
	//    n21  n22  | n2_
	//   -----------+----
	//    n_1  n_2  | n
	//
	// n11 is the overlap, the first row is module A, the first column is
	// module B. The right tail is P(n11 >= observed), the hypergeometric
	// enrichment tail.
	n11 := overlap
	n12 := sizeA - overlap
	n21 := sizeB - overlap
	n22 := universe - sizeA - sizeB + overlap
	if n12 < 0 || n21 < 0 || n22 < 0 {
		return 1
	}

	_, _, rightp, _ := fet.FisherExactTest(n11, n12, n21, n22)

	if rightp < 0 {
		return 0
	} else if rightp > 1 || math.IsNaN(rightp) {
		return 1
	}

	return rightp
}
