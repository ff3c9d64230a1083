package dme

import (
	"io"
	"math"

	"github.com/gocarina/gocsv"
	"gopkg.in/guregu/null.v3"
)

type resultRow struct {
	Network    string     `csv:"network"`
	Module     string     `csv:"module"`
	N          int        `csv:"n"`
	Term       string     `csv:"term"`
	DF         int        `csv:"df"`
	SS         null.Float `csv:"sum_sq"`
	F          null.Float `csv:"f"`
	P          null.Float `csv:"p"`
	Adjusted   null.Float `csv:"p_adjusted"`
	Correction string     `csv:"correction"`
	Method     string     `csv:"method"`
}

func finite(v float64) null.Float {
	return null.NewFloat(v, !math.IsNaN(v) && !math.IsInf(v, 0))
}

// WriteCSV writes one row per module and term. Undefined statistics are
// written as empty cells.
func WriteCSV(w io.Writer, r *Result) error {
	rows := make([]*resultRow, 0, len(r.Modules)*len(r.Terms))
	for _, m := range r.Modules {
		for _, t := range m.Terms {
			ss := t.SS
			if m.Degenerate {
				ss = math.NaN()
			}
			rows = append(rows, &resultRow{
				Network:    r.Network,
				Module:     m.Module,
				N:          m.N,
				Term:       t.Term,
				DF:         t.DF,
				SS:         finite(ss),
				F:          finite(t.F),
				P:          finite(t.P),
				Adjusted:   finite(t.Adjusted),
				Correction: r.Correction,
				Method:     r.Method,
			})
		}
	}

	return gocsv.Marshal(&rows, w)
}
