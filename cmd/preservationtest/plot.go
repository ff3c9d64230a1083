package main

import (
	"bytes"
	"os"

	"github.com/carbocation/multiwgcna/permutation"
	"github.com/carbocation/pfx"
	"github.com/wcharczuk/go-chart/v2"
)

// plotScores draws every null Z-summary against its module size, with the
// observed modules overlaid, and writes the PNG to filename.
func plotScores(filename string, null []permutation.NullRecord, observed []permutation.Observation) error {
	nullX, nullY := make([]float64, 0, len(null)), make([]float64, 0, len(null))
	for _, rec := range null {
		nullX = append(nullX, float64(rec.Size))
		nullY = append(nullY, rec.Score)
	}

	obsX, obsY := make([]float64, 0, len(observed)), make([]float64, 0, len(observed))
	for _, obs := range observed {
		if obs.Degenerate {
			continue
		}
		obsX = append(obsX, float64(obs.Size))
		obsY = append(obsY, obs.ZSummary)
	}

	graph := chart.Chart{
		Width:  800,
		Height: 512,
		XAxis: chart.XAxis{
			Name: "Module size",
		},
		YAxis: chart.YAxis{
			Name: "Z summary",
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name: "Null",
				Style: chart.Style{
					StrokeWidth: chart.Disabled,
					DotWidth:    2,
					DotColor:    chart.ColorAlternateGray,
				},
				XValues: nullX,
				YValues: nullY,
			},
			chart.ContinuousSeries{
				Name: "Observed",
				Style: chart.Style{
					StrokeWidth: chart.Disabled,
					DotWidth:    5,
					DotColor:    chart.ColorRed,
				},
				XValues: obsX,
				YValues: obsY,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	// Render to a byte buffer
	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return pfx.Err(err)
	}

	outFile, err := os.Create(filename)
	if err != nil {
		return pfx.Err(err)
	}
	defer outFile.Close()

	if _, err := buffer.WriteTo(outFile); err != nil {
		return pfx.Err(err)
	}

	return nil
}
