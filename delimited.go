package multiwgcna

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/csimplestring/go-csv/detector"
	"github.com/gocarina/gocsv"
)

// How much of a stream is inspected to guess its delimiter.
const delimiterSniffBytes = 64 * 1024

// DetermineDelimiter returns the single most likely rune that would delimit the
// values in the reader, assuming a CSV-like file.
func DetermineDelimiter(r io.Reader) rune {
	d := detector.New()
	delimiters := d.DetectDelimiter(r, '"')

	if len(delimiters) > 0 && len(delimiters[0]) > 0 {
		return rune(delimiters[0][0])
	}

	return ','
}

// NewDelimitedReader wraps r in a csv.Reader whose delimiter is guessed from
// the start of the stream. Lines beginning with # are comments.
func NewDelimitedReader(r io.Reader) *csv.Reader {
	br := bufio.NewReaderSize(r, delimiterSniffBytes)
	head, _ := br.Peek(delimiterSniffBytes)

	comma := ','
	if bytes.IndexByte(head, '\t') >= 0 {
		// The detector does not consider tabs reliably; tab-separated
		// matrices are the common case for expression data.
		comma = '\t'
	} else if len(head) > 0 {
		comma = DetermineDelimiter(bytes.NewReader(head))
	}

	cr := csv.NewReader(br)
	cr.Comma = comma
	cr.Comment = '#'
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	return cr
}

// ReadExpression parses a genes x samples matrix. The header row holds a gene
// column name followed by the sample identifiers; every other row holds a
// gene identifier followed by its values. NA and empty cells become NaN.
func ReadExpression(r io.Reader) (*Expression, error) {
	cr := NewDelimitedReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: expression file is empty", ErrInvalidInput)
	} else if err != nil {
		return nil, pfx.Err(err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("%w: expression header has %d columns, expected a gene column and at least one sample", ErrInvalidInput, len(header))
	}
	samples := header[1:]

	genes := make([]string, 0)
	rows := make([][]float64, 0)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, pfx.Err(err)
		}

		if len(rec) != len(header) {
			return nil, fmt.Errorf("%w: expression line %d has %d fields, expected %d", ErrInvalidInput, line, len(rec), len(header))
		}

		values := make([]float64, len(samples))
		for j, cell := range rec[1:] {
			values[j], err = parseValue(cell)
			if err != nil {
				return nil, fmt.Errorf("%w: expression line %d, sample %s: %v", ErrInvalidInput, line, samples[j], err)
			}
		}

		genes = append(genes, rec[0])
		rows = append(rows, values)
	}

	return NewExpressionFromRows(genes, samples, rows)
}

func parseValue(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	switch strings.ToUpper(cell) {
	case "", "NA", "NAN":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(cell, 64)
}

// ReadSampleTable parses a delimited sample table whose first column is the
// sample identifier and whose other columns are categorical factors.
func ReadSampleTable(r io.Reader) (*SampleTable, error) {
	cr := NewDelimitedReader(r)
	cr.FieldsPerRecord = -1

	lines, err := cr.ReadAll()
	if err != nil {
		return nil, pfx.Err(err)
	}
	if len(lines) < 1 {
		return nil, fmt.Errorf("%w: sample table is empty", ErrInvalidInput)
	}

	return NewSampleTable(lines[0], lines[1:])
}

// HeadedTable holds the records of a delimited table, header first. It
// satisfies gocsv's reader interface, so a table whose columns were checked
// can be unmarshaled.
type HeadedTable struct {
	records [][]string
	next    int
}

func (h *HeadedTable) Read() ([]string, error) {
	if h.next >= len(h.records) {
		return nil, io.EOF
	}
	h.next++
	return h.records[h.next-1], nil
}

func (h *HeadedTable) ReadAll() ([][]string, error) {
	out := h.records[h.next:]
	h.next = len(h.records)
	return out, nil
}

// ReadRequiringColumns reads a whole delimited table and returns an
// ErrInvalidInput error naming the first required column that its header
// lacks. gocsv alone would leave such fields at their zero value.
func ReadRequiringColumns(r io.Reader, required ...string) (*HeadedTable, error) {
	cr := NewDelimitedReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, pfx.Err(err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: table is empty", ErrInvalidInput)
	}

	present := make(map[string]struct{}, len(records[0]))
	for i, h := range records[0] {
		records[0][i] = strings.TrimSpace(h)
		present[records[0][i]] = struct{}{}
	}
	for _, col := range required {
		if _, ok := present[col]; !ok {
			return nil, fmt.Errorf("%w: table has no %q column (columns: %s)", ErrInvalidInput, col, strings.Join(records[0], ", "))
		}
	}

	return &HeadedTable{records: records}, nil
}

type assignmentRecord struct {
	Gene   string `csv:"gene"`
	Module string `csv:"module"`
}

// ReadAssignment parses a two-column gene/module table with a header of
// "gene" and "module".
func ReadAssignment(r io.Reader) (map[string]string, error) {
	table, err := ReadRequiringColumns(r, "gene", "module")
	if err != nil {
		return nil, err
	}

	records := make([]*assignmentRecord, 0)
	if err := gocsv.UnmarshalCSV(table, &records); err != nil {
		return nil, pfx.Err(err)
	}

	out := make(map[string]string, len(records))
	for _, rec := range records {
		if rec.Gene == "" {
			continue
		}
		if prev, exists := out[rec.Gene]; exists && prev != rec.Module {
			return nil, fmt.Errorf("%w: gene %q is assigned to both module %s and module %s", ErrInvalidInput, rec.Gene, prev, rec.Module)
		}
		out[rec.Gene] = rec.Module
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: module assignment has no genes", ErrInvalidInput)
	}

	return out, nil
}

// WriteAssignment writes the gene/module table of a network, in module order.
func WriteAssignment(w io.Writer, n *Network) error {
	records := make([]*assignmentRecord, 0)
	for _, m := range n.Modules() {
		for _, g := range n.Genes(m) {
			records = append(records, &assignmentRecord{Gene: g, Module: m})
		}
	}

	return gocsv.Marshal(&records, w)
}
