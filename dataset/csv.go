package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/rdfgp/pkg/errors"
)

// LoadCSV reads a parameter file (N×D) and a curve file (N×M) written by
// the data generator. A non-numeric first row is treated as a header.
func LoadCSV(paramsPath, curvesPath string, grid Grid) (*Set, error) {
	params, err := ReadMatrix(paramsPath)
	if err != nil {
		return nil, err
	}
	curves, err := ReadMatrix(curvesPath)
	if err != nil {
		return nil, err
	}
	return New(params, curves, grid)
}

// ReadMatrix reads a numeric CSV file into a dense matrix.
func ReadMatrix(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset: open %s", path)
	}
	defer f.Close()

	m, err := DecodeMatrix(f)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset: read %s", path)
	}
	return m, nil
}

// DecodeMatrix parses numeric CSV from r. The header, when present, may
// have any number of fields; every data row must be as wide as the first.
func DecodeMatrix(r io.Reader) (*mat.Dense, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "parse csv")
	}

	// Skip header if present
	start := 0
	if len(records) > 0 && len(records[0]) > 0 {
		if _, err := strconv.ParseFloat(strings.TrimSpace(records[0][0]), 64); err != nil {
			start = 1
		}
	}
	rows := len(records) - start
	if rows <= 0 {
		return nil, errors.ErrEmptyData
	}
	cols := len(records[start])

	data := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		if got := len(records[i+start]); got != cols {
			return nil, errors.Wrapf(errors.NewDimensionError("dataset.DecodeMatrix", cols, got, 1), "row %d", i+start+1)
		}
		for j := 0; j < cols; j++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(records[i+start][j]), 64)
			if err != nil {
				return nil, errors.Wrapf(err, "row %d column %d", i+start+1, j+1)
			}
			data.Set(i, j, v)
		}
	}
	return data, nil
}

// ReadCurve reads an experimental reference curve stored as (r, g) pairs,
// one per line.
func ReadCurve(path string) (r, g []float64, err error) {
	m, err := ReadMatrix(path)
	if err != nil {
		return nil, nil, err
	}
	if _, c := m.Dims(); c < 2 {
		return nil, nil, errors.NewDimensionError("dataset.ReadCurve", 2, c, 1)
	}
	return mat.Col(nil, 0, m), mat.Col(nil, 1, m), nil
}

// WriteMatrix writes m as CSV with an optional header row.
func WriteMatrix(w io.Writer, m mat.Matrix, header []string) error {
	cw := csv.NewWriter(w)
	if len(header) > 0 {
		if err := cw.Write(header); err != nil {
			return errors.Wrap(err, "write csv header")
		}
	}
	r, c := m.Dims()
	record := make([]string, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			record[j] = strconv.FormatFloat(m.At(i, j), 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, "write csv row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}
