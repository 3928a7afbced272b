// Package dataset loads the Wisconsin Diagnostic Breast Cancer data used to
// train the classifier. It reads the UCI wdbc.data layout as well as headered
// CSV exports, and can fetch the canonical file over HTTP when it is missing.
package dataset

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Class labels. The numbering matches the classifier output: index 0 of the
// probability vector is malignant, index 1 benign.
const (
	Malignant = 0
	Benign    = 1
)

// FeatureNames lists the 30 measurements in canonical order: ten means, ten
// standard errors, ten worst values.
var FeatureNames = []string{
	"mean radius", "mean texture", "mean perimeter", "mean area", "mean smoothness",
	"mean compactness", "mean concavity", "mean concave points", "mean symmetry", "mean fractal dimension",
	"radius error", "texture error", "perimeter error", "area error", "smoothness error",
	"compactness error", "concavity error", "concave points error", "symmetry error", "fractal dimension error",
	"worst radius", "worst texture", "worst perimeter", "worst area", "worst smoothness",
	"worst compactness", "worst concavity", "worst concave points", "worst symmetry", "worst fractal dimension",
}

// ErrEmpty is returned when a source holds no samples.
var ErrEmpty = errors.New("dataset is empty")

// Dataset is a dense feature matrix with binary labels.
type Dataset struct {
	FeatureNames []string
	X            [][]float64
	Y            []int
}

// Len returns the number of samples.
func (d *Dataset) Len() int { return len(d.Y) }

// Names returns a copy of the canonical feature names.
func Names() []string {
	out := make([]string, len(FeatureNames))
	copy(out, FeatureNames)
	return out
}

// LabelName maps a class index to its display label.
func LabelName(class int) string {
	if class == Benign {
		return "Benign"
	}
	return "Malignant"
}

// Parse sniffs the input: a first field that parses as a number with a
// diagnosis letter after it is treated as wdbc.data, anything else as a
// headered CSV.
func Parse(r io.Reader) (*Dataset, error) {
	br := bufio.NewReader(r)
	peek, err := br.Peek(256)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	if len(bytes.TrimSpace(peek)) == 0 {
		return nil, ErrEmpty
	}
	if looksLikeWDBC(peek) {
		return ParseWDBC(br)
	}
	return ParseCSV(br)
}

func looksLikeWDBC(head []byte) bool {
	line := string(head)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) < 2 {
		return false
	}
	if _, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64); err != nil {
		return false
	}
	d := strings.TrimSpace(fields[1])
	return d == "M" || d == "B"
}

// ParseWDBC reads the UCI layout: id, diagnosis (M or B), then 30 features.
func ParseWDBC(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	ds := &Dataset{FeatureNames: Names()}
	want := len(FeatureNames) + 2
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if len(rec) != want {
			return nil, fmt.Errorf("line %d: expected %d fields, got %d", line, want, len(rec))
		}

		var label int
		switch strings.TrimSpace(rec[1]) {
		case "M":
			label = Malignant
		case "B":
			label = Benign
		default:
			return nil, fmt.Errorf("line %d: unknown diagnosis %q", line, rec[1])
		}

		row, err := parseRow(rec[2:], line)
		if err != nil {
			return nil, err
		}
		ds.X = append(ds.X, row)
		ds.Y = append(ds.Y, label)
	}

	if ds.Len() == 0 {
		return nil, ErrEmpty
	}
	return ds, nil
}

// ParseCSV reads a headered CSV holding all 30 named feature columns and a
// "label" or "target" column with 0/1 values. Other columns are ignored.
func ParseCSV(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}

	cols := make([]int, len(FeatureNames))
	for i, name := range FeatureNames {
		c, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("header: missing column %q", name)
		}
		cols[i] = c
	}
	labelCol, ok := index["label"]
	if !ok {
		if labelCol, ok = index["target"]; !ok {
			return nil, fmt.Errorf("header: missing label or target column")
		}
	}

	ds := &Dataset{FeatureNames: Names()}
	raw := make([]string, len(cols))
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		lv, err := strconv.Atoi(strings.TrimSpace(rec[labelCol]))
		if err != nil || (lv != Malignant && lv != Benign) {
			return nil, fmt.Errorf("line %d: label must be 0 or 1, got %q", line, rec[labelCol])
		}
		for i, c := range cols {
			raw[i] = rec[c]
		}
		row, err := parseRow(raw, line)
		if err != nil {
			return nil, err
		}
		ds.X = append(ds.X, row)
		ds.Y = append(ds.Y, lv)
	}

	if ds.Len() == 0 {
		return nil, ErrEmpty
	}
	return ds, nil
}

func parseRow(fields []string, line int) ([]float64, error) {
	row := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: feature %q: %w", line, FeatureNames[i], err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("line %d: feature %q is not finite", line, FeatureNames[i])
		}
		row[i] = v
	}
	return row, nil
}

// WriteWDBC writes ds in the UCI layout. Row ids are 1-based positions.
func WriteWDBC(w io.Writer, ds *Dataset) error {
	cw := csv.NewWriter(w)
	rec := make([]string, 0, len(FeatureNames)+2)
	for i, row := range ds.X {
		if len(row) != len(FeatureNames) {
			return fmt.Errorf("row %d: expected %d features, got %d", i, len(FeatureNames), len(row))
		}
		diag := "B"
		if ds.Y[i] == Malignant {
			diag = "M"
		}
		rec = append(rec[:0], strconv.Itoa(i+1), diag)
		for _, v := range row {
			rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
