// internal/evaluation/testset.go
package evaluation

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/mwiater/cardia/internal/patient"
)

// ErrRowMismatch is returned when the feature and label files disagree on
// the number of rows.
var ErrRowMismatch = errors.New("feature and label row counts differ")

// TestSet is the held-out split every classifier is scored against. Row i of
// Features corresponds to Labels[i]; columns are in patient.FeatureNames order.
type TestSet struct {
	Features [][]float64
	Labels   []int
}

// ClassCount is the number of rows carrying one label.
type ClassCount struct {
	Label int `json:"label" yaml:"label"`
	Count int `json:"count" yaml:"count"`
}

// Summary describes a test set at a glance.
type Summary struct {
	Rows          int          `json:"rows" yaml:"rows"`
	Classes       []ClassCount `json:"classes" yaml:"classes"`
	Dominant      int          `json:"dominant_class" yaml:"dominant_class"`
	DominantShare float64      `json:"dominant_share" yaml:"dominant_share"`
	MeanAge       float64      `json:"mean_age" yaml:"mean_age"`
}

// LoadTestSet reads the feature matrix and label vector. Feature columns are
// located by header name, so extra or reordered columns are tolerated.
func LoadTestSet(featuresPath, labelsPath string) (*TestSet, error) {
	features, err := readFeatures(featuresPath)
	if err != nil {
		return nil, err
	}
	labels, err := readLabels(labelsPath)
	if err != nil {
		return nil, err
	}
	if len(features) != len(labels) {
		return nil, fmt.Errorf("%w: %s has %d rows, %s has %d", ErrRowMismatch, featuresPath, len(features), labelsPath, len(labels))
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("test set %s is empty", featuresPath)
	}
	return &TestSet{Features: features, Labels: labels}, nil
}

// Len returns the number of rows.
func (ts *TestSet) Len() int { return len(ts.Labels) }

// Summary computes row count, class balance and mean age.
func (ts *TestSet) Summary() Summary {
	s := Summary{Rows: ts.Len()}
	if s.Rows == 0 {
		return s
	}

	counts := make(map[int]int)
	for _, l := range ts.Labels {
		counts[l]++
	}
	for l, c := range counts {
		s.Classes = append(s.Classes, ClassCount{Label: l, Count: c})
	}
	sort.Slice(s.Classes, func(i, j int) bool { return s.Classes[i].Label < s.Classes[j].Label })

	best := s.Classes[0]
	for _, c := range s.Classes[1:] {
		if c.Count > best.Count {
			best = c
		}
	}
	s.Dominant = best.Label
	s.DominantShare = float64(best.Count) / float64(s.Rows)

	ageCol := columnOf("age")
	sum := 0.0
	for _, row := range ts.Features {
		sum += row[ageCol]
	}
	s.MeanAge = sum / float64(s.Rows)
	return s
}

func columnOf(name string) int {
	for i, n := range patient.FeatureNames() {
		if n == name {
			return i
		}
	}
	return -1
}

func readFeatures(path string) ([][]float64, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: missing header row", path)
	}

	header := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}
	names := patient.FeatureNames()
	cols := make([]int, len(names))
	for i, name := range names {
		col, ok := header[name]
		if !ok {
			return nil, fmt.Errorf("%s: missing column %q", path, name)
		}
		cols[i] = col
	}

	rows := make([][]float64, 0, len(records)-1)
	for r, rec := range records[1:] {
		row := make([]float64, len(cols))
		for i, col := range cols {
			if col >= len(rec) {
				return nil, fmt.Errorf("%s: row %d has %d fields", path, r+2, len(rec))
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[col]), 64)
			if err != nil {
				return nil, fmt.Errorf("%s: row %d column %q: %w", path, r+2, names[i], err)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%s: row %d column %q: value %v is not finite", path, r+2, names[i], v)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func readLabels(path string) ([]int, error) {
	records, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	if len(records) > 0 && len(records[0]) > 0 {
		if _, err := strconv.ParseFloat(strings.TrimSpace(records[0][0]), 64); err != nil {
			records = records[1:]
		}
	}

	labels := make([]int, 0, len(records))
	for r, rec := range records {
		if len(rec) != 1 {
			return nil, fmt.Errorf("%s: row %d has %d fields, want 1", path, r+1, len(rec))
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", path, r+1, err)
		}
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("%s: row %d: label %v is not an integer", path, r+1, v)
		}
		labels = append(labels, int(v))
	}
	return labels, nil
}

// readCSV reads a comma or semicolon separated file. The delimiter is taken
// from the first line.
func readCSV(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	first, _, _ := bytes.Cut(data, []byte("\n"))

	r := csv.NewReader(bytes.NewReader(data))
	if bytes.Count(first, []byte(";")) > bytes.Count(first, []byte(",")) {
		r.Comma = ';'
	}
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return records, nil
}
