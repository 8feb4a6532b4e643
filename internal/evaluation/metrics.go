// internal/evaluation/metrics.go
package evaluation

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrEmptyLabels is returned when there is nothing to score.
	ErrEmptyLabels = errors.New("no labels to evaluate")
	// ErrLengthMismatch is returned when predictions and truth differ in length.
	ErrLengthMismatch = errors.New("prediction and label counts differ")
)

// ClassScores holds precision, recall and F1 for one class or one aggregate.
type ClassScores struct {
	Label     int     `json:"label" yaml:"label"`
	Precision float64 `json:"precision" yaml:"precision"`
	Recall    float64 `json:"recall" yaml:"recall"`
	F1        float64 `json:"f1" yaml:"f1"`
	Support   int     `json:"support" yaml:"support"`
}

// Report is a full classification report: one row per label plus the macro
// and support-weighted averages.
type Report struct {
	Classes  []ClassScores `json:"classes" yaml:"classes"`
	Accuracy float64       `json:"accuracy" yaml:"accuracy"`
	Macro    ClassScores   `json:"macro_avg" yaml:"macro_avg"`
	Weighted ClassScores   `json:"weighted_avg" yaml:"weighted_avg"`
}

// Metrics is the evaluation record for one classifier against one test set.
// Precision, Recall and F1 are support-weighted averages. Confusion is
// indexed [true][predicted] over Labels. Labels is the union of the classes in
// the truth and the predictions, so a class only ever predicted still gets a
// row with zero support.
type Metrics struct {
	Accuracy  float64 `json:"accuracy" yaml:"accuracy"`
	Precision float64 `json:"precision" yaml:"precision"`
	Recall    float64 `json:"recall" yaml:"recall"`
	F1        float64 `json:"f1" yaml:"f1"`
	Labels    []int   `json:"labels" yaml:"labels"`
	Confusion [][]int `json:"confusion_matrix" yaml:"confusion_matrix"`
	Report    Report  `json:"report" yaml:"report"`
}

// Evaluate scores yPred against yTrue. Any ratio with a zero denominator is
// reported as 0.
func Evaluate(yTrue, yPred []int) (Metrics, error) {
	if len(yTrue) == 0 {
		return Metrics{}, ErrEmptyLabels
	}
	if len(yTrue) != len(yPred) {
		return Metrics{}, fmt.Errorf("%w: %d labels, %d predictions", ErrLengthMismatch, len(yTrue), len(yPred))
	}

	labels := labelSet(yTrue, yPred)
	index := make(map[int]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}

	confusion := make([][]int, len(labels))
	for i := range confusion {
		confusion[i] = make([]int, len(labels))
	}
	correct := 0
	for i, t := range yTrue {
		p := yPred[i]
		confusion[index[t]][index[p]]++
		if t == p {
			correct++
		}
	}

	total := len(yTrue)
	report := Report{
		Classes:  make([]ClassScores, len(labels)),
		Accuracy: ratio(correct, total),
	}
	for i, label := range labels {
		tp := confusion[i][i]
		support, predicted := 0, 0
		for j := range labels {
			support += confusion[i][j]
			predicted += confusion[j][i]
		}
		p := ratio(tp, predicted)
		r := ratio(tp, support)
		report.Classes[i] = ClassScores{
			Label:     label,
			Precision: p,
			Recall:    r,
			F1:        harmonic(p, r),
			Support:   support,
		}
	}
	report.Macro, report.Weighted = averages(report.Classes, total)

	return Metrics{
		Accuracy:  report.Accuracy,
		Precision: report.Weighted.Precision,
		Recall:    report.Weighted.Recall,
		F1:        report.Weighted.F1,
		Labels:    labels,
		Confusion: confusion,
		Report:    report,
	}, nil
}

// labelSet returns the sorted union of the labels seen in either slice.
func labelSet(yTrue, yPred []int) []int {
	seen := make(map[int]struct{})
	for _, l := range yTrue {
		seen[l] = struct{}{}
	}
	for _, l := range yPred {
		seen[l] = struct{}{}
	}
	labels := make([]int, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Ints(labels)
	return labels
}

func averages(classes []ClassScores, total int) (macro, weighted ClassScores) {
	macro.Label, weighted.Label = -1, -1
	macro.Support, weighted.Support = total, total
	for _, c := range classes {
		macro.Precision += c.Precision
		macro.Recall += c.Recall
		macro.F1 += c.F1

		w := float64(c.Support)
		weighted.Precision += c.Precision * w
		weighted.Recall += c.Recall * w
		weighted.F1 += c.F1 * w
	}
	if n := float64(len(classes)); n > 0 {
		macro.Precision /= n
		macro.Recall /= n
		macro.F1 /= n
	}
	if total > 0 {
		t := float64(total)
		weighted.Precision /= t
		weighted.Recall /= t
		weighted.F1 /= t
	}
	return macro, weighted
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func harmonic(p, r float64) float64 {
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}
