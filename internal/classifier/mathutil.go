// internal/classifier/mathutil.go
package classifier

import (
	"fmt"
	"math"
)

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// softmax normalises scores in place using the log-sum-exp shift.
func softmax(scores []float64) []float64 {
	maxScore := math.Inf(-1)
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}
	sum := 0.0
	for i, s := range scores {
		scores[i] = math.Exp(s - maxScore)
		sum += scores[i]
	}
	for i := range scores {
		scores[i] /= sum
	}
	return scores
}

func binaryProba(p1 float64) []float64 {
	return []float64{1 - p1, p1}
}

// argmax returns the first index holding the maximum value.
func argmax(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func sqDistance(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func checkWidth(row []float64, width int) error {
	if len(row) != width {
		return fmt.Errorf("row has %d features, model expects %d", len(row), width)
	}
	return nil
}

func checkMatrix(name string, m [][]float64, rows, cols int) error {
	if len(m) != rows {
		return fmt.Errorf("%s has %d rows, want %d", name, len(m), rows)
	}
	for i, r := range m {
		if len(r) != cols {
			return fmt.Errorf("%s row %d has %d columns, want %d", name, i, len(r), cols)
		}
	}
	return nil
}

// labelFor maps a probability vector back to the class label.
func labelFor(classes []int, proba []float64) int {
	return classes[argmax(proba)]
}
