// internal/classifier/naivebayes.go
package classifier

import (
	"encoding/json"
	"fmt"
	"math"
)

// gaussianNB holds per-class priors, feature means (Theta) and variances.
type gaussianNB struct {
	Priors  []float64   `json:"priors"`
	Theta   [][]float64 `json:"theta"`
	Var     [][]float64 `json:"var"`
	classes []int
}

func decodeNaiveBayes(params json.RawMessage, classes []int, width int) (Classifier, error) {
	var m gaussianNB
	if err := json.Unmarshal(params, &m); err != nil {
		return nil, err
	}
	k := len(classes)
	if len(m.Priors) != k {
		return nil, fmt.Errorf("priors has %d values, want %d", len(m.Priors), k)
	}
	if err := checkMatrix("theta", m.Theta, k, width); err != nil {
		return nil, err
	}
	if err := checkMatrix("var", m.Var, k, width); err != nil {
		return nil, err
	}
	for c := range m.Var {
		if m.Priors[c] <= 0 {
			return nil, fmt.Errorf("prior for class %d must be positive", classes[c])
		}
		for f, v := range m.Var[c] {
			if v <= 0 {
				return nil, fmt.Errorf("variance for class %d feature %d must be positive", classes[c], f)
			}
		}
	}
	m.classes = classes
	return &m, nil
}

// PredictProba computes the joint log-likelihood per class and normalises
// it with softmax.
func (m *gaussianNB) PredictProba(row []float64) ([]float64, error) {
	if err := checkWidth(row, len(m.Theta[0])); err != nil {
		return nil, err
	}
	jll := make([]float64, len(m.classes))
	for c := range m.classes {
		sum := math.Log(m.Priors[c])
		for f, x := range row {
			v := m.Var[c][f]
			d := x - m.Theta[c][f]
			sum -= 0.5*math.Log(2*math.Pi*v) + d*d/(2*v)
		}
		jll[c] = sum
	}
	return softmax(jll), nil
}

func (m *gaussianNB) Predict(row []float64) (int, error) {
	proba, err := m.PredictProba(row)
	if err != nil {
		return 0, err
	}
	return labelFor(m.classes, proba), nil
}
