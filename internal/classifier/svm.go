// internal/classifier/svm.go
package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// svm is a binary support vector classifier with Platt-scaled
// probabilities. A linear kernel uses Coef directly; an rbf kernel sums
// DualCoef-weighted kernel evaluations against SupportVectors.
type svm struct {
	Kernel         string      `json:"kernel"`
	Coef           []float64   `json:"coef,omitempty"`
	SupportVectors [][]float64 `json:"support_vectors,omitempty"`
	DualCoef       []float64   `json:"dual_coef,omitempty"`
	Gamma          float64     `json:"gamma,omitempty"`
	Intercept      float64     `json:"intercept"`
	ProbA          float64     `json:"prob_a"`
	ProbB          float64     `json:"prob_b"`
	classes        []int
	width          int
}

func decodeSVM(params json.RawMessage, classes []int, width int) (Classifier, error) {
	var m svm
	if err := json.Unmarshal(params, &m); err != nil {
		return nil, err
	}
	if len(classes) != 2 {
		return nil, fmt.Errorf("svm supports two classes, got %d", len(classes))
	}
	switch m.Kernel {
	case "", "linear":
		m.Kernel = "linear"
		if len(m.Coef) != width {
			return nil, fmt.Errorf("coef has %d values, want %d", len(m.Coef), width)
		}
	case "rbf":
		if len(m.SupportVectors) == 0 {
			return nil, errors.New("rbf kernel requires support vectors")
		}
		if err := checkMatrix("support_vectors", m.SupportVectors, len(m.DualCoef), width); err != nil {
			return nil, err
		}
		if m.Gamma <= 0 {
			return nil, fmt.Errorf("gamma must be positive, got %v", m.Gamma)
		}
	default:
		return nil, fmt.Errorf("unsupported kernel %q", m.Kernel)
	}
	m.classes = classes
	m.width = width
	return &m, nil
}

func (m *svm) decision(row []float64) float64 {
	if m.Kernel == "linear" {
		return dot(m.Coef, row) + m.Intercept
	}
	sum := m.Intercept
	for i, sv := range m.SupportVectors {
		sum += m.DualCoef[i] * math.Exp(-m.Gamma*sqDistance(sv, row))
	}
	return sum
}

// PredictProba applies Platt scaling: P(positive) = 1 / (1 + exp(A*f + B)).
func (m *svm) PredictProba(row []float64) ([]float64, error) {
	if err := checkWidth(row, m.width); err != nil {
		return nil, err
	}
	return binaryProba(sigmoid(-(m.ProbA*m.decision(row) + m.ProbB))), nil
}

// Predict uses the sign of the decision function, as the probability
// calibration can disagree with it near the boundary.
func (m *svm) Predict(row []float64) (int, error) {
	if err := checkWidth(row, m.width); err != nil {
		return 0, err
	}
	if m.decision(row) > 0 {
		return m.classes[1], nil
	}
	return m.classes[0], nil
}
