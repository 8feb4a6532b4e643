// internal/classifier/linear.go
package classifier

import (
	"encoding/json"
	"fmt"
)

// logReg is a fitted logistic regression. Binary models carry a single
// coefficient row; multinomial models carry one row per class.
type logReg struct {
	Coef      [][]float64 `json:"coef"`
	Intercept []float64   `json:"intercept"`
	classes   []int
}

func decodeLogReg(params json.RawMessage, classes []int, width int) (Classifier, error) {
	var m logReg
	if err := json.Unmarshal(params, &m); err != nil {
		return nil, err
	}
	rows := len(classes)
	if rows == 2 {
		rows = 1
	}
	if err := checkMatrix("coef", m.Coef, rows, width); err != nil {
		return nil, err
	}
	if len(m.Intercept) != rows {
		return nil, fmt.Errorf("intercept has %d values, want %d", len(m.Intercept), rows)
	}
	m.classes = classes
	return &m, nil
}

func (m *logReg) PredictProba(row []float64) ([]float64, error) {
	if err := checkWidth(row, len(m.Coef[0])); err != nil {
		return nil, err
	}
	if len(m.Coef) == 1 {
		return binaryProba(sigmoid(dot(m.Coef[0], row) + m.Intercept[0])), nil
	}
	scores := make([]float64, len(m.Coef))
	for k, w := range m.Coef {
		scores[k] = dot(w, row) + m.Intercept[k]
	}
	return softmax(scores), nil
}

func (m *logReg) Predict(row []float64) (int, error) {
	proba, err := m.PredictProba(row)
	if err != nil {
		return 0, err
	}
	return labelFor(m.classes, proba), nil
}
