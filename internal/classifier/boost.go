// internal/classifier/boost.go
package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
)

type boostedTree struct {
	tree
	Class int `json:"class"`
}

// boosted is a gradient-boosted ensemble of regression trees. Binary models
// accumulate a single margin; multiclass models accumulate one margin per
// class, routed by each tree's Class index.
type boosted struct {
	BaseMargin float64       `json:"base_margin"`
	Trees      []boostedTree `json:"trees"`
	classes    []int
	width      int
}

func decodeBoosted(params json.RawMessage, classes []int, width int) (Classifier, error) {
	var m boosted
	if err := json.Unmarshal(params, &m); err != nil {
		return nil, err
	}
	if len(m.Trees) == 0 {
		return nil, errors.New("ensemble has no trees")
	}
	for i := range m.Trees {
		if err := m.Trees[i].validate(width, 1); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		if len(classes) > 2 && (m.Trees[i].Class < 0 || m.Trees[i].Class >= len(classes)) {
			return nil, fmt.Errorf("tree %d targets class index %d, out of range", i, m.Trees[i].Class)
		}
	}
	m.classes = classes
	m.width = width
	return &m, nil
}

func (m *boosted) PredictProba(row []float64) ([]float64, error) {
	if err := checkWidth(row, m.width); err != nil {
		return nil, err
	}
	if len(m.classes) == 2 {
		margin := m.BaseMargin
		for i := range m.Trees {
			margin += m.Trees[i].leaf(row).Value[0]
		}
		return binaryProba(sigmoid(margin)), nil
	}
	margins := make([]float64, len(m.classes))
	for k := range margins {
		margins[k] = m.BaseMargin
	}
	for i := range m.Trees {
		margins[m.Trees[i].Class] += m.Trees[i].leaf(row).Value[0]
	}
	return softmax(margins), nil
}

func (m *boosted) Predict(row []float64) (int, error) {
	proba, err := m.PredictProba(row)
	if err != nil {
		return 0, err
	}
	return labelFor(m.classes, proba), nil
}
