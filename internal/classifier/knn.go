// internal/classifier/knn.go
package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// knn votes among the K nearest stored points (Euclidean distance).
// Weights is "uniform" or "distance".
type knn struct {
	K       int         `json:"k"`
	Weights string      `json:"weights"`
	Points  [][]float64 `json:"points"`
	Labels  []int       `json:"labels"`
	classes []int
	index   map[int]int
}

func decodeKNN(params json.RawMessage, classes []int, width int) (Classifier, error) {
	var m knn
	if err := json.Unmarshal(params, &m); err != nil {
		return nil, err
	}
	if m.Weights == "" {
		m.Weights = "uniform"
	}
	if m.Weights != "uniform" && m.Weights != "distance" {
		return nil, fmt.Errorf("unsupported weights %q", m.Weights)
	}
	if err := checkMatrix("points", m.Points, len(m.Labels), width); err != nil {
		return nil, err
	}
	if m.K <= 0 || m.K > len(m.Points) {
		return nil, fmt.Errorf("k=%d must be between 1 and %d", m.K, len(m.Points))
	}
	m.index = make(map[int]int, len(classes))
	for i, c := range classes {
		m.index[c] = i
	}
	for i, l := range m.Labels {
		if _, ok := m.index[l]; !ok {
			return nil, fmt.Errorf("point %d has label %d not in classes", i, l)
		}
	}
	m.classes = classes
	return &m, nil
}

type neighbor struct {
	idx  int
	dist float64
}

func (m *knn) PredictProba(row []float64) ([]float64, error) {
	if err := checkWidth(row, len(m.Points[0])); err != nil {
		return nil, err
	}
	neighbors := make([]neighbor, len(m.Points))
	for i, p := range m.Points {
		neighbors[i] = neighbor{idx: i, dist: math.Sqrt(sqDistance(p, row))}
	}
	sort.SliceStable(neighbors, func(i, j int) bool { return neighbors[i].dist < neighbors[j].dist })
	nearest := neighbors[:m.K]

	votes := make([]float64, len(m.classes))
	exact := false
	if m.Weights == "distance" {
		for _, n := range nearest {
			if n.dist == 0 {
				exact = true
				votes[m.index[m.Labels[n.idx]]]++
			}
		}
	}
	if !exact {
		for _, n := range nearest {
			w := 1.0
			if m.Weights == "distance" {
				w = 1 / n.dist
			}
			votes[m.index[m.Labels[n.idx]]] += w
		}
	}

	total := 0.0
	for _, v := range votes {
		total += v
	}
	for i := range votes {
		votes[i] /= total
	}
	return votes, nil
}

func (m *knn) Predict(row []float64) (int, error) {
	proba, err := m.PredictProba(row)
	if err != nil {
		return 0, err
	}
	return labelFor(m.classes, proba), nil
}
