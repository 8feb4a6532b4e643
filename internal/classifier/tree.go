// internal/classifier/tree.go
package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
)

// TreeNode is one node of an array-encoded binary tree. A node with
// Left == Right == -1 is a leaf; Value holds its class counts (classification
// trees) or its single output value (boosted regression trees).
type TreeNode struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value"`
}

func (n TreeNode) isLeaf() bool { return n.Left == -1 && n.Right == -1 }

type tree struct {
	Nodes []TreeNode `json:"nodes"`
}

// validate checks that children always point forward, which guarantees that
// traversal terminates, and that every leaf carries valueWidth values.
func (t *tree) validate(width, valueWidth int) error {
	if len(t.Nodes) == 0 {
		return errors.New("tree has no nodes")
	}
	for i, n := range t.Nodes {
		if n.isLeaf() {
			if len(n.Value) != valueWidth {
				return fmt.Errorf("leaf %d has %d values, want %d", i, len(n.Value), valueWidth)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= width {
			return fmt.Errorf("node %d splits on feature %d, out of range", i, n.Feature)
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d has invalid children %d/%d", i, n.Left, n.Right)
		}
	}
	return nil
}

// leaf walks the tree for row and returns the leaf it lands in.
func (t *tree) leaf(row []float64) TreeNode {
	idx := 0
	for {
		node := t.Nodes[idx]
		if node.isLeaf() {
			return node
		}
		if row[node.Feature] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
}

// proba returns the normalised class distribution of the leaf row lands in.
func (t *tree) proba(row []float64) []float64 {
	counts := t.leaf(row).Value
	out := make([]float64, len(counts))
	total := 0.0
	for _, c := range counts {
		total += c
	}
	for i, c := range counts {
		if total == 0 {
			out[i] = 1 / float64(len(counts))
			continue
		}
		out[i] = c / total
	}
	return out
}

type decisionTree struct {
	tree
	classes []int
	width   int
}

func decodeDecisionTree(params json.RawMessage, classes []int, width int) (Classifier, error) {
	var t tree
	if err := json.Unmarshal(params, &t); err != nil {
		return nil, err
	}
	if err := t.validate(width, len(classes)); err != nil {
		return nil, err
	}
	return &decisionTree{tree: t, classes: classes, width: width}, nil
}

func (m *decisionTree) PredictProba(row []float64) ([]float64, error) {
	if err := checkWidth(row, m.width); err != nil {
		return nil, err
	}
	return m.proba(row), nil
}

func (m *decisionTree) Predict(row []float64) (int, error) {
	proba, err := m.PredictProba(row)
	if err != nil {
		return 0, err
	}
	return labelFor(m.classes, proba), nil
}

type forest struct {
	Trees   []tree `json:"trees"`
	classes []int
	width   int
}

func decodeForest(params json.RawMessage, classes []int, width int) (Classifier, error) {
	var m forest
	if err := json.Unmarshal(params, &m); err != nil {
		return nil, err
	}
	if len(m.Trees) == 0 {
		return nil, errors.New("forest has no trees")
	}
	for i := range m.Trees {
		if err := m.Trees[i].validate(width, len(classes)); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
	}
	m.classes = classes
	m.width = width
	return &m, nil
}

// PredictProba averages the per-tree class distributions.
func (m *forest) PredictProba(row []float64) ([]float64, error) {
	if err := checkWidth(row, m.width); err != nil {
		return nil, err
	}
	out := make([]float64, len(m.classes))
	for i := range m.Trees {
		for k, p := range m.Trees[i].proba(row) {
			out[k] += p
		}
	}
	n := float64(len(m.Trees))
	for k := range out {
		out[k] /= n
	}
	return out, nil
}

func (m *forest) Predict(row []float64) (int, error) {
	proba, err := m.PredictProba(row)
	if err != nil {
		return 0, err
	}
	return labelFor(m.classes, proba), nil
}
