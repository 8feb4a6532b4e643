// internal/classifier/mlp.go
package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

type denseLayer struct {
	// Weights is indexed [input][output].
	Weights [][]float64 `json:"weights"`
	Bias    []float64   `json:"bias"`
}

// mlp is a feed-forward network. Hidden layers use Activation; the output
// layer is logistic for a single binary unit and softmax otherwise.
type mlp struct {
	Activation string       `json:"activation"`
	Layers     []denseLayer `json:"layers"`
	classes    []int
	width      int
}

var activations = map[string]func(float64) float64{
	"relu":     func(x float64) float64 { return math.Max(0, x) },
	"tanh":     math.Tanh,
	"logistic": sigmoid,
	"identity": func(x float64) float64 { return x },
}

func decodeMLP(params json.RawMessage, classes []int, width int) (Classifier, error) {
	var m mlp
	if err := json.Unmarshal(params, &m); err != nil {
		return nil, err
	}
	if m.Activation == "" {
		m.Activation = "relu"
	}
	if _, ok := activations[m.Activation]; !ok {
		return nil, fmt.Errorf("unsupported activation %q", m.Activation)
	}
	if len(m.Layers) == 0 {
		return nil, errors.New("network has no layers")
	}
	in := width
	for i, l := range m.Layers {
		if len(l.Weights) != in || len(l.Weights[0]) == 0 {
			return nil, fmt.Errorf("layer %d expects %d inputs, got %d", i, in, len(l.Weights))
		}
		out := len(l.Weights[0])
		if err := checkMatrix(fmt.Sprintf("layer %d weights", i), l.Weights, in, out); err != nil {
			return nil, err
		}
		if len(l.Bias) != out {
			return nil, fmt.Errorf("layer %d bias has %d values, want %d", i, len(l.Bias), out)
		}
		in = out
	}
	if !(in == len(classes) || (len(classes) == 2 && in == 1)) {
		return nil, fmt.Errorf("output layer has %d units for %d classes", in, len(classes))
	}
	m.classes = classes
	m.width = width
	return &m, nil
}

func (l denseLayer) forward(x []float64) []float64 {
	out := make([]float64, len(l.Bias))
	copy(out, l.Bias)
	for i, xi := range x {
		for j, w := range l.Weights[i] {
			out[j] += xi * w
		}
	}
	return out
}

func (m *mlp) PredictProba(row []float64) ([]float64, error) {
	if err := checkWidth(row, m.width); err != nil {
		return nil, err
	}
	act := activations[m.Activation]
	x := row
	last := len(m.Layers) - 1
	for i, l := range m.Layers {
		x = l.forward(x)
		if i == last {
			break
		}
		for j := range x {
			x[j] = act(x[j])
		}
	}
	if len(x) == 1 {
		return binaryProba(sigmoid(x[0])), nil
	}
	return softmax(x), nil
}

func (m *mlp) Predict(row []float64) (int, error) {
	proba, err := m.PredictProba(row)
	if err != nil {
		return 0, err
	}
	return labelFor(m.classes, proba), nil
}
