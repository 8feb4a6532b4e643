// internal/inference/service.go
package inference

import (
	"errors"
	"fmt"
	"math"

	"github.com/mwiater/cardia/internal/classifier"
	"github.com/mwiater/cardia/internal/patient"
)

// Result is the response to a prediction request. Confidence is the highest
// class probability, rounded to four decimals.
type Result struct {
	Prediction int     `json:"prediction"`
	Confidence float64 `json:"confidence"`
}

// InferenceError wraps a failure inside the classifier on a valid record.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string { return "inference failed: " + e.Err.Error() }

func (e *InferenceError) Unwrap() error { return e.Err }

// Service answers predictions from one classifier loaded at startup. The
// classifier is never mutated, so a Service is safe for concurrent use.
type Service struct {
	model classifier.Classifier
}

// NewService wraps model. It panics if model is nil; a service must never run
// without a classifier.
func NewService(model classifier.Classifier) *Service {
	if model == nil {
		panic("inference: nil classifier")
	}
	return &Service{model: model}
}

// Predict scores one patient record.
func (s *Service) Predict(rec patient.Record) (Result, error) {
	row := rec.Vector()

	label, err := s.model.Predict(row)
	if err != nil {
		return Result{}, &InferenceError{Err: fmt.Errorf("predict: %w", err)}
	}
	proba, err := s.model.PredictProba(row)
	if err != nil {
		return Result{}, &InferenceError{Err: fmt.Errorf("predict proba: %w", err)}
	}
	if len(proba) == 0 {
		return Result{}, &InferenceError{Err: errors.New("classifier returned no probabilities")}
	}

	best := math.Inf(-1)
	for i, p := range proba {
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 || p > 1+1e-9 {
			return Result{}, &InferenceError{Err: fmt.Errorf("probability %d is %v", i, p)}
		}
		best = max(best, p)
	}

	return Result{Prediction: label, Confidence: round4(min(best, 1))}, nil
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
