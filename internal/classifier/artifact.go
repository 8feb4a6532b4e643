// internal/classifier/artifact.go
package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/mwiater/cardia/internal/patient"
)

var (
	// ErrCorruptArtifact is returned when an artifact cannot be parsed.
	ErrCorruptArtifact = errors.New("corrupt artifact")
	// ErrUnknownFamily is returned when an artifact declares a family with no adapter.
	ErrUnknownFamily = errors.New("unknown model family")
	// ErrFeatureMismatch is returned when an artifact was trained on different columns.
	ErrFeatureMismatch = errors.New("artifact feature order does not match patient record")
)

// ArtifactError records which artifact failed to load and why.
type ArtifactError struct {
	Path string
	Err  error
}

func (e *ArtifactError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("artifact: %v", e.Err)
	}
	return fmt.Sprintf("artifact %s: %v", e.Path, e.Err)
}

func (e *ArtifactError) Unwrap() error { return e.Err }

// envelope is the on-disk layout shared by every family.
type envelope struct {
	Family   string          `json:"family"`
	Classes  []int           `json:"classes"`
	Features []string        `json:"features,omitempty"`
	Scaler   *Scaler         `json:"scaler,omitempty"`
	Params   json.RawMessage `json:"params"`
}

// Scaler standardises a row before it reaches the model.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

func (s *Scaler) validate(width int) error {
	if len(s.Mean) != width || len(s.Scale) != width {
		return fmt.Errorf("scaler has %d means and %d scales, want %d", len(s.Mean), len(s.Scale), width)
	}
	return nil
}

func (s *Scaler) transform(row []float64) []float64 {
	out := make([]float64, len(row))
	for i, v := range row {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (v - s.Mean[i]) / scale
	}
	return out
}

type decodeFunc func(params json.RawMessage, classes []int, width int) (Classifier, error)

var decoders = map[Family]decodeFunc{
	LogisticRegression: decodeLogReg,
	DecisionTree:       decodeDecisionTree,
	RandomForest:       decodeForest,
	XGBoost:            decodeBoosted,
	NaiveBayes:         decodeNaiveBayes,
	KNN:                decodeKNN,
	MLP:                decodeMLP,
	SVM:                decodeSVM,
}

// Artifact is a loaded classifier together with its declared metadata.
type Artifact struct {
	Family  Family
	Classes []int
	scaler  *Scaler
	model   Classifier
	width   int
}

// Load reads and decodes the artifact at path.
func Load(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ArtifactError{Path: path, Err: err}
	}
	defer f.Close()

	art, err := Decode(f)
	if err != nil {
		var ae *ArtifactError
		if errors.As(err, &ae) {
			ae.Path = path
			return nil, ae
		}
		return nil, &ArtifactError{Path: path, Err: err}
	}
	return art, nil
}

// Decode parses an artifact from r and builds the adapter for its family.
func Decode(r io.Reader) (*Artifact, error) {
	var env envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, &ArtifactError{Err: fmt.Errorf("%w: %v", ErrCorruptArtifact, err)}
	}

	family := ParseFamily(env.Family)
	decode, ok := decoders[family]
	if !ok {
		return nil, &ArtifactError{Err: fmt.Errorf("%w: %q", ErrUnknownFamily, env.Family)}
	}

	width := patient.FeatureCount()
	if len(env.Features) > 0 && !slices.Equal(env.Features, patient.FeatureNames()) {
		return nil, &ArtifactError{Err: fmt.Errorf("%w: %v", ErrFeatureMismatch, env.Features)}
	}
	if err := validateClasses(env.Classes); err != nil {
		return nil, &ArtifactError{Err: fmt.Errorf("%w: %v", ErrCorruptArtifact, err)}
	}
	if env.Scaler != nil {
		if err := env.Scaler.validate(width); err != nil {
			return nil, &ArtifactError{Err: fmt.Errorf("%w: %v", ErrCorruptArtifact, err)}
		}
	}
	if len(env.Params) == 0 {
		return nil, &ArtifactError{Err: fmt.Errorf("%w: missing params", ErrCorruptArtifact)}
	}

	model, err := decode(env.Params, env.Classes, width)
	if err != nil {
		return nil, &ArtifactError{Err: fmt.Errorf("%w: %s: %v", ErrCorruptArtifact, family, err)}
	}

	return &Artifact{
		Family:  family,
		Classes: slices.Clone(env.Classes),
		scaler:  env.Scaler,
		model:   model,
		width:   width,
	}, nil
}

func validateClasses(classes []int) error {
	if len(classes) < 2 {
		return fmt.Errorf("need at least two classes, got %d", len(classes))
	}
	seen := make(map[int]struct{}, len(classes))
	for _, c := range classes {
		if _, dup := seen[c]; dup {
			return fmt.Errorf("duplicate class %d", c)
		}
		seen[c] = struct{}{}
	}
	return nil
}

func (a *Artifact) prepare(row []float64) ([]float64, error) {
	if err := checkWidth(row, a.width); err != nil {
		return nil, err
	}
	if a.scaler == nil {
		return row, nil
	}
	return a.scaler.transform(row), nil
}

// Predict implements Classifier.
func (a *Artifact) Predict(row []float64) (int, error) {
	x, err := a.prepare(row)
	if err != nil {
		return 0, err
	}
	return a.model.Predict(x)
}

// PredictProba implements Classifier.
func (a *Artifact) PredictProba(row []float64) ([]float64, error) {
	x, err := a.prepare(row)
	if err != nil {
		return nil, err
	}
	return a.model.PredictProba(x)
}

// PredictBatch runs Predict over every row.
func (a *Artifact) PredictBatch(rows [][]float64) ([]int, error) {
	out := make([]int, len(rows))
	for i, row := range rows {
		label, err := a.Predict(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = label
	}
	return out, nil
}
