// internal/patient/schema.go
package patient

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is the JSON schema for a prediction request body.
var Schema = map[string]any{
	"$schema": "http://json-schema.org/draft-04/schema#",
	"type":    "object",
	"properties": map[string]any{
		"ca":       map[string]any{"type": "integer", "minimum": 0, "maximum": 4},
		"age":      map[string]any{"type": "integer", "minimum": 0, "maximum": 150},
		"sex":      map[string]any{"type": "integer", "enum": []int{0, 1}},
		"cp":       map[string]any{"type": "integer", "enum": []int{0, 1, 2, 3}},
		"trestbps": map[string]any{"type": "number"},
		"chol":     map[string]any{"type": "number"},
		"fbs":      map[string]any{"type": "integer", "enum": []int{0, 1}},
		"restecg":  map[string]any{"type": "integer", "enum": []int{0, 1, 2}},
		"thalach":  map[string]any{"type": "number"},
		"oldpeak":  map[string]any{"type": "number"},
	},
	"required": FeatureNames(),
}

var schemaLoader = gojsonschema.NewGoLoader(Schema)

// FieldError describes why a single field was rejected.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// ValidationError is returned when a request body does not satisfy Schema.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "invalid patient record: " + strings.Join(parts, ", ")
}

// wireRecord accepts integral floats such as 1.0 for integer fields, which
// the schema allows but encoding/json would reject for an int target.
type wireRecord struct {
	CA       float64 `json:"ca"`
	Age      float64 `json:"age"`
	Sex      float64 `json:"sex"`
	CP       float64 `json:"cp"`
	Trestbps float64 `json:"trestbps"`
	Chol     float64 `json:"chol"`
	FBS      float64 `json:"fbs"`
	RestECG  float64 `json:"restecg"`
	Thalach  float64 `json:"thalach"`
	Oldpeak  float64 `json:"oldpeak"`
}

// Decode validates body against Schema and returns the record. Any schema
// violation is reported as a *ValidationError listing every offending field.
func Decode(body []byte) (Record, error) {
	if !json.Valid(body) {
		return Record{}, &ValidationError{Fields: []FieldError{{
			Field:   "body",
			Message: "request body is not valid JSON",
			Type:    "json_invalid",
		}}}
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return Record{}, fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		return Record{}, &ValidationError{Fields: fieldErrors(result.Errors())}
	}

	var w wireRecord
	if err := json.Unmarshal(body, &w); err != nil {
		return Record{}, &ValidationError{Fields: []FieldError{{
			Field:   "body",
			Message: err.Error(),
			Type:    "json_invalid",
		}}}
	}

	return Record{
		CA:       int(w.CA),
		Age:      int(w.Age),
		Sex:      int(w.Sex),
		CP:       int(w.CP),
		Trestbps: w.Trestbps,
		Chol:     w.Chol,
		FBS:      int(w.FBS),
		RestECG:  int(w.RestECG),
		Thalach:  w.Thalach,
		Oldpeak:  w.Oldpeak,
	}, nil
}

func fieldErrors(errs []gojsonschema.ResultError) []FieldError {
	out := make([]FieldError, 0, len(errs))
	for _, desc := range errs {
		field := desc.Field()
		if desc.Type() == "required" {
			if prop, ok := desc.Details()["property"].(string); ok {
				field = prop
			}
		}
		out = append(out, FieldError{
			Field:   field,
			Message: desc.Description(),
			Type:    desc.Type(),
		})
	}
	order := make(map[string]int, len(featureNames))
	for i, name := range featureNames {
		order[name] = i
	}
	sort.SliceStable(out, func(i, j int) bool {
		oi, iok := order[out[i].Field]
		oj, jok := order[out[j].Field]
		if iok && jok {
			return oi < oj
		}
		return iok && !jok
	})
	return out
}
