// internal/patient/record.go
// Package patient defines the clinical feature record accepted by the
// inference service and the canonical column order shared with the
// classifier artifacts.
package patient

// Record is one patient's clinical attributes. All fields are required.
type Record struct {
	CA       int     `json:"ca"`
	Age      int     `json:"age"`
	Sex      int     `json:"sex"`
	CP       int     `json:"cp"`
	Trestbps float64 `json:"trestbps"`
	Chol     float64 `json:"chol"`
	FBS      int     `json:"fbs"`
	RestECG  int     `json:"restecg"`
	Thalach  float64 `json:"thalach"`
	Oldpeak  float64 `json:"oldpeak"`
}

// featureNames is the column order the artifacts were trained on.
var featureNames = []string{
	"ca",
	"age",
	"sex",
	"cp",
	"trestbps",
	"chol",
	"fbs",
	"restecg",
	"thalach",
	"oldpeak",
}

// FeatureNames returns a copy of the canonical column order.
func FeatureNames() []string {
	out := make([]string, len(featureNames))
	copy(out, featureNames)
	return out
}

// FeatureCount is the width of a single input row.
func FeatureCount() int { return len(featureNames) }

// Vector assembles the record into a single row in canonical order.
func (r Record) Vector() []float64 {
	return []float64{
		float64(r.CA),
		float64(r.Age),
		float64(r.Sex),
		float64(r.CP),
		r.Trestbps,
		r.Chol,
		float64(r.FBS),
		float64(r.RestECG),
		r.Thalach,
		r.Oldpeak,
	}
}
