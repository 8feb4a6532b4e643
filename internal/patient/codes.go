// internal/patient/codes.go
package patient

import "strconv"

var codeLabels = map[string]map[int]string{
	"sex": {
		0: "Female",
		1: "Male",
	},
	"cp": {
		0: "Typical angina",
		1: "Atypical angina",
		2: "Non-anginal pain",
		3: "Asymptomatic",
	},
	"fbs": {
		0: "<= 120 mg/dl",
		1: "> 120 mg/dl",
	},
	"restecg": {
		0: "Normal",
		1: "ST-T wave abnormality",
		2: "Left ventricular hypertrophy",
	},
	"target": {
		0: "No disease",
		1: "Disease present",
	},
}

// Describe returns the human-readable label for a coded field value. Fields
// or codes without a label fall back to the code itself.
func Describe(field string, code int) string {
	if labels, ok := codeLabels[field]; ok {
		if label, ok := labels[code]; ok {
			return label
		}
	}
	return strconv.Itoa(code)
}

// DescribeTarget returns the label for a predicted class.
func DescribeTarget(label int) string { return Describe("target", label) }

var fieldHelp = map[string]string{
	"ca":       "number of major vessels colored by fluoroscopy (0-3)",
	"age":      "age in years",
	"sex":      "sex (0 female, 1 male)",
	"cp":       "chest pain type (0-3)",
	"trestbps": "resting blood pressure in mm Hg",
	"chol":     "serum cholesterol in mg/dl",
	"fbs":      "fasting blood sugar > 120 mg/dl (0 or 1)",
	"restecg":  "resting ECG result (0-2)",
	"thalach":  "maximum heart rate achieved",
	"oldpeak":  "ST depression induced by exercise relative to rest",
}

// FieldHelp returns a one-line description of a record field.
func FieldHelp(field string) string {
	if help, ok := fieldHelp[field]; ok {
		return help
	}
	return field
}
