// internal/classifier/classifier.go
// Package classifier loads pre-trained classifier artifacts from disk and
// exposes them through a narrow prediction interface. Each model family has
// its own adapter, chosen by the family the artifact declares.
package classifier

import "strings"

// Classifier is implemented by every loaded model.
type Classifier interface {
	// Predict returns the predicted class label for a single row.
	Predict(row []float64) (int, error)
	// PredictProba returns one probability per class, in class order.
	PredictProba(row []float64) ([]float64, error)
}

// Family identifies a model family by its short tag.
type Family int

const (
	// Unknown is any tag not in the table below.
	Unknown Family = iota
	RandomForest
	XGBoost
	MLP
	DecisionTree
	SVM
	LogisticRegression
	KNN
	NaiveBayes
)

var families = []struct {
	family Family
	tag    string
	label  string
}{
	{RandomForest, "rf", "Random Forest"},
	{XGBoost, "xgb", "XGBoost"},
	{MLP, "mlp", "Multi-Layer Perceptron"},
	{DecisionTree, "dt", "Decision Tree"},
	{SVM, "svm", "Support Vector Machine"},
	{LogisticRegression, "logreg", "Logistic Regression"},
	{KNN, "knn", "k-Nearest Neighbors"},
	{NaiveBayes, "nb", "Naive Bayes"},
}

// ParseFamily maps a short tag to its Family. Tags are matched
// case-insensitively; anything unrecognised maps to Unknown.
func ParseFamily(tag string) Family {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for _, f := range families {
		if f.tag == tag {
			return f.family
		}
	}
	return Unknown
}

// Tag returns the short tag, or "unknown".
func (f Family) Tag() string {
	for _, e := range families {
		if e.family == f {
			return e.tag
		}
	}
	return "unknown"
}

// Label returns the human-readable family name.
func (f Family) Label() string {
	for _, e := range families {
		if e.family == f {
			return e.label
		}
	}
	return "Unknown"
}

func (f Family) String() string { return f.Tag() }

// LabelForTag returns the display label for a filename tag. Unrecognised
// tags are returned unchanged.
func LabelForTag(tag string) string {
	if f := ParseFamily(tag); f != Unknown {
		return f.Label()
	}
	return tag
}
