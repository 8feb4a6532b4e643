// internal/report/export.go
package report

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/mwiater/cardia/internal/evaluation"
	"github.com/mwiater/cardia/internal/util"
)

// Document is the exported form of a comparison run.
type Document struct {
	TestSet    evaluation.Summary     `json:"test_set" yaml:"test_set"`
	Comparison *evaluation.Comparison `json:"comparison" yaml:"comparison"`
}

// Export writes doc to path as JSON (.json) or YAML (.yaml, .yml).
func Export(path string, doc Document) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(doc, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(doc)
	default:
		return fmt.Errorf("unsupported export format %q (use .json, .yaml or .yml)", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("encode export: %w", err)
	}

	return util.WriteFile(path, data)
}
