// internal/evaluation/discover.go
package evaluation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mwiater/cardia/internal/classifier"
)

// DefaultExtension is the artifact file extension scanned when none is set.
const DefaultExtension = ".model"

// Candidate is an artifact found on disk, before it has been loaded.
type Candidate struct {
	Path  string
	File  string
	Tag   string
	Label string
}

// Discover lists the regular files in dir whose extension matches ext, in
// lexical filename order.
func Discover(dir, ext string) ([]Candidate, error) {
	if ext == "" {
		ext = DefaultExtension
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read models dir: %w", err)
	}

	var out []Candidate
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if !strings.EqualFold(filepath.Ext(name), ext) {
			continue
		}
		tag := TagFromFilename(name)
		out = append(out, Candidate{
			Path:  filepath.Join(dir, name),
			File:  name,
			Tag:   tag,
			Label: classifier.LabelForTag(tag),
		})
	}
	return out, nil
}

// TagFromFilename extracts the short family tag from an artifact name: the
// second underscore-delimited token of the stem, so "pipeline_rf.model"
// yields "rf". A stem without an underscore is its own tag.
func TagFromFilename(name string) string {
	base := filepath.Base(name)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	parts := strings.Split(stem, "_")
	if len(parts) < 2 || parts[1] == "" {
		return stem
	}
	return parts[1]
}
