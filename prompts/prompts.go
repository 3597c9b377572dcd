// Package prompts loads the instruction templates the pipeline sends to
// the model, one per cell type.
package prompts

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:embed templates/*.md
var templateFS embed.FS

// Cell types recognized by the instruction selector. Anything else
// falls back to the success template.
const (
	CellTypeGrader       = "grader"
	CellTypeFreeResponse = "free_response"
	CellTypeSuccess      = "success"
)

// Library holds the three instruction texts as opaque strings.
type Library struct {
	grader       string
	freeResponse string
	success      string
}

// Load builds a Library from the embedded defaults. When overrideDir is
// non-empty, a template file present there (grader.md, free_response.md,
// success.md) replaces the embedded one.
func Load(overrideDir string) (*Library, error) {
	lib := &Library{}
	for _, t := range []struct {
		name string
		dst  *string
	}{
		{CellTypeGrader, &lib.grader},
		{CellTypeFreeResponse, &lib.freeResponse},
		{CellTypeSuccess, &lib.success},
	} {
		text, err := readTemplate(overrideDir, t.name)
		if err != nil {
			return nil, err
		}
		*t.dst = text
	}
	return lib, nil
}

// ForCellType resolves the instruction text for a cell type tag.
func (l *Library) ForCellType(cellType string) string {
	switch cellType {
	case CellTypeGrader:
		return l.grader
	case CellTypeFreeResponse:
		return l.freeResponse
	default:
		return l.success
	}
}

func readTemplate(overrideDir, name string) (string, error) {
	filename := name + ".md"

	if overrideDir != "" {
		data, err := os.ReadFile(filepath.Join(overrideDir, filename))
		if err == nil {
			return strings.TrimSpace(string(data)), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to read instruction template %s: %w", filename, err)
		}
	}

	data, err := templateFS.ReadFile("templates/" + filename)
	if err != nil {
		return "", fmt.Errorf("failed to read embedded instruction template %s: %w", filename, err)
	}
	return strings.TrimSpace(string(data)), nil
}
