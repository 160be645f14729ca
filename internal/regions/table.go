// Package regions resolves free-form region strings to canonical region codes
// through a versioned alias table.
package regions

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/couchcryptid/climate-trends-analytics/internal/domain"
)

//go:embed regions.yaml
var defaultTableYAML []byte

// Table is the versioned region alias table. The version field exists so a
// changed table is visible in diagnostics and archives; resolution behavior
// for a given version never changes.
type Table struct {
	Version int             `yaml:"version" json:"version"`
	Regions []domain.Region `yaml:"regions" json:"regions"`
}

// DefaultTable returns the embedded alias table.
func DefaultTable() (*Table, error) {
	return parseTable(defaultTableYAML, "embedded")
}

// LoadTable reads an alias table from a YAML file, or the embedded default
// when path is empty.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return DefaultTable()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read alias table: %w", err)
	}
	return parseTable(data, path)
}

func parseTable(data []byte, source string) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse alias table %s: %w", source, err)
	}
	if err := t.validate(); err != nil {
		return nil, fmt.Errorf("alias table %s: %w", source, err)
	}
	sort.Slice(t.Regions, func(i, j int) bool { return t.Regions[i].Code < t.Regions[j].Code })
	return &t, nil
}

func (t *Table) validate() error {
	if t.Version < 1 {
		return fmt.Errorf("version must be >= 1, got %d", t.Version)
	}
	if len(t.Regions) == 0 {
		return fmt.Errorf("no regions defined")
	}
	seen := make(map[string]string, len(t.Regions))
	for _, r := range t.Regions {
		if strings.TrimSpace(r.Code) == "" {
			return fmt.Errorf("region with empty code")
		}
		folded := fold(r.Code)
		if folded == domain.RegionUnknown {
			return fmt.Errorf("region code %q collides with the unknown sentinel", r.Code)
		}
		if prev, ok := seen[folded]; ok {
			return fmt.Errorf("region codes %q and %q collide", prev, r.Code)
		}
		seen[folded] = r.Code
	}
	return nil
}
