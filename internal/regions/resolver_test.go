package regions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/climate-trends-analytics/internal/domain"
)

func testTable(t *testing.T) *Table {
	t.Helper()
	table := &Table{
		Version: 1,
		Regions: []domain.Region{
			{Code: "CA", Name: "California", Lat: 36.78, Lon: -119.42, Aliases: []string{"calif.", "ca, usa", "golden state"}},
			{Code: "LON", Name: "London", Lat: 51.51, Lon: -0.13, Aliases: []string{"greater london"}},
			{Code: "NY", Name: "New York", Lat: 40.71, Lon: -74.01, Aliases: []string{"nyc", "new york city", "ny, usa"}},
		},
	}
	require.NoError(t, table.validate())
	return table
}

func TestResolverExactAndAlias(t *testing.T) {
	r := NewResolver(testTable(t))

	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{"exact code", "CA", "CA"},
		{"exact code lowercased", "ca", "CA"},
		{"alias with punctuation", "calif.", "CA"},
		{"alias with comma", "CA, USA", "CA"},
		{"display name", "California", "CA"},
		{"alias surrounded by whitespace", "  NYC  ", "NY"},
		{"unknown string", "atlantis", domain.RegionUnknown},
		{"empty string", "", domain.RegionUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, amb := r.Resolve(tt.raw)
			assert.Equal(t, tt.expected, code)
			assert.Nil(t, amb)
		})
	}
}

func TestResolverFuzzy(t *testing.T) {
	r := NewResolver(testTable(t))

	t.Run("alias embedded in longer text", func(t *testing.T) {
		code, amb := r.Resolve("posted from new york city today")
		assert.Equal(t, "NY", code)
		assert.Nil(t, amb)
	})

	t.Run("input embedded in alias", func(t *testing.T) {
		code, amb := r.Resolve("golden")
		assert.Equal(t, "CA", code)
		assert.Nil(t, amb)
	})

	t.Run("partial word does not match", func(t *testing.T) {
		code, _ := r.Resolve("californication")
		assert.Equal(t, domain.RegionUnknown, code)
	})
}

func TestResolverAmbiguity(t *testing.T) {
	r := NewResolver(testTable(t))

	// "usa" appears in aliases of both CA and NY; the alphabetically-first
	// code must win, with a warning naming every candidate.
	code, amb := r.Resolve("usa")
	assert.Equal(t, "CA", code)
	require.NotNil(t, amb)
	assert.Equal(t, "usa", amb.RawRegion)
	assert.Equal(t, []string{"CA", "NY"}, amb.Candidates)
	assert.Equal(t, "CA", amb.Chosen)
}

func TestResolverDeterministic(t *testing.T) {
	r := NewResolver(testTable(t))

	firstCode, firstAmb := r.Resolve("usa")
	for range 5 {
		code, amb := r.Resolve("usa")
		assert.Equal(t, firstCode, code)
		assert.Equal(t, firstAmb, amb)
	}

	// A fresh resolver over the same table must agree with the memoized one.
	again := NewResolver(testTable(t))
	code, _ := again.Resolve("usa")
	assert.Equal(t, firstCode, code)
}

func TestResolverAliasMergesWithCanonical(t *testing.T) {
	r := NewResolver(testTable(t))

	aliased, _ := r.Resolve("calif.")
	canonical, _ := r.Resolve("CA")
	assert.Equal(t, canonical, aliased, "alias and canonical spellings must land in the same region")
}

func TestFold(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercase passthrough", "delhi", "delhi"},
		{"punctuation to spaces", "CA, USA", "ca usa"},
		{"trailing period", "calif.", "calif"},
		{"collapsed whitespace", "  new   york  ", "new york"},
		{"unicode letters kept", "São Paulo", "são paulo"},
		{"only punctuation", "...", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, fold(tt.input))
		})
	}
}

func TestDefaultTable(t *testing.T) {
	table, err := DefaultTable()
	require.NoError(t, err)
	assert.Equal(t, 1, table.Version)
	assert.Len(t, table.Regions, 5)

	r := NewResolver(table)
	code, amb := r.Resolve("new delhi")
	assert.Equal(t, "AS-IN-DEL", code)
	assert.Nil(t, amb)
}

func TestLoadTable(t *testing.T) {
	t.Run("from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "regions.yaml")
		content := "version: 2\nregions:\n  - code: BER\n    name: Berlin\n    lat: 52.52\n    lon: 13.4\n    aliases: [berlin]\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		table, err := LoadTable(path)
		require.NoError(t, err)
		assert.Equal(t, 2, table.Version)
		require.Len(t, table.Regions, 1)
		assert.Equal(t, "BER", table.Regions[0].Code)
	})

	t.Run("empty path falls back to embedded", func(t *testing.T) {
		table, err := LoadTable("")
		require.NoError(t, err)
		assert.Len(t, table.Regions, 5)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadTable(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
}

func TestTableValidate(t *testing.T) {
	tests := []struct {
		name  string
		table Table
	}{
		{"zero version", Table{Version: 0, Regions: []domain.Region{{Code: "CA"}}}},
		{"no regions", Table{Version: 1}},
		{"empty code", Table{Version: 1, Regions: []domain.Region{{Code: " "}}}},
		{"colliding codes", Table{Version: 1, Regions: []domain.Region{{Code: "CA"}, {Code: "ca"}}}},
		{"unknown sentinel as code", Table{Version: 1, Regions: []domain.Region{{Code: "Unknown"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.table.validate())
		})
	}
}
