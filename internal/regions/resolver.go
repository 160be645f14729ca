package regions

import (
	"sort"
	"strings"
	"time"
	"unicode"

	gocache "github.com/patrickmn/go-cache"

	"github.com/couchcryptid/climate-trends-analytics/internal/domain"
)

// Resolver maps raw region strings to canonical region codes. Matching runs in
// three stages: exact code, exact alias, then fuzzy token containment. A raw
// string matching several regions resolves to the alphabetically-first code
// with an ambiguity warning, so results are reproducible across runs.
//
// Raw social data repeats the same region spellings heavily, so resolutions
// are memoized; the fuzzy stage is the only non-constant one.
type Resolver struct {
	table   *Table
	codes   map[string]string   // folded code -> canonical code
	aliases map[string][]string // folded alias or name -> sorted canonical codes
	entries []fuzzyEntry
	cache   *gocache.Cache
}

// fuzzyEntry is one folded alias form scanned during the fuzzy stage.
type fuzzyEntry struct {
	folded string
	code   string
}

// resolution is the memoized result for one raw string.
type resolution struct {
	code string
	amb  *domain.AmbiguityWarning
}

// NewResolver indexes the table for lookup.
func NewResolver(t *Table) *Resolver {
	r := &Resolver{
		table:   t,
		codes:   make(map[string]string, len(t.Regions)),
		aliases: make(map[string][]string),
		cache:   gocache.New(time.Hour, 2*time.Hour),
	}

	for _, region := range t.Regions {
		r.codes[fold(region.Code)] = region.Code

		forms := append([]string{region.Name}, region.Aliases...)
		forms = append(forms, region.Code)
		for _, form := range forms {
			folded := fold(form)
			if folded == "" {
				continue
			}
			if folded != fold(region.Code) {
				r.aliases[folded] = appendUnique(r.aliases[folded], region.Code)
			}
			r.entries = append(r.entries, fuzzyEntry{folded: folded, code: region.Code})
		}
	}

	for form := range r.aliases {
		sort.Strings(r.aliases[form])
	}
	sort.Slice(r.entries, func(i, j int) bool {
		if r.entries[i].folded != r.entries[j].folded {
			return r.entries[i].folded < r.entries[j].folded
		}
		return r.entries[i].code < r.entries[j].code
	})

	return r
}

// Version reports the alias table version in use.
func (r *Resolver) Version() int {
	return r.table.Version
}

// Regions returns a copy of the table's regions, sorted by code.
func (r *Resolver) Regions() []domain.Region {
	out := make([]domain.Region, len(r.table.Regions))
	copy(out, r.table.Regions)
	return out
}

// Resolve maps a raw region string to a canonical code. Returns
// [domain.RegionUnknown] when nothing matches. The warning is non-nil only
// when the string matched more than one region.
func (r *Resolver) Resolve(raw string) (string, *domain.AmbiguityWarning) {
	key := strings.TrimSpace(raw)
	if key == "" {
		return domain.RegionUnknown, nil
	}
	if v, ok := r.cache.Get(key); ok {
		res := v.(resolution)
		return res.code, res.amb
	}

	code, amb := r.resolve(fold(key), key)
	r.cache.Set(key, resolution{code: code, amb: amb}, gocache.DefaultExpiration)
	return code, amb
}

func (r *Resolver) resolve(folded, raw string) (string, *domain.AmbiguityWarning) {
	if folded == "" {
		return domain.RegionUnknown, nil
	}

	if code, ok := r.codes[folded]; ok {
		return code, nil
	}

	if codes := r.aliases[folded]; len(codes) > 0 {
		return pickFirst(raw, codes)
	}

	padded := " " + folded + " "
	matched := make(map[string]bool)
	var candidates []string
	for _, e := range r.entries {
		if matched[e.code] {
			continue
		}
		entryPadded := " " + e.folded + " "
		if strings.Contains(padded, entryPadded) || strings.Contains(entryPadded, padded) {
			matched[e.code] = true
			candidates = append(candidates, e.code)
		}
	}
	if len(candidates) == 0 {
		return domain.RegionUnknown, nil
	}
	sort.Strings(candidates)
	return pickFirst(raw, candidates)
}

// pickFirst takes the alphabetically-first code from a sorted candidate list,
// attaching a warning when the list held more than one.
func pickFirst(raw string, sorted []string) (string, *domain.AmbiguityWarning) {
	if len(sorted) == 1 {
		return sorted[0], nil
	}
	return sorted[0], &domain.AmbiguityWarning{
		RawRegion:  raw,
		Candidates: sorted,
		Chosen:     sorted[0],
	}
}

// fold normalizes a region string for matching: lowercase, punctuation
// replaced by spaces, runs of whitespace collapsed.
func fold(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return strings.TrimSpace(b.String())
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
