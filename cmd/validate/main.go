// Command validate checks a data directory before the analytics service or a
// one-shot CLI build runs against it. It verifies file presence, column
// headers, parse rate, region alias coverage, environmental observation
// uniqueness, and previews the social-environmental join.
//
// Usage:
//
//	go run ./cmd/validate -data-dir data -granularity week
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/couchcryptid/climate-trends-analytics/internal/domain"
	"github.com/couchcryptid/climate-trends-analytics/internal/loader"
	"github.com/couchcryptid/climate-trends-analytics/internal/regions"
)

const (
	// minAliasCoverage is the fraction of rows that must resolve to a known
	// region. Stray spellings are tolerated; a misconfigured alias table is not.
	minAliasCoverage = 0.9

	// maxQuarantineDetail caps per-row parse errors listed under a failed phase.
	maxQuarantineDetail = 5
)

// options carries the validated data directory layout and derivation settings.
type options struct {
	dataDir          string
	socialGlob       string
	envGlob          string
	schemaFile       string
	aliasFile        string
	granularity      string
	minParseFraction float64
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	opts := options{}
	flag.StringVar(&opts.dataDir, "data-dir", "./data", "directory containing dataset CSV files")
	flag.StringVar(&opts.socialGlob, "social-glob", "social_*.csv", "glob for social trend files")
	flag.StringVar(&opts.envGlob, "env-glob", "env_*.csv", "glob for environmental indicator files")
	flag.StringVar(&opts.schemaFile, "schema", "", "column mapping YAML (empty for built-in defaults)")
	flag.StringVar(&opts.aliasFile, "alias-file", "", "region alias table YAML (empty for built-in table)")
	flag.StringVar(&opts.granularity, "granularity", "week", "time bucket granularity: day, week, or month")
	flag.Float64Var(&opts.minParseFraction, "min-parse-fraction", 0.5, "minimum fraction of rows that must parse")
	flag.Parse()

	if code := run(opts); code != 0 {
		os.Exit(code)
	}
}

func run(opts options) int {
	fmt.Println("=== Climate Trends Dataset Validation ===")
	fmt.Println()

	schema, err := loader.LoadSchema(opts.schemaFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load schema: %v\n", err)
		return 1
	}
	table, err := regions.LoadTable(opts.aliasFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load alias table: %v\n", err)
		return 1
	}
	granularity, err := domain.ParseGranularity(opts.granularity)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	resolver := regions.NewResolver(table)

	// ── Run validation phases ──
	presence, socialPaths, envPaths := checkPresence(opts)
	phases := []*phase{presence}
	if !presence.passed() {
		return report(phases, nil, nil)
	}

	headers := checkHeaders(schema, socialPaths, envPaths)
	phases = append(phases, headers)
	if !headers.passed() {
		return report(phases, nil, nil)
	}

	// The loader logs per-file progress; validation output stays phase
	// oriented, so only warnings surface. The parse rate threshold is checked
	// here rather than by the loader so a low rate fails a phase instead of
	// aborting the run.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ld := loader.New(schema, loader.Options{
		MinSuccessFraction: 0,
		Granularity:        granularity,
		ScorerAvailable:    true,
	}, logger)

	social, err := ld.LoadSocial(socialPaths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load social dataset: %v\n", err)
		return 1
	}
	env, err := ld.LoadEnv(envPaths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load environmental dataset: %v\n", err)
		return 1
	}

	phases = append(phases,
		checkParseRate(social, env, opts.minParseFraction),
		checkAliasCoverage(resolver, social, env),
		checkEnvUniqueness(resolver, env),
		checkJoinPreview(resolver, granularity, social, env),
	)
	return report(phases, social, env)
}

// report prints per-phase status, a dataset summary, and detailed errors for
// every failed phase. Returns the process exit code.
func report(phases []*phase, social *loader.SocialResult, env *loader.EnvResult) int {
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	if social != nil && env != nil {
		fmt.Println()
		fmt.Printf("Rows: %d/%d social loaded, %d/%d environmental loaded\n",
			social.Diagnostics.RowsLoaded, social.Diagnostics.RowsSeen,
			env.Diagnostics.RowsLoaded, env.Diagnostics.RowsSeen)
	}

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: File Presence ──
// Both dataset globs must match at least one file in the data directory.

func checkPresence(opts options) (*phase, []string, []string) {
	p := &phase{name: "Phase 1: File Presence"}

	socialPaths, envPaths, err := loader.Discover(opts.dataDir, opts.socialGlob, opts.envGlob)
	if err != nil {
		p.errorf("%v", err)
		return p, nil, nil
	}
	if len(socialPaths) == 0 {
		p.errorf("no social files match %q in %s", opts.socialGlob, opts.dataDir)
	}
	if len(envPaths) == 0 {
		p.errorf("no environmental files match %q in %s", opts.envGlob, opts.dataDir)
	}
	return p, socialPaths, envPaths
}

// ── Phase 2: Column Headers ──
// Every file must carry the columns the schema requires, under the primary
// name or a declared alternative.

func checkHeaders(schema loader.Schema, socialPaths, envPaths []string) *phase {
	p := &phase{name: "Phase 2: Column Headers"}

	socialRequired := []namedSpec{
		{"post_id", schema.Social.PostID},
		{"timestamp", schema.Social.Timestamp},
		{"region", schema.Social.Region},
		{"engagement", schema.Social.Engagement},
	}
	for _, path := range socialPaths {
		header, err := readHeader(path)
		if err != nil {
			p.errorf("%s: %v", filepath.Base(path), err)
			continue
		}
		requireColumns(p, path, header, socialRequired)
		if !headerHas(header, schema.Social.Sentiment) && !headerHas(header, schema.Social.Text) {
			p.errorf("%s: neither a sentiment nor a text column is present", filepath.Base(path))
		}
	}

	envRequired := []namedSpec{
		{"region", schema.Env.Region},
		{"period", schema.Env.Period},
		{"indicator", schema.Env.Indicator},
		{"value", schema.Env.Value},
	}
	for _, path := range envPaths {
		header, err := readHeader(path)
		if err != nil {
			p.errorf("%s: %v", filepath.Base(path), err)
			continue
		}
		requireColumns(p, path, header, envRequired)
	}
	return p
}

type namedSpec struct {
	field string
	spec  loader.FieldSpec
}

func requireColumns(p *phase, path string, header []string, required []namedSpec) {
	for _, req := range required {
		if !headerHas(header, req.spec) {
			p.errorf("%s: no column for %s (want %q)", filepath.Base(path), req.field, req.spec.Column)
		}
	}
}

func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header, err := csv.NewReader(f).Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	return header, nil
}

// headerHas reports whether any header cell matches the field's configured
// column or one of its alternatives, case-insensitively.
func headerHas(header []string, spec loader.FieldSpec) bool {
	names := append([]string{spec.Column}, spec.Alternatives...)
	for _, cell := range header {
		folded := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(cell, "\uFEFF")))
		for _, name := range names {
			if folded == strings.ToLower(name) {
				return true
			}
		}
	}
	return false
}

// ── Phase 3: Parse Rate ──
// Enough rows of each dataset must survive validation.

func checkParseRate(social *loader.SocialResult, env *loader.EnvResult, minFraction float64) *phase {
	p := &phase{name: "Phase 3: Parse Rate"}
	checkRate(p, "social", social.Diagnostics, minFraction)
	checkRate(p, "environmental", env.Diagnostics, minFraction)
	return p
}

func checkRate(p *phase, dataset string, diag domain.DatasetDiagnostics, minFraction float64) {
	if diag.RowsSeen == 0 {
		p.errorf("%s: no data rows", dataset)
		return
	}
	rate := float64(diag.RowsLoaded) / float64(diag.RowsSeen)
	if rate >= minFraction {
		return
	}

	p.errorf("%s: %d of %d rows parsed (%.0f%%), want at least %.0f%%",
		dataset, diag.RowsLoaded, diag.RowsSeen, rate*100, minFraction*100)
	for i, q := range diag.Quarantined {
		if i == maxQuarantineDetail {
			p.errorf("%s: ... and %d more", dataset, len(diag.Quarantined)-i)
			break
		}
		p.errorf("%s: %s", dataset, q.Error())
	}
}

// ── Phase 4: Region Alias Coverage ──
// Most rows must name a region the alias table can resolve.

func checkAliasCoverage(resolver *regions.Resolver, social *loader.SocialResult, env *loader.EnvResult) *phase {
	p := &phase{name: "Phase 4: Region Alias Coverage"}

	rowsBySpelling := make(map[string]int)
	for i := range social.Records {
		rowsBySpelling[social.Records[i].RawRegion]++
	}
	for i := range env.Records {
		rowsBySpelling[env.Records[i].RawRegion]++
	}
	if len(rowsBySpelling) == 0 {
		p.errorf("no rows to resolve")
		return p
	}

	var total, unknown int
	var unmatched []string
	for raw, n := range rowsBySpelling {
		total += n
		code, _ := resolver.Resolve(raw)
		if code == domain.RegionUnknown {
			unknown += n
			unmatched = append(unmatched, fmt.Sprintf("%q (%d rows)", raw, n))
		}
	}

	coverage := float64(total-unknown) / float64(total)
	if coverage < minAliasCoverage {
		p.errorf("%.1f%% of rows resolve to a known region, want at least %.0f%%",
			coverage*100, minAliasCoverage*100)
		sort.Strings(unmatched)
		for _, s := range unmatched {
			p.errorf("unmatched spelling %s", s)
		}
	} else if unknown > 0 {
		fmt.Printf("  Note: %d rows (%.1f%%) name unmatched regions, within tolerance\n",
			unknown, (1-coverage)*100)
	}
	return p
}

// ── Phase 5: Env Observation Uniqueness ──
// After alias resolution, each (region, bucket, indicator) may appear once.
// Duplicates here mean two source spellings collapsed onto the same region.

func checkEnvUniqueness(resolver *regions.Resolver, env *loader.EnvResult) *phase {
	p := &phase{name: "Phase 5: Env Observation Uniqueness"}

	type obsKey struct {
		region, bucket, indicator string
	}
	seen := make(map[obsKey]bool, len(env.Records))
	for i := range env.Records {
		rec := env.Records[i]
		code, _ := resolver.Resolve(rec.RawRegion)
		key := obsKey{region: code, bucket: rec.TimeBucket, indicator: rec.IndicatorName}
		if seen[key] {
			p.errorf("duplicate observation for (%s, %s, %s)", code, rec.TimeBucket, rec.IndicatorName)
			continue
		}
		seen[key] = true
	}
	return p
}

// ── Phase 6: Join Preview ──
// The datasets must share at least one (region, bucket) key, or every joined
// metric would be a coverage gap.

func checkJoinPreview(resolver *regions.Resolver, g domain.Granularity, social *loader.SocialResult, env *loader.EnvResult) *phase {
	p := &phase{name: "Phase 6: Join Preview"}

	type joinKey struct {
		region, bucket string
	}
	socialKeys := make(map[joinKey]bool)
	for i := range social.Records {
		rec := social.Records[i]
		code, _ := resolver.Resolve(rec.RawRegion)
		if code == domain.RegionUnknown {
			continue
		}
		socialKeys[joinKey{region: code, bucket: domain.BucketFor(rec.Timestamp, g).Key}] = true
	}

	envKeys := make(map[joinKey]bool)
	for i := range env.Records {
		rec := env.Records[i]
		code, _ := resolver.Resolve(rec.RawRegion)
		if code == domain.RegionUnknown {
			continue
		}
		envKeys[joinKey{region: code, bucket: rec.TimeBucket}] = true
	}

	shared := 0
	for key := range socialKeys {
		if envKeys[key] {
			shared++
		}
	}
	fmt.Printf("  Note: %d social (region, bucket) keys, %d environmental, %d shared\n",
		len(socialKeys), len(envKeys), shared)

	if shared == 0 {
		p.errorf("no (region, bucket) overlap between the datasets")
	}
	return p
}
