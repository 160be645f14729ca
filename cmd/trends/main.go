// Package main is the entry point for the trends CLI: one-shot loads,
// filtered reads, and archive exports of the climate activism datasets.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/climate-trends-analytics/internal/config"
	"github.com/couchcryptid/climate-trends-analytics/internal/domain"
	"github.com/couchcryptid/climate-trends-analytics/internal/loader"
	"github.com/couchcryptid/climate-trends-analytics/internal/observability"
	"github.com/couchcryptid/climate-trends-analytics/internal/pipeline"
	"github.com/couchcryptid/climate-trends-analytics/internal/query"
	"github.com/couchcryptid/climate-trends-analytics/internal/regions"
	"github.com/couchcryptid/climate-trends-analytics/internal/scorer"
)

// version is set at build time via ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "trends",
	Short: "Correlate climate activism trends with environmental indicators",
	Long: `trends loads social-media activism posts and environmental indicator
datasets, joins them on (region, time bucket), and reports aggregate
metrics with activism/environment correlations.

Every subcommand runs a one-shot load of the configured data directory.
Run the analytics daemon instead for the HTTP API, file watching, and
streaming ingest.`,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: search for .climate-trends.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "dataset directory override")
	rootCmd.PersistentFlags().String("granularity", "", "time bucket granularity override (day, week, month)")
	rootCmd.PersistentFlags().Bool("verbose", false, "log build details to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads configuration and applies the persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		cfg.Data.Dir = dir
	}
	if g, _ := cmd.Flags().GetString("granularity"); g != "" {
		parsed, err := domain.ParseGranularity(g)
		if err != nil {
			return nil, err
		}
		cfg.Normalize.Granularity = parsed
	}
	return cfg, nil
}

// cliLogger logs to stderr so tables and JSON stay clean on stdout.
func cliLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// oneShot loads config, builds a snapshot from the datasets, and returns a
// query engine serving it.
func oneShot(cmd *cobra.Command) (*config.Config, *domain.Snapshot, *query.Engine, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := cliLogger(cmd)
	metrics := observability.NewMetrics()

	table, err := regions.LoadTable(cfg.Normalize.AliasFile)
	if err != nil {
		return nil, nil, nil, err
	}
	schema, err := loader.LoadSchema(cfg.Schema.File)
	if err != nil {
		return nil, nil, nil, err
	}
	sc, err := scorer.New(cfg.Scorer, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	builder := pipeline.NewBuilder(pipeline.BuildOptions{
		DataDir:            cfg.Data.Dir,
		SocialGlob:         cfg.Data.SocialGlob,
		EnvGlob:            cfg.Data.EnvGlob,
		Granularity:        cfg.Normalize.Granularity,
		Weights:            cfg.Weights(),
		MinSuccessFraction: cfg.Load.MinSuccessFraction,
	}, schema, regions.NewResolver(table), sc, logger, metrics)

	snap, err := builder.Build(cmd.Context(), nil)
	if err != nil {
		return nil, nil, nil, err
	}

	engine := query.New(cfg.Correlation.MinSampleSize, 0, logger, metrics)
	engine.Swap(snap)
	return cfg, snap, engine, nil
}

// addFilterFlags registers the filter and output flags shared by the read
// subcommands.
func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("region", "", "filter by canonical region code")
	cmd.Flags().StringSlice("theme", nil, "filter by theme, repeatable")
	cmd.Flags().String("indicator", "", "filter by environmental indicator name")
	cmd.Flags().String("from", "", "include buckets starting at or after this time (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().String("to", "", "include buckets starting at or before this time")
	cmd.Flags().Bool("include-unknown", false, "include unknown-region records")
	cmd.Flags().Bool("json", false, "output as JSON")
}

func filterFromFlags(cmd *cobra.Command) (query.Filter, error) {
	var f query.Filter
	f.Region, _ = cmd.Flags().GetString("region")
	f.Themes, _ = cmd.Flags().GetStringSlice("theme")
	f.Indicator, _ = cmd.Flags().GetString("indicator")
	f.IncludeUnknown, _ = cmd.Flags().GetBool("include-unknown")
	if v, _ := cmd.Flags().GetString("from"); v != "" {
		t, err := domain.ParseTimestamp(v)
		if err != nil {
			return query.Filter{}, fmt.Errorf("--from: %w", err)
		}
		f.From = t
	}
	if v, _ := cmd.Flags().GetString("to"); v != "" {
		t, err := domain.ParseTimestamp(v)
		if err != nil {
			return query.Filter{}, fmt.Errorf("--to: %w", err)
		}
		f.To = t
	}
	return f, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
