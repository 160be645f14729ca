package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/climate-trends-analytics/internal/correlate"
	"github.com/couchcryptid/climate-trends-analytics/internal/query"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Report joined metrics and correlations for a filter",
	Long: `Query loads the datasets, joins them, and prints the joined metric rows
matching the filter together with one activism/environment correlation per
indicator. An indicator with too few joined rows reports insufficient data
rather than a coefficient.`,
	RunE: runQuery,
}

func init() {
	addFilterFlags(queryCmd)
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	f, err := filterFromFlags(cmd)
	if err != nil {
		return err
	}
	_, _, engine, err := oneShot(cmd)
	if err != nil {
		return err
	}
	res, err := engine.Query(f)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return printJSON(res)
	}
	printQueryTable(res)
	return nil
}

func printQueryTable(res *query.Result) {
	fmt.Fprintf(os.Stdout, "%-12s  %-10s  %-18s  %-22s  %5s  %10s  %9s  %10s  %10s\n",
		"Region", "Bucket", "Theme", "Indicator", "Posts", "Engagement", "Sentiment", "Score", "EnvValue")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 122))

	for _, m := range res.Metrics {
		fmt.Fprintf(os.Stdout, "%-12s  %-10s  %-18s  %-22s  %5d  %10d  %9.3f  %10.2f  %10.2f\n",
			m.RegionCode, m.TimeBucket, truncate(m.Theme, 18), truncate(m.Indicator, 22),
			m.SampleSize, m.TotalEngagement, m.MeanSentiment, m.ActivismScore, m.EnvValue)
	}
	fmt.Fprintf(os.Stdout, "\n%d joined rows (score: %s)\n", len(res.Metrics), res.ScoreFormula)

	if len(res.Correlations) > 0 {
		fmt.Fprintln(os.Stdout, "\nCorrelations:")
		for _, s := range res.Correlations {
			fmt.Fprintf(os.Stdout, "  %s\n", formatStat(s))
		}
	}
	if len(res.Gaps) > 0 {
		fmt.Fprintf(os.Stdout, "\n%d coverage gaps (see trends gaps)\n", len(res.Gaps))
	}
}

func formatStat(s correlate.Stat) string {
	if s.Status != correlate.StatusOK {
		return fmt.Sprintf("%-22s  %s (%s, %d samples)", s.Indicator, s.Status, s.Reason, s.SampleSize)
	}
	return fmt.Sprintf("%-22s  r=%+.4f over %d samples", s.Indicator, s.Coefficient, s.SampleSize)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
