package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the KPI block for a filter",
	RunE:  runSummary,
}

var themesCmd = &cobra.Command{
	Use:   "themes",
	Short: "Rank themes by post volume",
	RunE:  runThemes,
}

var timeseriesCmd = &cobra.Command{
	Use:   "timeseries",
	Short: "Print per-bucket post activity",
	RunE:  runTimeSeries,
}

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "Print per-region post activity",
	RunE:  runRegions,
}

var gapsCmd = &cobra.Command{
	Use:   "gaps",
	Short: "List (region, bucket) keys covered by only one dataset",
	RunE:  runGaps,
}

func init() {
	for _, cmd := range []*cobra.Command{summaryCmd, themesCmd, timeseriesCmd, regionsCmd, gapsCmd} {
		addFilterFlags(cmd)
		rootCmd.AddCommand(cmd)
	}
	themesCmd.Flags().Int("limit", 10, "number of themes to list")
}

func runSummary(cmd *cobra.Command, args []string) error {
	f, err := filterFromFlags(cmd)
	if err != nil {
		return err
	}
	_, _, engine, err := oneShot(cmd)
	if err != nil {
		return err
	}
	sum, err := engine.Summary(f)
	if err != nil {
		return err
	}
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return printJSON(sum)
	}

	fmt.Printf("Posts:            %d\n", sum.Posts)
	fmt.Printf("Total engagement: %d\n", sum.TotalEngagement)
	fmt.Printf("Mean sentiment:   %.3f\n", sum.MeanSentiment)
	if sum.TopTheme != "" {
		fmt.Printf("Top theme:        %s\n", sum.TopTheme)
	}
	fmt.Printf("Regions:          %d\n", sum.Regions)
	if sum.FirstBucket != "" {
		fmt.Printf("Buckets:          %s .. %s\n", sum.FirstBucket, sum.LastBucket)
	}
	fmt.Printf("Joined rows:      %d\n", sum.JoinedRows)
	fmt.Printf("Coverage gaps:    %d\n", sum.CoverageGaps)
	return nil
}

func runThemes(cmd *cobra.Command, args []string) error {
	f, err := filterFromFlags(cmd)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	_, _, engine, err := oneShot(cmd)
	if err != nil {
		return err
	}
	themes, err := engine.TopThemes(f, limit)
	if err != nil {
		return err
	}
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return printJSON(themes)
	}

	fmt.Fprintf(os.Stdout, "%-24s  %6s  %10s  %9s\n", "Theme", "Posts", "Engagement", "Sentiment")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 55))
	for _, t := range themes {
		fmt.Fprintf(os.Stdout, "%-24s  %6d  %10d  %9.3f\n",
			truncate(t.Theme, 24), t.Posts, t.TotalEngagement, t.MeanSentiment)
	}
	return nil
}

func runTimeSeries(cmd *cobra.Command, args []string) error {
	f, err := filterFromFlags(cmd)
	if err != nil {
		return err
	}
	_, _, engine, err := oneShot(cmd)
	if err != nil {
		return err
	}
	series, err := engine.TimeSeries(f)
	if err != nil {
		return err
	}
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return printJSON(series)
	}

	fmt.Fprintf(os.Stdout, "%-10s  %6s  %10s  %9s\n", "Bucket", "Posts", "Engagement", "Sentiment")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 41))
	for _, p := range series {
		fmt.Fprintf(os.Stdout, "%-10s  %6d  %10d  %9.3f\n",
			p.TimeBucket, p.Posts, p.TotalEngagement, p.MeanSentiment)
	}
	return nil
}

func runRegions(cmd *cobra.Command, args []string) error {
	f, err := filterFromFlags(cmd)
	if err != nil {
		return err
	}
	_, _, engine, err := oneShot(cmd)
	if err != nil {
		return err
	}
	activity, err := engine.RegionActivity(f)
	if err != nil {
		return err
	}
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return printJSON(activity)
	}

	fmt.Fprintf(os.Stdout, "%-12s  %-20s  %6s  %10s  %9s\n", "Region", "Name", "Posts", "Engagement", "Sentiment")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 65))
	for _, a := range activity {
		fmt.Fprintf(os.Stdout, "%-12s  %-20s  %6d  %10d  %9.3f\n",
			a.RegionCode, truncate(a.Name, 20), a.Posts, a.TotalEngagement, a.MeanSentiment)
	}
	return nil
}

func runGaps(cmd *cobra.Command, args []string) error {
	f, err := filterFromFlags(cmd)
	if err != nil {
		return err
	}
	_, _, engine, err := oneShot(cmd)
	if err != nil {
		return err
	}
	gaps, err := engine.Gaps(f)
	if err != nil {
		return err
	}
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return printJSON(gaps)
	}

	fmt.Fprintf(os.Stdout, "%-12s  %-10s  %-14s  %7s\n", "Region", "Bucket", "Missing", "Present")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 50))
	for _, g := range gaps {
		fmt.Fprintf(os.Stdout, "%-12s  %-10s  %-14s  %7d\n",
			g.RegionCode, g.TimeBucket, g.Missing, g.PresentCount)
	}
	fmt.Fprintf(os.Stdout, "\n%d gaps\n", len(gaps))
	return nil
}
