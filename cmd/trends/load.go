package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/climate-trends-analytics/internal/domain"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load the datasets once and report data quality",
	Long: `Load runs one load-and-join pass over the configured datasets and prints
a data-quality report: row counts, quarantined rows, region resolution
warnings, and join coverage.`,
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().Bool("json", false, "output the full diagnostics as JSON")
	loadCmd.Flags().Int("show-quarantined", 5, "number of quarantined rows to list per dataset")
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	_, snap, _, err := oneShot(cmd)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return printJSON(struct {
			SnapshotID    string             `json:"snapshot_id"`
			Granularity   domain.Granularity `json:"granularity"`
			JoinedMetrics int                `json:"joined_metrics"`
			CoverageGaps  int                `json:"coverage_gaps"`
			Diagnostics   domain.Diagnostics `json:"diagnostics"`
		}{snap.ID, snap.Granularity, len(snap.Metrics), len(snap.Gaps), snap.Diagnostics})
	}

	showQuarantined, _ := cmd.Flags().GetInt("show-quarantined")
	diag := snap.Diagnostics

	fmt.Printf("Snapshot %s (granularity: %s)\n\n", snap.ID, snap.Granularity)
	printDataset("Social posts", diag.Social, showQuarantined)
	printDataset("Environmental", diag.Env, showQuarantined)

	if len(diag.Ambiguities) > 0 {
		fmt.Printf("Ambiguous regions: %d\n", len(diag.Ambiguities))
		for _, a := range diag.Ambiguities {
			fmt.Printf("  %q matched %v, chose %s\n", a.RawRegion, a.Candidates, a.Chosen)
		}
	}
	if diag.UnknownRegions > 0 {
		fmt.Printf("Unknown regions: %d records\n", diag.UnknownRegions)
	}

	fmt.Printf("\nJoined metrics: %d\n", len(snap.Metrics))
	fmt.Printf("Coverage gaps:  %d\n", len(snap.Gaps))
	return nil
}

func printDataset(name string, d domain.DatasetDiagnostics, showQuarantined int) {
	fmt.Printf("%s: %d rows seen, %d loaded, %d quarantined\n",
		name, d.RowsSeen, d.RowsLoaded, len(d.Quarantined))
	for i, q := range d.Quarantined {
		if i >= showQuarantined {
			fmt.Fprintf(os.Stdout, "  ... and %d more\n", len(d.Quarantined)-showQuarantined)
			break
		}
		fmt.Printf("  %s\n", q.Error())
	}
}
