package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/climate-trends-analytics/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Build a snapshot and archive it to SQLite",
	Long: `Export runs one load-and-join pass and writes the snapshot, its records,
joined metrics, coverage gaps, and diagnostics to the SQLite archive.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().String("out", "", "archive path (default: archive.path from config)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, snap, _, err := oneShot(cmd)
	if err != nil {
		return err
	}

	path, _ := cmd.Flags().GetString("out")
	if path == "" {
		path = cfg.Archive.Path
	}

	s, err := store.Open(path, cliLogger(cmd))
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Save(cmd.Context(), snap); err != nil {
		return err
	}

	fmt.Printf("archived snapshot %s to %s (%d metrics, %d social, %d env)\n",
		snap.ID, path, len(snap.Metrics), len(snap.Social), len(snap.Env))
	return nil
}
