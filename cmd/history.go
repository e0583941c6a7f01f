package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"leakctl/internal/store"

	"github.com/spf13/cobra"
)

var (
	flagLimit int
	flagFiles bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent ingest runs from the local ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if _, err := os.Stat(cfg.Ledger); os.IsNotExist(err) {
			fmt.Printf("No ingest runs recorded yet (%s does not exist).\n", cfg.Ledger)
			return nil
		}

		st, err := store.Open(cfg.Ledger)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer st.Close()

		if flagFiles {
			totals, err := st.FileTotals(cmd.Context())
			if err != nil {
				return err
			}
			printFileTotals(cmd.OutOrStdout(), totals)
			return nil
		}

		runs, err := st.Recent(cmd.Context(), flagLimit)
		if err != nil {
			return err
		}
		printRuns(cmd.OutOrStdout(), runs)
		return nil
	},
}

func printRuns(w io.Writer, runs []store.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No ingest runs recorded yet.")
		return
	}
	fmt.Fprintf(w, "%-19s  %-7s  %-24s  %-12s  %12s  %8s  %s\n",
		"STARTED (UTC)", "STATUS", "FILE", "ALIAS", "DOCUMENTS", "BATCHES", "DURATION")
	for _, r := range runs {
		dur := "-"
		if d := r.Duration(); d > 0 {
			dur = d.Round(time.Millisecond).String()
		}
		fmt.Fprintf(w, "%-19s  %-7s  %-24s  %-12s  %12d  %8d  %s\n",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.Status, r.FileName, r.Alias, r.Documents, r.Batches, dur)
		if r.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", r.Error)
		}
	}
}

func printFileTotals(w io.Writer, totals []store.FileTotal) {
	if len(totals) == 0 {
		fmt.Fprintln(w, "No completed ingest runs recorded yet.")
		return
	}
	fmt.Fprintf(w, "%-32s  %5s  %12s  %s\n", "FILE", "RUNS", "DOCUMENTS", "LAST RUN (UTC)")
	for _, t := range totals {
		fmt.Fprintf(w, "%-32s  %5d  %12d  %s\n", t.FileName, t.Runs, t.Documents, t.LastRun.Format("2006-01-02 15:04:05"))
	}
}

func init() {
	historyCmd.Flags().IntVarP(&flagLimit, "limit", "n", 20, "number of runs to show")
	historyCmd.Flags().BoolVar(&flagFiles, "files", false, "show per-file totals of completed runs instead")
	rootCmd.AddCommand(historyCmd)
}
