package cmd

import (
	"fmt"
	"os"

	"leakctl/internal/status"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var flagRaw bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report lifecycle state, disk usage and per-file counts of the backing indices",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, client, err := connect()
		if err != nil {
			return err
		}

		report, err := status.Build(cmd.Context(), client, status.Options{
			Alias:   cfg.Alias,
			Pattern: cfg.IndexPattern(),
		})
		if err != nil {
			return fmt.Errorf("build status report: %w", err)
		}

		md := statusMarkdown(report)
		if flagRaw || !isatty.IsTerminal(os.Stdout.Fd()) {
			fmt.Print(md)
			return nil
		}

		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
		if err != nil {
			fmt.Print(md)
			return nil
		}
		out, err := r.Render(md)
		if err != nil {
			fmt.Print(md)
			return nil
		}
		fmt.Print(out)
		return nil
	},
}

func statusMarkdown(r *status.Report) string {
	return fmt.Sprintf("# Status of `%s`\n\n_Generated %s UTC_\n\n%s",
		r.Alias, r.GeneratedAt.Format("2006-01-02 15:04:05"), r.Markdown())
}

func init() {
	statusCmd.Flags().BoolVar(&flagRaw, "raw", false, "print Markdown without terminal rendering")
	rootCmd.AddCommand(statusCmd)
}
