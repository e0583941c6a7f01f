package cmd

import (
	"fmt"
	"log/slog"

	"leakctl/internal/lifecycle"

	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create the ILM policy, index template and first backing index",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, client, err := connect()
		if err != nil {
			return err
		}

		res, err := lifecycle.New(client, cfg, slog.Default()).Setup(cmd.Context())
		if err != nil {
			return fmt.Errorf("setup: %w", err)
		}

		fmt.Println(successStyle.Render(fmt.Sprintf("✓ policy %s (rollover %s / %s, delete after %s)",
			res.Policy, cfg.Lifecycle.RolloverMaxSize, cfg.Lifecycle.RolloverMaxAge, cfg.Lifecycle.DeleteMinAge)))
		fmt.Println(successStyle.Render(fmt.Sprintf("✓ template %s for %s", res.Template, cfg.IndexPattern())))
		if res.Bootstrapped {
			fmt.Println(successStyle.Render(fmt.Sprintf("✓ index %s created with write alias %s", res.FirstIndex, cfg.Alias)))
		} else {
			fmt.Println(dimStyle.Render(fmt.Sprintf("- alias %s already exists, left unchanged", cfg.Alias)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
