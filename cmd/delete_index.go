package cmd

import (
	"fmt"
	"log/slog"

	"leakctl/internal/lifecycle"

	"github.com/spf13/cobra"
)

var deleteIndexCmd = &cobra.Command{
	Use:   "delete-index [name]",
	Short: "Delete one index (default: the first backing index)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, client, err := connect()
		if err != nil {
			return err
		}

		var name string
		if len(args) == 1 {
			name = args[0]
		}
		name, ack, err := lifecycle.New(client, cfg, slog.Default()).DeleteIndex(cmd.Context(), name)
		if err != nil {
			return err
		}
		fmt.Printf("Index %s deleted: acknowledged=%t\n", name, ack)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteIndexCmd)
}
