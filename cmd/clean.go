package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"leakctl/internal/lifecycle"

	"github.com/spf13/cobra"
)

var flagYes bool

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete the ILM policy, index template and every backing index",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, client, err := connect()
		if err != nil {
			return err
		}

		if !flagYes {
			prompt := fmt.Sprintf("This deletes policy %s, template %s and all indices matching %s.\nType 'yes' to continue: ",
				cfg.Policy, cfg.Template, cfg.IndexPattern())
			ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), prompt)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Aborted.")
				return nil
			}
		}

		steps := lifecycle.New(client, cfg, slog.Default()).Clean(cmd.Context())
		for _, s := range steps {
			if s.Err != nil {
				fmt.Println(warnStyle.Render("⚠ " + s.String()))
				continue
			}
			fmt.Println(successStyle.Render("✓ " + s.String()))
		}
		if n := lifecycle.Failed(steps); n > 0 {
			fmt.Println(dimStyle.Render(fmt.Sprintf("%d of %d steps reported warnings", n, len(steps))))
		}
		return nil
	},
}

// confirm asks for a literal "yes".
func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	return strings.TrimSpace(line) == "yes", nil
}

func init() {
	cleanCmd.Flags().BoolVarP(&flagYes, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(cleanCmd)
}
