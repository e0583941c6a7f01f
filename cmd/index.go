package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"leakctl/internal/walker"

	"github.com/spf13/cobra"
)

var (
	flagDir    string
	flagSelect string
	flagAll    bool
)

var indexCmd = &cobra.Command{
	Use:   "index [file...]",
	Short: "Index corpus files into the rollover alias",
	Long: `Index corpus files into the rollover alias, one document per non-blank line.

With file arguments, those files are indexed in order. Otherwise the .txt
files in --dir are listed and the selection comes from --all, --select or
an interactive prompt. Files are processed one at a time and the run stops
at the first failure; documents already flushed stay indexed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths := args
		if len(paths) == 0 {
			picked, err := chooseFiles(cmd.InOrStdin(), cmd.OutOrStdout())
			switch {
			case errors.Is(err, walker.ErrNoFiles):
				fmt.Printf("No %s files found in %s.\n", walker.DefaultExt, flagDir)
				return nil
			case errors.Is(err, walker.ErrNoSelection):
				fmt.Println("No valid selection made.")
				return nil
			case err != nil:
				return err
			}
			paths = picked
		}

		cfg, client, err := connect()
		if err != nil {
			return err
		}
		st := openLedger(cfg)
		if st != nil {
			defer st.Close()
		}

		p := newPipeline(cfg, client, st, progressFor(os.Stdout))

		start := time.Now()
		var docs int
		for _, path := range paths {
			stats, err := p.IndexFile(cmd.Context(), path)
			if err != nil {
				if stats != nil && stats.Documents > 0 {
					fmt.Fprintln(os.Stderr, warnStyle.Render(fmt.Sprintf(
						"%d documents from %s were indexed before the failure and remain in %q.",
						stats.Documents, stats.FileName, cfg.Alias)))
				}
				return err
			}
			docs += stats.Documents
			abs, _ := filepath.Abs(path)
			fmt.Println(successStyle.Render(fmt.Sprintf("'%s' file has been uploaded to the '%s' alias.", abs, cfg.Alias)))
		}

		if len(paths) > 1 {
			fmt.Println(dimStyle.Render(fmt.Sprintf("%d files, %d documents in %s",
				len(paths), docs, time.Since(start).Round(time.Millisecond))))
		}
		return nil
	},
}

// chooseFiles lists the corpus directory and resolves the selection from
// flags or, failing those, from a numbered prompt on in.
func chooseFiles(in io.Reader, out io.Writer) ([]string, error) {
	files, err := walker.List(flagDir, walker.DefaultExt)
	if err != nil {
		return nil, err
	}
	if flagAll {
		all := make([]int, len(files))
		for i := range files {
			all[i] = i
		}
		return walker.Pick(files, all), nil
	}

	input := flagSelect
	if input == "" {
		fmt.Fprintln(out, "Available files:")
		for i, f := range files {
			fmt.Fprintf(out, "[%d] %s\n", i+1, f.Name)
		}
		fmt.Fprint(out, "Enter the index numbers separated by commas (e.g., 1,3): ")
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read selection: %w", err)
		}
		input = line
	}

	picked, err := walker.ParseSelection(input, len(files))
	if err != nil {
		return nil, err
	}
	return walker.Pick(files, picked), nil
}

func init() {
	indexCmd.Flags().StringVar(&flagDir, "dir", ".", "directory to list corpus files from")
	indexCmd.Flags().StringVar(&flagSelect, "select", "", "comma-separated 1-based file numbers, e.g. \"1,3\"")
	indexCmd.Flags().BoolVar(&flagAll, "all", false, "index every corpus file in --dir")
	indexCmd.MarkFlagsMutuallyExclusive("select", "all")
	rootCmd.AddCommand(indexCmd)
}
