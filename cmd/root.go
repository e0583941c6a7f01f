package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"leakctl/internal/config"
	"leakctl/internal/ingest"
	"leakctl/internal/search"
	"leakctl/internal/store"

	"github.com/spf13/cobra"
)

var (
	flagConfig    string
	flagURL       string
	flagUsername  string
	flagPassword  string
	flagAlias     string
	flagBatchSize int
	flagLedger    string
	flagVerbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "leakctl",
	Short: "Bulk-load text corpora into an Elasticsearch rollover alias",
	Long: `leakctl indexes line-oriented .txt corpora into an Elasticsearch rollover
alias, one document per non-blank line, and manages the ILM policy, index
template and backing indices behind that alias.

Run without a subcommand to pick files from the current directory
interactively.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if flagVerbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Assigned here rather than in the literal to break the
	// rootCmd -> runTUI -> loadConfig -> rootCmd initialization cycle.
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runTUI()
	}

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ./"+config.DefaultPath+" when present)")
	rootCmd.PersistentFlags().StringVar(&flagURL, "url", "", "elasticsearch URL (overrides config and $"+config.EnvURL+")")
	rootCmd.PersistentFlags().StringVar(&flagUsername, "username", "", "elasticsearch username")
	rootCmd.PersistentFlags().StringVar(&flagPassword, "password", "", "elasticsearch password")
	rootCmd.PersistentFlags().StringVar(&flagAlias, "alias", "", "rollover alias to write to")
	rootCmd.PersistentFlags().IntVar(&flagBatchSize, "batch-size", 0, fmt.Sprintf("documents per bulk request (default %d)", config.DefaultBatchSize))
	rootCmd.PersistentFlags().StringVar(&flagLedger, "ledger", "", "ingest ledger database path")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging on stderr")
}

// loadConfig resolves file, environment and flag settings, in that order of
// increasing precedence.
func loadConfig() (config.Config, error) {
	path, required := flagConfig, true
	if path == "" {
		path, required = config.DefaultPath, false
	}
	cfg, err := config.Load(path, required)
	if err != nil {
		return cfg, err
	}

	if flagURL != "" {
		cfg.Elasticsearch.URL = flagURL
	}
	if flagUsername != "" {
		cfg.Elasticsearch.Username = flagUsername
	}
	if flagPassword != "" {
		cfg.Elasticsearch.Password = flagPassword
	}
	if flagAlias != "" {
		cfg.Alias = flagAlias
	}
	if rootCmd.PersistentFlags().Changed("batch-size") {
		cfg.BatchSize = flagBatchSize
	}
	if flagLedger != "" {
		cfg.Ledger = flagLedger
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// connect loads the configuration and builds a search client from it.
func connect() (config.Config, *search.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cfg, nil, err
	}
	client, err := search.New(cfg.Elasticsearch)
	if err != nil {
		return cfg, nil, err
	}
	slog.Debug("client ready", "url", cfg.Elasticsearch.URL, "alias", cfg.Alias)
	return cfg, client, nil
}

// openLedger opens the run ledger. The ledger is optional: a failure is
// reported as a warning and ingestion continues without it.
func openLedger(cfg config.Config) *store.SQLiteStore {
	if cfg.Ledger == "" {
		return nil
	}
	st, err := store.Open(cfg.Ledger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: ingest ledger disabled: %v\n", err)
		return nil
	}
	return st
}

// newPipeline wires the bulk submitter, progress reporter and ledger.
func newPipeline(cfg config.Config, client *search.Client, st *store.SQLiteStore, progress ingest.Progress) *ingest.Pipeline {
	p := ingest.New(
		ingest.AliasSubmitter{Client: client, Alias: cfg.Alias},
		progress,
		ingest.Config{
			BatchSize:    cfg.BatchSize,
			MaxLineBytes: cfg.MaxLineBytes,
			Logger:       slog.Default(),
		},
	)
	if st != nil {
		p.WithRecorder(st.Recorder(cfg.Alias))
	}
	return p
}
