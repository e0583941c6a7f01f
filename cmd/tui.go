package cmd

import (
	"leakctl/internal/ingest"
	"leakctl/internal/tui"
)

func runTUI() error {
	cfg, client, err := connect()
	if err != nil {
		return err
	}

	st := openLedger(cfg)
	if st != nil {
		defer st.Close()
	}

	return tui.Run(tui.Config{
		Dir:     ".",
		Alias:   cfg.Alias,
		Cluster: client,
		NewPipeline: func(progress ingest.Progress) *ingest.Pipeline {
			return newPipeline(cfg, client, st, progress)
		},
	})
}
