// Package ingest loads corpus files into the search index: each non-blank
// line becomes a Document, documents are batched up to a fixed size, and
// every full batch (plus the final partial one) is submitted as one bulk
// write. Files are processed one at a time and nothing is retried.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"leakctl/internal/textfile"
)

// Config holds the pipeline settings.
type Config struct {
	// BatchSize is the flush-and-submit threshold in documents.
	BatchSize    int
	MaxLineBytes int
	// Now stamps documents; nil means UTCNow.
	Now    Clock
	Logger *slog.Logger
}

// Stats reports the outcome of one file run.
type Stats struct {
	Path       string
	FileName   string
	Encoding   string
	TotalLines int
	Documents  int
	Batches    int
	Duration   time.Duration
}

// Recorder is told about each file run. Recorder errors are logged and
// never stop ingestion.
type Recorder interface {
	RunStarted(ctx context.Context, f *textfile.File) (runID string, err error)
	RunFinished(ctx context.Context, runID string, stats *Stats, runErr error) error
}

// Pipeline runs the read, transform, batch, submit sequence. A Pipeline
// is not safe for concurrent use; it is meant to process files serially.
type Pipeline struct {
	sub      Submitter
	progress Progress
	recorder Recorder
	cfg      Config
}

// New creates a pipeline. A nil progress discards progress.
func New(sub Submitter, progress Progress, cfg Config) *Pipeline {
	if progress == nil {
		progress = NopProgress{}
	}
	if cfg.Now == nil {
		cfg.Now = UTCNow
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{sub: sub, progress: progress, cfg: cfg}
}

// WithRecorder attaches a run recorder.
func (p *Pipeline) WithRecorder(r Recorder) *Pipeline {
	p.recorder = r
	return p
}

// IndexFile ingests one file. On a submission error the returned Stats
// describe what was flushed before the failure; those documents stay
// indexed.
func (p *Pipeline) IndexFile(ctx context.Context, path string) (*Stats, error) {
	if p.cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", p.cfg.BatchSize)
	}

	f, err := textfile.Open(path, textfile.Options{MaxLineBytes: p.cfg.MaxLineBytes})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	p.cfg.Logger.Debug("file scanned", "path", path, "encoding", f.Encoding.Name, "lines", f.TotalLines)

	runID := p.runStarted(ctx, f)

	start := time.Now()
	stats := &Stats{
		Path:       f.Path,
		FileName:   f.Name,
		Encoding:   f.Encoding.Name,
		TotalLines: f.TotalLines,
	}

	p.progress.Start(f.Name, f.TotalLines)
	err = p.run(ctx, f, stats)
	stats.Duration = time.Since(start)
	p.progress.Finish(err)

	p.runFinished(ctx, runID, stats, err)
	if err != nil {
		return stats, fmt.Errorf("index %s: %w", f.Name, err)
	}
	return stats, nil
}

func (p *Pipeline) run(ctx context.Context, f *textfile.File, stats *Stats) error {
	lines, err := f.Lines()
	if err != nil {
		return err
	}
	defer lines.Close()

	b := newBatch(p.cfg.BatchSize)
	flush := func() error {
		n, err := b.flush(ctx, p.sub)
		if err != nil {
			return err
		}
		if n > 0 {
			stats.Documents += n
			stats.Batches++
			p.progress.Advance(n)
			p.cfg.Logger.Debug("batch flushed", "file", f.Name, "docs", n, "total", stats.Documents)
		}
		return nil
	}

	for lines.Next() {
		if b.add(NewDocument(lines.Line(), f.Name, p.cfg.Now)) {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := lines.Err(); err != nil {
		return fmt.Errorf("read: %w", err)
	}
	return flush()
}

func (p *Pipeline) runStarted(ctx context.Context, f *textfile.File) string {
	if p.recorder == nil {
		return ""
	}
	id, err := p.recorder.RunStarted(ctx, f)
	if err != nil {
		p.cfg.Logger.Warn("record run start failed", "file", f.Name, "err", err)
	}
	return id
}

func (p *Pipeline) runFinished(ctx context.Context, runID string, stats *Stats, runErr error) {
	if p.recorder == nil || runID == "" {
		return
	}
	if err := p.recorder.RunFinished(ctx, runID, stats, runErr); err != nil {
		p.cfg.Logger.Warn("record run finish failed", "run", runID, "err", err)
	}
}

// Run ingests paths in order, stopping at the first error. Stats for every
// attempted file, including the failed one, are returned.
func (p *Pipeline) Run(ctx context.Context, paths []string) ([]*Stats, error) {
	all := make([]*Stats, 0, len(paths))
	for _, path := range paths {
		stats, err := p.IndexFile(ctx, path)
		if stats != nil {
			all = append(all, stats)
		}
		if err != nil {
			return all, err
		}
	}
	return all, nil
}
