package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"leakctl/internal/ingest"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/mattn/go-isatty"
)

// barProgress redraws a single progress bar line per file. It is used when
// stdout is a terminal; otherwise ingest.LineProgress prints plain lines.
type barProgress struct {
	w     io.Writer
	bar   progress.Model
	file  string
	total int
	done  int
	start time.Time
}

func newBarProgress(w io.Writer) *barProgress {
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40
	return &barProgress{w: w, bar: bar}
}

func (p *barProgress) Start(fileName string, totalLines int) {
	p.file = fileName
	p.total = totalLines
	p.done = 0
	p.start = time.Now()
	fmt.Fprintf(p.w, "Indexing %s (%d lines)\n", fileName, totalLines)
	p.draw()
}

func (p *barProgress) Advance(flushed int) {
	p.done += flushed
	p.draw()
}

func (p *barProgress) Finish(err error) {
	p.draw()
	elapsed := time.Since(p.start).Round(time.Millisecond)
	if err != nil {
		fmt.Fprintln(p.w, "\n"+errorStyle.Render(fmt.Sprintf("  failed after %d documents in %s", p.done, elapsed)))
		return
	}
	fmt.Fprintf(p.w, "\n  %d documents in %s\n", p.done, elapsed)
}

func (p *barProgress) draw() {
	frac := 1.0
	if p.total > 0 {
		frac = min(float64(p.done)/float64(p.total), 1)
	}
	fmt.Fprintf(p.w, "\r  %s %d/%d", p.bar.ViewAs(frac), p.done, p.total)
}

// progressFor picks the reporter for f.
func progressFor(f *os.File) ingest.Progress {
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return newBarProgress(f)
	}
	return ingest.NewLineProgress(f)
}
