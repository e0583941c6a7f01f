package ingest

import (
	"fmt"
	"io"
	"time"
)

// Progress observes a file run. It never affects control flow.
type Progress interface {
	// Start is called once the pre-scan has counted totalLines.
	Start(fileName string, totalLines int)
	// Advance is called after each successful flush with the number of
	// documents just submitted.
	Advance(flushed int)
	// Finish is called once, with the run's error (nil on success).
	Finish(err error)
}

// NopProgress discards all progress.
type NopProgress struct{}

func (NopProgress) Start(string, int) {}
func (NopProgress) Advance(int)       {}
func (NopProgress) Finish(error)      {}

// LineProgress prints one line per flush, for logs and non-terminal output.
type LineProgress struct {
	w     io.Writer
	file  string
	total int
	done  int
	start time.Time
}

// NewLineProgress writes progress lines to w.
func NewLineProgress(w io.Writer) *LineProgress {
	return &LineProgress{w: w}
}

func (p *LineProgress) Start(fileName string, totalLines int) {
	p.file = fileName
	p.total = totalLines
	p.done = 0
	p.start = time.Now()
	fmt.Fprintf(p.w, "Indexing %s (%d lines)\n", fileName, totalLines)
}

func (p *LineProgress) Advance(flushed int) {
	p.done += flushed
	fmt.Fprintf(p.w, "  %s: %d/%d lines (%s)\n", p.file, p.done, p.total, percent(p.done, p.total))
}

func (p *LineProgress) Finish(err error) {
	elapsed := time.Since(p.start).Round(time.Millisecond)
	if err != nil {
		fmt.Fprintf(p.w, "  %s: failed after %d documents in %s\n", p.file, p.done, elapsed)
		return
	}
	fmt.Fprintf(p.w, "  %s: %d documents in %s\n", p.file, p.done, elapsed)
}

// percent formats done/total. Blank lines are counted in total but never
// flushed, so a finished file can sit below 100%.
func percent(done, total int) string {
	if total <= 0 {
		return "100%"
	}
	return fmt.Sprintf("%.1f%%", 100*float64(done)/float64(total))
}
