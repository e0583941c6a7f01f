package store

import "time"

// Run states.
const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// Run is one recorded attempt to ingest a file into an alias.
type Run struct {
	ID         string
	Path       string
	FileName   string
	Alias      string
	Encoding   string
	SizeBytes  int64
	TotalLines int
	Documents  int
	Batches    int
	Status     string
	Error      string
	StartedAt  time.Time
	// FinishedAt is zero while the run is still in progress, or when the
	// process died before recording the outcome.
	FinishedAt time.Time
}

// Duration is the wall time of a finished run.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// FileTotal aggregates every successful run of one file name.
type FileTotal struct {
	FileName  string
	Runs      int
	Documents int64
	LastRun   time.Time
}
