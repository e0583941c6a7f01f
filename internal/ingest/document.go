package ingest

import (
	"time"

	"leakctl/internal/textfile"
)

// Document is the unit written to the search index: one non-blank line of
// a corpus file.
type Document struct {
	Content    string    `json:"content"`
	FileName   string    `json:"file_name"`
	LineNumber int       `json:"line_number"`
	Timestamp  time.Time `json:"@timestamp"`
}

// Clock returns the current time. Tests replace it to get stable output.
type Clock func() time.Time

// UTCNow is the default Clock.
func UTCNow() time.Time { return time.Now().UTC() }

// NewDocument stamps a line with its file name and the ingestion time.
func NewDocument(line textfile.Line, fileName string, now Clock) Document {
	return Document{
		Content:    line.Text,
		FileName:   fileName,
		LineNumber: line.Number,
		Timestamp:  now().UTC(),
	}
}
