package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leakctl/internal/textfile"
)

// memorySubmitter stands in for the search index: it keeps every batch it
// accepts, so running the same file twice doubles the stored documents.
type memorySubmitter struct {
	batches [][]Document
	failOn  int // 1-based batch number to reject; 0 never fails
	calls   int
}

func (m *memorySubmitter) Submit(_ context.Context, docs []Document) error {
	m.calls++
	if m.failOn == m.calls {
		return errors.New("bulk rejected")
	}
	m.batches = append(m.batches, append([]Document(nil), docs...))
	return nil
}

func (m *memorySubmitter) docs() []Document {
	var all []Document
	for _, b := range m.batches {
		all = append(all, b...)
	}
	return all
}

func (m *memorySubmitter) sizes() []int {
	var s []int
	for _, b := range m.batches {
		s = append(s, len(b))
	}
	return s
}

type recordingProgress struct {
	file     string
	total    int
	advances []int
	finished bool
	err      error
}

func (r *recordingProgress) Start(f string, total int) { r.file, r.total = f, total }
func (r *recordingProgress) Advance(n int)             { r.advances = append(r.advances, n) }
func (r *recordingProgress) Finish(err error)          { r.finished, r.err = true, err }

var fixedTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }

func writeCorpus(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func manyLines(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "user%d@example.com:pw%d\n", i, i)
	}
	return b.String()
}

func TestIndexFileSkipsBlankLines(t *testing.T) {
	path := writeCorpus(t, "dump.txt", "a\n\nb\nc\n")
	sub := &memorySubmitter{}
	prog := &recordingProgress{}

	stats, err := New(sub, prog, Config{BatchSize: 200000, Now: fixedClock}).IndexFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, []Document{
		{Content: "a", FileName: "dump.txt", LineNumber: 1, Timestamp: fixedTime},
		{Content: "b", FileName: "dump.txt", LineNumber: 3, Timestamp: fixedTime},
		{Content: "c", FileName: "dump.txt", LineNumber: 4, Timestamp: fixedTime},
	}, sub.docs())
	assert.Equal(t, []int{3}, sub.sizes(), "one final flush below the threshold")

	assert.Equal(t, 4, stats.TotalLines)
	assert.Equal(t, 3, stats.Documents)
	assert.Equal(t, 1, stats.Batches)
	assert.Equal(t, "utf-8", stats.Encoding)

	assert.Equal(t, "dump.txt", prog.file)
	assert.Equal(t, 4, prog.total)
	assert.Equal(t, []int{3}, prog.advances)
	assert.True(t, prog.finished)
	assert.NoError(t, prog.err)
}

func TestIndexFileDefaultThresholdSplit(t *testing.T) {
	path := writeCorpus(t, "big.txt", manyLines(200001))
	sub := &memorySubmitter{}

	stats, err := New(sub, nil, Config{BatchSize: 200000}).IndexFile(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, []int{200000, 1}, sub.sizes())
	assert.Equal(t, 200001, stats.Documents)
	assert.Equal(t, 2, stats.Batches)
}

func TestIndexFileBatchSizes(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		batchSize int
		want      []int
	}{
		{"exact multiple has no trailing flush", manyLines(6), 3, []int{3, 3}},
		{"remainder", manyLines(7), 3, []int{3, 3, 1}},
		{"single batch", manyLines(2), 3, []int{2}},
		{"blank lines do not count toward the threshold", "a\n\n\nb\n\nc\nd\n", 2, []int{2, 2}},
		{"empty file", "", 3, nil},
		{"blank only file", "\n \n\t\n", 3, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeCorpus(t, "f.txt", tt.content)
			sub := &memorySubmitter{}

			_, err := New(sub, nil, Config{BatchSize: tt.batchSize}).IndexFile(context.Background(), path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, sub.sizes())
			assert.Equal(t, len(tt.want), sub.calls)
		})
	}
}

func TestIndexFileLineNumbersStrictlyIncrease(t *testing.T) {
	path := writeCorpus(t, "gaps.txt", "x\n\n\ny\n \nz\n\n")
	sub := &memorySubmitter{}

	_, err := New(sub, nil, Config{BatchSize: 2}).IndexFile(context.Background(), path)
	require.NoError(t, err)

	var nums []int
	for _, d := range sub.docs() {
		nums = append(nums, d.LineNumber)
	}
	assert.Equal(t, []int{1, 4, 6}, nums)
}

func TestIndexFileLatin1Fallback(t *testing.T) {
	path := writeCorpus(t, "latin.txt", "jos\xe9:secret\n")
	sub := &memorySubmitter{}

	stats, err := New(sub, nil, Config{BatchSize: 10}).IndexFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "ISO-8859-1", stats.Encoding)
	require.Len(t, sub.docs(), 1)
	assert.Equal(t, "josé:secret", sub.docs()[0].Content)
}

func TestIndexFileLatin1LongLineWithinLimit(t *testing.T) {
	path := writeCorpus(t, "latin.txt", "ok\n"+strings.Repeat("\xe9", 20)+"\n")
	sub := &memorySubmitter{}

	stats, err := New(sub, nil, Config{BatchSize: 1, MaxLineBytes: 32}).IndexFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1}, sub.sizes())
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, strings.Repeat("é", 20), sub.docs()[1].Content)
}

func TestIndexFileHugeBatchSize(t *testing.T) {
	path := writeCorpus(t, "tiny.txt", "a\nb\n")
	sub := &memorySubmitter{}

	stats, err := New(sub, nil, Config{BatchSize: 1 << 40}).IndexFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, sub.sizes())
	assert.Equal(t, 1, stats.Batches)
}

func TestIndexFileSubmissionFailureAborts(t *testing.T) {
	path := writeCorpus(t, "f.txt", manyLines(10))
	sub := &memorySubmitter{failOn: 2}
	prog := &recordingProgress{}

	stats, err := New(sub, prog, Config{BatchSize: 3}).IndexFile(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bulk rejected")

	// The first batch stays indexed; nothing after the failure is sent.
	assert.Equal(t, []int{3}, sub.sizes())
	assert.Equal(t, 2, sub.calls)
	require.NotNil(t, stats)
	assert.Equal(t, 3, stats.Documents)
	assert.Equal(t, 1, stats.Batches)

	assert.Equal(t, []int{3}, prog.advances)
	assert.Error(t, prog.err)
}

func TestIndexFileMissing(t *testing.T) {
	sub := &memorySubmitter{}
	_, err := New(sub, nil, Config{BatchSize: 3}).IndexFile(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.Zero(t, sub.calls)
}

func TestIndexFileRejectsBadBatchSize(t *testing.T) {
	path := writeCorpus(t, "f.txt", "a\n")
	_, err := New(&memorySubmitter{}, nil, Config{}).IndexFile(context.Background(), path)
	require.Error(t, err)
}

func TestRerunDuplicatesDocuments(t *testing.T) {
	path := writeCorpus(t, "dup.txt", "a\nb\n\nc\n")
	sub := &memorySubmitter{}
	p := New(sub, nil, Config{BatchSize: 100})

	_, err := p.IndexFile(context.Background(), path)
	require.NoError(t, err)
	_, err = p.IndexFile(context.Background(), path)
	require.NoError(t, err)

	assert.Len(t, sub.docs(), 6)
}

func TestRunProcessesFilesInOrderAndStopsOnError(t *testing.T) {
	first := writeCorpus(t, "first.txt", "a\nb\n")
	second := writeCorpus(t, "second.txt", "c\n")
	third := writeCorpus(t, "third.txt", "d\n")

	sub := &memorySubmitter{failOn: 2}
	all, err := New(sub, nil, Config{BatchSize: 10}).Run(context.Background(), []string{first, second, third})
	require.Error(t, err)

	require.Len(t, all, 2)
	assert.Equal(t, "first.txt", all[0].FileName)
	assert.Equal(t, "second.txt", all[1].FileName)
	assert.Equal(t, 0, all[1].Documents)
	assert.Equal(t, 2, sub.calls, "third file is never read")
}

type fakeRecorder struct {
	started  []string
	finished map[string]error
	stats    map[string]*Stats
	failOpen bool
}

func (f *fakeRecorder) RunStarted(_ context.Context, file *textfile.File) (string, error) {
	if f.failOpen {
		return "", errors.New("ledger unavailable")
	}
	id := fmt.Sprintf("run-%d", len(f.started)+1)
	f.started = append(f.started, file.Name)
	return id, nil
}

func (f *fakeRecorder) RunFinished(_ context.Context, id string, stats *Stats, runErr error) error {
	if f.finished == nil {
		f.finished = make(map[string]error)
		f.stats = make(map[string]*Stats)
	}
	f.finished[id] = runErr
	f.stats[id] = stats
	return nil
}

func TestRecorderSeesEachRun(t *testing.T) {
	path := writeCorpus(t, "rec.txt", "a\nb\n")
	rec := &fakeRecorder{}
	p := New(&memorySubmitter{failOn: 2}, nil, Config{BatchSize: 10}).WithRecorder(rec)

	_, err := p.IndexFile(context.Background(), path)
	require.NoError(t, err)
	_, err = p.IndexFile(context.Background(), path)
	require.Error(t, err)

	assert.Equal(t, []string{"rec.txt", "rec.txt"}, rec.started)
	assert.NoError(t, rec.finished["run-1"])
	assert.Error(t, rec.finished["run-2"])
	assert.Equal(t, 2, rec.stats["run-1"].Documents)
}

func TestRecorderFailureDoesNotStopIngestion(t *testing.T) {
	path := writeCorpus(t, "rec.txt", "a\n")
	sub := &memorySubmitter{}
	p := New(sub, nil, Config{BatchSize: 10}).WithRecorder(&fakeRecorder{failOpen: true})

	_, err := p.IndexFile(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, sub.docs(), 1)
}

func TestLineProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewLineProgress(&buf)
	p.Start("dump.txt", 4)
	p.Advance(3)
	p.Finish(nil)

	out := buf.String()
	assert.Contains(t, out, "Indexing dump.txt (4 lines)")
	assert.Contains(t, out, "3/4 lines (75.0%)")
	assert.Contains(t, out, "3 documents")
}

func TestPercentEmptyTotal(t *testing.T) {
	assert.Equal(t, "100%", percent(0, 0))
	assert.Equal(t, "50.0%", percent(1, 2))
}
