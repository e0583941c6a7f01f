// Package status assembles the lifecycle report for the rollover alias's
// backing indices: ILM phase and age per index, time left until the delete
// phase, disk usage, and document counts per source file.
package status

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"leakctl/internal/search"
)

// fileBuckets is the terms aggregation size used for per-file counts.
const fileBuckets = 100

// Source is the part of the search client the report reads.
type Source interface {
	ExplainLifecycle(ctx context.Context, pattern string) (map[string]search.ExplainedIndex, error)
	CatIndices(ctx context.Context, pattern string) ([]search.CatIndex, error)
	AliasIndices(ctx context.Context, alias string) (map[string]search.AliasInfo, error)
	GetPolicies(ctx context.Context) (map[string]search.Policy, error)
	FileCounts(ctx context.Context, index string, size int) ([]search.FileCount, error)
}

// Deletion states shown per index.
const (
	StateWaiting  = "waiting"
	StateDeleting = "will be deleted"
	StateDone     = "completed"
	StateWriting  = "writing"
)

// IndexRow is one line of the index table.
type IndexRow struct {
	Index     string
	Writable  bool
	CreatedAt time.Time
	AgeDays   int
	// DaysUntilDeletion is nil when the policy has no delete phase with a
	// min_age expressed in days.
	DaysUntilDeletion *int
	State             string
	SizeGB            float64
}

// Disk summarizes storage across all matching indices.
type Disk struct {
	TotalGB float64
	Empty   []string
}

// IndexFiles holds per-file document counts for one index. Err is set when
// the aggregation for that index failed.
type IndexFiles struct {
	Index string
	Files []search.FileCount
	Err   error
}

// Report is the complete status report.
type Report struct {
	Alias       string
	Pattern     string
	GeneratedAt time.Time
	Indices     []IndexRow
	Disk        Disk
	Files       []IndexFiles
}

// Options configures Build.
type Options struct {
	Alias   string
	Pattern string
	// Now is the reference time for ages; zero means time.Now.
	Now time.Time
}

// Build queries src and assembles the report. Failures of the lifecycle,
// cat, alias or policy calls abort the report; a failed per-index file
// aggregation is recorded in that index's entry instead.
func Build(ctx context.Context, src Source, opts Options) (*Report, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	explained, err := src.ExplainLifecycle(ctx, opts.Pattern)
	if err != nil {
		return nil, err
	}
	cat, err := src.CatIndices(ctx, opts.Pattern)
	if err != nil {
		return nil, err
	}
	aliases, err := src.AliasIndices(ctx, opts.Alias)
	if err != nil {
		return nil, err
	}
	policies, err := src.GetPolicies(ctx)
	if err != nil {
		return nil, err
	}

	sizes := make(map[string]float64, len(cat))
	for _, row := range cat {
		sizes[row.Index] = parseSize(row.StoreSize)
	}

	r := &Report{Alias: opts.Alias, Pattern: opts.Pattern, GeneratedAt: now}
	r.Indices = indexRows(explained, aliases, policies, sizes, now)
	r.Disk = diskSummary(cat)

	names := make([]string, 0, len(cat))
	for _, row := range cat {
		names = append(names, row.Index)
	}
	sort.Strings(names)
	for _, name := range names {
		counts, err := src.FileCounts(ctx, name, fileBuckets)
		if err != nil {
			r.Files = append(r.Files, IndexFiles{Index: name, Err: err})
			continue
		}
		if len(counts) == 0 {
			continue
		}
		r.Files = append(r.Files, IndexFiles{Index: name, Files: counts})
	}
	return r, nil
}

func indexRows(
	explained map[string]search.ExplainedIndex,
	aliases map[string]search.AliasInfo,
	policies map[string]search.Policy,
	sizes map[string]float64,
	now time.Time,
) []IndexRow {
	names := make([]string, 0, len(explained))
	for name := range explained {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]IndexRow, 0, len(names))
	for _, name := range names {
		ex := explained[name]
		if ex.LifecycleDateMillis == 0 {
			continue
		}
		created := time.UnixMilli(ex.LifecycleDateMillis).UTC()
		age := AgeDays(created, now)
		writable := aliases[name].IsWriteIndex

		row := IndexRow{
			Index:     name,
			Writable:  writable,
			CreatedAt: created,
			AgeDays:   age,
			State:     deletionState(ex.Phase, writable),
			SizeGB:    sizes[name],
		}
		if ex.Policy != "" {
			if p, ok := policies[ex.Policy]; ok {
				if minAge, ok := DeleteAfterDays(p); ok {
					left := max(minAge-age, 0)
					row.DaysUntilDeletion = &left
				}
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func deletionState(phase string, writable bool) string {
	switch {
	case phase == "delete":
		return StateDeleting
	case phase == "completed":
		return StateDone
	case writable:
		return StateWriting
	default:
		return StateWaiting
	}
}

// AgeDays returns the whole days elapsed between created and now, rounded
// down.
func AgeDays(created, now time.Time) int {
	return int(math.Floor(now.Sub(created).Hours() / 24))
}

// DeleteAfterDays reads the delete phase min_age of a policy. Only values
// expressed in days ("90d") are understood; a policy without a delete
// phase counts as "0d".
func DeleteAfterDays(p search.Policy) (int, bool) {
	minAge := "0d"
	if phase, ok := p.Policy.Phases["delete"]; ok && phase.MinAge != "" {
		minAge = phase.MinAge
	}
	if !strings.HasSuffix(minAge, "d") {
		return 0, false
	}
	days, err := strconv.Atoi(strings.TrimSuffix(minAge, "d"))
	if err != nil {
		return 0, false
	}
	return days, true
}

func diskSummary(cat []search.CatIndex) Disk {
	var d Disk
	for _, row := range cat {
		d.TotalGB += parseSize(row.StoreSize)
		if row.DocsCount == "0" {
			d.Empty = append(d.Empty, row.Index)
		}
	}
	sort.Strings(d.Empty)
	return d
}

// parseSize reads a _cat size column. Closed indices report no size.
func parseSize(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// DeletionIn renders DaysUntilDeletion for display.
func (r IndexRow) DeletionIn() string {
	if r.DaysUntilDeletion == nil {
		return "-"
	}
	return strconv.Itoa(*r.DaysUntilDeletion)
}
