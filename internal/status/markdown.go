package status

import (
	"fmt"
	"strings"
)

const timeLayout = "2006-01-02 15:04:05"

// Markdown renders the whole report.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString(r.IndexMarkdown())
	b.WriteString("\n")
	b.WriteString(r.DiskMarkdown())
	b.WriteString("\n")
	b.WriteString(r.FilesMarkdown())
	return b.String()
}

// IndexMarkdown renders the per-index lifecycle table.
func (r *Report) IndexMarkdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Indices `%s` (alias `%s`)\n\n", r.Pattern, r.Alias)

	if len(r.Indices) == 0 {
		b.WriteString("No lifecycle-managed indices found.\n")
		return b.String()
	}

	b.WriteString("| Index | Writable | Created At (UTC) | Age (days) | Days Until Deletion | Deletion Status | Usage (GB) |\n")
	b.WriteString("|---|---|---|---:|---:|---|---:|\n")
	for _, row := range r.Indices {
		fmt.Fprintf(&b, "| %s | %t | %s | %d | %s | %s | %.2f |\n",
			row.Index, row.Writable, row.CreatedAt.Format(timeLayout), row.AgeDays,
			row.DeletionIn(), row.State, row.SizeGB)
	}
	return b.String()
}

// DiskMarkdown renders total usage and the list of empty indices.
func (r *Report) DiskMarkdown() string {
	var b strings.Builder
	b.WriteString("## Disk usage\n\n")
	fmt.Fprintf(&b, "- **Total:** %.2f GB\n", r.Disk.TotalGB)
	fmt.Fprintf(&b, "- **Empty indices:** %d\n", len(r.Disk.Empty))
	for _, name := range r.Disk.Empty {
		fmt.Fprintf(&b, "  - %s\n", name)
	}
	return b.String()
}

// FilesMarkdown renders document counts per source file for each index.
func (r *Report) FilesMarkdown() string {
	var b strings.Builder
	b.WriteString("## Documents per file\n\n")
	if len(r.Files) == 0 {
		b.WriteString("No documents indexed.\n")
		return b.String()
	}
	for _, idx := range r.Files {
		fmt.Fprintf(&b, "### %s\n\n", idx.Index)
		if idx.Err != nil {
			fmt.Fprintf(&b, "Query error: %v\n\n", idx.Err)
			continue
		}
		for _, f := range idx.Files {
			fmt.Fprintf(&b, "- %s: %d documents\n", f.FileName, f.Docs)
		}
		b.WriteString("\n")
	}
	return b.String()
}
