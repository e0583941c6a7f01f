package walker

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// DefaultExt is the suffix of corpus files picked up from a directory.
const DefaultExt = ".txt"

var (
	// ErrNoFiles means the directory holds no matching files.
	ErrNoFiles = errors.New("no files found")
	// ErrNoSelection means the operator's selection matched nothing.
	ErrNoSelection = errors.New("no valid selection made")
)

// FileInfo holds metadata about a discovered corpus file.
type FileInfo struct {
	Path string
	Name string
	Size int64
}

// List returns the regular files directly inside dir whose name ends in
// ext, sorted by name. Subdirectories are not descended into and symlinks
// are skipped. An empty result is reported as ErrNoFiles.
func List(dir, ext string) ([]FileInfo, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(absDir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", absDir, err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() || e.Type()&fs.ModeSymlink != 0 {
			continue
		}
		if !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, FileInfo{
			Path: filepath.Join(absDir, e.Name()),
			Name: e.Name(),
			Size: info.Size(),
		})
	}

	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// ParseSelection turns operator input such as "1, 3" into 0-based indexes
// into a list of n files. Tokens that are not plain digits or fall outside
// 1..n are dropped; order and repeats are kept. An empty result is
// reported as ErrNoSelection.
func ParseSelection(input string, n int) ([]int, error) {
	var picked []int
	for _, tok := range strings.Split(input, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" || strings.TrimLeft(tok, "0123456789") != "" {
			continue
		}
		i, err := strconv.Atoi(tok)
		if err != nil || i < 1 || i > n {
			continue
		}
		picked = append(picked, i-1)
	}
	if len(picked) == 0 {
		return nil, ErrNoSelection
	}
	return picked, nil
}

// Pick returns the paths of files at the given indexes.
func Pick(files []FileInfo, indexes []int) []string {
	paths := make([]string, 0, len(indexes))
	for _, i := range indexes {
		paths = append(paths, files[i].Path)
	}
	return paths
}
