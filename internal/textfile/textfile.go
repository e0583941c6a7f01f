// Package textfile reads line-oriented corpora. It picks a working encoding
// (UTF-8, falling back to ISO-8859-1), counts physical lines, and then
// yields the non-blank lines with their 1-based positions.
package textfile

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// DefaultMaxLineBytes bounds a single physical line.
const DefaultMaxLineBytes = 64 << 20

const initialBuf = 64 * 1024

// Encoding is a candidate text encoding for a corpus file.
type Encoding struct {
	Name string
	// valid reports whether a raw line decodes under this encoding.
	valid func([]byte) bool
	// codec converts raw bytes to UTF-8; nil means the bytes are already UTF-8.
	codec encoding.Encoding
}

var (
	UTF8 = Encoding{Name: "utf-8", valid: utf8.Valid}
	// Latin1 accepts every byte sequence, so it never fails validation.
	Latin1 = Encoding{Name: "ISO-8859-1", valid: func([]byte) bool { return true }, codec: charmap.ISO8859_1}
)

// Options configures Open.
type Options struct {
	// MaxLineBytes is the longest physical line accepted. Zero means
	// DefaultMaxLineBytes.
	MaxLineBytes int
	// Encodings are tried in order; the first one that validates every line
	// wins. Empty means UTF-8 then ISO-8859-1.
	Encodings []Encoding
}

// File is a corpus file whose encoding and line count are known.
type File struct {
	Path       string
	Name       string
	Encoding   Encoding
	TotalLines int
	Size       int64

	maxLine int
}

// Line is a non-blank, trimmed line and its physical position.
type Line struct {
	Number int
	Text   string
}

// Open pre-scans the file at path, choosing the first encoding that decodes
// every line and counting physical lines. The file is read once per
// candidate encoding that fails and once more by Lines.
func Open(path string, opts Options) (*File, error) {
	maxLine := opts.MaxLineBytes
	if maxLine <= 0 {
		maxLine = DefaultMaxLineBytes
	}
	encs := opts.Encodings
	if len(encs) == 0 {
		encs = []Encoding{UTF8, Latin1}
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	var lastBad int
	for _, enc := range encs {
		total, bad, err := countLines(path, enc, maxLine)
		if err != nil {
			return nil, fmt.Errorf("scan %s as %s: %w", path, enc.Name, err)
		}
		if bad == 0 {
			return &File{
				Path:       path,
				Name:       filepath.Base(path),
				Encoding:   enc,
				TotalLines: total,
				Size:       info.Size(),
				maxLine:    maxLine,
			}, nil
		}
		lastBad = bad
	}
	return nil, &DecodeError{Path: path, Line: lastBad}
}

// DecodeError reports that no candidate encoding could decode the file.
type DecodeError struct {
	Path string
	// Line is the first undecodable line under the last encoding tried.
	Line int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: no usable text encoding (line %d)", e.Path, e.Line)
}

// countLines returns the number of physical lines and the first line number
// that fails validation under enc (0 when all lines are valid).
func countLines(path string, enc Encoding, maxLine int) (total, firstBad int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	sc := newScanner(f, maxLine)
	for sc.Scan() {
		total++
		if !enc.valid(sc.Bytes()) {
			return total, total, nil
		}
	}
	if err := sc.Err(); err != nil {
		return 0, 0, err
	}
	return total, 0, nil
}

// Lines opens the file for the real read pass. Lines are split and
// length-checked on raw bytes, as in Open, and decoded one at a time.
func (f *File) Lines() (*Lines, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, err
	}
	l := &Lines{
		sc: newScanner(fh, f.maxLine),
		c:  fh,
	}
	if f.Encoding.codec != nil {
		l.dec = f.Encoding.codec.NewDecoder()
	}
	return l, nil
}

// Lines iterates the non-blank lines of a File, in the style of
// bufio.Scanner. Blank lines advance the line number but are never yielded.
type Lines struct {
	sc   *bufio.Scanner
	c    io.Closer
	dec  *encoding.Decoder
	num  int
	line Line
	err  error
}

// Next advances to the next non-blank line. It returns false at EOF or on
// error; check Err afterwards.
func (l *Lines) Next() bool {
	for l.sc.Scan() {
		l.num++
		raw := l.sc.Bytes()
		if l.dec != nil {
			decoded, err := l.dec.Bytes(raw)
			if err != nil {
				l.err = fmt.Errorf("decode line %d: %w", l.num, err)
				return false
			}
			raw = decoded
		}
		text := strings.TrimFunc(string(raw), isSpace)
		if text == "" {
			continue
		}
		l.line = Line{Number: l.num, Text: text}
		return true
	}
	return false
}

// Line returns the current line.
func (l *Lines) Line() Line { return l.line }

// Err returns the first read or decode error, if any.
func (l *Lines) Err() error {
	if l.err != nil {
		return l.err
	}
	return l.sc.Err()
}

// Close releases the underlying file.
func (l *Lines) Close() error { return l.c.Close() }

// isSpace extends unicode.IsSpace with the ASCII separators U+001C..U+001F.
func isSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}

func newScanner(r io.Reader, maxLine int) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	buf := initialBuf
	if buf > maxLine {
		buf = maxLine
	}
	sc.Buffer(make([]byte, 0, buf), maxLine)
	sc.Split(ScanUniversalLines)
	return sc
}

// ScanUniversalLines is a bufio.SplitFunc that ends lines at "\n", "\r\n"
// or a lone "\r". The terminator is not part of the token, and a final
// unterminated line is returned as is.
func ScanUniversalLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		// Lone '\r' or "\r\n": need one more byte to tell them apart.
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		if atEOF {
			return i + 1, data[:i], nil
		}
		return 0, nil, nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
