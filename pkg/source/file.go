// Package source provides line readers over memory, files and growing files.
package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// maxLineSize caps a single line at 1MB.
const maxLineSize = 1024 * 1024

// FileOption configures a FileSource.
type FileOption func(*FileSource)

// WithSkipBlank drops lines that are empty after trimming whitespace.
func WithSkipBlank(skip bool) FileOption {
	return func(s *FileSource) {
		s.skipBlank = skip
	}
}

// WithCommentPrefix drops lines whose trimmed text starts with prefix.
// An empty prefix disables comment handling.
func WithCommentPrefix(prefix string) FileOption {
	return func(s *FileSource) {
		s.commentPrefix = prefix
	}
}

// FileSource reads lines from one or more files in order.
// It implements reader.Reader[string]. The total line count is not known
// ahead of time, so Len reports false.
type FileSource struct {
	files         []string
	skipBlank     bool
	commentPrefix string

	currentFile    *os.File
	currentScanner *bufio.Scanner
	currentSource  string
	currentLine    int
	fileIndex      int
	index          int
	done           bool
}

// NewFileSource creates a line reader over files. Files are opened lazily,
// one at a time.
func NewFileSource(files []string, opts ...FileOption) *FileSource {
	s := &FileSource{
		files:     files,
		fileIndex: -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Read returns the next line, without its line terminator.
// Returns io.EOF when all files have been exhausted.
func (s *FileSource) Read(ctx context.Context) (string, error) {
	for {
		// Check for context cancellation
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		if s.done {
			return "", io.EOF
		}

		// Ensure we have a file open
		if s.currentScanner == nil {
			if err := s.openNextFile(); err != nil {
				if err == io.EOF {
					s.done = true
				}
				return "", err
			}
		}

		if s.currentScanner.Scan() {
			s.currentLine++
			line := s.currentScanner.Text()
			if s.skip(line) {
				continue
			}
			s.index++
			return line, nil
		}

		if err := s.currentScanner.Err(); err != nil {
			return "", fmt.Errorf("reading %s: %w", s.currentSource, err)
		}

		// Current file exhausted, try next
		if err := s.closeCurrentFile(); err != nil {
			return "", err
		}
	}
}

func (s *FileSource) skip(line string) bool {
	trimmed := strings.TrimSpace(line)
	if s.skipBlank && trimmed == "" {
		return true
	}
	return s.commentPrefix != "" && strings.HasPrefix(trimmed, s.commentPrefix)
}

// Reset closes the open file and starts again from the first file.
func (s *FileSource) Reset(_ context.Context) error {
	if err := s.closeCurrentFile(); err != nil {
		return err
	}
	s.fileIndex = -1
	s.index = 0
	s.done = false
	s.currentSource = ""
	s.currentLine = 0
	return nil
}

// Index returns the number of lines returned so far.
func (s *FileSource) Index() int { return s.index }

// Len is unknown for files.
func (s *FileSource) Len() (int, bool) { return 0, false }

// Position returns the file and 1-based line number of the last line read.
func (s *FileSource) Position() (string, int) {
	return s.currentSource, s.currentLine
}

// Close releases resources.
func (s *FileSource) Close() error {
	return s.closeCurrentFile()
}

// openNextFile moves to the next file only once it is open, so a failed
// open is retried by the next Read instead of skipping the file.
func (s *FileSource) openNextFile() error {
	next := s.fileIndex + 1
	if next >= len(s.files) {
		return io.EOF
	}

	path := s.files[next]
	f, err := os.Open(path) // #nosec G304 -- user-provided paths are expected
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}

	s.fileIndex = next
	s.currentFile = f
	s.currentScanner = bufio.NewScanner(f)
	s.currentScanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	s.currentSource = path
	s.currentLine = 0
	return nil
}

func (s *FileSource) closeCurrentFile() error {
	s.currentScanner = nil
	if s.currentFile != nil {
		err := s.currentFile.Close()
		s.currentFile = nil
		return err
	}
	return nil
}
