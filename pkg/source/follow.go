package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ccollicutt/proxylist/pkg/reader"
)

// DefaultPollInterval bounds how long Read waits for a file event before
// checking the file again.
const DefaultPollInterval = 250 * time.Millisecond

// FollowOption configures a FollowSource.
type FollowOption func(*FollowSource)

// WithPollInterval sets the fallback poll interval.
func WithPollInterval(d time.Duration) FollowOption {
	return func(s *FollowSource) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithFromEnd starts following at the current end of the file instead of
// its beginning.
func WithFromEnd() FollowOption {
	return func(s *FollowSource) {
		s.fromEnd = true
	}
}

// FollowSource reads lines from a file that keeps growing, like tail -f.
// Read blocks until a complete line is available, the context is done, or
// the file is removed or renamed. It is one-shot: Reset is unsupported and
// Len is unknown.
type FollowSource struct {
	path         string
	file         *os.File
	rd           *bufio.Reader
	watcher      *fsnotify.Watcher
	pollInterval time.Duration
	fromEnd      bool

	partial strings.Builder
	index   int
	done    bool // file removed or renamed; drain what is left
	ended   bool // io.EOF returned
	closed  bool
}

// NewFollowSource opens path and starts watching it.
func NewFollowSource(path string, opts ...FollowOption) (*FollowSource, error) {
	s := &FollowSource{
		path:         path,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}

	f, err := os.Open(path) // #nosec G304 -- user-provided paths are expected
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	if s.fromEnd {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("seeking %s: %w", path, err)
		}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.Add(path); err != nil {
		_ = w.Close()
		_ = f.Close()
		return nil, fmt.Errorf("watching %s: %w", path, err)
	}

	s.file = f
	s.rd = bufio.NewReader(f)
	s.watcher = w
	return s, nil
}

// Read returns the next complete line.
func (s *FollowSource) Read(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if s.ended {
			return "", io.EOF
		}

		chunk, err := s.rd.ReadString('\n')
		s.partial.WriteString(chunk)
		if err == nil {
			return s.flush(), nil
		}
		if err != io.EOF {
			return "", fmt.Errorf("reading %s: %w", s.path, err)
		}

		if s.done {
			s.ended = true
			// A last line without a newline is still a line.
			if s.partial.Len() > 0 {
				return s.flush(), nil
			}
			return "", io.EOF
		}

		if err := s.wait(ctx); err != nil {
			return "", err
		}
	}
}

func (s *FollowSource) flush() string {
	line := strings.TrimRight(s.partial.String(), "\r\n")
	s.partial.Reset()
	s.index++
	return line
}

// wait blocks until the file changes, the poll interval elapses or ctx is done.
func (s *FollowSource) wait(ctx context.Context) error {
	timer := time.NewTimer(s.pollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	case ev, ok := <-s.watcher.Events:
		if !ok || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
			s.done = true
			return nil
		}
	case err, ok := <-s.watcher.Errors:
		if !ok {
			s.done = true
			return nil
		}
		return fmt.Errorf("watching %s: %w", s.path, err)
	}

	// An unlinked file that is still open only reports Chmod on some
	// platforms, so check the path itself.
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		s.done = true
	}
	return nil
}

// Reset is not supported: a followed file is consumed as it grows.
func (s *FollowSource) Reset(context.Context) error { return reader.ErrResetUnsupported }

func (s *FollowSource) Index() int { return s.index }

func (s *FollowSource) Len() (int, bool) { return 0, false }

// Close stops watching and closes the file.
func (s *FollowSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	werr := s.watcher.Close()
	ferr := s.file.Close()
	if werr != nil {
		return werr
	}
	return ferr
}
