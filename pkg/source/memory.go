package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ccollicutt/proxylist/pkg/reader"
)

// Strings returns a resettable reader over lines.
func Strings(lines ...string) *reader.SliceReader[string] {
	return reader.FromSlice(lines)
}

// Text splits s into lines and returns a resettable reader over them.
func Text(s string) *reader.SliceReader[string] {
	return Bytes([]byte(s))
}

// Bytes splits b into lines and returns a resettable reader over them.
// Both "\n" and "\r\n" terminate a line; a trailing terminator does not
// produce an empty last line.
func Bytes(b []byte) *reader.SliceReader[string] {
	text := strings.ReplaceAll(string(b), "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return reader.FromSlice([]string{})
	}
	return reader.FromSlice(strings.Split(text, "\n"))
}

// StreamSource reads lines from a one-shot stream such as standard input.
// It cannot be reset and its length is unknown.
type StreamSource struct {
	r       io.Reader
	scanner *bufio.Scanner
	index   int
	done    bool
	closed  bool
}

// NewStreamSource reads lines from r. If r is an io.Closer, Close closes it.
func NewStreamSource(r io.Reader) *StreamSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &StreamSource{r: r, scanner: scanner}
}

// Read returns the next line, or io.EOF at the end of the stream.
func (s *StreamSource) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.done {
		return "", io.EOF
	}
	if s.scanner.Scan() {
		s.index++
		return s.scanner.Text(), nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stream: %w", err)
	}
	s.done = true
	return "", io.EOF
}

// Reset is not supported on streams.
func (s *StreamSource) Reset(context.Context) error { return reader.ErrResetUnsupported }

func (s *StreamSource) Index() int { return s.index }

func (s *StreamSource) Len() (int, bool) { return 0, false }

// Close closes the stream if it is closable.
func (s *StreamSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
