// Package patternset builds immutable sets of regular expressions from
// pattern files and answers whether any of them matches an input.
package patternset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/ccollicutt/proxylist/pkg/reader"
)

// ErrInvalidPattern is wrapped by PatternError.
var ErrInvalidPattern = errors.New("invalid pattern")

// PatternError reports a pattern line that failed to compile.
type PatternError struct {
	// Line is the 1-based position of the pattern in its reader.
	Line    int
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("pattern %d %q: %v", e.Line, e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() []error { return []error{ErrInvalidPattern, e.Err} }

// Set is an ordered collection of compiled patterns. A Set never changes
// after it is built and is safe for concurrent use.
type Set struct {
	patterns []*regexp.Regexp
}

// Build reads every line of r and compiles it. The first invalid pattern
// aborts the build. Build does not close r.
//
// Each line is read with pattern-file syntax:
//
//   - leading and trailing whitespace is trimmed; write \s or [ ] to match
//     spaces at either end
//   - blank lines are skipped
//   - lines starting with '#' are comments; write [#] or \# to match a
//     literal '#' at the start of a pattern
func Build(ctx context.Context, r reader.Reader[string]) (*Set, error) {
	s := &Set{}
	for {
		line, err := r.Read(ctx)
		if err == io.EOF {
			return s, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading patterns: %w", err)
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		re, err := regexp.Compile(trimmed)
		if err != nil {
			return nil, &PatternError{Line: r.Index(), Pattern: trimmed, Err: err}
		}
		s.patterns = append(s.patterns, re)
	}
}

// Compile builds a Set from pattern strings.
func Compile(patterns ...string) (*Set, error) {
	return Build(context.Background(), reader.FromSlice(patterns))
}

// MustCompile is like Compile but panics on error.
func MustCompile(patterns ...string) *Set {
	s, err := Compile(patterns...)
	if err != nil {
		panic(err)
	}
	return s
}

// IsMatch reports whether any pattern matches input. Patterns are tried in
// order and the first match wins. An empty or nil Set matches nothing.
func (s *Set) IsMatch(input string) bool {
	if s == nil {
		return false
	}
	for _, re := range s.patterns {
		if re.MatchString(input) {
			return true
		}
	}
	return false
}

// Len returns the number of patterns.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.patterns)
}

// Patterns returns the source text of every pattern, in order.
func (s *Set) Patterns() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.patterns))
	for i, re := range s.patterns {
		out[i] = re.String()
	}
	return out
}

// Filter wraps r so only lines matched by the set are produced.
func (s *Set) Filter(r reader.Reader[string]) *reader.Filtered[string] {
	return reader.Filter(r, s.IsMatch)
}

// Exclude wraps r so lines matched by the set are dropped.
func (s *Set) Exclude(r reader.Reader[string]) *reader.Filtered[string] {
	return reader.Filter(r, func(line string) bool { return !s.IsMatch(line) })
}
