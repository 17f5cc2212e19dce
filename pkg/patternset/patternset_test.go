package patternset

import (
	"context"
	"errors"
	"regexp/syntax"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccollicutt/proxylist/pkg/reader"
)

func TestBuild_AnyMatch(t *testing.T) {
	s, err := Build(context.Background(), reader.FromSlice([]string{"^a.*", "^b.*"}))
	require.NoError(t, err)

	assert.True(t, s.IsMatch("apple"))
	assert.True(t, s.IsMatch("banana"))
	assert.False(t, s.IsMatch("cherry"))
	assert.Equal(t, 2, s.Len())
}

func TestBuild_EmptyReaderMatchesNothing(t *testing.T) {
	s, err := Build(context.Background(), reader.FromSlice([]string{}))
	require.NoError(t, err)

	for _, input := range []string{"", "anything", "^a.*"} {
		assert.False(t, s.IsMatch(input), "input %q", input)
	}
	assert.Equal(t, 0, s.Len())
}

func TestBuild_SkipsBlankAndComments(t *testing.T) {
	s, err := Compile("", "# comment", "  ", `\.example\.com$`)
	require.NoError(t, err)

	assert.Equal(t, []string{`\.example\.com$`}, s.Patterns())
	assert.True(t, s.IsMatch("proxy.example.com"))
	assert.False(t, s.IsMatch("example.org"))
}

func TestBuild_InvalidPatternAborts(t *testing.T) {
	src := reader.FromSlice([]string{"^ok$", "# skipped", "[invalid", "^never$"})
	s, err := Build(context.Background(), src)

	require.Error(t, err)
	assert.Nil(t, s, "no partial set on failure")
	assert.True(t, errors.Is(err, ErrInvalidPattern))

	var perr *PatternError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 3, perr.Line)
	assert.Equal(t, "[invalid", perr.Pattern)

	var serr *syntax.Error
	assert.True(t, errors.As(err, &serr), "compile error should be reachable")
}

func TestSet_NilIsEmpty(t *testing.T) {
	var s *Set
	assert.False(t, s.IsMatch("x"))
	assert.Equal(t, 0, s.Len())
	assert.Nil(t, s.Patterns())
}

func TestSet_ConcurrentIsMatch(t *testing.T) {
	s := MustCompile(`^\d+\.\d+\.\d+\.\d+:\d+$`, `^\[[0-9a-f:]+\]:\d+$`)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if !s.IsMatch("10.0.0.1:8080") || s.IsMatch("host.example") {
					t.Error("unexpected match result")
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestSet_FilterAndExclude(t *testing.T) {
	ctx := context.Background()
	s := MustCompile(`^10\.`)
	lines := []string{"10.0.0.1:80", "192.168.1.1:80", "10.1.1.1:80"}

	kept, err := reader.Collect[string](ctx, s.Filter(reader.FromSlice(lines)))
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1:80", "10.1.1.1:80"}, kept)

	rest, err := reader.Collect[string](ctx, s.Exclude(reader.FromSlice(lines)))
	require.NoError(t, err)
	assert.Equal(t, []string{"192.168.1.1:80"}, rest)
}

func TestMustCompile_Panics(t *testing.T) {
	assert.Panics(t, func() { MustCompile("(") })
}

func TestBuild_PatternFileSyntax(t *testing.T) {
	s, err := Compile("  ^socks  ", `[#]legacy`, `\#tag$`, `^\s+padded`)
	require.NoError(t, err)

	assert.Equal(t, []string{"^socks", `[#]legacy`, `\#tag$`, `^\s+padded`}, s.Patterns())

	tests := []struct {
		input string
		want  bool
	}{
		{"socks5://10.0.0.1:1080", true},
		{" socks5://10.0.0.1:1080", false},
		{"#legacy 10.0.0.1:80", true},
		{"10.0.0.1:80 #tag", true},
		{"   padded 10.0.0.1:80", true},
		{"10.0.0.1:80", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.IsMatch(tt.input), "input %q", tt.input)
	}
}
