// Package detector guesses the line layout of a proxy list so a pattern
// does not have to be written by hand.
package detector

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/ccollicutt/proxylist/pkg/proxy"
	"github.com/ccollicutt/proxylist/pkg/reader"
	"github.com/ccollicutt/proxylist/pkg/source"
)

// DetectionResult holds the result of analyzing a proxy list.
type DetectionResult struct {
	Matches         []LayoutMatch        // Layouts that matched, sorted by confidence descending
	SampledLines    int                  // Number of lines sampled
	ParsedLines     int                  // Number of lines the best layout parsed
	SuggestedScheme proxy.Scheme         // Most common scheme:// prefix, or http
	SchemeCounts    map[proxy.Scheme]int // Lines per scheme prefix seen
}

// LayoutMatch represents a layout that matched with its confidence score.
type LayoutMatch struct {
	Layout     *Layout
	Confidence float64     // 0.0 to 1.0 (fraction of sampled lines parsed)
	MatchCount int         // Number of lines parsed
	SampleLine string      // Example line that parsed
	Parsed     proxy.Proxy // Proxy parsed from the sample
}

// Detector samples proxy lists to identify their layout.
type Detector struct {
	layouts    []*Layout
	sampleSize int
}

// Option configures the Detector.
type Option func(*Detector)

// WithSampleSize sets the number of lines to sample (default 100).
func WithSampleSize(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.sampleSize = n
		}
	}
}

// New creates a new Detector with default layouts.
func New(opts ...Option) *Detector {
	d := &Detector{
		layouts:    DefaultLayouts(),
		sampleSize: 100,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

var schemePrefixRe = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9]*)://`)

// DetectFromFile samples the head of a proxy list file.
func (d *Detector) DetectFromFile(ctx context.Context, path string) (*DetectionResult, error) {
	src := source.NewFileSource([]string{path}, source.WithSkipBlank(true), source.WithCommentPrefix("#"))
	defer src.Close()
	return d.DetectFromReader(ctx, src)
}

// DetectFromReader samples up to the configured number of lines from r,
// skipping blank lines and '#' comments. It does not close r.
func (d *Detector) DetectFromReader(ctx context.Context, r reader.Reader[string]) (*DetectionResult, error) {
	var lines []string
	for len(lines) < d.sampleSize {
		line, err := r.Read(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("sampling lines: %w", err)
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		lines = append(lines, trimmed)
	}
	return d.DetectFromLines(lines), nil
}

// DetectFromLines analyzes a slice of proxy lines.
func (d *Detector) DetectFromLines(lines []string) *DetectionResult {
	result := &DetectionResult{
		SchemeCounts:    make(map[proxy.Scheme]int),
		SuggestedScheme: proxy.SchemeHTTP,
	}

	var sampled []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sampled = append(sampled, line)
		if m := schemePrefixRe.FindStringSubmatch(line); m != nil {
			if s, err := proxy.ParseScheme(m[1]); err == nil {
				result.SchemeCounts[s]++
			}
		}
	}
	result.SampledLines = len(sampled)
	if len(sampled) == 0 {
		return result
	}
	result.SuggestedScheme = suggestScheme(result.SchemeCounts)

	// Lines are validated with the suggested scheme so bare hosts pick up its
	// default port.
	for _, layout := range d.layouts {
		lp, err := proxy.NewLinePattern(result.SuggestedScheme, layout.Pattern)
		if err != nil {
			continue
		}

		var match LayoutMatch
		for _, line := range sampled {
			p, err := lp.Parse(line)
			if err != nil {
				continue
			}
			if match.MatchCount == 0 {
				match.SampleLine = line
				match.Parsed = p
			}
			match.MatchCount++
		}
		if match.MatchCount == 0 {
			continue
		}
		match.Layout = layout
		match.Confidence = float64(match.MatchCount) / float64(len(sampled))
		result.Matches = append(result.Matches, match)
	}

	// Sort by confidence descending, then by pattern length (more specific first)
	sort.SliceStable(result.Matches, func(i, j int) bool {
		if result.Matches[i].Confidence != result.Matches[j].Confidence {
			return result.Matches[i].Confidence > result.Matches[j].Confidence
		}
		return len(result.Matches[i].Layout.PatternStr) > len(result.Matches[j].Layout.PatternStr)
	})

	if len(result.Matches) > 0 {
		result.ParsedLines = result.Matches[0].MatchCount
	}

	return result
}

// suggestScheme picks the most frequent scheme, breaking ties in the order
// proxy.Schemes lists them. With no prefixes seen it falls back to http.
func suggestScheme(counts map[proxy.Scheme]int) proxy.Scheme {
	best, bestCount := proxy.SchemeHTTP, 0
	for _, s := range proxy.Schemes() {
		if counts[s] > bestCount {
			best, bestCount = s, counts[s]
		}
	}
	return best
}

// BestMatch returns the highest confidence match, or nil if none found.
func (r *DetectionResult) BestMatch() *LayoutMatch {
	if len(r.Matches) == 0 {
		return nil
	}
	return &r.Matches[0]
}

// HasMatch returns true if at least one layout matched.
func (r *DetectionResult) HasMatch() bool {
	return len(r.Matches) > 0
}
