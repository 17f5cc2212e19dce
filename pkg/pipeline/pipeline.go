// Package pipeline runs proxy lines through filtering and parsing and
// gathers what came out.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/ccollicutt/proxylist/pkg/metrics"
	"github.com/ccollicutt/proxylist/pkg/patternset"
	"github.com/ccollicutt/proxylist/pkg/proxy"
	"github.com/ccollicutt/proxylist/pkg/reader"
)

// Pipeline turns raw lines into proxies for one scheme and pattern.
type Pipeline struct {
	scheme  proxy.Scheme
	pattern *regexp.Regexp

	// Options
	includes    *patternset.Set
	excludes    *patternset.Set
	skipInvalid bool
	prescan     bool
	limit       int
	dedupe      bool
	progress    func(percent float64, known bool)
	onRecord    func(proxy.Proxy)
	logger      *slog.Logger
	metrics     *metrics.Collector
}

// Option configures pipeline behavior.
type Option func(*Pipeline)

// WithIncludes keeps only lines matched by set. A nil set disables include
// filtering; an empty set keeps nothing.
func WithIncludes(set *patternset.Set) Option {
	return func(p *Pipeline) {
		p.includes = set
	}
}

// WithExcludes drops lines matched by set.
func WithExcludes(set *patternset.Set) Option {
	return func(p *Pipeline) {
		p.excludes = set
	}
}

// WithSkipInvalid records unparseable lines as failures instead of
// aborting the run.
func WithSkipInvalid(skip bool) Option {
	return func(p *Pipeline) {
		p.skipInvalid = skip
	}
}

// WithPrescan buffers the input once before parsing so its length, and
// therefore progress, is known even for one-shot sources.
func WithPrescan(prescan bool) Option {
	return func(p *Pipeline) {
		p.prescan = prescan
	}
}

// WithLimit stops the run after n records. Zero means no limit.
func WithLimit(n int) Option {
	return func(p *Pipeline) {
		if n >= 0 {
			p.limit = n
		}
	}
}

// WithDedupe drops records whose URL form was already produced in the run.
func WithDedupe(dedupe bool) Option {
	return func(p *Pipeline) {
		p.dedupe = dedupe
	}
}

// WithRecordHandler calls fn for every record as soon as it is parsed.
func WithRecordHandler(fn func(proxy.Proxy)) Option {
	return func(p *Pipeline) {
		p.onRecord = fn
	}
}

// WithProgress registers fn to be called as lines are consumed.
func WithProgress(fn func(percent float64, known bool)) Option {
	return func(p *Pipeline) {
		p.progress = fn
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

func WithMetrics(c *metrics.Collector) Option {
	return func(p *Pipeline) {
		p.metrics = c
	}
}

// New creates a pipeline. The pattern is checked up front: it must declare a
// host group, and a port group unless the scheme has a default port.
func New(scheme proxy.Scheme, pattern *regexp.Regexp, opts ...Option) (*Pipeline, error) {
	if _, err := proxy.NewLinePattern(scheme, pattern); err != nil {
		return nil, err
	}

	p := &Pipeline{
		scheme:  scheme,
		pattern: pattern,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Positioner is implemented by line sources that can name the file and
// physical line of the last line they returned.
type Positioner interface {
	Position() (file string, line int)
}

// Failure is a line that could not be parsed.
type Failure struct {
	// Position is the 1-based index of the line among the lines that
	// reached the parser.
	Position int
	Line     string
	Reason   string
	Err      error

	// Source and SourceLine locate the line in its file when the input
	// implements Positioner. They are empty with prescan, which reads the
	// whole input before parsing starts.
	Source     string
	SourceLine int
}

// Result contains the complete output of a run.
type Result struct {
	RunID    string
	Scheme   proxy.Scheme
	Records  []proxy.Proxy
	Failures []Failure

	// LinesRead counts raw lines consumed, LinesFiltered those dropped by
	// include or exclude patterns.
	LinesRead     int
	LinesFiltered int

	// Duplicates counts records dropped by deduplication.
	Duplicates int

	// Truncated is set when the record limit stopped the run early.
	Truncated bool

	StartTime time.Time
	EndTime   time.Time
}

// Duration returns how long the run took.
func (r *Result) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// HasFailures reports whether any line failed to parse.
func (r *Result) HasFailures() bool {
	return len(r.Failures) > 0
}

// Run reads lines to the end, or to the record limit, and returns the
// parsed proxies. Run takes ownership of lines and closes it, along with
// every decorator built on top of it, before returning.
func (p *Pipeline) Run(ctx context.Context, lines reader.Reader[string]) (*Result, error) {
	result := &Result{
		RunID:     uuid.NewString(),
		Scheme:    p.scheme,
		Records:   []proxy.Proxy{},
		StartTime: time.Now(),
	}
	log := p.logger.With("run_id", result.RunID)

	locate, _ := lines.(Positioner)

	var raw reader.Reader[string] = lines
	if p.prescan {
		locate = nil
		replay := reader.Replay(lines)
		raw = replay
		n, err := p.drain(ctx, replay)
		if err != nil {
			_ = replay.Close()
			return nil, fmt.Errorf("prescanning lines: %w", err)
		}
		if err := replay.Reset(ctx); err != nil {
			_ = replay.Close()
			return nil, fmt.Errorf("prescanning lines: %w", err)
		}
		log.Debug("prescan complete", "lines", n)
	}

	var filters []*reader.Filtered[string]
	chain := raw
	if p.includes != nil {
		f := p.includes.Filter(chain)
		filters = append(filters, f)
		chain = f
	}
	if p.excludes != nil {
		f := p.excludes.Exclude(chain)
		filters = append(filters, f)
		chain = f
	}

	parser, err := proxy.NewParser(chain, p.scheme, p.pattern)
	if err != nil {
		_ = chain.Close()
		return nil, err
	}
	defer parser.Close()

	seen := make(map[string]struct{})
	for {
		if p.limit > 0 && len(result.Records) >= p.limit {
			result.Truncated = true
			break
		}

		record, err := parser.Read(ctx)
		if err == io.EOF {
			break
		}

		var perr *proxy.ParseError
		if errors.As(err, &perr) {
			p.metrics.RecordFailure(perr)
			if !p.skipInvalid {
				return nil, err
			}
			failure := Failure{
				Position: perr.Position,
				Line:     perr.Line,
				Reason:   metrics.Reason(perr),
				Err:      perr.Err,
			}
			if locate != nil {
				failure.Source, failure.SourceLine = locate.Position()
			}
			result.Failures = append(result.Failures, failure)
			log.Debug("skipping invalid line", "position", perr.Position, "error", perr.Err)
			p.report(raw)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading lines: %w", err)
		}

		if p.dedupe {
			key := record.String()
			if _, dup := seen[key]; dup {
				result.Duplicates++
				p.report(raw)
				continue
			}
			seen[key] = struct{}{}
		}

		result.Records = append(result.Records, record)
		p.metrics.RecordParsed(record.Scheme)
		if p.onRecord != nil {
			p.onRecord(record)
		}
		p.report(raw)
	}

	result.LinesRead = raw.Index()
	for _, f := range filters {
		result.LinesFiltered += f.Dropped()
	}
	result.EndTime = time.Now()
	p.report(raw)

	p.metrics.AddLinesRead(result.LinesRead)
	p.metrics.AddLinesFiltered(result.LinesFiltered)
	p.metrics.ObserveRun(result.Duration().Seconds())

	log.Info("parse run complete",
		"scheme", p.scheme,
		"records", len(result.Records),
		"failures", len(result.Failures),
		"lines_read", result.LinesRead,
		"lines_filtered", result.LinesFiltered,
		"duplicates", result.Duplicates,
		"truncated", result.Truncated,
		"duration", result.Duration(),
	)

	return result, nil
}

func (p *Pipeline) drain(ctx context.Context, r reader.Reader[string]) (int, error) {
	n := 0
	for {
		_, err := r.Read(ctx)
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

func (p *Pipeline) report(raw reader.Reader[string]) {
	if p.progress == nil {
		return
	}
	p.progress(reader.Progress(raw))
}
