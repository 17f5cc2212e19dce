// Package output provides formatting and output generation for parse results.
package output

import (
	"time"

	"github.com/samber/lo"

	"github.com/ccollicutt/proxylist/pkg/pipeline"
	"github.com/ccollicutt/proxylist/pkg/proxy"
)

// Report is the complete output of a parse run.
type Report struct {
	Summary  Summary       `json:"summary"`
	Proxies  []proxy.Proxy `json:"proxies"`
	Failures []Failure     `json:"failures,omitempty"`
	Metadata Metadata      `json:"metadata"`
}

// Summary provides aggregate statistics.
type Summary struct {
	Records         int  `json:"records"`
	UniqueAddresses int  `json:"unique_addresses"`
	WithCredentials int  `json:"with_credentials"`
	Failures        int  `json:"failures"`
	LinesRead       int  `json:"lines_read"`
	LinesFiltered   int  `json:"lines_filtered"`
	Duplicates      int  `json:"duplicates,omitempty"`
	Truncated       bool `json:"truncated,omitempty"`
}

// Failure is a line that could not be parsed.
type Failure struct {
	Position int    `json:"position"`
	Line     string `json:"line"`
	Reason   string `json:"reason"`
	Error    string `json:"error"`
	// Source and SourceLine are set when the line came from a file.
	Source     string `json:"source,omitempty"`
	SourceLine int    `json:"source_line,omitempty"`
}

// Metadata provides context about the run.
type Metadata struct {
	RunID      string        `json:"run_id"`
	ConfigFile string        `json:"config_file,omitempty"`
	Sources    []string      `json:"sources,omitempty"`
	Scheme     proxy.Scheme  `json:"scheme"`
	ParsedAt   time.Time     `json:"parsed_at"`
	Duration   time.Duration `json:"duration_ns"`
}

// NewReport creates a Report from a pipeline result.
func NewReport(result *pipeline.Result, configFile string, sources []string) *Report {
	unique := lo.UniqBy(result.Records, func(p proxy.Proxy) string { return p.Addr() })

	return &Report{
		Proxies: result.Records,
		Failures: lo.Map(result.Failures, func(f pipeline.Failure, _ int) Failure {
			return Failure{
				Position:   f.Position,
				Line:       f.Line,
				Reason:     f.Reason,
				Error:      f.Err.Error(),
				Source:     f.Source,
				SourceLine: f.SourceLine,
			}
		}),
		Metadata: Metadata{
			RunID:      result.RunID,
			ConfigFile: configFile,
			Sources:    sources,
			Scheme:     result.Scheme,
			ParsedAt:   result.EndTime,
			Duration:   result.Duration(),
		},
		Summary: Summary{
			Records:         len(result.Records),
			UniqueAddresses: len(unique),
			WithCredentials: lo.CountBy(result.Records, proxy.Proxy.HasCredentials),
			Failures:        len(result.Failures),
			LinesRead:       result.LinesRead,
			LinesFiltered:   result.LinesFiltered,
			Duplicates:      result.Duplicates,
			Truncated:       result.Truncated,
		},
	}
}

// HasRecords returns true if at least one proxy was parsed.
func (r *Report) HasRecords() bool {
	return r.Summary.Records > 0
}

// HasFailures returns true if any line failed to parse.
func (r *Report) HasFailures() bool {
	return r.Summary.Failures > 0
}
