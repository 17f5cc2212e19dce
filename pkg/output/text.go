package output

import (
	"context"
	"fmt"
	"io"
)

// TextFormatter formats reports as human-readable text.
type TextFormatter struct {
	opts FormatOptions
}

// NewTextFormatter creates a new text formatter with the given options.
func NewTextFormatter(opts FormatOptions) *TextFormatter {
	return &TextFormatter{opts: opts}
}

// Name returns the format name.
func (f *TextFormatter) Name() string {
	return "text"
}

// Format renders the report as text.
func (f *TextFormatter) Format(_ context.Context, report *Report, w io.Writer) error {
	if f.opts.Quiet {
		return f.formatQuiet(report, w)
	}
	return f.formatFull(report, w)
}

func (f *TextFormatter) formatQuiet(report *Report, w io.Writer) error {
	_, err := fmt.Fprintf(w, "proxylist: %d proxies, %d failures, %d lines read\n",
		report.Summary.Records,
		report.Summary.Failures,
		report.Summary.LinesRead)
	return err
}

func (f *TextFormatter) formatFull(report *Report, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.println("=== proxylist report ===")
	ew.println()

	if len(report.Proxies) == 0 {
		ew.println("No proxies parsed")
	}
	for _, p := range report.Proxies {
		ew.printf("%s\n", p)
	}
	ew.println()

	if len(report.Failures) > 0 {
		ew.printf("Failures: %d line(s)\n", len(report.Failures))
		for _, fl := range report.Failures {
			where := fmt.Sprintf("line %d", fl.Position)
			if fl.Source != "" {
				where = fmt.Sprintf("%s:%d", fl.Source, fl.SourceLine)
			}
			if f.opts.Verbose {
				ew.printf("  - %s (%s): %q\n", where, fl.Reason, fl.Line)
				ew.printf("    %s\n", fl.Error)
			} else {
				ew.printf("  - %s (%s)\n", where, fl.Reason)
			}
		}
		ew.println()
	}

	ew.println("---")
	ew.printf("Summary: %d proxies (%d unique addresses, %d with credentials), %d failures\n",
		report.Summary.Records,
		report.Summary.UniqueAddresses,
		report.Summary.WithCredentials,
		report.Summary.Failures)

	if report.Summary.Truncated {
		ew.println("Stopped early: record limit reached")
	}

	if f.opts.Verbose {
		ew.printf("Scheme: %s\n", report.Metadata.Scheme)
		ew.printf("Lines read: %d, filtered: %d\n", report.Summary.LinesRead, report.Summary.LinesFiltered)
		ew.printf("Duration: %s\n", report.Metadata.Duration.Round(1e6))
		ew.printf("Run ID: %s\n", report.Metadata.RunID)
	}

	return ew.err
}

// errWriter keeps the first write error so formatting code can stay linear.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err == nil {
		_, e.err = fmt.Fprintf(e.w, format, args...)
	}
}

func (e *errWriter) println(args ...any) {
	if e.err == nil {
		_, e.err = fmt.Fprintln(e.w, args...)
	}
}
