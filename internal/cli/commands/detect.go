package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ccollicutt/proxylist/pkg/config"
	"github.com/ccollicutt/proxylist/pkg/detector"
)

// DetectOptions holds command-line options for the detect command.
type DetectOptions struct {
	Output      string
	SampleSize  int
	ShowAll     bool
	WriteConfig string
}

// NewDetectCommand creates the detect command.
func NewDetectCommand() *cobra.Command {
	opts := &DetectOptions{}

	cmd := &cobra.Command{
		Use:   "detect <proxy-list>",
		Short: "Detect the line layout of a proxy list",
		Long: `Analyze a proxy list to work out how its lines are laid out.

Samples lines from the file and tries each known layout against them.
Reports the best layout with a confidence score, the scheme suggested by
any scheme:// prefixes, and a ready-to-use pattern for the config file.

Optionally generates a starter config file with --write-config.

Supports:
  - URLs, with or without user:pass@ credentials
  - host:port:user:pass
  - user:pass@host:port
  - host:port
  - bare hosts (the scheme's default port is used)

Example:
  proxylist detect proxies.txt
  proxylist detect --sample 500 big-list.txt
  proxylist detect --write-config proxylist.yaml proxies.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().IntVarP(&opts.SampleSize, "sample", "n", 100, "Number of lines to sample")
	cmd.Flags().BoolVar(&opts.ShowAll, "all", false, "Show all matching layouts, not just the best match")
	cmd.Flags().StringVarP(&opts.WriteConfig, "write-config", "w", "", "Write starter config to file (will not overwrite)")

	return cmd
}

func runDetect(cmd *cobra.Command, args []string, opts *DetectOptions) error {
	listFile := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	if opts.Output != "text" && opts.Output != "json" {
		return fmt.Errorf("unknown output format %q (use text or json)", opts.Output)
	}

	if _, err := os.Stat(listFile); os.IsNotExist(err) {
		return fmt.Errorf("proxy list not found: %s", listFile)
	}

	d := detector.New(detector.WithSampleSize(opts.SampleSize))

	result, err := d.DetectFromFile(ctx, listFile)
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}

	if opts.WriteConfig != "" {
		if err := writeStarterConfig(out, result, listFile, opts.WriteConfig); err != nil {
			return err
		}
	}

	if opts.Output == "json" {
		return outputDetectJSON(out, result, listFile, opts)
	}
	return outputDetectText(out, result, listFile, opts)
}

func outputDetectText(w io.Writer, result *detector.DetectionResult, listFile string, opts *DetectOptions) error {
	p := func(format string, args ...any) { _, _ = fmt.Fprintf(w, format, args...) }

	p("=== Proxy List Layout Detection ===\n\n")
	p("File: %s\n", listFile)
	p("Lines sampled: %d\n", result.SampledLines)
	p("Lines parsed: %d\n\n", result.ParsedLines)

	if !result.HasMatch() {
		p("No known layout detected.\n\n")
		p("Tip: The list may use an uncommon layout.\n")
		p("Write a pattern with named groups host, port, username and password.\n")
		return nil
	}

	best := result.BestMatch()
	p("Detected Layout: %s\n", best.Layout.Name)
	p("Confidence: %.1f%% (%d/%d lines parsed)\n", best.Confidence*100, best.MatchCount, result.SampledLines)
	p("Suggested scheme: %s\n\n", result.SuggestedScheme)
	p("Sample match:\n  %s\n", best.SampleLine)
	p("Parsed as: %s\n\n", best.Parsed.String())

	if len(result.SchemeCounts) > 1 {
		p("Note: the list mixes schemes; only %s is used for lines without a prefix.\n\n", result.SuggestedScheme)
	}

	p("--- Configuration snippet (copy to your config file) ---\n\n")
	p("scheme: %s\n", result.SuggestedScheme)
	p("pattern: '%s'\n\n", best.Layout.PatternStr)

	if opts.ShowAll && len(result.Matches) > 1 {
		p("--- Alternative layouts detected ---\n")
		for i, m := range result.Matches[1:] {
			p("%d. %s (%.1f%% confidence)\n", i+2, m.Layout.Name, m.Confidence*100)
			p("   pattern: '%s'\n", m.Layout.PatternStr)
		}
		p("\n")
	}

	return nil
}

// JSONMatch represents a layout match in JSON output.
type JSONMatch struct {
	Name       string  `json:"name"`
	Pattern    string  `json:"pattern"`
	Confidence float64 `json:"confidence"`
	MatchCount int     `json:"match_count"`
	SampleLine string  `json:"sample_line"`
	Parsed     string  `json:"parsed"`
}

// JSONOutput represents the full JSON output.
type JSONOutput struct {
	File            string         `json:"file"`
	Matches         []JSONMatch    `json:"matches"`
	SampledLines    int            `json:"sampled_lines"`
	ParsedLines     int            `json:"parsed_lines"`
	SuggestedScheme string         `json:"suggested_scheme"`
	SchemeCounts    map[string]int `json:"scheme_counts,omitempty"`
}

func outputDetectJSON(w io.Writer, result *detector.DetectionResult, listFile string, opts *DetectOptions) error {
	out := JSONOutput{
		File:            listFile,
		SampledLines:    result.SampledLines,
		ParsedLines:     result.ParsedLines,
		SuggestedScheme: string(result.SuggestedScheme),
		Matches:         make([]JSONMatch, 0),
	}
	if len(result.SchemeCounts) > 0 {
		out.SchemeCounts = make(map[string]int, len(result.SchemeCounts))
		for s, n := range result.SchemeCounts {
			out.SchemeCounts[string(s)] = n
		}
	}

	matches := result.Matches
	if !opts.ShowAll && len(matches) > 1 {
		matches = matches[:1] // Only show best match
	}

	for _, m := range matches {
		out.Matches = append(out.Matches, JSONMatch{
			Name:       m.Layout.Name,
			Pattern:    m.Layout.PatternStr,
			Confidence: m.Confidence,
			MatchCount: m.MatchCount,
			SampleLine: m.SampleLine,
			Parsed:     m.Parsed.String(),
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// writeStarterConfig generates a starter config file with the detected layout.
func writeStarterConfig(w io.Writer, result *detector.DetectionResult, listFile, configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s (will not overwrite)", configPath)
	}

	if !result.HasMatch() {
		return fmt.Errorf("cannot generate config: no layout detected")
	}

	data, err := generateStarterConfig(listFile, result)
	if err != nil {
		return err
	}

	// #nosec G306 - config file doesn't need restrictive permissions
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	_, _ = fmt.Fprintf(w, "Wrote starter config to: %s\n\n", configPath)
	return nil
}

// generateStarterConfig renders a config for the detected layout. The
// result is loadable by config.Load as written.
func generateStarterConfig(listFile string, result *detector.DetectionResult) ([]byte, error) {
	best := result.BestMatch()

	absListFile := listFile
	if abs, err := filepath.Abs(listFile); err == nil {
		absListFile = abs
	}

	cfg := config.DefaultConfig()
	cfg.Sources = []string{absListFile}
	cfg.Scheme = string(result.SuggestedScheme)
	cfg.Pattern = best.Layout.PatternStr
	cfg.SkipInvalid = best.Confidence < 1

	body, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("rendering config: %w", err)
	}

	header := fmt.Sprintf(`# proxylist configuration
# Generated by: proxylist detect
# Detected layout: %s (%.0f%% confidence)
#
# Add more lists or globs under sources, and filter lines with
# include_patterns / exclude_patterns files (one regex per line).

`, best.Layout.Name, best.Confidence*100)

	return append([]byte(header), body...), nil
}
