package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/proxylist/pkg/config"
	"github.com/ccollicutt/proxylist/pkg/detector"
	"github.com/ccollicutt/proxylist/pkg/proxy"
	"github.com/ccollicutt/proxylist/pkg/source"
	"github.com/ccollicutt/proxylist/pkg/webhook"
)

// sampleLines is how many lines of a source the pattern test reads.
const sampleLines = 10

// DiagnoseOptions configures the diagnose command.
type DiagnoseOptions struct {
	Verbose bool
}

type checkStatus string

const (
	statusOK      checkStatus = "ok"
	statusWarning checkStatus = "warning"
	statusError   checkStatus = "error"
)

// DiagnosticResult is the outcome of one check.
type DiagnosticResult struct {
	Check    string
	Status   checkStatus
	Message  string
	Details  []string
	Suggests []string
}

func passed(check, format string, args ...any) DiagnosticResult {
	return DiagnosticResult{Check: check, Status: statusOK, Message: fmt.Sprintf(format, args...)}
}

func warned(check, format string, args ...any) DiagnosticResult {
	return DiagnosticResult{Check: check, Status: statusWarning, Message: fmt.Sprintf(format, args...)}
}

func failed(check, format string, args ...any) DiagnosticResult {
	return DiagnosticResult{Check: check, Status: statusError, Message: fmt.Sprintf(format, args...)}
}

// hint appends suggestions and returns r for chaining.
func (r DiagnosticResult) hint(suggests ...string) DiagnosticResult {
	r.Suggests = append(r.Suggests, suggests...)
	return r
}

const hintWriteConfig = "Generate one with 'proxylist detect <proxy-list> --write-config proxylist.yaml'"

// NewDiagnoseCommand creates the diagnose command
func NewDiagnoseCommand() *cobra.Command {
	opts := &DiagnoseOptions{}

	cmd := &cobra.Command{
		Use:   "diagnose <config-file>",
		Short: "Diagnose common configuration issues",
		Long: `Diagnose common configuration issues.

This command checks your configuration file for common problems:
- Config file syntax and structure
- Source file existence and accessibility
- Pattern matching against lines from the sources
- Webhook settings (and reachability with -v)

Example:
  proxylist diagnose proxylist.yaml
  proxylist diagnose -v proxylist.yaml  # verbose output`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			results := runDiagnose(ctx, args[0], opts)
			printDiagnostics(cmd.OutOrStdout(), results, opts)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show detailed diagnostic output")

	return cmd
}

func runDiagnose(ctx context.Context, configPath string, opts *DiagnoseOptions) []DiagnosticResult {
	exists := checkConfigExists(configPath)
	if exists.Status == statusError {
		return []DiagnosticResult{exists}
	}

	cfg, syntax := checkConfigParseable(ctx, configPath)
	results := []DiagnosticResult{exists, syntax}
	if cfg == nil {
		return results
	}

	results = append(results, checkSources(cfg)...)
	results = append(results, checkPattern(ctx, cfg, opts)...)
	return append(results, checkWebhooks(ctx, cfg, opts)...)
}

func checkConfigExists(path string) DiagnosticResult {
	const check = "Config File"

	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		return failed(check, "Config file not found: %s", path).
			hint("Check the file path is correct", hintWriteConfig)
	case err != nil:
		return failed(check, "Cannot access config file: %v", err).hint("Check file permissions")
	case info.IsDir():
		return failed(check, "%s is a directory, not a config file", path)
	case info.Size() == 0:
		return failed(check, "Config file is empty").hint(hintWriteConfig)
	}
	return passed(check, "Found: %s (%d bytes)", path, info.Size())
}

func checkConfigParseable(ctx context.Context, path string) (*config.Config, DiagnosticResult) {
	const check = "Config Syntax"

	cfg, err := config.Load(ctx, path)
	if err != nil {
		r := failed(check, "Failed to load config: %v", err)
		msg := err.Error()
		switch {
		case strings.Contains(msg, "yaml"):
			r = r.hint("Check YAML syntax: indent with spaces, quote patterns in single quotes")
		case strings.Contains(msg, "pattern"):
			r = r.hint("The pattern needs a (?P<host>...) group",
				"Run 'proxylist detect <proxy-list>' for a pattern that fits the list")
		}
		return nil, r
	}

	r := passed(check, "Config file loaded successfully")
	r.Details = []string{
		fmt.Sprintf("Scheme: %s", cfg.ProxyScheme()),
		fmt.Sprintf("Sources: %d", len(cfg.Sources)),
		fmt.Sprintf("Include patterns: %d", cfg.Includes().Len()),
		fmt.Sprintf("Exclude patterns: %d", cfg.Excludes().Len()),
	}
	return cfg, r
}

func checkSources(cfg *config.Config) []DiagnosticResult {
	if len(cfg.Sources) == 0 {
		return []DiagnosticResult{
			warned("Sources", "No sources defined").
				hint("List proxy files under sources:", "Or pipe a list in with 'proxylist parse --stdin'"),
		}
	}

	var results []DiagnosticResult
	found := 0
	for _, src := range cfg.Sources {
		r, n := checkSource(src)
		found += n
		results = append(results, r)
	}

	if found == 0 {
		results = append(results,
			failed("Sources Summary", "None of the %d source(s) resolves to a readable proxy list", len(cfg.Sources)).
				hint("Ensure at least one proxy list exists and is readable"))
	}
	return results
}

// checkSource inspects one source entry and returns how many readable files
// it contributes.
func checkSource(src string) (DiagnosticResult, int) {
	check := "Source: " + src

	if strings.ContainsAny(src, "*?[") {
		matches, err := filepath.Glob(src)
		switch {
		case err != nil:
			return failed(check, "Invalid glob pattern: %v", err), 0
		case len(matches) == 0:
			return warned(check, "Glob matches no files").
				hint("Check the directory holds the proxy lists", "Verify the glob pattern syntax"), 0
		}
		r := passed(check, "Matches %d file(s)", len(matches))
		r.Details = matches
		return r, len(matches)
	}

	info, err := os.Stat(src)
	switch {
	case os.IsNotExist(err):
		return failed(check, "File does not exist").hint("Check the proxy list path"), 0
	case err != nil:
		return failed(check, "Cannot access file: %v", err).hint("Check file permissions"), 0
	case info.IsDir():
		return failed(check, "Source is a directory").
			hint("Use a glob to pick files inside it, e.g. /etc/proxies/*.txt"), 0
	case info.Size() == 0:
		return warned(check, "File is empty (0 bytes)"), 0
	}
	return passed(check, "File exists (%d bytes)", info.Size()), 1
}

// checkPattern parses the first lines of the first readable source with the
// configured pattern.
func checkPattern(ctx context.Context, cfg *config.Config, opts *DiagnoseOptions) []DiagnosticResult {
	lp, err := proxy.NewLinePattern(cfg.ProxyScheme(), cfg.CompiledPattern())
	if err != nil {
		return []DiagnosticResult{failed("Pattern", "%v", err)}
	}

	valid := passed("Pattern", "Pattern is valid")
	valid.Details = []string{
		"Pattern: " + cfg.Pattern,
		"Groups: " + declaredGroups(lp),
	}
	results := []DiagnosticResult{valid}

	files, err := source.ExpandGlobs(cfg.Sources)
	if err != nil {
		return results
	}

	for _, file := range files {
		if !fileExists(file) {
			continue
		}
		check := "Pattern Test: " + filepath.Base(file)

		lines, err := sampleSource(ctx, file, cfg)
		if err != nil {
			results = append(results, warned(check, "Cannot read file: %v", err))
			continue
		}
		if len(lines) == 0 {
			continue
		}
		// Only the first readable file is sampled.
		return append(results, testPattern(check, file, lp, lines, cfg, opts))
	}
	return results
}

func testPattern(check, file string, lp *proxy.LinePattern, lines []string, cfg *config.Config, opts *DiagnoseOptions) DiagnosticResult {
	var good []proxy.Proxy
	var firstGood, firstBad string
	for _, line := range lines {
		p, err := lp.Parse(line)
		if err != nil {
			if firstBad == "" {
				firstBad = line
			}
			continue
		}
		if len(good) == 0 {
			firstGood = line
		}
		good = append(good, p)
	}

	badSample := []string{"First line that did not parse:", truncate(firstBad, 80)}

	switch {
	case len(good) == 0:
		r := failed(check, "Pattern matches no lines in the proxy list").
			hint("Run 'proxylist detect " + file + "' to find a pattern for this list")
		r.Details = badSample

		d := detector.New(detector.WithSampleSize(sampleLines))
		if det := d.DetectFromLines(lines); det.HasMatch() {
			best := det.BestMatch()
			r = r.hint(
				"Detected layout: "+best.Layout.Name,
				"Suggested scheme: "+string(det.SuggestedScheme),
				"Suggested pattern: "+best.Layout.PatternStr,
			)
		}
		return r

	case len(good) < len(lines):
		r := warned(check, "Pattern matches only %d/%d sample lines", len(good), len(lines))
		r.Details = badSample
		if !cfg.SkipInvalid {
			r = r.hint("Set skip_invalid: true or parse will stop at the first bad line")
		}
		return r
	}

	r := passed(check, "Pattern matches %d/%d sample lines", len(good), len(lines))
	if opts.Verbose {
		r.Details = []string{"Sample match:", truncate(firstGood, 80), "Parsed as: " + good[0].String()}
	}
	return r
}

// sampleSource reads up to sampleLines lines the way parse would see them.
func sampleSource(ctx context.Context, file string, cfg *config.Config) ([]string, error) {
	src := source.NewFileSource([]string{file},
		source.WithSkipBlank(true),
		source.WithCommentPrefix(cfg.CommentPrefix),
	)
	defer src.Close()

	var lines []string
	for len(lines) < sampleLines {
		line, err := src.Read(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if cfg.Excludes().IsMatch(line) {
			continue
		}
		if cfg.Includes() != nil && !cfg.Includes().IsMatch(line) {
			continue
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func checkWebhooks(ctx context.Context, cfg *config.Config, opts *DiagnoseOptions) []DiagnosticResult {
	if len(cfg.Webhooks) == 0 {
		if opts.Verbose {
			return []DiagnosticResult{passed("Webhooks", "No webhooks configured (optional)")}
		}
		return nil
	}

	client := webhook.NewClient()
	var results []DiagnosticResult
	for _, wh := range cfg.Webhooks {
		name := wh.Name
		if name == "" {
			name = wh.URL
		}
		check := "Webhook: " + name

		r := passed(check, "Trigger: %s", wh.Trigger)
		if wh.Trigger == config.WebhookTriggerNever {
			r = warned(check, "Trigger is never; this webhook will not fire")
		}
		if !opts.Verbose {
			results = append(results, r)
			continue
		}

		r.Details = []string{"URL: " + wh.URL, "Timeout: " + wh.Timeout.String()}
		if wh.Token != "" {
			r.Details = append(r.Details, "Token: configured")
		}
		results = append(results, r, checkWebhookConnectivity(ctx, client, wh, name))
	}
	return results
}

func checkWebhookConnectivity(ctx context.Context, client *webhook.Client, wh config.WebhookConfig, name string) DiagnosticResult {
	check := "Webhook Connectivity: " + name

	resp := client.Ping(ctx, webhook.SendOptions{URL: wh.URL, Token: wh.Token, Timeout: 5 * time.Second})
	if resp.Error != nil {
		return warned(check, "Cannot connect: %v", resp.Error).
			hint("Check the webhook URL", "Check that this host can reach the endpoint")
	}

	// The probe is a HEAD request; endpoints that only accept POST still count
	// as reachable.
	if resp.StatusCode >= 400 {
		return warned(check, "Reachable but HEAD returned status %d", resp.StatusCode).
			hint("Endpoints that only accept POST still work during parse", "Check the token if the endpoint requires one")
	}
	return passed(check, "Reachable (status %d)", resp.StatusCode)
}

func printDiagnostics(w io.Writer, results []DiagnosticResult, opts *DiagnoseOptions) {
	p := func(format string, args ...any) { _, _ = fmt.Fprintf(w, format, args...) }
	labels := map[checkStatus]string{statusOK: "PASS", statusWarning: "WARN", statusError: "FAIL"}
	counts := map[checkStatus]int{}

	p("=== proxylist Configuration Diagnostics ===\n\n")

	for _, r := range results {
		counts[r.Status]++
		p("[%s] %s\n    %s\n", labels[r.Status], r.Check, r.Message)

		if opts.Verbose || r.Status != statusOK {
			for _, d := range r.Details {
				p("      - %s\n", d)
			}
		}
		for _, s := range r.Suggests {
			p("      Hint: %s\n", s)
		}
		p("\n")
	}

	p("---\nSummary: %d passed, %d warnings, %d errors\n",
		counts[statusOK], counts[statusWarning], counts[statusError])

	switch {
	case counts[statusError] > 0:
		p("\nFix the errors above before parsing.\n")
	case counts[statusWarning] > 0:
		p("\nConfiguration is usable but has warnings.\n")
	default:
		p("\nConfiguration looks good!\n")
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
