package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/proxylist/pkg/config"
	"github.com/ccollicutt/proxylist/pkg/metrics"
	"github.com/ccollicutt/proxylist/pkg/output"
	"github.com/ccollicutt/proxylist/pkg/pipeline"
	"github.com/ccollicutt/proxylist/pkg/proxy"
	"github.com/ccollicutt/proxylist/pkg/reader"
	"github.com/ccollicutt/proxylist/pkg/source"
	"github.com/ccollicutt/proxylist/pkg/webhook"
)

// ExitCode is set by commands to indicate the result
var ExitCode = 0

// ParseOptions holds command-line options for the parse command.
type ParseOptions struct {
	Output      string
	Verbose     bool
	Quiet       bool
	Limit       int
	SkipInvalid bool
	Prescan     bool
	Dedupe      bool

	Stdin       bool
	Follow      bool
	FromEnd     bool
	MergeSorted bool

	MetricsFile string

	// Webhook options
	WebhookURL     string
	WebhookToken   string
	WebhookTrigger string
}

// NewParseCommand creates the parse command.
func NewParseCommand() *cobra.Command {
	opts := &ParseOptions{}

	cmd := &cobra.Command{
		Use:   "parse <config-file>",
		Short: "Parse proxy lists into records",
		Long: `Parse the proxy lists named in the configuration file.

Every line that survives the include and exclude patterns is matched
against the configured pattern and turned into a proxy record. Lines the
pattern does not match stop the run, unless --skip-invalid is given, in
which case they are reported as failures.

Input can also come from standard input (--stdin) or from a single file
that keeps growing (--follow). Follow mode prints each proxy as it is
parsed and stops on interrupt or when the file is removed.

Exit codes:
  0 - All lines parsed
  1 - Some lines failed to parse (with --skip-invalid)
  2 - Configuration or runtime error`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json|list)")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show failed lines and run details")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Summary only, no details")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Stop after this many proxies (0 means no limit)")
	cmd.Flags().BoolVar(&opts.SkipInvalid, "skip-invalid", false, "Report unparseable lines instead of stopping")
	cmd.Flags().BoolVar(&opts.Prescan, "prescan", false, "Count lines before parsing so progress is known")
	cmd.Flags().BoolVar(&opts.Dedupe, "dedupe", false, "Drop proxies already seen in this run")

	cmd.Flags().BoolVar(&opts.Stdin, "stdin", false, "Read lines from standard input instead of the configured sources")
	cmd.Flags().BoolVarP(&opts.Follow, "follow", "f", false, "Follow a single growing source file")
	cmd.Flags().BoolVar(&opts.FromEnd, "from-end", false, "With --follow, start at the end of the file")
	cmd.Flags().BoolVar(&opts.MergeSorted, "merge-sorted", false, "Merge sorted source files into one sorted stream")

	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the run")

	// Webhook flags
	cmd.Flags().StringVar(&opts.WebhookURL, "webhook-url", "", "Webhook endpoint URL")
	cmd.Flags().StringVar(&opts.WebhookToken, "webhook-token", "", "Bearer token for webhook auth")
	cmd.Flags().StringVar(&opts.WebhookTrigger, "webhook-trigger", string(config.WebhookTriggerOnRecords), "When to fire webhook (on_records|always|never)")

	return cmd
}

func runParse(cmd *cobra.Command, args []string, opts *ParseOptions) error {
	configPath := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := slog.Default()
	out := cmd.OutOrStdout()

	if opts.Stdin && opts.Follow {
		return errors.New("--stdin and --follow cannot be combined")
	}
	if opts.Follow && opts.Prescan {
		return errors.New("--prescan cannot be used with --follow")
	}

	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	webhooks, err := collectWebhooks(cfg, opts)
	if err != nil {
		return err
	}

	formatOpts := output.FormatOptions{Verbose: opts.Verbose, Quiet: opts.Quiet}
	if opts.Follow {
		// proxies are streamed as they arrive, so the final report is a summary
		formatOpts.Quiet = true
	}
	formatter, err := output.New(opts.Output, formatOpts)
	if err != nil {
		return err
	}

	var collector *metrics.Collector
	if opts.MetricsFile != "" {
		collector = metrics.New()
	}

	pipeOpts := []pipeline.Option{
		pipeline.WithIncludes(cfg.Includes()),
		pipeline.WithExcludes(cfg.Excludes()),
		pipeline.WithSkipInvalid(cfg.SkipInvalid || opts.SkipInvalid),
		pipeline.WithPrescan((cfg.Prescan || opts.Prescan) && !opts.Follow),
		pipeline.WithLimit(opts.Limit),
		pipeline.WithDedupe(opts.Dedupe),
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(collector),
		pipeline.WithProgress(progressLogger(logger)),
	}

	if opts.Follow {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		pipeOpts = append(pipeOpts, pipeline.WithRecordHandler(func(p proxy.Proxy) {
			_, _ = fmt.Fprintln(out, p.String())
		}))
	}

	p, err := pipeline.New(cfg.ProxyScheme(), cfg.CompiledPattern(), pipeOpts...)
	if err != nil {
		return fmt.Errorf("creating pipeline: %w", err)
	}

	lines, sources, err := openLines(cmd, cfg, opts)
	if err != nil {
		return err
	}

	result, err := p.Run(ctx, lines)
	if err != nil {
		return fmt.Errorf("parse failed: %w", err)
	}

	report := output.NewReport(result, configPath, sources)

	// In follow mode ctx is cancelled by now; the report still goes out.
	ctx = context.WithoutCancel(ctx)

	if !(opts.Follow && formatter.Name() == "list") {
		if err := formatter.Format(ctx, report, out); err != nil {
			return fmt.Errorf("formatting output: %w", err)
		}
	}

	// Webhook errors are logged but don't fail the run
	if len(webhooks) > 0 {
		webhook.NewClient().Dispatch(ctx, webhooks, report, logger)
	}

	if collector != nil {
		if err := collector.WriteTextfile(opts.MetricsFile); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
		logger.Debug("metrics written", "path", opts.MetricsFile)
	}

	if report.HasFailures() {
		ExitCode = 1
	}

	return nil
}

// openLines builds the line reader for a run and names its sources for the
// report.
func openLines(cmd *cobra.Command, cfg *config.Config, opts *ParseOptions) (reader.Reader[string], []string, error) {
	keep := lineFilter(cfg)

	if opts.Stdin {
		return reader.Filter[string](source.NewStreamSource(cmd.InOrStdin()), keep), []string{"-"}, nil
	}

	files, err := source.ExpandGlobs(cfg.Sources)
	if err != nil {
		return nil, nil, fmt.Errorf("expanding sources: %w", err)
	}
	if len(files) == 0 {
		return nil, nil, errors.New("no sources configured (add sources to the config or use --stdin)")
	}

	fileOpts := []source.FileOption{
		source.WithSkipBlank(cfg.SkipBlank),
		source.WithCommentPrefix(cfg.CommentPrefix),
	}

	switch {
	case opts.Follow:
		if len(files) != 1 {
			return nil, nil, fmt.Errorf("--follow needs exactly one source file, got %d", len(files))
		}
		followOpts := []source.FollowOption{}
		if opts.FromEnd {
			followOpts = append(followOpts, source.WithFromEnd())
		}
		fs, err := source.NewFollowSource(files[0], followOpts...)
		if err != nil {
			return nil, nil, err
		}
		return reader.Filter[string](untilCanceled{fs}, keep), files, nil

	case opts.MergeSorted && len(files) > 1:
		readers := make([]reader.Reader[string], len(files))
		for i, file := range files {
			readers[i] = source.NewFileSource([]string{file}, fileOpts...)
		}
		return reader.Merge[string](func(a, b string) bool { return a < b }, readers...), files, nil

	default:
		return source.NewFileSource(files, fileOpts...), files, nil
	}
}

// lineFilter mirrors the blank and comment handling of FileSource for
// sources that have none of their own.
func lineFilter(cfg *config.Config) func(string) bool {
	return func(line string) bool {
		trimmed := strings.TrimSpace(line)
		if cfg.SkipBlank && trimmed == "" {
			return false
		}
		return cfg.CommentPrefix == "" || !strings.HasPrefix(trimmed, cfg.CommentPrefix)
	}
}

// untilCanceled ends a followed file cleanly when the run is interrupted.
type untilCanceled struct {
	*source.FollowSource
}

func (u untilCanceled) Read(ctx context.Context) (string, error) {
	line, err := u.FollowSource.Read(ctx)
	if errors.Is(err, context.Canceled) {
		return "", io.EOF
	}
	return line, err
}

// progressLogger logs every tenth percent of a run whose length is known.
func progressLogger(logger *slog.Logger) func(float64, bool) {
	next := 10.0
	return func(percent float64, known bool) {
		if !known || percent < next {
			return
		}
		logger.Debug("parse progress", "percent", percent)
		for next <= percent {
			next += 10
		}
	}
}

// collectWebhooks merges config file webhooks with the CLI webhook.
func collectWebhooks(cfg *config.Config, opts *ParseOptions) ([]config.WebhookConfig, error) {
	webhooks := make([]config.WebhookConfig, 0, len(cfg.Webhooks)+1)
	webhooks = append(webhooks, cfg.Webhooks...)

	if opts.WebhookURL != "" {
		wh := config.WebhookConfig{
			Name:    "cli",
			URL:     opts.WebhookURL,
			Token:   opts.WebhookToken,
			Trigger: config.WebhookTrigger(opts.WebhookTrigger),
		}
		if err := wh.Validate(); err != nil {
			return nil, fmt.Errorf("webhook flags: %w", err)
		}
		webhooks = append(webhooks, wh)
	}

	return webhooks, nil
}
