package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/ccollicutt/proxylist/pkg/config"
	"github.com/ccollicutt/proxylist/pkg/proxy"
	"github.com/ccollicutt/proxylist/pkg/source"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a configuration file",
		Long: `Validate a proxylist configuration file without parsing any lists.

Checks:
  - YAML syntax
  - Scheme is known
  - Pattern compiles and declares a host group
  - Include and exclude pattern files compile
  - Webhook URLs and triggers
  - Source file existence (warning only)`,
		Args: cobra.ExactArgs(1),
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	p := func(format string, args ...any) { _, _ = fmt.Fprintf(cmd.OutOrStdout(), format, args...) }

	p("Validating %s...\n", configPath)

	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	lp, err := proxy.NewLinePattern(cfg.ProxyScheme(), cfg.CompiledPattern())
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	p("\nConfiguration valid!\n")
	p("  Scheme:           %s\n", cfg.ProxyScheme())
	p("  Pattern:          %s\n", cfg.Pattern)
	p("  Groups:           %s\n", declaredGroups(lp))
	p("  Include patterns: %d\n", cfg.Includes().Len())
	p("  Exclude patterns: %d\n", cfg.Excludes().Len())
	p("  Webhooks:         %d\n", len(cfg.Webhooks))
	p("  Sources:          %d pattern(s)\n", len(cfg.Sources))

	if len(cfg.Sources) == 0 {
		p("\nWarning: No sources configured; parse will need --stdin\n")
		return nil
	}

	// Check if sources exist (warnings only)
	files, err := source.ExpandGlobs(cfg.Sources)
	if err != nil {
		p("\nWarning: Error expanding source patterns: %v\n", err)
		return nil
	}

	p("\nSource files:\n")
	missing := 0
	for _, f := range files {
		if fileExists(f) {
			p("  - %s\n", f)
		} else {
			p("  - %s (not found)\n", f)
			missing++
		}
	}
	if missing > 0 {
		p("\nWarning: %d source(s) not found\n", missing)
	}

	return nil
}

func declaredGroups(lp *proxy.LinePattern) string {
	all := []string{proxy.GroupHost, proxy.GroupPort, proxy.GroupUsername, proxy.GroupPassword}
	return strings.Join(lo.Filter(all, func(g string, _ int) bool { return lp.Declares(g) }), ", ")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
