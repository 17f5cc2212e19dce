package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ccollicutt/proxylist/pkg/config"
	"github.com/ccollicutt/proxylist/pkg/output"
	"github.com/ccollicutt/proxylist/pkg/proxy"
)

// executeParse runs the parse command and returns its stdout.
func executeParse(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewParseCommand()
	cmd.SetArgs(args)
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestRunParse_Text(t *testing.T) {
	resetExitCode(t)
	configPath, _ := writeListConfig(t, "# comment\n10.0.0.1:8080\n\n10.0.0.2:3128\n10.0.0.1:8080\n", "")

	out, err := executeParse(t, configPath)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	checks := []string{
		"=== proxylist report ===",
		"http://10.0.0.1:8080",
		"http://10.0.0.2:3128",
		"Summary: 3 proxies (2 unique addresses, 0 with credentials), 0 failures",
	}
	for _, check := range checks {
		if !strings.Contains(out, check) {
			t.Errorf("output missing %q:\n%s", check, out)
		}
	}
	if ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", ExitCode)
	}
}

func TestRunParse_ListAndJSON(t *testing.T) {
	resetExitCode(t)
	configPath, listPath := writeListConfig(t, "10.0.0.1:8080\n10.0.0.2:3128\n", "")

	out, err := executeParse(t, "-o", "list", configPath)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if out != "http://10.0.0.1:8080\nhttp://10.0.0.2:3128\n" {
		t.Errorf("list output = %q", out)
	}

	out, err = executeParse(t, "-o", "json", configPath)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	var report output.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if report.Summary.Records != 2 || report.Summary.LinesRead != 2 {
		t.Errorf("summary = %+v", report.Summary)
	}
	if len(report.Metadata.Sources) != 1 || report.Metadata.Sources[0] != listPath {
		t.Errorf("sources = %v", report.Metadata.Sources)
	}
	if report.Metadata.RunID == "" {
		t.Error("missing run id")
	}
	want := proxy.Proxy{Scheme: proxy.SchemeHTTP, Host: "10.0.0.2", Port: 3128}
	if report.Proxies[1] != want {
		t.Errorf("Proxies[1] = %+v, want %+v", report.Proxies[1], want)
	}
}

func TestRunParse_InvalidLineAborts(t *testing.T) {
	resetExitCode(t)
	configPath, _ := writeListConfig(t, "10.0.0.1:8080\nnot-a-proxy\n10.0.0.2:3128\n", "")

	_, err := executeParse(t, configPath)
	if err == nil {
		t.Fatal("expected error for malformed line")
	}
	if !errors.Is(err, proxy.ErrMalformedInput) {
		t.Errorf("error %v does not wrap ErrMalformedInput", err)
	}
	var perr *proxy.ParseError
	if !errors.As(err, &perr) || perr.Line != "not-a-proxy" || perr.Position != 2 {
		t.Errorf("unexpected parse error: %v", err)
	}
}

func TestRunParse_SkipInvalid(t *testing.T) {
	tests := []struct {
		name  string
		extra string
		args  []string
	}{
		{"flag", "", []string{"--skip-invalid", "-v"}},
		{"config", "skip_invalid: true\n", []string{"-v"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetExitCode(t)
			configPath, listPath := writeListConfig(t, "# exported list\n10.0.0.1:8080\nnot-a-proxy\n10.0.0.2:99999\n", tt.extra)

			out, err := executeParse(t, append(tt.args, configPath)...)
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if ExitCode != 1 {
				t.Errorf("ExitCode = %d, want 1", ExitCode)
			}
			checks := []string{
				"Failures: 2 line(s)",
				listPath + `:3 (malformed): "not-a-proxy"`,
				listPath + `:4 (invalid_port): "10.0.0.2:99999"`,
				"Summary: 1 proxies",
			}
			for _, check := range checks {
				if !strings.Contains(out, check) {
					t.Errorf("output missing %q:\n%s", check, out)
				}
			}
		})
	}
}

func TestRunParse_LimitAndDedupe(t *testing.T) {
	resetExitCode(t)
	list := "10.0.0.1:8080\n10.0.0.1:8080\n10.0.0.2:8080\n10.0.0.3:8080\n"
	configPath, _ := writeListConfig(t, list, "")

	out, err := executeParse(t, "-o", "json", "--dedupe", "--limit", "2", configPath)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	var report output.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if report.Summary.Records != 2 || report.Summary.Duplicates != 1 || !report.Summary.Truncated {
		t.Errorf("summary = %+v", report.Summary)
	}
}

func TestRunParse_IncludeExclude(t *testing.T) {
	resetExitCode(t)
	dir := t.TempDir()
	include := writeTestFile(t, dir, "include.txt", "# private ranges\n^10\\.\n^192\\.168\\.\n")
	exclude := writeTestFile(t, dir, "exclude.txt", "^10\\.0\\.0\\.2:\n")
	extra := "include_patterns:\n  - " + include + "\nexclude_patterns:\n  - " + exclude + "\n"
	configPath, _ := writeListConfig(t, "10.0.0.1:80\n10.0.0.2:80\n8.8.8.8:80\n192.168.1.1:80\n", extra)

	out, err := executeParse(t, "-o", "json", configPath)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	var report output.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if report.Summary.Records != 2 || report.Summary.LinesRead != 4 || report.Summary.LinesFiltered != 2 {
		t.Errorf("summary = %+v", report.Summary)
	}
}

func TestRunParse_Stdin(t *testing.T) {
	resetExitCode(t)
	configPath := writeTestFile(t, t.TempDir(), "config.yaml",
		"scheme: socks5\npattern: '^(?P<host>[^:\\s]+)$'\n")

	cmd := NewParseCommand()
	cmd.SetArgs([]string{"--stdin", "-o", "list", configPath})
	cmd.SetIn(strings.NewReader("# from a pipe\nproxy.example.com\n\n10.0.0.1\n"))
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	want := "socks5://proxy.example.com:1080\nsocks5://10.0.0.1:1080\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestRunParse_MergeSorted(t *testing.T) {
	resetExitCode(t)
	dir := t.TempDir()
	writeTestFile(t, dir, "a.txt", "10.0.0.1:80\n10.0.0.3:80\n")
	writeTestFile(t, dir, "b.txt", "10.0.0.2:80\n10.0.0.4:80\n")
	config := "sources:\n  - " + filepath.Join(dir, "*.txt") + "\n"
	configPath := writeTestFile(t, dir, "config.yaml", config)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "concatenated",
			args: []string{"-o", "list", configPath},
			want: "http://10.0.0.1:80\nhttp://10.0.0.3:80\nhttp://10.0.0.2:80\nhttp://10.0.0.4:80\n",
		},
		{
			name: "merged",
			args: []string{"-o", "list", "--merge-sorted", configPath},
			want: "http://10.0.0.1:80\nhttp://10.0.0.2:80\nhttp://10.0.0.3:80\nhttp://10.0.0.4:80\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := executeParse(t, tt.args...)
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if out != tt.want {
				t.Errorf("output = %q, want %q", out, tt.want)
			}
		})
	}
}

func TestRunParse_MetricsFile(t *testing.T) {
	resetExitCode(t)
	configPath, _ := writeListConfig(t, "10.0.0.1:8080\nbad line\n", "")
	metricsPath := filepath.Join(t.TempDir(), "proxylist.prom")

	if _, err := executeParse(t, "-q", "--skip-invalid", "--metrics-file", metricsPath, configPath); err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	data, err := os.ReadFile(metricsPath)
	if err != nil {
		t.Fatalf("metrics file not written: %v", err)
	}
	checks := []string{
		`proxylist_records_parsed_total{scheme="http"} 1`,
		`proxylist_parse_failures_total{reason="malformed"} 1`,
		"proxylist_lines_read_total 2",
	}
	for _, check := range checks {
		if !strings.Contains(string(data), check) {
			t.Errorf("metrics missing %q:\n%s", check, data)
		}
	}
}

func TestRunParse_Webhook(t *testing.T) {
	resetExitCode(t)

	var mu sync.Mutex
	var received []output.Report
	var runIDs []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var report output.Report
		if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
			t.Errorf("invalid webhook body: %v", err)
		}
		mu.Lock()
		received = append(received, report)
		runIDs = append(runIDs, r.Header.Get("X-Proxylist-Run-Id"))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	configPath, _ := writeListConfig(t, "10.0.0.1:8080\n", "")

	if _, err := executeParse(t, "-q", "--webhook-url", server.URL, configPath); err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("webhook calls = %d, want 1", len(received))
	}
	if received[0].Summary.Records != 1 {
		t.Errorf("webhook summary = %+v", received[0].Summary)
	}
	if runIDs[0] == "" || runIDs[0] != received[0].Metadata.RunID {
		t.Errorf("run id header %q does not match report %q", runIDs[0], received[0].Metadata.RunID)
	}
}

func TestRunParse_Errors(t *testing.T) {
	configPath, _ := writeListConfig(t, "10.0.0.1:8080\n", "")
	noSources := writeTestFile(t, t.TempDir(), "config.yaml", "scheme: http\n")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing config", []string{"/nonexistent/config.yaml"}, "loading config"},
		{"unknown output", []string{"-o", "xml", configPath}, "unknown output format"},
		{"stdin and follow", []string{"--stdin", "--follow", configPath}, "cannot be combined"},
		{"prescan and follow", []string{"--prescan", "--follow", configPath}, "--prescan"},
		{"no sources", []string{noSources}, "no sources configured"},
		{"bad webhook trigger", []string{"--webhook-url", "http://example.com", "--webhook-trigger", "later", configPath}, "invalid trigger"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeParse(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

// syncBuffer lets the test read output while the command is still writing.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitForOutput(t *testing.T, b *syncBuffer, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(b.String(), want) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q, got:\n%s", want, b.String())
}

func TestRunParse_Follow(t *testing.T) {
	resetExitCode(t)
	configPath, listPath := writeListConfig(t, "10.0.0.1:8080\n", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := NewParseCommand()
	cmd.SetArgs([]string{"--follow", "-o", "list", configPath})
	out := &syncBuffer{}
	cmd.SetOut(out)

	errCh := make(chan error, 1)
	go func() { errCh <- cmd.ExecuteContext(ctx) }()

	waitForOutput(t, out, "http://10.0.0.1:8080\n")

	f, err := os.OpenFile(listPath, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	if _, err := f.WriteString("# skipped\n10.0.0.2:3128\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = f.Close()

	waitForOutput(t, out, "http://10.0.0.2:3128\n")
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("follow ended with error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not stop after cancel")
	}

	if got := out.String(); got != "http://10.0.0.1:8080\nhttp://10.0.0.2:3128\n" {
		t.Errorf("output = %q", got)
	}
}

func TestCollectWebhooks(t *testing.T) {
	cfg := &config.Config{
		Webhooks: []config.WebhookConfig{
			{Name: "from-config", URL: "https://hooks.example.com/a", Trigger: config.WebhookTriggerAlways},
		},
	}

	tests := []struct {
		name    string
		opts    *ParseOptions
		wantLen int
		wantErr bool
	}{
		{"config only", &ParseOptions{}, 1, false},
		{"config and cli", &ParseOptions{WebhookURL: "http://localhost:9000/hook", WebhookTrigger: "always"}, 2, false},
		{"cli defaults trigger", &ParseOptions{WebhookURL: "http://localhost:9000/hook"}, 2, false},
		{"cli bad url", &ParseOptions{WebhookURL: "ftp://example.com"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hooks, err := collectWebhooks(cfg, tt.opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(hooks) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(hooks), tt.wantLen)
			}
			if tt.wantLen == 2 {
				cli := hooks[1]
				if cli.Name != "cli" || cli.Timeout != config.DefaultWebhookTimeout || cli.Trigger == "" {
					t.Errorf("cli webhook = %+v", cli)
				}
			}
		})
	}
}

func TestLineFilter(t *testing.T) {
	tests := []struct {
		name   string
		cfg    *config.Config
		line   string
		expect bool
	}{
		{"keeps proxy", &config.Config{SkipBlank: true, CommentPrefix: "#"}, "10.0.0.1:80", true},
		{"drops blank", &config.Config{SkipBlank: true, CommentPrefix: "#"}, "   ", false},
		{"keeps blank when allowed", &config.Config{CommentPrefix: "#"}, "", true},
		{"drops indented comment", &config.Config{SkipBlank: true, CommentPrefix: "#"}, "  # note", false},
		{"no comment prefix", &config.Config{SkipBlank: true}, "# note", true},
		{"custom prefix", &config.Config{CommentPrefix: ";"}, "; note", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lineFilter(tt.cfg)(tt.line); got != tt.expect {
				t.Errorf("lineFilter(%q) = %v, want %v", tt.line, got, tt.expect)
			}
		})
	}
}
