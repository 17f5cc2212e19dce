// Package webhook posts parse reports to HTTP endpoints.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ccollicutt/proxylist/pkg/config"
	"github.com/ccollicutt/proxylist/pkg/output"
)

// DefaultTimeout applies when SendOptions.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// maxResponseBody caps how much of a response body is kept.
const maxResponseBody = 1024 * 1024

const (
	userAgent   = "proxylist-webhook"
	runIDHeader = "X-Proxylist-Run-Id"
)

// Client delivers parse reports over HTTP.
type Client struct {
	httpClient *http.Client
}

func NewClient() *Client {
	return &Client{httpClient: &http.Client{}}
}

// SendOptions addresses one endpoint.
type SendOptions struct {
	URL     string
	Token   string        // sent as a bearer token when set
	Timeout time.Duration // zero means DefaultTimeout
}

func (o SendOptions) timeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultTimeout
	}
	return o.Timeout
}

// Response is what came back from an endpoint.
type Response struct {
	StatusCode int
	Body       string
	Duration   time.Duration
	Error      error
}

// Success reports a 2xx answer with no transport error.
func (r *Response) Success() bool {
	return r.Error == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Send posts report as JSON. A status of 400 or above is reported in Error.
func (c *Client) Send(ctx context.Context, report *output.Report, opts SendOptions) *Response {
	start := time.Now()

	payload, err := json.Marshal(report)
	if err != nil {
		return &Response{Error: fmt.Errorf("encoding report: %w", err), Duration: time.Since(start)}
	}

	resp := c.do(ctx, http.MethodPost, bytes.NewReader(payload), opts, func(h http.Header) {
		h.Set("Content-Type", "application/json")
		h.Set(runIDHeader, report.Metadata.RunID)
	})
	if resp.Error == nil && resp.StatusCode >= 400 {
		resp.Error = fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	resp.Duration = time.Since(start)
	return resp
}

// Ping sends a HEAD request to check that an endpoint is reachable. Any
// HTTP response counts as reachable; Error is set only when no response
// arrived.
func (c *Client) Ping(ctx context.Context, opts SendOptions) *Response {
	return c.do(ctx, http.MethodHead, nil, opts, nil)
}

func (c *Client) do(ctx context.Context, method string, body io.Reader, opts SendOptions, headers func(http.Header)) *Response {
	start := time.Now()
	resp := &Response{}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, opts.URL, body)
	if err != nil {
		resp.Error = fmt.Errorf("building %s request: %w", method, err)
		return resp
	}
	req.Header.Set("User-Agent", userAgent)
	if opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.Token)
	}
	if headers != nil {
		headers(req.Header)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		resp.Error = fmt.Errorf("%s %s: %w", method, opts.URL, err)
		resp.Duration = time.Since(start)
		return resp
	}
	defer httpResp.Body.Close()

	resp.StatusCode = httpResp.StatusCode
	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		resp.Error = fmt.Errorf("reading response: %w", err)
	}
	resp.Body = string(data)
	resp.Duration = time.Since(start)
	return resp
}

// ShouldFire reports whether a webhook with the given trigger fires for a
// report. Unknown triggers behave like on_records.
func ShouldFire(trigger config.WebhookTrigger, report *output.Report) bool {
	switch trigger {
	case config.WebhookTriggerAlways:
		return true
	case config.WebhookTriggerNever:
		return false
	default:
		return report.HasRecords()
	}
}

// Delivery is the outcome of one webhook in a Dispatch call.
type Delivery struct {
	Name     string
	Fired    bool
	Response *Response
}

// Dispatch sends report to every webhook whose trigger fires. Failures are
// logged and returned, never fatal.
func (c *Client) Dispatch(ctx context.Context, hooks []config.WebhookConfig, report *output.Report, logger *slog.Logger) []Delivery {
	if logger == nil {
		logger = slog.Default()
	}

	deliveries := make([]Delivery, 0, len(hooks))
	for _, wh := range hooks {
		name := wh.Name
		if name == "" {
			name = wh.URL
		}

		d := Delivery{Name: name}
		if !ShouldFire(wh.Trigger, report) {
			deliveries = append(deliveries, d)
			continue
		}

		d.Fired = true
		d.Response = c.Send(ctx, report, SendOptions{
			URL:     wh.URL,
			Token:   wh.Token,
			Timeout: wh.Timeout,
		})

		if d.Response.Success() {
			logger.Info("webhook sent", "webhook", name, "status", d.Response.StatusCode, "duration", d.Response.Duration)
		} else {
			logger.Warn("webhook failed", "webhook", name, "error", d.Response.Error)
		}
		deliveries = append(deliveries, d)
	}
	return deliveries
}
