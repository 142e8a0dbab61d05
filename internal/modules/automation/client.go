package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const (
	defaultClientTag  = "contentflow-core"
	defaultTimeout    = 60 * time.Second
	defaultRetryBase  = 800 * time.Millisecond
	defaultRetryMax   = 8 * time.Second
	maxResponseBytes  = 1 << 20
	maxLoggedBodySize = 4096
)

// ClientConfig configures the workflow delivery client.
type ClientConfig struct {
	BaseOrigin string
	ClientTag  string
	// Env is reported in X-Env; anything but "production" is "development".
	Env       string
	Timeout   time.Duration
	RetryBase time.Duration
	RetryMax  time.Duration
	// Paths overrides entries of the identifier to path table.
	Paths map[string]string
}

// Client posts payloads to the external workflow webhooks.
type Client struct {
	cfg    ClientConfig
	paths  map[Identifier]string
	http   *http.Client
	logger *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger used for delivery diagnostics.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l.Named("AutomationClient")
		}
	}
}

func NewClient(cfg ClientConfig, opts ...ClientOption) *Client {
	if strings.TrimSpace(cfg.ClientTag) == "" {
		cfg.ClientTag = defaultClientTag
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaultRetryBase
	}
	if cfg.RetryMax < cfg.RetryBase {
		cfg.RetryMax = max(defaultRetryMax, cfg.RetryBase)
	}
	c := &Client{
		cfg:    cfg,
		paths:  buildPathTable(cfg.Paths),
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SendResult is the outcome of one delivery.
type SendResult struct {
	OK        bool        `json:"ok"`
	Status    int         `json:"status"`
	RequestID string      `json:"requestId"`
	Data      any         `json:"data"`
	RawText   string      `json:"rawText"`
	Attempts  int         `json:"attempts"`
	Path      string      `json:"path"`
	Header    http.Header `json:"-"`
}

// SendOptions tunes a single Send.
type SendOptions struct {
	// Path overrides the table lookup.
	Path    string
	Headers map[string]string
}

// PathFor resolves the webhook path of id.
func (c *Client) PathFor(id Identifier) string {
	if p, ok := c.paths[id]; ok {
		return p
	}
	return DefaultPath
}

// URL returns the full endpoint for path and operation.
func (c *Client) URL(path, operation string) string {
	return webhookURL(c.cfg.BaseOrigin, path, operation)
}

func (c *Client) envTag() string {
	if strings.EqualFold(strings.TrimSpace(c.cfg.Env), "production") {
		return "production"
	}
	return "development"
}

// Send performs a single POST. A non-2xx response is not an error; the
// returned error covers transport failures only.
func (c *Client) Send(ctx context.Context, id Identifier, p *Payload, opts SendOptions) (*SendResult, error) {
	if p == nil {
		return nil, errors.New("automation: nil payload")
	}
	path := strings.Trim(strings.TrimSpace(opts.Path), "/")
	if path == "" {
		path = c.PathFor(id)
	}
	res := &SendResult{RequestID: p.RequestID(), Path: path, Attempts: 1}

	body, err := json.Marshal(p)
	if err != nil {
		return res, fmt.Errorf("encode %s payload: %w", id, err)
	}
	endpoint := c.URL(path, p.Operation)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return res, fmt.Errorf("create %s request: %w", id, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("X-Client", c.cfg.ClientTag)
	req.Header.Set("X-Env", c.envTag())
	req.Header.Set("X-Request-Id", res.RequestID)
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("workflow request failed",
			zap.String("identifier", string(id)),
			zap.String("url", endpoint),
			zap.String("request_id", res.RequestID),
			zap.Error(err),
		)
		return res, fmt.Errorf("deliver %s: %w", id, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	res.Status = resp.StatusCode
	res.OK = resp.StatusCode >= 200 && resp.StatusCode < 300
	res.RawText = string(raw)
	res.Data = parseJSON(raw)
	res.Header = resp.Header

	if !res.OK {
		c.logger.Warn("workflow returned non-2xx",
			zap.String("identifier", string(id)),
			zap.String("url", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.String("request_id", res.RequestID),
			zap.Any("request_headers", req.Header),
			zap.Any("response_headers", resp.Header),
			zap.String("request_body", truncate(string(body))),
			zap.String("response_body", truncate(res.RawText)),
		)
	}
	return res, nil
}

// AttemptInfo is reported before every delivery attempt.
type AttemptInfo struct {
	Attempt    int
	Total      int
	PrevStatus int
	PrevErr    error
}

// RetryOptions tunes SendWithRetry.
type RetryOptions struct {
	Attempts  int
	OnAttempt func(AttemptInfo)
	Path      string
	Headers   map[string]string
}

var errRetryableStatus = errors.New("retryable workflow status")

// SendWithRetry sends p, retrying transport failures and generic 5xx
// responses with capped exponential backoff and jitter. 2xx and 4xx responses
// end the loop at once. After the last attempt the last result is returned;
// the error is set only if that attempt failed at the transport level or ctx
// was cancelled.
func (c *Client) SendWithRetry(ctx context.Context, id Identifier, p *Payload, opts RetryOptions) (*SendResult, error) {
	total := opts.Attempts
	if total < 1 {
		total = 1
	}

	backoff := retry.NewExponential(c.cfg.RetryBase)
	backoff = retry.WithCappedDuration(c.cfg.RetryMax, backoff)
	backoff = retry.WithJitterPercent(25, backoff)
	backoff = retry.WithMaxRetries(uint64(total-1), backoff)

	var (
		last    *SendResult
		lastErr error
		attempt int
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		info := AttemptInfo{Attempt: attempt, Total: total, PrevErr: lastErr}
		if last != nil {
			info.PrevStatus = last.Status
		}
		if opts.OnAttempt != nil {
			opts.OnAttempt(info)
		}

		res, sendErr := c.Send(ctx, id, p, SendOptions{Path: opts.Path, Headers: opts.Headers})
		if res != nil {
			res.Attempts = attempt
		}
		last, lastErr = res, sendErr
		if sendErr != nil {
			if ctx.Err() != nil {
				return sendErr
			}
			return retry.RetryableError(sendErr)
		}
		if shouldRetry(res) {
			c.logger.Info("retrying workflow delivery",
				zap.String("identifier", string(id)),
				zap.String("request_id", res.RequestID),
				zap.Int("status", res.Status),
				zap.Int("attempt", attempt),
				zap.Int("total", total),
			)
			return retry.RetryableError(errRetryableStatus)
		}
		return nil
	})

	if last == nil {
		last = &SendResult{RequestID: p.RequestID(), Path: c.PathFor(id)}
	}
	if ctxErr := ctx.Err(); ctxErr != nil && err != nil && lastErr == nil {
		return last, ctxErr
	}
	return last, lastErr
}

// ProbePaths tries each path once, moving to the next only after a transport
// failure or a generic 5xx. It is separate from attempt retries.
func (c *Client) ProbePaths(ctx context.Context, id Identifier, p *Payload, paths []string) (*SendResult, error) {
	if len(paths) == 0 {
		paths = []string{c.PathFor(id)}
	}
	var (
		last    *SendResult
		lastErr error
	)
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return last, err
		}
		last, lastErr = c.Send(ctx, id, p, SendOptions{Path: path})
		if last != nil {
			last.Attempts = i + 1
		}
		if lastErr == nil && !shouldRetry(last) {
			return last, nil
		}
	}
	return last, lastErr
}

func shouldRetry(res *SendResult) bool {
	return res != nil && res.Status >= 500 && looksLikeGenericError(res)
}

var genericErrorPhrases = []string{
	"internal server error",
	"error in workflow",
	"workflow could not be started",
	"service unavailable",
	"bad gateway",
	"gateway timeout",
	"no item to return",
}

// looksLikeGenericError separates server error pages from structured errors
// a workflow reports on purpose; only the former are worth retrying.
func looksLikeGenericError(res *SendResult) bool {
	text := strings.TrimSpace(res.RawText)
	if text == "" {
		return true
	}
	if strings.Contains(strings.ToLower(res.Header.Get("Content-Type")), "html") || strings.HasPrefix(text, "<") {
		return true
	}
	obj, ok := res.Data.(map[string]any)
	if !ok {
		return true
	}
	for _, key := range []string{"message", "error", "hint"} {
		if msg, ok := obj[key].(string); ok && containsGenericPhrase(msg) {
			return true
		}
	}
	return false
}

func containsGenericPhrase(msg string) bool {
	msg = strings.ToLower(msg)
	for _, phrase := range genericErrorPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

func parseJSON(data []byte) any {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func truncate(s string) string {
	if len(s) <= maxLoggedBodySize {
		return s
	}
	return s[:maxLoggedBodySize] + "...(truncated)"
}
