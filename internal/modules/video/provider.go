package video

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/contentflow/core/internal/pkg/poll"
)

// Provider reads job status from the avatar video provider.
type Provider struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewProvider(baseURL, apiKey string, hc *http.Client) *Provider {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Provider{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, http: hc}
}

// Status fetches GET {base}/jobs/{id}.
func (p *Provider) Status(ctx context.Context, providerJobID string) (*poll.Status, error) {
	endpoint := p.baseURL + "/jobs/" + url.PathEscape(providerJobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("provider status %s: %d %s", providerJobID, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("provider status %s: %w", providerJobID, err)
	}
	if inner, ok := raw["data"].(map[string]any); ok {
		raw = inner
	}
	return parseStatus(raw), nil
}

func parseStatus(raw map[string]any) *poll.Status {
	st := &poll.Status{Raw: raw}
	state, _ := firstString(raw, "status", "state")
	switch strings.ToLower(state) {
	case "completed", "complete", "done", "succeeded", "success":
		st.State = poll.StateCompleted
	case "failed", "failure", "error", "cancelled", "canceled":
		st.State = poll.StateFailed
	case "":
		st.State = "unknown"
	default:
		st.State = strings.ToLower(state)
	}
	if p, ok := raw["progress"].(float64); ok {
		if p > 0 && p <= 1 {
			p *= 100
		}
		st.Progress = int(p)
	}
	st.ResultURL, _ = firstString(raw, "result_url", "video_url", "url")
	if st.State == poll.StateFailed {
		st.Error, _ = firstString(raw, "error", "message", "reason")
	}
	return st
}

// providerJobID finds the provider's job id in a workflow response.
func providerJobID(data any) string {
	obj, ok := data.(map[string]any)
	if !ok {
		return ""
	}
	for _, key := range []string{"job_id", "jobId", "video_id", "id"} {
		switch v := obj[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	if inner, ok := obj["data"]; ok {
		return providerJobID(inner)
	}
	return ""
}

func firstString(m map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), true
		}
	}
	return "", false
}
