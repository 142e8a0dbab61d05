package automation

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(srv *httptest.Server) *Client {
	return NewClient(ClientConfig{
		BaseOrigin: srv.URL + "/",
		ClientTag:  "test-suite",
		Env:        "Production",
		RetryBase:  time.Millisecond,
		RetryMax:   5 * time.Millisecond,
	}, WithHTTPClient(srv.Client()))
}

func testPayload() *Payload {
	return &Payload{
		Identifier: GenerateIdeas,
		Operation:  "generate",
		Meta:       &Meta{Source: "s", TS: "t", RequestID: "req-77", Contract: "generate-ideas@2"},
		Fields:     map[string]any{"company_id": 12},
	}
}

func TestClient_SendHeadersAndURL(t *testing.T) {
	var got *http.Request
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"queued":true}`))
	}))
	defer srv.Close()

	c := testClient(srv)
	res, err := c.Send(context.Background(), GenerateIdeas, testPayload(), SendOptions{Headers: map[string]string{"X-Trace": "abc"}})
	require.NoError(t, err)

	assert.True(t, res.OK)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "req-77", res.RequestID)
	assert.Equal(t, DefaultPath, res.Path)
	assert.Equal(t, map[string]any{"queued": true}, res.Data)

	require.NotNil(t, got)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/webhook/content-engine", got.URL.Path)
	assert.Equal(t, "generate", got.URL.Query().Get("action"))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, "application/json, text/plain, */*", got.Header.Get("Accept"))
	assert.Equal(t, "test-suite", got.Header.Get("X-Client"))
	assert.Equal(t, "production", got.Header.Get("X-Env"))
	assert.Equal(t, "req-77", got.Header.Get("X-Request-Id"))
	assert.Equal(t, "abc", got.Header.Get("X-Trace"))
	assert.Equal(t, "generate-ideas", body["identifier"])
	assert.EqualValues(t, 12, body["company_id"])
}

func TestClient_SendNon2xxIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad input"))
	}))
	defer srv.Close()

	res, err := testClient(srv).Send(context.Background(), Autofill, testPayload(), SendOptions{})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Nil(t, res.Data)
	assert.Equal(t, "bad input", res.RawText)
}

func TestClient_PathTable(t *testing.T) {
	c := NewClient(ClientConfig{BaseOrigin: "https://flows.test", Paths: map[string]string{"autofill": "/autofill-v2/"}})

	assert.Equal(t, "avatar-video", c.PathFor(AvatarVideo))
	assert.Equal(t, "product-campaign", c.PathFor(ProductCampaign))
	assert.Equal(t, "real-estate-ingest", c.PathFor(RealEstateIngest))
	assert.Equal(t, DefaultPath, c.PathFor(GenerateAngles))
	assert.Equal(t, DefaultPath, c.PathFor("unknown"))
	assert.Equal(t, "autofill-v2", c.PathFor(Autofill))

	assert.Equal(t, "https://flows.test/webhook/content-engine?action=a+b", c.URL(DefaultPath, "a b"))
	assert.Equal(t, "https://flows.test/webhook/avatar-video", c.URL("avatar-video", ""))
}

func TestClient_SendWithRetry(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		attempts   int
		wantCalls  int32
		wantStatus int
	}{
		{"retryable 503 exhausts budget", http.StatusServiceUnavailable, "", 4, 4, http.StatusServiceUnavailable},
		{"html 502 retried", http.StatusBadGateway, "<html>Bad Gateway</html>", 3, 3, http.StatusBadGateway},
		{"generic json message retried", http.StatusInternalServerError, `{"message":"Error in workflow"}`, 2, 2, http.StatusInternalServerError},
		{"structured 500 not retried", http.StatusInternalServerError, `{"message":"company 12 has no strategy"}`, 3, 1, http.StatusInternalServerError},
		{"400 not retried", http.StatusBadRequest, `{"message":"missing website"}`, 5, 1, http.StatusBadRequest},
		{"success stops", http.StatusOK, `{}`, 3, 1, http.StatusOK},
		{"zero attempts means one", http.StatusServiceUnavailable, "", 0, 1, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			res, err := testClient(srv).SendWithRetry(context.Background(), GenerateIdeas, testPayload(), RetryOptions{Attempts: tt.attempts})
			require.NoError(t, err)
			require.NotNil(t, res)
			assert.Equal(t, tt.wantCalls, calls.Load())
			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, int(tt.wantCalls), res.Attempts)
			assert.Equal(t, "req-77", res.RequestID)
		})
	}
}

func TestClient_SendWithRetryReportsAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var seen []AttemptInfo
	res, err := testClient(srv).SendWithRetry(context.Background(), GenerateIdeas, testPayload(), RetryOptions{
		Attempts:  5,
		OnAttempt: func(info AttemptInfo) { seen = append(seen, info) },
	})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, 3, res.Attempts)

	require.Len(t, seen, 3)
	assert.Equal(t, AttemptInfo{Attempt: 1, Total: 5}, seen[0])
	assert.Equal(t, 2, seen[1].Attempt)
	assert.Equal(t, http.StatusServiceUnavailable, seen[1].PrevStatus)
	assert.Equal(t, 3, seen[2].Attempt)
}

func TestClient_SendWithRetryTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := testClient(srv)
	srv.Close()

	var seen []AttemptInfo
	res, err := c.SendWithRetry(context.Background(), Autofill, testPayload(), RetryOptions{
		Attempts:  3,
		OnAttempt: func(info AttemptInfo) { seen = append(seen, info) },
	})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.False(t, res.OK)
	assert.Equal(t, 3, res.Attempts)
	require.Len(t, seen, 3)
	assert.Error(t, seen[2].PrevErr)
}

func TestClient_SendWithRetryCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := NewClient(ClientConfig{BaseOrigin: srv.URL, RetryBase: time.Second, RetryMax: time.Second})

	var calls int
	res, err := c.SendWithRetry(ctx, Autofill, testPayload(), RetryOptions{
		Attempts: 5,
		OnAttempt: func(AttemptInfo) {
			calls++
			if calls == 1 {
				time.AfterFunc(20*time.Millisecond, cancel)
			}
		},
	})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusServiceUnavailable, res.Status)
}

func TestClient_ProbePaths(t *testing.T) {
	var hits []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, r.URL.Path)
		if r.URL.Path == "/webhook/content-engine" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"message":"Workflow could not be started!"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	res, err := testClient(srv).ProbePaths(context.Background(), GenerateIdeas, testPayload(),
		[]string{"content-engine", "content-engine-v2", "never-reached"})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "content-engine-v2", res.Path)
	assert.Equal(t, []string{"/webhook/content-engine", "/webhook/content-engine-v2"}, hits)
}

func TestLooksLikeGenericError(t *testing.T) {
	tests := []struct {
		name string
		res  SendResult
		want bool
	}{
		{"empty", SendResult{}, true},
		{"plain text", SendResult{RawText: "upstream exploded"}, true},
		{"html by header", SendResult{RawText: "oops", Header: http.Header{"Content-Type": {"text/html"}}}, true},
		{"json generic error key", SendResult{RawText: `{"error":"Gateway Timeout"}`, Data: map[string]any{"error": "Gateway Timeout"}}, true},
		{"json specific", SendResult{RawText: `{"message":"quota exceeded"}`, Data: map[string]any{"message": "quota exceeded"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, looksLikeGenericError(&tt.res))
		})
	}
}
