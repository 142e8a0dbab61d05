package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/contentflow/core/internal/middleware"
	"github.com/contentflow/core/internal/models"
	"github.com/contentflow/core/internal/modules/activity"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeRecorder struct {
	mu       sync.Mutex
	entries  []activity.Entry
	outcomes map[string]activity.Outcome
}

func (f *fakeRecorder) Record(_ context.Context, e activity.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeRecorder) Mark(_ context.Context, requestID string, o activity.Outcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.outcomes == nil {
		f.outcomes = map[string]activity.Outcome{}
	}
	f.outcomes[requestID] = o
	return nil
}

func fakeAuth(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyUserID, userID)
		c.Request = c.Request.WithContext(middleware.WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

func newTestRouter(t *testing.T, upstream http.HandlerFunc) (*gin.Engine, *fakeRecorder, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		upstream(w, r)
	}))
	t.Cleanup(srv.Close)

	rec := &fakeRecorder{}
	builder := NewBuilder(
		WithUserResolver(UserResolverFunc(middleware.UserIDFromContext)),
		WithIDGenerator(func() string { return "req-h" }),
	)
	client := NewClient(ClientConfig{BaseOrigin: srv.URL, RetryBase: time.Millisecond, RetryMax: time.Millisecond},
		WithHTTPClient(srv.Client()))
	svc := NewService(builder, client, rec, 2, 4, nil)

	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"), fakeAuth("user-5"))
	return r, rec, &calls
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_TriggerDelivers(t *testing.T) {
	var wire map[string]any
	r, rec, calls := newTestRouter(t, func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewDecoder(req.Body).Decode(&wire)
		assert.Equal(t, "/webhook/content-engine", req.URL.Path)
		assert.Equal(t, "autofill", req.URL.Query().Get("action"))
		_, _ = w.Write([]byte(`{"company":{"name":"Acme"}}`))
	})

	w := doJSON(r, http.MethodPost, "/api/v1/automation/autofill", `{"website":"https://acme.test"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 1, calls.Load())

	var out TriggerResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.True(t, out.Delivery.OK)
	assert.Equal(t, "req-h", out.Delivery.RequestID)

	assert.Equal(t, "autofill", wire["identifier"])
	assert.Equal(t, "https://acme.test", wire["website"])
	meta := wire["meta"].(map[string]any)
	assert.Equal(t, "user-5", meta["user_id"])
	assert.Equal(t, "autofill@1", meta["contract"])

	require.Len(t, rec.entries, 1)
	assert.Equal(t, activity.Entry{UserID: "user-5", Kind: "autofill", RequestID: "req-h"}, rec.entries[0])
	assert.Equal(t, models.ActivityOK, rec.outcomes["req-h"].Status)
	assert.Equal(t, http.StatusOK, rec.outcomes["req-h"].HTTPStatus)
}

func TestHandler_TriggerRejectsInvalidPayload(t *testing.T) {
	r, rec, calls := newTestRouter(t, func(w http.ResponseWriter, _ *http.Request) {})

	w := doJSON(r, http.MethodPost, "/api/v1/automation/autofill", `{"company_id":4}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `autofill: missing required field \"website\"`)
	assert.EqualValues(t, 0, calls.Load())
	assert.Empty(t, rec.entries)
}

func TestHandler_TriggerUnknownIdentifier(t *testing.T) {
	r, _, calls := newTestRouter(t, func(w http.ResponseWriter, _ *http.Request) {})

	w := doJSON(r, http.MethodPost, "/api/v1/automation/does-not-exist", `{}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.EqualValues(t, 0, calls.Load())
}

func TestHandler_TriggerUpstreamFailure(t *testing.T) {
	r, rec, calls := newTestRouter(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	w := doJSON(r, http.MethodPost, "/api/v1/automation/real-estate-ingest", `{"url":"https://listing.test/9","attempts":9}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.EqualValues(t, 4, calls.Load(), "attempts are capped")

	o := rec.outcomes["req-h"]
	assert.Equal(t, models.ActivityError, o.Status)
	assert.Equal(t, http.StatusServiceUnavailable, o.HTTPStatus)
	assert.Equal(t, 4, o.Attempts)
}

func TestHandler_Validate(t *testing.T) {
	r, rec, calls := newTestRouter(t, func(w http.ResponseWriter, _ *http.Request) {})

	w := doJSON(r, http.MethodPost, "/api/v1/automation/generate-ideas/validate",
		`{"company_id":1,"strategy_id":2,"angle_number":3,"platforms":["Blog"]}`)
	require.Equal(t, http.StatusOK, w.Code)

	var res CheckResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.OK, res.ErrorText())
	assert.Equal(t, []any{"", "", "", "", "", "", "", "blog"}, res.Normalized.Fields["platforms"])
	assert.EqualValues(t, 0, calls.Load())
	assert.Empty(t, rec.entries)
}

func TestHandler_Contracts(t *testing.T) {
	r, _, _ := newTestRouter(t, func(w http.ResponseWriter, _ *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/automation", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data []ContractInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Data, len(Identifiers()))
	assert.Equal(t, "avatar-video", body.Data[5].Path)
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, models.ActivityError, OutcomeOf(nil, errors.New("dial tcp: refused")).Status)
	assert.Equal(t, "quota exceeded", OutcomeOf(&SendResult{Status: 429, Data: map[string]any{"message": "quota exceeded"}}, nil).Message)
	assert.Equal(t, "workflow returned status 502", OutcomeOf(&SendResult{Status: 502, RawText: "<html>"}, nil).Message)
	ok := OutcomeOf(&SendResult{OK: true, Status: 200, Attempts: 2}, nil)
	assert.Equal(t, activity.Outcome{Status: models.ActivityOK, Message: "delivered", HTTPStatus: 200, Attempts: 2}, ok)

	cancelled := OutcomeOf(nil, fmt.Errorf("deliver publish: %w", context.Canceled))
	assert.Equal(t, models.ActivityCancelled, cancelled.Status)
	assert.Equal(t, "cancelled by user", cancelled.Message)
}

func TestAssetCount(t *testing.T) {
	assert.Equal(t, 2, assetCount(map[string]any{"images": []string{"a", "b"}}))
	assert.Equal(t, 3, assetCount(map[string]any{"images": []any{"a", "b", "c"}}))
	assert.Equal(t, 4, assetCount(map[string]any{"image_count": float64(4)}))
	assert.Equal(t, 0, assetCount(nil))
}
