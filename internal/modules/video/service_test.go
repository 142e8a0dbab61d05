package video

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/contentflow/core/internal/models"
	"github.com/contentflow/core/internal/modules/activity"
	"github.com/contentflow/core/internal/modules/automation"
	"github.com/contentflow/core/internal/pkg/jobs"
	"github.com/contentflow/core/internal/pkg/poll"
	redisc "github.com/contentflow/core/internal/pkg/redis"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRecorder struct {
	mu       sync.Mutex
	entries  []activity.Entry
	outcomes map[string]activity.Outcome
}

func (m *memRecorder) Record(_ context.Context, e activity.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memRecorder) Mark(_ context.Context, requestID string, o activity.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = map[string]activity.Outcome{}
	}
	m.outcomes[requestID] = o
	return nil
}

type fixture struct {
	svc      *Service
	store    *jobs.Store
	rec      *memRecorder
	webhook  http.HandlerFunc
	provider http.HandlerFunc
	auth     atomic.Value
}

func newFixture(t *testing.T, webhook, provider http.HandlerFunc) *fixture {
	t.Helper()
	f := &fixture{webhook: webhook, provider: provider, rec: &memRecorder{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			f.webhook(w, r)
			return
		}
		f.auth.Store(r.Header.Get("Authorization"))
		f.provider(w, r)
	}))
	t.Cleanup(srv.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	f.store = jobs.NewStore(redisc.Wrap(rdb))

	builder := automation.NewBuilder(automation.WithIDGenerator(func() string { return "req-v" }))
	client := automation.NewClient(automation.ClientConfig{
		BaseOrigin: srv.URL,
		RetryBase:  time.Millisecond,
		RetryMax:   time.Millisecond,
	}, automation.WithHTTPClient(srv.Client()))

	f.svc = NewService(context.Background(), builder, client, f.store, f.rec,
		NewProvider(srv.URL, "key-1", srv.Client()),
		Config{Attempts: 2, PollInterval: 5 * time.Millisecond, PollTimeout: 2 * time.Second}, nil)
	t.Cleanup(f.svc.Shutdown)
	return f
}

var validInput = StartInput{Script: "Hello there", Images: []string{"https://cdn.test/a.png"}}

func TestService_StartPollsToCompletion(t *testing.T) {
	var polls atomic.Int32
	f := newFixture(t,
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/webhook/avatar-video", r.URL.Path)
			_, _ = w.Write([]byte(`{"job_id":"vid-1"}`))
		},
		func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/jobs/vid-1", r.URL.Path)
			if polls.Add(1) < 3 {
				_, _ = w.Write([]byte(`{"status":"processing","progress":0.4}`))
				return
			}
			_, _ = w.Write([]byte(`{"status":"done","video_url":"https://cdn.test/v.mp4"}`))
		},
	)

	ctx := context.Background()
	out, err := f.svc.Start(ctx, "user-1", validInput)
	require.NoError(t, err)
	require.NotNil(t, out.Job)
	assert.Equal(t, "vid-1", out.Job.ProviderJobID)
	assert.Equal(t, jobs.StatusRunning, out.Job.Status)
	assert.Equal(t, "req-v", out.Job.RequestID)

	require.Eventually(t, func() bool {
		j, err := f.store.Get(ctx, out.Job.ID)
		return err == nil && j.Status == jobs.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	j, err := f.svc.Get(ctx, "user-1", out.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/v.mp4", j.ResultURL)
	assert.EqualValues(t, 100, j.Progress)
	assert.Equal(t, "Bearer key-1", f.auth.Load())

	require.Len(t, f.rec.entries, 1)
	assert.Equal(t, 1, f.rec.entries[0].AssetCount)
	assert.Empty(t, f.rec.outcomes, "activity is settled by reconciliation")

	o, ok := activity.OutcomeForJob(j)
	assert.True(t, ok)
	assert.Equal(t, models.ActivityOK, o.Status)

	require.Eventually(t, func() bool { return f.svc.Watching() == 0 }, time.Second, 5*time.Millisecond)
}

func TestService_ProviderFailure(t *testing.T) {
	f := newFixture(t,
		func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"data":{"id":42}}`)) },
		func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"status":"failed","error":"avatar not found"}`))
		},
	)

	out, err := f.svc.Start(context.Background(), "user-1", validInput)
	require.NoError(t, err)
	assert.Equal(t, "42", out.Job.ProviderJobID)

	require.Eventually(t, func() bool {
		j, err := f.store.Get(context.Background(), out.Job.ID)
		return err == nil && j.Status == jobs.StatusFailed && j.Error == "avatar not found"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestService_Cancel(t *testing.T) {
	f := newFixture(t,
		func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"job_id":"vid-2"}`)) },
		func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"status":"processing"}`)) },
	)
	ctx := context.Background()

	out, err := f.svc.Start(ctx, "user-1", validInput)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, "someone-else", out.Job.ID)
	assert.ErrorIs(t, err, jobs.ErrNotFound)

	j, err := f.svc.Cancel(ctx, "user-1", out.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCancelled, j.Status)
	require.Eventually(t, func() bool { return f.svc.Watching() == 0 }, time.Second, 5*time.Millisecond)

	_, err = f.svc.Cancel(ctx, "user-1", out.Job.ID)
	assert.ErrorIs(t, err, jobs.ErrNotRunning)

	got, err := f.store.Get(ctx, out.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCancelled, got.Status)
}

func TestService_ResumeRacingShutdown(t *testing.T) {
	f := newFixture(t,
		func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"job_id":"vid-3"}`)) },
		func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"status":"processing"}`)) },
	)
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		_, err := f.store.Create(ctx, jobs.Job{Kind: Kind, ProviderJobID: "vid-3", Status: jobs.StatusRunning})
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = f.svc.Resume(ctx)
	}()
	go func() {
		defer wg.Done()
		f.svc.Shutdown()
	}()
	wg.Wait()
	assert.Zero(t, f.svc.Watching())

	n, err := f.svc.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, n)
	assert.Zero(t, f.svc.Watching(), "no watcher starts after shutdown")
}

func TestService_StartRejected(t *testing.T) {
	f := newFixture(t,
		func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message":"script too long"}`))
		},
		func(w http.ResponseWriter, _ *http.Request) { t.Error("provider must not be polled") },
	)

	out, err := f.svc.Start(context.Background(), "user-1", validInput)
	assert.ErrorIs(t, err, ErrNotAccepted)
	require.NotNil(t, out)
	assert.Nil(t, out.Job)
	assert.Equal(t, models.ActivityError, f.rec.outcomes["req-v"].Status)
	assert.Equal(t, "script too long", f.rec.outcomes["req-v"].Message)
}

func TestService_StartWithoutJobID(t *testing.T) {
	f := newFixture(t,
		func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"queued":true}`)) },
		func(w http.ResponseWriter, _ *http.Request) {},
	)
	_, err := f.svc.Start(context.Background(), "user-1", validInput)
	assert.ErrorIs(t, err, ErrNoJobID)
	assert.Equal(t, 0, f.svc.Watching())
}

func TestService_StartInvalid(t *testing.T) {
	f := newFixture(t,
		func(w http.ResponseWriter, _ *http.Request) { t.Error("nothing should be delivered") },
		func(w http.ResponseWriter, _ *http.Request) {},
	)
	_, err := f.svc.Start(context.Background(), "user-1", StartInput{Script: "hi"})
	var invalid *automation.ValidationError
	require.True(t, errors.As(err, &invalid))
	assert.Contains(t, invalid.Result.ErrorText(), "images")
	assert.Empty(t, f.rec.entries)
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		raw  map[string]any
		want poll.Status
	}{
		{map[string]any{"status": "Succeeded", "url": "u"}, poll.Status{State: poll.StateCompleted, ResultURL: "u"}},
		{map[string]any{"state": "error", "message": "boom"}, poll.Status{State: poll.StateFailed, Error: "boom"}},
		{map[string]any{"status": "rendering", "progress": float64(35)}, poll.Status{State: "rendering", Progress: 35}},
		{map[string]any{}, poll.Status{State: "unknown"}},
	}
	for _, tt := range tests {
		got := parseStatus(tt.raw)
		got.Raw = nil
		assert.Equal(t, tt.want, *got)
	}
}

func TestProviderJobID(t *testing.T) {
	assert.Equal(t, "a", providerJobID(map[string]any{"jobId": "a"}))
	assert.Equal(t, "7", providerJobID(map[string]any{"data": map[string]any{"video_id": float64(7)}}))
	assert.Equal(t, "", providerJobID([]any{"x"}))
	assert.Equal(t, "", providerJobID(nil))
}
