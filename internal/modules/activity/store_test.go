package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/contentflow/core/internal/models"
	"github.com/contentflow/core/internal/pkg/jobs"
	"github.com/contentflow/core/internal/pkg/pagination"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time      { return c.t }
func (c *clock) add(d time.Duration) { c.t = c.t.Add(d) }

func newTestService(t *testing.T) (*Service, *clock) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: opens its own database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.ActivityModel{}))

	clk := &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	s := NewService(db)
	s.now = clk.now
	return s, clk
}

type fakeLookup struct {
	jobs map[string]*jobs.Job
	errs map[string]error
}

func (f *fakeLookup) GetByRequestID(_ context.Context, requestID string) (*jobs.Job, error) {
	if err, ok := f.errs[requestID]; ok {
		return nil, err
	}
	if j, ok := f.jobs[requestID]; ok {
		return j, nil
	}
	return nil, jobs.ErrNotFound
}

func statusOf(t *testing.T, s *Service, userID, requestID string) *models.ActivityModel {
	t.Helper()
	row, err := s.Get(context.Background(), userID, requestID)
	require.NoError(t, err)
	return row
}

func TestRecordUpsertsOnRequestID(t *testing.T) {
	s, clk := newTestService(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, Entry{UserID: "u1", Kind: "publish", RequestID: "r-1", AssetCount: 1}))
	require.NoError(t, s.Mark(ctx, "r-1", Outcome{Status: models.ActivityError, Message: "quota exceeded", HTTPStatus: 429, Attempts: 3}))

	clk.add(time.Minute)
	require.NoError(t, s.Record(ctx, Entry{UserID: "u1", Kind: "publish", RequestID: "r-1", AssetCount: 4, Message: "retry"}))

	row := statusOf(t, s, "u1", "r-1")
	assert.Equal(t, models.ActivityQueued, row.Status)
	assert.Equal(t, 4, row.AssetCount)
	assert.Equal(t, "retry", row.Message)
	assert.True(t, row.Timestamp.Equal(clk.now()))

	var count int64
	require.NoError(t, s.db.Model(&models.ActivityModel{}).Where("request_id = ?", "r-1").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestRecordRequiresRequestID(t *testing.T) {
	s, _ := newTestService(t)
	assert.Error(t, s.Record(context.Background(), Entry{UserID: "u1", Kind: "publish", RequestID: "  "}))
}

func TestMark(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, s.Record(ctx, Entry{UserID: "u1", Kind: "video", RequestID: "r-1"}))

	require.NoError(t, s.Mark(ctx, "r-1", Outcome{Status: models.ActivityOK, Message: "delivered", HTTPStatus: 200, Attempts: 2}))
	row := statusOf(t, s, "u1", "r-1")
	assert.Equal(t, models.ActivityOK, row.Status)
	assert.Equal(t, 200, row.HTTPStatus)
	assert.Equal(t, 2, row.Attempts)

	// zero http status and attempts keep what the delivery reported
	require.NoError(t, s.Mark(ctx, "r-1", Outcome{Status: models.ActivityOK, Message: "https://cdn.test/v.mp4"}))
	row = statusOf(t, s, "u1", "r-1")
	assert.Equal(t, "https://cdn.test/v.mp4", row.Message)
	assert.Equal(t, 200, row.HTTPStatus)
	assert.Equal(t, 2, row.Attempts)

	assert.ErrorIs(t, s.Mark(ctx, "missing", Outcome{Status: models.ActivityOK}), ErrNotFound)
}

func TestListGetClearAreScopedToUser(t *testing.T) {
	s, clk := newTestService(t)
	ctx := context.Background()
	require.NoError(t, s.Record(ctx, Entry{UserID: "u1", Kind: "publish", RequestID: "r-1"}))
	clk.add(time.Second)
	require.NoError(t, s.Record(ctx, Entry{UserID: "u1", Kind: "video", RequestID: "r-2"}))
	require.NoError(t, s.Record(ctx, Entry{UserID: "u2", Kind: "publish", RequestID: "r-3"}))
	require.NoError(t, s.Mark(ctx, "r-1", Outcome{Status: models.ActivityOK, Message: "delivered"}))

	items, pag, err := s.List(ctx, "u1", pagination.Query{Page: 1, Size: 20}, "")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "r-2", items[0].RequestID)
	assert.EqualValues(t, 2, pag.Total)

	items, _, err = s.List(ctx, "u1", pagination.Query{Page: 1, Size: 20}, models.ActivityOK)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "r-1", items[0].RequestID)

	_, err = s.Get(ctx, "u1", "r-3")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := s.Clear(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	statusOf(t, s, "u2", "r-3")
}

func TestReconcile(t *testing.T) {
	s, clk := newTestService(t)
	ctx := context.Background()

	for _, id := range []string{"r-done", "r-failed", "r-running", "r-cancelled", "r-stale", "r-flaky"} {
		require.NoError(t, s.Record(ctx, Entry{UserID: "u1", Kind: "video", RequestID: id}))
	}
	clk.add(20 * time.Hour)
	require.NoError(t, s.Record(ctx, Entry{UserID: "u1", Kind: "publish", RequestID: "r-fresh"}))
	require.NoError(t, s.Record(ctx, Entry{UserID: "u1", Kind: "publish", RequestID: "r-settled"}))
	require.NoError(t, s.Mark(ctx, "r-settled", Outcome{Status: models.ActivityOK, Message: "delivered"}))
	clk.add(5 * time.Hour)

	lookup := &fakeLookup{
		jobs: map[string]*jobs.Job{
			"r-done":      {Status: jobs.StatusCompleted, ResultURL: "https://cdn.test/v.mp4"},
			"r-failed":    {Status: jobs.StatusFailed, Error: "render crashed"},
			"r-running":   {Status: jobs.StatusRunning},
			"r-cancelled": {Status: jobs.StatusCancelled},
			"r-settled":   {Status: jobs.StatusFailed, Error: "must not be applied"},
		},
		errs: map[string]error{"r-flaky": errors.New("redis: connection refused")},
	}

	settled, err := s.Reconcile(ctx, lookup, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 4, settled)

	tests := []struct {
		requestID string
		status    string
		message   string
	}{
		{"r-done", models.ActivityOK, "https://cdn.test/v.mp4"},
		{"r-failed", models.ActivityError, "render crashed"},
		{"r-running", models.ActivityQueued, ""},
		{"r-cancelled", models.ActivityCancelled, "cancelled by user"},
		{"r-stale", models.ActivityError, "no outcome reported"},
		{"r-fresh", models.ActivityQueued, ""},
		{"r-flaky", models.ActivityQueued, ""},
		{"r-settled", models.ActivityOK, "delivered"},
	}
	for _, tt := range tests {
		t.Run(tt.requestID, func(t *testing.T) {
			row := statusOf(t, s, "u1", tt.requestID)
			assert.Equal(t, tt.status, row.Status)
			assert.Equal(t, tt.message, row.Message)
		})
	}

	settled, err = s.Reconcile(ctx, lookup, 24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, settled)
}

func TestReconcileStopsOnCancelledContext(t *testing.T) {
	s, _ := newTestService(t)
	require.NoError(t, s.Record(context.Background(), Entry{UserID: "u1", Kind: "video", RequestID: "r-1"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Reconcile(ctx, &fakeLookup{}, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}
