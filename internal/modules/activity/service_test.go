package activity

import (
	"testing"
	"time"

	"github.com/contentflow/core/internal/models"
	"github.com/contentflow/core/internal/pkg/jobs"
	"github.com/stretchr/testify/assert"
)

func TestOutcomeForJob(t *testing.T) {
	tests := []struct {
		name   string
		job    jobs.Job
		want   Outcome
		wantOK bool
	}{
		{"pending", jobs.Job{Status: jobs.StatusPending}, Outcome{}, false},
		{"running", jobs.Job{Status: jobs.StatusRunning}, Outcome{}, false},
		{"completed with result", jobs.Job{Status: jobs.StatusCompleted, ResultURL: "https://cdn.test/v.mp4"},
			Outcome{Status: models.ActivityOK, Message: "https://cdn.test/v.mp4"}, true},
		{"completed", jobs.Job{Status: jobs.StatusCompleted}, Outcome{Status: models.ActivityOK, Message: "completed"}, true},
		{"failed", jobs.Job{Status: jobs.StatusFailed, Error: "render crashed"},
			Outcome{Status: models.ActivityError, Message: "render crashed"}, true},
		{"failed without reason", jobs.Job{Status: jobs.StatusFailed}, Outcome{Status: models.ActivityError, Message: "job failed"}, true},
		{"cancelled", jobs.Job{Status: jobs.StatusCancelled},
			Outcome{Status: models.ActivityCancelled, Message: "cancelled by user"}, true},
		{"cancelled with reason", jobs.Job{Status: jobs.StatusCancelled, Error: "replaced by a newer render"},
			Outcome{Status: models.ActivityCancelled, Message: "replaced by a newer render"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := OutcomeForJob(&tt.job)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStaleOutcome(t *testing.T) {
	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	row := models.ActivityModel{Timestamp: now.Add(-2 * time.Hour)}

	_, ok := staleOutcome(row, now, 3*time.Hour)
	assert.False(t, ok)

	got, ok := staleOutcome(row, now, time.Hour)
	assert.True(t, ok)
	assert.Equal(t, models.ActivityError, got.Status)

	_, ok = staleOutcome(row, now, 0)
	assert.False(t, ok)
}
