// Package activity keeps the per-user history of workflow deliveries. Entries
// are a display cache: a delivery records one as queued and it is settled
// later from the HTTP outcome or from the job it started.
package activity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/contentflow/core/internal/models"
	"github.com/contentflow/core/internal/pkg/jobs"
	"github.com/contentflow/core/internal/pkg/pagination"
	"github.com/contentflow/core/internal/pkg/response"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("activity not found")

// Entry describes a delivery that was just sent.
type Entry struct {
	UserID     string
	Kind       string
	RequestID  string
	AssetCount int
	Message    string
}

// Outcome settles an entry.
type Outcome struct {
	Status     string
	Message    string
	HTTPStatus int
	Attempts   int
}

// JobLookup resolves the job started by a delivery.
type JobLookup interface {
	GetByRequestID(ctx context.Context, requestID string) (*jobs.Job, error)
}

type Service struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

type ServiceOption func(*Service)

func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l.Named("ActivityService")
		}
	}
}

func NewService(db *gorm.DB, opts ...ServiceOption) *Service {
	s := &Service{db: db, logger: zap.NewNop(), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Record stores e as queued. Recording the same request id again resets it.
func (s *Service) Record(ctx context.Context, e Entry) error {
	if strings.TrimSpace(e.RequestID) == "" {
		return errors.New("activity: request id is required")
	}
	row := models.ActivityModel{
		Owned:      models.Owned{UserID: e.UserID},
		Kind:       e.Kind,
		RequestID:  e.RequestID,
		AssetCount: e.AssetCount,
		Status:     models.ActivityQueued,
		Message:    e.Message,
		Timestamp:  s.now(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "request_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"kind", "asset_count", "status", "message", "timestamp", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("record activity %s: %w", e.RequestID, err)
	}
	return nil
}

// Mark applies o to the entry of requestID.
func (s *Service) Mark(ctx context.Context, requestID string, o Outcome) error {
	updates := map[string]interface{}{"status": o.Status, "message": o.Message}
	if o.HTTPStatus != 0 {
		updates["http_status"] = o.HTTPStatus
	}
	if o.Attempts != 0 {
		updates["attempts"] = o.Attempts
	}
	res := s.db.WithContext(ctx).Model(&models.ActivityModel{}).
		Where("request_id = ?", requestID).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("mark activity %s: %w", requestID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns the user's entries, newest first, optionally filtered by status.
func (s *Service) List(ctx context.Context, userID string, q pagination.Query, status string) ([]models.ActivityModel, response.Pagination, error) {
	db := s.db.WithContext(ctx).Model(&models.ActivityModel{}).Where("user_id = ?", userID)
	if status != "" {
		db = db.Where("status = ?", status)
	}
	if q.Order == "" {
		q.Order = "timestamp DESC"
	}
	items := []models.ActivityModel{}
	pag, err := pagination.Paginate(db, q, &items)
	return items, pag, err
}

func (s *Service) Get(ctx context.Context, userID, requestID string) (*models.ActivityModel, error) {
	var row models.ActivityModel
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND request_id = ?", userID, requestID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &row, err
}

// Clear deletes the user's history and returns how many entries went.
func (s *Service) Clear(ctx context.Context, userID string) (int64, error) {
	res := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.ActivityModel{})
	return res.RowsAffected, res.Error
}

const reconcileBatch = 200

// Reconcile settles queued entries whose job has finished. Entries without a
// job that stay queued longer than staleAfter are settled as errors. It
// returns the number of entries settled.
func (s *Service) Reconcile(ctx context.Context, lookup JobLookup, staleAfter time.Duration) (int, error) {
	var queued []models.ActivityModel
	err := s.db.WithContext(ctx).
		Where("status = ?", models.ActivityQueued).
		Order("timestamp ASC").
		Limit(reconcileBatch).
		Find(&queued).Error
	if err != nil {
		return 0, err
	}

	settled := 0
	now := s.now()
	for _, row := range queued {
		if err := ctx.Err(); err != nil {
			return settled, err
		}
		job, err := lookup.GetByRequestID(ctx, row.RequestID)
		var outcome Outcome
		var ok bool
		switch {
		case errors.Is(err, jobs.ErrNotFound):
			outcome, ok = staleOutcome(row, now, staleAfter)
		case err != nil:
			s.logger.Warn("job lookup failed", zap.String("request_id", row.RequestID), zap.Error(err))
			continue
		default:
			outcome, ok = OutcomeForJob(job)
		}
		if !ok {
			continue
		}
		if err := s.Mark(ctx, row.RequestID, outcome); err != nil {
			s.logger.Warn("mark failed", zap.String("request_id", row.RequestID), zap.Error(err))
			continue
		}
		settled++
	}
	if settled > 0 {
		s.logger.Info("activity reconciled", zap.Int("settled", settled), zap.Int("queued", len(queued)))
	}
	return settled, nil
}

// OutcomeForJob maps a finished job to an activity outcome. ok is false while
// the job is still in progress.
func OutcomeForJob(j *jobs.Job) (Outcome, bool) {
	switch j.Status {
	case jobs.StatusCompleted:
		msg := "completed"
		if j.ResultURL != "" {
			msg = j.ResultURL
		}
		return Outcome{Status: models.ActivityOK, Message: msg}, true
	case jobs.StatusFailed:
		msg := j.Error
		if msg == "" {
			msg = "job failed"
		}
		return Outcome{Status: models.ActivityError, Message: msg}, true
	case jobs.StatusCancelled:
		msg := j.Error
		if msg == "" {
			msg = "cancelled by user"
		}
		return Outcome{Status: models.ActivityCancelled, Message: msg}, true
	}
	return Outcome{}, false
}

func staleOutcome(row models.ActivityModel, now time.Time, staleAfter time.Duration) (Outcome, bool) {
	if staleAfter <= 0 || now.Sub(row.Timestamp) < staleAfter {
		return Outcome{}, false
	}
	return Outcome{Status: models.ActivityError, Message: "no outcome reported"}, true
}
