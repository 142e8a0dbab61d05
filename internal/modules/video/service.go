// Package video runs avatar video generation: the workflow is asked to start
// a render, the resulting provider job is tracked in the job store and
// watched in the background until it finishes.
package video

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/contentflow/core/internal/models"
	"github.com/contentflow/core/internal/modules/activity"
	"github.com/contentflow/core/internal/modules/automation"
	"github.com/contentflow/core/internal/pkg/jobs"
	"github.com/contentflow/core/internal/pkg/poll"
	"go.uber.org/zap"
)

const Kind = string(automation.AvatarVideo)

var (
	ErrNotAccepted = errors.New("video workflow did not accept the render")
	ErrNoJobID     = errors.New("video workflow returned no job id")
)

type Config struct {
	Attempts     int
	PollInterval time.Duration
	PollTimeout  time.Duration
}

type StartInput struct {
	Script    string   `json:"script"`
	Images    []string `json:"images"`
	AvatarID  string   `json:"avatar_id"`
	Voice     string   `json:"voice"`
	CompanyID int64    `json:"company_id"`
}

type StartResult struct {
	Job      *jobs.Job              `json:"job"`
	Delivery *automation.SendResult `json:"delivery"`
	Warnings []automation.Warning   `json:"warnings"`
}

type Service struct {
	builder  *automation.Builder
	client   *automation.Client
	store    *jobs.Store
	activity automation.Recorder
	provider *Provider
	cfg      Config
	logger   *zap.Logger

	base     context.Context
	mu       sync.Mutex
	watchers map[string]context.CancelFunc
	closed   bool
	wg       sync.WaitGroup
}

// NewService creates the service. Watchers live as long as base.
func NewService(base context.Context, builder *automation.Builder, client *automation.Client, store *jobs.Store,
	rec automation.Recorder, provider *Provider, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	return &Service{
		builder:  builder,
		client:   client,
		store:    store,
		activity: rec,
		provider: provider,
		cfg:      cfg,
		logger:   logger.Named("VideoService"),
		base:     base,
		watchers: map[string]context.CancelFunc{},
	}
}

// Start asks the workflow to render a video and begins watching the provider
// job it reports.
func (s *Service) Start(ctx context.Context, userID string, in StartInput) (*StartResult, error) {
	p := s.builder.AvatarVideo(ctx, automation.AvatarVideoInput{
		Script:    in.Script,
		Images:    in.Images,
		AvatarID:  in.AvatarID,
		Voice:     in.Voice,
		CompanyID: in.CompanyID,
	})
	check := automation.Validate(p)
	if !check.OK {
		return nil, &automation.ValidationError{Result: check}
	}
	p = check.Normalized
	requestID := p.RequestID()
	out := &StartResult{Warnings: check.Warnings}

	if s.activity != nil {
		if err := s.activity.Record(ctx, activity.Entry{
			UserID: userID, Kind: Kind, RequestID: requestID, AssetCount: len(in.Images),
		}); err != nil {
			s.logger.Warn("record activity failed", zap.String("request_id", requestID), zap.Error(err))
		}
	}

	res, err := s.client.SendWithRetry(ctx, automation.AvatarVideo, p, automation.RetryOptions{Attempts: s.cfg.Attempts})
	out.Delivery = res
	if err != nil || !res.OK {
		s.fail(requestID, automation.OutcomeOf(res, err))
		if err != nil {
			return out, fmt.Errorf("%w: %w", ErrNotAccepted, err)
		}
		return out, ErrNotAccepted
	}

	providerID := providerJobID(res.Data)
	if providerID == "" {
		s.fail(requestID, activity.Outcome{Status: models.ActivityError, Message: ErrNoJobID.Error(), HTTPStatus: res.Status, Attempts: res.Attempts})
		return out, ErrNoJobID
	}

	job, err := s.store.Create(ctx, jobs.Job{
		Kind:          Kind,
		RequestID:     requestID,
		UserID:        userID,
		ProviderJobID: providerID,
		Status:        jobs.StatusRunning,
	})
	if err != nil {
		return out, err
	}
	out.Job = job
	s.watch(job)
	s.logger.Info("video render started",
		zap.String("job_id", job.ID),
		zap.String("provider_job_id", providerID),
		zap.String("request_id", requestID),
	)
	return out, nil
}

func (s *Service) fail(requestID string, o activity.Outcome) {
	if s.activity == nil {
		return
	}
	if err := s.activity.Mark(context.WithoutCancel(s.base), requestID, o); err != nil {
		s.logger.Warn("mark activity failed", zap.String("request_id", requestID), zap.Error(err))
	}
}

// Get returns the user's video job.
func (s *Service) Get(ctx context.Context, userID, id string) (*jobs.Job, error) {
	j, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if j.Kind != Kind || j.UserID != userID {
		return nil, jobs.ErrNotFound
	}
	return j, nil
}

func (s *Service) List(ctx context.Context, userID string, page, size int) ([]*jobs.Job, int64, error) {
	return s.store.List(ctx, page, size, jobs.Filter{Kind: Kind, UserID: userID})
}

// Cancel marks the job cancelled and stops its watcher. The provider render
// itself is not aborted.
func (s *Service) Cancel(ctx context.Context, userID, id string) (*jobs.Job, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	j, err := s.store.Cancel(ctx, id, "")
	if err != nil {
		return j, err
	}
	s.stop(id)
	return j, nil
}

// Resume watches every running video job again, typically after a restart.
func (s *Service) Resume(ctx context.Context) (int, error) {
	running, _, err := s.store.List(ctx, 1, 1000, jobs.Filter{Kind: Kind, Status: jobs.StatusRunning})
	if err != nil {
		return 0, err
	}
	for _, j := range running {
		s.watch(j)
	}
	return len(running), nil
}

// Watching reports how many jobs are being polled.
func (s *Service) Watching() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers)
}

// Shutdown stops every watcher and waits for them to return. No watcher is
// started afterwards.
func (s *Service) Shutdown() {
	s.mu.Lock()
	s.closed = true
	for _, cancel := range s.watchers {
		cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Service) watch(j *jobs.Job) {
	s.mu.Lock()
	if _, ok := s.watchers[j.ID]; ok || s.closed {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(s.base)
	s.watchers[j.ID] = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.stop(j.ID)

		status, err := poll.Until(ctx, poll.Options{
			GetStatus: func(ctx context.Context) (*poll.Status, error) {
				st, err := s.provider.Status(ctx, j.ProviderJobID)
				if err != nil {
					return nil, err
				}
				s.progress(ctx, j.ID, st)
				return st, nil
			},
			Interval: s.cfg.PollInterval,
			Timeout:  s.cfg.PollTimeout,
			OnError: func(err error) {
				s.logger.Debug("provider status failed", zap.String("job_id", j.ID), zap.Error(err))
			},
		})
		s.finish(j.ID, status, err)
	}()
}

func (s *Service) stop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.watchers[id]; ok {
		cancel()
		delete(s.watchers, id)
	}
}

func (s *Service) progress(ctx context.Context, id string, st *poll.Status) {
	if poll.DefaultIsDone(st) || st.Progress <= 0 {
		return
	}
	_, err := s.store.Update(ctx, id, func(j *jobs.Job) {
		j.Progress = float64(st.Progress)
	})
	if err != nil && !errors.Is(err, jobs.ErrNotRunning) {
		s.logger.Warn("update job progress failed", zap.String("job_id", id), zap.Error(err))
	}
}

func (s *Service) finish(id string, st *poll.Status, err error) {
	if poll.IsCancelled(err) {
		s.logger.Info("video watcher stopped", zap.String("job_id", id))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, uerr := s.store.Update(ctx, id, func(j *jobs.Job) {
		switch {
		case poll.IsTimeout(err):
			j.Status = jobs.StatusFailed
			j.Error = "timed out waiting for the video provider"
		case err != nil:
			j.Status = jobs.StatusFailed
			j.Error = err.Error()
		case st.Failed():
			j.Status = jobs.StatusFailed
			j.Error = st.Error
			if j.Error == "" {
				j.Error = "provider reported failure"
			}
		default:
			j.Status = jobs.StatusCompleted
			j.Progress = 100
			j.ResultURL = st.ResultURL
		}
	})
	if uerr != nil && !errors.Is(uerr, jobs.ErrNotRunning) {
		s.logger.Error("finish job failed", zap.String("job_id", id), zap.Error(uerr))
		return
	}
	s.logger.Info("video job finished", zap.String("job_id", id), zap.Error(err))
}
