// Package jobs is the external job store: long-running generation work
// (avatar videos, content batches) tracked in Redis by id and by the request
// id of the delivery that started it.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	redisc "github.com/contentflow/core/internal/pkg/redis"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

var (
	ErrNotFound   = errors.New("job not found")
	ErrNotRunning = errors.New("job already finished")
)

// Job is one tracked unit of external work.
type Job struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	RequestID     string    `json:"request_id"`
	UserID        string    `json:"user_id,omitempty"`
	ProviderJobID string    `json:"provider_job_id,omitempty"`
	Status        Status    `json:"status"`
	Progress      float64   `json:"progress"`
	ResultURL     string    `json:"result_url,omitempty"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

const (
	keyPrefix  = "cf:job:"
	keyIndex   = "cf:jobs:index"   // sorted set: score=created_at, member=job id
	keyRequest = "cf:jobs:request" // hash: request id -> job id
	jobTTL     = 7 * 24 * time.Hour
)

// Store manages jobs in Redis.
type Store struct {
	rc  *redisc.Client
	now func() time.Time
}

func NewStore(rc *redisc.Client) *Store {
	return &Store{rc: rc, now: time.Now}
}

func jobKey(id string) string { return keyPrefix + id }

// Create stores a new pending job. An id is generated when j.ID is empty.
func (s *Store) Create(ctx context.Context, j Job) (*Job, error) {
	if strings.TrimSpace(j.ID) == "" {
		j.ID = uuid.New().String()
	}
	if j.Status == "" {
		j.Status = StatusPending
	}
	now := s.now()
	j.CreatedAt, j.UpdatedAt = now, now

	if err := s.save(ctx, &j, true); err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *Store) save(ctx context.Context, j *Job, created bool) error {
	pipe := s.rc.Raw().TxPipeline()
	data, err := encode(j)
	if err != nil {
		return err
	}
	pipe.Set(ctx, jobKey(j.ID), data, jobTTL)
	if created {
		pipe.ZAdd(ctx, keyIndex, redis.Z{Score: float64(j.CreatedAt.UnixMilli()), Member: j.ID})
		if j.RequestID != "" {
			pipe.HSet(ctx, keyRequest, j.RequestID, j.ID)
			pipe.Expire(ctx, keyRequest, jobTTL)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save job %s: %w", j.ID, err)
	}
	return nil
}

// Get returns the job with id or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	var j Job
	found, err := s.rc.GetJSON(ctx, jobKey(id), &j)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &j, nil
}

// GetByRequestID resolves a job from the request id of its delivery.
func (s *Store) GetByRequestID(ctx context.Context, requestID string) (*Job, error) {
	id, err := s.rc.Raw().HGet(ctx, keyRequest, requestID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

const maxUpdateTries = 5

// Update applies fn to the stored job and persists it. Terminal jobs are
// left untouched and ErrNotRunning is returned. Concurrent writers are
// serialised with WATCH.
func (s *Store) Update(ctx context.Context, id string, fn func(*Job)) (*Job, error) {
	key := jobKey(id)
	for range maxUpdateTries {
		var out *Job
		err := s.rc.Raw().Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			if err != nil {
				return err
			}
			var j Job
			if err := json.Unmarshal(data, &j); err != nil {
				return fmt.Errorf("decode job %s: %w", id, err)
			}
			out = &j
			if j.Status.Terminal() {
				return ErrNotRunning
			}
			fn(&j)
			j.UpdatedAt = s.now()
			enc, err := encode(&j)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, enc, jobTTL)
				return nil
			})
			return err
		}, key)
		switch {
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, ErrNotRunning):
			return out, err
		case err != nil:
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("update job %s: too many concurrent writers", id)
}

// Cancel marks a pending or running job cancelled.
func (s *Store) Cancel(ctx context.Context, id, reason string) (*Job, error) {
	if reason == "" {
		reason = "cancelled by user"
	}
	return s.Update(ctx, id, func(j *Job) {
		j.Status = StatusCancelled
		j.Error = reason
	})
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	Kind   string
	UserID string
	Status Status
}

func (f Filter) match(j *Job) bool {
	return (f.Kind == "" || j.Kind == f.Kind) &&
		(f.UserID == "" || j.UserID == f.UserID) &&
		(f.Status == "" || j.Status == f.Status)
}

// List returns jobs matching f, newest first.
func (s *Store) List(ctx context.Context, page, size int, f Filter) ([]*Job, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	ids, err := s.rc.Raw().ZRevRange(ctx, keyIndex, 0, -1).Result()
	if err != nil {
		return nil, 0, err
	}

	out := make([]*Job, 0, len(ids))
	for _, id := range ids {
		j, err := s.Get(ctx, id)
		if err != nil {
			continue
		}
		if f.match(j) {
			out = append(out, j)
		}
	}

	total := int64(len(out))
	start := (page - 1) * size
	if start >= len(out) {
		return []*Job{}, total, nil
	}
	end := min(start+size, len(out))
	return out[start:end], total, nil
}

// Prune drops index entries of expired jobs and terminal jobs created before
// cutoff. It returns the number of jobs removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := s.rc.Raw().ZRange(ctx, keyIndex, 0, -1).Result()
	if err != nil {
		return 0, err
	}
	pipe := s.rc.Raw().TxPipeline()
	removed := 0
	for _, id := range ids {
		j, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			pipe.ZRem(ctx, keyIndex, id)
			removed++
			continue
		}
		if err != nil || !j.Status.Terminal() || !j.CreatedAt.Before(cutoff) {
			continue
		}
		pipe.Del(ctx, jobKey(id))
		pipe.ZRem(ctx, keyIndex, id)
		if j.RequestID != "" {
			pipe.HDel(ctx, keyRequest, j.RequestID)
		}
		removed++
	}
	if removed == 0 {
		return 0, nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return removed, nil
}

func encode(j *Job) ([]byte, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("encode job %s: %w", j.ID, err)
	}
	return data, nil
}
