package cron

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// JobStatus represents the last known state of a job.
type JobStatus string

const (
	StatusIdle    JobStatus = "idle"
	StatusRunning JobStatus = "running"
	StatusOK      JobStatus = "ok"
	StatusError   JobStatus = "error"
)

// Job defines a scheduled background task.
type Job struct {
	Name        string
	Description string
	Interval    time.Duration
	Fn          func(ctx context.Context) error
}

type jobState struct {
	Job
	mu        sync.Mutex
	status    JobStatus
	message   string
	lastRunAt *time.Time
	nextRunAt time.Time
}

// ListItem is the serializable representation of a job for the API.
type ListItem struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      JobStatus  `json:"status"`
	Message     string     `json:"message,omitempty"`
	NextRunAt   time.Time  `json:"next_run_at"`
	LastRunAt   *time.Time `json:"last_run_at,omitempty"`
}

// Scheduler runs named jobs at fixed intervals. A job never overlaps itself.
type Scheduler struct {
	mu      sync.RWMutex
	jobs    map[string]*jobState
	logger  *zap.Logger
	started bool
}

type Option func(*Scheduler)

func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l.Named("Cron")
		}
	}
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{jobs: make(map[string]*jobState), logger: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

var (
	ErrStarted    = errors.New("scheduler already started")
	ErrUnknownJob = errors.New("job not found")
	ErrBusy       = errors.New("job is already running")
)

// Register adds a job. It must be called before Start.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" || job.Fn == nil {
		return errors.New("cron: job needs a name and a func")
	}
	if job.Interval <= 0 {
		return fmt.Errorf("cron: job %q has no interval", job.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrStarted
	}
	if _, dup := s.jobs[job.Name]; dup {
		return fmt.Errorf("cron: job %q already registered", job.Name)
	}
	s.jobs[job.Name] = &jobState{Job: job, status: StatusIdle, nextRunAt: time.Now().Add(job.Interval)}
	return nil
}

// Start launches every registered job until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	for _, js := range s.jobs {
		go s.loop(ctx, js)
	}
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.jobs)))
}

func (s *Scheduler) loop(ctx context.Context, js *jobState) {
	for {
		js.mu.Lock()
		wait := max(time.Until(js.nextRunAt), 0)
		js.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.execute(ctx, js)
			js.mu.Lock()
			js.nextRunAt = time.Now().Add(js.Interval)
			js.mu.Unlock()
		}
	}
}

// execute runs the job once unless it is already running, and reports
// whether it ran.
func (s *Scheduler) execute(ctx context.Context, js *jobState) bool {
	js.mu.Lock()
	if js.status == StatusRunning {
		js.mu.Unlock()
		return false
	}
	js.status = StatusRunning
	js.mu.Unlock()

	start := time.Now()
	err := js.Fn(ctx)

	js.mu.Lock()
	defer js.mu.Unlock()
	js.lastRunAt = &start
	if err != nil {
		js.status = StatusError
		js.message = err.Error()
		s.logger.Warn("job failed", zap.String("job", js.Name), zap.Error(err))
	} else {
		js.status = StatusOK
		js.message = ""
		s.logger.Debug("job done", zap.String("job", js.Name), zap.Duration("took", time.Since(start)))
	}
	return true
}

// Run triggers a job by name and waits for it. It returns the job's own
// error, or an error if the job is unknown or already running.
func (s *Scheduler) Run(ctx context.Context, name string) error {
	s.mu.RLock()
	js, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}
	if !s.execute(ctx, js) {
		return fmt.Errorf("%w: %q", ErrBusy, name)
	}
	js.mu.Lock()
	defer js.mu.Unlock()
	if js.status == StatusError {
		return errors.New(js.message)
	}
	return nil
}

// Get returns the summary of one job.
func (s *Scheduler) Get(name string) (ListItem, bool) {
	s.mu.RLock()
	js, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return ListItem{}, false
	}
	return js.item(), true
}

// List returns a summary of all registered jobs, ordered by name.
func (s *Scheduler) List() []ListItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]ListItem, 0, len(s.jobs))
	for _, js := range s.jobs {
		items = append(items, js.item())
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items
}

func (js *jobState) item() ListItem {
	js.mu.Lock()
	defer js.mu.Unlock()
	return ListItem{
		Name:        js.Name,
		Description: js.Description,
		Status:      js.status,
		Message:     js.message,
		NextRunAt:   js.nextRunAt,
		LastRunAt:   js.lastRunAt,
	}
}
