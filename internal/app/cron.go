package app

import (
	"context"
	"time"

	"github.com/contentflow/core/internal/modules/activity"
	pkgcron "github.com/contentflow/core/internal/pkg/cron"
	"github.com/contentflow/core/internal/pkg/jobs"
	"go.uber.org/zap"
)

const (
	activityStaleAfter = 24 * time.Hour
	jobRetention       = 3 * 24 * time.Hour
)

// registerCronJobs registers all scheduled background jobs.
func registerCronJobs(sched *pkgcron.Scheduler, activitySvc *activity.Service, store *jobs.Store, logger *zap.Logger) error {
	cronLogger := logger.Named("CronService")

	err := sched.Register(pkgcron.Job{
		Name:        "reconcile_activity",
		Description: "Settle queued activity entries from finished jobs",
		Interval:    time.Minute,
		Fn: func(ctx context.Context) error {
			_, err := activitySvc.Reconcile(ctx, store, activityStaleAfter)
			if err != nil {
				cronLogger.Warn("reconcile activity failed", zap.Error(err))
			}
			return err
		},
	})
	if err != nil {
		return err
	}

	return sched.Register(pkgcron.Job{
		Name:        "prune_jobs",
		Description: "Drop finished jobs older than three days",
		Interval:    6 * time.Hour,
		Fn: func(ctx context.Context) error {
			removed, err := store.Prune(ctx, time.Now().Add(-jobRetention))
			if err != nil {
				cronLogger.Warn("prune jobs failed", zap.Error(err))
				return err
			}
			if removed > 0 {
				cronLogger.Info("pruned jobs", zap.Int("removed", removed))
			}
			return nil
		},
	})
}
