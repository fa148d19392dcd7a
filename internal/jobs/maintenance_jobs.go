package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	// RetentionSweepJobName is the name of the dataset retention sweep
	RetentionSweepJobName = "retention_sweep"

	// SessionPurgeJobName is the name of the expired session purge
	SessionPurgeJobName = "session_purge"

	// DefaultJobTimeout bounds a single run of a maintenance job
	DefaultJobTimeout = 5 * time.Minute
)

// RetentionSweeper re-applies the per-user dataset cap.
type RetentionSweeper interface {
	SweepRetention(ctx context.Context) (int, error)
}

// SessionPurger deletes expired auth sessions.
type SessionPurger interface {
	PurgeExpiredSessions(ctx context.Context) (int64, error)
}

// RetentionSweepJob evicts datasets beyond the retention cap, covering rows
// written outside the upload path such as imports or a lowered cap.
type RetentionSweepJob struct {
	sweeper RetentionSweeper
	logger  *zap.Logger
	timeout time.Duration
}

func NewRetentionSweepJob(sweeper RetentionSweeper, logger *zap.Logger, timeout time.Duration) *RetentionSweepJob {
	return &RetentionSweepJob{sweeper: sweeper, logger: logger, timeout: timeout}
}

// Run executes one sweep. It is called by the scheduler.
func (j *RetentionSweepJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	evicted, err := j.sweeper.SweepRetention(ctx)
	if err != nil {
		j.logger.Error("retention sweep failed",
			zap.Error(err),
			zap.Int("evicted", evicted),
			zap.Duration("duration", time.Since(start)))
		return
	}

	j.logger.Info("retention sweep completed",
		zap.Int("evicted", evicted),
		zap.Duration("duration", time.Since(start)))
}

// SessionPurgeJob removes sessions whose tokens have expired.
type SessionPurgeJob struct {
	purger  SessionPurger
	logger  *zap.Logger
	timeout time.Duration
}

func NewSessionPurgeJob(purger SessionPurger, logger *zap.Logger, timeout time.Duration) *SessionPurgeJob {
	return &SessionPurgeJob{purger: purger, logger: logger, timeout: timeout}
}

// Run executes one purge. It is called by the scheduler.
func (j *SessionPurgeJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	purged, err := j.purger.PurgeExpiredSessions(ctx)
	if err != nil {
		j.logger.Error("session purge failed", zap.Error(err))
		return
	}
	if purged > 0 {
		j.logger.Info("expired sessions purged", zap.Int64("count", purged))
	}
}

// RegisterRetentionSweepJob registers the retention sweep with the scheduler.
// When runAtStartup is set a sweep also runs immediately in the background.
func RegisterRetentionSweepJob(scheduler *Scheduler, sweeper RetentionSweeper, logger *zap.Logger, cronExpr string, runAtStartup bool) error {
	job := NewRetentionSweepJob(sweeper, logger, DefaultJobTimeout)
	if runAtStartup {
		go job.Run()
	}
	return scheduler.AddJob(RetentionSweepJobName, cronExpr, job.Run)
}

// RegisterSessionPurgeJob registers the expired session purge with the scheduler.
func RegisterSessionPurgeJob(scheduler *Scheduler, purger SessionPurger, logger *zap.Logger, cronExpr string) error {
	job := NewSessionPurgeJob(purger, logger, DefaultJobTimeout)
	return scheduler.AddJob(SessionPurgeJobName, cronExpr, job.Run)
}
