package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/archivecfg"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/audit"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
	"github.com/Auriora/admin-assistant-sub001/internal/domain/user"
	"github.com/Auriora/admin-assistant-sub001/internal/service/archiver"
)

// Job is one archival work order for the pool.
type Job struct {
	User          *user.User
	Config        *archivecfg.Configuration
	Start         time.Time
	End           time.Time
	Type          archiver.ArchiveType
	IncludeTravel bool
	CorrelationID string
}

// JobResult pairs a job with its outcome. Skipped means another process
// holds the configuration's run lock; the job never executed.
type JobResult struct {
	Job      Job
	Result   *archiver.Result
	Err      error
	Skipped  bool
	Duration time.Duration
}

// RunLock serializes runs of one configuration across processes. Acquire
// returns false without error when the lock is already held.
type RunLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Config tunes the pool.
type Config struct {
	Workers int
	LockTTL time.Duration
}

const (
	defaultWorkers = 4
	defaultLockTTL = 15 * time.Minute
)

// Pool fans archival jobs over a bounded worker set. Results come back in
// submit order regardless of completion order.
type Pool struct {
	cfg      Config
	archiver archiver.Service
	lock     RunLock
	logger   *zap.Logger
	running  int32
}

// NewPool creates a pool. The run lock is optional; without one, jobs run
// unserialized, which is fine for a single process.
func NewPool(cfg Config, svc archiver.Service, lock RunLock, logger *zap.Logger) (*Pool, error) {
	if svc == nil {
		return nil, errors.NewInternalError("archiver service is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{cfg: cfg, archiver: svc, lock: lock, logger: logger}, nil
}

// Run executes every job and blocks until all finish. Only one Run may be
// in flight per pool.
func (p *Pool) Run(ctx context.Context, jobs []Job) ([]JobResult, error) {
	if !atomic.CompareAndSwapInt32(&p.running, 0, 1) {
		return nil, errors.NewConflictError("scheduler pool is already running")
	}
	defer atomic.StoreInt32(&p.running, 0)

	if len(jobs) == 0 {
		return nil, nil
	}

	results := make([]JobResult, len(jobs))
	workers := p.cfg.Workers
	if workers > len(jobs) {
		workers = len(jobs)
	}

	p.logger.Info("scheduler run starting",
		zap.Int("jobs", len(jobs)),
		zap.Int("workers", workers))

	indexes := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indexes {
				results[idx] = p.execute(ctx, jobs[idx])
			}
		}()
	}

	submitted := 0
dispatch:
	for i := range jobs {
		select {
		case indexes <- i:
			submitted++
		case <-ctx.Done():
			break dispatch
		}
	}
	close(indexes)
	wg.Wait()

	for i := submitted; i < len(jobs); i++ {
		results[i] = JobResult{Job: jobs[i], Err: errors.NewCancelledError("Operation cancelled mid-flight")}
	}

	p.logger.Info("scheduler run finished",
		zap.Int("jobs", len(jobs)),
		zap.Int("submitted", submitted))
	return results, nil
}

func (p *Pool) execute(ctx context.Context, job Job) JobResult {
	started := time.Now()
	res := JobResult{Job: job}

	if job.User == nil || job.Config == nil {
		res.Err = errors.NewValidationError("INVALID_JOB", "job requires a user and a configuration")
		return res
	}

	key := lockKey(job)
	if p.lock != nil {
		held, err := p.lock.Acquire(ctx, key, p.cfg.LockTTL)
		switch {
		case err != nil:
			// Lock storage being down must not stop archival; duplicate
			// runs degrade into skipped duplicates downstream.
			p.logger.Warn("run lock unavailable, continuing without it",
				zap.String("key", key), zap.Error(err))
		case !held:
			p.logger.Info("configuration already running elsewhere, skipping",
				zap.String("key", key))
			res.Skipped = true
			return res
		default:
			defer func() {
				if rerr := p.lock.Release(context.WithoutCancel(ctx), key); rerr != nil {
					p.logger.Warn("failed to release run lock",
						zap.String("key", key), zap.Error(rerr))
				}
			}()
		}
	}

	correlationID := job.CorrelationID
	if correlationID == "" {
		correlationID = audit.NewCorrelationID()
	}
	result, err := p.archiver.Archive(ctx, archiver.Request{
		User:          job.User,
		Config:        job.Config,
		Start:         job.Start,
		End:           job.End,
		Type:          job.Type,
		IncludeTravel: job.IncludeTravel,
		CorrelationID: correlationID,
	})
	res.Result = result
	res.Err = err
	res.Duration = time.Since(started)
	return res
}

func lockKey(job Job) string {
	return fmt.Sprintf("archive:run:%s:%s", job.User.ID, job.Config.ID)
}
