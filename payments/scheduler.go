package payments

import (
	"context"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Default schedules.
const (
	DefaultReconcileSchedule = "@every 60s"
	DefaultCloseSchedule     = "0 0 * * *"
	DefaultLeaseTTL          = 55 * time.Second
)

// JobFunc is a scheduled unit of work.
type JobFunc func(ctx context.Context) error

// Scheduler runs jobs on cron schedules. A job never overlaps itself in
// process, and across replicas only the holder of the job's lease runs it.
type Scheduler struct {
	cron   *cron.Cron
	locker Locker
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerLogger sets the logger.
func WithSchedulerLogger(logger *zap.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScheduler creates a scheduler guarded by locker.
func NewScheduler(locker Locker, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		locker: locker,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	cl := cronLogger{s.logger}
	s.cron = cron.New(cron.WithChain(
		cron.Recover(cl),
		cron.SkipIfStillRunning(cl),
	))
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Add registers job under name. ttl bounds the lease; keep it below the
// schedule interval.
func (s *Scheduler) Add(spec, name string, ttl time.Duration, job JobFunc) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.run(name, ttl, job)
	})
	return pkgerrors.Wrapf(err, "schedule %s", name)
}

// RunNow runs job once under its lease, outside the cron loop.
func (s *Scheduler) RunNow(name string, ttl time.Duration, job JobFunc) {
	s.run(name, ttl, job)
}

func (s *Scheduler) run(name string, ttl time.Duration, job JobFunc) {
	logger := s.logger.With(zap.String("job", name))

	lease, err := s.locker.Acquire(s.ctx, name, ttl)
	if err != nil {
		logger.Error("cannot acquire job lease", zap.Error(err))
		return
	}
	if lease == nil {
		logger.Debug("job lease held elsewhere, skipping")
		return
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(s.ctx)); err != nil {
			logger.Warn("job lease release failed", zap.Error(err))
		}
	}()

	start := time.Now()
	if err := job(s.ctx); err != nil {
		logger.Error("job failed", zap.Duration("took", time.Since(start)), zap.Error(err))
		return
	}
	logger.Debug("job finished", zap.Duration("took", time.Since(start)))
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
