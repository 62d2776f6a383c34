package worker

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/observability"
)

// Job is one run of a periodic task.
type Job func(ctx context.Context) error

type periodicJob struct {
	name      string
	interval  time.Duration
	immediate bool
	run       Job
}

// fixedInterval fires interval after each activation. cron.Every rounds to
// whole seconds.
type fixedInterval time.Duration

func (d fixedInterval) Next(t time.Time) time.Time {
	return t.Add(time.Duration(d))
}

// Scheduler runs registered jobs on fixed intervals until stopped. A panicking
// run is recovered, and a run still in flight when the next one is due causes
// that next run to be skipped.
type Scheduler struct {
	logger *zap.Logger
	cron   *cron.Cron
	jobs   []periodicJob

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates an empty scheduler.
func NewScheduler(logger *zap.Logger) *Scheduler {
	cl := observability.CronLogger(logger)
	return &Scheduler{
		logger: logger,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
}

// Every registers job. When immediate is set the first run happens at Start.
// A non-positive interval disables the job.
func (s *Scheduler) Every(name string, interval time.Duration, immediate bool, job Job) {
	s.jobs = append(s.jobs, periodicJob{name: name, interval: interval, immediate: immediate, run: job})
}

// Start schedules every job and starts the cron loop. Calling Start twice is a
// no-op. Cancelling ctx stops the scheduler like Stop does.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)

	for _, job := range s.jobs {
		if job.interval <= 0 {
			s.logger.Warn("periodic job disabled", zap.String("job", job.name))
			continue
		}
		id := s.cron.Schedule(fixedInterval(job.interval), s.wrap(ctx, job))
		s.logger.Info("periodic job scheduled", zap.String("job", job.name), zap.Duration("interval", job.interval))
		if job.immediate {
			// The wrapped job shares the skip guard with the scheduled runs.
			first := s.cron.Entry(id).WrappedJob
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				first.Run()
			}()
		}
	}
	s.cron.Start()

	go func() {
		<-ctx.Done()
		s.cron.Stop()
	}()
}

// Stop cancels in-flight runs, stops scheduling and waits for running jobs to
// return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
}

func (s *Scheduler) wrap(ctx context.Context, job periodicJob) cron.Job {
	return cron.FuncJob(func() {
		if ctx.Err() != nil {
			return
		}
		if err := job.run(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("periodic job failed", zap.String("job", job.name), zap.Error(err))
		}
	})
}
