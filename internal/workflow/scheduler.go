package workflow

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the manager's periodic jobs. Jobs must be registered
// before Start; Stop blocks until running jobs return.
type Scheduler interface {
	Schedule(name string, every time.Duration, fn func()) error
	Start()
	Stop()
}

// TickerScheduler runs each job on its own time.Ticker. It is the default:
// no external dependencies on wall-clock alignment, and Stop joins cleanly.
type TickerScheduler struct {
	mu      sync.Mutex
	jobs    []tickerJob
	done    chan struct{}
	wg      sync.WaitGroup
	started bool
}

type tickerJob struct {
	name  string
	every time.Duration
	fn    func()
}

// NewTickerScheduler creates an empty ticker scheduler.
func NewTickerScheduler() *TickerScheduler {
	return &TickerScheduler{done: make(chan struct{})}
}

// Schedule registers a job to run every interval.
func (s *TickerScheduler) Schedule(name string, every time.Duration, fn func()) error {
	if every <= 0 {
		return fmt.Errorf("job %s: interval must be positive", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("job %s: scheduler already started", name)
	}
	s.jobs = append(s.jobs, tickerJob{name: name, every: every, fn: fn})
	return nil
}

// Start launches one goroutine per job.
func (s *TickerScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	for _, job := range s.jobs {
		s.wg.Add(1)
		go func(job tickerJob) {
			defer s.wg.Done()
			ticker := time.NewTicker(job.every)
			defer ticker.Stop()
			for {
				select {
				case <-s.done:
					return
				case <-ticker.C:
					job.fn()
				}
			}
		}(job)
	}
}

// Stop halts all jobs and waits for them to return.
func (s *TickerScheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()
}

// CronScheduler runs jobs on a cron runner. It exists for deployments that
// already standardize operational cadences on cron expressions.
type CronScheduler struct {
	cron *cron.Cron
}

// NewCronScheduler creates a cron-backed scheduler.
func NewCronScheduler() *CronScheduler {
	return &CronScheduler{cron: cron.New()}
}

// Schedule registers a job using an @every expression. Intervals under one
// second are rejected: cron rounds them up to a second, which would silently
// stretch the cadence the caller asked for.
func (s *CronScheduler) Schedule(name string, every time.Duration, fn func()) error {
	if every < time.Second {
		return fmt.Errorf("job %s: interval must be at least one second", name)
	}
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", every), fn); err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}
	return nil
}

// Start launches the cron runner.
func (s *CronScheduler) Start() {
	s.cron.Start()
}

// Stop halts the runner and waits for running jobs to finish.
func (s *CronScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
