package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrInvalidInterval = errors.New("schedule: job interval must be greater than 0")
	ErrNoTasks         = errors.New("schedule: job must have at least one task")
)

// Task is one unit of work. The context carries the job timeout, if any.
type Task func(ctx context.Context) error

type Scheduler struct {
	jobs       []*Job
	mu         sync.RWMutex
	wg         sync.WaitGroup
	logger     *slog.Logger
	resolution time.Duration
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		jobs:       make([]*Job, 0),
		logger:     logger,
		resolution: time.Second,
	}
}

// WithResolution sets how often due jobs are checked for.
func (scheduler *Scheduler) WithResolution(resolution time.Duration) *Scheduler {
	scheduler.resolution = resolution
	return scheduler
}

func (scheduler *Scheduler) AddJob(job *Job) error {
	if job.interval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, job.name)
	}
	if len(job.tasks) == 0 {
		return fmt.Errorf("%w: %s", ErrNoTasks, job.name)
	}

	job.mu.Lock()
	if job.nextExecuteAt.IsZero() {
		job.nextExecuteAt = time.Now().Add(job.interval)
	}
	job.mu.Unlock()

	scheduler.mu.Lock()
	defer scheduler.mu.Unlock()
	scheduler.jobs = append(scheduler.jobs, job)
	return nil
}

type Job struct {
	tasks             []Task
	interval          time.Duration
	nextExecuteAt     time.Time
	previousExecuteAt time.Time
	name              string
	timeout           time.Duration
	running           bool
	mu                sync.Mutex
}

func NewJob(name string) *Job {
	return &Job{
		name:  name,
		tasks: make([]Task, 0),
	}
}

func (job *Job) WithTasks(tasks ...Task) *Job {
	job.tasks = tasks
	return job
}

func (job *Job) WithInterval(interval time.Duration) *Job {
	job.interval = interval
	return job
}

func (job *Job) WithExecuteAt(executeAt time.Time) *Job {
	job.nextExecuteAt = executeAt
	return job
}

func (job *Job) WithTimeout(timeout time.Duration) *Job {
	job.timeout = timeout
	return job
}

func (job *Job) Name() string {
	return job.name
}

func (job *Job) PreviousExecuteAt() time.Time {
	job.mu.Lock()
	defer job.mu.Unlock()
	return job.previousExecuteAt
}

// Run executes due jobs until ctx is done, then waits for running jobs.
func (scheduler *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(scheduler.resolution)
	defer ticker.Stop()
	defer scheduler.wg.Wait()

	for {
		select {
		case now := <-ticker.C:
			scheduler.mu.RLock()
			jobs := make([]*Job, len(scheduler.jobs))
			copy(jobs, scheduler.jobs)
			scheduler.mu.RUnlock()

			for _, job := range jobs {
				if !job.claim(now) {
					continue
				}

				// jobs run concurrently, tasks within a job sequentially
				scheduler.wg.Add(1)
				go func() {
					defer scheduler.wg.Done()
					scheduler.executeJob(ctx, job)
				}()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// claim marks the job as running when it is due and not already running.
func (job *Job) claim(now time.Time) bool {
	job.mu.Lock()
	defer job.mu.Unlock()

	if job.running || job.nextExecuteAt.After(now) {
		return false
	}
	job.running = true
	job.previousExecuteAt = now
	job.nextExecuteAt = now.Add(job.interval)
	return true
}

func (scheduler *Scheduler) executeJob(ctx context.Context, job *Job) {
	defer func() {
		job.mu.Lock()
		job.running = false
		job.mu.Unlock()
	}()

	for i, task := range job.tasks {
		if err := scheduler.executeTask(ctx, task, job.timeout); err != nil {
			scheduler.logger.Error("task execution failed", "job", job.name, "task", i, "error", err)
		}
	}
}

func (scheduler *Scheduler) executeTask(ctx context.Context, task Task, timeout time.Duration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("schedule: task panic: %v", r)
		}
	}()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return task(ctx)
}
