package schedule

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/freekieb7/ember/test"
)

func newTestScheduler() *Scheduler {
	return NewScheduler(slog.New(slog.DiscardHandler)).WithResolution(5 * time.Millisecond)
}

func TestAddJobValidation(t *testing.T) {
	scheduler := newTestScheduler()

	err := scheduler.AddJob(NewJob("no-interval").WithTasks(func(context.Context) error { return nil }))
	test.ErrorIs(t, err, ErrInvalidInterval)

	err = scheduler.AddJob(NewJob("no-tasks").WithInterval(time.Second))
	test.ErrorIs(t, err, ErrNoTasks)
}

func TestRunExecutesDueJobs(t *testing.T) {
	scheduler := newTestScheduler()

	var runs atomic.Int32
	job := NewJob("count").
		WithInterval(10 * time.Millisecond).
		WithExecuteAt(time.Now()).
		WithTasks(func(context.Context) error {
			runs.Add(1)
			return nil
		})
	test.NoError(t, scheduler.AddJob(job))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	test.ErrorIs(t, scheduler.Run(ctx), context.DeadlineExceeded)

	test.True(t, runs.Load() >= 2, "job did not repeat")
	test.True(t, !job.PreviousExecuteAt().IsZero(), "previous execution not recorded")
}

func TestJobsDoNotOverlap(t *testing.T) {
	scheduler := newTestScheduler()

	var active, peak atomic.Int32
	job := NewJob("slow").
		WithInterval(time.Millisecond).
		WithExecuteAt(time.Now()).
		WithTasks(func(context.Context) error {
			n := active.Add(1)
			if n > peak.Load() {
				peak.Store(n)
			}
			time.Sleep(30 * time.Millisecond)
			active.Add(-1)
			return nil
		})
	test.NoError(t, scheduler.AddJob(job))

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	scheduler.Run(ctx)

	test.Equal(t, int32(1), peak.Load())
}

func TestTaskFailuresAreContained(t *testing.T) {
	scheduler := newTestScheduler()

	var after atomic.Bool
	job := NewJob("failing").
		WithInterval(time.Hour).
		WithExecuteAt(time.Now()).
		WithTimeout(10 * time.Millisecond).
		WithTasks(
			func(context.Context) error { panic("boom") },
			func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
			func(context.Context) error { return errors.New("plain failure") },
			func(context.Context) error {
				after.Store(true)
				return nil
			},
		)
	test.NoError(t, scheduler.AddJob(job))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	scheduler.Run(ctx)

	test.True(t, after.Load(), "tasks after a failing task did not run")
}
