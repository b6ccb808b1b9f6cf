// Package jobs runs delayed and recurring callbacks on a robfig/cron scheduler.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/m3rciful/tgscreens/core/logger"
	"github.com/m3rciful/tgscreens/core/metrics"
)

var (
	// ErrCallbackNotProvided is returned for a job without a callback.
	ErrCallbackNotProvided = errors.New("jobs: callback is not provided")
	// ErrScheduleNotProvided is returned for a recurring job without a schedule.
	ErrScheduleNotProvided = errors.New("jobs: schedule is not provided")
)

// Job describes the invocation handed to a callback.
type Job struct {
	Name   string
	ChatID int64
}

// Func is a job callback.
type Func func(ctx context.Context, job Job) error

// Config declares a recurring job.
type Config struct {
	Name string
	// Schedule is a cron spec or descriptor such as "@every 1m" or "0 9 * * *".
	Schedule string
	Callback Func
	ChatID   int64
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if c.Callback == nil {
		return fmt.Errorf("%w: job %q", ErrCallbackNotProvided, c.Name)
	}
	if c.Schedule == "" {
		return fmt.Errorf("%w: job %q", ErrScheduleNotProvided, c.Name)
	}
	return nil
}

// Queue schedules callbacks. Jobs run on their own goroutines; a job that is
// still running when its next tick arrives is skipped.
type Queue struct {
	cron   *cron.Cron
	parser cron.Parser

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

// New creates a stopped queue.
func New() *Queue {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	log := cronLogger{}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{cron: c, parser: parser, ctx: ctx, cancel: cancel}
}

// Register adds a recurring job.
func (q *Queue) Register(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	sched, err := q.parser.Parse(cfg.Schedule)
	if err != nil {
		return fmt.Errorf("jobs: job %q: %w", cfg.Name, err)
	}
	job := Job{Name: cfg.Name, ChatID: cfg.ChatID}
	q.cron.Schedule(sched, cron.FuncJob(func() { q.run(job, cfg.Callback) }))
	logger.Jobs.Debug("job registered",
		slog.String("event", "jobs.register"),
		slog.String("job", cfg.Name),
		slog.String("schedule", cfg.Schedule),
	)
	return nil
}

// RunOnce schedules fn to run once after delay for chatID. There is no way to
// cancel it; the entry is removed after it fires.
func (q *Queue) RunOnce(delay time.Duration, chatID int64, name string, fn Func) error {
	if fn == nil {
		return fmt.Errorf("%w: job %q", ErrCallbackNotProvided, name)
	}
	job := Job{Name: name, ChatID: chatID}
	var id cron.EntryID
	ready := make(chan struct{})
	id = q.cron.Schedule(&onceSchedule{at: time.Now().Add(delay)}, cron.FuncJob(func() {
		<-ready
		defer q.cron.Remove(id)
		q.run(job, fn)
	}))
	close(ready)
	return nil
}

// Start launches the scheduler; it is a no-op on a running queue.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.running = true
	q.cron.Start()
}

// Stop halts scheduling, cancels the context handed to jobs and waits for
// running jobs until ctx ends. A stopped queue is not restarted.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	q.mu.Unlock()

	done := q.cron.Stop()
	defer q.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len reports the number of scheduled entries.
func (q *Queue) Len() int {
	return len(q.cron.Entries())
}

func (q *Queue) run(job Job, fn Func) {
	ctx := logger.WithLogger(q.ctx, logger.Jobs)
	start := time.Now()
	err := fn(ctx, job)
	metrics.ObserveJob(job.Name, err)
	attrs := []slog.Attr{
		slog.String("status", logger.Outcome(err)),
		slog.String("job", job.Name),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	}
	if job.ChatID != 0 {
		attrs = append(attrs, slog.Int64("chat_id", job.ChatID))
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
		logger.LogEvent(ctx, logger.Jobs, slog.LevelError, "jobs.run", attrs...)
		return
	}
	logger.LogEvent(ctx, logger.Jobs, slog.LevelDebug, "jobs.run", attrs...)
}

// onceSchedule fires at the given time and never again.
type onceSchedule struct {
	at   time.Time
	used atomic.Bool
}

func (s *onceSchedule) Next(t time.Time) time.Time {
	if s.used.Swap(true) {
		return time.Time{}
	}
	if s.at.Before(t) {
		return t
	}
	return s.at
}

// cronLogger forwards scheduler diagnostics to the jobs component logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	logger.Jobs.Debug(msg, append([]any{slog.String("event", "jobs.cron")}, keysAndValues...)...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	args := append([]any{slog.String("event", "jobs.cron"), slog.String("err", err.Error())}, keysAndValues...)
	logger.Jobs.Error(msg, args...)
}
