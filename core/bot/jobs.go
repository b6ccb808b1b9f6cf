package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/m3rciful/tgscreens/core/jobs"
	"github.com/m3rciful/tgscreens/core/screens"
)

const flushJobName = "persistence.flush"

// JobFunc is a scheduled callback. The context it gets carries the job's
// chat id and no sender.
type JobFunc func(c *screens.Context, job jobs.Job) error

// JobConfig describes a recurring job. Schedule is a cron spec or a
// descriptor such as "@every 1h".
type JobConfig struct {
	Name     string
	Schedule string
	ChatID   int64
	Callback JobFunc
}

func (b *Bot) registerJobs(cfgs []JobConfig) error {
	for _, jc := range cfgs {
		cfg := jobs.Config{Name: jc.Name, Schedule: jc.Schedule, ChatID: jc.ChatID}
		if jc.Callback != nil {
			cfg.Callback = b.jobFunc(jc.Callback)
		}
		if err := b.queue.Register(cfg); err != nil {
			return err
		}
	}
	if !b.engine.Backend.OnFlush() {
		return nil
	}
	interval := b.cfg.Persistence.UpdateIntervalSeconds
	if interval <= 0 {
		return nil
	}
	return b.queue.Register(jobs.Config{
		Name:     flushJobName,
		Schedule: fmt.Sprintf("@every %ds", interval),
		Callback: func(ctx context.Context, _ jobs.Job) error {
			return b.engine.Backend.Flush(ctx)
		},
	})
}

func (b *Bot) jobFunc(fn JobFunc) jobs.Func {
	return func(ctx context.Context, job jobs.Job) error {
		c := b.engine.NewContext(ctx, screens.Update{ChatID: job.ChatID})
		if err := fn(c, job); err != nil {
			b.HandleError(c, err)
			return err
		}
		return nil
	}
}

// RunOnce schedules fn to run once after delay for chatID.
func (b *Bot) RunOnce(delay time.Duration, chatID int64, name string, fn JobFunc) error {
	if fn == nil {
		return b.queue.RunOnce(delay, chatID, name, nil)
	}
	return b.queue.RunOnce(delay, chatID, name, b.jobFunc(fn))
}
