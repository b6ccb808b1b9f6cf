package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/tgscreens/core/logger"
	"github.com/m3rciful/tgscreens/core/metrics"
	"github.com/m3rciful/tgscreens/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the chat's lane is saturated and the call was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	// QueueSize is the total backlog, split evenly between lanes.
	QueueSize int
	// Lanes is the number of workers. Calls for one chat always share a lane.
	Lanes        int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single call.
	MaxDuration time.Duration
}

// Call is one outbound Bot API request. Do must be idempotent when retries
// are enabled.
type Call struct {
	Chat   int64
	Method string
	Do     func(ctx context.Context) error
}

type queued struct {
	ctx  context.Context
	call Call
}

// Dispatcher executes outbound Telegram calls asynchronously with retries.
// Calls addressed to the same chat are delivered in enqueue order, so a
// keyboard cleanup never overtakes the screen edit queued before it.
type Dispatcher struct {
	opts  Options
	lanes []chan queued

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher starts a dispatcher with sane defaults if options are zeroed.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.Lanes <= 0 {
		opts.Lanes = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	opts.MaxRetries = max(opts.MaxRetries, 0)
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}

	perLane := max(opts.QueueSize/opts.Lanes, 1)
	d := &Dispatcher{opts: opts, lanes: make([]chan queued, opts.Lanes)}
	d.wg.Add(opts.Lanes)
	for i := range d.lanes {
		d.lanes[i] = make(chan queued, perLane)
		go d.drain(d.lanes[i])
	}
	return d
}

// Enqueue schedules c on the lane owning c.Chat.
func (d *Dispatcher) Enqueue(ctx context.Context, c Call) error {
	if c.Do == nil {
		return errors.New("telegram sender: call without Do")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.lane(c.Chat) <- queued{ctx: ctx, call: c}:
		metrics.SetSendQueue(d.Len())
		return nil
	default:
		return ErrQueueFull
	}
}

// Len returns the number of queued calls across all lanes.
func (d *Dispatcher) Len() int {
	n := 0
	for _, l := range d.lanes {
		n += len(l)
	}
	return n
}

// Close stops accepting calls and waits until the lanes are drained.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, l := range d.lanes {
		close(l)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) lane(chat int64) chan queued {
	i := chat % int64(len(d.lanes))
	if i < 0 {
		i = -i
	}
	return d.lanes[i]
}

func (d *Dispatcher) drain(lane chan queued) {
	defer d.wg.Done()
	for q := range lane {
		metrics.SetSendQueue(d.Len())
		metrics.ObserveSend(q.call.Method, d.deliver(q.ctx, q.call))
	}
}

// deliver runs c until it succeeds, fails permanently or runs out of
// attempts. Flood errors wait as long as Telegram asked.
func (d *Dispatcher) deliver(ctx context.Context, c Call) error {
	runCtx, cancel := context.WithTimeout(ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	attrs := callAttrs(c)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = c.Do(runCtx); err == nil {
			logger.Debug(ctx, "tg.sender", "send.success",
				append(attrs, slog.Int("attempt", attempt), slog.Duration("elapsed", time.Since(start)))...)
			return nil
		}
		if !netutil.ShouldRetry(err) || attempt == attempts {
			break
		}
		delay := d.opts.RetryBackoff * time.Duration(attempt)
		if wait, ok := netutil.RetryAfter(err); ok {
			delay = wait
		}
		logger.Debug(ctx, "tg.sender", "send.retry",
			append(attrs, slog.Int("attempt", attempt), slog.Duration("backoff", delay))...)
		if werr := sleepCtx(runCtx, delay); werr != nil {
			err = werr
			break
		}
	}

	logger.Error(ctx, "tg.sender", "send.fail", append(attrs,
		slog.String("err", redactToken(err)),
		slog.String("err_code", errorKind(err)),
		slog.Int("attempts", attempts),
		slog.Duration("elapsed", time.Since(start)),
	)...)
	return err
}

func callAttrs(c Call) []slog.Attr {
	attrs := []slog.Attr{slog.String("op", c.Method)}
	if c.Chat != 0 {
		attrs = append(attrs, slog.Int64("chat_id", c.Chat))
	}
	return attrs
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
