package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/tgscreens/core/logger"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	Interval  time.Duration
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

// limiter remembers when each user was last let through. Entries older than
// the interval are swept once the table grows past sweepAt.
type limiter struct {
	mu       sync.Mutex
	interval time.Duration
	seen     map[int64]time.Time
	sweepAt  int
}

const minSweep = 1024

func (l *limiter) allow(userID int64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if last, ok := l.seen[userID]; ok && now.Sub(last) < l.interval {
		return false
	}
	l.seen[userID] = now
	if len(l.seen) >= l.sweepAt {
		for id, last := range l.seen {
			if now.Sub(last) >= l.interval {
				delete(l.seen, id)
			}
		}
		l.sweepAt = max(minSweep, 2*len(l.seen))
	}
	return true
}

func updateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	case upd.Query != nil:
		return "inline_query"
	}
	return "other"
}

// RateLimitMiddleware returns a middleware that enforces a minimum interval
// between updates from the same user. A dropped button press is still
// answered so the client stops its progress indicator.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	l := &limiter{interval: opts.Interval, seen: make(map[int64]time.Time), sweepAt: minSweep}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			kind := updateKind(c.Update())
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}
			if l.allow(user.ID, time.Now()) {
				return next(c)
			}

			attrs := []any{
				slog.String("event", "tg.rate_limit"),
				slog.String("status", "rate_limited"),
				slog.String("op", kind),
				slog.Int64("user_id", user.ID),
			}
			if chat := c.Chat(); chat != nil {
				attrs = append(attrs, slog.Int64("chat_id", chat.ID))
			}
			logger.TG.Warn("rate limit", attrs...)

			if opts.OnLimited != nil {
				return opts.OnLimited(c)
			}
			if kind == "callback" {
				return c.Respond()
			}
			return nil
		}
	}
}
