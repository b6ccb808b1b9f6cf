package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/tgscreens/core/logger"
	"github.com/m3rciful/tgscreens/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/tgscreens/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// seenUpdates remembers recently logged update ids for ttl.
type seenUpdates struct {
	mu  sync.Mutex
	ttl time.Duration
	at  map[int]time.Time
}

var received = &seenUpdates{ttl: 10 * time.Second, at: make(map[int]time.Time)}

// first reports whether id was not seen within ttl and marks it seen.
func (s *seenUpdates) first(id int) bool {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, t := range s.at {
		if now.Sub(t) > s.ttl {
			delete(s.at, k)
		}
	}
	if _, ok := s.at[id]; ok {
		return false
	}
	s.at[id] = now
	return true
}

// LoggerMiddleware prepares the request context of an update and logs one
// sampled update.received line for it, even when several routes wrap the
// same update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		if logger.ShouldSampleDebug() && received.first(c.Update().ID) {
			logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", updateAttrs(c)...)
		}
		return next(c)
	}
}

// updateAttrs describes the sender and payload of the update in c.
func updateAttrs(c tele.Context) []slog.Attr {
	attrs := []slog.Attr{slog.String("status", "ok")}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if user := c.Sender(); user != nil {
		if user.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
		}
		if user.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", user.LanguageCode))
		}
	}
	upd := c.Update()
	switch {
	case upd.Callback != nil:
		tok, err := callbacks.Parse(upd.Callback.Data)
		if err != nil {
			return append(attrs, slog.String("payload", logger.SanitizeLimit(upd.Callback.Data, 256)))
		}
		return append(attrs, slog.String("cb_key", tok.Handler), slog.String("cb_button", tok.Button))
	case upd.Message != nil && c.Text() != "":
		return append(attrs, slog.String("payload", logger.SanitizeLimit(c.Text(), 256)))
	}
	return attrs
}
