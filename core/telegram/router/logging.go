package router

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/tgscreens/core/logger"
	tghelpers "github.com/m3rciful/tgscreens/core/telegram/helpers"
	"github.com/m3rciful/tgscreens/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// guarded installs the recover and update logging middlewares around h.
func guarded(h tele.HandlerFunc) tele.HandlerFunc {
	return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
}

// served logs the handler.handled summary of an update that name handled
// and passes err through.
func served(c tele.Context, name string, start time.Time, err error, attrs ...slog.Attr) error {
	status := logger.Outcome(err)
	summarize(c, name, start, status, status, err, attrs)
	return err
}

// fallback runs h for an update no route claimed. Without h the update is
// only recorded as skipped.
func fallback(c tele.Context, name string, start time.Time, h tele.HandlerFunc, attrs ...slog.Attr) error {
	if h == nil {
		summarize(c, name, start, "skip", "ok", nil, attrs)
		return nil
	}
	tghelpers.WithHandler(c, name)
	return served(c, name, start, h(c), attrs...)
}

func summarize(c tele.Context, name string, start time.Time, status, outcome string, err error, extra []slog.Attr) {
	ctx := tghelpers.WithHandler(c, name)
	msgs, kb := middleware.GetCounters(c)
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("outcome", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", time.Since(start)),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)
	}
	logger.LogEvent(ctx, logger.Component("tg"), slog.LevelInfo, "handler.handled", append(attrs, extra...)...)
}

// routeName turns a command or button key into a handler label, e.g.
// "/Start Over" becomes "start_over".
func routeName(key string) string {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if key == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(key, " ", "_"))
}

// errorCode names the concrete type of err, e.g. ERRORSTRING.
func errorCode(err error) string {
	name := strings.TrimLeft(fmt.Sprintf("%T", err), "*")
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return strings.ToUpper(name)
}
