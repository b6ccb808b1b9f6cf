package bot

import (
	"context"
	"errors"
	"log/slog"
	"net"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tgscreens/core/logger"
	"github.com/m3rciful/tgscreens/core/screens"
)

// ErrorHandler observes errors returned by screen handlers. Handlers run in
// registration order; the bot's logging handler always runs last.
type ErrorHandler func(c *screens.Context, err error)

// handledError marks an error the chain has already seen so the telebot
// OnError hook does not report it twice.
type handledError struct{ err error }

func (e *handledError) Error() string { return e.err.Error() }
func (e *handledError) Unwrap() error { return e.err }

// HandleError passes err through the error handler chain.
func (b *Bot) HandleError(c *screens.Context, err error) {
	for _, h := range b.errorHandlers {
		h(c, err)
	}
}

func (b *Bot) logError(c *screens.Context, err error) {
	if b.cfg.ErrorHandler.IgnoreTimedOut && isTimeout(err) {
		logger.Debug(c, "tg", "handler.timeout_ignored", slog.String("err", err.Error()))
		return
	}
	logger.Error(c, "tg", "handler.error",
		slog.String("err", err.Error()),
		slog.Int64("chat_id", c.ChatID()),
		slog.Int64("user_id", c.UserID()),
	)
}

// onTeleError receives errors that escaped the handler chain, such as
// failures in plain telebot commands or middleware.
func (b *Bot) onTeleError(err error, tc tele.Context) {
	var handled *handledError
	if err == nil || errors.As(err, &handled) {
		return
	}
	if tc == nil {
		b.HandleError(b.engine.NewContext(context.Background(), screens.Update{}), err)
		return
	}
	b.HandleError(b.contextFrom(tc), err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
