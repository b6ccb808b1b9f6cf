package bot

import (
	"fmt"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tgscreens/core/logger"
	"github.com/m3rciful/tgscreens/core/metrics"
	"github.com/m3rciful/tgscreens/core/screens"
	"github.com/m3rciful/tgscreens/core/telegram/callbacks"
)

// Start runs the entry point. It is available in every state.
func (b *Bot) Start(c *screens.Context) error {
	return b.run(c, b.start)
}

// HandleCallback dispatches a pressed button to the handler registered for
// it in the sender's current state. Foreign tokens and presses that match
// nothing in that state are logged and reported as unhandled.
func (b *Bot) HandleCallback(c *screens.Context) (bool, error) {
	tok, err := callbacks.Parse(c.CallbackData())
	if err != nil {
		logger.Debug(c, "tg", "callback.foreign",
			slog.String("data", logger.SanitizeLimit(c.CallbackData(), 64)),
		)
		return false, nil
	}
	st := c.State()
	r, ok := b.buttons[st][tok.Handler]
	if !ok {
		logger.Info(c, "tg", "callback.unmatched",
			slog.String("state", string(st)),
			slog.String("cb_key", tok.Handler),
		)
		return false, nil
	}
	return true, b.run(c, r)
}

// HandleInput offers typed input to the current state's input handlers and
// runs the first whose filter accepts it.
func (b *Bot) HandleInput(c *screens.Context) (bool, error) {
	for _, r := range b.inputs[c.State()] {
		if r.handler.Matches(c) {
			return true, b.run(c, r)
		}
	}
	return false, nil
}

// HandleCommand runs the command handler registered for cmd in the current
// state.
func (b *Bot) HandleCommand(c *screens.Context, cmd string) (bool, error) {
	r, ok := b.commands[c.State()][cmd]
	if !ok {
		return false, nil
	}
	return true, b.run(c, r)
}

// run executes r and persists the state it returns. Errors go through the
// error handler chain and come back marked as handled.
func (b *Bot) run(c *screens.Context, r *route) error {
	start := time.Now()
	next, err := r.fn(c)
	metrics.ObserveHandler(r.handler.Name, time.Since(start), err)
	if err == nil {
		err = b.transition(c, next)
	}
	if err != nil {
		err = fmt.Errorf("bot: %s: %w", r.handler.Name, err)
		b.HandleError(c, err)
		return &handledError{err: err}
	}
	logger.Debug(c, "screens", "handler.done",
		slog.String("handler", r.handler.Name),
		slog.String("state", string(next)),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return nil
}

func (b *Bot) transition(c *screens.Context, next screens.State) error {
	if next == screens.KeepState {
		return nil
	}
	if !b.HasState(next) {
		return fmt.Errorf("%w: %q", ErrUnknownState, next)
	}
	if next == c.State() {
		return nil
	}
	return c.SetState(next)
}

func (b *Bot) teleCommand(cmd string) tele.HandlerFunc {
	return func(tc tele.Context) error {
		c := b.contextFrom(tc)
		handled, err := b.HandleCommand(c, cmd)
		if !handled {
			logger.Info(c, "tg", "command.unmatched",
				slog.String("state", string(c.State())),
				slog.String("command", cmd),
			)
		}
		return err
	}
}

// teleDispatch adapts the bot to router.Buttons and router.Inputs.
type teleDispatch struct{ b *Bot }

func (d teleDispatch) HandleCallback(tc tele.Context) (bool, error) {
	return d.b.HandleCallback(d.b.contextFrom(tc))
}

func (d teleDispatch) HandleInput(tc tele.Context) (bool, error) {
	return d.b.HandleInput(d.b.contextFrom(tc))
}
