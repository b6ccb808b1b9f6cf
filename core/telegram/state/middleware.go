package state

import (
	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/m3rciful/tgscreens/core/telegram/helpers"
)

const contextKey = "fsm_state"

// WithState reads the sender's state once per update and keeps it in the
// telebot context for FromContext.
func WithState(mgr Manager) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Sender() != nil && c.Chat() != nil {
				ctx := tghelpers.BuildContext(c)
				Store(c, mgr.GetState(ctx, c.Chat().ID, c.Sender().ID))
			}
			return next(c)
		}
	}
}

// Store records st as the current state of the update in c.
func Store(c tele.Context, st State) {
	c.Set(contextKey, st)
}

// FromContext returns the state recorded by WithState or Store.
func FromContext(c tele.Context) (State, bool) {
	st, ok := c.Get(contextKey).(State)
	return st, ok
}
