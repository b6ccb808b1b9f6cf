package router

import (
	"log/slog"
	"time"

	tg "github.com/m3rciful/tgscreens/core/telegram"
	"github.com/m3rciful/tgscreens/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/tgscreens/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Buttons routes inline button presses to the handlers of the sender's
// current conversation state. handled is false when nothing matched.
type Buttons interface {
	HandleCallback(c tele.Context) (handled bool, err error)
}

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	// NotFound runs when neither buttons nor the registry fallback claim
	// the press.
	NotFound tele.HandlerFunc
}

// CallbackRoute returns a handler that offers callbacks to buttons and hands
// the rest to the registry's not-found handler. Without any fallback the
// press is only answered so the client stops its spinner.
func CallbackRoute(buttons Buttons, reg *tg.Registry, opts CallbackOptions) tg.Route {
	notFound := func() tele.HandlerFunc {
		if reg != nil && reg.CallbackNotFound() != nil {
			return reg.CallbackNotFound()
		}
		if opts.NotFound != nil {
			return opts.NotFound
		}
		return func(c tele.Context) error { return c.Respond() }
	}

	press := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		start := time.Now()
		key := callbacks.HandlerKey(c.Callback().Data)
		name := "callback." + routeName(key)
		keyAttr := slog.String("cb_key", key)

		if buttons != nil {
			tghelpers.WithHandler(c, name)
			if handled, err := buttons.HandleCallback(c); handled || err != nil {
				_ = c.Respond()
				return served(c, name, start, err, keyAttr)
			}
		}
		return fallback(c, name, start, notFound(), keyAttr, slog.String("reason", "not_found"))
	}
	return tg.Route{Endpoint: tele.OnCallback, Handler: guarded(press)}
}
