package router

import (
	"time"

	tg "github.com/m3rciful/tgscreens/core/telegram"
	tghelpers "github.com/m3rciful/tgscreens/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Inputs routes typed input to the handlers of the sender's current
// conversation state. handled is false when no handler accepted the update.
type Inputs interface {
	HandleInput(c tele.Context) (handled bool, err error)
}

// TextOptions controls fallback behaviour for text/document updates.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// TextRoutes builds handlers for text and document routing. State input
// handlers come first, then registered commands, then the fallbacks.
func TextRoutes(inputs Inputs, reg *tg.Registry, opts TextOptions) []tg.Route {
	text := func(c tele.Context) error {
		start := time.Now()
		if handled, err := offerInput(inputs, c); handled {
			return served(c, "input", start, err)
		}
		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil {
				name := routeName(key)
				tghelpers.WithHandler(c, name)
				return served(c, name, start, cmd.Handler(c))
			}
		}
		return fallback(c, "unknown_text", start, opts.UnknownText)
	}

	document := func(c tele.Context) error {
		start := time.Now()
		if handled, err := offerInput(inputs, c); handled {
			return served(c, "input_document", start, err)
		}
		return fallback(c, "unexpected_document", start, opts.UnknownDocument)
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: guarded(text)},
		{Endpoint: tele.OnDocument, Handler: guarded(document)},
	}
}

// offerInput reports an update as handled when a state handler took it or
// failed on it.
func offerInput(inputs Inputs, c tele.Context) (bool, error) {
	if inputs == nil {
		return false, nil
	}
	handled, err := inputs.HandleInput(c)
	return handled || err != nil, err
}
