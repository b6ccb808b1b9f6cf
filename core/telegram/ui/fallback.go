// Package ui holds the replies for updates no route claims.
package ui

import (
	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/m3rciful/tgscreens/core/telegram/helpers"
)

// FallbackProvider exposes handlers used when incoming updates
// cannot be mapped to commands, callbacks, or expected documents.
// A nil handler leaves the update unanswered.
type FallbackProvider interface {
	UnknownText() tele.HandlerFunc
	UnknownDocument() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
}

// Notice answers unclaimed updates with fixed texts. Empty fields disable
// the corresponding reply.
type Notice struct {
	Text     string
	Document string
	// Callback is shown as a toast for presses of buttons that no longer
	// belong to the user's state.
	Callback string
}

var _ FallbackProvider = Notice{}

func (n Notice) UnknownText() tele.HandlerFunc { return reply(n.Text) }

func (n Notice) UnknownDocument() tele.HandlerFunc { return reply(n.Document) }

func (n Notice) UnknownCallback() tele.HandlerFunc {
	if n.Callback == "" {
		return nil
	}
	return func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: n.Callback})
	}
}

func reply(text string) tele.HandlerFunc {
	if text == "" {
		return nil
	}
	return func(c tele.Context) error {
		return tghelpers.SendText(c, text)
	}
}
