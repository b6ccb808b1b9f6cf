package bot

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tgscreens/core/screens"
	"github.com/m3rciful/tgscreens/core/telegram/callbacks"
)

type countingFallbacks struct{ callbacks int }

func (*countingFallbacks) UnknownText() tele.HandlerFunc     { return nil }
func (*countingFallbacks) UnknownDocument() tele.HandlerFunc { return nil }

func (f *countingFallbacks) UnknownCallback() tele.HandlerFunc {
	return func(tele.Context) error {
		f.callbacks++
		return nil
	}
}

// newTeleBot returns an offline telebot whose API calls hit a stub server.
func newTeleBot(t *testing.T) *tele.Bot {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
	}))
	t.Cleanup(srv.Close)
	tb, err := tele.NewBot(tele.Settings{Token: "123:abc", URL: srv.URL, Offline: true})
	require.NoError(t, err)
	return tb
}

// endpoint returns the route handler for ep wrapped in the bot's middlewares,
// the way the telegram runtime installs it.
func endpoint(t *testing.T, b *Bot, ep string) tele.HandlerFunc {
	t.Helper()
	opts, err := b.TelegramRunOptions()
	require.NoError(t, err)
	var h tele.HandlerFunc
	for _, r := range opts.Routes {
		if r.Endpoint == ep {
			h = r.Handler
		}
	}
	require.NotNil(t, h, "no route for %q", ep)
	for i := len(opts.Middlewares) - 1; i >= 0; i-- {
		h = opts.Middlewares[i].Use(h)
	}
	return h
}

func teleCallback(tb *tele.Bot, data string) tele.Context {
	return tb.NewContext(tele.Update{Callback: &tele.Callback{
		ID:      "cb",
		Data:    data,
		Sender:  &tele.User{ID: userID},
		Message: &tele.Message{ID: 7, Chat: &tele.Chat{ID: chatID}},
	}})
}

func teleText(tb *tele.Bot, text string) tele.Context {
	return tb.NewContext(tele.Update{Message: &tele.Message{
		ID:     8,
		Text:   text,
		Sender: &tele.User{ID: userID},
		Chat:   &tele.Chat{ID: chatID},
	}})
}

func TestCallbackRouteDispatchesByState(t *testing.T) {
	var saved int
	entry := newTestScreen("Entry", screens.NewHandler("Entry.edit", goTo("edit")))
	editor := newTestScreen("Editor", screens.NewHandler("Editor.save", func(*screens.Context) (screens.State, error) {
		saved++
		return screens.DefaultState, nil
	}))
	fb := &countingFallbacks{}
	b, _ := newBot(t, Options{
		EntryPoint: entry,
		States:     map[screens.State][]screens.Screen{"edit": {editor}},
		Fallbacks:  fb,
	})
	tb := newTeleBot(t)
	route := endpoint(t, b, tele.OnCallback)
	stateOf := func() screens.State {
		return b.Engine().States.GetState(context.Background(), chatID, userID)
	}

	require.NoError(t, route(teleCallback(tb, callbacks.Encode("Editor.save", "Save", userID))))
	assert.Equal(t, 0, saved)
	assert.Equal(t, 1, fb.callbacks, "presses inactive in the state go to the fallback")

	require.NoError(t, route(teleCallback(tb, callbacks.Encode("Entry.edit", "Edit", userID))))
	assert.Equal(t, screens.State("edit"), stateOf())

	require.NoError(t, route(teleCallback(tb, callbacks.Encode("Editor.save", "Save", userID))))
	assert.Equal(t, 1, saved)
	assert.Equal(t, screens.DefaultState, stateOf())

	require.NoError(t, route(teleCallback(tb, "not a token")))
	assert.Equal(t, 2, fb.callbacks)
}

func TestCallbackRouteStateFollowsTransitions(t *testing.T) {
	tb := newTeleBot(t)
	b, _ := newBot(t, Options{
		EntryPoint: newTestScreen("Entry", screens.NewHandler("Entry.edit", goTo("edit"))),
		States:     map[screens.State][]screens.Screen{"edit": {newTestScreen("Editor")}},
	})
	route := endpoint(t, b, tele.OnCallback)

	tc := teleCallback(tb, callbacks.Encode("Entry.edit", "Edit", userID))
	require.NoError(t, route(tc))

	c := b.contextFrom(tc)
	assert.Equal(t, screens.State("edit"), c.State(), "the cached state is updated by the transition")
}

func TestTextRouteUsesStateInputs(t *testing.T) {
	var got []string
	note := screens.NewInputHandler("Editor.note", func(c *screens.Context) (screens.State, error) {
		got = append(got, c.Text())
		return screens.DefaultState, nil
	})
	b, _ := newBot(t, Options{
		EntryPoint: newTestScreen("Entry", screens.NewHandler("Entry.edit", goTo("edit"))),
		States:     map[screens.State][]screens.Screen{"edit": {newTestScreen("Editor", note)}},
	})
	tb := newTeleBot(t)
	text := endpoint(t, b, tele.OnText)

	require.NoError(t, text(teleText(tb, "ignored")))
	assert.Empty(t, got)

	require.NoError(t, endpoint(t, b, tele.OnCallback)(teleCallback(tb, callbacks.Encode("Entry.edit", "Edit", userID))))
	require.NoError(t, text(teleText(tb, "remember this")))
	assert.Equal(t, []string{"remember this"}, got)
	assert.Equal(t, screens.DefaultState, b.Engine().States.GetState(context.Background(), chatID, userID))
}
