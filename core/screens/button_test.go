package screens_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/tgscreens/core/screens"
	"github.com/m3rciful/tgscreens/core/telegram/callbacks"
)

func TestNewButtonRejectsNilHandler(t *testing.T) {
	_, err := screens.NewButton("x", nil)
	assert.ErrorIs(t, err, screens.ErrInvalidSource)

	_, err = screens.NewButton("x", (*screens.Handler)(nil))
	assert.ErrorIs(t, err, screens.ErrInvalidSource)
}

func TestNewButtonTransitionNeedsScreen(t *testing.T) {
	_, err := screens.NewButton("x", "menu", screens.WithSourceType(screens.MoveSource))
	assert.ErrorIs(t, err, screens.ErrInvalidSource)

	_, err = screens.NewButton("x", newScreen("plain"), screens.WithSourceType(screens.JumpAlongRouteSource))
	assert.ErrorIs(t, err, screens.ErrInvalidSource)

	_, err = screens.NewButton("x", newScreen("menu"), screens.WithSourceType(screens.MoveSource))
	assert.NoError(t, err)
}

func TestNewButtonHidersNeedChecker(t *testing.T) {
	useChecker(t, nil)
	h := screens.NewHandler("h", noop)
	_, err := screens.NewButton("x", h, screens.WithHiders(screens.NewHider(screens.OnlyForAdmin)))
	assert.ErrorIs(t, err, screens.ErrImproperlyConfigured)
}

func TestButtonVisibleWithoutChecker(t *testing.T) {
	useChecker(t, screens.NewHidersChecker())
	e, _, _ := newEngine(t)
	b := screens.MustButton("Admin", screens.NewHandler("h", noop),
		screens.WithHiders(screens.NewHider(screens.OnlyForAdmin)))
	c := newContext(e, screens.Update{ChatID: 1, UserID: 1})

	_, visible, err := b.Create(c)
	require.NoError(t, err)
	assert.False(t, visible)

	screens.UseHidersChecker(nil)
	_, visible, err = b.Create(c)
	require.NoError(t, err)
	assert.True(t, visible)
}

func TestCreateTokenIsDeterministic(t *testing.T) {
	e, _, _ := newEngine(t)
	c := newContext(e, screens.Update{ChatID: 1, UserID: 42})
	menu := newScreen("Menu")
	b := screens.MustButton("Open", menu, screens.WithSourceType(screens.MoveSource))

	first, visible, err := b.Create(c)
	require.NoError(t, err)
	require.True(t, visible)
	second, _, err := b.Create(c)
	require.NoError(t, err)

	assert.Equal(t, first.Data, second.Data)
	assert.Equal(t, callbacks.Encode("Menu.move", "Open", 42), first.Data)
	assert.LessOrEqual(t, len(first.Data), callbacks.MaxDataLen)

	other := screens.MustButton("Close", menu, screens.WithSourceType(screens.MoveSource))
	third, _, err := other.Create(c)
	require.NoError(t, err)
	assert.NotEqual(t, first.Data, third.Data)
}

func TestCreateFallsBackToChatOverride(t *testing.T) {
	e, _, _ := newEngine(t)
	c := newContext(e, screens.Update{ChatID: 5})
	h := screens.NewHandler("Reminder.snooze", noop)
	b := screens.MustButton("Later", h, screens.WithChatID(5))

	btn, _, err := b.Create(c)
	require.NoError(t, err)
	assert.Equal(t, callbacks.Encode("Reminder.snooze", "Later", 5), btn.Data)
}

func TestCreateLinkButtons(t *testing.T) {
	e, _, _ := newEngine(t)
	c := newContext(e, screens.Update{ChatID: 1, UserID: 1})

	u, _, err := screens.MustButton("Docs", "https://example.com", screens.WithSourceType(screens.URLSource)).Create(c)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", u.URL)
	assert.Empty(t, u.Data)

	w, _, err := screens.MustButton("App", "https://example.com/app", screens.WithSourceType(screens.WebAppSource)).Create(c)
	require.NoError(t, err)
	require.NotNil(t, w.WebApp)
	assert.Equal(t, "https://example.com/app", w.WebApp.URL)

	_, err = screens.NewButton("Docs", 42, screens.WithSourceType(screens.URLSource))
	assert.ErrorIs(t, err, screens.ErrInvalidSource)
}

func TestCreateUnknownSourceType(t *testing.T) {
	e, _, _ := newEngine(t)
	c := newContext(e, screens.Update{ChatID: 1, UserID: 1})
	b, err := screens.NewButton("x", screens.NewHandler("h", noop), screens.WithSourceType(screens.SourceType(99)))
	require.NoError(t, err)

	_, _, err = b.Create(c)
	assert.ErrorIs(t, err, screens.ErrUnknownSourceType)
}

func TestPayloadRoundTrip(t *testing.T) {
	e, _, _ := newEngine(t)
	c := newContext(e, screens.Update{ChatID: 1, UserID: 42})
	b := screens.MustButton("Pick", screens.NewHandler("Picker.pick", noop), screens.WithPayload("item-7"))

	btn, _, err := b.Create(c)
	require.NoError(t, err)

	pressed := newContext(e, screens.Update{ChatID: 1, UserID: 42, CallbackData: btn.Data})
	p, err := pressed.Payload()
	require.NoError(t, err)
	assert.Equal(t, "item-7", p)

	p, err = pressed.Payload()
	require.NoError(t, err)
	assert.Equal(t, "item-7", p)

	_, err = newContext(e, screens.Update{ChatID: 1, UserID: 42, CallbackData: "other"}).Payload()
	assert.ErrorIs(t, err, screens.ErrPayloadIsEmpty)
}

func TestButtonEqual(t *testing.T) {
	menu := newScreen("Menu")
	a := screens.MustButton("Open", menu, screens.WithSourceType(screens.MoveSource))
	b := screens.MustButton("Open", newScreen("Menu"), screens.WithSourceType(screens.MoveSource))
	c := screens.MustButton("Open", menu, screens.WithSourceType(screens.JumpSource))

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.Equal(t, "Menu.jump", c.HandlerName())
}
