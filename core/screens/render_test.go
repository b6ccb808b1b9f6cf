package screens_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/tgscreens/core/screens"
	"github.com/m3rciful/tgscreens/core/screens/screenstest"
)

type describedScreen struct {
	staticScreen
	text string
	err  error
}

func (s *describedScreen) Describe(*screens.Context) (string, error) { return s.text, s.err }

func TestRenderDropsHiddenButtons(t *testing.T) {
	useChecker(t, screens.NewHidersChecker())
	e, fm, rc := newEngine(t)
	h := screens.NewHandler("h", noop)
	visible := screens.MustButton("visible", h)
	hidden := screens.MustButton("hidden", h, screens.WithHiders(screens.NewHider(screens.OnlyForAdmin)))
	s := newScreen("Menu")
	s.kb = screens.Keyboard{{visible, hidden}}
	s.extra = screens.Keyboard{{hidden}}

	c := newContext(e, screens.Update{ChatID: 1, UserID: 42})
	_, err := c.Jump(s)
	require.NoError(t, err)

	final, ok := rc.Last()
	require.True(t, ok)
	require.Len(t, final.Keyboard, 1)
	require.Len(t, final.Keyboard[0], 1)
	assert.True(t, final.Keyboard[0][0].Equal(visible))
	require.Len(t, final.Markup, 1)
	assert.Equal(t, "visible", final.Markup[0][0].Text)

	last, _ := fm.Last()
	require.NotNil(t, last.Message.Markup)
	assert.Len(t, last.Message.Markup.InlineKeyboard, 1)
}

func TestRenderKeyboardIsNeverNil(t *testing.T) {
	e, fm, rc := newEngine(t)
	c := newContext(e, screens.Update{ChatID: 1, UserID: 1})
	_, err := c.Jump(newScreen("Empty"))
	require.NoError(t, err)

	final, _ := rc.Last()
	assert.NotNil(t, final.Keyboard)
	assert.NotNil(t, final.Markup)
	last, _ := fm.Last()
	assert.Nil(t, last.Message.Markup)
}

func TestRenderDescriptionResolution(t *testing.T) {
	e, _, rc := newEngine(t)
	c := newContext(e, screens.Update{ChatID: 1, UserID: 1})

	s := &describedScreen{staticScreen: *newScreen("Dyn"), text: "dynamic"}
	require.NoError(t, c.Render(s, screens.RenderConfig{}))
	final, _ := rc.Last()
	assert.Equal(t, "dynamic", final.Description)

	require.NoError(t, c.Render(s, screens.RenderConfig{Description: "explicit"}))
	final, _ = rc.Last()
	assert.Equal(t, "explicit", final.Description)

	s.text = ""
	require.NoError(t, c.Render(s, screens.RenderConfig{}))
	final, _ = rc.Last()
	assert.Equal(t, "Dyn description", final.Description)

	empty := &staticScreen{name: "Blank"}
	err := c.Render(empty, screens.RenderConfig{})
	assert.ErrorIs(t, err, screens.ErrScreenDescriptionIsEmpty)

	s.err = errors.New("boom")
	assert.ErrorContains(t, c.Render(s, screens.RenderConfig{}), "boom")
}

func TestMoveEditsJumpSends(t *testing.T) {
	e, fm, _ := newEngine(t)
	s := newScreen("Menu")

	st, err := newContext(e, screens.Update{ChatID: 1, UserID: 1, MessageID: 7}).Move(s)
	require.NoError(t, err)
	assert.Equal(t, screens.DefaultState, st)
	last, _ := fm.Last()
	assert.Equal(t, screenstest.CallEdit, last.Kind)
	assert.Equal(t, 7, last.MessageID)

	_, err = newContext(e, screens.Update{ChatID: 1, UserID: 1, MessageID: 7}).Jump(s)
	require.NoError(t, err)
	last, _ = fm.Last()
	assert.Equal(t, screenstest.CallSend, last.Kind)

	fm.Reset()
	_, err = newContext(e, screens.Update{ChatID: 1, UserID: 1}).Move(s)
	require.NoError(t, err)
	last, _ = fm.Last()
	assert.Equal(t, screenstest.CallSend, last.Kind, "nothing to edit")
}

func TestNewMessageStripsPreviousKeyboard(t *testing.T) {
	e, fm, _ := newEngine(t)
	s := newScreen("Menu")
	c := newContext(e, screens.Update{ChatID: 1, UserID: 1})

	_, err := c.Jump(s)
	require.NoError(t, err)
	latest, ok := c.LatestMessage(1)
	require.True(t, ok)
	assert.Equal(t, 101, latest.MessageID)

	fm.Reset()
	_, err = c.Jump(s)
	require.NoError(t, err)
	calls := fm.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, screenstest.CallRemoveKeyboard, calls[0].Kind)
	assert.Equal(t, 101, calls[0].MessageID)
	assert.Equal(t, screenstest.CallSend, calls[1].Kind)
}

func TestHideKeyboard(t *testing.T) {
	e, fm, _ := newEngine(t)
	h := screens.NewHandler("h", noop)
	s := newScreen("Quiz")
	s.HideKeyboard = true
	s.kb = screens.Keyboard{{screens.MustButton("answer", h)}}

	_, err := newContext(e, screens.Update{ChatID: 1, UserID: 1}).Jump(s)
	require.NoError(t, err)
	last, _ := fm.Last()
	assert.Nil(t, last.Message.Markup)

	fm.Reset()
	_, err = newContext(e, screens.Update{ChatID: 1, UserID: 1, MessageID: 101}).Move(newScreen("Next"))
	require.NoError(t, err)
	calls := fm.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, screenstest.CallSend, calls[0].Kind, "a message without keyboard is not edited")
}

func TestExplicitEmptyKeyboard(t *testing.T) {
	e, fm, _ := newEngine(t)
	s := newScreen("Menu")
	s.kb = screens.Keyboard{{screens.MustButton("x", screens.NewHandler("h", noop))}}

	c := newContext(e, screens.Update{ChatID: 1, UserID: 1})
	require.NoError(t, c.Render(s, screens.RenderConfig{Keyboard: screens.Keyboard{}}))
	last, _ := fm.Last()
	assert.Nil(t, last.Message.Markup)
}

func TestRenderDocumentNeedsData(t *testing.T) {
	e, fm, _ := newEngine(t)
	c := newContext(e, screens.Update{ChatID: 1, UserID: 1, MessageID: 3})

	err := c.Render(newScreen("Doc"), screens.RenderConfig{Document: &screens.Document{Name: "a.txt"}})
	assert.ErrorIs(t, err, screens.ErrScreenDocumentDataIsEmpty)

	require.NoError(t, c.Render(newScreen("Doc"), screens.RenderConfig{Document: &screens.Document{Name: "a.txt", Data: []byte("hi")}}))
	last, _ := fm.Last()
	assert.Equal(t, screenstest.CallSend, last.Kind, "documents are always sent")
}

func TestCoverCache(t *testing.T) {
	e, fm, _ := newEngine(t)
	fm.PhotoFileID = "file-1"
	s := newScreen("Gallery")
	s.Cover = "https://example.com/cover.png"
	s.CacheCovers = true
	c := newContext(e, screens.Update{ChatID: 1, UserID: 1})

	_, err := c.Jump(s)
	require.NoError(t, err)
	last, _ := fm.Last()
	assert.Equal(t, s.Cover, last.Message.Cover)

	_, err = c.Jump(s)
	require.NoError(t, err)
	last, _ = fm.Last()
	assert.Equal(t, "file-1", last.Message.Cover)
}

func TestRenderWithoutMessenger(t *testing.T) {
	e, _ := screenstest.NewEngine(t, func(o *screens.EngineOptions) { o.Messenger = nil })
	err := newContext(e, screens.Update{ChatID: 1, UserID: 1}).Render(newScreen("Menu"), screens.RenderConfig{})
	assert.ErrorIs(t, err, screens.ErrMessengerIsNotSet)
}

func TestSendTargetsChat(t *testing.T) {
	e, fm, rc := newEngine(t)
	c := newContext(e, screens.Update{})

	require.NoError(t, c.Send(newScreen("Reminder"), 55, screens.RenderConfig{}))
	last, _ := fm.Last()
	assert.Equal(t, screenstest.CallSend, last.Kind)
	assert.Equal(t, int64(55), last.ChatID)
	final, _ := rc.Last()
	assert.True(t, final.AsNewMessage)
}
