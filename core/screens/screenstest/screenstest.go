// Package screenstest provides fakes for testing screens without Telegram.
package screenstest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/m3rciful/tgscreens/core/persistence"
	"github.com/m3rciful/tgscreens/core/screens"
)

// Call kinds recorded by FakeMessenger.
const (
	CallSend           = "send"
	CallEdit           = "edit"
	CallRemoveKeyboard = "remove_keyboard"
)

// Call is one recorded messenger call.
type Call struct {
	Kind      string
	ChatID    int64
	MessageID int
	Message   screens.OutMessage
}

// FakeMessenger records calls instead of talking to Telegram. Sent messages
// get increasing ids starting at 100.
type FakeMessenger struct {
	mu     sync.Mutex
	nextID int
	calls  []Call
	// Err, when set, is returned by every call.
	Err error
	// PhotoFileID is reported for sent covers.
	PhotoFileID string
}

var _ screens.Messenger = (*FakeMessenger)(nil)

func NewFakeMessenger() *FakeMessenger {
	return &FakeMessenger{nextID: 100}
}

func (f *FakeMessenger) Send(_ context.Context, chatID int64, m screens.OutMessage) (screens.SentMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return screens.SentMessage{}, f.Err
	}
	f.nextID++
	f.calls = append(f.calls, Call{Kind: CallSend, ChatID: chatID, MessageID: f.nextID, Message: m})
	sent := screens.SentMessage{ChatID: chatID, MessageID: f.nextID}
	if m.Cover != "" {
		sent.PhotoFileID = f.PhotoFileID
	}
	return sent, nil
}

func (f *FakeMessenger) Edit(_ context.Context, msg screens.SentMessage, m screens.OutMessage) (screens.SentMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return screens.SentMessage{}, f.Err
	}
	f.calls = append(f.calls, Call{Kind: CallEdit, ChatID: msg.ChatID, MessageID: msg.MessageID, Message: m})
	return msg, nil
}

func (f *FakeMessenger) RemoveKeyboard(_ context.Context, msg screens.SentMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.calls = append(f.calls, Call{Kind: CallRemoveKeyboard, ChatID: msg.ChatID, MessageID: msg.MessageID})
	return nil
}

// Calls returns a copy of the recorded calls.
func (f *FakeMessenger) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Last returns the most recent call.
func (f *FakeMessenger) Last() (Call, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return Call{}, false
	}
	return f.calls[len(f.calls)-1], true
}

// Reset forgets recorded calls.
func (f *FakeMessenger) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// NewEngine returns an engine over an in-memory write-through backend and a
// FakeMessenger. opts run before the engine is built.
func NewEngine(t testing.TB, opts ...func(*screens.EngineOptions)) (*screens.Engine, *FakeMessenger) {
	t.Helper()
	backend, err := persistence.New(persistence.NewMemoryStore(), persistence.Options{})
	require.NoError(t, err)
	fm := NewFakeMessenger()
	eo := screens.EngineOptions{Backend: backend, Messenger: fm}
	for _, opt := range opts {
		opt(&eo)
	}
	e, err := screens.NewEngine(eo)
	require.NoError(t, err)
	return e, fm
}

// RenderCatcher collects final render configs.
type RenderCatcher struct {
	mu      sync.Mutex
	configs []screens.FinalRenderConfig
}

// CatchRenderConfig hooks into e so every final render config is recorded.
// An existing hook keeps running.
func CatchRenderConfig(e *screens.Engine) *RenderCatcher {
	rc := &RenderCatcher{}
	prev := e.OnFinalRender
	e.OnFinalRender = func(c *screens.Context, s screens.Screen, cfg screens.FinalRenderConfig) {
		rc.mu.Lock()
		rc.configs = append(rc.configs, cfg)
		rc.mu.Unlock()
		if prev != nil {
			prev(c, s, cfg)
		}
	}
	return rc
}

// Last returns the latest captured config.
func (rc *RenderCatcher) Last() (screens.FinalRenderConfig, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if len(rc.configs) == 0 {
		return screens.FinalRenderConfig{}, false
	}
	return rc.configs[len(rc.configs)-1], true
}

// All returns every captured config.
func (rc *RenderCatcher) All() []screens.FinalRenderConfig {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return append([]screens.FinalRenderConfig(nil), rc.configs...)
}
