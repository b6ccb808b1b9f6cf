package screens

import (
	"context"
	"fmt"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tgscreens/core/persistence"
	"github.com/m3rciful/tgscreens/core/telegram/state"
)

// FinalRenderHook observes every render right before delivery.
type FinalRenderHook func(c *Context, s Screen, cfg FinalRenderConfig)

// EngineOptions configures NewEngine. Backend is required.
type EngineOptions struct {
	// Name is the conversation name states are stored under.
	Name      string
	Backend   *persistence.Backend
	States    state.Manager
	Registry  *Registry
	Messenger Messenger
	ParseMode tele.ParseMode
	// AdminIDs seed the admin group; ids added at runtime live in bot data.
	AdminIDs      []int64
	OnFinalRender FinalRenderHook
}

// Engine holds what screens need at runtime: the store, the conversation
// states, the screen registry and the transport.
type Engine struct {
	Backend       *persistence.Backend
	States        state.Manager
	Registry      *Registry
	ParseMode     tele.ParseMode
	OnFinalRender FinalRenderHook

	admins *AdminGroup

	mu        sync.RWMutex
	messenger Messenger
}

// NewEngine validates opts and fills in defaults.
func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("screens: %w", persistence.ErrMissingPersistence)
	}
	if opts.Name == "" {
		opts.Name = "main"
	}
	if opts.States == nil {
		opts.States = state.NewManager(opts.Name, opts.Backend)
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	if opts.ParseMode == "" {
		opts.ParseMode = tele.ModeHTML
	}
	return &Engine{
		Backend:       opts.Backend,
		States:        opts.States,
		Registry:      opts.Registry,
		ParseMode:     opts.ParseMode,
		OnFinalRender: opts.OnFinalRender,
		admins:        newAdminGroup(opts.Backend, opts.AdminIDs),
		messenger:     opts.Messenger,
	}, nil
}

// SetMessenger installs the transport once the bot is connected.
func (e *Engine) SetMessenger(m Messenger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.messenger = m
}

// Messenger returns the current transport or nil.
func (e *Engine) Messenger() Messenger {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.messenger
}

// Admins returns the admin group.
func (e *Engine) Admins() *AdminGroup { return e.admins }

// Update carries the parts of an incoming update screens care about.
type Update struct {
	ChatID    int64
	UserID    int64
	MessageID int
	// CallbackData is the raw token of a pressed button.
	CallbackData string
	Text         string
	Tele         tele.Context
}

// NewContext builds a per-update context.
func (e *Engine) NewContext(ctx context.Context, u Update) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Context{Context: ctx, engine: e, update: u}
}

// FromTele builds a context from a telebot update. MessageID is only set for
// button presses, so typed input never edits the user's own message.
func (e *Engine) FromTele(ctx context.Context, tc tele.Context) *Context {
	u := Update{Tele: tc, Text: tc.Text()}
	if chat := tc.Chat(); chat != nil {
		u.ChatID = chat.ID
	}
	if sender := tc.Sender(); sender != nil {
		u.UserID = sender.ID
	}
	if cb := tc.Callback(); cb != nil {
		u.CallbackData = cb.Data
		if cb.Message != nil {
			u.MessageID = cb.Message.ID
		}
	}
	c := e.NewContext(ctx, u)
	if st, ok := state.FromContext(tc); ok {
		c.state, c.stateKnown = st, true
	}
	return c
}
