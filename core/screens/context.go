package screens

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tgscreens/core/persistence"
	"github.com/m3rciful/tgscreens/core/telegram/state"
)

const (
	payloadStorageKey = "payload_storage"
	screenStatesKey   = "screen_states"
)

// Context is the per-update handle passed to handlers and screens. It is a
// context.Context, so it can be handed straight to store and logger calls.
type Context struct {
	context.Context
	engine *Engine
	update Update

	// state caches the conversation state read by state.WithState.
	state      State
	stateKnown bool
}

var _ context.Context = (*Context)(nil)

func (c *Context) Engine() *Engine      { return c.engine }
func (c *Context) ChatID() int64        { return c.update.ChatID }
func (c *Context) UserID() int64        { return c.update.UserID }
func (c *Context) MessageID() int       { return c.update.MessageID }
func (c *Context) CallbackData() string { return c.update.CallbackData }
func (c *Context) Text() string         { return c.update.Text }
func (c *Context) Admins() *AdminGroup  { return c.engine.admins }
func (c *Context) Registry() *Registry  { return c.engine.Registry }
func (c *Context) Tele() tele.Context   { return c.update.Tele }

// Backend returns the persistence backend behind the engine.
func (c *Context) Backend() *persistence.Backend { return c.engine.Backend }

// State returns the conversation state of the current chat and user.
func (c *Context) State() State {
	if c.stateKnown {
		return c.state
	}
	return c.engine.States.GetState(c, c.ChatID(), c.UserID())
}

// SetState stores st for the current chat and user.
func (c *Context) SetState(st State) error {
	if err := c.engine.States.SetState(c, c.ChatID(), c.UserID(), st); err != nil {
		return err
	}
	if st != KeepState && c.stateKnown {
		c.state = st
		if tc := c.update.Tele; tc != nil {
			state.Store(tc, st)
		}
	}
	return nil
}

// UserData returns a copy of the current user's data.
func (c *Context) UserData() persistence.Data {
	return c.engine.Backend.UserData(c, c.dataUserID())
}

// SetUserData replaces the current user's data.
func (c *Context) SetUserData(d persistence.Data) error {
	return c.engine.Backend.UpdateUserData(c, c.dataUserID(), d)
}

// ChatData returns a copy of the current chat's data.
func (c *Context) ChatData() persistence.Data {
	return c.engine.Backend.ChatData(c, c.ChatID())
}

// SetChatData replaces the current chat's data.
func (c *Context) SetChatData(d persistence.Data) error {
	return c.engine.Backend.UpdateChatData(c, c.ChatID(), d)
}

// BotData returns a copy of the data shared by all users.
func (c *Context) BotData() persistence.Data {
	return c.engine.Backend.GetBotData(c)
}

// SetBotData replaces the shared data.
func (c *Context) SetBotData(d persistence.Data) error {
	return c.engine.Backend.UpdateBotData(c, d)
}

// dataUserID falls back to the chat id for updates without a sender.
func (c *Context) dataUserID() int64 {
	if c.UserID() != 0 {
		return c.UserID()
	}
	return c.ChatID()
}

// Payload returns the payload of the pressed button. The payload stays in
// storage, so repeated presses of the same button see it again.
func (c *Context) Payload() (string, error) {
	storage, _ := c.UserData()[payloadStorageKey].(map[string]any)
	p, ok := storage[c.CallbackData()].(string)
	if !ok || p == "" {
		return "", ErrPayloadIsEmpty
	}
	return p, nil
}

func (c *Context) storePayload(userID int64, token, payload string) error {
	if userID == 0 {
		userID = c.dataUserID()
	}
	data := c.engine.Backend.UserData(c, userID)
	storage, _ := data[payloadStorageKey].(map[string]any)
	if storage == nil {
		storage = map[string]any{}
	}
	if storage[token] == payload {
		return nil
	}
	storage[token] = payload
	data[payloadStorageKey] = storage
	return c.engine.Backend.UpdateUserData(c, userID, data)
}

// StateValue reads a value s stored for the current user.
func (c *Context) StateValue(s Screen, key string) (any, bool) {
	states, _ := c.UserData()[screenStatesKey].(map[string]any)
	values, _ := states[s.Name()].(map[string]any)
	v, ok := values[key]
	return v, ok
}

// SetStateValue stores a value for s and the current user.
func (c *Context) SetStateValue(s Screen, key string, v any) error {
	data := c.UserData()
	states, _ := data[screenStatesKey].(map[string]any)
	if states == nil {
		states = map[string]any{}
	}
	values, _ := states[s.Name()].(map[string]any)
	if values == nil {
		values = map[string]any{}
	}
	values[key] = v
	states[s.Name()] = values
	data[screenStatesKey] = states
	return c.SetUserData(data)
}

// Notify sends plain text to the current chat outside the screen flow.
func (c *Context) Notify(text string) error {
	m := c.engine.Messenger()
	if m == nil {
		return ErrMessengerIsNotSet
	}
	_, err := m.Send(c, c.ChatID(), OutMessage{Text: text})
	return err
}

func (c *Context) transitionConfig(s Screen) (RenderConfig, error) {
	var cfg RenderConfig
	if cf, ok := s.(Configurer); ok {
		if err := cf.Configure(c, &cfg); err != nil {
			return RenderConfig{}, fmt.Errorf("screens: %s: configure: %w", s.Name(), err)
		}
	}
	return cfg, nil
}

func (c *Context) renderTransition(s Screen, asNew bool) error {
	cfg, err := c.transitionConfig(s)
	if err != nil {
		return err
	}
	cfg.AsNewMessage = cfg.AsNewMessage || asNew
	return c.Render(s, cfg)
}

// Jump renders s as a new message and returns DefaultState.
func (c *Context) Jump(s Screen) (State, error) {
	if j, ok := s.(Jumper); ok {
		return j.Jump(c)
	}
	return DefaultState, c.renderTransition(s, true)
}

// Move edits the current message into s and returns DefaultState.
func (c *Context) Move(s Screen) (State, error) {
	if m, ok := s.(Mover); ok {
		return m.Move(c)
	}
	return DefaultState, c.renderTransition(s, false)
}

// JumpAlongRoute renders s as a new message and returns the state its
// routes assign to the current state.
func (c *Context) JumpAlongRoute(s RouteScreen) (State, error) {
	if err := c.renderTransition(s, true); err != nil {
		return KeepState, err
	}
	return ReturnStateFromRoutes(c.State(), s.Routes()), nil
}

// MoveAlongRoute edits the current message into s and returns the state
// its routes assign to the current state.
func (c *Context) MoveAlongRoute(s RouteScreen) (State, error) {
	if err := c.renderTransition(s, false); err != nil {
		return KeepState, err
	}
	return ReturnStateFromRoutes(c.State(), s.Routes()), nil
}

// Start runs the entry point behaviour of s.
func (c *Context) Start(s Screen) (State, error) {
	if st, ok := s.(Starter); ok {
		return st.Start(c)
	}
	return c.Jump(s)
}

// Send renders s as a new message into chatID, typically from a job.
func (c *Context) Send(s Screen, chatID int64, cfg RenderConfig) error {
	cfg.ChatID = chatID
	cfg.AsNewMessage = true
	return c.Render(s, cfg)
}
