package screens

import (
	"slices"

	"github.com/google/uuid"

	"github.com/m3rciful/tgscreens/core/telegram/state"
)

// State is re-exported so screen code rarely needs the state package.
type State = state.State

const (
	// DefaultState is the initial conversation state.
	DefaultState = state.DefaultState
	// KeepState leaves the conversation state unchanged.
	KeepState = state.KeepState
)

// HandlerFunc handles an update and returns the next conversation state.
type HandlerFunc func(c *Context) (State, error)

// HandlerKind tells the bot how a handler is matched against updates.
type HandlerKind int

const (
	// ButtonHandler is invoked by inline button presses.
	ButtonHandler HandlerKind = iota
	// InputHandler is invoked by text messages in the states its screen belongs to.
	InputHandler
	// CommandHandler is invoked by a slash command.
	CommandHandler
)

func (k HandlerKind) String() string {
	switch k {
	case ButtonHandler:
		return "button"
	case InputHandler:
		return "input"
	case CommandHandler:
		return "command"
	default:
		return "unknown"
	}
}

// Handler describes a screen entry point. Name is its identity: callback
// tokens are derived from it, so it must be stable and unique per bot.
type Handler struct {
	Name string
	Kind HandlerKind
	// Command is the slash command of a CommandHandler, e.g. "/help".
	Command string
	// Description is shown in the command menu for a CommandHandler.
	Description string
	// Filter narrows an InputHandler; nil matches any text.
	Filter func(c *Context) bool
	Func   HandlerFunc
	// IgnorePermissions lists the permissions this handler is exempt from.
	IgnorePermissions []uuid.UUID
}

// HandlerOption customises a Handler.
type HandlerOption func(*Handler)

// IgnorePermissions exempts the handler from the given permissions.
func IgnorePermissions(ids ...uuid.UUID) HandlerOption {
	return func(h *Handler) {
		h.IgnorePermissions = append(h.IgnorePermissions, ids...)
	}
}

// WithFilter restricts an input handler to matching updates.
func WithFilter(f func(c *Context) bool) HandlerOption {
	return func(h *Handler) { h.Filter = f }
}

// WithDescription sets the command menu description.
func WithDescription(d string) HandlerOption {
	return func(h *Handler) { h.Description = d }
}

// NewHandler declares a button handler.
func NewHandler(name string, fn HandlerFunc, opts ...HandlerOption) *Handler {
	return newHandler(&Handler{Name: name, Kind: ButtonHandler, Func: fn}, opts)
}

// NewInputHandler declares a typed-input handler.
func NewInputHandler(name string, fn HandlerFunc, opts ...HandlerOption) *Handler {
	return newHandler(&Handler{Name: name, Kind: InputHandler, Func: fn}, opts)
}

// NewCommandHandler declares a slash command handler.
func NewCommandHandler(name, command string, fn HandlerFunc, opts ...HandlerOption) *Handler {
	return newHandler(&Handler{Name: name, Kind: CommandHandler, Command: command, Func: fn}, opts)
}

func newHandler(h *Handler, opts []HandlerOption) *Handler {
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Exempt reports whether the handler ignores the permission with id.
func (h *Handler) Exempt(id uuid.UUID) bool {
	return slices.Contains(h.IgnorePermissions, id)
}

// Matches reports whether an input handler accepts the update.
func (h *Handler) Matches(c *Context) bool {
	return h.Filter == nil || h.Filter(c)
}
