package screens

import "github.com/google/uuid"

// Screen is a stateless unit of UI. Implementations are process-wide
// singletons; everything user specific lives in the persistence backend.
// Name must be unique within a bot: handler identities derive from it.
type Screen interface {
	Name() string
}

// Describer produces the screen description for the current update.
type Describer interface {
	Describe(c *Context) (string, error)
}

// DefaultKeyboarder produces the main keyboard rows.
type DefaultKeyboarder interface {
	DefaultKeyboard(c *Context) (Keyboard, error)
}

// ExtraKeyboarder produces rows appended after the default keyboard.
type ExtraKeyboarder interface {
	ExtraKeyboard(c *Context) (Keyboard, error)
}

// Configurer adjusts the render config before every transition render.
type Configurer interface {
	Configure(c *Context, cfg *RenderConfig) error
}

// Starter overrides what the /start entry point does.
type Starter interface {
	Start(c *Context) (State, error)
}

// Jumper overrides the jump transition. Implementations must render through
// Context.Render, not Context.Jump.
type Jumper interface {
	Jump(c *Context) (State, error)
}

// Mover overrides the move transition. The same restriction as Jumper applies.
type Mover interface {
	Move(c *Context) (State, error)
}

// HandlerProvider declares extra handlers owned by the screen.
type HandlerProvider interface {
	Handlers() []*Handler
}

// TransitionPermissions declares the permissions a standard transition of
// the screen is exempt from.
type TransitionPermissions interface {
	IgnoredPermissions(t Transition) []uuid.UUID
}

// Base carries static screen attributes. Embed it and set the fields.
type Base struct {
	Description  string
	Cover        string
	HideKeyboard bool
	CacheCovers  bool
}

func (b *Base) base() *Base { return b }

type baser interface {
	base() *Base
}

func baseOf(s Screen) *Base {
	if b, ok := s.(baser); ok {
		return b.base()
	}
	return nil
}

// Transition is one of the standard ways to navigate to a screen.
type Transition int

const (
	// Jump renders the screen as a new message.
	Jump Transition = iota
	// Move edits the current message in place.
	Move
	// JumpAlongRoute jumps and returns the route's state.
	JumpAlongRoute
	// MoveAlongRoute moves and returns the route's state.
	MoveAlongRoute
)

func (t Transition) String() string {
	switch t {
	case Jump:
		return "jump"
	case Move:
		return "move"
	case JumpAlongRoute:
		return "jump_along_route"
	case MoveAlongRoute:
		return "move_along_route"
	default:
		return "unknown"
	}
}

// alongRoute reports whether t needs a RouteScreen.
func (t Transition) alongRoute() bool {
	return t == JumpAlongRoute || t == MoveAlongRoute
}

// TransitionName is the handler identity of transition t of s.
func TransitionName(s Screen, t Transition) string {
	return s.Name() + "." + t.String()
}
