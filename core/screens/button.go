package screens

import (
	"fmt"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tgscreens/core/telegram/callbacks"
)

// SourceType selects how a button's source is interpreted.
type SourceType int

const (
	// HandlerSource binds the button to a *Handler.
	HandlerSource SourceType = iota
	// JumpSource renders the target screen as a new message.
	JumpSource
	// MoveSource edits the current message into the target screen.
	MoveSource
	// JumpAlongRouteSource jumps to a RouteScreen and follows its routes.
	JumpAlongRouteSource
	// MoveAlongRouteSource moves to a RouteScreen and follows its routes.
	MoveAlongRouteSource
	// URLSource opens a link.
	URLSource
	// WebAppSource opens a Telegram web app.
	WebAppSource
)

func (t SourceType) String() string {
	switch t {
	case HandlerSource:
		return "handler"
	case JumpSource:
		return "jump"
	case MoveSource:
		return "move"
	case JumpAlongRouteSource:
		return "jump_along_route"
	case MoveAlongRouteSource:
		return "move_along_route"
	case URLSource:
		return "url"
	case WebAppSource:
		return "web_app"
	default:
		return fmt.Sprintf("source(%d)", int(t))
	}
}

func (t SourceType) transition() (Transition, bool) {
	switch t {
	case JumpSource:
		return Jump, true
	case MoveSource:
		return Move, true
	case JumpAlongRouteSource:
		return JumpAlongRoute, true
	case MoveAlongRouteSource:
		return MoveAlongRoute, true
	}
	return 0, false
}

// Target is what a button leads to. It is one of HandlerTarget,
// ScreenTarget, URLTarget or WebAppTarget.
type Target interface {
	isTarget()
}

// HandlerTarget invokes a handler.
type HandlerTarget struct{ Handler *Handler }

// ScreenTarget performs a standard transition to a screen.
type ScreenTarget struct {
	Screen     Screen
	Transition Transition
}

// URLTarget opens a link.
type URLTarget string

// WebAppTarget opens a web app.
type WebAppTarget string

func (HandlerTarget) isTarget() {}
func (ScreenTarget) isTarget()  {}
func (URLTarget) isTarget()     {}
func (WebAppTarget) isTarget()  {}

// Button is an immutable keyboard button description.
type Button struct {
	caption    string
	sourceType SourceType
	target     Target
	hider      Hider
	payload    string
	chatID     int64
}

// Keyboard is a grid of buttons; each inner slice is a row.
type Keyboard [][]Button

// ButtonOption customises NewButton.
type ButtonOption func(*Button)

// WithSourceType sets how the source is interpreted; the default is HandlerSource.
func WithSourceType(t SourceType) ButtonOption {
	return func(b *Button) { b.sourceType = t }
}

// WithHiders attaches a visibility predicate.
func WithHiders(h Hider) ButtonOption {
	return func(b *Button) { b.hider = h }
}

// WithPayload attaches a string handed to the handler via Context.Payload.
func WithPayload(p string) ButtonOption {
	return func(b *Button) { b.payload = p }
}

// WithChatID sets the id encoded in the token when the update has no
// sender, as with renders triggered by jobs.
func WithChatID(id int64) ButtonOption {
	return func(b *Button) { b.chatID = id }
}

// NewButton validates source against the source type. Unknown source types
// are accepted here and rejected by Create.
func NewButton(caption string, source any, opts ...ButtonOption) (Button, error) {
	b := Button{caption: caption, sourceType: HandlerSource}
	for _, opt := range opts {
		opt(&b)
	}
	if !b.hider.Empty() && ActiveHidersChecker() == nil {
		return Button{}, fmt.Errorf("%w: hiders are used but no hiders checker is set", ErrImproperlyConfigured)
	}

	switch b.sourceType {
	case HandlerSource:
		h, ok := source.(*Handler)
		if !ok || h == nil || h.Func == nil {
			return Button{}, fmt.Errorf("%w: %q: handler source must be a non-nil *Handler, got %T", ErrInvalidSource, caption, source)
		}
		b.target = HandlerTarget{Handler: h}
	case JumpSource, MoveSource:
		s, ok := source.(Screen)
		if !ok || s == nil {
			return Button{}, fmt.Errorf("%w: %q: %s source must be a Screen, got %T", ErrInvalidSource, caption, b.sourceType, source)
		}
		t, _ := b.sourceType.transition()
		b.target = ScreenTarget{Screen: s, Transition: t}
	case JumpAlongRouteSource, MoveAlongRouteSource:
		s, ok := source.(RouteScreen)
		if !ok || s == nil {
			return Button{}, fmt.Errorf("%w: %q: %s source must be a RouteScreen, got %T", ErrInvalidSource, caption, b.sourceType, source)
		}
		t, _ := b.sourceType.transition()
		b.target = ScreenTarget{Screen: s, Transition: t}
	case URLSource:
		u, ok := source.(string)
		if !ok || u == "" {
			return Button{}, fmt.Errorf("%w: %q: url source must be a non-empty string", ErrInvalidSource, caption)
		}
		b.target = URLTarget(u)
	case WebAppSource:
		u, ok := source.(string)
		if !ok || u == "" {
			return Button{}, fmt.Errorf("%w: %q: web app source must be a non-empty string", ErrInvalidSource, caption)
		}
		b.target = WebAppTarget(u)
	}
	return b, nil
}

// MustButton is NewButton for static keyboards; it panics on error.
func MustButton(caption string, source any, opts ...ButtonOption) Button {
	b, err := NewButton(caption, source, opts...)
	if err != nil {
		panic(err)
	}
	return b
}

func (b Button) Caption() string        { return b.caption }
func (b Button) SourceType() SourceType { return b.sourceType }
func (b Button) Target() Target         { return b.target }
func (b Button) Payload() string        { return b.payload }

// HandlerName is the identity of the handler the button dispatches to, or
// "" for link buttons.
func (b Button) HandlerName() string {
	switch t := b.target.(type) {
	case HandlerTarget:
		return t.Handler.Name
	case ScreenTarget:
		return TransitionName(t.Screen, t.Transition)
	}
	return ""
}

// Equal compares buttons by value. Screens compare by name and handlers by
// identity name.
func (b Button) Equal(other Button) bool {
	if b.caption != other.caption || b.sourceType != other.sourceType ||
		b.payload != other.payload || b.chatID != other.chatID || !b.hider.Equal(other.hider) {
		return false
	}
	switch t := b.target.(type) {
	case HandlerTarget, ScreenTarget:
		return b.HandlerName() == other.HandlerName()
	case URLTarget:
		o, ok := other.target.(URLTarget)
		return ok && o == t
	case WebAppTarget:
		o, ok := other.target.(WebAppTarget)
		return ok && o == t
	}
	return other.target == nil
}

// Create builds the protocol button for the current update. The second
// result is false when the button's hiders hide it.
func (b Button) Create(c *Context) (tele.InlineButton, bool, error) {
	visible, err := b.visible(c)
	if err != nil || !visible {
		return tele.InlineButton{}, false, err
	}

	switch b.sourceType {
	case URLSource:
		return tele.InlineButton{Text: b.caption, URL: string(b.target.(URLTarget))}, true, nil
	case WebAppSource:
		return tele.InlineButton{Text: b.caption, WebApp: &tele.WebApp{URL: string(b.target.(WebAppTarget))}}, true, nil
	case HandlerSource, JumpSource, MoveSource, JumpAlongRouteSource, MoveAlongRouteSource:
		uid := c.UserID()
		if uid == 0 {
			uid = b.chatID
		}
		data := callbacks.Encode(b.HandlerName(), b.caption, uid)
		if b.payload != "" {
			if err := c.storePayload(uid, data, b.payload); err != nil {
				return tele.InlineButton{}, false, err
			}
		}
		return tele.InlineButton{Text: b.caption, Data: data}, true, nil
	default:
		return tele.InlineButton{}, false, fmt.Errorf("%w: %s", ErrUnknownSourceType, b.sourceType)
	}
}

// visible defaults to true when the button has no hiders or no checker is
// active any more. NewButton already refused hiders without a checker.
func (b Button) visible(c *Context) (bool, error) {
	if b.hider.Empty() {
		return true, nil
	}
	hc := ActiveHidersChecker()
	if hc == nil {
		return true, nil
	}
	return hc.Run(c, b.hider)
}
