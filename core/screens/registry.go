package screens

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Registry maps screen names to screens and their transition handlers.
// Button targets refer to screens by value; the registry is how dispatch
// finds the handler a ScreenTarget stands for.
type Registry struct {
	mu      sync.RWMutex
	screens map[string]Screen
	// transitions is keyed by screen name.
	transitions map[string]map[Transition]*Handler
	order       []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		screens:     make(map[string]Screen),
		transitions: make(map[string]map[Transition]*Handler),
	}
}

// Register adds s together with its transition handlers. Registering the same
// screen twice is a no-op; a different screen under a taken name fails.
func (r *Registry) Register(s Screen) error {
	if s == nil {
		return fmt.Errorf("%w: nil screen", ErrInvalidSource)
	}
	name := s.Name()
	if name == "" {
		return fmt.Errorf("%w: screen name is empty", ErrImproperlyConfigured)
	}
	rs, isRoute := s.(RouteScreen)
	if isRoute {
		if err := validateRoutes(rs); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.screens[name]; ok {
		if prev == s {
			return nil
		}
		return fmt.Errorf("%w: screen name %q is registered twice", ErrImproperlyConfigured, name)
	}
	r.screens[name] = s
	r.order = append(r.order, name)

	transitions := []Transition{Jump, Move}
	if isRoute {
		transitions = append(transitions, JumpAlongRoute, MoveAlongRoute)
	}
	handlers := make(map[Transition]*Handler, len(transitions))
	for _, t := range transitions {
		handlers[t] = transitionHandler(s, t)
	}
	r.transitions[name] = handlers
	return nil
}

func transitionHandler(s Screen, t Transition) *Handler {
	h := &Handler{Name: TransitionName(s, t), Kind: ButtonHandler}
	switch t {
	case Jump:
		h.Func = func(c *Context) (State, error) { return c.Jump(s) }
	case Move:
		h.Func = func(c *Context) (State, error) { return c.Move(s) }
	case JumpAlongRoute:
		rs := s.(RouteScreen)
		h.Func = func(c *Context) (State, error) { return c.JumpAlongRoute(rs) }
	case MoveAlongRoute:
		rs := s.(RouteScreen)
		h.Func = func(c *Context) (State, error) { return c.MoveAlongRoute(rs) }
	}
	if tp, ok := s.(TransitionPermissions); ok {
		h.IgnorePermissions = tp.IgnoredPermissions(t)
	}
	return h
}

// Screen looks up a registered screen by name.
func (r *Registry) Screen(name string) (Screen, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.screens[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScreen, name)
	}
	return s, nil
}

// Transition returns the handler for transition t of s.
func (r *Registry) Transition(s Screen, t Transition) (*Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.transitions[s.Name()][t]
	if !ok {
		return nil, fmt.Errorf("%w: %q has no %s transition", ErrUnknownScreen, s.Name(), t)
	}
	return h, nil
}

// Handlers returns every handler that belongs to s: its transitions and the
// handlers it declares, sorted by name.
func (r *Registry) Handlers(s Screen) []*Handler {
	r.mu.RLock()
	var out []*Handler
	for _, h := range r.transitions[s.Name()] {
		out = append(out, h)
	}
	r.mu.RUnlock()
	if hp, ok := s.(HandlerProvider); ok {
		out = append(out, hp.Handlers()...)
	}
	slices.SortStableFunc(out, func(a, b *Handler) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// Screens returns the registered screens in registration order.
func (r *Registry) Screens() []Screen {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Screen, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.screens[name])
	}
	return out
}
