package screens

import (
	"fmt"
	"slices"
)

// Route sends a user that is in any of From to To.
type Route struct {
	From []State
	To   State
}

// NewRoute is shorthand for a Route literal.
func NewRoute(to State, from ...State) Route {
	return Route{From: from, To: to}
}

// RouteScreen is a screen reachable from several conversation states that
// returns the user to a state chosen by where they came from.
type RouteScreen interface {
	Screen
	Routes() []Route
}

// ReturnStateFromRoutes returns the target of the first route whose origin
// set contains current, or current itself when none does.
func ReturnStateFromRoutes(current State, routes []Route) State {
	for _, r := range routes {
		if slices.Contains(r.From, current) {
			return r.To
		}
	}
	return current
}

func validateRoutes(s RouteScreen) error {
	if len(s.Routes()) == 0 {
		return fmt.Errorf("%w: %s", ErrScreenRouteIsEmpty, s.Name())
	}
	return nil
}

// routeOrigins lists every origin state of s in declaration order.
func routeOrigins(s RouteScreen) []State {
	var out []State
	for _, r := range s.Routes() {
		for _, st := range r.From {
			if !slices.Contains(out, st) {
				out = append(out, st)
			}
		}
	}
	return out
}

// RouteOrigins exposes the origin states of s for handler registration.
func RouteOrigins(s RouteScreen) []State {
	return routeOrigins(s)
}
