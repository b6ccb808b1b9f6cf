package screens_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/tgscreens/core/screens"
)

func TestReturnStateFromRoutes(t *testing.T) {
	routes := []screens.Route{
		screens.NewRoute("S1", "S0"),
		screens.NewRoute("S3", "S0", "S2"),
	}
	assert.Equal(t, screens.State("S1"), screens.ReturnStateFromRoutes("S0", routes), "first match wins")
	assert.Equal(t, screens.State("S3"), screens.ReturnStateFromRoutes("S2", routes))
	assert.Equal(t, screens.State("S4"), screens.ReturnStateFromRoutes("S4", routes))
	assert.Equal(t, screens.State("S4"), screens.ReturnStateFromRoutes("S4", nil))
}

func TestAlongRouteTransitions(t *testing.T) {
	e, fm, _ := newEngine(t)
	rs := &routeScreen{staticScreen: *newScreen("Settings"), routes: []screens.Route{screens.NewRoute("S1", "S0")}}
	c := newContext(e, screens.Update{ChatID: 1, UserID: 1, MessageID: 9})
	require.NoError(t, c.SetState("S0"))

	st, err := c.MoveAlongRoute(rs)
	require.NoError(t, err)
	assert.Equal(t, screens.State("S1"), st)
	last, _ := fm.Last()
	assert.Equal(t, "edit", last.Kind)

	require.NoError(t, c.SetState("S2"))
	st, err = c.JumpAlongRoute(rs)
	require.NoError(t, err)
	assert.Equal(t, screens.State("S2"), st)
	last, _ = fm.Last()
	assert.Equal(t, "send", last.Kind)
}

func TestRouteOrigins(t *testing.T) {
	rs := &routeScreen{staticScreen: *newScreen("Settings"), routes: []screens.Route{
		screens.NewRoute("S1", "S0", "S2"),
		screens.NewRoute("S3", "S2", "S4"),
	}}
	assert.Equal(t, []screens.State{"S0", "S2", "S4"}, screens.RouteOrigins(rs))
}
