package screens_test

import (
	"context"
	"testing"

	"github.com/m3rciful/tgscreens/core/screens"
	"github.com/m3rciful/tgscreens/core/screens/screenstest"
)

type staticScreen struct {
	screens.Base
	name  string
	kb    screens.Keyboard
	extra screens.Keyboard
}

func (s *staticScreen) Name() string { return s.name }

func (s *staticScreen) DefaultKeyboard(*screens.Context) (screens.Keyboard, error) {
	return s.kb, nil
}

func (s *staticScreen) ExtraKeyboard(*screens.Context) (screens.Keyboard, error) {
	return s.extra, nil
}

type routeScreen struct {
	staticScreen
	routes []screens.Route
}

func (s *routeScreen) Routes() []screens.Route { return s.routes }

func newScreen(name string) *staticScreen {
	return &staticScreen{Base: screens.Base{Description: name + " description"}, name: name}
}

func noop(*screens.Context) (screens.State, error) { return screens.KeepState, nil }

func newContext(e *screens.Engine, u screens.Update) *screens.Context {
	return e.NewContext(context.Background(), u)
}

func useChecker(t *testing.T, hc *screens.HidersChecker) {
	t.Helper()
	screens.UseHidersChecker(hc)
	t.Cleanup(func() { screens.UseHidersChecker(nil) })
}

func newEngine(t *testing.T) (*screens.Engine, *screenstest.FakeMessenger, *screenstest.RenderCatcher) {
	t.Helper()
	e, fm := screenstest.NewEngine(t)
	return e, fm, screenstest.CatchRenderConfig(e)
}
