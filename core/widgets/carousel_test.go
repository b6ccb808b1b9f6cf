package widgets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/tgscreens/core/screens"
	"github.com/m3rciful/tgscreens/core/screens/screenstest"
)

var slides = []Image{
	{Cover: "https://example.com/1.png", Description: "first"},
	{Cover: "https://example.com/2.png"},
	{Cover: "https://example.com/3.png", Description: "last"},
}

func captions(cfg screens.FinalRenderConfig) []string {
	var out []string
	for _, b := range cfg.Keyboard[0] {
		out = append(out, b.Caption())
	}
	return out
}

func setup(t *testing.T, opts ...CarouselOption) (*Carousel, *screens.Context, *screenstest.RenderCatcher) {
	t.Helper()
	e, _ := screenstest.NewEngine(t)
	rc := screenstest.CatchRenderConfig(e)
	car, err := NewCarousel("Gallery", slides, opts...)
	require.NoError(t, err)
	car.Description = "gallery"
	c := e.NewContext(context.Background(), screens.Update{ChatID: 1, UserID: 1, MessageID: 101})
	return car, c, rc
}

func press(t *testing.T, c *screens.Context, h *screens.Handler) {
	t.Helper()
	st, err := h.Func(c)
	require.NoError(t, err)
	assert.Equal(t, screens.KeepState, st)
}

func TestNewCarouselRequiresCaptions(t *testing.T) {
	_, err := NewCarousel("Gallery", slides, WithCaptions("<", "", "x"))
	assert.ErrorIs(t, err, screens.ErrImproperlyConfigured)
}

func TestCarouselJumpShowsFirstSlide(t *testing.T) {
	car, c, rc := setup(t)

	st, err := car.Jump(c)
	require.NoError(t, err)
	assert.Equal(t, screens.DefaultState, st)

	cfg, ok := rc.Last()
	require.True(t, ok)
	assert.True(t, cfg.AsNewMessage)
	assert.Equal(t, slides[0].Cover, cfg.Cover)
	assert.Equal(t, "first", cfg.Description)
	assert.Equal(t, []string{DisableCaption, NextCaption}, captions(cfg))
}

func TestCarouselRegularModeStopsAtEnds(t *testing.T) {
	car, c, rc := setup(t)
	_, err := car.Move(c)
	require.NoError(t, err)

	press(t, c, car.next)
	cfg, _ := rc.Last()
	assert.Equal(t, slides[1].Cover, cfg.Cover)
	assert.Equal(t, "gallery", cfg.Description)
	assert.Equal(t, []string{BackCaption, NextCaption}, captions(cfg))

	press(t, c, car.next)
	cfg, _ = rc.Last()
	assert.Equal(t, "last", cfg.Description)
	assert.Equal(t, []string{BackCaption, DisableCaption}, captions(cfg))

	press(t, c, car.next)
	cfg, _ = rc.Last()
	assert.Equal(t, "last", cfg.Description)
	assert.Equal(t, 2, car.position(c))

	press(t, c, car.noop)
	assert.Len(t, rc.All(), 4)
}

func TestCarouselInfinityWraps(t *testing.T) {
	car, c, rc := setup(t, Infinity())
	_, err := car.Move(c)
	require.NoError(t, err)

	cfg, _ := rc.Last()
	assert.Equal(t, []string{BackCaption, NextCaption}, captions(cfg))

	press(t, c, car.back)
	cfg, _ = rc.Last()
	assert.Equal(t, slides[2].Cover, cfg.Cover)
	assert.Equal(t, 2, car.position(c))

	press(t, c, car.next)
	cfg, _ = rc.Last()
	assert.Equal(t, slides[0].Cover, cfg.Cover)
}

func TestCarouselSendUsesGivenImages(t *testing.T) {
	car, c, rc := setup(t, WithExtraKeyboard(func(*screens.Context) (screens.Keyboard, error) {
		return screens.Keyboard{{screens.MustButton("Source", "https://example.com", screens.WithSourceType(screens.URLSource))}}, nil
	}))

	require.NoError(t, car.Send(c, 42, screens.RenderConfig{}, []Image{{Cover: "https://example.com/x.png", Description: "only"}}))
	cfg, _ := rc.Last()
	assert.Equal(t, int64(42), cfg.ChatID)
	assert.Equal(t, "only", cfg.Description)
	assert.Equal(t, []string{DisableCaption, DisableCaption}, captions(cfg))
	require.Len(t, cfg.Keyboard, 2)
	assert.Equal(t, "Source", cfg.Keyboard[1][0].Caption())
}

func TestCarouselHandlersAreNamedAfterScreen(t *testing.T) {
	car, _, _ := setup(t)
	var names []string
	for _, h := range car.Handlers() {
		names = append(names, h.Name)
	}
	assert.Equal(t, []string{"Gallery.back", "Gallery.next", "Gallery.disabled"}, names)
}
