// Package widgets holds reusable screens built on core/screens.
package widgets

import (
	"fmt"
	"math"

	"github.com/m3rciful/tgscreens/core/screens"
)

// Default carousel captions.
const (
	BackCaption    = "⏮"
	NextCaption    = "⏭"
	DisableCaption = "🔚"
)

const (
	imagesKey   = "images"
	positionKey = "position"
)

// Image is one carousel slide. An empty Description falls back to the
// carousel's own description.
type Image struct {
	Cover       string
	Description string
}

// CarouselOption configures NewCarousel.
type CarouselOption func(*Carousel)

// Infinity makes the carousel wrap around at both ends.
func Infinity() CarouselOption {
	return func(c *Carousel) { c.infinity = true }
}

// WithCaptions replaces the control captions.
func WithCaptions(back, next, disabled string) CarouselOption {
	return func(c *Carousel) {
		c.backCaption, c.nextCaption, c.disableCaption = back, next, disabled
	}
}

// WithImagesFunc computes the slides per render instead of using a fixed list.
func WithImagesFunc(fn func(c *screens.Context) ([]Image, error)) CarouselOption {
	return func(c *Carousel) { c.imagesFunc = fn }
}

// WithExtraKeyboard adds rows below the control buttons.
func WithExtraKeyboard(fn func(c *screens.Context) (screens.Keyboard, error)) CarouselOption {
	return func(c *Carousel) { c.extra = fn }
}

// Carousel shows one image at a time with back and next buttons. The slide
// list and position are kept per user, so a press always browses the slides
// the user was shown.
type Carousel struct {
	screens.Base

	name           string
	images         []Image
	imagesFunc     func(c *screens.Context) ([]Image, error)
	infinity       bool
	backCaption    string
	nextCaption    string
	disableCaption string
	extra          func(c *screens.Context) (screens.Keyboard, error)

	back, next, noop *screens.Handler
}

// NewCarousel builds a carousel screen called name.
func NewCarousel(name string, images []Image, opts ...CarouselOption) (*Carousel, error) {
	c := &Carousel{
		name:           name,
		images:         images,
		backCaption:    BackCaption,
		nextCaption:    NextCaption,
		disableCaption: DisableCaption,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.backCaption == "" || c.nextCaption == "" || c.disableCaption == "" {
		return nil, fmt.Errorf("%w: carousel %s must specify back, next and disable captions",
			screens.ErrImproperlyConfigured, name)
	}
	c.back = screens.NewHandler(name+".back", func(ctx *screens.Context) (screens.State, error) {
		return screens.KeepState, c.step(ctx, -1)
	})
	c.next = screens.NewHandler(name+".next", func(ctx *screens.Context) (screens.State, error) {
		return screens.KeepState, c.step(ctx, 1)
	})
	c.noop = screens.NewHandler(name+".disabled", func(*screens.Context) (screens.State, error) {
		return screens.KeepState, nil
	})
	return c, nil
}

func (c *Carousel) Name() string { return c.name }

// Handlers exposes the control button handlers for registration.
func (c *Carousel) Handlers() []*screens.Handler {
	return []*screens.Handler{c.back, c.next, c.noop}
}

// Images returns the slides for the current render.
func (c *Carousel) Images(ctx *screens.Context) ([]Image, error) {
	if c.imagesFunc != nil {
		return c.imagesFunc(ctx)
	}
	return c.images, nil
}

// Jump renders the first slide as a new message.
func (c *Carousel) Jump(ctx *screens.Context) (screens.State, error) {
	return screens.DefaultState, c.init(ctx, screens.RenderConfig{AsNewMessage: true}, nil)
}

// Move edits the current message into the first slide.
func (c *Carousel) Move(ctx *screens.Context) (screens.State, error) {
	return screens.DefaultState, c.init(ctx, screens.RenderConfig{}, nil)
}

// Send delivers the carousel to chatID as a notification. images overrides
// the configured slides when not nil.
func (c *Carousel) Send(ctx *screens.Context, chatID int64, cfg screens.RenderConfig, images []Image) error {
	cfg.ChatID = chatID
	cfg.AsNewMessage = true
	return c.init(ctx, cfg, images)
}

func (c *Carousel) init(ctx *screens.Context, cfg screens.RenderConfig, images []Image) error {
	if images == nil {
		var err error
		if images, err = c.Images(ctx); err != nil {
			return fmt.Errorf("widgets: %s: images: %w", c.name, err)
		}
	}
	if len(images) == 0 {
		return fmt.Errorf("%w: carousel %s has no images", screens.ErrImproperlyConfigured, c.name)
	}
	if err := c.save(ctx, images, 0); err != nil {
		return err
	}
	first := images[0]
	cfg.Cover = first.Cover
	if cfg.Description == "" {
		cfg.Description = c.describe(first)
	}
	kb, err := c.keyboard(ctx, images, 0)
	if err != nil {
		return err
	}
	cfg.Keyboard = kb
	return ctx.Render(c, cfg)
}

func (c *Carousel) step(ctx *screens.Context, delta int) error {
	images := c.stored(ctx)
	if len(images) == 0 {
		_, err := c.Move(ctx)
		return err
	}
	pos := c.position(ctx) + delta
	switch {
	case c.infinity:
		pos = (pos%len(images) + len(images)) % len(images)
	case pos < 0 || pos >= len(images):
		pos -= delta
	}
	if pos < 0 || pos >= len(images) {
		pos = 0
	}
	if err := ctx.SetStateValue(c, positionKey, pos); err != nil {
		return err
	}
	kb, err := c.keyboard(ctx, images, pos)
	if err != nil {
		return err
	}
	img := images[pos]
	return ctx.Render(c, screens.RenderConfig{
		Cover:       img.Cover,
		Description: c.describe(img),
		Keyboard:    kb,
	})
}

func (c *Carousel) describe(img Image) string {
	if img.Description != "" {
		return img.Description
	}
	return c.Description
}

func (c *Carousel) keyboard(ctx *screens.Context, images []Image, pos int) (screens.Keyboard, error) {
	back, next := c.back, c.next
	if !c.infinity {
		if pos <= 0 {
			back = c.noop
		}
		if pos >= len(images)-1 {
			next = c.noop
		}
	}
	backBtn, err := c.button(back, c.backCaption)
	if err != nil {
		return nil, err
	}
	nextBtn, err := c.button(next, c.nextCaption)
	if err != nil {
		return nil, err
	}
	kb := screens.Keyboard{{backBtn, nextBtn}}
	if c.extra != nil {
		rows, err := c.extra(ctx)
		if err != nil {
			return nil, fmt.Errorf("widgets: %s: extra keyboard: %w", c.name, err)
		}
		kb = append(kb, rows...)
	}
	return kb, nil
}

func (c *Carousel) button(h *screens.Handler, caption string) (screens.Button, error) {
	if h == c.noop {
		caption = c.disableCaption
	}
	return screens.NewButton(caption, h)
}

func (c *Carousel) save(ctx *screens.Context, images []Image, pos int) error {
	raw := make([]any, len(images))
	for i, img := range images {
		raw[i] = []any{img.Cover, img.Description}
	}
	if err := ctx.SetStateValue(c, imagesKey, raw); err != nil {
		return err
	}
	return ctx.SetStateValue(c, positionKey, pos)
}

func (c *Carousel) stored(ctx *screens.Context) []Image {
	v, _ := ctx.StateValue(c, imagesKey)
	raw, _ := v.([]any)
	out := make([]Image, 0, len(raw))
	for _, item := range raw {
		pair, _ := item.([]any)
		if len(pair) != 2 {
			continue
		}
		cover, _ := pair[0].(string)
		desc, _ := pair[1].(string)
		out = append(out, Image{Cover: cover, Description: desc})
	}
	return out
}

func (c *Carousel) position(ctx *screens.Context) int {
	v, _ := ctx.StateValue(c, positionKey)
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		if n == math.Trunc(n) {
			return int(n)
		}
	}
	return 0
}
