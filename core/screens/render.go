package screens

import (
	"fmt"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tgscreens/core/logger"
	"github.com/m3rciful/tgscreens/core/metrics"
	"github.com/m3rciful/tgscreens/core/telegram/middleware"
)

const (
	latestSentMsgKey = "latest_sent_msg"
	coversCacheKey   = "covers_cache"
)

// Document is a file sent instead of a text message. Either Path or Data
// must be set; Name defaults to the base name of Path.
type Document struct {
	Path string
	Data []byte
	Name string
}

// RenderConfig describes a render. Zero values mean "use the screen's
// default". A nil Keyboard uses the screen's keyboards; a non-nil empty one
// renders no buttons.
type RenderConfig struct {
	ChatID       int64
	MessageID    int
	AsNewMessage bool
	CacheCovers  bool
	Cover        string
	Description  string
	Attachments  tele.Album
	Document     *Document
	Keyboard     Keyboard
	HideKeyboard bool
}

// FinalRenderConfig is a RenderConfig with every field resolved. Keyboard
// holds the visible buttons and Markup their protocol form; neither is nil.
type FinalRenderConfig struct {
	ChatID       int64
	MessageID    int
	AsNewMessage bool
	CacheCovers  bool
	Cover        string
	Description  string
	Attachments  tele.Album
	Document     *Document
	Keyboard     Keyboard
	Markup       [][]tele.InlineButton
	HideKeyboard bool
}

// LatestMessage is the last message a screen sent to a chat.
type LatestMessage struct {
	ChatID       int64
	MessageID    int
	HideKeyboard bool
}

// Render resolves cfg against s and delivers the result.
func (c *Context) Render(s Screen, cfg RenderConfig) error {
	final, err := c.finalize(s, cfg)
	if err != nil {
		return err
	}
	if hook := c.engine.OnFinalRender; hook != nil {
		hook(c, s, final)
	}
	return c.deliver(s, final)
}

func (c *Context) finalize(s Screen, cfg RenderConfig) (FinalRenderConfig, error) {
	base := baseOf(s)
	if base == nil {
		base = &Base{}
	}

	desc := cfg.Description
	if desc == "" {
		if d, ok := s.(Describer); ok {
			var err error
			if desc, err = d.Describe(c); err != nil {
				return FinalRenderConfig{}, fmt.Errorf("screens: %s: describe: %w", s.Name(), err)
			}
		}
	}
	if desc == "" {
		desc = base.Description
	}
	if desc == "" {
		return FinalRenderConfig{}, fmt.Errorf("%w: %s", ErrScreenDescriptionIsEmpty, s.Name())
	}
	if cfg.Document != nil && cfg.Document.Path == "" && len(cfg.Document.Data) == 0 {
		return FinalRenderConfig{}, fmt.Errorf("%w: %s", ErrScreenDocumentDataIsEmpty, s.Name())
	}

	kb := cfg.Keyboard
	if kb == nil {
		var err error
		if kb, err = screenKeyboard(c, s); err != nil {
			return FinalRenderConfig{}, err
		}
	}
	visible, markup, err := c.resolveKeyboard(kb)
	if err != nil {
		return FinalRenderConfig{}, fmt.Errorf("screens: %s: keyboard: %w", s.Name(), err)
	}

	final := FinalRenderConfig{
		ChatID:       cfg.ChatID,
		MessageID:    cfg.MessageID,
		AsNewMessage: cfg.AsNewMessage,
		CacheCovers:  cfg.CacheCovers || base.CacheCovers,
		Cover:        cfg.Cover,
		Description:  desc,
		Attachments:  cfg.Attachments,
		Document:     cfg.Document,
		Keyboard:     visible,
		Markup:       markup,
		HideKeyboard: cfg.HideKeyboard || base.HideKeyboard,
	}
	if final.Cover == "" {
		final.Cover = base.Cover
	}
	if final.ChatID == 0 {
		final.ChatID = c.ChatID()
	}
	if final.MessageID == 0 && final.ChatID == c.ChatID() {
		final.MessageID = c.MessageID()
	}
	if final.MessageID == 0 || final.Document != nil || len(final.Attachments) > 0 {
		final.AsNewMessage = true
	}
	return final, nil
}

func screenKeyboard(c *Context, s Screen) (Keyboard, error) {
	var kb Keyboard
	if d, ok := s.(DefaultKeyboarder); ok {
		rows, err := d.DefaultKeyboard(c)
		if err != nil {
			return nil, fmt.Errorf("screens: %s: default keyboard: %w", s.Name(), err)
		}
		kb = append(kb, rows...)
	}
	if e, ok := s.(ExtraKeyboarder); ok {
		rows, err := e.ExtraKeyboard(c)
		if err != nil {
			return nil, fmt.Errorf("screens: %s: extra keyboard: %w", s.Name(), err)
		}
		kb = append(kb, rows...)
	}
	return kb, nil
}

// resolveKeyboard drops hidden buttons and the rows left empty by them.
func (c *Context) resolveKeyboard(kb Keyboard) (Keyboard, [][]tele.InlineButton, error) {
	visible := Keyboard{}
	markup := [][]tele.InlineButton{}
	for _, row := range kb {
		var (
			vrow []Button
			mrow []tele.InlineButton
		)
		for _, b := range row {
			ib, ok, err := b.Create(c)
			if err != nil {
				return nil, nil, err
			}
			if !ok {
				continue
			}
			vrow = append(vrow, b)
			mrow = append(mrow, ib)
		}
		if len(vrow) == 0 {
			continue
		}
		visible = append(visible, vrow)
		markup = append(markup, mrow)
	}
	return visible, markup, nil
}

func (c *Context) deliver(s Screen, final FinalRenderConfig) error {
	m := c.engine.Messenger()
	if m == nil {
		return ErrMessengerIsNotSet
	}

	latest, hasLatest := c.latestMessage(final.ChatID)
	if hasLatest && latest.HideKeyboard && latest.MessageID == final.MessageID {
		final.AsNewMessage = true
	}

	out := OutMessage{
		Text:        final.Description,
		ParseMode:   c.engine.ParseMode,
		Cover:       c.cachedCover(final),
		Attachments: final.Attachments,
		Document:    final.Document,
	}
	if !final.HideKeyboard && len(final.Markup) > 0 {
		out.Markup = &tele.ReplyMarkup{InlineKeyboard: final.Markup}
	}

	var (
		sent SentMessage
		err  error
		mode = "edit"
	)
	if final.AsNewMessage {
		mode = "new"
		if hasLatest && !latest.HideKeyboard && latest.MessageID != 0 {
			prev := SentMessage{ChatID: latest.ChatID, MessageID: latest.MessageID}
			if rerr := m.RemoveKeyboard(c, prev); rerr != nil {
				logger.Warn(c, "screens", "render.keyboard_cleanup",
					slog.String("screen", s.Name()),
					slog.String("err", rerr.Error()),
				)
			}
		}
		sent, err = m.Send(c, final.ChatID, out)
	} else {
		sent, err = m.Edit(c, SentMessage{ChatID: final.ChatID, MessageID: final.MessageID}, out)
	}
	if err != nil {
		logger.Error(c, "screens", "render.fail",
			slog.String("screen", s.Name()),
			slog.String("mode", mode),
			slog.String("err", err.Error()),
		)
		return err
	}
	metrics.ObserveRender(s.Name(), mode)
	if tc := c.Tele(); tc != nil {
		middleware.CountMessage(tc, out.Markup != nil)
	}
	logger.Debug(c, "screens", "render.ok",
		slog.String("screen", s.Name()),
		slog.String("mode", mode),
		slog.Int("kb", len(final.Markup)),
	)

	if final.CacheCovers && final.Cover != "" && sent.PhotoFileID != "" && out.Cover != sent.PhotoFileID {
		c.cacheCover(final.Cover, sent.PhotoFileID)
	}
	return c.saveLatestMessage(LatestMessage{
		ChatID:       sent.ChatID,
		MessageID:    sent.MessageID,
		HideKeyboard: final.HideKeyboard,
	})
}

func (c *Context) latestMessage(chatID int64) (LatestMessage, bool) {
	raw, ok := c.engine.Backend.ChatData(c, chatID)[latestSentMsgKey].(map[string]any)
	if !ok {
		return LatestMessage{}, false
	}
	msg := LatestMessage{
		ChatID:    int64(asFloat(raw["chat_id"])),
		MessageID: int(asFloat(raw["message_id"])),
	}
	msg.HideKeyboard, _ = raw["hide_keyboard"].(bool)
	return msg, msg.MessageID != 0
}

func (c *Context) saveLatestMessage(msg LatestMessage) error {
	data := c.engine.Backend.ChatData(c, msg.ChatID)
	data[latestSentMsgKey] = map[string]any{
		"chat_id":       msg.ChatID,
		"message_id":    msg.MessageID,
		"hide_keyboard": msg.HideKeyboard,
	}
	return c.engine.Backend.UpdateChatData(c, msg.ChatID, data)
}

// LatestMessage returns the message last rendered into chatID.
func (c *Context) LatestMessage(chatID int64) (LatestMessage, bool) {
	return c.latestMessage(chatID)
}

func (c *Context) cachedCover(final FinalRenderConfig) string {
	if !final.CacheCovers || final.Cover == "" {
		return final.Cover
	}
	cache, _ := c.engine.Backend.GetBotData(c)[coversCacheKey].(map[string]any)
	if id, ok := cache[final.Cover].(string); ok && id != "" {
		return id
	}
	return final.Cover
}

func (c *Context) cacheCover(cover, fileID string) {
	data := c.engine.Backend.GetBotData(c)
	cache, _ := data[coversCacheKey].(map[string]any)
	if cache == nil {
		cache = map[string]any{}
	}
	cache[cover] = fileID
	data[coversCacheKey] = cache
	if err := c.engine.Backend.UpdateBotData(c, data); err != nil {
		logger.Warn(c, "screens", "render.cover_cache",
			slog.String("cover", cover),
			slog.String("err", err.Error()),
		)
	}
}

// asFloat reads a JSON number that may still be an int before a store round trip.
func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
