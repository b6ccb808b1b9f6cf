package helpers

import (
	"context"

	"github.com/m3rciful/tgscreens/core/logger"

	tele "gopkg.in/telebot.v4"
)

const ctxSlot = "request_ctx"

// BuildContext returns the request context of the update in c, creating it
// on first use. It carries the correlation id, the update identifiers and
// the tg component logger, and is shared by every handler of the update.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := c.Get(ctxSlot).(context.Context); ok {
		return ctx
	}
	upd := c.Update()
	var chatID, userID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}
	ctx := logger.WithRID(context.Background(), logger.BuildRID(upd.ID, chatID, userID))
	ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	c.Set(ctxSlot, ctx)
	return ctx
}

// WithHandler records the handler serving c in its request context.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := logger.WithHandler(BuildContext(c), handler)
	c.Set(ctxSlot, ctx)
	return ctx
}
