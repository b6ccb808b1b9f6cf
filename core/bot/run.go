package bot

import (
	"context"
	"errors"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tgscreens/core/logger"
	"github.com/m3rciful/tgscreens/core/metrics"
	"github.com/m3rciful/tgscreens/core/screens"
	"github.com/m3rciful/tgscreens/core/telegram"
	tghelpers "github.com/m3rciful/tgscreens/core/telegram/helpers"
	"github.com/m3rciful/tgscreens/core/telegram/router"
	"github.com/m3rciful/tgscreens/core/telegram/state"
)

// TelegramRunOptions wires the bot into the telegram runtime.
func (b *Bot) TelegramRunOptions() (telegram.RunOptions, error) {
	if unknown := b.fallbacks.UnknownCallback(); unknown != nil {
		b.registry.SetCallbackNotFound(unknown)
	}

	routes := []telegram.Route{
		router.CallbackRoute(teleDispatch{b: b}, b.registry, router.CallbackOptions{}),
	}
	routes = append(routes, router.CommandRoutes(b.registry, router.CommandRouteOptions{
		IsAdmin: b.isAdmin,
	})...)
	routes = append(routes, router.TextRoutes(teleDispatch{b: b}, b.registry, router.TextOptions{
		UnknownText:     b.fallbacks.UnknownText(),
		UnknownDocument: b.fallbacks.UnknownDocument(),
	})...)

	mws := telegram.DefaultMiddlewares(b.cfg, nil)
	mws = append(mws, telegram.Middleware{Name: "state", Use: state.WithState(b.engine.States)})

	return telegram.RunOptions{
		Config:      b.cfg,
		Registry:    b.registry,
		Middlewares: mws,
		Routes:      routes,
		OnError:     b.onTeleError,
		OnStart:     b.onStart,
		OnStop:      b.onStop,
	}, nil
}

func (b *Bot) isAdmin(tc tele.Context) bool {
	if tc.Sender() == nil {
		return false
	}
	return b.engine.Admins().Contains(b.contextFrom(tc), tc.Sender().ID)
}

func (b *Bot) onStart(ctx context.Context, rt telegram.Runtime) error {
	if !b.presetMsgr && rt.Bot != nil {
		b.engine.SetMessenger(screens.NewTeleMessenger(rt.Bot, rt.Dispatcher))
	}
	b.queue.Start()
	if addr := b.cfg.Metrics.Listen; addr != "" {
		go func() {
			if err := metrics.Serve(ctx, addr); err != nil {
				logger.Error(ctx, "metrics", "metrics.serve", slog.String("err", err.Error()))
			}
		}()
	}
	return nil
}

func (b *Bot) onStop(ctx context.Context, _ telegram.Runtime) error {
	stopCtx := context.WithoutCancel(ctx)
	return errors.Join(
		b.queue.Stop(stopCtx),
		b.engine.Backend.Close(stopCtx),
	)
}

// Stop halts jobs and flushes persistence; used when the bot runs without
// the telegram runtime.
func (b *Bot) Stop(ctx context.Context) error {
	return b.onStop(ctx, telegram.Runtime{})
}

type defaultFallbacks struct{}

func (defaultFallbacks) UnknownText() tele.HandlerFunc     { return nil }
func (defaultFallbacks) UnknownDocument() tele.HandlerFunc { return nil }

func (defaultFallbacks) UnknownCallback() tele.HandlerFunc {
	return func(tc tele.Context) error {
		logger.Debug(tghelpers.BuildContext(tc), "tg", "callback.not_found")
		return tc.Respond()
	}
}
