// Package demo is a sample bot built on the screens framework: a main menu,
// a gallery carousel, reminders delivered by jobs, an admin panel and a
// maintenance mode enforced by a permission.
package demo

import (
	"log/slog"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tgscreens/core/bot"
	coreconfig "github.com/m3rciful/tgscreens/core/config"
	"github.com/m3rciful/tgscreens/core/jobs"
	"github.com/m3rciful/tgscreens/core/logger"
	"github.com/m3rciful/tgscreens/core/persistence"
	"github.com/m3rciful/tgscreens/core/screens"
	"github.com/m3rciful/tgscreens/core/telegram/commands"
	tghelpers "github.com/m3rciful/tgscreens/core/telegram/helpers"
	"github.com/m3rciful/tgscreens/core/telegram/ui"
	"github.com/m3rciful/tgscreens/core/widgets"
)

// Conversation states besides screens.DefaultState.
const (
	StateAdmin    screens.State = "admin"
	StateAddAdmin screens.State = "admin_add"
)

// HidersCheckerName selects the demo checker in screens.hiders_checker.
const HidersCheckerName = "demo"

const sourceURL = "https://github.com/m3rciful/tgscreens"

var (
	registerOnce sync.Once
	hiders       *screens.HidersChecker
)

// Register makes the demo hiders checker and the maintenance permission
// selectable from configuration.
func Register() {
	registerOnce.Do(func() {
		hiders = screens.NewHidersChecker().Register(screens.OnlyForAdmin, screens.HasAdmin)
		screens.RegisterHidersChecker(HidersCheckerName, hiders)
		screens.RegisterPermission(Maintenance{})
	})
}

// Options tweak New.
type Options struct {
	Messenger     screens.Messenger
	OnFinalRender screens.FinalRenderHook
}

// App holds the demo screens and the bot that serves them.
type App struct {
	Bot *bot.Bot

	menu      *MainMenu
	about     *About
	reminders *Reminders
	notice    *Notification
	gallery   *widgets.Carousel
	admin     *AdminPanel
	addAdmin  *AddAdmin
}

// New assembles the demo bot over backend.
func New(cfg *coreconfig.Config, backend *persistence.Backend, opts Options) (*App, error) {
	Register()

	app := &App{}
	app.menu = newMainMenu(app)
	app.about = newAbout(app)
	app.reminders = newReminders(app)
	app.notice = newNotification(app)
	app.admin = newAdminPanel(app)
	app.addAdmin = newAddAdmin(app)

	gallery, err := widgets.NewCarousel("Gallery", galleryImages, widgets.WithExtraKeyboard(app.backToMenu))
	if err != nil {
		return nil, err
	}
	gallery.Description = "Gallery"
	gallery.CacheCovers = true
	app.gallery = gallery

	// The menu hides its admin button, so a checker is always needed.
	var checker *screens.HidersChecker
	if cfg != nil && cfg.Screens.HidersChecker == "" {
		checker = hiders
	}

	b, err := bot.New("demo", bot.Options{
		Config:        cfg,
		EntryPoint:    app.menu,
		Backend:       backend,
		HidersChecker: checker,
		States: map[screens.State][]screens.Screen{
			screens.DefaultState: {app.about, app.reminders, app.notice, app.gallery, maintenanceScreen},
			StateAdmin:           {app.admin, app.about},
			StateAddAdmin:        {app.addAdmin},
		},
		Jobs: []bot.JobConfig{
			{Name: "stats", Schedule: "@hourly", Callback: app.logStats},
		},
		Messenger:     opts.Messenger,
		OnFinalRender: opts.OnFinalRender,
		Fallbacks: ui.Notice{
			Text:     "I did not get that. Send /start to open the main menu.",
			Callback: "This button has expired.",
		},
	})
	if err != nil {
		return nil, err
	}
	if err := b.Registry().RegisterCommand("/flush", commands.Command{
		Handler:     app.flush,
		Description: "Flush persistence",
		AdminOnly:   true,
		Hidden:      true,
	}); err != nil {
		return nil, err
	}
	app.Bot = b
	return app, nil
}

func (a *App) backToMenu(*screens.Context) (screens.Keyboard, error) {
	return screens.Keyboard{
		{screens.MustButton("⬅️ Main menu", a.menu, screens.WithSourceType(screens.MoveSource))},
	}, nil
}

func (a *App) logStats(c *screens.Context, _ jobs.Job) error {
	logger.Info(c, "jobs", "demo.stats",
		slog.Int("users", len(c.Backend().GetUserData(c))),
		slog.Int("chats", len(c.Backend().GetChatData(c))),
		slog.Int("admins", len(c.Admins().List(c))),
	)
	return nil
}

func (a *App) flush(tc tele.Context) error {
	if err := a.Bot.Engine().Backend.Flush(tghelpers.BuildContext(tc)); err != nil {
		return err
	}
	return tghelpers.SendFormatted(tc, "<b>Persistence flushed.</b>", a.Bot.Engine().ParseMode)
}

var galleryImages = []widgets.Image{
	{Cover: "https://picsum.photos/id/10/800/600", Description: "The first slide. Use the arrows to browse."},
	{Cover: "https://picsum.photos/id/20/800/600"},
	{Cover: "https://picsum.photos/id/30/800/600"},
	{Cover: "https://picsum.photos/id/40/800/600", Description: "That's the last one."},
}
