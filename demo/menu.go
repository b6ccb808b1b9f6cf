package demo

import (
	"fmt"
	"strconv"
	"time"

	"github.com/m3rciful/tgscreens/core/jobs"
	"github.com/m3rciful/tgscreens/core/screens"
	"github.com/m3rciful/tgscreens/core/telegram/format"
)

const menuTemplate = `Hello, <b>{{ .Name | escape }}</b>!

This bot shows what screens can do: galleries, reminders and an admin panel.
{{- if .Admin }}

You are an administrator.{{ end }}`

// MainMenu is the entry point.
type MainMenu struct {
	screens.Base
	app   *App
	admin *screens.Handler
	help  *screens.Handler
}

func newMainMenu(app *App) *MainMenu {
	m := &MainMenu{app: app}
	m.admin = screens.NewHandler("MainMenu.admin", m.openAdmin)
	m.help = screens.NewCommandHandler("MainMenu.help", "help", m.showHelp,
		screens.WithDescription("What this bot can do"))
	return m
}

func (m *MainMenu) Name() string { return "MainMenu" }

func (m *MainMenu) Handlers() []*screens.Handler {
	return []*screens.Handler{m.admin, m.help}
}

func (m *MainMenu) Describe(c *screens.Context) (string, error) {
	name := "there"
	if tc := c.Tele(); tc != nil && tc.Sender() != nil && tc.Sender().FirstName != "" {
		name = tc.Sender().FirstName
	}
	return format.RenderTemplate(menuTemplate, map[string]any{
		"Name":  name,
		"Admin": c.Admins().Contains(c, c.UserID()),
	}, c.Engine().ParseMode)
}

func (m *MainMenu) DefaultKeyboard(*screens.Context) (screens.Keyboard, error) {
	return screens.Keyboard{
		{
			screens.MustButton("🖼 Gallery", m.app.gallery, screens.WithSourceType(screens.MoveSource)),
			screens.MustButton("⏰ Reminders", m.app.reminders, screens.WithSourceType(screens.MoveSource)),
		},
		{screens.MustButton("ℹ️ About", m.app.about, screens.WithSourceType(screens.MoveAlongRouteSource))},
		{screens.MustButton("🛠 Admin panel", m.admin, screens.WithHiders(screens.NewHider(screens.OnlyForAdmin)))},
		{screens.MustButton("📄 Source code", sourceURL, screens.WithSourceType(screens.URLSource))},
	}, nil
}

func (m *MainMenu) openAdmin(c *screens.Context) (screens.State, error) {
	if !c.Admins().Contains(c, c.UserID()) {
		return screens.KeepState, c.Notify("Administrators only.")
	}
	return c.Move(m.app.admin)
}

func (m *MainMenu) showHelp(c *screens.Context) (screens.State, error) {
	return screens.KeepState, c.Notify("Send /start to open the main menu.")
}

// About is reachable from the main menu and from the admin panel and
// returns to wherever it was opened from.
type About struct {
	screens.Base
	app  *App
	back *screens.Handler
}

func newAbout(app *App) *About {
	a := &About{
		Base: screens.Base{Description: "<b>tgscreens</b> builds Telegram UIs out of screens."},
		app:  app,
	}
	a.back = screens.NewHandler("About.back", a.goBack)
	return a
}

func (a *About) Name() string { return "About" }

func (a *About) Routes() []screens.Route {
	return []screens.Route{
		screens.NewRoute(screens.DefaultState, screens.DefaultState),
		screens.NewRoute(StateAdmin, StateAdmin),
	}
}

func (a *About) Handlers() []*screens.Handler { return []*screens.Handler{a.back} }

func (a *About) DefaultKeyboard(*screens.Context) (screens.Keyboard, error) {
	return screens.Keyboard{{screens.MustButton("⬅️ Back", a.back)}}, nil
}

func (a *About) goBack(c *screens.Context) (screens.State, error) {
	if c.State() == StateAdmin {
		return c.Move(a.app.admin)
	}
	return c.Move(a.app.menu)
}

// Reminders schedules a one-off notification. Each delay button carries its
// delay in seconds as payload.
type Reminders struct {
	screens.Base
	app      *App
	schedule *screens.Handler
}

var reminderDelays = []struct {
	caption string
	seconds int
}{
	{"In 10 seconds", 10},
	{"In 1 minute", 60},
	{"In 1 hour", 3600},
}

func newReminders(app *App) *Reminders {
	r := &Reminders{
		Base: screens.Base{Description: "When should I remind you?"},
		app:  app,
	}
	r.schedule = screens.NewHandler("Reminders.schedule", r.scheduleReminder)
	return r
}

func (r *Reminders) Name() string { return "Reminders" }

func (r *Reminders) Handlers() []*screens.Handler { return []*screens.Handler{r.schedule} }

func (r *Reminders) DefaultKeyboard(*screens.Context) (screens.Keyboard, error) {
	kb := make(screens.Keyboard, 0, len(reminderDelays))
	for _, d := range reminderDelays {
		kb = append(kb, []screens.Button{
			screens.MustButton(d.caption, r.schedule, screens.WithPayload(strconv.Itoa(d.seconds))),
		})
	}
	return kb, nil
}

func (r *Reminders) ExtraKeyboard(c *screens.Context) (screens.Keyboard, error) {
	return r.app.backToMenu(c)
}

func (r *Reminders) scheduleReminder(c *screens.Context) (screens.State, error) {
	payload, err := c.Payload()
	if err != nil {
		return screens.KeepState, err
	}
	seconds, err := strconv.Atoi(payload)
	if err != nil {
		return screens.KeepState, fmt.Errorf("demo: reminder delay %q: %w", payload, err)
	}
	delay := time.Duration(seconds) * time.Second
	err = r.app.Bot.RunOnce(delay, c.ChatID(), "reminder", func(jc *screens.Context, job jobs.Job) error {
		return jc.Send(r.app.notice, job.ChatID, screens.RenderConfig{})
	})
	if err != nil {
		return screens.KeepState, err
	}
	return screens.KeepState, c.Render(r, screens.RenderConfig{
		Description: fmt.Sprintf("Done! I will remind you in %s.", delay),
	})
}

// Notification is what a reminder delivers.
type Notification struct {
	screens.Base
	app *App
}

func newNotification(app *App) *Notification {
	return &Notification{Base: screens.Base{Description: "⏰ You asked me to remind you."}, app: app}
}

func (n *Notification) Name() string { return "Notification" }

func (n *Notification) DefaultKeyboard(*screens.Context) (screens.Keyboard, error) {
	return screens.Keyboard{
		{screens.MustButton("Open menu", n.app.menu, screens.WithSourceType(screens.JumpSource))},
	}, nil
}
