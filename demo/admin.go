package demo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/m3rciful/tgscreens/core/screens"
)

const maintenanceKey = "maintenance"

// AdminPanel lists administrators and toggles maintenance mode.
type AdminPanel struct {
	screens.Base
	app    *App
	toggle *screens.Handler
	add    *screens.Handler
	back   *screens.Handler
}

func newAdminPanel(app *App) *AdminPanel {
	p := &AdminPanel{app: app}
	p.toggle = screens.NewHandler("AdminPanel.toggle", p.toggleMaintenance)
	p.add = screens.NewHandler("AdminPanel.add", func(c *screens.Context) (screens.State, error) {
		return c.Move(p.app.addAdmin)
	})
	p.back = screens.NewHandler("AdminPanel.back", func(c *screens.Context) (screens.State, error) {
		return c.Move(p.app.menu)
	})
	return p
}

func (p *AdminPanel) Name() string { return "AdminPanel" }

func (p *AdminPanel) Handlers() []*screens.Handler {
	return []*screens.Handler{p.toggle, p.add, p.back}
}

func (p *AdminPanel) Describe(c *screens.Context) (string, error) {
	ids := c.Admins().List(c)
	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		lines = append(lines, "• <code>"+strconv.FormatInt(id, 10)+"</code>")
	}
	mode := "off"
	if maintenanceOn(c) {
		mode = "on"
	}
	return fmt.Sprintf("<b>Admin panel</b>\n\nMaintenance: %s\nAdministrators:\n%s", mode, strings.Join(lines, "\n")), nil
}

func (p *AdminPanel) DefaultKeyboard(c *screens.Context) (screens.Keyboard, error) {
	caption := "🔧 Enable maintenance"
	if maintenanceOn(c) {
		caption = "✅ Disable maintenance"
	}
	return screens.Keyboard{
		{screens.MustButton(caption, p.toggle)},
		{screens.MustButton("➕ Add administrator", p.add)},
		{screens.MustButton("ℹ️ About", p.app.about, screens.WithSourceType(screens.MoveAlongRouteSource))},
		{screens.MustButton("⬅️ Main menu", p.back)},
	}, nil
}

// Move renders the panel and enters StateAdmin.
func (p *AdminPanel) Move(c *screens.Context) (screens.State, error) {
	return StateAdmin, c.Render(p, screens.RenderConfig{})
}

// Jump is Move as a new message.
func (p *AdminPanel) Jump(c *screens.Context) (screens.State, error) {
	return StateAdmin, c.Render(p, screens.RenderConfig{AsNewMessage: true})
}

func (p *AdminPanel) toggleMaintenance(c *screens.Context) (screens.State, error) {
	data := c.BotData()
	data[maintenanceKey] = !maintenanceOn(c)
	if err := c.SetBotData(data); err != nil {
		return screens.KeepState, err
	}
	return p.Move(c)
}

// AddAdmin waits for a numeric user id.
type AddAdmin struct {
	screens.Base
	app    *App
	id     *screens.Handler
	other  *screens.Handler
	cancel *screens.Handler
}

func newAddAdmin(app *App) *AddAdmin {
	a := &AddAdmin{
		Base: screens.Base{Description: "Send the numeric id of the new administrator."},
		app:  app,
	}
	a.id = screens.NewInputHandler("AddAdmin.id", a.addID, screens.WithFilter(isUserID))
	a.other = screens.NewInputHandler("AddAdmin.other", func(c *screens.Context) (screens.State, error) {
		return screens.KeepState, c.Notify("That is not a user id. Send digits only.")
	}, screens.WithFilter(func(c *screens.Context) bool { return !isUserID(c) }))
	a.cancel = screens.NewHandler("AddAdmin.cancel", func(c *screens.Context) (screens.State, error) {
		return c.Move(a.app.admin)
	})
	return a
}

func (a *AddAdmin) Name() string { return "AddAdmin" }

func (a *AddAdmin) Handlers() []*screens.Handler {
	return []*screens.Handler{a.id, a.other, a.cancel}
}

func (a *AddAdmin) DefaultKeyboard(*screens.Context) (screens.Keyboard, error) {
	return screens.Keyboard{{screens.MustButton("Cancel", a.cancel)}}, nil
}

// Move renders the prompt and enters StateAddAdmin.
func (a *AddAdmin) Move(c *screens.Context) (screens.State, error) {
	return StateAddAdmin, c.Render(a, screens.RenderConfig{})
}

func (a *AddAdmin) addID(c *screens.Context) (screens.State, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Text()), 10, 64)
	if err != nil {
		return screens.KeepState, err
	}
	if err := c.Admins().Add(c, id); err != nil {
		return screens.KeepState, err
	}
	return a.app.admin.Jump(c)
}

func isUserID(c *screens.Context) bool {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Text()), 10, 64)
	return err == nil && id > 0
}

func maintenanceOn(c *screens.Context) bool {
	on, _ := c.BotData()[maintenanceKey].(bool)
	return on
}

// MaintenanceName selects Maintenance in screens.permissions.
const MaintenanceName = "maintenance"

// Maintenance turns non-administrators away while maintenance mode is on.
type Maintenance struct{}

func (Maintenance) ID() uuid.UUID { return screens.PermissionID(MaintenanceName) }

func (Maintenance) Name() string { return MaintenanceName }

func (Maintenance) HasPermission(c *screens.Context) (bool, error) {
	return !maintenanceOn(c) || c.Admins().Contains(c, c.UserID()), nil
}

func (Maintenance) HandlePermissionDenied(c *screens.Context) (screens.State, error) {
	if c.MessageID() != 0 {
		_, err := c.Move(maintenanceScreen)
		return screens.KeepState, err
	}
	_, err := c.Jump(maintenanceScreen)
	return screens.KeepState, err
}

// MaintenanceScreen is shown to users turned away by Maintenance. Its retry
// button is exempt from the permission so it can check whether maintenance
// is over.
type MaintenanceScreen struct {
	screens.Base
	retry *screens.Handler
}

var maintenanceScreen = newMaintenanceScreen()

func newMaintenanceScreen() *MaintenanceScreen {
	s := &MaintenanceScreen{Base: screens.Base{Description: "🔧 The bot is under maintenance. Please try again later."}}
	s.retry = screens.NewHandler("Maintenance.retry", s.tryAgain,
		screens.IgnorePermissions(Maintenance{}.ID()))
	return s
}

func (s *MaintenanceScreen) Name() string { return "Maintenance" }

func (s *MaintenanceScreen) Handlers() []*screens.Handler { return []*screens.Handler{s.retry} }

func (s *MaintenanceScreen) DefaultKeyboard(*screens.Context) (screens.Keyboard, error) {
	return screens.Keyboard{{screens.MustButton("🔄 Try again", s.retry)}}, nil
}

func (s *MaintenanceScreen) tryAgain(c *screens.Context) (screens.State, error) {
	if maintenanceOn(c) {
		return screens.KeepState, c.Render(s, screens.RenderConfig{
			Description: "🔧 Still under maintenance. Please try again later.",
		})
	}
	menu, err := c.Registry().Screen("MainMenu")
	if err != nil {
		return screens.KeepState, err
	}
	return c.Move(menu)
}
