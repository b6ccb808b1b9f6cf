// Package bot assembles screens, handlers, permissions and jobs into a
// runnable Telegram application.
package bot

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/tgscreens/core/config"
	"github.com/m3rciful/tgscreens/core/jobs"
	"github.com/m3rciful/tgscreens/core/logger"
	"github.com/m3rciful/tgscreens/core/persistence"
	"github.com/m3rciful/tgscreens/core/screens"
	"github.com/m3rciful/tgscreens/core/telegram"
	"github.com/m3rciful/tgscreens/core/telegram/callbacks"
	"github.com/m3rciful/tgscreens/core/telegram/commands"
	tghelpers "github.com/m3rciful/tgscreens/core/telegram/helpers"
	"github.com/m3rciful/tgscreens/core/telegram/ui"
)

// ErrUnknownState is returned when a handler moves the conversation into a
// state no screen was registered for.
var ErrUnknownState = errors.New("bot: unknown state")

const startCommand = "/start"

// Options configures New. Config, EntryPoint and Backend are required.
type Options struct {
	Config     *coreconfig.Config
	EntryPoint screens.Screen
	// States maps conversation states to the screens whose handlers are
	// active in them. The entry point always belongs to DefaultState.
	States  map[screens.State][]screens.Screen
	Backend *persistence.Backend

	// Permissions overrides screens.permissions from Config.
	Permissions []screens.Permission
	// HidersChecker overrides screens.hiders_checker from Config.
	HidersChecker *screens.HidersChecker

	Jobs          []JobConfig
	ErrorHandlers []ErrorHandler
	OnFinalRender screens.FinalRenderHook

	// Messenger replaces the Telegram transport, mostly in tests.
	Messenger screens.Messenger
	Fallbacks ui.FallbackProvider
}

type route struct {
	handler *screens.Handler
	fn      screens.HandlerFunc
}

// Bot routes updates to screen handlers by conversation state.
type Bot struct {
	name   string
	cfg    *coreconfig.Config
	engine *screens.Engine
	entry  screens.Screen
	perms  []screens.Permission

	states   map[screens.State]struct{}
	buttons  map[screens.State]map[string]*route
	inputs   map[screens.State][]*route
	commands map[screens.State]map[string]*route
	start    *route

	registry      *telegram.Registry
	queue         *jobs.Queue
	errorHandlers []ErrorHandler
	fallbacks     ui.FallbackProvider
	presetMsgr    bool
}

// New validates opts and registers every screen. name identifies the
// conversation the bot stores states under.
func New(name string, opts Options) (*Bot, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("%w: config is missing", coreconfig.ErrImproperlyConfigured)
	}
	if strings.TrimSpace(opts.Config.Telegram.Token) == "" {
		return nil, coreconfig.ErrTokenIsNotSpecified
	}
	if opts.EntryPoint == nil {
		return nil, fmt.Errorf("%w: entry point is missing", coreconfig.ErrImproperlyConfigured)
	}
	if opts.Backend == nil {
		return nil, fmt.Errorf("bot: %w", persistence.ErrMissingPersistence)
	}

	perms := opts.Permissions
	if perms == nil {
		var err error
		if perms, err = screens.LookupPermissions(opts.Config.Screens.Permissions); err != nil {
			return nil, err
		}
	}
	checker := opts.HidersChecker
	if checker == nil && opts.Config.Screens.HidersChecker != "" {
		var err error
		if checker, err = screens.LookupHidersChecker(opts.Config.Screens.HidersChecker); err != nil {
			return nil, err
		}
	}
	if checker != nil {
		screens.UseHidersChecker(checker)
	}

	engine, err := screens.NewEngine(screens.EngineOptions{
		Name:          name,
		Backend:       opts.Backend,
		Messenger:     opts.Messenger,
		ParseMode:     tele.ParseMode(opts.Config.Screens.ParseMode),
		AdminIDs:      opts.Config.Screens.AdminIDs,
		OnFinalRender: opts.OnFinalRender,
	})
	if err != nil {
		return nil, err
	}

	b := &Bot{
		name:       name,
		cfg:        opts.Config,
		engine:     engine,
		entry:      opts.EntryPoint,
		perms:      slices.Clone(perms),
		states:     map[screens.State]struct{}{screens.DefaultState: {}},
		buttons:    make(map[screens.State]map[string]*route),
		inputs:     make(map[screens.State][]*route),
		commands:   make(map[screens.State]map[string]*route),
		registry:   telegram.NewRegistry(),
		queue:      jobs.New(),
		fallbacks:  opts.Fallbacks,
		presetMsgr: opts.Messenger != nil,
	}
	if b.fallbacks == nil {
		b.fallbacks = defaultFallbacks{}
	}
	b.errorHandlers = append(slices.Clone(opts.ErrorHandlers), b.logError)

	if err := b.registerScreens(opts.States); err != nil {
		return nil, err
	}
	if err := b.registerJobs(opts.Jobs); err != nil {
		return nil, err
	}

	logger.TWire.Info("bot assembled",
		slog.String("event", "bot.assembled"),
		slog.String("bot", name),
		slog.Int("states", len(b.states)),
		slog.Int("screens", len(engine.Registry.Screens())),
		slog.Int("permissions", len(b.perms)),
		slog.Int("jobs", b.queue.Len()),
	)
	return b, nil
}

// Engine exposes the screen runtime.
func (b *Bot) Engine() *screens.Engine { return b.engine }

// Registry exposes the telegram command and callback registry so callers can
// add plain telebot commands next to screen handlers.
func (b *Bot) Registry() *telegram.Registry { return b.registry }

// Name returns the conversation name.
func (b *Bot) Name() string { return b.name }

func (b *Bot) registerScreens(states map[screens.State][]screens.Screen) error {
	for st := range states {
		b.states[st] = struct{}{}
	}

	b.start = b.wrap(screens.NewCommandHandler("start", startCommand, func(c *screens.Context) (screens.State, error) {
		return c.Start(b.entry)
	}))
	if err := b.registry.RegisterCommand(startCommand, commands.Command{
		Handler:     func(tc tele.Context) error { return b.Start(b.contextFrom(tc)) },
		Description: "Start",
	}); err != nil {
		return fmt.Errorf("%w: %w", coreconfig.ErrImproperlyConfigured, err)
	}

	if err := b.addScreen(screens.DefaultState, b.entry); err != nil {
		return err
	}
	for _, st := range slices.Sorted(maps.Keys(states)) {
		for _, s := range states[st] {
			if err := b.addScreen(st, s); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Bot) addScreen(st screens.State, s screens.Screen) error {
	if err := b.engine.Registry.Register(s); err != nil {
		return err
	}
	rs, isRoute := s.(screens.RouteScreen)
	if isRoute {
		for _, r := range rs.Routes() {
			b.states[r.To] = struct{}{}
			for _, from := range r.From {
				b.states[from] = struct{}{}
			}
		}
	}
	alongRoute := map[string]bool{
		screens.TransitionName(s, screens.JumpAlongRoute): true,
		screens.TransitionName(s, screens.MoveAlongRoute): true,
	}
	for _, h := range b.engine.Registry.Handlers(s) {
		if err := b.addHandler(st, h); err != nil {
			return fmt.Errorf("bot: screen %s: %w", s.Name(), err)
		}
		if !isRoute || !alongRoute[h.Name] {
			continue
		}
		for _, origin := range screens.RouteOrigins(rs) {
			if origin == st {
				continue
			}
			if err := b.addHandler(origin, h); err != nil {
				return fmt.Errorf("bot: screen %s: %w", s.Name(), err)
			}
		}
	}
	return nil
}

func (b *Bot) wrap(h *screens.Handler) *route {
	return &route{handler: h, fn: screens.ApplyPermissions(h, b.perms)}
}

func (b *Bot) addHandler(st screens.State, h *screens.Handler) error {
	if h == nil || h.Func == nil {
		return fmt.Errorf("%w: handler without a function", coreconfig.ErrImproperlyConfigured)
	}
	switch h.Kind {
	case screens.ButtonHandler:
		key := callbacks.Checksum(h.Name)
		table := b.buttons[st]
		if table == nil {
			table = make(map[string]*route)
			b.buttons[st] = table
		}
		if prev, ok := table[key]; ok {
			if prev.handler.Name == h.Name {
				return nil
			}
			return fmt.Errorf("%w: handlers %q and %q collide in state %s",
				coreconfig.ErrImproperlyConfigured, prev.handler.Name, h.Name, st)
		}
		table[key] = b.wrap(h)
	case screens.InputHandler:
		if slices.ContainsFunc(b.inputs[st], func(r *route) bool { return r.handler.Name == h.Name }) {
			return nil
		}
		b.inputs[st] = append(b.inputs[st], b.wrap(h))
	case screens.CommandHandler:
		cmd := h.Command
		if !strings.HasPrefix(cmd, "/") {
			cmd = "/" + cmd
		}
		if cmd == startCommand {
			return fmt.Errorf("%w: %s is reserved for the entry point", coreconfig.ErrImproperlyConfigured, cmd)
		}
		table := b.commands[st]
		if table == nil {
			table = make(map[string]*route)
			b.commands[st] = table
		}
		if _, ok := table[cmd]; ok {
			return nil
		}
		table[cmd] = b.wrap(h)
		if _, _, known := b.registry.LookupCommand(cmd); !known {
			desc := h.Description
			err := b.registry.RegisterCommand(cmd, commands.Command{
				Handler:     b.teleCommand(cmd),
				Description: cmp.Or(desc, h.Name),
				Hidden:      desc == "",
			})
			if err != nil {
				return fmt.Errorf("%w: %w", coreconfig.ErrImproperlyConfigured, err)
			}
		}
	default:
		return fmt.Errorf("%w: handler %q has unknown kind %d", coreconfig.ErrImproperlyConfigured, h.Name, h.Kind)
	}
	return nil
}

// HasState reports whether st was declared or referenced by a route.
func (b *Bot) HasState(st screens.State) bool {
	_, ok := b.states[st]
	return ok
}

// Callbacks lists the handler checksums active in st.
func (b *Bot) Callbacks(st screens.State) []string {
	return slices.Sorted(maps.Keys(b.buttons[st]))
}

func (b *Bot) contextFrom(tc tele.Context) *screens.Context {
	return b.engine.FromTele(tghelpers.BuildContext(tc), tc)
}
