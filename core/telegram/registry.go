package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/m3rciful/tgscreens/core/logger"
	"github.com/m3rciful/tgscreens/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

var (
	// ErrInvalidCommand is returned for a command without name, handler or
	// description, or whose name lacks the leading slash.
	ErrInvalidCommand = errors.New("telegram: invalid command")
	// ErrDuplicateCommand is returned when the name is already registered.
	ErrDuplicateCommand = errors.New("telegram: duplicate command")
)

// Registry holds bot commands and the handler for unclaimed callbacks.
type Registry struct {
	commands         map[string]commands.Command
	callbackNotFound tele.HandlerFunc
}

// NewRegistry creates an empty Registry whose unclaimed callbacks get an
// "Unsupported action" notice.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]commands.Command),
		callbackNotFound: func(c tele.Context) error {
			_ = c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
			return nil
		},
	}
}

// RegisterCommand adds cmd under name, e.g. "/start".
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	if !strings.HasPrefix(name, "/") || len(name) == 1 || cmd.Handler == nil || cmd.Description == "" {
		return fmt.Errorf("%w: %q", ErrInvalidCommand, name)
	}
	if _, exists := r.commands[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateCommand, name)
	}
	r.commands[name] = cmd
	return nil
}

// ListCommands returns the commands sorted by name. visibleOnly leaves out
// hidden and admin-only ones, which is what the command menu shows.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	var list []tele.Command
	for _, name := range slices.Sorted(maps.Keys(r.commands)) {
		meta := r.commands[name]
		if visibleOnly && (meta.Hidden || meta.AdminOnly) {
			continue
		}
		list = append(list, tele.Command{Text: name, Description: meta.Description})
	}
	return list
}

// LookupCommand resolves name or one of the aliases to the registered key.
// The leading slash is optional.
func (r *Registry) LookupCommand(name string) (string, commands.Command, bool) {
	bare := strings.TrimPrefix(name, "/")
	if cmd, ok := r.commands["/"+bare]; ok {
		return "/" + bare, cmd, true
	}
	for key, cmd := range r.commands {
		if slices.ContainsFunc(cmd.Aliases, func(a string) bool { return strings.TrimPrefix(a, "/") == bare }) {
			return key, cmd, true
		}
	}
	return "", commands.Command{}, false
}

// Commands returns all registered commands.
func (r *Registry) Commands() map[string]commands.Command {
	return r.commands
}

// SetCallbackNotFound replaces the fallback handler for unknown callbacks.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h != nil {
		r.callbackNotFound = h
	}
}

// CallbackNotFound returns the current fallback callback handler.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	return r.callbackNotFound
}

// InitBotCommands publishes the visible commands as the bot's command menu.
func InitBotCommands(bot *tele.Bot, reg *Registry) {
	if err := bot.SetCommands(reg.ListCommands(true)); err != nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelError, "register.commands.set_failed",
			slog.String("err", err.Error()),
		)
	}
}
