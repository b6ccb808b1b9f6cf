package screens

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/m3rciful/tgscreens/core/logger"
	"github.com/m3rciful/tgscreens/core/metrics"
)

var permissionNamespace = uuid.MustParse("6f1d1c3e-2a4b-5c6d-8e9f-0a1b2c3d4e5f")

// PermissionID derives a stable identity from a permission name.
func PermissionID(name string) uuid.UUID {
	return uuid.NewSHA1(permissionNamespace, []byte(name))
}

// Permission guards handlers. HasPermission returning false short-circuits
// the chain into HandlePermissionDenied.
type Permission interface {
	ID() uuid.UUID
	Name() string
	HasPermission(c *Context) (bool, error)
	HandlePermissionDenied(c *Context) (State, error)
}

// ApplyPermissions wraps h.Func so the first permission in perms runs
// outermost. Permissions h is exempt from are skipped when wrapping.
func ApplyPermissions(h *Handler, perms []Permission) HandlerFunc {
	fn := h.Func
	for _, p := range slices.Backward(perms) {
		if h.Exempt(p.ID()) {
			continue
		}
		fn = guard(p, h.Name, fn)
	}
	return fn
}

func guard(p Permission, handler string, next HandlerFunc) HandlerFunc {
	return func(c *Context) (State, error) {
		ok, err := p.HasPermission(c)
		if err != nil {
			return KeepState, fmt.Errorf("screens: permission %s: %w", p.Name(), err)
		}
		if ok {
			return next(c)
		}
		metrics.ObservePermissionDenied(p.Name())
		logger.Info(c, "permissions", "permission.denied",
			slog.String("permission", p.Name()),
			slog.String("handler", handler),
			slog.Int64("user_id", c.UserID()),
		)
		return p.HandlePermissionDenied(c)
	}
}

var (
	namedPermissionsMu sync.RWMutex
	namedPermissions   = map[string]Permission{}
)

// RegisterPermission makes p selectable by name from configuration.
func RegisterPermission(p Permission) {
	namedPermissionsMu.Lock()
	defer namedPermissionsMu.Unlock()
	namedPermissions[p.Name()] = p
}

// LookupPermissions resolves names into a chain, preserving order.
func LookupPermissions(names []string) ([]Permission, error) {
	namedPermissionsMu.RLock()
	defer namedPermissionsMu.RUnlock()
	out := make([]Permission, 0, len(names))
	for _, name := range names {
		p, ok := namedPermissions[name]
		if !ok {
			return nil, fmt.Errorf("%w: permission %q is not registered", ErrImproperlyConfigured, name)
		}
		out = append(out, p)
	}
	return out, nil
}

// AdminPermissionName identifies AdminPermission in configuration.
const AdminPermissionName = "admin"

// AdminPermission admits members of the admin group only. Denied users get
// DeniedText, when set, and stay in their current state.
type AdminPermission struct {
	DeniedText string
}

var _ Permission = AdminPermission{}

func (AdminPermission) ID() uuid.UUID { return PermissionID(AdminPermissionName) }

func (AdminPermission) Name() string { return AdminPermissionName }

func (AdminPermission) HasPermission(c *Context) (bool, error) {
	return c.Admins().Contains(c, c.UserID()), nil
}

func (p AdminPermission) HandlePermissionDenied(c *Context) (State, error) {
	if p.DeniedText == "" {
		return KeepState, nil
	}
	return KeepState, c.Notify(p.DeniedText)
}

// HasAdmin is a CheckFunc for the OnlyForAdmin tag backed by the admin group.
func HasAdmin(c *Context) (bool, error) {
	return c.Admins().Contains(c, c.UserID()), nil
}
