package screens

import (
	"context"
	"slices"
	"sync"

	"github.com/m3rciful/tgscreens/core/persistence"
)

const adminGroupKey = "admin_group"

// AdminGroup is the set of administrators. Ids from configuration are fixed;
// ids added at runtime are kept in bot data so every handler sees the same
// set and it survives restarts.
type AdminGroup struct {
	backend *persistence.Backend
	static  []int64
	mu      sync.Mutex
}

func newAdminGroup(backend *persistence.Backend, static []int64) *AdminGroup {
	return &AdminGroup{backend: backend, static: slices.Clone(static)}
}

// Contains reports whether id is an administrator.
func (g *AdminGroup) Contains(ctx context.Context, id int64) bool {
	if id == 0 {
		return false
	}
	return slices.Contains(g.List(ctx), id)
}

// List returns configured ids followed by runtime ids.
func (g *AdminGroup) List(ctx context.Context) []int64 {
	out := slices.Clone(g.static)
	for _, id := range g.stored(g.backend.GetBotData(ctx)) {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// Add grants administrator rights to id.
func (g *AdminGroup) Add(ctx context.Context, id int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	data := g.backend.GetBotData(ctx)
	ids := g.stored(data)
	if slices.Contains(ids, id) {
		return nil
	}
	data[adminGroupKey] = toAny(append(ids, id))
	return g.backend.UpdateBotData(ctx, data)
}

// Remove revokes runtime rights of id. Configured ids cannot be removed.
func (g *AdminGroup) Remove(ctx context.Context, id int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	data := g.backend.GetBotData(ctx)
	ids := g.stored(data)
	i := slices.Index(ids, id)
	if i < 0 {
		return nil
	}
	data[adminGroupKey] = toAny(slices.Delete(ids, i, i+1))
	return g.backend.UpdateBotData(ctx, data)
}

func (g *AdminGroup) stored(data persistence.Data) []int64 {
	raw, _ := data[adminGroupKey].([]any)
	out := make([]int64, 0, len(raw))
	for _, v := range raw {
		if id := int64(asFloat(v)); id != 0 {
			out = append(out, id)
		}
	}
	return out
}

func toAny(ids []int64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
