package state

import (
	"context"
	"log/slog"

	"github.com/m3rciful/tgscreens/core/logger"
	"github.com/m3rciful/tgscreens/core/persistence"
)

type persistentManager struct {
	name    string
	backend *persistence.Backend
}

// NewManager returns a Manager storing states in backend's conversations
// under name.
func NewManager(name string, backend *persistence.Backend) Manager {
	return &persistentManager{name: name, backend: backend}
}

func (m *persistentManager) Name() string { return m.name }

// GetState returns the stored state, or DefaultState when the pair has none.
func (m *persistentManager) GetState(ctx context.Context, chatID, userID int64) State {
	st, ok := m.backend.Conversation(ctx, m.name, persistence.ChatUserKey(chatID, userID))
	if !ok || st == "" {
		return DefaultState
	}
	return State(st)
}

// SetState stores st. Pairs back in DefaultState are removed from the store.
func (m *persistentManager) SetState(ctx context.Context, chatID, userID int64, st State) error {
	if st == KeepState {
		return nil
	}
	logger.Debug(ctx, "tg", "fsm.set",
		slog.String("status", "ok"),
		slog.Int64("chat_id", chatID),
		slog.Int64("user_id", userID),
		slog.String("state", string(st)),
	)
	stored := string(st)
	if st == DefaultState {
		stored = ""
	}
	return m.backend.UpdateConversation(ctx, m.name, persistence.ChatUserKey(chatID, userID), stored)
}
