package state

import "context"

// State identifies a conversation step. Screens are registered per state.
type State string

const (
	// DefaultState is the initial state and the one every plain transition returns.
	DefaultState State = "0"
	// KeepState tells the dispatcher to leave the current state unchanged.
	KeepState State = ""
)

func (s State) String() string { return string(s) }

// Manager reads and writes conversation states.
type Manager interface {
	// Name is the conversation name states are stored under.
	Name() string
	GetState(ctx context.Context, chatID, userID int64) State
	// SetState stores st. KeepState is a no-op and DefaultState ends the
	// conversation.
	SetState(ctx context.Context, chatID, userID int64, st State) error
}
