package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	*MemoryStore
	err error
}

func (s failingStore) Get(context.Context, string) ([]byte, error)          { return nil, s.err }
func (s failingStore) HKeys(context.Context, string) ([]string, error)      { return nil, s.err }
func (s failingStore) HGet(context.Context, string, string) ([]byte, error) { return nil, s.err }

// flakyStore fails the first read of every key.
type flakyStore struct {
	*MemoryStore
	err    error
	failed map[string]bool
}

func newFlakyStore(err error) *flakyStore {
	return &flakyStore{MemoryStore: NewMemoryStore(), err: err, failed: make(map[string]bool)}
}

func (s *flakyStore) fail(key string) bool {
	if s.failed[key] {
		return false
	}
	s.failed[key] = true
	return true
}

func (s *flakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.fail(key) {
		return nil, s.err
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *flakyStore) HKeys(ctx context.Context, key string) ([]string, error) {
	if s.fail(key) {
		return nil, s.err
	}
	return s.MemoryStore.HKeys(ctx, key)
}

func newBackend(t *testing.T, onFlush bool) (*Backend, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	b, err := New(store, Options{OnFlush: onFlush})
	require.NoError(t, err)
	return b, store
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(nil, Options{})
	assert.ErrorIs(t, err, ErrMissingPersistence)
}

func TestUpdateUserDataWriteThrough(t *testing.T) {
	ctx := context.Background()
	b, store := newBackend(t, false)

	require.NoError(t, b.UpdateUserData(ctx, 42, Data{"x": 1}))

	all := b.GetUserData(ctx)
	require.Contains(t, all, int64(42))
	assert.Equal(t, Data{"x": 1}, all[42])

	raw, err := store.HGet(ctx, UserDataKey, "42")
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1}`, string(raw))
}

func TestUpdateUserDataOnFlush(t *testing.T) {
	ctx := context.Background()
	b, store := newBackend(t, true)

	require.NoError(t, b.UpdateUserData(ctx, 42, Data{"x": 1}))
	assert.Equal(t, Data{"x": 1}, b.GetUserData(ctx)[42])

	_, err := store.HGet(ctx, UserDataKey, "42")
	require.ErrorIs(t, err, ErrNotFound)
	fields, err := store.HKeys(ctx, UserDataKey)
	require.NoError(t, err)
	assert.Empty(t, fields)

	require.NoError(t, b.Flush(ctx))

	raw, err := store.HGet(ctx, UserDataKey, "42")
	require.NoError(t, err)
	d, err := decodeData(raw)
	require.NoError(t, err)
	assert.Equal(t, Data{"x": float64(1)}, d)
}

func TestGetReturnsCopies(t *testing.T) {
	ctx := context.Background()
	b, _ := newBackend(t, false)
	require.NoError(t, b.UpdateChatData(ctx, 7, Data{"items": []any{"a"}}))

	d := b.ChatData(ctx, 7)
	d["items"] = append(d["items"].([]any), "b")
	d["extra"] = true

	assert.Equal(t, Data{"items": []any{"a"}}, b.ChatData(ctx, 7))
}

func TestLazyLoadFromStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.HSet(ctx, "ns:"+ChatDataKey, "-100", []byte(`{"title":"group"}`)))
	require.NoError(t, store.Set(ctx, "ns:"+BotDataKey, []byte(`{"admins":[1,2]}`)))

	b, err := New(store, Options{Namespace: "ns:"})
	require.NoError(t, err)

	assert.Equal(t, Data{"title": "group"}, b.ChatData(ctx, -100))
	assert.Equal(t, Data{"admins": []any{float64(1), float64(2)}}, b.GetBotData(ctx))
}

func TestDropUserData(t *testing.T) {
	ctx := context.Background()

	t.Run("write through", func(t *testing.T) {
		b, store := newBackend(t, false)
		require.NoError(t, b.UpdateUserData(ctx, 1, Data{"a": "b"}))
		require.NoError(t, b.DropUserData(ctx, 1))
		assert.NotContains(t, b.GetUserData(ctx), int64(1))
		_, err := store.HGet(ctx, UserDataKey, "1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("on flush", func(t *testing.T) {
		b, store := newBackend(t, true)
		require.NoError(t, store.HSet(ctx, UserDataKey, "1", []byte(`{"a":"b"}`)))
		require.NoError(t, store.HSet(ctx, UserDataKey, "2", []byte(`{"c":"d"}`)))

		require.NoError(t, b.DropUserData(ctx, 1))
		assert.Equal(t, map[int64]Data{2: {"c": "d"}}, b.GetUserData(ctx))

		_, err := store.HGet(ctx, UserDataKey, "1")
		require.NoError(t, err, "store is untouched until flush")

		require.NoError(t, b.Flush(ctx))
		_, err = store.HGet(ctx, UserDataKey, "1")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = store.HGet(ctx, UserDataKey, "2")
		assert.NoError(t, err)
	})
}

func TestReadFailuresDegradeToEmpty(t *testing.T) {
	ctx := context.Background()
	store := failingStore{MemoryStore: NewMemoryStore(), err: errors.New("connection refused")}
	b, err := New(store, Options{})
	require.NoError(t, err)

	assert.Empty(t, b.GetBotData(ctx))
	assert.Empty(t, b.GetUserData(ctx))
	assert.Empty(t, b.ChatData(ctx, 5))
	assert.Empty(t, b.GetConversations(ctx, "main"))
	assert.Nil(t, b.GetCallbackData(ctx))
}

func TestCorruptValuesAreSkipped(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.HSet(ctx, UserDataKey, "1", []byte(`not json`)))
	require.NoError(t, store.HSet(ctx, UserDataKey, "2", []byte(`{"ok":true}`)))
	require.NoError(t, store.HSet(ctx, UserDataKey, "abc", []byte(`{}`)))

	b, err := New(store, Options{})
	require.NoError(t, err)
	assert.Equal(t, map[int64]Data{2: {"ok": true}}, b.GetUserData(ctx))
}

func TestConversationsPersist(t *testing.T) {
	ctx := context.Background()
	b, store := newBackend(t, false)
	key := ChatUserKey(-100, 42)

	require.NoError(t, b.UpdateConversation(ctx, "main", key, "2"))
	st, ok := b.Conversation(ctx, "main", key)
	require.True(t, ok)
	assert.Equal(t, "2", st)

	raw, err := store.Get(ctx, ConversationsKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"main":{"[-100, 42]":"2"}}`, string(raw))

	fresh, err := New(store, Options{})
	require.NoError(t, err)
	assert.Equal(t, map[ConversationKey]string{key: "2"}, fresh.GetConversations(ctx, "main"))

	require.NoError(t, b.UpdateConversation(ctx, "main", key, ""))
	_, ok = b.Conversation(ctx, "main", key)
	assert.False(t, ok)
}

func TestCallbackData(t *testing.T) {
	ctx := context.Background()
	b, store := newBackend(t, false)

	require.NoError(t, b.UpdateCallbackData(ctx, json.RawMessage(`[["id",1]]`)))
	assert.JSONEq(t, `[["id",1]]`, string(b.GetCallbackData(ctx)))

	raw, err := store.Get(ctx, CallbackDataKey)
	require.NoError(t, err)
	assert.JSONEq(t, `[["id",1]]`, string(raw))
}

type recordingStore struct {
	*MemoryStore
	hsets int
}

func (s *recordingStore) HSet(ctx context.Context, key, field string, value []byte) error {
	s.hsets++
	return s.MemoryStore.HSet(ctx, key, field, value)
}

func TestUpdateSkipsUnchanged(t *testing.T) {
	ctx := context.Background()
	store := &recordingStore{MemoryStore: NewMemoryStore()}
	b, err := New(store, Options{})
	require.NoError(t, err)

	require.NoError(t, b.UpdateUserData(ctx, 3, Data{"n": "v"}))
	require.NoError(t, b.UpdateUserData(ctx, 3, Data{"n": "v"}))
	assert.Equal(t, 1, store.hsets)
}

func TestCloseFlushesOnFlushBackend(t *testing.T) {
	ctx := context.Background()
	b, store := newBackend(t, true)
	require.NoError(t, b.UpdateBotData(ctx, Data{"admins": []any{int64(1)}}))
	require.NoError(t, b.Close(ctx))

	raw, err := store.Get(ctx, BotDataKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"admins":[1]}`, string(raw))
}

func TestFailedReadDoesNotWipeStoreOnFlush(t *testing.T) {
	ctx := context.Background()
	store := newFlakyStore(errors.New("i/o timeout"))
	require.NoError(t, store.HSet(ctx, UserDataKey, "1", []byte(`{"name":"a"}`)))
	require.NoError(t, store.HSet(ctx, UserDataKey, "2", []byte(`{"name":"b"}`)))
	require.NoError(t, store.Set(ctx, BotDataKey, []byte(`{"admin_group":[5]}`)))

	b, err := New(store, Options{OnFlush: true})
	require.NoError(t, err)

	assert.Empty(t, b.GetUserData(ctx), "first read fails")
	assert.Empty(t, b.GetBotData(ctx), "first read fails")

	require.NoError(t, b.UpdateUserData(ctx, 3, Data{"name": "c"}))
	require.NoError(t, b.Flush(ctx))

	fields, err := store.MemoryStore.HKeys(ctx, UserDataKey)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2", "3"}, fields)
	raw, err := store.MemoryStore.Get(ctx, BotDataKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"admin_group":[5]}`, string(raw))

	assert.Len(t, b.GetUserData(ctx), 3)
	assert.Equal(t, Data{"admin_group": []any{float64(5)}}, b.GetBotData(ctx))
}

func TestUpdateRefusedWhileStoreUnreadable(t *testing.T) {
	ctx := context.Background()
	store := failingStore{MemoryStore: NewMemoryStore(), err: errors.New("connection refused")}
	require.NoError(t, store.HSet(ctx, UserDataKey, "1", []byte(`{"name":"a"}`)))
	require.NoError(t, store.Set(ctx, BotDataKey, []byte(`{"admin_group":[5]}`)))

	b, err := New(store, Options{})
	require.NoError(t, err)

	assert.ErrorIs(t, b.UpdateUserData(ctx, 1, Data{}), ErrUnavailable)
	assert.ErrorIs(t, b.UpdateBotData(ctx, Data{"maintenance": true}), ErrUnavailable)
	assert.ErrorIs(t, b.UpdateConversation(ctx, "main", ChatUserKey(1, 1), "x"), ErrUnavailable)

	raw, err := store.MemoryStore.HGet(ctx, UserDataKey, "1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"a"}`, string(raw))
	raw, err = store.MemoryStore.Get(ctx, BotDataKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"admin_group":[5]}`, string(raw))
}

func TestFlushLeavesUntouchedRecords(t *testing.T) {
	ctx := context.Background()
	b, store := newBackend(t, true)
	require.NoError(t, store.HSet(ctx, ChatDataKey, "1", []byte(`{"a":1}`)))
	assert.Len(t, b.GetChatData(ctx), 1)

	// Written by another process after the cache loaded.
	require.NoError(t, store.HSet(ctx, ChatDataKey, "2", []byte(`{"b":2}`)))

	require.NoError(t, b.UpdateChatData(ctx, 3, Data{"c": 3}))
	require.NoError(t, b.Flush(ctx))

	fields, err := store.HKeys(ctx, ChatDataKey)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2", "3"}, fields)
}

func TestDropBeforeLoadIsKept(t *testing.T) {
	ctx := context.Background()
	b, store := newBackend(t, true)
	require.NoError(t, store.HSet(ctx, UserDataKey, "1", []byte(`{"a":1}`)))
	require.NoError(t, store.HSet(ctx, UserDataKey, "2", []byte(`{"b":2}`)))

	require.NoError(t, b.DropUserData(ctx, 1))
	assert.Equal(t, map[int64]Data{2: {"b": float64(2)}}, b.GetUserData(ctx))

	require.NoError(t, b.Flush(ctx))
	fields, err := store.HKeys(ctx, UserDataKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, fields)
}
