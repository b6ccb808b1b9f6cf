package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/m3rciful/tgscreens/core/logger"
	"github.com/m3rciful/tgscreens/core/metrics"
)

// Store keys of the five namespaces.
const (
	BotDataKey       = "bot_data"
	ChatDataKey      = "chat_data"
	UserDataKey      = "user_data"
	CallbackDataKey  = "callback_data"
	ConversationsKey = "conversations"
)

// Options controls the write policy of a Backend.
type Options struct {
	// OnFlush keeps updates in memory until Flush is called.
	OnFlush bool
	// Namespace prefixes every store key, letting several bots share one store.
	Namespace string
}

// Backend caches the persisted namespaces. Each namespace is loaded from the
// store on first access; reads never fail and fall back to empty values. A
// namespace whose read failed stays unloaded and is read again on next access.
// Writes that replace a record are refused until its namespace has loaded, so
// a store outage never turns into an overwrite with empty data.
type Backend struct {
	store Store
	opts  Options

	// writeMu orders store writes; mu guards the caches.
	writeMu sync.Mutex
	mu      sync.Mutex

	botData   Data
	botLoaded bool
	botDirty  bool

	chats *hashTable
	users *hashTable

	callbackData json.RawMessage
	cbLoaded     bool
	cbDirty      bool

	conversations Conversations
	convLoaded    bool
	convDirty     bool
}

// hashTable caches one per-id namespace. In on-flush mode it remembers which
// ids were updated or dropped so Flush writes only those.
type hashTable struct {
	name    string
	rows    map[int64]Data
	loaded  bool
	dirty   map[int64]struct{}
	dropped map[int64]struct{}
}

func newHashTable(name string) *hashTable {
	return &hashTable{
		name:    name,
		rows:    make(map[int64]Data),
		dirty:   make(map[int64]struct{}),
		dropped: make(map[int64]struct{}),
	}
}

// New wraps store with the given write policy.
func New(store Store, opts Options) (*Backend, error) {
	if store == nil {
		return nil, ErrMissingPersistence
	}
	return &Backend{
		store: store,
		opts:  opts,
		chats: newHashTable(ChatDataKey),
		users: newHashTable(UserDataKey),
	}, nil
}

// OnFlush reports whether updates are deferred until Flush.
func (b *Backend) OnFlush() bool { return b.opts.OnFlush }

// Store returns the underlying store.
func (b *Backend) Store() Store { return b.store }

func (b *Backend) key(name string) string {
	return b.opts.Namespace + name
}

// GetBotData returns a copy of the bot-wide data blob.
func (b *Backend) GetBotData(ctx context.Context) Data {
	b.mu.Lock()
	defer b.mu.Unlock()
	_ = b.loadBotData(ctx)
	return orEmpty(b.botData)
}

// UpdateBotData replaces the bot-wide data blob.
func (b *Backend) UpdateBotData(ctx context.Context, data Data) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	b.mu.Lock()
	if err := b.loadBotData(ctx); err != nil {
		b.mu.Unlock()
		return unavailable(BotDataKey, err)
	}
	if b.botData.Equal(data) {
		b.mu.Unlock()
		return nil
	}
	b.botData = data.Clone()
	b.botDirty = b.opts.OnFlush
	b.mu.Unlock()

	if b.opts.OnFlush {
		return nil
	}
	return b.setJSON(ctx, BotDataKey, data)
}

// GetChatData returns a copy of all chat data keyed by chat id.
func (b *Backend) GetChatData(ctx context.Context) map[int64]Data {
	return b.getTable(ctx, b.chats)
}

// ChatData returns a copy of one chat's data, empty when absent.
func (b *Backend) ChatData(ctx context.Context, chatID int64) Data {
	return b.getRow(ctx, b.chats, chatID)
}

// UpdateChatData replaces one chat's data.
func (b *Backend) UpdateChatData(ctx context.Context, chatID int64, data Data) error {
	return b.updateHash(ctx, b.chats, chatID, data)
}

// DropChatData removes one chat's data.
func (b *Backend) DropChatData(ctx context.Context, chatID int64) error {
	return b.dropHash(ctx, b.chats, chatID)
}

// GetUserData returns a copy of all user data keyed by user id.
func (b *Backend) GetUserData(ctx context.Context) map[int64]Data {
	return b.getTable(ctx, b.users)
}

// UserData returns a copy of one user's data, empty when absent.
func (b *Backend) UserData(ctx context.Context, userID int64) Data {
	return b.getRow(ctx, b.users, userID)
}

// UpdateUserData replaces one user's data.
func (b *Backend) UpdateUserData(ctx context.Context, userID int64, data Data) error {
	return b.updateHash(ctx, b.users, userID, data)
}

// DropUserData removes one user's data.
func (b *Backend) DropUserData(ctx context.Context, userID int64) error {
	return b.dropHash(ctx, b.users, userID)
}

// GetCallbackData returns the raw callback data document, nil when unset.
func (b *Backend) GetCallbackData(ctx context.Context) json.RawMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	_ = b.loadCallbackData(ctx)
	return json.RawMessage(clone(b.callbackData))
}

// UpdateCallbackData replaces the callback data document.
func (b *Backend) UpdateCallbackData(ctx context.Context, raw json.RawMessage) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	b.mu.Lock()
	if err := b.loadCallbackData(ctx); err != nil {
		b.mu.Unlock()
		return unavailable(CallbackDataKey, err)
	}
	if string(b.callbackData) == string(raw) {
		b.mu.Unlock()
		return nil
	}
	b.callbackData = json.RawMessage(clone(raw))
	b.cbDirty = b.opts.OnFlush
	b.mu.Unlock()

	if b.opts.OnFlush {
		return nil
	}
	return b.set(ctx, CallbackDataKey, raw)
}

// GetConversations returns a copy of the states stored for the named conversation.
func (b *Backend) GetConversations(ctx context.Context, name string) map[ConversationKey]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	_ = b.loadConversations(ctx)
	return cloneStates(b.conversations[name])
}

// Conversation returns the state of one conversation and whether it exists.
func (b *Backend) Conversation(ctx context.Context, name string, key ConversationKey) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_ = b.loadConversations(ctx)
	st, ok := b.conversations[name][key]
	return st, ok
}

// UpdateConversation stores the state of one conversation. An empty state ends it.
func (b *Backend) UpdateConversation(ctx context.Context, name string, key ConversationKey, state string) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	b.mu.Lock()
	if err := b.loadConversations(ctx); err != nil {
		b.mu.Unlock()
		return unavailable(ConversationsKey, err)
	}
	current, exists := b.conversations[name][key]
	if (state == "" && !exists) || (exists && current == state) {
		b.mu.Unlock()
		return nil
	}
	states, ok := b.conversations[name]
	if !ok {
		states = make(map[ConversationKey]string)
		b.conversations[name] = states
	}
	if state == "" {
		delete(states, key)
	} else {
		states[key] = state
	}
	b.convDirty = b.opts.OnFlush
	snapshot := b.conversations.clone()
	b.mu.Unlock()

	if b.opts.OnFlush {
		return nil
	}
	raw, err := EncodeConversations(snapshot)
	if err != nil {
		return err
	}
	return b.set(ctx, ConversationsKey, raw)
}

// hashChanges is what Flush writes for one hash namespace.
type hashChanges struct {
	table *hashTable
	set   map[int64]Data
	del   []int64
}

func (t *hashTable) pending() hashChanges {
	c := hashChanges{table: t, set: make(map[int64]Data, len(t.dirty))}
	for id := range t.dirty {
		c.set[id] = t.rows[id].Clone()
	}
	for id := range t.dropped {
		c.del = append(c.del, id)
	}
	return c
}

func (c hashChanges) empty() bool { return len(c.set) == 0 && len(c.del) == 0 }

// Flush writes what changed since the last flush: blobs that were updated,
// hash records that were updated and hash records that were dropped. Records
// nobody touched are left alone in the store.
func (b *Backend) Flush(ctx context.Context) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	b.mu.Lock()
	var (
		botDirty  = b.botDirty
		bot       = b.botData.Clone()
		cbDirty   = b.cbDirty
		cb        = json.RawMessage(clone(b.callbackData))
		convDirty = b.convDirty
		convs     = b.conversations.clone()
		chats     = b.chats.pending()
		users     = b.users.pending()
	)
	b.mu.Unlock()

	var errs []error
	if botDirty {
		err := b.setJSON(ctx, BotDataKey, bot)
		if err == nil {
			b.mu.Lock()
			b.botDirty = false
			b.mu.Unlock()
		}
		errs = append(errs, err)
	}
	if cbDirty {
		err := b.set(ctx, CallbackDataKey, cb)
		if err == nil {
			b.mu.Lock()
			b.cbDirty = false
			b.mu.Unlock()
		}
		errs = append(errs, err)
	}
	for _, changes := range []hashChanges{chats, users} {
		if changes.empty() {
			continue
		}
		errs = append(errs, b.flushHash(ctx, changes))
	}
	if convDirty {
		raw, err := EncodeConversations(convs)
		if err == nil {
			err = b.set(ctx, ConversationsKey, raw)
		}
		if err == nil {
			b.mu.Lock()
			b.convDirty = false
			b.mu.Unlock()
		}
		errs = append(errs, err)
	}
	err := errors.Join(errs...)
	metrics.ObserveFlush(err)
	if err != nil {
		logger.Persist.LogAttrs(ctx, slog.LevelError, "flush",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return err
	}
	logger.Persist.LogAttrs(ctx, slog.LevelDebug, "flush",
		slog.String("status", "ok"),
		slog.Int("chats", len(chats.set)+len(chats.del)),
		slog.Int("users", len(users.set)+len(users.del)),
	)
	return nil
}

// Close flushes pending data in on-flush mode and closes the store.
func (b *Backend) Close(ctx context.Context) error {
	var errs []error
	if b.opts.OnFlush {
		errs = append(errs, b.Flush(ctx))
	}
	errs = append(errs, b.store.Close())
	return errors.Join(errs...)
}

func (b *Backend) flushHash(ctx context.Context, c hashChanges) error {
	set := make(map[string][]byte, len(c.set))
	for id, d := range c.set {
		raw, err := encodeValue(d)
		if err != nil {
			return err
		}
		set[strconv.FormatInt(id, 10)] = raw
	}
	del := make([]string, 0, len(c.del))
	for _, id := range c.del {
		del = append(del, strconv.FormatInt(id, 10))
	}
	if err := b.store.HUpdate(ctx, b.key(c.table.name), set, del); err != nil {
		return b.writeFailed(ctx, "hupdate", c.table.name, err)
	}

	// Writers hold writeMu, so nothing was marked since the snapshot.
	b.mu.Lock()
	clear(c.table.dirty)
	clear(c.table.dropped)
	b.mu.Unlock()
	return nil
}

func (b *Backend) loadBotData(ctx context.Context) error {
	if b.botLoaded {
		return nil
	}
	raw, found, err := b.get(ctx, BotDataKey)
	if err != nil {
		return err
	}
	b.botLoaded = true
	b.botData = Data{}
	if !found {
		return nil
	}
	d, err := decodeData(raw)
	if err != nil {
		b.readFailed(ctx, "decode", BotDataKey, err)
		return nil
	}
	b.botData = d
	return nil
}

func (b *Backend) loadCallbackData(ctx context.Context) error {
	if b.cbLoaded {
		return nil
	}
	raw, found, err := b.get(ctx, CallbackDataKey)
	if err != nil {
		return err
	}
	b.cbLoaded = true
	if !found {
		return nil
	}
	if !json.Valid(raw) {
		b.readFailed(ctx, "decode", CallbackDataKey, errors.New("invalid json"))
		return nil
	}
	b.callbackData = raw
	return nil
}

func (b *Backend) loadConversations(ctx context.Context) error {
	if b.convLoaded {
		return nil
	}
	raw, found, err := b.get(ctx, ConversationsKey)
	if err != nil {
		return err
	}
	b.convLoaded = true
	b.conversations = Conversations{}
	if !found {
		return nil
	}
	convs, err := DecodeConversations(raw)
	if err != nil {
		b.readFailed(ctx, "decode", ConversationsKey, err)
	}
	if convs != nil {
		b.conversations = convs
	}
	return nil
}

// loadHash reads a whole hash field by field. Corrupt records are skipped;
// a failed store call leaves the table unloaded.
func (b *Backend) loadHash(ctx context.Context, t *hashTable) error {
	if t.loaded {
		return nil
	}
	fields, err := b.store.HKeys(ctx, b.key(t.name))
	if err != nil {
		b.readFailed(ctx, "hkeys", t.name, err)
		return err
	}
	rows := make(map[int64]Data, len(fields))
	for _, field := range fields {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			b.readFailed(ctx, "decode", t.name, fmt.Errorf("field %q: %w", field, err))
			continue
		}
		raw, err := b.store.HGet(ctx, b.key(t.name), field)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			b.readFailed(ctx, "hget", t.name, err)
			return err
		}
		d, err := decodeData(raw)
		if err != nil {
			b.readFailed(ctx, "decode", t.name, err)
			continue
		}
		rows[id] = d
	}
	for id := range t.dropped {
		delete(rows, id)
	}
	t.rows = rows
	t.loaded = true
	return nil
}

func (b *Backend) getTable(ctx context.Context, t *hashTable) map[int64]Data {
	b.mu.Lock()
	defer b.mu.Unlock()
	_ = b.loadHash(ctx, t)
	return cloneTable(t.rows)
}

func (b *Backend) getRow(ctx context.Context, t *hashTable, id int64) Data {
	b.mu.Lock()
	defer b.mu.Unlock()
	_ = b.loadHash(ctx, t)
	return orEmpty(t.rows[id])
}

func (b *Backend) updateHash(ctx context.Context, t *hashTable, id int64, data Data) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	b.mu.Lock()
	if err := b.loadHash(ctx, t); err != nil {
		b.mu.Unlock()
		return unavailable(t.name, err)
	}
	if current, ok := t.rows[id]; ok && current.Equal(data) {
		b.mu.Unlock()
		return nil
	}
	t.rows[id] = data.Clone()
	if b.opts.OnFlush {
		t.dirty[id] = struct{}{}
		delete(t.dropped, id)
	}
	b.mu.Unlock()

	if b.opts.OnFlush {
		return nil
	}
	raw, err := encodeValue(data)
	if err != nil {
		return err
	}
	if err := b.store.HSet(ctx, b.key(t.name), strconv.FormatInt(id, 10), raw); err != nil {
		return b.writeFailed(ctx, "hset", t.name, err)
	}
	return nil
}

// dropHash removes one record. It does not need the namespace loaded: the
// id is remembered and filtered out of a later load.
func (b *Backend) dropHash(ctx context.Context, t *hashTable, id int64) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	b.mu.Lock()
	delete(t.rows, id)
	if b.opts.OnFlush {
		delete(t.dirty, id)
		t.dropped[id] = struct{}{}
	}
	b.mu.Unlock()

	if b.opts.OnFlush {
		return nil
	}
	if err := b.store.HDel(ctx, b.key(t.name), strconv.FormatInt(id, 10)); err != nil {
		return b.writeFailed(ctx, "hdel", t.name, err)
	}
	return nil
}

// get reads one blob. A missing key is not an error.
func (b *Backend) get(ctx context.Context, name string) ([]byte, bool, error) {
	raw, err := b.store.Get(ctx, b.key(name))
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, false, nil
	case err != nil:
		b.readFailed(ctx, "get", name, err)
		return nil, false, err
	}
	return raw, true, nil
}

func unavailable(name string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, name, err)
}

func (b *Backend) setJSON(ctx context.Context, name string, v any) error {
	raw, err := encodeValue(v)
	if err != nil {
		return err
	}
	return b.set(ctx, name, raw)
}

func (b *Backend) set(ctx context.Context, name string, raw []byte) error {
	if err := b.store.Set(ctx, b.key(name), raw); err != nil {
		return b.writeFailed(ctx, "set", name, err)
	}
	return nil
}

func (b *Backend) readFailed(ctx context.Context, op, name string, err error) {
	metrics.ObserveStoreError(op)
	logger.Persist.LogAttrs(ctx, slog.LevelError, "store.read",
		slog.String("status", "fail"),
		slog.String("op", op),
		slog.String("key", name),
		slog.String("err", err.Error()),
	)
}

func (b *Backend) writeFailed(ctx context.Context, op, name string, err error) error {
	metrics.ObserveStoreError(op)
	logger.Persist.LogAttrs(ctx, slog.LevelError, "store.write",
		slog.String("status", "fail"),
		slog.String("op", op),
		slog.String("key", name),
		slog.String("err", err.Error()),
	)
	return fmt.Errorf("persistence: %s %s: %w", op, name, err)
}

func cloneTable(t map[int64]Data) map[int64]Data {
	if t == nil {
		return nil
	}
	out := make(map[int64]Data, len(t))
	for id, d := range t {
		out[id] = d.Clone()
	}
	return out
}

func orEmpty(d Data) Data {
	if d == nil {
		return Data{}
	}
	return d.Clone()
}
