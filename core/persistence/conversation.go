package persistence

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ConversationKey identifies a conversation: an ordered tuple of strings and
// integers, usually (chat_id, user_id). It is comparable and stores the
// tuple in its canonical JSON array form.
type ConversationKey struct {
	enc string
}

// NewConversationKey builds a key from string and integer parts.
func NewConversationKey(parts ...any) (ConversationKey, error) {
	var b strings.Builder
	b.WriteByte('[')
	for i, p := range parts {
		if i > 0 {
			b.WriteString(", ")
		}
		switch v := p.(type) {
		case string:
			q, _ := json.Marshal(v)
			b.Write(q)
		case int:
			b.WriteString(strconv.FormatInt(int64(v), 10))
		case int32:
			b.WriteString(strconv.FormatInt(int64(v), 10))
		case int64:
			b.WriteString(strconv.FormatInt(v, 10))
		case uint32:
			b.WriteString(strconv.FormatUint(uint64(v), 10))
		default:
			return ConversationKey{}, fmt.Errorf("persistence: conversation key part %d has unsupported type %T", i, p)
		}
	}
	b.WriteByte(']')
	return ConversationKey{enc: b.String()}, nil
}

// ChatUserKey is the key used for per-chat, per-user conversations.
func ChatUserKey(chatID, userID int64) ConversationKey {
	k, _ := NewConversationKey(chatID, userID)
	return k
}

// ParseConversationKey decodes the JSON array form of a key.
func ParseConversationKey(s string) (ConversationKey, error) {
	parts, err := decodeParts(s)
	if err != nil {
		return ConversationKey{}, err
	}
	return NewConversationKey(parts...)
}

// Parts returns the tuple elements as string or int64 values.
func (k ConversationKey) Parts() []any {
	if k.enc == "" {
		return nil
	}
	parts, err := decodeParts(k.enc)
	if err != nil {
		return nil
	}
	return parts
}

func decodeParts(s string) ([]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("persistence: conversation key %q: %w", s, err)
	}
	parts := make([]any, 0, len(raw))
	for _, r := range raw {
		switch v := r.(type) {
		case string:
			parts = append(parts, v)
		case json.Number:
			n, err := v.Int64()
			if err != nil {
				return nil, fmt.Errorf("persistence: conversation key %q: non-integer part %s", s, v)
			}
			parts = append(parts, n)
		default:
			return nil, fmt.Errorf("persistence: conversation key %q: unsupported part %T", s, r)
		}
	}
	return parts, nil
}

func (k ConversationKey) String() string { return k.enc }

// Conversations maps handler names to conversation states by key.
type Conversations map[string]map[ConversationKey]string

// EncodeConversations serializes conversations as {name: {"[k1, k2]": state}}.
func EncodeConversations(c Conversations) ([]byte, error) {
	out := make(map[string]map[string]string, len(c))
	for name, states := range c {
		m := make(map[string]string, len(states))
		for k, st := range states {
			m[k.enc] = st
		}
		out[name] = m
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("persistence: encode conversations: %w", err)
	}
	return data, nil
}

// DecodeConversations is the inverse of EncodeConversations. Numeric states
// written by other tools are accepted and kept in their decimal form.
func DecodeConversations(data []byte) (Conversations, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("persistence: decode conversations: %w", err)
	}
	out := make(Conversations, len(raw))
	var errs []error
	for name, states := range raw {
		m := make(map[ConversationKey]string, len(states))
		for rawKey, rawState := range states {
			k, err := ParseConversationKey(rawKey)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			switch st := rawState.(type) {
			case string:
				m[k] = st
			case json.Number:
				m[k] = st.String()
			case nil:
			default:
				errs = append(errs, fmt.Errorf("persistence: conversation %s state has type %T", name, rawState))
			}
		}
		out[name] = m
	}
	return out, errors.Join(errs...)
}

func (c Conversations) clone() Conversations {
	out := make(Conversations, len(c))
	for name, states := range c {
		out[name] = cloneStates(states)
	}
	return out
}

func cloneStates(states map[ConversationKey]string) map[ConversationKey]string {
	out := make(map[ConversationKey]string, len(states))
	for k, v := range states {
		out[k] = v
	}
	return out
}
