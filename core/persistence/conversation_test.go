package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationKeyCanonicalForm(t *testing.T) {
	k, err := NewConversationKey(int64(-100), "user", 42)
	require.NoError(t, err)
	assert.Equal(t, `[-100, "user", 42]`, k.String())
	assert.Equal(t, []any{int64(-100), "user", int64(42)}, k.Parts())

	same, err := NewConversationKey(-100, "user", int32(42))
	require.NoError(t, err)
	assert.Equal(t, k, same)

	_, err = NewConversationKey(1.5)
	assert.Error(t, err)
}

func TestParseConversationKeyNormalizes(t *testing.T) {
	k, err := ParseConversationKey(`[1,"a" ,  2]`)
	require.NoError(t, err)
	assert.Equal(t, `[1, "a", 2]`, k.String())

	_, err = ParseConversationKey(`[1.5]`)
	assert.Error(t, err)
	_, err = ParseConversationKey(`{"a":1}`)
	assert.Error(t, err)
}

func TestConversationsRoundTrip(t *testing.T) {
	mixed, err := NewConversationKey("chat", int64(7), "thread, with comma", -3)
	require.NoError(t, err)
	quoted, err := NewConversationKey(`say "hi"`, 0)
	require.NoError(t, err)

	cases := map[string]Conversations{
		"empty": {},
		"chat user": {
			"main": {ChatUserKey(-100, 42): "1", ChatUserKey(5, 5): "0"},
		},
		"mixed tuples": {
			"main":    {mixed: "2"},
			"profile": {quoted: "edit", ChatUserKey(1, 2): "3"},
			"idle":    {},
		},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			raw, err := EncodeConversations(in)
			require.NoError(t, err)
			out, err := DecodeConversations(raw)
			require.NoError(t, err)
			assert.Equal(t, in, out)
		})
	}
}

func TestDecodeConversationsAcceptsNumericStates(t *testing.T) {
	out, err := DecodeConversations([]byte(`{"main":{"[1, 2]":3,"[4, 5]":null}}`))
	require.NoError(t, err)
	assert.Equal(t, Conversations{"main": {ChatUserKey(1, 2): "3"}}, out)
}

func TestDecodeConversationsReportsBadKeys(t *testing.T) {
	out, err := DecodeConversations([]byte(`{"main":{"not a key":"1","[1, 2]":"2"}}`))
	assert.Error(t, err)
	assert.Equal(t, "2", out["main"][ChatUserKey(1, 2)])
}
