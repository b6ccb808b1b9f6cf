package sender

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(Options{Lanes: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	require.NoError(t, d.Enqueue(context.Background(), Call{Chat: 1, Method: "editMessageReplyMarkup", Do: func(context.Context) error {
		if calls.Add(1) == 1 {
			return &net.OpError{Op: "dial", Err: errors.New("connection refused")}
		}
		return nil
	}}))
	d.Close()

	assert.Equal(t, int32(2), calls.Load())
}

func TestDispatcherGivesUpOnPermanentErrors(t *testing.T) {
	d := NewDispatcher(Options{Lanes: 1, MaxRetries: 3, RetryBackoff: time.Millisecond})
	var calls atomic.Int32
	require.NoError(t, d.Enqueue(context.Background(), Call{Chat: 1, Method: "sendMessage", Do: func(context.Context) error {
		calls.Add(1)
		return errors.New("chat not found")
	}}))
	d.Close()

	assert.Equal(t, int32(1), calls.Load())
}

func TestDispatcherKeepsChatOrder(t *testing.T) {
	d := NewDispatcher(Options{Lanes: 3, QueueSize: 60})
	var (
		mu  sync.Mutex
		got = map[int64][]int{}
	)
	for i := 0; i < 10; i++ {
		for _, chat := range []int64{5, -7, 12} {
			seq := i
			require.NoError(t, d.Enqueue(context.Background(), Call{Chat: chat, Method: "editMessageText", Do: func(context.Context) error {
				mu.Lock()
				got[chat] = append(got[chat], seq)
				mu.Unlock()
				return nil
			}}))
		}
	}
	d.Close()

	want := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	for _, chat := range []int64{5, -7, 12} {
		assert.Equal(t, want, got[chat], "chat %d", chat)
	}
}

func TestDispatcherQueueLimits(t *testing.T) {
	d := NewDispatcher(Options{Lanes: 1, QueueSize: 1})
	release := make(chan struct{})
	started := make(chan struct{})
	block := func(context.Context) error {
		close(started)
		<-release
		return nil
	}
	noop := func(context.Context) error { return nil }

	require.NoError(t, d.Enqueue(context.Background(), Call{Method: "a", Do: block}))
	<-started
	require.NoError(t, d.Enqueue(context.Background(), Call{Method: "b", Do: noop}))
	assert.Equal(t, 1, d.Len())
	assert.ErrorIs(t, d.Enqueue(context.Background(), Call{Method: "c", Do: noop}), ErrQueueFull)

	close(release)
	d.Close()
	assert.ErrorIs(t, d.Enqueue(context.Background(), Call{Method: "d", Do: noop}), ErrQueueClosed)
	assert.Error(t, d.Enqueue(context.Background(), Call{Method: "e"}))
}

func TestRedactToken(t *testing.T) {
	err := errors.New(`Post "https://api.telegram.org/bot123:AAbb-cc/sendMessage": timeout`)
	assert.Equal(t, `Post "https://api.telegram.org/bot<redacted>/sendMessage": timeout`, redactToken(err))
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "timeout", errorKind(context.DeadlineExceeded))
	assert.Equal(t, "dial", errorKind(&net.OpError{Op: "dial", Err: errors.New("refused")}))
	assert.Equal(t, "http_4xx", errorKind(&tele.Error{Code: 403, Description: "bot was blocked"}))
	assert.Equal(t, "http_4xx", errorKind(tele.FloodError{RetryAfter: 3}))
	assert.Equal(t, "http_5xx", errorKind(&tele.Error{Code: 502}))
	assert.Equal(t, "unknown", errorKind(errors.New("boom")))
}
