package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tgscreens/core/logger"
	tghelpers "github.com/m3rciful/tgscreens/core/telegram/helpers"
)

func newTeleContext(t *testing.T, userID int64) tele.Context {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	return b.NewContext(tele.Update{Message: &tele.Message{
		Text:   "hi",
		Sender: &tele.User{ID: userID},
		Chat:   &tele.Chat{ID: userID},
	}})
}

func TestLimiterSweepsStaleUsers(t *testing.T) {
	l := &limiter{interval: time.Second, seen: map[int64]time.Time{}, sweepAt: 3}
	now := time.Now()

	assert.True(t, l.allow(1, now))
	assert.False(t, l.allow(1, now.Add(500*time.Millisecond)))
	assert.True(t, l.allow(2, now))
	assert.True(t, l.allow(3, now.Add(2*time.Second)))

	assert.NotContains(t, l.seen, int64(1))
	assert.NotContains(t, l.seen, int64(2))
	assert.Contains(t, l.seen, int64(3))
	assert.Equal(t, minSweep, l.sweepAt)
}

func TestRateLimitMiddleware(t *testing.T) {
	var passed, limited int
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Hour,
		OnLimited: func(tele.Context) error { limited++; return nil },
	})
	h := mw(func(tele.Context) error { passed++; return nil })

	require.NoError(t, h(newTeleContext(t, 1)))
	require.NoError(t, h(newTeleContext(t, 1)))
	require.NoError(t, h(newTeleContext(t, 2)))
	assert.Equal(t, 2, passed)
	assert.Equal(t, 1, limited)

	excluded := RateLimitMiddleware(RateLimitOptions{
		Interval: time.Hour,
		Exclude:  map[string]struct{}{"message": {}},
	})(func(tele.Context) error { passed++; return nil })
	require.NoError(t, excluded(newTeleContext(t, 1)))
	require.NoError(t, excluded(newTeleContext(t, 1)))
	assert.Equal(t, 4, passed)
}

func TestRecoverMiddlewareReturnsError(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	err := h(newTeleContext(t, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestAdminOnlyMiddleware(t *testing.T) {
	var rejected, passed bool
	h := AdminOnlyMiddleware(AdminOptions{
		IsAdmin:  func(c tele.Context) bool { return c.Sender().ID == 1 },
		OnReject: func(tele.Context) error { rejected = true; return nil },
	})(func(tele.Context) error { passed = true; return nil })

	require.NoError(t, h(newTeleContext(t, 2)))
	assert.True(t, rejected)
	assert.False(t, passed)

	require.NoError(t, h(newTeleContext(t, 1)))
	assert.True(t, passed)
}

func TestMessageCounters(t *testing.T) {
	c := newTeleContext(t, 1)
	msgs, kb := GetCounters(c)
	assert.Zero(t, msgs)
	assert.False(t, kb)

	CountMessage(c, false)
	CountMessage(c, true)
	CountMessage(c, false)
	msgs, kb = GetCounters(c)
	assert.Equal(t, 3, msgs)
	assert.True(t, kb)

	h := MessageMetricsMiddleware(func(inner tele.Context) error {
		CountMessage(inner, false)
		return nil
	})
	require.NoError(t, h(c))
	msgs, kb = GetCounters(c)
	assert.Equal(t, 1, msgs, "each update starts from zero")
	assert.False(t, kb)
}

func TestSeenUpdatesExpire(t *testing.T) {
	s := &seenUpdates{ttl: 20 * time.Millisecond, at: make(map[int]time.Time)}
	assert.True(t, s.first(7))
	assert.False(t, s.first(7))
	assert.True(t, s.first(8))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, s.first(7))
}

func TestLoggerMiddlewarePreparesRequestContext(t *testing.T) {
	c := newTeleContext(t, 42)
	var rid string
	h := LoggerMiddleware(func(inner tele.Context) error {
		rid = logger.RIDFrom(tghelpers.BuildContext(inner))
		return nil
	})
	require.NoError(t, h(c))
	assert.Equal(t, logger.BuildRID(0, 42, 42), rid)
}
