package netutil

import (
	"context"
	"errors"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

func TestShouldRetry(t *testing.T) {
	dial := &net.OpError{Op: "dial", Err: errors.New("connection refused")}

	assert.False(t, ShouldRetry(nil))
	assert.False(t, ShouldRetry(errors.New("bad request")))
	assert.True(t, ShouldRetry(dial))
	assert.True(t, ShouldRetry(&url.Error{Op: "Post", URL: "https://api.telegram.org", Err: dial}))
	assert.True(t, ShouldRetry(&tele.Error{Code: 502, Description: "Bad Gateway"}))
	assert.False(t, ShouldRetry(&tele.Error{Code: 400, Description: "message is not modified"}))
	assert.False(t, ShouldRetry(context.Canceled))
}

func TestRetryAfter(t *testing.T) {
	short := tele.FloodError{RetryAfter: 3}
	wait, ok := RetryAfter(short)
	assert.True(t, ok)
	assert.Equal(t, 3*time.Second, wait)
	assert.True(t, ShouldRetry(short))

	assert.False(t, ShouldRetry(tele.FloodError{RetryAfter: 600}))

	_, ok = RetryAfter(errors.New("plain"))
	assert.False(t, ok)
}
