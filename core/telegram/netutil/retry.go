package netutil

import (
	"errors"
	"net"
	"net/url"
	"time"

	tele "gopkg.in/telebot.v4"
)

// maxFloodWait caps how long a flood-limited call is worth waiting for.
const maxFloodWait = 30 * time.Second

// ShouldRetry reports whether a failed Telegram call is worth retrying:
// transient dial and timeout failures, server side errors and flood limits
// short enough to wait out.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	if wait, ok := RetryAfter(err); ok {
		return wait <= maxFloodWait
	}

	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() || opErr.Op == "dial" {
			return true
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return true
		}
		if urlErr.Err != nil && !errors.Is(urlErr.Err, err) {
			return ShouldRetry(urlErr.Err)
		}
	}

	return false
}

// RetryAfter extracts the wait Telegram asked for when it rejected a call
// with a flood error.
func RetryAfter(err error) (time.Duration, bool) {
	var flood tele.FloodError
	if !errors.As(err, &flood) {
		return 0, false
	}
	return time.Duration(flood.RetryAfter) * time.Second, true
}
