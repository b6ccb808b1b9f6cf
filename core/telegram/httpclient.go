package telegram

import (
	"context"
	"net"
	"net/http"
	"time"

	coreconfig "github.com/m3rciful/tgscreens/core/config"
	"github.com/m3rciful/tgscreens/core/telegram/netutil"
)

const (
	defaultDialTimeout     = 5 * time.Second
	defaultResponseTimeout = 5 * time.Second
	defaultClientTimeout   = 30 * time.Second
	defaultRetryAttempts   = 3
	defaultRetryBackoff    = 2 * time.Second
)

// BuildHTTPClient returns an HTTP client tuned for Telegram API calls. Its
// overall timeout outlasts a long poll so getUpdates is never cut short.
func BuildHTTPClient(cfg *coreconfig.Config) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: 30 * time.Second}).DialContext
	transport.MaxIdleConnsPerHost = 10
	transport.IdleConnTimeout = 30 * time.Second
	transport.TLSHandshakeTimeout = defaultDialTimeout

	return &http.Client{
		Timeout: max(defaultClientTimeout, longPollTimeout(cfg)+defaultResponseTimeout),
		Transport: &retryTransport{
			base:       transport,
			maxRetries: defaultRetryAttempts,
			backoff:    defaultRetryBackoff,
		},
	}
}

// retryTransport repeats requests that failed before Telegram answered,
// backing off linearly. A request whose body cannot be replayed is sent once.
type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	for attempt := 1; ; attempt++ {
		resp, err := base.RoundTrip(req)
		if err == nil || attempt > t.maxRetries || !netutil.ShouldRetry(err) {
			return resp, err
		}
		next, ok := rewind(req)
		if !ok {
			return nil, err
		}
		if werr := pause(req.Context(), t.backoff*time.Duration(attempt)); werr != nil {
			return nil, werr
		}
		req = next
	}
}

// rewind clones req with a fresh body.
func rewind(req *http.Request) (*http.Request, bool) {
	next := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return next, true
	}
	if req.GetBody == nil {
		return nil, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	next.Body = body
	return next, true
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
