package logger

import (
	"context"
	"errors"
	"time"
)

// RoundMS rounds d to whole milliseconds, the resolution of duration_ms.
func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}

// Outcome maps the result of a job or handler to a status value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "fail"
	}
}
