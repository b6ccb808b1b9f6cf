package logger

import (
	"slices"
	"strings"
)

const (
	// LevelDebug represents the debug severity level name.
	LevelDebug = "DEBUG"
	// LevelInfo represents the info severity level name.
	LevelInfo = "INFO"
	// LevelWarn represents the warning severity level name.
	LevelWarn = "WARN"
	// LevelError represents the error severity level name.
	LevelError = "ERROR"
	// LevelFatal represents the fatal severity level name.
	LevelFatal = "FATAL"
)

func normalizeLevel(level string) string {
	switch l := strings.ToUpper(strings.TrimSpace(level)); l {
	case "":
		return LevelInfo
	case "WARNING":
		return LevelWarn
	default:
		return l
	}
}

// enums lists the fields restricted to a fixed vocabulary. Values outside
// it are dropped, except for status which is kept as written.
var enums = map[string]struct {
	values []string
	strict bool
}{
	"status":  {values: []string{"ok", "fail", "skip", "retry", "rate_limited", "cancelled"}},
	"outcome": {values: []string{"ok", "fail", "cancelled", "rate_limited"}, strict: true},
	"cache":   {values: []string{"hit", "miss", "refresh"}, strict: true},
}

func applySchema(rec record) {
	for key, enum := range enums {
		raw, ok := rec[key].(string)
		if !ok || raw == "" {
			continue
		}
		val := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case slices.Contains(enum.values, val):
			rec[key] = val
		case enum.strict:
			delete(rec, key)
		default:
			rec[key] = val
		}
	}
}

var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "rid_full", "ts_unix_nano",
	"update_id", "user_id", "chat_id", "chat_type",
	"handler", "screen", "state", "next_state", "mode", "op", "cb_key",
	"outcome", "duration_ms", "messages", "kb", "count", "cache",
	"payload", "permission", "job",
	"backend", "namespace", "key",
	"lang", "username", "listen", "public_url", "http_code",
	"db", "host", "port",
	"err", "err_code", "cause", "retryable", "attempts", "backoff_ms", "rate_limited",
}
