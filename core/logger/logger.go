package logger

import (
	"cmp"
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/tgscreens/core/buildinfo"
	coreconfig "github.com/m3rciful/tgscreens/core/config"
)

var (
	initOnce     sync.Once
	shutdownOnce sync.Once

	logSink  *sink
	logFiles []io.Closer

	levelVar    slog.LevelVar
	debugSample sampler
	traceAll    bool

	// L is the base logger; component loggers below derive from it.
	L *slog.Logger = slog.Default()

	// DB logs database connection events.
	DB *slog.Logger = L
	// MIG logs schema migrations of the postgres store.
	MIG *slog.Logger = L
	// TG logs Telegram transport events.
	TG *slog.Logger = L
	// TWire logs handler wiring at startup.
	TWire *slog.Logger = L
	// UI logs screen rendering and dispatch.
	UI *slog.Logger = L
	// Persist logs persistence backend activity.
	Persist *slog.Logger = L
	// Jobs logs scheduled job execution.
	Jobs *slog.Logger = L
	// Perm logs permission checks and denials.
	Perm *slog.Logger = L
)

func init() {
	debugSample.set(1, 50)
}

// InitLogger configures the global structured logger. Only the first call
// has an effect.
func InitLogger(cfg *coreconfig.Config) error {
	initOnce.Do(func() {
		var lc coreconfig.LoggingConfig
		if cfg != nil {
			lc = cfg.Logging
		}
		levelVar.Set(parseLevel(lc.Level))
		if num, den, ok := parseSampleRate(lc.DebugSample); ok {
			debugSample.set(num, den)
		}
		traceAll = truthy(os.Getenv("TRACE")) || truthy(os.Getenv("LOG_TRACE"))

		outputs := []io.Writer{os.Stdout}
		if f := openLogFile(lc.Dir, lc.BotFile); f != nil {
			outputs = append(outputs, f)
			logFiles = append(logFiles, f)
		}
		logSink = newSink(outputs, 64*1024)

		L = slog.New(newStructuredHandler(handlerConfig{
			level:    &levelVar,
			sink:     logSink,
			format:   pickFormat(lc),
			keyOrder: parseKeyOrder(lc.KeysOrder),
		}))
		slog.SetDefault(L)
		wireComponents()

		attrs := []slog.Attr{
			slog.String("component", "app"),
			slog.String("go_version", runtime.Version()),
			slog.String("build", buildinfo.String()),
		}
		if cfg != nil {
			attrs = append(attrs, slog.String("cfg_profile", profile(lc)))
		}
		LogEvent(context.Background(), L, slog.LevelInfo, "startup", attrs...)
	})
	return nil
}

func wireComponents() {
	DB = L.With("component", "db")
	MIG = L.With("component", "db.migrate")
	TG = L.With("component", "tg")
	TWire = L.With("component", "tg.wire")
	UI = L.With("component", "screens")
	Persist = L.With("component", "persistence")
	Jobs = L.With("component", "jobs")
	Perm = L.With("component", "permissions")
}

// Shutdown flushes buffered log output and closes the log file.
func Shutdown() error {
	var errs []error
	shutdownOnce.Do(func() {
		if logSink != nil {
			errs = append(errs, logSink.Sync(), logSink.Close())
		}
		for _, c := range logFiles {
			errs = append(errs, c.Close())
		}
	})
	return errors.Join(errs...)
}

// openLogFile opens dir/name for appending. A file that cannot be opened is
// reported on stderr and skipped so the bot still logs to stdout.
func openLogFile(dir, name string) *os.File {
	dir, name = strings.TrimSpace(dir), strings.TrimSpace(name)
	if dir == "" || name == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("logger: create log dir %s: %v", dir, err)
		return nil
	}
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("logger: open log file %s: %v", path, err)
		return nil
	}
	return f
}

// pickFormat honours an explicit format and otherwise prefers pretty output
// for the debug and dev profiles.
func pickFormat(lc coreconfig.LoggingConfig) logFormat {
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text":
		return formatKV
	case "pretty":
		return formatPretty
	case "json":
		return formatJSON
	}
	switch profile(lc) {
	case "debug", "dev":
		return formatPretty
	}
	return formatJSON
}

func parseKeyOrder(raw string) []string {
	var order []string
	if raw = strings.TrimSpace(raw); raw != "default" {
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				order = append(order, k)
			}
		}
	}
	if len(order) == 0 {
		return append([]string(nil), defaultKeyOrder...)
	}
	return order
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func profile(lc coreconfig.LoggingConfig) string {
	return cmp.Or(strings.ToLower(strings.TrimSpace(lc.Profile)), "prod")
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// ShouldSampleDebug reports whether a high-volume debug record should be
// written. TRACE=1 lets every record through.
func ShouldSampleDebug() bool {
	return traceAll || debugSample.allow()
}

// LogEvent writes a record whose event attribute is always set. A nil logg
// falls back to the logger carried by ctx.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if logg == nil {
		return
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Component returns the base logger scoped to name.
func Component(name string) *slog.Logger {
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

// Debug logs a debug-level event for the given component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelDebug, event, attrs...)
}

// Info logs an info-level event for the given component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelInfo, event, attrs...)
}

// Warn logs a warn-level event for the given component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelWarn, event, attrs...)
}

// Error logs an error-level event for the given component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelError, event, attrs...)
}
