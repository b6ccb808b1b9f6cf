package logger

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON   logFormat = "json"
	formatKV     logFormat = "kv"
	formatPretty logFormat = "pretty"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

type handlerConfig struct {
	level    slog.Leveler
	sink     *sink
	format   logFormat
	keyOrder []string
}

// record holds the flattened fields of one log line.
type record map[string]any

func (r record) str(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func (r record) setDefault(key string, val any) {
	if _, ok := r[key]; !ok {
		r[key] = val
	}
}

type encoder func(r record, order []string) ([]byte, error)

// structuredHandler renders records as one line each: JSON for shipping,
// key=value for terminals and a colored key=value variant for development.
type structuredHandler struct {
	cfg    handlerConfig
	encode encoder
	attrs  []slog.Attr
	prefix string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = slices.Clone(defaultKeyOrder)
	}
	h := &structuredHandler{cfg: cfg}
	switch cfg.format {
	case formatJSON:
		h.encode = encodeJSON
	case formatPretty:
		h.encode = encodePretty
	default:
		h.encode = encodeKV
	}
	return h
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *structuredHandler) Handle(ctx context.Context, sr slog.Record) error {
	if h.cfg.sink == nil {
		return errors.New("logger: sink not initialized")
	}

	rec := make(record, 16)
	ts := sr.Time.UTC()
	rec["ts"] = ts.Truncate(time.Millisecond).Format(timeFormatMillis)
	rec["level"] = normalizeLevel(sr.Level.String())
	if h.cfg.format == formatJSON {
		rec["ts_unix_nano"] = ts.UnixNano()
	}
	for _, a := range h.attrs {
		flatten(rec, "", a)
	}
	sr.Attrs(func(a slog.Attr) bool {
		flatten(rec, h.prefix, a)
		return true
	})
	addUpdateMeta(ctx, rec)

	if rid := rec.str("rid"); rid != "" {
		if short := compactRID(rid); short != rid {
			if h.cfg.format == formatJSON {
				rec.setDefault("rid_full", rid)
			}
			rec["rid"] = short
		}
	}
	if rec.str("event") == "" {
		rec["event"] = cmp.Or(sr.Message, "unknown")
	}
	if rec.str("component") == "" {
		rec["component"] = "app"
	}
	applySchema(rec)
	for k, v := range rec {
		if v == nil || v == "" {
			delete(rec, k)
		}
	}

	line, err := h.encode(rec, h.cfg.keyOrder)
	if err != nil {
		return err
	}
	return h.cfg.sink.Write(append(line, '\n'))
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" && a.Key != "" {
			a.Key = h.prefix + "." + a.Key
		}
		clone.attrs = append(clone.attrs, a)
	}
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if clone.prefix == "" {
		clone.prefix = name
	} else {
		clone.prefix += "." + name
	}
	return &clone
}

// flatten copies a into rec. Group members become dotted keys and durations
// are stored as whole milliseconds under a *_ms key.
func flatten(rec record, prefix string, a slog.Attr) {
	key := a.Key
	if prefix != "" {
		key = prefix + "." + key
		if a.Key == "" {
			key = prefix
		}
	}
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			flatten(rec, key, child)
		}
		return
	}
	if key == "" {
		return
	}
	if k, val, ok := fieldValue(key, v); ok {
		rec[k] = val
	}
}

func fieldValue(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String()), true
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, v.Uint64(), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindDuration:
		return millisKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := v.Any().(type) {
	case nil:
		return key, nil, false
	case time.Duration:
		return millisKey(key), RoundMS(x).Milliseconds(), true
	case error:
		return key, x.Error(), true
	case string:
		return key, strings.TrimSpace(x), true
	case fmt.Stringer:
		return key, x.String(), true
	default:
		return key, fmt.Sprint(x), true
	}
}

// millisKey names a duration field, e.g. duration_ms.
func millisKey(key string) string {
	if strings.HasSuffix(key, "_ms") {
		return key
	}
	return key + "_ms"
}

func addUpdateMeta(ctx context.Context, rec record) {
	m := metaFrom(ctx)
	if m.rid != "" {
		rec.setDefault("rid", m.rid)
	}
	if m.userID != 0 {
		rec.setDefault("user_id", m.userID)
	}
	if m.updateID != 0 {
		rec.setDefault("update_id", m.updateID)
	}
	if m.chatID != 0 {
		rec.setDefault("chat_id", m.chatID)
	}
	if m.handler != "" {
		rec.setDefault("handler", m.handler)
	}
}

// orderedKeys lists the keys of rec named in order first, then the rest
// alphabetically.
func orderedKeys(rec record, order []string) []string {
	keys := make([]string, 0, len(rec))
	for _, k := range order {
		if _, ok := rec[k]; ok {
			keys = append(keys, k)
		}
	}
	head := len(keys)
	for k := range rec {
		if !slices.Contains(keys[:head], k) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys[head:])
	return keys
}

func encodeJSON(rec record, order []string) ([]byte, error) {
	buf := []byte{'{'}
	for i, k := range orderedKeys(rec, order) {
		val, err := json.Marshal(rec[k])
		if err != nil {
			return nil, fmt.Errorf("logger: encode %s: %w", k, err)
		}
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendQuote(buf, k)
		buf = append(buf, ':')
		buf = append(buf, val...)
	}
	return append(buf, '}'), nil
}

func encodeKV(rec record, order []string) ([]byte, error) {
	return encodePairs(rec, order, nil), nil
}

// encodePairs writes key=value pairs; paint, when set, may decorate a
// rendered value.
func encodePairs(rec record, order []string, paint func(key, val string) string) []byte {
	var b strings.Builder
	for i, k := range orderedKeys(rec, order) {
		if i > 0 {
			b.WriteByte(' ')
		}
		val := kvValue(rec[k])
		if paint != nil {
			val = paint(k, val)
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(val)
	}
	return []byte(b.String())
}

func kvValue(v any) string {
	s := fmt.Sprint(v)
	if strings.ContainsFunc(s, needsQuote) {
		return strconv.Quote(s)
	}
	return s
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}
