package logger

import (
	"context"
	"io"
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// zapHandler routes slog records into a zap core with JSON encoding.
type zapHandler struct {
	core  zapcore.Core
	group string
}

func newZapHandler(w io.Writer, level slog.Level) *zapHandler {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(w),
		toZapLevel(level),
	)
	return &zapHandler{core: core}
}

func (h *zapHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.core.Enabled(toZapLevel(level))
}

func (h *zapHandler) Handle(_ context.Context, r slog.Record) error {
	entry := zapcore.Entry{
		Level:   toZapLevel(r.Level),
		Time:    r.Time,
		Message: r.Message,
	}
	ce := h.core.Check(entry, nil)
	if ce == nil {
		return nil
	}
	fields := make([]zap.Field, 0, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		fields = appendFields(fields, h.group, a)
		return true
	})
	ce.Write(fields...)
	return nil
}

func (h *zapHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	fields := make([]zap.Field, 0, len(attrs))
	for _, a := range attrs {
		fields = appendFields(fields, h.group, a)
	}
	return &zapHandler{core: h.core.With(fields), group: h.group}
}

func (h *zapHandler) WithGroup(name string) slog.Handler {
	prefix := name
	if h.group != "" {
		prefix = h.group + "." + name
	}
	return &zapHandler{core: h.core, group: prefix}
}

// appendFields flattens a into dotted zap keys under prefix. Groups expand
// into one field per member; an empty-keyed group is inlined.
func appendFields(fields []zap.Field, prefix string, a slog.Attr) []zap.Field {
	v := a.Value.Resolve()
	if a.Key == "" && v.Kind() != slog.KindGroup {
		return fields
	}
	key := a.Key
	switch {
	case key == "":
		key = prefix
	case prefix != "":
		key = prefix + "." + key
	}
	if v.Kind() == slog.KindGroup {
		for _, member := range v.Group() {
			fields = appendFields(fields, key, member)
		}
		return fields
	}
	return append(fields, field(key, v))
}

func field(key string, v slog.Value) zap.Field {
	switch v.Kind() {
	case slog.KindBool:
		return zap.Bool(key, v.Bool())
	case slog.KindDuration:
		return zap.Duration(key, v.Duration())
	case slog.KindFloat64:
		return zap.Float64(key, v.Float64())
	case slog.KindInt64:
		return zap.Int64(key, v.Int64())
	case slog.KindString:
		return zap.String(key, v.String())
	case slog.KindTime:
		return zap.Time(key, v.Time())
	case slog.KindUint64:
		return zap.Uint64(key, v.Uint64())
	default:
		if err, ok := v.Any().(error); ok {
			return zap.NamedError(key, err)
		}
		return zap.Any(key, v.Any())
	}
}

func toZapLevel(level slog.Level) zapcore.Level {
	switch {
	case level >= slog.LevelError:
		return zapcore.ErrorLevel
	case level >= slog.LevelWarn:
		return zapcore.WarnLevel
	case level >= slog.LevelInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}
