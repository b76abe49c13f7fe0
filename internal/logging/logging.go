// Package logging wires the CLI's logrus sink to the slog.Logger used by the
// lower-level provider clients, so both ends of the stack share one
// destination and level.
package logging

import (
	"context"
	"log/slog"

	"github.com/sirupsen/logrus"
)

// New creates the top-level logrus logger used by the CLI and phase
// controller.
func New(verbose bool) *logrus.Logger {
	logger := logrus.New()
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}

// Slog returns an slog.Logger backed by the given logrus logger, for
// components (e.g. LLM providers) that are grounded on code written against
// log/slog.
func Slog(logger *logrus.Logger) *slog.Logger {
	return slog.New(&logrusHandler{logger: logger})
}

// logrusHandler adapts slog.Handler to a logrus.Logger sink.
type logrusHandler struct {
	logger *logrus.Logger
	attrs  []slog.Attr
	group  string
}

func (h *logrusHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slogLevel(h.logger.GetLevel())
}

func (h *logrusHandler) Handle(_ context.Context, record slog.Record) error {
	fields := logrus.Fields{}
	for _, a := range h.attrs {
		fields[h.key(a.Key)] = a.Value.Any()
	}
	record.Attrs(func(a slog.Attr) bool {
		fields[h.key(a.Key)] = a.Value.Any()
		return true
	})

	entry := h.logger.WithFields(fields)
	switch {
	case record.Level >= slog.LevelError:
		entry.Error(record.Message)
	case record.Level >= slog.LevelWarn:
		entry.Warn(record.Message)
	case record.Level >= slog.LevelInfo:
		entry.Info(record.Message)
	default:
		entry.Debug(record.Message)
	}
	return nil
}

func (h *logrusHandler) key(key string) string {
	if h.group == "" {
		return key
	}
	return h.group + "." + key
}

func (h *logrusHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &logrusHandler{logger: h.logger, group: h.group}
	next.attrs = append(append(next.attrs, h.attrs...), attrs...)
	return next
}

func (h *logrusHandler) WithGroup(name string) slog.Handler {
	next := &logrusHandler{logger: h.logger, attrs: h.attrs}
	if h.group != "" {
		next.group = h.group + "." + name
	} else {
		next.group = name
	}
	return next
}

func slogLevel(level logrus.Level) slog.Level {
	switch level {
	case logrus.DebugLevel, logrus.TraceLevel:
		return slog.LevelDebug
	case logrus.WarnLevel:
		return slog.LevelWarn
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
