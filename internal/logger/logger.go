// Package logger is the process-wide structured logger shared by the maze
// binaries. Records carry the binary name as "service" and maze records add
// "fingerprint", "path_seed" and "material_seed" through Maze. Until
// Initialize is called every function is a no-op.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelAudit sits above Error so audit records, such as stored maze
// fingerprints, are written whatever the configured level.
const LevelAudit = slog.Level(12)

var logger *slog.Logger

var levelNames = map[string]slog.Level{
	"DEBUG":   slog.LevelDebug,
	"INFO":    slog.LevelInfo,
	"WARN":    slog.LevelWarn,
	"WARNING": slog.LevelWarn,
	"ERROR":   slog.LevelError,
}

// Initialize builds the console and file sinks described by config. With
// both disabled, records still go to stderr as text.
func Initialize(config Config) error {
	level := parseLogLevel(config.Level)

	var sinks []slog.Handler
	if config.ConsoleEnabled {
		sinks = append(sinks, newHandler(consoleWriter(config.ConsoleStream), config.ConsoleFormat, level))
	}
	if config.FileEnabled {
		rotated := &lumberjack.Logger{
			Filename:   config.FilePath,
			MaxSize:    config.FileMaxSizeMB,
			MaxBackups: config.FileMaxBackups,
			MaxAge:     config.FileMaxAgeDays,
			Compress:   config.FileCompress,
		}
		sinks = append(sinks, newHandler(rotated, config.FileFormat, level))
	}

	var h slog.Handler
	switch len(sinks) {
	case 0:
		h = newHandler(os.Stderr, "text", level)
	case 1:
		h = sinks[0]
	default:
		h = newTeeHandler(sinks...)
	}

	l := slog.New(h)
	if config.Service != "" {
		l = l.With("service", config.Service)
	}
	logger = l
	return nil
}

func consoleWriter(stream string) io.Writer {
	if strings.EqualFold(stream, "stdout") {
		return os.Stdout
	}
	return os.Stderr
}

// newHandler builds a text or JSON handler that prints LevelAudit as AUDIT.
func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key != slog.LevelKey {
				return a
			}
			if l, ok := a.Value.Any().(slog.Level); ok && l == LevelAudit {
				a.Value = slog.StringValue("AUDIT")
			}
			return a
		},
	}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// parseLogLevel maps a level name to slog.Level, defaulting to INFO.
func parseLogLevel(level string) slog.Level {
	if l, ok := levelNames[strings.ToUpper(strings.TrimSpace(level))]; ok {
		return l
	}
	return slog.LevelInfo
}

func emit(level slog.Level, msg string, args ...any) {
	if logger != nil {
		logger.Log(context.Background(), level, msg, args...)
	}
}

func Debug(msg string, args ...any)   { emit(slog.LevelDebug, msg, args...) }
func Info(msg string, args ...any)    { emit(slog.LevelInfo, msg, args...) }
func Warning(msg string, args ...any) { emit(slog.LevelWarn, msg, args...) }
func Error(msg string, args ...any)   { emit(slog.LevelError, msg, args...) }

// Audit logs a message that bypasses level filtering.
func Audit(msg string, args ...any) { emit(LevelAudit, msg, args...) }

func Debugf(format string, args ...any)   { Debug(fmt.Sprintf(format, args...)) }
func Infof(format string, args ...any)    { Info(fmt.Sprintf(format, args...)) }
func Warningf(format string, args ...any) { Warning(fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...any)   { Error(fmt.Sprintf(format, args...)) }
func Auditf(format string, args ...any)   { Audit(fmt.Sprintf(format, args...)) }

// Maze returns the attributes that identify one generated maze in a record.
// An empty fingerprint is left out, for mazes not yet hashed.
func Maze(fingerprint string, pathSeed, materialSeed int64) []any {
	args := []any{"path_seed", pathSeed, "material_seed", materialSeed}
	if fingerprint != "" {
		args = append([]any{"fingerprint", fingerprint}, args...)
	}
	return args
}

// teeHandler writes each record to every sink enabled for its level.
type teeHandler struct {
	sinks []slog.Handler
}

func newTeeHandler(sinks ...slog.Handler) *teeHandler {
	return &teeHandler{sinks: sinks}
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range h.sinks {
		if s.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle keeps writing to the remaining sinks when one fails.
func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, s := range h.sinks {
		if !s.Enabled(ctx, r.Level) {
			continue
		}
		if err := s.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.each(func(s slog.Handler) slog.Handler { return s.WithAttrs(attrs) })
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return h.each(func(s slog.Handler) slog.Handler { return s.WithGroup(name) })
}

func (h *teeHandler) each(f func(slog.Handler) slog.Handler) *teeHandler {
	sinks := make([]slog.Handler, len(h.sinks))
	for i, s := range h.sinks {
		sinks[i] = f(s)
	}
	return newTeeHandler(sinks...)
}
