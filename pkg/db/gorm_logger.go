package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/smith3v/quizsync/pkg/logger"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	defaultSlowThreshold = 200 * time.Millisecond
	defaultGormLogLevel  = gormlogger.Warn
)

// gormSlogLogger sends gorm's query log to the application logger.
// Lookups that find nothing are routine for the store (an absent progress
// record, an unset kv key) and only show up at debug level.
type gormSlogLogger struct {
	slowThreshold time.Duration
	logLevel      gormlogger.LogLevel
}

func newGormLogger(levelValue string, slowThreshold time.Duration) (gormlogger.Interface, error) {
	level := defaultGormLogLevel
	var levelErr error
	if strings.TrimSpace(levelValue) != "" {
		level, levelErr = parseGormLogLevel(levelValue)
	}
	if slowThreshold <= 0 {
		slowThreshold = defaultSlowThreshold
	}
	return &gormSlogLogger{slowThreshold: slowThreshold, logLevel: level}, levelErr
}

func (l *gormSlogLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.logLevel = level
	return &clone
}

func (l *gormSlogLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.printf(ctx, gormlogger.Info, slog.LevelInfo, msg, data...)
}

func (l *gormSlogLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.printf(ctx, gormlogger.Warn, slog.LevelWarn, msg, data...)
}

func (l *gormSlogLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.printf(ctx, gormlogger.Error, slog.LevelError, msg, data...)
}

func (l *gormSlogLogger) printf(ctx context.Context, gl gormlogger.LogLevel, level slog.Level, msg string, data ...interface{}) {
	if l.enabled(gl) {
		logger.Logger.Log(ctx, level, fmt.Sprintf(msg, data...))
	}
}

// queryEntry is what Trace decided to log for one statement.
type queryEntry struct {
	gormLevel gormlogger.LogLevel
	level     slog.Level
	message   string
}

func (l *gormSlogLogger) classify(elapsed time.Duration, err error) (queryEntry, bool) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if !logger.Enabled(logger.DEBUG) {
			return queryEntry{}, false
		}
		return queryEntry{gormlogger.Info, slog.LevelDebug, "gorm record not found"}, true
	case err != nil:
		return queryEntry{gormlogger.Error, slog.LevelError, "gorm query error"}, true
	case l.slowThreshold > 0 && elapsed > l.slowThreshold:
		return queryEntry{gormlogger.Warn, slog.LevelWarn, "gorm slow query"}, true
	default:
		return queryEntry{gormlogger.Info, slog.LevelInfo, "gorm query"}, true
	}
}

func (l *gormSlogLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.logLevel == gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	entry, ok := l.classify(elapsed, err)
	if !ok || l.logLevel < entry.gormLevel {
		return
	}
	if entry.level != slog.LevelDebug && !l.enabled(entry.gormLevel) {
		return
	}

	sql, rows := fc()
	attrs := []any{"elapsed", elapsed, "rows", rows, "sql", sql}
	switch entry.level {
	case slog.LevelError:
		attrs = append(attrs, "error", err)
	case slog.LevelWarn:
		attrs = append(attrs, "threshold", l.slowThreshold)
	}
	logger.Logger.Log(ctx, entry.level, entry.message, attrs...)
}

func (l *gormSlogLogger) enabled(level gormlogger.LogLevel) bool {
	if l.logLevel == gormlogger.Silent || l.logLevel < level {
		return false
	}
	switch level {
	case gormlogger.Info:
		return logger.Enabled(logger.INFO)
	case gormlogger.Warn:
		return logger.Enabled(logger.WARN)
	case gormlogger.Error:
		return logger.Enabled(logger.ERROR)
	default:
		return false
	}
}

func parseGormLogLevel(value string) (gormlogger.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "silent":
		return gormlogger.Silent, nil
	case "error":
		return gormlogger.Error, nil
	case "warn":
		return gormlogger.Warn, nil
	case "info":
		return gormlogger.Info, nil
	default:
		return defaultGormLogLevel, fmt.Errorf("invalid gorm log level %q", value)
	}
}
