package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

// GormLogger forwards gorm's output to slog. Queries are logged at debug,
// slow ones at warn and failures at error. Record-not-found is not a
// failure for this store.
type GormLogger struct {
	log           *slog.Logger
	SlowThreshold time.Duration
	LogLevel      gormLogger.LogLevel
}

func NewGormLogger(log *slog.Logger, slow time.Duration) gormLogger.Interface {
	if log == nil {
		log = slog.Default()
	}
	return &GormLogger{log: log, SlowThreshold: slow, LogLevel: gormLogger.Warn}
}

func (l *GormLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	copy := *l
	copy.LogLevel = level
	return &copy
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Info {
		l.log.InfoContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Warn {
		l.log.WarnContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Error {
		l.log.ErrorContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= gormLogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.LogLevel >= gormLogger.Error:
		sql, rows := fc()
		l.log.ErrorContext(ctx, "sql error", "file", utils.FileWithLineNum(), "err", err, "elapsed", elapsed, "rows", rows, "sql", sql)
	case l.SlowThreshold > 0 && elapsed > l.SlowThreshold && l.LogLevel >= gormLogger.Warn:
		sql, rows := fc()
		l.log.WarnContext(ctx, "slow sql", "file", utils.FileWithLineNum(), "elapsed", elapsed, "rows", rows, "sql", sql)
	case l.LogLevel >= gormLogger.Info:
		sql, rows := fc()
		l.log.DebugContext(ctx, "sql", "elapsed", elapsed, "rows", rows, "sql", sql)
	}
}
