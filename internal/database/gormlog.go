package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm/logger"
)

// slowQueryThreshold marks queries worth a WARN line.
const slowQueryThreshold = time.Second

// maxSQLLogLength caps SQL text in log output; batch inserts with
// interpolated values can run to megabytes.
const maxSQLLogLength = 200

// gormSlogger bridges GORM's logger.Interface onto slog. On SQLite
// lock contention it also emits pool stats, rate limited to once per
// minute.
type gormSlogger struct {
	logger *slog.Logger
	level  logger.LogLevel

	sqlDB        *sql.DB
	statsMu      sync.Mutex
	lastStatsLog time.Time
}

func newGormLogger(level string, log *slog.Logger) *gormSlogger {
	return &gormSlogger{logger: log, level: parseGormLevel(level)}
}

func parseGormLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// SetSQLDB wires the pool handle used for contention stats. Call after
// opening the connection.
func (l *gormSlogger) SetSQLDB(db *sql.DB) {
	l.sqlDB = db
}

func (l *gormSlogger) LogMode(level logger.LogLevel) logger.Interface {
	return &gormSlogger{logger: l.logger, level: level, sqlDB: l.sqlDB}
}

func (l *gormSlogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Info {
		l.logger.InfoContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *gormSlogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Warn {
		l.logger.WarnContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *gormSlogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= logger.Error {
		l.logger.ErrorContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (l *gormSlogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	isError := err != nil
	isSlow := elapsed > slowQueryThreshold

	// fc() interpolates the full SQL string, which is expensive. Skip
	// it entirely when the line would be filtered anyway.
	var willLog bool
	switch {
	case isError && l.level >= logger.Error:
		willLog = true
	case isSlow && l.level >= logger.Warn:
		willLog = l.logger.Enabled(ctx, slog.LevelWarn)
	case l.level >= logger.Info:
		willLog = l.logger.Enabled(ctx, slog.LevelDebug)
	}
	if !willLog {
		return
	}

	sqlStr, rows := fc()

	switch {
	case isError:
		errStr := err.Error()
		errType := classifyError(errStr)
		if errType == "SQLITE_BUSY" {
			l.logPoolStats()
		}
		l.logger.ErrorContext(ctx, "database error",
			slog.String("error_type", errType),
			slog.String("sql", truncateSQL(sqlStr)),
			slog.Int64("rows", rows),
			slog.Duration("elapsed", elapsed),
			slog.String("error", errStr),
		)
	case isSlow:
		l.logger.WarnContext(ctx, "slow query",
			slog.String("sql", truncateSQL(sqlStr)),
			slog.Int64("rows", rows),
			slog.Duration("elapsed", elapsed),
		)
	default:
		l.logger.DebugContext(ctx, "database query",
			slog.String("sql", truncateSQL(sqlStr)),
			slog.Int64("rows", rows),
			slog.Duration("elapsed", elapsed),
		)
	}
}

// classifyError tags common failure modes for log filtering.
func classifyError(errStr string) string {
	switch {
	case strings.Contains(errStr, "database is locked"):
		return "SQLITE_BUSY"
	case strings.Contains(errStr, "context canceled"):
		return "CONTEXT_CANCELED"
	case strings.Contains(errStr, "context deadline exceeded"):
		return "TIMEOUT"
	case strings.Contains(errStr, "record not found"):
		return "NOT_FOUND"
	default:
		return "OTHER"
	}
}

// logPoolStats logs pool stats when lock contention shows up, at most
// once per minute.
func (l *gormSlogger) logPoolStats() {
	if l.sqlDB == nil {
		return
	}

	l.statsMu.Lock()
	defer l.statsMu.Unlock()

	if time.Since(l.lastStatsLog) < time.Minute {
		return
	}
	l.lastStatsLog = time.Now()

	stats := l.sqlDB.Stats()
	l.logger.Warn("SQLite connection pool stats (on lock contention)",
		slog.Int("max_open_conns", stats.MaxOpenConnections),
		slog.Int("open_conns", stats.OpenConnections),
		slog.Int("in_use", stats.InUse),
		slog.Int("idle", stats.Idle),
		slog.Int64("wait_count", stats.WaitCount),
		slog.String("wait_duration", stats.WaitDuration.String()),
	)
}

func truncateSQL(sql string) string {
	if len(sql) <= maxSQLLogLength {
		return sql
	}
	return sql[:maxSQLLogLength] + "... (truncated)"
}
