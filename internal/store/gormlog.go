package store

import (
	"context"
	"time"

	glog "gorm.io/gorm/logger"

	"pageguard/internal/ctxkeys"
	"pageguard/internal/logger"
)

// GormLogger 自定义GORM logger实现
type GormLogger struct {
	logger.Logger
	LogLevel glog.LogLevel
}

// NewGormLogger 创建新的GormLogger实例
func NewGormLogger(l logger.Logger) *GormLogger {
	return &GormLogger{
		Logger:   l,
		LogLevel: glog.Warn,
	}
}

// LogMode 设置日志级别
func (l *GormLogger) LogMode(level glog.LogLevel) glog.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

// Info 打印info级别日志
func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= glog.Info {
		l.Logger.Info(msg, append([]any{"traceId", ctx.Value(ctxkeys.TraceIDKey{})}, data...)...)
	}
}

// Warn 打印warn级别日志
func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= glog.Warn {
		l.Logger.Warn(msg, append([]any{"traceId", ctx.Value(ctxkeys.TraceIDKey{})}, data...)...)
	}
}

// Error 打印error级别日志
func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= glog.Error {
		l.Logger.Err(nil, msg, append([]any{"traceId", ctx.Value(ctxkeys.TraceIDKey{})}, data...)...)
	}
}

// Trace 打印SQL日志
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= glog.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []any{
		"traceId", ctx.Value(ctxkeys.TraceIDKey{}),
		"sql", sql,
		"rows", rows,
		"timeMs", float64(elapsed.Nanoseconds()) / 1e6,
	}
	switch {
	case err != nil && l.LogLevel >= glog.Error:
		l.Logger.Err(err, "SQL执行错误", fields...)
	case elapsed > time.Second && l.LogLevel >= glog.Warn:
		l.Logger.Warn("慢SQL查询", append(fields, "threshold", "1s")...)
	case l.LogLevel == glog.Info:
		l.Logger.Debug("SQL执行", fields...)
	}
}
