package pointstore

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
)

// Logger wraps slog.Logger with pointstore-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// WithCloud adds the cloud name to the logger.
func (l *Logger) WithCloud(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("cloud", name),
	}
}

// LogIngest logs an ingestion.
func (l *Logger) LogIngest(ctx context.Context, name string, res IngestResult, err error) {
	if err != nil {
		l.ErrorContext(ctx, "ingest failed",
			"cloud", name,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "ingest completed",
		"cloud", name,
		"dataset", res.DatasetID,
		"points", res.Points,
		"nodes", res.Nodes,
		"leaves", res.Leaves,
		"depth", res.Depth,
		"size", humanize.IBytes(uint64(res.Bytes)),
		"duration", res.Duration,
	)
}

// LogOpen logs opening a cloud.
func (l *Logger) LogOpen(ctx context.Context, name string, info Info, err error) {
	if err != nil {
		l.ErrorContext(ctx, "open failed",
			"cloud", name,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "cloud opened",
		"cloud", name,
		"dataset", info.DatasetID,
		"points", info.Points,
		"nodes", info.Nodes,
		"size", humanize.IBytes(uint64(info.Size)),
	)
}

// LogQuery logs a finished query.
func (l *Logger) LogQuery(ctx context.Context, stats *Stats, d time.Duration, err error) {
	if err != nil {
		l.WarnContext(ctx, "query ended with error",
			"returned", stats.Returned,
			"decoded", stats.Decoded,
			"failed", stats.Failed,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "query completed",
		"visited", stats.Visited,
		"pruned", stats.Pruned,
		"decoded", stats.Decoded,
		"cache_hits", stats.CacheHits,
		"bytes_read", humanize.IBytes(uint64(stats.BytesRead)),
		"returned", stats.Returned,
		"duration", d,
	)
}
