package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/tracelog"
	"go.uber.org/zap"
)

// Connect opens a single PostgreSQL connection and verifies it with a ping.
// The caller owns the connection and must close it.
func Connect(ctx context.Context, cfg Config, logger *zap.Logger) (*pgx.Conn, error) {
	connURL, err := cleanURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	connCfg, err := pgx.ParseConfig(connURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection config: %w", err)
	}
	if cfg.User != "" {
		connCfg.User = cfg.User
	}
	if cfg.Password != "" {
		connCfg.Password = cfg.Password
	}

	if cfg.QueryLog {
		connCfg.Tracer = &tracelog.TraceLog{
			Logger:   NewQueryLogger(logger),
			LogLevel: tracelog.LogLevelDebug,
		}
	}

	conn, err := pgx.ConnectConfig(ctx, connCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", connCfg.Host, err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("ping %s: %w", connCfg.Host, err)
	}

	return conn, nil
}

// cleanURL accepts JDBC style URLs as well as libpq URLs and keyword/value DSNs
func cleanURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("url cannot be empty")
	}

	raw = strings.TrimPrefix(raw, "jdbc:")

	// keyword/value DSN, e.g. "host=localhost dbname=app"
	if !strings.Contains(raw, "://") {
		if !strings.Contains(raw, "=") {
			return "", fmt.Errorf("url %q is neither a URL nor a keyword/value DSN", raw)
		}
		return raw, nil
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("failed to parse url: %w", err)
	}

	switch parsed.Scheme {
	case "postgres", "postgresql":
	default:
		return "", fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}

	return parsed.String(), nil
}

// queryLogger forwards pgx trace events to zap
type queryLogger struct {
	logger *zap.Logger
}

// NewQueryLogger adapts a zap logger to pgx's tracelog.Logger
func NewQueryLogger(logger *zap.Logger) tracelog.Logger {
	return &queryLogger{logger: logger.Named("sql")}
}

func (l *queryLogger) Log(_ context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	fields := make([]zap.Field, 0, len(data))
	for k, v := range data {
		fields = append(fields, zap.Any(k, v))
	}

	switch level {
	case tracelog.LogLevelError:
		l.logger.Error(msg, fields...)
	case tracelog.LogLevelWarn:
		l.logger.Warn(msg, fields...)
	case tracelog.LogLevelInfo:
		l.logger.Info(msg, fields...)
	default:
		l.logger.Debug(msg, fields...)
	}
}
