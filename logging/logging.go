// Package logging builds the operational zap logger and the append-only
// activity log that records every client interaction.
package logging

import (
	"fmt"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/moshix/searchserver/config"
)

// Component names attached to loggers.
const (
	CompServer  = "server"
	CompSession = "session"
	CompSearch  = "search"
	CompSSH     = "ssh"
	CompMetrics = "metrics"
)

// activityTimeLayout matches the timestamp format of the legacy server.log.
const activityTimeLayout = "2006-01-02 15:04:05"

// New creates the operational logger. json uses the production encoder,
// console uses the colored development encoder. When quiet is set, nothing
// is written to the console (the dashboard owns the terminal).
func New(cfg config.LoggingConfig, quiet bool) (*zap.Logger, error) {
	var zcfg zap.Config
	switch cfg.Format {
	case "json":
		zcfg = zap.NewProductionConfig()
	case "console", "":
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	if cfg.Level != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}

	if quiet {
		return zap.NewNop(), nil
	}

	l, err := zcfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}

// Activity is the append-only interaction log. Entries are written to a
// rotating file and mirrored into the operational logger.
type Activity struct {
	*zap.Logger
	closer io.Closer
}

// NewActivity opens the activity log described by cfg. The returned logger
// tees every entry into base so activity also appears on the console.
func NewActivity(cfg config.LoggingConfig, base *zap.Logger) *Activity {
	w := &lumberjack.Logger{
		Filename:   cfg.ActivityFile,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	return newActivity(zapcore.AddSync(w), w, base)
}

// NewActivityWriter builds an activity log on an arbitrary writer.
func NewActivityWriter(w io.Writer, base *zap.Logger) *Activity {
	var closer io.Closer
	if c, ok := w.(io.Closer); ok {
		closer = c
	}
	return newActivity(zapcore.AddSync(w), closer, base)
}

func newActivity(ws zapcore.WriteSyncer, closer io.Closer, base *zap.Logger) *Activity {
	encCfg := zapcore.EncoderConfig{
		TimeKey:          "ts",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       zapcore.TimeEncoderOfLayout(activityTimeLayout),
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " - ",
	}
	fileCore := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), ws, zapcore.InfoLevel)

	core := fileCore
	if base != nil {
		core = zapcore.NewTee(fileCore, base.Core())
	}
	return &Activity{
		Logger: zap.New(core).Named("activity"),
		closer: closer,
	}
}

// Close flushes and closes the underlying file.
func (a *Activity) Close() error {
	_ = a.Sync()
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// Peer returns a child logger bound to one connection.
func (a *Activity) Peer(peer, sessionID string) *zap.Logger {
	return a.With(zap.String("peer", peer), zap.String("session", sessionID))
}
