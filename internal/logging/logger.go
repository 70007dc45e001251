// Package logging builds the zap logger shared by the server, the
// services and the queue consumer.
package logging

import (
	"os"
	"strings"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the level, the encoder and an optional rotating file.
type Config struct {
	Level    string
	Dev      bool
	File     string        // base path of the log file; empty logs to stdout only
	Rotation time.Duration // how often a new file is started
	MaxAge   time.Duration // how long rotated files are kept
}

// ConfigFromEnv reads LOG_LEVEL, LOG_DEV, LOG_FILE, LOG_ROTATION and LOG_MAX_AGE.
func ConfigFromEnv() Config {
	dev := os.Getenv("LOG_DEV") == "1"
	lvl := os.Getenv("LOG_LEVEL")
	if lvl == "" {
		if dev {
			lvl = "debug"
		} else {
			lvl = "info"
		}
	}
	return Config{
		Level:    lvl,
		Dev:      dev,
		File:     os.Getenv("LOG_FILE"),
		Rotation: durFromEnv("LOG_ROTATION", 24*time.Hour),
		MaxAge:   durFromEnv("LOG_MAX_AGE", 7*24*time.Hour),
	}
}

func durFromEnv(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return def
}

func levelFromString(l string) zapcore.Level {
	switch strings.ToLower(l) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New initializes a *zap.Logger.  Development mode uses zap's console
// config.  Otherwise JSON lines with ISO8601 timestamps go to stdout and,
// when cfg.File is set, to a file rotated by rotatelogs.
func New(cfg Config) (*zap.Logger, error) {
	lvl := levelFromString(cfg.Level)
	if cfg.Dev {
		c := zap.NewDevelopmentConfig()
		c.Level = zap.NewAtomicLevelAt(lvl)
		return c.Build()
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	sink := zapcore.AddSync(os.Stdout)
	if cfg.File != "" {
		rl, err := rotatelogs.New(
			cfg.File+".%Y%m%d%H%M",
			rotatelogs.WithLinkName(cfg.File),
			rotatelogs.WithRotationTime(cfg.Rotation),
			rotatelogs.WithMaxAge(cfg.MaxAge),
		)
		if err != nil {
			return nil, err
		}
		sink = zapcore.NewMultiWriteSyncer(sink, zapcore.AddSync(rl))
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), sink, lvl)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}
