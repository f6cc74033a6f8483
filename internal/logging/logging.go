// Package logging builds the zap loggers used by the binaries.
package logging

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the level and the encoder.
type Config struct {
	Level       string `env:"LOG_LEVEL" envDefault:"info"`
	Development bool   `env:"LOG_DEV" envDefault:"false"`
	// Output defaults to stdout.
	Output io.Writer
}

// ParseLevel maps a level name to zap. Unknown names fall back to info.
func ParseLevel(l string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New returns a console logger in development mode and a JSON logger with
// ISO8601 timestamps otherwise.
func New(cfg Config) *zap.Logger {
	lvl := ParseLevel(cfg.Level)
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	var encoder zapcore.Encoder
	if cfg.Development {
		encoderCfg := zap.NewDevelopmentEncoderConfig()
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoderCfg := zap.NewProductionEncoderConfig()
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(out), lvl)
	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}
	return zap.New(core, opts...)
}
