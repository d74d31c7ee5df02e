// Package observability builds the process-wide structured logger.
package observability

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"

	"github.com/contextwizard/wizardd/internal/config"
)

// NewLogger constructs a zap logger from config. Format "auto" picks the
// human console encoder when stderr is a terminal and JSON otherwise, so
// interactive runs stay readable while deployments emit machine-parseable
// lines.
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(levelOrDefault(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}

	format := cfg.Format
	if format == "" || format == "auto" {
		if term.IsTerminal(int(os.Stderr.Fd())) {
			format = "human"
		} else {
			format = "json"
		}
	}

	var encoder zapcore.Encoder
	switch format {
	case "human":
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	case "json":
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)
	return zap.New(core, zap.AddCaller()), nil
}

func levelOrDefault(level string) string {
	if level == "" {
		return "info"
	}
	return level
}
