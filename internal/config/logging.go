package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// LevelOff disables logging.
const LevelOff = "off"

// ParseLogLevel maps a configured level name to a logrus level. "off"
// reports PanicLevel, the quietest.
func ParseLogLevel(s string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case LevelOff, "none":
		return log.PanicLevel, nil
	case "error":
		return log.ErrorLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "info":
		return log.InfoLevel, nil
	case "debug":
		return log.DebugLevel, nil
	default:
		return log.ErrorLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// NewLogger builds a logger from the logging section. The returned closer
// releases the log file.
func NewLogger(cfg LoggingConfig) (*log.Logger, io.Closer, error) {
	logger := log.New()
	closer, err := Configure(logger, cfg)
	if err != nil {
		return nil, nil, err
	}
	return logger, closer, nil
}

// Configure applies the logging section to logger, typically
// log.StandardLogger(). Output never goes to stdout, which carries the
// message channel of the host.
func Configure(logger *log.Logger, cfg LoggingConfig) (io.Closer, error) {
	level, err := ParseLogLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)
	if strings.EqualFold(cfg.Format, "json") {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true, DisableColors: true})
	}

	if level == log.PanicLevel {
		logger.SetOutput(io.Discard)
		return nopCloser{}, nil
	}
	if cfg.File == "" {
		logger.SetOutput(os.Stderr)
		return nopCloser{}, nil
	}

	path := ExpandHome(cfg.File)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // G304: path comes from configuration
	if err != nil {
		return nil, err
	}
	logger.SetOutput(f)
	return f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
