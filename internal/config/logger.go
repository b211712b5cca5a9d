package config

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/drug-conflict-mcp-server/internal/domain"
)

// NewLogger builds a logrus logger from the logging configuration.
// Unknown levels fall back to info. Output goes to stderr so stdio transports stay clean.
func NewLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(cfg.Format, "text") {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	return logger
}
