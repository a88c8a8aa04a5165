// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options for New. An empty File logs to stdout only.
type Options struct {
	Level      string
	File       string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// New returns a logrus logger writing to stdout and, when configured, a
// rotated log file. Unknown levels fall back to info.
func New(opts Options) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if opts.File == "" {
		return logger
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
		logger.WithError(err).Warn("Failed to create log directory, logging to stdout only")
		return logger
	}

	logger.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    withDefault(opts.MaxSize, 100),
		MaxBackups: withDefault(opts.MaxBackups, 7),
		MaxAge:     withDefault(opts.MaxAge, 30),
		Compress:   true,
	}))

	return logger
}

func withDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
