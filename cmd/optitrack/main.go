package main

import (
	"fmt"
	"os"

	"optitrack/config"
	"optitrack/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Options{
		Level: cfg.LogLevel,
		File:  cfg.LogFile,
	})

	if err := newRootCmd(cfg, logger).Execute(); err != nil {
		logger.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}
