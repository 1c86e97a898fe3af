package main

import (
	"ckg/internal/config"
	"ckg/internal/logging"
)

// newLogger builds the command logger. JSON output keeps logs on stderr
// in JSON too, so the two streams stay machine-readable together.
func newLogger(cfg *config.Config, outputFormat string) *logging.Logger {
	format := logging.HumanFormat
	if outputFormat == "json" || cfg.Logging.Format == "json" {
		format = logging.JSONFormat
	}
	return logging.NewLogger(logging.Config{
		Format: format,
		Level:  logging.ParseLevel(cfg.Logging.Level),
	})
}
