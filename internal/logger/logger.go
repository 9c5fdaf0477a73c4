// Package logger centralizes structured logging setup so every part of the
// service logs through one configured slog.Logger. Level and output format
// are controlled by environment variables (LOG_LEVEL, LOG_FORMAT).
//
// Go Learning Note — log/slog:
// slog is the structured logging package added to the standard library in
// Go 1.21. Unlike the old log package it emits key-value pairs
// (logger.Info("rebuilt", "features", n)) that downstream tooling can parse.
// Handlers decide the wire format: TextHandler for humans, JSONHandler for
// log aggregation.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

var defaultLogger *slog.Logger

// Setup initializes the process-wide logger from the environment and returns
// it. Output goes to standard error; file handles and shipping are left to
// the deployment environment.
func Setup() *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}

	var h slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		h = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	} else {
		h = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	}

	defaultLogger = slog.New(h)
	return defaultLogger
}

// L returns the default logger, initializing it on first use.
func L() *slog.Logger {
	if defaultLogger == nil {
		return Setup()
	}
	return defaultLogger
}
