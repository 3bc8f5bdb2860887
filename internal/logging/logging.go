/*
 * Copyright (c) DNS TAPIR
 */

// Package logging builds the one *log.Logger the rest of the repository
// shares, rotated the way tapir/logging.go rotates the daemon's log.
package logging

import (
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dnstapir/rpzindex/rpz"
)

// New builds a *log.Logger writing to logfile with rotation, or to
// stderr if logfile is empty (useful for CLI subcommands that should
// not silently write a log file next to whatever the operator ran from).
func New(logfile string) *log.Logger {
	if logfile == "" {
		return log.New(os.Stderr, "", log.LstdFlags)
	}
	return log.New(&lumberjack.Logger{
		Filename:   logfile,
		MaxSize:    20,
		MaxBackups: 3,
		MaxAge:     14,
	}, "", log.LstdFlags)
}

// Sink adapts a *log.Logger into the rpz.LogFunc sink the index expects,
// per SPEC_FULL.md §10.2: rpz never holds a process-wide logger itself.
func Sink(l *log.Logger) rpz.LogFunc {
	return func(level rpz.Level, category, msg string) {
		l.Printf("[%s] %s: %s", level, category, msg)
	}
}
