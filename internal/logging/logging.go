// Package logging wraps the standard library logger with component-prefixed
// loggers, matching the "subsystem: message" convention used throughout
// internal/httpclient and internal/indexer/fetch.
package logging

import (
	"log"
	"os"
	"time"

	"github.com/dustin/go-humanize"
)

// Logger prefixes every line with its component name.
type Logger struct {
	prefix string
	std    *log.Logger
}

// For returns a logger prefixed with component, writing to stderr.
func For(component string) *Logger {
	return &Logger{
		prefix: component,
		std:    log.New(os.Stderr, "", log.LstdFlags),
	}
}

func (l *Logger) Printf(format string, args ...any) {
	l.std.Printf(l.prefix+": "+format, args...)
}

func (l *Logger) Println(args ...any) {
	all := append([]any{l.prefix + ":"}, args...)
	l.std.Println(all...)
}

// Bytes renders n as a human-readable byte count, e.g. "4.2 MB", for use in
// download-size and throughput log lines.
func Bytes(n int64) string {
	return humanize.Bytes(uint64(n))
}

// RelTime renders a human-readable relative time, e.g. "3 hours ago", for
// use in next-check-at and last-probed log lines.
func RelTime(t time.Time) string {
	return humanize.Time(t)
}
