// Package logging provides the bracketed-component logger used across
// the service, the same idiom the rest of the stack logs with
// ([LOCK], [RATELIMIT], [HISTORY_TRACKER] style tags).
package logging

import (
	"log"
	"os"
)

// Logger prefixes every line with a component tag.
type Logger struct {
	tag string
	std *log.Logger
}

// New returns a Logger that prefixes every line with "[TAG] ".
func New(component string) *Logger {
	return &Logger{
		tag: "[" + component + "] ",
		std: log.New(os.Stderr, "", log.LstdFlags),
	}
}

func (l *Logger) Printf(format string, args ...interface{}) {
	l.std.Printf(l.tag+format, args...)
}

func (l *Logger) Println(args ...interface{}) {
	l.std.Println(append([]interface{}{l.tag}, args...)...)
}

// Fatal logs and then exits the process with status 1, for
// unrecoverable startup failures (cmd/server's NewServer/Run).
func (l *Logger) Fatal(args ...interface{}) {
	l.std.Fatal(append([]interface{}{l.tag}, args...)...)
}
