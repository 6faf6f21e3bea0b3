// Package logging wraps the standard logger with level prefixes and an
// optional rotating log file.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger prefixes messages with a level tag. Info messages are only written
// when Verbose is set. A nil *Logger discards everything.
type Logger struct {
	out     *log.Logger
	verbose bool
}

// New returns a Logger writing to w. If w is nil, os.Stderr is used.
func New(w io.Writer, verbose bool) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{
		out:     log.New(w, "", log.LstdFlags|log.Lshortfile),
		verbose: verbose,
	}
}

// NewWithFile tees log output to stderr and a size-rotated file. The returned
// closer releases the file; it is a no-op when path is empty.
func NewWithFile(path string, verbose bool) (*Logger, io.Closer) {
	if path == "" {
		return New(os.Stderr, verbose), nopCloser{}
	}
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    20, // megabytes
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	}
	return New(io.MultiWriter(os.Stderr, file), verbose), file
}

// Discard returns a Logger that writes nowhere.
func Discard() *Logger {
	return New(io.Discard, false)
}

func (l *Logger) Verbose() bool {
	return l != nil && l.verbose
}

func (l *Logger) Infof(format string, args ...interface{}) {
	if !l.Verbose() {
		return
	}
	l.emit("[INFO] ", format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.emit("[WARN] ", format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.emit("[ERROR] ", format, args...)
}

func (l *Logger) emit(prefix, format string, args ...interface{}) {
	if l == nil || l.out == nil {
		return
	}
	// depth 3: emit -> Infof/Warnf/Errorf -> caller
	_ = l.out.Output(3, prefix+fmt.Sprintf(format, args...))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
