package logger

import (
	"io"
	"log"
	"os"
)

type Logger struct {
	out       *log.Logger
	err       *log.Logger
	debugging bool
}

// New builds a logger writing info/debug lines to stdout and errors to
// stderr. Debug lines are emitted only when LOG_DEBUG is set.
func New(stdout, stderr io.Writer) *Logger {
	return &Logger{
		out:       log.New(stdout, "", log.Ldate|log.Ltime|log.Lshortfile),
		err:       log.New(stderr, "", log.Ldate|log.Ltime|log.Lshortfile),
		debugging: os.Getenv("LOG_DEBUG") != "",
	}
}

func (l *Logger) Info(format string, v ...interface{}) {
	l.out.Printf("INFO: "+format, v...)
}

func (l *Logger) Error(format string, v ...interface{}) {
	l.err.Printf("ERROR: "+format, v...)
}

func (l *Logger) Debug(format string, v ...interface{}) {
	if !l.debugging {
		return
	}
	l.out.Printf("DEBUG: "+format, v...)
}

func (l *Logger) Fatal(format string, v ...interface{}) {
	l.err.Printf("FATAL: "+format, v...)
	os.Exit(1)
}

var std = New(os.Stdout, os.Stderr)

// Package-level convenience wrappers around the default logger.
func Info(format string, v ...interface{})  { std.Info(format, v...) }
func Error(format string, v ...interface{}) { std.Error(format, v...) }
func Debug(format string, v ...interface{}) { std.Debug(format, v...) }
func Fatal(format string, v ...interface{}) { std.Fatal(format, v...) }
