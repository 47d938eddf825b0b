// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package log implements leveled logging for network evaluation on
// top of Go's standard log package. Evaluators write a transcript of
// their work (function invocations, buffer moves and copies, per-call
// summaries) through a *Logger; a nil *Logger discards everything so
// that library users pay nothing unless they ask for a transcript.
//
// As with the standard log package, this package defines a standard
// logger available as a package global and via package functions.
package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Level defines the level of logging. Higher levels are more
// verbose.
type Level int

const (
	// OffLevel turns logging off.
	OffLevel Level = iota
	// ErrorLevel outputs only error messages.
	ErrorLevel
	// InfoLevel outputs one summary line per evaluation call.
	InfoLevel
	// DebugLevel outputs the full evaluation transcript.
	DebugLevel
)

// String returns the configuration name of the level.
func (l Level) String() string {
	switch l {
	case OffLevel:
		return "off"
	case ErrorLevel:
		return "error"
	case InfoLevel:
		return "info"
	case DebugLevel:
		return "debug"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel parses a level name as rendered by Level.String.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "off", "none":
		return OffLevel, nil
	case "error":
		return ErrorLevel, nil
	case "", "info":
		return InfoLevel, nil
	case "debug":
		return DebugLevel, nil
	}
	return OffLevel, fmt.Errorf("unknown log level %q", s)
}

// An Outputter receives published log messages. Go's
// *log.Logger implements Outputter.
type Outputter interface {
	Output(calldepth int, s string) error
}

type multiOutputter []Outputter

func (m multiOutputter) Output(calldepth int, s string) error {
	var err error
	for _, out := range m {
		if err1 := out.Output(calldepth, s); err1 != nil {
			err = err1
		}
	}
	return err
}

// MultiOutputter returns an Outputter that outputs each
// message to all the provided outputters.
func MultiOutputter(outputters ...Outputter) Outputter {
	return multiOutputter(outputters)
}

// WriterOutputter returns an Outputter that writes standard-library
// formatted lines (with timestamps) to w.
func WriterOutputter(w io.Writer) Outputter {
	return log.New(w, "", log.LstdFlags)
}

// A Logger receives log messages at multiple levels, and publishes
// those messages to its outputter if the level (or logger) is
// active. Nil Loggers ignore all log messages.
type Logger struct {
	// Outputter receives all log messages at or below the Logger's
	// current level.
	Outputter
	// Level defines the publishing level of this Logger.
	Level Level

	parent *Logger
	prefix string
}

// New creates a new Logger that publishes messages at or below the
// provided level to the provided outputter.
func New(out Outputter, level Level) *Logger {
	if level == OffLevel {
		return nil
	}
	return &Logger{
		Outputter: out,
		Level:     level,
	}
}

// Print publishes fmt.Sprint(v...) at InfoLevel.
func (l *Logger) Print(v ...interface{}) {
	l.publish(2, InfoLevel, "", sprint(v))
}

// Printf publishes fmt.Sprintf(format, args...) at InfoLevel.
func (l *Logger) Printf(format string, args ...interface{}) {
	l.publish(2, InfoLevel, "", sprintf(format, args))
}

// Error publishes fmt.Sprint(v...) at ErrorLevel.
func (l *Logger) Error(v ...interface{}) {
	l.publish(2, ErrorLevel, "", sprint(v))
}

// Errorf publishes fmt.Sprintf(format, args...) at ErrorLevel.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.publish(2, ErrorLevel, "", sprintf(format, args))
}

// Debug publishes fmt.Sprint(v...) at DebugLevel.
func (l *Logger) Debug(v ...interface{}) {
	l.publish(2, DebugLevel, "", sprint(v))
}

// Debugf publishes fmt.Sprintf(format, args...) at DebugLevel. The
// evaluation transcript is written with Debugf.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.publish(2, DebugLevel, "", sprintf(format, args))
}

// At tells whether the logger is at or below the provided level.
// Callers use At to avoid building expensive transcript lines.
func (l *Logger) At(level Level) bool {
	return l != nil && level <= l.Level
}

// publish walks the chain of tee'd loggers, rendering the message at
// most once and only if some logger in the chain is at level.
func (l *Logger) publish(calldepth int, level Level, prefix string, msg func() string) {
	var rendered string
	for ; l != nil; l = l.parent {
		if l.Outputter != nil && level <= l.Level {
			if rendered == "" {
				rendered = msg()
			}
			l.Output(calldepth+1, prefix+rendered)
		}
		prefix = l.prefix + prefix
	}
}

func sprint(v []interface{}) func() string {
	return func() string { return fmt.Sprint(v...) }
}

func sprintf(format string, args []interface{}) func() string {
	return func() string { return fmt.Sprintf(format, args...) }
}

// Tee constructs a new logger that tees its output to the provided
// outputter and parent logger. Messages sent to the parent are
// prefixed with the provided prefix string. Out may be nil, in which
// cases messages are published to the parent only. Evaluators use Tee
// to tag transcript lines with the name of the evaluated network.
func (l *Logger) Tee(out Outputter, prefix string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{
		Outputter: out,
		Level:     l.Level,
		parent:    l,
		prefix:    prefix,
	}
}

// Std is the standard logger.
var Std = New(log.New(os.Stderr, "", log.LstdFlags), InfoLevel)

// The following functions publish to Std, which may be replaced,
// for example by a command once its configuration is known.

// Print formats a message in the manner of fmt.Print and publishes it
// to Std at InfoLevel.
func Print(v ...interface{}) { Std.publish(2, InfoLevel, "", sprint(v)) }

// Printf formats a message in the manner of fmt.Printf and publishes
// it to Std at InfoLevel.
func Printf(format string, args ...interface{}) { Std.publish(2, InfoLevel, "", sprintf(format, args)) }

// Errorf formats a message in the manner of fmt.Printf and publishes
// it to Std at ErrorLevel.
func Errorf(format string, args ...interface{}) { Std.publish(2, ErrorLevel, "", sprintf(format, args)) }

// Debugf formats a message in the manner of fmt.Printf and publishes
// it to Std at DebugLevel.
func Debugf(format string, args ...interface{}) { Std.publish(2, DebugLevel, "", sprintf(format, args)) }

// At tells whether Std is at or below the provided level.
func At(level Level) bool { return Std.At(level) }

// Fatal formats a message in the manner of fmt.Print, outputs it to
// Std's outputter, or standard error if Std is off, and then calls
// os.Exit(1).
func Fatal(v ...interface{}) {
	fatal(fmt.Sprint(v...))
}

// Fatalf formats a message in the manner of fmt.Printf, outputs it in
// the manner of Fatal, and then calls os.Exit(1).
func Fatalf(format string, v ...interface{}) {
	fatal(fmt.Sprintf(format, v...))
}

func fatal(s string) {
	if Std != nil && Std.Outputter != nil {
		Std.Output(3, s)
	} else {
		fmt.Fprintln(os.Stderr, s)
	}
	os.Exit(1)
}
