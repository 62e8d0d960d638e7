// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MKV Convertor - MKV 转 MP4 转换工具

package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"
)

// Logger provides a simple logging interface
type Logger interface {
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
	Named(name string) Logger
}

// Options 日志选项
type Options struct {
	Level  string
	JSON   bool
	Output io.Writer
}

type defaultLogger struct {
	hc hclog.Logger
}

// New returns a Logger named prefix that writes to stderr at info level.
func New(prefix string) Logger {
	return NewWithOptions(prefix, Options{})
}

// NewWithOptions builds an hclog-backed Logger.
func NewWithOptions(prefix string, opts Options) Logger {
	level := hclog.LevelFromString(opts.Level)
	if level == hclog.NoLevel {
		level = hclog.Info
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	return &defaultLogger{hc: hclog.New(&hclog.LoggerOptions{
		Name:       prefix,
		Level:      level,
		Output:     out,
		JSONFormat: opts.JSON,
	})}
}

// NewNull returns a Logger that discards everything.
func NewNull() Logger {
	return &defaultLogger{hc: hclog.NewNullLogger()}
}

func (l *defaultLogger) Info(format string, args ...interface{}) {
	l.hc.Info(fmt.Sprintf(format, args...))
}

func (l *defaultLogger) Error(format string, args ...interface{}) {
	l.hc.Error(fmt.Sprintf(format, args...))
}

func (l *defaultLogger) Debug(format string, args ...interface{}) {
	if !l.hc.IsDebug() {
		return
	}
	l.hc.Debug(fmt.Sprintf(format, args...))
}

func (l *defaultLogger) Named(name string) Logger {
	return &defaultLogger{hc: l.hc.Named(name)}
}
