// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MKV Convertor - MKV 转 MP4 转换工具

package convert

import "errors"

var (
	ErrInvalidConfiguration = errors.New("invalid I/O configuration")
	ErrFailed               = errors.New("failed")
	ErrCancelled            = errors.New("cancelled")
)

// Kind classifies why a run failed
type Kind int

const (
	InvalidConfiguration Kind = iota + 1
	SpawnFailure
	ProcessFailure
	StreamReadFailure
	Cancelled
	Stale
)

func (k Kind) String() string {
	switch k {
	case InvalidConfiguration:
		return "invalid_configuration"
	case SpawnFailure:
		return "spawn_failure"
	case ProcessFailure:
		return "process_failure"
	case StreamReadFailure:
		return "stream_read_failure"
	case Cancelled:
		return "cancelled"
	case Stale:
		return "stale"
	}
	return "unknown"
}

// Error is a failed run. Its message is the underlying error's message.
type Error struct {
	Kind Kind
	Err  error
	// ExitCode is set for ProcessFailure, -1 if ffmpeg was killed by a signal.
	ExitCode int
}

func (e *Error) Error() string {
	if e.Err == nil {
		return ErrFailed.Error()
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or 0 if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
