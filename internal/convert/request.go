// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MKV Convertor - MKV 转 MP4 转换工具

package convert

import "fmt"

// Request 一次转换的输入与输出
type Request struct {
	Input  string
	Output string
}

// Validate rejects empty paths and converting a file onto itself.
func (r Request) Validate() error {
	if r.Input == "" || r.Output == "" || r.Input == r.Output {
		return &Error{Kind: InvalidConfiguration, Err: ErrInvalidConfiguration}
	}
	return nil
}

// Outcome is the terminal result of a run. A nil Err means success.
type Outcome struct {
	Err error
}

// Success returns a successful Outcome
func Success() Outcome {
	return Outcome{}
}

// Failure returns a failed Outcome. A nil err is reported as ErrFailed.
func Failure(err error) Outcome {
	if err == nil {
		err = ErrFailed
	}
	return Outcome{Err: err}
}

// OK reports whether the run succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Reason is the failure message, empty on success.
func (o Outcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	if msg := o.Err.Error(); msg != "" {
		return msg
	}
	return ErrFailed.Error()
}

func (o Outcome) String() string {
	if o.OK() {
		return "success"
	}
	return fmt.Sprintf("failure: %s", o.Reason())
}

// ProgressState is what the worker knows about a run in flight.
type ProgressState struct {
	Duration    int
	HasDuration bool
	Position    int
	Percent     int
}
