// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MKV Convertor - MKV 转 MP4 转换工具

package app

import (
	"fmt"
	"time"
)

// Level of an activity entry
type Level string

const (
	LevelSuccess Level = "SUCCESS"
	LevelError   Level = "ERROR"
	LevelInfo    Level = "INFO"
	LevelProcess Level = "PROCESS"
)

// Entry 活动日志条目
type Entry struct {
	Time    time.Time `json:"time"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
}

func (e Entry) String() string {
	return fmt.Sprintf("[%s] %-8s | %s", e.Time.Format("15:04:05"), e.Level, e.Message)
}

// Job is a submitted conversion
type Job struct {
	ID         string    `json:"id"`
	Input      string    `json:"input"`
	Output     string    `json:"output"`
	InputBytes int64     `json:"input_bytes"`
	StartedAt  time.Time `json:"started_at"`
}

// Board is what a front end shows about the converter.
type Board struct {
	Status  string `json:"status"`
	Busy    bool   `json:"busy"`
	Percent int    `json:"percent"`
	Job     *Job   `json:"job,omitempty"`
	// Last is the reason of the last failed run, empty after a success.
	Last   string  `json:"last_error,omitempty"`
	CPU    float64 `json:"cpu_percent"`
	Memory uint64  `json:"memory_bytes"`
}

const (
	statusReady      = "Ready"
	statusStarting   = "Starting conversion..."
	statusCompleted  = "Completed"
	statusFailed     = "Failed"
	statusConverting = "Converting... %d%%"
)

// activity is a bounded log, oldest entries are dropped first.
type activity struct {
	entries []Entry
	max     int
}

func newActivity(max int) *activity {
	if max <= 0 {
		max = 200
	}
	return &activity{max: max}
}

func (a *activity) add(e Entry) {
	if len(a.entries) == a.max {
		copy(a.entries, a.entries[1:])
		a.entries = a.entries[:a.max-1]
	}
	a.entries = append(a.entries, e)
}

func (a *activity) list() []Entry {
	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	return out
}
