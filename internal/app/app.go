// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MKV Convertor - MKV 转 MP4 转换工具
//
// Package app is the conversion service behind the HTTP API, the watch folder
// and the CLI. Everything it shows is changed only from callbacks run on its
// Executor.

package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/vivek-rahagir07/mkv-convertor/internal/convert"
	"github.com/vivek-rahagir07/mkv-convertor/internal/ffmpeg"
	"github.com/vivek-rahagir07/mkv-convertor/internal/history"
	"github.com/vivek-rahagir07/mkv-convertor/internal/logger"
	"github.com/vivek-rahagir07/mkv-convertor/internal/process"
)

// Converter runs one conversion at a time
type Converter interface {
	Start(req convert.Request, onProgress func(percent int), onDone func(convert.Outcome))
	Cancel() bool
}

// shutdownPoll is how often Shutdown checks whether the board went idle.
const shutdownPoll = 50 * time.Millisecond

// Event types sent to the Broadcaster
const (
	EventProgress = "progress"
	EventDone     = "done"
	EventActivity = "activity"
)

// Event is pushed to subscribers whenever the board changes
type Event struct {
	Type    string `json:"type"`
	JobID   string `json:"job_id,omitempty"`
	Percent int    `json:"percent,omitempty"`
	OK      bool   `json:"ok,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Entry   *Entry `json:"entry,omitempty"`
}

// Broadcaster fans events out to subscribers
type Broadcaster interface {
	Broadcast(ev Event)
}

// Config for an App
type Config struct {
	Converter Converter
	Executor  convert.Executor
	// Validator checks input paths. nil accepts anything.
	Validator ffmpeg.Validator
	History   history.Store
	// Sampler is shared with the converter for CPU and memory on the board.
	Sampler       process.Sampler
	Broadcaster   Broadcaster
	Logger        logger.Logger
	ActivityLines int
}

// App 转换服务
type App struct {
	converter   Converter
	executor    convert.Executor
	validator   ffmpeg.Validator
	history     history.Store
	sampler     process.Sampler
	broadcaster Broadcaster
	logger      logger.Logger

	lock     sync.RWMutex
	board    Board
	activity *activity
}

// New creates an App
func New(config Config) (*App, error) {
	if config.Converter == nil {
		return nil, fmt.Errorf("no converter given")
	}
	if config.Executor == nil {
		return nil, fmt.Errorf("no executor given")
	}

	a := &App{
		converter:   config.Converter,
		executor:    config.Executor,
		validator:   config.Validator,
		history:     config.History,
		sampler:     config.Sampler,
		broadcaster: config.Broadcaster,
		logger:      config.Logger,
		activity:    newActivity(config.ActivityLines),
	}
	if a.logger == nil {
		a.logger = logger.NewNull()
	}
	if a.sampler == nil {
		a.sampler = process.NewNullSampler()
	}
	a.board.Status = statusReady

	a.executor.Post(func() {
		a.log(LevelInfo, "Ready for stream copy")
	})

	return a, nil
}

type submitResult struct {
	job Job
	err error
}

// Submit starts converting input into output. An empty output is derived from
// input by replacing its extension with .mp4. Submit must not be called from
// the Executor itself.
func (a *App) Submit(ctx context.Context, input, output string) (Job, error) {
	result := make(chan submitResult, 1)
	a.executor.Post(func() {
		job, err := a.submit(input, output)
		result <- submitResult{job: job, err: err}
	})

	select {
	case r := <-result:
		return r.job, r.err
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

// DeriveOutput returns input with its extension replaced by .mp4.
func DeriveOutput(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".mp4"
}

func (a *App) submit(input, output string) (Job, error) {
	if a.busy() {
		return Job{}, ErrBusy
	}

	if input == "" || (a.validator != nil && !a.validator.IsValid(input)) {
		a.log(LevelError, "Invalid file format. MKV required.")
		return Job{}, ErrInvalidInput
	}
	if output == "" {
		output = DeriveOutput(input)
	}

	job := Job{
		ID:        shortuuid.New(),
		Input:     input,
		Output:    output,
		StartedAt: time.Now(),
	}

	name := filepath.Base(input)
	if fi, err := os.Stat(input); err == nil {
		job.InputBytes = fi.Size()
		a.log(LevelSuccess, fmt.Sprintf("Loaded: %s | Size: %.2f MB", name, float64(job.InputBytes)/(1024*1024)))
	} else {
		a.log(LevelInfo, fmt.Sprintf("Loaded: %s | Size: unknown", name))
	}

	if a.history != nil {
		err := a.history.Create(&history.Record{
			ID:         job.ID,
			Input:      job.Input,
			Output:     job.Output,
			InputBytes: job.InputBytes,
			StartedAt:  job.StartedAt,
		})
		if err != nil {
			a.logger.Error("history create %s: %v", job.ID, err)
		}
	}

	a.lock.Lock()
	a.board.Busy = true
	a.board.Status = statusStarting
	a.board.Percent = 0
	a.board.Job = &job
	a.lock.Unlock()

	a.log(LevelProcess, "Executing stream copy")

	var early error
	done := false
	a.converter.Start(convert.Request{Input: input, Output: output},
		func(percent int) { a.progress(job, percent) },
		func(o convert.Outcome) {
			done = true
			early = o.Err
			a.finish(job, o)
		},
	)

	// An invalid request is failed before Start returns.
	if done && early != nil {
		return job, early
	}
	return job, nil
}

func (a *App) busy() bool {
	a.lock.RLock()
	defer a.lock.RUnlock()
	return a.board.Busy
}

func (a *App) progress(job Job, percent int) {
	a.lock.Lock()
	if a.board.Job == nil || a.board.Job.ID != job.ID {
		a.lock.Unlock()
		return
	}
	changed := a.board.Percent != percent
	a.board.Percent = percent
	a.board.Status = fmt.Sprintf(statusConverting, percent)
	a.lock.Unlock()

	if !changed {
		return
	}

	if a.history != nil {
		if err := a.history.Progress(job.ID, percent); err != nil {
			a.logger.Debug("history progress %s: %v", job.ID, err)
		}
	}
	a.broadcast(Event{Type: EventProgress, JobID: job.ID, Percent: percent})
}

func (a *App) finish(job Job, o convert.Outcome) {
	// History is written before the board goes idle, Shutdown relies on it.
	if a.history != nil {
		if err := a.history.Finish(job.ID, o.Err); err != nil {
			a.logger.Error("history finish %s: %v", job.ID, err)
		}
	}

	a.lock.Lock()
	a.board.Busy = false
	if o.OK() {
		a.board.Percent = 100
		a.board.Status = statusCompleted
		a.board.Last = ""
	} else {
		a.board.Status = statusFailed
		a.board.Last = o.Reason()
	}
	a.lock.Unlock()

	if o.OK() {
		a.log(LevelSuccess, "Transcoding finalized: "+job.Output)
	} else {
		a.log(LevelError, "Conversion failed: "+o.Reason())
	}
	a.broadcast(Event{Type: EventDone, JobID: job.ID, OK: o.OK(), Reason: o.Reason()})
}

// Cancel stops the running conversion.
func (a *App) Cancel() error {
	if !a.converter.Cancel() {
		return ErrNotRunning
	}
	a.executor.Post(func() {
		a.log(LevelInfo, "Cancellation requested")
	})
	return nil
}

// Shutdown cancels the running conversion and waits until its outcome has
// been applied to the board and history. The Executor must keep running until
// Shutdown returns.
func (a *App) Shutdown(ctx context.Context) error {
	if !a.converter.Cancel() && !a.busy() {
		return nil
	}
	ticker := time.NewTicker(shutdownPoll)
	defer ticker.Stop()
	for a.busy() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Snapshot returns the current board.
func (a *App) Snapshot() Board {
	a.lock.RLock()
	b := a.board
	a.lock.RUnlock()

	if b.Job != nil {
		job := *b.Job
		b.Job = &job
	}
	if b.Busy {
		b.CPU, b.Memory = a.sampler.Current()
	}
	return b
}

// Activity returns the activity log, oldest first.
func (a *App) Activity() []Entry {
	a.lock.RLock()
	defer a.lock.RUnlock()
	return a.activity.list()
}

func (a *App) log(level Level, message string) {
	e := Entry{Time: time.Now(), Level: level, Message: message}

	a.lock.Lock()
	a.activity.add(e)
	a.lock.Unlock()

	switch level {
	case LevelError:
		a.logger.Error("%s", message)
	default:
		a.logger.Info("%s", message)
	}
	a.broadcast(Event{Type: EventActivity, Entry: &e})
}

func (a *App) broadcast(ev Event) {
	if a.broadcaster != nil {
		a.broadcaster.Broadcast(ev)
	}
}
