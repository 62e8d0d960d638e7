// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MKV Convertor - MKV 转 MP4 转换工具
//
// Package convert supervises one FFmpeg stream-copy run at a time. Progress and
// the final outcome are handed back to the caller through an Executor, never
// invoked from the worker goroutine directly.

package convert

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vivek-rahagir07/mkv-convertor/internal/ffmpeg"
	"github.com/vivek-rahagir07/mkv-convertor/internal/ffmpeg/parse"
	"github.com/vivek-rahagir07/mkv-convertor/internal/logger"
	"github.com/vivek-rahagir07/mkv-convertor/internal/process"
)

// tailLines of ffmpeg output are logged when a run fails.
const tailLines = 10

// Executor runs fn in the caller's context. Posts must run in order.
type Executor interface {
	Post(fn func())
}

// Config for a Supervisor
type Config struct {
	// Binary is the ffmpeg executable.
	Binary string
	// Args builds the command line for a request, ffmpeg.StreamCopyArgs if nil.
	Args func(input, output string) []string
	// Env replaces the environment of ffmpeg. nil inherits ours.
	Env      []string
	Executor Executor
	// NewParser creates the parser for one run.
	NewParser    func() *parse.Parser
	StaleTimeout time.Duration
	KillTimeout  time.Duration
	Sampler      process.Sampler
	Logger       logger.Logger
}

// Supervisor runs conversions. At most one run is active at a time.
type Supervisor struct {
	binary       string
	args         func(input, output string) []string
	env          []string
	executor     Executor
	newParser    func() *parse.Parser
	staleTimeout time.Duration
	killTimeout  time.Duration
	sampler      process.Sampler
	logger       logger.Logger

	running atomic.Bool

	lock      sync.Mutex
	proc      process.Process
	cancelled bool
}

// New creates a Supervisor
func New(config Config) (*Supervisor, error) {
	if config.Binary == "" {
		return nil, fmt.Errorf("no ffmpeg binary given")
	}
	if config.Executor == nil {
		return nil, fmt.Errorf("no executor given")
	}

	s := &Supervisor{
		binary:       config.Binary,
		args:         config.Args,
		env:          config.Env,
		executor:     config.Executor,
		newParser:    config.NewParser,
		staleTimeout: config.StaleTimeout,
		killTimeout:  config.KillTimeout,
		sampler:      config.Sampler,
		logger:       config.Logger,
	}
	if s.args == nil {
		s.args = ffmpeg.StreamCopyArgs
	}
	if s.newParser == nil {
		s.newParser = func() *parse.Parser { return parse.New(parse.Config{}) }
	}
	if s.sampler == nil {
		s.sampler = process.NewNullSampler()
	}
	if s.logger == nil {
		s.logger = logger.NewNull()
	}
	return s, nil
}

// Running reports whether a run is active. The flag is cleared on the
// Executor right before onDone is called.
func (s *Supervisor) Running() bool {
	return s.running.Load()
}

// Start begins converting req.Input into req.Output.
//
// If a run is already active Start does nothing. An invalid request fails
// immediately: onDone is called on the calling goroutine and nothing is
// spawned. Otherwise onProgress and then onDone are posted to the Executor,
// onDone exactly once and last.
func (s *Supervisor) Start(req Request, onProgress func(percent int), onDone func(Outcome)) {
	if onProgress == nil {
		onProgress = func(int) {}
	}
	if onDone == nil {
		onDone = func(Outcome) {}
	}

	if s.running.Load() {
		s.logger.Debug("conversion already running, ignoring %s", req.Input)
		return
	}

	if err := req.Validate(); err != nil {
		s.logger.Error("%s -> %s: %v", req.Input, req.Output, err)
		onDone(Failure(err))
		return
	}

	s.lock.Lock()
	if !s.running.CompareAndSwap(false, true) {
		s.lock.Unlock()
		return
	}
	s.cancelled = false
	s.proc = nil
	s.lock.Unlock()

	go s.run(req, onProgress, onDone)
}

// Cancel stops the active run. Its outcome will be Failure("cancelled")
// unless ffmpeg already finished successfully. Cancel returns false if no run
// is active.
func (s *Supervisor) Cancel() bool {
	s.lock.Lock()
	if !s.running.Load() {
		s.lock.Unlock()
		return false
	}
	s.cancelled = true
	proc := s.proc
	s.lock.Unlock()

	if proc != nil {
		proc.Stop(false)
	}
	return true
}

func (s *Supervisor) run(req Request, onProgress func(int), onDone func(Outcome)) {
	outcome := s.convert(req, func(percent int) {
		s.executor.Post(func() { onProgress(percent) })
	})

	s.executor.Post(func() {
		s.running.Store(false)
		onDone(outcome)
	})
}

func (s *Supervisor) convert(req Request, progress func(int)) Outcome {
	s.logger.Info("converting %s -> %s", req.Input, req.Output)

	proc, err := process.Start(process.Config{
		Binary:       s.binary,
		Args:         s.args(req.Input, req.Output),
		Env:          s.env,
		StaleTimeout: s.staleTimeout,
		KillTimeout:  s.killTimeout,
		Sampler:      s.sampler,
		Logger:       s.logger,
		OnStateChange: func(from, to string) {
			s.logger.Debug("ffmpeg %s -> %s", from, to)
		},
	})
	if err != nil {
		s.logger.Error("spawn %s: %v", s.binary, err)
		return Failure(&Error{Kind: SpawnFailure, Err: err})
	}

	s.logger.Debug("ffmpeg pid %d for %s", proc.PID(), req.Input)

	s.lock.Lock()
	s.proc = proc
	cancelled := s.cancelled
	s.lock.Unlock()
	if cancelled {
		proc.Stop(false)
	}

	parser := s.newParser()
	var state ProgressState
	for ev := range parser.Lines(proc.Lines()) {
		if percent, ok := state.apply(ev); ok {
			progress(percent)
		}
	}

	readErr := proc.Err()
	exit, waitErr := proc.Wait()

	s.lock.Lock()
	s.proc = nil
	cancelled = s.cancelled
	s.lock.Unlock()

	outcome := s.classify(exit, readErr, waitErr, cancelled)
	if outcome.OK() {
		s.logger.Info("converted %s (%ds)", req.Output, state.Duration)
	} else {
		s.logger.Error("convert %s: %s (exit code %d)", req.Input, outcome.Reason(), exit.Code)
		log := parser.Log()
		if len(log) > tailLines {
			log = log[len(log)-tailLines:]
		}
		for _, line := range log {
			s.logger.Debug("ffmpeg: %s", line.Data)
		}
	}
	return outcome
}

func (s *Supervisor) classify(exit process.Exit, readErr, waitErr error, cancelled bool) Outcome {
	switch {
	case exit.Success() && readErr == nil && waitErr == nil:
		return Success()
	case cancelled:
		return Failure(&Error{Kind: Cancelled, Err: ErrCancelled, ExitCode: exit.Code})
	case exit.Stale:
		return Failure(&Error{Kind: Stale, Err: fmt.Errorf("no output from ffmpeg for %s", s.staleTimeout), ExitCode: exit.Code})
	case readErr != nil:
		return Failure(&Error{Kind: StreamReadFailure, Err: readErr, ExitCode: exit.Code})
	case waitErr != nil:
		return Failure(&Error{Kind: ProcessFailure, Err: waitErr, ExitCode: exit.Code})
	}
	return Failure(&Error{Kind: ProcessFailure, Err: ErrFailed, ExitCode: exit.Code})
}

// apply folds ev into the state. It returns the percent to report, if any.
// The parser latches the duration and only attaches a percent once it has
// one.
func (st *ProgressState) apply(ev parse.Event) (int, bool) {
	switch ev.Kind {
	case parse.DurationFound:
		st.Duration = ev.Seconds
		st.HasDuration = true
	case parse.PositionUpdate:
		st.Position = ev.Seconds
		if !ev.HasPercent {
			return 0, false
		}
		st.Percent = ev.Percent
		return st.Percent, true
	}
	return 0, false
}
