// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MKV Convertor - MKV 转 MP4 转换工具
//
// Package process wraps exec.Cmd for running a single FFmpeg invocation and
// reading its diagnostic stream.

package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

const maxLineSize = 1024 * 1024

// Process represents a spawned process
type Process interface {
	PID() int
	Lines() iter.Seq[string]
	Err() error
	Wait() (Exit, error)
	Stop(wait bool) error
}

// Config for a process
type Config struct {
	Binary string
	Args   []string
	// Env replaces the environment of the process. nil inherits ours.
	Env           []string
	StaleTimeout  time.Duration
	KillTimeout   time.Duration
	Sampler       Sampler
	OnStateChange func(from, to string)
	Logger        Logger
}

// Exit describes how a process ended
type Exit struct {
	// Code is -1 when the process was terminated by a signal.
	Code  int
	State string
	Stale bool
}

// Success reports whether the process exited with status 0.
func (e Exit) Success() bool {
	return e.Code == 0 && e.State == stateFinished.String()
}

// Logger interface
type Logger interface {
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
}

type stateType string

const (
	stateStarting  stateType = "starting"
	stateRunning   stateType = "running"
	stateFinishing stateType = "finishing"
	stateFinished  stateType = "finished"
	stateFailed    stateType = "failed"
	stateKilled    stateType = "killed"
)

func (s stateType) String() string { return string(s) }

type process struct {
	binary string
	args   []string
	cmd    *exec.Cmd
	stderr io.ReadCloser

	state struct {
		state stateType
		lock  sync.Mutex
	}
	stale struct {
		last    time.Time
		timeout time.Duration
		fired   bool
		cancel  context.CancelFunc
		lock    sync.Mutex
	}
	read struct {
		err  error
		lock sync.Mutex
	}
	wait struct {
		once sync.Once
		exit Exit
		err  error
		done chan struct{}
	}
	consumed      atomic.Bool
	killTimeout   time.Duration
	killTimer     *time.Timer
	killTimerLock sync.Mutex
	onStateChange func(from, to string)
	logger        Logger
	sampler       Sampler
}

// Start spawns the process with its stderr piped for reading. Stdout is not
// captured.
func Start(config Config) (Process, error) {
	if len(config.Binary) == 0 {
		return nil, fmt.Errorf("no valid binary given")
	}

	p := &process{
		binary:        config.Binary,
		args:          config.Args,
		killTimeout:   config.KillTimeout,
		onStateChange: config.OnStateChange,
		logger:        config.Logger,
		sampler:       config.Sampler,
	}
	if p.logger == nil {
		p.logger = &nopLogger{}
	}
	if p.sampler == nil {
		p.sampler = NewSysSampler()
	}
	if p.killTimeout <= 0 {
		p.killTimeout = 5 * time.Second
	}
	p.wait.done = make(chan struct{})
	p.stale.timeout = config.StaleTimeout
	p.state.state = stateStarting

	p.cmd = exec.Command(p.binary, p.args...)
	if config.Env != nil {
		p.cmd.Env = config.Env
	}
	hideWindow(p.cmd)

	var err error
	p.stderr, err = p.cmd.StderrPipe()
	if err != nil {
		p.setState(stateFailed)
		return nil, err
	}

	if err := p.cmd.Start(); err != nil {
		p.setState(stateFailed)
		return nil, err
	}

	if err := p.sampler.Start(p.cmd.Process.Pid); err != nil {
		p.logger.Debug("sampler for pid %d: %v", p.cmd.Process.Pid, err)
	}

	p.setState(stateRunning)
	p.logger.Debug("started %s (pid %d)", p.binary, p.cmd.Process.Pid)

	if p.stale.timeout > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		p.stale.lock.Lock()
		p.stale.last = time.Now()
		p.stale.cancel = cancel
		p.stale.lock.Unlock()
		go p.staler(ctx)
	}

	return p, nil
}

func (p *process) setState(state stateType) error {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()
	return p.setStateLocked(state)
}

func (p *process) setStateLocked(state stateType) error {
	prevState := p.state.state
	failed := false

	switch prevState {
	case stateStarting:
		switch state {
		case stateRunning, stateFailed:
		default:
			failed = true
		}
	case stateRunning:
		switch state {
		case stateFinishing, stateFinished, stateFailed, stateKilled:
		default:
			failed = true
		}
	case stateFinishing:
		switch state {
		case stateFinished, stateFailed, stateKilled:
		default:
			failed = true
		}
	default:
		failed = true
	}

	if failed {
		return fmt.Errorf("can't change from %s to %s", prevState, state)
	}

	p.state.state = state
	if p.onStateChange != nil {
		go p.onStateChange(prevState.String(), state.String())
	}
	return nil
}

func (p *process) getState() stateType {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()
	return p.state.state
}

func (p *process) PID() int {
	return p.cmd.Process.Pid
}

// Lines yields the diagnostic stream one line at a time. The sequence can be
// ranged over only once; later calls yield nothing.
func (p *process) Lines() iter.Seq[string] {
	return func(yield func(string) bool) {
		if !p.consumed.CompareAndSwap(false, true) {
			return
		}

		scanner := bufio.NewScanner(p.stderr)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		scanner.Split(scanLine)

		for scanner.Scan() {
			p.touch()
			if !yield(scanner.Text()) {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			p.read.lock.Lock()
			p.read.err = err
			p.read.lock.Unlock()
		}
	}
}

// Err returns the error that ended Lines early, if any.
func (p *process) Err() error {
	p.read.lock.Lock()
	defer p.read.lock.Unlock()
	return p.read.err
}

// Wait drains what is left of the diagnostic stream, reaps the process and
// classifies its exit. It is safe to call more than once.
func (p *process) Wait() (Exit, error) {
	p.wait.once.Do(func() {
		p.wait.exit, p.wait.err = p.reap()
		close(p.wait.done)
	})
	return p.wait.exit, p.wait.err
}

func (p *process) reap() (Exit, error) {
	// cmd.Wait must not run while the child can still block on a full pipe.
	io.Copy(io.Discard, p.stderr)

	err := p.cmd.Wait()

	stopping := p.getState() == stateFinishing
	exit := Exit{Code: -1}
	if p.cmd.ProcessState != nil {
		exit.Code = p.cmd.ProcessState.ExitCode()
	}

	var exitErr *exec.ExitError
	isExit := errors.As(err, &exitErr)

	var state stateType
	switch {
	case err == nil:
		state = stateFinished
	case stopping:
		state = stateKilled
	case isExit && exitErr.Exited():
		state = stateFailed
	default:
		state = stateKilled
	}
	exit.State = state.String()

	p.sampler.Stop()

	p.killTimerLock.Lock()
	if p.killTimer != nil {
		p.killTimer.Stop()
		p.killTimer = nil
	}
	p.killTimerLock.Unlock()

	p.stale.lock.Lock()
	if p.stale.cancel != nil {
		p.stale.cancel()
		p.stale.cancel = nil
	}
	exit.Stale = p.stale.fired
	p.stale.lock.Unlock()

	p.setState(state)
	p.logger.Debug("%s exited: code=%d state=%s", p.binary, exit.Code, exit.State)

	if err != nil && !isExit {
		return exit, err
	}
	return exit, nil
}

// Stop interrupts the process and kills it if it is still alive after the
// kill timeout. With wait set, Stop returns once Wait has reaped the process,
// so the owner of the process must be calling Wait.
func (p *process) Stop(wait bool) error {
	p.state.lock.Lock()
	if p.state.state != stateRunning {
		p.state.lock.Unlock()
		return nil
	}
	p.setStateLocked(stateFinishing)
	p.state.lock.Unlock()

	var err error
	if runtime.GOOS == "windows" {
		err = p.cmd.Process.Kill()
	} else {
		err = p.cmd.Process.Signal(os.Interrupt)
		if err != nil {
			err = p.cmd.Process.Kill()
		} else {
			p.killTimerLock.Lock()
			p.killTimer = time.AfterFunc(p.killTimeout, func() {
				p.cmd.Process.Kill()
			})
			p.killTimerLock.Unlock()
		}
	}

	if err != nil {
		p.logger.Error("stop %s: %v", p.binary, err)
		return err
	}

	if wait {
		<-p.wait.done
	}
	return nil
}

func (p *process) touch() {
	p.stale.lock.Lock()
	p.stale.last = time.Now()
	p.stale.lock.Unlock()
}

func (p *process) staler(ctx context.Context) {
	interval := time.Second
	if p.stale.timeout < 2*interval {
		interval = p.stale.timeout / 2
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			p.stale.lock.Lock()
			last := p.stale.last
			timeout := p.stale.timeout
			p.stale.lock.Unlock()

			if t.Sub(last) > timeout {
				p.logger.Info("%s produced no output for %s, stopping", p.binary, timeout)
				p.stale.lock.Lock()
				p.stale.fired = true
				p.stale.lock.Unlock()
				p.Stop(false)
				return
			}
		}
	}
}

// scanLine splits on \n and \r. FFmpeg redraws its status line with a bare
// carriage return.
func scanLine(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) {
		r, w := utf8.DecodeRune(data[start:])
		if r != '\n' && r != '\r' {
			break
		}
		start += w
	}

	for i := start; i < len(data); {
		r, w := utf8.DecodeRune(data[i:])
		if r == '\n' || r == '\r' {
			return i + w, data[start:i], nil
		}
		i += w
	}

	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	return start, nil, nil
}

type nopLogger struct{}

func (l *nopLogger) Info(format string, args ...interface{})  {}
func (l *nopLogger) Error(format string, args ...interface{}) {}
func (l *nopLogger) Debug(format string, args ...interface{}) {}
