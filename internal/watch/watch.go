// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MKV Convertor - MKV 转 MP4 转换工具
//
// Package watch submits MKV files dropped into a directory.

package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vivek-rahagir07/mkv-convertor/internal/app"
	"github.com/vivek-rahagir07/mkv-convertor/internal/ffmpeg"
	"github.com/vivek-rahagir07/mkv-convertor/internal/logger"
)

const defaultDebounce = 2 * time.Second

// Submitter starts a conversion
type Submitter interface {
	Submit(ctx context.Context, input, output string) (app.Job, error)
}

// Config for a Watcher
type Config struct {
	Dir       string
	Submitter Submitter
	// Validator picks the files to submit. nil accepts every file.
	Validator ffmpeg.Validator
	// Debounce is how long a file must stay quiet before it is submitted,
	// so files still being copied in are not picked up half written.
	Debounce time.Duration
	Logger   logger.Logger
}

// Watcher 监听目录中新增的 MKV 文件
type Watcher struct {
	dir       string
	submitter Submitter
	validator ffmpeg.Validator
	debounce  time.Duration
	logger    logger.Logger

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	pendingLock sync.Mutex
	pending     map[string]*time.Timer
}

// New creates a Watcher for config.Dir
func New(config Config) (*Watcher, error) {
	if config.Dir == "" {
		return nil, fmt.Errorf("no directory to watch")
	}
	if config.Submitter == nil {
		return nil, fmt.Errorf("no submitter given")
	}

	w := &Watcher{
		dir:       config.Dir,
		submitter: config.Submitter,
		validator: config.Validator,
		debounce:  config.Debounce,
		logger:    config.Logger,
		pending:   make(map[string]*time.Timer),
	}
	if w.debounce <= 0 {
		w.debounce = defaultDebounce
	}
	if w.logger == nil {
		w.logger = logger.NewNull()
	}
	return w, nil
}

// Start begins watching. It stops when ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	w.watcher = watcher
	w.cancel = cancel

	w.wg.Add(1)
	go w.eventLoop(ctx)

	w.logger.Info("watching %s", w.dir)
	return nil
}

// Stop stops watching and drops pending submissions.
func (w *Watcher) Stop() error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()
	err := w.watcher.Close()
	w.wg.Wait()

	w.pendingLock.Lock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.pendingLock.Unlock()
	return err
}

func (w *Watcher) eventLoop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watch %s: %v", w.dir, err)
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if w.validator != nil && !w.validator.IsValid(event.Name) {
		w.logger.Debug("ignoring %s", event.Name)
		return
	}
	w.schedule(ctx, event.Name)
}

// schedule submits path once no event for it arrived within the debounce
// delay.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.pendingLock.Lock()
	defer w.pendingLock.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(w.debounce, func() {
		w.pendingLock.Lock()
		// A newer event may have rescheduled path while this fired.
		if w.pending[path] == timer {
			delete(w.pending, path)
		}
		w.pendingLock.Unlock()

		if ctx.Err() != nil {
			return
		}
		w.submit(ctx, path)
	})
	w.pending[path] = timer
}

func (w *Watcher) submit(ctx context.Context, path string) {
	job, err := w.submitter.Submit(ctx, path, app.DeriveOutput(path))
	switch {
	case errors.Is(err, app.ErrBusy):
		w.logger.Info("busy, skipping %s", filepath.Base(path))
	case err != nil:
		w.logger.Error("submit %s: %v", path, err)
	default:
		w.logger.Info("submitted %s as %s", filepath.Base(path), job.ID)
	}
}
