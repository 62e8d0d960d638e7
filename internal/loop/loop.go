// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// MKV Convertor - MKV 转 MP4 转换工具
//
// Package loop is a FIFO of callbacks drained by a single owner goroutine.
// Workers Post work; the owner runs it, so state touched only from posted
// callbacks needs no further locking.

package loop

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("loop closed")

// Loop 回调队列
type Loop struct {
	queue     chan func()
	closed    chan struct{}
	closeOnce sync.Once
}

// New creates a Loop that buffers up to size callbacks before Post blocks.
func New(size int) *Loop {
	if size <= 0 {
		size = 64
	}
	return &Loop{
		queue:  make(chan func(), size),
		closed: make(chan struct{}),
	}
}

// Post enqueues fn. Callbacks run in the order they were posted. Post blocks
// while the queue is full and drops fn once the loop is closed.
func (l *Loop) Post(fn func()) {
	select {
	case <-l.closed:
		return
	default:
	}

	select {
	case l.queue <- fn:
	case <-l.closed:
	}
}

// Run executes posted callbacks on the calling goroutine until ctx is done or
// the loop is closed.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case fn := <-l.queue:
			fn()
		case <-ctx.Done():
			return ctx.Err()
		case <-l.closed:
			return ErrClosed
		}
	}
}

// Drain runs the callbacks queued right now without waiting for more and
// returns how many ran.
func (l *Loop) Drain() int {
	n := 0
	for {
		select {
		case fn := <-l.queue:
			fn()
			n++
		default:
			return n
		}
	}
}

// Close stops Run and makes further Posts no-ops.
func (l *Loop) Close() {
	l.closeOnce.Do(func() { close(l.closed) })
}
