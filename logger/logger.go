// Copyright ©2024 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package logger builds the zap loggers handed to the gembase components.
//
// Library packages never log through a package-level logger; they receive a
// *zap.Logger from their caller. Workers share one Queue so that the messages
// of a single worker keep their order while the file or terminal behind the
// Queue is only written by one goroutine.
package logger

import (
	"io"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger writing development-style lines at or above level to w.
func New(level zapcore.Level, w io.Writer) *zap.Logger {
	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("Jan _2 15:04:05.000")
	encoderConfig.StacktraceKey = "" // to hide stacktrace info

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(w),
		zap.NewAtomicLevelAt(level),
	)
	return zap.New(core)
}

// Nop returns a logger discarding everything. It is used by tests.
func Nop() *zap.Logger { return zap.NewNop() }

// Queue is an io.Writer that hands each write to a single draining goroutine.
// Writes from one goroutine are delivered in order; there is no ordering
// guarantee between goroutines.
type Queue struct {
	lines chan []byte
	dst   io.Writer
	done  chan struct{}
	once  sync.Once
}

// NewQueue starts draining a queue of size buffered writes into dst.
func NewQueue(dst io.Writer, size int) *Queue {
	q := &Queue{
		lines: make(chan []byte, size),
		dst:   dst,
		done:  make(chan struct{}),
	}
	go q.drain()
	return q
}

func (q *Queue) drain() {
	defer close(q.done)
	for l := range q.lines {
		q.dst.Write(l)
	}
}

// Write queues a copy of p. It blocks when the queue is full.
func (q *Queue) Write(p []byte) (int, error) {
	b := make([]byte, len(p))
	copy(b, p)
	q.lines <- b
	return len(p), nil
}

// Sync is a no-op; Close flushes the queue.
func (q *Queue) Sync() error { return nil }

// Close stops accepting writes and waits until every queued write reached the
// destination. Writing after Close panics.
func (q *Queue) Close() error {
	q.once.Do(func() { close(q.lines) })
	<-q.done
	return nil
}
