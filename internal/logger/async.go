package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Closer allows flushing and stopping the async handler.
type Closer interface {
	Close()
}

type nopCloser struct{}

func (nopCloser) Close() {}

// queued is a record plus the request ID of the context it was logged
// with; workers run without the caller's context.
type queued struct {
	rec       slog.Record
	requestID string
}

// AsyncHandler moves record formatting and writing off the caller's
// goroutine. Records are dropped, and counted, when the buffer is full.
type AsyncHandler struct {
	inner slog.Handler
	*asyncState
}

// asyncState is shared by handlers derived through WithAttrs and WithGroup.
type asyncState struct {
	ch      chan queued
	wg      sync.WaitGroup
	dropped atomic.Int64
	mu      sync.RWMutex // guards closed against sends on a closed channel
	closed  bool
}

// NewAsyncHandler creates an AsyncHandler with the given buffer size and
// worker count.
func NewAsyncHandler(inner slog.Handler, chanSize, workers int) *AsyncHandler {
	h := &AsyncHandler{
		inner:      inner,
		asyncState: &asyncState{ch: make(chan queued, chanSize)},
	}
	for range max(workers, 1) {
		h.wg.Add(1)
		go h.drain()
	}
	return h
}

func (h *AsyncHandler) drain() {
	defer h.wg.Done()
	for q := range h.ch {
		ctx := context.Background()
		if q.requestID != "" {
			ctx = WithRequestID(ctx, q.requestID)
		}
		_ = h.inner.Handle(ctx, q.rec)
	}
}

// Enabled delegates to the inner handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues the record without blocking.
func (h *AsyncHandler) Handle(ctx context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return nil
	}
	select {
	case h.ch <- queued{rec: rec.Clone(), requestID: RequestID(ctx)}:
	default:
		h.dropped.Add(1)
	}
	return nil
}

// WithAttrs shares the buffer and workers but wraps a derived inner handler.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithAttrs(attrs), asyncState: h.asyncState}
}

// WithGroup shares the buffer and workers but wraps a derived inner handler.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithGroup(name), asyncState: h.asyncState}
}

// DroppedCount returns the number of dropped records.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.dropped.Load()
}

// Close stops accepting records and waits until the buffer is written.
// It is safe to call more than once.
func (h *AsyncHandler) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.ch)
	h.mu.Unlock()
	h.wg.Wait()
}
