package rdoc

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrWriteUnavailable is returned when a bounded write acquisition still
// could not get the document's write lock at its deadline.
var ErrWriteUnavailable = errors.New("rdoc: document is not ready to write")

const (
	DefaultAcquireDeadline = 2 * time.Second
	DefaultAcquireInterval = 50 * time.Millisecond
)

// TxRetry acquires transactions by polling the non-blocking acquisition
// primitives every interval until the deadline. What happens at the deadline
// depends on the operation: Acquire falls back to a blocking acquisition
// after logging a warning, TryAcquireWrite gives up with ErrWriteUnavailable.
type TxRetry struct {
	doc      *Doc
	deadline time.Duration
	interval time.Duration
	logger   *slog.Logger
}

func NewTxRetry(doc *Doc, deadline, interval time.Duration) *TxRetry {
	if deadline <= 0 {
		deadline = DefaultAcquireDeadline
	}
	if interval <= 0 {
		interval = DefaultAcquireInterval
	}
	return &TxRetry{doc: doc, deadline: deadline, interval: interval, logger: doc.logger}
}

func (r *TxRetry) poll(try func() bool) bool {
	start := time.Now()
	for {
		if try() {
			return true
		}
		if time.Since(start) >= r.deadline {
			return false
		}
		time.Sleep(r.interval)
	}
}

// AcquireRead polls for a read transaction until the deadline, then logs a
// warning and acquires blocking. It never fails the caller.
func (r *TxRetry) AcquireRead() *ReadTxn {
	var tx *ReadTxn
	ok := r.poll(func() bool {
		var acquired bool
		tx, acquired = r.doc.TryBeginRead()
		return acquired
	})
	if ok {
		return tx
	}
	r.warn("rdoc: read acquisition timed out, blocking")
	return r.doc.BeginRead()
}

// AcquireWrite polls for a write transaction until the deadline, then logs a
// warning and acquires blocking. It never fails the caller.
func (r *TxRetry) AcquireWrite(origin Origin) *WriteTxn {
	var tx *WriteTxn
	ok := r.poll(func() bool {
		var acquired bool
		tx, acquired = r.doc.TryBeginWrite(origin)
		return acquired
	})
	if ok {
		return tx
	}
	r.warn("rdoc: write acquisition timed out, blocking")
	return r.doc.BeginWrite(origin)
}

// TryAcquireWrite polls like AcquireWrite but returns ErrWriteUnavailable at
// the deadline instead of blocking.
func (r *TxRetry) TryAcquireWrite(origin Origin) (*WriteTxn, error) {
	var tx *WriteTxn
	ok := r.poll(func() bool {
		var acquired bool
		tx, acquired = r.doc.TryBeginWrite(origin)
		return acquired
	})
	if ok {
		return tx, nil
	}
	return nil, ErrWriteUnavailable
}

func (r *TxRetry) warn(msg string) {
	r.logger.LogAttrs(context.Background(), slog.LevelWarn, msg,
		slog.Uint64("actor", uint64(r.doc.actor)),
		slog.Duration("deadline", r.deadline))
}
