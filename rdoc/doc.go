// Package rdoc implements replicated documents: trees of map containers that
// multiple replicas edit independently and merge deterministically.
//
// Model:
//
//  1. A document is a tree of maps. Leaves hold msgpack-encodable values;
//     composite leaf values (arrays, maps) merge as single units.
//
//  2. Every leaf write carries a version: a Lamport counter plus the writing
//     actor. Concurrent writes to the same path resolve last-writer-wins,
//     higher counter first, higher actor on ties. Deletes are tombstoned
//     writes and merge by the same rule.
//
//  3. A state vector records the highest counter observed per actor. Updates
//     travel as encoded op lists; each op merges by version against the
//     entry it addresses, so duplicate delivery changes nothing.
//
//  4. Transactions: any number of readers or a single writer. Acquisition is
//     non-blocking (TryBeginRead/TryBeginWrite), with TxRetry layering the
//     polling policy on top. Commit encodes the staged ops into one update
//     record and hands it to commit hooks before the write lock is released,
//     so hooks observe records in exact commit order.
package rdoc

import (
	"encoding/binary"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ActorID identifies a replica in versions and state vectors. Version ties
// resolve toward the higher actor, so ids must be unique across replicas.
type ActorID uint64

func NewActorID() ActorID {
	u := uuid.New()
	return ActorID(binary.BigEndian.Uint64(u[:8]))
}

type Options struct {
	Actor           ActorID // zero picks a random one
	Logger          *slog.Logger
	AcquireDeadline time.Duration
	AcquireInterval time.Duration
}

// CommitHook runs inside Commit while the write lock is still held.
// A non-nil error fails the commit of the triggering transaction.
type CommitHook func(rec *UpdateRecord) error

type Doc struct {
	actor  ActorID
	logger *slog.Logger
	retry  *TxRetry

	mu    sync.RWMutex
	clock uint64
	root  *node
	vec   StateVector
	hooks []CommitHook
}

func New(o Options) *Doc {
	if o.Actor == 0 {
		o.Actor = NewActorID()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	d := &Doc{
		actor:  o.Actor,
		logger: o.Logger,
		root:   newNode(),
		vec:    make(StateVector),
	}
	d.retry = NewTxRetry(d, o.AcquireDeadline, o.AcquireInterval)
	return d
}

func (d *Doc) Actor() ActorID { return d.actor }

func (d *Doc) Logger() *slog.Logger { return d.logger }

// Retry returns the acquisition policy shared by Read and Update.
func (d *Doc) Retry() *TxRetry { return d.retry }

// OnCommit registers f to run on every committed write transaction that
// produced a record, in registration order.
func (d *Doc) OnCommit(f CommitHook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks = append(d.hooks, f)
}

func (d *Doc) StateVector() StateVector {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.vec.Clone()
}

// Read runs f inside a read transaction acquired via the retry policy.
func (d *Doc) Read(f func(tx *ReadTxn)) {
	tx := d.retry.AcquireRead()
	defer tx.End()
	f(tx)
}

// Update runs f inside a write transaction acquired via the retry policy and
// commits it. The returned record is nil when f staged no ops.
func (d *Doc) Update(origin Origin, f func(tx *WriteTxn)) (*UpdateRecord, error) {
	tx := d.retry.AcquireWrite(origin)
	f(tx)
	return tx.Commit()
}

// EncodeDoc snapshots the entire document under a read transaction.
func (d *Doc) EncodeDoc() *EncodedDoc {
	var enc *EncodedDoc
	d.Read(func(tx *ReadTxn) {
		enc = EncodeDoc(tx)
	})
	return enc
}
