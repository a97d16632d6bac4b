package syncdb

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.etcd.io/bbolt"
)

const (
	bucketState     = "state"
	bucketSnapshots = "snapshots"
	bucketUpdates   = "updates"
)

const DefaultSnapshotInterval = 100

// DB persists replicated documents as snapshots plus per-entry update logs.
type DB struct {
	st      Storage
	logger  *slog.Logger
	verbose bool

	snapshotInterval int
	noAutoCompaction bool
	noCompression    bool

	docsMu  sync.Mutex
	docs    map[DocKey]*Doc
	closing bool

	closed atomic.Bool

	lastSize        atomic.Int64
	ReadCount       atomic.Uint64
	WriteCount      atomic.Uint64
	CompactionCount atomic.Uint64
}

type Options struct {
	// SnapshotInterval is the pending update record count at which an entry
	// is compacted within the writing transaction. Zero means
	// DefaultSnapshotInterval.
	SnapshotInterval int

	// NoAutoCompaction disables threshold compaction. Closing a document
	// handle still compacts its entry.
	NoAutoCompaction bool

	// NoCompression stores snapshot payloads raw.
	NoCompression bool

	Logger    *slog.Logger
	Verbose   bool
	IsTesting bool
	MmapSize  int
}

func Open(path string, opt Options) (*DB, error) {
	bopt := &bbolt.Options{
		Timeout: 10 * time.Second,
	}
	*bopt = *bbolt.DefaultOptions
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.InitialMmapSize = 1024 * 1024 * 1024
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, fmt.Errorf("syncdb: %w", err)
	}
	return OpenStorage(NewBoltStorage(bdb), opt)
}

// OpenStorage runs the store over any Storage, typically NewMemStorage in
// tests.
func OpenStorage(st Storage, opt Options) (*DB, error) {
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.SnapshotInterval <= 0 {
		opt.SnapshotInterval = DefaultSnapshotInterval
	}

	db := &DB{
		st:               st,
		logger:           opt.Logger,
		verbose:          opt.Verbose,
		snapshotInterval: opt.SnapshotInterval,
		noAutoCompaction: opt.NoAutoCompaction,
		noCompression:    opt.NoCompression,
		docs:             make(map[DocKey]*Doc),
	}

	err := db.Tx(true, func(tx *Tx) error {
		for _, name := range []string{bucketState, bucketSnapshots, bucketUpdates} {
			if _, err := tx.stx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("syncdb: init: %w", err)
	}
	return db, nil
}

func (db *DB) Storage() Storage {
	return db.st
}

func (db *DB) Size() int64 {
	return db.lastSize.Load()
}

// Close flushes every open document handle, then closes the storage. Flushed
// entries end with zero pending update records.
func (db *DB) Close() error {
	db.docsMu.Lock()
	db.closing = true
	docs := make([]*Doc, 0, len(db.docs))
	for _, d := range db.docs {
		docs = append(docs, d)
	}
	db.docsMu.Unlock()

	var firstErr error
	for _, d := range docs {
		if err := d.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if !db.closed.Swap(true) {
		if err := db.st.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("syncdb: closing: %w", err)
		}
	}
	return firstErr
}

func (db *DB) registerDoc(d *Doc) error {
	db.docsMu.Lock()
	defer db.docsMu.Unlock()
	if db.closing {
		return ErrClosed
	}
	if _, dup := db.docs[d.key]; dup {
		return ErrDocOpen
	}
	db.docs[d.key] = d
	return nil
}

func (db *DB) unregisterDoc(d *Doc) {
	db.docsMu.Lock()
	defer db.docsMu.Unlock()
	if db.docs[d.key] == d {
		delete(db.docs, d.key)
	}
}
