package syncdb

import (
	"sync"
	"time"

	"github.com/andreyvit/syncdb/rdoc"
)

// Doc is a live handle over one persisted entry: an in-memory replica whose
// committed write transactions are appended to the entry's update log before
// they finish.
//
// A handle is the entry's single owner in this process; OpenDoc returns
// ErrDocOpen while another handle holds the same key. Close flushes the
// replica as a fresh snapshot, leaving zero pending update records.
type Doc struct {
	db      *DB
	key     DocKey
	replica *rdoc.Doc

	mu     sync.Mutex
	closed bool
}

type DocOptions struct {
	Actor           rdoc.ActorID // zero picks a random one
	AcquireDeadline time.Duration
	AcquireInterval time.Duration
}

// OpenDoc loads the entry at key into a fresh replica and wires commit
// persistence. The load itself persists nothing.
func (db *DB) OpenDoc(key DocKey, o DocOptions) (*Doc, error) {
	replica := rdoc.New(rdoc.Options{
		Actor:           o.Actor,
		Logger:          db.logger,
		AcquireDeadline: o.AcquireDeadline,
		AcquireInterval: o.AcquireInterval,
	})
	d := &Doc{db: db, key: key, replica: replica}
	if err := db.registerDoc(d); err != nil {
		return nil, err
	}

	wtx := replica.BeginWrite("")
	err := db.ReadErr(func(tx *Tx) error {
		_, err := tx.LoadDoc(key, wtx)
		return err
	})
	wtx.Commit()
	if err != nil {
		db.unregisterDoc(d)
		return nil, err
	}

	replica.OnCommit(func(rec *rdoc.UpdateRecord) error {
		return db.Tx(true, func(tx *Tx) error {
			return tx.PushUpdate(key, rec)
		})
	})
	return d, nil
}

func (d *Doc) Key() DocKey { return d.key }

// Replica exposes the underlying document for direct transaction control.
func (d *Doc) Replica() *rdoc.Doc { return d.replica }

func (d *Doc) Read(f func(tx *rdoc.ReadTxn)) {
	d.replica.Read(f)
}

// Update runs f in a write transaction and persists the committed record.
// An empty transaction persists nothing.
func (d *Doc) Update(origin rdoc.Origin, f func(tx *rdoc.WriteTxn)) error {
	if d.isClosed() {
		return ErrClosed
	}
	_, err := d.replica.Update(origin, f)
	return err
}

// TryUpdate is Update, except it gives up with rdoc.ErrWriteUnavailable when
// the replica's write lock cannot be acquired within the deadline.
func (d *Doc) TryUpdate(origin rdoc.Origin, f func(tx *rdoc.WriteTxn)) error {
	if d.isClosed() {
		return ErrClosed
	}
	tx, err := d.replica.Retry().TryAcquireWrite(origin)
	if err != nil {
		return err
	}
	f(tx)
	_, err = tx.Commit()
	return err
}

// ApplyRemote merges an encoded remote update into the replica. Only the ops
// the replica accepts are re-encoded into the persisted record; an update
// that was already known in full persists nothing. Returns the number of
// accepted ops.
func (d *Doc) ApplyRemote(origin rdoc.Origin, update []byte) (int, error) {
	if d.isClosed() {
		return 0, ErrClosed
	}
	tx := d.replica.Retry().AcquireWrite(origin)
	n, err := tx.ApplyUpdate(update)
	if err != nil {
		tx.Commit()
		return 0, err
	}
	_, cerr := tx.Commit()
	return n, cerr
}

// OnUpdate registers f to observe every persisted record, local and remote,
// in commit order. f runs after the record is durably appended, while the
// replica's write lock is still held; it must not start transactions on this
// document.
func (d *Doc) OnUpdate(f func(rec *rdoc.UpdateRecord)) {
	d.replica.OnCommit(func(rec *rdoc.UpdateRecord) error {
		f(rec)
		return nil
	})
}

// Close flushes the replica as a fresh snapshot, leaving the entry with zero
// pending update records, and releases the key for reopening. Safe to call
// twice.
func (d *Doc) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.db.unregisterDoc(d)
	enc := d.replica.EncodeDoc()
	return d.db.Tx(true, func(tx *Tx) error {
		return tx.FlushDoc(d.key, enc)
	})
}

func (d *Doc) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// FlushDocs snapshots several open documents in one write transaction.
func (db *DB) FlushDocs(docs []*Doc) error {
	encs := make([]*rdoc.EncodedDoc, len(docs))
	for i, d := range docs {
		encs[i] = d.replica.EncodeDoc()
	}
	return db.Tx(true, func(tx *Tx) error {
		for i, d := range docs {
			if err := tx.FlushDoc(d.key, encs[i]); err != nil {
				return err
			}
		}
		return nil
	})
}
