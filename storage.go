package syncdb

import "errors"

// ErrBucketNotFound is returned when a transaction touches a bucket that was
// never created.
var ErrBucketNotFound = errors.New("bucket not found")

// Storage is the key-value backend contract (Bolt, in-memory, anything with
// sorted buckets and transactions). The store keeps snapshots, update logs
// and entry state in flat top-level buckets and never nests them.
type Storage interface {
	// BeginTx starts a new transaction.
	BeginTx(writable bool) (StorageTx, error)
	// Close closes the storage.
	Close() error
}

// StorageTx is a storage transaction. Read transactions see a stable
// snapshot; write transactions are exclusive and atomic at Commit.
type StorageTx interface {
	// Writable returns true if this is a writable transaction.
	Writable() bool

	// Bucket returns a bucket, nil if it doesn't exist.
	Bucket(name string) StorageBucket

	// CreateBucket creates a bucket if it doesn't exist.
	CreateBucket(name string) (StorageBucket, error)

	// Commit commits the transaction.
	Commit() error

	// Rollback aborts the transaction. Safe to call after Commit.
	Rollback() error

	// Size returns the database size in bytes (0 if unknown).
	Size() int64
}

// StorageBucket is a sorted key-value collection.
type StorageBucket interface {
	// Get retrieves a value by key. Returns nil if not found.
	Get(key []byte) []byte

	// Put stores a key-value pair. The value must stay untouched until the
	// transaction ends.
	Put(key, value []byte) error

	// Delete removes a key.
	Delete(key []byte) error

	// Cursor returns a cursor for iteration.
	Cursor() StorageCursor

	// KeyCount returns the number of keys in the bucket (best effort).
	KeyCount() int
}

// StorageCursor iterates a bucket in ascending key order.
type StorageCursor interface {
	// First moves to the first key-value pair.
	First() (key, value []byte)

	// Seek moves to the first key >= seek.
	Seek(seek []byte) (key, value []byte)

	// Next moves to the next key-value pair.
	Next() (key, value []byte)
}
