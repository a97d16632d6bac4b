package syncdb

import (
	"context"
	"log/slog"

	"github.com/andreyvit/syncdb/rdoc"
)

// LoadDoc replays the entry at key into wtx: the base snapshot first, then
// the pending update records in append order. A missing entry replays
// nothing. Returns the number of pending records replayed.
func (tx *Tx) LoadDoc(key DocKey, wtx *rdoc.WriteTxn) (int, error) {
	kb := appendDocKey(nil, key)
	if data := tx.bucket(bucketSnapshots).Get(kb); data != nil {
		enc, err := decodeSnapshotValue(data)
		if err != nil {
			return 0, storeErr("load", key, err)
		}
		if _, err := wtx.ApplyUpdate(enc.State); err != nil {
			return 0, storeErr("load", key, err)
		}
		wtx.MergeVector(enc.Vector)
	}
	var count int
	for _, v := range scanPrefix(tx.bucket(bucketUpdates), kb) {
		rec, err := decodeUpdateValue(v)
		if err != nil {
			return count, storeErr("load", key, err)
		}
		if _, err := wtx.ApplyRecord(rec); err != nil {
			return count, storeErr("load", key, err)
		}
		wtx.MergeVector(rec.Vector)
		count++
	}
	if tx.db.verbose {
		tx.db.logger.LogAttrs(context.Background(), slog.LevelDebug, "syncdb: load",
			slog.String("key", key.String()), slog.Int("updates", count))
	}
	return count, nil
}

// PushUpdate appends one update record to the entry's log. When the pending
// count reaches the snapshot interval, the entry is compacted within the
// same transaction.
func (tx *Tx) PushUpdate(key DocKey, rec *rdoc.UpdateRecord) error {
	meta, err := tx.loadState(key)
	if err != nil {
		return storeErr("push", key, err)
	}
	meta.LastSeq++
	meta.Pending++
	err = tx.bucket(bucketUpdates).Put(appendUpdateKey(nil, key, meta.LastSeq), encodeUpdateValue(nil, rec))
	if err != nil {
		return storeErr("push", key, err)
	}
	if tx.db.verbose {
		tx.db.logger.LogAttrs(context.Background(), slog.LevelDebug, "syncdb: push",
			slog.String("key", key.String()), slog.Uint64("seq", meta.LastSeq), slog.Int("pending", meta.Pending))
	}
	if !tx.db.noAutoCompaction && meta.Pending >= tx.db.snapshotInterval {
		if err := tx.compact(key, &meta); err != nil {
			return storeErr("compact", key, err)
		}
	}
	if err := tx.saveState(key, meta); err != nil {
		return storeErr("push", key, err)
	}
	return nil
}

type DocUpdate struct {
	Key    DocKey
	Record *rdoc.UpdateRecord
}

// PushUpdates appends a batch of records atomically, in one write
// transaction. Either all records land or none do.
func (db *DB) PushUpdates(updates []DocUpdate) error {
	return db.Tx(true, func(tx *Tx) error {
		for _, u := range updates {
			if err := tx.PushUpdate(u.Key, u.Record); err != nil {
				return err
			}
		}
		return nil
	})
}

// FlushDoc replaces the entry with a snapshot of enc and clears its update
// log, leaving zero pending records.
func (tx *Tx) FlushDoc(key DocKey, enc *rdoc.EncodedDoc) error {
	meta, err := tx.loadState(key)
	if err != nil {
		return storeErr("flush", key, err)
	}
	kb := appendDocKey(nil, key)
	err = tx.bucket(bucketSnapshots).Put(kb, encodeSnapshotValue(nil, enc, !tx.db.noCompression))
	if err != nil {
		return storeErr("flush", key, err)
	}
	if _, err := deletePrefix(tx.bucket(bucketUpdates), kb); err != nil {
		return storeErr("flush", key, err)
	}
	meta.Pending = 0
	if err := tx.saveState(key, meta); err != nil {
		return storeErr("flush", key, err)
	}
	if tx.db.verbose {
		tx.db.logger.LogAttrs(context.Background(), slog.LevelDebug, "syncdb: flush",
			slog.String("key", key.String()))
	}
	return nil
}

// CompactDoc folds the entry's pending update records into its snapshot
// without a live document, by replaying them into a scratch one. A fully
// compacted or missing entry is left untouched.
func (tx *Tx) CompactDoc(key DocKey) error {
	meta, err := tx.loadState(key)
	if err != nil {
		return storeErr("compact", key, err)
	}
	if meta.Pending == 0 {
		return nil
	}
	if err := tx.compact(key, &meta); err != nil {
		return storeErr("compact", key, err)
	}
	return storeErr("compact", key, tx.saveState(key, meta))
}

func (tx *Tx) compact(key DocKey, meta *docState) error {
	scratch := rdoc.New(rdoc.Options{Logger: tx.db.logger})
	wtx := scratch.BeginWrite("")
	folded, err := tx.LoadDoc(key, wtx)
	if err != nil {
		return err
	}
	if _, err := wtx.Commit(); err != nil {
		return err
	}
	enc := scratch.EncodeDoc()

	kb := appendDocKey(nil, key)
	err = tx.bucket(bucketSnapshots).Put(kb, encodeSnapshotValue(nil, enc, !tx.db.noCompression))
	if err != nil {
		return err
	}
	if _, err := deletePrefix(tx.bucket(bucketUpdates), kb); err != nil {
		return err
	}
	meta.Pending = 0
	tx.db.CompactionCount.Add(1)
	tx.db.logger.LogAttrs(context.Background(), slog.LevelDebug, "syncdb: compacted",
		slog.String("key", key.String()), slog.Int("folded", folded))
	return nil
}

// DeleteDoc removes the entry's snapshot, update log and bookkeeping
// atomically. Deleting a missing entry is a no-op.
func (tx *Tx) DeleteDoc(key DocKey) error {
	kb := appendDocKey(nil, key)
	if err := tx.bucket(bucketSnapshots).Delete(kb); err != nil {
		return storeErr("delete", key, err)
	}
	if _, err := deletePrefix(tx.bucket(bucketUpdates), kb); err != nil {
		return storeErr("delete", key, err)
	}
	if err := tx.bucket(bucketState).Delete(kb); err != nil {
		return storeErr("delete", key, err)
	}
	if tx.db.verbose {
		tx.db.logger.LogAttrs(context.Background(), slog.LevelDebug, "syncdb: delete",
			slog.String("key", key.String()))
	}
	return nil
}

// DocExists reports whether the entry has ever been pushed to or flushed
// (and not deleted since).
func (tx *Tx) DocExists(key DocKey) bool {
	return tx.bucket(bucketState).Get(appendDocKey(nil, key)) != nil
}

// PendingUpdates returns the number of update records accumulated since the
// entry's last snapshot.
func (tx *Tx) PendingUpdates(key DocKey) int {
	meta, err := tx.loadState(key)
	if err != nil {
		panic(storeErr("pending", key, err))
	}
	return meta.Pending
}

// Docs lists the objects stored under (uid, scope) in key order.
func (tx *Tx) Docs(uid int64, scope string) ([]DocKey, error) {
	prefix := appendScopePrefix(nil, uid, scope)
	var keys []DocKey
	for k := range scanPrefix(tx.bucket(bucketState), prefix) {
		dk, err := parseDocKey(k)
		if err != nil {
			return keys, err
		}
		keys = append(keys, dk)
	}
	return keys, nil
}

func (tx *Tx) loadState(key DocKey) (docState, error) {
	data := tx.bucket(bucketState).Get(appendDocKey(nil, key))
	if data == nil {
		return docState{}, nil
	}
	return decodeDocState(data)
}

func (tx *Tx) saveState(key DocKey, st docState) error {
	return tx.bucket(bucketState).Put(appendDocKey(nil, key), encodeDocState(nil, st))
}
