package syncdb

// DocStats describes the persisted shape of one entry.
type DocStats struct {
	Exists        bool
	LastSeq       uint64
	Pending       int
	LogRecords    int // physical update log count; equals Pending unless the state row is damaged
	SnapshotBytes int
}

func (tx *Tx) DocStats(key DocKey) DocStats {
	kb := appendDocKey(nil, key)
	var st DocStats
	if data := tx.bucket(bucketState).Get(kb); data != nil {
		meta, err := decodeDocState(data)
		if err != nil {
			panic(storeErr("stats", key, err))
		}
		st.Exists = true
		st.LastSeq = meta.LastSeq
		st.Pending = meta.Pending
	}
	st.LogRecords = countPrefix(tx.bucket(bucketUpdates), kb)
	st.SnapshotBytes = len(tx.bucket(bucketSnapshots).Get(kb))
	return st
}

// DBStats aggregates whole-store counters since Open.
type DBStats struct {
	Reads       uint64
	Writes      uint64
	Compactions uint64
	Size        int64
}

func (db *DB) Stats() DBStats {
	return DBStats{
		Reads:       db.ReadCount.Load(),
		Writes:      db.WriteCount.Load(),
		Compactions: db.CompactionCount.Load(),
		Size:        db.lastSize.Load(),
	}
}
