package rdoc

// Txn is the read side common to both transaction kinds. It is implemented
// only by *ReadTxn and *WriteTxn.
type Txn interface {
	Root() MapRef
	StateVector() StateVector
	doc() *Doc
}

// ReadTxn holds the document's read lock until End. It is not goroutine-safe;
// use one transaction per goroutine.
type ReadTxn struct {
	d    *Doc
	done bool
}

func (d *Doc) BeginRead() *ReadTxn {
	d.mu.RLock()
	return &ReadTxn{d: d}
}

func (d *Doc) TryBeginRead() (*ReadTxn, bool) {
	if !d.mu.TryRLock() {
		return nil, false
	}
	return &ReadTxn{d: d}, true
}

func (tx *ReadTxn) Root() MapRef { return MapRef{} }

func (tx *ReadTxn) StateVector() StateVector { return tx.d.vec.Clone() }

func (tx *ReadTxn) doc() *Doc { return tx.d }

// End releases the read lock. Safe to call twice.
func (tx *ReadTxn) End() {
	if tx.done {
		return
	}
	tx.done = true
	tx.d.mu.RUnlock()
}

// WriteTxn holds the document's write lock until Commit. Mutations apply to
// the document immediately and are staged for the commit record; there is no
// rollback, every write transaction must end in Commit.
type WriteTxn struct {
	d      *Doc
	origin Origin
	before StateVector
	ops    []op
	done   bool
}

func (d *Doc) BeginWrite(origin Origin) *WriteTxn {
	d.mu.Lock()
	return &WriteTxn{d: d, origin: origin, before: d.vec.Clone()}
}

func (d *Doc) TryBeginWrite(origin Origin) (*WriteTxn, bool) {
	if !d.mu.TryLock() {
		return nil, false
	}
	return &WriteTxn{d: d, origin: origin, before: d.vec.Clone()}, true
}

func (tx *WriteTxn) Root() MapRef { return MapRef{} }

func (tx *WriteTxn) StateVector() StateVector { return tx.d.vec.Clone() }

func (tx *WriteTxn) Origin() Origin { return tx.origin }

func (tx *WriteTxn) doc() *Doc { return tx.d }

// stage applies one local op and queues it for the commit record. Local ops
// always carry a fresh clock, so they cannot lose a merge.
func (tx *WriteTxn) stage(path []string, kind opKind, value any) {
	d := tx.d
	d.clock++
	o := op{Path: path, Kind: kind, Value: value, Actor: d.actor, Clock: d.clock}
	if !d.root.apply(o) {
		panic("unreachable: local op rejected")
	}
	d.vec.Observe(o.ver())
	tx.ops = append(tx.ops, o)
}

// Commit encodes the staged ops into one update record, runs the commit hooks
// while the write lock is still held, and releases the lock. Returns a nil
// record when the transaction staged nothing; a hook error fails the commit
// after the document state has already advanced.
func (tx *WriteTxn) Commit() (*UpdateRecord, error) {
	if tx.done {
		panic("transaction committed twice")
	}
	tx.done = true
	d := tx.d
	defer d.mu.Unlock()

	if len(tx.ops) == 0 {
		return nil, nil
	}
	rec := &UpdateRecord{
		Vector: tx.before,
		Update: encodeOps(tx.ops),
		Origin: tx.origin,
	}
	for _, f := range d.hooks {
		if err := f(rec); err != nil {
			return rec, err
		}
	}
	return rec, nil
}
