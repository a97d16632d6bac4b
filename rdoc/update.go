package rdoc

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

type opKind uint8

const (
	opSet opKind = iota
	opDel
)

// op is one versioned leaf write. Path addresses the leaf from the root;
// containers along the path materialize implicitly.
type op struct {
	Path  []string `msgpack:"p"`
	Kind  opKind   `msgpack:"k"`
	Value any      `msgpack:"v"`
	Actor ActorID  `msgpack:"a"`
	Clock uint64   `msgpack:"c"`
}

func (o op) ver() Version {
	return Version{o.Actor, o.Clock}
}

// UpdateRecord is the unit of replication and durable logging: the ops of one
// committed write transaction, the state vector the writer had observed
// before the transaction, and the origin the transaction was opened with.
type UpdateRecord struct {
	Vector StateVector
	Update []byte
	Origin Origin
}

// EncodedDoc is a full snapshot: the document's state vector plus its entire
// state encoded as one update applicable to an empty document.
type EncodedDoc struct {
	Vector StateVector
	State  []byte
}

func encodeOps(ops []op) []byte {
	var bb bytes.Buffer
	enc := msgpack.GetEncoder()
	enc.ResetDict(&bb, nil)
	enc.SetSortMapKeys(true)
	err := enc.Encode(ops)
	msgpack.PutEncoder(enc)
	ensure(err)
	return bb.Bytes()
}

func decodeOps(update []byte) ([]op, error) {
	var ops []op
	var r bytes.Reader
	r.Reset(update)
	dec := msgpack.GetDecoder()
	dec.ResetDict(&r, nil)
	err := dec.Decode(&ops)
	msgpack.PutDecoder(dec)
	if err != nil {
		return nil, fmt.Errorf("rdoc: bad update encoding: %w", err)
	}
	for i := range ops {
		if len(ops[i].Path) == 0 {
			return nil, fmt.Errorf("rdoc: bad update encoding: op %d has empty path", i)
		}
		ops[i].Value = normalize(ops[i].Value)
	}
	return ops, nil
}

func encodeMsgpack(v any) []byte {
	var bb bytes.Buffer
	enc := msgpack.GetEncoder()
	enc.ResetDict(&bb, nil)
	enc.SetSortMapKeys(true)
	err := enc.Encode(v)
	msgpack.PutEncoder(enc)
	ensure(err)
	return bb.Bytes()
}

func decodeMsgpack(data []byte, v any) error {
	var r bytes.Reader
	r.Reset(data)
	dec := msgpack.GetDecoder()
	dec.ResetDict(&r, nil)
	err := dec.Decode(v)
	msgpack.PutDecoder(dec)
	return err
}

// ApplyUpdate merges an encoded update into the transaction's document.
// Each op merges by version: equal and older versions change nothing, so
// duplicate delivery applies zero ops and commits no record. The ops that
// do apply are staged, so the commit record carries exactly the delta this
// document accepted. Returns the number of ops applied.
func (tx *WriteTxn) ApplyUpdate(update []byte) (int, error) {
	ops, err := decodeOps(update)
	if err != nil {
		return 0, err
	}
	d := tx.d
	applied := 0
	for _, o := range ops {
		// Never pre-filter through the state vector: snapshots list ops
		// in path order, so a same-actor op can follow a higher-clocked
		// one within a single payload.
		if d.root.apply(o) {
			applied++
			tx.ops = append(tx.ops, o)
		}
		d.vec.Observe(o.ver())
		if o.Clock > d.clock {
			d.clock = o.Clock
		}
	}
	return applied, nil
}

// ApplyRecord is ApplyUpdate for a full record.
func (tx *WriteTxn) ApplyRecord(rec *UpdateRecord) (int, error) {
	return tx.ApplyUpdate(rec.Update)
}

// MergeVector folds a persisted state vector into the document's, advancing
// the clock past every observed counter. Loading replays call this so that
// counters observed before a snapshot stay observed and fresh local writes
// keep winning their merges.
func (tx *WriteTxn) MergeVector(sv StateVector) {
	d := tx.d
	for a, n := range sv {
		if d.vec[a] < n {
			d.vec[a] = n
		}
		if n > d.clock {
			d.clock = n
		}
	}
}

// EncodeStateAsUpdate encodes every entry not covered by since as one update.
// A nil vector yields the full document state in deterministic path order.
func EncodeStateAsUpdate(tx Txn, since StateVector) []byte {
	return encodeOps(tx.doc().root.collect(nil, since, nil))
}

// EncodeDoc snapshots the document within an open transaction.
func EncodeDoc(tx Txn) *EncodedDoc {
	d := tx.doc()
	return &EncodedDoc{
		Vector: d.vec.Clone(),
		State:  EncodeStateAsUpdate(tx, nil),
	}
}
