package syncdb

import (
	"encoding/binary"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/andreyvit/syncdb/rdoc"
)

// Persisted value layouts:
//
//	update   = flags:uvarint checksum:8 vector:varbytes origin:varbytes payload:varbytes
//	snapshot = flags:uvarint checksum:8 vector:varbytes payload:varbytes
//	state    = msgpack {s: last seq, p: pending count}
//
// Checksums are xxhash64 over the uncompressed payload. Snapshot payloads
// are zstd-compressed unless NoCompression is set; update payloads are
// stored raw, they are small and short-lived.

const (
	snapFlagZstd = 1 << 0
)

var (
	zstdEnc = must(zstd.NewWriter(nil))
	zstdDec = must(zstd.NewReader(nil))
)

func encodeUpdateValue(buf []byte, rec *rdoc.UpdateRecord) []byte {
	vec := rec.Vector.Encode()
	bb := prealloc(buf, 4*binary.MaxVarintLen64+8+len(vec)+len(rec.Origin)+len(rec.Update))
	bb.AppendUvarint(0)
	bb.AppendFixedUint64(xxhash.Sum64(rec.Update))
	bb.AppendVarBytes(vec)
	bb.AppendVarString(string(rec.Origin))
	bb.AppendVarBytes(rec.Update)
	return bb.Trimmed()
}

func decodeUpdateValue(data []byte) (*rdoc.UpdateRecord, error) {
	d := makeByteDecoder(data)
	flags, err := d.Uvarint()
	if err != nil {
		return nil, err
	}
	if flags != 0 {
		return nil, dataErrf(data, 0, nil, "unsupported update record flags %b", flags)
	}
	sum, err := d.Raw(8)
	if err != nil {
		return nil, err
	}
	vec, err := d.VarBytes()
	if err != nil {
		return nil, err
	}
	origin, err := d.VarBytes()
	if err != nil {
		return nil, err
	}
	payload, err := d.VarBytes()
	if err != nil {
		return nil, err
	}
	if xxhash.Sum64(payload) != binary.BigEndian.Uint64(sum) {
		return nil, dataErrf(data, 0, nil, "update record checksum mismatch")
	}
	sv, err := rdoc.DecodeStateVector(vec)
	if err != nil {
		return nil, err
	}
	return &rdoc.UpdateRecord{
		Vector: sv,
		Update: slices.Clone(payload),
		Origin: rdoc.Origin(origin),
	}, nil
}

func encodeSnapshotValue(buf []byte, enc *rdoc.EncodedDoc, compress bool) []byte {
	vec := enc.Vector.Encode()
	payload := enc.State
	var flags uint64
	if compress {
		payload = zstdEnc.EncodeAll(payload, nil)
		flags |= snapFlagZstd
	}
	bb := prealloc(buf, 4*binary.MaxVarintLen64+8+len(vec)+len(payload))
	bb.AppendUvarint(flags)
	bb.AppendFixedUint64(xxhash.Sum64(enc.State))
	bb.AppendVarBytes(vec)
	bb.AppendVarBytes(payload)
	return bb.Trimmed()
}

func decodeSnapshotValue(data []byte) (*rdoc.EncodedDoc, error) {
	d := makeByteDecoder(data)
	flags, err := d.Uvarint()
	if err != nil {
		return nil, err
	}
	if flags&^snapFlagZstd != 0 {
		return nil, dataErrf(data, 0, nil, "unsupported snapshot flags %b", flags)
	}
	sum, err := d.Raw(8)
	if err != nil {
		return nil, err
	}
	vec, err := d.VarBytes()
	if err != nil {
		return nil, err
	}
	payload, err := d.VarBytes()
	if err != nil {
		return nil, err
	}
	var state []byte
	if flags&snapFlagZstd != 0 {
		state, err = zstdDec.DecodeAll(payload, nil)
		if err != nil {
			return nil, dataErrf(data, 0, err, "snapshot decompression failed")
		}
	} else {
		state = slices.Clone(payload)
	}
	if xxhash.Sum64(state) != binary.BigEndian.Uint64(sum) {
		return nil, dataErrf(data, 0, nil, "snapshot checksum mismatch")
	}
	sv, err := rdoc.DecodeStateVector(vec)
	if err != nil {
		return nil, err
	}
	return &rdoc.EncodedDoc{Vector: sv, State: state}, nil
}

// docState is the per-entry bookkeeping row. LastSeq only ever grows, so
// update log keys are never reused even across flushes.
type docState struct {
	LastSeq uint64 `msgpack:"s"`
	Pending int    `msgpack:"p"`
}

func encodeDocState(buf []byte, st docState) []byte {
	return encodeMsgpackValue(buf, &st)
}

func decodeDocState(data []byte) (docState, error) {
	var st docState
	err := decodeMsgpackValue(data, &st)
	return st, err
}
