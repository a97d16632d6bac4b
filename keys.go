package syncdb

import (
	"encoding/binary"
	"fmt"
)

// DocKey identifies one persisted entry: the owning user, a scope grouping
// (workspace or equivalent), and the object id within it. The same object id
// under different scopes is a fully independent entry.
type DocKey struct {
	UID    int64
	Scope  string
	Object string
}

func (k DocKey) String() string {
	return fmt.Sprintf("%d/%s/%s", k.UID, k.Scope, k.Object)
}

// appendDocKey encodes uid:8 len(scope):uvarint scope len(object):uvarint
// object. Length prefixes keep one key from ever being a prefix of another,
// so per-entry range scans cannot bleed into a neighbor.
func appendDocKey(buf []byte, k DocKey) []byte {
	bb := prealloc(buf, 8+2*binary.MaxVarintLen64+len(k.Scope)+len(k.Object))
	bb.AppendFixedUint64(uint64(k.UID))
	bb.AppendVarString(k.Scope)
	bb.AppendVarString(k.Object)
	return bb.Trimmed()
}

// appendUpdateKey is the entry key plus a big-endian sequence number, so the
// update log of an entry scans in append order.
func appendUpdateKey(buf []byte, k DocKey, seq uint64) []byte {
	buf = appendDocKey(buf, k)
	off, buf := grow(buf, 8)
	binary.BigEndian.PutUint64(buf[off:], seq)
	return buf
}

// appendScopePrefix encodes the uid+scope prefix shared by every object in
// the scope.
func appendScopePrefix(buf []byte, uid int64, scope string) []byte {
	bb := prealloc(buf, 8+binary.MaxVarintLen64+len(scope))
	bb.AppendFixedUint64(uint64(uid))
	bb.AppendVarString(scope)
	return bb.Trimmed()
}

func parseDocKey(data []byte) (DocKey, error) {
	d := makeByteDecoder(data)
	uidRaw, err := d.Raw(8)
	if err != nil {
		return DocKey{}, err
	}
	scope, err := d.VarBytes()
	if err != nil {
		return DocKey{}, err
	}
	object, err := d.VarBytes()
	if err != nil {
		return DocKey{}, err
	}
	if d.Remaining() != 0 {
		return DocKey{}, dataErrf(data, d.Off(), nil, "trailing bytes in entry key")
	}
	return DocKey{
		UID:    int64(binary.BigEndian.Uint64(uidRaw)),
		Scope:  string(scope),
		Object: string(object),
	}, nil
}
