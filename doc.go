/*
Package syncdb persists replicated documents (see the rdoc subpackage) on top
of a key-value store (in this case, on top of Bolt).

Every persisted entry is identified by (uid, scope, object) and consists of:

1. A snapshot: the full document state as of the last flush or compaction.

2. An update log: one record per committed write transaction since the
snapshot, in commit order.

3. A state row with the log's last sequence number and pending record count.

Loading an entry replays the snapshot and then the log. Once the pending
count reaches the snapshot interval, the entry is compacted: the log is
folded into a fresh snapshot within the same write transaction. Closing a
document handle always flushes, so reopened entries start with an empty log.

# Technical details

**Buckets.**
We use three flat buckets: "state", "snapshots" and "updates". Entry keys are
shared across all three; update log keys append a sequence number.

**Key encoding.**
1. UID (8 bytes, big-endian).
2. Scope length (uvarint), scope bytes.
3. Object length (uvarint), object bytes.
4. Update log keys only: sequence number (8 bytes, big-endian).

Length prefixes keep one entry key from being a prefix of another; the fixed
big-endian tail keeps a single entry's log in append order.

**Update record value**:
1. Flags (uvarint), currently always zero.
2. Checksum (8 bytes): xxhash64 of the update payload.
3. State vector length (uvarint), state vector bytes.
4. Origin length (uvarint), origin bytes.
5. Update payload length (uvarint), update payload bytes.

**Snapshot value**: same shape minus the origin; the payload is the encoded
document state, zstd-compressed unless NoCompression is set, with the
checksum taken over the uncompressed bytes.

**State row value**: msgpack of the docState struct.
*/
package syncdb
