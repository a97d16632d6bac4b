package syncdb

import (
	"encoding/binary"
	"fmt"
	"strings"
)

type DumpFlags uint64

const (
	DumpEntries = DumpFlags(1 << iota)
	DumpSnapshots
	DumpLog

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)

	indentStep = "  "
)

var (
	dumpSep1 = strings.Repeat("=", 80)
	dumpSep2 = strings.Repeat("-", 60)
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump renders the store's entries, for debugging and test failure output.
func (tx *Tx) Dump(f DumpFlags) string {
	var buf strings.Builder
	for k, v := range scanPrefix(tx.bucket(bucketState), nil) {
		key, err := parseDocKey(k)
		if err != nil {
			fmt.Fprintln(&buf, dumpSep1)
			fmt.Fprintf(&buf, "** bad state key %s: %v\n", hexstr(k), err)
			continue
		}
		meta, err := decodeDocState(v)
		if err != nil {
			fmt.Fprintln(&buf, dumpSep1)
			fmt.Fprintf(&buf, "%s ** bad state row: %v\n", key, err)
			continue
		}
		if f.Contains(DumpEntries) {
			fmt.Fprintln(&buf, dumpSep1)
			fmt.Fprintf(&buf, "%s (seq %d, pending %d)\n", key, meta.LastSeq, meta.Pending)
		}
		kb := appendDocKey(nil, key)
		if f.Contains(DumpSnapshots) {
			if data := tx.bucket(bucketSnapshots).Get(kb); data != nil {
				fmt.Fprintf(&buf, "%ssnapshot = %d bytes\n", indentStep, len(data))
			}
		}
		if f.Contains(DumpLog) {
			fmt.Fprintln(&buf, dumpSep2)
			for uk, uv := range scanPrefix(tx.bucket(bucketUpdates), kb) {
				seq := binary.BigEndian.Uint64(uk[len(uk)-8:])
				rec, err := decodeUpdateValue(uv)
				if err != nil {
					fmt.Fprintf(&buf, "%slog.%d ** ERROR: %v\n", indentStep, seq, err)
					continue
				}
				fmt.Fprintf(&buf, "%slog.%d = origin %q (%d bytes)\n", indentStep, seq, rec.Origin, len(rec.Update))
			}
		}
	}
	return buf.String()
}
