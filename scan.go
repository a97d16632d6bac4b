package syncdb

import (
	"bytes"
	"iter"
	"slices"
)

// scanPrefix iterates key-value pairs whose keys start with prefix, in key
// order. Keys and values alias storage memory and are only valid until the
// transaction ends.
func scanPrefix(b StorageBucket, prefix []byte) iter.Seq2[[]byte, []byte] {
	return func(yield func([]byte, []byte) bool) {
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if !yield(k, v) {
				return
			}
		}
	}
}

// deletePrefix removes every key starting with prefix and reports the count.
// Keys are collected first, deletion never runs under an open cursor.
func deletePrefix(b StorageBucket, prefix []byte) (int, error) {
	var keys [][]byte
	for k := range scanPrefix(b, prefix) {
		keys = append(keys, slices.Clone(k))
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}

func countPrefix(b StorageBucket, prefix []byte) int {
	var n int
	for range scanPrefix(b, prefix) {
		n++
	}
	return n
}
