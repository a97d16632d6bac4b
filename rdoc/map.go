package rdoc

import (
	"iter"
	"sort"
)

// MapRef addresses one map container by path. The zero value is the document
// root. Refs stay valid across transactions; reads and writes resolve the
// path against the transaction's document.
type MapRef struct {
	path []string
}

// Child returns a ref to the container under key, whether or not it exists.
func (m MapRef) Child(key string) MapRef {
	path := make([]string, len(m.path)+1)
	copy(path, m.path)
	path[len(m.path)] = key
	return MapRef{path}
}

func (m MapRef) resolve(tx Txn) *node {
	n, ok := tx.doc().root.lookup(m.path)
	if !ok {
		return nil
	}
	return n
}

// Get returns the leaf value at key. Containers, tombstones and vacant keys
// read as absent. Composite values alias document state; treat as read-only.
func (m MapRef) Get(tx Txn, key string) (Value, bool) {
	n := m.resolve(tx)
	if n == nil {
		return nil, false
	}
	e := n.entries[key]
	if e == nil || e.child != nil || e.deleted {
		return nil, false
	}
	return e.value, true
}

// GetMap returns a ref to the child container at key if one exists.
func (m MapRef) GetMap(tx Txn, key string) (MapRef, bool) {
	n := m.resolve(tx)
	if n == nil {
		return MapRef{}, false
	}
	e := n.entries[key]
	if e == nil || e.child == nil {
		return MapRef{}, false
	}
	return m.Child(key), true
}

func (m MapRef) Has(tx Txn, key string) bool {
	n := m.resolve(tx)
	if n == nil {
		return false
	}
	e := n.entries[key]
	return e != nil && (e.child != nil || !e.deleted)
}

// Keys returns the container's keys in its native (sorted) order, skipping
// tombstones.
func (m MapRef) Keys(tx Txn) []string {
	n := m.resolve(tx)
	if n == nil {
		return nil
	}
	keys := make([]string, 0, len(n.entries))
	for k, e := range n.entries {
		if e.child == nil && e.deleted {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m MapRef) Len(tx Txn) int {
	n := m.resolve(tx)
	if n == nil {
		return 0
	}
	count := 0
	for _, e := range n.entries {
		if e.child == nil && e.deleted {
			continue
		}
		count++
	}
	return count
}

// Seq iterates leaf entries in native order. Child containers are skipped;
// list them via Keys and descend with GetMap.
func (m MapRef) Seq(tx Txn) iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		n := m.resolve(tx)
		if n == nil {
			return
		}
		for _, k := range m.Keys(tx) {
			e := n.entries[k]
			if e == nil || e.child != nil {
				continue
			}
			if !yield(k, e.value) {
				return
			}
		}
	}
}

// Set writes a leaf value at key, replacing any leaf or container there.
func (m MapRef) Set(tx *WriteTxn, key string, value Value) {
	tx.stage(m.Child(key).path, opSet, normalize(value))
}

// SetMap ensures a child container at key and returns its ref. Containers are
// structural: they become visible to other replicas once a descendant leaf is
// written, so write leaves promptly.
func (m MapRef) SetMap(tx *WriteTxn, key string) MapRef {
	child := m.Child(key)
	tx.d.root.ensure(child.path)
	return child
}

// Delete tombstones the entry at key. Deleting a vacant key stages nothing.
func (m MapRef) Delete(tx *WriteTxn, key string) {
	n := m.resolve(tx)
	if n == nil {
		return
	}
	e := n.entries[key]
	if e == nil || (e.child == nil && e.deleted) {
		return
	}
	tx.stage(m.Child(key).path, opDel, nil)
}
