package rdoc

import "sort"

// node is one map container. An entry is either a leaf (value plus version,
// possibly a tombstone) or a child container. maxVer tracks the highest
// version applied anywhere in the subtree; kind conflicts at a path resolve
// against it.
type node struct {
	entries map[string]*entry
	maxVer  Version
}

type entry struct {
	ver     Version
	value   any
	deleted bool
	child   *node
}

func newNode() *node {
	return &node{entries: make(map[string]*entry)}
}

// lookup descends the container path. Fails on vacancy and on leaves.
func (n *node) lookup(path []string) (*node, bool) {
	cur := n
	for _, k := range path {
		e := cur.entries[k]
		if e == nil || e.child == nil {
			return nil, false
		}
		cur = e.child
	}
	return cur, true
}

// ensure creates missing containers along path. Returns nil if a leaf blocks
// the path; the leaf stays until a versioned op through it wins the merge.
func (n *node) ensure(path []string) *node {
	cur := n
	for _, k := range path {
		e := cur.entries[k]
		switch {
		case e == nil:
			child := newNode()
			cur.entries[k] = &entry{child: child}
			cur = child
		case e.child != nil:
			cur = e.child
		default:
			return nil
		}
	}
	return cur
}

// applies decides whether op version v wins at its path. Vacant suffix wins;
// a leaf in the way or at the target compares against the leaf version; a
// container at the target compares against the subtree maximum.
func (n *node) applies(o op, v Version) bool {
	cur := n
	last := len(o.Path) - 1
	for i, k := range o.Path {
		e := cur.entries[k]
		if e == nil {
			return true
		}
		if i == last {
			if e.child != nil {
				return v.Newer(e.child.maxVer)
			}
			return v.Newer(e.ver)
		}
		if e.child == nil {
			return v.Newer(e.ver)
		}
		cur = e.child
	}
	return false
}

// apply merges one op into the tree. Reports whether the op changed state;
// stale and equal-version ops are no-ops and leave no trace.
func (n *node) apply(o op) bool {
	if len(o.Path) == 0 {
		return false
	}
	v := o.ver()
	if !n.applies(o, v) {
		return false
	}
	cur := n
	last := len(o.Path) - 1
	for i, k := range o.Path {
		if v.Newer(cur.maxVer) {
			cur.maxVer = v
		}
		if i == last {
			if e := cur.entries[k]; e != nil && e.child == nil {
				e.ver, e.value, e.deleted = v, o.Value, o.Kind == opDel
			} else {
				cur.entries[k] = &entry{ver: v, value: o.Value, deleted: o.Kind == opDel}
			}
			break
		}
		e := cur.entries[k]
		if e == nil || e.child == nil {
			child := newNode()
			cur.entries[k] = &entry{child: child}
			cur = child
		} else {
			cur = e.child
		}
	}
	return true
}

// collect appends an op for every leaf and tombstone not covered by since,
// in sorted path order. A nil vector collects everything.
func (n *node) collect(prefix []string, since StateVector, ops []op) []op {
	keys := make([]string, 0, len(n.entries))
	for k := range n.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		e := n.entries[k]
		if e.child != nil {
			ops = e.child.collect(append(prefix, k), since, ops)
			continue
		}
		if since.Includes(e.ver) {
			continue
		}
		path := make([]string, len(prefix)+1)
		copy(path, prefix)
		path[len(prefix)] = k
		kind := opSet
		if e.deleted {
			kind = opDel
		}
		ops = append(ops, op{Path: path, Kind: kind, Value: e.value, Actor: e.ver.Actor, Clock: e.ver.Counter})
	}
	return ops
}
