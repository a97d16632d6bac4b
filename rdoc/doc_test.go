package rdoc

import (
	"errors"
	"reflect"
	"testing"
)

func TestMapBasics(t *testing.T) {
	d := New(Options{Actor: 1})

	_, err := d.Update("test", func(tx *WriteTxn) {
		root := tx.Root()
		root.Set(tx, "title", "hello")
		root.Set(tx, "count", 42)
		meta := root.SetMap(tx, "meta")
		meta.Set(tx, "author", "bob")
	})
	ensure(err)

	d.Read(func(tx *ReadTxn) {
		root := tx.Root()
		v, ok := root.Get(tx, "title")
		if !ok {
			t.Fatalf("title missing")
		}
		deepEqual(t, v, "hello")

		v, _ = root.Get(tx, "count")
		deepEqual(t, v, any(int64(42)))

		if _, ok := root.Get(tx, "nope"); ok {
			t.Errorf("expected absence for nope")
		}
		if _, ok := root.Get(tx, "meta"); ok {
			t.Errorf("containers must not read as leaves")
		}

		meta, ok := root.GetMap(tx, "meta")
		if !ok {
			t.Fatalf("meta missing")
		}
		v, _ = meta.Get(tx, "author")
		deepEqual(t, v, "bob")

		deepEqual(t, root.Keys(tx), []string{"count", "meta", "title"})
		deepEqual(t, root.Len(tx), 3)
	})
}

func TestDeleteTombstones(t *testing.T) {
	d := New(Options{Actor: 1})

	_, err := d.Update("test", func(tx *WriteTxn) {
		tx.Root().Set(tx, "a", "1")
		tx.Root().Set(tx, "b", "2")
	})
	ensure(err)
	_, err = d.Update("test", func(tx *WriteTxn) {
		tx.Root().Delete(tx, "a")
	})
	ensure(err)

	d.Read(func(tx *ReadTxn) {
		if _, ok := tx.Root().Get(tx, "a"); ok {
			t.Errorf("deleted key still readable")
		}
		deepEqual(t, tx.Root().Keys(tx), []string{"b"})
		deepEqual(t, tx.Root().Len(tx), 1)
	})

	// deleting a vacant key must not stage anything
	rec, err := d.Update("test", func(tx *WriteTxn) {
		tx.Root().Delete(tx, "a")
		tx.Root().Delete(tx, "zzz")
	})
	ensure(err)
	if rec != nil {
		t.Errorf("vacant delete produced a record")
	}
}

func TestLWWTieBreaksTowardHigherActor(t *testing.T) {
	a := New(Options{Actor: 1})
	b := New(Options{Actor: 2})

	recA := mustUpdate(t, a, "a", func(tx *WriteTxn) { tx.Root().Set(tx, "k", "from-a") })
	recB := mustUpdate(t, b, "b", func(tx *WriteTxn) { tx.Root().Set(tx, "k", "from-b") })

	applyRec(t, a, recB)
	applyRec(t, b, recA)

	deepEqual(t, leaf(a, "k"), "from-b")
	deepEqual(t, leaf(b, "k"), "from-b")
}

func TestHigherCounterWins(t *testing.T) {
	a := New(Options{Actor: 1})
	b := New(Options{Actor: 2})

	mustUpdate(t, a, "a", func(tx *WriteTxn) { tx.Root().Set(tx, "k", "a1") })
	recA := mustUpdate(t, a, "a", func(tx *WriteTxn) { tx.Root().Set(tx, "k", "a2") })
	recB := mustUpdate(t, b, "b", func(tx *WriteTxn) { tx.Root().Set(tx, "k", "b1") })

	applyRec(t, b, recA)
	rec := applyRec(t, a, recB)

	deepEqual(t, leaf(a, "k"), "a2")
	deepEqual(t, leaf(b, "k"), "a2")
	if rec != nil {
		t.Errorf("stale incoming write should not commit a record, got %v", rec)
	}
}

func TestDisjointFieldsMerge(t *testing.T) {
	a := New(Options{Actor: 1})
	b := New(Options{Actor: 2})

	seed := mustUpdate(t, a, "a", func(tx *WriteTxn) {
		row := tx.Root().SetMap(tx, "row1")
		row.Set(tx, "height", 60)
		row.Set(tx, "color", "red")
	})
	applyRec(t, b, seed)

	recA := mustUpdate(t, a, "a", func(tx *WriteTxn) {
		row, _ := tx.Root().GetMap(tx, "row1")
		row.Set(tx, "height", 90)
	})
	recB := mustUpdate(t, b, "b", func(tx *WriteTxn) {
		row, _ := tx.Root().GetMap(tx, "row1")
		row.Set(tx, "color", "blue")
	})

	applyRec(t, a, recB)
	applyRec(t, b, recA)

	for name, d := range map[string]*Doc{"a": a, "b": b} {
		d.Read(func(tx *ReadTxn) {
			row, ok := tx.Root().GetMap(tx, "row1")
			if !ok {
				t.Fatalf("%s: row1 missing", name)
			}
			h, _ := row.Get(tx, "height")
			c, _ := row.Get(tx, "color")
			deepEqual(t, h, any(int64(90)))
			deepEqual(t, c, "blue")
		})
	}
}

func TestDeleteMergesAcrossReplicas(t *testing.T) {
	a := New(Options{Actor: 1})
	b := New(Options{Actor: 2})

	seed := mustUpdate(t, a, "a", func(tx *WriteTxn) { tx.Root().Set(tx, "k", "v") })
	applyRec(t, b, seed)

	del := mustUpdate(t, b, "b", func(tx *WriteTxn) { tx.Root().Delete(tx, "k") })
	applyRec(t, a, del)

	a.Read(func(tx *ReadTxn) {
		if _, ok := tx.Root().Get(tx, "k"); ok {
			t.Errorf("remote delete did not apply")
		}
	})

	// a newer write resurrects the key on both sides
	set := mustUpdate(t, a, "a", func(tx *WriteTxn) { tx.Root().Set(tx, "k", "v2") })
	applyRec(t, b, set)
	deepEqual(t, leaf(a, "k"), "v2")
	deepEqual(t, leaf(b, "k"), "v2")
}

func TestCommitHooksSeeCommitOrder(t *testing.T) {
	d := New(Options{Actor: 1})
	var got []string
	d.OnCommit(func(rec *UpdateRecord) error {
		got = append(got, string(rec.Origin))
		return nil
	})
	d.OnCommit(func(rec *UpdateRecord) error {
		got = append(got, string(rec.Origin)+"+")
		return nil
	})

	mustUpdate(t, d, "one", func(tx *WriteTxn) { tx.Root().Set(tx, "a", 1) })
	mustUpdate(t, d, "two", func(tx *WriteTxn) { tx.Root().Set(tx, "b", 2) })

	// empty transactions commit no record and reach no hook
	rec, err := d.Update("three", func(tx *WriteTxn) {})
	ensure(err)
	if rec != nil {
		t.Errorf("empty transaction produced a record")
	}

	deepEqual(t, got, []string{"one", "one+", "two", "two+"})
}

func TestCommitHookErrorFailsCommit(t *testing.T) {
	d := New(Options{Actor: 1})
	boom := errors.New("boom")
	d.OnCommit(func(rec *UpdateRecord) error { return boom })

	_, err := d.Update("test", func(tx *WriteTxn) { tx.Root().Set(tx, "a", 1) })
	if !errors.Is(err, boom) {
		t.Errorf("got %v, wanted %v", err, boom)
	}
}

func TestRecordCarriesOriginAndVector(t *testing.T) {
	d := New(Options{Actor: 7})

	rec1 := mustUpdate(t, d, "client-1", func(tx *WriteTxn) { tx.Root().Set(tx, "a", 1) })
	deepEqual(t, rec1.Origin, Origin("client-1"))
	deepEqual(t, len(rec1.Vector), 0)

	rec2 := mustUpdate(t, d, "client-2", func(tx *WriteTxn) { tx.Root().Set(tx, "b", 2) })
	deepEqual(t, rec2.Origin, Origin("client-2"))
	deepEqual(t, rec2.Vector[ActorID(7)], uint64(1))
}

func mustUpdate(t testing.TB, d *Doc, origin Origin, f func(tx *WriteTxn)) *UpdateRecord {
	t.Helper()
	rec, err := d.Update(origin, f)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if rec == nil {
		t.Fatalf("update produced no record")
	}
	return rec
}

func applyRec(t testing.TB, d *Doc, rec *UpdateRecord) *UpdateRecord {
	t.Helper()
	out, err := d.Update(rec.Origin, func(tx *WriteTxn) {
		must(tx.ApplyRecord(rec))
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	return out
}

func leaf(d *Doc, key string) Value {
	var v Value
	d.Read(func(tx *ReadTxn) {
		v, _ = tx.Root().Get(tx, key)
	})
	return v
}

func treeValue(tx Txn, m MapRef) map[string]any {
	out := make(map[string]any)
	for _, k := range m.Keys(tx) {
		if child, ok := m.GetMap(tx, k); ok {
			out[k] = treeValue(tx, child)
		} else if v, ok := m.Get(tx, k); ok {
			out[k] = v
		}
	}
	return out
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}
