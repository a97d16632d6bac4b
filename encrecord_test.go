package syncdb

import (
	"bytes"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/andreyvit/syncdb/rdoc"
)

func TestUpdateValueRoundtrip(t *testing.T) {
	src := rdoc.New(rdoc.Options{})
	must(src.Update("first", func(tx *rdoc.WriteTxn) { tx.Root().Set(tx, "a", int64(1)) }))
	rec := must(src.Update("editor", func(tx *rdoc.WriteTxn) { tx.Root().Set(tx, "title", "hello") }))

	got := must(decodeUpdateValue(encodeUpdateValue(nil, rec)))
	deepEqual(t, got.Origin, rec.Origin)
	if !bytes.Equal(got.Update, rec.Update) {
		t.Errorf("** payload changed: %s vs %s", hexstr(got.Update), hexstr(rec.Update))
	}
	if !got.Vector.Covers(rec.Vector) || !rec.Vector.Covers(got.Vector) {
		t.Errorf("** vector changed: %v vs %v", got.Vector, rec.Vector)
	}
}

func TestUpdateValueCorruption(t *testing.T) {
	src := rdoc.New(rdoc.Options{})
	rec := must(src.Update("editor", func(tx *rdoc.WriteTxn) { tx.Root().Set(tx, "title", "hello") }))
	data := encodeUpdateValue(nil, rec)

	o := func(name string, mutate func(d []byte) []byte) {
		t.Run(name, func(t *testing.T) {
			_, err := decodeUpdateValue(mutate(slices.Clone(data)))
			var de *DataError
			if !errors.As(err, &de) {
				t.Errorf("** got %v, wanted a DataError", err)
			}
		})
	}
	o("truncated", func(d []byte) []byte { return d[:len(d)/2] })
	o("unknown flags", func(d []byte) []byte { d[0] = 0x7F; return d })
	o("flipped payload byte", func(d []byte) []byte { d[len(d)-1] ^= 1; return d })
}

func TestSnapshotValueRoundtrip(t *testing.T) {
	src := rdoc.New(rdoc.Options{})
	must(src.Update("editor", func(tx *rdoc.WriteTxn) {
		rows := tx.Root().SetMap(tx, "rows")
		for _, k := range []string{"r1", "r2", "r3"} {
			rows.Set(tx, k, strings.Repeat("na", 512))
		}
	}))
	enc := src.EncodeDoc()

	o := func(name string, compress bool) {
		t.Run(name, func(t *testing.T) {
			data := encodeSnapshotValue(nil, enc, compress)
			got := must(decodeSnapshotValue(data))
			if !bytes.Equal(got.State, enc.State) {
				t.Errorf("** state changed after decode")
			}
			if !got.Vector.Covers(enc.Vector) || !enc.Vector.Covers(got.Vector) {
				t.Errorf("** vector changed: %v vs %v", got.Vector, enc.Vector)
			}
		})
	}
	o("compressed", true)
	o("raw", false)

	if c, r := len(encodeSnapshotValue(nil, enc, true)), len(encodeSnapshotValue(nil, enc, false)); c >= r {
		t.Errorf("** compression did not shrink the snapshot: %d vs %d bytes", c, r)
	}
}

func TestSnapshotValueCorruption(t *testing.T) {
	src := rdoc.New(rdoc.Options{})
	must(src.Update("editor", func(tx *rdoc.WriteTxn) { tx.Root().Set(tx, "a", int64(1)) }))
	data := encodeSnapshotValue(nil, src.EncodeDoc(), true)

	o := func(name string, mutate func(d []byte) []byte) {
		t.Run(name, func(t *testing.T) {
			_, err := decodeSnapshotValue(mutate(slices.Clone(data)))
			var de *DataError
			if !errors.As(err, &de) {
				t.Errorf("** got %v, wanted a DataError", err)
			}
		})
	}
	o("truncated", func(d []byte) []byte { return d[:len(d)-3] })
	o("unknown flags", func(d []byte) []byte { d[0] = 0x7E; return d })
	o("flipped payload byte", func(d []byte) []byte { d[len(d)-1] ^= 1; return d })
}

func TestDocStateRoundtrip(t *testing.T) {
	st := must(decodeDocState(encodeDocState(nil, docState{LastSeq: 7, Pending: 3})))
	deepEqual(t, st, docState{LastSeq: 7, Pending: 3})

	_, err := decodeDocState(x("c1"))
	var de *DataError
	if !errors.As(err, &de) {
		t.Errorf("** got %v, wanted a DataError", err)
	}
}

func TestDocKeyEncoding(t *testing.T) {
	for _, k := range []DocKey{
		{42, "ws1", "obj1"},
		{1, "", ""},
		{-5, "a", "b"},
		{42, "a", "bc"},
		{42, "ab", "c"},
	} {
		got := must(parseDocKey(appendDocKey(nil, k)))
		deepEqual(t, got, k)
	}

	// length prefixes keep (a, bc) and (ab, c) apart
	k1 := appendDocKey(nil, DocKey{42, "a", "bc"})
	k2 := appendDocKey(nil, DocKey{42, "ab", "c"})
	if bytes.Equal(k1, k2) || bytes.HasPrefix(k1, k2) || bytes.HasPrefix(k2, k1) {
		t.Errorf("** keys collide: %s vs %s", hexstr(k1), hexstr(k2))
	}

	// update log keys sort by sequence number
	key := DocKey{42, "ws1", "obj1"}
	if bytes.Compare(appendUpdateKey(nil, key, 2), appendUpdateKey(nil, key, 10)) >= 0 {
		t.Errorf("** log keys out of order")
	}

	_, err := parseDocKey(appendDocKey(nil, key)[:5])
	var de *DataError
	if !errors.As(err, &de) {
		t.Errorf("** got %v, wanted a DataError", err)
	}
	_, err = parseDocKey(append(appendDocKey(nil, key), 0))
	if !errors.As(err, &de) {
		t.Errorf("** got %v, wanted a DataError", err)
	}
}
