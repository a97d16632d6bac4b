package grid

import (
	"testing"

	"github.com/andreyvit/syncdb/rdoc"
)

func TestRowDefaults(t *testing.T) {
	row := NewRow("r1")
	deepEqual(t, row.Height, int64(DefaultRowHeight))
	deepEqual(t, row.Visibility, true)
	if row.CreatedAt == 0 {
		t.Errorf("** NewRow left CreatedAt zero")
	}

	doc := rdoc.New(rdoc.Options{})
	db := OpenDatabase(doc, "seed")
	ensure(db.Rows.InsertRow(Row{ID: "bare", Visibility: true, Cells: Cells{}}))
	got, ok := db.Rows.GetRow("bare")
	deepEqual(t, ok, true)
	deepEqual(t, got.Height, int64(DefaultRowHeight))
}

func TestUpdateRowDoesNotCreate(t *testing.T) {
	doc, db := seedDatabase(t)
	var commits int
	doc.OnCommit(func(rec *rdoc.UpdateRecord) error {
		commits++
		return nil
	})

	called := false
	row, ok, err := db.Rows.UpdateRow("missing", func(u *RowUpdate) {
		called = true
		u.SetHeight(999)
	})
	ensure(err)
	deepEqual(t, ok, false)
	deepEqual(t, called, false)
	deepEqual(t, row, Row{})
	deepEqual(t, commits, 0)
	deepEqual(t, db.Rows.Count(), 3)
}

func TestUpdateRowChainsSetters(t *testing.T) {
	_, db := seedDatabase(t)

	row, ok, err := db.Rows.UpdateRow("row1", func(u *RowUpdate) {
		u.SetHeight(90).SetVisibility(false).SetCell("f2", NewCell("done")).RemoveCell("f1")
	})
	ensure(err)
	deepEqual(t, ok, true)
	deepEqual(t, row.Height, int64(90))
	deepEqual(t, row.Visibility, false)
	deepEqual(t, row.Cells["f2"].Data(), any("done"))
	if _, present := row.Cells["f1"]; present {
		t.Errorf("** removed cell still present")
	}

	got, _ := db.Rows.GetRow("row1")
	deepEqual(t, got, row)

	// removing a cell the row never had stays a no-op
	_, ok, err = db.Rows.UpdateRow("row2", func(u *RowUpdate) {
		u.RemoveCell("f3")
	})
	ensure(err)
	deepEqual(t, ok, true)
	deepEqual(t, cellFields(mustRow(t, db, "row2")), []string{"f1", "f2"})
}

func TestRowMergeIsFieldGranular(t *testing.T) {
	docA, dbA := seedDatabase(t)
	var recsA []*rdoc.UpdateRecord
	docA.OnCommit(func(rec *rdoc.UpdateRecord) error {
		recsA = append(recsA, rec)
		return nil
	})

	docB := rdoc.New(rdoc.Options{})
	syncInto(t, docB, docA)
	dbB := OpenDatabase(docB, "b")
	var recsB []*rdoc.UpdateRecord
	docB.OnCommit(func(rec *rdoc.UpdateRecord) error {
		recsB = append(recsB, rec)
		return nil
	})

	_, _, err := dbA.Rows.UpdateRow("row1", func(u *RowUpdate) {
		u.SetHeight(120)
	})
	ensure(err)
	_, _, err = dbB.Rows.UpdateRow("row1", func(u *RowUpdate) {
		u.SetCell("f1", NewCell("edited"))
	})
	ensure(err)

	applyRecords(t, docB, recsA)
	applyRecords(t, docA, recsB)

	for _, db := range []*Database{dbA, dbB} {
		row := mustRow(t, db, "row1")
		deepEqual(t, row.Height, int64(120))
		deepEqual(t, row.Cells["f1"].Data(), any("edited"))
		deepEqual(t, row.Cells["f3"].Data(), any(true))
	}
	deepEqual(t, dbA.JSONValue(), dbB.JSONValue())
}

func TestConcurrentCellWritesConverge(t *testing.T) {
	docA, dbA := seedDatabase(t)
	var recsA []*rdoc.UpdateRecord
	docA.OnCommit(func(rec *rdoc.UpdateRecord) error {
		recsA = append(recsA, rec)
		return nil
	})

	docB := rdoc.New(rdoc.Options{})
	syncInto(t, docB, docA)
	dbB := OpenDatabase(docB, "b")
	var recsB []*rdoc.UpdateRecord
	docB.OnCommit(func(rec *rdoc.UpdateRecord) error {
		recsB = append(recsB, rec)
		return nil
	})

	_, _, err := dbA.Rows.UpdateRow("row1", func(u *RowUpdate) {
		u.SetCell("f1", NewCell("from-a"))
	})
	ensure(err)
	_, _, err = dbB.Rows.UpdateRow("row1", func(u *RowUpdate) {
		u.SetCell("f1", NewCell("from-b"))
	})
	ensure(err)

	applyRecords(t, docB, recsA)
	applyRecords(t, docA, recsB)

	rowA := mustRow(t, dbA, "row1")
	rowB := mustRow(t, dbB, "row1")
	deepEqual(t, rowA, rowB)
	got := rowA.Cells["f1"].Data()
	if got != "from-a" && got != "from-b" {
		t.Errorf("** cell converged to neither write: %v", got)
	}
}

func TestRowDecodeSkipsAndCounts(t *testing.T) {
	doc, db := seedDatabase(t)

	_, err := doc.Update("vandal", func(tx *rdoc.WriteTxn) {
		rows := tx.Root().Child(containerRows)
		rows.Set(tx, "junk", "not a row")
		noid := rows.SetMap(tx, "noid")
		noid.Set(tx, "height", int64(44))
	})
	ensure(err)

	deepEqual(t, db.Rows.Count(), 5)
	rows := db.Rows.GetAllRows()
	deepEqual(t, len(rows), 3)
	deepEqual(t, db.Rows.Skipped.Load(), uint64(2))

	_, ok := db.Rows.GetRow("junk")
	deepEqual(t, ok, false)
	deepEqual(t, db.Rows.Skipped.Load(), uint64(3))

	_, ok = db.Rows.GetRow("gone")
	deepEqual(t, ok, false)
	deepEqual(t, db.Rows.Skipped.Load(), uint64(3)) // vacant id is not a skip
}

func TestBadCellSkippedCellLevel(t *testing.T) {
	doc, db := seedDatabase(t)

	_, err := doc.Update("vandal", func(tx *rdoc.WriteTxn) {
		cells := tx.Root().Child(containerRows).Child("row1").Child(keyRowCells)
		cells.Set(tx, "f9", "bare string, not a cell map")
	})
	ensure(err)

	row := mustRow(t, db, "row1")
	deepEqual(t, cellFields(row), []string{"f1", "f2", "f3"})
	deepEqual(t, db.Rows.Skipped.Load(), uint64(0))
}

func TestViewOrders(t *testing.T) {
	_, db := seedDatabase(t)

	ok, err := db.Views.SetRowOrders("v1", []string{"row3", "row1", "row2"})
	ensure(err)
	deepEqual(t, ok, true)
	view, _ := db.Views.GetView("v1")
	deepEqual(t, view.RowOrders, []string{"row3", "row1", "row2"})
	deepEqual(t, view.FieldOrders, []string{"f1", "f2", "f3"})

	ok, err = db.Views.SetFieldOrders("v1", []string{"f3", "f2", "f1"})
	ensure(err)
	deepEqual(t, ok, true)
	view, _ = db.Views.GetView("v1")
	deepEqual(t, view.FieldOrders, []string{"f3", "f2", "f1"})

	ok, err = db.Views.SetRowOrders("missing", []string{"row1"})
	ensure(err)
	deepEqual(t, ok, false)
}

func seedDatabase(t testing.TB) (*rdoc.Doc, *Database) {
	t.Helper()
	doc := rdoc.New(rdoc.Options{})
	db, err := CreateDatabase(doc, CreateParams{
		DatabaseID: "d1",
		ViewID:     "v1",
		Name:       "tasks",
		Origin:     "seed",
		Fields: []Field{
			NewField("f1", "Name", FieldTypeText),
			NewField("f2", "Status", FieldTypeSingleSelect),
			NewField("f3", "Done", FieldTypeCheckbox),
		},
		Rows: []Row{
			testRow("row1", Cells{"f1": NewCell("alpha"), "f2": NewCell("todo"), "f3": NewCell(true)}),
			testRow("row2", Cells{"f1": NewCell("beta"), "f2": NewCell("doing")}),
			testRow("row3", Cells{"f1": NewCell("gamma"), "f3": NewCell(false)}),
		},
	})
	ensure(err)
	return doc, db
}

func mustRow(t testing.TB, db *Database, id string) Row {
	t.Helper()
	row, ok := db.Rows.GetRow(id)
	if !ok {
		t.Fatalf("** row %s not found", id)
	}
	return row
}

// syncInto brings dst up to date with src's full state.
func syncInto(t testing.TB, dst, src *rdoc.Doc) {
	t.Helper()
	var update []byte
	src.Read(func(tx *rdoc.ReadTxn) {
		update = rdoc.EncodeStateAsUpdate(tx, nil)
	})
	wtx := dst.BeginWrite("sync")
	if _, err := wtx.ApplyUpdate(update); err != nil {
		t.Fatal(err)
	}
	if _, err := wtx.Commit(); err != nil {
		t.Fatal(err)
	}
}

func applyRecords(t testing.TB, dst *rdoc.Doc, recs []*rdoc.UpdateRecord) {
	t.Helper()
	for _, rec := range recs {
		wtx := dst.BeginWrite("net")
		if _, err := wtx.ApplyRecord(rec); err != nil {
			t.Fatal(err)
		}
		if _, err := wtx.Commit(); err != nil {
			t.Fatal(err)
		}
	}
}
