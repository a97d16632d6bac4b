package grid

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/andreyvit/syncdb/rdoc"
)

// RowMap projects rows onto one map container of a replicated document.
//
// Reads tolerate entries that other replicas wrote in shapes this code does
// not understand: such entries are skipped, counted in Skipped and logged,
// never surfaced as errors.
type RowMap struct {
	doc    *rdoc.Doc
	origin rdoc.Origin
	rows   rdoc.MapRef
	logger *slog.Logger

	Skipped atomic.Uint64 // entries dropped by decode during reads
}

func NewRowMap(doc *rdoc.Doc, container rdoc.MapRef, origin rdoc.Origin) *RowMap {
	return &RowMap{doc: doc, origin: origin, rows: container, logger: doc.Logger()}
}

// InsertRow writes the row in its own write transaction.
func (m *RowMap) InsertRow(row Row) error {
	tx := m.doc.Retry().AcquireWrite(m.origin)
	m.InsertRowTx(tx, row)
	_, err := tx.Commit()
	return err
}

func (m *RowMap) InsertRowTx(tx *rdoc.WriteTxn, row Row) {
	writeRow(tx, m.rows, row)
}

// GetRow returns the row under id. The second result is false both when the
// id is vacant and when the entry does not decode; only the latter counts as
// skipped.
func (m *RowMap) GetRow(id string) (Row, bool) {
	tx := m.doc.Retry().AcquireRead()
	defer tx.End()
	return m.GetRowTx(tx, id)
}

func (m *RowMap) GetRowTx(tx rdoc.Txn, id string) (Row, bool) {
	if !m.rows.Has(tx, id) {
		return Row{}, false
	}
	row, ok := decodeRow(tx, m.rows, id)
	if !ok {
		m.skip(id)
		return Row{}, false
	}
	return row, true
}

// GetAllRows decodes every entry of the container in key order.
func (m *RowMap) GetAllRows() []Row {
	tx := m.doc.Retry().AcquireRead()
	defer tx.End()
	return m.GetAllRowsTx(tx)
}

func (m *RowMap) GetAllRowsTx(tx rdoc.Txn) []Row {
	ids := m.rows.Keys(tx)
	rows := make([]Row, 0, len(ids))
	for _, id := range ids {
		row, ok := decodeRow(tx, m.rows, id)
		if !ok {
			m.skip(id)
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// Count reports the number of entries in the container, decodable or not.
func (m *RowMap) Count() int {
	tx := m.doc.Retry().AcquireRead()
	defer tx.End()
	return m.rows.Len(tx)
}

// UpdateRow mutates the row under id through f and returns the decoded
// result. A vacant id returns false without invoking f and without creating
// an entry.
func (m *RowMap) UpdateRow(id string, f func(u *RowUpdate)) (Row, bool, error) {
	tx := m.doc.Retry().AcquireWrite(m.origin)
	row, ok := m.UpdateRowTx(tx, id, f)
	_, err := tx.Commit()
	return row, ok, err
}

func (m *RowMap) UpdateRowTx(tx *rdoc.WriteTxn, id string, f func(u *RowUpdate)) (Row, bool) {
	r, ok := m.rows.GetMap(tx, id)
	if !ok {
		return Row{}, false
	}
	f(&RowUpdate{tx: tx, row: r})
	row, ok := decodeRow(tx, m.rows, id)
	if !ok {
		m.skip(id)
		return Row{}, false
	}
	return row, true
}

func (m *RowMap) skip(id string) {
	m.Skipped.Add(1)
	m.logger.LogAttrs(context.Background(), slog.LevelWarn, "grid: skipping row that does not decode",
		slog.String("row", id))
}
