package grid

import (
	"sort"
	"time"

	"github.com/andreyvit/syncdb/rdoc"
)

// Row is the relational projection of one entry in a database's row
// container: a stable id plus a sparse mapping from field id to cell. A field
// absent from Cells means "no value for this row", which is not the same as
// an explicit empty cell.
type Row struct {
	ID         string
	Height     int64
	Visibility bool
	CreatedAt  int64
	Cells      Cells
}

const DefaultRowHeight = 60

// NewRow returns a row with the projection defaults filled in.
func NewRow(id string) Row {
	return Row{
		ID:         id,
		Height:     DefaultRowHeight,
		Visibility: true,
		CreatedAt:  time.Now().Unix(),
		Cells:      Cells{},
	}
}

type Cells map[string]Cell

// Cell is an opaque field-typed value. The "data" key carries the payload;
// field-type systems may add sibling keys. A cell merges as a single unit.
type Cell map[string]any

func NewCell(data any) Cell {
	return Cell{"data": data}
}

func (c Cell) Data() any {
	return c["data"]
}

const (
	keyRowID         = "id"
	keyRowHeight     = "height"
	keyRowVisibility = "visibility"
	keyRowCreated    = "created_at"
	keyRowCells      = "cells"
)

// writeRow lays the row out as individual entries under its id, one leaf per
// attribute and per cell, so concurrent edits to different fields of the same
// row merge independently.
func writeRow(tx *rdoc.WriteTxn, rows rdoc.MapRef, row Row) {
	r := rows.SetMap(tx, row.ID)
	r.Set(tx, keyRowID, row.ID)
	h := row.Height
	if h == 0 {
		h = DefaultRowHeight
	}
	r.Set(tx, keyRowHeight, h)
	r.Set(tx, keyRowVisibility, row.Visibility)
	r.Set(tx, keyRowCreated, row.CreatedAt)
	cells := r.SetMap(tx, keyRowCells)
	fids := make([]string, 0, len(row.Cells))
	for fid := range row.Cells {
		fids = append(fids, fid)
	}
	sort.Strings(fids)
	for _, fid := range fids {
		cells.Set(tx, fid, map[string]any(row.Cells[fid]))
	}
}

// decodeRow reads the entry under id back into a Row. Missing optional
// attributes take projection defaults; an entry without a valid id does not
// decode. Cells that are not maps are dropped.
func decodeRow(tx rdoc.Txn, rows rdoc.MapRef, id string) (Row, bool) {
	r, ok := rows.GetMap(tx, id)
	if !ok {
		return Row{}, false
	}
	idv, _ := r.Get(tx, keyRowID)
	rid, ok := idv.(string)
	if !ok || rid == "" {
		return Row{}, false
	}
	row := Row{ID: rid, Height: DefaultRowHeight, Visibility: true, Cells: Cells{}}
	if v, ok := r.Get(tx, keyRowHeight); ok {
		if h, ok := v.(int64); ok {
			row.Height = h
		}
	}
	if v, ok := r.Get(tx, keyRowVisibility); ok {
		if b, ok := v.(bool); ok {
			row.Visibility = b
		}
	}
	if v, ok := r.Get(tx, keyRowCreated); ok {
		if ts, ok := v.(int64); ok {
			row.CreatedAt = ts
		}
	}
	if cells, ok := r.GetMap(tx, keyRowCells); ok {
		for fid, v := range cells.Seq(tx) {
			if m, ok := v.(map[string]any); ok {
				row.Cells[fid] = Cell(deepCopyMap(m))
			}
		}
	}
	return row, true
}

func rowJSON(row Row) map[string]any {
	cells := make(map[string]any, len(row.Cells))
	for fid, c := range row.Cells {
		cells[fid] = map[string]any(c)
	}
	return map[string]any{
		"id":         row.ID,
		"height":     row.Height,
		"visibility": row.Visibility,
		"created_at": row.CreatedAt,
		"cells":      cells,
	}
}

// deepCopyMap detaches a composite value read from document state, so caller
// mutations cannot bypass versioned writes.
func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return deepCopyMap(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = deepCopyValue(e)
		}
		return out
	case []byte:
		out := make([]byte, len(v))
		copy(out, v)
		return out
	default:
		return v
	}
}
