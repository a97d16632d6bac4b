package grid

import (
	"github.com/andreyvit/syncdb/rdoc"
)

// RowUpdate is the scoped mutator handed to UpdateRow. Each setter stages a
// write to one attribute or one cell; chain them freely. Attributes the
// mutator does not touch keep whatever value they had, including values
// written concurrently on other replicas.
type RowUpdate struct {
	tx  *rdoc.WriteTxn
	row rdoc.MapRef
}

func (u *RowUpdate) SetHeight(h int64) *RowUpdate {
	u.row.Set(u.tx, keyRowHeight, h)
	return u
}

func (u *RowUpdate) SetVisibility(v bool) *RowUpdate {
	u.row.Set(u.tx, keyRowVisibility, v)
	return u
}

// SetCell replaces the cell under fieldID as a whole.
func (u *RowUpdate) SetCell(fieldID string, c Cell) *RowUpdate {
	u.row.SetMap(u.tx, keyRowCells).Set(u.tx, fieldID, map[string]any(c))
	return u
}

func (u *RowUpdate) RemoveCell(fieldID string) *RowUpdate {
	if cells, ok := u.row.GetMap(u.tx, keyRowCells); ok {
		cells.Delete(u.tx, fieldID)
	}
	return u
}
