package grid

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/andreyvit/syncdb/rdoc"
)

// FieldType identifies the editor and cell payload shape of a column.
type FieldType int64

const (
	FieldTypeText FieldType = iota
	FieldTypeNumber
	FieldTypeDateTime
	FieldTypeSingleSelect
	FieldTypeMultiSelect
	FieldTypeCheckbox
	FieldTypeURL
)

const DefaultFieldWidth = 120

// Field describes one column of a database. TypeOptions carries the
// type-specific configuration (select options, number format and the like)
// and is stored as a single value.
type Field struct {
	ID          string
	Name        string
	Type        FieldType
	Primary     bool
	Visibility  bool
	Width       int64
	TypeOptions map[string]any
}

func NewField(id, name string, ty FieldType) Field {
	return Field{ID: id, Name: name, Type: ty, Visibility: true, Width: DefaultFieldWidth}
}

const (
	keyFieldID         = "id"
	keyFieldName       = "name"
	keyFieldType       = "ty"
	keyFieldPrimary    = "is_primary"
	keyFieldVisibility = "visibility"
	keyFieldWidth      = "width"
	keyFieldOptions    = "type_option"
)

// FieldMap projects columns onto one map container, with the same
// per-attribute merge and the same skip-on-bad-entry reads as RowMap.
type FieldMap struct {
	doc    *rdoc.Doc
	origin rdoc.Origin
	fields rdoc.MapRef
	logger *slog.Logger

	Skipped atomic.Uint64
}

func NewFieldMap(doc *rdoc.Doc, container rdoc.MapRef, origin rdoc.Origin) *FieldMap {
	return &FieldMap{doc: doc, origin: origin, fields: container, logger: doc.Logger()}
}

func (m *FieldMap) InsertField(f Field) error {
	tx := m.doc.Retry().AcquireWrite(m.origin)
	m.InsertFieldTx(tx, f)
	_, err := tx.Commit()
	return err
}

func (m *FieldMap) InsertFieldTx(tx *rdoc.WriteTxn, f Field) {
	e := m.fields.SetMap(tx, f.ID)
	e.Set(tx, keyFieldID, f.ID)
	e.Set(tx, keyFieldName, f.Name)
	e.Set(tx, keyFieldType, int64(f.Type))
	e.Set(tx, keyFieldPrimary, f.Primary)
	e.Set(tx, keyFieldVisibility, f.Visibility)
	w := f.Width
	if w == 0 {
		w = DefaultFieldWidth
	}
	e.Set(tx, keyFieldWidth, w)
	if f.TypeOptions != nil {
		e.Set(tx, keyFieldOptions, f.TypeOptions)
	}
}

func (m *FieldMap) GetField(id string) (Field, bool) {
	tx := m.doc.Retry().AcquireRead()
	defer tx.End()
	return m.GetFieldTx(tx, id)
}

func (m *FieldMap) GetFieldTx(tx rdoc.Txn, id string) (Field, bool) {
	if !m.fields.Has(tx, id) {
		return Field{}, false
	}
	f, ok := decodeField(tx, m.fields, id)
	if !ok {
		m.skip(id)
		return Field{}, false
	}
	return f, true
}

func (m *FieldMap) GetAllFields() []Field {
	tx := m.doc.Retry().AcquireRead()
	defer tx.End()
	return m.GetAllFieldsTx(tx)
}

func (m *FieldMap) GetAllFieldsTx(tx rdoc.Txn) []Field {
	ids := m.fields.Keys(tx)
	fields := make([]Field, 0, len(ids))
	for _, id := range ids {
		f, ok := decodeField(tx, m.fields, id)
		if !ok {
			m.skip(id)
			continue
		}
		fields = append(fields, f)
	}
	return fields
}

func decodeField(tx rdoc.Txn, fields rdoc.MapRef, id string) (Field, bool) {
	e, ok := fields.GetMap(tx, id)
	if !ok {
		return Field{}, false
	}
	idv, _ := e.Get(tx, keyFieldID)
	fid, ok := idv.(string)
	if !ok || fid == "" {
		return Field{}, false
	}
	f := Field{ID: fid, Visibility: true, Width: DefaultFieldWidth}
	if v, ok := e.Get(tx, keyFieldName); ok {
		if s, ok := v.(string); ok {
			f.Name = s
		}
	}
	if v, ok := e.Get(tx, keyFieldType); ok {
		if n, ok := v.(int64); ok {
			f.Type = FieldType(n)
		}
	}
	if v, ok := e.Get(tx, keyFieldPrimary); ok {
		if b, ok := v.(bool); ok {
			f.Primary = b
		}
	}
	if v, ok := e.Get(tx, keyFieldVisibility); ok {
		if b, ok := v.(bool); ok {
			f.Visibility = b
		}
	}
	if v, ok := e.Get(tx, keyFieldWidth); ok {
		if n, ok := v.(int64); ok {
			f.Width = n
		}
	}
	if v, ok := e.Get(tx, keyFieldOptions); ok {
		if opts, ok := v.(map[string]any); ok {
			f.TypeOptions = deepCopyMap(opts)
		}
	}
	return f, true
}

func fieldJSON(f Field) map[string]any {
	out := map[string]any{
		"id":         f.ID,
		"name":       f.Name,
		"ty":         int64(f.Type),
		"is_primary": f.Primary,
		"visibility": f.Visibility,
		"width":      f.Width,
	}
	if f.TypeOptions != nil {
		out["type_option"] = f.TypeOptions
	}
	return out
}

func (m *FieldMap) skip(id string) {
	m.Skipped.Add(1)
	m.logger.LogAttrs(context.Background(), slog.LevelWarn, "grid: skipping field that does not decode",
		slog.String("field", id))
}
