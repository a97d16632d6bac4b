package grid

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/andreyvit/syncdb/rdoc"
)

// Layout selects how a view presents the rows.
type Layout int64

const (
	LayoutGrid Layout = iota
	LayoutBoard
	LayoutCalendar
)

// View is a named presentation of the database: a layout plus display orders
// for fields and rows. Each order list is stored as a single value, so it
// merges last-writer-wins as a whole.
type View struct {
	ID          string
	DatabaseID  string
	Name        string
	Layout      Layout
	FieldOrders []string
	RowOrders   []string
	CreatedAt   int64
	ModifiedAt  int64
}

const (
	keyViewID       = "id"
	keyViewDatabase = "database_id"
	keyViewName     = "name"
	keyViewLayout   = "layout"
	keyViewFields   = "field_orders"
	keyViewRows     = "row_orders"
	keyViewCreated  = "created_at"
	keyViewModified = "modified_at"
)

type ViewMap struct {
	doc    *rdoc.Doc
	origin rdoc.Origin
	views  rdoc.MapRef
	logger *slog.Logger

	Skipped atomic.Uint64
}

func NewViewMap(doc *rdoc.Doc, container rdoc.MapRef, origin rdoc.Origin) *ViewMap {
	return &ViewMap{doc: doc, origin: origin, views: container, logger: doc.Logger()}
}

func (m *ViewMap) InsertView(v View) error {
	tx := m.doc.Retry().AcquireWrite(m.origin)
	m.InsertViewTx(tx, v)
	_, err := tx.Commit()
	return err
}

func (m *ViewMap) InsertViewTx(tx *rdoc.WriteTxn, v View) {
	e := m.views.SetMap(tx, v.ID)
	e.Set(tx, keyViewID, v.ID)
	e.Set(tx, keyViewDatabase, v.DatabaseID)
	e.Set(tx, keyViewName, v.Name)
	e.Set(tx, keyViewLayout, int64(v.Layout))
	e.Set(tx, keyViewFields, strsToValues(v.FieldOrders))
	e.Set(tx, keyViewRows, strsToValues(v.RowOrders))
	e.Set(tx, keyViewCreated, v.CreatedAt)
	e.Set(tx, keyViewModified, v.ModifiedAt)
}

// SetFieldOrders replaces the field display order of view id. A vacant id is
// a no-op reported as false.
func (m *ViewMap) SetFieldOrders(id string, fieldIDs []string) (bool, error) {
	return m.setOrders(id, keyViewFields, fieldIDs)
}

// SetRowOrders replaces the row display order of view id.
func (m *ViewMap) SetRowOrders(id string, rowIDs []string) (bool, error) {
	return m.setOrders(id, keyViewRows, rowIDs)
}

func (m *ViewMap) setOrders(id, key string, ids []string) (bool, error) {
	tx := m.doc.Retry().AcquireWrite(m.origin)
	e, ok := m.views.GetMap(tx, id)
	if ok {
		e.Set(tx, key, strsToValues(ids))
		e.Set(tx, keyViewModified, nowUnix())
	}
	_, err := tx.Commit()
	return ok, err
}

func (m *ViewMap) GetView(id string) (View, bool) {
	tx := m.doc.Retry().AcquireRead()
	defer tx.End()
	return m.GetViewTx(tx, id)
}

func (m *ViewMap) GetViewTx(tx rdoc.Txn, id string) (View, bool) {
	if !m.views.Has(tx, id) {
		return View{}, false
	}
	v, ok := decodeView(tx, m.views, id)
	if !ok {
		m.skip(id)
		return View{}, false
	}
	return v, true
}

func (m *ViewMap) GetAllViews() []View {
	tx := m.doc.Retry().AcquireRead()
	defer tx.End()
	return m.GetAllViewsTx(tx)
}

func (m *ViewMap) GetAllViewsTx(tx rdoc.Txn) []View {
	ids := m.views.Keys(tx)
	views := make([]View, 0, len(ids))
	for _, id := range ids {
		v, ok := decodeView(tx, m.views, id)
		if !ok {
			m.skip(id)
			continue
		}
		views = append(views, v)
	}
	return views
}

func decodeView(tx rdoc.Txn, views rdoc.MapRef, id string) (View, bool) {
	e, ok := views.GetMap(tx, id)
	if !ok {
		return View{}, false
	}
	idv, _ := e.Get(tx, keyViewID)
	vid, ok := idv.(string)
	if !ok || vid == "" {
		return View{}, false
	}
	v := View{ID: vid}
	if x, ok := e.Get(tx, keyViewDatabase); ok {
		if s, ok := x.(string); ok {
			v.DatabaseID = s
		}
	}
	if x, ok := e.Get(tx, keyViewName); ok {
		if s, ok := x.(string); ok {
			v.Name = s
		}
	}
	if x, ok := e.Get(tx, keyViewLayout); ok {
		if n, ok := x.(int64); ok {
			v.Layout = Layout(n)
		}
	}
	if x, ok := e.Get(tx, keyViewFields); ok {
		v.FieldOrders = valuesToStrs(x)
	}
	if x, ok := e.Get(tx, keyViewRows); ok {
		v.RowOrders = valuesToStrs(x)
	}
	if x, ok := e.Get(tx, keyViewCreated); ok {
		if n, ok := x.(int64); ok {
			v.CreatedAt = n
		}
	}
	if x, ok := e.Get(tx, keyViewModified); ok {
		if n, ok := x.(int64); ok {
			v.ModifiedAt = n
		}
	}
	return v, true
}

func viewJSON(v View) map[string]any {
	return map[string]any{
		"id":           v.ID,
		"database_id":  v.DatabaseID,
		"name":         v.Name,
		"layout":       int64(v.Layout),
		"field_orders": strsToValues(v.FieldOrders),
		"row_orders":   strsToValues(v.RowOrders),
		"created_at":   v.CreatedAt,
		"modified_at":  v.ModifiedAt,
	}
}

func (m *ViewMap) skip(id string) {
	m.Skipped.Add(1)
	m.logger.LogAttrs(context.Background(), slog.LevelWarn, "grid: skipping view that does not decode",
		slog.String("view", id))
}

// strsToValues widens a string list into the canonical document value shape.
func strsToValues(ids []string) []any {
	vals := make([]any, len(ids))
	for i, id := range ids {
		vals[i] = id
	}
	return vals
}

func valuesToStrs(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, e := range list {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
