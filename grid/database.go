// Package grid projects a relational database (fields, views, and rows of
// sparse typed cells) onto a replicated document, so that edits made on
// different replicas merge at the granularity of a single attribute or cell.
//
// The document layout is one map container per concern under the root:
//
//	id          leaf: database id
//	iid         leaf: id of the inline view
//	fields/<fieldID>/...
//	views/<viewID>/...
//	rows/<rowID>/{id, height, visibility, created_at, cells/<fieldID>}
//
// Every attribute is its own leaf and every cell is one whole value, which
// makes the merge field-granular: concurrent writes collide only when they
// touch the same attribute of the same entry.
package grid

import (
	"time"

	"github.com/andreyvit/syncdb/rdoc"
)

const (
	keyDatabaseID   = "id"
	keyInlineView   = "iid"
	containerFields = "fields"
	containerViews  = "views"
	containerRows   = "rows"
)

// Database binds the projection to one replicated document.
type Database struct {
	doc    *rdoc.Doc
	origin rdoc.Origin

	Rows   *RowMap
	Fields *FieldMap
	Views  *ViewMap
}

// CreateParams seeds a new database. Zero-value ids are generated; a
// zero-value Origin gets a fresh one.
type CreateParams struct {
	DatabaseID string
	ViewID     string
	Name       string
	Layout     Layout
	Fields     []Field
	Rows       []Row
	Origin     rdoc.Origin
}

func bind(doc *rdoc.Doc, origin rdoc.Origin) *Database {
	root := rdoc.MapRef{}
	return &Database{
		doc:    doc,
		origin: origin,
		Rows:   NewRowMap(doc, root.Child(containerRows), origin),
		Fields: NewFieldMap(doc, root.Child(containerFields), origin),
		Views:  NewViewMap(doc, root.Child(containerViews), origin),
	}
}

// OpenDatabase binds to an existing document without writing to it.
func OpenDatabase(doc *rdoc.Doc, origin rdoc.Origin) *Database {
	if origin == "" {
		origin = rdoc.NewOrigin()
	}
	return bind(doc, origin)
}

// CreateDatabase seeds a database into doc. The body (id, inline view,
// fields, the view itself) goes in one write transaction and the rows in a
// second, so creation commits at most two update records.
func CreateDatabase(doc *rdoc.Doc, params CreateParams) (*Database, error) {
	if params.DatabaseID == "" {
		params.DatabaseID = GenDatabaseID()
	}
	if params.ViewID == "" {
		params.ViewID = GenViewID()
	}
	if params.Origin == "" {
		params.Origin = rdoc.NewOrigin()
	}
	d := bind(doc, params.Origin)

	fieldIDs := make([]string, len(params.Fields))
	for i, f := range params.Fields {
		fieldIDs[i] = f.ID
	}
	rowIDs := make([]string, len(params.Rows))
	for i, r := range params.Rows {
		rowIDs[i] = r.ID
	}

	now := nowUnix()
	_, err := doc.Update(params.Origin, func(tx *rdoc.WriteTxn) {
		root := tx.Root()
		root.Set(tx, keyDatabaseID, params.DatabaseID)
		root.Set(tx, keyInlineView, params.ViewID)
		for _, f := range params.Fields {
			d.Fields.InsertFieldTx(tx, f)
		}
		d.Views.InsertViewTx(tx, View{
			ID:          params.ViewID,
			DatabaseID:  params.DatabaseID,
			Name:        params.Name,
			Layout:      params.Layout,
			FieldOrders: fieldIDs,
			RowOrders:   rowIDs,
			CreatedAt:   now,
			ModifiedAt:  now,
		})
	})
	if err != nil {
		return nil, err
	}
	if len(params.Rows) > 0 {
		_, err = doc.Update(params.Origin, func(tx *rdoc.WriteTxn) {
			for _, r := range params.Rows {
				d.Rows.InsertRowTx(tx, r)
			}
		})
		if err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Database) Doc() *rdoc.Doc { return d.doc }

func (d *Database) ID() string {
	tx := d.doc.Retry().AcquireRead()
	defer tx.End()
	if v, ok := tx.Root().Get(tx, keyDatabaseID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func (d *Database) InlineViewID() string {
	tx := d.doc.Retry().AcquireRead()
	defer tx.End()
	if v, ok := tx.Root().Get(tx, keyInlineView); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// InlineView returns the view created alongside the database.
func (d *Database) InlineView() (View, bool) {
	tx := d.doc.Retry().AcquireRead()
	defer tx.End()
	v, ok := tx.Root().Get(tx, keyInlineView)
	if !ok {
		return View{}, false
	}
	id, ok := v.(string)
	if !ok {
		return View{}, false
	}
	return d.Views.GetViewTx(tx, id)
}

// JSONValue renders the whole database as one JSON-shaped value, rows and
// fields and views in key order.
func (d *Database) JSONValue() map[string]any {
	tx := d.doc.Retry().AcquireRead()
	defer tx.End()

	out := map[string]any{}
	if v, ok := tx.Root().Get(tx, keyDatabaseID); ok {
		out["id"] = v
	}
	if v, ok := tx.Root().Get(tx, keyInlineView); ok {
		out["iid"] = v
	}

	fields := d.Fields.GetAllFieldsTx(tx)
	fj := make([]any, 0, len(fields))
	for _, f := range fields {
		fj = append(fj, fieldJSON(f))
	}
	out["fields"] = fj

	views := d.Views.GetAllViewsTx(tx)
	vj := make([]any, 0, len(views))
	for _, v := range views {
		vj = append(vj, viewJSON(v))
	}
	out["views"] = vj

	rows := d.Rows.GetAllRowsTx(tx)
	rj := make([]any, 0, len(rows))
	for _, r := range rows {
		rj = append(rj, rowJSON(r))
	}
	out["rows"] = rj

	return out
}

func nowUnix() int64 {
	return time.Now().Unix()
}
