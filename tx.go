package syncdb

import (
	"fmt"
	"runtime/debug"
)

type Tx struct {
	db        *DB
	stx       StorageTx
	committed bool
}

func (db *DB) newTx(stx StorageTx) *Tx {
	return &Tx{db: db, stx: stx}
}

func (tx *Tx) DB() *DB {
	return tx.db
}

func (tx *Tx) IsWritable() bool {
	return tx.stx.Writable()
}

// Tx runs f in a transaction. Writable transactions commit unless f returns
// an error or panics; read-only transactions always roll back.
func (db *DB) Tx(writable bool, f func(tx *Tx) error) error {
	if db.closed.Load() {
		return ErrClosed
	}
	stx, err := db.st.BeginTx(writable)
	if err != nil {
		return fmt.Errorf("syncdb: begin: %w", err)
	}
	if writable {
		db.WriteCount.Add(1)
	} else {
		db.ReadCount.Add(1)
	}
	tx := db.newTx(stx)
	defer tx.Close()
	err = safelyCall(f, tx)
	db.lastSize.Store(stx.Size())
	if err != nil {
		return err
	}
	if writable {
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("syncdb: commit: %w", err)
		}
	}
	return nil
}

type panicked struct {
	reason interface{}
	stack  string
}

func (p panicked) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", p.reason, p.stack)
}

func safelyCall(fn func(*Tx) error, tx *Tx) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicked{p, string(debug.Stack())}
		}
	}()
	return fn(tx)
}

func (db *DB) BeginRead() *Tx {
	if db.closed.Load() {
		panic(ErrClosed)
	}
	stx, err := db.st.BeginTx(false)
	if err != nil {
		panic(fmt.Errorf("failed to start reading: %w", err))
	}
	db.ReadCount.Add(1)
	return db.newTx(stx)
}

func (db *DB) Read(f func(tx *Tx)) {
	tx := db.BeginRead()
	defer tx.Close()
	f(tx)
}

func (db *DB) ReadErr(f func(tx *Tx) error) error {
	tx := db.BeginRead()
	defer tx.Close()
	return f(tx)
}

func (db *DB) Write(f func(tx *Tx)) {
	tx := db.BeginUpdate()
	defer tx.Close()
	f(tx)
	err := tx.Commit()
	if err != nil {
		panic(fmt.Errorf("commit: %w", err))
	}
}

func (db *DB) BeginUpdate() *Tx {
	if db.closed.Load() {
		panic(ErrClosed)
	}
	stx, err := db.st.BeginTx(true)
	if err != nil {
		panic(fmt.Errorf("failed to start writing: %w", err))
	}
	db.WriteCount.Add(1)
	return db.newTx(stx)
}

func (tx *Tx) Close() {
	if !tx.committed {
		ensure(tx.stx.Rollback())
	}
}

func (tx *Tx) Commit() error {
	err := tx.stx.Commit()
	if err == nil {
		tx.committed = true
	}
	return err
}

func (tx *Tx) bucket(name string) StorageBucket {
	b := tx.stx.Bucket(name)
	if b == nil {
		panic(fmt.Errorf("bucket %s does not exist", name))
	}
	return b
}
