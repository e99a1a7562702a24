// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite: no CGo, no C compiler, cross-compiles
// like any other Go package. golang-migrate ships a driver for it too, so the
// schema is managed by versioned migrations embedded in the binary.
//
// TRANSACTIONS:
// Every multi-row write (a task plus its tag rows) runs inside one *sql.Tx
// passed explicitly to the helpers below. There is no ambient session: the
// transaction is a parameter, never a package variable.
//
// CONNECTION STRING:
// Pragmas are set per connection through the DSN, because database/sql hands
// out pooled connections and a one-off PRAGMA would only reach one of them:
//   - foreign_keys(1)   → enforce REFERENCES and ON DELETE CASCADE
//   - busy_timeout(5000) → wait up to 5s for a competing writer instead of failing
//   - journal_mode(WAL)  → readers don't block the writer
//   - _txlock=immediate  → BEGIN takes the write lock up front, so two writers
//     queue rather than deadlock when both upgrade from read to write
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/todolist/internal/apperror"
)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB

	// onTagConflict is called each time a tag insert lost a race and the
	// existing row was reused instead. Used for metrics; may be nil.
	onTagConflict func(name string)
}

// Option configures a DB.
type Option func(*DB)

// WithTagConflictHook registers a callback for recovered tag-name collisions.
func WithTagConflictHook(fn func(name string)) Option {
	return func(db *DB) { db.onTagConflict = fn }
}

// DSN builds the modernc connection string for a database file.
func DSN(dbPath string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Set("_txlock", "immediate")
	return "file:" + dbPath + "?" + q.Encode()
}

// New opens the database file at dbPath and brings the schema up to date,
// including the sort keys of rows written by older versions.
func New(dbPath string, opts ...Option) (*DB, error) {
	if err := Migrate(dbPath); err != nil {
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	db, err := Open(dbPath, opts...)
	if err != nil {
		return nil, err
	}
	if err := db.backfillDescriptionKeys(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	return db, nil
}

// Open connects without migrating. Queries against a database whose schema
// was never created fail with apperror.ErrStorageUnavailable.
func Open(dbPath string, opts ...Option) (*DB, error) {
	conn, err := sql.Open("sqlite", DSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Ping forces a real connection so a bad path fails here, not on the
	// first request.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database answers and the schema exists.
func (db *DB) Ping(ctx context.Context) error {
	var n int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM tags`).Scan(&n)
	if err != nil {
		return apperror.StorageUnavailable("checking database health", err)
	}
	return nil
}

// withTx runs fn inside a transaction, committing on success.
//
// fn's error is returned as-is (it is already a domain error); failures to
// begin or commit become StorageUnavailable.
func (db *DB) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return apperror.StorageUnavailable(op, err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperror.StorageUnavailable(op, err)
	}
	return nil
}

// storageErr translates a driver error into the domain taxonomy.
// Errors that are already *apperror.AppError pass through untouched.
func storageErr(op string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.StorageUnavailable(op, err)
}

// isUniqueViolation reports whether err is SQLite rejecting a duplicate key.
//
// modernc enables extended result codes, so a duplicate TEXT PRIMARY KEY
// arrives as SQLITE_CONSTRAINT_PRIMARYKEY or SQLITE_CONSTRAINT_UNIQUE. The
// message check covers builds that report only the primary SQLITE_CONSTRAINT.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT &&
		strings.Contains(se.Error(), "UNIQUE constraint failed")
}
