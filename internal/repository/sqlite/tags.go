package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/todolist/internal/repository"
)

var _ repository.TagRepository = (*DB)(nil)

// ensureTag makes sure a tags row named name exists inside tx.
//
// LOOKUP-OR-CREATE:
// The common case is a plain SELECT hit. On a miss we INSERT; if another
// transaction committed the same name between our SELECT and INSERT, the
// PRIMARY KEY rejects the insert and insertOrReuseTag re-reads the winner's
// row. Rows inserted earlier in the same tx are visible to the SELECT, so a
// name repeated within one unit of work never reaches the INSERT twice.
func (db *DB) ensureTag(ctx context.Context, tx *sql.Tx, name string) error {
	var existing string
	err := tx.QueryRowContext(ctx, `SELECT name FROM tags WHERE name = ?`, name).Scan(&existing)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return storageErr("looking up tag", err)
	}
	return db.insertOrReuseTag(ctx, tx, name)
}

// insertOrReuseTag inserts a tag, falling back to the existing row when the
// name is already taken.
//
// The INSERT runs under a SAVEPOINT: a failed statement is rolled back to the
// savepoint and the surrounding transaction (the task being written) stays
// usable. The re-read must then find the row; if it does not, the violation
// was something else and is reported.
func (db *DB) insertOrReuseTag(ctx context.Context, tx *sql.Tx, name string) error {
	if _, err := tx.ExecContext(ctx, `SAVEPOINT tag_insert`); err != nil {
		return storageErr("creating tag", err)
	}

	_, insertErr := tx.ExecContext(ctx, `INSERT INTO tags (name) VALUES (?)`, name)
	if insertErr == nil {
		if _, err := tx.ExecContext(ctx, `RELEASE SAVEPOINT tag_insert`); err != nil {
			return storageErr("creating tag", err)
		}
		return nil
	}

	if _, err := tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT tag_insert`); err != nil {
		return storageErr("creating tag", err)
	}
	if _, err := tx.ExecContext(ctx, `RELEASE SAVEPOINT tag_insert`); err != nil {
		return storageErr("creating tag", err)
	}

	if !isUniqueViolation(insertErr) {
		return storageErr("creating tag", insertErr)
	}

	var existing string
	err := tx.QueryRowContext(ctx, `SELECT name FROM tags WHERE name = ?`, name).Scan(&existing)
	if err != nil {
		return storageErr("re-reading tag after conflict", fmt.Errorf("tag %q: %w (insert: %v)", name, err, insertErr))
	}

	if db.onTagConflict != nil {
		db.onTagConflict(name)
	}
	return nil
}

// attachTags creates missing tags and links them to a task.
// names must already be normalised and deduplicated.
func (db *DB) attachTags(ctx context.Context, tx *sql.Tx, taskID int64, names []string) error {
	for _, name := range names {
		if err := db.ensureTag(ctx, tx, name); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO task_tags (task_id, tag_name) VALUES (?, ?)`,
			taskID, name,
		)
		if err != nil {
			return storageErr("attaching tag", err)
		}
	}
	return nil
}

// UserTags returns the distinct tag names on the owner's tasks, sorted.
// Tags that exist globally but are not attached to any of the owner's tasks
// are not included.
func (db *DB) UserTags(ctx context.Context, owner string) ([]string, error) {
	return db.queryNames(ctx, "listing user tags",
		`SELECT DISTINCT tt.tag_name
		 FROM task_tags tt
		 JOIN tasks t ON t.id = tt.task_id
		 WHERE t.owner = ?
		 ORDER BY tt.tag_name`,
		owner,
	)
}

// AutocompleteTags returns the owner's tag names starting with prefix.
// prefix must already be normalised. substr() is used instead of LIKE so
// that '%' and '_' in a prefix match literally.
func (db *DB) AutocompleteTags(ctx context.Context, owner, prefix string) ([]string, error) {
	return db.queryNames(ctx, "autocompleting tags",
		`SELECT DISTINCT tt.tag_name
		 FROM task_tags tt
		 JOIN tasks t ON t.id = tt.task_id
		 WHERE t.owner = ?
		   AND substr(tt.tag_name, 1, length(?)) = ?
		 ORDER BY tt.tag_name`,
		owner, prefix, prefix,
	)
}

// TagExists reports whether a tags row with this name exists, attached or not.
func (db *DB) TagExists(ctx context.Context, name string) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM tags WHERE name = ?`, name).Scan(&n)
	if err != nil {
		return false, storageErr("checking tag", err)
	}
	return n > 0, nil
}

// TaskIDsForTag is the reverse lookup: every task, of any owner, carrying the tag.
func (db *DB) TaskIDsForTag(ctx context.Context, name string) ([]int64, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT task_id FROM task_tags WHERE tag_name = ? ORDER BY task_id`, name)
	if err != nil {
		return nil, storageErr("listing tasks for tag", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storageErr("scanning task id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterating task ids", err)
	}
	return ids, nil
}

func (db *DB) queryNames(ctx context.Context, op, query string, args ...any) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, storageErr(op, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(op, err)
	}
	return names, nil
}
