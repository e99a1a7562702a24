package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/sakif/todolist/internal/apperror"
	"github.com/sakif/todolist/internal/model"
	"github.com/sakif/todolist/internal/repository"
	"github.com/sakif/todolist/internal/timeutil"
)

var _ repository.TaskRepository = (*DB)(nil)

// querier is satisfied by both *sql.DB and *sql.Tx, so read helpers can run
// inside or outside a transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const taskColumns = `t.id, t.description, t.due_date, t.owner`

// CreateTask inserts a task and its tag links in one transaction.
func (db *DB) CreateTask(ctx context.Context, owner string, in repository.TaskInput) (*model.Task, error) {
	var task *model.Task
	err := db.withTx(ctx, "creating task", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO tasks (description, description_key, due_date, owner) VALUES (?, ?, ?, ?)`,
			in.Description, descriptionKey(in.Description), dueDateArg(in), owner,
		)
		if err != nil {
			return storageErr("creating task", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return storageErr("creating task", err)
		}

		if err := db.attachTags(ctx, tx, id, in.TagNames); err != nil {
			return err
		}

		task, err = getTask(ctx, tx, owner, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// GetTask returns one of the owner's tasks with its tags.
// A task owned by somebody else is reported as not found.
func (db *DB) GetTask(ctx context.Context, owner string, id int64) (*model.Task, error) {
	return getTask(ctx, db.conn, owner, id)
}

// UpdateTask replaces the description, due date and full tag set of a task.
// Links to tags that are no longer named are dropped; the tags rows stay.
func (db *DB) UpdateTask(ctx context.Context, owner string, id int64, in repository.TaskInput) (*model.Task, error) {
	var task *model.Task
	err := db.withTx(ctx, "updating task", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE tasks SET description = ?, description_key = ?, due_date = ? WHERE id = ? AND owner = ?`,
			in.Description, descriptionKey(in.Description), dueDateArg(in), id, owner,
		)
		if err != nil {
			return storageErr("updating task", err)
		}

		n, err := result.RowsAffected()
		if err != nil {
			return storageErr("updating task", err)
		}
		if n == 0 {
			return taskNotFound(id)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM task_tags WHERE task_id = ?`, id); err != nil {
			return storageErr("replacing task tags", err)
		}
		if err := db.attachTags(ctx, tx, id, in.TagNames); err != nil {
			return err
		}

		task, err = getTask(ctx, tx, owner, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// DeleteTask removes one of the owner's tasks. task_tags rows go with it
// through ON DELETE CASCADE; tags rows are kept.
//
// An id that matches no task at all is a no-op, so a client retrying a delete
// sees success. An id that exists but belongs to another user is NotFound.
func (db *DB) DeleteTask(ctx context.Context, owner string, id int64) error {
	return db.withTx(ctx, "deleting task", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND owner = ?`, id, owner)
		if err != nil {
			return storageErr("deleting task", err)
		}

		n, err := result.RowsAffected()
		if err != nil {
			return storageErr("deleting task", err)
		}
		if n > 0 {
			return nil
		}

		var exists int
		err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE id = ?`, id).Scan(&exists)
		if err != nil {
			return storageErr("deleting task", err)
		}
		if exists > 0 {
			return taskNotFound(id)
		}
		return nil
	})
}

// ListTasks returns the owner's tasks, optionally restricted to one tag.
//
// Tasks without a due date always come last when ordering by due date, for
// both directions. Ties are broken by id so the order is stable.
func (db *DB) ListTasks(ctx context.Context, owner string, opts repository.ListOptions) ([]model.Task, error) {
	orderBy, err := orderClause(opts)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.owner = ?`
	args := []any{owner}
	if opts.Tag != "" {
		query += ` AND EXISTS (
			SELECT 1 FROM task_tags x WHERE x.task_id = t.id AND x.tag_name = ?)`
		args = append(args, opts.Tag)
	}
	query += ` ORDER BY ` + orderBy

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("listing tasks", err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("listing tasks", err)
	}

	if err := loadOwnerTags(ctx, db.conn, owner, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// CountTasks returns how many tasks the owner has.
func (db *DB) CountTasks(ctx context.Context, owner string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE owner = ?`, owner).Scan(&n)
	if err != nil {
		return 0, storageErr("counting tasks", err)
	}
	return n, nil
}

// orderClause builds the ORDER BY expression from validated options.
// Only fixed strings reach the query; the option values are never interpolated.
func orderClause(opts repository.ListOptions) (string, error) {
	dir := "ASC"
	switch opts.OrderDirection {
	case repository.Ascending, "":
	case repository.Descending:
		dir = "DESC"
	default:
		return "", apperror.ValidationFailed("order_dir", fmt.Sprintf("unknown order direction %q", opts.OrderDirection))
	}

	switch opts.OrderField {
	case repository.OrderByDueDate, "":
		return `CASE WHEN t.due_date IS NULL THEN 1 ELSE 0 END, t.due_date ` + dir + `, t.id`, nil
	case repository.OrderByDescription:
		return `t.description_key ` + dir + `, t.id`, nil
	default:
		return "", apperror.ValidationFailed("order_col", fmt.Sprintf("unknown order field %q", opts.OrderField))
	}
}

func getTask(ctx context.Context, q querier, owner string, id int64) (*model.Task, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks t WHERE t.id = ? AND t.owner = ?`, id, owner)

	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, taskNotFound(id)
	}
	if err != nil {
		return nil, err
	}

	tasks := []model.Task{*task}
	if err := loadOwnerTags(ctx, q, owner, tasks); err != nil {
		return nil, err
	}
	return &tasks[0], nil
}

// scanTask reads one row of taskColumns. sql.ErrNoRows is returned unwrapped
// so callers can turn it into NotFound.
func scanTask(s rowScanner) (*model.Task, error) {
	var (
		task model.Task
		due  sql.NullString
	)
	if err := s.Scan(&task.ID, &task.Description, &due, &task.Owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, storageErr("reading task", err)
	}

	if due.Valid {
		parsed, err := timeutil.ParseStorage(due.String)
		if err != nil {
			return nil, storageErr("reading task due date", err)
		}
		task.DueDate = &parsed
	}
	task.Tags = []model.Tag{}
	return &task, nil
}

// loadOwnerTags fills Tags on every task in one query instead of one per task.
func loadOwnerTags(ctx context.Context, q querier, owner string, tasks []model.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	index := make(map[int64]int, len(tasks))
	placeholders := make([]string, len(tasks))
	args := make([]any, 0, len(tasks)+1)
	args = append(args, owner)
	for i, task := range tasks {
		index[task.ID] = i
		placeholders[i] = "?"
		args = append(args, task.ID)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT tt.task_id, tt.tag_name
		 FROM task_tags tt
		 JOIN tasks t ON t.id = tt.task_id
		 WHERE t.owner = ? AND tt.task_id IN (`+strings.Join(placeholders, ",")+`)
		 ORDER BY tt.task_id, tt.tag_name`,
		args...,
	)
	if err != nil {
		return storageErr("loading task tags", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			taskID int64
			name   string
		)
		if err := rows.Scan(&taskID, &name); err != nil {
			return storageErr("loading task tags", err)
		}
		if i, ok := index[taskID]; ok {
			tasks[i].Tags = append(tasks[i].Tags, model.Tag{Name: name})
		}
	}
	if err := rows.Err(); err != nil {
		return storageErr("loading task tags", err)
	}
	return nil
}

// descriptionKey is the case-folded form stored in description_key and used
// for ordering. Folding follows Unicode, so "Ébc" and "ébc" share a key.
func descriptionKey(description string) string {
	return cases.Fold().String(description)
}

// backfillDescriptionKeys fills description_key for rows written before the
// column existed.
func (db *DB) backfillDescriptionKeys(ctx context.Context) error {
	return db.withTx(ctx, "backfilling description keys", func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT id, description FROM tasks WHERE description_key IS NULL`)
		if err != nil {
			return storageErr("backfilling description keys", err)
		}

		type pending struct {
			id          int64
			description string
		}
		var stale []pending
		for rows.Next() {
			var p pending
			if err := rows.Scan(&p.id, &p.description); err != nil {
				rows.Close()
				return storageErr("backfilling description keys", err)
			}
			stale = append(stale, p)
		}
		if err := rows.Close(); err != nil {
			return storageErr("backfilling description keys", err)
		}
		if err := rows.Err(); err != nil {
			return storageErr("backfilling description keys", err)
		}

		for _, p := range stale {
			if _, err := tx.ExecContext(ctx,
				`UPDATE tasks SET description_key = ? WHERE id = ?`, descriptionKey(p.description), p.id,
			); err != nil {
				return storageErr("backfilling description keys", err)
			}
		}
		return nil
	})
}

func dueDateArg(in repository.TaskInput) any {
	if in.DueDate == nil {
		return nil
	}
	return timeutil.FormatStorage(*in.DueDate)
}

func taskNotFound(id int64) error {
	return apperror.NotFound("task", strconv.FormatInt(id, 10))
}
