package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sakif/todolist/internal/apperror"
	"github.com/sakif/todolist/internal/model"
	"github.com/sakif/todolist/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

// GetOrCreateUser returns the user keyed by email, inserting it on first
// sign-in.
//
// INSERT ... ON CONFLICT DO NOTHING makes two simultaneous first sign-ins
// safe: exactly one insert affects a row, the other is a no-op, and both then
// read the same record.
func (db *DB) GetOrCreateUser(ctx context.Context, email, defaultZone string) (*model.User, bool, error) {
	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (email, first_name, last_name, time_zone)
		 VALUES (?, '', '', ?)
		 ON CONFLICT(email) DO NOTHING`,
		email, defaultZone,
	)
	if err != nil {
		return nil, false, storageErr("creating user", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, false, storageErr("creating user", err)
	}

	user, err := db.GetUser(ctx, email)
	if err != nil {
		return nil, false, err
	}
	return user, n == 1, nil
}

// GetUser returns the user with this email.
func (db *DB) GetUser(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := db.conn.QueryRowContext(ctx,
		`SELECT email, first_name, last_name, time_zone FROM users WHERE email = ?`,
		email,
	).Scan(&u.Email, &u.FirstName, &u.LastName, &u.TimeZone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("user", email)
	}
	if err != nil {
		return nil, storageErr("reading user", err)
	}
	return &u, nil
}

// UpdateUser saves the names and time zone of an existing user.
func (db *DB) UpdateUser(ctx context.Context, user *model.User) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET first_name = ?, last_name = ?, time_zone = ? WHERE email = ?`,
		user.FirstName, user.LastName, user.TimeZone, user.Email,
	)
	if err != nil {
		return storageErr("updating user", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return storageErr("updating user", err)
	}
	if n == 0 {
		return apperror.NotFound("user", user.Email)
	}
	return nil
}
