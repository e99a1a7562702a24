// Package repository declares the storage interfaces the services depend on.
// The sqlite subpackage is the only implementation; service tests use fakes.
package repository

import (
	"context"
	"time"

	"github.com/sakif/todolist/internal/model"
)

// OrderField is a column a task list can be sorted by.
type OrderField string

const (
	OrderByDueDate     OrderField = "due_date"
	OrderByDescription OrderField = "description"
)

// OrderDirection is ascending or descending.
type OrderDirection string

const (
	Ascending  OrderDirection = "asc"
	Descending OrderDirection = "desc"
)

// ListOptions controls ordering and filtering of a task list.
// Tag, when non-empty, must already be normalised.
type ListOptions struct {
	OrderField     OrderField
	OrderDirection OrderDirection
	Tag            string
}

// TaskInput carries the fields written by create and edit.
// TagNames must already be normalised and deduplicated.
type TaskInput struct {
	Description string
	DueDate     *time.Time
	TagNames    []string
}

type TaskRepository interface {
	CreateTask(ctx context.Context, owner string, in TaskInput) (*model.Task, error)
	GetTask(ctx context.Context, owner string, id int64) (*model.Task, error)
	UpdateTask(ctx context.Context, owner string, id int64, in TaskInput) (*model.Task, error)
	DeleteTask(ctx context.Context, owner string, id int64) error
	ListTasks(ctx context.Context, owner string, opts ListOptions) ([]model.Task, error)
	CountTasks(ctx context.Context, owner string) (int, error)
}

type TagRepository interface {
	UserTags(ctx context.Context, owner string) ([]string, error)
	AutocompleteTags(ctx context.Context, owner, prefix string) ([]string, error)
	TagExists(ctx context.Context, name string) (bool, error)
	TaskIDsForTag(ctx context.Context, name string) ([]int64, error)
}

type UserRepository interface {
	// GetOrCreateUser returns the user with this email, creating it with the
	// given default zone on first sign-in. created reports which happened.
	GetOrCreateUser(ctx context.Context, email, defaultZone string) (user *model.User, created bool, err error)
	GetUser(ctx context.Context, email string) (*model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
}
