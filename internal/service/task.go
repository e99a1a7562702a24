// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services accept plain Go values (owner email, description, tag names), never
// *http.Request, and return apperror values that the handler maps to status
// codes. They depend on repository interfaces only; main.go decides that the
// implementation is SQLite, and tests pass in-memory fakes.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/todolist/internal/apperror"
	"github.com/sakif/todolist/internal/model"
	"github.com/sakif/todolist/internal/repository"
	"github.com/sakif/todolist/internal/timeutil"
)

const (
	MaxDescriptionLength = 1000
	MaxTagLength         = 64

	// MinAutocompletePrefix is the shortest prefix that produces suggestions.
	MinAutocompletePrefix = 2
)

// Recorder receives business events for metrics. May be nil.
type Recorder interface {
	TaskEvent(event string)
}

// TaskService handles tasks and the tags attached to them.
type TaskService struct {
	tasks    repository.TaskRepository
	tags     repository.TagRepository
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
}

// TaskOption configures a TaskService.
type TaskOption func(*TaskService)

// WithRecorder reports created/edited/deleted events to r.
func WithRecorder(r Recorder) TaskOption {
	return func(s *TaskService) { s.recorder = r }
}

// WithClock replaces time.Now, so tests can pin "now" for past-due checks.
func WithClock(now func() time.Time) TaskOption {
	return func(s *TaskService) { s.now = now }
}

// NewTaskService creates a TaskService.
func NewTaskService(tasks repository.TaskRepository, tags repository.TagRepository, logger *slog.Logger, opts ...TaskOption) *TaskService {
	s := &TaskService{
		tasks:  tasks,
		tags:   tags,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock in UTC.
func (s *TaskService) Now() time.Time {
	return s.now().UTC()
}

// CreateTask validates and saves a new task for owner.
//
// tagNames are raw user strings: they are trimmed, lower-cased, emptied ones
// dropped and repeats collapsed before they reach storage. dueDate may be in
// any zone and is stored as naive UTC.
func (s *TaskService) CreateTask(ctx context.Context, owner, description string, tagNames []string, dueDate *time.Time) (*model.Task, error) {
	in, err := s.taskInput(owner, description, tagNames, dueDate)
	if err != nil {
		return nil, err
	}

	task, err := s.tasks.CreateTask(ctx, owner, in)
	if err != nil {
		s.logStorageError("failed to create task", err, slog.String("owner", owner))
		return nil, fmt.Errorf("creating task: %w", err)
	}

	s.logger.Info("task created",
		slog.String("owner", owner),
		slog.Int64("id", task.ID),
		slog.Int("tags", len(task.Tags)),
	)
	s.record("created")
	return task, nil
}

// EditTask replaces description, tags and due date of one of owner's tasks.
// A task belonging to someone else is reported as not found and left alone.
func (s *TaskService) EditTask(ctx context.Context, owner string, id int64, description string, tagNames []string, dueDate *time.Time) (*model.Task, error) {
	in, err := s.taskInput(owner, description, tagNames, dueDate)
	if err != nil {
		return nil, err
	}

	task, err := s.tasks.UpdateTask(ctx, owner, id, in)
	if err != nil {
		s.logStorageError("failed to edit task", err, slog.String("owner", owner), slog.Int64("id", id))
		return nil, fmt.Errorf("editing task: %w", err)
	}

	s.logger.Info("task edited", slog.String("owner", owner), slog.Int64("id", id))
	s.record("edited")
	return task, nil
}

// DeleteTask removes one of owner's tasks. Deleting an id that no longer
// exists succeeds, so retried requests are harmless.
func (s *TaskService) DeleteTask(ctx context.Context, owner string, id int64) error {
	if strings.TrimSpace(owner) == "" {
		return apperror.ValidationFailed("owner", "owner is required")
	}

	if err := s.tasks.DeleteTask(ctx, owner, id); err != nil {
		s.logStorageError("failed to delete task", err, slog.String("owner", owner), slog.Int64("id", id))
		return fmt.Errorf("deleting task: %w", err)
	}

	s.logger.Info("task deleted", slog.String("owner", owner), slog.Int64("id", id))
	s.record("deleted")
	return nil
}

// GetTask returns one of owner's tasks.
func (s *TaskService) GetTask(ctx context.Context, owner string, id int64) (*model.Task, error) {
	return s.tasks.GetTask(ctx, owner, id)
}

// ListTasks returns all of owner's tasks in the requested order.
// orderField and orderDir are the raw query values; empty means due date ascending.
func (s *TaskService) ListTasks(ctx context.Context, owner, orderField, orderDir string) ([]model.Task, error) {
	return s.list(ctx, owner, orderField, orderDir, "")
}

// ListTasksByTag is ListTasks restricted to tasks carrying tagName.
func (s *TaskService) ListTasksByTag(ctx context.Context, owner, tagName, orderField, orderDir string) ([]model.Task, error) {
	tag := model.NormalizeTagName(tagName)
	if tag == "" {
		return nil, apperror.ValidationFailed("tag", "tag name is required")
	}
	return s.list(ctx, owner, orderField, orderDir, tag)
}

func (s *TaskService) list(ctx context.Context, owner, orderField, orderDir, tag string) ([]model.Task, error) {
	field, dir, err := ParseListOrder(orderField, orderDir)
	if err != nil {
		return nil, err
	}

	tasks, err := s.tasks.ListTasks(ctx, owner, repository.ListOptions{
		OrderField:     field,
		OrderDirection: dir,
		Tag:            tag,
	})
	if err != nil {
		s.logStorageError("failed to list tasks", err, slog.String("owner", owner))
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	return tasks, nil
}

// CountTasks returns how many tasks owner has.
func (s *TaskService) CountTasks(ctx context.Context, owner string) (int, error) {
	n, err := s.tasks.CountTasks(ctx, owner)
	if err != nil {
		s.logStorageError("failed to count tasks", err, slog.String("owner", owner))
		return 0, fmt.Errorf("counting tasks: %w", err)
	}
	return n, nil
}

// UserTags returns the sorted distinct tags on owner's tasks.
func (s *TaskService) UserTags(ctx context.Context, owner string) ([]string, error) {
	tags, err := s.tags.UserTags(ctx, owner)
	if err != nil {
		s.logStorageError("failed to list user tags", err, slog.String("owner", owner))
		return nil, fmt.Errorf("listing user tags: %w", err)
	}
	return tags, nil
}

// AutocompleteTags suggests owner's tags starting with prefix.
// The prefix is normalised like a stored name; fewer than
// MinAutocompletePrefix characters gives no suggestions.
func (s *TaskService) AutocompleteTags(ctx context.Context, owner, prefix string) ([]string, error) {
	prefix = model.NormalizeTagName(prefix)
	if utf8.RuneCountInString(prefix) < MinAutocompletePrefix {
		return []string{}, nil
	}

	tags, err := s.tags.AutocompleteTags(ctx, owner, prefix)
	if err != nil {
		s.logStorageError("failed to autocomplete tags", err, slog.String("owner", owner))
		return nil, fmt.Errorf("autocompleting tags: %w", err)
	}
	return tags, nil
}

// TaskIDsForTag lists every task carrying the tag, across all owners.
func (s *TaskService) TaskIDsForTag(ctx context.Context, tagName string) ([]int64, error) {
	return s.tags.TaskIDsForTag(ctx, model.NormalizeTagName(tagName))
}

// ParseListOrder validates raw order parameters.
//
// "task" is accepted as another name for description, matching the column
// header of the task table.
func ParseListOrder(field, dir string) (repository.OrderField, repository.OrderDirection, error) {
	var (
		f repository.OrderField
		d repository.OrderDirection
	)

	switch strings.ToLower(strings.TrimSpace(field)) {
	case "", string(repository.OrderByDueDate):
		f = repository.OrderByDueDate
	case string(repository.OrderByDescription), "task":
		f = repository.OrderByDescription
	default:
		return "", "", apperror.ValidationFailed("order_col", fmt.Sprintf("cannot order by %q", field))
	}

	switch strings.ToLower(strings.TrimSpace(dir)) {
	case "", string(repository.Ascending):
		d = repository.Ascending
	case string(repository.Descending):
		d = repository.Descending
	default:
		return "", "", apperror.ValidationFailed("order_dir", fmt.Sprintf("order direction must be asc or desc, got %q", dir))
	}

	return f, d, nil
}

// taskInput runs every check shared by create and edit. Nothing is written
// when it fails.
func (s *TaskService) taskInput(owner, description string, tagNames []string, dueDate *time.Time) (repository.TaskInput, error) {
	if strings.TrimSpace(owner) == "" {
		return repository.TaskInput{}, apperror.ValidationFailed("owner", "owner is required")
	}

	description = strings.TrimSpace(description)
	if description == "" {
		return repository.TaskInput{}, apperror.ValidationFailed("description", "description is required")
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return repository.TaskInput{}, apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	}

	names := model.NormalizeTagNames(tagNames)
	for _, name := range names {
		if utf8.RuneCountInString(name) > MaxTagLength {
			return repository.TaskInput{}, apperror.ValidationFailed("tags",
				fmt.Sprintf("tag %q must be %d characters or less", name, MaxTagLength))
		}
	}

	in := repository.TaskInput{Description: description, TagNames: names}
	if dueDate != nil {
		due := timeutil.Universify(*dueDate)
		in.DueDate = &due
	}
	return in, nil
}

func (s *TaskService) record(event string) {
	if s.recorder != nil {
		s.recorder.TaskEvent(event)
	}
}

// logStorageError logs failures the user cannot fix. NotFound and Validation
// are ordinary answers and stay out of the error log.
func (s *TaskService) logStorageError(msg string, err error, attrs ...any) {
	logStorageError(s.logger, msg, err, attrs...)
}
