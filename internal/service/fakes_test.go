package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"testing"

	"golang.org/x/text/cases"

	"github.com/sakif/todolist/internal/apperror"
	"github.com/sakif/todolist/internal/model"
	"github.com/sakif/todolist/internal/repository"
)

// =========================================================================
// FAKE REPOSITORIES
// =========================================================================
//
// fakeStore implements TaskRepository, TagRepository and UserRepository in
// memory. The services only see the interfaces, so they cannot tell it apart
// from SQLite. err, when set, is returned by every call to simulate the
// database going away.

type fakeStore struct {
	tasks  map[int64]*model.Task
	tags   map[string]bool
	users  map[string]*model.User
	nextID int64
	err    error

	// lastInput is the TaskInput of the most recent create/update, so tests
	// can inspect exactly what reached storage.
	lastInput repository.TaskInput
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tasks: make(map[int64]*model.Task),
		tags:  make(map[string]bool),
		users: make(map[string]*model.User),
	}
}

func (f *fakeStore) CreateTask(_ context.Context, owner string, in repository.TaskInput) (*model.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastInput = in
	f.nextID++
	task := &model.Task{ID: f.nextID, Owner: owner}
	f.apply(task, in)
	f.tasks[task.ID] = task
	return copyTask(task), nil
}

func (f *fakeStore) GetTask(_ context.Context, owner string, id int64) (*model.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	task, ok := f.tasks[id]
	if !ok || task.Owner != owner {
		return nil, apperror.NotFound("task", strconv.FormatInt(id, 10))
	}
	return copyTask(task), nil
}

func (f *fakeStore) UpdateTask(_ context.Context, owner string, id int64, in repository.TaskInput) (*model.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastInput = in
	task, ok := f.tasks[id]
	if !ok || task.Owner != owner {
		return nil, apperror.NotFound("task", strconv.FormatInt(id, 10))
	}
	f.apply(task, in)
	return copyTask(task), nil
}

func (f *fakeStore) DeleteTask(_ context.Context, owner string, id int64) error {
	if f.err != nil {
		return f.err
	}
	task, ok := f.tasks[id]
	if !ok {
		return nil
	}
	if task.Owner != owner {
		return apperror.NotFound("task", strconv.FormatInt(id, 10))
	}
	delete(f.tasks, id)
	return nil
}

func (f *fakeStore) ListTasks(_ context.Context, owner string, opts repository.ListOptions) ([]model.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []model.Task{}
	for _, task := range f.tasks {
		if task.Owner != owner || (opts.Tag != "" && !task.HasTag(opts.Tag)) {
			continue
		}
		out = append(out, *copyTask(task))
	}

	desc := opts.OrderDirection == repository.Descending
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if opts.OrderField == repository.OrderByDescription {
			la, lb := cases.Fold().String(a.Description), cases.Fold().String(b.Description)
			if la != lb {
				return (la < lb) != desc
			}
			return a.ID < b.ID
		}
		switch {
		case a.DueDate == nil && b.DueDate == nil:
			return a.ID < b.ID
		case a.DueDate == nil:
			return false
		case b.DueDate == nil:
			return true
		case !a.DueDate.Equal(*b.DueDate):
			return a.DueDate.Before(*b.DueDate) != desc
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (f *fakeStore) CountTasks(_ context.Context, owner string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	n := 0
	for _, task := range f.tasks {
		if task.Owner == owner {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) UserTags(_ context.Context, owner string) ([]string, error) {
	return f.ownerTags(owner, "")
}

func (f *fakeStore) AutocompleteTags(_ context.Context, owner, prefix string) ([]string, error) {
	return f.ownerTags(owner, prefix)
}

func (f *fakeStore) TagExists(_ context.Context, name string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.tags[name], nil
}

func (f *fakeStore) TaskIDsForTag(_ context.Context, name string) ([]int64, error) {
	if f.err != nil {
		return nil, f.err
	}
	ids := []int64{}
	for id, task := range f.tasks {
		if task.HasTag(name) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeStore) GetOrCreateUser(_ context.Context, email, defaultZone string) (*model.User, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	if u, ok := f.users[email]; ok {
		cp := *u
		return &cp, false, nil
	}
	u := &model.User{Email: email, TimeZone: defaultZone}
	f.users[email] = u
	cp := *u
	return &cp, true, nil
}

func (f *fakeStore) GetUser(_ context.Context, email string) (*model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[email]
	if !ok {
		return nil, apperror.NotFound("user", email)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) UpdateUser(_ context.Context, user *model.User) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.users[user.Email]; !ok {
		return apperror.NotFound("user", user.Email)
	}
	cp := *user
	f.users[user.Email] = &cp
	return nil
}

func (f *fakeStore) apply(task *model.Task, in repository.TaskInput) {
	task.Description = in.Description
	task.DueDate = in.DueDate
	task.Tags = []model.Tag{}
	for _, name := range in.TagNames {
		f.tags[name] = true
		task.Tags = append(task.Tags, model.Tag{Name: name})
	}
}

func (f *fakeStore) ownerTags(owner, prefix string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	seen := map[string]bool{}
	out := []string{}
	for _, task := range f.tasks {
		if task.Owner != owner {
			continue
		}
		for _, tag := range task.Tags {
			if strings.HasPrefix(tag.Name, prefix) && !seen[tag.Name] {
				seen[tag.Name] = true
				out = append(out, tag.Name)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func copyTask(t *model.Task) *model.Task {
	cp := *t
	cp.Tags = append([]model.Tag{}, t.Tags...)
	return &cp
}

// fakeRecorder counts business events.
type fakeRecorder struct {
	events []string
}

func (r *fakeRecorder) TaskEvent(event string) {
	r.events = append(r.events, event)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var (
	_ repository.TaskRepository = (*fakeStore)(nil)
	_ repository.TagRepository  = (*fakeStore)(nil)
	_ repository.UserRepository = (*fakeStore)(nil)
)

func newTestTaskService(t *testing.T, opts ...TaskOption) (*TaskService, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	return NewTaskService(store, store, discardLogger(), opts...), store
}
