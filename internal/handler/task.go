package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/todolist/internal/apperror"
	"github.com/sakif/todolist/internal/auth"
	"github.com/sakif/todolist/internal/model"
	"github.com/sakif/todolist/internal/service"
)

// TaskHandler serves the task and tag JSON API.
//
//	GET    /api/tasks                 list (?order_col, ?order_dir, ?tag)
//	POST   /api/tasks                 create
//	GET    /api/tasks/{id}            one task
//	PUT    /api/tasks/{id}            edit
//	DELETE /api/tasks/{id}            delete
//	GET    /api/tags                  the caller's tags
//	GET    /api/tags/autocomplete     ?term=
//
// Every route sits behind auth.RequireAuth, so the owner always comes from
// the session and never from the request body.
type TaskHandler struct {
	tasks    *service.TaskService
	accounts *service.AccountService
	resp     *Responder
	logger   *slog.Logger
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(tasks *service.TaskService, accounts *service.AccountService, resp *Responder, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		tasks:    tasks,
		accounts: accounts,
		resp:     resp,
		logger:   logger,
	}
}

// taskRequest is the body of POST and PUT. Tags and due date arrive as the
// add-task form types them: "ni, shrubbery" and "2026-10-31 17:00" in the
// user's own time zone.
type taskRequest struct {
	Description string `json:"description" validate:"required,max=1000"`
	Tags        string `json:"tags" validate:"max=4000"`
	DueDate     string `json:"due_date" validate:"max=64"`
}

// HandleList returns the caller's tasks.
func (h *TaskHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	owner, zone, ok := h.viewer(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	var (
		tasks []model.Task
		err   error
		tag   = q.Get("tag")
	)
	if tag != "" {
		tasks, err = h.tasks.ListTasksByTag(r.Context(), owner, tag, q.Get("order_col"), q.Get("order_dir"))
	} else {
		tasks, err = h.tasks.ListTasks(r.Context(), owner, q.Get("order_col"), q.Get("order_dir"))
	}
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}

	views, err := newTaskViews(tasks, zone, model.NormalizeTagName(tag), h.tasks.Now())
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// HandleGet returns one task.
func (h *TaskHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	owner, zone, ok := h.viewer(w, r)
	if !ok {
		return
	}
	id, err := taskID(r)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}

	task, err := h.tasks.GetTask(r.Context(), owner, id)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.writeTask(w, r, http.StatusOK, task, zone)
}

// HandleCreate adds a task. 201 with the stored task on success.
func (h *TaskHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	owner, zone, ok := h.viewer(w, r)
	if !ok {
		return
	}

	form, err := h.parseBody(w, r, zone)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}

	task, err := h.tasks.CreateTask(r.Context(), owner, form.Description, form.TagNames, form.DueDate)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.writeTask(w, r, http.StatusCreated, task, zone)
}

// HandleUpdate replaces a task's description, tags and due date.
func (h *TaskHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	owner, zone, ok := h.viewer(w, r)
	if !ok {
		return
	}
	id, err := taskID(r)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}

	form, err := h.parseBody(w, r, zone)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}

	task, err := h.tasks.EditTask(r.Context(), owner, id, form.Description, form.TagNames, form.DueDate)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	h.writeTask(w, r, http.StatusOK, task, zone)
}

// HandleDelete removes a task. Deleting an id that no longer exists is a
// 204 like any other delete.
func (h *TaskHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.resp.Unauthorized(w)
		return
	}
	id, err := taskID(r)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}

	if err := h.tasks.DeleteTask(r.Context(), owner, id); err != nil {
		h.resp.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleTags returns the sorted names of the caller's tags.
func (h *TaskHandler) HandleTags(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.resp.Unauthorized(w)
		return
	}

	tags, err := h.tasks.UserTags(r.Context(), owner)
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

// HandleAutocomplete suggests the caller's tags starting with ?term=.
func (h *TaskHandler) HandleAutocomplete(w http.ResponseWriter, r *http.Request) {
	owner, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.resp.Unauthorized(w)
		return
	}

	names, err := h.tasks.AutocompleteTags(r.Context(), owner, r.URL.Query().Get("term"))
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, autocompleteItems(names))
}

// viewer returns the signed-in user and their time zone. On failure the
// error response has already been written.
func (h *TaskHandler) viewer(w http.ResponseWriter, r *http.Request) (owner, zone string, ok bool) {
	owner, ok = auth.UserIDFromContext(r.Context())
	if !ok {
		h.resp.Unauthorized(w)
		return "", "", false
	}

	zone, err := userZone(r.Context(), h.accounts, owner)
	if err != nil {
		h.resp.Error(w, r, err)
		return "", "", false
	}
	return owner, zone, true
}

func (h *TaskHandler) parseBody(w http.ResponseWriter, r *http.Request, zone string) (*service.ParsedTaskForm, error) {
	var req taskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return nil, err
	}
	return service.TaskForm{
		Description: req.Description,
		Tags:        req.Tags,
		DueDate:     req.DueDate,
	}.Parse(zone)
}

func (h *TaskHandler) writeTask(w http.ResponseWriter, r *http.Request, status int, task *model.Task, zone string) {
	view, err := newTaskView(task, zone, "", h.tasks.Now())
	if err != nil {
		h.resp.Error(w, r, err)
		return
	}
	writeJSON(w, status, view)
}

// userZone returns the IANA zone the user reads due dates in.
func userZone(ctx context.Context, accounts *service.AccountService, email string) (string, error) {
	user, err := accounts.GetUser(ctx, email)
	if err != nil {
		return "", err
	}
	return user.TimeZone, nil
}

func taskID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed("id", "task id must be a positive integer")
	}
	return id, nil
}
