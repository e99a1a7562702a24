package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/todolist/internal/auth"
	"github.com/sakif/todolist/internal/handler"
)

func newPageRouter(t *testing.T, env *testEnv) chi.Router {
	t.Helper()
	pages, err := handler.NewPageHandler(env.tasks, env.accounts, env.resp, true, env.logger)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Get("/", pages.HandleHome)
	r.Get("/todos", pages.HandleTodos)
	r.Post("/todos", pages.HandleAddTodo)
	r.Post("/todos/{id}/delete", pages.HandleDeleteTodo)
	r.Get("/tags", pages.HandleTags)
	r.Get("/tags/{tag}", pages.HandleTagged)
	r.Post("/tags/{tag}", pages.HandleAddTodo)
	r.Get("/settings", pages.HandleSettings)
	r.Post("/settings", pages.HandleSaveSettings)
	return r
}

func page(t *testing.T, r chi.Router, method, path, user string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != "" {
		req = req.WithContext(auth.WithUserID(req.Context(), user))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHomePage(t *testing.T) {
	env := newTestEnv(t)
	r := newPageRouter(t, env)

	rec := page(t, r, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sign in with Google")

	env.signIn(t, brian, "UTC")
	env.createTask(t, brian, map[string]string{"description": "say ni"})

	rec = page(t, r, http.MethodGet, "/", brian, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "You have 1 task.")
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestTodosPage(t *testing.T) {
	env := newTestEnv(t)
	r := newPageRouter(t, env)
	env.signIn(t, brian, "Europe/London")

	env.createTask(t, brian, map[string]string{"description": "<b>bring</b> a shrubbery", "tags": "ni", "due_date": "2026-10-01 09:00"})
	env.createTask(t, brian, map[string]string{"description": "cut down a tree", "tags": "herring"})

	rec := page(t, r, http.MethodGet, "/todos", brian, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "&lt;b&gt;bring&lt;/b&gt; a shrubbery")
	assert.Contains(t, body, "cut down a tree")
	assert.Contains(t, body, `class="past-due"`)
	assert.Contains(t, body, "2026-10-01 09:00")
	assert.Contains(t, body, "Due (Europe/London)")

	rec = page(t, r, http.MethodGet, "/tags/NI", brian, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = rec.Body.String()
	assert.Contains(t, body, "shrubbery")
	assert.NotContains(t, body, "cut down a tree")
	assert.Contains(t, body, `class="tag selected"`)

	rec = page(t, r, http.MethodGet, "/todos?order_col=owner", brian, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddTodoForm(t *testing.T) {
	env := newTestEnv(t)
	r := newPageRouter(t, env)
	env.signIn(t, brian, "UTC")

	rec := page(t, r, http.MethodPost, "/todos", brian, url.Values{
		"description": {"find the grail"},
		"tags":        {"Quest, holy"},
		"due_date":    {"2026-12-24 18:00"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/todos", rec.Header().Get("Location"))

	tags, err := env.tasks.UserTags(context.Background(), brian)
	require.NoError(t, err)
	assert.Equal(t, []string{"holy", "quest"}, tags)

	rec = page(t, r, http.MethodPost, "/todos", brian, url.Values{
		"description": {"find another grail"},
		"due_date":    {"whenever"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "due date must look like")
	assert.Contains(t, rec.Body.String(), `value="find another grail"`)
}

func TestDeleteTodoForm(t *testing.T) {
	env := newTestEnv(t)
	r := newPageRouter(t, env)
	env.signIn(t, brian, "UTC")
	created := env.createTask(t, brian, map[string]string{"description": "say ni"})

	rec := page(t, r, http.MethodPost, "/todos/"+itoa(created.ID)+"/delete", brian, url.Values{})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	n, err := env.tasks.CountTasks(context.Background(), brian)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTagsPage(t *testing.T) {
	env := newTestEnv(t)
	r := newPageRouter(t, env)
	env.signIn(t, brian, "UTC")
	env.createTask(t, brian, map[string]string{"description": "x", "tags": "herring, ni"})

	rec := page(t, r, http.MethodGet, "/tags", brian, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `href="/tags/herring"`)
	assert.Contains(t, rec.Body.String(), `href="/tags/ni"`)
}

func TestSettingsForm(t *testing.T) {
	env := newTestEnv(t)
	r := newPageRouter(t, env)
	_, err := env.accounts.SignIn(context.Background(), auth.Identity{Email: brian})
	require.NoError(t, err)

	rec := page(t, r, http.MethodGet, "/settings", brian, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please tell us your name")

	rec = page(t, r, http.MethodPost, "/settings", brian, url.Values{
		"first_name": {"Brian"}, "last_name": {""}, "time_zone": {"UTC"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "last name is required")

	rec = page(t, r, http.MethodPost, "/settings", brian, url.Values{
		"first_name": {"Brian"}, "last_name": {"Cohen"}, "time_zone": {"Asia/Jerusalem"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)

	user, err := env.accounts.GetUser(context.Background(), brian)
	require.NoError(t, err)
	assert.Equal(t, "Asia/Jerusalem", user.TimeZone)
	assert.True(t, user.ProfileComplete())
}

func TestPages_AnonymousGoesHome(t *testing.T) {
	env := newTestEnv(t)
	r := newPageRouter(t, env)

	rec := page(t, r, http.MethodGet, "/todos", "", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestPages_StorageUnavailableIsPlainText(t *testing.T) {
	env := newTestEnv(t)
	r := newPageRouter(t, env)
	env.signIn(t, brian, "UTC")
	require.NoError(t, env.db.Close())

	rec := page(t, r, http.MethodGet, "/todos", brian, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
	assert.Contains(t, rec.Body.String(), "Service Unavailable: storage unavailable while")
	assert.Equal(t, 1, env.reporter.n)
}

func TestTagLinksAreEscaped(t *testing.T) {
	env := newTestEnv(t)
	r := newPageRouter(t, env)
	env.signIn(t, brian, "UTC")
	env.createTask(t, brian, map[string]string{"description": "sharp task", "tags": "c#"})
	env.createTask(t, brian, map[string]string{"description": "plain c task", "tags": "c"})
	env.createTask(t, brian, map[string]string{"description": "slash task", "tags": "a/b"})
	env.createTask(t, brian, map[string]string{"description": "percent task", "tags": "50%"})

	for _, path := range []string{"/todos", "/tags"} {
		rec := page(t, r, http.MethodGet, path, brian, nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
		body := rec.Body.String()
		assert.Contains(t, body, `href="/tags/c%23"`, path)
		assert.Contains(t, body, `href="/tags/a%2Fb"`, path)
		assert.Contains(t, body, `href="/tags/50%25"`, path)
		assert.NotContains(t, body, `href="/tags/c#"`, path)
	}

	tests := []struct {
		path     string
		want     string
		excluded string
	}{
		{"/tags/c%23", "sharp task", "plain c task"},
		{"/tags/c", "plain c task", "sharp task"},
		{"/tags/a%2Fb", "slash task", "sharp task"},
		{"/tags/50%25", "percent task", "slash task"},
	}
	for _, tt := range tests {
		rec := page(t, r, http.MethodGet, tt.path, brian, nil)
		require.Equal(t, http.StatusOK, rec.Code, tt.path)
		assert.Contains(t, rec.Body.String(), tt.want, tt.path)
		assert.NotContains(t, rec.Body.String(), tt.excluded, tt.path)
	}
}

func TestAddTodoFromTagPage(t *testing.T) {
	env := newTestEnv(t)
	r := newPageRouter(t, env)
	env.signIn(t, brian, "UTC")
	env.createTask(t, brian, map[string]string{"description": "say ni", "tags": "c#"})

	rec := page(t, r, http.MethodGet, "/tags/c%23", brian, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `action="/tags/c%23"`)
	assert.Contains(t, rec.Body.String(), `name="tags" placeholder="tags, comma separated" value="c#"`)

	rec = page(t, r, http.MethodPost, "/tags/c%23", brian, url.Values{
		"description": {"learn c#"},
		"tags":        {"c#"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/tags/c%23", rec.Header().Get("Location"))

	rec = page(t, r, http.MethodPost, "/tags/c%23", brian, url.Values{
		"description": {"learn more c#"},
		"tags":        {"c#"},
		"due_date":    {"whenever"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "due date must look like")
	assert.Contains(t, body, `action="/tags/c%23"`)
	assert.Contains(t, body, "learn c#")

	rec = page(t, r, http.MethodGet, "/todos", brian, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `action="/todos"`)
}
