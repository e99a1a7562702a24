// Package handler contains the HTTP handlers: the JSON API under /api and
// the server-rendered pages.
//
// Handlers are glue. They read the request, call a service, and write the
// response; the rules about tasks, tags and users live in package service.
package handler

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/sakif/todolist/internal/apperror"
	"github.com/sakif/todolist/internal/auth"
	"github.com/sakif/todolist/internal/model"
	"github.com/sakif/todolist/internal/repository"
	"github.com/sakif/todolist/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"home", "todos", "tags", "settings"}

var templateFuncs = template.FuncMap{"tagURL": tagPath}

// tagPath is the page listing tasks with tag name. Names may hold '#', '?',
// '/' or '%', so the segment is always escaped.
func tagPath(name string) string {
	return "/tags/" + url.PathEscape(name)
}

// pathTag reads the {tag} segment. chi matches on the escaped path only when
// the request carried escapes the default encoding would not produce (such as
// %2F), and only then is the value still escaped.
func pathTag(r *http.Request) string {
	tag := r.PathValue("tag")
	if r.URL.RawPath != "" {
		if decoded, err := url.PathUnescape(tag); err == nil {
			tag = decoded
		}
	}
	return model.NormalizeTagName(tag)
}

// PageContext is the data every page template can rely on. Page-specific
// data structs embed it.
type PageContext struct {
	Title         string
	User          *model.User // nil for anonymous visitors
	SignInEnabled bool
}

type homePage struct {
	PageContext
	TaskCount int
}

type todosPage struct {
	PageContext
	Tasks     []TaskView
	AllTags   []string
	Tag       string
	TimeZone  string
	OrderCol  string
	OrderDir  string
	Form      service.TaskForm
	FormError string
}

// SortURL returns the link for a column header: ascending on first click,
// flipping direction when the column is already the sort key.
func (p todosPage) SortURL(col string) string {
	dir := string(repository.Ascending)
	if col == p.OrderCol && p.OrderDir == string(repository.Ascending) {
		dir = string(repository.Descending)
	}
	q := url.Values{"order_col": {col}, "order_dir": {dir}}
	return p.listPath() + "?" + q.Encode()
}

// listPath is where the page lives: the full list or one tag's list.
func (p todosPage) listPath() string {
	if p.Tag != "" {
		return tagPath(p.Tag)
	}
	return "/todos"
}

// FormAction keeps an add from a tag's list on that list.
func (p todosPage) FormAction() string {
	return p.listPath()
}

type tagsPage struct {
	PageContext
	Tags []string
}

type settingsForm struct {
	FirstName string
	LastName  string
	TimeZone  string
}

type settingsPage struct {
	PageContext
	Form      settingsForm
	FormError string
}

// PageHandler renders the HTML pages.
//
//	GET  /                   home (task count when signed in)
//	GET  /todos              the user's list, sortable
//	POST /todos              add a task from the form
//	POST /todos/{id}/delete  mark a task done
//	GET  /tags               the user's tags
//	GET  /tags/{tag}         the list filtered by one tag
//	POST /tags/{tag}         add a task from that list's form
//	GET  /settings           account settings form
//	POST /settings           save settings
type PageHandler struct {
	pages         map[string]*template.Template
	tasks         *service.TaskService
	accounts      *service.AccountService
	resp          *Responder
	signInEnabled bool
	logger        *slog.Logger
}

// NewPageHandler parses the embedded templates once. Each page is parsed
// together with base.html so its "content" block fills the layout.
func NewPageHandler(
	tasks *service.TaskService,
	accounts *service.AccountService,
	resp *Responder,
	signInEnabled bool,
	logger *slog.Logger,
) (*PageHandler, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.New("base.html").Funcs(templateFuncs).
			ParseFS(templateFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", name, err)
		}
		pages[name] = tmpl
	}

	return &PageHandler{
		pages:         pages,
		tasks:         tasks,
		accounts:      accounts,
		resp:          resp,
		signInEnabled: signInEnabled,
		logger:        logger,
	}, nil
}

// Render executes the named page into a buffer first, so a template error
// becomes a clean 500 instead of half a page.
func (h *PageHandler) Render(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := h.pages[name]
	if !ok {
		h.logger.Error("unknown page", slog.String("page", name))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		h.logger.Error("failed to render template", slog.String("page", name), slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// pageContext loads the signed-in user, if any.
func (h *PageHandler) pageContext(r *http.Request, title string) (PageContext, error) {
	pc := PageContext{Title: title, SignInEnabled: h.signInEnabled}

	email, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return pc, nil
	}
	user, err := h.accounts.GetUser(r.Context(), email)
	if err != nil {
		return pc, err
	}
	pc.User = user
	return pc, nil
}

// signedIn is pageContext for pages behind auth.RequirePageAuth. A request
// without a user is sent home; false means the response is written.
func (h *PageHandler) signedIn(w http.ResponseWriter, r *http.Request, title string) (PageContext, bool) {
	pc, err := h.pageContext(r, title)
	if err != nil {
		h.resp.PageError(w, r, err)
		return pc, false
	}
	if pc.User == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return pc, false
	}
	return pc, true
}

// HandleHome serves the landing page. Anonymous visitors are welcome.
func (h *PageHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	pc, err := h.pageContext(r, "To-do")
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		h.resp.PageError(w, r, err)
		return
	}

	page := homePage{PageContext: pc}
	if pc.User != nil {
		page.TaskCount, err = h.tasks.CountTasks(r.Context(), pc.User.Email)
		if err != nil {
			h.resp.PageError(w, r, err)
			return
		}
	}
	h.Render(w, http.StatusOK, "home", page)
}

// HandleTodos serves the full list.
func (h *PageHandler) HandleTodos(w http.ResponseWriter, r *http.Request) {
	h.renderTodos(w, r, http.StatusOK, "", service.TaskForm{}, "")
}

// HandleTagged serves the list filtered by the {tag} path segment. The add
// form starts with that tag filled in.
func (h *PageHandler) HandleTagged(w http.ResponseWriter, r *http.Request) {
	tag := pathTag(r)
	if tag == "" {
		http.Redirect(w, r, "/tags", http.StatusSeeOther)
		return
	}
	h.renderTodos(w, r, http.StatusOK, tag, service.TaskForm{Tags: tag}, "")
}

// HandleAddTodo handles the add form, posted either to /todos or to a tag's
// list. Invalid input re-renders the same list with the message and the
// typed values kept; success goes back to it.
func (h *PageHandler) HandleAddTodo(w http.ResponseWriter, r *http.Request) {
	tag := pathTag(r)

	pc, ok := h.signedIn(w, r, "Your to-dos")
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	form := service.TaskForm{
		Description: r.PostForm.Get("description"),
		Tags:        r.PostForm.Get("tags"),
		DueDate:     r.PostForm.Get("due_date"),
	}

	parsed, err := form.Parse(pc.User.TimeZone)
	if err == nil {
		_, err = h.tasks.CreateTask(r.Context(), pc.User.Email, parsed.Description, parsed.TagNames, parsed.DueDate)
	}
	if err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			message, _ := publicMessage(err)
			h.renderTodos(w, r, http.StatusBadRequest, tag, form, message)
			return
		}
		h.resp.PageError(w, r, err)
		return
	}
	http.Redirect(w, r, todosPage{Tag: tag}.listPath(), http.StatusSeeOther)
}

// HandleDeleteTodo marks a task done by deleting it.
func (h *PageHandler) HandleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	email, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	id, err := taskID(r)
	if err != nil {
		h.resp.PageError(w, r, err)
		return
	}
	if err := h.tasks.DeleteTask(r.Context(), email, id); err != nil {
		h.resp.PageError(w, r, err)
		return
	}

	back := "/todos"
	if ref, err := url.Parse(r.Referer()); err == nil && ref.Host == r.Host && ref.Path != "" {
		back = ref.RequestURI()
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

func (h *PageHandler) renderTodos(w http.ResponseWriter, r *http.Request, status int, tag string, form service.TaskForm, formErr string) {
	title := "Your to-dos"
	if tag != "" {
		title = "Tagged " + tag
	}
	pc, ok := h.signedIn(w, r, title)
	if !ok {
		return
	}
	owner := pc.User.Email

	field, dir, err := service.ParseListOrder(r.URL.Query().Get("order_col"), r.URL.Query().Get("order_dir"))
	if err != nil {
		h.resp.PageError(w, r, err)
		return
	}

	var tasks []model.Task
	if tag != "" {
		tasks, err = h.tasks.ListTasksByTag(r.Context(), owner, tag, string(field), string(dir))
	} else {
		tasks, err = h.tasks.ListTasks(r.Context(), owner, string(field), string(dir))
	}
	if err != nil {
		h.resp.PageError(w, r, err)
		return
	}

	views, err := newTaskViews(tasks, pc.User.TimeZone, tag, h.tasks.Now())
	if err != nil {
		h.resp.PageError(w, r, err)
		return
	}

	allTags, err := h.tasks.UserTags(r.Context(), owner)
	if err != nil {
		h.resp.PageError(w, r, err)
		return
	}

	h.Render(w, status, "todos", todosPage{
		PageContext: pc,
		Tasks:       views,
		AllTags:     allTags,
		Tag:         tag,
		TimeZone:    pc.User.TimeZone,
		OrderCol:    string(field),
		OrderDir:    string(dir),
		Form:        form,
		FormError:   formErr,
	})
}

// HandleTags lists the user's tags.
func (h *PageHandler) HandleTags(w http.ResponseWriter, r *http.Request) {
	pc, ok := h.signedIn(w, r, "Your tags")
	if !ok {
		return
	}

	tags, err := h.tasks.UserTags(r.Context(), pc.User.Email)
	if err != nil {
		h.resp.PageError(w, r, err)
		return
	}
	h.Render(w, http.StatusOK, "tags", tagsPage{PageContext: pc, Tags: tags})
}

// HandleSettings shows the settings form filled with the current values.
func (h *PageHandler) HandleSettings(w http.ResponseWriter, r *http.Request) {
	pc, ok := h.signedIn(w, r, "Settings")
	if !ok {
		return
	}
	h.Render(w, http.StatusOK, "settings", settingsPage{
		PageContext: pc,
		Form: settingsForm{
			FirstName: pc.User.FirstName,
			LastName:  pc.User.LastName,
			TimeZone:  pc.User.TimeZone,
		},
	})
}

// HandleSaveSettings saves the settings form and goes to the list.
func (h *PageHandler) HandleSaveSettings(w http.ResponseWriter, r *http.Request) {
	pc, ok := h.signedIn(w, r, "Settings")
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	form := settingsForm{
		FirstName: r.PostForm.Get("first_name"),
		LastName:  r.PostForm.Get("last_name"),
		TimeZone:  r.PostForm.Get("time_zone"),
	}

	_, err := h.accounts.UpdateSettings(r.Context(), pc.User.Email, form.FirstName, form.LastName, form.TimeZone)
	if err != nil {
		if errors.Is(err, apperror.ErrValidation) {
			message, _ := publicMessage(err)
			h.Render(w, http.StatusBadRequest, "settings", settingsPage{PageContext: pc, Form: form, FormError: message})
			return
		}
		h.resp.PageError(w, r, err)
		return
	}
	http.Redirect(w, r, "/todos", http.StatusSeeOther)
}
