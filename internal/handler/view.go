package handler

import (
	"time"

	"github.com/sakif/todolist/internal/model"
)

// DisplayLayout is how due dates are shown and typed in the browser.
const DisplayLayout = "2006-01-02 15:04"

// TagView is one tag on a task row. Selected marks the tag the list is
// currently filtered by, so the page can highlight it.
type TagView struct {
	Name     string `json:"name"`
	Selected bool   `json:"selected"`
}

// TaskView is a task prepared for one viewer: tags sorted, due date moved
// into the viewer's time zone, and past-due computed against now.
type TaskView struct {
	ID          int64      `json:"id"`
	Description string     `json:"description"`
	Tags        []TagView  `json:"tags"`
	DueDate     *time.Time `json:"due_date"`
	DueDateText string     `json:"due_date_text"`
	PastDue     bool       `json:"past_due"`
}

// newTaskViews converts tasks for a viewer in zone. selectedTag is the
// normalised filter tag, or "".
func newTaskViews(tasks []model.Task, zone, selectedTag string, now time.Time) ([]TaskView, error) {
	views := make([]TaskView, 0, len(tasks))
	for i := range tasks {
		v, err := newTaskView(&tasks[i], zone, selectedTag, now)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func newTaskView(t *model.Task, zone, selectedTag string, now time.Time) (TaskView, error) {
	local, err := t.LocalizedDueDate(zone)
	if err != nil {
		return TaskView{}, err
	}

	sorted := t.SortedTags()
	tags := make([]TagView, len(sorted))
	for i, tag := range sorted {
		tags[i] = TagView{Name: tag.Name, Selected: selectedTag != "" && tag.Name == selectedTag}
	}

	v := TaskView{
		ID:          t.ID,
		Description: t.Description,
		Tags:        tags,
		DueDate:     local,
		PastDue:     t.PastDue(now),
	}
	if local != nil {
		v.DueDateText = local.Format(DisplayLayout)
	}
	return v, nil
}

// AutocompleteItem is the shape the tag autocomplete widget expects.
type AutocompleteItem struct {
	ID    string `json:"id"`
	Value string `json:"value"`
	Label string `json:"label"`
}

func autocompleteItems(names []string) []AutocompleteItem {
	items := make([]AutocompleteItem, len(names))
	for i, name := range names {
		items[i] = AutocompleteItem{ID: name, Value: name, Label: name}
	}
	return items
}

// UserView is the JSON form of the signed-in user.
type UserView struct {
	Email           string `json:"email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	TimeZone        string `json:"time_zone"`
	ProfileComplete bool   `json:"profile_complete"`
}

func newUserView(u *model.User) UserView {
	return UserView{
		Email:           u.Email,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		TimeZone:        u.TimeZone,
		ProfileComplete: u.ProfileComplete(),
	}
}
