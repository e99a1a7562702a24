package service

import (
	"time"

	"github.com/sakif/todolist/internal/apperror"
	"github.com/sakif/todolist/internal/model"
	"github.com/sakif/todolist/internal/timeutil"
)

// TaskForm is the add/edit form as the browser sends it: every field a string.
type TaskForm struct {
	Description string
	Tags        string // comma separated, "ni, shrubbery"
	DueDate     string // wall-clock time in the user's zone, or empty
}

// ParsedTaskForm holds the typed values ready for CreateTask / EditTask.
type ParsedTaskForm struct {
	Description string
	TagNames    []string
	DueDate     *time.Time
}

// Parse splits the tag text and reads the due date in zoneName.
// A due date that matches none of the accepted layouts is a validation error.
func (f TaskForm) Parse(zoneName string) (*ParsedTaskForm, error) {
	due, err := timeutil.ParseDueDate(f.DueDate, zoneName)
	if err != nil {
		return nil, apperror.ValidationFailed("due_date", "due date must look like 2006-01-02 15:04")
	}

	return &ParsedTaskForm{
		Description: f.Description,
		TagNames:    model.ParseTagList(f.Tags),
		DueDate:     due,
	}, nil
}
