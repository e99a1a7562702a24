package model

import (
	"sort"
	"time"

	"github.com/sakif/todolist/internal/timeutil"
)

// Task is a to-do item owned by exactly one user.
//
// DueDate is nil when the task has no due date. When set it is always a naive
// UTC instant (Location == time.UTC); see package timeutil.
type Task struct {
	ID          int64      `json:"id"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Owner       string     `json:"owner"`
	Tags        []Tag      `json:"tags"`
}

// PastDue reports whether the task has a due date earlier than now.
// now is passed in so callers (and tests) control the clock.
func (t *Task) PastDue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now.UTC())
}

// SortedTags returns a copy of the task's tags ordered by name.
func (t *Task) SortedTags() []Tag {
	tags := make([]Tag, len(t.Tags))
	copy(tags, t.Tags)
	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	return tags
}

// TagNames returns the sorted tag names.
func (t *Task) TagNames() []string {
	sorted := t.SortedTags()
	names := make([]string, len(sorted))
	for i, tag := range sorted {
		names[i] = tag.Name
	}
	return names
}

// HasTag reports whether the task carries the given (already normalised) tag.
func (t *Task) HasTag(name string) bool {
	for _, tag := range t.Tags {
		if tag.Name == name {
			return true
		}
	}
	return false
}

// LocalizedDueDate returns the due date in zoneName, or nil when unset.
func (t *Task) LocalizedDueDate(zoneName string) (*time.Time, error) {
	if t.DueDate == nil {
		return nil, nil
	}
	local, err := timeutil.Localize(*t.DueDate, zoneName)
	if err != nil {
		return nil, err
	}
	return &local, nil
}
