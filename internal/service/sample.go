package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sakif/todolist/internal/model"
)

// sampleTask is one task given to a new account when sample content is on.
// due is relative to the moment of sign-in; zero means no due date.
type sampleTask struct {
	description string
	tags        string
	due         time.Duration
}

// The set covers what the list can show: an overdue task, one due soon, one
// without a date, one without tags, and tags shared between tasks.
var sampleTasks = []sampleTask{
	{"Sort this list by clicking a column header", "Getting Started, tips", -24 * time.Hour},
	{"Open a tag to see only its tasks", "getting started, tags", 5 * time.Hour},
	{"Set your name and time zone in settings", "settings, tips", 0},
	{"Delete a task once it is done", "", 60 * 24 * time.Hour},
}

// AddSampleTasks gives owner a handful of example tasks.
func (s *TaskService) AddSampleTasks(ctx context.Context, owner string) error {
	now := s.Now()
	for _, st := range sampleTasks {
		var due *time.Time
		if st.due != 0 {
			d := now.Add(st.due)
			due = &d
		}
		if _, err := s.CreateTask(ctx, owner, st.description, model.ParseTagList(st.tags), due); err != nil {
			return fmt.Errorf("adding sample tasks: %w", err)
		}
	}
	return nil
}
