package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTagNames_CollapsesVariants(t *testing.T) {
	got := NormalizeTagNames([]string{"Quest", " quest ", "QUEST"})
	assert.Equal(t, []string{"quest"}, got)
}

func TestNormalizeTagNames_DropsEmptyAndKeepsOrder(t *testing.T) {
	got := NormalizeTagNames([]string{" ni ", "", "   ", "Shrubbery", "NI"})
	assert.Equal(t, []string{"ni", "shrubbery"}, got)
}

func TestNormalizeTagNames_Nil(t *testing.T) {
	assert.Empty(t, NormalizeTagNames(nil))
}

func TestParseTagList(t *testing.T) {
	assert.Nil(t, ParseTagList("  "))
	assert.Equal(t, []string{"a", " b", "", "C "}, ParseTagList("a, b,,C "))
	assert.Equal(t, []string{"a", "b"}, NormalizeTagNames(ParseTagList("a, b,,A ")))
}

func TestPastDue(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)
	tomorrow := now.Add(24 * time.Hour)

	tests := []struct {
		name string
		due  *time.Time
		want bool
	}{
		{"no due date", nil, false},
		{"one day in the past", &yesterday, true},
		{"one day in the future", &tomorrow, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &Task{Description: "x", DueDate: tt.due}
			assert.Equal(t, tt.want, task.PastDue(now))
		})
	}
}

func TestSortedTags_DoesNotMutate(t *testing.T) {
	task := &Task{Tags: []Tag{{Name: "spam"}, {Name: "eggs"}, {Name: "ham"}}}

	sorted := task.SortedTags()

	assert.Equal(t, []Tag{{Name: "eggs"}, {Name: "ham"}, {Name: "spam"}}, sorted)
	assert.Equal(t, "spam", task.Tags[0].Name, "original order must be untouched")
	assert.Equal(t, []string{"eggs", "ham", "spam"}, task.TagNames())
}

func TestHasTag(t *testing.T) {
	task := &Task{Tags: []Tag{{Name: "one"}}}
	assert.True(t, task.HasTag("one"))
	assert.False(t, task.HasTag("two"))
}

func TestLocalizedDueDate(t *testing.T) {
	due := time.Date(2024, 1, 15, 17, 0, 0, 0, time.UTC)
	task := &Task{DueDate: &due}

	local, err := task.LocalizedDueDate("US/Eastern")
	require.NoError(t, err)
	require.NotNil(t, local)
	assert.Equal(t, 12, local.Hour())

	empty := &Task{}
	none, err := empty.LocalizedDueDate("US/Eastern")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestProfileComplete(t *testing.T) {
	tests := []struct {
		first, last string
		want        bool
	}{
		{"Brian", "Cohen", true},
		{"Brian", "", false},
		{"", "Cohen", false},
		{"  ", "Cohen", false},
		{"", "", false},
	}
	for _, tt := range tests {
		u := &User{Email: "b@example.com", FirstName: tt.first, LastName: tt.last}
		assert.Equal(t, tt.want, u.ProfileComplete(), "first=%q last=%q", tt.first, tt.last)
	}
}
