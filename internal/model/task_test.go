package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)

func TestStatusAndPriorityValid(t *testing.T) {
	assert.True(t, StatusPending.Valid())
	assert.True(t, StatusCompleted.Valid())
	assert.False(t, Status("done").Valid())

	assert.True(t, PriorityHigh.Valid())
	assert.False(t, Priority("urgent").Valid())

	assert.Greater(t, PriorityHigh.Rank(), PriorityMedium.Rank())
	assert.Greater(t, PriorityMedium.Rank(), PriorityLow.Rank())
	assert.Greater(t, PriorityLow.Rank(), Priority("").Rank())
}

func TestHasTag(t *testing.T) {
	task := Task{Tags: []string{"home", "bills"}}
	assert.True(t, task.HasTag("bills"))
	assert.False(t, task.HasTag("work"))
	assert.False(t, task.HasTag(""))
}

func TestMarkCompletedAndRevert(t *testing.T) {
	task := Task{Status: StatusPending}

	task.MarkCompleted(now)
	assert.Equal(t, StatusCompleted, task.Status)
	require.NotNil(t, task.CompletedAt)
	assert.Equal(t, now, *task.CompletedAt)

	// Completing again keeps the original instant.
	later := now.Add(time.Hour)
	task.MarkCompleted(later)
	assert.Equal(t, now, *task.CompletedAt)

	task.Revert(later)
	assert.Equal(t, StatusPending, task.Status)
	assert.Nil(t, task.CompletedAt)
	assert.Equal(t, later, task.UpdatedAt)
}

func TestIsOverdue(t *testing.T) {
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.True(t, (&Task{Status: StatusPending, WhenTime: &past}).IsOverdue(now))
	assert.False(t, (&Task{Status: StatusPending, WhenTime: &future}).IsOverdue(now))
	assert.False(t, (&Task{Status: StatusCompleted, WhenTime: &past}).IsOverdue(now))
	assert.False(t, (&Task{Status: StatusPending}).IsOverdue(now))
}

func TestCollectionFindGetRemove(t *testing.T) {
	c := Collection{Tasks: []Task{{ID: "a"}, {ID: "b"}, {ID: "c"}}}

	i, ok := c.Find("b")
	require.True(t, ok)
	assert.Equal(t, 1, i)

	got, ok := c.Get("c")
	require.True(t, ok)
	assert.Equal(t, "c", got.ID)

	assert.True(t, c.Remove("b"))
	assert.Len(t, c.Tasks, 2)
	assert.False(t, c.Remove("b"))

	_, ok = c.Find("nope")
	assert.False(t, ok)
}

func TestTaskJSONRoundTrip(t *testing.T) {
	when := now.Add(24 * time.Hour)
	rem := when.Add(-time.Hour)
	attempt := now.Add(-time.Minute)
	task := Task{
		ID:                    "1749560400000-abcd1234",
		Title:                 "pay rent",
		Description:           "transfer before noon",
		Tags:                  []string{"home", "bills"},
		Priority:              PriorityHigh,
		Assignee:              "me",
		Status:                StatusPending,
		Subtasks:              []Subtask{{Title: "check balance", Done: true}},
		WhenTime:              &when,
		ReminderTime:          &rem,
		CreatedAt:             now,
		UpdatedAt:             now,
		AutoLog:               true,
		ReminderFailCount:     2,
		LastReminderAttemptAt: &attempt,
	}

	b, err := json.Marshal(task)
	require.NoError(t, err)

	var back Task
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, task, back)
}

func TestTaskJSONOmitsEmptyBookkeeping(t *testing.T) {
	b, err := json.Marshal(Task{ID: "x", Title: "bare", Status: StatusPending, Priority: PriorityMedium})
	require.NoError(t, err)

	s := string(b)
	assert.NotContains(t, s, "reminderSent")
	assert.NotContains(t, s, "whenTimeReminderSent")
	assert.NotContains(t, s, "completedAt")
}
