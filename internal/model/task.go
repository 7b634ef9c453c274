package model

import (
	"slices"
	"strings"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusCompleted
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// Rank orders priorities for sorting: high > medium > low > unset.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

type Subtask struct {
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

// Task is the persisted unit of work. The reminder/overdue bookkeeping
// fields are owned by the scheduler and never set directly by callers.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Priority    Priority  `json:"priority"`
	Assignee    string    `json:"assignee,omitempty"`
	Status      Status    `json:"status"`
	Subtasks    []Subtask `json:"subtasks,omitempty"`

	WhenTime     *time.Time `json:"whenTime,omitempty"`
	ReminderTime *time.Time `json:"reminderTime,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	Reflection string `json:"reflection,omitempty"`
	AutoLog    bool   `json:"autoLog,omitempty"`

	ReminderSent          bool       `json:"reminderSent,omitempty"`
	ReminderFailCount     int        `json:"reminderFailCount,omitempty"`
	LastReminderAttemptAt *time.Time `json:"lastReminderAttemptAt,omitempty"`

	WhenTimeReminderSent  bool       `json:"whenTimeReminderSent,omitempty"`
	WhenTimeFailCount     int        `json:"whenTimeReminderFailCount,omitempty"`
	LastWhenTimeAttemptAt *time.Time `json:"lastWhenTimeReminderAttemptAt,omitempty"`
}

func (t *Task) IsPending() bool { return t.Status == StatusPending }

func (t *Task) HasTag(tag string) bool {
	tag = strings.TrimSpace(tag)
	return tag != "" && slices.Contains(t.Tags, tag)
}

func (t *Task) Touch(now time.Time) {
	t.UpdatedAt = now
}

// MarkCompleted transitions pending -> completed and stamps the instant.
func (t *Task) MarkCompleted(now time.Time) {
	if t.Status == StatusCompleted {
		return
	}
	t.Status = StatusCompleted
	t.CompletedAt = &now
	t.Touch(now)
}

// Revert transitions completed -> pending and clears the completion instant.
func (t *Task) Revert(now time.Time) {
	if t.Status == StatusPending {
		return
	}
	t.Status = StatusPending
	t.CompletedAt = nil
	t.Touch(now)
}

// IsOverdue reports whether a pending task's deadline has passed.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.IsPending() && t.WhenTime != nil && t.WhenTime.Before(now)
}

// Collection is the persisted store document: an ordered sequence of tasks.
// The archive document shares the same shape.
type Collection struct {
	Tasks []Task `json:"tasks"`
}

func (c *Collection) Find(id string) (int, bool) {
	for i := range c.Tasks {
		if c.Tasks[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

func (c *Collection) Get(id string) (Task, bool) {
	if i, ok := c.Find(id); ok {
		return c.Tasks[i], true
	}
	return Task{}, false
}

func (c *Collection) Remove(id string) bool {
	i, ok := c.Find(id)
	if !ok {
		return false
	}
	c.Tasks = slices.Delete(c.Tasks, i, i+1)
	return true
}
