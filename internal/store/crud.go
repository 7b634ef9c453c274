package store

import (
	"strings"
	"time"

	"taskden/internal/model"
	"taskden/internal/timeparse"
)

// Create persists a new task. ID, timestamps, and defaults are owned by
// the store; the default-reminder policy fills ReminderTime when the
// task has a deadline and the caller supplied no reminder.
func (s *Store) Create(t model.Task) (model.Task, error) {
	if strings.TrimSpace(t.Title) == "" {
		return model.Task{}, invalidf("title is required")
	}
	if t.Priority == "" {
		t.Priority = model.PriorityMedium
	}
	if !t.Priority.Valid() {
		return model.Task{}, invalidf("unknown priority %q", t.Priority)
	}

	now := s.clock.Now()
	t.ID = s.GenerateID()
	t.Status = model.StatusPending
	t.CreatedAt = now
	t.UpdatedAt = now
	t.CompletedAt = nil
	clearReminderState(&t)
	clearOverdueState(&t)

	if t.WhenTime != nil && t.ReminderTime == nil {
		t.ReminderTime = timeparse.DefaultReminder(*t.WhenTime, now, s.DefaultReminderOffset)
	}

	err := s.Transact(func(c *model.Collection) error {
		c.Tasks = append(c.Tasks, t)
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}
	return t, nil
}

func (s *Store) Get(id string) (model.Task, error) {
	if err := requireID(id); err != nil {
		return model.Task{}, err
	}
	c, err := s.Load()
	if err != nil {
		return model.Task{}, err
	}
	t, ok := c.Get(id)
	if !ok {
		return model.Task{}, ErrNotFound
	}
	return t, nil
}

// Patch is a partial update. nil pointer means "no change"; the Clear
// flags drop the corresponding instant.
type Patch struct {
	Title       *string
	Description *string
	Tags        *[]string
	Priority    *model.Priority
	Assignee    *string
	Status      *model.Status
	Reflection  *string
	AutoLog     *bool
	Subtasks    *[]model.Subtask

	WhenTime      *time.Time
	ClearWhen     bool
	ReminderTime  *time.Time
	ClearReminder bool

	// MarkReminderSent / MarkOverdueSent are scheduler-only bookkeeping
	// writes; user-facing callers leave them unset.
	MarkReminderSent bool
	ReminderFailed   bool
	MarkOverdueSent  bool
	OverdueFailed    bool
}

func clearReminderState(t *model.Task) {
	t.ReminderSent = false
	t.ReminderFailCount = 0
	t.LastReminderAttemptAt = nil
}

func clearOverdueState(t *model.Task) {
	t.WhenTimeReminderSent = false
	t.WhenTimeFailCount = 0
	t.LastWhenTimeAttemptAt = nil
}

func (s *Store) applyPatch(t *model.Task, p Patch, now time.Time) error {
	if p.Title != nil {
		if strings.TrimSpace(*p.Title) == "" {
			return invalidf("title cannot be empty")
		}
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Tags != nil {
		if *p.Tags == nil {
			t.Tags = nil
		} else {
			t.Tags = *p.Tags
		}
	}
	if p.Priority != nil {
		if !p.Priority.Valid() {
			return invalidf("unknown priority %q", *p.Priority)
		}
		t.Priority = *p.Priority
	}
	if p.Assignee != nil {
		t.Assignee = *p.Assignee
	}
	if p.Subtasks != nil {
		t.Subtasks = *p.Subtasks
	}
	if p.Reflection != nil {
		t.Reflection = *p.Reflection
	}
	if p.AutoLog != nil {
		t.AutoLog = *p.AutoLog
	}

	if p.ClearWhen {
		t.WhenTime = nil
		clearOverdueState(t)
	} else if p.WhenTime != nil {
		t.WhenTime = p.WhenTime
		clearOverdueState(t)
	}

	if p.ClearReminder {
		t.ReminderTime = nil
		clearReminderState(t)
	} else if p.ReminderTime != nil {
		// An edited reminder instant re-arms the one-shot explicitly.
		t.ReminderTime = p.ReminderTime
		clearReminderState(t)
	} else if p.WhenTime != nil && t.ReminderTime == nil {
		t.ReminderTime = timeparse.DefaultReminder(*p.WhenTime, now, s.DefaultReminderOffset)
		clearReminderState(t)
	}

	if p.Status != nil {
		if !p.Status.Valid() {
			return invalidf("unknown status %q", *p.Status)
		}
		switch *p.Status {
		case model.StatusCompleted:
			t.MarkCompleted(now)
		case model.StatusPending:
			t.Revert(now)
		}
	}

	if p.MarkReminderSent {
		t.ReminderSent = true
	}
	if p.ReminderFailed {
		t.ReminderFailCount++
		at := now
		t.LastReminderAttemptAt = &at
	}
	if p.MarkOverdueSent {
		t.WhenTimeReminderSent = true
	}
	if p.OverdueFailed {
		t.WhenTimeFailCount++
		at := now
		t.LastWhenTimeAttemptAt = &at
	}

	t.Touch(now)
	return nil
}

func (s *Store) Update(id string, p Patch) (model.Task, error) {
	if err := requireID(id); err != nil {
		return model.Task{}, err
	}
	var out model.Task
	err := s.Transact(func(c *model.Collection) error {
		i, ok := c.Find(id)
		if !ok {
			return ErrNotFound
		}
		t := c.Tasks[i]
		if err := s.applyPatch(&t, p, s.clock.Now()); err != nil {
			return err
		}
		c.Tasks[i] = t
		out = t
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}
	return out, nil
}

func (s *Store) Delete(id string) error {
	if err := requireID(id); err != nil {
		return err
	}
	return s.Transact(func(c *model.Collection) error {
		if !c.Remove(id) {
			return ErrNotFound
		}
		return nil
	})
}

// ItemResult carries one element's outcome in a batch operation. Batches
// never abort wholesale; each element succeeds or fails independently.
type ItemResult struct {
	ID   string      `json:"id,omitempty"`
	Task *model.Task `json:"task,omitempty"`
	Err  error       `json:"-"`
}

func (r ItemResult) OK() bool { return r.Err == nil }

// BatchCreate inserts each task independently under one transaction.
func (s *Store) BatchCreate(tasks []model.Task) ([]ItemResult, error) {
	results := make([]ItemResult, len(tasks))
	err := s.Transact(func(c *model.Collection) error {
		now := s.clock.Now()
		for i, t := range tasks {
			if strings.TrimSpace(t.Title) == "" {
				results[i] = ItemResult{Err: invalidf("title is required")}
				continue
			}
			if t.Priority == "" {
				t.Priority = model.PriorityMedium
			}
			if !t.Priority.Valid() {
				results[i] = ItemResult{Err: invalidf("unknown priority %q", t.Priority)}
				continue
			}
			t.ID = s.GenerateID()
			t.Status = model.StatusPending
			t.CreatedAt = now
			t.UpdatedAt = now
			t.CompletedAt = nil
			clearReminderState(&t)
			clearOverdueState(&t)
			if t.WhenTime != nil && t.ReminderTime == nil {
				t.ReminderTime = timeparse.DefaultReminder(*t.WhenTime, now, s.DefaultReminderOffset)
			}
			c.Tasks = append(c.Tasks, t)
			saved := t
			results[i] = ItemResult{ID: t.ID, Task: &saved}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

type BatchUpdateItem struct {
	ID    string
	Patch Patch
}

func (s *Store) BatchUpdate(items []BatchUpdateItem) ([]ItemResult, error) {
	results := make([]ItemResult, len(items))
	err := s.Transact(func(c *model.Collection) error {
		now := s.clock.Now()
		for idx, item := range items {
			results[idx].ID = item.ID
			if err := requireID(item.ID); err != nil {
				results[idx].Err = err
				continue
			}
			i, ok := c.Find(item.ID)
			if !ok {
				results[idx].Err = ErrNotFound
				continue
			}
			t := c.Tasks[i]
			if err := s.applyPatch(&t, item.Patch, now); err != nil {
				results[idx].Err = err
				continue
			}
			c.Tasks[i] = t
			saved := t
			results[idx].Task = &saved
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Store) BatchDelete(ids []string) ([]ItemResult, error) {
	results := make([]ItemResult, len(ids))
	err := s.Transact(func(c *model.Collection) error {
		for i, id := range ids {
			results[i].ID = id
			if err := requireID(id); err != nil {
				results[i].Err = err
				continue
			}
			if !c.Remove(id) {
				results[i].Err = ErrNotFound
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
