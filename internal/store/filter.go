package store

import (
	"sort"
	"strings"
	"time"

	"taskden/internal/model"
)

// Filter narrows List results. All set fields compose with AND.
type Filter struct {
	// Status: "" | "all" | "pending" | "completed"
	Status string

	// Priority: "" | "high" | "medium" | "low"
	Priority string

	// Tag keeps tasks carrying the exact tag.
	Tag string

	// Bucket: "" | "today" | "week" | "month" | "overdue"
	Bucket string

	// SortBy: "" | "when" (default) | "priority" | "created"
	SortBy string
}

func (s *Store) List(f Filter) ([]model.Task, error) {
	c, err := s.Load()
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

	status := strings.ToLower(strings.TrimSpace(f.Status))
	priority := strings.ToLower(strings.TrimSpace(f.Priority))
	bucket := strings.ToLower(strings.TrimSpace(f.Bucket))

	out := make([]model.Task, 0, len(c.Tasks))
	for _, t := range c.Tasks {
		switch status {
		case "", "all":
		default:
			if string(t.Status) != status {
				continue
			}
		}
		if priority != "" && string(t.Priority) != priority {
			continue
		}
		if f.Tag != "" && !t.HasTag(f.Tag) {
			continue
		}
		if bucket != "" && !inBucket(t, bucket, now) {
			continue
		}
		out = append(out, t)
	}

	sortTasks(out, f.SortBy)
	return out, nil
}

func inBucket(t model.Task, bucket string, now time.Time) bool {
	switch bucket {
	case "overdue":
		return t.IsOverdue(now)
	case "today":
		return t.WhenTime != nil && sameDay(*t.WhenTime, now)
	case "week":
		if t.WhenTime == nil {
			return false
		}
		start := startOfDay(now)
		return !t.WhenTime.Before(start) && t.WhenTime.Before(start.AddDate(0, 0, 7))
	case "month":
		return t.WhenTime != nil &&
			t.WhenTime.Year() == now.Year() && t.WhenTime.Month() == now.Month()
	default:
		return true
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func sortTasks(tasks []model.Task, key string) {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "priority":
		sort.SliceStable(tasks, func(i, j int) bool {
			return tasks[i].Priority.Rank() > tasks[j].Priority.Rank()
		})
	case "created":
		sort.SliceStable(tasks, func(i, j int) bool {
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		})
	default:
		// whenTime ascending, tasks without a deadline last.
		sort.SliceStable(tasks, func(i, j int) bool {
			wi, wj := tasks[i].WhenTime, tasks[j].WhenTime
			switch {
			case wi == nil && wj == nil:
				return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
			case wi == nil:
				return false
			case wj == nil:
				return true
			default:
				return wi.Before(*wj)
			}
		})
	}
}
