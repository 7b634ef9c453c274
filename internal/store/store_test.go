package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskden/internal/clock"
	"taskden/internal/model"
)

var testNow = time.Date(2025, 6, 10, 14, 0, 0, 0, time.Local)

func newStore(t *testing.T) (*Store, *clock.FakeClock) {
	t.Helper()
	fc := clock.NewFakeClock(testNow)
	s, err := New(t.TempDir(), Options{Clock: fc, DefaultReminderOffset: time.Hour})
	require.NoError(t, err)
	return s, fc
}

func ptr[T any](v T) *T { return &v }

func TestCreate_Defaults(t *testing.T) {
	s, _ := newStore(t)

	created, err := s.Create(model.Task{Title: "pay rent"})
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, model.StatusPending, created.Status)
	assert.Equal(t, model.PriorityMedium, created.Priority)
	assert.Equal(t, testNow, created.CreatedAt)
	assert.Nil(t, created.ReminderTime)
}

func TestCreate_RequiresTitle(t *testing.T) {
	s, _ := newStore(t)

	_, err := s.Create(model.Task{})
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestCreate_DefaultReminderPolicy(t *testing.T) {
	s, _ := newStore(t)

	when := testNow.Add(24 * time.Hour)
	created, err := s.Create(model.Task{Title: "x", WhenTime: &when})
	require.NoError(t, err)
	require.NotNil(t, created.ReminderTime)
	assert.Equal(t, when.Add(-time.Hour), *created.ReminderTime)
}

func TestCreate_DefaultReminderInPast_NotSet(t *testing.T) {
	s, _ := newStore(t)

	when := testNow.Add(30 * time.Minute)
	created, err := s.Create(model.Task{Title: "x", WhenTime: &when})
	require.NoError(t, err)
	assert.Nil(t, created.ReminderTime, "reminder in the past must be silently skipped")
}

func TestCreate_ExplicitReminderWins(t *testing.T) {
	s, _ := newStore(t)

	when := testNow.Add(24 * time.Hour)
	rem := when.Add(-15 * time.Minute)
	created, err := s.Create(model.Task{Title: "x", WhenTime: &when, ReminderTime: &rem})
	require.NoError(t, err)
	require.NotNil(t, created.ReminderTime)
	assert.Equal(t, rem, *created.ReminderTime)
}

func TestGenerateID_Unique(t *testing.T) {
	s, _ := newStore(t)

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := s.GenerateID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestRoundTrip(t *testing.T) {
	s, _ := newStore(t)

	when := testNow.Add(48 * time.Hour)
	_, err := s.Create(model.Task{
		Title:       "full",
		Description: "all fields",
		Tags:        []string{"home", "bills"},
		Priority:    model.PriorityHigh,
		Assignee:    "me",
		WhenTime:    &when,
		AutoLog:     true,
		Subtasks:    []model.Subtask{{Title: "a", Done: true}, {Title: "b"}},
	})
	require.NoError(t, err)

	before, err := s.Load()
	require.NoError(t, err)

	// Reload through the serialized document.
	after, err := s.Load()
	require.NoError(t, err)

	wantJSON, err := json.Marshal(before)
	require.NoError(t, err)
	gotJSON, err := json.Marshal(after)
	require.NoError(t, err)
	assert.JSONEq(t, string(wantJSON), string(gotJSON))
	require.Len(t, after.Tasks, 1)
	assert.Equal(t, before.Tasks[0].Tags, after.Tasks[0].Tags)
	assert.Equal(t, before.Tasks[0].Subtasks, after.Tasks[0].Subtasks)
}

func TestGet_NotFound(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Get("nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestUpdate_StatusTransitions(t *testing.T) {
	s, fc := newStore(t)

	created, err := s.Create(model.Task{Title: "x"})
	require.NoError(t, err)

	fc.Advance(time.Minute)
	done, err := s.Update(created.ID, Patch{Status: ptr(model.StatusCompleted), Reflection: ptr("went fine")})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, fc.Now(), *done.CompletedAt)
	assert.Equal(t, "went fine", done.Reflection)

	back, err := s.Update(created.ID, Patch{Status: ptr(model.StatusPending)})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, back.Status)
	assert.Nil(t, back.CompletedAt)
}

func TestUpdate_ReminderEditRearms(t *testing.T) {
	s, _ := newStore(t)

	when := testNow.Add(24 * time.Hour)
	created, err := s.Create(model.Task{Title: "x", WhenTime: &when})
	require.NoError(t, err)

	// Simulate the scheduler having sent the reminder.
	sent, err := s.Update(created.ID, Patch{MarkReminderSent: true})
	require.NoError(t, err)
	assert.True(t, sent.ReminderSent)

	newRem := when.Add(-2 * time.Hour)
	rearmed, err := s.Update(created.ID, Patch{ReminderTime: &newRem})
	require.NoError(t, err)
	assert.False(t, rearmed.ReminderSent, "editing the reminder re-arms the one-shot")
	assert.Equal(t, 0, rearmed.ReminderFailCount)
}

func TestUpdate_ClearWhenResetsOverdueState(t *testing.T) {
	s, _ := newStore(t)

	when := testNow.Add(-time.Hour)
	created, err := s.Create(model.Task{Title: "x", WhenTime: &when})
	require.NoError(t, err)

	_, err = s.Update(created.ID, Patch{MarkOverdueSent: true})
	require.NoError(t, err)

	cleared, err := s.Update(created.ID, Patch{ClearWhen: true})
	require.NoError(t, err)
	assert.Nil(t, cleared.WhenTime)
	assert.False(t, cleared.WhenTimeReminderSent)
}

func TestUpdate_NotFound(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.Update("nope", Patch{Title: ptr("y")})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDelete(t *testing.T) {
	s, _ := newStore(t)

	created, err := s.Create(model.Task{Title: "x"})
	require.NoError(t, err)
	require.NoError(t, s.Delete(created.ID))

	_, err = s.Get(created.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(s.Delete(created.ID), ErrNotFound))
}

func TestBatchCreate_PartialFailure(t *testing.T) {
	s, _ := newStore(t)

	results, err := s.BatchCreate([]model.Task{
		{Title: "ok one"},
		{},
		{Title: "ok two"},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].OK())
	assert.False(t, results[1].OK())
	assert.True(t, errors.Is(results[1].Err, ErrInvalidInput))
	assert.True(t, results[2].OK())

	c, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, c.Tasks, 2)
}

func TestBatchUpdate_PartialFailure(t *testing.T) {
	s, _ := newStore(t)

	created, err := s.Create(model.Task{Title: "x"})
	require.NoError(t, err)

	results, err := s.BatchUpdate([]BatchUpdateItem{
		{ID: created.ID, Patch: Patch{Title: ptr("renamed")}},
		{ID: "ghost", Patch: Patch{Title: ptr("y")}},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].OK())
	assert.Equal(t, "renamed", results[0].Task.Title)
	assert.True(t, errors.Is(results[1].Err, ErrNotFound))
}

func TestBatchDelete_PartialFailure(t *testing.T) {
	s, _ := newStore(t)

	created, err := s.Create(model.Task{Title: "x"})
	require.NoError(t, err)

	results, err := s.BatchDelete([]string{created.ID, "ghost"})
	require.NoError(t, err)
	assert.True(t, results[0].OK())
	assert.True(t, errors.Is(results[1].Err, ErrNotFound))
}

// N concurrent transactions each appending one task must produce
// exactly N tasks: no lost updates.
func TestTransact_NoLostUpdates(t *testing.T) {
	dir := t.TempDir()

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			// A store per goroutine simulates independent processes
			// sharing one file.
			s, err := New(dir, Options{LockTimeout: 10 * time.Second})
			if err != nil {
				t.Error(err)
				return
			}
			err = s.Transact(func(c *model.Collection) error {
				c.Tasks = append(c.Tasks, model.Task{
					ID:    s.GenerateID(),
					Title: "concurrent",
				})
				_ = i
				return nil
			})
			if err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	s, err := New(dir, Options{})
	require.NoError(t, err)
	c, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, c.Tasks, n)
}

func TestArchiveCompleted(t *testing.T) {
	s, fc := newStore(t)

	old, err := s.Create(model.Task{Title: "old chore"})
	require.NoError(t, err)
	fresh, err := s.Create(model.Task{Title: "fresh chore"})
	require.NoError(t, err)
	pending, err := s.Create(model.Task{Title: "still open"})
	require.NoError(t, err)

	_, err = s.Update(old.ID, Patch{Status: ptr(model.StatusCompleted)})
	require.NoError(t, err)

	fc.Advance(40 * 24 * time.Hour)
	_, err = s.Update(fresh.ID, Patch{Status: ptr(model.StatusCompleted)})
	require.NoError(t, err)

	moved, err := s.ArchiveCompleted(30 * 24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	live, err := s.Load()
	require.NoError(t, err)
	require.Len(t, live.Tasks, 2)
	_, stillThere := live.Get(pending.ID)
	assert.True(t, stillThere)

	arch, err := s.Archive()
	require.NoError(t, err)
	require.Len(t, arch.Tasks, 1)
	assert.Equal(t, old.ID, arch.Tasks[0].ID)

	// Archive file really exists on disk.
	_, err = os.Stat(filepath.Join(s.dataDir, archiveFile))
	assert.NoError(t, err)
}

func TestList_FiltersAndSorts(t *testing.T) {
	s, _ := newStore(t)

	today := testNow.Add(2 * time.Hour)
	nextWeekish := testNow.Add(5 * 24 * time.Hour)
	past := testNow.Add(-2 * time.Hour)

	_, err := s.Create(model.Task{Title: "due today", WhenTime: &today, Priority: model.PriorityLow, Tags: []string{"home"}})
	require.NoError(t, err)
	_, err = s.Create(model.Task{Title: "due this week", WhenTime: &nextWeekish, Priority: model.PriorityHigh})
	require.NoError(t, err)
	overdueTask, err := s.Create(model.Task{Title: "late", WhenTime: &past})
	require.NoError(t, err)
	_, err = s.Create(model.Task{Title: "dateless"})
	require.NoError(t, err)

	done, err := s.Create(model.Task{Title: "finished"})
	require.NoError(t, err)
	_, err = s.Update(done.ID, Patch{Status: ptr(model.StatusCompleted)})
	require.NoError(t, err)

	pending, err := s.List(Filter{Status: "pending"})
	require.NoError(t, err)
	assert.Len(t, pending, 4)

	highs, err := s.List(Filter{Priority: "high"})
	require.NoError(t, err)
	require.Len(t, highs, 1)
	assert.Equal(t, "due this week", highs[0].Title)

	tagged, err := s.List(Filter{Tag: "home"})
	require.NoError(t, err)
	require.Len(t, tagged, 1)

	overdue, err := s.List(Filter{Bucket: "overdue"})
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, overdueTask.ID, overdue[0].ID)

	todayBucket, err := s.List(Filter{Bucket: "today", Status: "pending"})
	require.NoError(t, err)
	require.Len(t, todayBucket, 2, "due-today and late are both today")

	// Default sort: whenTime ascending, dateless last.
	all, err := s.List(Filter{Status: "pending"})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "late", all[0].Title)
	assert.Equal(t, "due today", all[1].Title)
	assert.Equal(t, "due this week", all[2].Title)
	assert.Equal(t, "dateless", all[3].Title)

	byPriority, err := s.List(Filter{Status: "pending", SortBy: "priority"})
	require.NoError(t, err)
	assert.Equal(t, "due this week", byPriority[0].Title)
}
