// Package command maps inbound operations onto the task store. Each
// operation takes a typed, validated request and returns a structured
// result; validation failures surface before any mutation.
package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"taskden/internal/clock"
	"taskden/internal/model"
	"taskden/internal/notify"
	"taskden/internal/remind"
	"taskden/internal/schedule"
	"taskden/internal/store"
	"taskden/internal/timeparse"
)

type Handler struct {
	Store    *store.Store
	Schedule *schedule.Book
	Notifier notify.Notifier
	Diary    *notify.DiaryWorker
	Logger   *log.Logger
	Clock    clock.Clock
}

func (h *Handler) now() time.Time {
	if h.Clock != nil {
		return h.Clock.Now()
	}
	return h.Store.Now()
}

func (h *Handler) logger() *log.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return log.Default()
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", store.ErrInvalidInput, fmt.Sprintf(format, args...))
}

// parseWhen resolves a natural-language expression to an instant.
func parseWhen(expr string, ref time.Time) (*time.Time, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	t, ok := timeparse.Parse(expr, ref)
	if !ok {
		return nil, invalidf("cannot understand time expression %q", expr)
	}
	return &t, nil
}

type CreateRequest struct {
	Title       string
	Description string
	Tags        []string
	Priority    string
	Assignee    string
	Subtasks    []model.Subtask

	// When is a natural-language deadline expression ("tomorrow 3pm").
	When string
	// Remind is an offset phrase relative to When ("30 minutes before").
	Remind string
	// ReminderAt pins the reminder to an explicit expression instead.
	ReminderAt string

	AutoLog bool
}

func (r CreateRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return invalidf("title is required")
	}
	if r.Priority != "" && !model.Priority(r.Priority).Valid() {
		return invalidf("unknown priority %q", r.Priority)
	}
	return nil
}

// buildTask converts a create request into an unsaved task, resolving
// time expressions against now.
func (h *Handler) buildTask(r CreateRequest, now time.Time) (model.Task, error) {
	if err := r.Validate(); err != nil {
		return model.Task{}, err
	}
	when, err := parseWhen(r.When, now)
	if err != nil {
		return model.Task{}, err
	}

	var reminder *time.Time
	switch {
	case strings.TrimSpace(r.ReminderAt) != "":
		reminder, err = parseWhen(r.ReminderAt, now)
		if err != nil {
			return model.Task{}, err
		}
	case strings.TrimSpace(r.Remind) != "":
		reminder = timeparse.ReminderTime(when, r.Remind)
	}

	if reminder != nil && when != nil && reminder.After(*when) {
		// Accepted, but almost always a mistake worth a trace.
		h.logger().Warn("reminder is after the deadline", "title", r.Title)
	}

	return model.Task{
		Title:        r.Title,
		Description:  r.Description,
		Tags:         r.Tags,
		Priority:     model.Priority(r.Priority),
		Assignee:     r.Assignee,
		Subtasks:     r.Subtasks,
		WhenTime:     when,
		ReminderTime: reminder,
		AutoLog:      r.AutoLog,
	}, nil
}

// syncSchedule keeps the task's one-shot schedule entry in step with
// its reminder state.
func (h *Handler) syncSchedule(t model.Task) {
	if h.Schedule == nil {
		return
	}
	var err error
	if t.IsPending() && !t.ReminderSent && t.ReminderTime != nil {
		err = h.Schedule.Write(t.ID, *t.ReminderTime)
	} else {
		err = h.Schedule.Remove(t.ID)
	}
	if err != nil {
		h.logger().Warn("schedule entry not synced", "taskId", t.ID, "error", err)
	}
}

func (h *Handler) Create(r CreateRequest) (model.Task, error) {
	t, err := h.buildTask(r, h.now())
	if err != nil {
		return model.Task{}, err
	}
	created, err := h.Store.Create(t)
	if err != nil {
		return model.Task{}, err
	}
	h.syncSchedule(created)
	return created, nil
}

type UpdateRequest struct {
	ID string

	Title       *string
	Description *string
	Tags        *[]string
	Priority    *string
	Assignee    *string
	Status      *string
	Reflection  *string
	AutoLog     *bool
	Subtasks    *[]model.Subtask

	// When: natural-language expression; empty string clears the
	// deadline. Same contract for ReminderAt. Remind recomputes the
	// reminder as an offset from the (possibly new) deadline.
	When       *string
	Remind     *string
	ReminderAt *string
}

func (r UpdateRequest) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return invalidf("task id is required")
	}
	if r.Priority != nil && !model.Priority(*r.Priority).Valid() {
		return invalidf("unknown priority %q", *r.Priority)
	}
	if r.Status != nil && !model.Status(*r.Status).Valid() {
		return invalidf("unknown status %q", *r.Status)
	}
	return nil
}

// buildPatch turns an update request into a store patch. existing is
// consulted for offset-based reminder recomputation.
func (h *Handler) buildPatch(r UpdateRequest, existing model.Task, now time.Time) (store.Patch, error) {
	if err := r.Validate(); err != nil {
		return store.Patch{}, err
	}

	p := store.Patch{
		Title:       r.Title,
		Description: r.Description,
		Tags:        r.Tags,
		Assignee:    r.Assignee,
		Reflection:  r.Reflection,
		AutoLog:     r.AutoLog,
		Subtasks:    r.Subtasks,
	}
	if r.Priority != nil {
		pr := model.Priority(*r.Priority)
		p.Priority = &pr
	}
	if r.Status != nil {
		st := model.Status(*r.Status)
		p.Status = &st
	}

	when := existing.WhenTime
	if r.When != nil {
		if strings.TrimSpace(*r.When) == "" {
			p.ClearWhen = true
			when = nil
		} else {
			w, err := parseWhen(*r.When, now)
			if err != nil {
				return store.Patch{}, err
			}
			p.WhenTime = w
			when = w
		}
	}

	switch {
	case r.ReminderAt != nil:
		if strings.TrimSpace(*r.ReminderAt) == "" {
			p.ClearReminder = true
		} else {
			rem, err := parseWhen(*r.ReminderAt, now)
			if err != nil {
				return store.Patch{}, err
			}
			p.ReminderTime = rem
		}
	case r.Remind != nil:
		rem := timeparse.ReminderTime(when, *r.Remind)
		if rem == nil {
			return store.Patch{}, invalidf("reminder offset needs a deadline")
		}
		p.ReminderTime = rem
	}

	if p.ReminderTime != nil && when != nil && p.ReminderTime.After(*when) {
		h.logger().Warn("reminder is after the deadline", "taskId", r.ID)
	}
	return p, nil
}

func (h *Handler) Update(r UpdateRequest) (model.Task, error) {
	if err := r.Validate(); err != nil {
		return model.Task{}, err
	}
	existing, err := h.Store.Get(r.ID)
	if err != nil {
		return model.Task{}, err
	}
	p, err := h.buildPatch(r, existing, h.now())
	if err != nil {
		return model.Task{}, err
	}
	updated, err := h.Store.Update(r.ID, p)
	if err != nil {
		return model.Task{}, err
	}
	h.syncSchedule(updated)
	h.maybeDiary(existing, updated)
	return updated, nil
}

// maybeDiary forwards a completion event to the diary worker when the
// task just completed with autoLog set. Fire-and-forget.
func (h *Handler) maybeDiary(before, after model.Task) {
	if h.Diary == nil || !after.AutoLog {
		return
	}
	if before.Status == model.StatusCompleted || after.Status != model.StatusCompleted {
		return
	}
	completedAt := h.now()
	if after.CompletedAt != nil {
		completedAt = *after.CompletedAt
	}
	h.Diary.Enqueue(notify.DiaryEntry{
		TaskID:      after.ID,
		Title:       after.Title,
		Reflection:  after.Reflection,
		CompletedAt: completedAt,
	})
}

func (h *Handler) Delete(id string) error {
	if err := h.Store.Delete(id); err != nil {
		return err
	}
	if h.Schedule != nil {
		if err := h.Schedule.Remove(id); err != nil {
			h.logger().Warn("schedule entry not removed", "taskId", id, "error", err)
		}
	}
	return nil
}

// Detail is the GetTaskDetail payload: the task plus computed display
// fields.
type Detail struct {
	Task     model.Task `json:"task"`
	Progress float64    `json:"progress"`
	TimeLeft string     `json:"timeLeft,omitempty"`
}

func (h *Handler) GetTaskDetail(id string) (Detail, error) {
	t, err := h.Store.Get(id)
	if err != nil {
		return Detail{}, err
	}
	now := h.now()
	d := Detail{Task: t, Progress: remind.Progress(t, now)}
	if t.WhenTime != nil {
		d.TimeLeft = timeparse.Until(now, *t.WhenTime)
	}
	return d, nil
}

func (h *Handler) ListTasks(f store.Filter) ([]model.Task, error) {
	return h.Store.List(f)
}

// DailyTasks buckets pending work the same way the daily summary does.
type DailyTasks struct {
	DueToday []model.Task `json:"dueToday"`
	Overdue  []model.Task `json:"overdue"`
	Dateless []model.Task `json:"dateless"`
}

func (h *Handler) GetDailyTasks() (DailyTasks, error) {
	c, err := h.Store.Load()
	if err != nil {
		return DailyTasks{}, err
	}
	now := h.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var out DailyTasks
	for _, t := range c.Tasks {
		if !t.IsPending() {
			continue
		}
		switch {
		case t.WhenTime == nil:
			out.Dateless = append(out.Dateless, t)
		case t.WhenTime.Before(dayStart):
			out.Overdue = append(out.Overdue, t)
		case t.WhenTime.Before(dayStart.AddDate(0, 0, 1)):
			out.DueToday = append(out.DueToday, t)
		}
	}
	return out, nil
}

// FireResult reports a one-shot reminder firing. Delivery failure is
// not a hard error: it is latched into the retry bookkeeping.
type FireResult struct {
	Sent           bool   `json:"sent"`
	AlreadyHandled bool   `json:"alreadyHandled"`
	Message        string `json:"message"`
}

// FireReminder delivers the reminder for one task, at most once.
func (h *Handler) FireReminder(ctx context.Context, id string) (FireResult, error) {
	t, err := h.Store.Get(id)
	if err != nil {
		return FireResult{}, err
	}
	if !t.IsPending() || t.ReminderSent {
		return FireResult{AlreadyHandled: true, Message: "already handled"}, nil
	}

	now := h.now()
	payload := remind.Build(t, remind.KindNormal, now)

	notifier := h.Notifier
	if notifier == nil {
		notifier = &notify.LogNotifier{Logger: h.logger()}
	}
	if sendErr := notifier.Notify(ctx, payload); sendErr != nil {
		if _, err := h.Store.Update(id, store.Patch{ReminderFailed: true}); err != nil {
			return FireResult{}, err
		}
		h.logger().Warn("reminder delivery failed", "taskId", id, "error", sendErr)
		return FireResult{Message: "delivery failed, will retry"}, nil
	}

	if _, err := h.Store.Update(id, store.Patch{MarkReminderSent: true}); err != nil {
		return FireResult{}, err
	}
	if h.Schedule != nil {
		_ = h.Schedule.Remove(id)
	}
	return FireResult{Sent: true, Message: "reminder sent"}, nil
}

// ErrorMessage flattens an operation error to the single-line form the
// command surface returns.
func ErrorMessage(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "task not found"
	case errors.Is(err, store.ErrInvalidInput):
		return err.Error()
	default:
		return err.Error()
	}
}
