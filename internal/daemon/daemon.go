// Package daemon runs the polling scheduler: every tick it fires due
// reminders, flags overdue tasks, sends the daily digest, and archives
// stale completed tasks. Tick failures are logged and retried on the
// next poll, never fatal.
package daemon

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"taskden/internal/clock"
	"taskden/internal/model"
	"taskden/internal/notify"
	"taskden/internal/remind"
	"taskden/internal/store"
)

type Options struct {
	Clock        clock.Clock
	Tick         time.Duration
	SummaryHour  int
	ArchiveAfter time.Duration
	RetryBackoff time.Duration

	// StatePath persists the daily-summary latch so a restart on the
	// summary day neither re-fires nor skips the digest.
	StatePath string
}

type Scheduler struct {
	store    *store.Store
	notifier notify.Notifier
	logger   *log.Logger
	clock    clock.Clock

	tick         time.Duration
	summaryHour  int
	archiveAfter time.Duration
	retryBackoff time.Duration
	statePath    string
}

type daemonState struct {
	LastSummaryDate string `json:"lastSummaryDate"`
}

func New(st *store.Store, notifier notify.Notifier, logger *log.Logger, opts Options) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Tick <= 0 {
		opts.Tick = 60 * time.Second
	}
	if opts.SummaryHour <= 0 {
		opts.SummaryHour = 8
	}
	if opts.ArchiveAfter <= 0 {
		opts.ArchiveAfter = 30 * 24 * time.Hour
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 5 * time.Minute
	}
	return &Scheduler{
		store:        st,
		notifier:     notifier,
		logger:       logger,
		clock:        opts.Clock,
		tick:         opts.Tick,
		summaryHour:  opts.SummaryHour,
		archiveAfter: opts.ArchiveAfter,
		retryBackoff: opts.RetryBackoff,
		statePath:    opts.StatePath,
	}
}

// Run polls until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started", "tick", s.tick.String(), "summaryHour", s.summaryHour)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one poll cycle.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.clock.Now()
	s.scanReminders(ctx, now)
	s.scanOverdue(ctx, now)
	s.dailySummary(ctx, now)
	s.archive(now)
}

func (s *Scheduler) retryEligible(failCount int, lastAttempt *time.Time, now time.Time) bool {
	if failCount == 0 || lastAttempt == nil {
		return true
	}
	return !lastAttempt.Add(s.retryBackoff).After(now)
}

func (s *Scheduler) scanReminders(ctx context.Context, now time.Time) {
	c, err := s.store.Load()
	if err != nil {
		s.logger.Warn("reminder scan: load failed", "error", err)
		return
	}
	for _, t := range c.Tasks {
		if !t.IsPending() || t.ReminderSent || t.ReminderTime == nil {
			continue
		}
		if t.ReminderTime.After(now) {
			continue
		}
		if !s.retryEligible(t.ReminderFailCount, t.LastReminderAttemptAt, now) {
			continue
		}
		s.attempt(ctx, t, remind.KindNormal, now)
	}
}

func (s *Scheduler) scanOverdue(ctx context.Context, now time.Time) {
	c, err := s.store.Load()
	if err != nil {
		s.logger.Warn("overdue scan: load failed", "error", err)
		return
	}
	for _, t := range c.Tasks {
		if !t.IsPending() || t.WhenTimeReminderSent || t.WhenTime == nil {
			continue
		}
		if t.WhenTime.After(now) {
			continue
		}
		if !s.retryEligible(t.WhenTimeFailCount, t.LastWhenTimeAttemptAt, now) {
			continue
		}
		s.attempt(ctx, t, remind.KindOverdue, now)
	}
}

// attempt delivers one notification and latches the outcome onto the
// task. The notify call happens outside the store lock.
func (s *Scheduler) attempt(ctx context.Context, t model.Task, kind remind.Kind, now time.Time) {
	payload := remind.Build(t, kind, now)
	sendErr := s.notifier.Notify(ctx, payload)

	var p store.Patch
	switch kind {
	case remind.KindOverdue:
		if sendErr == nil {
			p.MarkOverdueSent = true
		} else {
			p.OverdueFailed = true
		}
	default:
		if sendErr == nil {
			p.MarkReminderSent = true
		} else {
			p.ReminderFailed = true
		}
	}

	if _, err := s.store.Update(t.ID, p); err != nil {
		s.logger.Warn("notification bookkeeping failed", "taskId", t.ID, "kind", kind, "error", err)
		return
	}
	if sendErr != nil {
		s.logger.Warn("notification failed, will retry", "taskId", t.ID, "kind", kind, "error", sendErr)
		return
	}
	s.logger.Info("notification sent", "taskId", t.ID, "kind", kind, "title", t.Title)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func (s *Scheduler) dailySummary(ctx context.Context, now time.Time) {
	if now.Hour() < s.summaryHour {
		return
	}
	today := now.Format("2006-01-02")
	st := s.loadState()
	if st.LastSummaryDate == today {
		return
	}

	c, err := s.store.Load()
	if err != nil {
		s.logger.Warn("daily summary: load failed", "error", err)
		return
	}

	var dueToday, overdue, dateless []model.Task
	dayStart := startOfDay(now)
	for _, t := range c.Tasks {
		if !t.IsPending() {
			continue
		}
		switch {
		case t.WhenTime == nil:
			dateless = append(dateless, t)
		case t.WhenTime.Before(dayStart):
			overdue = append(overdue, t)
		case t.WhenTime.Before(dayStart.AddDate(0, 0, 1)):
			dueToday = append(dueToday, t)
		}
	}

	payload := remind.BuildSummary(dueToday, overdue, dateless, now)
	if err := s.notifier.Notify(ctx, payload); err != nil {
		s.logger.Warn("daily summary failed, will retry", "error", err)
		return
	}

	st.LastSummaryDate = today
	if err := s.saveState(st); err != nil {
		s.logger.Warn("daily summary latch not persisted", "error", err)
	}
	s.logger.Info("daily summary sent", "dueToday", len(dueToday), "overdue", len(overdue), "dateless", len(dateless))
}

func (s *Scheduler) archive(now time.Time) {
	moved, err := s.store.ArchiveCompleted(s.archiveAfter)
	if err != nil {
		s.logger.Warn("archival sweep failed", "error", err)
		return
	}
	if moved > 0 {
		s.logger.Info("archived completed tasks", "count", moved)
	}
}

func (s *Scheduler) loadState() daemonState {
	var st daemonState
	if s.statePath == "" {
		return st
	}
	b, err := os.ReadFile(s.statePath)
	if err != nil {
		return st
	}
	_ = json.Unmarshal(b, &st)
	return st
}

func (s *Scheduler) saveState(st daemonState) error {
	if s.statePath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.statePath), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.statePath, b, 0o644)
}
