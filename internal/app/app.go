// Package app wires the configured store, schedule book, notifier, and
// diary worker for the CLI and daemon entrypoints.
package app

import (
	"path/filepath"

	"github.com/charmbracelet/log"

	"taskden/internal/clock"
	"taskden/internal/command"
	"taskden/internal/config"
	"taskden/internal/notify"
	"taskden/internal/schedule"
	"taskden/internal/store"
)

type App struct {
	Config   *config.Config
	Store    *store.Store
	Schedule *schedule.Book
	Notifier notify.Notifier
	Diary    *notify.DiaryWorker
	Handler  *command.Handler
	Logger   *log.Logger
	Clock    clock.Clock
}

func New(cfg *config.Config, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = log.Default()
	}
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	cl := clock.RealClock{}
	st, err := store.New(cfg.DataDir, store.Options{
		Clock:                 cl,
		DefaultReminderOffset: cfg.DefaultReminderOffset(),
		LockTimeout:           cfg.LockTimeout(),
	})
	if err != nil {
		return nil, err
	}
	book, err := schedule.NewBook(cfg.ScheduleDir)
	if err != nil {
		return nil, err
	}

	var notifier notify.Notifier
	if cfg.NotifyURL != "" {
		notifier = notify.NewHTTPNotifier(cfg.NotifyURL)
	} else {
		notifier = &notify.LogNotifier{Logger: logger}
	}

	diary := notify.NewDiaryWorker(&notify.FileDiarySink{Path: cfg.DiaryPath}, logger)

	a := &App{
		Config:   cfg,
		Store:    st,
		Schedule: book,
		Notifier: notifier,
		Diary:    diary,
		Logger:   logger,
		Clock:    cl,
	}
	a.Handler = &command.Handler{
		Store:    st,
		Schedule: book,
		Notifier: notifier,
		Diary:    diary,
		Logger:   logger,
		Clock:    cl,
	}
	return a, nil
}

// DaemonStatePath is where the scheduler persists its daily-summary
// latch.
func (a *App) DaemonStatePath() string {
	return filepath.Join(a.Config.DataDir, "daemon.json")
}

// Close flushes the diary worker and drops any held locks.
func (a *App) Close() {
	a.Diary.Close()
	a.Store.Locks().ReleaseAll()
}
