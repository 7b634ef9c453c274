// Package store persists the task collection as a single JSON document
// and serializes every read-modify-write behind a cross-process file
// lock.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskden/internal/clock"
	"taskden/internal/filelock"
	"taskden/internal/model"
)

var (
	ErrNotFound     = errors.New("task not found")
	ErrInvalidInput = errors.New("invalid input")
)

const (
	tasksFile   = "tasks.json"
	archiveFile = "archive.json"
	lockName    = "tasks"
)

type Store struct {
	dataDir string
	locks   *filelock.Manager
	clock   clock.Clock

	// DefaultReminderOffset is subtracted from whenTime when a task
	// gains a deadline without an explicit reminder.
	DefaultReminderOffset time.Duration
	LockTimeout           time.Duration
}

type Options struct {
	Clock                 clock.Clock
	DefaultReminderOffset time.Duration
	LockTimeout           time.Duration
}

func New(dataDir string, opts Options) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	locks, err := filelock.NewManager(filepath.Join(dataDir, "locks"))
	if err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.DefaultReminderOffset <= 0 {
		opts.DefaultReminderOffset = 60 * time.Minute
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 10 * time.Second
	}
	return &Store{
		dataDir:               dataDir,
		locks:                 locks,
		clock:                 opts.Clock,
		DefaultReminderOffset: opts.DefaultReminderOffset,
		LockTimeout:           opts.LockTimeout,
	}, nil
}

func (s *Store) Now() time.Time { return s.clock.Now() }

// Locks exposes the lock manager for process shutdown cleanup.
func (s *Store) Locks() *filelock.Manager { return s.locks }

func (s *Store) tasksPath() string   { return filepath.Join(s.dataDir, tasksFile) }
func (s *Store) archivePath() string { return filepath.Join(s.dataDir, archiveFile) }

func readCollection(path string) (model.Collection, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.Collection{Tasks: []model.Task{}}, nil
		}
		return model.Collection{}, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	var c model.Collection
	if err := json.Unmarshal(b, &c); err != nil {
		return model.Collection{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if c.Tasks == nil {
		c.Tasks = []model.Task{}
	}
	return c, nil
}

func writeCollection(path string, c model.Collection) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Load returns a read-only snapshot of the live collection under lock.
func (s *Store) Load() (model.Collection, error) {
	var c model.Collection
	err := s.locks.WithLock(lockName, s.LockTimeout, func() error {
		var err error
		c, err = readCollection(s.tasksPath())
		return err
	})
	return c, err
}

// Transact acquires the store lock, loads the collection, applies fn,
// and persists the result. This is the only safe read-modify-write.
func (s *Store) Transact(fn func(*model.Collection) error) error {
	return s.locks.WithLock(lockName, s.LockTimeout, func() error {
		c, err := readCollection(s.tasksPath())
		if err != nil {
			return err
		}
		if err := fn(&c); err != nil {
			return err
		}
		return writeCollection(s.tasksPath(), c)
	})
}

// GenerateID builds a unique task id: creation millis plus a short
// random suffix. Collisions are treated as negligible.
func (s *Store) GenerateID() string {
	return fmt.Sprintf("%d-%s", s.clock.Now().UnixMilli(), uuid.NewString()[:8])
}

// Archive returns the archived collection. Append-only; archived tasks
// are never touched by the scheduler again.
func (s *Store) Archive() (model.Collection, error) {
	return readCollection(s.archivePath())
}

// ArchiveCompleted moves completed tasks whose completion instant is
// older than threshold into the archive document.
func (s *Store) ArchiveCompleted(threshold time.Duration) (int, error) {
	now := s.clock.Now()
	moved := 0
	err := s.locks.WithLock(lockName, s.LockTimeout, func() error {
		live, err := readCollection(s.tasksPath())
		if err != nil {
			return err
		}
		var keep, expired []model.Task
		for _, t := range live.Tasks {
			if t.Status == model.StatusCompleted && t.CompletedAt != nil && now.Sub(*t.CompletedAt) > threshold {
				expired = append(expired, t)
				continue
			}
			keep = append(keep, t)
		}
		if len(expired) == 0 {
			return nil
		}
		arch, err := readCollection(s.archivePath())
		if err != nil {
			return err
		}
		arch.Tasks = append(arch.Tasks, expired...)
		if err := writeCollection(s.archivePath(), arch); err != nil {
			return err
		}
		if keep == nil {
			keep = []model.Task{}
		}
		live.Tasks = keep
		moved = len(expired)
		return writeCollection(s.tasksPath(), live)
	})
	return moved, err
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return invalidf("task id is required")
	}
	return nil
}
