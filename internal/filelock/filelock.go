// Package filelock serializes access to shared files across processes
// with exclusive-create marker files. A stale marker (holder crashed or
// leaked the lock) is forcibly taken over after a fixed threshold.
package filelock

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var ErrLockTimeout = errors.New("lock timeout")

// StaleAfter is the age past which a held marker is assumed leaked and
// may be deleted by a contending acquirer.
const StaleAfter = 30 * time.Second

const DefaultRetryInterval = 100 * time.Millisecond

type marker struct {
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquiredAt"`
}

// Manager hands out named locks backed by marker files in dir. It keeps
// a process-local registry of held locks so abnormal exits can
// best-effort clean up; the staleness takeover is the real safety net.
type Manager struct {
	dir string

	mu   sync.Mutex
	held map[string]struct{}
}

func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	return &Manager{dir: dir, held: map[string]struct{}{}}, nil
}

func (m *Manager) path(name string) string {
	return filepath.Join(m.dir, name+".lock")
}

// Acquire blocks until the named lock is held or timeout elapses.
func (m *Manager) Acquire(name string, timeout, retry time.Duration) error {
	if retry <= 0 {
		retry = DefaultRetryInterval
	}
	deadline := time.Now().Add(timeout)

	for {
		if err := m.tryAcquire(name); err == nil {
			return nil
		} else if !errors.Is(err, os.ErrExist) {
			return err
		}

		if m.takeoverIfStale(name) {
			continue
		}
		if time.Now().Add(retry).After(deadline) {
			return fmt.Errorf("%w: %s not acquired within %s", ErrLockTimeout, name, timeout)
		}
		time.Sleep(retry)
	}
}

func (m *Manager) tryAcquire(name string) error {
	f, err := os.OpenFile(m.path(name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	b, err := json.Marshal(marker{PID: os.Getpid(), AcquiredAt: time.Now()})
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		// Half-written marker must not linger as a phantom lock.
		_ = os.Remove(m.path(name))
		return err
	}

	m.mu.Lock()
	m.held[name] = struct{}{}
	m.mu.Unlock()
	return nil
}

// takeoverIfStale deletes the marker when its recorded acquisition
// instant is older than StaleAfter, returning true so the caller
// retries immediately.
func (m *Manager) takeoverIfStale(name string) bool {
	b, err := os.ReadFile(m.path(name))
	if err != nil {
		// Holder released between our create attempt and now.
		return os.IsNotExist(err)
	}
	var mk marker
	if err := json.Unmarshal(b, &mk); err != nil {
		// Unreadable marker: treat as stale.
		return os.Remove(m.path(name)) == nil
	}
	if time.Since(mk.AcquiredAt) <= StaleAfter {
		return false
	}
	return os.Remove(m.path(name)) == nil
}

// Release drops the named lock. Releasing a lock this manager does not
// hold is an error.
func (m *Manager) Release(name string) error {
	m.mu.Lock()
	_, ok := m.held[name]
	delete(m.held, name)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("release %s: lock not held by this process", name)
	}
	if err := os.Remove(m.path(name)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// WithLock runs fn while holding the named lock, releasing on every
// exit path.
func (m *Manager) WithLock(name string, timeout time.Duration, fn func() error) error {
	if err := m.Acquire(name, timeout, DefaultRetryInterval); err != nil {
		return err
	}
	defer func() { _ = m.Release(name) }()
	return fn()
}

// ReleaseAll drops every lock this process still holds. Wired to signal
// handling in long-running processes; advisory only.
func (m *Manager) ReleaseAll() {
	m.mu.Lock()
	names := make([]string, 0, len(m.held))
	for name := range m.held {
		names = append(names, name)
	}
	m.held = map[string]struct{}{}
	m.mu.Unlock()

	for _, name := range names {
		_ = os.Remove(m.path(name))
	}
}
