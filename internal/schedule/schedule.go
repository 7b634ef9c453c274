// Package schedule writes one-shot schedule entries: one file per task,
// consumed by an external scheduler that re-invokes the fire-reminder
// command at the target instant. Each task owns exactly one entry file,
// so no locking is needed here.
package schedule

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type Entry struct {
	TaskID  string    `json:"taskId"`
	FireAt  time.Time `json:"fireAt"`
	Command string    `json:"command"`
}

type Book struct {
	dir string
}

func NewBook(dir string) (*Book, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create schedule dir: %w", err)
	}
	return &Book{dir: dir}, nil
}

func (b *Book) path(taskID string) string {
	return filepath.Join(b.dir, taskID+".json")
}

// Write records (or supersedes) the entry for a task.
func (b *Book) Write(taskID string, fireAt time.Time) error {
	e := Entry{
		TaskID:  taskID,
		FireAt:  fireAt,
		Command: "fire " + taskID,
	}
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(b.path(taskID), data, 0o644)
}

// Remove drops the entry for a task. Missing entries are fine.
func (b *Book) Remove(taskID string) error {
	if err := os.Remove(b.path(taskID)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Read returns the entry for a task if one exists.
func (b *Book) Read(taskID string) (Entry, bool, error) {
	data, err := os.ReadFile(b.path(taskID))
	if err != nil {
		if os.IsNotExist(err) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}
