package notify

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// DiaryEntry records a task completion forwarded to the external diary.
type DiaryEntry struct {
	TaskID      string    `json:"taskId"`
	Title       string    `json:"title"`
	Reflection  string    `json:"reflection,omitempty"`
	CompletedAt time.Time `json:"completedAt"`
}

type DiarySink interface {
	WriteEntry(ctx context.Context, e DiaryEntry) error
}

// FileDiarySink appends entries as JSON lines to a diary log file.
type FileDiarySink struct {
	Path string

	mu sync.Mutex
}

func (s *FileDiarySink) WriteEntry(_ context.Context, e DiaryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(s.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = f.Write(append(b, '\n'))
	return err
}

// DiaryWorker forwards completion entries to the sink in the background.
// Fire-and-forget: the caller never waits; failures are logged and
// never retried.
type DiaryWorker struct {
	sink   DiarySink
	logger *log.Logger
	ch     chan DiaryEntry
	wg     sync.WaitGroup

	closeOnce sync.Once
}

func NewDiaryWorker(sink DiarySink, logger *log.Logger) *DiaryWorker {
	if logger == nil {
		logger = log.Default()
	}
	w := &DiaryWorker{
		sink:   sink,
		logger: logger,
		ch:     make(chan DiaryEntry, 64),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *DiaryWorker) run() {
	defer w.wg.Done()
	for e := range w.ch {
		if err := w.sink.WriteEntry(context.Background(), e); err != nil {
			w.logger.Warn("diary write failed", "taskId", e.TaskID, "error", err)
		}
	}
}

// Enqueue hands off an entry without blocking. A full queue drops the
// entry with a log line.
func (w *DiaryWorker) Enqueue(e DiaryEntry) {
	select {
	case w.ch <- e:
	default:
		w.logger.Warn("diary queue full, dropping entry", "taskId", e.TaskID)
	}
}

// Close drains pending entries and stops the worker.
func (w *DiaryWorker) Close() {
	w.closeOnce.Do(func() { close(w.ch) })
	w.wg.Wait()
}
