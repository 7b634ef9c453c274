package notify

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPNotifier_PostsJSON(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewHTTPNotifier(srv.URL)
	err := n.Notify(context.Background(), map[string]string{"message": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", got["message"])
}

func TestHTTPNotifier_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewHTTPNotifier(srv.URL)
	err := n.Notify(context.Background(), map[string]string{"message": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestHTTPNotifier_ConnectionRefused(t *testing.T) {
	n := NewHTTPNotifier("http://127.0.0.1:1/broadcast")
	assert.Error(t, n.Notify(context.Background(), struct{}{}))
}

func TestLogNotifier_NeverFails(t *testing.T) {
	n := &LogNotifier{}
	assert.NoError(t, n.Notify(context.Background(), map[string]string{"message": "x"}))
}

func TestFuncAdapter(t *testing.T) {
	called := false
	f := Func(func(_ context.Context, _ any) error {
		called = true
		return nil
	})
	require.NoError(t, f.Notify(context.Background(), nil))
	assert.True(t, called)
}

func TestFileDiarySink_AppendsJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "diary.log")
	sink := &FileDiarySink{Path: path}

	ctx := context.Background()
	first := DiaryEntry{TaskID: "a", Title: "one", CompletedAt: time.Now().UTC()}
	second := DiaryEntry{TaskID: "b", Title: "two", Reflection: "fine", CompletedAt: time.Now().UTC()}
	require.NoError(t, sink.WriteEntry(ctx, first))
	require.NoError(t, sink.WriteEntry(ctx, second))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []DiaryEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e DiaryEntry
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		entries = append(entries, e)
	}
	require.NoError(t, sc.Err())
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].TaskID)
	assert.Equal(t, "fine", entries[1].Reflection)
}

type blockingSink struct {
	entries chan DiaryEntry
	err     error
}

func (s *blockingSink) WriteEntry(_ context.Context, e DiaryEntry) error {
	s.entries <- e
	return s.err
}

func TestDiaryWorker_DeliversInBackground(t *testing.T) {
	sink := &blockingSink{entries: make(chan DiaryEntry, 8)}
	w := NewDiaryWorker(sink, nil)

	w.Enqueue(DiaryEntry{TaskID: "a", Title: "one"})
	w.Enqueue(DiaryEntry{TaskID: "b", Title: "two"})

	first := <-sink.entries
	second := <-sink.entries
	assert.Equal(t, "a", first.TaskID)
	assert.Equal(t, "b", second.TaskID)

	w.Close()
}

func TestDiaryWorker_CloseDrains(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diary.log")
	w := NewDiaryWorker(&FileDiarySink{Path: path}, nil)

	for i := 0; i < 10; i++ {
		w.Enqueue(DiaryEntry{TaskID: "t", Title: "x", CompletedAt: time.Now()})
	}
	w.Close()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 10, countLines(b))

	// Close twice is safe.
	w.Close()
}

func TestDiaryWorker_SinkFailureIsSwallowed(t *testing.T) {
	sink := &blockingSink{entries: make(chan DiaryEntry, 8), err: errors.New("disk full")}
	w := NewDiaryWorker(sink, nil)

	w.Enqueue(DiaryEntry{TaskID: "a"})
	<-sink.entries
	w.Close()
}

func countLines(b []byte) int {
	n := 0
	for _, c := range b {
		if c == '\n' {
			n++
		}
	}
	return n
}
