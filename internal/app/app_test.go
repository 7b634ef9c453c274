package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskden/internal/command"
	"taskden/internal/config"
	"taskden/internal/notify"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	c := &config.Config{
		DataDir:     filepath.Join(dir, "data"),
		ScheduleDir: filepath.Join(dir, "schedule"),
		DiaryPath:   filepath.Join(dir, "diary.log"),
	}
	c.ApplyDefaults()
	return c
}

func TestNew_WiresEverything(t *testing.T) {
	a, err := New(testConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Store)
	require.NotNil(t, a.Schedule)
	require.NotNil(t, a.Handler)
	assert.IsType(t, &notify.LogNotifier{}, a.Notifier, "no notify URL falls back to log notifications")
	assert.Equal(t, filepath.Join(a.Config.DataDir, "daemon.json"), a.DaemonStatePath())

	// The wired handler can run a full operation.
	created, err := a.Handler.Create(command.CreateRequest{Title: "smoke", When: "tomorrow 9am"})
	require.NoError(t, err)
	_, ok, err := a.Schedule.Read(created.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNew_HTTPNotifierWhenURLSet(t *testing.T) {
	cfg := testConfig(t)
	cfg.NotifyURL = "http://localhost:7080/broadcast"

	a, err := New(cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &notify.HTTPNotifier{}, a.Notifier)
}
