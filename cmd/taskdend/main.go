// taskdend is the long-running reminder daemon: it polls the task store
// and fires reminders, overdue notices, the daily digest, and the
// archival sweep.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	"taskden/internal/app"
	"taskden/internal/config"
	"taskden/internal/daemon"
)

func main() {
	cfgPath := flag.String("config", "taskden.yml", "path to config file")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "taskdend",
	})

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatal("load config", "error", err)
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("wire app", "error", err)
	}
	defer a.Close()

	sched := daemon.New(a.Store, a.Notifier, logger, daemon.Options{
		Clock:        a.Clock,
		Tick:         cfg.Tick(),
		SummaryHour:  cfg.SummaryHour,
		ArchiveAfter: cfg.ArchiveThreshold(),
		RetryBackoff: cfg.RetryBackoff(),
		StatePath:    a.DaemonStatePath(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched.Run(ctx)
}
