package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/poiesic/snapshelf/collector"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"
)

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "err", err)...)
}

func watchCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	col, err := store.NewCollector(collector.WithProbes(probes(c)...))
	if err != nil {
		return fmt.Errorf("failed to create collector: %w", err)
	}

	slog.Info("watching", "schedule", c.String("schedule"), "backend", store.Backend().Name(), "session", col.Session())
	return runSchedule(ctx, c.String("schedule"), slog.Default(), func(ctx context.Context) {
		record, outcome, err := col.Collect(ctx)
		if err != nil {
			slog.Error("failed to collect snapshot", "err", err)
			return
		}
		slog.Info("snapshot saved", "timestamp", record.Timestamp, "outcome", outcome)
	})
}

// runSchedule runs job on schedule until ctx is done, then waits for a
// running job to finish. Overlapping runs are skipped.
func runSchedule(ctx context.Context, schedule string, logger *slog.Logger, job func(context.Context)) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}

	cl := cronLogger{logger: logger}
	sched := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := sched.AddFunc(schedule, func() { job(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule collection: %w", err)
	}

	sched.Start()
	<-ctx.Done()
	<-sched.Stop().Done()
	logger.Info("watch stopped")
	return nil
}
