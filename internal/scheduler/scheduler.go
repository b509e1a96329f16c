package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/sakif/tweetsync/internal/apperror"
	"github.com/sakif/tweetsync/internal/config"
)

// Scheduler triggers the Runner on the sync.schedule cron spec. The spec
// can change at runtime; an empty spec pauses periodic syncing.
type Scheduler struct {
	cron   *cron.Cron
	runner *Runner
	logger *slog.Logger

	mu    sync.Mutex
	spec  string
	entry cron.EntryID
}

func New(runner *Runner, logger *slog.Logger) *Scheduler {
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		runner: runner,
		logger: logger,
	}
}

// SetSchedule replaces the current schedule. Standard five-field specs and
// descriptors like "@every 5m" or "@hourly" are accepted. An invalid spec
// leaves the current schedule in place.
func (s *Scheduler) SetSchedule(spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if spec == s.spec {
		return nil
	}

	if spec == "" {
		s.cron.Remove(s.entry)
		s.spec, s.entry = "", 0
		s.logger.Info("periodic sync disabled")
		return nil
	}

	id, err := s.cron.AddFunc(spec, s.tick)
	if err != nil {
		return apperror.ValidationFailed("sync.schedule", fmt.Sprintf("invalid schedule %q: %v", spec, err))
	}
	if s.entry != 0 {
		s.cron.Remove(s.entry)
	}
	s.spec, s.entry = spec, id
	s.logger.Info("periodic sync scheduled", slog.String("schedule", spec))
	return nil
}

// Schedule returns the active spec, empty when disabled.
func (s *Scheduler) Schedule() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spec
}

// Follow keeps the schedule in step with live config reloads.
func (s *Scheduler) Follow(live *config.Live) {
	live.OnChange(func(cfg config.Config) {
		if err := s.SetSchedule(cfg.Sync.Schedule); err != nil {
			s.logger.Error("keeping previous sync schedule", slog.String("error", err.Error()))
		}
	})
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the cron loop. The returned context is done once a running
// pass has finished.
func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }

func (s *Scheduler) tick() {
	report, shared, err := s.runner.Run(context.Background())
	if err != nil {
		// SyncService already logged the failure.
		return
	}
	s.logger.Debug("scheduled sync finished",
		slog.Int("inserted", report.Inserted),
		slog.Bool("shared", shared),
	)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{slog.String("error", err.Error())}, keysAndValues...)...)
}
