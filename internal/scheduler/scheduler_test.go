package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/tweetsync/internal/apperror"
	"github.com/sakif/tweetsync/internal/config"
	"github.com/sakif/tweetsync/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// blockingSyncer holds each pass until release is closed.
type blockingSyncer struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	err     error
	ctxErr  atomic.Value
}

func newBlockingSyncer() *blockingSyncer {
	return &blockingSyncer{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (b *blockingSyncer) Sync(ctx context.Context) (*service.SyncReport, error) {
	n := b.calls.Add(1)
	b.started <- struct{}{}
	<-b.release
	if err := ctx.Err(); err != nil {
		b.ctxErr.Store(err)
	}
	return &service.SyncReport{Inserted: int(n)}, b.err
}

type countingSyncer struct{ calls atomic.Int32 }

func (c *countingSyncer) Sync(context.Context) (*service.SyncReport, error) {
	c.calls.Add(1)
	return &service.SyncReport{}, nil
}

func liveConfig() *config.Live {
	return config.NewLive(config.Default())
}

// =========================================================================
// RUNNER
// =========================================================================

func TestRunner_CoalescesConcurrentTriggers(t *testing.T) {
	syncer := newBlockingSyncer()
	runner := NewRunner(syncer, liveConfig(), discardLogger())

	type result struct {
		report *service.SyncReport
		shared bool
		err    error
	}
	results := make(chan result, 2)
	run := func() {
		r, shared, err := runner.Run(context.Background())
		results <- result{r, shared, err}
	}

	go run()
	<-syncer.started
	go run()

	// Give the second caller time to join the in-flight pass.
	time.Sleep(50 * time.Millisecond)
	close(syncer.release)

	for range 2 {
		res := <-results
		require.NoError(t, res.err)
		assert.Equal(t, 1, res.report.Inserted)
		assert.True(t, res.shared)
	}
	assert.Equal(t, int32(1), syncer.calls.Load())
}

func TestRunner_SequentialTriggersRunSeparately(t *testing.T) {
	syncer := &countingSyncer{}
	runner := NewRunner(syncer, liveConfig(), discardLogger())

	for range 3 {
		_, shared, err := runner.Run(context.Background())
		require.NoError(t, err)
		assert.False(t, shared)
	}
	assert.Equal(t, int32(3), syncer.calls.Load())
}

func TestRunner_CallerCancelDoesNotAbortPass(t *testing.T) {
	syncer := newBlockingSyncer()
	runner := NewRunner(syncer, liveConfig(), discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, _, err := runner.Run(ctx)
		done <- err
	}()

	<-syncer.started
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(syncer.release)
	// The pass finishes on its own context.
	_, _, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, syncer.ctxErr.Load())
}

func TestRunner_ReturnsPassError(t *testing.T) {
	syncer := newBlockingSyncer()
	syncer.err = apperror.NotConfigured("no credentials")
	close(syncer.release)

	_, _, err := NewRunner(syncer, liveConfig(), discardLogger()).Run(context.Background())
	assert.True(t, errors.Is(err, apperror.ErrNotConfigured))
}

func TestRunner_Timeout(t *testing.T) {
	cfg := config.Default()
	cfg.Sync.Timeout = 0
	r := NewRunner(&countingSyncer{}, config.NewLive(cfg), discardLogger())
	assert.Equal(t, DefaultTimeout, r.timeout())

	cfg.Sync.Timeout = time.Second
	r = NewRunner(&countingSyncer{}, config.NewLive(cfg), discardLogger())
	assert.Equal(t, time.Second, r.timeout())
}

// =========================================================================
// SCHEDULER
// =========================================================================

func TestScheduler_SetSchedule(t *testing.T) {
	s := New(NewRunner(&countingSyncer{}, liveConfig(), discardLogger()), discardLogger())

	require.NoError(t, s.SetSchedule("@every 5m"))
	assert.Equal(t, "@every 5m", s.Schedule())
	assert.Len(t, s.cron.Entries(), 1)

	err := s.SetSchedule("every now and then")
	assert.True(t, errors.Is(err, apperror.ErrValidation))
	assert.Equal(t, "@every 5m", s.Schedule(), "invalid spec keeps the old one")
	assert.Len(t, s.cron.Entries(), 1)

	require.NoError(t, s.SetSchedule("*/10 * * * *"))
	assert.Len(t, s.cron.Entries(), 1)

	require.NoError(t, s.SetSchedule(""))
	assert.Empty(t, s.Schedule())
	assert.Empty(t, s.cron.Entries())
}

func TestScheduler_RunsOnSchedule(t *testing.T) {
	syncer := &countingSyncer{}
	s := New(NewRunner(syncer, liveConfig(), discardLogger()), discardLogger())
	require.NoError(t, s.SetSchedule("@every 1s"))

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return syncer.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestScheduler_FollowsLiveConfig(t *testing.T) {
	live := liveConfig()
	s := New(NewRunner(&countingSyncer{}, live, discardLogger()), discardLogger())
	s.Follow(live)

	cfg := live.Get()
	cfg.Sync.Schedule = "@hourly"
	live.Set(cfg)
	assert.Equal(t, "@hourly", s.Schedule())

	cfg.Sync.Schedule = "not a schedule"
	live.Set(cfg)
	assert.Equal(t, "@hourly", s.Schedule())
}
