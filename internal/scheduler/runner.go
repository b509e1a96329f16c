// Package scheduler runs sync passes: on a cron schedule, on demand from the
// HTTP API, and from the CLI. All three go through one Runner, so at most
// one pass is ever in flight.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sakif/tweetsync/internal/service"
)

// DefaultTimeout bounds a pass when the config does not.
const DefaultTimeout = 2 * time.Minute

// Syncer runs one sync pass. *service.SyncService satisfies it.
type Syncer interface {
	Sync(ctx context.Context) (*service.SyncReport, error)
}

// Runner coalesces concurrent triggers into a single pass. A caller that
// arrives while a pass is running waits for that pass and gets its result.
//
// The pass runs on a context detached from the caller: an HTTP client that
// disconnects must not abort a pass other callers are waiting on. The pass
// is bounded by sync.timeout instead.
type Runner struct {
	syncer Syncer
	config service.ConfigSource
	logger *slog.Logger
	group  singleflight.Group
}

func NewRunner(syncer Syncer, cfg service.ConfigSource, logger *slog.Logger) *Runner {
	return &Runner{syncer: syncer, config: cfg, logger: logger}
}

// Run starts a pass or joins the one in flight. shared reports whether the
// result was shared with another caller. If ctx ends first, Run returns
// ctx.Err() and the pass keeps going.
func (r *Runner) Run(ctx context.Context) (report *service.SyncReport, shared bool, err error) {
	ch := r.group.DoChan("sync", func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout())
		defer cancel()
		return r.syncer.Sync(runCtx)
	})

	select {
	case res := <-ch:
		report, _ = res.Val.(*service.SyncReport)
		if res.Shared {
			r.logger.Debug("joined running sync pass")
		}
		return report, res.Shared, res.Err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func (r *Runner) timeout() time.Duration {
	if t := r.config.Get().Sync.Timeout; t > 0 {
		return t
	}
	return DefaultTimeout
}
