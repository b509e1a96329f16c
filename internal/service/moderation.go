package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sakif/tweetsync/internal/events"
	"github.com/sakif/tweetsync/internal/metrics"
	"github.com/sakif/tweetsync/internal/model"
	"github.com/sakif/tweetsync/internal/repository"
)

// ModerationService approves and unapproves stored tweets.
//
// The sink is injected here rather than looked up anywhere, so a test can
// pass a recorder and production can pass an events.Dispatcher.
type ModerationService struct {
	repo   repository.TweetRepository
	sink   events.Sink
	logger *slog.Logger
	now    func() time.Time
}

func NewModerationService(repo repository.TweetRepository, sink events.Sink, logger *slog.Logger) *ModerationService {
	if sink == nil {
		sink = events.Discard
	}
	return &ModerationService{
		repo:   repo,
		sink:   sink,
		logger: logger,
		now:    time.Now,
	}
}

// SetApproval sets the approval flag of tweet id and notifies subscribers
// with the updated record.
//
// An unknown id returns apperror.NotFound with nothing written and nothing
// published. Once the write has committed, a failing sink is logged and
// counted but not returned: the caller's change did happen.
func (s *ModerationService) SetApproval(ctx context.Context, id int64, approved bool) (*model.Tweet, error) {
	tweet, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateApproval(ctx, id, approved); err != nil {
		return nil, err
	}
	tweet.Approved = approved
	metrics.IncApprovalChange(approved)

	s.logger.Info("tweet approval changed",
		slog.Int64("tweet_id", tweet.ID),
		slog.String("id_str", tweet.IDStr),
		slog.Bool("approved", approved),
	)

	event := events.Event{
		Type:  events.TypeApprovalChanged,
		Tweet: *tweet,
		At:    s.now().UTC(),
	}
	if err := s.sink.Publish(ctx, event); err != nil {
		metrics.NotifyErrors.Inc()
		s.logger.Error("publishing approval event",
			slog.Int64("tweet_id", tweet.ID),
			slog.String("error", err.Error()),
		)
	}

	return tweet, nil
}

// Get returns one tweet by its internal id.
func (s *ModerationService) Get(ctx context.Context, id int64) (*model.Tweet, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns one page of tweets, newest first.
func (s *ModerationService) List(ctx context.Context, q model.TweetQuery) (*model.TweetPage, error) {
	return s.repo.List(ctx, q.Normalize())
}
