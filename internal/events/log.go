package events

import (
	"context"
	"log/slog"
)

// LogSink writes one structured line per event.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(ctx context.Context, e Event) error {
	s.logger.InfoContext(ctx, "tweet event",
		slog.String("type", e.Type),
		slog.Int64("tweet_id", e.Tweet.ID),
		slog.String("id_str", e.Tweet.IDStr),
		slog.Bool("approved", e.Tweet.Approved),
	)
	return nil
}
