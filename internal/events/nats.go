package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// publisher is the part of *nats.Conn the sink needs.
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes each event as JSON on subject.<type>, e.g.
// "tweetsync.tweets.tweet.approval_changed". Cache invalidators and webhook
// relays subscribe with "tweetsync.tweets.>".
type NATSSink struct {
	conn    publisher
	subject string
}

func NewNATSSink(conn *nats.Conn, subject string) *NATSSink {
	return &NATSSink{conn: conn, subject: subject}
}

func (s *NATSSink) Publish(_ context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("events: encoding %s: %w", e.Type, err)
	}
	subject := s.subject + "." + e.Type
	if err := s.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("events: publishing to %s: %w", subject, err)
	}
	return nil
}

// ConnectNATS dials url with reconnects enabled and logs connection state
// changes.
func ConnectNATS(url string, logger *slog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("tweetsync"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("events: connecting to nats at %s: %w", url, err)
	}
	return nc, nil
}
