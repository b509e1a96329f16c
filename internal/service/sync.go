// Package service holds the business logic: the sync engine, moderation, the
// OAuth handshake and admin login.
//
//	Handler / CLI / scheduler  →  Service  →  Repository, Twitter client, event sink
//
// Services depend on interfaces (repository.TweetRepository, APIClient,
// events.Sink) so tests pass in hand-written fakes.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sakif/tweetsync/internal/apperror"
	"github.com/sakif/tweetsync/internal/config"
	"github.com/sakif/tweetsync/internal/flatten"
	"github.com/sakif/tweetsync/internal/mapper"
	"github.com/sakif/tweetsync/internal/metrics"
	"github.com/sakif/tweetsync/internal/model"
	"github.com/sakif/tweetsync/internal/repository"
	"github.com/sakif/tweetsync/internal/twitter"
)

// APIClient is the signed request capability the sync engine needs.
type APIClient interface {
	Request(ctx context.Context, method, rawURL string, params url.Values) (*twitter.Response, error)
}

// ClientFactory builds an APIClient for the credentials of one pass.
type ClientFactory func(cfg config.Twitter) (APIClient, error)

// ConfigSource returns the current configuration snapshot. *config.Live
// satisfies it.
type ConfigSource interface {
	Get() config.Config
}

// NewClientFactory returns a factory of real twitter clients. All clients
// share limiter, and a client is reused while the credentials do not change.
func NewClientFactory(limiter *rate.Limiter, logger *slog.Logger) ClientFactory {
	var (
		mu     sync.Mutex
		last   config.Twitter
		client *twitter.Client
	)
	return func(cfg config.Twitter) (APIClient, error) {
		mu.Lock()
		defer mu.Unlock()

		if client != nil && sameCredentials(last, cfg) {
			return client, nil
		}
		c, err := twitter.New(TwitterClientConfig(cfg, limiter, logger))
		if err != nil {
			return nil, err
		}
		last, client = cfg, c
		return c, nil
	}
}

// TwitterClientConfig converts the YAML twitter section into a client config.
func TwitterClientConfig(cfg config.Twitter, limiter *rate.Limiter, logger *slog.Logger) twitter.Config {
	return twitter.Config{
		APIHost:           cfg.APIHost,
		ConsumerKey:       cfg.ConsumerKey,
		ConsumerSecret:    cfg.ConsumerSecret,
		AccessToken:       cfg.AccessToken,
		AccessTokenSecret: cfg.AccessTokenSecret,
		Timeout:           cfg.Timeout,
		Limiter:           limiter,
		Logger:            logger,
	}
}

func sameCredentials(a, b config.Twitter) bool {
	return a.APIHost == b.APIHost &&
		a.ConsumerKey == b.ConsumerKey &&
		a.ConsumerSecret == b.ConsumerSecret &&
		a.AccessToken == b.AccessToken &&
		a.AccessTokenSecret == b.AccessTokenSecret &&
		a.Timeout == b.Timeout
}

// EndpointReport is what one endpoint contributed to a pass.
type EndpointReport struct {
	URL      string `json:"url"`
	Fetched  int    `json:"fetched"`
	Inserted int    `json:"inserted"`
	Skipped  int    `json:"skipped"`
}

// SyncReport summarizes a pass. On failure it holds the endpoints that were
// committed before the error.
type SyncReport struct {
	StartedAt time.Time        `json:"startedAt"`
	Duration  time.Duration    `json:"duration"`
	Endpoints []EndpointReport `json:"endpoints"`
	Inserted  int              `json:"inserted"`
	Skipped   int              `json:"skipped"`
}

// SyncService is the deduplicating sync engine.
//
// ONE PASS:
//
//	for each configured endpoint, in order:
//	    GET it                       non-200            → *apperror.APIError, stop
//	    find the item list           not a list         → malformed, stop
//	    for each item:
//	        read id_str              missing/not string → malformed, stop
//	        stored or seen already?  → skip
//	        flatten, map, keep raw JSON, apply auto-approve, stage
//	    commit the staged tweets     (one transaction per endpoint)
//
// Endpoints committed before a failure stay committed. The engine is strictly
// sequential and assumes only one pass runs at a time; scheduler.Runner
// provides that guarantee.
type SyncService struct {
	repo      repository.TweetRepository
	config    ConfigSource
	newClient ClientFactory
	logger    *slog.Logger
	now       func() time.Time
}

func NewSyncService(repo repository.TweetRepository, cfg ConfigSource, newClient ClientFactory, logger *slog.Logger) *SyncService {
	return &SyncService{
		repo:      repo,
		config:    cfg,
		newClient: newClient,
		logger:    logger,
		now:       time.Now,
	}
}

// Sync runs one pass over every configured endpoint.
func (s *SyncService) Sync(ctx context.Context) (*SyncReport, error) {
	start := s.now()
	metrics.SyncRuns.Inc()
	defer metrics.ObserveSyncDuration(start)

	report := &SyncReport{StartedAt: start}
	err := s.run(ctx, report)
	report.Duration = s.now().Sub(start)

	if err != nil {
		metrics.SyncErrors.Inc()
		s.logger.Error("sync pass failed",
			slog.String("error", err.Error()),
			slog.Int("endpoints_committed", len(report.Endpoints)),
			slog.Int("inserted", report.Inserted),
		)
		return report, err
	}

	s.logger.Info("sync pass complete",
		slog.Int("endpoints", len(report.Endpoints)),
		slog.Int("inserted", report.Inserted),
		slog.Int("skipped", report.Skipped),
		slog.Duration("duration", report.Duration),
	)
	return report, nil
}

func (s *SyncService) run(ctx context.Context, report *SyncReport) error {
	cfg := s.config.Get().Twitter
	if !cfg.Configured() {
		return apperror.NotConfigured("twitter consumer key and secret are not configured")
	}

	client, err := s.newClient(cfg)
	if err != nil {
		return err
	}

	// External ids staged earlier in this pass, across endpoints.
	seen := make(map[string]struct{})

	for _, endpoint := range cfg.Endpoints {
		er, err := s.syncEndpoint(ctx, client, endpoint, cfg.AutoApprove, seen)
		if err != nil {
			return fmt.Errorf("syncing %s: %w", endpoint, err)
		}
		report.Endpoints = append(report.Endpoints, *er)
		report.Inserted += er.Inserted
		report.Skipped += er.Skipped
	}
	return nil
}

func (s *SyncService) syncEndpoint(ctx context.Context, client APIClient, endpoint string, autoApprove bool, seen map[string]struct{}) (*EndpointReport, error) {
	target, params, err := splitQuery(endpoint)
	if err != nil {
		return nil, err
	}

	resp, err := client.Request(ctx, http.MethodGet, target, params)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperror.NewAPIError(resp.StatusCode, resp.Body, endpoint)
	}

	items, err := ExtractItems(resp.Body)
	if err != nil {
		return nil, err
	}

	er := &EndpointReport{URL: endpoint, Fetched: len(items)}
	staged := make([]*model.Tweet, 0, len(items))

	for i, raw := range items {
		item, idStr, err := decodeItem(raw)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}

		if _, ok := seen[idStr]; ok {
			continue
		}
		stored, err := s.isStored(ctx, idStr)
		if err != nil {
			return nil, err
		}
		if stored {
			continue
		}

		tweet, err := buildTweet(item, idStr, raw, autoApprove)
		if err != nil {
			return nil, fmt.Errorf("item %s: %w", idStr, err)
		}
		seen[idStr] = struct{}{}
		staged = append(staged, tweet)
	}

	inserted, err := s.repo.CreateBatch(ctx, staged)
	if err != nil {
		return nil, err
	}
	er.Inserted = inserted
	er.Skipped = er.Fetched - inserted

	metrics.TweetsInserted.Add(float64(er.Inserted))
	metrics.TweetsSkipped.Add(float64(er.Skipped))
	s.logger.Info("endpoint synced",
		slog.String("endpoint", endpoint),
		slog.Int("fetched", er.Fetched),
		slog.Int("inserted", er.Inserted),
		slog.Int("skipped", er.Skipped),
	)
	return er, nil
}

func (s *SyncService) isStored(ctx context.Context, idStr string) (bool, error) {
	_, err := s.repo.GetByExternalID(ctx, idStr)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, apperror.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// splitQuery separates an endpoint's own query string from its path.
func splitQuery(endpoint string) (string, url.Values, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", nil, apperror.ValidationFailed("endpoint", fmt.Sprintf("invalid endpoint %q: %v", endpoint, err))
	}
	params := u.Query()
	u.RawQuery = ""
	return u.String(), params, nil
}

// ExtractItems normalizes a response body into its list of items: a bare
// array is the list, an object's "statuses" array is the list (search
// responses). Anything else is malformed.
func ExtractItems(body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, apperror.Malformed("empty response body", nil)
	}

	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, apperror.Malformed("response array is not valid JSON", err)
		}
		return items, nil

	case '{':
		var envelope struct {
			Statuses *[]json.RawMessage `json:"statuses"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, apperror.Malformed("response object is not valid JSON or statuses is not a list", err)
		}
		if envelope.Statuses == nil {
			return nil, apperror.Malformed("response object has no statuses list", nil)
		}
		return *envelope.Statuses, nil

	default:
		return nil, apperror.Malformed("response is neither a list nor an object", nil)
	}
}

// decodeItem decodes one item keeping member order and reads its id_str.
func decodeItem(raw json.RawMessage) (flatten.Object, string, error) {
	v, err := flatten.Decode(raw)
	if err != nil {
		return nil, "", apperror.Malformed("item is not valid JSON", err)
	}
	obj, ok := v.(flatten.Object)
	if !ok {
		return nil, "", apperror.Malformed("item is not an object", nil)
	}
	id, ok := obj.Get("id_str")
	if !ok {
		return nil, "", apperror.Malformed("item has no id_str", nil)
	}
	idStr, ok := id.(string)
	if !ok || idStr == "" {
		return nil, "", apperror.Malformed(fmt.Sprintf("item id_str is %T, not a string", id), nil)
	}
	return obj, idStr, nil
}

// buildTweet maps item onto a Tweet. IDStr is always the key the item was
// deduplicated on, even when the payload repeats the id_str key.
func buildTweet(item flatten.Object, idStr string, raw json.RawMessage, autoApprove bool) (*model.Tweet, error) {
	var t model.Tweet
	flat := flatten.Flatten(item, flatten.DefaultSeparator)
	if err := mapper.Map(flat, model.TweetDateFields, model.TweetFields, &t); err != nil {
		return nil, err
	}
	t.IDStr = idStr

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return nil, apperror.Malformed("item is not valid JSON", err)
	}
	t.Raw = compact.String()
	t.Approved = autoApprove
	return &t, nil
}
