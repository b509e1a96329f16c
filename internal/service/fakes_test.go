package service

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"sync"

	"github.com/sakif/tweetsync/internal/apperror"
	"github.com/sakif/tweetsync/internal/config"
	"github.com/sakif/tweetsync/internal/events"
	"github.com/sakif/tweetsync/internal/model"
	"github.com/sakif/tweetsync/internal/repository"
	"github.com/sakif/tweetsync/internal/twitter"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =========================================================================
// FAKE REPOSITORY
// =========================================================================

var _ repository.TweetRepository = (*fakeRepo)(nil)

type fakeRepo struct {
	mu      sync.Mutex
	byID    map[int64]*model.Tweet
	byIDStr map[string]int64
	nextID  int64

	batches   int
	updates   int
	createErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		byID:    make(map[int64]*model.Tweet),
		byIDStr: make(map[string]int64),
	}
}

func (r *fakeRepo) GetByExternalID(_ context.Context, idStr string) (*model.Tweet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byIDStr[idStr]
	if !ok {
		return nil, apperror.NotFound("tweet", idStr)
	}
	t := *r.byID[id]
	return &t, nil
}

func (r *fakeRepo) GetByID(_ context.Context, id int64) (*model.Tweet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return nil, apperror.NotFound("tweet", strconv.FormatInt(id, 10))
	}
	c := *t
	return &c, nil
}

func (r *fakeRepo) CreateBatch(_ context.Context, tweets []*model.Tweet) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches++
	if r.createErr != nil {
		return 0, r.createErr
	}
	n := 0
	for _, t := range tweets {
		if _, ok := r.byIDStr[t.IDStr]; ok {
			continue
		}
		r.nextID++
		t.ID = r.nextID
		c := *t
		r.byID[c.ID] = &c
		r.byIDStr[c.IDStr] = c.ID
		n++
	}
	return n, nil
}

func (r *fakeRepo) UpdateApproval(_ context.Context, id int64, approved bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return apperror.NotFound("tweet", strconv.FormatInt(id, 10))
	}
	r.updates++
	t.Approved = approved
	return nil
}

func (r *fakeRepo) List(_ context.Context, q model.TweetQuery) (*model.TweetPage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]model.Tweet, 0, len(r.byID))
	for _, t := range r.byID {
		if q.ApprovedOnly && !t.Approved {
			continue
		}
		items = append(items, *t)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	total := len(items)
	start := min(q.Offset(), total)
	end := min(start+q.PageSize, total)
	return &model.TweetPage{Items: items[start:end], Page: q.Page, PageSize: q.PageSize, Total: total}, nil
}

func (r *fakeRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// =========================================================================
// FAKE TWITTER CLIENT
// =========================================================================

type fakeResponse struct {
	status int
	body   string
	err    error
}

type fakeClient struct {
	mu        sync.Mutex
	responses map[string]fakeResponse
	requests  []string
	params    []url.Values
}

func newFakeClient(responses map[string]fakeResponse) *fakeClient {
	return &fakeClient{responses: responses}
}

func (c *fakeClient) Request(_ context.Context, method, rawURL string, params url.Values) (*twitter.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, method+" "+rawURL)
	c.params = append(c.params, params)

	r, ok := c.responses[rawURL]
	if !ok {
		return &twitter.Response{StatusCode: 404, Body: []byte(`{"errors":[{"code":34}]}`)}, nil
	}
	if r.err != nil {
		return nil, r.err
	}
	return &twitter.Response{StatusCode: r.status, Body: []byte(r.body)}, nil
}

func (c *fakeClient) setResponse(rawURL string, r fakeResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses[rawURL] = r
}

func (c *fakeClient) requested() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.requests...)
}

func (c *fakeClient) factory() ClientFactory {
	return func(config.Twitter) (APIClient, error) { return c, nil }
}

// =========================================================================
// CONFIG + SINK
// =========================================================================

type staticConfig struct {
	mu  sync.Mutex
	cfg config.Config
}

func (s *staticConfig) Get() config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *staticConfig) Set(c config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = c
}

func twitterConfig(autoApprove bool, endpoints ...string) *staticConfig {
	cfg := config.Default()
	cfg.Twitter.ConsumerKey = "ck"
	cfg.Twitter.ConsumerSecret = "cs"
	cfg.Twitter.AutoApprove = autoApprove
	cfg.Twitter.Endpoints = endpoints
	return &staticConfig{cfg: cfg}
}

type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (s *recordingSink) Publish(_ context.Context, e events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}
