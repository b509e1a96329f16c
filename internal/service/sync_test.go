package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/tweetsync/internal/apperror"
)

const (
	endpointA = "https://api.example.test/a.json"
	endpointB = "https://api.example.test/b.json"
	endpointC = "https://api.example.test/c.json"
)

func newTestSync(repo *fakeRepo, cfg *staticConfig, client *fakeClient) *SyncService {
	return NewSyncService(repo, cfg, client.factory(), discardLogger())
}

// =========================================================================
// SYNC PASS
// =========================================================================

func TestSync_StoresSameRecordOnceAcrossEndpoints(t *testing.T) {
	item := `{"id_str": "1", "text": "hello", "user": {"id": 6253282, "name": "API"}}`
	client := newFakeClient(map[string]fakeResponse{
		endpointA: {status: 200, body: `[` + item + `]`},
		endpointB: {status: 200, body: `{"statuses": [` + item + `]}`},
	})
	repo := newFakeRepo()
	svc := newTestSync(repo, twitterConfig(true, endpointA, endpointB), client)

	report, err := svc.Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, repo.count())
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Endpoints, 2)
	assert.Equal(t, 1, report.Endpoints[0].Inserted)
	assert.Equal(t, 0, report.Endpoints[1].Inserted)

	stored, err := repo.GetByExternalID(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, stored.Approved)
	assert.Equal(t, "hello", stored.Text)
	assert.Equal(t, int64(6253282), stored.UserID)
	assert.Equal(t, `{"id_str":"1","text":"hello","user":{"id":6253282,"name":"API"}}`, stored.Raw)
}

func TestSync_AutoApproveOffLeavesPending(t *testing.T) {
	client := newFakeClient(map[string]fakeResponse{
		endpointA: {status: 200, body: `[{"id_str":"7"}]`},
	})
	repo := newFakeRepo()
	_, err := newTestSync(repo, twitterConfig(false, endpointA), client).Sync(context.Background())
	require.NoError(t, err)

	stored, err := repo.GetByExternalID(context.Background(), "7")
	require.NoError(t, err)
	assert.False(t, stored.Approved)
}

func TestSync_SecondPassIsIdempotent(t *testing.T) {
	client := newFakeClient(map[string]fakeResponse{
		endpointA: {status: 200, body: `[{"id_str":"1"},{"id_str":"2"}]`},
	})
	repo := newFakeRepo()
	svc := newTestSync(repo, twitterConfig(false, endpointA), client)

	first, err := svc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Inserted)

	second, err := svc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 2, second.Skipped)
	assert.Equal(t, 2, repo.count())
}

func TestSync_SecondPassLeavesStoredRecordUntouched(t *testing.T) {
	client := newFakeClient(map[string]fakeResponse{
		endpointA: {status: 200, body: `[{"id_str":"1","text":"original","created_at":"Wed Aug 27 13:08:45 +0000 2008"}]`},
	})
	repo := newFakeRepo()
	svc := newTestSync(repo, twitterConfig(false, endpointA), client)

	_, err := svc.Sync(context.Background())
	require.NoError(t, err)
	before, err := repo.GetByExternalID(context.Background(), "1")
	require.NoError(t, err)

	client.setResponse(endpointA, fakeResponse{
		status: 200,
		body:   `[{"id_str":"1","text":"edited","created_at":"Thu Aug 28 09:00:00 +0000 2008"}]`,
	})
	report, err := svc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Inserted)
	assert.Equal(t, 1, report.Skipped)

	after, err := repo.GetByExternalID(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, "original", after.Text)
	assert.Contains(t, after.Raw, `"original"`)
	assert.Equal(t, 0, repo.updates)
}

func TestSync_RepeatedIDKeyStoresUnderDedupKey(t *testing.T) {
	client := newFakeClient(map[string]fakeResponse{
		endpointA: {status: 200, body: `[{"id_str":"1","text":"x","id_str":"2"}]`},
	})
	repo := newFakeRepo()
	svc := newTestSync(repo, twitterConfig(false, endpointA), client)

	_, err := svc.Sync(context.Background())
	require.NoError(t, err)

	stored, err := repo.GetByExternalID(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "1", stored.IDStr)
	_, err = repo.GetByExternalID(context.Background(), "2")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	report, err := svc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Inserted)
}

func TestSync_DuplicateWithinOneResponse(t *testing.T) {
	client := newFakeClient(map[string]fakeResponse{
		endpointA: {status: 200, body: `[{"id_str":"1","text":"a"},{"id_str":"1","text":"b"}]`},
	})
	repo := newFakeRepo()
	report, err := newTestSync(repo, twitterConfig(false, endpointA), client).Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Inserted)
	stored, _ := repo.GetByExternalID(context.Background(), "1")
	assert.Equal(t, "a", stored.Text, "first occurrence wins")
}

func TestSync_EmptyListIsFine(t *testing.T) {
	client := newFakeClient(map[string]fakeResponse{
		endpointA: {status: 200, body: `{"statuses": []}`},
	})
	report, err := newTestSync(newFakeRepo(), twitterConfig(false, endpointA), client).Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Inserted)
}

func TestSync_EndpointQueryIsPassedAsParams(t *testing.T) {
	client := newFakeClient(map[string]fakeResponse{
		endpointA: {status: 200, body: `[]`},
	})
	_, err := newTestSync(newFakeRepo(), twitterConfig(false, endpointA+"?count=50&q=golang"), client).Sync(context.Background())
	require.NoError(t, err)

	require.Len(t, client.params, 1)
	assert.Equal(t, "50", client.params[0].Get("count"))
	assert.Equal(t, "golang", client.params[0].Get("q"))
	assert.Equal(t, []string{"GET " + endpointA}, client.requested())
}

// =========================================================================
// FAILURES
// =========================================================================

func TestSync_StopsAtFirstFailingEndpoint(t *testing.T) {
	client := newFakeClient(map[string]fakeResponse{
		endpointA: {status: 200, body: `[{"id_str":"1"}]`},
		endpointB: {status: 403, body: `{"errors":[{"message":"Forbidden"}]}`},
		endpointC: {status: 200, body: `[{"id_str":"3"}]`},
	})
	repo := newFakeRepo()
	report, err := newTestSync(repo, twitterConfig(false, endpointA, endpointB, endpointC), client).Sync(context.Background())
	require.Error(t, err)

	var apiErr *apperror.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 403, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "Forbidden")
	assert.True(t, errors.Is(err, apperror.ErrUpstream))

	assert.Equal(t, 1, repo.count(), "first endpoint stays committed")
	assert.Equal(t, []string{"GET " + endpointA, "GET " + endpointB}, client.requested())
	require.NotNil(t, report)
	assert.Len(t, report.Endpoints, 1)
}

func TestSync_NotConfigured(t *testing.T) {
	cfg := twitterConfig(false, endpointA)
	c := cfg.Get()
	c.Twitter.ConsumerKey = ""
	cfg.Set(c)

	client := newFakeClient(nil)
	_, err := newTestSync(newFakeRepo(), cfg, client).Sync(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrNotConfigured))
	assert.Empty(t, client.requested())
}

func TestSync_TransportErrorIsReturned(t *testing.T) {
	boom := errors.New("connection refused")
	client := newFakeClient(map[string]fakeResponse{endpointA: {err: boom}})
	_, err := newTestSync(newFakeRepo(), twitterConfig(false, endpointA), client).Sync(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestSync_MalformedItems(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing id_str", `[{"id": 1}]`},
		{"numeric id_str", `[{"id_str": 1}]`},
		{"empty id_str", `[{"id_str": ""}]`},
		{"item not object", `[1, 2]`},
		{"scalar body", `"nope"`},
		{"object without statuses", `{"errors": []}`},
		{"statuses not a list", `{"statuses": {"id_str": "1"}}`},
		{"bad date", `[{"id_str": "1", "created_at": "yesterday-ish"}]`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newFakeClient(map[string]fakeResponse{endpointA: {status: 200, body: tc.body}})
			repo := newFakeRepo()
			_, err := newTestSync(repo, twitterConfig(false, endpointA), client).Sync(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrMalformed), "got %v", err)
			assert.Equal(t, 0, repo.count())
		})
	}
}

func TestSync_StoreErrorIsReturned(t *testing.T) {
	client := newFakeClient(map[string]fakeResponse{endpointA: {status: 200, body: `[{"id_str":"1"}]`}})
	repo := newFakeRepo()
	repo.createErr = errors.New("disk full")

	_, err := newTestSync(repo, twitterConfig(false, endpointA), client).Sync(context.Background())
	assert.ErrorIs(t, err, repo.createErr)
}

// =========================================================================
// ExtractItems
// =========================================================================

func TestExtractItems(t *testing.T) {
	items, err := ExtractItems([]byte(` [{"a":1},{"b":2}] `))
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = ExtractItems([]byte(`{"statuses":[{"a":1}],"search_metadata":{}}`))
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = ExtractItems(nil)
	assert.ErrorIs(t, err, apperror.ErrMalformed)
}
