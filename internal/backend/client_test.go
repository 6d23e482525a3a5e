package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tunebridge/console/internal/config"
	"github.com/tunebridge/console/internal/models"
	"github.com/tunebridge/console/internal/workflow"
)

func newTestClient(url string, retries uint64) *Client {
	return NewClient(config.BackendConfig{
		BaseURL:     url,
		Timeout:     2 * time.Second,
		ReadRetries: retries,
		RetryDelay:  time.Millisecond,
	}, zap.NewNop())
}

func TestListForwardsParamsAndToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/releases/advanced", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		q := r.URL.Query()
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "10", q.Get("limit"))
		assert.Equal(t, "live", q.Get("status"))
		assert.Equal(t, "night", q.Get("search"))
		assert.Equal(t, "asc", q.Get("sortOrder"))
		_, _ = w.Write([]byte(`{"items":[{"id":"r1","status":"live","category":"advanced","step1":{"title":"Night Drive"}}],
			"pagination":{"currentPage":2,"totalPages":7,"totalItems":64}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 0)
	page, err := c.List(context.Background(), "tok", "releases/advanced", models.ListParams{
		Page: 2, Limit: 10, Status: models.StatusLive, Search: "night", SortOrder: models.SortOldest,
	})
	require.NoError(t, err)
	assert.Equal(t, models.Pagination{CurrentPage: 2, TotalPages: 7, TotalItems: 64}, page.Pagination)

	decoded, err := DecodePage(models.EntityRelease, models.CategoryAdvanced, page)
	require.NoError(t, err)
	require.Len(t, decoded.Items, 1)
	assert.Equal(t, "Night Drive", decoded.Items[0].Name)
	assert.Equal(t, models.StatusLive, decoded.Items[0].Status)
	assert.False(t, decoded.Items[0].HasOpenRequest)
}

func TestDispatchRejectedCarriesBackendMessage(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/releases/basic/r9/takedown", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "rights dispute", body["reason"])

		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"already in takedown"}`))
	}))
	defer srv.Close()

	m, err := workflow.DefaultRegistry().Machine(models.EntityRelease)
	require.NoError(t, err)
	op, err := m.ResolveOperation(models.ActionRequestTakedown, models.CategoryBasic)
	require.NoError(t, err)

	c := newTestClient(srv.URL, 3)
	_, err = c.Dispatch(context.Background(), "tok", op, "r9", ActionBody{Reason: "rights dispute"})
	require.ErrorIs(t, err, ErrRemoteRejected)
	assert.Equal(t, "already in takedown", err.Error())
	assert.Equal(t, KindRejected, KindOf(err))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestDispatchAcknowledgementReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	op := workflow.Operation{Method: http.MethodPost, Family: "payouts", Segment: "approve"}
	raw, err := newTestClient(srv.URL, 0).Dispatch(context.Background(), "tok", op, "p1", ActionBody{})
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestNetworkErrorsAreClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := newTestClient(url, 1)
	_, err := c.Get(context.Background(), "tok", "payouts", "p1")
	require.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, KindNetwork, KindOf(err))

	op := workflow.Operation{Method: http.MethodPost, Family: "payouts", Segment: "approve"}
	_, err = c.Dispatch(context.Background(), "tok", op, "p1", ActionBody{})
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestReadsRetryButRejectionsDoNot(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("ticket not found"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 3).Get(context.Background(), "tok", "support/tickets", "t1")
	require.ErrorIs(t, err, ErrRemoteRejected)
	assert.Equal(t, "ticket not found", err.Error())
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGetUnwrapsDataEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":42,"status":"pending","name":"Studio North"}}`))
	}))
	defer srv.Close()

	raw, err := newTestClient(srv.URL, 0).Get(context.Background(), "tok", "mcn/requests", "42")
	require.NoError(t, err)

	e, err := DecodeEntity(models.EntityMCN, models.CategoryRequest, raw)
	require.NoError(t, err)
	assert.Equal(t, "42", e.ID)
	assert.Equal(t, models.CategoryRequest, e.Category)
	assert.Equal(t, "Studio North", e.Name)
}

func TestDecodeEntityOpenRequest(t *testing.T) {
	raw := json.RawMessage(`{"id":"r1","releaseStatus":"live","category":"basic","requestStatus":"pending"}`)
	e, err := DecodeEntity(models.EntityRelease, models.CategoryBasic, raw)
	require.NoError(t, err)
	assert.True(t, e.HasOpenRequest)
	assert.Equal(t, models.StatusLiveRequestOpen, e.Position())

	_, err = DecodeEntity(models.EntityRelease, models.CategoryBasic, json.RawMessage(`{"id":"r2","status":"archived"}`))
	assert.Error(t, err)
}
