package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "bytebank/internal/errors"
)

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) Token() (string, error) {
	return s.token, s.err
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	base := []Option{
		WithHTTPClient(server.Client()),
		WithRetryBackoff(time.Millisecond),
	}
	client := NewClient(server.URL, "anon-key", staticTokens{token: "tok-123"}, append(base, opts...)...)
	return client, server
}

func TestClientGet(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/transactions", r.URL.Path)
		assert.Equal(t, "eq.pending", r.URL.Query().Get("status"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"a"},{"id":"b"}]`))
	})

	var rows []map[string]string
	err := client.Get(context.Background(), "transactions", NewQuery().Eq("status", "pending"), &rows)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0]["id"])
}

func TestClientRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})

	var rows []map[string]string
	err := client.Get(context.Background(), "transactions", nil, &rows)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"message":"invalid input"}`, http.StatusBadRequest)
	})

	err := client.Get(context.Background(), "transactions", nil, &[]map[string]string{})
	assert.True(t, apperrors.HasCode(err, apperrors.NetworkBadStatus))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientDoesNotRetryMissingToken(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := NewClient(server.URL, "anon-key",
		staticTokens{err: apperrors.New(apperrors.AuthMissingToken)},
		WithHTTPClient(server.Client()),
		WithRetryBackoff(time.Millisecond),
	)

	err := client.Get(context.Background(), "transactions", nil, &[]map[string]string{})
	assert.True(t, apperrors.HasCode(err, apperrors.AuthMissingToken))
	assert.Equal(t, int32(0), calls.Load())
}

func TestClientUnauthorizedStatus(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "jwt expired", http.StatusUnauthorized)
	})

	err := client.Get(context.Background(), "transactions", nil, &[]map[string]string{})
	assert.True(t, apperrors.HasCode(err, apperrors.AuthExpiredToken))
	assert.Equal(t, int32(1), calls.Load(), "auth failures must not be retried")
}

func TestClientPostUnwrapsRepresentation(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`[{"id":"created-1","amount":2550}]`))
	})

	var created struct {
		ID     string `json:"id"`
		Amount int64  `json:"amount"`
	}
	err := client.Post(context.Background(), "transactions", map[string]any{"amount": 2550}, &created)
	require.NoError(t, err)
	assert.Equal(t, "created-1", created.ID)
	assert.Equal(t, int64(2550), created.Amount)
}

func TestClientPostWithoutRepresentation(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Prefer"))
		w.WriteHeader(http.StatusCreated)
	})

	require.NoError(t, client.Post(context.Background(), "transactions", map[string]any{"amount": 1}, nil))
}

func TestClientNormalizesEmptyResponses(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	var out map[string]string
	require.NoError(t, client.Patch(context.Background(), "transactions", NewQuery().Eq("id", "x"), map[string]any{"status": "completed"}, &out))
	assert.Nil(t, out)
}

func TestClientDelete(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "eq.tx-1", r.URL.Query().Get("id"))
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.Delete(context.Background(), "transactions", NewQuery().Eq("id", "tx-1")))
}

func TestClientCount(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		assert.Equal(t, "count=exact", r.Header.Get("Prefer"))
		w.Header().Set("Content-Range", "0-19/344")
	})

	total, err := client.Count(context.Background(), "transactions", NewQuery().Eq("status", "pending"))
	require.NoError(t, err)
	assert.Equal(t, int64(344), total)
}

func TestClientCountMissingHeader(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := client.Count(context.Background(), "transactions", nil)
	assert.True(t, apperrors.HasCode(err, apperrors.NetworkBadStatus))
}

func TestClientRecordsMetrics(t *testing.T) {
	recorder := &fakeMetrics{}
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "flaky", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}, WithMetrics(recorder))

	require.NoError(t, client.Get(context.Background(), "transactions", nil, &[]map[string]string{}))
	assert.Equal(t, int32(1), recorder.retries.Load())
	assert.Equal(t, int32(1), recorder.errors.Load())
	assert.Equal(t, int32(1), recorder.oks.Load())
}

type fakeMetrics struct {
	oks     atomic.Int32
	errors  atomic.Int32
	retries atomic.Int32
}

func (f *fakeMetrics) IncRequest(_, _, outcome string) {
	if outcome == "ok" {
		f.oks.Add(1)
	} else {
		f.errors.Add(1)
	}
}

func (f *fakeMetrics) ObserveDuration(_, _ string, _ time.Duration) {}

func (f *fakeMetrics) IncRetry(_, _ string) {
	f.retries.Add(1)
}
