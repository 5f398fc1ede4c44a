package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repoknow/internal/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger, _ := logging.NewTestLogger()
	client, err := NewClient(Options{
		BaseURL:    server.URL + "/api/v1/",
		Token:      "secret",
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		Logger:     logger,
	})
	require.NoError(t, err)
	return client
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Options{})
	assert.Error(t, err)

	_, err = NewClient(Options{BaseURL: "ftp://example.com"})
	assert.Error(t, err)

	c, err := NewClient(Options{BaseURL: "https://example.com/api", MaxRetries: -1})
	require.NoError(t, err)
	assert.Equal(t, 0, c.maxRetries)
	assert.Equal(t, defaultBaseDelay, c.baseDelay)
}

func TestClient_RequestShape(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/snippets", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "getX", body["title"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": "snip-1"}`))
	})

	id, err := client.CreateSnippet(context.Background(), Snippet{Title: "getX", Code: "function getX() {}"})
	require.NoError(t, err)
	assert.Equal(t, "snip-1", id)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"id": "r1", "name": "demo"}`))
	})

	repo, err := client.GetRepository(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "demo", repo.Name)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_ClientErrorsAreNotRetried(t *testing.T) {
	tests := []struct {
		status   int
		category Category
	}{
		{http.StatusBadRequest, CategoryBadRequest},
		{http.StatusUnauthorized, CategoryUnauthorized},
		{http.StatusForbidden, CategoryForbidden},
		{http.StatusNotFound, CategoryNotFound},
		{http.StatusConflict, CategoryConflict},
		{http.StatusUnprocessableEntity, CategoryValidation},
		{http.StatusTooManyRequests, CategoryRateLimited},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			var calls atomic.Int32
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"message": "nope", "field": "name"}`))
			})

			err := client.Get(context.Background(), "projects/p1", nil, nil)
			require.Error(t, err)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.category, apiErr.Category)
			assert.Equal(t, "nope", apiErr.Message)
			assert.Equal(t, "name", apiErr.Body["field"])
			assert.Equal(t, int32(1), calls.Load())
			assert.Equal(t, tt.status == http.StatusNotFound, errors.Is(err, ErrNotFound))
		})
	}
}

func TestClient_ExhaustedRetriesAreServiceUnavailable(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	err := client.Delete(context.Background(), "files/f1", nil, nil)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, CategoryServiceUnavailable, apiErr.Category)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Equal(t, int32(3), calls.Load(), "one attempt plus two retries")
}

func TestClient_NetworkErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := server.URL
	server.Close()

	client, err := NewClient(Options{BaseURL: base, MaxRetries: 1, BaseDelay: time.Millisecond})
	require.NoError(t, err)

	err = client.Get(context.Background(), "repositories", nil, nil)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, CategoryServiceUnavailable, apiErr.Category)

	var cause *APIError
	require.True(t, errors.As(apiErr.Err, &cause))
	assert.Equal(t, CategoryNetwork, cause.Category)
}

func TestClient_QueryAndListDecoding(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("url") {
		case "https://github.com/user/demo":
			_, _ = w.Write([]byte(`{"items": [{"id": "r1", "name": "demo", "url": "https://github.com/user/demo"}]}`))
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	})

	repo, err := client.FindRepository(context.Background(), "demo", "https://github.com/user/demo")
	require.NoError(t, err)
	assert.Equal(t, "r1", repo.ID)

	_, err = client.FindRepository(context.Background(), "other", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_FindProject(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/projects", r.URL.Path)
		assert.Equal(t, url.Values{"repository_id": {"r1"}}, r.URL.Query())
		_, _ = w.Write([]byte(`{"data": [{"id": "p1", "name": "demo", "repository_id": "r1"}]}`))
	})

	project, err := client.FindProject(context.Background(), "r1", "demo")
	require.NoError(t, err)
	assert.Equal(t, "p1", project.ID)

	_, err = client.FindProject(context.Background(), "r1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_CreateWithoutID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := client.CreateFile(context.Background(), File{Name: "analysis.json"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, CategoryUnknown, apiErr.Category)
}

func TestClient_ContextCanceled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.Get(ctx, "repositories", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
