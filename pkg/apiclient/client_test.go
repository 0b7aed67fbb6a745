package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	client := New("http://localhost:8080/")
	assert.Equal(t, "http://localhost:8080", client.baseURL)
}

func TestWithToken(t *testing.T) {
	client := New("http://localhost:8080")
	tokenClient := client.WithToken("test-token")

	assert.Empty(t, client.token)
	assert.Equal(t, "test-token", tokenClient.token)
	assert.Equal(t, "http://localhost:8080", tokenClient.baseURL)
}

func TestOptions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "querykit/1.2.3", r.Header.Get("User-Agent"))
	}))
	defer server.Close()

	hc := &http.Client{}
	client := New(server.URL, WithHTTPClient(hc), WithUserAgent("querykit/1.2.3"))
	assert.Same(t, hc, client.httpClient)
	require.NoError(t, client.get(context.Background(), "/", nil))

	assert.Equal(t, "querykit-cli", New(server.URL).userAgent)
}

func TestDoWithAuthHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Empty(t, r.Header.Get("Content-Type"), "GET has no body")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := New(server.URL).WithToken("test-token").get(context.Background(), "/test", nil)
	require.NoError(t, err)
}

func TestDoWithProblem(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"type": "about:blank", "title": "Forbidden", "status": 403, "detail": "Insufficient role",
		})
	}))
	defer server.Close()

	_, err := New(server.URL).CacheStats(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "Insufficient role", apiErr.Detail)
	assert.True(t, apiErr.IsAuthError())
	assert.False(t, apiErr.IsNotFound())
}

func TestDoWithPlainError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := New(server.URL).WorkerStats(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Bad Gateway", apiErr.Title)
	assert.Equal(t, "upstream down", apiErr.Detail)
}

func TestQuery_BuildsURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/query/posts", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "open", q.Get("status"))
		assert.Equal(t, "id", q.Get("sort"))
		assert.Equal(t, "true", q.Get("desc"))
		assert.Equal(t, "5", q.Get("limit"))
		assert.Equal(t, "id,title", q.Get("select"))
		assert.False(t, q.Has("offset"))
		_ = json.NewEncoder(w).Encode(QueryResult{Table: "posts", Count: 0, Rows: []map[string]any{}})
	}))
	defer server.Close()

	res, err := New(server.URL).Query(context.Background(), "posts",
		map[string]string{"status": "open"},
		QueryOptions{Sort: "id", Desc: true, Limit: 5, Select: []string{"id", "title"}})
	require.NoError(t, err)
	assert.Equal(t, "posts", res.Table)
}
