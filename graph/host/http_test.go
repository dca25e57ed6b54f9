package host

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/flowchart-go/graph"
)

func TestHTTP_Request(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Order", r.URL.Query().Get("order"))
		w.Header().Set("X-Auth", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(r.Method + " " + string(body)))
	}))
	defer server.Close()

	act := HTTP("notify", HTTPRequest{
		Method:  "post",
		URL:     server.URL + "/hook?order=${order}",
		Headers: map[string]string{"Authorization": "Bearer ${token}"},
		Body:    `{"order":"${order}"}`,
	})

	got, err := act.attempt(context.Background(), Variables{"order": 42, "token": "abc"})
	require.NoError(t, err)

	result := got.(map[string]any)
	assert.Equal(t, http.StatusAccepted, result["status_code"])
	assert.Equal(t, `POST {"order":"42"}`, result["body"])
	headers := result["headers"].(map[string]any)
	assert.Equal(t, "42", headers["X-Order"])
	assert.Equal(t, "Bearer abc", headers["X-Auth"])
}

func TestHTTP_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		req  HTTPRequest
	}{
		{"missing url", HTTPRequest{}},
		{"unsupported method", HTTPRequest{Method: "DELETE", URL: "http://localhost"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := HTTP("bad", tt.req).attempt(context.Background(), Variables{})
			require.Error(t, err)
		})
	}
}

func TestHTTP_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	act := HTTP("fetch", HTTPRequest{URL: server.URL}).
		WithRetry(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}).
		WithTimeout(time.Second).
		Into("response")

	rt, err := New(compile(t, &graph.Flowchart{Name: "fetch", Start: graph.NewStep("fetch", act)}))
	require.NoError(t, err)

	status, err := rt.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, graph.StatusCompleted, status)
	assert.Equal(t, int32(3), hits.Load())

	response := rt.Variables()["response"].(map[string]any)
	assert.Equal(t, "ok", response["body"])
}

func TestHTTP_ServerErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := HTTP("fetch", HTTPRequest{URL: server.URL}).attempt(context.Background(), Variables{})
	require.ErrorIs(t, err, ErrServerStatus)
}

func TestExpand(t *testing.T) {
	vars := Variables{"id": 7, "name": "ada", "empty": nil}

	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"/users/${id}", "/users/7"},
		{"${name}-${id}", "ada-7"},
		{"${missing}x", "x"},
		{"${empty}", ""},
		{"broken ${id", "broken ${id"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, expand(tt.in, vars), tt.in)
	}
}
