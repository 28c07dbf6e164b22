package platform

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientRetriesTransientOnce(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(Discord, srv.URL, WithBackoff(time.Millisecond))

	var out struct {
		OK bool `json:"ok"`
	}
	err := c.GetJSON(context.Background(), "/roles", &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, int64(2), calls.Load())
}

func TestClientGivesUpAfterSecondTransientFailure(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Discord, srv.URL, WithBackoff(time.Millisecond))

	err := c.GetJSON(context.Background(), "/roles", nil)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, int64(2), calls.Load())
}

func TestClientDoesNotRetryPermanent(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(GDrive, srv.URL, WithBackoff(time.Millisecond))

	err := c.PostJSON(context.Background(), "/permissions", map[string]string{"role": "reader"}, nil)
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
	assert.Equal(t, int64(1), calls.Load())
}

func TestClientSendsConfiguredHeaders(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(Discord, srv.URL, WithHeader("Authorization", "Bot token-123"))
	require.NoError(t, c.GetJSON(context.Background(), "/", nil))
	assert.Equal(t, "Bot token-123", gotAuth)
}

func TestClientHonorsContextCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := NewClient(TeamSpeak, srv.URL, WithBackoff(time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.GetJSON(ctx, "/groups", nil)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
}

func TestClientRetryReencodesBody(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 64)
		n, _ := r.Body.Read(buf)
		bodies = append(bodies, string(buf[:n]))
		if len(bodies) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(GDrive, srv.URL, WithBackoff(time.Millisecond))
	require.NoError(t, c.PostJSON(context.Background(), "/p", map[string]string{"a": "b"}, nil))

	require.Len(t, bodies, 2)
	assert.Equal(t, bodies[0], bodies[1])
	assert.Contains(t, bodies[1], `"a":"b"`)
}
