package discord

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nu11ified/sync-server/pkg/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func TestSimulatedModeWithoutToken(t *testing.T) {
	c, err := New(Config{}, testLogger(), nil)
	require.NoError(t, err)
	assert.True(t, c.Simulated())

	roles, _, err := c.ListRoles(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, "Member", roles[0].Name)
	assert.Equal(t, "c1", roles[0].CommunityID)

	live, err := c.GetUserRoles(context.Background(), "c1", "user-1")
	require.NoError(t, err)
	assert.Len(t, live, 2)
}

func TestListRolesCaching(t *testing.T) {
	var catalogFetches atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/guilds/c1/roles":
			catalogFetches.Add(1)
			json.NewEncoder(w).Encode([]map[string]string{
				{"id": "r1", "name": "Member"},
				{"id": "r2", "name": "Moderator"},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c, err := New(Config{APIBase: srv.URL, BotToken: "token", RoleTTL: time.Minute}, testLogger(), nil)
	require.NoError(t, err)
	assert.False(t, c.Simulated())

	roles, cached, err := c.ListRoles(context.Background(), "c1")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Len(t, roles, 2)

	_, cached, err = c.ListRoles(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, int64(1), catalogFetches.Load())
}

func TestGetUserRolesJoinsCatalogNames(t *testing.T) {
	var memberFetches atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/guilds/c1/roles":
			json.NewEncoder(w).Encode([]map[string]string{
				{"id": "r1", "name": "Member"},
				{"id": "r2", "name": "Moderator"},
			})
		case "/guilds/c1/members/user-1":
			memberFetches.Add(1)
			assert.Equal(t, "Bot token", r.Header.Get("Authorization"))
			json.NewEncoder(w).Encode(map[string]interface{}{"roles": []string{"r2"}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c, err := New(Config{APIBase: srv.URL, BotToken: "token"}, testLogger(), nil)
	require.NoError(t, err)

	roles, err := c.GetUserRoles(context.Background(), "c1", "user-1")
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, "r2", roles[0].ID)
	assert.Equal(t, "Moderator", roles[0].Name)

	// Member state is never cached: a second call fetches live again.
	_, err = c.GetUserRoles(context.Background(), "c1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), memberFetches.Load())
}

func TestGetUserRolesUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	c, err := New(Config{APIBase: srv.URL, BotToken: "token"}, testLogger(), nil)
	require.NoError(t, err)

	_, err = c.GetUserRoles(context.Background(), "c1", "user-1")
	assert.Error(t, err)
}
