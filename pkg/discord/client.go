package discord

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/Nu11ified/sync-server/pkg/cache"
	"github.com/Nu11ified/sync-server/pkg/observability"
	"github.com/Nu11ified/sync-server/pkg/platform"
	"github.com/Nu11ified/sync-server/pkg/reconcile"
)

const (
	// DefaultAPIBase is the Discord REST API root.
	DefaultAPIBase = "https://discord.com/api/v10"

	defaultRoleTTL     = 5 * time.Minute
	defaultMaxGuilds   = 64
	simulatedCommunity = "simulated"
)

// Config holds the adapter configuration.
type Config struct {
	// APIBase overrides the Discord API root, for testing.
	APIBase string
	// BotToken authenticates the adapter. Empty means simulated mode.
	BotToken string
	// RoleTTL bounds the role catalog cache.
	RoleTTL time.Duration
	// Backoff overrides the transient retry backoff.
	Backoff time.Duration
}

// Client is the chat-platform adapter.
type Client struct {
	api       *platform.Client
	roles     *cache.Cache[[]reconcile.Role]
	simulated bool
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// role is the subset of Discord's role object the engine needs.
type role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// member is the subset of Discord's guild member object the engine needs.
type member struct {
	Roles []string `json:"roles"`
}

// New creates the adapter. A missing bot token yields a simulated client.
func New(cfg Config, logger *observability.Logger, metrics *observability.Metrics) (*Client, error) {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if cfg.RoleTTL <= 0 {
		cfg.RoleTTL = defaultRoleTTL
	}

	roles, err := cache.New[[]reconcile.Role](cfg.RoleTTL, defaultMaxGuilds)
	if err != nil {
		return nil, fmt.Errorf("failed to create role cache: %w", err)
	}

	c := &Client{
		roles:     roles,
		simulated: cfg.BotToken == "",
		logger:    logger.WithField("platform", platform.Discord),
		metrics:   metrics,
	}

	if c.simulated {
		c.logger.Warn("no bot token configured, running in simulated mode")
		return c, nil
	}

	c.api = platform.NewClient(platform.Discord, cfg.APIBase,
		platform.WithHeader("Authorization", "Bot "+cfg.BotToken),
		platform.WithBackoff(cfg.Backoff),
		platform.WithMetrics(metrics),
	)
	return c, nil
}

// Simulated reports whether the adapter runs without live credentials.
func (c *Client) Simulated() bool {
	return c.simulated
}

// ListRoles returns the role catalog for a community, served through the
// TTL cache. The second return reports whether the catalog came from cache.
func (c *Client) ListRoles(ctx context.Context, communityID string) ([]reconcile.Role, bool, error) {
	roles, cached, err := c.roles.GetOrFetch(ctx, communityID, func(ctx context.Context) ([]reconcile.Role, error) {
		return c.fetchRoles(ctx, communityID)
	})
	if c.metrics != nil {
		if cached {
			c.metrics.CacheHitsTotal.WithLabelValues("roles").Inc()
		} else {
			c.metrics.CacheMissesTotal.WithLabelValues("roles").Inc()
		}
	}
	return roles, cached, err
}

// GetUserRoles returns the member's current roles. Always a live fetch:
// reconciliation must never act on a stale role set.
func (c *Client) GetUserRoles(ctx context.Context, communityID, chatUserID string) ([]reconcile.Role, error) {
	if c.simulated {
		return simulatedRoles(communityID), nil
	}

	var m member
	path := fmt.Sprintf("/guilds/%s/members/%s", url.PathEscape(communityID), url.PathEscape(chatUserID))
	if err := c.api.GetJSON(ctx, path, &m); err != nil {
		return nil, err
	}

	// Join against the cached catalog so roles carry their names.
	catalog, _, err := c.ListRoles(ctx, communityID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(catalog))
	for _, r := range catalog {
		names[r.ID] = r.Name
	}

	roles := make([]reconcile.Role, 0, len(m.Roles))
	for _, id := range m.Roles {
		roles = append(roles, reconcile.Role{
			ID:          id,
			Name:        names[id],
			CommunityID: communityID,
		})
	}
	return roles, nil
}

func (c *Client) fetchRoles(ctx context.Context, communityID string) ([]reconcile.Role, error) {
	if c.simulated {
		return simulatedRoles(communityID), nil
	}

	var raw []role
	path := fmt.Sprintf("/guilds/%s/roles", url.PathEscape(communityID))
	if err := c.api.GetJSON(ctx, path, &raw); err != nil {
		return nil, err
	}

	roles := make([]reconcile.Role, 0, len(raw))
	for _, r := range raw {
		roles = append(roles, reconcile.Role{ID: r.ID, Name: r.Name, CommunityID: communityID})
	}
	return roles, nil
}

// simulatedRoles is the fixed catalog served without credentials.
func simulatedRoles(communityID string) []reconcile.Role {
	if communityID == "" {
		communityID = simulatedCommunity
	}
	return []reconcile.Role{
		{ID: "role_id_1", Name: "Member", CommunityID: communityID},
		{ID: "role_id_2", Name: "Moderator", CommunityID: communityID},
	}
}

var _ reconcile.ChatPlatform = (*Client)(nil)
