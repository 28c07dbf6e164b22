package teamspeak

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Nu11ified/sync-server/pkg/cache"
	"github.com/Nu11ified/sync-server/pkg/observability"
	"github.com/Nu11ified/sync-server/pkg/platform"
	"github.com/Nu11ified/sync-server/pkg/reconcile"
)

const (
	defaultGroupTTL = 5 * time.Minute
	groupsCacheKey  = "groups"

	// errDuplicateEntry is returned by servergroupaddclient when the
	// client already holds the group.
	errDuplicateEntry = 2561
)

// Group is one entry of the voice server-group catalog.
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Config holds the adapter configuration.
type Config struct {
	Host     string
	Port     int
	ServerID int
	Login    string
	Password string
	// GroupTTL bounds the group catalog cache.
	GroupTTL time.Duration
	// Backoff overrides the transient retry backoff.
	Backoff time.Duration
}

// Client is the voice-server adapter.
type Client struct {
	cfg       Config
	groups    *cache.Cache[[]Group]
	simulated bool
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// New creates the adapter. Missing query credentials yield a simulated
// client.
func New(cfg Config, logger *observability.Logger, metrics *observability.Metrics) (*Client, error) {
	if cfg.Port == 0 {
		cfg.Port = 10011
	}
	if cfg.ServerID == 0 {
		cfg.ServerID = 1
	}
	if cfg.GroupTTL <= 0 {
		cfg.GroupTTL = defaultGroupTTL
	}

	groups, err := cache.New[[]Group](cfg.GroupTTL, 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create group cache: %w", err)
	}

	c := &Client{
		cfg:       cfg,
		groups:    groups,
		simulated: cfg.Host == "" || cfg.Login == "" || cfg.Password == "",
		logger:    logger.WithField("platform", platform.TeamSpeak),
		metrics:   metrics,
	}
	if c.simulated {
		c.logger.Warn("no query credentials configured, running in simulated mode")
	}
	return c, nil
}

// Simulated reports whether the adapter runs without live credentials.
func (c *Client) Simulated() bool {
	return c.simulated
}

// ListGroups returns the regular server-group catalog through the TTL
// cache. The second return reports whether the catalog came from cache.
func (c *Client) ListGroups(ctx context.Context) ([]Group, bool, error) {
	groups, cached, err := c.groups.GetOrFetch(ctx, groupsCacheKey, c.fetchGroups)
	if c.metrics != nil {
		if cached {
			c.metrics.CacheHitsTotal.WithLabelValues("groups").Inc()
		} else {
			c.metrics.CacheMissesTotal.WithLabelValues("groups").Inc()
		}
	}
	return groups, cached, err
}

// AddToGroup adds the client identified by uniqueID to a server group.
// Membership that already exists counts as success.
func (c *Client) AddToGroup(ctx context.Context, uniqueID, groupID string) error {
	if c.simulated {
		return nil
	}

	return platform.Retry(ctx, c.cfg.Backoff, func() error {
		err := c.withSession(ctx, func(s *session) error {
			dbID, err := c.resolveDatabaseID(s, uniqueID)
			if err != nil {
				return err
			}
			_, err = s.exec(fmt.Sprintf("servergroupaddclient sgid=%s cldbid=%s", escape(groupID), dbID))
			return err
		})

		var qe *queryError
		if errors.As(err, &qe) && qe.ID == errDuplicateEntry {
			return nil
		}
		return wrapOpErr("servergroupaddclient", err)
	})
}

// RemoveFromGroup removes the client identified by uniqueID from a server
// group.
func (c *Client) RemoveFromGroup(ctx context.Context, uniqueID, groupID string) error {
	if c.simulated {
		return nil
	}

	return platform.Retry(ctx, c.cfg.Backoff, func() error {
		err := c.withSession(ctx, func(s *session) error {
			dbID, err := c.resolveDatabaseID(s, uniqueID)
			if err != nil {
				return err
			}
			_, err = s.exec(fmt.Sprintf("servergroupdelclient sgid=%s cldbid=%s", escape(groupID), dbID))
			return err
		})
		return wrapOpErr("servergroupdelclient", err)
	})
}

func (c *Client) fetchGroups(ctx context.Context) ([]Group, error) {
	if c.simulated {
		return []Group{
			{ID: "group_id_1", Name: "Member"},
			{ID: "group_id_2", Name: "Moderator"},
		}, nil
	}

	var groups []Group
	err := platform.Retry(ctx, c.cfg.Backoff, func() error {
		groups = groups[:0]
		err := c.withSession(ctx, func(s *session) error {
			rows, err := s.exec("servergrouplist")
			if err != nil {
				return err
			}
			for _, row := range rows {
				// type 1 is a regular server group; skip query and
				// template groups.
				if row["type"] != "1" {
					continue
				}
				groups = append(groups, Group{ID: row["sgid"], Name: row["name"]})
			}
			return nil
		})
		return wrapOpErr("servergrouplist", err)
	})
	return groups, err
}

// resolveDatabaseID maps a client unique identifier to its database ID,
// which the group commands require.
func (c *Client) resolveDatabaseID(s *session, uniqueID string) (string, error) {
	rows, err := s.exec(fmt.Sprintf("clientgetdbidfromuid cluid=%s", escape(uniqueID)))
	if err != nil {
		return "", err
	}
	if len(rows) == 0 || rows[0]["cldbid"] == "" {
		return "", &queryError{ID: 512, Message: "client not found"}
	}
	return rows[0]["cldbid"], nil
}

// withSession runs fn inside a fresh query session.
func (c *Client) withSession(ctx context.Context, fn func(*session) error) error {
	s, err := dial(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

// wrapOpErr classifies errors that escaped the session layer unclassified.
func wrapOpErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *platform.Error
	if errors.As(err, &pe) {
		return err
	}
	return wrapQueryErr(op, err)
}

var _ reconcile.VoicePlatform = (*Client)(nil)
