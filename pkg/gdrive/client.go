package gdrive

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2/google"

	"github.com/Nu11ified/sync-server/pkg/cache"
	"github.com/Nu11ified/sync-server/pkg/observability"
	"github.com/Nu11ified/sync-server/pkg/platform"
	"github.com/Nu11ified/sync-server/pkg/reconcile"
)

const (
	// DefaultAPIBase is the Drive v3 REST API root.
	DefaultAPIBase = "https://www.googleapis.com/drive/v3"

	driveScope     = "https://www.googleapis.com/auth/drive"
	defaultItemTTL = 10 * time.Minute
	itemsCacheKey  = "items"
)

// Item is one entry of the storage item catalog.
type Item struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType,omitempty"`
}

// Config holds the adapter configuration.
type Config struct {
	// APIBase overrides the Drive API root, for testing.
	APIBase string
	// KeyFile is the path to a service-account JSON key. Empty means
	// simulated mode.
	KeyFile string
	// HTTPClient overrides the authenticated client, for testing.
	HTTPClient *http.Client
	// ItemTTL bounds the item catalog cache.
	ItemTTL time.Duration
	// Backoff overrides the transient retry backoff.
	Backoff time.Duration
}

// Client is the file-storage adapter.
type Client struct {
	api       *platform.Client
	items     *cache.Cache[[]Item]
	simulated bool
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// New creates the adapter. A missing key file yields a simulated client.
func New(ctx context.Context, cfg Config, logger *observability.Logger, metrics *observability.Metrics) (*Client, error) {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if cfg.ItemTTL <= 0 {
		cfg.ItemTTL = defaultItemTTL
	}

	items, err := cache.New[[]Item](cfg.ItemTTL, 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create item cache: %w", err)
	}

	c := &Client{
		items:   items,
		logger:  logger.WithField("platform", platform.GDrive),
		metrics: metrics,
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		if cfg.KeyFile == "" {
			c.simulated = true
			c.logger.Warn("no service-account key configured, running in simulated mode")
			return c, nil
		}
		httpClient, err = authenticatedClient(ctx, cfg.KeyFile)
		if err != nil {
			return nil, err
		}
	}

	c.api = platform.NewClient(platform.GDrive, cfg.APIBase,
		platform.WithHTTPClient(httpClient),
		platform.WithBackoff(cfg.Backoff),
		platform.WithMetrics(metrics),
	)
	return c, nil
}

// authenticatedClient builds an HTTP client that signs requests with the
// service account's JWT-derived access tokens.
func authenticatedClient(ctx context.Context, keyFile string) (*http.Client, error) {
	data, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read service-account key: %w", err)
	}

	jwtConfig, err := google.JWTConfigFromJSON(data, driveScope)
	if err != nil {
		return nil, fmt.Errorf("invalid service-account key %s: %w", keyFile, err)
	}

	return jwtConfig.Client(ctx), nil
}

// Simulated reports whether the adapter runs without live credentials.
func (c *Client) Simulated() bool {
	return c.simulated
}

// ListItems returns the item catalog through the TTL cache. The second
// return reports whether the catalog came from cache.
func (c *Client) ListItems(ctx context.Context) ([]Item, bool, error) {
	items, cached, err := c.items.GetOrFetch(ctx, itemsCacheKey, c.fetchItems)
	if c.metrics != nil {
		if cached {
			c.metrics.CacheHitsTotal.WithLabelValues("items").Inc()
		} else {
			c.metrics.CacheMissesTotal.WithLabelValues("items").Inc()
		}
	}
	return items, cached, err
}

// SetPermission grants (or changes) the identity's access level on an item.
// Drive treats a second permission create for the same user as an update, so
// a level change is a single call here too.
func (c *Client) SetPermission(ctx context.Context, identity, itemID string, level reconcile.AccessLevel) error {
	if c.simulated {
		return nil
	}

	body := map[string]string{
		"role":         string(level),
		"type":         "user",
		"emailAddress": identity,
	}
	path := fmt.Sprintf("/files/%s/permissions?sendNotificationEmail=false", url.PathEscape(itemID))
	return c.api.PostJSON(ctx, path, body, nil)
}

// RevokePermission removes the identity's access to an item. A permission
// that no longer exists is treated as already revoked.
func (c *Client) RevokePermission(ctx context.Context, identity, itemID string) error {
	if c.simulated {
		return nil
	}

	var response struct {
		Permissions []struct {
			ID           string `json:"id"`
			EmailAddress string `json:"emailAddress"`
		} `json:"permissions"`
	}
	listPath := fmt.Sprintf("/files/%s/permissions?fields=permissions(id,emailAddress)", url.PathEscape(itemID))
	if err := c.api.GetJSON(ctx, listPath, &response); err != nil {
		return err
	}

	for _, permission := range response.Permissions {
		if strings.EqualFold(permission.EmailAddress, identity) {
			deletePath := fmt.Sprintf("/files/%s/permissions/%s", url.PathEscape(itemID), url.PathEscape(permission.ID))
			return c.api.Delete(ctx, deletePath)
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"item_id":  itemID,
		"identity": identity,
	}).Debug("permission already absent, nothing to revoke")
	return nil
}

func (c *Client) fetchItems(ctx context.Context) ([]Item, error) {
	if c.simulated {
		return []Item{
			{ID: "item_id_1", Name: "Shared Documents", MimeType: "application/vnd.google-apps.folder"},
			{ID: "item_id_2", Name: "Meeting Notes", MimeType: "application/vnd.google-apps.document"},
		}, nil
	}

	var response struct {
		Files []Item `json:"files"`
	}
	if err := c.api.GetJSON(ctx, "/files?fields=files(id,name,mimeType)&pageSize=200", &response); err != nil {
		return nil, err
	}
	return response.Files, nil
}

var _ reconcile.StoragePlatform = (*Client)(nil)
