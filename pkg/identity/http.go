package identity

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Nu11ified/sync-server/pkg/platform"
	"github.com/Nu11ified/sync-server/pkg/reconcile"
)

// HTTPStore delegates identity/mapping storage to a remote store's internal
// JSON API, using the shared retrying client.
type HTTPStore struct {
	client *platform.Client
}

// NewHTTPStore creates a store client rooted at baseURL.
func NewHTTPStore(baseURL string, opts ...platform.ClientOption) *HTTPStore {
	return &HTTPStore{
		client: platform.NewClient("store", baseURL, opts...),
	}
}

// GetIdentity implements reconcile.Store.
func (s *HTTPStore) GetIdentity(ctx context.Context, chatUserID string) (*reconcile.UserIdentity, error) {
	var identity reconcile.UserIdentity
	err := s.client.GetJSON(ctx, "/internal/identity/"+url.PathEscape(chatUserID), &identity)
	if err != nil {
		if platform.StatusCode(err) == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", reconcile.ErrUnlinkedUser, chatUserID)
		}
		return nil, err
	}
	return &identity, nil
}

// GetMappings implements reconcile.Store.
func (s *HTTPStore) GetMappings(ctx context.Context, communityID string) ([]reconcile.MappingEntry, error) {
	var response struct {
		Mappings []reconcile.MappingEntry `json:"mappings"`
	}
	if err := s.client.GetJSON(ctx, "/internal/mappings/"+url.PathEscape(communityID), &response); err != nil {
		return nil, err
	}
	return response.Mappings, nil
}

// GetAppliedSet implements reconcile.Store.
func (s *HTTPStore) GetAppliedSet(ctx context.Context, internalUserID, communityID string) (*reconcile.PermissionSet, error) {
	set := reconcile.NewPermissionSet()
	err := s.client.GetJSON(ctx, appliedPath(internalUserID, communityID), set)
	if err != nil {
		if platform.StatusCode(err) == http.StatusNotFound {
			return reconcile.NewPermissionSet(), nil
		}
		return nil, err
	}
	return set, nil
}

// SaveAppliedSet implements reconcile.Store.
func (s *HTTPStore) SaveAppliedSet(ctx context.Context, internalUserID, communityID string, set *reconcile.PermissionSet) error {
	return s.client.PostJSON(ctx, appliedPath(internalUserID, communityID), set, nil)
}

// GetRoleSnapshot implements reconcile.Store.
func (s *HTTPStore) GetRoleSnapshot(ctx context.Context, internalUserID, communityID string) (*reconcile.RoleSnapshot, error) {
	var snapshot reconcile.RoleSnapshot
	err := s.client.GetJSON(ctx, snapshotPath(internalUserID, communityID), &snapshot)
	if err != nil {
		if platform.StatusCode(err) == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &snapshot, nil
}

// SaveRoleSnapshot implements reconcile.Store.
func (s *HTTPStore) SaveRoleSnapshot(ctx context.Context, snapshot *reconcile.RoleSnapshot) error {
	return s.client.PostJSON(ctx, snapshotPath(snapshot.InternalUserID, snapshot.CommunityID), snapshot, nil)
}

func appliedPath(internalUserID, communityID string) string {
	return fmt.Sprintf("/internal/applied/%s/%s", url.PathEscape(internalUserID), url.PathEscape(communityID))
}

func snapshotPath(internalUserID, communityID string) string {
	return fmt.Sprintf("/internal/snapshot/%s/%s", url.PathEscape(internalUserID), url.PathEscape(communityID))
}

var _ reconcile.Store = (*HTTPStore)(nil)
