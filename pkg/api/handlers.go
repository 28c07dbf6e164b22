package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Nu11ified/sync-server/pkg/httputil"
	"github.com/Nu11ified/sync-server/pkg/observability"
	"github.com/Nu11ified/sync-server/pkg/platform"
	"github.com/Nu11ified/sync-server/pkg/reconcile"
)

// SyncRequest is the body of a sync trigger
type SyncRequest struct {
	CommunityID string `json:"community_id"`
	ChatUserID  string `json:"chat_user_id"`
}

// triggerSync runs a reconciliation for one user in one community
func (s *Server) triggerSync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.CommunityID == "" || req.ChatUserID == "" {
		httputil.WriteBadRequest(w, "community_id and chat_user_id are required")
		return
	}

	logger := observability.FromContext(r.Context())
	result, err := s.runner.Run(r.Context(), req.CommunityID, req.ChatUserID)
	if err != nil {
		logger.WithError(err).WithFields(map[string]any{
			"community_id": req.CommunityID,
			"chat_user_id": req.ChatUserID,
		}).Warn("sync run aborted")

		switch {
		case errors.Is(err, reconcile.ErrUnlinkedUser):
			httputil.WriteNotFound(w, err.Error())
		case errors.Is(err, reconcile.ErrSourceUnavailable),
			errors.Is(err, reconcile.ErrMappingUnavailable):
			httputil.WriteBadGateway(w, err.Error())
		default:
			httputil.WriteInternalError(w, err)
		}
		return
	}

	httputil.WriteSuccess(w, result)
}

// listRoles returns the cached role catalog for a community
func (s *Server) listRoles(w http.ResponseWriter, r *http.Request) {
	communityID := r.URL.Query().Get("community_id")
	if communityID == "" {
		httputil.WriteBadRequest(w, "community_id query parameter is required")
		return
	}

	roles, cached, err := s.chat.ListRoles(r.Context(), communityID)
	if err != nil {
		httputil.WriteBadGateway(w, err.Error())
		return
	}

	httputil.WriteSuccess(w, map[string]any{
		"cached": cached,
		"roles":  roles,
	})
}

// listGroups returns the cached voice server-group catalog
func (s *Server) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, cached, err := s.voice.ListGroups(r.Context())
	if err != nil {
		httputil.WriteBadGateway(w, err.Error())
		return
	}

	httputil.WriteSuccess(w, map[string]any{
		"cached": cached,
		"groups": groups,
	})
}

// listItems returns the cached storage item catalog
func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	items, cached, err := s.storage.ListItems(r.Context())
	if err != nil {
		httputil.WriteBadGateway(w, err.Error())
		return
	}

	httputil.WriteSuccess(w, map[string]any{
		"cached": cached,
		"items":  items,
	})
}

// healthCheck reports liveness and the mode of each platform adapter
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, map[string]any{
		"status":  "ok",
		"service": "sync-server",
		"platforms": map[string]string{
			platform.Discord:   adapterMode(s.chat.Simulated()),
			platform.GDrive:    adapterMode(s.storage.Simulated()),
			platform.TeamSpeak: adapterMode(s.voice.Simulated()),
		},
	})
}

func adapterMode(simulated bool) string {
	if simulated {
		return "simulated"
	}
	return "live"
}
