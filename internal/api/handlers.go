package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/pulsetrail/aggregator/internal/apperr"
	"github.com/pulsetrail/aggregator/internal/materialize"
	"github.com/pulsetrail/aggregator/internal/models"
	"github.com/pulsetrail/aggregator/internal/snapshot"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireOwnUser enforces that the caller's authenticated user-id matches
// the path's {user_id}.
func requireOwnUser(w http.ResponseWriter, r *http.Request, pathUserID string) bool {
	if AuthedUserID(r.Context()) != pathUserID {
		writeError(w, http.StatusForbidden, string(apperr.KindForbidden), "not authorized for this user")
		return false
	}
	return true
}

// handleGetTimeline implements `GET /timeline/{user_id}` with optional
// inclusive `from`/`to` date bounds.
func (s *Server) handleGetTimeline(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	if !requireOwnUser(w, r, userID) {
		return
	}

	snap, err := s.readTimeline(r, userID)
	if err != nil {
		if err == snapshot.ErrNotFound {
			writeError(w, http.StatusNotFound, string(apperr.KindNotFound), "no timeline for user")
			return
		}
		writePipelineError(w, err)
		return
	}

	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from != "" || to != "" {
		snap = materialize.WindowByDate(snap, from, to)
	}

	writeJSON(w, http.StatusOK, snap)
}

// handleGetRawSnapshot implements
// `GET /timeline/{user_id}/raw/{platform}?account_id={id}`, verifying the
// requested account belongs to the caller's user-id before returning the
// latest RawSnapshot.
func (s *Server) handleGetRawSnapshot(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	if !requireOwnUser(w, r, userID) {
		return
	}

	platform := models.Platform(mux.Vars(r)["platform"])
	if !platform.Valid() {
		writeError(w, http.StatusBadRequest, string(apperr.KindValidation), "unknown platform")
		return
	}

	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, string(apperr.KindValidation), "account_id is required")
		return
	}

	owner, err := s.owners.GetAccountOwnerUserID(r.Context(), accountID)
	if err != nil {
		writePipelineError(w, err)
		return
	}
	if owner != userID {
		writeError(w, http.StatusForbidden, string(apperr.KindForbidden), "account does not belong to this user")
		return
	}

	meta, data, err := s.snapshots.GetLatest(r.Context(), snapshot.RawStoreID(platform, accountID))
	if err != nil {
		if err == snapshot.ErrNotFound {
			writeError(w, http.StatusNotFound, string(apperr.KindNotFound), "no raw snapshot for account")
			return
		}
		writePipelineError(w, err)
		return
	}

	var payload json.RawMessage = data
	writeJSON(w, http.StatusOK, map[string]any{"meta": meta, "data": payload})
}

// handleRefresh implements the on-demand refresh trigger: it runs the
// identical fetch+materialize sequence the scheduler's tick uses,
// synchronously, for one user's accounts.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]
	if !requireOwnUser(w, r, userID) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.refreshTimeout)
	defer cancel()

	if err := s.refresher.RefreshUser(ctx, userID); err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refreshed"})
}

func (s *Server) readTimeline(r *http.Request, userID string) (models.TimelineSnapshot, error) {
	_, data, err := s.snapshots.GetLatest(r.Context(), snapshot.TimelineStoreID(userID))
	if err != nil {
		return models.TimelineSnapshot{}, err
	}
	var snap models.TimelineSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return models.TimelineSnapshot{}, apperr.Wrap(apperr.KindParseError, "unmarshal timeline snapshot", err)
	}
	return snap, nil
}
