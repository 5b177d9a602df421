package api

import (
	"net/http"
	"strconv"
)

// handleListNotifications returns a user's notifications in creation order.
// The service carries no sessions, so the caller names the user explicitly.
func (a *API) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	if err != nil || userID <= 0 {
		writeError(w, http.StatusBadRequest, "valid userId is required")
		return
	}

	notifications, err := a.inbox.NotificationsForUser(r.Context(), userID)
	if err != nil {
		a.internalError(w, r, err, "failed to list notifications", "user_id", userID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": notifications,
		"count":         len(notifications),
	})
}
