package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"inventory-console/internal/models"
	"inventory-console/internal/session"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 100
	maxWaitSeconds           = 60
)

// NotificationsHandler serves the notification feed of the caller's session
type NotificationsHandler struct {
	sessions *session.Store
}

// NewNotificationsHandler creates a new notifications handler
func NewNotificationsHandler(sessions *session.Store) *NotificationsHandler {
	return &NotificationsHandler{sessions: sessions}
}

// GetNotifications handles GET /v1/notifications?offset=&limit=&wait=
// With wait > 0 and nothing new, the request blocks until a notification arrives or wait seconds pass.
func (h *NotificationsHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	params := r.URL.Query()

	var offset int64
	if offsetStr := params.Get("offset"); offsetStr != "" {
		parsed, err := strconv.ParseInt(offsetStr, 10, 64)
		if err != nil || parsed < 0 {
			writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid offset parameter", nil)
			return
		}
		offset = parsed
	}

	limit := defaultNotificationLimit
	if parsed, err := strconv.Atoi(params.Get("limit")); err == nil && parsed > 0 && parsed <= maxNotificationLimit {
		limit = parsed
	}

	waitSeconds := 0
	if parsed, err := strconv.Atoi(params.Get("wait")); err == nil && parsed >= 0 && parsed <= maxWaitSeconds {
		waitSeconds = parsed
	}

	notifications, nextOffset, hasMore := sess.Feed.Get(offset, limit)

	if len(notifications) == 0 && waitSeconds > 0 {
		ready, stopWaiting := sess.Feed.WaitFor(nextOffset, time.Duration(waitSeconds)*time.Second)
		defer stopWaiting()

		select {
		case <-ready:
			notifications, nextOffset, hasMore = sess.Feed.Get(offset, limit)
		case <-r.Context().Done():
			slog.Debug("Client disconnected during long polling", "session_id", sess.ID, "offset", offset)
			return
		}
	}

	writeJSONResponse(w, http.StatusOK, models.NotificationsResponse{
		Notifications: notifications,
		NextOffset:    nextOffset,
		HasMore:       hasMore,
		Count:         len(notifications),
		Pending:       sess.Feed.Pending(),
	})
}

// Dismiss handles POST /v1/notifications/{id}/dismiss
func (h *NotificationsHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	id := mux.Vars(r)["id"]
	if !sess.Feed.Dismiss(id) {
		writeErrorResponse(w, http.StatusNotFound, "not_found", "Notification not found", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
