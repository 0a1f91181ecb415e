package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"inventory-console/internal/middleware"
	"inventory-console/internal/models"
	"inventory-console/internal/query"
	"inventory-console/internal/session"
	"inventory-console/internal/view"
)

// ViewHandler exposes the list view of the caller's session
type ViewHandler struct {
	sessions *session.Store
	validate *validator.Validate
	pageSize int
}

// NewViewHandler creates a new view handler
func NewViewHandler(sessions *session.Store, validate *validator.Validate, pageSize int) *ViewHandler {
	return &ViewHandler{sessions: sessions, validate: validate, pageSize: pageSize}
}

// sessionFor returns the caller's session, answering 400 when the session middleware did not run
func sessionFor(w http.ResponseWriter, r *http.Request, sessions *session.Store) (*session.Session, bool) {
	id := middleware.SessionID(r.Context())
	if id == "" {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Missing view session", nil)
		return nil, false
	}
	return sessions.Get(id), true
}

// fetchContext keeps a fetch alive when the browser goes away mid request,
// so an abandoned request is discarded instead of reported as a failure
func fetchContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

// respondState writes the view state. Load failures and stale responses are
// already surfaced through the notification feed and still answer 200.
func (h *ViewHandler) respondState(w http.ResponseWriter, sess *session.Session, err error) {
	switch {
	case err == nil, errors.Is(err, view.ErrLoadFailed), errors.Is(err, view.ErrStaleResponse):
		writeJSONResponse(w, http.StatusOK, sess.View.State())
	case errors.Is(err, view.ErrInvalidSortField):
		writeErrorResponse(w, http.StatusBadRequest, "validation", "Unknown sort field",
			[]models.ErrorDetail{{Field: "field", Issue: err.Error()}})
	case errors.Is(err, view.ErrInvalidFilter):
		writeErrorResponse(w, http.StatusBadRequest, "validation", "Unknown filter field",
			[]models.ErrorDetail{{Field: "field", Issue: err.Error()}})
	default:
		slog.Error("Unexpected view error", "session_id", sess.ID, "error", err)
		writeErrorResponse(w, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
	}
}

// GetView handles GET /v1/view. The first call mounts the view; a query string with any of
// page, per_page, the filters, sortField or sortOrder loads exactly those parameters.
// Other keys are ignored.
func (h *ViewHandler) GetView(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	var err error
	if values := r.URL.Query(); query.HasSelection(values) {
		_, err = sess.View.Load(fetchContext(r), query.FromValues(values, h.pageSize))
	} else {
		err = sess.View.Mount(fetchContext(r))
	}
	h.respondState(w, sess, err)
}

// Search handles POST /v1/view/search - replace all filters
func (h *ViewHandler) Search(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	var filters query.Filters
	if !decodeJSON(w, r, &filters) {
		return
	}

	slog.Debug("View search", "session_id", sess.ID, "search_term", filters.SearchTerm)
	h.respondState(w, sess, sess.View.Search(fetchContext(r), filters))
}

// SetFilter handles POST /v1/view/filter - change a single filter
func (h *ViewHandler) SetFilter(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	var req models.ViewFilterRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, h.validate, &req) {
		return
	}

	h.respondState(w, sess, sess.View.SetFilter(fetchContext(r), query.Filter(req.Field), req.Value))
}

// ToggleSort handles POST /v1/view/sort - column header click
func (h *ViewHandler) ToggleSort(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	var req models.ViewSortRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, h.validate, &req) {
		return
	}

	h.respondState(w, sess, sess.View.ToggleSort(fetchContext(r), query.SortField(req.Field)))
}

// GoToPage handles POST /v1/view/page. Out of range pages are ignored.
func (h *ViewHandler) GoToPage(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	var req models.ViewPageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	_, err := sess.View.GoTo(fetchContext(r), req.Page)
	h.respondState(w, sess, err)
}

// Refresh handles POST /v1/view/refresh - reload with the current parameters
func (h *ViewHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}
	h.respondState(w, sess, sess.View.Refresh(fetchContext(r)))
}
