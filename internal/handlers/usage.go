package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"inventory-console/internal/models"
	"inventory-console/internal/view"
)

// UsageResponse is the body of a successful POST /v1/usage
type UsageResponse struct {
	Recorded int        `json:"recorded"`
	View     view.State `json:"view"`
}

// RecordUsage handles POST /v1/usage - the usage input page. Zero quantities are
// dropped; after a successful write the session's list view reloads its current page.
func (h *ItemHandler) RecordUsage(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	var req models.UsageRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, h.validate, &req) {
		return
	}

	usages := make(map[int64]int, len(req.Usages))
	for id, qty := range req.Usages {
		if qty > 0 {
			usages[id] = qty
		}
	}
	if len(usages) == 0 {
		writeErrorResponse(w, http.StatusBadRequest, "validation", "Request validation failed",
			[]models.ErrorDetail{{Field: "usages", Issue: "at least one quantity must be greater than zero"}})
		return
	}

	err := h.backend.RecordUsage(r.Context(), usages)
	h.recordOperation(r.Context(), "record_usage", err)
	if err != nil {
		slog.Warn("Failed to record usage", "items", len(usages), "session_id", sess.ID, "error", err)
		sess.Notify(models.NotificationError, "エラー", "使用量の登録に失敗しました。")
		writeBackendError(w, err)
		return
	}

	slog.Info("Usage recorded", "items", len(usages), "session_id", sess.ID)
	sess.Notify(models.NotificationSuccess, "登録完了", fmt.Sprintf("%d件の使用量を登録しました。", len(usages)))

	if sess.View.State().Loaded {
		if err := sess.View.Refresh(fetchContext(r)); err != nil {
			slog.Debug("View refresh after usage did not apply", "session_id", sess.ID, "error", err)
		}
	}

	writeJSONResponse(w, http.StatusOK, UsageResponse{Recorded: len(usages), View: sess.View.State()})
}
