package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"inventory-console/internal/models"
	"inventory-console/internal/session"
)

// ItemBackend reads and writes single items
type ItemBackend interface {
	GetItem(ctx context.Context, id int64) (models.InventoryItem, error)
	CreateItem(ctx context.Context, form models.ItemForm) (models.InventoryItem, error)
	UpdateItem(ctx context.Context, id int64, form models.ItemForm) (models.InventoryItem, error)
	RecordUsage(ctx context.Context, usages map[int64]int) error
}

// ItemHandler handles item registration and editing
type ItemHandler struct {
	backend  ItemBackend
	sessions *session.Store
	validate *validator.Validate
	metrics  OperationMetrics
}

// NewItemHandler creates a new item handler. metrics may be nil.
func NewItemHandler(backend ItemBackend, sessions *session.Store, validate *validator.Validate, metrics OperationMetrics) *ItemHandler {
	return &ItemHandler{backend: backend, sessions: sessions, validate: validate, metrics: metrics}
}

func parseItemID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid item id", nil)
		return 0, false
	}
	return id, true
}

// GetItem handles GET /v1/items/{id} - load an item into the edit form
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := parseItemID(w, r)
	if !ok {
		return
	}

	item, err := h.backend.GetItem(r.Context(), id)
	if err != nil {
		slog.Warn("Failed to get item", "id", id, "error", err)
		writeBackendError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, item)
}

// CreateItem handles POST /v1/items - item registration form
func (h *ItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	var form models.ItemForm
	if !decodeJSON(w, r, &form) || !validateRequest(w, h.validate, &form) {
		return
	}

	item, err := h.backend.CreateItem(r.Context(), form)
	h.recordOperation(r.Context(), "create_item", err)
	if err != nil {
		slog.Warn("Failed to create item", "name", form.Name, "session_id", sess.ID, "error", err)
		sess.Notify(models.NotificationError, "エラー", "商品の登録に失敗しました。")
		writeBackendError(w, err)
		return
	}

	slog.Info("Item created", "id", item.ID, "name", item.Name, "session_id", sess.ID)
	sess.Notify(models.NotificationSuccess, "登録完了", "「"+item.Name+"」を登録しました。")
	writeJSONResponse(w, http.StatusCreated, item)
}

// UpdateItem handles PUT /v1/items/{id} - item edit form
func (h *ItemHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}
	id, ok := parseItemID(w, r)
	if !ok {
		return
	}

	var form models.ItemForm
	if !decodeJSON(w, r, &form) || !validateRequest(w, h.validate, &form) {
		return
	}

	item, err := h.backend.UpdateItem(r.Context(), id, form)
	h.recordOperation(r.Context(), "update_item", err)
	if err != nil {
		slog.Warn("Failed to update item", "id", id, "session_id", sess.ID, "error", err)
		sess.Notify(models.NotificationError, "エラー", "商品の更新に失敗しました。")
		writeBackendError(w, err)
		return
	}

	slog.Info("Item updated", "id", item.ID, "session_id", sess.ID)
	sess.Notify(models.NotificationSuccess, "更新完了", "「"+item.Name+"」を更新しました。")
	writeJSONResponse(w, http.StatusOK, item)
}

func (h *ItemHandler) recordOperation(ctx context.Context, operation string, err error) {
	if h.metrics != nil {
		h.metrics.RecordBackendOperation(ctx, operation, err)
	}
}
