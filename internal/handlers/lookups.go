package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"inventory-console/internal/cache"
	"inventory-console/internal/models"
	"inventory-console/internal/session"
)

// Lookup kinds, also the cache keys
const (
	LookupCategories    = "categories"
	LookupManufacturers = "manufacturers"
)

// LookupBackend lists and creates categories and manufacturers
type LookupBackend interface {
	Categories(ctx context.Context) ([]models.Lookup, error)
	Manufacturers(ctx context.Context) ([]models.Lookup, error)
	CreateCategory(ctx context.Context, name string) (models.Lookup, error)
	CreateManufacturer(ctx context.Context, name string) (models.Lookup, error)
}

// OperationMetrics counts write operations forwarded to the backend
type OperationMetrics interface {
	RecordBackendOperation(ctx context.Context, operation string, err error)
}

// LookupHandler serves the filter dropdown values, cached across sessions
type LookupHandler struct {
	backend  LookupBackend
	cache    *cache.TTLCache[[]models.Lookup]
	sessions *session.Store
	validate *validator.Validate
	metrics  OperationMetrics
}

// NewLookupHandler creates a new lookup handler. metrics may be nil.
func NewLookupHandler(backend LookupBackend, lookupCache *cache.TTLCache[[]models.Lookup], sessions *session.Store, validate *validator.Validate, metrics OperationMetrics) *LookupHandler {
	return &LookupHandler{
		backend:  backend,
		cache:    lookupCache,
		sessions: sessions,
		validate: validate,
		metrics:  metrics,
	}
}

// ListLookups handles GET /v1/lookups/{kind}
func (h *LookupHandler) ListLookups(w http.ResponseWriter, r *http.Request) {
	kind := mux.Vars(r)["kind"]

	if cached, ok := h.cache.Get(kind); ok {
		writeJSONResponse(w, http.StatusOK, cached)
		return
	}

	var (
		lookups []models.Lookup
		err     error
	)
	switch kind {
	case LookupCategories:
		lookups, err = h.backend.Categories(r.Context())
	case LookupManufacturers:
		lookups, err = h.backend.Manufacturers(r.Context())
	default:
		writeErrorResponse(w, http.StatusNotFound, "not_found", "Unknown lookup", nil)
		return
	}
	if err != nil {
		slog.Warn("Failed to load lookups", "kind", kind, "error", err)
		writeBackendError(w, err)
		return
	}

	h.cache.Set(kind, lookups)
	writeJSONResponse(w, http.StatusOK, lookups)
}

// CreateLookup handles POST /v1/lookups/{kind}
func (h *LookupHandler) CreateLookup(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}

	var req models.LookupRequest
	if !decodeJSON(w, r, &req) || !validateRequest(w, h.validate, &req) {
		return
	}

	kind := mux.Vars(r)["kind"]
	var (
		created models.Lookup
		err     error
		label   string
	)
	switch kind {
	case LookupCategories:
		created, err = h.backend.CreateCategory(r.Context(), req.Name)
		label = "カテゴリ"
	case LookupManufacturers:
		created, err = h.backend.CreateManufacturer(r.Context(), req.Name)
		label = "メーカー"
	default:
		writeErrorResponse(w, http.StatusNotFound, "not_found", "Unknown lookup", nil)
		return
	}
	h.recordOperation(r.Context(), "create_"+kind, err)

	if err != nil {
		slog.Warn("Failed to create lookup", "kind", kind, "session_id", sess.ID, "error", err)
		sess.Notify(models.NotificationError, "エラー", label+"の登録に失敗しました。")
		writeBackendError(w, err)
		return
	}

	h.cache.Delete(kind)
	sess.Notify(models.NotificationSuccess, "登録完了", label+"「"+created.Name+"」を登録しました。")
	slog.Info("Lookup created", "kind", kind, "id", created.ID, "session_id", sess.ID)

	writeJSONResponse(w, http.StatusCreated, created)
}

func (h *LookupHandler) recordOperation(ctx context.Context, operation string, err error) {
	if h.metrics != nil {
		h.metrics.RecordBackendOperation(ctx, operation, err)
	}
}
