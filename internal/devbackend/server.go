package devbackend

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"inventory-console/internal/cache"
	"inventory-console/internal/middleware"
	"inventory-console/internal/models"
	"inventory-console/internal/query"
)

// maxPerPage caps per_page the way a real backend would
const maxPerPage = 100

// ServerOptions configures the fixture backend's HTTP surface
type ServerOptions struct {
	// Latency delays every response, simulating a slow backend
	Latency time.Duration
	// APIKeys, when non-empty, are required in X-API-Key
	APIKeys []string
	// ReplayTTL is how long a usage request id is remembered
	ReplayTTL time.Duration
}

// Server serves the inventory backend API from a Store
type Server struct {
	store   *Store
	opts    ServerOptions
	replays *cache.TTLCache[int]
}

// NewServer creates the fixture backend
func NewServer(store *Store, opts ServerOptions) *Server {
	if opts.ReplayTTL <= 0 {
		opts.ReplayTTL = 10 * time.Minute
	}
	return &Server{
		store:   store,
		opts:    opts,
		replays: cache.NewTTLCache[int]("usage-replays", opts.ReplayTTL, time.Minute),
	}
}

// Close stops the replay cache janitor
func (s *Server) Close() {
	s.replays.Stop()
}

// Handler returns the routed API
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.APIKeyMiddleware(s.opts.APIKeys))
	api.Use(s.latency)

	api.HandleFunc("/inventory/items", s.listItems).Methods(http.MethodGet)
	api.HandleFunc("/inventory/items", s.createItem).Methods(http.MethodPost)
	api.HandleFunc("/inventory/items/{id:[0-9]+}", s.getItem).Methods(http.MethodGet)
	api.HandleFunc("/inventory/items/{id:[0-9]+}", s.updateItem).Methods(http.MethodPut)
	api.HandleFunc("/inventory/usage", s.recordUsage).Methods(http.MethodPost)
	api.HandleFunc("/categories", s.listCategories).Methods(http.MethodGet)
	api.HandleFunc("/categories", s.createCategory).Methods(http.MethodPost)
	api.HandleFunc("/manufacturers", s.listManufacturers).Methods(http.MethodGet)
	api.HandleFunc("/manufacturers", s.createManufacturer).Methods(http.MethodPost)

	return r
}

func (s *Server) latency(next http.Handler) http.Handler {
	if s.opts.Latency <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := time.NewTimer(s.opts.Latency)
		defer timer.Stop()
		select {
		case <-timer.C:
			next.ServeHTTP(w, r)
		case <-r.Context().Done():
		}
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, models.ErrorResponse{Code: code, Message: message})
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ErrInvalid):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, ErrDuplicate):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, ErrInsufficientStock):
		writeError(w, http.StatusConflict, "insufficient_stock", err.Error())
	default:
		slog.Error("Unexpected store error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	params := query.FromValues(r.URL.Query(), query.DefaultPageSize)
	params.PageSize = min(params.PageSize, maxPerPage)

	records, total := s.store.List(params)
	items := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		items = append(items, s.rawItem(rec))
	}

	slog.Debug("Listed items",
		"page", params.Page,
		"per_page", params.PageSize,
		"returned", len(items),
		"total_items", total)

	writeJSON(w, http.StatusOK, map[string]any{
		"items":       items,
		"total_items": total,
	})
}

func itemID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil
}

func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid item id")
		return
	}
	rec, err := s.store.Get(id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": s.rawItem(rec)})
}

func decodeItemPayload(w http.ResponseWriter, r *http.Request) (models.ItemForm, bool) {
	var payload models.ItemPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid JSON")
		return models.ItemForm{}, false
	}
	return payload.Item, true
}

func (s *Server) createItem(w http.ResponseWriter, r *http.Request) {
	form, ok := decodeItemPayload(w, r)
	if !ok {
		return
	}
	rec, err := s.store.Create(form)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	slog.Info("Item created", "item_id", rec.ID, "name", rec.Name)
	writeJSON(w, http.StatusCreated, s.rawItem(rec))
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid item id")
		return
	}
	form, ok := decodeItemPayload(w, r)
	if !ok {
		return
	}
	rec, err := s.store.Update(id, form)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	slog.Info("Item updated", "item_id", rec.ID)
	writeJSON(w, http.StatusOK, s.rawItem(rec))
}

// recordUsage applies {"<id>": qty}. A repeated request id gets the first answer
// without applying the usage twice.
func (s *Server) recordUsage(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("Idempotency-Key")
	if requestID == "" {
		requestID = r.Header.Get("X-Request-ID")
	}
	if requestID != "" {
		if status, seen := s.replays.Get(requestID); seen {
			slog.Info("Replaying usage request", "request_id", requestID, "status", status)
			writeJSON(w, status, map[string]any{"replayed": true})
			return
		}
	}

	var raw map[string]int
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid JSON")
		return
	}
	usages := make(map[int64]int, len(raw))
	for key, qty := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "Invalid item id "+strconv.Quote(key))
			return
		}
		usages[id] = qty
	}
	if len(usages) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "No usages given")
		return
	}

	if err := s.store.RecordUsage(usages); err != nil {
		writeStoreError(w, err)
		return
	}
	if requestID != "" {
		s.replays.Set(requestID, http.StatusOK)
	}

	slog.Info("Usage recorded", "request_id", requestID, "items", len(usages))
	writeJSON(w, http.StatusOK, map[string]any{"recorded": len(usages)})
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Categories())
}

func (s *Server) listManufacturers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Manufacturers())
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	s.createLookup(w, r, s.store.CreateCategory)
}

func (s *Server) createManufacturer(w http.ResponseWriter, r *http.Request) {
	s.createLookup(w, r, s.store.CreateManufacturer)
}

func (s *Server) createLookup(w http.ResponseWriter, r *http.Request, create func(string) (models.Lookup, error)) {
	var req models.LookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid JSON")
		return
	}
	created, err := create(req.Name)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}
