package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"inventory-console/internal/client"
	"inventory-console/internal/models"
	"inventory-console/internal/normalize"
)

// writeJSONResponse is a helper function to write JSON responses
func writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse is a helper function to write error responses
func writeErrorResponse(w http.ResponseWriter, statusCode int, code, message string, details []models.ErrorDetail) {
	writeJSONResponse(w, statusCode, models.ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// writeBackendError maps a failed backend call to 404 or 502
func writeBackendError(w http.ResponseWriter, err error) {
	var statusErr *client.StatusError
	switch {
	case client.IsNotFound(err):
		writeErrorResponse(w, http.StatusNotFound, "not_found", "Item not found", nil)
	case errors.As(err, &statusErr):
		writeErrorResponse(w, http.StatusBadGateway, "backend_error", "Inventory backend rejected the request",
			[]models.ErrorDetail{{Field: "status", Issue: fmt.Sprintf("backend answered %d", statusErr.StatusCode)}})
	case errors.Is(err, normalize.ErrMalformed):
		writeErrorResponse(w, http.StatusBadGateway, "backend_error", "Inventory backend returned an unexpected response", nil)
	default:
		writeErrorResponse(w, http.StatusBadGateway, "backend_error", "Inventory backend is unavailable", nil)
	}
}

// decodeJSON reads the request body into dst, answering 400 on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		slog.Warn("Invalid JSON in request", "error", err, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid JSON", nil)
		return false
	}
	return true
}

// NewValidator returns a validator that reports JSON field names and knows notblank
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// validateRequest validates dst, answering 400 with one detail per failed field
func validateRequest(w http.ResponseWriter, v *validator.Validate, dst any) bool {
	err := v.Struct(dst)
	if err == nil {
		return true
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", err.Error(), nil)
		return false
	}

	details := make([]models.ErrorDetail, 0, len(validationErrs))
	for _, fe := range validationErrs {
		details = append(details, models.ErrorDetail{Field: fieldPath(fe), Issue: issueFor(fe)})
	}
	writeErrorResponse(w, http.StatusBadRequest, "validation", "Request validation failed", details)
	return false
}

// fieldPath drops the struct name from the namespace: ItemForm.name -> name
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func issueFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "notblank":
		return "must not be blank"
	case "min":
		if fe.Kind() == reflect.Map || fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s entries", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	default:
		return fmt.Sprintf("failed on %s validation", fe.Tag())
	}
}
