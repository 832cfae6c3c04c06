package utils

import (
	"errors"
	"net/http"

	"github.com/konsulta-ph/Konsulta-server/cmd/models"
)

// WriteDomainError maps the typed domain errors onto HTTP status codes. Every
// handler funnels service errors through here so the mapping stays in one place.
func WriteDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrInsufficientBalance):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrSettlement):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, models.ErrStateConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, models.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, models.ErrForbidden):
		http.Error(w, "Insufficient permissions", http.StatusForbidden)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
