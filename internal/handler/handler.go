package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ledgerline/installment-service/internal/middleware"
	"github.com/ledgerline/installment-service/internal/repository"
	"github.com/ledgerline/installment-service/internal/service"
)

type Handler struct {
	svc *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps service errors to status codes. Mid-sequence failures
// surface only the generic message; detail stays in the logs.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, repository.ErrInsufficientFunds):
		http.Error(w, "Insufficient funds", http.StatusConflict)
	case errors.Is(err, service.ErrDuplicateSubmission):
		http.Error(w, "Duplicate submission", http.StatusConflict)
	case errors.Is(err, repository.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	default:
		http.Error(w, "Operation failed, try again", http.StatusInternalServerError)
	}
}

// callerID reads the authenticated user id set by the auth middleware.
func callerID(r *http.Request) int64 {
	idStr, ok := r.Context().Value(middleware.UserIDKey).(string)
	if !ok {
		return 0
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
