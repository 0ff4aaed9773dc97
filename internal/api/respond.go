package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"socialp/internal/domain/media"
	"socialp/internal/domain/post"
	"socialp/internal/usecase"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Success: false, Message: message})
}

// writeUsecaseError maps domain errors to status codes. Anything unknown is
// a 500 with a generic message.
func writeUsecaseError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, usecase.ErrInvalidPost), errors.Is(err, usecase.ErrInvalidMedia):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, post.ErrNotFound):
		writeError(w, http.StatusNotFound, "Post not found")
	case errors.Is(err, media.ErrNotFound):
		writeError(w, http.StatusNotFound, "Media not found")
	case errors.Is(err, post.ErrForbidden):
		writeError(w, http.StatusForbidden, "You can only delete your own posts")
	default:
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
