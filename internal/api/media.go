package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"socialp/internal/api/middleware"
	"socialp/internal/usecase"

	"github.com/go-chi/chi/v5"
)

const maxUploadSize = 5 << 20

type MediaHandlers struct {
	uploadMediaUC *usecase.UploadMedia
	getMediaUC    *usecase.GetMedia
	listMediaUC   *usecase.ListMedia
	logger        *slog.Logger
}

func NewMediaHandlers(
	uploadMediaUC *usecase.UploadMedia,
	getMediaUC *usecase.GetMedia,
	listMediaUC *usecase.ListMedia,
	logger *slog.Logger,
) *MediaHandlers {
	return &MediaHandlers{
		uploadMediaUC: uploadMediaUC,
		getMediaUC:    getMediaUC,
		listMediaUC:   listMediaUC,
		logger:        logger,
	}
}

func (h *MediaHandlers) UploadMedia(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file found. Please add a file and try again!")
		return
	}
	defer file.Close()

	m, err := h.uploadMediaUC.Execute(r.Context(), usecase.UploadMediaParams{
		UserID:       middleware.UserID(r.Context()),
		OriginalName: header.Filename,
		MimeType:     header.Header.Get("Content-Type"),
		File:         file,
	})
	if err != nil {
		h.logger.Error("upload media failed", "file", header.Filename, "error", err)
		writeUsecaseError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"mediaId": m.ID,
		"url":     m.URL,
		"message": "Media upload is successfully",
	})
}

func (h *MediaHandlers) GetMedia(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	m, err := h.getMediaUC.Execute(r.Context(), id)
	if err != nil {
		h.logger.Error("get media failed", "media_id", id, "error", err)
		writeUsecaseError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, m)
}

func (h *MediaHandlers) ListMedia(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	items, err := h.listMediaUC.Execute(r.Context(), limit)
	if err != nil {
		h.logger.Error("list media failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Error fetching media")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": items})
}
