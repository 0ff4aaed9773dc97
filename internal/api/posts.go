package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"socialp/internal/api/middleware"
	"socialp/internal/usecase"

	"github.com/go-chi/chi/v5"
)

type PostHandlers struct {
	createPostUC *usecase.CreatePost
	getPostUC    *usecase.GetPost
	listPostsUC  *usecase.ListPosts
	deletePostUC *usecase.DeletePost
	logger       *slog.Logger
}

func NewPostHandlers(
	createPostUC *usecase.CreatePost,
	getPostUC *usecase.GetPost,
	listPostsUC *usecase.ListPosts,
	deletePostUC *usecase.DeletePost,
	logger *slog.Logger,
) *PostHandlers {
	return &PostHandlers{
		createPostUC: createPostUC,
		getPostUC:    getPostUC,
		listPostsUC:  listPostsUC,
		deletePostUC: deletePostUC,
		logger:       logger,
	}
}

func (h *PostHandlers) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content  string   `json:"content"`
		MediaIDs []string `json:"mediaIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.createPostUC.Execute(r.Context(), usecase.CreatePostParams{
		UserID:   middleware.UserID(r.Context()),
		Content:  req.Content,
		MediaIDs: req.MediaIDs,
	})
	if err != nil {
		h.logger.Error("create post failed", "error", err)
		writeUsecaseError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Post created successfully",
		"post":    p,
	})
}

func (h *PostHandlers) ListPosts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	result, err := h.listPostsUC.Execute(r.Context(), page, limit)
	if err != nil {
		h.logger.Error("list posts failed", "error", err)
		writeUsecaseError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *PostHandlers) GetPost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.getPostUC.Execute(r.Context(), id)
	if err != nil {
		h.logger.Error("get post failed", "post_id", id, "error", err)
		writeUsecaseError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *PostHandlers) DeletePost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.deletePostUC.Execute(r.Context(), id, middleware.UserID(r.Context())); err != nil {
		h.logger.Error("delete post failed", "post_id", id, "error", err)
		writeUsecaseError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Post deleted successfully",
	})
}
