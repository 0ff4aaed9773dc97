package api

import (
	"log/slog"
	"net/http"

	"socialp/internal/usecase"
)

type SearchHandlers struct {
	searchPostsUC *usecase.SearchPosts
	logger        *slog.Logger
}

func NewSearchHandlers(searchPostsUC *usecase.SearchPosts, logger *slog.Logger) *SearchHandlers {
	return &SearchHandlers{searchPostsUC: searchPostsUC, logger: logger}
}

func (h *SearchHandlers) SearchPosts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")

	docs, err := h.searchPostsUC.Execute(r.Context(), query)
	if err != nil {
		h.logger.Error("search failed", "query", query, "error", err)
		writeUsecaseError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, docs)
}
