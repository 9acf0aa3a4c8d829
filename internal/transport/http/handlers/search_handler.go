package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/avukic/skolar/internal/domain"
	"github.com/avukic/skolar/internal/search"
	"github.com/avukic/skolar/internal/transport/http/middleware"
)

// ScopeAuthorizer mirrors the push transport's check: search never leaks
// messages from scopes the principal cannot read.
type ScopeAuthorizer interface {
	AuthorizeScope(ctx context.Context, p domain.Principal, scope domain.Scope) error
}

type SearchHandler struct {
	searchService *search.Service
	authorizer    ScopeAuthorizer
}

func NewSearchHandler(searchService *search.Service, authorizer ScopeAuthorizer) *SearchHandler {
	return &SearchHandler{searchService: searchService, authorizer: authorizer}
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	text := r.URL.Query().Get("q")
	if text == "" {
		writeError(w, http.StatusBadRequest, "MISSING_QUERY", "q is required")
		return
	}
	scope, err := domain.ParseScope(r.URL.Query().Get("scope"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_SCOPE", "Invalid scope")
		return
	}
	if err := h.authorizer.AuthorizeScope(r.Context(), principal, scope); err != nil {
		writeServiceError(w, "search", err)
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}
	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	resp := h.searchService.Search(r.Context(), search.Query{
		Text:   text,
		Scope:  scope,
		Limit:  limit,
		Offset: offset,
	})
	writeJSON(w, http.StatusOK, resp)
}
