package handlers

import (
	"context"
	"net/http"

	"github.com/markdave123-py/contexta-ingest/internal/models"
)

type Searcher interface {
	Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error)
}

type SearchHandler struct {
	search Searcher
}

func NewSearchHandler(search Searcher) *SearchHandler {
	return &SearchHandler{search: search}
}

type searchBody struct {
	Query          string `json:"query"`
	Limit          int    `json:"limit"`
	FilterCategory string `json:"filter_category"`
	FilterMetier   string `json:"filter_metier"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var body searchBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	resp, err := h.search.Search(r.Context(), models.SearchRequest{
		Query: body.Query,
		Limit: body.Limit,
		Filters: models.SearchFilters{
			Category: body.FilterCategory,
			Metier:   body.FilterMetier,
		},
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
