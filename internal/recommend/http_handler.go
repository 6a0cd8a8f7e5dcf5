package recommend

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"nextpage/internal/book"
	"nextpage/internal/httpx"
	"nextpage/internal/storefront"
)

const maxLimit = 50

type HTTPHandler struct {
	engine *Engine
	linker *storefront.Linker
}

func NewHTTPHandler(engine *Engine, linker *storefront.Linker) *HTTPHandler {
	return &HTTPHandler{engine: engine, linker: linker}
}

type recommendationView struct {
	book.Recommendation
	BuyLink storefront.Link `json:"buyLink"`
}

// List handles GET /v1/recommendations?limit=&genre=&refresh=
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxLimit {
			httpx.JSONError(w, r, http.StatusBadRequest, httpx.CodeValidation, "Invalid query parameters", []httpx.ErrorDetail{
				{Field: "limit", Message: "limit must be an integer between 1 and " + strconv.Itoa(maxLimit)},
			})
			return
		}
		limit = n
	}

	if refresh, _ := strconv.ParseBool(query.Get("refresh")); refresh {
		// Failures are already logged and leave an empty ranking behind.
		if _, err := h.engine.Recompute(r.Context()); err != nil && !errors.Is(err, ErrStale) {
			httpx.JSONSuccess(w, r, []recommendationView{}, map[string]any{"state": h.engine.State()})
			return
		}
	}

	var recs []book.Recommendation
	if genre := strings.TrimSpace(query.Get("genre")); genre != "" {
		recs = h.engine.ByGenre(genre)
		if limit > 0 && len(recs) > limit {
			recs = recs[:limit]
		}
	} else {
		recs = h.engine.Top(limit)
	}

	views := make([]recommendationView, len(recs))
	for i, rec := range recs {
		views[i] = recommendationView{Recommendation: rec, BuyLink: h.linker.Link(rec.ASIN)}
	}

	httpx.JSONSuccess(w, r, views, map[string]any{
		"total": len(views),
		"state": h.engine.State(),
	})
}
