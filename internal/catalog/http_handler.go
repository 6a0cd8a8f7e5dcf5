package catalog

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"nextpage/internal/book"
	"nextpage/internal/debounce"
	"nextpage/internal/httpx"
	"nextpage/internal/logging"
	"nextpage/internal/storefront"
)

type HTTPHandler struct {
	client    *Client
	typeahead *Typeahead
	linker    *storefront.Linker
}

func NewHTTPHandler(client *Client, typeahead *Typeahead, linker *storefront.Linker) *HTTPHandler {
	return &HTTPHandler{client: client, typeahead: typeahead, linker: linker}
}

type bookView struct {
	book.Book
	BuyLink storefront.Link `json:"buyLink"`
}

func (h *HTTPHandler) views(books []book.Book) []bookView {
	out := make([]bookView, len(books))
	for i, b := range books {
		out[i] = bookView{Book: b, BuyLink: h.linker.Link(b.ASIN)}
	}
	return out
}

// Search handles GET /v1/catalog/search?q=
func (h *HTTPHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))

	books := h.client.Search(r.Context(), q)

	httpx.JSONSuccess(w, r, h.views(books), map[string]any{
		"query":    q,
		"total":    len(books),
		"provider": h.client.Provider(),
	})
}

// Suggest handles GET /v1/catalog/suggest?q=&client=
//
// A request replaced by a newer one from the same client answers 200 with
// meta.superseded=true and no data.
func (h *HTTPHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := strings.TrimSpace(query.Get("q"))
	clientKey := strings.TrimSpace(query.Get("client"))
	if clientKey == "" {
		clientKey = remoteHost(r)
	}

	books, err := h.typeahead.Suggest(r.Context(), clientKey, q)
	switch {
	case errors.Is(err, debounce.ErrSuperseded):
		httpx.JSONSuccess(w, r, []bookView{}, map[string]any{
			"query":      q,
			"superseded": true,
		})
		return
	case err != nil:
		// The client went away while we were waiting.
		logging.Ctx(r.Context()).Debug().Err(err).Str("query", q).Msg("suggest abandoned")
		return
	}

	httpx.JSONSuccess(w, r, h.views(books), map[string]any{
		"query":      q,
		"total":      len(books),
		"superseded": false,
	})
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
