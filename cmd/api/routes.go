package main

import (
	"context"
	"net/http"
	"time"

	"nextpage/internal/catalog"
	"nextpage/internal/config"
	"nextpage/internal/httpx"
	"nextpage/internal/library"
	"nextpage/internal/recommend"
	"nextpage/internal/storefront"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type services struct {
	store     *library.Store
	catalog   *catalog.Client
	typeahead *catalog.Typeahead
	engine    *recommend.Engine
	linker    *storefront.Linker
}

func newRouter(s services) *http.ServeMux {
	libraryHandler := library.NewHTTPHandler(s.store, s.linker)
	catalogHandler := catalog.NewHTTPHandler(s.catalog, s.typeahead, s.linker)
	recommendHandler := recommend.NewHTTPHandler(s.engine, s.linker)

	router := http.NewServeMux()

	router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := s.store.Ready(ctx); err != nil {
			httpx.JSONError(w, r, http.StatusServiceUnavailable, httpx.CodeUnavailable, "Storage not ready", nil)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	router.Handle("GET /metrics", promhttp.Handler())

	router.HandleFunc("GET /v1/library", libraryHandler.Get)
	router.HandleFunc("POST /v1/library/read", libraryHandler.AddRead)
	router.HandleFunc("DELETE /v1/library/read/{id}", libraryHandler.RemoveRead)
	router.HandleFunc("PATCH /v1/library/read/{id}/rating", libraryHandler.UpdateRating)
	router.HandleFunc("POST /v1/library/read/{id}/reading-list", libraryHandler.MoveToReadingList)
	router.HandleFunc("POST /v1/library/reading-list", libraryHandler.AddToReadingList)
	router.HandleFunc("DELETE /v1/library/reading-list/{id}", libraryHandler.RemoveFromReadingList)
	router.HandleFunc("POST /v1/library/reading-list/{id}/read", libraryHandler.MarkAsRead)
	router.HandleFunc("PUT /v1/library/feedback/{id}", libraryHandler.SetFeedback)

	router.HandleFunc("GET /v1/catalog/search", catalogHandler.Search)
	router.HandleFunc("GET /v1/catalog/suggest", catalogHandler.Suggest)

	router.HandleFunc("GET /v1/recommendations", recommendHandler.List)
	router.HandleFunc("GET /v1/ratings/labels", libraryHandler.RatingLabels)

	return router
}

// withMiddleware wraps h in the standard chain, outermost first.
func withMiddleware(h http.Handler, cfg config.ServerConfig, limiter *httpx.RateLimitMiddleware) http.Handler {
	return httpx.Chain(h,
		httpx.RequestIDMiddleware,
		httpx.AccessLogMiddleware,
		httpx.RecoveryMiddleware,
		httpx.CORSMiddleware(cfg.CORSOrigins),
		httpx.SecurityHeadersMiddleware(cfg.EnableHSTS),
		limiter.Middleware,
		httpx.RequestSizeLimitMiddleware(cfg.MaxBodyBytes),
	)
}
