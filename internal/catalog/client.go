package catalog

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"nextpage/internal/book"
	"nextpage/internal/logging"
	"nextpage/internal/metrics"

	gobreaker "github.com/sony/gobreaker/v2"
)

const (
	DefaultMinQueryLen     = 3
	DefaultSearchLimit     = 20
	DefaultBreakerFailures = 5
	DefaultBreakerTimeout  = 30 * time.Second
)

const (
	opSearch = "search"
	opGenre  = "genre"
)

type Options struct {
	MinQueryLen     int
	SearchLimit     int
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

func (o *Options) applyDefaults() {
	if o.MinQueryLen <= 0 {
		o.MinQueryLen = DefaultMinQueryLen
	}
	if o.SearchLimit <= 0 {
		o.SearchLimit = DefaultSearchLimit
	}
	if o.BreakerFailures == 0 {
		o.BreakerFailures = DefaultBreakerFailures
	}
	if o.BreakerTimeout <= 0 {
		o.BreakerTimeout = DefaultBreakerTimeout
	}
}

// Client runs catalog queries through a circuit breaker. It never retries:
// a failed call is reported once and the caller gets an empty result.
type Client struct {
	provider Provider
	opts     Options
	cb       *gobreaker.CircuitBreaker[[]book.Book]
}

func NewClient(p Provider, opts Options) *Client {
	opts.applyDefaults()
	name := "catalog-" + p.Name()

	metrics.CatalogBreakerOpen.Set(0)

	cb := gobreaker.NewCircuitBreaker[[]book.Book](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.BreakerFailures
		},
		// A caller giving up is not an upstream failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("catalog circuit breaker state change")
			if to == gobreaker.StateOpen {
				metrics.CatalogBreakerOpen.Set(1)
			} else {
				metrics.CatalogBreakerOpen.Set(0)
			}
		},
	})

	return &Client{provider: p, opts: opts, cb: cb}
}

// Provider returns the name of the upstream in use.
func (c *Client) Provider() string {
	return c.provider.Name()
}

// MinQueryLen is the shortest trimmed query, in runes, that reaches the
// upstream.
func (c *Client) MinQueryLen() int {
	return c.opts.MinQueryLen
}

// Searchable reports whether q is long enough to search for.
func (c *Client) Searchable(q string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(q)) >= c.opts.MinQueryLen
}

// Search runs a free-text query. Short queries, upstream errors and empty
// responses all yield an empty slice.
func (c *Client) Search(ctx context.Context, q string) []book.Book {
	q = strings.TrimSpace(q)
	if !c.Searchable(q) {
		return []book.Book{}
	}

	books, err := c.query(ctx, opSearch, q, c.opts.SearchLimit)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("provider", c.provider.Name()).
			Str("query", q).
			Msg("catalog search failed")
		return []book.Book{}
	}
	return books
}

// QueryByGenre fetches up to limit books in genre. Unlike Search it returns
// the upstream error so the caller can account for it.
func (c *Client) QueryByGenre(ctx context.Context, genre string, limit int) ([]book.Book, error) {
	return c.query(ctx, opGenre, GenreQuery(genre), limit)
}

func (c *Client) query(ctx context.Context, op, q string, limit int) ([]book.Book, error) {
	start := time.Now()
	books, err := c.cb.Execute(func() ([]book.Book, error) {
		return c.provider.Query(ctx, q, limit)
	})
	duration := time.Since(start)

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordCatalogRequest(c.provider.Name(), op, "rejected", duration)
		return nil, err
	case err != nil:
		metrics.RecordCatalogRequest(c.provider.Name(), op, "error", duration)
		return nil, err
	case len(books) == 0:
		metrics.RecordCatalogRequest(c.provider.Name(), op, "empty", duration)
		return []book.Book{}, nil
	}
	metrics.RecordCatalogRequest(c.provider.Name(), op, "ok", duration)

	out := make([]book.Book, len(books))
	for i, b := range books {
		out[i] = Normalize(b)
	}
	return out, nil
}
