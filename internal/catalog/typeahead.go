package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"nextpage/internal/book"
	"nextpage/internal/debounce"
	"nextpage/internal/metrics"
)

const DefaultSuggestWindow = 500 * time.Millisecond

// Typeahead is search-as-you-type: a query only reaches the catalog once the
// same client has stopped typing for the window.
type Typeahead struct {
	client *Client
	group  *debounce.Group
}

func NewTypeahead(client *Client, window time.Duration) *Typeahead {
	if window <= 0 {
		window = DefaultSuggestWindow
	}
	return &Typeahead{
		client: client,
		group:  debounce.NewGroup(window),
	}
}

// Suggest waits out the debounce window for clientKey and then searches. It
// returns debounce.ErrSuperseded when a newer call for the same key replaced
// this one. Queries below the minimum length return an empty result without
// waiting, and cancel whatever the client had pending.
func (t *Typeahead) Suggest(ctx context.Context, clientKey, q string) ([]book.Book, error) {
	q = strings.TrimSpace(q)
	if !t.client.Searchable(q) {
		t.group.Cancel(clientKey)
		return []book.Book{}, nil
	}

	if err := t.group.Wait(ctx, clientKey); err != nil {
		if errors.Is(err, debounce.ErrSuperseded) {
			metrics.SuggestSuperseded.Inc()
		}
		return nil, err
	}
	return t.client.Search(ctx, q), nil
}
