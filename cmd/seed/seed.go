package main

import (
	"context"
	"fmt"
	"strings"

	"nextpage/internal/book"
	"nextpage/internal/library"
	"nextpage/internal/rating"
)

const (
	targetReadingList = "reading-list"
	targetRead        = "read"

	maxLimit = 40
)

type genreQuerier interface {
	QueryByGenre(ctx context.Context, genre string, limit int) ([]book.Book, error)
}

type options struct {
	Genre  string
	Limit  int
	Target string
	Rating float64
}

func (o options) validate() error {
	if strings.TrimSpace(o.Genre) == "" {
		return fmt.Errorf("genre is required")
	}
	if o.Limit < 1 || o.Limit > maxLimit {
		return fmt.Errorf("limit must be between 1 and %d", maxLimit)
	}
	switch o.Target {
	case targetReadingList:
	case targetRead:
		if err := rating.Validate(o.Rating); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown target %q", o.Target)
	}
	return nil
}

type result struct {
	Fetched int
	Added   int
	Skipped int
}

// seed imports a genre query into the library. Books already present in
// either collection are skipped so running it twice changes nothing.
func seed(ctx context.Context, store *library.Store, catalog genreQuerier, opts options) (result, error) {
	if err := opts.validate(); err != nil {
		return result{}, err
	}

	books, err := catalog.QueryByGenre(ctx, opts.Genre, opts.Limit)
	if err != nil {
		return result{}, fmt.Errorf("query %q: %w", opts.Genre, err)
	}

	res := result{Fetched: len(books)}
	for _, b := range books {
		if b.ID == "" || store.Snapshot().Owns(b.ID) {
			res.Skipped++
			continue
		}

		if opts.Target == targetRead {
			r := opts.Rating
			_, err = store.AddReadBook(ctx, b, &r)
		} else {
			_, err = store.AddToReadingList(ctx, b)
		}
		if err != nil {
			return res, fmt.Errorf("add %q: %w", b.ID, err)
		}
		res.Added++
	}
	return res, nil
}
