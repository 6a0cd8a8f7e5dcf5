package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nextpage/internal/book"
	"nextpage/internal/platform/googlebooks"
	"nextpage/internal/platform/openlibrary"
)

const (
	ProviderGoogleBooks = "googlebooks"
	ProviderOpenLibrary = "openlibrary"
)

type googleBooksProvider struct {
	client *googlebooks.Client
}

// NewGoogleBooksProvider adapts the Google Books volumes API.
func NewGoogleBooksProvider(c *googlebooks.Client) Provider {
	return &googleBooksProvider{client: c}
}

func (p *googleBooksProvider) Name() string { return ProviderGoogleBooks }

func (p *googleBooksProvider) Query(ctx context.Context, q string, limit int) ([]book.Book, error) {
	res, err := p.client.Volumes(ctx, q, limit)
	if err != nil {
		return nil, err
	}

	books := make([]book.Book, 0, len(res.Items))
	for _, v := range res.Items {
		info := v.VolumeInfo
		b := book.Book{
			ID:            v.ID,
			Title:         info.Title,
			Author:        JoinAuthors(info.Authors),
			Genre:         first(info.Categories),
			Description:   info.Description,
			ASIN:          optional(info.ISBN10()),
			AverageRating: info.AverageRating,
		}
		if info.ImageLinks != nil {
			b.CoverImage = optional(info.ImageLinks.Thumbnail)
		}
		books = append(books, b)
	}
	return books, nil
}

type openLibraryProvider struct {
	client *openlibrary.Client
}

// NewOpenLibraryProvider adapts Open Library's search.json.
func NewOpenLibraryProvider(c *openlibrary.Client) Provider {
	return &openLibraryProvider{client: c}
}

func (p *openLibraryProvider) Name() string { return ProviderOpenLibrary }

func (p *openLibraryProvider) Query(ctx context.Context, q string, limit int) ([]book.Book, error) {
	res, err := p.client.Search(ctx, q, limit)
	if err != nil {
		return nil, err
	}

	books := make([]book.Book, 0, len(res.Docs))
	for _, d := range res.Docs {
		books = append(books, book.Book{
			ID:            strings.TrimPrefix(d.Key, "/works/"),
			Title:         d.Title,
			Author:        JoinAuthors(d.AuthorNames),
			Genre:         first(d.Subjects),
			Description:   first(d.FirstSentence),
			CoverImage:    optional(d.CoverURL()),
			ASIN:          optional(d.ASIN()),
			AverageRating: d.RatingsAverage,
		})
	}
	return books, nil
}

// ProviderOptions configures whichever upstream NewProvider builds.
type ProviderOptions struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	Timeout   time.Duration
	RPS       float64
}

// NewProvider builds the provider registered under name.
func NewProvider(name string, opts ProviderOptions) (Provider, error) {
	switch name {
	case ProviderGoogleBooks, "":
		return NewGoogleBooksProvider(googlebooks.NewClient(googlebooks.Options{
			BaseURL:   opts.BaseURL,
			APIKey:    opts.APIKey,
			UserAgent: opts.UserAgent,
			Timeout:   opts.Timeout,
			RPS:       opts.RPS,
		})), nil
	case ProviderOpenLibrary:
		return NewOpenLibraryProvider(openlibrary.NewClient(opts.BaseURL, opts.UserAgent, opts.Timeout, opts.RPS)), nil
	default:
		return nil, fmt.Errorf("unknown catalog provider %q", name)
	}
}
