// Package catalog searches an external book service and turns its results
// into book.Book values.
package catalog

import (
	"context"
	"strings"

	"nextpage/internal/book"
)

//go:generate mockgen -source=catalog.go -destination=mock_provider.go -package=catalog

// Provider is one upstream book-search service. Query returns books in
// domain shape; Client applies the shared defaults afterwards.
type Provider interface {
	Name() string
	Query(ctx context.Context, q string, limit int) ([]book.Book, error)
}

// Normalize applies the defaults every catalog result carries and upgrades
// the cover URL to https.
func Normalize(b book.Book) book.Book {
	b = b.WithDefaults()
	b.Description = strings.TrimSpace(b.Description)
	if b.Description == "" {
		b.Description = book.NoDescription
	}
	if b.CoverImage != nil {
		secure := secureURL(*b.CoverImage)
		b.CoverImage = &secure
	}
	return b
}

func secureURL(u string) string {
	u = strings.TrimSpace(u)
	if rest, ok := strings.CutPrefix(u, "http://"); ok {
		return "https://" + rest
	}
	return u
}

// JoinAuthors renders an author list the way the UI shows it.
func JoinAuthors(authors []string) string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		if a = strings.TrimSpace(a); a != "" {
			names = append(names, a)
		}
	}
	return strings.Join(names, ", ")
}

// GenreQuery is the upstream query for books in genre.
func GenreQuery(genre string) string {
	return "subject:" + strings.TrimSpace(genre)
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func first(values []string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
