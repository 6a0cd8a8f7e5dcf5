package book

import (
	"strings"
	"time"
)

// Defaults applied when a source leaves a field empty.
const (
	UnknownTitle       = "Unknown Title"
	UnknownAuthor      = "Unknown Author"
	UnknownGenre       = "Unknown"
	NoDescription      = "No description available."
	DefaultReadRating  = 5.0
	DefaultTargetGenre = "fiction"
)

// Book is a title as returned by the catalog or entered by the user.
type Book struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	Genre       string  `json:"genre"`
	Description string  `json:"description,omitempty"`
	CoverImage  *string `json:"coverImage"`
	ASIN        *string `json:"asin"`

	// AverageRating is the upstream community rating (1-5) when the catalog
	// reports one. It is not the user's rating.
	AverageRating *float64 `json:"averageRating,omitempty"`
}

// ReadBook is a book the user finished, with their personal rating in [0,5].
type ReadBook struct {
	Book
	Rating    float64   `json:"rating"`
	DateAdded time.Time `json:"dateAdded"`
}

// ReadingListEntry is a book the user intends to read. Entries are kept in
// insertion order.
type ReadingListEntry struct {
	Book
}

// Recommendation is a scored catalog candidate. It is never persisted.
type Recommendation struct {
	Book
	Score           float64 `json:"score"`
	SimilarityScore float64 `json:"similarityScore"`
	Reasoning       string  `json:"reasoning"`
}

// FeedbackKind is a like/dislike signal on a book id.
type FeedbackKind string

const (
	FeedbackLike    FeedbackKind = "like"
	FeedbackDislike FeedbackKind = "dislike"
)

// Valid reports whether k is one of the known feedback kinds.
func (k FeedbackKind) Valid() bool {
	return k == FeedbackLike || k == FeedbackDislike
}

// Feedback maps book ids to the user's signal. Absent means neutral.
type Feedback map[string]FeedbackKind

// Clone returns an independent copy of f.
func (f Feedback) Clone() Feedback {
	out := make(Feedback, len(f))
	for id, kind := range f {
		out[id] = kind
	}
	return out
}

// WithDefaults fills the fields the UI never leaves blank.
func (b Book) WithDefaults() Book {
	b.Title = strings.TrimSpace(b.Title)
	if b.Title == "" {
		b.Title = UnknownTitle
	}
	b.Author = strings.TrimSpace(b.Author)
	if b.Author == "" {
		b.Author = UnknownAuthor
	}
	b.Genre = strings.TrimSpace(b.Genre)
	if b.Genre == "" {
		b.Genre = UnknownGenre
	}
	if b.CoverImage != nil && strings.TrimSpace(*b.CoverImage) == "" {
		b.CoverImage = nil
	}
	if b.ASIN != nil && strings.TrimSpace(*b.ASIN) == "" {
		b.ASIN = nil
	}
	return b
}

// HasKnownGenre reports whether the genre can seed recommendations.
func (b Book) HasKnownGenre() bool {
	g := strings.TrimSpace(b.Genre)
	return g != "" && g != UnknownGenre
}
