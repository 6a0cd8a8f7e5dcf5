package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func reads(genres ...string) []ReadBook {
	out := make([]ReadBook, len(genres))
	for i, g := range genres {
		out[i] = ReadBook{Book: Book{ID: string(rune('a' + i)), Genre: g}}
	}
	return out
}

func TestTopGenre(t *testing.T) {
	t.Run("most frequent wins", func(t *testing.T) {
		top, ok := TopGenre(reads("Fantasy", "Science Fiction", "Fantasy", "Fantasy"))
		assert.True(t, ok)
		assert.Equal(t, "Fantasy", top.Genre)
		assert.Equal(t, 3, top.Count)
	})

	t.Run("tie goes to first seen", func(t *testing.T) {
		top, ok := TopGenre(reads("Mystery", "History", "History", "Mystery"))
		assert.True(t, ok)
		assert.Equal(t, "Mystery", top.Genre)
	})

	t.Run("unknown and blank genres ignored", func(t *testing.T) {
		top, ok := TopGenre(reads("Unknown", "", "Unknown", "Poetry"))
		assert.True(t, ok)
		assert.Equal(t, "Poetry", top.Genre)
		assert.Equal(t, 1, top.Count)
	})

	t.Run("nothing qualifies", func(t *testing.T) {
		_, ok := TopGenre(reads("Unknown", " "))
		assert.False(t, ok)
	})
}

func TestGenreFrequency_Order(t *testing.T) {
	counts := GenreFrequency(reads("B", "A", "B", "C"))
	assert.Equal(t, []GenreCount{{"B", 2}, {"A", 1}, {"C", 1}}, counts)
}

func TestBook_WithDefaults(t *testing.T) {
	blank := " "
	b := Book{ID: "1", Title: "  Dune ", CoverImage: &blank}.WithDefaults()

	assert.Equal(t, "Dune", b.Title)
	assert.Equal(t, UnknownAuthor, b.Author)
	assert.Equal(t, UnknownGenre, b.Genre)
	assert.Nil(t, b.CoverImage)
	assert.Nil(t, b.ASIN)
}

func TestFeedbackKind_Valid(t *testing.T) {
	assert.True(t, FeedbackLike.Valid())
	assert.True(t, FeedbackDislike.Valid())
	assert.False(t, FeedbackKind("meh").Valid())
}
