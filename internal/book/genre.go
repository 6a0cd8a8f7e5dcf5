package book

import "strings"

// GenreCount is one row of a genre frequency table.
type GenreCount struct {
	Genre string
	Count int
}

// GenreFrequency counts known genres across reads in first-seen order.
// Unknown and blank genres are skipped.
func GenreFrequency(reads []ReadBook) []GenreCount {
	index := make(map[string]int)
	var counts []GenreCount
	for _, rb := range reads {
		if !rb.HasKnownGenre() {
			continue
		}
		genre := strings.TrimSpace(rb.Genre)
		if i, ok := index[genre]; ok {
			counts[i].Count++
			continue
		}
		index[genre] = len(counts)
		counts = append(counts, GenreCount{Genre: genre, Count: 1})
	}
	return counts
}

// TopGenre returns the most frequent known genre. Ties go to the genre seen
// first. ok is false when no read book has a known genre.
func TopGenre(reads []ReadBook) (top GenreCount, ok bool) {
	for _, c := range GenreFrequency(reads) {
		if c.Count > top.Count {
			top = c
			ok = true
		}
	}
	return top, ok
}
