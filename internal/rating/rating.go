// Package rating holds the pure rules around personal ratings and feedback:
// the qualitative label shown next to the star control, star rendering, and
// how like/dislike feedback moves a recommendation score.
package rating

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"nextpage/internal/book"
)

const (
	Min  = 0.0
	Max  = 5.0
	Step = 0.5

	LikeBoost      = 1.5
	DislikePenalty = 2.0
)

var ErrInvalidRating = errors.New("rating must be between 0 and 5 in half steps")

// Label maps a rating to the text shown under the star control. Each band's
// upper bound is inclusive.
func Label(r float64) string {
	switch {
	case r <= 0:
		return "No rating"
	case r <= 1.5:
		return "Hated it"
	case r <= 2.5:
		return "Not for me"
	case r <= 3.5:
		return "Pretty decent"
	case r <= 4.5:
		return "I liked it"
	default:
		return "Loved it"
	}
}

// Validate rejects ratings outside [0,5] or off the half-point grid.
func Validate(r float64) error {
	if math.IsNaN(r) || r < Min || r > Max {
		return fmt.Errorf("%w: got %v", ErrInvalidRating, r)
	}
	if math.Mod(r, Step) != 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidRating, r)
	}
	return nil
}

// Stars renders r as five glyphs: full stars, an optional half, then empties.
func Stars(r float64) string {
	r = math.Max(Min, math.Min(Max, r))
	full := int(math.Floor(r))
	half := r-float64(full) >= Step
	var sb strings.Builder
	sb.WriteString(strings.Repeat("★", full))
	empty := int(Max) - full
	if half {
		sb.WriteString("½")
		empty--
	}
	sb.WriteString(strings.Repeat("☆", empty))
	return sb.String()
}

// AdjustScore applies the user's feedback to a recommendation score.
func AdjustScore(score float64, kind book.FeedbackKind) float64 {
	switch kind {
	case book.FeedbackLike:
		return score + LikeBoost
	case book.FeedbackDislike:
		return math.Max(0, score-DislikePenalty)
	default:
		return score
	}
}

// Average returns the mean rating rounded to one decimal, or 0 for none.
func Average(ratings []float64) float64 {
	if len(ratings) == 0 {
		return 0
	}
	var sum float64
	for _, r := range ratings {
		sum += r
	}
	return math.Round(sum/float64(len(ratings))*10) / 10
}

// Grid returns every valid rating from Min to Max.
func Grid() []float64 {
	out := make([]float64, 0, int(Max/Step)+1)
	for r := Min; r <= Max; r += Step {
		out = append(out, r)
	}
	return out
}
