package httpx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rateRequest struct {
	Rating *float64 `json:"rating" validate:"omitempty,half_step"`
	Title  string   `json:"title" validate:"required,max=10"`
	Kind   string   `json:"kind" validate:"omitempty,feedback_kind"`
}

func TestValidateStruct(t *testing.T) {
	ok := 3.5
	bad := 3.7

	assert.Nil(t, ValidateStruct(rateRequest{Rating: &ok, Title: "Dune", Kind: "like"}))
	assert.Nil(t, ValidateStruct(rateRequest{Title: "Dune"}))

	details := ValidateStruct(rateRequest{Rating: &bad, Title: "", Kind: "meh"})
	require.Len(t, details, 3)

	fields := map[string]string{}
	for _, d := range details {
		fields[d.Field] = d.Message
	}
	assert.Equal(t, "rating must be between 0 and 5 in steps of 0.5", fields["rating"])
	assert.Equal(t, "title is required", fields["title"])
	assert.Equal(t, `kind must be "like" or "dislike"`, fields["kind"])
}

func TestValidateStruct_Max(t *testing.T) {
	details := ValidateStruct(rateRequest{Title: "this title is far too long"})
	require.Len(t, details, 1)
	assert.Equal(t, "title must be at most 10 characters", details[0].Message)
}
