package storefront

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(s string) *string { return &s }

func TestLinker_Link(t *testing.T) {
	tests := []struct {
		name   string
		linker *Linker
		asin   *string
		want   Link
	}{
		{
			name:   "with affiliate tag",
			linker: NewLinker("https://www.amazon.com/", "nextpage-20"),
			asin:   ptr("0441172717"),
			want:   Link{URL: "https://www.amazon.com/dp/0441172717?tag=nextpage-20", Enabled: true},
		},
		{
			name:   "without affiliate tag",
			linker: NewLinker("", ""),
			asin:   ptr("0441172717"),
			want:   Link{URL: "https://www.amazon.com/dp/0441172717", Enabled: true},
		},
		{
			name:   "nil asin",
			linker: NewLinker("", "nextpage-20"),
			asin:   nil,
			want:   Link{URL: "#"},
		},
		{
			name:   "blank asin",
			linker: NewLinker("", "nextpage-20"),
			asin:   ptr("   "),
			want:   Link{URL: "#"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.linker.Link(tt.asin))
		})
	}
}
