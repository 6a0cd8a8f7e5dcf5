// Package storefront builds outbound "buy" links for books with an ASIN.
package storefront

import (
	"net/url"
	"strings"
)

const (
	DefaultBaseURL = "https://www.amazon.com"
	DisabledURL    = "#"
)

// Link is a purchase link. A disabled link has URL "#".
type Link struct {
	URL     string `json:"url"`
	Enabled bool   `json:"enabled"`
}

type Linker struct {
	baseURL      string
	affiliateTag string
}

func NewLinker(baseURL, affiliateTag string) *Linker {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Linker{
		baseURL:      baseURL,
		affiliateTag: strings.TrimSpace(affiliateTag),
	}
}

// Link returns <base>/dp/<asin>, tagged with the affiliate id when one is
// configured. A nil or blank asin gives a disabled link.
func (l *Linker) Link(asin *string) Link {
	if asin == nil || strings.TrimSpace(*asin) == "" {
		return Link{URL: DisabledURL}
	}

	u := l.baseURL + "/dp/" + url.PathEscape(strings.TrimSpace(*asin))
	if l.affiliateTag != "" {
		u += "?" + url.Values{"tag": {l.affiliateTag}}.Encode()
	}
	return Link{URL: u, Enabled: true}
}
