package openlibrary

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://openlibrary.org"
	CoversBaseURL  = "https://covers.openlibrary.org"

	searchFields = "key,title,author_name,subject,first_sentence,cover_i,isbn,id_amazon,ratings_average"
)

// StatusError is returned for any non-2xx upstream response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

type Client struct {
	httpClient *http.Client
	userAgent  string
	baseURL    string
	limiter    *rate.Limiter
}

func NewClient(baseURL, userAgent string, timeout time.Duration, rps float64) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// SearchResponse matches search.json
type SearchResponse struct {
	NumFound int   `json:"numFound"`
	Docs     []Doc `json:"docs"`
}

type Doc struct {
	Key            string   `json:"key"`
	Title          string   `json:"title"`
	AuthorNames    []string `json:"author_name"`
	Subjects       []string `json:"subject"`
	FirstSentence  []string `json:"first_sentence"`
	CoverID        int      `json:"cover_i"`
	ISBN           []string `json:"isbn"`
	AmazonIDs      []string `json:"id_amazon"`
	RatingsAverage *float64 `json:"ratings_average"`
}

// CoverURL returns the medium cover image for the doc, or "" if it has none.
func (d Doc) CoverURL() string {
	if d.CoverID <= 0 {
		return ""
	}
	return fmt.Sprintf("%s/b/id/%d-M.jpg", CoversBaseURL, d.CoverID)
}

// ASIN prefers an explicit Amazon id and falls back to the first ISBN-10.
func (d Doc) ASIN() string {
	for _, id := range d.AmazonIDs {
		if id != "" {
			return id
		}
	}
	for _, isbn := range d.ISBN {
		if len(isbn) == 10 {
			return isbn
		}
	}
	return ""
}

// Search runs search.json. Open Library understands "subject:<name>" inside q.
func (c *Client) Search(ctx context.Context, q string, limit int) (*SearchResponse, error) {
	params := url.Values{}
	params.Set("q", q)
	params.Set("fields", searchFields)
	params.Set("limit", strconv.Itoa(limit))
	u := c.baseURL + "/search.json?" + params.Encode()

	var res SearchResponse
	if err := c.get(ctx, u, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) get(ctx context.Context, url string, target any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode}
	}
	return json.NewDecoder(resp.Body).Decode(target)
}
