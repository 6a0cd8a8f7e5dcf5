package googlebooks

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
	DefaultBaseURL = "https://www.googleapis.com"
	MaxResults     = 40
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
	apiKey     string
	limiter    *rate.Limiter
}

type Options struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	Timeout   time.Duration
	RPS       float64
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		userAgent:  opts.UserAgent,
		baseURL:    opts.BaseURL,
		apiKey:     opts.APIKey,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// VolumesResponse matches /books/v1/volumes.
type VolumesResponse struct {
	TotalItems int      `json:"totalItems"`
	Items      []Volume `json:"items"`
}

type Volume struct {
	ID         string     `json:"id"`
	VolumeInfo VolumeInfo `json:"volumeInfo"`
}

type VolumeInfo struct {
	Title               string       `json:"title"`
	Authors             []string     `json:"authors"`
	Categories          []string     `json:"categories"`
	Description         string       `json:"description"`
	AverageRating       *float64     `json:"averageRating"`
	RatingsCount        int          `json:"ratingsCount"`
	ImageLinks          *ImageLinks  `json:"imageLinks"`
	IndustryIdentifiers []Identifier `json:"industryIdentifiers"`
}

type ImageLinks struct {
	SmallThumbnail string `json:"smallThumbnail"`
	Thumbnail      string `json:"thumbnail"`
}

type Identifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

// ISBN10 returns the volume's ISBN-10, which doubles as the Amazon ASIN for
// printed books.
func (v VolumeInfo) ISBN10() string {
	for _, id := range v.IndustryIdentifiers {
		if id.Type == "ISBN_10" {
			return id.Identifier
		}
	}
	return ""
}

// Volumes runs a volumes query. q is passed through unchanged, so
// "subject:fantasy" and free text both work.
func (c *Client) Volumes(ctx context.Context, q string, limit int) (*VolumesResponse, error) {
	if limit <= 0 || limit > MaxResults {
		limit = MaxResults
	}
	params := url.Values{}
	params.Set("q", q)
	params.Set("maxResults", strconv.Itoa(limit))
	params.Set("printType", "books")
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
	u := c.baseURL + "/books/v1/volumes?" + params.Encode()

	var res VolumesResponse
	if err := c.get(ctx, u, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// get issues a single request. Failures are returned as-is; the caller
// decides what to do with them.
func (c *Client) get(ctx context.Context, url string, target any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
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
