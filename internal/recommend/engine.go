// Package recommend ranks catalog books for the user's favourite genre.
//
// A recompute reads the library, fetches a batch of candidates for the
// target genre, drops anything the user already owns and scores the rest.
// Recomputes may overlap; each takes a sequence number and a result is only
// published if no later recompute has published first. Reads re-check
// ownership and feedback against the live library, so a change shows up
// before the next recompute lands.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"nextpage/internal/book"
	"nextpage/internal/debounce"
	"nextpage/internal/library"
	"nextpage/internal/logging"
	"nextpage/internal/metrics"
	"nextpage/internal/rating"
)

const (
	DefaultBatchSize = 10
	DefaultTopN      = 5
	DefaultDebounce  = 250 * time.Millisecond
	DefaultTimeout   = 15 * time.Second

	// NeutralScore is used when the catalog reports no community rating.
	NeutralScore = 6.0
	MaxScore     = 10.0
)

// ErrStale is returned by Recompute when a later recompute published first.
var ErrStale = errors.New("recommend: superseded by a newer recompute")

//go:generate mockgen -source=engine.go -destination=mock_engine.go -package=recommend

// Catalog fetches candidate books.
type Catalog interface {
	QueryByGenre(ctx context.Context, genre string, limit int) ([]book.Book, error)
}

// Library is the live view of the user's collections.
type Library interface {
	Snapshot() library.Snapshot
	Subscribe(fn func()) (unsubscribe func())
}

type Config struct {
	BatchSize     int
	TopN          int
	FallbackGenre string
	Debounce      time.Duration
	Timeout       time.Duration
}

func (c *Config) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.TopN <= 0 {
		c.TopN = DefaultTopN
	}
	if strings.TrimSpace(c.FallbackGenre) == "" {
		c.FallbackGenre = book.DefaultTargetGenre
	}
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

type Option func(*Engine)

// WithRandom replaces the [0,1) source behind similarity scores.
func WithRandom(fn func() float64) Option {
	return func(e *Engine) { e.random = fn }
}

// WithClock overrides time.Now for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// State describes the published ranking.
type State struct {
	Genre     string    `json:"genre"`
	Fallback  bool      `json:"fallback"`
	Total     int       `json:"total"`
	UpdatedAt time.Time `json:"updatedAt"`
	Failed    bool      `json:"failed"`
}

type Engine struct {
	catalog Catalog
	library Library
	cfg     Config
	now     func() time.Time

	randMu sync.Mutex
	random func() float64

	seq atomic.Uint64

	mu        sync.RWMutex
	published uint64
	ranked    []candidate
	basis     basis
	state     State
}

// candidate is a published recommendation before feedback is applied. Entries
// stay in fetch order so ties resolve the same way on every read.
type candidate struct {
	rec  book.Recommendation
	base float64
}

// basis is what the published ranking was built from.
type basis struct {
	genre    string
	count    int
	fallback bool
}

func NewEngine(catalog Catalog, lib Library, cfg Config, opts ...Option) *Engine {
	cfg.applyDefaults()
	e := &Engine{
		catalog: catalog,
		library: lib,
		cfg:     cfg,
		now:     time.Now,
		random:  rand.Float64,
		ranked:  []candidate{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// target picks the genre to recommend from: the most read known genre, ties
// going to the one read first.
func (e *Engine) target(reads []book.ReadBook) basis {
	if top, ok := book.TopGenre(reads); ok {
		return basis{genre: top.Genre, count: top.Count}
	}
	return basis{genre: e.cfg.FallbackGenre, fallback: true}
}

// Recompute rebuilds the ranking. On a catalog failure the published ranking
// becomes empty and the error is returned; it is never retried.
func (e *Engine) Recompute(ctx context.Context) ([]book.Recommendation, error) {
	seq := e.seq.Add(1)
	log := logging.Ctx(ctx).With().Uint64("recompute", seq).Logger()

	b := e.target(e.library.Snapshot().ReadBooks)
	state := State{Genre: b.genre, Fallback: b.fallback}

	fetched, err := e.catalog.QueryByGenre(ctx, b.genre, e.cfg.BatchSize)
	if err != nil {
		log.Warn().Err(err).Str("genre", b.genre).Msg("recommendation fetch failed")
		state.Failed = true
		if !e.publish(seq, []candidate{}, b, state) {
			return nil, ErrStale
		}
		metrics.RecomputeTotal.WithLabelValues("failed").Inc()
		return []book.Recommendation{}, fmt.Errorf("recommend: fetch %q: %w", b.genre, err)
	}

	// Ownership and feedback may have changed while the fetch was in flight.
	live := e.library.Snapshot()
	cands := e.candidates(fetched, live)
	ranked := rank(cands, live, b)
	state.Total = len(ranked)

	if !e.publish(seq, cands, b, state) {
		log.Debug().Msg("dropping superseded recommendations")
		return nil, ErrStale
	}
	metrics.RecomputeTotal.WithLabelValues("ok").Inc()
	log.Info().Str("genre", b.genre).Int("candidates", len(fetched)).Int("ranked", len(ranked)).Msg("recommendations updated")
	return ranked, nil
}

func (e *Engine) publish(seq uint64, cands []candidate, b basis, state State) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if seq < e.published {
		metrics.RecomputeTotal.WithLabelValues("stale").Inc()
		return false
	}
	state.UpdatedAt = e.now()
	e.published = seq
	e.ranked = cands
	e.basis = b
	e.state = state
	metrics.RecommendationsSize.Set(float64(len(cands)))
	return true
}

// candidates drops blank, duplicate and owned ids and fixes each book's
// base score and similarity. Fetch order is kept.
func (e *Engine) candidates(fetched []book.Book, live library.Snapshot) []candidate {
	seen := make(map[string]bool, len(fetched))
	out := make([]candidate, 0, len(fetched))

	for _, b := range fetched {
		if b.ID == "" || seen[b.ID] || live.Owns(b.ID) {
			continue
		}
		seen[b.ID] = true
		out = append(out, candidate{
			rec:  book.Recommendation{Book: b, SimilarityScore: e.similarity()},
			base: baseScore(b),
		})
	}
	return out
}

// rank applies the current library state to cands: owned books are left
// out, feedback adjusts scores and the result is sorted by score.
func rank(cands []candidate, live library.Snapshot, b basis) []book.Recommendation {
	out := make([]book.Recommendation, 0, len(cands))
	for _, c := range cands {
		if live.Owns(c.rec.ID) {
			continue
		}
		kind := live.Feedback[c.rec.ID]
		rec := c.rec
		rec.Score = rating.AdjustScore(c.base, kind)
		rec.Reasoning = reasoning(b.genre, b.count, b.fallback, kind)
		out = append(out, rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

func baseScore(b book.Book) float64 {
	if b.AverageRating == nil {
		return NeutralScore
	}
	return math.Max(0, math.Min(MaxScore, *b.AverageRating*2))
}

// similarity is a placeholder in [0.2, 0.8).
func (e *Engine) similarity() float64 {
	e.randMu.Lock()
	u := e.random()
	e.randMu.Unlock()
	return 0.2 + 0.6*u
}

func reasoning(genre string, count int, fallback bool, kind book.FeedbackKind) string {
	var sb strings.Builder
	if fallback {
		fmt.Fprintf(&sb, "Popular in %s. Rate a few books to get picks based on your taste.", genre)
	} else {
		noun := "books"
		if count == 1 {
			noun = "book"
		}
		fmt.Fprintf(&sb, "Because you read %d %s %s.", count, genre, noun)
	}
	switch kind {
	case book.FeedbackLike:
		sb.WriteString(" You liked this one before.")
	case book.FeedbackDislike:
		sb.WriteString(" Ranked lower because you disliked it.")
	}
	return sb.String()
}

// current ranks the published candidates against the library as it is now,
// so a book added or rated since the last recompute is reflected at once.
func (e *Engine) current() []book.Recommendation {
	live := e.library.Snapshot()

	e.mu.RLock()
	cands, b := e.ranked, e.basis
	e.mu.RUnlock()

	return rank(cands, live, b)
}

// Top returns the first n recommendations. n <= 0 means the configured
// default.
func (e *Engine) Top(n int) []book.Recommendation {
	if n <= 0 {
		n = e.cfg.TopN
	}
	recs := e.current()
	return recs[:min(n, len(recs))]
}

// ByGenre returns every recommendation whose genre matches, ignoring case.
func (e *Engine) ByGenre(genre string) []book.Recommendation {
	genre = strings.TrimSpace(genre)

	out := []book.Recommendation{}
	for _, r := range e.current() {
		if strings.EqualFold(r.Genre, genre) {
			out = append(out, r)
		}
	}
	return out
}

// State reports what the published ranking was built from.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Watch recomputes once immediately and then after every library change,
// coalescing bursts of changes. It blocks until ctx is done.
func (e *Engine) Watch(ctx context.Context) {
	run := func() {
		rctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
		_, _ = e.Recompute(rctx)
	}

	d := debounce.New(e.cfg.Debounce, run)
	unsubscribe := e.library.Subscribe(d.Trigger)
	defer func() {
		unsubscribe()
		d.Stop()
	}()

	d.Trigger()
	<-ctx.Done()
}
