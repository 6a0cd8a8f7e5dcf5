// Package library owns the user's three collections (read books, reading
// list, feedback) and keeps them durable in a kv.Backend.
//
// Every mutation is written through to the backend before it returns. A book
// id never sits in both the read-books and reading-list collections: adding a
// book to one collection moves it out of the other, and adding a book that is
// already present is a no-op.
package library

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"nextpage/internal/book"
	"nextpage/internal/kv"
	"nextpage/internal/logging"
	"nextpage/internal/metrics"
	"nextpage/internal/rating"

	"github.com/goccy/go-json"
)

// Backend keys, one blob per collection.
const (
	KeyReadBooks   = "readBooks"
	KeyReadingList = "readingList"
	KeyFeedback    = "bookFeedback"
)

var (
	ErrNotFound        = errors.New("book not found")
	ErrTitleRequired   = errors.New("title is required")
	ErrInvalidFeedback = errors.New("feedback must be like or dislike")
)

// Snapshot is a copy of the collections at one point in time.
type Snapshot struct {
	ReadBooks   []book.ReadBook         `json:"readBooks"`
	ReadingList []book.ReadingListEntry `json:"readingList"`
	Feedback    book.Feedback           `json:"feedback"`
}

// Owns reports whether id is in either user collection.
func (s Snapshot) Owns(id string) bool {
	for _, rb := range s.ReadBooks {
		if rb.ID == id {
			return true
		}
	}
	for _, e := range s.ReadingList {
		if e.ID == id {
			return true
		}
	}
	return false
}

// Stats summarises the read-books collection.
type Stats struct {
	TotalBooks    int     `json:"totalBooks"`
	AverageRating float64 `json:"averageRating"`
	TopGenre      string  `json:"topGenre,omitempty"`
	TopGenreCount int     `json:"topGenreCount,omitempty"`
}

type Option func(*Store)

// WithClock overrides time.Now for dateAdded stamps and generated ids.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

type Store struct {
	backend kv.Backend
	now     func() time.Time

	mu       sync.Mutex
	reads    []book.ReadBook
	list     []book.ReadingListEntry
	feedback book.Feedback

	listenersMu sync.Mutex
	listeners   map[int]func()
	nextID      int
}

func NewStore(backend kv.Backend, opts ...Option) *Store {
	s := &Store{
		backend:   backend,
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		reads:     []book.ReadBook{},
		list:      []book.ReadingListEntry{},
		feedback:  book.Feedback{},
		listeners: make(map[int]func()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory collections with what the backend holds. A
// missing or unreadable blob leaves that collection empty; the cause is
// logged, never returned.
func (s *Store) Load(ctx context.Context) {
	reads := []book.ReadBook{}
	list := []book.ReadingListEntry{}
	feedback := book.Feedback{}

	if !s.loadBlob(ctx, KeyReadBooks, &reads) || reads == nil {
		reads = []book.ReadBook{}
	}
	if !s.loadBlob(ctx, KeyReadingList, &list) || list == nil {
		list = []book.ReadingListEntry{}
	}
	if !s.loadBlob(ctx, KeyFeedback, &feedback) || feedback == nil {
		feedback = book.Feedback{}
	}

	reads, list, repaired := repair(reads, list)
	if repaired {
		logging.Ctx(ctx).Warn().Msg("stored collections held duplicate ids, keeping first occurrence")
	}

	s.mu.Lock()
	s.reads, s.list, s.feedback = reads, list, feedback
	s.mu.Unlock()

	logging.Ctx(ctx).Info().
		Int("read_books", len(reads)).
		Int("reading_list", len(list)).
		Int("feedback", len(feedback)).
		Msg("library loaded")
	s.notify()
}

func (s *Store) loadBlob(ctx context.Context, key string, dst any) bool {
	raw, err := s.backend.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return false
	}
	if err != nil {
		metrics.LibraryLoadFailures.WithLabelValues(key).Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("cannot read stored collection, starting empty")
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		metrics.LibraryLoadFailures.WithLabelValues(key).Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("stored collection is malformed, starting empty")
		return false
	}
	return true
}

// repair drops duplicate ids within each collection and reading-list entries
// that are already read.
func repair(reads []book.ReadBook, list []book.ReadingListEntry) ([]book.ReadBook, []book.ReadingListEntry, bool) {
	seen := make(map[string]bool, len(reads)+len(list))
	cleanReads := reads[:0:0]
	for _, rb := range reads {
		if seen[rb.ID] {
			continue
		}
		seen[rb.ID] = true
		cleanReads = append(cleanReads, rb)
	}
	cleanList := list[:0:0]
	for _, e := range list {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		cleanList = append(cleanList, e)
	}
	return cleanReads, cleanList, len(cleanReads) != len(reads) || len(cleanList) != len(list)
}

// Ready reports whether the backend is reachable.
func (s *Store) Ready(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// Subscribe registers fn to run after every change. The returned func
// removes it.
func (s *Store) Subscribe(fn func()) (unsubscribe func()) {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

func (s *Store) notify() {
	s.listenersMu.Lock()
	fns := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Snapshot returns copies of all three collections.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ReadBooks:   slices.Clone(s.reads),
		ReadingList: slices.Clone(s.list),
		Feedback:    s.feedback.Clone(),
	}
}

// Stats reports totals for the read-books collection.
func (s *Store) Stats() Stats {
	snap := s.Snapshot()
	ratings := make([]float64, len(snap.ReadBooks))
	for i, rb := range snap.ReadBooks {
		ratings[i] = rb.Rating
	}
	stats := Stats{
		TotalBooks:    len(snap.ReadBooks),
		AverageRating: rating.Average(ratings),
	}
	if top, ok := book.TopGenre(snap.ReadBooks); ok {
		stats.TopGenre = top.Genre
		stats.TopGenreCount = top.Count
	}
	return stats
}

// ReadingListEntry looks up an entry by id.
func (s *Store) ReadingListEntry(id string) (book.ReadingListEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.listIndex(id)
	if i < 0 {
		return book.ReadingListEntry{}, false
	}
	return s.list[i], true
}

// ReadBook looks up a read book by id.
func (s *Store) ReadBook(id string) (book.ReadBook, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.readIndex(id)
	if i < 0 {
		return book.ReadBook{}, false
	}
	return s.reads[i], true
}

// AddReadBook records b as read. A nil rating means the default of 5. If b is
// on the reading list it is moved; if it is already read nothing changes and
// the stored entry is returned.
func (s *Store) AddReadBook(ctx context.Context, b book.Book, r *float64) (book.ReadBook, error) {
	if strings.TrimSpace(b.Title) == "" {
		return book.ReadBook{}, ErrTitleRequired
	}
	value := book.DefaultReadRating
	if r != nil {
		value = *r
	}
	if err := rating.Validate(value); err != nil {
		return book.ReadBook{}, err
	}
	b = b.WithDefaults()

	s.mu.Lock()
	if b.ID == "" {
		b.ID = s.generateID()
	}
	if i := s.readIndex(b.ID); i >= 0 {
		existing := s.reads[i]
		s.mu.Unlock()
		return existing, nil
	}

	keys := []string{KeyReadBooks}
	if i := s.listIndex(b.ID); i >= 0 {
		s.list = slices.Delete(s.list, i, i+1)
		keys = append(keys, KeyReadingList)
	}
	rb := book.ReadBook{Book: b, Rating: value, DateAdded: s.now()}
	s.reads = append(s.reads, rb)
	err := s.saveLocked(ctx, keys...)
	s.mu.Unlock()

	metrics.LibraryMutationsTotal.WithLabelValues("add_read_book").Inc()
	s.notify()
	return rb, err
}

// MarkAsRead moves b from the reading list into read books with rating r.
func (s *Store) MarkAsRead(ctx context.Context, b book.Book, r float64) (book.ReadBook, error) {
	return s.AddReadBook(ctx, b, &r)
}

// RemoveReadBook deletes the read book with id. Unknown ids are ignored.
func (s *Store) RemoveReadBook(ctx context.Context, id string) error {
	s.mu.Lock()
	i := s.readIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	s.reads = slices.Delete(s.reads, i, i+1)
	err := s.saveLocked(ctx, KeyReadBooks)
	s.mu.Unlock()

	metrics.LibraryMutationsTotal.WithLabelValues("remove_read_book").Inc()
	s.notify()
	return err
}

// UpdateRating re-rates a read book. dateAdded is left untouched.
func (s *Store) UpdateRating(ctx context.Context, id string, r float64) (book.ReadBook, error) {
	if err := rating.Validate(r); err != nil {
		return book.ReadBook{}, err
	}

	s.mu.Lock()
	i := s.readIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return book.ReadBook{}, fmt.Errorf("update rating %q: %w", id, ErrNotFound)
	}
	s.reads[i].Rating = r
	updated := s.reads[i]
	err := s.saveLocked(ctx, KeyReadBooks)
	s.mu.Unlock()

	metrics.LibraryMutationsTotal.WithLabelValues("update_rating").Inc()
	s.notify()
	return updated, err
}

// AddToReadingList appends b to the reading list, moving it out of read books
// if needed. Adding a book already on the list is a no-op.
func (s *Store) AddToReadingList(ctx context.Context, b book.Book) (book.ReadingListEntry, error) {
	return s.addToReadingList(ctx, b, false)
}

// MoveToReadingList sends a read book back to the reading list. The rating
// is dropped. It fails with ErrNotFound unless b is a read book at the moment
// the move happens.
func (s *Store) MoveToReadingList(ctx context.Context, b book.Book) (book.ReadingListEntry, error) {
	return s.addToReadingList(ctx, b, true)
}

func (s *Store) addToReadingList(ctx context.Context, b book.Book, mustBeRead bool) (book.ReadingListEntry, error) {
	if strings.TrimSpace(b.Title) == "" {
		return book.ReadingListEntry{}, ErrTitleRequired
	}
	b = b.WithDefaults()

	s.mu.Lock()
	if mustBeRead && s.readIndex(b.ID) < 0 {
		s.mu.Unlock()
		return book.ReadingListEntry{}, fmt.Errorf("move %q to reading list: %w", b.ID, ErrNotFound)
	}
	if b.ID == "" {
		b.ID = s.generateID()
	}
	if i := s.listIndex(b.ID); i >= 0 {
		existing := s.list[i]
		s.mu.Unlock()
		return existing, nil
	}

	keys := []string{KeyReadingList}
	if i := s.readIndex(b.ID); i >= 0 {
		s.reads = slices.Delete(s.reads, i, i+1)
		keys = append(keys, KeyReadBooks)
	}
	entry := book.ReadingListEntry{Book: b}
	s.list = append(s.list, entry)
	err := s.saveLocked(ctx, keys...)
	s.mu.Unlock()

	metrics.LibraryMutationsTotal.WithLabelValues("add_to_reading_list").Inc()
	s.notify()
	return entry, err
}

// RemoveFromReadingList deletes the entry with id. Unknown ids are ignored.
func (s *Store) RemoveFromReadingList(ctx context.Context, id string) error {
	s.mu.Lock()
	i := s.listIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	s.list = slices.Delete(s.list, i, i+1)
	err := s.saveLocked(ctx, KeyReadingList)
	s.mu.Unlock()

	metrics.LibraryMutationsTotal.WithLabelValues("remove_from_reading_list").Inc()
	s.notify()
	return err
}

// SetFeedback toggles kind for id. Setting the value already stored clears
// it. The resulting value is returned, "" meaning neutral.
func (s *Store) SetFeedback(ctx context.Context, id string, kind book.FeedbackKind) (book.FeedbackKind, error) {
	if !kind.Valid() {
		return "", ErrInvalidFeedback
	}

	s.mu.Lock()
	var current book.FeedbackKind
	if s.feedback[id] == kind {
		delete(s.feedback, id)
	} else {
		s.feedback[id] = kind
		current = kind
	}
	err := s.saveLocked(ctx, KeyFeedback)
	s.mu.Unlock()

	metrics.LibraryMutationsTotal.WithLabelValues("set_feedback").Inc()
	s.notify()
	return current, err
}

func (s *Store) saveLocked(ctx context.Context, keys ...string) error {
	var errs []error
	for _, key := range keys {
		var value any
		switch key {
		case KeyReadBooks:
			value = s.reads
		case KeyReadingList:
			value = s.list
		case KeyFeedback:
			value = s.feedback
		}
		if err := s.save(ctx, key, value); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store) save(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.backend.Set(ctx, key, raw); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("key", key).Msg("failed to persist collection")
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (s *Store) readIndex(id string) int {
	return slices.IndexFunc(s.reads, func(rb book.ReadBook) bool { return rb.ID == id })
}

func (s *Store) listIndex(id string) int {
	return slices.IndexFunc(s.list, func(e book.ReadingListEntry) bool { return e.ID == id })
}

// generateID derives an id from the clock in milliseconds, stepping forward
// until it is free.
func (s *Store) generateID() string {
	ms := s.now().UnixMilli()
	for {
		id := strconv.FormatInt(ms, 10)
		if s.readIndex(id) < 0 && s.listIndex(id) < 0 {
			return id
		}
		ms++
	}
}
