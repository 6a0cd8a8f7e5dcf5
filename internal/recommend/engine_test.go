package recommend

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"nextpage/internal/book"
	"nextpage/internal/kv"
	"nextpage/internal/library"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedRandom(v float64) func() float64 {
	return func() float64 { return v }
}

func ratingPtr(v float64) *float64 { return &v }

func newStore(t *testing.T) *library.Store {
	t.Helper()
	return library.NewStore(kv.NewMemory())
}

func addRead(t *testing.T, s *library.Store, id, genre string) {
	t.Helper()
	_, err := s.AddReadBook(context.Background(), book.Book{ID: id, Title: id, Genre: genre}, nil)
	require.NoError(t, err)
}

func ids(recs []book.Recommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func TestEngine_TargetsMostReadGenre(t *testing.T) {
	ctrl := gomock.NewController(t)
	cat := NewMockCatalog(ctrl)
	store := newStore(t)

	addRead(t, store, "r1", "Fantasy")
	addRead(t, store, "r2", "Science Fiction")
	addRead(t, store, "r3", "Fantasy")
	addRead(t, store, "r4", "Unknown")

	cat.EXPECT().QueryByGenre(gomock.Any(), "Fantasy", DefaultBatchSize).Return([]book.Book{
		{ID: "c1", Title: "Mistborn", Genre: "Fantasy", AverageRating: ratingPtr(4.5)},
		{ID: "c2", Title: "Elantris", Genre: "Fantasy"},
	}, nil)

	e := NewEngine(cat, store, Config{}, WithRandom(fixedRandom(0.5)))
	recs, err := e.Recompute(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"c1", "c2"}, ids(recs))
	assert.Equal(t, 9.0, recs[0].Score)
	assert.Equal(t, NeutralScore, recs[1].Score)
	assert.InDelta(t, 0.5, recs[0].SimilarityScore, 1e-9)
	assert.Equal(t, "Because you read 2 Fantasy books.", recs[0].Reasoning)

	state := e.State()
	assert.Equal(t, "Fantasy", state.Genre)
	assert.False(t, state.Fallback)
	assert.Equal(t, 2, state.Total)
}

func TestEngine_ExcludesOwnedBooks(t *testing.T) {
	ctrl := gomock.NewController(t)
	cat := NewMockCatalog(ctrl)
	store := newStore(t)

	addRead(t, store, "r1", "Fantasy")
	_, err := store.AddToReadingList(context.Background(), book.Book{ID: "c2", Title: "Elantris"})
	require.NoError(t, err)

	cat.EXPECT().QueryByGenre(gomock.Any(), "Fantasy", gomock.Any()).Return([]book.Book{
		{ID: "r1", Title: "Already read"},
		{ID: "c1", Title: "Mistborn"},
		{ID: "c2", Title: "Elantris"},
		{ID: "c1", Title: "Mistborn duplicate"},
		{ID: "", Title: "No id"},
	}, nil)

	e := NewEngine(cat, store, Config{}, WithRandom(fixedRandom(0)))
	recs, err := e.Recompute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids(recs))
}

func TestEngine_ExclusionUsesLiveStateAfterFetch(t *testing.T) {
	ctrl := gomock.NewController(t)
	cat := NewMockCatalog(ctrl)
	lib := NewMockLibrary(ctrl)

	before := library.Snapshot{}
	after := library.Snapshot{
		ReadingList: []book.ReadingListEntry{{Book: book.Book{ID: "c1"}}},
		Feedback:    book.Feedback{"c2": book.FeedbackDislike},
	}

	gomock.InOrder(
		lib.EXPECT().Snapshot().Return(before),
		cat.EXPECT().QueryByGenre(gomock.Any(), book.DefaultTargetGenre, gomock.Any()).Return([]book.Book{
			{ID: "c1", Title: "A"},
			{ID: "c2", Title: "B"},
		}, nil),
		lib.EXPECT().Snapshot().Return(after),
	)

	e := NewEngine(cat, lib, Config{}, WithRandom(fixedRandom(0)))
	recs, err := e.Recompute(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"c2"}, ids(recs))
	assert.Equal(t, 4.0, recs[0].Score)
}

func TestEngine_FeedbackAdjustsScores(t *testing.T) {
	ctrl := gomock.NewController(t)
	cat := NewMockCatalog(ctrl)
	store := newStore(t)
	ctx := context.Background()

	_, err := store.SetFeedback(ctx, "liked", book.FeedbackLike)
	require.NoError(t, err)
	_, err = store.SetFeedback(ctx, "disliked", book.FeedbackDislike)
	require.NoError(t, err)

	cat.EXPECT().QueryByGenre(gomock.Any(), gomock.Any(), gomock.Any()).Return([]book.Book{
		{ID: "disliked", Title: "D"},
		{ID: "plain", Title: "P"},
		{ID: "liked", Title: "L"},
		{ID: "hated", Title: "H", AverageRating: ratingPtr(0.5)},
	}, nil)
	_, err = store.SetFeedback(ctx, "hated", book.FeedbackDislike)
	require.NoError(t, err)

	e := NewEngine(cat, store, Config{}, WithRandom(fixedRandom(0)))
	recs, err := e.Recompute(ctx)
	require.NoError(t, err)

	require.Equal(t, []string{"liked", "plain", "disliked", "hated"}, ids(recs))
	assert.Equal(t, 7.5, recs[0].Score)
	assert.Equal(t, 6.0, recs[1].Score)
	assert.Equal(t, 4.0, recs[2].Score)
	assert.Equal(t, 0.0, recs[3].Score)
	assert.Contains(t, recs[0].Reasoning, "You liked this one before.")
}

func TestEngine_FallbackGenre(t *testing.T) {
	ctrl := gomock.NewController(t)
	cat := NewMockCatalog(ctrl)

	cat.EXPECT().QueryByGenre(gomock.Any(), "fiction", DefaultBatchSize).Return([]book.Book{{ID: "c1", Title: "A"}}, nil)

	e := NewEngine(cat, newStore(t), Config{})
	recs, err := e.Recompute(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, e.State().Fallback)
	assert.Contains(t, recs[0].Reasoning, "Popular in fiction")
	assert.GreaterOrEqual(t, recs[0].SimilarityScore, 0.2)
	assert.Less(t, recs[0].SimilarityScore, 0.8)
}

func TestEngine_FetchFailureYieldsEmpty(t *testing.T) {
	ctrl := gomock.NewController(t)
	cat := NewMockCatalog(ctrl)
	store := newStore(t)

	cat.EXPECT().QueryByGenre(gomock.Any(), gomock.Any(), gomock.Any()).Return([]book.Book{{ID: "c1", Title: "A"}}, nil)
	upstream := errors.New("status 500")
	cat.EXPECT().QueryByGenre(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, upstream)

	e := NewEngine(cat, store, Config{})
	_, err := e.Recompute(context.Background())
	require.NoError(t, err)
	require.Len(t, e.Top(0), 1)

	recs, err := e.Recompute(context.Background())
	assert.ErrorIs(t, err, upstream)
	assert.Empty(t, recs)
	assert.Empty(t, e.Top(0))
	assert.True(t, e.State().Failed)
}

func TestEngine_StaleResultDropped(t *testing.T) {
	ctrl := gomock.NewController(t)
	cat := NewMockCatalog(ctrl)
	store := newStore(t)

	release := make(chan struct{})
	started := make(chan struct{})
	cat.EXPECT().QueryByGenre(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, genre string, limit int) ([]book.Book, error) {
			close(started)
			<-release
			return []book.Book{{ID: "old", Title: "Old"}}, nil
		})
	cat.EXPECT().QueryByGenre(gomock.Any(), gomock.Any(), gomock.Any()).Return([]book.Book{{ID: "new", Title: "New"}}, nil)

	e := NewEngine(cat, store, Config{})

	var wg sync.WaitGroup
	var slowErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, slowErr = e.Recompute(context.Background())
	}()
	<-started

	recs, err := e.Recompute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, ids(recs))

	close(release)
	wg.Wait()

	assert.ErrorIs(t, slowErr, ErrStale)
	assert.Equal(t, []string{"new"}, ids(e.Top(0)))
}

func TestEngine_ReadsFollowLibraryChanges(t *testing.T) {
	ctrl := gomock.NewController(t)
	cat := NewMockCatalog(ctrl)
	store := newStore(t)
	ctx := context.Background()

	cat.EXPECT().QueryByGenre(gomock.Any(), gomock.Any(), gomock.Any()).Return([]book.Book{
		{ID: "c1", Title: "Mistborn", Genre: "Fantasy", AverageRating: ratingPtr(4.5)},
		{ID: "c2", Title: "Elantris", Genre: "Fantasy"},
		{ID: "c3", Title: "Warbreaker", Genre: "Fantasy"},
	}, nil).Times(1)

	e := NewEngine(cat, store, Config{}, WithRandom(fixedRandom(0)))
	recs, err := e.Recompute(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"c1", "c2", "c3"}, ids(recs))

	_, err = store.AddToReadingList(ctx, book.Book{ID: "c1", Title: "Mistborn"})
	require.NoError(t, err)
	_, err = store.SetFeedback(ctx, "c1", book.FeedbackLike)
	require.NoError(t, err)

	assert.Equal(t, []string{"c2", "c3"}, ids(e.Top(0)))
	assert.Equal(t, []string{"c2", "c3"}, ids(e.ByGenre("fantasy")))

	_, err = store.SetFeedback(ctx, "c3", book.FeedbackLike)
	require.NoError(t, err)
	_, err = store.SetFeedback(ctx, "c2", book.FeedbackDislike)
	require.NoError(t, err)

	top := e.Top(0)
	require.Equal(t, []string{"c3", "c2"}, ids(top))
	assert.Equal(t, 7.5, top[0].Score)
	assert.Contains(t, top[0].Reasoning, "You liked this one before.")
	assert.Equal(t, 4.0, top[1].Score)

	// Clearing the likes restores the base scores.
	_, err = store.SetFeedback(ctx, "c3", book.FeedbackLike)
	require.NoError(t, err)
	_, err = store.SetFeedback(ctx, "c1", book.FeedbackLike)
	require.NoError(t, err)
	err = store.RemoveFromReadingList(ctx, "c1")
	require.NoError(t, err)

	top = e.Top(0)
	require.Equal(t, []string{"c1", "c3", "c2"}, ids(top))
	assert.Equal(t, 9.0, top[0].Score)
	assert.Equal(t, NeutralScore, top[1].Score)
}

func TestEngine_TopAndByGenre(t *testing.T) {
	ctrl := gomock.NewController(t)
	cat := NewMockCatalog(ctrl)

	candidates := make([]book.Book, 0, 7)
	for i, g := range []string{"Fantasy", "Horror", "Fantasy", "Fantasy", "Horror", "Fantasy", "Fantasy"} {
		candidates = append(candidates, book.Book{ID: string(rune('a' + i)), Title: g, Genre: g})
	}
	cat.EXPECT().QueryByGenre(gomock.Any(), gomock.Any(), gomock.Any()).Return(candidates, nil)

	e := NewEngine(cat, newStore(t), Config{})
	_, err := e.Recompute(context.Background())
	require.NoError(t, err)

	// Equal scores keep fetch order.
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids(e.Top(0)))
	assert.Equal(t, []string{"a", "b"}, ids(e.Top(2)))
	assert.Len(t, e.Top(50), 7)
	assert.Equal(t, []string{"b", "e"}, ids(e.ByGenre("horror")))
	assert.Empty(t, e.ByGenre("Romance"))
}

func TestEngine_WatchRecomputesOnChange(t *testing.T) {
	ctrl := gomock.NewController(t)
	cat := NewMockCatalog(ctrl)
	store := newStore(t)

	var mu sync.Mutex
	var genres []string
	cat.EXPECT().QueryByGenre(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, genre string, limit int) ([]book.Book, error) {
			mu.Lock()
			genres = append(genres, genre)
			mu.Unlock()
			return []book.Book{{ID: "c-" + genre, Title: genre}}, nil
		}).AnyTimes()

	e := NewEngine(cat, store, Config{Debounce: 20 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Watch(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return e.State().Genre == "fiction" }, time.Second, 5*time.Millisecond)

	// A burst of changes collapses into one recompute.
	addRead(t, store, "r1", "Horror")
	addRead(t, store, "r2", "Horror")
	addRead(t, store, "r3", "Horror")

	require.Eventually(t, func() bool { return e.State().Genre == "Horror" }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"c-Horror"}, ids(e.Top(0)))

	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, genres)
	assert.Equal(t, "fiction", genres[0])
	assert.Equal(t, "Horror", genres[len(genres)-1])
}
