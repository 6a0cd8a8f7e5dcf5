package catalog

import (
	"context"
	"sync"
	"testing"
	"time"

	"nextpage/internal/book"
	"nextpage/internal/debounce"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeahead_ShortQueryNeverCallsUpstream(t *testing.T) {
	c, _ := newTestClient(t, Options{})
	ta := NewTypeahead(c, 20*time.Millisecond)

	books, err := ta.Suggest(context.Background(), "client-1", "ab")
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestTypeahead_OneCallAfterWindow(t *testing.T) {
	c, p := newTestClient(t, Options{})
	window := 30 * time.Millisecond
	ta := NewTypeahead(c, window)

	p.EXPECT().Query(gomock.Any(), "abc", gomock.Any()).Return([]book.Book{{ID: "1", Title: "ABC Murders"}}, nil).Times(1)

	start := time.Now()
	books, err := ta.Suggest(context.Background(), "client-1", "abc")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), window)
	require.Len(t, books, 1)
	assert.Equal(t, "ABC Murders", books[0].Title)
}

func TestTypeahead_NewerKeystrokeSupersedes(t *testing.T) {
	c, p := newTestClient(t, Options{})
	ta := NewTypeahead(c, 50*time.Millisecond)

	// Only the last query reaches the upstream.
	p.EXPECT().Query(gomock.Any(), "dune messiah", gomock.Any()).Return([]book.Book{{ID: "2", Title: "Dune Messiah"}}, nil).Times(1)

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = ta.Suggest(context.Background(), "client-1", "dune")
	}()
	time.Sleep(10 * time.Millisecond)

	books, err := ta.Suggest(context.Background(), "client-1", "dune messiah")
	wg.Wait()

	require.NoError(t, err)
	assert.Len(t, books, 1)
	assert.ErrorIs(t, firstErr, debounce.ErrSuperseded)
}
