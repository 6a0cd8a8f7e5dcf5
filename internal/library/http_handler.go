package library

import (
	"errors"
	"net/http"
	"strings"

	"nextpage/internal/book"
	"nextpage/internal/httpx"
	"nextpage/internal/logging"
	"nextpage/internal/rating"
	"nextpage/internal/storefront"
)

type HTTPHandler struct {
	store  *Store
	linker *storefront.Linker
}

func NewHTTPHandler(store *Store, linker *storefront.Linker) *HTTPHandler {
	return &HTTPHandler{store: store, linker: linker}
}

type bookReq struct {
	ID            string   `json:"id" validate:"max=128"`
	Title         string   `json:"title" validate:"required,max=500"`
	Author        string   `json:"author" validate:"max=500"`
	Genre         string   `json:"genre" validate:"max=100"`
	Description   string   `json:"description" validate:"max=10000"`
	CoverImage    *string  `json:"coverImage" validate:"omitempty,url"`
	ASIN          *string  `json:"asin" validate:"omitempty,max=20"`
	AverageRating *float64 `json:"averageRating" validate:"omitempty,gte=0,lte=5"`
}

func (req bookReq) toBook() book.Book {
	return book.Book{
		ID:            strings.TrimSpace(req.ID),
		Title:         req.Title,
		Author:        req.Author,
		Genre:         req.Genre,
		Description:   req.Description,
		CoverImage:    req.CoverImage,
		ASIN:          req.ASIN,
		AverageRating: req.AverageRating,
	}
}

type addReadReq struct {
	bookReq
	Rating *float64 `json:"rating" validate:"omitempty,half_step"`
}

type rateReq struct {
	Rating *float64 `json:"rating" validate:"required,half_step"`
}

type markReadReq struct {
	Rating *float64 `json:"rating" validate:"omitempty,half_step"`
}

type feedbackReq struct {
	Kind string `json:"kind" validate:"required,feedback_kind"`
}

type readBookView struct {
	book.ReadBook
	RatingLabel string          `json:"ratingLabel"`
	Stars       string          `json:"stars"`
	BuyLink     storefront.Link `json:"buyLink"`
}

type readingListView struct {
	book.ReadingListEntry
	Position int             `json:"position"`
	BuyLink  storefront.Link `json:"buyLink"`
}

type libraryView struct {
	ReadBooks   []readBookView    `json:"readBooks"`
	ReadingList []readingListView `json:"readingList"`
	Feedback    book.Feedback     `json:"feedback"`
	Stats       Stats             `json:"stats"`
}

type feedbackView struct {
	ID       string            `json:"id"`
	Feedback book.FeedbackKind `json:"feedback"`
}

type ratingLabelView struct {
	Rating float64 `json:"rating"`
	Label  string  `json:"label"`
	Stars  string  `json:"stars"`
}

func (h *HTTPHandler) readView(rb book.ReadBook) readBookView {
	return readBookView{
		ReadBook:    rb,
		RatingLabel: rating.Label(rb.Rating),
		Stars:       rating.Stars(rb.Rating),
		BuyLink:     h.linker.Link(rb.ASIN),
	}
}

func (h *HTTPHandler) listView(e book.ReadingListEntry, position int) readingListView {
	return readingListView{
		ReadingListEntry: e,
		Position:         position,
		BuyLink:          h.linker.Link(e.ASIN),
	}
}

// entryView looks up e's 1-based position on the reading list.
func (h *HTTPHandler) entryView(e book.ReadingListEntry) readingListView {
	position := 0
	for i, cur := range h.store.Snapshot().ReadingList {
		if cur.ID == e.ID {
			position = i + 1
			break
		}
	}
	return h.listView(e, position)
}

func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !httpx.DecodeJSON(w, r, dst) {
		return false
	}
	if details := httpx.ValidateStruct(dst); len(details) > 0 {
		httpx.JSONError(w, r, http.StatusBadRequest, httpx.CodeValidation, "Invalid input", details)
		return false
	}
	return true
}

func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.JSONError(w, r, http.StatusNotFound, httpx.CodeNotFound, "Book not found", nil)
	case errors.Is(err, ErrTitleRequired):
		httpx.JSONError(w, r, http.StatusBadRequest, httpx.CodeValidation, "Invalid input", []httpx.ErrorDetail{
			{Field: "title", Message: "title is required"},
		})
	case errors.Is(err, rating.ErrInvalidRating):
		httpx.JSONError(w, r, http.StatusBadRequest, httpx.CodeValidation, "Invalid input", []httpx.ErrorDetail{
			{Field: "rating", Message: err.Error()},
		})
	case errors.Is(err, ErrInvalidFeedback):
		httpx.JSONError(w, r, http.StatusBadRequest, httpx.CodeValidation, "Invalid input", []httpx.ErrorDetail{
			{Field: "kind", Message: err.Error()},
		})
	default:
		// The change is live in memory; only persisting it failed.
		logging.Ctx(r.Context()).Error().Err(err).Msg("library change not persisted")
		httpx.JSONError(w, r, http.StatusInternalServerError, httpx.CodeInternal, "Change could not be saved", nil)
	}
}

// Get handles GET /v1/library
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Snapshot()

	view := libraryView{
		ReadBooks:   make([]readBookView, len(snap.ReadBooks)),
		ReadingList: make([]readingListView, len(snap.ReadingList)),
		Feedback:    snap.Feedback,
		Stats:       h.store.Stats(),
	}
	for i, rb := range snap.ReadBooks {
		view.ReadBooks[i] = h.readView(rb)
	}
	for i, e := range snap.ReadingList {
		view.ReadingList[i] = h.listView(e, i+1)
	}

	httpx.JSONSuccess(w, r, view, nil)
}

// AddRead handles POST /v1/library/read
func (h *HTTPHandler) AddRead(w http.ResponseWriter, r *http.Request) {
	var req addReadReq
	if !decodeAndValidate(w, r, &req) {
		return
	}

	b := req.toBook()
	_, existed := h.store.ReadBook(b.ID)

	rb, err := h.store.AddReadBook(r.Context(), b, req.Rating)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	if existed {
		httpx.JSONSuccess(w, r, h.readView(rb), nil)
		return
	}
	httpx.JSONCreated(w, r, h.readView(rb))
}

// RemoveRead handles DELETE /v1/library/read/{id}
func (h *HTTPHandler) RemoveRead(w http.ResponseWriter, r *http.Request) {
	if err := h.store.RemoveReadBook(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, r, err)
		return
	}
	httpx.JSONNoContent(w)
}

// UpdateRating handles PATCH /v1/library/read/{id}/rating
func (h *HTTPHandler) UpdateRating(w http.ResponseWriter, r *http.Request) {
	var req rateReq
	if !decodeAndValidate(w, r, &req) {
		return
	}

	rb, err := h.store.UpdateRating(r.Context(), r.PathValue("id"), *req.Rating)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, h.readView(rb), nil)
}

// MoveToReadingList handles POST /v1/library/read/{id}/reading-list
func (h *HTTPHandler) MoveToReadingList(w http.ResponseWriter, r *http.Request) {
	rb, ok := h.store.ReadBook(r.PathValue("id"))
	if !ok {
		writeStoreError(w, r, ErrNotFound)
		return
	}

	entry, err := h.store.MoveToReadingList(r.Context(), rb.Book)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, h.entryView(entry), nil)
}

// AddToReadingList handles POST /v1/library/reading-list
func (h *HTTPHandler) AddToReadingList(w http.ResponseWriter, r *http.Request) {
	var req bookReq
	if !decodeAndValidate(w, r, &req) {
		return
	}

	b := req.toBook()
	_, existed := h.store.ReadingListEntry(b.ID)

	entry, err := h.store.AddToReadingList(r.Context(), b)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	if existed {
		httpx.JSONSuccess(w, r, h.entryView(entry), nil)
		return
	}
	httpx.JSONCreated(w, r, h.entryView(entry))
}

// RemoveFromReadingList handles DELETE /v1/library/reading-list/{id}
func (h *HTTPHandler) RemoveFromReadingList(w http.ResponseWriter, r *http.Request) {
	if err := h.store.RemoveFromReadingList(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, r, err)
		return
	}
	httpx.JSONNoContent(w)
}

// MarkAsRead handles POST /v1/library/reading-list/{id}/read. The body is
// optional; without a rating the default applies.
func (h *HTTPHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.store.ReadingListEntry(r.PathValue("id"))
	if !ok {
		writeStoreError(w, r, ErrNotFound)
		return
	}

	var req markReadReq
	if r.ContentLength != 0 && !decodeAndValidate(w, r, &req) {
		return
	}
	value := book.DefaultReadRating
	if req.Rating != nil {
		value = *req.Rating
	}

	rb, err := h.store.MarkAsRead(r.Context(), entry.Book, value)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, h.readView(rb), nil)
}

// SetFeedback handles PUT /v1/library/feedback/{id}. Sending the current
// value again clears it.
func (h *HTTPHandler) SetFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackReq
	if !decodeAndValidate(w, r, &req) {
		return
	}

	id := r.PathValue("id")
	current, err := h.store.SetFeedback(r.Context(), id, book.FeedbackKind(req.Kind))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, feedbackView{ID: id, Feedback: current}, nil)
}

// RatingLabels handles GET /v1/ratings/labels
func (h *HTTPHandler) RatingLabels(w http.ResponseWriter, r *http.Request) {
	grid := rating.Grid()
	labels := make([]ratingLabelView, len(grid))
	for i, v := range grid {
		labels[i] = ratingLabelView{Rating: v, Label: rating.Label(v), Stars: rating.Stars(v)}
	}
	httpx.JSONSuccess(w, r, labels, nil)
}
