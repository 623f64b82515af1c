package handlers

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kevinaaaquil/bookdash/models"
	"github.com/kevinaaaquil/bookdash/service"
	"github.com/kevinaaaquil/bookdash/store"
)

// ViewCookie carries the id of the caller's view session.
const ViewCookie = "bookdash_view"

type BooksHandler struct {
	Cache     *store.Cache
	Coord     *service.Coordinator
	Notes     *service.Notifier
	Views     *store.Sessions[service.ViewState]
	Publisher *service.Publisher // nil when S3 export is not configured
}

// Routes mounts the dashboard API on r.
func (h *BooksHandler) Routes(r chi.Router) {
	r.Get("/books", h.List)
	r.Post("/books", h.Create)
	r.Get("/books/{id}", h.Get)
	r.Put("/books/{id}", h.Update)
	r.Delete("/books/{id}", h.Delete)
	r.Get("/notifications", h.Notifications)
	r.Delete("/notifications/{id}", h.DismissNotification)
	r.Get("/export", h.Export)
	r.Post("/export", h.Publish)
}

type bookRow struct {
	models.Book
	Busy bool       `json:"busy"`
	Op   service.Op `json:"op,omitempty"`
}

type listResponse struct {
	Books      []bookRow       `json:"books"`
	Page       int             `json:"page"`
	TotalPages int             `json:"totalPages"`
	Total      int             `json:"total"`
	Filters    service.Filters `json:"filters"`
	Genres     []string        `json:"genres"`
	Statuses   []string        `json:"statuses"`
	Creating   int             `json:"creating"`
	FetchedAt  time.Time       `json:"fetchedAt"`
}

// List applies any search, genre, status or page query parameters to the
// caller's view and returns the resulting page.
func (h *BooksHandler) List(w http.ResponseWriter, r *http.Request) {
	books, err := h.Cache.Books(r.Context())
	if err != nil {
		log.Printf("books: load: %v", err)
		writeError(w, http.StatusBadGateway, "Error fetching books")
		return
	}

	q := r.URL.Query()
	var page service.Page
	var filters service.Filters
	h.view(w, r, func(v *service.ViewState) {
		f := v.Filters
		if q.Has("search") {
			f.Search = q.Get("search")
		}
		if q.Has("genre") {
			f.Genre = q.Get("genre")
		}
		if q.Has("status") {
			f.Status = q.Get("status")
		}
		changed := v.SetFilters(f)
		if n, err := strconv.Atoi(q.Get("page")); err == nil && !changed {
			v.SetPage(n)
		}
		page = service.Derive(books, v.Query())
		v.Clamp(page.TotalPages)
		if v.Page != page.Page {
			page = service.Derive(books, v.Query())
		}
		filters = v.Filters
	})

	rows := make([]bookRow, len(page.Books))
	for i, b := range page.Books {
		st := h.Coord.RowState(b.ID)
		rows[i] = bookRow{Book: b, Busy: st.Busy, Op: st.Op}
	}
	genres, statuses := service.FilterOptions(books)
	writeJSON(w, http.StatusOK, listResponse{
		Books:      rows,
		Page:       page.Page,
		TotalPages: page.TotalPages,
		Total:      page.Total,
		Filters:    filters,
		Genres:     genres,
		Statuses:   statuses,
		Creating:   h.Coord.Creating(),
		FetchedAt:  h.Cache.FetchedAt(),
	})
}

// view runs fn on the caller's view state and refreshes the session cookie.
func (h *BooksHandler) view(w http.ResponseWriter, r *http.Request, fn func(v *service.ViewState)) {
	var id string
	if c, err := r.Cookie(ViewCookie); err == nil {
		id = c.Value
	}
	id = h.Views.With(id, fn)
	http.SetCookie(w, &http.Cookie{
		Name:     ViewCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *BooksHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := models.CanonicalID(chi.URLParam(r, "id"))
	book, ok, err := h.Cache.Find(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusBadGateway, "Error fetching books")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "book not found")
		return
	}
	st := h.Coord.RowState(book.ID)
	writeJSON(w, http.StatusOK, bookRow{Book: book, Busy: st.Busy, Op: st.Op})
}

// bookForm is the submitted form. Year may arrive as a number or a string.
type bookForm struct {
	Title  string          `json:"title"`
	Author string          `json:"author"`
	Genre  string          `json:"genre"`
	Year   models.LooseInt `json:"year"`
	Status string          `json:"status"`
}

func (f bookForm) draft() models.Draft {
	return models.Draft{
		Title:  f.Title,
		Author: f.Author,
		Genre:  f.Genre,
		Year:   int(f.Year),
		Status: models.Status(f.Status),
	}
}

func decodeForm(r *http.Request) (models.Draft, error) {
	var f bookForm
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		return models.Draft{}, err
	}
	return f.draft(), nil
}

func (h *BooksHandler) Create(w http.ResponseWriter, r *http.Request) {
	form, err := decodeForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	book, err := h.Coord.Submit(r.Context(), form, nil)
	if err != nil {
		writeMutationError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

func (h *BooksHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := models.CanonicalID(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	form, err := decodeForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	book, err := h.Coord.Submit(r.Context(), form, &models.Book{ID: id})
	if err != nil {
		writeMutationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// Delete removes a book. The caller confirms with ?confirm=true; without it
// nothing is sent to the store.
func (h *BooksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := models.CanonicalID(chi.URLParam(r, "id"))
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	attempted, err := h.Coord.Remove(r.Context(), id, func(string) service.Decision {
		return service.Decision(confirmed)
	})
	if err != nil {
		if !attempted {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeMutationError(w, err)
		return
	}
	if !attempted {
		writeError(w, http.StatusPreconditionRequired, "confirm deletion with ?confirm=true")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BooksHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Notes.Active())
}

func (h *BooksHandler) DismissNotification(w http.ResponseWriter, r *http.Request) {
	if !h.Notes.Dismiss(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// filtered returns every book matching the caller's current filters.
func (h *BooksHandler) filtered(w http.ResponseWriter, r *http.Request) ([]models.Book, bool) {
	books, err := h.Cache.Books(r.Context())
	if err != nil {
		log.Printf("books: load: %v", err)
		writeError(w, http.StatusBadGateway, "Error fetching books")
		return nil, false
	}
	var f service.Filters
	h.view(w, r, func(v *service.ViewState) { f = v.Filters })
	return service.Filter(books, f), true
}

// Export downloads the caller's filtered view as CSV or JSON.
func (h *BooksHandler) Export(w http.ResponseWriter, r *http.Request) {
	format, err := service.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	books, ok := h.filtered(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := service.Export(&buf, format, books); err != nil {
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	name := "books-" + time.Now().UTC().Format("20060102-150405") + format.Ext()
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Write(buf.Bytes())
}

// Publish uploads the caller's filtered view to S3 and returns a download link.
func (h *BooksHandler) Publish(w http.ResponseWriter, r *http.Request) {
	if h.Publisher == nil {
		writeError(w, http.StatusServiceUnavailable, "export storage is not configured")
		return
	}
	format, err := service.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	books, ok := h.filtered(w, r)
	if !ok {
		return
	}
	pub, err := h.Publisher.Publish(r.Context(), format, books)
	if err != nil {
		log.Printf("books: publish: %v", err)
		writeError(w, http.StatusBadGateway, "failed to publish export")
		return
	}
	writeJSON(w, http.StatusCreated, pub)
}
