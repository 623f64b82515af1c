package service

import (
	"strings"

	"github.com/kevinaaaquil/bookdash/models"
)

// DefaultPageSize is the number of rows the dashboard shows per page.
const DefaultPageSize = 10

// Filters are the user-controlled narrowing inputs. Empty fields match all.
type Filters struct {
	Search string `json:"search"`
	Genre  string `json:"genre"`
	Status string `json:"status"`
}

// Query is everything Derive needs besides the collection.
type Query struct {
	Filters
	Page     int
	PageSize int
}

// Page is one derived page of the collection.
type Page struct {
	Books      []models.Book `json:"books"`
	Page       int           `json:"page"`
	TotalPages int           `json:"totalPages"`
	Total      int           `json:"total"`
}

// Derive filters and paginates books. It does not modify its input.
func Derive(books []models.Book, q Query) Page {
	size := q.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	filtered := Filter(books, q.Filters)
	rows, total := Paginate(filtered, q.Page, size)
	return Page{
		Books:      rows,
		Page:       q.Page,
		TotalPages: total,
		Total:      len(filtered),
	}
}

// Filter keeps the books whose title or author contains the search text
// (case-insensitive) and whose genre and status equal the filters when set.
func Filter(books []models.Book, f Filters) []models.Book {
	needle := strings.ToLower(f.Search)
	out := make([]models.Book, 0, len(books))
	for _, b := range books {
		b = models.Normalize(b)
		if needle != "" &&
			!strings.Contains(strings.ToLower(b.Title), needle) &&
			!strings.Contains(strings.ToLower(b.Author), needle) {
			continue
		}
		if f.Genre != "" && b.Genre != f.Genre {
			continue
		}
		if f.Status != "" && string(b.Status) != f.Status {
			continue
		}
		out = append(out, b)
	}
	return out
}

// Paginate returns the 1-based page of books and the page count. The slice
// bounds are clamped, so an out-of-range page yields an empty page.
func Paginate(books []models.Book, page, size int) ([]models.Book, int) {
	if size <= 0 {
		size = DefaultPageSize
	}
	totalPages := (len(books) + size - 1) / size
	start := clamp((page-1)*size, 0, len(books))
	end := clamp(page*size, start, len(books))
	return books[start:end:end], totalPages
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// FilterOptions returns the distinct genres and statuses present in books, in
// the order they first appear.
func FilterOptions(books []models.Book) (genres, statuses []string) {
	seenGenre := make(map[string]bool)
	seenStatus := make(map[string]bool)
	genres = []string{}
	statuses = []string{}
	for _, b := range books {
		if !seenGenre[b.Genre] {
			seenGenre[b.Genre] = true
			genres = append(genres, b.Genre)
		}
		if s := string(b.Status); !seenStatus[s] {
			seenStatus[s] = true
			statuses = append(statuses, s)
		}
	}
	return genres, statuses
}

// ViewState is the dashboard's search, filter and page selection. Any change
// to the filters sends the view back to page 1.
type ViewState struct {
	Filters  Filters
	Page     int
	PageSize int
}

func NewViewState(pageSize int) ViewState {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return ViewState{Page: 1, PageSize: pageSize}
}

// SetFilters replaces the filters and reports whether they changed.
func (v *ViewState) SetFilters(f Filters) bool {
	if f == v.Filters {
		return false
	}
	v.Filters = f
	v.Page = 1
	return true
}

func (v *ViewState) SetSearch(s string) bool {
	f := v.Filters
	f.Search = s
	return v.SetFilters(f)
}

func (v *ViewState) SetGenre(g string) bool {
	f := v.Filters
	f.Genre = g
	return v.SetFilters(f)
}

func (v *ViewState) SetStatus(s string) bool {
	f := v.Filters
	f.Status = s
	return v.SetFilters(f)
}

func (v *ViewState) SetPage(p int) {
	if p < 1 {
		p = 1
	}
	v.Page = p
}

// Clamp pulls the page back inside [1, totalPages]. A view whose last page
// disappeared after a delete lands on the new last page.
func (v *ViewState) Clamp(totalPages int) {
	if v.Page > totalPages {
		v.Page = totalPages
	}
	if v.Page < 1 {
		v.Page = 1
	}
}

func (v ViewState) Query() Query {
	return Query{Filters: v.Filters, Page: v.Page, PageSize: v.PageSize}
}
