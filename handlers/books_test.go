package handlers

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kevinaaaquil/bookdash/service"
	"github.com/kevinaaaquil/bookdash/store"
)

type dashboard struct {
	srv    *httptest.Server
	client *http.Client
	notes  *service.Notifier
}

func newDashboard(t *testing.T) *dashboard {
	t.Helper()
	remote := newDocstoreServer(t)
	gw := service.NewGateway(remote.URL+"/api/books", 0)
	cache := store.NewCache(gw.FetchAll)
	notes := service.NewNotifier(3, time.Minute)
	h := &BooksHandler{
		Cache: cache,
		Coord: service.NewCoordinator(gw, cache, notes, nil),
		Notes: notes,
		Views: store.NewSessions(time.Hour, func() service.ViewState {
			return service.NewViewState(service.DefaultPageSize)
		}),
	}
	r := chi.NewRouter()
	r.Route("/api", h.Routes)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	jar, _ := cookiejar.New(nil)
	return &dashboard{srv: srv, client: &http.Client{Jar: jar}, notes: notes}
}

func (d *dashboard) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, d.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := d.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (d *dashboard) list(t *testing.T, query string) listResponse {
	t.Helper()
	resp := d.do(t, http.MethodGet, "/api/books"+query, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status %d", resp.StatusCode)
	}
	var out listResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	return out
}

func bookJSON(title, genre, status string, year int) string {
	return fmt.Sprintf(`{"title":%q,"author":"Author %s","genre":%q,"year":%d,"status":%q}`,
		title, title, genre, year, status)
}

func TestDashboardCreateListUpdateDelete(t *testing.T) {
	d := newDashboard(t)

	resp := d.do(t, http.MethodPost, "/api/books", bookJSON("Dune", "Sci-Fi", "Available", 1965))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d", resp.StatusCode)
	}
	var created struct {
		ID string `json:"id"`
	}
	json.NewDecoder(resp.Body).Decode(&created)
	if created.ID == "" {
		t.Fatalf("created book has no id")
	}

	page := d.list(t, "")
	if page.Total != 1 || page.Books[0].ID != created.ID || page.Books[0].Busy {
		t.Fatalf("after create: %+v", page)
	}
	loaded := page.FetchedAt
	if loaded.IsZero() {
		t.Fatalf("list should report when the collection was fetched")
	}
	if again := d.list(t, ""); !again.FetchedAt.Equal(loaded) {
		t.Fatalf("unchanged collection was refetched: %v then %v", loaded, again.FetchedAt)
	}

	resp = d.do(t, http.MethodPut, "/api/books/"+created.ID, bookJSON("Dune", "Sci-Fi", "Issued", 1965))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status %d", resp.StatusCode)
	}
	page = d.list(t, "")
	if page.Books[0].Status != "Issued" {
		t.Fatalf("update not visible: %+v", page.Books[0])
	}
	if !page.FetchedAt.After(loaded) {
		t.Fatalf("update should force a refetch: %v then %v", loaded, page.FetchedAt)
	}

	resp = d.do(t, http.MethodDelete, "/api/books/"+created.ID, "")
	if resp.StatusCode != http.StatusPreconditionRequired {
		t.Fatalf("unconfirmed delete should be refused, got %d", resp.StatusCode)
	}
	resp = d.do(t, http.MethodDelete, "/api/books/"+created.ID+"?confirm=true", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status %d", resp.StatusCode)
	}
	if page = d.list(t, ""); page.Total != 0 || page.TotalPages != 0 {
		t.Fatalf("after delete: %+v", page)
	}

	var msgs []string
	for _, n := range d.notes.Active() {
		msgs = append(msgs, n.Message)
	}
	want := "Book added successfully!,Book updated successfully!,Book deleted successfully!"
	if strings.Join(msgs, ",") != want {
		t.Fatalf("notifications %v", msgs)
	}
}

func TestDashboardValidationErrors(t *testing.T) {
	d := newDashboard(t)

	resp := d.do(t, http.MethodPost, "/api/books", `{"title":"","author":"x","genre":"g","year":"1800","status":"Available"}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("want 422, got %d", resp.StatusCode)
	}
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Fields["title"] != "Title is required" || body.Fields["year"] != "Invalid year" {
		t.Fatalf("fields %v", body.Fields)
	}
	if page := d.list(t, ""); page.Total != 0 {
		t.Fatalf("invalid form must not be stored")
	}
	if len(d.notes.Active()) != 0 {
		t.Fatalf("validation failures are not notifications")
	}
}

func TestDashboardUpdateMissingBook(t *testing.T) {
	d := newDashboard(t)
	resp := d.do(t, http.MethodPut, "/api/books/nope", bookJSON("Dune", "Sci-Fi", "Available", 1965))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("want 404, got %d", resp.StatusCode)
	}
	active := d.notes.Active()
	if len(active) != 1 || active[0].Message != "Failed to update book" {
		t.Fatalf("notifications %+v", active)
	}
}

func TestDashboardViewSessionFiltersAndPages(t *testing.T) {
	d := newDashboard(t)
	for i := 1; i <= 12; i++ {
		genre := "Fantasy"
		if i%2 == 0 {
			genre = "Sci-Fi"
		}
		resp := d.do(t, http.MethodPost, "/api/books", bookJSON(fmt.Sprintf("Book %02d", i), genre, "Available", 2000))
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("seed %d: status %d", i, resp.StatusCode)
		}
	}

	page := d.list(t, "?page=2")
	if page.Page != 2 || page.TotalPages != 2 || len(page.Books) != 2 || page.Books[0].Title != "Book 11" {
		t.Fatalf("page 2: %+v", page)
	}
	if strings.Join(page.Genres, ",") != "Fantasy,Sci-Fi" {
		t.Fatalf("genre options %v", page.Genres)
	}

	// The session remembers page 2 until a filter changes.
	if page = d.list(t, ""); page.Page != 2 {
		t.Fatalf("session lost page: %d", page.Page)
	}
	page = d.list(t, "?genre=Sci-Fi")
	if page.Page != 1 || page.Total != 6 || page.Filters.Genre != "Sci-Fi" {
		t.Fatalf("filter should reset page: %+v", page)
	}
	page = d.list(t, "?search=book+1")
	if page.Total != 2 {
		t.Fatalf("search within genre: %+v", page)
	}

	resp := d.do(t, http.MethodGet, "/api/export?format=csv", "")
	rows, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("export should follow the view filters, got %d rows", len(rows))
	}
}

func TestDashboardPublishWithoutStorage(t *testing.T) {
	d := newDashboard(t)
	resp := d.do(t, http.MethodPost, "/api/export", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("want 503, got %d", resp.StatusCode)
	}
}
