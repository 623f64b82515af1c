package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kevinaaaquil/bookdash/models"
	"github.com/kevinaaaquil/bookdash/service"
	"github.com/kevinaaaquil/bookdash/store"
)

func newDocstoreServer(t *testing.T) *httptest.Server {
	t.Helper()
	docs, err := store.NewSQLite(filepath.Join(t.TempDir(), "docs.db"))
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	t.Cleanup(func() { docs.Close(context.Background()) })

	h := &DocstoreHandler{Docs: docs}
	r := chi.NewRouter()
	r.Route("/api", h.Routes)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestDocstoreRejectsIdentifierInReplaceBody(t *testing.T) {
	srv := newDocstoreServer(t)

	resp, err := http.Post(srv.URL+"/api/books", "application/json", strings.NewReader(`{"title":"Dune"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("post status %d", resp.StatusCode)
	}

	for _, body := range []string{`{"_id":"x","title":"Dune"}`, `{"id":"x","title":"Dune"}`} {
		req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/books/anything", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err = http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("put: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("want 400 for %s, got %d", body, resp.StatusCode)
		}
	}
}

func TestDocstoreInvalidCollection(t *testing.T) {
	srv := newDocstoreServer(t)
	resp, err := http.Get(srv.URL + "/api/bad.name")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("want 400, got %d", resp.StatusCode)
	}
}

// The gateway and the docstore speak the same protocol; scenarios B, C and D
// run against a real backend here.
func TestGatewayAgainstDocstore(t *testing.T) {
	srv := newDocstoreServer(t)
	g := service.NewGateway(srv.URL+"/api/books", 0)
	ctx := context.Background()

	draft := models.Draft{Title: "Dune", Author: "Frank Herbert", Genre: "Sci-Fi", Year: 1965, Status: models.StatusAvailable}
	created, err := g.Create(ctx, draft)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("created record has no id")
	}

	all, err := g.FetchAll(ctx)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(all) != 1 || all[0].ID != created.ID || all[0].Title != "Dune" {
		t.Fatalf("scenario B: %+v", all)
	}

	edited := all[0]
	edited.Status = models.StatusIssued
	if _, err := g.Update(ctx, edited.ID, edited); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := g.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.StatusIssued || got.Author != "Frank Herbert" || got.Year != 1965 {
		t.Fatalf("scenario C: %+v", got)
	}

	if err := g.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	all, err = g.FetchAll(ctx)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	for _, b := range all {
		if b.ID == created.ID {
			t.Fatalf("scenario D: %s still present", b.ID)
		}
	}

	_, err = g.Update(ctx, created.ID, edited)
	var nf *service.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("update of deleted record: %v", err)
	}
}
