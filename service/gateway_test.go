package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kevinaaaquil/bookdash/models"
)

// fakeStore mimics the remote document store: it assigns "_id" on create and
// rejects replacement bodies that carry an identifier.
type fakeStore struct {
	mu   sync.Mutex
	docs map[string]map[string]any
	seq  int
	puts []map[string]any
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[string]map[string]any)}
}

func (s *fakeStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := strings.TrimPrefix(r.URL.Path, "/books")
	id = strings.TrimPrefix(id, "/")

	switch {
	case r.Method == http.MethodGet && id == "":
		out := make([]map[string]any, 0, len(s.docs))
		for i := 1; i <= s.seq; i++ {
			if d, ok := s.docs[fmt.Sprintf("id%d", i)]; ok {
				out = append(out, d)
			}
		}
		_ = json.NewEncoder(w).Encode(out)
	case r.Method == http.MethodGet:
		d, ok := s.docs[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(d)
	case r.Method == http.MethodPost:
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.seq++
		body["_id"] = fmt.Sprintf("id%d", s.seq)
		s.docs[body["_id"].(string)] = body
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(body)
	case r.Method == http.MethodPut:
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.puts = append(s.puts, body)
		if _, ok := body["_id"]; ok {
			http.Error(w, "identifier in body", http.StatusBadRequest)
			return
		}
		if _, ok := body["id"]; ok {
			http.Error(w, "identifier in body", http.StatusBadRequest)
			return
		}
		if _, ok := s.docs[id]; !ok {
			http.NotFound(w, r)
			return
		}
		body["_id"] = id
		s.docs[id] = body
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodDelete:
		if _, ok := s.docs[id]; !ok {
			http.NotFound(w, r)
			return
		}
		delete(s.docs, id)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestGateway(t *testing.T, h http.Handler) *Gateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewGateway(srv.URL+"/books", 0)
}

func TestGatewayCreateThenFetch(t *testing.T) {
	store := newFakeStore()
	g := newTestGateway(t, store)
	ctx := context.Background()

	created, err := g.Create(ctx, validDraft())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != "id1" {
		t.Fatalf("want _id mapped to id, got %q", created.ID)
	}

	books, err := g.FetchAll(ctx)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(books) != 1 || books[0].ID != "id1" || books[0].Title != "Dune" {
		t.Fatalf("unexpected collection %+v", books)
	}
}

func TestGatewayUpdateSendsNoIdentifier(t *testing.T) {
	store := newFakeStore()
	g := newTestGateway(t, store)
	ctx := context.Background()

	created, err := g.Create(ctx, validDraft())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	edited := created
	edited.Status = models.StatusIssued
	got, err := g.Update(ctx, created.ID, edited)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.ID != created.ID || got.Status != models.StatusIssued {
		t.Fatalf("unexpected update result %+v", got)
	}
	if len(store.puts) != 1 {
		t.Fatalf("want one PUT, got %d", len(store.puts))
	}
	if _, ok := store.puts[0]["id"]; ok {
		t.Fatalf("PUT body leaked id: %v", store.puts[0])
	}

	fetched, err := g.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.Status != models.StatusIssued {
		t.Fatalf("update did not persist: %+v", fetched)
	}
}

func TestGatewayDelete(t *testing.T) {
	store := newFakeStore()
	g := newTestGateway(t, store)
	ctx := context.Background()

	created, _ := g.Create(ctx, validDraft())
	if err := g.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	books, err := g.FetchAll(ctx)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(books) != 0 {
		t.Fatalf("record should be gone: %+v", books)
	}

	err = g.Delete(ctx, created.ID)
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.ID != created.ID {
		t.Fatalf("want not found for %s, got %v", created.ID, err)
	}
}

func TestGatewayNormalizesRecords(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"_id":" a1 ","title":"A","author":"x","genre":"g","year":"1999","status":"Available"},
			{"id":"b2","title":"B","author":"y","genre":"g","year":2001,"status":"Lost"},
			{"title":"orphan","author":"z","genre":"g","year":2000,"status":"Lost"}
		]`))
	})
	g := newTestGateway(t, h)

	books, err := g.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(books) != 2 {
		t.Fatalf("record without id should be dropped, got %+v", books)
	}
	if books[0].ID != "a1" || books[0].Year != 1999 {
		t.Fatalf("first record: %+v", books[0])
	}
	if books[1].ID != "b2" {
		t.Fatalf("id fallback failed: %+v", books[1])
	}
}

func TestGatewayServerErrorIsTransportError(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusInternalServerError)
	})
	g := newTestGateway(t, h)

	_, err := g.FetchAll(context.Background())
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("want transport error, got %v", err)
	}
	if terr.Status != http.StatusInternalServerError || !strings.Contains(terr.Error(), "quota exceeded") {
		t.Fatalf("unexpected error %v", terr)
	}
}

func TestGatewayUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL + "/books"
	srv.Close()

	_, err := NewGateway(base, 0).FetchAll(context.Background())
	var terr *TransportError
	if !errors.As(err, &terr) || terr.Status != 0 {
		t.Fatalf("want transport error without status, got %v", err)
	}
}
