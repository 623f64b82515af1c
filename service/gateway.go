package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kevinaaaquil/bookdash/models"
)

// Gateway talks to the remote document store. Every record that comes back is
// normalized to models.Book; every body that goes out is a models.Draft.
type Gateway struct {
	base   string
	client *http.Client
}

// NewGateway returns a gateway for the collection at base, e.g.
// https://crudcrud.com/api/<token>/books.
func NewGateway(base string, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Gateway{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

func (g *Gateway) recordURL(id string) string {
	return g.base + "/" + url.PathEscape(id)
}

// FetchAll returns the whole collection. Records the store returns without any
// identifier are dropped.
func (g *Gateway) FetchAll(ctx context.Context) ([]models.Book, error) {
	var records []models.StoreRecord
	if err := g.do(ctx, http.MethodGet, g.base, "", nil, &records); err != nil {
		return nil, err
	}
	books := make([]models.Book, 0, len(records))
	for _, r := range records {
		b := r.Book()
		if b.ID == "" {
			log.Printf("gateway: skipping record without identifier (title %q)", r.Title)
			continue
		}
		books = append(books, b)
	}
	return books, nil
}

func (g *Gateway) Get(ctx context.Context, id string) (models.Book, error) {
	id = models.CanonicalID(id)
	var r models.StoreRecord
	if err := g.do(ctx, http.MethodGet, g.recordURL(id), id, nil, &r); err != nil {
		return models.Book{}, err
	}
	b := r.Book()
	if b.ID == "" {
		b.ID = id
	}
	return b, nil
}

// Create posts the draft and returns the stored record with its new id.
func (g *Gateway) Create(ctx context.Context, draft models.Draft) (models.Book, error) {
	var r models.StoreRecord
	if err := g.do(ctx, http.MethodPost, g.base, "", draft, &r); err != nil {
		return models.Book{}, err
	}
	b := r.Book()
	if b.ID == "" {
		return models.Book{}, &TransportError{
			Method: http.MethodPost,
			URL:    g.base,
			Err:    errors.New("store response carried no identifier"),
		}
	}
	return b, nil
}

// Update replaces the record stored under id with book. The id travels only in
// the URL; the body is the record without any identifier field.
func (g *Gateway) Update(ctx context.Context, id string, book models.Book) (models.Book, error) {
	id = models.CanonicalID(id)
	if err := g.do(ctx, http.MethodPut, g.recordURL(id), id, book.Draft(), nil); err != nil {
		return models.Book{}, err
	}
	book.ID = id
	return book, nil
}

func (g *Gateway) Delete(ctx context.Context, id string) error {
	id = models.CanonicalID(id)
	return g.do(ctx, http.MethodDelete, g.recordURL(id), id, nil, nil)
}

// do performs one JSON round trip. id names the addressed record so a 404 can
// be reported as *NotFoundError; collection requests pass "".
func (g *Gateway) do(ctx context.Context, method, endpoint, id string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return &TransportError{Method: method, URL: endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return &TransportError{Method: method, URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Method: method, URL: endpoint, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode == http.StatusNotFound && id != "" {
		return &NotFoundError{ID: id}
	}
	if resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &TransportError{Method: method, URL: endpoint, Status: resp.StatusCode, Err: errors.New(msg)}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &TransportError{Method: method, URL: endpoint, Status: resp.StatusCode, Err: err}
	}
	return nil
}
