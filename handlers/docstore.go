package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"

	"github.com/kevinaaaquil/bookdash/store"
)

var collectionName = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// DocstoreHandler serves a generic JSON document store: collections are
// created on first write, the backend assigns "_id", and PUT replaces a
// document wholesale.
type DocstoreHandler struct {
	Docs store.Documents
}

// Routes mounts the collection endpoints on r.
func (h *DocstoreHandler) Routes(r chi.Router) {
	r.Get("/{collection}", h.List)
	r.Post("/{collection}", h.Insert)
	r.Get("/{collection}/{id}", h.Get)
	r.Put("/{collection}/{id}", h.Replace)
	r.Delete("/{collection}/{id}", h.Delete)
}

func collection(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := chi.URLParam(r, "collection")
	if !collectionName.MatchString(name) {
		writeError(w, http.StatusBadRequest, "invalid collection name")
		return "", false
	}
	return name, true
}

func decodeDocument(r *http.Request) (store.Document, error) {
	var doc store.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.New("body must be a JSON object")
	}
	return doc, nil
}

func (h *DocstoreHandler) storeError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	log.Printf("docstore: %s: %v", op, err)
	writeError(w, http.StatusInternalServerError, "storage error")
}

func (h *DocstoreHandler) List(w http.ResponseWriter, r *http.Request) {
	name, ok := collection(w, r)
	if !ok {
		return
	}
	docs, err := h.Docs.List(r.Context(), name)
	if err != nil {
		h.storeError(w, "list", err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (h *DocstoreHandler) Get(w http.ResponseWriter, r *http.Request) {
	name, ok := collection(w, r)
	if !ok {
		return
	}
	doc, err := h.Docs.Get(r.Context(), name, chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocstoreHandler) Insert(w http.ResponseWriter, r *http.Request) {
	name, ok := collection(w, r)
	if !ok {
		return
	}
	doc, err := decodeDocument(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	created, err := h.Docs.Insert(r.Context(), name, doc)
	if err != nil {
		h.storeError(w, "insert", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Replace rejects bodies that carry "_id" or "id"; the identifier travels in the
// URL only.
func (h *DocstoreHandler) Replace(w http.ResponseWriter, r *http.Request) {
	name, ok := collection(w, r)
	if !ok {
		return
	}
	doc, err := decodeDocument(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	for _, key := range []string{store.IDField, "id"} {
		if _, has := doc[key]; has {
			writeError(w, http.StatusBadRequest, "request body must not contain "+key)
			return
		}
	}
	if err := h.Docs.Replace(r.Context(), name, chi.URLParam(r, "id"), doc); err != nil {
		h.storeError(w, "replace", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *DocstoreHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name, ok := collection(w, r)
	if !ok {
		return
	}
	if err := h.Docs.Delete(r.Context(), name, chi.URLParam(r, "id")); err != nil {
		h.storeError(w, "delete", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
