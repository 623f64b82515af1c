package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a collection has no document with the given id.
var ErrNotFound = errors.New("document not found")

// IDField is the key under which backends report a document's identifier.
const IDField = "_id"

// Document is a schemaless JSON object as the document store keeps it.
type Document map[string]any

// Documents is a collection-scoped JSON document store. Backends assign the
// identifier on Insert and report it under IDField; callers never supply one.
type Documents interface {
	List(ctx context.Context, collection string) ([]Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Insert(ctx context.Context, collection string, doc Document) (Document, error)
	Replace(ctx context.Context, collection, id string, doc Document) error
	Delete(ctx context.Context, collection, id string) error
	Close(ctx context.Context) error
}

// withoutID returns a copy of doc with any identifier keys removed.
func withoutID(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		if k == IDField || k == "id" {
			continue
		}
		out[k] = v
	}
	return out
}
