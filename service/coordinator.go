package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/kevinaaaquil/bookdash/models"
)

// Remote is the subset of the gateway the coordinator drives.
type Remote interface {
	Create(ctx context.Context, draft models.Draft) (models.Book, error)
	Update(ctx context.Context, id string, book models.Book) (models.Book, error)
	Delete(ctx context.Context, id string) error
}

// Invalidator is the cached collection a successful mutation makes stale.
type Invalidator interface {
	Invalidate()
}

// Op is the kind of mutation in flight for a row.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Decision is the answer of a delete confirmation step.
type Decision bool

const (
	Cancel  Decision = false
	Proceed Decision = true
)

// ConfirmFunc decides whether a delete of id goes ahead.
type ConfirmFunc func(id string) Decision

// AlwaysConfirm proceeds with every delete.
func AlwaysConfirm(string) Decision { return Proceed }

// RowState says whether a row's action controls should be disabled.
type RowState struct {
	Busy bool `json:"busy"`
	Op   Op   `json:"op,omitempty"`
}

// Coordinator runs create, update and delete calls against the remote store,
// tracks which rows have a call in flight, and on success invalidates the
// cached collection. Failures become notifications; local state is never
// touched optimistically, so there is nothing to roll back.
type Coordinator struct {
	remote Remote
	cache  Invalidator
	notes  *Notifier
	hub    *Hub

	mu       sync.Mutex
	inflight map[string]Op
	creating int
}

// NewCoordinator wires the coordinator. hub may be nil.
func NewCoordinator(remote Remote, cache Invalidator, notes *Notifier, hub *Hub) *Coordinator {
	return &Coordinator{
		remote:   remote,
		cache:    cache,
		notes:    notes,
		hub:      hub,
		inflight: make(map[string]Op),
	}
}

// Submit saves a form. When editing carries an id the stored record is
// replaced; otherwise a new record is created. Validation failures return a
// *models.ValidationError before any network call.
func (c *Coordinator) Submit(ctx context.Context, form models.Draft, editing *models.Book) (models.Book, error) {
	if err := form.Validate(); err != nil {
		return models.Book{}, err
	}
	if editing != nil {
		if id := models.CanonicalID(editing.ID); id != "" {
			return c.update(ctx, id, form)
		}
	}
	return c.create(ctx, form)
}

func (c *Coordinator) create(ctx context.Context, form models.Draft) (models.Book, error) {
	c.mu.Lock()
	c.creating++
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.creating--
		c.mu.Unlock()
	}()

	book, err := c.remote.Create(ctx, form)
	if err != nil {
		log.Printf("coordinator: create %q: %v", form.Title, err)
		c.notes.Error("Failed to add book")
		return models.Book{}, fmt.Errorf("add book: %w", err)
	}
	c.succeeded(book.ID, "Book added successfully!")
	return book, nil
}

func (c *Coordinator) update(ctx context.Context, id string, form models.Draft) (models.Book, error) {
	if err := c.begin(id, OpUpdate); err != nil {
		c.notes.Error("Failed to update book")
		return models.Book{}, err
	}
	defer c.end(id)

	book, err := c.remote.Update(ctx, id, form.WithID(id))
	if err != nil {
		log.Printf("coordinator: update %s: %v", id, err)
		c.notes.Error("Failed to update book")
		return models.Book{}, fmt.Errorf("update book %s: %w", id, err)
	}
	c.succeeded(id, "Book updated successfully!")
	return book, nil
}

// Remove deletes the record after confirm agrees. It reports whether the
// delete was attempted; a cancelled confirmation is not an error.
func (c *Coordinator) Remove(ctx context.Context, id string, confirm ConfirmFunc) (bool, error) {
	id = models.CanonicalID(id)
	if id == "" {
		return false, errors.New("delete book: missing id")
	}
	if confirm == nil || confirm(id) != Proceed {
		return false, nil
	}
	if err := c.begin(id, OpDelete); err != nil {
		c.notes.Error("Failed to delete book")
		return true, err
	}
	defer c.end(id)

	if err := c.remote.Delete(ctx, id); err != nil {
		log.Printf("coordinator: delete %s: %v", id, err)
		c.notes.Error("Failed to delete book")
		return true, fmt.Errorf("delete book %s: %w", id, err)
	}
	c.succeeded(id, "Book deleted successfully!")
	return true, nil
}

func (c *Coordinator) succeeded(id, msg string) {
	c.cache.Invalidate()
	if c.hub != nil {
		c.hub.BooksInvalidated(id)
	}
	c.notes.Success(msg)
}

func (c *Coordinator) begin(id string, op Op) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if running, ok := c.inflight[id]; ok {
		return fmt.Errorf("%s book %s while %s is running: %w", op, id, running, ErrRowBusy)
	}
	c.inflight[id] = op
	return nil
}

func (c *Coordinator) end(id string) {
	c.mu.Lock()
	delete(c.inflight, id)
	c.mu.Unlock()
}

// RowState reports the in-flight mutation for id, if any.
func (c *Coordinator) RowState(id string) RowState {
	c.mu.Lock()
	defer c.mu.Unlock()
	op, ok := c.inflight[models.CanonicalID(id)]
	return RowState{Busy: ok, Op: op}
}

// InFlight returns a copy of every row with a mutation running.
func (c *Coordinator) InFlight() map[string]Op {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]Op, len(c.inflight))
	for id, op := range c.inflight {
		out[id] = op
	}
	return out
}

// Creating is the number of creates in flight.
func (c *Coordinator) Creating() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creating
}
