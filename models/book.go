package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Status is the circulation state of a book.
type Status string

const (
	StatusAvailable Status = "Available"
	StatusIssued    Status = "Issued"
	StatusReversed  Status = "Reversed"
	StatusPending   Status = "Pending"
	StatusReturned  Status = "Returned"
	StatusLost      Status = "Lost"
	StatusDamaged   Status = "Damaged"
	StatusReserved  Status = "Reserved"
)

// Statuses lists every valid status in form order.
var Statuses = []Status{
	StatusAvailable,
	StatusIssued,
	StatusReversed,
	StatusPending,
	StatusReturned,
	StatusLost,
	StatusDamaged,
	StatusReserved,
}

func IsValidStatus(s string) bool {
	for _, st := range Statuses {
		if string(st) == s {
			return true
		}
	}
	return false
}

// Book is a book record as the rest of the application sees it. ID is empty
// until the remote store has assigned one.
type Book struct {
	ID     string `json:"id,omitempty"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Genre  string `json:"genre"`
	Year   int    `json:"year"`
	Status Status `json:"status"`
}

// Draft is the body sent to the remote store on create and update. It has no
// identifier field, so an id can never leak into a payload.
type Draft struct {
	Title  string `json:"title" validate:"required"`
	Author string `json:"author" validate:"required"`
	Genre  string `json:"genre" validate:"required"`
	Year   int    `json:"year" validate:"min=1900,notfuture"`
	Status Status `json:"status" validate:"status"`
}

// NewDraft returns an empty form with the defaults the dashboard starts from.
func NewDraft() Draft {
	return Draft{Year: currentYear(), Status: StatusAvailable}
}

func (b Book) Draft() Draft {
	return Draft{
		Title:  b.Title,
		Author: b.Author,
		Genre:  b.Genre,
		Year:   b.Year,
		Status: b.Status,
	}
}

// WithID stamps the draft with an identifier.
func (d Draft) WithID(id string) Book {
	return Book{
		ID:     CanonicalID(id),
		Title:  d.Title,
		Author: d.Author,
		Genre:  d.Genre,
		Year:   d.Year,
		Status: d.Status,
	}
}

// StoreRecord is a book as the remote document store encodes it. The store
// names its identifier "_id"; some responses carry "id" instead.
type StoreRecord struct {
	StoreID string   `json:"_id,omitempty"`
	ID      string   `json:"id,omitempty"`
	Title   string   `json:"title"`
	Author  string   `json:"author"`
	Genre   string   `json:"genre"`
	Year    LooseInt `json:"year"`
	Status  string   `json:"status"`
}

// Book maps the record onto the canonical shape, preferring "_id" over "id".
func (r StoreRecord) Book() Book {
	id := r.StoreID
	if strings.TrimSpace(id) == "" {
		id = r.ID
	}
	return Book{
		ID:     CanonicalID(id),
		Title:  r.Title,
		Author: r.Author,
		Genre:  r.Genre,
		Year:   int(r.Year),
		Status: Status(r.Status),
	}
}

// CanonicalID is the identifier normalization shared by every layer. It is
// idempotent and never fails.
func CanonicalID(id string) string {
	return strings.TrimSpace(id)
}

// Normalize returns b with its identifier in canonical form.
func Normalize(b Book) Book {
	b.ID = CanonicalID(b.ID)
	return b
}

// LooseInt decodes a JSON number or a numeric string. Form inputs posted to
// the store sometimes persist the year as text.
type LooseInt int

func (n *LooseInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		*n = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
	}
	if v, err := strconv.Atoi(s); err == nil {
		*n = LooseInt(v)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("year %q is not a number", s)
	}
	*n = LooseInt(int(f))
	return nil
}
