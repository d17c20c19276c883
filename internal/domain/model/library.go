package model

import "time"

// LibraryEntry is a book already present in the user's destination library.
type LibraryEntry struct {
	UserBookID string    `json:"user_book_id"`
	BookID     string    `json:"book_id"`
	Title      string    `json:"title,omitempty"`
	Edition    *Edition  `json:"edition,omitempty"`
	StatusID   int       `json:"status_id,omitempty"`
	Progress   float64   `json:"progress,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

// EditionID returns the edition id of e, or "" when unknown.
func (e *LibraryEntry) EditionID() string {
	if e == nil || e.Edition == nil {
		return ""
	}
	return e.Edition.ID
}

// IdentifierType tags the kind of key a cache entry is stored under.
type IdentifierType string

const (
	IdentifierISBN        IdentifierType = "isbn"
	IdentifierASIN        IdentifierType = "asin"
	IdentifierTitleAuthor IdentifierType = "title_author"
)

// CacheEntry is a previously resolved mapping from a source key to a
// destination edition. Exists is false for a miss.
type CacheEntry struct {
	Exists            bool
	Identifier        string
	IdentifierType    IdentifierType
	Title             string
	Author            string
	EditionID         string
	LastKnownProgress float64
	UpdatedAt         time.Time
}

// Complete reports whether the entry binds a resolved edition.
func (c CacheEntry) Complete() bool { return c.Exists && c.EditionID != "" }
