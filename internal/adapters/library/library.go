// Package library indexes the user's destination library for the matcher.
package library

import (
	"context"

	"github.com/okian/bookmatch/internal/domain/model"
)

// Repository answers edition and work lookups against a library snapshot.
// It is read-only after construction.
type Repository struct {
	byEdition map[string]*model.LibraryEntry
	byWork    map[string]*model.LibraryEntry
	entries   []model.LibraryEntry
}

// New indexes entries. For a work held more than once, the most recently
// updated entry is returned by FindByWorkID.
func New(entries []model.LibraryEntry) *Repository {
	r := &Repository{
		byEdition: make(map[string]*model.LibraryEntry, len(entries)),
		byWork:    make(map[string]*model.LibraryEntry, len(entries)),
		entries:   append([]model.LibraryEntry(nil), entries...),
	}
	for i := range r.entries {
		e := &r.entries[i]
		if id := e.EditionID(); id != "" {
			r.byEdition[id] = e
		}
		if e.BookID == "" {
			continue
		}
		if prev, ok := r.byWork[e.BookID]; !ok || e.UpdatedAt.After(prev.UpdatedAt) {
			r.byWork[e.BookID] = e
		}
	}
	return r
}

// FindByEditionID returns the entry holding edition id.
func (r *Repository) FindByEditionID(_ context.Context, id string) (*model.LibraryEntry, bool) {
	if r == nil || id == "" {
		return nil, false
	}
	e, ok := r.byEdition[id]
	return e, ok
}

// FindByWorkID returns an entry holding any edition of work id.
func (r *Repository) FindByWorkID(_ context.Context, id string) (*model.LibraryEntry, bool) {
	if r == nil || id == "" {
		return nil, false
	}
	e, ok := r.byWork[id]
	return e, ok
}

// Len returns the number of entries.
func (r *Repository) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}
