package identifiers

import (
	"github.com/okian/bookmatch/internal/domain/model"
)

// Ref points at a destination work and edition already in the user's library.
type Ref struct {
	BookID    string
	EditionID string
	Entry     *model.LibraryEntry
}

// LookupTable maps normalized identifiers to library references. It is
// built once per sync pass and is read-only afterwards, so concurrent
// readers need no locking.
type LookupTable struct {
	byISBN map[string]Ref
	byASIN map[string]Ref
}

// BuildLookup indexes every library entry's edition under each normalized
// ISBN-10, ISBN-13 and ASIN it carries. A well-formed library maps one
// identifier to one edition; on collision the later entry wins.
func BuildLookup(library []model.LibraryEntry) *LookupTable {
	t := &LookupTable{
		byISBN: make(map[string]Ref, len(library)),
		byASIN: make(map[string]Ref, len(library)),
	}
	for i := range library {
		entry := &library[i]
		if entry.Edition == nil {
			continue
		}
		ref := Ref{BookID: entry.BookID, EditionID: entry.Edition.ID, Entry: entry}
		for _, raw := range []string{entry.Edition.ISBN10, entry.Edition.ISBN13} {
			if isbn := NormalizeISBN(raw); isbn != "" {
				t.byISBN[isbn] = ref
			}
		}
		if asin := NormalizeASIN(entry.Edition.ASIN); asin != "" {
			t.byASIN[asin] = ref
		}
	}
	return t
}

// ByISBN looks up a normalized ISBN.
func (t *LookupTable) ByISBN(isbn string) (Ref, bool) {
	if t == nil || isbn == "" {
		return Ref{}, false
	}
	ref, ok := t.byISBN[isbn]
	return ref, ok
}

// ByASIN looks up a normalized ASIN.
func (t *LookupTable) ByASIN(asin string) (Ref, bool) {
	if t == nil || asin == "" {
		return Ref{}, false
	}
	ref, ok := t.byASIN[asin]
	return ref, ok
}

// Len returns the number of indexed identifiers.
func (t *LookupTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.byISBN) + len(t.byASIN)
}
