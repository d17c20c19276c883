// Package matching resolves a source book to a destination work and
// edition through a fixed chain of ASIN, ISBN and title/author tiers.
package matching

import (
	"context"

	"github.com/okian/bookmatch/internal/domain/model"
)

// CatalogClient searches the remote destination catalog. A search with no
// results returns an empty slice and a nil error.
type CatalogClient interface {
	SearchByASIN(ctx context.Context, asin string) ([]model.Candidate, error)
	SearchByISBN(ctx context.Context, isbn string) ([]model.Candidate, error)
	SearchByTitleAuthor(ctx context.Context, title, author, narrator string, limit int) ([]model.Candidate, error)
}

// Cache stores resolved edition mappings per user. Implementations own
// their concurrency control; the matcher never locks around them.
type Cache interface {
	// GetCachedBookInfo returns the entry for identifier, with Exists=false on a miss.
	GetCachedBookInfo(ctx context.Context, userID, identifier, title string, idType model.IdentifierType) (model.CacheEntry, error)
	StoreEditionMapping(ctx context.Context, userID string, entry model.CacheEntry) error
	// GenerateTitleAuthorIdentifier is the only place the title/author key is derived.
	GenerateTitleAuthorIdentifier(title, author string) string
}

// LibraryRepository finds books already in the user's destination library.
type LibraryRepository interface {
	FindByEditionID(ctx context.Context, editionID string) (*model.LibraryEntry, bool)
	FindByWorkID(ctx context.Context, workID string) (*model.LibraryEntry, bool)
}
