// Package cache stores resolved edition mappings per user, in memory or in
// SQLite.
package cache

import (
	"errors"

	"github.com/google/uuid"

	"github.com/okian/bookmatch/internal/domain/normalize"
)

// ErrCacheUnavailable wraps failures of the backing store.
var ErrCacheUnavailable = errors.New("cache unavailable")

// titleAuthorSpace namespaces title/author keys.
var titleAuthorSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("bookmatch:title-author")) //nolint:gochecknoglobals // fixed namespace

// GenerateTitleAuthorIdentifier derives the cache key for a title and
// author. Equal normalized inputs always give the same key.
func GenerateTitleAuthorIdentifier(title, author string) string {
	name := normalize.Title(title) + "\x00" + normalize.Author(author)
	return uuid.NewSHA1(titleAuthorSpace, []byte(name)).String()
}
