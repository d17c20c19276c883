package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/okian/bookmatch/internal/domain/model"
)

// editionMapping is the persisted form of a cache entry.
type editionMapping struct {
	bun.BaseModel `bun:"table:edition_mappings,alias:em"`

	UserID            string    `bun:",pk"`
	IdentifierType    string    `bun:",pk"`
	Identifier        string    `bun:",pk"`
	Title             string    `bun:",nullzero"`
	Author            string    `bun:",nullzero"`
	EditionID         string    `bun:",notnull"`
	LastKnownProgress float64   `bun:",notnull,default:0"`
	UpdatedAt         time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

// SQL is a persistent cache on SQLite through bun. SQLite serialises
// writers, so concurrent callers need no extra locking.
type SQL struct {
	db  *bun.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the SQLite database at dsn.
func OpenSQLite(ctx context.Context, dsn string) (*SQL, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrCacheUnavailable, dsn, err)
	}
	// One connection keeps ":memory:" databases shared and avoids
	// SQLITE_BUSY between pooled writers.
	sqldb.SetMaxOpenConns(1)
	return NewSQL(ctx, sqldb)
}

// NewSQL wraps an open database and ensures the schema exists.
func NewSQL(ctx context.Context, sqldb *sql.DB) (*SQL, error) {
	db := bun.NewDB(sqldb, sqlitedialect.New())
	if _, err := db.NewCreateTable().Model((*editionMapping)(nil)).IfNotExists().Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: create edition_mappings table: %w", ErrCacheUnavailable, err)
	}
	return &SQL{db: db, now: time.Now}, nil
}

// GetCachedBookInfo returns the entry for identifier or Exists=false.
func (s *SQL) GetCachedBookInfo(ctx context.Context, userID, identifier, _ string, idType model.IdentifierType) (model.CacheEntry, error) {
	row := new(editionMapping)
	err := s.db.NewSelect().Model(row).
		Where("user_id = ?", userID).
		Where("identifier_type = ?", string(idType)).
		Where("identifier = ?", identifier).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return model.CacheEntry{}, nil
	}
	if err != nil {
		return model.CacheEntry{}, fmt.Errorf("%w: %w", ErrCacheUnavailable, err)
	}
	return model.CacheEntry{
		Exists:            true,
		Identifier:        row.Identifier,
		IdentifierType:    model.IdentifierType(row.IdentifierType),
		Title:             row.Title,
		Author:            row.Author,
		EditionID:         row.EditionID,
		LastKnownProgress: row.LastKnownProgress,
		UpdatedAt:         row.UpdatedAt,
	}, nil
}

// StoreEditionMapping upserts the mapping for entry.Identifier.
func (s *SQL) StoreEditionMapping(ctx context.Context, userID string, entry model.CacheEntry) error {
	updated := entry.UpdatedAt
	if updated.IsZero() {
		updated = s.now().UTC()
	}
	row := &editionMapping{
		UserID:            userID,
		IdentifierType:    string(entry.IdentifierType),
		Identifier:        entry.Identifier,
		Title:             entry.Title,
		Author:            entry.Author,
		EditionID:         entry.EditionID,
		LastKnownProgress: entry.LastKnownProgress,
		UpdatedAt:         updated,
	}
	_, err := s.db.NewInsert().Model(row).
		On("CONFLICT (user_id, identifier_type, identifier) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("author = EXCLUDED.author").
		Set("edition_id = EXCLUDED.edition_id").
		Set("last_known_progress = EXCLUDED.last_known_progress").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: store %s: %w", ErrCacheUnavailable, entry.Identifier, err)
	}
	return nil
}

// GenerateTitleAuthorIdentifier derives the title/author key.
func (s *SQL) GenerateTitleAuthorIdentifier(title, author string) string {
	return GenerateTitleAuthorIdentifier(title, author)
}

// Close closes the underlying database.
func (s *SQL) Close() error {
	return s.db.Close()
}
