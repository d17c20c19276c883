package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/bookmatch/internal/domain/identifiers"
	"github.com/okian/bookmatch/internal/domain/model"
	"github.com/okian/bookmatch/internal/domain/normalize"
	"github.com/okian/bookmatch/internal/domain/scoring"
	"github.com/okian/bookmatch/pkg/logger"
	"github.com/okian/bookmatch/pkg/metrics"
)

// Strategy is one tier of the resolution chain. The set is closed: only
// this package implements it.
type Strategy interface {
	Tier() int
	Name() string
	// FindMatch returns nil without error when the tier has no match.
	FindMatch(ctx context.Context, req Request) (*MatchResult, error)

	applies(req Request) bool
}

// IdentityScorer scores a candidate work against the source book.
type IdentityScorer interface {
	Score(candidate *model.Candidate, sourceTitle, sourceAuthor string, meta model.SourceMeta) scoring.IdentityResult
}

// EditionSelector picks an edition of a confirmed work.
type EditionSelector interface {
	Select(candidate *model.Candidate, meta model.SourceMeta, detected model.Format) *scoring.EditionSelection
}

// ASINStrategy is tier 1: exact ASIN lookup with an optional remote search.
type ASINStrategy struct {
	lookup   *identifiers.LookupTable
	catalog  CatalogClient
	library  LibraryRepository
	selector EditionSelector
	remote   bool
}

func (s *ASINStrategy) Tier() int    { return TierASIN }
func (s *ASINStrategy) Name() string { return "asin" }

func (s *ASINStrategy) applies(req Request) bool { return req.Metadata.Identifiers.ASIN != "" }

func (s *ASINStrategy) FindMatch(ctx context.Context, req Request) (*MatchResult, error) {
	asin := req.Metadata.Identifiers.ASIN
	if ref, ok := s.lookup.ByASIN(asin); ok {
		return exact(s, ref), nil
	}
	if !s.remote || s.catalog == nil {
		return nil, nil
	}

	candidates, err := s.catalog.SearchByASIN(ctx, asin)
	if err != nil {
		return nil, fmt.Errorf("search by asin %s: %w", asin, err)
	}
	for i := range candidates {
		c := &candidates[i]
		if scoring.Validate(c) != nil {
			continue
		}
		edition := editionWithASIN(c, asin)
		var selection *scoring.EditionSelection
		if edition == nil {
			if selection = s.selector.Select(c, req.Meta, req.Format); selection != nil {
				edition = &selection.Edition
			}
		}
		editionID := ""
		if edition != nil {
			editionID = edition.ID
		}
		kind, existing := place(ctx, s.library, c.ID, editionID)
		if kind == MatchExisting {
			kind = MatchExact
		}
		return &MatchResult{
			Tier:      s.Tier(),
			Strategy:  s.Name(),
			Type:      kind,
			BookID:    c.ID,
			EditionID: editionID,
			Candidate: c,
			Existing:  existing,
			Edition:   selection,
		}, nil
	}
	return nil, nil
}

// ISBNStrategy is tier 2: exact ISBN lookup, trying both ISBN lengths.
type ISBNStrategy struct {
	lookup *identifiers.LookupTable
}

func (s *ISBNStrategy) Tier() int    { return TierISBN }
func (s *ISBNStrategy) Name() string { return "isbn" }

func (s *ISBNStrategy) applies(req Request) bool { return req.Metadata.Identifiers.ISBN != "" }

func (s *ISBNStrategy) FindMatch(_ context.Context, req Request) (*MatchResult, error) {
	isbn := req.Metadata.Identifiers.ISBN
	for _, key := range []string{isbn, identifiers.Alternate(isbn)} {
		if ref, ok := s.lookup.ByISBN(key); ok {
			return exact(s, ref), nil
		}
	}
	return nil, nil
}

// TitleAuthorStrategy is tier 3: cache, then remote search scored by the
// identity scorer.
type TitleAuthorStrategy struct {
	catalog   CatalogClient
	cache     Cache
	library   LibraryRepository
	scorer    IdentityScorer
	selector  EditionSelector
	threshold float64
	limit     int
	log       logger.Logger
}

func (s *TitleAuthorStrategy) Tier() int    { return TierTitleAuthor }
func (s *TitleAuthorStrategy) Name() string { return "title_author" }

func (s *TitleAuthorStrategy) applies(req Request) bool {
	return normalize.Title(req.Metadata.Title) != ""
}

func (s *TitleAuthorStrategy) FindMatch(ctx context.Context, req Request) (*MatchResult, error) {
	title, author := req.Metadata.Title, req.Metadata.Author
	key := ""
	if s.cache != nil {
		key = s.cache.GenerateTitleAuthorIdentifier(title, author)
		if res := s.fromCache(ctx, req, key); res != nil {
			return res, nil
		}
	}
	if s.catalog == nil {
		return nil, nil
	}

	candidates, err := s.catalog.SearchByTitleAuthor(ctx, title, author, req.Metadata.Narrator, s.limit)
	if err != nil {
		return nil, fmt.Errorf("search by title/author %q: %w", title, err)
	}
	best, ok := s.rank(ctx, candidates, req)
	if !ok {
		return nil, nil
	}
	metrics.RecordIdentityScore(best.identity.TotalScore)
	if best.identity.TotalScore < s.threshold*100 {
		s.log.Debug(ctx, "best candidate below threshold",
			logger.String("title", title),
			logger.String("candidate", best.candidate.ID),
			logger.Float64("score", best.identity.TotalScore),
			logger.Float64("threshold", s.threshold*100))
		return nil, nil
	}

	identity := best.identity
	selection := s.selector.Select(best.candidate, req.Meta, req.Format)
	editionID := ""
	if selection != nil {
		editionID = selection.Edition.ID
		metrics.RecordEditionScore(selection.Score)
	}
	kind, existing := place(ctx, s.library, best.candidate.ID, editionID)
	res := &MatchResult{
		Tier:      s.Tier(),
		Strategy:  s.Name(),
		Type:      kind,
		BookID:    best.candidate.ID,
		EditionID: editionID,
		Candidate: best.candidate,
		Existing:  existing,
		Identity:  &identity,
		Edition:   selection,
	}
	s.remember(ctx, req, key, editionID)
	return res, nil
}

type scoredCandidate struct {
	candidate *model.Candidate
	identity  scoring.IdentityResult
}

// rank scores every candidate and returns the best. A candidate that
// fails to score is skipped; failures are logged once per search.
func (s *TitleAuthorStrategy) rank(ctx context.Context, candidates []model.Candidate, req Request) (scoredCandidate, bool) {
	var (
		best     scoredCandidate
		found    bool
		failures int
		lastErr  error
	)
	for i := range candidates {
		c := &candidates[i]
		identity, err := s.score(c, req)
		if err != nil {
			failures++
			lastErr = err
			continue
		}
		if !found || identity.TotalScore > best.identity.TotalScore {
			best, found = scoredCandidate{candidate: c, identity: identity}, true
		}
	}
	if failures > 0 {
		metrics.RecordCandidateErrors(failures)
		s.log.Warn(ctx, "candidates failed to score",
			logger.String("title", req.Metadata.Title),
			logger.Int("failed", failures),
			logger.Int("total", len(candidates)),
			logger.Error(lastErr))
	}
	return best, found
}

func (s *TitleAuthorStrategy) score(c *model.Candidate, req Request) (res scoring.IdentityResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", scoring.ErrMalformedCandidate, r)
		}
	}()
	if err := scoring.Validate(c); err != nil {
		return scoring.IdentityResult{}, err
	}
	return s.scorer.Score(c, req.Metadata.Title, req.Metadata.Author, req.Meta), nil
}

func (s *TitleAuthorStrategy) fromCache(ctx context.Context, req Request, key string) *MatchResult {
	entry, err := s.cache.GetCachedBookInfo(ctx, req.UserID, key, req.Metadata.Title, model.IdentifierTitleAuthor)
	if err != nil {
		metrics.RecordCacheLookup("error")
		s.log.Warn(ctx, "cache read failed", logger.String("key", key), logger.Error(err))
		return nil
	}
	if !entry.Complete() {
		metrics.RecordCacheLookup("miss")
		return nil
	}
	metrics.RecordCacheLookup("hit")

	kind, existing := place(ctx, s.library, "", entry.EditionID)
	res := &MatchResult{
		Tier:      s.Tier(),
		Strategy:  s.Name(),
		Type:      kind,
		EditionID: entry.EditionID,
		Existing:  existing,
		FromCache: true,
	}
	if existing != nil {
		res.BookID = existing.BookID
	}
	if req.Book != nil {
		res.ProgressChanged = req.Book.Progress != entry.LastKnownProgress
	}
	return res
}

// remember writes an accepted match back to the cache. A failed write is
// logged and otherwise ignored.
func (s *TitleAuthorStrategy) remember(ctx context.Context, req Request, key, editionID string) {
	if s.cache == nil || key == "" || editionID == "" {
		return
	}
	entry := model.CacheEntry{
		Exists:         true,
		Identifier:     key,
		IdentifierType: model.IdentifierTitleAuthor,
		Title:          req.Metadata.Title,
		Author:         req.Metadata.Author,
		EditionID:      editionID,
		UpdatedAt:      time.Now().UTC(),
	}
	if req.Book != nil {
		entry.LastKnownProgress = req.Book.Progress
	}
	if err := s.cache.StoreEditionMapping(ctx, req.UserID, entry); err != nil {
		metrics.RecordCacheWriteError()
		s.log.Warn(ctx, "cache write failed", logger.String("key", key), logger.Error(err))
	}
}

// place decides whether a resolved work/edition is already in the library.
func place(ctx context.Context, library LibraryRepository, workID, editionID string) (MatchType, *model.LibraryEntry) {
	if library == nil {
		return MatchNeedsCreate, nil
	}
	if editionID != "" {
		if entry, ok := library.FindByEditionID(ctx, editionID); ok {
			return MatchExisting, entry
		}
	}
	if workID != "" {
		if entry, ok := library.FindByWorkID(ctx, workID); ok {
			return MatchCrossEdition, entry
		}
	}
	return MatchNeedsCreate, nil
}

func exact(s Strategy, ref identifiers.Ref) *MatchResult {
	return &MatchResult{
		Tier:      s.Tier(),
		Strategy:  s.Name(),
		Type:      MatchExact,
		BookID:    ref.BookID,
		EditionID: ref.EditionID,
		Existing:  ref.Entry,
	}
}

func editionWithASIN(c *model.Candidate, asin string) *model.Edition {
	for i := range c.Editions {
		if identifiers.NormalizeASIN(c.Editions[i].ASIN) == asin {
			return &c.Editions[i]
		}
	}
	return nil
}
