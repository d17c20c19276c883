package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/bookmatch/internal/domain/identifiers"
	"github.com/okian/bookmatch/internal/domain/model"
	"github.com/okian/bookmatch/internal/domain/scoring"
	"github.com/okian/bookmatch/pkg/logger"
	"github.com/okian/bookmatch/pkg/metrics"
)

const (
	defaultConfidenceThreshold = 0.7
	defaultMaxSearchResults    = 5
)

// Option configures a BookMatcher.
type Option func(*BookMatcher)

// WithConfidenceThreshold sets the minimum identity score, in [0,1], a
// title/author match needs.
func WithConfidenceThreshold(threshold float64) Option {
	return func(m *BookMatcher) {
		if threshold >= 0 && threshold <= 1 {
			m.threshold = threshold
		}
	}
}

// WithMaxSearchResults bounds the title/author search.
func WithMaxSearchResults(n int) Option {
	return func(m *BookMatcher) {
		if n > 0 {
			m.limit = n
		}
	}
}

// WithTitleAuthorEnabled turns tier 3 on or off.
func WithTitleAuthorEnabled(enabled bool) Option {
	return func(m *BookMatcher) {
		m.titleAuthor = enabled
	}
}

// WithASINRemoteSearch turns the tier 1 remote fallback on or off.
func WithASINRemoteSearch(enabled bool) Option {
	return func(m *BookMatcher) {
		m.asinRemote = enabled
	}
}

// WithIdentityScorer replaces the identity scorer.
func WithIdentityScorer(s IdentityScorer) Option {
	return func(m *BookMatcher) {
		if s != nil {
			m.scorer = s
		}
	}
}

// WithEditionSelector replaces the edition selector.
func WithEditionSelector(s EditionSelector) Option {
	return func(m *BookMatcher) {
		if s != nil {
			m.selector = s
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(m *BookMatcher) {
		if l != nil {
			m.log = l
		}
	}
}

// BookMatcher runs the tiers in order and stops at the first match. It
// keeps no per-book state, so one matcher serves a whole sync pass from
// many goroutines.
type BookMatcher struct {
	strategies []Strategy

	threshold   float64
	limit       int
	titleAuthor bool
	asinRemote  bool
	scorer      IdentityScorer
	selector    EditionSelector
	log         logger.Logger
}

// NewBookMatcher wires the three tiers around the given collaborators.
// lookup must not be modified while the matcher is in use.
func NewBookMatcher(catalog CatalogClient, cache Cache, library LibraryRepository, lookup *identifiers.LookupTable, opts ...Option) *BookMatcher {
	m := &BookMatcher{
		threshold:   defaultConfidenceThreshold,
		limit:       defaultMaxSearchResults,
		titleAuthor: true,
		asinRemote:  true,
		scorer:      scoring.NewIdentityScorer(),
		selector:    scoring.NewEditionSelector(),
		log:         logger.Get().Named("matcher"),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.strategies = []Strategy{
		&ASINStrategy{
			lookup:   lookup,
			catalog:  catalog,
			library:  library,
			selector: m.selector,
			remote:   m.asinRemote,
		},
		&ISBNStrategy{lookup: lookup},
	}
	if m.titleAuthor {
		m.strategies = append(m.strategies, &TitleAuthorStrategy{
			catalog:   catalog,
			cache:     cache,
			library:   library,
			scorer:    m.scorer,
			selector:  m.selector,
			threshold: m.threshold,
			limit:     m.limit,
			log:       m.log,
		})
	}
	return m
}

// Match resolves one book. Tier failures are logged and treated as
// misses; an Outcome without Result is a valid no-match. The returned
// error is non-nil only for a nil book or a cancelled context, and the
// Outcome is still populated with whatever ran.
func (m *BookMatcher) Match(ctx context.Context, userID string, book *model.SourceBook) (Outcome, error) {
	if book == nil {
		return Outcome{}, ErrNilBook
	}
	start := time.Now()
	defer func() { metrics.RecordMatchLatency(time.Since(start).Seconds()) }()

	req := Request{
		UserID:   userID,
		Book:     book,
		Metadata: identifiers.ExtractMetadata(book),
		Meta:     book.Meta(),
		Format:   scoring.DetectFormat(book),
	}
	out := Outcome{BookID: book.ID, Metadata: req.Metadata}

	for _, s := range m.strategies {
		if err := ctx.Err(); err != nil {
			out.Attempts = append(out.Attempts, Attempt{Tier: s.Tier(), Strategy: s.Name(), Result: AttemptSkipped})
			return out, err
		}
		if !s.applies(req) {
			out.Attempts = append(out.Attempts, Attempt{Tier: s.Tier(), Strategy: s.Name(), Result: AttemptSkipped})
			continue
		}

		metrics.RecordTierAttempt(s.Name())
		res, err := m.run(ctx, s, req)
		switch {
		case err != nil:
			metrics.RecordTierError(s.Name())
			m.log.Warn(ctx, "tier failed",
				logger.String("book_id", book.ID),
				logger.String("tier", s.Name()),
				logger.Error(err))
			out.Attempts = append(out.Attempts, Attempt{Tier: s.Tier(), Strategy: s.Name(), Result: AttemptError, Error: err.Error()})
		case res == nil:
			out.Attempts = append(out.Attempts, Attempt{Tier: s.Tier(), Strategy: s.Name(), Result: AttemptMiss})
		default:
			metrics.RecordTierMatch(s.Name(), string(res.Type))
			out.Attempts = append(out.Attempts, Attempt{Tier: s.Tier(), Strategy: s.Name(), Result: AttemptMatched})
			out.Result = res
			m.log.Debug(ctx, "book matched",
				logger.String("book_id", book.ID),
				logger.String("tier", s.Name()),
				logger.String("type", string(res.Type)),
				logger.String("edition_id", res.EditionID))
			return out, nil
		}
	}

	if !m.titleAuthor {
		out.Attempts = append(out.Attempts, Attempt{Tier: TierTitleAuthor, Strategy: "title_author", Result: AttemptSkipped})
	}
	metrics.RecordNoMatch()
	m.log.Debug(ctx, "no match",
		logger.String("book_id", book.ID),
		logger.String("title", req.Metadata.Title),
		logger.String("author", req.Metadata.Author))
	return out, nil
}

func (m *BookMatcher) run(ctx context.Context, s Strategy, req Request) (res *MatchResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("%w: %s: %v", ErrStrategyPanic, s.Name(), r)
		}
	}()
	return s.FindMatch(ctx, req)
}
