// Package service wires the matcher to its adapters and runs sync passes
// over a batch of source books.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/bookmatch/internal/adapters/cache"
	"github.com/okian/bookmatch/internal/adapters/catalog"
	"github.com/okian/bookmatch/internal/adapters/library"
	"github.com/okian/bookmatch/internal/adapters/mq/queue"
	"github.com/okian/bookmatch/internal/adapters/mq/worker"
	"github.com/okian/bookmatch/internal/config"
	"github.com/okian/bookmatch/internal/domain/identifiers"
	"github.com/okian/bookmatch/internal/domain/matching"
	"github.com/okian/bookmatch/internal/domain/model"
	"github.com/okian/bookmatch/internal/domain/scoring"
	"github.com/okian/bookmatch/pkg/logger"
)

// Catalog is the destination API: search endpoints plus the user's
// library.
type Catalog interface {
	matching.CatalogClient
	FetchLibrary(ctx context.Context, userID string) ([]model.LibraryEntry, error)
}

// BookOutcome is the result for one book of a pass, in input order.
type BookOutcome struct {
	Seq     int              `json:"seq"`
	BookID  string           `json:"book_id"`
	Outcome matching.Outcome `json:"outcome"`
	Error   string           `json:"error,omitempty"`
}

// Summary counts pass outcomes.
type Summary struct {
	Total     int            `json:"total"`
	Matched   int            `json:"matched"`
	NoMatch   int            `json:"no_match"`
	Errors    int            `json:"errors"`
	FromCache int            `json:"from_cache"`
	ByTier    map[string]int `json:"by_tier"`
	ByType    map[string]int `json:"by_type"`
}

// PassReport is everything a sync pass produced.
type PassReport struct {
	PassID      string        `json:"pass_id"`
	UserID      string        `json:"user_id"`
	LibrarySize int           `json:"library_size"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	Books       []BookOutcome `json:"books"`
	Summary     Summary       `json:"summary"`
}

// Service resolves source books against a user's destination library.
type Service struct {
	mu sync.RWMutex

	cfg     *config.Config
	catalog Catalog
	cache   matching.Cache

	workerCount int
	queueSize   int

	started bool
	passes  int
	closers []func() error
	// resets clears adapters Start built so a restart rebuilds them.
	resets []func()

	logger logger.Logger
}

// New constructs a Service. Adapters not supplied as options are built
// from cfg on Start.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New()
	}
	s := &Service{
		cfg:         cfg,
		workerCount: cfg.WorkerCount,
		queueSize:   cfg.QueueSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the catalog client and the cache.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	if s.catalog == nil {
		if s.cfg.Catalog.BaseURL == "" {
			return ErrCatalogNotConfigured
		}
		s.catalog = catalog.NewClient(s.cfg.Catalog.BaseURL,
			catalog.WithToken(s.cfg.Catalog.Token),
			catalog.WithRequestsPerSecond(s.cfg.Catalog.RequestsPerSecond),
			catalog.WithMaxRetries(s.cfg.Catalog.MaxRetries),
			catalog.WithTimeout(s.cfg.Catalog.Timeout()),
		)
		s.resets = append(s.resets, func() { s.catalog = nil })
	}

	if s.cache == nil {
		switch s.cfg.Cache.Backend {
		case config.CacheSQLite:
			store, err := cache.OpenSQLite(ctx, s.cfg.Cache.DSN)
			if err != nil {
				return fmt.Errorf("open cache: %w", err)
			}
			s.cache = store
			s.closers = append(s.closers, store.Close)
		default:
			mem := cache.NewMemory(cache.WithMaxEntries(s.cfg.Cache.MaxEntries))
			s.cache = mem
			s.closers = append(s.closers, mem.Close)
		}
		s.resets = append(s.resets, func() { s.cache = nil })
	}

	s.started = true
	s.logger.Info(ctx, "book matching service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.String("cache", s.cfg.Cache.Backend),
	)
	return nil
}

// Stop releases the adapters opened by Start.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil {
			s.logger.Warn(context.Background(), "close failed", logger.Error(err))
		}
	}
	for _, reset := range s.resets {
		reset()
	}
	s.closers = nil
	s.resets = nil
	s.started = false
	s.logger.Info(context.Background(), "book matching service stopped")
}

// Match resolves a single book against the user's current library.
func (s *Service) Match(ctx context.Context, userID string, book *model.SourceBook) (matching.Outcome, error) {
	m, _, err := s.matcher(ctx, userID)
	if err != nil {
		return matching.Outcome{}, err
	}
	return m.Match(ctx, s.user(userID), book)
}

// SyncPass resolves every book concurrently. The library snapshot is
// taken once and shared by all workers. Outcomes are reported in input
// order; a cancelled pass returns the partial report with ctx's error.
func (s *Service) SyncPass(ctx context.Context, userID string, books []*model.SourceBook) (*PassReport, error) {
	m, size, err := s.matcher(ctx, userID)
	if err != nil {
		return nil, err
	}
	userID = s.user(userID)

	report := &PassReport{
		PassID:      uuid.NewString(),
		UserID:      userID,
		LibrarySize: size,
		StartedAt:   time.Now().UTC(),
	}
	log := s.logger.Named("pass")
	log.Info(ctx, "sync pass started",
		logger.String("pass_id", report.PassID),
		logger.Int("books", len(books)),
		logger.Int("library", size))

	c := newCollector(len(books))
	passErr := s.run(ctx, report.PassID, userID, books, m, c)

	report.Books = c.results()
	for i := range report.Books {
		if report.Books[i].BookID == "" && books[i] != nil {
			report.Books[i].BookID = books[i].ID
		}
	}
	report.Summary = summarize(report.Books)
	report.FinishedAt = time.Now().UTC()

	s.mu.Lock()
	s.passes++
	s.mu.Unlock()

	log.Info(ctx, "sync pass finished",
		logger.String("pass_id", report.PassID),
		logger.Int("matched", report.Summary.Matched),
		logger.Int("no_match", report.Summary.NoMatch),
		logger.Int("errors", report.Summary.Errors),
		logger.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))
	return report, passErr
}

func (s *Service) run(ctx context.Context, passID, userID string, books []*model.SourceBook, m worker.Matcher, sink worker.Sink) error {
	if len(books) == 0 {
		return nil
	}
	q := queue.NewInMemoryQueue(queue.WithCapacity(min(s.queueSize, len(books))))
	pool := worker.NewPool(min(s.workerCount, len(books)), q, m, sink)
	pool.Start(ctx)

	var putErr error
	for i, b := range books {
		if putErr = q.Put(ctx, queue.Job{PassID: passID, UserID: userID, Seq: i, Book: b}); putErr != nil {
			break
		}
	}
	if err := pool.Drain(ctx); err != nil {
		return err
	}
	if putErr != nil && !errors.Is(putErr, queue.ErrClosed) {
		return putErr
	}
	return ctx.Err()
}

// matcher snapshots the user's library and builds a matcher over it.
func (s *Service) matcher(ctx context.Context, userID string) (*matching.BookMatcher, int, error) {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return nil, 0, ErrNotStarted
	}
	userID = s.user(userID)
	if userID == "" {
		return nil, 0, ErrMissingUser
	}

	entries, err := s.catalog.FetchLibrary(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrLibraryUnavailable, err)
	}
	repo := library.New(entries)
	m := matching.NewBookMatcher(s.catalog, s.cache, repo, identifiers.BuildLookup(entries),
		matching.WithConfidenceThreshold(s.cfg.Matching.ConfidenceThreshold),
		matching.WithMaxSearchResults(s.cfg.Matching.MaxSearchResults),
		matching.WithTitleAuthorEnabled(s.cfg.Matching.TitleAuthorEnabled),
		matching.WithASINRemoteSearch(s.cfg.Matching.ASINRemoteSearch),
		matching.WithIdentityScorer(scoring.NewIdentityScorer(scoring.WithIdentityTuning(s.cfg.Scoring.Identity))),
		matching.WithEditionSelector(scoring.NewEditionSelector(scoring.WithEditionTuning(s.cfg.Scoring.Edition))),
		matching.WithLogger(s.logger.Named("matcher")),
	)
	return m, repo.Len(), nil
}

func (s *Service) user(userID string) string {
	if userID != "" {
		return userID
	}
	return s.cfg.UserID
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"cache":       s.cfg.Cache.Backend,
		"passes":      s.passes,
	}
}

// collector gathers worker outcomes by sequence number.
type collector struct {
	mu   sync.Mutex
	out  []BookOutcome
	seen []bool
}

func newCollector(n int) *collector {
	return &collector{out: make([]BookOutcome, n), seen: make([]bool, n)}
}

func (c *collector) Deliver(_ context.Context, j queue.Job, outcome matching.Outcome, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if j.Seq < 0 || j.Seq >= len(c.out) {
		return
	}
	bo := BookOutcome{Seq: j.Seq, Outcome: outcome}
	if j.Book != nil {
		bo.BookID = j.Book.ID
	}
	if err != nil {
		bo.Error = err.Error()
	}
	c.out[j.Seq] = bo
	c.seen[j.Seq] = true
}

// results returns the outcomes in input order. Books no worker reached
// are reported as errors.
func (c *collector) results() []BookOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := make([]BookOutcome, len(c.out))
	copy(res, c.out)
	for i := range res {
		if !c.seen[i] {
			res[i] = BookOutcome{Seq: i, Error: "not processed"}
		}
	}
	return res
}

func summarize(books []BookOutcome) Summary {
	sum := Summary{
		Total:  len(books),
		ByTier: map[string]int{},
		ByType: map[string]int{},
	}
	for _, b := range books {
		switch {
		case b.Error != "":
			sum.Errors++
		case b.Outcome.Matched():
			sum.Matched++
			r := b.Outcome.Result
			sum.ByTier[r.Strategy]++
			sum.ByType[string(r.Type)]++
			if r.FromCache {
				sum.FromCache++
			}
		default:
			sum.NoMatch++
		}
	}
	return sum
}
