package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/bookmatch/internal/app"
	"github.com/okian/bookmatch/internal/config"
	"github.com/okian/bookmatch/internal/domain/model"
	"github.com/okian/bookmatch/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var errLibrary = errors.New("library endpoint down")

// fakeCatalog serves one library and one searchable work. Workers call it
// concurrently.
type fakeCatalog struct {
	mu          sync.Mutex
	library     []model.LibraryEntry
	libraryErr  error
	titleCalls  int
	libraryUser string
}

func (f *fakeCatalog) SearchByASIN(context.Context, string) ([]model.Candidate, error) {
	return nil, nil
}

func (f *fakeCatalog) SearchByISBN(context.Context, string) ([]model.Candidate, error) {
	return nil, nil
}

func (f *fakeCatalog) SearchByTitleAuthor(_ context.Context, title, _, _ string, _ int) ([]model.Candidate, error) {
	f.mu.Lock()
	f.titleCalls++
	f.mu.Unlock()
	if strings.Contains(strings.ToLower(title), "laws of the skies") {
		return []model.Candidate{lawsOfTheSkies()}, nil
	}
	return nil, nil
}

func (f *fakeCatalog) FetchLibrary(_ context.Context, userID string) ([]model.LibraryEntry, error) {
	f.mu.Lock()
	f.libraryUser = userID
	f.mu.Unlock()
	return f.library, f.libraryErr
}

func (f *fakeCatalog) searches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.titleCalls
}

func lawsOfTheSkies() model.Candidate {
	return model.Candidate{
		ID:            "work-laws",
		Title:         "The Laws of the Skies",
		Contributions: []model.Contribution{{Person: &model.Person{Name: "Grégoire Courtois"}}},
		Activity:      100,
		Editions: []model.Edition{
			{ID: "ed-ebook", ReadingFormat: "Ebook", UsersCount: 150},
			{ID: "ed-audio", ReadingFormat: "Listened", AudioSeconds: 43200, UsersCount: 45},
		},
	}
}

func newCatalog() *fakeCatalog {
	return &fakeCatalog{library: []model.LibraryEntry{
		{
			UserBookID: "ub-1",
			BookID:     "work-laws",
			Edition:    &model.Edition{ID: "ed-audio", ASIN: "B01N5AW5CH"},
			UpdatedAt:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		},
	}}
}

func passBooks() []*model.SourceBook {
	return []*model.SourceBook{
		{ID: "src-asin", Title: "Anything", ASIN: "b01n5aw5ch"},
		{ID: "src-title", Title: "The Laws of the Skies", Author: "Gregoire Courtois", DurationSeconds: 43200, Progress: 0.4},
		{ID: "src-unknown", Title: "A Book Nobody Has Written", Author: "Nobody"},
		nil,
	}
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New(nil)

		Convey("Then it reports the configured defaults", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["queueSize"], ShouldEqual, 1000)
			So(stats["cache"], ShouldEqual, config.CacheMemory)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(config.New(),
			service.WithWorkerCount(3),
			service.WithQueueSize(10),
		)

		So(svc.GetStats()["workerCount"], ShouldEqual, 3)
		So(svc.GetStats()["queueSize"], ShouldEqual, 10)
	})
}

func TestService_Start(t *testing.T) {
	Convey("Given a service", t, func() {
		ctx := context.Background()

		Convey("When no catalog is configured", func() {
			svc := service.New(config.New())
			err := svc.Start(ctx)

			Convey("Then start fails", func() {
				So(errors.Is(err, service.ErrCatalogNotConfigured), ShouldBeTrue)
			})
		})

		Convey("When the catalog url is configured", func() {
			cfg := config.New()
			cfg.Catalog.BaseURL = "http://127.0.0.1:1"
			svc := service.New(cfg)
			defer svc.Stop()

			So(svc.Start(ctx), ShouldBeNil)
			So(svc.GetStats()["started"], ShouldEqual, true)

			Convey("Then stopping marks it stopped", func() {
				svc.Stop()
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})

		Convey("When using the sqlite cache", func() {
			cfg := config.New()
			cfg.Cache.Backend = config.CacheSQLite
			cfg.Cache.DSN = ":memory:"
			svc := service.New(cfg, service.WithCatalog(newCatalog()))
			defer svc.Stop()

			So(svc.Start(ctx), ShouldBeNil)

			report, err := svc.SyncPass(ctx, "user-1", passBooks()[1:2])
			So(err, ShouldBeNil)
			So(report.Summary.Matched, ShouldEqual, 1)

			Convey("Then a restart opens a fresh cache", func() {
				svc.Stop()
				So(svc.Start(ctx), ShouldBeNil)

				first, err := svc.SyncPass(ctx, "user-1", passBooks()[1:2])
				So(err, ShouldBeNil)
				So(first.Summary.FromCache, ShouldEqual, 0)

				second, err := svc.SyncPass(ctx, "user-1", passBooks()[1:2])
				So(err, ShouldBeNil)
				So(second.Summary.FromCache, ShouldEqual, 1)
			})
		})
	})
}

func TestService_SyncPass(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		catalog := newCatalog()
		svc := service.New(config.New(), service.WithCatalog(catalog), service.WithWorkerCount(4))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When running a pass over mixed books", func() {
			report, err := svc.SyncPass(ctx, "user-1", passBooks())

			So(err, ShouldBeNil)
			So(report.PassID, ShouldHaveLength, 36)
			So(report.LibrarySize, ShouldEqual, 1)

			Convey("Then outcomes keep input order", func() {
				So(report.Books, ShouldHaveLength, 4)
				So(report.Books[0].BookID, ShouldEqual, "src-asin")
				So(report.Books[1].BookID, ShouldEqual, "src-title")
				So(report.Books[2].BookID, ShouldEqual, "src-unknown")
				So(report.Books[3].Error, ShouldNotBeEmpty)
			})

			Convey("Then each book resolves through the right tier", func() {
				asin := report.Books[0].Outcome.Result
				So(asin, ShouldNotBeNil)
				So(asin.Strategy, ShouldEqual, "asin")
				So(asin.EditionID, ShouldEqual, "ed-audio")

				title := report.Books[1].Outcome.Result
				So(title, ShouldNotBeNil)
				So(title.Strategy, ShouldEqual, "title_author")
				So(string(title.Type), ShouldEqual, "existing")
				So(title.EditionID, ShouldEqual, "ed-audio")

				So(report.Books[2].Outcome.Matched(), ShouldBeFalse)
			})

			Convey("Then the summary counts every book once", func() {
				So(report.Summary.Total, ShouldEqual, 4)
				So(report.Summary.Matched, ShouldEqual, 2)
				So(report.Summary.NoMatch, ShouldEqual, 1)
				So(report.Summary.Errors, ShouldEqual, 1)
				So(report.Summary.ByTier["asin"], ShouldEqual, 1)
				So(report.Summary.ByTier["title_author"], ShouldEqual, 1)
				So(svc.GetStats()["passes"], ShouldEqual, 1)
			})

			Convey("Then a second pass is served from the cache", func() {
				searches := catalog.searches()
				again, err := svc.SyncPass(ctx, "user-1", passBooks()[1:2])

				So(err, ShouldBeNil)
				So(again.Summary.FromCache, ShouldEqual, 1)
				So(again.Books[0].Outcome.Result.EditionID, ShouldEqual, "ed-audio")
				So(catalog.searches(), ShouldEqual, searches)
			})
		})

		Convey("When the pass is empty", func() {
			report, err := svc.SyncPass(ctx, "user-1", nil)

			So(err, ShouldBeNil)
			So(report.Books, ShouldBeEmpty)
			So(report.Summary.Total, ShouldEqual, 0)
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			report, err := svc.SyncPass(cctx, "user-1", passBooks())

			Convey("Then the partial report is returned with the context error", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(report, ShouldNotBeNil)
				So(report.Summary.Total, ShouldEqual, 4)
			})
		})

		Convey("When the library cannot be fetched", func() {
			catalog.libraryErr = errLibrary
			_, err := svc.SyncPass(ctx, "user-1", passBooks())

			So(errors.Is(err, service.ErrLibraryUnavailable), ShouldBeTrue)
			So(errors.Is(err, errLibrary), ShouldBeTrue)
		})

		Convey("When no user is given and none is configured", func() {
			_, err := svc.SyncPass(ctx, "", passBooks())
			So(errors.Is(err, service.ErrMissingUser), ShouldBeTrue)
		})
	})

	Convey("Given a service that was never started", t, func() {
		svc := service.New(config.New(), service.WithCatalog(newCatalog()))

		_, err := svc.SyncPass(context.Background(), "user-1", passBooks())
		So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
	})
}

func TestService_Match(t *testing.T) {
	Convey("Given a service with a configured default user", t, func() {
		ctx := context.Background()
		cfg := config.New()
		cfg.UserID = "default-user"
		catalog := newCatalog()
		svc := service.New(cfg, service.WithCatalog(catalog))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When matching one book without a user id", func() {
			out, err := svc.Match(ctx, "", passBooks()[0])

			Convey("Then the default user's library is used", func() {
				So(err, ShouldBeNil)
				So(out.Matched(), ShouldBeTrue)
				So(out.Result.Tier, ShouldEqual, 1)
				So(catalog.libraryUser, ShouldEqual, "default-user")
			})
		})
	})
}
