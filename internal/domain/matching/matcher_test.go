package matching_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/bookmatch/internal/domain/identifiers"
	"github.com/okian/bookmatch/internal/domain/matching"
	"github.com/okian/bookmatch/internal/domain/model"
	"github.com/okian/bookmatch/internal/domain/normalize"
	"github.com/okian/bookmatch/internal/domain/scoring"
	"github.com/okian/bookmatch/pkg/logger"
)

var errRemote = errors.New("remote down")

type fakeCatalog struct {
	byASIN      []model.Candidate
	byTitle     []model.Candidate
	asinErr     error
	titleErr    error
	panicOnASIN bool

	asinCalls  int
	isbnCalls  int
	titleCalls int
	lastLimit  int
}

func (f *fakeCatalog) SearchByASIN(_ context.Context, _ string) ([]model.Candidate, error) {
	f.asinCalls++
	if f.panicOnASIN {
		panic("decoder blew up")
	}
	return f.byASIN, f.asinErr
}

func (f *fakeCatalog) SearchByISBN(_ context.Context, _ string) ([]model.Candidate, error) {
	f.isbnCalls++
	return nil, nil
}

func (f *fakeCatalog) SearchByTitleAuthor(_ context.Context, _, _, _ string, limit int) ([]model.Candidate, error) {
	f.titleCalls++
	f.lastLimit = limit
	return f.byTitle, f.titleErr
}

type fakeCache struct {
	entries map[string]model.CacheEntry
	getErr  error
	putErr  error
	gets    int
	puts    int
}

func newFakeCache() *fakeCache { return &fakeCache{entries: map[string]model.CacheEntry{}} }

func (f *fakeCache) GetCachedBookInfo(_ context.Context, userID, identifier, _ string, _ model.IdentifierType) (model.CacheEntry, error) {
	f.gets++
	if f.getErr != nil {
		return model.CacheEntry{}, f.getErr
	}
	return f.entries[userID+"/"+identifier], nil
}

func (f *fakeCache) StoreEditionMapping(_ context.Context, userID string, entry model.CacheEntry) error {
	f.puts++
	if f.putErr != nil {
		return f.putErr
	}
	f.entries[userID+"/"+entry.Identifier] = entry
	return nil
}

func (f *fakeCache) GenerateTitleAuthorIdentifier(title, author string) string {
	return normalize.Title(title) + "|" + normalize.Author(author)
}

type fakeLibrary struct {
	byEdition map[string]*model.LibraryEntry
	byWork    map[string]*model.LibraryEntry
}

func (f *fakeLibrary) FindByEditionID(_ context.Context, id string) (*model.LibraryEntry, bool) {
	e, ok := f.byEdition[id]
	return e, ok
}

func (f *fakeLibrary) FindByWorkID(_ context.Context, id string) (*model.LibraryEntry, bool) {
	e, ok := f.byWork[id]
	return e, ok
}

// panickyScorer delegates to the real scorer except for one candidate id.
type panickyScorer struct {
	inner  *scoring.IdentityScorer
	poison string
}

func (p panickyScorer) Score(c *model.Candidate, title, author string, meta model.SourceMeta) scoring.IdentityResult {
	if c.ID == p.poison {
		panic("unexpected shape")
	}
	return p.inner.Score(c, title, author, meta)
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

func sourceBook() *model.SourceBook {
	return &model.SourceBook{
		ID:              "src-1",
		Title:           "The Laws of the Skies",
		Author:          "Gregoire Courtois",
		DurationSeconds: 43200,
		Progress:        0.25,
	}
}

func TestBookMatcher_Tiers(t *testing.T) {
	Convey("Given a library with one audiobook edition", t, func() {
		ctx := context.Background()
		entry := model.LibraryEntry{
			UserBookID: "ub-1",
			BookID:     "work-laws",
			Edition:    &model.Edition{ID: "ed-audio", ASIN: "B01N5AW5CH", ISBN13: "9780306406157"},
		}
		lookup := identifiers.BuildLookup([]model.LibraryEntry{entry})
		library := &fakeLibrary{
			byEdition: map[string]*model.LibraryEntry{"ed-audio": &entry},
			byWork:    map[string]*model.LibraryEntry{"work-laws": &entry},
		}
		catalog := &fakeCatalog{byTitle: []model.Candidate{lawsOfTheSkies()}}
		cache := newFakeCache()
		newMatcher := func(opts ...matching.Option) *matching.BookMatcher {
			opts = append([]matching.Option{matching.WithLogger(logger.Nop())}, opts...)
			return matching.NewBookMatcher(catalog, cache, library, lookup, opts...)
		}

		Convey("When the source ASIN is in the lookup table", func() {
			book := sourceBook()
			book.ASIN = "b01n5aw5ch"
			out, err := newMatcher().Match(ctx, "user", book)

			Convey("Then tier 1 matches exactly and no search is issued", func() {
				So(err, ShouldBeNil)
				So(out.Result, ShouldNotBeNil)
				So(out.Result.Tier, ShouldEqual, matching.TierASIN)
				So(out.Result.Type, ShouldEqual, matching.MatchExact)
				So(out.Result.EditionID, ShouldEqual, "ed-audio")
				So(out.Result.Existing.UserBookID, ShouldEqual, "ub-1")
				So(catalog.titleCalls, ShouldEqual, 0)
				So(catalog.asinCalls, ShouldEqual, 0)
				So(out.Attempts, ShouldHaveLength, 1)
			})
		})

		Convey("When only the ISBN-10 form of a library ISBN-13 is known", func() {
			book := sourceBook()
			book.Metadata = &model.BookMetadata{ISBN10: "0-306-40615-2"}
			out, _ := newMatcher().Match(ctx, "user", book)

			Convey("Then tier 2 matches exactly", func() {
				So(out.Result.Tier, ShouldEqual, matching.TierISBN)
				So(out.Result.Type, ShouldEqual, matching.MatchExact)
				So(out.Attempts[0].Result, ShouldEqual, matching.AttemptSkipped)
				So(catalog.titleCalls, ShouldEqual, 0)
			})
		})

		Convey("When the ASIN is unknown locally but the remote finds the work", func() {
			book := sourceBook()
			book.ASIN = "B000000001"
			other := lawsOfTheSkies()
			other.Editions = append(other.Editions, model.Edition{ID: "ed-other", ASIN: "B000000001"})
			catalog.byASIN = []model.Candidate{other}
			out, _ := newMatcher().Match(ctx, "user", book)

			Convey("Then it is a cross-edition match on the held work", func() {
				So(out.Result.Tier, ShouldEqual, matching.TierASIN)
				So(out.Result.Type, ShouldEqual, matching.MatchCrossEdition)
				So(out.Result.EditionID, ShouldEqual, "ed-other")
				So(out.Result.Existing.BookID, ShouldEqual, "work-laws")
				So(catalog.titleCalls, ShouldEqual, 0)
			})

			Convey("And a work outside the library needs creating", func() {
				fresh := model.Candidate{ID: "work-new", Title: "New", Editions: []model.Edition{{ID: "ed-new", ASIN: "B000000001"}}}
				catalog.byASIN = []model.Candidate{fresh}
				out, _ := newMatcher().Match(ctx, "user", book)
				So(out.Result.Type, ShouldEqual, matching.MatchNeedsCreate)
				So(out.Result.BookID, ShouldEqual, "work-new")
				So(out.Result.EditionID, ShouldEqual, "ed-new")
			})

			Convey("And the remote search can be disabled", func() {
				before := catalog.asinCalls
				out, _ := newMatcher(matching.WithASINRemoteSearch(false)).Match(ctx, "user", book)
				So(catalog.asinCalls, ShouldEqual, before)
				So(out.Attempts[0].Result, ShouldNotEqual, matching.AttemptMatched)
				So(out.Result.Tier, ShouldEqual, matching.TierTitleAuthor)
			})
		})

		Convey("When tier 1 fails remotely", func() {
			book := sourceBook()
			book.ASIN = "B000000002"
			catalog.asinErr = errRemote
			out, err := newMatcher().Match(ctx, "user", book)

			Convey("Then tier 3 is still attempted", func() {
				So(err, ShouldBeNil)
				So(out.Attempts[0].Result, ShouldEqual, matching.AttemptError)
				So(out.Attempts[0].Error, ShouldContainSubstring, "remote down")
				So(out.Attempts[1].Result, ShouldEqual, matching.AttemptSkipped)
				So(out.Attempts[2].Result, ShouldEqual, matching.AttemptMatched)
				So(out.Result.Tier, ShouldEqual, matching.TierTitleAuthor)
			})
		})

		Convey("When tier 1 panics", func() {
			book := sourceBook()
			book.ASIN = "B000000003"
			catalog.panicOnASIN = true
			out, err := newMatcher().Match(ctx, "user", book)
			So(err, ShouldBeNil)
			So(out.Attempts[0].Result, ShouldEqual, matching.AttemptError)
			So(out.Attempts[0].Error, ShouldContainSubstring, "panicked")
			So(out.Result, ShouldNotBeNil)
		})

		Convey("When the book is nil", func() {
			_, err := newMatcher().Match(ctx, "user", nil)
			So(errors.Is(err, matching.ErrNilBook), ShouldBeTrue)
		})

		Convey("When the context is cancelled", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			out, err := newMatcher().Match(cancelled, "user", sourceBook())
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
			So(out.Result, ShouldBeNil)
			So(catalog.titleCalls, ShouldEqual, 0)
		})
	})
}

func TestBookMatcher_TitleAuthor(t *testing.T) {
	Convey("Given a matcher with no identifier hits", t, func() {
		ctx := context.Background()
		library := &fakeLibrary{byEdition: map[string]*model.LibraryEntry{}, byWork: map[string]*model.LibraryEntry{}}
		catalog := &fakeCatalog{byTitle: []model.Candidate{lawsOfTheSkies()}}
		cache := newFakeCache()
		newMatcher := func(opts ...matching.Option) *matching.BookMatcher {
			opts = append([]matching.Option{matching.WithLogger(logger.Nop())}, opts...)
			return matching.NewBookMatcher(catalog, cache, library, identifiers.BuildLookup(nil), opts...)
		}

		Convey("When the remote search returns the right work", func() {
			out, err := newMatcher(matching.WithMaxSearchResults(3)).Match(ctx, "user", sourceBook())

			Convey("Then the best-scoring candidate and its audiobook edition are chosen", func() {
				So(err, ShouldBeNil)
				So(out.Result.Tier, ShouldEqual, matching.TierTitleAuthor)
				So(out.Result.Type, ShouldEqual, matching.MatchNeedsCreate)
				So(out.Result.BookID, ShouldEqual, "work-laws")
				So(out.Result.EditionID, ShouldEqual, "ed-audio")
				So(out.Result.Identity.Confidence, ShouldEqual, scoring.ConfidenceHigh)
				So(catalog.lastLimit, ShouldEqual, 3)
			})

			Convey("And the mapping is written back to the cache", func() {
				So(cache.puts, ShouldEqual, 1)
				stored := cache.entries["user/"+cache.GenerateTitleAuthorIdentifier("The Laws of the Skies", "Gregoire Courtois")]
				So(stored.EditionID, ShouldEqual, "ed-audio")
				So(stored.LastKnownProgress, ShouldEqual, 0.25)
			})

			Convey("And a second pass is served from the cache alone", func() {
				library.byEdition["ed-audio"] = &model.LibraryEntry{UserBookID: "ub-9", BookID: "work-laws"}
				out, _ := newMatcher().Match(ctx, "user", sourceBook())
				So(catalog.titleCalls, ShouldEqual, 1)
				So(out.Result.FromCache, ShouldBeTrue)
				So(out.Result.Type, ShouldEqual, matching.MatchExisting)
				So(out.Result.BookID, ShouldEqual, "work-laws")
				So(out.Result.ProgressChanged, ShouldBeFalse)
			})
		})

		Convey("When a cached mapping already exists", func() {
			key := cache.GenerateTitleAuthorIdentifier("The Laws of the Skies", "Gregoire Courtois")
			cache.entries["user/"+key] = model.CacheEntry{Exists: true, Identifier: key, EditionID: "ed-audio", LastKnownProgress: 0.25}
			out, _ := newMatcher().Match(ctx, "user", sourceBook())

			Convey("Then no remote search is made", func() {
				So(catalog.titleCalls, ShouldEqual, 0)
				So(catalog.asinCalls+catalog.isbnCalls, ShouldEqual, 0)
				So(out.Result.FromCache, ShouldBeTrue)
				So(out.Result.Type, ShouldEqual, matching.MatchNeedsCreate)
			})
		})

		Convey("When the cache read fails", func() {
			cache.getErr = errors.New("locked")
			out, _ := newMatcher().Match(ctx, "user", sourceBook())
			So(out.Result, ShouldNotBeNil)
			So(catalog.titleCalls, ShouldEqual, 1)
		})

		Convey("When the cache write fails", func() {
			cache.putErr = errors.New("disk full")
			out, _ := newMatcher().Match(ctx, "user", sourceBook())
			So(cache.puts, ShouldEqual, 1)
			So(out.Result, ShouldNotBeNil)
			So(out.Result.EditionID, ShouldEqual, "ed-audio")
		})

		Convey("When some candidates are malformed or blow up", func() {
			catalog.byTitle = []model.Candidate{
				{ID: "", Title: "The Laws of the Skies"},
				{ID: "boom", Title: "The Laws of the Skies", Author: "Gregoire Courtois"},
				lawsOfTheSkies(),
			}
			scorer := panickyScorer{inner: scoring.NewIdentityScorer(), poison: "boom"}
			out, err := newMatcher(matching.WithIdentityScorer(scorer)).Match(ctx, "user", sourceBook())

			Convey("Then the good candidate still wins", func() {
				So(err, ShouldBeNil)
				So(out.Result.BookID, ShouldEqual, "work-laws")
			})
		})

		Convey("When no candidate clears the threshold", func() {
			catalog.byTitle = []model.Candidate{{ID: "w2", Title: "A Completely Different Book", Author: "Someone Else"}}
			out, err := newMatcher().Match(ctx, "user", sourceBook())

			Convey("Then there is no match but the searched metadata is reported", func() {
				So(err, ShouldBeNil)
				So(out.Matched(), ShouldBeFalse)
				So(out.Metadata.Title, ShouldEqual, "The Laws of the Skies")
				So(out.Metadata.Author, ShouldEqual, "Gregoire Courtois")
				So(out.Attempts[2].Result, ShouldEqual, matching.AttemptMiss)
				So(cache.puts, ShouldEqual, 0)
			})
		})

		Convey("When the threshold is raised above the score", func() {
			out, _ := newMatcher(matching.WithConfidenceThreshold(0.99)).Match(ctx, "user", sourceBook())
			So(out.Result, ShouldBeNil)
		})

		Convey("When tier 3 is disabled", func() {
			out, _ := newMatcher(matching.WithTitleAuthorEnabled(false)).Match(ctx, "user", sourceBook())
			So(out.Result, ShouldBeNil)
			So(catalog.titleCalls, ShouldEqual, 0)
			So(out.Attempts[len(out.Attempts)-1].Result, ShouldEqual, matching.AttemptSkipped)
		})
	})
}
