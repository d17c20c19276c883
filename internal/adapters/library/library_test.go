package library_test

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/bookmatch/internal/adapters/library"
	"github.com/okian/bookmatch/internal/domain/model"
)

func TestRepository(t *testing.T) {
	Convey("Given a library holding one work twice", t, func() {
		ctx := context.Background()
		now := time.Now()
		repo := library.New([]model.LibraryEntry{
			{UserBookID: "old", BookID: "w1", Edition: &model.Edition{ID: "e1"}, UpdatedAt: now.Add(-time.Hour)},
			{UserBookID: "new", BookID: "w1", Edition: &model.Edition{ID: "e2"}, UpdatedAt: now},
			{UserBookID: "bare", BookID: "w2"},
		})

		Convey("Then editions resolve to their own entry", func() {
			e, ok := repo.FindByEditionID(ctx, "e1")
			So(ok, ShouldBeTrue)
			So(e.UserBookID, ShouldEqual, "old")
		})

		Convey("Then works resolve to the latest entry", func() {
			e, ok := repo.FindByWorkID(ctx, "w1")
			So(ok, ShouldBeTrue)
			So(e.UserBookID, ShouldEqual, "new")
			_, ok = repo.FindByWorkID(ctx, "w2")
			So(ok, ShouldBeTrue)
		})

		Convey("Then misses and empty ids are safe", func() {
			_, ok := repo.FindByEditionID(ctx, "")
			So(ok, ShouldBeFalse)
			_, ok = repo.FindByWorkID(ctx, "w9")
			So(ok, ShouldBeFalse)
			var none *library.Repository
			_, ok = none.FindByWorkID(ctx, "w1")
			So(ok, ShouldBeFalse)
			So(repo.Len(), ShouldEqual, 3)
		})
	})
}
