package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	service "github.com/okian/bookmatch/internal/app"
)

const libraryJSON = `{"entries":[{"user_book_id":"ub-1","book_id":"work-1","edition":{"id":"ed-1","asin":"B00B7NPRY8"}}]}`

func newCatalogServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/users/u-1/library":
			_, _ = w.Write([]byte(libraryJSON))
		case strings.HasPrefix(r.URL.Path, "/search"):
			_, _ = w.Write([]byte(`{"results":[]}`))
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestMatchCommand(t *testing.T) {
	convey.Convey("Given a catalog and a books file", t, func() {
		srv := newCatalogServer()
		defer srv.Close()
		_ = os.Setenv("BOOKMATCH_CATALOG__BASE_URL", srv.URL)
		defer func() { _ = os.Unsetenv("BOOKMATCH_CATALOG__BASE_URL") }()

		dir := t.TempDir()
		input := filepath.Join(dir, "books.json")
		books := `[{"id":"src-1","title":"Dune","asin":"B00B7NPRY8"},{"id":"src-2","title":"Unknown Title","author":"Nobody"}]`
		convey.So(os.WriteFile(input, []byte(books), 0o600), convey.ShouldBeNil)

		convey.Convey("When running match", func() {
			var out bytes.Buffer
			cmd := newRootCmd()
			cmd.SetOut(&out)
			cmd.SetArgs([]string{"match", "--input", input, "--user", "u-1"})

			err := cmd.Execute()

			convey.Convey("Then the report is written to stdout", func() {
				convey.So(err, convey.ShouldBeNil)
				var report service.PassReport
				convey.So(json.Unmarshal(out.Bytes(), &report), convey.ShouldBeNil)
				convey.So(report.UserID, convey.ShouldEqual, "u-1")
				convey.So(report.LibrarySize, convey.ShouldEqual, 1)
				convey.So(report.Summary.Total, convey.ShouldEqual, 2)
				convey.So(report.Summary.Matched, convey.ShouldEqual, 1)
				convey.So(report.Summary.NoMatch, convey.ShouldEqual, 1)
				convey.So(report.Books[0].Outcome.Result.EditionID, convey.ShouldEqual, "ed-1")
			})
		})

		convey.Convey("When writing the report to a file", func() {
			output := filepath.Join(dir, "report.json")
			cmd := newRootCmd()
			cmd.SetArgs([]string{"match", "-i", input, "-o", output, "-u", "u-1"})

			convey.So(cmd.Execute(), convey.ShouldBeNil)
			data, err := os.ReadFile(output)
			convey.So(err, convey.ShouldBeNil)
			convey.So(string(data), convey.ShouldContainSubstring, `"pass_id"`)
		})

		convey.Convey("When the input is not a JSON array", func() {
			bad := filepath.Join(dir, "bad.json")
			convey.So(os.WriteFile(bad, []byte(`{"id":"x"}`), 0o600), convey.ShouldBeNil)
			cmd := newRootCmd()
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs([]string{"match", "--input", bad})

			convey.So(cmd.Execute(), convey.ShouldNotBeNil)
		})
	})
}

func TestReadBooks(t *testing.T) {
	convey.Convey("Given books on stdin", t, func() {
		books, err := readBooks(strings.NewReader(`[{"id":"a","title":"A"},{"id":"b","title":"B"}]`), "-")

		convey.So(err, convey.ShouldBeNil)
		convey.So(books, convey.ShouldHaveLength, 2)
		convey.So(books[1].Title, convey.ShouldEqual, "B")
	})

	convey.Convey("Given a missing file", t, func() {
		_, err := readBooks(nil, "/non/existent/books.json")
		convey.So(err, convey.ShouldNotBeNil)
	})
}

func TestWriteReport(t *testing.T) {
	report := &service.PassReport{PassID: "p-1", UserID: "u-1"}

	convey.Convey("Given a writable output file", t, func() {
		path := filepath.Join(t.TempDir(), "report.json")
		err := writeReport(nil, path, report)

		convey.So(err, convey.ShouldBeNil)
		data, err := os.ReadFile(path)
		convey.So(err, convey.ShouldBeNil)
		convey.So(string(data), convey.ShouldContainSubstring, `"pass_id": "p-1"`)
	})

	convey.Convey("Given an output device that rejects writes", t, func() {
		if _, err := os.Stat("/dev/full"); err != nil {
			convey.SkipSo("no /dev/full on this platform")
			return
		}
		err := writeReport(nil, "/dev/full", report)
		convey.So(err, convey.ShouldNotBeNil)
	})

	convey.Convey("Given an output directory that does not exist", t, func() {
		err := writeReport(nil, "/non/existent/report.json", report)
		convey.So(err, convey.ShouldNotBeNil)
	})
}
