// Package model holds the data shapes shared by the matching pipeline.
package model

import "strings"

// Format is the coarse edition format used for edition selection.
type Format string

const (
	FormatUnknown   Format = ""
	FormatAudiobook Format = "audiobook"
	FormatEbook     Format = "ebook"
	FormatPhysical  Format = "physical"
	FormatOther     Format = "other"
)

// IsDigital reports whether f is an audiobook or ebook.
func (f Format) IsDigital() bool { return f == FormatAudiobook || f == FormatEbook }

// BookMetadata is the nested metadata object some source records carry.
type BookMetadata struct {
	Title    string   `json:"title,omitempty"`
	Authors  []string `json:"authors,omitempty"`
	Narrator string   `json:"narrator,omitempty"`
	ISBN     string   `json:"isbn,omitempty"`
	ISBN10   string   `json:"isbn_10,omitempty"`
	ISBN13   string   `json:"isbn_13,omitempty"`
	ASIN     string   `json:"asin,omitempty"`
}

// Media wraps the media-level metadata of audio-first source records.
type Media struct {
	Metadata *BookMetadata `json:"metadata,omitempty"`
	Duration float64       `json:"duration,omitempty"`
}

// SourceBook is a book as known to the source service. It is a snapshot
// taken once per sync pass and never mutated by the matcher.
type SourceBook struct {
	ID              string        `json:"id,omitempty"`
	Title           string        `json:"title,omitempty"`
	Author          string        `json:"author,omitempty"`
	Narrator        string        `json:"narrator,omitempty"`
	SeriesName      string        `json:"series_name,omitempty"`
	SeriesSequence  string        `json:"series_sequence,omitempty"`
	Year            int           `json:"year,omitempty"`
	DurationSeconds float64       `json:"duration_seconds,omitempty"`
	PageCount       int           `json:"page_count,omitempty"`
	MediaType       string        `json:"media_type,omitempty"`
	ISBN            string        `json:"isbn,omitempty"`
	ASIN            string        `json:"asin,omitempty"`
	Metadata        *BookMetadata `json:"metadata,omitempty"`
	Media           *Media        `json:"media,omitempty"`
	Progress        float64       `json:"progress,omitempty"`
}

// Identifiers holds normalized identifiers. Empty means absent; a non-empty
// value is always in normalized form.
type Identifiers struct {
	ISBN string `json:"isbn,omitempty"`
	ASIN string `json:"asin,omitempty"`
}

// Empty reports whether no identifier is present.
func (i Identifiers) Empty() bool { return i.ISBN == "" && i.ASIN == "" }

// SourceMeta is the subset of a SourceBook the scorers look at.
type SourceMeta struct {
	SeriesName      string
	SeriesSequence  string
	Year            int
	DurationSeconds float64
	PageCount       int
}

// Meta extracts the scoring metadata of b.
func (b *SourceBook) Meta() SourceMeta {
	if b == nil {
		return SourceMeta{}
	}
	duration := b.DurationSeconds
	if duration <= 0 && b.Media != nil {
		duration = b.Media.Duration
	}
	return SourceMeta{
		SeriesName:      b.SeriesName,
		SeriesSequence:  b.SeriesSequence,
		Year:            b.Year,
		DurationSeconds: duration,
		PageCount:       b.PageCount,
	}
}

// Person is a named contributor in a destination record.
type Person struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Contribution links a work to a contributor with an optional role.
// Depending on the response variant the name lives on Person or Author.
type Contribution struct {
	Role   string  `json:"contribution,omitempty"`
	Person *Person `json:"person,omitempty"`
	Author *Person `json:"author,omitempty"`
}

// SeriesRef names a series a work belongs to.
type SeriesRef struct {
	Name     string `json:"name,omitempty"`
	Position string `json:"position,omitempty"`
}

// Edition is a specific published form of a Candidate.
type Edition struct {
	ID             string  `json:"id"`
	Format         string  `json:"edition_format,omitempty"`
	ReadingFormat  string  `json:"reading_format,omitempty"`
	PhysicalFormat string  `json:"physical_format,omitempty"`
	PageCount      int     `json:"pages,omitempty"`
	AudioSeconds   float64 `json:"audio_seconds,omitempty"`
	ISBN10         string  `json:"isbn_10,omitempty"`
	ISBN13         string  `json:"isbn_13,omitempty"`
	ASIN           string  `json:"asin,omitempty"`
	UsersCount     float64 `json:"users_count,omitempty"`
}

// Candidate is one destination work returned by a catalog search.
type Candidate struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Contributions []Contribution `json:"contributions,omitempty"`
	AuthorNames   []string       `json:"author_names,omitempty"`
	Author        string         `json:"author,omitempty"`
	Series        []SeriesRef    `json:"series,omitempty"`
	Activity      float64        `json:"activities_count,omitempty"`
	UsersCount    float64        `json:"users_count,omitempty"`
	ReleaseYear   int            `json:"release_year,omitempty"`
	Editions      []Edition      `json:"editions,omitempty"`
}

// authorSources lists the places an author name can live, in priority order.
var authorSources = []func(*Candidate) []string{ //nolint:gochecknoglobals // fixed fallback chain
	func(c *Candidate) []string {
		return contributionNames(c.Contributions, func(ct Contribution) *Person { return ct.Person })
	},
	func(c *Candidate) []string {
		return contributionNames(c.Contributions, func(ct Contribution) *Person { return ct.Author })
	},
	func(c *Candidate) []string { return nonEmpty(c.AuthorNames) },
	func(c *Candidate) []string { return nonEmpty([]string{c.Author}) },
}

// Authors returns the contributor names of c from the first source
// that has any.
func (c *Candidate) Authors() []string {
	if c == nil {
		return nil
	}
	for _, source := range authorSources {
		if names := source(c); len(names) > 0 {
			return names
		}
	}
	return nil
}

// Popularity returns the activity counter, falling back to users count.
func (c *Candidate) Popularity() float64 {
	if c == nil {
		return 0
	}
	if c.Activity != 0 {
		return c.Activity
	}
	return c.UsersCount
}

func contributionNames(cs []Contribution, pick func(Contribution) *Person) []string {
	var names []string
	for _, ct := range cs {
		p := pick(ct)
		if p == nil {
			continue
		}
		if n := strings.TrimSpace(p.Name); n != "" {
			names = append(names, n)
		}
	}
	return names
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
