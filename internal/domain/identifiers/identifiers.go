// Package identifiers extracts ISBN and ASIN values from source records and
// indexes the user's destination library by them.
package identifiers

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/okian/bookmatch/internal/domain/model"
)

const (
	isbn10Len = 10
	isbn13Len = 13
	asinLen   = 10
)

var isbnLabel = regexp.MustCompile(`(?i)^\s*isbn(?:-?1[03])?\s*:?\s*`)

// NormalizeISBN returns the digits-only form of raw, with an upper-case X
// check character allowed in the last position of an ISBN-10. Values of
// the wrong length or shape yield "".
func NormalizeISBN(raw string) string {
	raw = isbnLabel.ReplaceAllString(raw, "")
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == 'x' || r == 'X':
			b.WriteByte('X')
		case r == '-' || r == ' ' || r == '\t':
		default:
			return ""
		}
	}
	s := b.String()
	switch len(s) {
	case isbn10Len:
		if strings.Contains(s[:isbn10Len-1], "X") {
			return ""
		}
		return s
	case isbn13Len:
		if strings.Contains(s, "X") {
			return ""
		}
		return s
	default:
		return ""
	}
}

// NormalizeASIN returns raw upper-cased when it is ten alphanumerics
// starting with a letter, otherwise "".
func NormalizeASIN(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if len(s) != asinLen {
		return ""
	}
	if s[0] < 'A' || s[0] > 'Z' {
		return ""
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return s
}

// ISBN10To13 converts a normalized ISBN-10 to its 978-prefixed ISBN-13.
func ISBN10To13(isbn10 string) string {
	if len(isbn10) != isbn10Len {
		return ""
	}
	body := "978" + isbn10[:isbn10Len-1]
	sum := 0
	for i, r := range body {
		d := int(r - '0')
		if i%2 == 1 {
			d *= 3
		}
		sum += d
	}
	return body + strconv.Itoa((10-sum%10)%10)
}

// ISBN13To10 converts a 978-prefixed ISBN-13 to ISBN-10. Other prefixes
// have no ISBN-10 form and yield "".
func ISBN13To10(isbn13 string) string {
	if len(isbn13) != isbn13Len || !strings.HasPrefix(isbn13, "978") {
		return ""
	}
	body := isbn13[3 : isbn13Len-1]
	sum := 0
	for i, r := range body {
		sum += int(r-'0') * (10 - i)
	}
	switch check := (11 - sum%11) % 11; check {
	case 10:
		return body + "X"
	default:
		return body + strconv.Itoa(check)
	}
}

// Alternate returns the other-length form of a normalized ISBN, if any.
func Alternate(isbn string) string {
	switch len(isbn) {
	case isbn10Len:
		return ISBN10To13(isbn)
	case isbn13Len:
		return ISBN13To10(isbn)
	default:
		return ""
	}
}

// probe is one place identifier-shaped fields can live on a SourceBook.
type probe struct {
	isbns func(*model.SourceBook) []string
	asin  func(*model.SourceBook) string
}

func metadataProbe(get func(*model.SourceBook) *model.BookMetadata) probe {
	return probe{
		isbns: func(b *model.SourceBook) []string {
			m := get(b)
			if m == nil {
				return nil
			}
			return []string{m.ISBN, m.ISBN13, m.ISBN10}
		},
		asin: func(b *model.SourceBook) string {
			if m := get(b); m != nil {
				return m.ASIN
			}
			return ""
		},
	}
}

// probes are tried in order: top level, metadata, media metadata.
var probes = []probe{ //nolint:gochecknoglobals // fixed priority list
	{
		isbns: func(b *model.SourceBook) []string { return []string{b.ISBN} },
		asin:  func(b *model.SourceBook) string { return b.ASIN },
	},
	metadataProbe(func(b *model.SourceBook) *model.BookMetadata { return b.Metadata }),
	metadataProbe(func(b *model.SourceBook) *model.BookMetadata {
		if b.Media == nil {
			return nil
		}
		return b.Media.Metadata
	}),
}

// Extract returns the first valid ISBN and ASIN found on b.
func Extract(b *model.SourceBook) model.Identifiers {
	var ids model.Identifiers
	if b == nil {
		return ids
	}
	for _, p := range probes {
		if ids.ISBN == "" {
			for _, raw := range p.isbns(b) {
				if isbn := NormalizeISBN(raw); isbn != "" {
					ids.ISBN = isbn
					break
				}
			}
		}
		if ids.ASIN == "" {
			ids.ASIN = NormalizeASIN(p.asin(b))
		}
	}
	return ids
}

// Extracted is the search tuple the matcher works from.
type Extracted struct {
	Title       string            `json:"title"`
	Author      string            `json:"author"`
	Narrator    string            `json:"narrator,omitempty"`
	Identifiers model.Identifiers `json:"identifiers"`
}

// ExtractMetadata pulls title, author, narrator and identifiers from b,
// falling back to nested metadata when top-level fields are blank.
func ExtractMetadata(b *model.SourceBook) Extracted {
	if b == nil {
		return Extracted{}
	}
	nested := []*model.BookMetadata{b.Metadata}
	if b.Media != nil {
		nested = append(nested, b.Media.Metadata)
	}
	out := Extracted{
		Title:       strings.TrimSpace(b.Title),
		Author:      strings.TrimSpace(b.Author),
		Narrator:    strings.TrimSpace(b.Narrator),
		Identifiers: Extract(b),
	}
	for _, m := range nested {
		if m == nil {
			continue
		}
		if out.Title == "" {
			out.Title = strings.TrimSpace(m.Title)
		}
		if out.Author == "" {
			out.Author = strings.TrimSpace(strings.Join(m.Authors, ", "))
		}
		if out.Narrator == "" {
			out.Narrator = strings.TrimSpace(m.Narrator)
		}
	}
	return out
}
