// Package normalize canonicalizes titles and contributor names so that
// surface differences do not depress similarity scores.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Kind selects the kind-specific normalization steps.
type Kind string

const (
	KindTitle    Kind = "title"
	KindAuthor   Kind = "author"
	KindNarrator Kind = "narrator"
	KindSeries   Kind = "series"
	KindGeneric  Kind = "generic"
)

// maxPasses bounds the fixpoint loop. Real input settles in two or three.
const maxPasses = 8

// Normalize returns the canonical form of text for kind. It never fails:
// empty input yields "". The result is a fixpoint, so applying Normalize
// again returns the same string.
func Normalize(text string, kind Kind) string {
	s := text
	for range maxPasses {
		next := pass(s, kind)
		if next == s {
			return next
		}
		s = next
	}
	return s
}

// Value normalizes an arbitrary value. Strings, string slices and
// fmt.Stringer are supported; anything else becomes "".
func Value(v any, kind Kind) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return Normalize(t, kind)
	case *string:
		if t == nil {
			return ""
		}
		return Normalize(*t, kind)
	case []string:
		return Normalize(strings.Join(t, ", "), kind)
	case fmt.Stringer:
		return Normalize(t.String(), kind)
	default:
		return ""
	}
}

// Title, Author, Narrator and Series are shorthands for Normalize.
func Title(s string) string    { return Normalize(s, KindTitle) }
func Author(s string) string   { return Normalize(s, KindAuthor) }
func Narrator(s string) string { return Normalize(s, KindNarrator) }
func Series(s string) string   { return Normalize(s, KindSeries) }

func pass(s string, kind Kind) string {
	s = fold(s)
	if s == "" {
		return ""
	}
	switch kind {
	case KindTitle, KindSeries:
		s = stripLeadingArticle(s)
		s = stripEditionAnnotations(s)
		s = unifyNumbers(s)
	case KindAuthor, KindNarrator:
		s = stripContributorNoise(s)
	case KindGeneric:
	}
	return finalPass(s)
}

// fold lowercases and strips combining marks. The transformer chain keeps
// internal state so a fresh one is built per call.
func fold(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

var articles = map[string]struct{}{ //nolint:gochecknoglobals // fixed lookup table
	// en
	"the": {}, "a": {}, "an": {},
	// fr
	"le": {}, "la": {}, "les": {}, "un": {}, "une": {}, "des": {},
	// de
	"der": {}, "die": {}, "das": {}, "ein": {}, "eine": {},
	// es
	"el": {}, "los": {}, "las": {}, "una": {}, "unos": {}, "unas": {},
	// it
	"il": {}, "lo": {}, "gli": {}, "uno": {},
	// nl
	"de": {}, "het": {}, "een": {},
}

// elidedArticle matches l' and un' in front of a word.
var elidedArticle = regexp.MustCompile(`^(?:l|un)['’]\s*`)

// stripLeadingArticle removes one leading article. The article is kept if
// nothing would remain or if what remains starts with another article.
func stripLeadingArticle(s string) string {
	if loc := elidedArticle.FindStringIndex(s); loc != nil {
		rest := strings.TrimSpace(s[loc[1]:])
		if rest != "" && !startsWithArticle(rest) {
			return rest
		}
		return s
	}
	first, rest, ok := strings.Cut(s, " ")
	if !ok {
		return s
	}
	if _, isArticle := articles[first]; !isArticle {
		return s
	}
	rest = strings.TrimSpace(rest)
	if rest == "" || startsWithArticle(rest) {
		return s
	}
	return rest
}

func startsWithArticle(s string) bool {
	if elidedArticle.MatchString(s) {
		return true
	}
	first, _, _ := strings.Cut(s, " ")
	_, ok := articles[strings.Trim(first, ".,:;!?\"'’")]
	return ok
}

const numberToken = `(?:\d+|[ivxlc]+|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve|thirteen|fourteen|fifteen|sixteen|seventeen|eighteen|nineteen|twenty)`

// lead requires a separator or bracket before an annotation so that words
// merely ending in "ed." or "book" are left alone.
const lead = `(?:[\s,:;\-–—]*[(\[]\s*|[\s,:;\-–—]+)`

var (
	editionSuffix = regexp.MustCompile(lead +
		`(?:(?:\d+(?:st|nd|rd|th)|first|second|third|fourth|fifth|revised|expanded|updated|anniversary|special|collectors|collector's|deluxe|illustrated|unabridged|abridged|new|international|annotated)\s+)?(?:edition|ed\.|unabridged|abridged)\s*[)\]]?\s*$`)
	volumeSuffix = regexp.MustCompile(lead +
		`(?:book|bk\.?|vol\.?|volume|tome|band|nr\.?|no\.?)\s*#?\s*` + numberToken + `\s*[)\]]?\s*$`)
	partSuffix = regexp.MustCompile(lead +
		`part\s+` + numberToken + `\s*[)\]]?\s*$`)
)

// stripEditionAnnotations drops trailing edition, volume and part tags.
func stripEditionAnnotations(s string) string {
	for {
		next := s
		for _, re := range []*regexp.Regexp{editionSuffix, volumeSuffix, partSuffix} {
			if stripped := strings.TrimSpace(re.ReplaceAllString(next, "")); stripped != "" {
				next = stripped
			}
		}
		if next == s {
			return s
		}
		s = next
	}
}

var (
	numberWords = map[string]int{ //nolint:gochecknoglobals // fixed lookup table
		"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
		"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
		"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15,
		"sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19, "twenty": 20,
	}
	romanNumerals = map[string]int{ //nolint:gochecknoglobals // fixed lookup table
		"i": 1, "ii": 2, "iii": 3, "iv": 4, "v": 5, "vi": 6, "vii": 7, "viii": 8, "ix": 9, "x": 10,
		"xi": 11, "xii": 12, "xiii": 13, "xiv": 14, "xv": 15, "xvi": 16, "xvii": 17, "xviii": 18, "xix": 19, "xx": 20,
	}
	// Single-letter numerals are ordinary words unless a numbering keyword precedes them.
	ambiguousRoman = map[string]struct{}{"i": {}, "v": {}, "x": {}} //nolint:gochecknoglobals // fixed lookup table
	numberingWords = map[string]struct{}{                           //nolint:gochecknoglobals // fixed lookup table
		"part": {}, "book": {}, "volume": {}, "vol": {}, "chapter": {}, "episode": {},
		"season": {}, "act": {}, "tome": {}, "band": {}, "no": {}, "number": {},
	}
	wordToken = regexp.MustCompile(`[\p{L}\p{N}]+`)
)

// unifyNumbers rewrites spelled-out numbers and roman numerals up to 20 as digits.
func unifyNumbers(s string) string {
	prev := ""
	return wordToken.ReplaceAllStringFunc(s, func(tok string) string {
		defer func() { prev = tok }()
		if n, ok := numberWords[tok]; ok {
			return strconv.Itoa(n)
		}
		n, ok := romanNumerals[tok]
		if !ok {
			return tok
		}
		if _, ambiguous := ambiguousRoman[tok]; ambiguous {
			if _, numbered := numberingWords[prev]; !numbered {
				return tok
			}
		}
		return strconv.Itoa(n)
	})
}

var (
	leadingBy  = regexp.MustCompile(`^(?:(?:written|read|narrated|translated|edited)\s+)?by\s+`)
	yearRange  = regexp.MustCompile(`\(\s*(?:b\.|born|d\.|died|c\.)?\s*\d{3,4}\??\s*(?:[-–—]\s*(?:\d{3,4}\??)?)?\s*\)`)
	roleSuffix = regexp.MustCompile(
		`(?:\s*[,\-–—]\s*|\s*\(\s*)(?:translator|translated|trans\.|narrator|narrated|reader|editor|ed\.|eds\.|illustrator|introduction|foreword|afterword|contributor|adapter)\s*\)?\s*$`)
	nameSuffix = regexp.MustCompile(`(?:\s*,\s*|\s+)(?:jr\.?|sr\.?|ph\.?\s?d\.?|m\.?d\.?|esq\.?|ii|iii|iv)\s*$`)
)

// stripContributorNoise removes "by" prefixes, life-year ranges and role suffixes.
func stripContributorNoise(s string) string {
	if rest := strings.TrimSpace(leadingBy.ReplaceAllString(s, "")); rest != "" {
		s = rest
	}
	s = strings.TrimSpace(yearRange.ReplaceAllString(s, " "))
	for {
		next := strings.TrimSpace(roleSuffix.ReplaceAllString(s, ""))
		next = strings.TrimSpace(nameSuffix.ReplaceAllString(next, ""))
		if next == "" || next == s {
			return s
		}
		s = strings.TrimRight(next, " ,")
	}
}

// finalPass deletes quotes, turns dashes and other punctuation into spaces
// and collapses whitespace.
func finalPass(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case isQuote(r):
		case r == '&':
			b.WriteString(" and ")
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func isQuote(r rune) bool {
	switch r {
	case '\'', '"', '`', '´', '‘', '’', '‚', '‛', '“', '”', '„', '‟', '«', '»', '‹', '›':
		return true
	}
	return false
}
