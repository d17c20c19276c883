package scoring

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/okian/bookmatch/internal/domain/model"
	"github.com/okian/bookmatch/internal/domain/normalize"
	"github.com/okian/bookmatch/internal/domain/similarity"
)

const (
	maxScore = 100
	minYear  = 1
	maxYear  = 9999
)

// Confidence bands an identity score.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceNone   Confidence = "none"
)

// Factors are the per-factor identity scores, each in [0,100].
type Factors struct {
	Title    float64 `json:"title"`
	Author   float64 `json:"author"`
	Series   float64 `json:"series"`
	Activity float64 `json:"activity"`
	Year     float64 `json:"year"`
}

// IdentityBreakdown records every intermediate value of one identity score.
type IdentityBreakdown struct {
	Factors             Factors `json:"factors"`
	Base                float64 `json:"base"`
	MatchBonus          float64 `json:"match_bonus"`
	ShortTitlePenalty   float64 `json:"short_title_penalty"`
	AuthorMismatch      float64 `json:"author_mismatch_penalty"`
	SourceTitleLength   int     `json:"source_title_length"`
	ResolvedAuthor      string  `json:"resolved_author,omitempty"`
	NormalizedTitle     string  `json:"normalized_title,omitempty"`
	NormalizedCandidate string  `json:"normalized_candidate,omitempty"`
}

// IdentityResult is the outcome of scoring one candidate.
type IdentityResult struct {
	TotalScore float64           `json:"total_score"`
	Confidence Confidence        `json:"confidence"`
	IsMatch    bool              `json:"is_match"`
	Breakdown  IdentityBreakdown `json:"breakdown"`
}

// IdentityOption configures an IdentityScorer.
type IdentityOption func(*IdentityScorer)

// WithIdentityTuning replaces the default identity constants.
func WithIdentityTuning(t IdentityTuning) IdentityOption {
	return func(s *IdentityScorer) {
		s.tuning = t
	}
}

// IdentityScorer estimates whether a candidate is the same work as the
// source book. It holds no mutable state and is safe for concurrent use.
type IdentityScorer struct {
	tuning IdentityTuning
}

// NewIdentityScorer creates a scorer with the default tuning.
func NewIdentityScorer(opts ...IdentityOption) *IdentityScorer {
	s := &IdentityScorer{tuning: DefaultIdentityTuning()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tuning returns the constants in use.
func (s *IdentityScorer) Tuning() IdentityTuning { return s.tuning }

// Score rates candidate against the source title, author and metadata.
// A nil or untitled candidate yields a zero, non-matching result.
func (s *IdentityScorer) Score(candidate *model.Candidate, sourceTitle, sourceAuthor string, meta model.SourceMeta) IdentityResult {
	if candidate == nil {
		return s.zero()
	}
	candTitle := normalize.Title(candidate.Title)
	if candTitle == "" {
		return s.zero()
	}
	srcTitle := normalize.Title(sourceTitle)
	author, resolved := s.authorFactor(normalize.Author(sourceAuthor), candidate.Authors())

	f := Factors{
		Title:    100 * similarity.Similarity(srcTitle, candTitle, normalize.KindTitle),
		Author:   author,
		Series:   s.seriesFactor(meta, candidate.Series),
		Activity: s.activityFactor(candidate.Popularity()),
		Year:     s.yearFactor(meta.Year, candidate.ReleaseYear),
	}

	b := s.Combine(f, utf8.RuneCountInString(srcTitle))
	b.ResolvedAuthor = resolved
	b.NormalizedTitle = srcTitle
	b.NormalizedCandidate = candTitle
	return s.result(b)
}

// Combine applies weights, bonuses and penalties to f. titleLen is the
// rune length of the normalized source title.
func (s *IdentityScorer) Combine(f Factors, titleLen int) IdentityBreakdown {
	t := s.tuning
	f = Factors{
		Title:    clamp(f.Title),
		Author:   clamp(f.Author),
		Series:   clamp(f.Series),
		Activity: clamp(f.Activity),
		Year:     clamp(f.Year),
	}
	b := IdentityBreakdown{Factors: f, SourceTitleLength: titleLen}
	b.Base = f.Title*t.TitleWeight +
		f.Author*t.AuthorWeight +
		f.Series*t.SeriesWeight +
		f.Activity*t.ActivityWeight +
		f.Year*t.YearWeight

	weakest := math.Min(f.Title, f.Author)
	switch {
	case f.Title >= t.PerfectMatchThreshold && f.Author >= t.PerfectMatchThreshold:
		b.MatchBonus = weakest * t.PerfectMatchBonus
	case f.Title >= t.StrongMatchThreshold && f.Author >= t.StrongMatchThreshold:
		b.MatchBonus = weakest * t.StrongMatchBonus
	}

	if l := float64(titleLen); l <= t.ShortTitleLength {
		b.ShortTitlePenalty = (t.ShortTitleLength - l) * t.ShortTitleSlope
	}

	if f.Title > t.MismatchTitleAbove && f.Author < t.MismatchAuthorBelow {
		b.AuthorMismatch = (t.MismatchTitleAbove - f.Author) * t.MismatchSlope
	}
	return b
}

// Total returns the clamped final score of b.
func (b IdentityBreakdown) Total() float64 {
	return clamp(b.Base + b.MatchBonus - b.ShortTitlePenalty - b.AuthorMismatch)
}

// Band maps a total score to its confidence band.
func (s *IdentityScorer) Band(total float64) Confidence {
	switch {
	case total >= s.tuning.HighConfidence:
		return ConfidenceHigh
	case total >= s.tuning.MediumConfidence:
		return ConfidenceMedium
	case total >= s.tuning.LowConfidence:
		return ConfidenceLow
	default:
		return ConfidenceNone
	}
}

func (s *IdentityScorer) result(b IdentityBreakdown) IdentityResult {
	total := b.Total()
	c := s.Band(total)
	return IdentityResult{
		TotalScore: total,
		Confidence: c,
		IsMatch:    c != ConfidenceNone,
		Breakdown:  b,
	}
}

func (s *IdentityScorer) zero() IdentityResult {
	return IdentityResult{Confidence: ConfidenceNone}
}

// authorFactor picks the contributor closest to the source author. The
// joined contributor list is also tried for multi-author source strings.
func (s *IdentityScorer) authorFactor(source string, names []string) (float64, string) {
	if source == "" || len(names) == 0 {
		return 0, ""
	}
	options := append([]string(nil), names...)
	if len(names) > 1 {
		options = append(options, strings.Join(names, " "))
	}
	best, resolved := -1.0, ""
	for _, name := range options {
		if sim := similarity.Similarity(source, normalize.Author(name), normalize.KindAuthor); sim > best {
			best, resolved = sim, name
		}
	}
	return 100 * best, resolved
}

func (s *IdentityScorer) seriesFactor(meta model.SourceMeta, refs []model.SeriesRef) float64 {
	t := s.tuning
	source := normalize.Series(meta.SeriesName)
	var names []model.SeriesRef
	for _, r := range refs {
		if normalize.Series(r.Name) != "" {
			names = append(names, r)
		}
	}
	switch {
	case source == "" && len(names) == 0:
		return t.SeriesBothAbsent
	case source == "" || len(names) == 0:
		return t.SeriesOneAbsent
	}

	best := 0.0
	for _, r := range names {
		sim := 100 * similarity.Similarity(source, normalize.Series(r.Name), normalize.KindSeries)
		if sim < t.SeriesMinNameSimilarity {
			continue
		}
		score := sim * t.SeriesNameFactor
		if sameSequence(meta.SeriesSequence, r.Position) {
			score += t.SeriesSequenceBonus
		}
		best = math.Max(best, math.Min(maxScore, score))
	}
	return best
}

func (s *IdentityScorer) activityFactor(activity float64) float64 {
	t := s.tuning
	switch {
	case math.IsNaN(activity) || activity <= 0:
		return t.ActivityFloor
	case math.IsInf(activity, 1):
		return maxScore
	}
	return math.Max(t.ActivityFloor, math.Min(maxScore, t.ActivityScale*math.Log10(1+activity)))
}

// yearSteps maps an absolute year difference to a score.
var yearSteps = []struct { //nolint:gochecknoglobals // fixed step table
	maxDiff int
	score   float64
}{
	{0, 100},
	{1, 85},
	{3, 70},
	{5, 50},
}

const yearFloor = 20

func (s *IdentityScorer) yearFactor(source, candidate int) float64 {
	srcOK, candOK := validYear(source), validYear(candidate)
	switch {
	case !srcOK && !candOK:
		return s.tuning.YearBothAbsent
	case !srcOK || !candOK:
		return s.tuning.YearOneAbsent
	}
	diff := source - candidate
	if diff < 0 {
		diff = -diff
	}
	for _, step := range yearSteps {
		if diff <= step.maxDiff {
			return step.score
		}
	}
	return yearFloor
}

func validYear(y int) bool { return y >= minYear && y <= maxYear }

func sameSequence(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		return fa == fb
	}
	return strings.EqualFold(a, b)
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(maxScore, v))
}
