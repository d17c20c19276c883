package scoring

import (
	"math"
	"sort"
	"strings"

	"github.com/okian/bookmatch/internal/domain/model"
	"github.com/okian/bookmatch/internal/domain/similarity"
)

const completenessFields = 6

// EditionBreakdown records how one edition was scored.
type EditionBreakdown struct {
	EditionID       string       `json:"edition_id"`
	Format          model.Format `json:"format"`
	FormatFit       float64      `json:"format_fit"`
	Popularity      float64      `json:"popularity"`
	DurationFit     float64      `json:"duration_fit"`
	Completeness    float64      `json:"completeness"`
	Base            float64      `json:"base"`
	FormatBonus     float64      `json:"format_bonus"`
	PopularityBonus float64      `json:"popularity_bonus"`
	Total           float64      `json:"total"`
}

// EditionScore pairs an edition with its breakdown.
type EditionScore struct {
	Edition   model.Edition    `json:"edition"`
	Breakdown EditionBreakdown `json:"breakdown"`
}

// EditionSelection is the best edition of a work plus runners-up.
type EditionSelection struct {
	Edition      model.Edition    `json:"edition"`
	Score        float64          `json:"score"`
	Breakdown    EditionBreakdown `json:"breakdown"`
	Alternatives []EditionScore   `json:"alternatives,omitempty"`
}

// EditionOption configures an EditionSelector.
type EditionOption func(*EditionSelector)

// WithEditionTuning replaces the default edition constants.
func WithEditionTuning(t EditionTuning) EditionOption {
	return func(s *EditionSelector) {
		s.tuning = t
	}
}

// EditionSelector ranks the editions of a confirmed work.
type EditionSelector struct {
	tuning EditionTuning
}

// NewEditionSelector creates a selector with the default tuning.
func NewEditionSelector(opts ...EditionOption) *EditionSelector {
	s := &EditionSelector{tuning: DefaultEditionTuning()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tuning returns the constants in use.
func (s *EditionSelector) Tuning() EditionTuning { return s.tuning }

// Select scores every edition of candidate for a user reading in detected
// format and returns the best one. Equal scores keep input order. It
// returns nil when the candidate has no editions.
func (s *EditionSelector) Select(candidate *model.Candidate, meta model.SourceMeta, detected model.Format) *EditionSelection {
	if candidate == nil || len(candidate.Editions) == 0 {
		return nil
	}
	scored := make([]EditionScore, len(candidate.Editions))
	for i, e := range candidate.Editions {
		scored[i] = EditionScore{Edition: e, Breakdown: s.ScoreEdition(e, meta, detected)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Breakdown.Total > scored[j].Breakdown.Total
	})

	top := scored[0]
	sel := &EditionSelection{
		Edition:   top.Edition,
		Score:     top.Breakdown.Total,
		Breakdown: top.Breakdown,
	}
	if n := min(s.tuning.Alternatives, len(scored)-1); n > 0 {
		sel.Alternatives = append([]EditionScore(nil), scored[1:1+n]...)
	}
	return sel
}

// ScoreEdition scores a single edition.
func (s *EditionSelector) ScoreEdition(e model.Edition, meta model.SourceMeta, detected model.Format) EditionBreakdown {
	t := s.tuning
	format := EditionFormat(e)
	b := EditionBreakdown{
		EditionID:    e.ID,
		Format:       format,
		FormatFit:    s.formatFit(format, detected),
		Popularity:   s.popularity(e.UsersCount),
		DurationFit:  s.durationFit(e, meta, detected),
		Completeness: s.completeness(e),
	}
	b.Base = b.FormatFit*t.FormatWeight +
		b.Popularity*t.PopularityWeight +
		b.DurationFit*t.DurationWeight +
		b.Completeness*t.CompletenessWeight

	if format != model.FormatUnknown && format == detected {
		b.FormatBonus = t.ExactFormatBonus
	}
	if u := e.UsersCount; u >= t.PopularityBonusHolders {
		b.PopularityBonus = math.Min(t.PopularityBonusCap, math.Log10(u/t.PopularityBonusHolders))
	}
	b.Total = clamp(b.Base + b.FormatBonus + b.PopularityBonus)
	return b
}

func (s *EditionSelector) formatFit(format, detected model.Format) float64 {
	t := s.tuning
	switch {
	case format == model.FormatUnknown:
		return t.FormatMissing
	case format == detected:
		return t.FormatExact
	case format.IsDigital() && detected.IsDigital():
		return t.FormatCrossDigital
	case format == model.FormatPhysical:
		return t.FormatPhysical
	default:
		return t.FormatOther
	}
}

func (s *EditionSelector) popularity(users float64) float64 {
	t := s.tuning
	switch {
	case math.IsNaN(users) || users <= 0:
		return t.PopularityFloor
	case math.IsInf(users, 1):
		return maxScore
	}
	return math.Max(t.PopularityFloor, math.Min(maxScore, t.PopularityScale*math.Log10(1+users)))
}

// durationFit only discriminates when the user listens.
func (s *EditionSelector) durationFit(e model.Edition, meta model.SourceMeta, detected model.Format) float64 {
	if detected != model.FormatAudiobook {
		return s.tuning.DurationNeutral
	}
	if !(e.AudioSeconds > 0) || math.IsInf(e.AudioSeconds, 0) {
		return s.tuning.DurationMissing
	}
	return similarity.Duration(meta.DurationSeconds, e.AudioSeconds)
}

func (s *EditionSelector) completeness(e model.Edition) float64 {
	present := 0
	for _, ok := range []bool{
		e.ASIN != "",
		e.ISBN10 != "" || e.ISBN13 != "",
		e.PageCount > 0,
		e.AudioSeconds > 0,
		strings.TrimSpace(e.Format+e.ReadingFormat+e.PhysicalFormat) != "",
		e.UsersCount > 0,
	} {
		if ok {
			present++
		}
	}
	return math.Max(s.tuning.CompletenessFloor, 100*float64(present)/completenessFields)
}
