// Package scoring computes book identity confidence and ranks editions of
// a confirmed work.
package scoring

// IdentityTuning holds the empirically tuned constants of identity scoring.
// Weights apply to 0-100 factor scores.
type IdentityTuning struct {
	TitleWeight    float64 `koanf:"title_weight"`
	AuthorWeight   float64 `koanf:"author_weight"`
	SeriesWeight   float64 `koanf:"series_weight"`
	ActivityWeight float64 `koanf:"activity_weight"`
	YearWeight     float64 `koanf:"year_weight"`

	SeriesBothAbsent        float64 `koanf:"series_both_absent"`
	SeriesOneAbsent         float64 `koanf:"series_one_absent"`
	SeriesMinNameSimilarity float64 `koanf:"series_min_name_similarity"`
	SeriesNameFactor        float64 `koanf:"series_name_factor"`
	SeriesSequenceBonus     float64 `koanf:"series_sequence_bonus"`

	ActivityFloor float64 `koanf:"activity_floor"`
	ActivityScale float64 `koanf:"activity_scale"`

	YearBothAbsent float64 `koanf:"year_both_absent"`
	YearOneAbsent  float64 `koanf:"year_one_absent"`

	PerfectMatchThreshold float64 `koanf:"perfect_match_threshold"`
	PerfectMatchBonus     float64 `koanf:"perfect_match_bonus"`
	StrongMatchThreshold  float64 `koanf:"strong_match_threshold"`
	StrongMatchBonus      float64 `koanf:"strong_match_bonus"`

	ShortTitleLength float64 `koanf:"short_title_length"`
	ShortTitleSlope  float64 `koanf:"short_title_slope"`

	MismatchTitleAbove  float64 `koanf:"mismatch_title_above"`
	MismatchAuthorBelow float64 `koanf:"mismatch_author_below"`
	MismatchSlope       float64 `koanf:"mismatch_slope"`

	HighConfidence   float64 `koanf:"high_confidence"`
	MediumConfidence float64 `koanf:"medium_confidence"`
	LowConfidence    float64 `koanf:"low_confidence"`
}

// DefaultIdentityTuning returns the calibrated defaults.
func DefaultIdentityTuning() IdentityTuning {
	return IdentityTuning{
		TitleWeight:    0.35,
		AuthorWeight:   0.25,
		SeriesWeight:   0.15,
		ActivityWeight: 0.10,
		YearWeight:     0.05,

		SeriesBothAbsent:        60,
		SeriesOneAbsent:         45,
		SeriesMinNameSimilarity: 70,
		SeriesNameFactor:        0.85,
		SeriesSequenceBonus:     15,

		ActivityFloor: 30,
		ActivityScale: 100.0 / 3,

		YearBothAbsent: 60,
		YearOneAbsent:  45,

		PerfectMatchThreshold: 90,
		PerfectMatchBonus:     0.10,
		StrongMatchThreshold:  80,
		StrongMatchBonus:      0.05,

		ShortTitleLength: 10,
		ShortTitleSlope:  2,

		MismatchTitleAbove:  80,
		MismatchAuthorBelow: 30,
		MismatchSlope:       0.15,

		HighConfidence:   75,
		MediumConfidence: 60,
		LowConfidence:    45,
	}
}

// EditionTuning holds the constants of edition ranking.
type EditionTuning struct {
	FormatWeight       float64 `koanf:"format_weight"`
	PopularityWeight   float64 `koanf:"popularity_weight"`
	DurationWeight     float64 `koanf:"duration_weight"`
	CompletenessWeight float64 `koanf:"completeness_weight"`

	FormatExact        float64 `koanf:"format_exact"`
	FormatCrossDigital float64 `koanf:"format_cross_digital"`
	FormatPhysical     float64 `koanf:"format_physical"`
	FormatOther        float64 `koanf:"format_other"`
	FormatMissing      float64 `koanf:"format_missing"`

	PopularityFloor float64 `koanf:"popularity_floor"`
	PopularityScale float64 `koanf:"popularity_scale"`

	DurationMissing float64 `koanf:"duration_missing"`
	DurationNeutral float64 `koanf:"duration_neutral"`

	CompletenessFloor float64 `koanf:"completeness_floor"`

	ExactFormatBonus       float64 `koanf:"exact_format_bonus"`
	PopularityBonusHolders float64 `koanf:"popularity_bonus_holders"`
	PopularityBonusCap     float64 `koanf:"popularity_bonus_cap"`

	Alternatives int `koanf:"alternatives"`
}

// DefaultEditionTuning returns the calibrated defaults.
func DefaultEditionTuning() EditionTuning {
	return EditionTuning{
		FormatWeight:       0.40,
		PopularityWeight:   0.25,
		DurationWeight:     0.20,
		CompletenessWeight: 0.15,

		FormatExact:        100,
		FormatCrossDigital: 62.5,
		FormatPhysical:     37.5,
		FormatOther:        12.5,
		FormatMissing:      20,

		PopularityFloor: 20,
		PopularityScale: 25,

		DurationMissing: 30,
		DurationNeutral: 60,

		CompletenessFloor: 40,

		ExactFormatBonus:       3,
		PopularityBonusHolders: 1000,
		PopularityBonusCap:     2,

		Alternatives: 2,
	}
}
