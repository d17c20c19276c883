// Package similarity provides the string and numeric closeness measures
// used by the scorers. Every function is symmetric and total: results are
// always finite and inside their documented range.
package similarity

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/hbollon/go-edlib"

	"github.com/okian/bookmatch/internal/domain/normalize"
)

// Blend weights.
const (
	editWeight      = 0.4
	alignmentWeight = 0.6
	tokenWeight     = 0.6
	minTokenLength  = 3
)

// Similarity returns a [0,1] score for two already normalized strings.
// Identical strings score 1; an empty string against a non-empty one scores 0.
func Similarity(a, b string, kind normalize.Kind) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	switch kind {
	case normalize.KindTitle:
		return Title(a, b)
	case normalize.KindAuthor, normalize.KindNarrator:
		return Author(a, b)
	default:
		return Generic(a, b)
	}
}

// Title blends edit distance with prefix-weighted alignment.
func Title(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	return clamp01(editWeight*Levenshtein(a, b) + alignmentWeight*JaroWinkler(a, b))
}

// Author scores like Title but also compares word-reversed forms, keeping the best.
func Author(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	best := Title(a, b)
	if s := Title(reverseWords(a), b); s > best {
		best = s
	}
	if s := Title(a, reverseWords(b)); s > best {
		best = s
	}
	return best
}

// Generic is the lenient blend used for series names: edit distance and
// Jaccard overlap of tokens longer than two characters.
func Generic(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	return clamp01(editWeight*Levenshtein(a, b) + tokenWeight*TokenJaccard(a, b))
}

// Levenshtein returns 1 - distance/maxLen over runes.
func Levenshtein(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	d := levenshtein.ComputeDistance(a, b)
	return clamp01(1 - float64(d)/float64(longest))
}

// JaroWinkler returns the Jaro-Winkler similarity. Arguments are ordered
// before the call so the result does not depend on argument order.
func JaroWinkler(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	if a > b {
		a, b = b, a
	}
	return clamp01(float64(edlib.JaroWinklerSimilarity(a, b)))
}

// TokenJaccard returns the Jaccard index of the distinct whitespace tokens
// longer than two characters. No qualifying tokens on either side yields 0.
func TokenJaccard(a, b string) float64 {
	ta, tb := tokens(a), tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	// edlib counts list lengths, so the token lists must be duplicate free.
	return clamp01(float64(edlib.JaccardSimilarity(strings.Join(ta, " "), strings.Join(tb, " "), 0)))
}

func tokens(s string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range strings.Fields(s) {
		if utf8.RuneCountInString(t) < minTokenLength {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func reverseWords(s string) string {
	words := strings.Fields(s)
	for i, j := 0, len(words)-1; i < j; i, j = i+1, j-1 {
		words[i], words[j] = words[j], words[i]
	}
	return strings.Join(words, " ")
}

// Duration step thresholds, as percentage difference -> score.
var durationSteps = []struct { //nolint:gochecknoglobals // fixed step table
	maxPct float64
	score  float64
}{
	{3, 100},
	{5, 95},
	{10, 85},
	{20, 70},
	{30, 50},
}

const (
	durationNeutral = 50
	durationFloor   = 20
)

// Duration compares two durations in seconds and returns [0,100]. A
// missing or unusable value on either side yields a neutral 50. The
// percentage difference is taken against the longer duration.
func Duration(secondsA, secondsB float64) float64 {
	if !usable(secondsA) || !usable(secondsB) {
		return durationNeutral
	}
	longer := math.Max(secondsA, secondsB)
	pct := math.Abs(secondsA-secondsB) * 100 / longer
	for _, step := range durationSteps {
		if pct <= step.maxPct {
			return step.score
		}
	}
	return durationFloor
}

func usable(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
