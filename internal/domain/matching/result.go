package matching

import (
	"github.com/okian/bookmatch/internal/domain/identifiers"
	"github.com/okian/bookmatch/internal/domain/model"
	"github.com/okian/bookmatch/internal/domain/scoring"
)

// Tiers in priority order.
const (
	TierASIN        = 1
	TierISBN        = 2
	TierTitleAuthor = 3
)

// MatchType tells the caller what to do with a match.
type MatchType string

const (
	// MatchExact: the identifier points at an edition already in the library.
	MatchExact MatchType = "exact"
	// MatchExisting: a heuristic match whose edition is already in the library.
	MatchExisting MatchType = "existing"
	// MatchCrossEdition: the work is in the library under another edition.
	MatchCrossEdition MatchType = "cross_edition"
	// MatchNeedsCreate: the work is correct but absent from the library.
	MatchNeedsCreate MatchType = "needs_create"
)

// MatchResult is the terminal output of a tier that found something.
type MatchResult struct {
	Tier      int                       `json:"tier"`
	Strategy  string                    `json:"strategy"`
	Type      MatchType                 `json:"type"`
	BookID    string                    `json:"book_id,omitempty"`
	EditionID string                    `json:"edition_id,omitempty"`
	Candidate *model.Candidate          `json:"candidate,omitempty"`
	Existing  *model.LibraryEntry       `json:"existing,omitempty"`
	Identity  *scoring.IdentityResult   `json:"identity,omitempty"`
	Edition   *scoring.EditionSelection `json:"edition,omitempty"`
	FromCache bool                      `json:"from_cache,omitempty"`
	// ProgressChanged is set on cache hits when the source progress moved
	// since the mapping was stored.
	ProgressChanged bool `json:"progress_changed,omitempty"`
}

// AttemptResult is the outcome of one tier for one book.
type AttemptResult string

const (
	AttemptMatched AttemptResult = "matched"
	AttemptMiss    AttemptResult = "miss"
	AttemptError   AttemptResult = "error"
	AttemptSkipped AttemptResult = "skipped"
)

// Attempt traces one tier invocation.
type Attempt struct {
	Tier     int           `json:"tier"`
	Strategy string        `json:"strategy"`
	Result   AttemptResult `json:"result"`
	Error    string        `json:"error,omitempty"`
}

// Outcome is what the matcher returns for a book. Result is nil when no
// tier matched; Metadata still reports what was searched for.
type Outcome struct {
	BookID   string                `json:"book_id,omitempty"`
	Result   *MatchResult          `json:"result,omitempty"`
	Metadata identifiers.Extracted `json:"metadata"`
	Attempts []Attempt             `json:"attempts"`
}

// Matched reports whether any tier produced a result.
func (o Outcome) Matched() bool { return o.Result != nil }

// Request is the per-book input every strategy sees.
type Request struct {
	UserID   string
	Book     *model.SourceBook
	Metadata identifiers.Extracted
	Meta     model.SourceMeta
	Format   model.Format
}
