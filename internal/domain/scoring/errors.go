package scoring

import (
	"errors"
	"fmt"
	"strings"

	"github.com/okian/bookmatch/internal/domain/model"
)

// ErrMalformedCandidate is returned for candidates that cannot be scored.
var ErrMalformedCandidate = errors.New("malformed candidate")

// Validate reports whether candidate carries enough data to be scored.
func Validate(candidate *model.Candidate) error {
	switch {
	case candidate == nil:
		return fmt.Errorf("%w: nil", ErrMalformedCandidate)
	case strings.TrimSpace(candidate.ID) == "":
		return fmt.Errorf("%w: missing id", ErrMalformedCandidate)
	case strings.TrimSpace(candidate.Title) == "":
		return fmt.Errorf("%w: %s has no title", ErrMalformedCandidate, candidate.ID)
	}
	return nil
}
