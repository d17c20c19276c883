package scoring

import (
	"strings"

	"github.com/okian/bookmatch/internal/domain/model"
)

// Keywords are matched against lower-cased format descriptors.
var (
	audioKeywords    = []string{"audio", "listen", "audible", "mp3", "m4b"}                                                     //nolint:gochecknoglobals // keyword table
	ebookKeywords    = []string{"ebook", "e-book", "kindle", "epub", "digital", "pdf"}                                          //nolint:gochecknoglobals // keyword table
	physicalKeywords = []string{"hardcover", "hardback", "paperback", "mass market", "physical", "print", "board book", "read"} //nolint:gochecknoglobals // keyword table
)

// EditionFormat derives the coarse format of e from its reading, edition
// and physical format descriptors, falling back to audio length.
func EditionFormat(e model.Edition) model.Format {
	sawDescriptor := false
	for _, raw := range []string{e.ReadingFormat, e.Format, e.PhysicalFormat} {
		desc := strings.ToLower(strings.TrimSpace(raw))
		if desc == "" {
			continue
		}
		sawDescriptor = true
		if f := classify(desc); f != model.FormatUnknown {
			return f
		}
	}
	if e.AudioSeconds > 0 {
		return model.FormatAudiobook
	}
	if sawDescriptor {
		return model.FormatOther
	}
	return model.FormatUnknown
}

func classify(desc string) model.Format {
	switch {
	case containsAny(desc, audioKeywords):
		return model.FormatAudiobook
	case containsAny(desc, ebookKeywords):
		return model.FormatEbook
	case containsAny(desc, physicalKeywords):
		return model.FormatPhysical
	default:
		return model.FormatUnknown
	}
}

// DetectFormat infers the user's format for a source book: an explicit
// media type first, then audio duration or page count. Audio is the
// default because the source library is audio-first.
func DetectFormat(b *model.SourceBook) model.Format {
	if b == nil {
		return model.FormatAudiobook
	}
	if hint := strings.ToLower(strings.TrimSpace(b.MediaType)); hint != "" {
		switch {
		case containsAny(hint, []string{"podcast"}):
			return model.FormatAudiobook
		default:
			if f := classify(hint); f != model.FormatUnknown {
				return f
			}
		}
	}
	meta := b.Meta()
	switch {
	case meta.DurationSeconds > 0:
		return model.FormatAudiobook
	case meta.PageCount > 0:
		return model.FormatEbook
	default:
		return model.FormatAudiobook
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
