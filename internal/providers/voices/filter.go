package voices

import (
	"encoding/json"
	"strings"

	"kiosk/internal/domain"
)

// DefaultTags mark voices cleared for the event kiosk.
var DefaultTags = []string{"ki event", "ki-event"}

// RawVoice is a provider voice together with its full JSON document, which
// the tag filter searches.
type RawVoice struct {
	Voice domain.Voice
	Raw   json.RawMessage
}

// FilterByTags keeps the voices whose lowercased JSON contains any tag. When
// nothing matches it returns every voice and reports fellBack. Order is kept.
func FilterByTags(all []RawVoice, tags []string) (matched []domain.Voice, fellBack bool) {
	needles := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag = strings.ToLower(strings.TrimSpace(tag)); tag != "" {
			needles = append(needles, tag)
		}
	}
	for _, v := range all {
		hay := strings.ToLower(string(v.Raw))
		for _, n := range needles {
			if strings.Contains(hay, n) {
				matched = append(matched, v.Voice)
				break
			}
		}
	}
	if len(matched) > 0 {
		return matched, false
	}
	out := make([]domain.Voice, 0, len(all))
	for _, v := range all {
		out = append(out, v.Voice)
	}
	return out, true
}
