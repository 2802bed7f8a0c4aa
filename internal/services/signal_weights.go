package services

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/inkmuse/atelier/pkg/models"
)

// signalWeights is the static signal→weight table. Callers may override the
// weight at submission time; unknown signals are rejected.
var signalWeights = map[models.FeedbackSignal]float64{
	models.SignalExported:    2.0,
	models.SignalFavorited:   1.5,
	models.SignalKept:        1.0,
	models.SignalEdited:      0.5,
	models.SignalRegenerated: -0.5,
	models.SignalReported:    -3.0,
}

// SignalWeight returns the default numeric weight for a feedback signal.
func SignalWeight(signal models.FeedbackSignal) (float64, error) {
	weight, ok := signalWeights[signal]
	if !ok {
		return 0, ErrUnknownSignal
	}
	return weight, nil
}

// ResolveWeight applies the table value unless the caller supplied an
// explicit override. The signal is validated either way.
func ResolveWeight(signal models.FeedbackSignal, override *float64) (float64, error) {
	weight, err := SignalWeight(signal)
	if err != nil {
		return 0, err
	}
	if override != nil {
		return *override, nil
	}
	return weight, nil
}

var tagFolder = cases.Fold()

// NormalizeTag casefolds and NFC-normalizes a tag so that "Blue", "blue" and
// decomposed variants aggregate into one preference entry.
func NormalizeTag(tag string) string {
	return tagFolder.String(norm.NFC.String(strings.TrimSpace(tag)))
}

// NormalizeTags maps NormalizeTag over a slice, dropping empties and
// duplicates while preserving first-seen order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		normalized := NormalizeTag(tag)
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		out = append(out, normalized)
	}
	return out
}
