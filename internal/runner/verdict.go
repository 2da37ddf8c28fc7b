package runner

import (
	"strings"

	"github.com/thruflo/sightline/internal/conversation"
	"github.com/thruflo/sightline/internal/results"
)

// NoResponse is the verdict used when a turn produced no assistant message.
const NoResponse = "No response from assistant"

// ExtractVerdict returns the text of the first assistant message in output,
// or NoResponse.
func ExtractVerdict(output []conversation.Item) string {
	for _, it := range output {
		if it.IsAssistantMessage() {
			return it.Text()
		}
	}
	return NoResponse
}

// Classify maps a verdict to a step status. PASS is checked before FAIL.
func Classify(verdict string) results.Status {
	upper := strings.ToUpper(verdict)
	switch {
	case strings.Contains(upper, "PASS"):
		return results.StatusPass
	case strings.Contains(upper, "FAIL"):
		return results.StatusFail
	default:
		return results.StatusUnknown
	}
}
