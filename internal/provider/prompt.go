package provider

// MaxPromptLength is the character budget for prompts sent upstream.
const MaxPromptLength = 1000

// TruncationMarker is appended to prompts cut at MaxPromptLength.
const TruncationMarker = "..."

// TruncatePrompt cuts s to limit characters plus TruncationMarker. It reports
// whether anything was removed.
func TruncatePrompt(s string, limit int) (string, bool) {
	runes := []rune(s)
	if len(runes) <= limit {
		return s, false
	}
	return string(runes[:limit]) + TruncationMarker, true
}
