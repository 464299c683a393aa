package agent

import "strings"

const fenceMarker = "```"

// StripFences removes a Markdown code fence the model may wrap around its
// JSON despite the prompt telling it not to. The text is whitespace-trimmed;
// if it both starts with an opening fence (bare or tagged "json") and ends
// with a closing fence, the markers and the whitespace just inside them are
// removed. Anything else passes through unchanged, so the function is
// idempotent.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if len(s) < 2*len(fenceMarker) {
		return s
	}
	if !strings.HasPrefix(s, fenceMarker) || !strings.HasSuffix(s, fenceMarker) {
		return s
	}
	s = strings.TrimSuffix(s, fenceMarker)
	s = strings.TrimPrefix(s, fenceMarker+"json")
	s = strings.TrimPrefix(s, fenceMarker)
	return strings.TrimSpace(s)
}
