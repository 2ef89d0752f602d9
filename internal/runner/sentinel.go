package runner

import "strings"

// doneToken is the literal completion sentinel. Only the exact suffix is
// stripped — never surrounding whitespace — so formatting before the token
// is preserved exactly.
const doneToken = "[DONE]"

func hasSentinel(text string) bool {
	return strings.HasSuffix(text, doneToken)
}

func stripSentinel(text string) string {
	return strings.TrimSuffix(text, doneToken)
}
