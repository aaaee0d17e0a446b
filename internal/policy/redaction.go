package policy

import (
	"regexp"
	"strings"
)

var (
	emailPattern     = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern     = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern      = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
	googleKeyPattern = regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`)
	keyParamPattern  = regexp.MustCompile(`(?i)([?&]key=)[^&\s"]+`)
)

// RedactPII masks common high-risk PII patterns.
func RedactPII(input string) (redacted string, changed bool) {
	out := input

	next := emailPattern.ReplaceAllString(out, "[REDACTED_EMAIL]")
	changed = changed || next != out
	out = next

	// Run card redaction before phone to avoid card numbers being classified as phone.
	next = cardPattern.ReplaceAllString(out, "[REDACTED_CARD]")
	changed = changed || next != out
	out = next

	next = phonePattern.ReplaceAllString(out, "[REDACTED_PHONE]")
	changed = changed || next != out
	out = next

	return out, changed
}

// RedactSecrets masks the given secret values plus anything shaped like a
// Google API key or a key= query parameter.
func RedactSecrets(input string, secrets ...string) string {
	out := input
	for _, s := range secrets {
		if s = strings.TrimSpace(s); len(s) >= 4 {
			out = strings.ReplaceAll(out, s, "[REDACTED_KEY]")
		}
	}
	out = googleKeyPattern.ReplaceAllString(out, "[REDACTED_KEY]")
	out = keyParamPattern.ReplaceAllString(out, "${1}[REDACTED_KEY]")
	return out
}

// Preview shortens text for logs and masks PII in it.
func Preview(text string, maxRunes int) string {
	text = strings.Join(strings.Fields(text), " ")
	if r := []rune(text); maxRunes > 0 && len(r) > maxRunes {
		text = string(r[:maxRunes]) + "..."
	}
	out, _ := RedactPII(text)
	return out
}
