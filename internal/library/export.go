package library

import (
	"fmt"
	"strings"
)

// FormatTranscript renders one "start - end: word" line per word.
func FormatTranscript(words []WordTimestamp) string {
	var b strings.Builder
	for _, w := range words {
		fmt.Fprintf(&b, "%.2fs - %.2fs: %s\n", w.StartTime, w.EndTime, w.Word)
	}
	return b.String()
}

// PartTitle is the title given to one part of a separately saved job.
func PartTitle(voice string, part int) string {
	return fmt.Sprintf("%s - Part %d", voice, part)
}

// MergedTitle is the title of a merged clip: voice plus the opening words.
func MergedTitle(voice, text string) string {
	words := strings.Fields(text)
	if len(words) > 6 {
		words = append(words[:6], "...")
	}
	if len(words) == 0 {
		return voice
	}
	return voice + " - " + strings.Join(words, " ")
}
