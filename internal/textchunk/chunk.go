// Package textchunk splits long scripts into provider-sized fragments.
package textchunk

import (
	"regexp"
	"strings"
)

// DefaultMaxWords is the per-request word budget both TTS backends accept safely.
const DefaultMaxWords = 500

var (
	paragraphBreak = regexp.MustCompile(`\n\n+|\n`)
	sentenceEnd    = regexp.MustCompile(`[.!?]\s+`)
)

// CountWords returns the number of whitespace-delimited words in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// SoftTarget returns the word count at which a chunk is flushed early when
// the last unit ends a sentence. It is 94% of maxWords (470 for 500).
func SoftTarget(maxWords int) int {
	if maxWords < 1 {
		maxWords = 1
	}
	t := maxWords * 94 / 100
	if t < 1 {
		t = 1
	}
	return t
}

// Split breaks text into an ordered list of fragments of at most maxWords
// words, respecting paragraph and sentence boundaries. A single sentence
// longer than maxWords cannot be split and is returned whole; Oversized
// reports those.
func Split(text string, maxWords int) []string {
	if maxWords < 1 {
		maxWords = 1
	}
	target := SoftTarget(maxWords)

	var (
		chunks  []string
		current []unit
		count   int
	)
	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, joinUnits(current))
		}
		current = nil
		count = 0
	}

	for p, para := range paragraphBreak.Split(strings.TrimSpace(text), -1) {
		para = strings.TrimSpace(para)
		paraWords := CountWords(para)
		if paraWords == 0 {
			continue
		}

		if count+paraWords > maxWords && len(current) > 0 {
			flush()
		}

		if paraWords <= maxWords {
			current = append(current, unit{text: para, para: p})
			count += paraWords
			if count >= target {
				flush()
			}
			continue
		}

		for _, sentence := range splitSentences(para) {
			n := CountWords(sentence)
			if count+n > maxWords && len(current) > 0 {
				flush()
			}
			current = append(current, unit{text: sentence, para: p})
			count += n
			if count >= target && endsSentence(sentence) {
				flush()
			}
		}
	}
	flush()

	out := chunks[:0]
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	return out
}

// unit is a paragraph or a sentence; para identifies the source paragraph so
// sentences of one paragraph rejoin with a space and paragraphs with a blank line.
type unit struct {
	text string
	para int
}

func joinUnits(units []unit) string {
	var b strings.Builder
	for i, u := range units {
		if i > 0 {
			if u.para == units[i-1].para {
				b.WriteByte(' ')
			} else {
				b.WriteString("\n\n")
			}
		}
		b.WriteString(u.text)
	}
	return b.String()
}

// Oversized returns the indexes of chunks whose word count exceeds maxWords.
func Oversized(chunks []string, maxWords int) []int {
	var idx []int
	for i, c := range chunks {
		if CountWords(c) > maxWords {
			idx = append(idx, i)
		}
	}
	return idx
}

func splitSentences(para string) []string {
	var out []string
	last := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(para, -1) {
		// Keep the terminal punctuation with its sentence; drop the whitespace.
		s := strings.TrimSpace(para[last : loc[0]+1])
		if s != "" {
			out = append(out, s)
		}
		last = loc[1]
	}
	if tail := strings.TrimSpace(para[last:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

func endsSentence(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	switch s[len(s)-1] {
	case '.', '!', '?':
		return true
	default:
		return false
	}
}
