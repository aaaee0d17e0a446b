package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ent0n29/voiceforge/internal/textchunk"
)

var ErrEmptyText = errors.New("text is empty")

// TooLongError is returned by Plan when long-text mode is off and the text
// is over the word limit.
type TooLongError struct {
	Words int
	Limit int
}

func (e *TooLongError) Error() string {
	return fmt.Sprintf("text has %d words, over the %d word limit; enable long-text mode to split it", e.Words, e.Limit)
}

// Plan decides how text is submitted. Long-text mode splits text over the
// limit into chunks; otherwise text over the limit is refused and anything
// else is sent as one chunk.
func Plan(text string, maxWords int, longTextMode bool) ([]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if maxWords < 1 {
		maxWords = textchunk.DefaultMaxWords
	}
	n := textchunk.CountWords(text)
	if n <= maxWords {
		return []string{text}, nil
	}
	if !longTextMode {
		return nil, &TooLongError{Words: n, Limit: maxWords}
	}
	return textchunk.Split(text, maxWords), nil
}
