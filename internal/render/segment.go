package render

import (
	"strings"

	"github.com/clipperhouse/uax29/v2/sentences"
)

// Segmenter splits text into an ordered sequence of sentences.
type Segmenter interface {
	Split(text string) []string
}

// UAX29Segmenter uses the Unicode sentence boundary rules. Surrounding
// whitespace is trimmed and blank segments are dropped.
type UAX29Segmenter struct{}

func (UAX29Segmenter) Split(text string) []string {
	var out []string
	iter := sentences.FromString(text)
	for iter.Next() {
		if s := strings.TrimSpace(iter.Value()); s != "" {
			out = append(out, s)
		}
	}
	return out
}
