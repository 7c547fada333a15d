// Package textsplit cuts extracted document text into pieces small enough for one
// speech synthesis call.
package textsplit

import (
	"strings"
	"unicode"

	"github.com/Nephrolytics-ai/docvoice/pkg/model"
)

// backoffFraction is how far into a window a whitespace must sit before the
// window is shortened to it. Closer breaks would leave degenerate tiny chunks.
const backoffFraction = 0.6

// Segment splits text into chunks of at most maxChars characters, breaking at
// whitespace where possible. Pieces are trimmed and blank pieces dropped; the
// result is empty only for blank input. maxChars <= 0 uses the default bound.
func Segment(text string, maxChars int) []model.TextChunk {
	if maxChars <= 0 {
		maxChars = model.DefaultChunkMaxChars
	}

	runes := []rune(text)
	threshold := int(float64(maxChars) * backoffFraction)

	var chunks []model.TextChunk
	for start := 0; start < len(runes); {
		end := min(start+maxChars, len(runes))
		if end < len(runes) {
			if cut := lastSpace(runes[start:end]); cut > threshold {
				end = start + cut
			}
		}

		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			chunks = append(chunks, model.TextChunk{Index: len(chunks), Text: piece})
		}
		start = end
	}
	return chunks
}

func lastSpace(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if unicode.IsSpace(window[i]) {
			return i
		}
	}
	return -1
}

// Normalize collapses every whitespace run, newlines included, into a single space.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Preview returns at most maxChars characters of text.
func Preview(text string, maxChars int) string {
	if maxChars <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return string(runes[:maxChars])
}

// Join rebuilds text from chunks in index order.
func Join(chunks []model.TextChunk) string {
	parts := make([]string, len(chunks))
	for i, chunk := range chunks {
		parts[i] = chunk.Text
	}
	return strings.Join(parts, " ")
}
