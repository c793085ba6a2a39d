package extract

import (
	"context"
	"strings"
)

// extractText is the built-in extractor for plain text captures.
// The capture's bytes are the text; the first line doubles as a title
// when it is short enough to read as one.
func extractText(ctx context.Context, src Source) (Extraction, error) {
	text := strings.TrimSpace(string(src.Data))
	if text == "" {
		return Extraction{}, ErrEmptyExtraction
	}

	return Extraction{
		Text:  text,
		Title: titleFromText(text),
	}, nil
}

const maxInlineTitleLen = 80

// titleFromText derives a title from the first line of the text.
// Returns empty when the first line is too long to serve as a title.
func titleFromText(text string) string {
	line := text
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		line = text[:idx]
	}
	line = strings.TrimSpace(line)
	if len(line) == 0 || len(line) > maxInlineTitleLen {
		return ""
	}
	return line
}
