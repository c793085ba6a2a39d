package extract

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	readability "github.com/go-shiori/go-readability"
)

const defaultFetchTimeout = 30 * time.Second

// URLExtractor fetches a web page and reduces it to readable article text.
type URLExtractor struct {
	timeout time.Duration
}

var _ Extractor = (*URLExtractor)(nil)

// URLOption configures a URLExtractor.
type URLOption func(*URLExtractor)

// WithFetchTimeout sets the page fetch timeout. Default is 30s.
func WithFetchTimeout(d time.Duration) URLOption {
	return func(e *URLExtractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewURLExtractor creates a URL extractor. opts may be nil.
func NewURLExtractor(opts []URLOption) *URLExtractor {
	e := &URLExtractor{timeout: defaultFetchTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract fetches the locator URL (or parses pre-fetched bytes when Data
// is set) and returns the readable text and page title.
func (e *URLExtractor) Extract(ctx context.Context, src Source) (Extraction, error) {
	if src.Locator == "" {
		return Extraction{}, fmt.Errorf("url extraction: empty locator")
	}

	var (
		article readability.Article
		err     error
	)

	if len(src.Data) > 0 {
		var pageURL *url.URL
		pageURL, err = url.Parse(src.Locator)
		if err != nil {
			return Extraction{}, fmt.Errorf("url extraction: parse %q: %w", src.Locator, err)
		}
		article, err = readability.FromReader(bytes.NewReader(src.Data), pageURL)
	} else {
		article, err = readability.FromURL(src.Locator, e.timeout)
	}
	if err != nil {
		return Extraction{}, fmt.Errorf("url extraction: %q: %w", src.Locator, err)
	}

	if article.TextContent == "" {
		return Extraction{}, fmt.Errorf("%w: %q", ErrEmptyExtraction, src.Locator)
	}

	return Extraction{
		Text:  article.TextContent,
		Title: article.Title,
	}, nil
}
