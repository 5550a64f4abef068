package reference

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/tripforge/tripforge/pkg/itinerary"
)

const (
	// DefaultSelector picks article paragraphs.
	DefaultSelector = "article p"

	minExcerptLen = 40
	maxExcerptLen = 480
)

// PageSource scrapes excerpts from travel pages configured per destination slug.
type PageSource struct {
	pages    map[string][]string
	selector string
	max      int
	client   *http.Client
	logger   zerolog.Logger
}

// PageOption configures a PageSource.
type PageOption func(*PageSource)

// WithSelector sets the CSS selector of excerpt elements.
func WithSelector(sel string) PageOption {
	return func(p *PageSource) {
		if sel != "" {
			p.selector = sel
		}
	}
}

// WithMaxExcerpts caps the excerpts returned per destination.
func WithMaxExcerpts(n int) PageOption {
	return func(p *PageSource) {
		if n > 0 {
			p.max = n
		}
	}
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) PageOption {
	return func(p *PageSource) {
		p.client = c
	}
}

// NewPageSource creates an excerpt source. pages maps destination slugs to page URLs.
func NewPageSource(pages map[string][]string, logger zerolog.Logger, opts ...PageOption) *PageSource {
	p := &PageSource{
		pages:    pages,
		selector: DefaultSelector,
		max:      5,
		client:   &http.Client{Timeout: 15 * time.Second},
		logger:   logger.With().Str("component", "reference-pages").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FetchSocialExcerpts scrapes the destination's pages in order until max excerpts are found.
// Pages that fail are skipped; an error is returned only when every page failed.
func (p *PageSource) FetchSocialExcerpts(ctx context.Context, destination string) ([]itinerary.Excerpt, error) {
	urls := p.pages[Slug(destination)]
	if len(urls) == 0 {
		return nil, nil
	}

	var (
		out     []itinerary.Excerpt
		lastErr error
		failed  int
	)
	for _, u := range urls {
		if len(out) >= p.max {
			break
		}
		excerpts, err := p.scrape(ctx, u, p.max-len(out))
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			failed++
			lastErr = err
			p.logger.Warn().Err(err).Str("url", u).Msg("Failed to scrape excerpt page")
			continue
		}
		out = append(out, excerpts...)
	}

	if failed == len(urls) {
		return nil, fmt.Errorf("failed to scrape any page for %s: %w", destination, lastErr)
	}
	return out, nil
}

func (p *PageSource) scrape(ctx context.Context, pageURL string, limit int) ([]itinerary.Excerpt, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "tripforge")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch page: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	doc.Find("script, style, nav, footer, iframe, .ads, #ads").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	source := strings.TrimSpace(doc.Find("title").First().Text())
	if source == "" {
		if parsed, err := url.Parse(pageURL); err == nil {
			source = parsed.Host
		}
	}

	var out []itinerary.Excerpt
	doc.Find(p.selector).EachWithBreak(func(i int, s *goquery.Selection) bool {
		text := strings.Join(strings.Fields(s.Text()), " ")
		if utf8.RuneCountInString(text) < minExcerptLen {
			return true
		}
		out = append(out, itinerary.Excerpt{
			Source: source,
			Text:   truncate(text, maxExcerptLen),
			URL:    pageURL,
		})
		return len(out) < limit
	})
	return out, nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n])) + "…"
}
