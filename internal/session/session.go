// Package session provides the browser-automation session used by the
// save and result-extraction actions. A session navigates to a URL and
// hands back the rendered page; two drivers exist, one backed by Chrome
// over the DevTools protocol and one by a plain fingerprinted HTTP
// fetch. The run creates at most one session, lazily, and reuses it for
// every query that needs one.
package session

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Link is one hyperlink extracted from a rendered page.
type Link struct {
	URL  string // absolute
	Text string // visible text, whitespace-collapsed
}

// Page is the rendered document returned by a navigation. URL is the
// final location after redirects, used as the base for resolving
// relative hrefs.
type Page struct {
	URL  string
	HTML string
}

// Links extracts every http(s) hyperlink on the page in document order.
func (p *Page) Links() ([]Link, error) {
	base, err := url.Parse(p.URL)
	if err != nil {
		return nil, fmt.Errorf("parse page URL: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse page HTML: %w", err)
	}

	var links []Link
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		u, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(u)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		links = append(links, Link{
			URL:  resolved.String(),
			Text: strings.Join(strings.Fields(s.Text()), " "),
		})
	})

	return links, nil
}

// Session is a live connection to a page-retrieval driver.
type Session interface {
	Navigate(ctx context.Context, url string) (*Page, error)
	Close() error
}

// Factory creates a session on first use. The dispatcher calls it at
// most once per run.
type Factory func(ctx context.Context) (Session, error)
