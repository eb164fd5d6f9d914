package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Fetcher loads a document body. finalURL is the URL after redirects.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (body string, finalURL string, err error)
}

// Static is a Page over server-rendered HTML parsed with goquery. It has no
// script engine: scrolling is a no-op, clicking a link navigates to its href
// and clicking any other control removes the dialog or banner enclosing it,
// which is how consent overlays behave once dismissed.
type Static struct {
	fetcher Fetcher

	mu      sync.Mutex
	doc     *goquery.Document
	loc     string
	history []staticEntry
	clicks  []string
}

type staticEntry struct {
	loc string
	doc *goquery.Document
}

// NewStatic creates an empty static page backed by fetcher.
func NewStatic(fetcher Fetcher) *Static {
	return &Static{fetcher: fetcher}
}

func (s *Static) Navigate(ctx context.Context, rawURL string) error {
	s.mu.Lock()
	target, err := resolve(s.loc, rawURL)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	body, finalURL, err := s.fetcher.Fetch(ctx, target)
	if err != nil {
		return fmt.Errorf("static: fetch %s: %w", target, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("static: parse %s: %w", target, err)
	}
	if finalURL == "" {
		finalURL = target
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc != nil {
		s.history = append(s.history, staticEntry{loc: s.loc, doc: s.doc})
	}
	s.doc, s.loc = doc, finalURL
	return nil
}

func (s *Static) Back(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) == 0 {
		return fmt.Errorf("static: no history")
	}
	prev := s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]
	s.doc, s.loc = prev.doc, prev.loc
	return nil
}

func (s *Static) Location(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc, nil
}

func (s *Static) HTML(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return "", fmt.Errorf("static: no document loaded")
	}
	return s.doc.Html()
}

// WaitVisible does not wait: a static document never changes on its own.
func (s *Static) WaitVisible(ctx context.Context, selector string, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible(selector).Length() > 0
}

func (s *Static) Query(ctx context.Context, selector string) ([]Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil, fmt.Errorf("static: no document loaded")
	}
	var out []Element
	s.doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		out = append(out, snapshot(sel))
	})
	return out, nil
}

func (s *Static) Click(ctx context.Context, selector string, index int, timeout time.Duration) error {
	s.mu.Lock()
	if s.doc == nil {
		s.mu.Unlock()
		return fmt.Errorf("static: no document loaded")
	}
	matches := s.doc.Find(selector)
	if index < 0 || index >= matches.Length() || !isVisible(matches.Eq(index)) {
		s.mu.Unlock()
		return fmt.Errorf("static: click %s[%d]: %w", selector, index, ErrNotFound)
	}
	target := matches.Eq(index)
	s.clicks = append(s.clicks, selector)
	href, isLink := target.Attr("href")
	if !isLink || goquery.NodeName(target) != "a" {
		overlay := target.Closest(`[role="dialog"], [aria-modal="true"], [id*="consent"], [class*="consent"], [id*="cookie"], [class*="cookie"]`)
		if overlay.Length() > 0 {
			overlay.Remove()
		}
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	return s.Navigate(ctx, href)
}

func (s *Static) Scroll(ctx context.Context, selector string) error {
	return ctx.Err()
}

func (s *Static) Close() error {
	return nil
}

// Clicks lists the selectors clicked so far, oldest first.
func (s *Static) Clicks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.clicks...)
}

// visible filters out elements hidden by attribute or inline style,
// including those inside a hidden ancestor.
func (s *Static) visible(selector string) *goquery.Selection {
	if s.doc == nil {
		return &goquery.Selection{}
	}
	return s.doc.Find(selector).FilterFunction(func(_ int, sel *goquery.Selection) bool {
		return isVisible(sel)
	})
}

func isVisible(sel *goquery.Selection) bool {
	return !hidden(sel) && sel.Parents().FilterFunction(func(_ int, p *goquery.Selection) bool {
		return hidden(p)
	}).Length() == 0
}

func hidden(sel *goquery.Selection) bool {
	if _, ok := sel.Attr("hidden"); ok {
		return true
	}
	style, _ := sel.Attr("style")
	style = strings.ReplaceAll(strings.ToLower(style), " ", "")
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}

func snapshot(sel *goquery.Selection) Element {
	el := Element{
		Tag:     goquery.NodeName(sel),
		Text:    strings.Join(strings.Fields(sel.Text()), " "),
		Attrs:   map[string]string{},
		Visible: isVisible(sel),
	}
	if html, err := goquery.OuterHtml(sel); err == nil {
		el.HTML = html
	}
	if len(sel.Nodes) > 0 {
		for _, a := range sel.Nodes[0].Attr {
			el.Attrs[a.Key] = a.Val
		}
	}
	return el
}

func resolve(base, rawURL string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("static: bad url %q: %w", rawURL, err)
	}
	if ref.IsAbs() || base == "" {
		return ref.String(), nil
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref.String(), nil
	}
	return b.ResolveReference(ref).String(), nil
}

// MapFetcher serves fixed documents keyed by URL. Keys may be absolute URLs
// or paths; a request falls back to its path (with query) when the full URL
// is not present.
type MapFetcher map[string]string

func (m MapFetcher) Fetch(ctx context.Context, rawURL string) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	if body, ok := m[rawURL]; ok {
		return body, rawURL, nil
	}
	if u, err := url.Parse(rawURL); err == nil {
		if body, ok := m[u.RequestURI()]; ok {
			return body, rawURL, nil
		}
		if body, ok := m[u.Path]; ok {
			return body, rawURL, nil
		}
	}
	return "", "", fmt.Errorf("no document for %s", rawURL)
}
