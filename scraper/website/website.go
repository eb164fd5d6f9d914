// Package website extracts rooms and games from a venue's own website.
//
// Extraction is heuristic. The homepage is scanned for a link to the rooms
// page, which is then parsed with a card strategy: an ordered list of card
// container selectors, the first one that matches anything wins. Only when
// the cards yield nothing does the heading fallback run, turning each
// plausible h1..h4 into a room with default attributes.
package website

import (
	"context"
	"fmt"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"venue-crawler/browser"
	"venue-crawler/models"
	"venue-crawler/scraper"
	"venue-crawler/services"
	"venue-crawler/utils"
)

// RoomLinkKeywords identify the link to the rooms page by its anchor text or
// URL path. Hosts are never matched: venue domains often contain "escape".
var RoomLinkKeywords = []string{
	"room", "game", "experiences", "missions", "book",
}

// CardSelectors are tried in order; the first that matches at least one
// element is the only one used.
var CardSelectors = []string{
	".room-card",
	".escape-room",
	".game-card",
	".experience-card",
	`[class*="room-item"]`,
	".room",
	".product-card",
	"article",
}

// Parts of a card.
var (
	CardName        = "h1, h2, h3, h4, h5, .title, .room-title, .name, strong"
	CardDescription = "p, .description, .excerpt, .summary"
	CardTheme       = `.theme, .genre, [class*="theme"], [class*="genre"]`
)

const headingSelector = "h1, h2, h3, h4"

// Extractor visits a venue website on a single page.
type Extractor struct {
	page     browser.Page
	logger   *utils.Logger
	reporter scraper.Reporter
	retry    utils.RetryConfig
}

// NewExtractor creates an Extractor. reporter may be nil.
func NewExtractor(page browser.Page, logger *utils.Logger, reporter scraper.Reporter, maxRetries int) *Extractor {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	if reporter == nil {
		reporter = scraper.LogReporter{Logger: logger}
	}
	return &Extractor{
		page:     page,
		logger:   logger,
		reporter: reporter,
		retry:    utils.RetryConfig{MaxAttempts: maxRetries, BaseDelay: time.Second, Logger: logger},
	}
}

// Extract returns the rooms found on siteURL. Any failure yields an empty
// list; the cause is logged.
func (e *Extractor) Extract(ctx context.Context, siteURL string) (rooms []*models.CrawledRoomData) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("[website] %s aborted: %v\n%s", siteURL, r, debug.Stack())
			rooms = nil
		}
		e.reporter.Report(scraper.Event{Kind: scraper.RoomsExtracted, URL: siteURL, Count: len(rooms)})
	}()

	rooms, err := e.extract(ctx, siteURL)
	if err != nil {
		e.logger.Warn("[website] %s: %v", siteURL, err)
		return nil
	}
	e.logger.Info("[website] %s: %d rooms", siteURL, len(rooms))
	return rooms
}

func (e *Extractor) extract(ctx context.Context, siteURL string) ([]*models.CrawledRoomData, error) {
	siteURL = strings.TrimSpace(siteURL)
	if siteURL != "" && !strings.Contains(siteURL, "://") {
		siteURL = "https://" + siteURL
	}
	home, ok := services.AbsoluteURL("", siteURL)
	if !ok {
		return nil, fmt.Errorf("not an http(s) url: %q", siteURL)
	}
	if err := e.navigate(ctx, home); err != nil {
		return nil, err
	}

	if link := e.roomsLink(ctx, home); link != "" {
		if err := e.navigate(ctx, link); err != nil {
			e.logger.Debug("[website] rooms page %s failed, staying on homepage: %v", link, err)
			if err := e.navigate(ctx, home); err != nil {
				return nil, err
			}
		} else {
			e.reporter.Report(scraper.Event{Kind: scraper.RoomsPageSelected, URL: link})
		}
	}

	html, err := e.page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	base, err := e.page.Location(ctx)
	if err != nil || base == "" {
		base = home
	}

	rooms := Cards(doc, base)
	if len(rooms) == 0 {
		rooms = Headings(doc, base)
	}
	return dedupe(rooms), nil
}

func (e *Extractor) navigate(ctx context.Context, target string) error {
	return e.retry.Do(ctx, "navigate "+target, func(ctx context.Context) error {
		return e.page.Navigate(ctx, target)
	})
}

// roomsLink returns the first internal link whose text or path mentions a
// rooms keyword, or "" when there is none.
func (e *Extractor) roomsLink(ctx context.Context, home string) string {
	anchors, err := e.page.Query(ctx, "a[href]")
	if err != nil {
		return ""
	}
	homeURL, _ := url.Parse(home)
	for _, a := range anchors {
		abs, ok := services.AbsoluteURL(home, a.Attr("href"))
		if !ok {
			continue
		}
		u, err := url.Parse(abs)
		if err != nil || !sameSite(homeURL, u) {
			continue
		}
		if !containsAny(strings.ToLower(a.Text+" "+u.Path), RoomLinkKeywords) {
			continue
		}
		u.Fragment = ""
		if strings.TrimRight(u.String(), "/") == strings.TrimRight(home, "/") {
			continue
		}
		return u.String()
	}
	return ""
}

func sameSite(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	strip := func(h string) string { return strings.TrimPrefix(strings.ToLower(h), "www.") }
	return strip(a.Hostname()) == strip(b.Hostname())
}

// Cards runs the card strategy over doc. Relative image sources resolve
// against base.
func Cards(doc *goquery.Document, base string) []*models.CrawledRoomData {
	for _, sel := range CardSelectors {
		cards := doc.Find(sel)
		if cards.Length() == 0 {
			continue
		}
		var rooms []*models.CrawledRoomData
		cards.Each(func(_ int, card *goquery.Selection) {
			if room := parseCard(card, base); room != nil {
				rooms = append(rooms, room)
			}
		})
		return rooms
	}
	return nil
}

func parseCard(card *goquery.Selection, base string) *models.CrawledRoomData {
	name := services.NormaliseText(card.Find(CardName).First().Text())
	if !services.IsPlausibleRoomName(name) {
		return nil
	}
	text := services.NormaliseText(card.Text())
	room := &models.CrawledRoomData{
		Name:        name,
		Description: services.NormaliseText(card.Find(CardDescription).First().Text()),
		ImageURL:    imageURL(card.Find("img").First(), base),
		Difficulty:  services.InferDifficulty(text),
	}

	room.Theme = services.NormaliseText(card.Find(CardTheme).First().Text())
	if room.Theme == "" {
		room.Theme = services.InferTheme(name + " " + room.Description)
	}
	if lo, hi, ok := services.ParsePlayers(text); ok {
		room.MinPlayers, room.MaxPlayers = lo, hi
	}
	if d, ok := services.ParseDuration(text); ok {
		room.DurationMinutes = d
	}
	if p, ok := services.ParsePrice(text); ok {
		room.Price = &p
	}
	room.Normalise()
	return room
}

// Headings turns every plausible h1..h4 into a room with default attributes,
// described by the first paragraph and image between it and the next heading.
func Headings(doc *goquery.Document, base string) []*models.CrawledRoomData {
	var rooms []*models.CrawledRoomData
	doc.Find(headingSelector).Each(func(_ int, h *goquery.Selection) {
		name := services.NormaliseText(h.Text())
		if !services.IsPlausibleRoomName(name) {
			return
		}
		section := h.NextUntil(headingSelector)
		desc := section.Filter("p").First()
		if desc.Length() == 0 {
			desc = section.Find("p").First()
		}
		img := section.Filter("img").First()
		if img.Length() == 0 {
			img = section.Find("img").First()
		}

		room := &models.CrawledRoomData{
			Name:        name,
			Description: services.NormaliseText(desc.Text()),
			ImageURL:    imageURL(img, base),
		}
		room.Theme = services.InferTheme(name + " " + room.Description)
		room.Normalise()
		rooms = append(rooms, room)
	})
	return rooms
}

func imageURL(img *goquery.Selection, base string) string {
	for _, attr := range []string{"src", "data-src", "data-lazy-src"} {
		if src, ok := img.Attr(attr); ok {
			if abs, ok := services.AbsoluteURL(base, src); ok {
				return abs
			}
		}
	}
	return ""
}

// dedupe keeps the first room of each case-insensitive name.
func dedupe(rooms []*models.CrawledRoomData) []*models.CrawledRoomData {
	seen := make(map[string]struct{}, len(rooms))
	out := rooms[:0]
	for _, r := range rooms {
		key := strings.ToLower(r.Name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
