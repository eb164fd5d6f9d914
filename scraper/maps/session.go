// Package maps discovers venues through a map search. A Session drives one
// page through every query variant for a location, opening each result in
// turn and extracting what the detail panel offers.
package maps

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	"venue-crawler/browser"
	"venue-crawler/models"
	"venue-crawler/scraper"
	"venue-crawler/scraper/consent"
	"venue-crawler/scraper/selector"
	"venue-crawler/services"
	"venue-crawler/utils"
)

var errFeedNotFound = errors.New("result feed not found")

// ImageStore saves a remote image and returns its local relative path.
type ImageStore interface {
	Save(ctx context.Context, imageURL, nameHint string) (string, error)
}

// Options tune a Session. Zero values fall back to the defaults below.
type Options struct {
	Subject        string
	BaseURL        string
	MaxResults     int // 0 means unbounded
	ScrollCycles   int
	ScrollWait     time.Duration
	FeedTimeout    time.Duration
	FieldTimeout   time.Duration
	DetailTimeout  time.Duration
	ConsentSettle  time.Duration // pause after dismissing an overlay; 0 skips it
	ExtractReviews bool
	MaxReviews     int
	MaxRetries     int
	RetryDelay     time.Duration
	Now            func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Subject == "" {
		o.Subject = "escape rooms"
	}
	if o.BaseURL == "" {
		o.BaseURL = "https://www.google.com/maps/search/"
	}
	if o.ScrollCycles < 0 {
		o.ScrollCycles = 0
	}
	if o.FeedTimeout <= 0 {
		o.FeedTimeout = 10 * time.Second
	}
	if o.FieldTimeout <= 0 {
		o.FieldTimeout = selector.DefaultTimeout
	}
	if o.DetailTimeout <= 0 {
		o.DetailTimeout = 5 * time.Second
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 1
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// QueryVariants phrases the search three ways; the ledger removes the overlap.
func QueryVariants(subject, location string) []string {
	subject = strings.TrimSpace(subject)
	location = strings.TrimSpace(location)
	return []string{
		fmt.Sprintf("%s in %s", subject, location),
		fmt.Sprintf("%s near %s", subject, location),
		fmt.Sprintf("%s %s", subject, location),
	}
}

// Session crawls one location on one page. It owns its Ledger, so a Session
// must not be shared between concurrent runs.
type Session struct {
	page     browser.Page
	images   ImageStore
	opts     Options
	logger   *utils.Logger
	reporter scraper.Reporter
	ledger   *Ledger
	consent  *consent.Handler
	resolver *selector.Resolver
	retry    utils.RetryConfig

	consentTried bool
}

// NewSession prepares a session. images and reporter may be nil.
func NewSession(page browser.Page, images ImageStore, opts Options, logger *utils.Logger, reporter scraper.Reporter) *Session {
	opts = opts.withDefaults()
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	if reporter == nil {
		reporter = scraper.LogReporter{Logger: logger}
	}
	handler := consent.NewHandler(page, logger)
	handler.Settle = opts.ConsentSettle
	return &Session{
		page:     page,
		images:   images,
		opts:     opts,
		logger:   logger,
		reporter: reporter,
		ledger:   NewLedger(),
		consent:  handler,
		resolver: &selector.Resolver{Page: page, Timeout: opts.FieldTimeout, Logger: logger},
		retry:    utils.RetryConfig{MaxAttempts: opts.MaxRetries, BaseDelay: opts.RetryDelay, Logger: logger},
	}
}

// Ledger exposes the place ids seen so far.
func (s *Session) Ledger() *Ledger { return s.ledger }

type candidate struct {
	href  string
	label string
}

// Run crawls every query variant for location and returns the accepted
// venues with a summary. It never returns an error: failures are counted,
// logged and skipped, and a panic marks the summary partial.
func (s *Session) Run(ctx context.Context, location string) (venues []*models.CrawledVenueData, sum models.RunSummary) {
	start := time.Now()
	sum.Location = location

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("[maps] run %q aborted: %v\n%s", location, r, debug.Stack())
			sum.Partial = true
		}
		sum.Duration = time.Since(start)
		s.reporter.Report(scraper.Event{Kind: scraper.RunFinished, Query: location, Count: sum.Accepted})
	}()

	for _, q := range QueryVariants(s.opts.Subject, location) {
		if ctx.Err() != nil {
			s.logger.Warn("[maps] run %q cancelled", location)
			sum.Partial = true
			break
		}
		if s.full(venues) {
			break
		}
		sum.Variants++
		s.reporter.Report(scraper.Event{Kind: scraper.VariantStarted, Query: q})

		if err := s.runVariant(ctx, q, &venues, &sum); err != nil {
			sum.VariantsAbandoned++
			s.logger.Warn("[maps] variant %q abandoned: %v", q, err)
			s.reporter.Report(scraper.Event{Kind: scraper.VariantAbandoned, Query: q, Err: err})
		}
	}

	s.logger.Info("[maps] %s: %d found, %d processed, %d accepted, %d duplicates skipped",
		location, sum.Found, sum.Processed, sum.Accepted, sum.SkippedDuplicate)
	return venues, sum
}

func (s *Session) full(venues []*models.CrawledVenueData) bool {
	return s.opts.MaxResults > 0 && len(venues) >= s.opts.MaxResults
}

func (s *Session) searchURL(q string) string {
	return s.opts.BaseURL + url.QueryEscape(q)
}

func (s *Session) runVariant(ctx context.Context, q string, venues *[]*models.CrawledVenueData, sum *models.RunSummary) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	searchURL := s.searchURL(q)
	feed, err := s.openSearch(ctx, searchURL)
	if err != nil {
		return err
	}

	for i := 0; i < s.opts.ScrollCycles; i++ {
		if err := s.page.Scroll(ctx, feed); err != nil {
			s.logger.Debug("[maps] scroll %d on %s: %v", i+1, feed, err)
		}
		if err := utils.Sleep(ctx, s.opts.ScrollWait); err != nil {
			return err
		}
	}

	candidates := s.enumerate(ctx)
	s.logger.Debug("[maps] %q: %d candidates", q, len(candidates))

	for _, c := range candidates {
		if ctx.Err() != nil {
			return nil
		}
		if s.full(*venues) {
			return nil
		}
		sum.Found++
		id := services.PlaceID(c.href)
		s.reporter.Report(scraper.Event{Kind: scraper.CandidateFound, Query: q, PlaceID: id, Name: c.label})

		if !s.ledger.Add(id) {
			sum.SkippedDuplicate++
			s.reporter.Report(scraper.Event{Kind: scraper.CandidateSkipped, Query: q, PlaceID: id})
			continue
		}
		sum.Processed++

		venue, err := s.processCandidate(ctx, q, searchURL, feed, c, id)
		if err != nil {
			sum.Failed++
			s.logger.Warn("[maps] candidate %s failed: %v", id, err)
			s.reporter.Report(scraper.Event{Kind: scraper.ExtractionError, Query: q, PlaceID: id, Err: err})
			continue
		}
		if !services.IsPlausibleVenueName(venue.Name) {
			sum.Rejected++
			s.reporter.Report(scraper.Event{Kind: scraper.VenueRejected, Query: q, PlaceID: id, Name: venue.Name})
			continue
		}
		s.saveImage(ctx, venue)
		*venues = append(*venues, venue)
		sum.Accepted++
		s.reporter.Report(scraper.Event{Kind: scraper.VenueAccepted, Query: q, PlaceID: id, Name: venue.Name})
	}
	return nil
}

// openSearch loads the results page and returns the feed selector that rendered.
func (s *Session) openSearch(ctx context.Context, searchURL string) (string, error) {
	err := s.retry.Do(ctx, "navigate "+searchURL, func(ctx context.Context) error {
		return s.page.Navigate(ctx, searchURL)
	})
	if err != nil {
		return "", err
	}

	if !s.consentTried {
		s.consentTried = true
		s.consent.Dismiss(ctx)
	}

	if feed := s.awaitFeed(ctx); feed != "" {
		return feed, nil
	}
	if s.consent.Blocking(ctx) && s.consent.Dismiss(ctx) {
		if feed := s.awaitFeed(ctx); feed != "" {
			return feed, nil
		}
	}
	return "", errFeedNotFound
}

func (s *Session) awaitFeed(ctx context.Context) string {
	for _, sel := range FeedSelectors {
		if s.page.WaitVisible(ctx, sel, s.opts.FeedTimeout) {
			return sel
		}
	}
	return ""
}

func (s *Session) enumerate(ctx context.Context) []candidate {
	for _, sel := range CandidateSelectors {
		els, err := s.page.Query(ctx, sel)
		if err != nil || len(els) == 0 {
			continue
		}
		out := make([]candidate, 0, len(els))
		for _, el := range els {
			href := strings.TrimSpace(el.Attr("href"))
			if href == "" {
				continue
			}
			out = append(out, candidate{href: href, label: el.Label()})
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// processCandidate opens the detail panel, extracts it and returns to the list.
func (s *Session) processCandidate(ctx context.Context, q, searchURL, feed string, c candidate, id string) (v *models.CrawledVenueData, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if err := s.openDetail(ctx, searchURL, c); err != nil {
		return nil, err
	}
	defer s.closeDetail(ctx, searchURL, feed)

	return s.extract(ctx, q, c, id), nil
}

func (s *Session) openDetail(ctx context.Context, searchURL string, c candidate) error {
	anchor := browser.AttrSelector("a", "href", c.href)
	if err := s.page.Click(ctx, anchor, 0, s.opts.FieldTimeout); err != nil {
		target, ok := services.AbsoluteURL(searchURL, c.href)
		if !ok {
			return fmt.Errorf("open %s: %w", c.href, err)
		}
		s.logger.Debug("[maps] click failed (%v), navigating to %s", err, target)
		if err := s.page.Navigate(ctx, target); err != nil {
			return fmt.Errorf("open %s: %w", target, err)
		}
	}
	if !s.page.WaitVisible(ctx, DetailMarker, s.opts.DetailTimeout) {
		s.logger.Debug("[maps] detail marker missing for %s, extracting anyway", c.href)
	}
	return nil
}

// closeDetail returns to the result list, reloading it when history fails.
func (s *Session) closeDetail(ctx context.Context, searchURL, feed string) {
	if ctx.Err() != nil {
		return
	}
	if err := s.page.Back(ctx); err == nil {
		s.page.WaitVisible(ctx, feed, s.opts.FeedTimeout)
		return
	}
	if err := s.page.Navigate(ctx, searchURL); err != nil {
		s.logger.Warn("[maps] reload of result list failed: %v", err)
		return
	}
	s.page.WaitVisible(ctx, feed, s.opts.FeedTimeout)
}

func (s *Session) extract(ctx context.Context, q string, c candidate, id string) *models.CrawledVenueData {
	r := s.resolver
	v := &models.CrawledVenueData{Query: q, PlaceID: id, CrawledAt: s.opts.Now()}

	if services.IsPlausibleVenueName(c.label) {
		v.Name = services.NormaliseText(c.label)
	} else if name, ok := selector.Resolve(ctx, r, "name", NameRules); ok {
		v.Name = name
	}

	if rating, ok := selector.Resolve(ctx, r, "rating", RatingRules); ok {
		v.Rating = &rating
	}
	if count, ok := selector.Resolve(ctx, r, "review_count", ReviewCountRules); ok {
		v.ReviewCount = &count
	}
	v.Address, _ = selector.Resolve(ctx, r, "address", AddressRules)
	v.Phone, _ = selector.Resolve(ctx, r, "phone", PhoneRules)
	v.Website, _ = selector.Resolve(ctx, r, "website", WebsiteRules)
	v.OpeningHours, _ = selector.Resolve(ctx, r, "opening_hours", HoursRules)
	v.Category, _ = selector.Resolve(ctx, r, "category", CategoryRules)
	v.Description, _ = selector.Resolve(ctx, r, "description", DescriptionRules)
	v.ImageURL, _ = selector.Resolve(ctx, r, "image", ImageRules)

	loc, err := s.page.Location(ctx)
	if err != nil || !strings.Contains(loc, "/maps/place/") {
		loc, _ = services.AbsoluteURL(s.opts.BaseURL, c.href)
	}
	v.MapURL = loc
	lat, lng, ok := services.ParseCoordinates(loc)
	if !ok {
		lat, lng, ok = services.ParseCoordinates(c.href)
	}
	if ok {
		v.Latitude, v.Longitude = &lat, &lng
	}

	v.CategoryMatch = services.MatchesVenueCategory(v.Name, v.Category)
	if !v.CategoryMatch && v.Name != "" {
		s.logger.Debug("[maps] %q (%s) does not look like a venue of this kind", v.Name, v.Category)
	}

	if s.opts.ExtractReviews {
		if html, err := s.page.HTML(ctx); err == nil {
			v.Reviews = ParseReviews(html, s.opts.MaxReviews, s.opts.Now())
		}
	}
	return v
}

func (s *Session) saveImage(ctx context.Context, v *models.CrawledVenueData) {
	if s.images == nil || v.ImageURL == "" {
		return
	}
	path, err := s.images.Save(ctx, v.ImageURL, services.Slug(v.Name))
	if err != nil {
		s.logger.Warn("[maps] image for %q not saved: %v", v.Name, err)
		return
	}
	v.ImagePath = path
	s.reporter.Report(scraper.Event{Kind: scraper.ImageSaved, PlaceID: v.PlaceID, Name: v.Name, URL: path})
}
