package maps

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"venue-crawler/models"
	"venue-crawler/services"
)

// ParseReviews reads up to max reviews from detail panel HTML. Blocks
// repeating an already seen review id are skipped, as are reviews without a
// star rating.
func ParseReviews(html string, max int, now time.Time) []*models.CrawledReviewData {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var out []*models.CrawledReviewData
	seen := make(map[string]struct{})
	doc.Find(ReviewSelectors.Block).EachWithBreak(func(_ int, block *goquery.Selection) bool {
		if max > 0 && len(out) >= max {
			return false
		}
		id, _ := block.Attr("data-review-id")
		if _, dup := seen[id]; dup && id != "" {
			return true
		}
		seen[id] = struct{}{}

		r := parseReview(block, now)
		if r == nil {
			return true
		}
		r.ExternalID = id
		out = append(out, r)
		return true
	})
	return out
}

func parseReview(block *goquery.Selection, now time.Time) *models.CrawledReviewData {
	r := &models.CrawledReviewData{
		Author: services.NormaliseText(block.Find(ReviewSelectors.Author).First().Text()),
		Text:   services.NormaliseText(block.Find(ReviewSelectors.Text).First().Text()),
	}
	if r.Author == "" {
		if label, ok := block.Find(ReviewSelectors.Author).First().Attr("aria-label"); ok {
			r.Author = strings.TrimSpace(strings.TrimPrefix(label, "Photo of"))
		}
	}

	if label, ok := block.Find(ReviewSelectors.Rating).First().Attr("aria-label"); ok {
		if v, ok := services.ParseRating(label); ok {
			r.Rating = services.RoundRating(v)
		}
	}
	if r.Rating == 0 {
		return nil
	}

	if date := services.NormaliseText(block.Find(ReviewSelectors.Date).First().Text()); date != "" {
		r.RelativeDate = date
		if t, ok := services.ParseRelativeDate(date, now); ok {
			r.PostedAt = &t
		}
	}

	helpful := block.Find(ReviewSelectors.Helpful).First()
	raw := strings.TrimSpace(helpful.Text())
	if raw == "" {
		raw, _ = helpful.Attr("aria-label")
	}
	if n, ok := services.ParseFirstInt(raw); ok {
		r.HelpfulCount = &n
	}
	return r
}
