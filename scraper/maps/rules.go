package maps

import (
	"net/url"
	"strings"

	"venue-crawler/scraper/selector"
	"venue-crawler/services"
)

// The map UI renames its classes regularly. Every locator lives in one of the
// tables below so a drift fix only touches data.

// FeedSelectors locate the scrollable result list, in order.
var FeedSelectors = []string{
	`div[role="feed"]`,
	`div[role="main"]`,
	`div.m6QErb[aria-label]`,
}

// CandidateSelectors locate result anchors. The first selector that matches
// anything is used.
var CandidateSelectors = []string{
	`a[href*="/maps/place/"]`,
	`a.hfpxzc`,
}

// DetailMarker appears once a place panel has rendered.
var DetailMarker = `button[data-item-id="address"]`

var NameRules = []selector.Rule[string]{
	selector.TextRule(`h1.DUwDvf`),
	selector.TextRule(`div[role="main"] h1`),
	selector.AttrRule(`div[role="main"][aria-label]`, "aria-label"),
	selector.TextRule(`h1`),
}

var RatingRules = []selector.Rule[float64]{
	{Selector: `div.F7nice span[aria-hidden="true"]`, Transform: services.ParseRating},
	{Selector: `span[role="img"][aria-label*="star"]`, Attr: "aria-label", Transform: services.ParseRating},
	{Selector: `span.ceNzKf[aria-label]`, Attr: "aria-label", Transform: services.ParseRating},
}

var ReviewCountRules = []selector.Rule[int]{
	{Selector: `div.F7nice span[aria-label*="review"]`, Attr: "aria-label", Transform: services.ParseReviewCount},
	{Selector: `button[jsaction*="reviewChart"]`, Transform: reviewPhrase},
	{Selector: `span, button`, All: true, Transform: reviewPhrase},
}

var AddressRules = []selector.Rule[string]{
	{Selector: `button[data-item-id="address"]`, Attr: "aria-label", Transform: selector.TrimPrefix("Address:")},
	selector.TextRule(`button[data-item-id="address"] div.fontBodyMedium`),
	selector.TextRule(`button[data-tooltip="Copy address"]`),
}

var PhoneRules = []selector.Rule[string]{
	{Selector: `button[data-item-id^="phone:tel:"]`, Attr: "aria-label", Transform: selector.TrimPrefix("Phone:")},
	{Selector: `button[data-item-id^="phone:tel:"]`, Attr: "data-item-id", Transform: selector.TrimPrefix("phone:tel:")},
	selector.TextRule(`button[data-tooltip="Copy phone number"]`),
}

var WebsiteRules = []selector.Rule[string]{
	{Selector: `a[data-item-id="authority"]`, Attr: "href", Transform: websiteURL},
	{Selector: `a[aria-label^="Website"]`, Attr: "href", Transform: websiteURL},
	{Selector: `a[data-tooltip="Open website"]`, Attr: "href", Transform: websiteURL},
}

var HoursRules = []selector.Rule[string]{
	selector.AttrRule(`div.t39EBf[aria-label]`, "aria-label"),
	selector.AttrRule(`[data-item-id="oh"][aria-label]`, "aria-label"),
	selector.TextRule(`table.eK4R0e`),
}

var CategoryRules = []selector.Rule[string]{
	selector.TextRule(`button[jsaction*="category"]`),
	selector.TextRule(`span.DkEaL`),
}

var DescriptionRules = []selector.Rule[string]{
	selector.TextRule(`div.PYvSYb`),
	selector.TextRule(`div[aria-label^="About"] p`),
}

// ImageRules take the first absolute image URL; inline and relative sources
// are skipped.
var ImageRules = []selector.Rule[string]{
	{Selector: `button[jsaction*="heroHeaderImage"] img`, Attr: "src", All: true, Transform: absoluteHTTP},
	{Selector: `div.RZ66Rb img`, Attr: "src", All: true, Transform: absoluteHTTP},
	{Selector: `div[role="main"] img`, Attr: "src", All: true, Transform: absoluteHTTP},
}

// ReviewSelectors describe review blocks in the detail panel HTML.
var ReviewSelectors = struct {
	Block, Author, Rating, Text, Date, Helpful string
}{
	Block:   `div.jftiEf[data-review-id], div[data-review-id]`,
	Author:  `.d4r55, button[aria-label^="Photo of"]`,
	Rating:  `span[role="img"][aria-label*="star"]`,
	Text:    `span.wiI7pd, .MyEned span`,
	Date:    `span.rsqaWe, span.xRkPPb`,
	Helpful: `span.pkWtMe, button[aria-label*="helpful"]`,
}

func reviewPhrase(s string) (int, bool) {
	if !strings.Contains(strings.ToLower(s), "review") {
		return 0, false
	}
	return services.ParseReviewCount(s)
}

func absoluteHTTP(s string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	return u.String(), true
}

// websiteURL accepts an absolute site link, unwrapping "/url?q=" redirects.
func websiteURL(s string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	if u.Path == "/url" {
		if q := u.Query().Get("q"); q != "" {
			return absoluteHTTP(q)
		}
	}
	return absoluteHTTP(s)
}
