package services

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var (
	// ratingRegexp captures a numeric rating in the 0.0–5.0 range
	ratingRegexp = regexp.MustCompile(`\b([0-5](?:[.,]\d{1,2})?)\b`)
	// reviewCountRegexp captures "1,234 reviews" or "(87 review)"
	reviewCountRegexp = regexp.MustCompile(`(?i)(\d[\d,.]*)\s*reviews?\b`)
	// parenCountRegexp captures the bare "(1,234)" count shown next to stars
	parenCountRegexp = regexp.MustCompile(`^\(?\s*(\d[\d,.]*)\s*\)?$`)
	// coordsRegexp captures the "@lat,lng" map viewport segment
	coordsRegexp = regexp.MustCompile(`@(-?\d{1,3}\.\d+),(-?\d{1,3}\.\d+)`)
	// placeCoordsRegexp captures the "!3dlat!4dlng" place data parameters
	placeCoordsRegexp = regexp.MustCompile(`!3d(-?\d{1,3}\.\d+)!4d(-?\d{1,3}\.\d+)`)
	// placeIDRegexps extract a stable place identifier from a result URL, in order
	placeIDRegexps = []*regexp.Regexp{
		regexp.MustCompile(`!1s(0x[0-9a-fA-F]+:0x[0-9a-fA-F]+)`),
		regexp.MustCompile(`[?&](?:place_id|query_place_id|ftid)=([\w:-]+)`),
		regexp.MustCompile(`!1s(ChIJ[\w-]+)`),
		regexp.MustCompile(`!19s(ChIJ[\w-]+)`),
	}
	// playersRegexp captures "2-6 players", "2 – 6 people", "2 to 6 guests"
	playersRegexp = regexp.MustCompile(`(?i)(\d{1,2})\s*(?:-|–|—|to)\s*(\d{1,2})\s*(?:players?|people|persons|guests|ppl)`)
	// durationRegexp captures "60 min", "75 minutes"
	durationRegexp = regexp.MustCompile(`(?i)(\d{2,3})\s*(?:min|mins|minutes)\b`)
	// priceRegexp captures "$30" or "$29.99"
	priceRegexp = regexp.MustCompile(`\$\s*(\d{1,4}(?:,\d{3})*(?:\.\d{2})?)`)
	// relativeDateRegexp captures "3 weeks ago", "a month ago"
	relativeDateRegexp = regexp.MustCompile(`(?i)\b(a|an|one|\d+)\s+(second|minute|hour|day|week|month|year)s?\s+ago\b`)
	firstIntRegexp     = regexp.MustCompile(`\d[\d,]*`)
	slugRegexp         = regexp.MustCompile(`[^a-z0-9]+`)
)

// ParseRating extracts a 0.0–5.0 numeric rating from a raw string.
func ParseRating(raw string) (float64, bool) {
	match := ratingRegexp.FindStringSubmatch(raw)
	if len(match) < 2 {
		return 0, false
	}
	val, err := strconv.ParseFloat(strings.Replace(match[1], ",", ".", 1), 64)
	if err != nil || val <= 0 || val > 5 {
		return 0, false
	}
	return val, true
}

// ParseReviewCount extracts the number from "N review(s)" text. A bare
// parenthesised count such as "(1,234)" is accepted as well.
func ParseReviewCount(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	match := reviewCountRegexp.FindStringSubmatch(raw)
	if len(match) < 2 {
		match = parenCountRegexp.FindStringSubmatch(raw)
	}
	if len(match) < 2 {
		return 0, false
	}
	digits := strings.NewReplacer(",", "", ".", "").Replace(match[1])
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ParseCoordinates reads latitude and longitude from a map URL, preferring
// the "@lat,lng" viewport segment and falling back to the place parameters.
func ParseCoordinates(mapURL string) (lat, lng float64, ok bool) {
	match := coordsRegexp.FindStringSubmatch(mapURL)
	if len(match) < 3 {
		match = placeCoordsRegexp.FindStringSubmatch(mapURL)
	}
	if len(match) < 3 {
		return 0, 0, false
	}
	lat, err1 := strconv.ParseFloat(match[1], 64)
	lng, err2 := strconv.ParseFloat(match[2], 64)
	if err1 != nil || err2 != nil || math.Abs(lat) > 90 || math.Abs(lng) > 180 {
		return 0, 0, false
	}
	return lat, lng, true
}

// PlaceID derives a stable place identifier from a result href. When no known
// identifier pattern matches, the href itself (without query string and
// fragment) is used.
func PlaceID(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	for _, re := range placeIDRegexps {
		if m := re.FindStringSubmatch(href); len(m) == 2 {
			return m[1]
		}
	}
	if i := strings.IndexAny(href, "?#"); i >= 0 {
		href = href[:i]
	}
	return href
}

// ParsePlayers extracts a "min-max players" range. The result is ordered.
func ParsePlayers(text string) (min, max int, ok bool) {
	match := playersRegexp.FindStringSubmatch(text)
	if len(match) < 3 {
		return 0, 0, false
	}
	min, _ = strconv.Atoi(match[1])
	max, _ = strconv.Atoi(match[2])
	if min <= 0 || max <= 0 {
		return 0, 0, false
	}
	if min > max {
		min, max = max, min
	}
	return min, max, true
}

// ParseDuration extracts a duration in minutes from "N min" text.
func ParseDuration(text string) (int, bool) {
	match := durationRegexp.FindStringSubmatch(text)
	if len(match) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(match[1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// ParsePrice extracts the first dollar amount from text.
func ParsePrice(text string) (float64, bool) {
	match := priceRegexp.FindStringSubmatch(text)
	if len(match) < 2 {
		return 0, false
	}
	val, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", ""), 64)
	if err != nil || val <= 0 {
		return 0, false
	}
	return val, true
}

// ParseFirstInt returns the first integer in text, e.g. a helpful count.
func ParseFirstInt(text string) (int, bool) {
	match := firstIntRegexp.FindString(text)
	if match == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(match, ",", ""))
	if err != nil {
		return 0, false
	}
	return n, true
}

// RoundRating turns a possibly fractional star value into 1..5.
func RoundRating(v float64) int {
	n := int(math.Round(v))
	if n < 1 {
		return 1
	}
	if n > 5 {
		return 5
	}
	return n
}

// ParseRelativeDate resolves "3 weeks ago" style text against now.
// Months and years are calendar based.
func ParseRelativeDate(text string, now time.Time) (time.Time, bool) {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "yesterday") {
		return now.AddDate(0, 0, -1), true
	}
	if strings.Contains(lower, "just now") || strings.Contains(lower, "today") {
		return now, true
	}
	match := relativeDateRegexp.FindStringSubmatch(lower)
	if len(match) < 3 {
		return time.Time{}, false
	}
	n := 1
	if v, err := strconv.Atoi(match[1]); err == nil {
		n = v
	}
	switch match[2] {
	case "second":
		return now.Add(-time.Duration(n) * time.Second), true
	case "minute":
		return now.Add(-time.Duration(n) * time.Minute), true
	case "hour":
		return now.Add(-time.Duration(n) * time.Hour), true
	case "day":
		return now.AddDate(0, 0, -n), true
	case "week":
		return now.AddDate(0, 0, -7*n), true
	case "month":
		return now.AddDate(0, -n, 0), true
	case "year":
		return now.AddDate(-n, 0, 0), true
	}
	return time.Time{}, false
}

// AbsoluteURL resolves href against base and keeps only http(s) results.
func AbsoluteURL(base, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "data:") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if !ref.IsAbs() {
		b, err := url.Parse(base)
		if err != nil || !b.IsAbs() {
			return "", false
		}
		ref = b.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return "", false
	}
	return ref.String(), true
}

// Slug makes a lowercase, dash separated file-name hint.
func Slug(s string) string {
	s = slugRegexp.ReplaceAllString(strings.ToLower(s), "-")
	s = strings.Trim(s, "-")
	if len(s) > 60 {
		s = strings.TrimRight(s[:60], "-")
	}
	return s
}

// NormaliseText strips leading/trailing whitespace and collapses internal whitespace.
func NormaliseText(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}
