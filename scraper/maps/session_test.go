package maps

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venue-crawler/browser"
	"venue-crawler/scraper"
	"venue-crawler/utils"
)

var fixedNow = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

const (
	vaultHref    = "/maps/place/Puzzle+Vault/data=!4m2!3m1!1s0x1:0x2!3d39.7817!4d-89.6501"
	vaultAltHref = "https://maps.test/maps/place/Puzzle+Vault+Escape+Rooms/@39.78,-89.65,17z/data=!3m1!1s0x1:0x2?hl=en"
	adHref       = "/maps/place/Ad+Corp/data=!1s0x9:0x9"
	brokenHref   = "/maps/place/Broken/data=!1s0x7:0x7"
	cabinHref    = "/maps/place/Clue+Cabin/@39.8,-89.6,15z/data=!1s0x3:0x4"
)

func fixtures() browser.MapFetcher {
	return browser.MapFetcher{
		"https://maps.test/search/escape+rooms+in+Springfield": `<html><body>
			<div class="consent-banner"><form action="https://consent.maps.test/save"><button value="1">Accept all</button></form></div>
			<div role="feed">
				<div><a class="hfpxzc" aria-label="Puzzle Vault Escapes" href="` + vaultHref + `"></a></div>
				<div><a class="hfpxzc" aria-label="Sponsored" href="` + adHref + `"></a></div>
				<div><a class="hfpxzc" aria-label="Broken Place" href="` + brokenHref + `"></a></div>
			</div></body></html>`,
		"https://maps.test/search/escape+rooms+near+Springfield": `<html><body><div role="feed">
				<div><a class="hfpxzc" aria-label="Puzzle Vault (Downtown)" href="` + vaultAltHref + `"></a></div>
				<div><a class="hfpxzc" aria-label="Clue Cabin" href="` + cabinHref + `"></a></div>
			</div></body></html>`,
		"/maps/place/Puzzle+Vault/data=!4m2!3m1!1s0x1:0x2!3d39.7817!4d-89.6501": `<html><body><div role="main" aria-label="Puzzle Vault">
			<h1 class="DUwDvf">Results</h1>
			<div class="F7nice"><span><span aria-hidden="true">4.8</span></span><span><span role="img" aria-label="1,234 reviews">(1,234)</span></span></div>
			<button jsaction="pane.rating.category">Escape room center</button>
			<button data-item-id="address" aria-label="Address: 12 Main St, Springfield, IL"><div class="fontBodyMedium">12 Main St, Springfield, IL</div></button>
			<button data-item-id="phone:tel:+12175550100" aria-label="Phone: (217) 555-0100"></button>
			<a data-item-id="authority" href="https://puzzlevault.test/">puzzlevault.test</a>
			<div class="t39EBf" aria-label="Monday, 10 AM to 10 PM"></div>
			<button jsaction="pane.heroHeaderImage.click"><img src="data:image/png;base64,AAAA"><img src="https://img.test/vault.jpg"></button>
			<div class="jftiEf" data-review-id="r1"><div class="d4r55">Alex P.</div><span role="img" aria-label="5 stars"></span>
				<span class="rsqaWe">2 weeks ago</span><span class="wiI7pd">Loved the vault room!</span><span class="pkWtMe">3</span></div>
			<div class="jftiEf" data-review-id="r2"><div class="d4r55">Sam K.</div><span role="img" aria-label="4 stars"></span>
				<span class="rsqaWe">a month ago</span><span class="wiI7pd">Tricky but fair.</span></div>
			</div></body></html>`,
		"/maps/place/Ad+Corp/data=!1s0x9:0x9": `<html><body><div role="main"><h1 class="DUwDvf">Results</h1></div></body></html>`,
		"/maps/place/Clue+Cabin/@39.8,-89.6,15z/data=!1s0x3:0x4": `<html><body><div role="main">
			<h1 class="DUwDvf">Clue Cabin</h1>
			<div class="PYvSYb">Cosy puzzle rooms in a log cabin.</div>
			</div></body></html>`,
	}
}

type fakeImages struct {
	saved []string
	err   error
}

func (f *fakeImages) Save(ctx context.Context, imageURL, nameHint string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.saved = append(f.saved, imageURL)
	return "images/" + nameHint + ".jpg", nil
}

func newSession(t *testing.T, opts Options, images ImageStore, rec scraper.Reporter) (*Session, *browser.Static) {
	t.Helper()
	page := browser.NewStatic(fixtures())
	opts.BaseURL = "https://maps.test/search/"
	opts.Now = func() time.Time { return fixedNow }
	return NewSession(page, images, opts, utils.NewNopLogger(), rec), page
}

func TestQueryVariants(t *testing.T) {
	assert.Equal(t, []string{
		"escape rooms in Los Angeles",
		"escape rooms near Los Angeles",
		"escape rooms Los Angeles",
	}, QueryVariants("escape rooms", " Los Angeles "))
}

func TestLedger(t *testing.T) {
	l := NewLedger()
	assert.True(t, l.Add("a"))
	assert.False(t, l.Add("a"))
	assert.True(t, l.Add("b"))
	assert.Equal(t, 2, l.Len())
}

func TestSessionDeduplicatesAcrossVariants(t *testing.T) {
	rec := &scraper.Recorder{}
	images := &fakeImages{}
	s, page := newSession(t, Options{ExtractReviews: true, MaxReviews: 5}, images, rec)

	venues, sum := s.Run(context.Background(), "Springfield")

	require.Len(t, venues, 2)
	vault := venues[0]
	assert.Equal(t, "0x1:0x2", vault.PlaceID)
	assert.Equal(t, "Puzzle Vault Escapes", vault.Name, "name comes from the first anchor label")
	assert.Equal(t, "Clue Cabin", venues[1].Name)

	assert.Equal(t, 3, sum.Variants)
	assert.Equal(t, 1, sum.VariantsAbandoned)
	assert.Equal(t, 5, sum.Found)
	assert.Equal(t, 4, sum.Processed)
	assert.Equal(t, 1, sum.SkippedDuplicate)
	assert.Equal(t, 2, sum.Accepted)
	assert.Equal(t, 1, sum.Rejected)
	assert.Equal(t, 1, sum.Failed)
	assert.False(t, sum.Partial)
	assert.Equal(t, 4, s.Ledger().Len())

	for _, c := range page.Clicks() {
		assert.NotEqual(t, browser.AttrSelector("a", "href", vaultAltHref), c, "duplicate must not be opened")
	}
	assert.Equal(t, `form[action*="consent"] button[value="1"]`, page.Clicks()[0])

	assert.Equal(t, 1, rec.Count(scraper.CandidateSkipped))
	assert.Equal(t, 2, rec.Count(scraper.VenueAccepted))
	assert.Equal(t, 1, rec.Count(scraper.VenueRejected))
	assert.Equal(t, 1, rec.Count(scraper.VariantAbandoned))
	assert.Equal(t, 1, rec.Count(scraper.RunFinished))
}

func TestSessionExtractsDetailFields(t *testing.T) {
	images := &fakeImages{}
	s, _ := newSession(t, Options{ExtractReviews: true, MaxReviews: 5}, images, &scraper.Recorder{})

	venues, _ := s.Run(context.Background(), "Springfield")
	require.NotEmpty(t, venues)
	v := venues[0]

	require.NotNil(t, v.Rating)
	assert.Equal(t, 4.8, *v.Rating)
	require.NotNil(t, v.ReviewCount)
	assert.Equal(t, 1234, *v.ReviewCount)
	assert.Equal(t, "12 Main St, Springfield, IL", v.Address)
	assert.Equal(t, "(217) 555-0100", v.Phone)
	assert.Equal(t, "https://puzzlevault.test/", v.Website)
	assert.Equal(t, "Monday, 10 AM to 10 PM", v.OpeningHours)
	assert.Equal(t, "Escape room center", v.Category)
	assert.True(t, v.CategoryMatch)
	require.NotNil(t, v.Latitude)
	assert.InDelta(t, 39.7817, *v.Latitude, 1e-9)
	assert.InDelta(t, -89.6501, *v.Longitude, 1e-9)
	assert.Equal(t, "https://img.test/vault.jpg", v.ImageURL)
	assert.Equal(t, "images/puzzle-vault-escapes.jpg", v.ImagePath)
	assert.Equal(t, "escape rooms in Springfield", v.Query)
	assert.Equal(t, fixedNow, v.CrawledAt)

	require.Len(t, v.Reviews, 2)
	assert.Equal(t, "r1", v.Reviews[0].ExternalID)
	assert.Equal(t, "Alex P.", v.Reviews[0].Author)
	assert.Equal(t, 5, v.Reviews[0].Rating)
	assert.Equal(t, "Loved the vault room!", v.Reviews[0].Text)
	require.NotNil(t, v.Reviews[0].PostedAt)
	assert.Equal(t, fixedNow.AddDate(0, 0, -14), *v.Reviews[0].PostedAt)
	require.NotNil(t, v.Reviews[0].HelpfulCount)
	assert.Equal(t, 3, *v.Reviews[0].HelpfulCount)
	assert.Nil(t, v.Reviews[1].HelpfulCount)

	cabin := venues[1]
	assert.False(t, cabin.CategoryMatch, "category is a signal, not a filter")
	assert.Equal(t, "Cosy puzzle rooms in a log cabin.", cabin.Description)
	assert.Nil(t, cabin.Rating)
	assert.Empty(t, cabin.Address)
	assert.Empty(t, cabin.ImagePath)
	require.NotNil(t, cabin.Latitude)
	assert.InDelta(t, 39.8, *cabin.Latitude, 1e-9)
}

func TestSessionImageFailureKeepsVenue(t *testing.T) {
	s, _ := newSession(t, Options{}, &fakeImages{err: errors.New("boom")}, nil)

	venues, _ := s.Run(context.Background(), "Springfield")
	require.NotEmpty(t, venues)
	assert.Equal(t, "https://img.test/vault.jpg", venues[0].ImageURL)
	assert.Empty(t, venues[0].ImagePath)
	assert.Empty(t, venues[0].Reviews, "reviews are off unless enabled")
}

func TestSessionMaxResults(t *testing.T) {
	s, _ := newSession(t, Options{MaxResults: 1}, nil, nil)

	venues, sum := s.Run(context.Background(), "Springfield")
	require.Len(t, venues, 1)
	assert.Equal(t, "Puzzle Vault Escapes", venues[0].Name)
	assert.Equal(t, 1, sum.Variants)
	assert.Equal(t, 1, sum.Accepted)
}

func TestSessionCancelled(t *testing.T) {
	s, _ := newSession(t, Options{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	venues, sum := s.Run(ctx, "Springfield")
	assert.Empty(t, venues)
	assert.True(t, sum.Partial)
	assert.Equal(t, 0, sum.Variants)
}

func TestSessionRecoversPanic(t *testing.T) {
	s, _ := newSession(t, Options{}, nil, nil)
	s.reporter = panicReporter{}

	venues, sum := s.Run(context.Background(), "Springfield")
	assert.Empty(t, venues)
	assert.True(t, sum.Partial)
}

// panicReporter blows up on the first event, which is reported outside any
// per-variant guard.
type panicReporter struct{}

func (panicReporter) Report(e scraper.Event) {
	if e.Kind == scraper.VariantStarted {
		panic("reporter exploded")
	}
}

func TestParseReviews(t *testing.T) {
	html := `<div>
		<div data-review-id="a"><span class="d4r55">One</span><span role="img" aria-label="4.6 stars"></span><span class="wiI7pd">Good</span></div>
		<div data-review-id="a"><span class="d4r55">One again</span><span role="img" aria-label="4 stars"></span></div>
		<div data-review-id="b"><span class="d4r55">No stars</span><span class="wiI7pd">Text only</span></div>
		<div data-review-id="c"><span class="d4r55">Three</span><span role="img" aria-label="1 star"></span><span class="rsqaWe">yesterday</span></div>
		<div data-review-id="d"><span class="d4r55">Four</span><span role="img" aria-label="2 stars"></span></div>
	</div>`

	reviews := ParseReviews(html, 2, fixedNow)
	require.Len(t, reviews, 2)
	assert.Equal(t, "One", reviews[0].Author)
	assert.Equal(t, 5, reviews[0].Rating)
	assert.Equal(t, "c", reviews[1].ExternalID)
	assert.Equal(t, 1, reviews[1].Rating)
	require.NotNil(t, reviews[1].PostedAt)
	assert.Equal(t, fixedNow.AddDate(0, 0, -1), *reviews[1].PostedAt)

	assert.Len(t, ParseReviews(html, 0, fixedNow), 3)
}

var _ ImageStore = (*fakeImages)(nil)
