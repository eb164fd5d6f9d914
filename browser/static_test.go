package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const homeHTML = `<html><body>
<div id="cookie-banner" role="dialog"><p>We use cookies</p><button class="accept">Accept all</button></div>
<nav><a href="/rooms" aria-label="Our rooms">Rooms</a><a href="/hidden" style="display: none">Hidden</a></nav>
<div hidden><span class="inner">invisible</span></div>
<h1 title="Site">  Puzzle
   Palace </h1>
</body></html>`

const roomsHTML = `<html><body><h2>Escape the Mansion</h2></body></html>`

func newFixturePage(t *testing.T) *Static {
	t.Helper()
	p := NewStatic(MapFetcher{
		"https://site.test/":      homeHTML,
		"https://site.test/rooms": roomsHTML,
	})
	require.NoError(t, p.Navigate(context.Background(), "https://site.test/"))
	return p
}

func TestStaticQuerySnapshots(t *testing.T) {
	p := newFixturePage(t)
	els, err := p.Query(context.Background(), "h1")
	require.NoError(t, err)
	require.Len(t, els, 1)
	assert.Equal(t, "h1", els[0].Tag)
	assert.Equal(t, "Puzzle Palace", els[0].Text)
	assert.Equal(t, "Site", els[0].Attr("title"))
	assert.Equal(t, "Site", els[0].Label())
	assert.Contains(t, els[0].HTML, "<h1")
}

func TestStaticVisibility(t *testing.T) {
	p := newFixturePage(t)
	ctx := context.Background()
	assert.True(t, p.WaitVisible(ctx, "nav a", time.Second))
	assert.False(t, p.WaitVisible(ctx, `a[href="/hidden"]`, time.Second))
	assert.False(t, p.WaitVisible(ctx, "span.inner", time.Second))
	assert.False(t, p.WaitVisible(ctx, "table", time.Second))

	els, err := p.Query(ctx, "span.inner")
	require.NoError(t, err)
	require.NotEmpty(t, els)
	assert.False(t, els[0].Visible, "hidden ancestor")
	els, err = p.Query(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, els[0].Visible)
}

func TestStaticClickLinkNavigatesAndBack(t *testing.T) {
	p := newFixturePage(t)
	ctx := context.Background()

	require.NoError(t, p.Click(ctx, AttrSelector("a", "href", "/rooms"), 0, time.Second))
	loc, _ := p.Location(ctx)
	assert.Equal(t, "https://site.test/rooms", loc)
	assert.True(t, p.WaitVisible(ctx, "h2", time.Second))

	require.NoError(t, p.Back(ctx))
	loc, _ = p.Location(ctx)
	assert.Equal(t, "https://site.test/", loc)
	assert.Error(t, p.Back(ctx))
}

func TestStaticClickControlRemovesOverlay(t *testing.T) {
	p := newFixturePage(t)
	ctx := context.Background()
	require.True(t, p.WaitVisible(ctx, "#cookie-banner", time.Second))
	require.NoError(t, p.Click(ctx, "button.accept", 0, time.Second))
	assert.False(t, p.WaitVisible(ctx, "#cookie-banner", time.Second))
	assert.Equal(t, []string{"button.accept"}, p.Clicks())
}

func TestStaticClickMissing(t *testing.T) {
	p := newFixturePage(t)
	err := p.Click(context.Background(), "button.nope", 0, time.Second)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStaticNavigateUnknown(t *testing.T) {
	p := newFixturePage(t)
	assert.Error(t, p.Navigate(context.Background(), "/missing"))
	loc, _ := p.Location(context.Background())
	assert.Equal(t, "https://site.test/", loc)
}

func TestAttrSelectorEscapes(t *testing.T) {
	assert.Equal(t, `a[href="/x?q=\"y\""]`, AttrSelector("a", "href", `/x?q="y"`))
}
