// Package browser hides the page driver behind a small interface so the
// crawlers can run against headless Chrome in production and against static
// HTML documents when a site needs no JavaScript (and in tests).
package browser

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound is returned when a selector matches nothing visible in time.
var ErrNotFound = errors.New("browser: element not found")

// Element is a snapshot of one DOM node.
type Element struct {
	Tag   string            `json:"tag"`
	Text  string            `json:"text"`
	HTML  string            `json:"html"`
	Attrs map[string]string `json:"attrs"`
	// Visible is false when the node or an ancestor is hidden.
	Visible bool `json:"visible"`
}

// Attr returns the named attribute, or "" when absent.
func (e Element) Attr(name string) string {
	return e.Attrs[name]
}

// Label is the accessible name of the element: aria-label, then title,
// then visible text.
func (e Element) Label() string {
	for _, v := range []string{e.Attrs["aria-label"], e.Attrs["title"], e.Text} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// Page is one browser tab (or document) driven sequentially by a crawler.
// Every blocking call honours ctx; the explicit timeouts bound waits for
// elements so a stuck page cannot hang the run.
type Page interface {
	// Navigate loads rawURL, resolved against the current location.
	Navigate(ctx context.Context, rawURL string) error
	// Back returns to the previous history entry.
	Back(ctx context.Context) error
	// Location is the current document URL.
	Location(ctx context.Context) (string, error)
	// HTML is the serialised current document.
	HTML(ctx context.Context) (string, error)
	// WaitVisible reports whether selector matches a visible element within timeout.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) bool
	// Query snapshots every element matching selector, in document order.
	Query(ctx context.Context, selector string) ([]Element, error)
	// Click clicks the index-th element matching selector once it is visible.
	Click(ctx context.Context, selector string, index int, timeout time.Duration) error
	// Scroll scrolls the container matching selector (or the window) to its end.
	Scroll(ctx context.Context, selector string) error
	// Close releases the tab.
	Close() error
}

// AttrSelector builds a CSS selector matching tag elements whose attr equals value.
func AttrSelector(tag, attr, value string) string {
	return tag + "[" + attr + "=" + strconv.Quote(value) + "]"
}
