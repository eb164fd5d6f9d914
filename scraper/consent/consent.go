// Package consent dismisses cookie and consent overlays that block page content.
package consent

import (
	"context"
	"strings"
	"time"

	"venue-crawler/browser"
	"venue-crawler/utils"
)

// ButtonSelectors are provider-specific accept controls, tried in order.
var ButtonSelectors = []string{
	`button[aria-label="Accept all"]`,
	`button[aria-label="Alle akzeptieren"]`,
	`form[action*="consent"] button[value="1"]`,
	`#L2AGLb`,
	`#onetrust-accept-btn-handler`,
	`#didomi-notice-agree-button`,
	`.fc-cta-consent`,
	`.cc-allow`,
	`.cky-btn-accept`,
	`button[data-testid="uc-accept-all-button"]`,
	`.cookie-accept`,
}

// ButtonPhrases match the visible text of generic accept buttons.
var ButtonPhrases = []string{
	"accept all", "accept all cookies", "i agree", "agree", "accept", "allow all", "got it", "ok",
}

// Markers in the page body that suggest an overlay is still in the way.
var Markers = []string{
	"before you continue", "consent.google", "we use cookies", "cookie settings",
	"accept all", "privacy choices", "manage cookies",
}

const textControls = `button, [role="button"], input[type="submit"]`

// Handler clicks away consent overlays on a page.
type Handler struct {
	Page    browser.Page
	Logger  *utils.Logger
	Timeout time.Duration // per locator visibility wait
	Settle  time.Duration // pause after a click for the DOM to settle
}

// NewHandler returns a Handler with short default waits.
func NewHandler(page browser.Page, logger *utils.Logger) *Handler {
	return &Handler{Page: page, Logger: logger, Timeout: 500 * time.Millisecond, Settle: time.Second}
}

// Dismiss clicks the first visible accept control and reports whether it did.
// Finding nothing is normal and not an error.
func (h *Handler) Dismiss(ctx context.Context) bool {
	for _, sel := range ButtonSelectors {
		if ctx.Err() != nil {
			return false
		}
		if !h.Page.WaitVisible(ctx, sel, h.Timeout) {
			continue
		}
		if err := h.Page.Click(ctx, sel, 0, h.Timeout); err != nil {
			h.Logger.Debug("[consent] click %s failed: %v", sel, err)
			continue
		}
		h.Logger.Debug("[consent] dismissed overlay via %s", sel)
		_ = utils.Sleep(ctx, h.Settle)
		return true
	}

	controls, err := h.Page.Query(ctx, textControls)
	if err != nil {
		return false
	}
	for _, phrase := range ButtonPhrases {
		for i, el := range controls {
			label := strings.ToLower(strings.TrimSpace(el.Text))
			if label == "" {
				label = strings.ToLower(strings.TrimSpace(el.Attr("value")))
			}
			if label != phrase {
				continue
			}
			if err := h.Page.Click(ctx, textControls, i, h.Timeout); err != nil {
				h.Logger.Debug("[consent] click %q failed: %v", phrase, err)
				continue
			}
			h.Logger.Debug("[consent] dismissed overlay via button %q", el.Text)
			_ = utils.Sleep(ctx, h.Settle)
			return true
		}
	}
	return false
}

// Blocking reports whether the page body still mentions consent.
func (h *Handler) Blocking(ctx context.Context) bool {
	els, err := h.Page.Query(ctx, "body")
	if err != nil || len(els) == 0 {
		return false
	}
	body := strings.ToLower(els[0].Text)
	for _, m := range Markers {
		if strings.Contains(body, m) {
			return true
		}
	}
	loc, err := h.Page.Location(ctx)
	return err == nil && strings.Contains(loc, "consent.")
}
