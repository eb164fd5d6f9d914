package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"
)

// Options configure the headless Chrome instance.
type Options struct {
	ExecPath   string
	Headless   bool
	UserAgent  string
	NavTimeout time.Duration
}

// Chrome is one browser process. Pages opened from it share the process but
// each gets its own tab. Close must be called on every exit path.
type Chrome struct {
	cancelAlloc   context.CancelFunc
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	navTimeout    time.Duration
}

// Launch starts Chrome. Cancelling ctx kills the process as well.
func Launch(ctx context.Context, o Options) (*Chrome, error) {
	execPath := o.ExecPath
	if execPath == "" {
		execPath = findChromeBinary()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", o.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("lang", "en-US"),
		chromedp.WindowSize(1366, 900),
	)
	if o.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(o.UserAgent))
	}
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)

	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("chrome: start: %w", err)
	}

	navTimeout := o.NavTimeout
	if navTimeout <= 0 {
		navTimeout = 45 * time.Second
	}
	return &Chrome{
		cancelAlloc:   cancelAlloc,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		navTimeout:    navTimeout,
	}, nil
}

// NewPage opens a new tab.
func (c *Chrome) NewPage() (Page, error) {
	tabCtx, cancel := chromedp.NewContext(c.browserCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("chrome: open tab: %w", err)
	}
	return &chromePage{ctx: tabCtx, cancel: cancel, navTimeout: c.navTimeout}, nil
}

// Close shuts the browser down.
func (c *Chrome) Close() error {
	c.cancelBrowser()
	c.cancelAlloc()
	return nil
}

type chromePage struct {
	ctx        context.Context
	cancel     context.CancelFunc
	navTimeout time.Duration
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx.
func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) Navigate(ctx context.Context, rawURL string) error {
	if err := p.run(ctx, p.navTimeout, chromedp.Navigate(rawURL), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("chrome: navigate %s: %w", rawURL, err)
	}
	return nil
}

func (p *chromePage) Back(ctx context.Context) error {
	if err := p.run(ctx, p.navTimeout, chromedp.NavigateBack()); err != nil {
		return fmt.Errorf("chrome: back: %w", err)
	}
	return nil
}

func (p *chromePage) Location(ctx context.Context) (string, error) {
	var loc string
	err := p.run(ctx, 5*time.Second, chromedp.Location(&loc))
	return loc, err
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, 15*time.Second, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (p *chromePage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) bool {
	return p.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery)) == nil
}

const queryJS = `(() => {
	const out = [];
	document.querySelectorAll(%s).forEach(el => {
		const attrs = {};
		for (const a of el.attributes) attrs[a.name] = a.value;
		out.push({
			tag: el.tagName.toLowerCase(),
			text: (el.innerText || el.textContent || '').replace(/\s+/g, ' ').trim(),
			html: el.outerHTML,
			attrs: attrs,
			visible: !!(el.offsetWidth || el.offsetHeight || el.getClientRects().length) &&
				getComputedStyle(el).visibility !== 'hidden'
		});
	});
	return out;
})()`

func (p *chromePage) Query(ctx context.Context, selector string) ([]Element, error) {
	var out []Element
	if err := p.run(ctx, 15*time.Second, chromedp.Evaluate(fmt.Sprintf(queryJS, jsString(selector)), &out)); err != nil {
		return nil, fmt.Errorf("chrome: query %s: %w", selector, err)
	}
	return out, nil
}

const clickJS = `(() => {
	const el = document.querySelectorAll(%s)[%d];
	if (!el) return false;
	el.scrollIntoView({block: 'center'});
	el.click();
	return true;
})()`

func (p *chromePage) Click(ctx context.Context, selector string, index int, timeout time.Duration) error {
	if !p.WaitVisible(ctx, selector, timeout) {
		return fmt.Errorf("chrome: click %s: %w", selector, ErrNotFound)
	}
	var clicked bool
	if err := p.run(ctx, timeout, chromedp.Evaluate(fmt.Sprintf(clickJS, jsString(selector), index), &clicked)); err != nil {
		return fmt.Errorf("chrome: click %s: %w", selector, err)
	}
	if !clicked {
		return fmt.Errorf("chrome: click %s[%d]: %w", selector, index, ErrNotFound)
	}
	return nil
}

const scrollJS = `(() => {
	const el = document.querySelector(%s);
	if (el) { el.scrollTop = el.scrollHeight; return true; }
	window.scrollTo(0, document.body.scrollHeight);
	return false;
})()`

func (p *chromePage) Scroll(ctx context.Context, selector string) error {
	var ok bool
	return p.run(ctx, 5*time.Second, chromedp.Evaluate(fmt.Sprintf(scrollJS, jsString(selector)), &ok))
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
