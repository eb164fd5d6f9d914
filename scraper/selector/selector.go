// Package selector resolves a logical field by trying an ordered list of
// DOM locators until one yields a valid value.
package selector

import (
	"context"
	"strings"
	"time"

	"venue-crawler/browser"
	"venue-crawler/utils"
)

// DefaultTimeout bounds the visibility wait of each rule.
const DefaultTimeout = time.Second

// Rule is one locator for a field. The value read from the element (its text,
// or Attr when set) is passed to Transform; ok=false moves on to the next rule.
type Rule[T any] struct {
	Selector  string
	Attr      string
	All       bool // scan every match instead of only the first
	Transform func(string) (T, bool)
}

// Resolver evaluates rule lists against one page.
type Resolver struct {
	Page    browser.Page
	Timeout time.Duration
	Logger  *utils.Logger
}

// Resolve returns the first valid value produced by rules, in order. A miss
// is not an error: most fields are optional, so exhaustion is logged at
// debug level and reported as ok=false.
func Resolve[T any](ctx context.Context, r *Resolver, field string, rules []Rule[T]) (T, bool) {
	var zero T
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	for i, rule := range rules {
		if ctx.Err() != nil {
			return zero, false
		}
		if !r.Page.WaitVisible(ctx, rule.Selector, timeout) {
			continue
		}
		els, err := r.Page.Query(ctx, rule.Selector)
		if err != nil {
			continue
		}
		els = visibleOnly(els)
		if len(els) == 0 {
			continue
		}
		if !rule.All {
			els = els[:1]
		}
		for _, el := range els {
			raw := el.Text
			if rule.Attr != "" {
				raw = el.Attr(rule.Attr)
			}
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			if v, ok := rule.Transform(raw); ok {
				if r.Logger != nil {
					r.Logger.Debug("[selector] %s resolved by rule %d (%s)", field, i+1, rule.Selector)
				}
				return v, true
			}
		}
	}

	if r.Logger != nil {
		r.Logger.Debug("[selector] %s not found after %d rules", field, len(rules))
	}
	return zero, false
}

func visibleOnly(els []browser.Element) []browser.Element {
	out := els[:0:0]
	for _, el := range els {
		if el.Visible {
			out = append(out, el)
		}
	}
	return out
}

// Text is the identity transform for non-empty strings.
func Text(s string) (string, bool) {
	s = strings.Join(strings.Fields(s), " ")
	return s, s != ""
}

// TrimPrefix returns a transform that strips a label prefix such as
// "Address: " before accepting the value.
func TrimPrefix(prefixes ...string) func(string) (string, bool) {
	return func(s string) (string, bool) {
		for _, p := range prefixes {
			if len(s) >= len(p) && strings.EqualFold(s[:len(p)], p) {
				s = s[len(p):]
				break
			}
		}
		return Text(s)
	}
}

// TextRule reads the element text.
func TextRule(sel string) Rule[string] {
	return Rule[string]{Selector: sel, Transform: Text}
}

// AttrRule reads the named attribute.
func AttrRule(sel, attr string) Rule[string] {
	return Rule[string]{Selector: sel, Attr: attr, Transform: Text}
}
