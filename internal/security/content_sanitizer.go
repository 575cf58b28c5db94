// Package security provides password hashing and HTML sanitization.
//
// ContentSanitizerService cleans admin-authored email HTML before it is
// stored or sent. The bluemonday allowlist passes layout and text tags only.
package security

import (
	"net/url"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService sanitizes HTML.
type ContentSanitizerService interface {
	// Sanitize returns rawHTML with everything outside the allowlist removed.
	// script, iframe, style and on* attributes never survive.
	// Links get target="_blank" and rel="noopener noreferrer".
	// Sanitize is idempotent and maps "" to "".
	Sanitize(rawHTML string) string
}

type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer builds the email body policy:
//   - text and layout tags: p, br, div, span, h1-h3, ul, ol, li, blockquote, pre, code, strong, em, hr, table parts
//   - a[href] and img[src] with absolute https or mailto URLs only
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "div", "span", "hr",
		"h1", "h2", "h3",
		"ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em", "b", "i",
		"table", "thead", "tbody", "tr", "th", "td",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src", "alt").OnElements("img")

	// links and images share the scheme list
	p.AllowURLSchemes("mailto")
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return u.Host != ""
	})

	return &contentSanitizer{
		policy: p,
	}
}

// Sanitize implements ContentSanitizerService.
func (s *contentSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
