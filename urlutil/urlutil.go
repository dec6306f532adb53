// Package urlutil contains the pure URL operations used by the crawl engine:
// link normalization, origin comparison, blocklist matching and asset
// extension detection. All functions are stateless and never panic on
// malformed input.
package urlutil

import (
	"net/url"
	"regexp"
	"strings"
)

// assetExtRe matches URL paths that point at binary assets rather than
// navigable pages. Those URLs are captured by the asset interceptor instead
// of being queued for rendering.
var assetExtRe = regexp.MustCompile(`(?i)\.(pdf|zip|png|jpe?g|webp|gif|svg|ico|mp4|mov|mp3|wav|woff2?|ttf|eot)$`)

// rejectedPrefixes are href schemes (plus bare fragments) that can never
// produce a crawlable URL.
var rejectedPrefixes = []string{"mailto:", "tel:", "javascript:", "#"}

// Normalize resolves href against base and returns the absolute URL with any
// fragment stripped. It returns "" for empty input, non-navigable schemes
// (mailto:, tel:, javascript:), bare fragment references, and anything that
// fails to parse. It never returns an error: a malformed href is simply not a
// link worth following.
func Normalize(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	for _, p := range rejectedPrefixes {
		if strings.HasPrefix(href, p) {
			return ""
		}
	}

	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	resolved, err := b.Parse(href)
	if err != nil {
		return ""
	}
	resolved.Fragment = ""
	return resolved.String()
}

// SameOrigin reports whether seed and candidate share scheme and host(:port).
// A scheme mismatch (http vs https) is a different origin.
func SameOrigin(seed, candidate string) bool {
	a, err := url.Parse(seed)
	if err != nil {
		return false
	}
	b, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	return a.Scheme == b.Scheme && a.Host == b.Host
}

// IsAssetURL reports whether the URL path ends in a known binary-asset
// extension (images, fonts, archives, media, documents).
func IsAssetURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return assetExtRe.MatchString(u.Path)
}

// Blocklist is a compiled set of host/URL patterns to exclude from asset
// capture and link discovery (trackers, ad networks).
type Blocklist []*regexp.Regexp

// CompileBlocklist compiles the configured patterns. An invalid pattern is an
// error: a silently dropped blocklist entry would let tracker responses
// through.
func CompileBlocklist(patterns []string) (Blocklist, error) {
	bl := make(Blocklist, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		bl = append(bl, re)
	}
	return bl, nil
}

// Matches reports whether the URL matches any blocklist pattern.
func (bl Blocklist) Matches(rawURL string) bool {
	for _, re := range bl {
		if re.MatchString(rawURL) {
			return true
		}
	}
	return false
}
