package analysis

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// CanonicalURL reduces a URL to its crawl identity: lowercase host, no
// scheme distinction, no default port, no fragment, no trailing slash.
// Two URLs with the same canonical form are visited at most once.
func CanonicalURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	host := strings.ToLower(u.Host)
	host = strings.TrimSuffix(host, ":80")
	host = strings.TrimSuffix(host, ":443")
	path := strings.TrimSuffix(u.Path, "/")
	canonical := host + path
	if u.RawQuery != "" {
		canonical += "?" + u.Query().Encode()
	}
	return canonical, nil
}

// NormalizeDomain reduces a domain or URL to its comparison form:
// lowercase, scheme and www. prefix stripped, no port, no path.
func NormalizeDomain(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))
	if s == "" {
		return ""
	}
	if strings.Contains(s, "://") {
		if u, err := url.Parse(s); err == nil && u.Host != "" {
			s = u.Host
		}
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimPrefix(s, "www.")
	return s
}

// RegistrableDomain returns the eTLD+1 for a host, falling back to the
// normalized host when the public suffix list cannot resolve it.
func RegistrableDomain(host string) string {
	h := NormalizeDomain(host)
	if h == "" {
		return ""
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(h)
	if err != nil {
		return h
	}
	return d
}

// SameSite reports whether two URLs or hosts share a registrable domain.
func SameSite(a, b string) bool {
	da := RegistrableDomain(a)
	db := RegistrableDomain(b)
	return da != "" && da == db
}

// NormalizeKeyword lowercases and collapses whitespace for case-insensitive
// keyword comparison. The original casing is preserved for display.
func NormalizeKeyword(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
