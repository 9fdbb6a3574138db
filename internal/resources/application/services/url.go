package services

import (
	"net/url"
	"strings"
)

// sameResourceURL compares booking links ignoring scheme, case of the host,
// query string and trailing slashes.
func sameResourceURL(a, b string) bool {
	return canonicalURL(a) == canonicalURL(b)
}

func canonicalURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimRight(strings.ToLower(strings.TrimSpace(raw)), "/")
	}
	return strings.ToLower(u.Host) + strings.TrimRight(u.Path, "/")
}
