package intel

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL standardizes a URL so near-duplicates collapse to one
// Stage-2 work item. It lowercases the scheme and host, removes default
// ports and fragments, and sorts query parameters. Path case and trailing
// slashes outside the root are preserved; they can be semantic.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q is not absolute", rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}

	// Encode() emits parameters in sorted key order.
	u.RawQuery = u.Query().Encode()

	return u.String(), nil
}
