package feedsource

import (
	"net/url"
	"strings"
)

// HostBlocklist holds normalized hostnames that feed downloads must never contact.
// A listed host also blocks its subdomains.
type HostBlocklist map[string]struct{}

func NewHostBlocklist(entries []string) HostBlocklist {
	set := make(HostBlocklist, len(entries))
	for _, raw := range entries {
		if host := normalizeHostname(raw); host != "" {
			set[host] = struct{}{}
		}
	}
	return set
}

// Blocks reports whether rawURL, or a bare hostname, matches the blocklist.
func (b HostBlocklist) Blocks(rawURL string) bool {
	if len(b) == 0 {
		return false
	}
	host := normalizeHostname(rawURL)
	if host == "" {
		return false
	}

	if _, ok := b[host]; ok {
		return true
	}
	for blocked := range b {
		if strings.HasSuffix(host, "."+blocked) {
			return true
		}
	}
	return false
}

func normalizeHostname(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	// Allow bare hostnames by prefixing a scheme for URL parsing.
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return ""
	}

	host := strings.ToLower(parsed.Hostname())
	return strings.Trim(host, ".")
}
