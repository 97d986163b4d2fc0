// Package netutil normalizes MAC and IP addresses into the canonical forms
// stored in the database.
package netutil

import (
	"net/netip"
	"regexp"
	"strings"
)

type macRule struct {
	Regex   *regexp.Regexp
	Handler func(match []string) string
}

// Accepted MAC spellings, tried in order. Handlers return bare hex.
var macRules = []macRule{
	// Colon or dash separated: "aa:bb:cc:dd:ee:ff"
	{
		regexp.MustCompile(`^([0-9a-f]{2})[:-]([0-9a-f]{2})[:-]([0-9a-f]{2})[:-]([0-9a-f]{2})[:-]([0-9a-f]{2})[:-]([0-9a-f]{2})$`),
		func(m []string) string { return strings.Join(m[1:], "") },
	},
	// Cisco dotted quads: "aabb.ccdd.eeff"
	{
		regexp.MustCompile(`^([0-9a-f]{4})\.([0-9a-f]{4})\.([0-9a-f]{4})$`),
		func(m []string) string { return m[1] + m[2] + m[3] },
	},
	// Bare hex: "aabbccddeeff"
	{
		regexp.MustCompile(`^([0-9a-f]{12})$`),
		func(m []string) string { return m[1] },
	},
}

// Mac converts any accepted MAC spelling to canonical lowercase bare hex.
// Returns false for anything that is not a 48-bit MAC.
func Mac(s string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(s))
	for _, rule := range macRules {
		if match := rule.Regex.FindStringSubmatch(lower); len(match) > 1 {
			return rule.Handler(match), true
		}
	}
	return "", false
}

// Oui returns the 6-hex-char vendor prefix of a canonical MAC.
func Oui(mac string) string {
	if len(mac) < 6 {
		return mac
	}
	return mac[:6]
}

// IP parses and canonicalizes an IP address, reporting its version.
// IPv4-mapped IPv6 addresses are unmapped to plain IPv4.
func IP(s string) (addr string, version int, ok bool) {
	parsed, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return "", 0, false
	}
	parsed = parsed.Unmap()
	if parsed.Is4() {
		return parsed.String(), 4, true
	}
	return parsed.String(), 6, true
}
