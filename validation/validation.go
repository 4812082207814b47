// Package validation holds the boundary checks applied to inbound request
// parameters before anything is forwarded upstream. Every function here is
// pure (no I/O) except CheckRemoteURL, which performs a DNS lookup through an
// injectable resolver.
package validation

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// MaxURLLength is the longest remote image URL accepted for URL submissions.
const MaxURLLength = 512

// MaxErrorDetailLength caps the error detail relayed to clients so raw
// upstream bodies or stack traces never leak through whole.
const MaxErrorDetailLength = 200

// sessionIDPattern is the canonical UUID textual grammar: 8-4-4-4-12 hex
// groups, case-insensitive. Deliberately stricter than uuid.Parse, which
// also accepts braced, URN and 32-digit forms.
var sessionIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsSessionID reports whether id matches the canonical UUID textual form.
func IsSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

// HasTraversal reports whether s contains a ".." sequence, literal or
// percent-encoded in any casing.
func HasTraversal(s string) bool {
	if strings.Contains(s, "..") {
		return true
	}
	lower := strings.ToLower(s)
	return strings.Contains(lower, "%2e%2e") ||
		strings.Contains(lower, ".%2e") ||
		strings.Contains(lower, "%2e.")
}

// ParseFaceIndex parses a face index path segment. Only plain non-negative
// decimal digits are accepted; signs, spaces and hex forms are rejected.
func ParseFaceIndex(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty face index")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("face index must be digits only")
		}
	}
	idx, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid face index: %w", err)
	}
	return idx, nil
}

// lookupIP is swapped out in tests to avoid real DNS.
var lookupIP = net.LookupIP

// CheckRemoteURL validates a user-submitted image URL before it is fetched:
// scheme must be http or https, total length must not exceed MaxURLLength,
// and the hostname must resolve to at least one public IP. Loopback, private,
// link-local and unspecified addresses are rejected so the service cannot be
// used to probe internal networks.
func CheckRemoteURL(rawURL string) error {
	if len(rawURL) > MaxURLLength {
		return fmt.Errorf("url exceeds maximum length of %d characters", MaxURLLength)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https")
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("url has no host")
	}

	// literal IPs skip DNS entirely
	if ip := net.ParseIP(host); ip != nil {
		if !isPublicIP(ip) {
			return fmt.Errorf("url resolves to a disallowed address")
		}
		return nil
	}

	ips, err := lookupIP(host)
	if err != nil {
		return fmt.Errorf("failed to resolve url host: %w", err)
	}
	if len(ips) == 0 {
		return fmt.Errorf("url host did not resolve to any address")
	}
	for _, ip := range ips {
		if !isPublicIP(ip) {
			return fmt.Errorf("url resolves to a disallowed address")
		}
	}
	return nil
}

// isPublicIP rejects anything a browser-facing proxy should never be asked
// to fetch on a user's behalf.
func isPublicIP(ip net.IP) bool {
	return !(ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified())
}

// TruncateDetail clamps an error detail string to MaxErrorDetailLength.
func TruncateDetail(detail string) string {
	if len(detail) <= MaxErrorDetailLength {
		return detail
	}
	return detail[:MaxErrorDetailLength]
}
