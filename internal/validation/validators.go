package validation

import (
	"fmt"
	"net/netip"
	"regexp"
	"strings"
)

var (
	// Valid identifier: alphanumeric, dash, underscore (UUIDs and names)
	identifierRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// Dangerous characters that should never appear in identifiers
	dangerousChars = []string{";", "|", "&", "$", "`", "(", ")", "<", ">", "\\", "\"", "'", "\n", "\r"}
)

// ValidateIdentifier validates an owner identifier (router or tenant ID).
func ValidateIdentifier(id string) error {
	if id == "" {
		return fmt.Errorf("identifier cannot be empty")
	}

	if len(id) > 255 {
		return fmt.Errorf("identifier too long (max 255 characters)")
	}

	for _, char := range dangerousChars {
		if strings.Contains(id, char) {
			return fmt.Errorf("identifier contains dangerous character: %s", char)
		}
	}

	if !identifierRegex.MatchString(id) {
		return fmt.Errorf("invalid identifier: %s (must be alphanumeric with -_)", id)
	}

	return nil
}

// ValidateCIDR validates a network in CIDR notation. A bare address is
// rejected: the prefix length is mandatory.
func ValidateCIDR(s string) (netip.Prefix, error) {
	if s == "" {
		return netip.Prefix{}, fmt.Errorf("CIDR cannot be empty")
	}
	if !strings.Contains(s, "/") {
		return netip.Prefix{}, fmt.Errorf("input must be in CIDR format: %s", s)
	}

	// ParsePrefix rejects prefix lengths beyond the address family's width
	prefix, err := netip.ParsePrefix(strings.TrimSpace(s))
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid CIDR: %w", err)
	}
	return prefix, nil
}

// ValidateCIDROrKeyword accepts a CIDR or one of the given keywords.
func ValidateCIDROrKeyword(s string, keywords []string) error {
	for _, kw := range keywords {
		if s == kw {
			return nil
		}
	}
	_, err := ValidateCIDR(s)
	return err
}

// ValidateIP validates a single IPv4 or IPv6 address.
func ValidateIP(s string) error {
	if s == "" {
		return fmt.Errorf("IP address cannot be empty")
	}
	if _, err := netip.ParseAddr(s); err != nil {
		return fmt.Errorf("invalid IP address: %s", s)
	}
	return nil
}

// ValidateAllowlist checks if a value is in an allowed list
func ValidateAllowlist(value string, allowed []string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("value not in allowlist: %s", value)
}

// ValidatePortNumber validates a port field where 0 means "unspecified".
func ValidatePortNumber(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("invalid port number: %d (must be 0-65535)", port)
	}
	return nil
}

// ValidateProtocol validates a protocol name usable with port matches.
func ValidateProtocol(proto string) error {
	validProtocols := []string{"tcp", "udp"}
	proto = strings.ToLower(proto)

	for _, valid := range validProtocols {
		if proto == valid {
			return nil
		}
	}

	return fmt.Errorf("invalid protocol: %q (must be one of: %s)", proto, strings.Join(validProtocols, ", "))
}

// SanitizeString removes dangerous characters from a string (for display purposes)
func SanitizeString(s string) string {
	for _, char := range dangerousChars {
		s = strings.ReplaceAll(s, char, "")
	}
	return s
}
