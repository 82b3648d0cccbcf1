// Package version provides feed version parsing, comparison, and websocket
// subprotocol helpers.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Current is the feed protocol version implemented by this module.
const Current = "1.0"

// subprotocolPrefix prefixes the websocket subprotocol name.
const subprotocolPrefix = "telemon/"

// FeedVersion represents a parsed "major.minor" protocol version.
type FeedVersion struct {
	Major uint16
	Minor uint16
}

// Parse parses a "major.minor" version string.
func Parse(s string) (FeedVersion, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return FeedVersion{}, fmt.Errorf("invalid version %q: expected major.minor", s)
	}

	major, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil || parts[0] == "" {
		return FeedVersion{}, fmt.Errorf("invalid version %q: bad major component", s)
	}

	minor, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil || parts[1] == "" {
		return FeedVersion{}, fmt.Errorf("invalid version %q: bad minor component", s)
	}

	return FeedVersion{Major: uint16(major), Minor: uint16(minor)}, nil
}

// MustParse is like Parse but panics on error. Intended for constants.
func MustParse(s string) FeedVersion {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the version as "major.minor".
func (v FeedVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compatible returns true if the other version has the same major version.
func (v FeedVersion) Compatible(other FeedVersion) bool {
	return v.Major == other.Major
}

// CompatibleWith reports whether s parses and shares the current major version.
func CompatibleWith(s string) bool {
	v, err := Parse(s)
	if err != nil {
		return false
	}
	return MustParse(Current).Compatible(v)
}

// Subprotocol returns the websocket subprotocol for a major version: "telemon/N".
func Subprotocol(major uint16) string {
	return fmt.Sprintf("%s%d", subprotocolPrefix, major)
}

// MajorFromSubprotocol extracts the major version from a subprotocol name.
func MajorFromSubprotocol(proto string) (uint16, error) {
	if !strings.HasPrefix(proto, subprotocolPrefix) {
		return 0, fmt.Errorf("not a telemon subprotocol: %q", proto)
	}

	suffix := proto[len(subprotocolPrefix):]
	if suffix == "" {
		return 0, fmt.Errorf("empty major version in subprotocol: %q", proto)
	}

	major, err := strconv.ParseUint(suffix, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid major version in subprotocol %q: %w", proto, err)
	}

	return uint16(major), nil
}

// SupportedSubprotocols returns the subprotocol names for all supported
// major versions. Currently only major version 1.
func SupportedSubprotocols() []string {
	return []string{Subprotocol(MustParse(Current).Major)}
}
