package discovery

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Service type constants.
const (
	// ServiceType is the DNS-SD service type advertised by producers.
	ServiceType = "_telemon._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the default producer HTTP port.
	DefaultPort = 8080

	// DefaultWebSocketPath is the websocket endpoint path.
	DefaultWebSocketPath = "/ws"
)

// TXT record key constants.
const (
	TXTKeyVersion       = "ver" // Feed protocol version
	TXTKeyWebSocketPath = "ws"  // Websocket path
	TXTKeyStreamPort    = "tcp" // Stream listener port (optional)
	TXTKeyDevices       = "dev" // Device count (optional)
	TXTKeyRegisters     = "reg" // Registers per device (optional)
)

// Timing constants.
const (
	// BrowseTimeout is the default timeout for mDNS browsing.
	BrowseTimeout = 10 * time.Second

	// DefaultTTL is the default DNS record TTL.
	DefaultTTL = 120 * time.Second
)

// MaxInstanceNameLen is the DNS label limit.
const MaxInstanceNameLen = 63

// Discovery errors.
var (
	ErrInvalidTXTRecord    = errors.New("invalid TXT record format")
	ErrMissingRequired     = errors.New("missing required field")
	ErrIncompatible        = errors.New("incompatible feed version")
	ErrInvalidInstance     = errors.New("invalid instance name")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
	ErrNotFound            = errors.New("service not found")
	ErrBrowserStopped      = errors.New("browser stopped")
)

// ProducerInfo describes a producer to advertise.
type ProducerInfo struct {
	// Instance is the user-visible instance name.
	Instance string

	// Port is the HTTP port serving the websocket endpoint.
	// Zero means DefaultPort.
	Port uint16

	// WebSocketPath defaults to DefaultWebSocketPath.
	WebSocketPath string

	// StreamPort is the stream listener port, zero when disabled.
	StreamPort uint16

	Devices   int
	Registers int

	// Version defaults to the current feed version.
	Version string
}

// ProducerService is a producer found by browsing.
type ProducerService struct {
	Instance  string
	Host      string
	Port      uint16
	Addresses []string

	WebSocketPath string
	StreamPort    uint16
	Devices       int
	Registers     int
	Version       string
}

// host returns the preferred address, falling back to the host name.
func (s *ProducerService) host() string {
	if len(s.Addresses) > 0 {
		return s.Addresses[0]
	}
	return s.Host
}

// WebSocketURL returns the ws:// URL of the producer's websocket endpoint.
func (s *ProducerService) WebSocketURL() string {
	path := s.WebSocketPath
	if path == "" {
		path = DefaultWebSocketPath
	}
	return fmt.Sprintf("ws://%s%s", net.JoinHostPort(s.host(), strconv.Itoa(int(s.Port))), path)
}

// StreamAddr returns the host:port of the stream listener, or "" when the
// producer advertises none.
func (s *ProducerService) StreamAddr() string {
	if s.StreamPort == 0 {
		return ""
	}
	return net.JoinHostPort(s.host(), strconv.Itoa(int(s.StreamPort)))
}

// String returns a compact description for listings.
func (s *ProducerService) String() string {
	return fmt.Sprintf("%s v%s %s (%d devices x %d registers)",
		s.Instance, s.Version, s.WebSocketURL(), s.Devices, s.Registers)
}
