package proxy

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Protocol is the protocol spoken to the proxy itself.
type Protocol string

const (
	// ProtocolHTTP is a plain HTTP forward proxy.
	ProtocolHTTP Protocol = "http"

	// ProtocolHTTPS is an HTTP forward proxy reached over TLS.
	ProtocolHTTPS Protocol = "https"

	// ProtocolSOCKS5 is a SOCKS5 proxy, such as a Tor SOCKS port.
	ProtocolSOCKS5 Protocol = "socks5"
)

// Config holds the connection parameters of one egress proxy.
type Config struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username,omitempty"`
	Password string   `yaml:"password,omitempty"`
	Protocol Protocol `yaml:"protocol"`
}

// ParseURL parses "scheme://[user:pass@]host:port" into a Config.
// A missing scheme defaults to http.
func ParseURL(raw string) (Config, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidProxy, err)
	}

	port, err := strconv.Atoi(u.Port())
	if err != nil {
		return Config{}, fmt.Errorf("%w: %q", ErrInvalidProxy, u.Redacted())
	}

	cfg := Config{
		Host:     u.Hostname(),
		Port:     port,
		Protocol: Protocol(strings.ToLower(u.Scheme)),
	}
	if u.User != nil {
		cfg.Username = u.User.Username()
		cfg.Password, _ = u.User.Password()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the host, port and protocol.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" || c.Port < 1 || c.Port > 65535 {
		return ErrInvalidProxy
	}
	switch c.Protocol {
	case ProtocolHTTP, ProtocolHTTPS, ProtocolSOCKS5:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedProtocol, c.Protocol)
	}
}

// Address returns "host:port". It identifies the proxy in the pool and in stats.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// URL returns the proxy URL including credentials.
func (c Config) URL() *url.URL {
	u := &url.URL{Scheme: string(c.Protocol), Host: c.Address()}
	if c.Username != "" {
		u.User = url.UserPassword(c.Username, c.Password)
	}
	return u
}

// String returns the proxy URL with the password redacted.
func (c Config) String() string {
	return c.URL().Redacted()
}
