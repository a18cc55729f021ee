package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultProbeURL is requested through HTTP proxies by the default prober.
const DefaultProbeURL = "http://example.com/"

// DefaultProbeTimeout bounds a single health probe.
const DefaultProbeTimeout = 10 * time.Second

// Prober performs a lightweight health check through a proxy.
// A nil error means the proxy is usable.
type Prober interface {
	Probe(ctx context.Context, p Config) error
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, p Config) error

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context, p Config) error {
	return f(ctx, p)
}

// HTTPProber issues a GET for TargetURL through the proxy. Any response
// below 500 counts as healthy; the target's own answer does not matter,
// only that the proxy relayed one.
type HTTPProber struct {
	TargetURL string
	Timeout   time.Duration
}

// Probe requests TargetURL through p.
func (h HTTPProber) Probe(ctx context.Context, p Config) error {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	target := h.TargetURL
	if target == "" {
		target = DefaultProbeURL
	}

	client, err := NewClient(p, timeout)
	if err != nil {
		return err
	}
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create probe request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("probe through %s failed: %w", p.Address(), err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // drain for connection reuse

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %d", ErrProbeStatus, resp.StatusCode)
	}
	return nil
}

// SOCKS5 protocol constants.
const (
	socks5Version      = 0x05
	socks5AuthNone     = 0x00
	socks5AuthPassword = 0x02
	socks5AuthNoAccept = 0xFF
	socks5CmdConnect   = 0x01
	socks5AddrDomain   = 0x03
	socks5PassVersion  = 0x01
)

// SOCKS5Prober verifies a SOCKS5 proxy by performing the protocol
// handshake and a CONNECT request for TargetHost. Any well-formed CONNECT
// reply counts as healthy, including "host unreachable": the check is that
// the proxy processes requests, not that the target is up.
type SOCKS5Prober struct {
	// TargetHost is "host:port" sent in the CONNECT request.
	TargetHost string
	Timeout    time.Duration
}

// Probe performs the handshake against p.
func (s SOCKS5Prober) Probe(ctx context.Context, p Config) error {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", p.Address())
	if err != nil {
		return fmt.Errorf("cannot connect to %s: %w", p.Address(), err)
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("cannot set deadline: %w", err)
	}

	if err := socks5Negotiate(conn, p); err != nil {
		return err
	}
	return socks5Connect(conn, s.target())
}

func (s SOCKS5Prober) target() string {
	if s.TargetHost != "" {
		return s.TargetHost
	}
	u, err := url.Parse(DefaultProbeURL)
	if err != nil {
		return "example.com:80"
	}
	return net.JoinHostPort(u.Hostname(), "80")
}

// socks5Negotiate runs method selection and, when chosen by the server,
// username/password authentication.
func socks5Negotiate(conn net.Conn, p Config) error {
	methods := []byte{socks5AuthNone}
	if p.Username != "" {
		methods = append(methods, socks5AuthPassword)
	}
	greeting := append([]byte{socks5Version, byte(len(methods))}, methods...)
	if _, err := conn.Write(greeting); err != nil {
		return fmt.Errorf("failed to send SOCKS5 greeting: %w", err)
	}

	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return fmt.Errorf("%w: %v", ErrNotSOCKS5, err)
	}
	if resp[0] != socks5Version {
		return ErrNotSOCKS5
	}

	switch resp[1] {
	case socks5AuthNone:
		return nil
	case socks5AuthPassword:
		if p.Username == "" {
			return ErrNotSOCKS5
		}
		return socks5Authenticate(conn, p.Username, p.Password)
	default:
		return ErrNotSOCKS5
	}
}

func socks5Authenticate(conn net.Conn, user, pass string) error {
	if len(user) > 255 || len(pass) > 255 {
		return errors.New("SOCKS5 credentials longer than 255 bytes")
	}
	req := []byte{socks5PassVersion, byte(len(user))}
	req = append(req, user...)
	req = append(req, byte(len(pass)))
	req = append(req, pass...)
	if _, err := conn.Write(req); err != nil {
		return fmt.Errorf("failed to send SOCKS5 credentials: %w", err)
	}

	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return fmt.Errorf("%w: %v", ErrNotSOCKS5, err)
	}
	if resp[1] != 0x00 {
		return errors.New("SOCKS5 authentication rejected")
	}
	return nil
}

func socks5Connect(conn net.Conn, target string) error {
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return fmt.Errorf("invalid probe target %q: %w", target, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || len(host) > 255 {
		return fmt.Errorf("invalid probe target %q", target)
	}

	req := []byte{socks5Version, socks5CmdConnect, 0x00, socks5AddrDomain, byte(len(host))}
	req = append(req, host...)
	req = append(req, byte(port>>8), byte(port&0xFF))
	if _, err := conn.Write(req); err != nil {
		return fmt.Errorf("failed to send SOCKS5 CONNECT: %w", err)
	}

	// version, reply, reserved, address type
	resp := make([]byte, 4)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return fmt.Errorf("%w: %v", ErrNotSOCKS5, err)
	}
	if resp[0] != socks5Version {
		return ErrNotSOCKS5
	}
	return nil
}

// AutoProber uses SOCKS5 for SOCKS5 proxies and HTTP otherwise.
type AutoProber struct {
	HTTP   HTTPProber
	SOCKS5 SOCKS5Prober
}

// NewAutoProber creates an AutoProber that targets targetURL.
func NewAutoProber(targetURL string, timeout time.Duration) AutoProber {
	if targetURL == "" {
		targetURL = DefaultProbeURL
	}
	socksTarget := ""
	if u, err := url.Parse(targetURL); err == nil && u.Hostname() != "" {
		port := u.Port()
		if port == "" {
			port = "80"
			if u.Scheme == "https" {
				port = "443"
			}
		}
		socksTarget = net.JoinHostPort(u.Hostname(), port)
	}
	return AutoProber{
		HTTP:   HTTPProber{TargetURL: targetURL, Timeout: timeout},
		SOCKS5: SOCKS5Prober{TargetHost: socksTarget, Timeout: timeout},
	}
}

// Probe dispatches on p.Protocol.
func (a AutoProber) Probe(ctx context.Context, p Config) error {
	if p.Protocol == ProtocolSOCKS5 {
		return a.SOCKS5.Probe(ctx, p)
	}
	return a.HTTP.Probe(ctx, p)
}
