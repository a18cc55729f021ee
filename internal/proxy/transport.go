package proxy

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	xproxy "golang.org/x/net/proxy"
)

// maxRedirects bounds redirect chains followed by clients from NewClient.
const maxRedirects = 10

// NewTransport returns an http.Transport that routes every request through p.
// HTTP and HTTPS proxies use CONNECT/forwarding via http.ProxyURL; SOCKS5
// proxies dial through golang.org/x/net/proxy.
func NewTransport(p Config) (*http.Transport, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	transport := &http.Transport{
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}

	switch p.Protocol {
	case ProtocolSOCKS5:
		var auth *xproxy.Auth
		if p.Username != "" {
			auth = &xproxy.Auth{User: p.Username, Password: p.Password}
		}
		dialer, err := xproxy.SOCKS5("tcp", p.Address(), auth, xproxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		if cd, ok := dialer.(xproxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	default:
		transport.Proxy = http.ProxyURL(p.URL())
	}
	return transport, nil
}

// NewClient returns an http.Client using NewTransport(p).
func NewClient(p Config, timeout time.Duration) (*http.Client, error) {
	transport, err := NewTransport(p)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}
