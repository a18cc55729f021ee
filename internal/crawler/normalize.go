package crawler

import (
	"fmt"
	"net"
	"net/url"
	"path"
	"strings"
)

// NormalizeURL returns the canonical form of rawURL used for deduplication:
// lowercase scheme and host, default port removed, fragment dropped and an
// empty path replaced by "/". Only absolute http and https URLs are accepted.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidStartURL, err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: %q", ErrInvalidStartURL, rawURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidStartURL, rawURL)
	}

	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		u.Host = "[" + host + "]"
	} else {
		u.Host = host
	}

	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" {
		u.Path = "/"
		u.RawPath = ""
	}
	return u.String(), nil
}

// category returns the first path segment of an already normalized URL,
// or "/" for the root. Best-first traversal uses it as the content category.
func category(normalized string) string {
	u, err := url.Parse(normalized)
	if err != nil {
		return "/"
	}
	p := strings.TrimPrefix(path.Clean(u.Path), "/")
	if p == "" || p == "." {
		return "/"
	}
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return p
}

// hostOf returns the lowercase host name of an already normalized URL.
func hostOf(normalized string) string {
	u, err := url.Parse(normalized)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
