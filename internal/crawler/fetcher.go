package crawler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nao1215/deepcrawl/internal/model"
	"github.com/nao1215/deepcrawl/internal/proxy"
)

const (
	// DefaultUserAgent is sent when no User-Agent is configured.
	DefaultUserAgent = "Mozilla/5.0 (compatible; deepcrawl/1.0; +https://github.com/nao1215/deepcrawl)"

	// DefaultMaxBodySize is the number of body bytes read per response.
	DefaultMaxBodySize int64 = 10 * 1024 * 1024 // 10MB

	// DefaultFetchTimeout bounds a single request of the default HTTP client.
	DefaultFetchTimeout = 30 * time.Second
)

// FetchRequest is one fetch to perform.
type FetchRequest struct {
	// URL is the normalized URL to fetch.
	URL string

	// Proxy is the egress proxy chosen for this request, or nil for a
	// direct connection.
	Proxy *proxy.Config
}

// Fetcher retrieves a page. Implementations report failures through
// FetchResponse rather than panicking and must honor ctx.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) model.FetchResponse
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, req FetchRequest) model.FetchResponse

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, req FetchRequest) model.FetchResponse {
	return f(ctx, req)
}

// ClientProvider returns an HTTP client that routes through a proxy.
// *proxy.Manager implements it.
type ClientProvider interface {
	HTTPClient(p proxy.Config) (*http.Client, error)
}

// HTTPFetcher fetches pages over HTTP and extracts links from HTML responses.
type HTTPFetcher struct {
	client      *http.Client
	clients     ClientProvider
	userAgent   string
	maxBodySize int64
	headers     map[string]string
}

// HTTPFetcherOption configures an HTTPFetcher.
type HTTPFetcherOption func(*HTTPFetcher)

// WithHTTPClient sets the client used for direct requests.
func WithHTTPClient(c *http.Client) HTTPFetcherOption {
	return func(f *HTTPFetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithClientProvider sets where proxied clients come from.
func WithClientProvider(p ClientProvider) HTTPFetcherOption {
	return func(f *HTTPFetcher) {
		f.clients = p
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HTTPFetcherOption {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize sets how many body bytes are read per response.
func WithMaxBodySize(size int64) HTTPFetcherOption {
	return func(f *HTTPFetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithHeaders adds headers to every request. They override the defaults,
// so a "User-Agent" entry wins over WithUserAgent.
func WithHeaders(headers map[string]string) HTTPFetcherOption {
	return func(f *HTTPFetcher) {
		for k, v := range headers {
			f.headers[k] = v
		}
	}
}

// NewHTTPFetcher creates an HTTPFetcher.
func NewHTTPFetcher(opts ...HTTPFetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:      &http.Client{Timeout: DefaultFetchTimeout},
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		headers:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch performs a GET request. Transport errors leave StatusCode at 0;
// non-2xx responses keep the status code and fail with ErrHTTPStatus.
// Links are extracted only from text/html responses and are resolved
// against the final URL after redirects.
func (f *HTTPFetcher) Fetch(ctx context.Context, req FetchRequest) model.FetchResponse {
	client := f.client
	if req.Proxy != nil {
		if f.clients == nil {
			return model.FetchResponse{Err: ErrNoClientProvider}
		}
		c, err := f.clients.HTTPClient(*req.Proxy)
		if err != nil {
			return model.FetchResponse{Err: err}
		}
		client = c
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return model.FetchResponse{Err: err}
	}
	httpReq.Header.Set("User-Agent", f.userAgent)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.5")
	for k, v := range f.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return model.FetchResponse{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return model.FetchResponse{StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.FetchResponse{
			StatusCode: resp.StatusCode,
			Content:    model.TruncateContent(string(body)),
			Err:        fmt.Errorf("%w: %d", ErrHTTPStatus, resp.StatusCode),
		}
	}

	out := model.FetchResponse{
		Success:    true,
		StatusCode: resp.StatusCode,
		Content:    model.TruncateContent(string(body)),
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		base := req.URL
		if resp.Request != nil && resp.Request.URL != nil {
			base = resp.Request.URL.String()
		}
		parser, err := NewParser(base)
		if err == nil {
			if parsed, err := parser.Parse(bytes.NewReader(body)); err == nil {
				out.Title = parsed.Title
				if !parsed.NoFollow {
					out.Links = parsed.Links
				}
			}
		}
	}

	return out
}
