package crawler

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Parser extracts the title and outgoing links of an HTML document.
type Parser struct {
	// baseURL is the URL of the page being parsed, used for resolving relative URLs.
	baseURL *url.URL
}

// ParseResult contains the information extracted from an HTML page.
type ParseResult struct {
	// Title is the page title from the <title> tag.
	Title string

	// Description is the content of <meta name="description">.
	Description string

	// Links contains absolute http(s) URLs from a, area and link rel=next/prev
	// elements in document order, without fragments and without duplicates.
	Links []string

	// NoFollow is set when <meta name="robots"> contains "nofollow".
	NoFollow bool
}

// NewParser creates a parser that resolves relative links against baseURL.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse parses HTML content. A <base href> element changes the base URL for
// the links that follow it.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{Links: make([]string, 0)}
	seen := make(map[string]struct{})
	base := p.baseURL

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if result.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					result.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "base":
				if href := getAttr(n, "href"); href != "" {
					if u, err := url.Parse(strings.TrimSpace(href)); err == nil {
						base = p.baseURL.ResolveReference(u)
					}
				}
			case "a", "area":
				p.addLink(result, seen, base, getAttr(n, "href"))
			case "link":
				rel := strings.ToLower(getAttr(n, "rel"))
				if rel == "next" || rel == "prev" {
					p.addLink(result, seen, base, getAttr(n, "href"))
				}
			case "meta":
				switch strings.ToLower(getAttr(n, "name")) {
				case "description":
					result.Description = strings.TrimSpace(getAttr(n, "content"))
				case "robots":
					if strings.Contains(strings.ToLower(getAttr(n, "content")), "nofollow") {
						result.NoFollow = true
					}
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return result, nil
}

func (p *Parser) addLink(result *ParseResult, seen map[string]struct{}, base *url.URL, href string) {
	resolved := resolveURL(base, href)
	if resolved == "" {
		return
	}
	if _, dup := seen[resolved]; dup {
		return
	}
	seen[resolved] = struct{}{}
	result.Links = append(result.Links, resolved)
}

// resolveURL resolves href against base. Non-navigational schemes, bare
// fragments and non-http(s) results yield "".
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") ||
		strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "tel:") ||
		strings.HasPrefix(lower, "data:") {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := base.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	resolved.RawFragment = ""
	return resolved.String()
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
