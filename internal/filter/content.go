package filter

import (
	"path"
	"strings"
)

// DefaultBlockedExtensions lists file extensions that never lead to crawlable
// HTML documents.
var DefaultBlockedExtensions = []string{
	// Images
	".jpg", ".jpeg", ".png", ".gif", ".bmp", ".svg", ".webp", ".ico", ".tif", ".tiff",
	// Audio and video
	".mp3", ".mp4", ".avi", ".mov", ".wmv", ".flv", ".wav", ".ogg", ".webm", ".mkv",
	// Archives and binaries
	".zip", ".tar", ".gz", ".tgz", ".rar", ".7z", ".bz2", ".exe", ".dmg", ".iso", ".bin", ".msi", ".apk",
	// Documents
	".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".odt",
	// Assets
	".css", ".js", ".woff", ".woff2", ".ttf", ".eot", ".map",
}

// ContentTypeFilter rejects URLs whose path extension is on a block list.
// Extension-less paths are always accepted.
type ContentTypeFilter struct {
	blocked map[string]struct{}
}

// NewContentTypeFilter blocks the given extensions, or DefaultBlockedExtensions
// when none are given. Extensions may be written with or without the dot.
func NewContentTypeFilter(blocked ...string) *ContentTypeFilter {
	if len(blocked) == 0 {
		blocked = DefaultBlockedExtensions
	}

	f := &ContentTypeFilter{blocked: make(map[string]struct{}, len(blocked))}
	for _, ext := range blocked {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		f.blocked[ext] = struct{}{}
	}
	return f
}

// ShouldCrawl rejects URLs whose last path segment has a blocked extension.
func (f *ContentTypeFilter) ShouldCrawl(rawURL string, _ Context) bool {
	u, ok := parseHTTPURL(rawURL)
	if !ok {
		return false
	}

	ext := strings.ToLower(path.Ext(u.Path))
	if ext == "" {
		return true
	}
	_, blocked := f.blocked[ext]
	return !blocked
}

// Name returns "content_type".
func (f *ContentTypeFilter) Name() string {
	return "content_type"
}
