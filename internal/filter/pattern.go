package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// URLPatternFilter accepts or rejects URLs by glob patterns.
//
// Patterns use shell glob syntax: "*" matches any run of characters
// (including "/"), "?" matches one character and "[...]" is a character
// class. A pattern matches when it matches either the full URL or its path,
// so both "*/blog/*" and "/admin/*" behave as expected.
type URLPatternFilter struct {
	include []*regexp.Regexp
	exclude []*regexp.Regexp
}

// NewURLPatternFilter compiles include and exclude globs.
// An error wrapping ErrInvalidPattern is returned for malformed patterns so
// that bad configuration fails before any fetch is issued.
func NewURLPatternFilter(include, exclude []string) (*URLPatternFilter, error) {
	f := &URLPatternFilter{}

	for _, p := range include {
		re, err := CompileGlob(p)
		if err != nil {
			return nil, err
		}
		f.include = append(f.include, re)
	}
	for _, p := range exclude {
		re, err := CompileGlob(p)
		if err != nil {
			return nil, err
		}
		f.exclude = append(f.exclude, re)
	}

	return f, nil
}

// ShouldCrawl rejects URLs matching any exclude pattern, then requires a
// match against at least one include pattern when include patterns exist.
func (f *URLPatternFilter) ShouldCrawl(rawURL string, _ Context) bool {
	u, ok := parseHTTPURL(rawURL)
	if !ok {
		return false
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	full := u.String()

	for _, re := range f.exclude {
		if re.MatchString(full) || re.MatchString(path) {
			return false
		}
	}

	if len(f.include) == 0 {
		return true
	}
	for _, re := range f.include {
		if re.MatchString(full) || re.MatchString(path) {
			return true
		}
	}
	return false
}

// Name returns "url_pattern".
func (f *URLPatternFilter) Name() string {
	return "url_pattern"
}

// CompileGlob translates a glob pattern into an anchored regular expression.
func CompileGlob(pattern string) (*regexp.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("%w: empty pattern", ErrInvalidPattern)
	}

	var sb strings.Builder
	sb.WriteString("^")

	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch r {
		case '*':
			// "**" and "*" are equivalent here.
			for i+1 < len(runes) && runes[i+1] == '*' {
				i++
			}
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		case '[':
			end := classEnd(runes, i)
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated character class in %q", ErrInvalidPattern, pattern)
			}
			class := string(runes[i+1 : end])
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			sb.WriteString("[" + strings.ReplaceAll(class, `\`, `\\`) + "]")
			i = end
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}

	sb.WriteString("$")

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err)
	}
	return re, nil
}

// classEnd returns the index of the "]" closing the class opened at start,
// or -1. A "]" immediately after "[" or "[!" is a literal.
func classEnd(runes []rune, start int) int {
	j := start + 1
	if j < len(runes) && runes[j] == '!' {
		j++
	}
	if j < len(runes) && runes[j] == ']' {
		j++
	}
	for ; j < len(runes); j++ {
		if runes[j] == ']' {
			return j
		}
	}
	return -1
}
