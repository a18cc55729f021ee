package filter

import (
	"fmt"
	"strings"
)

// Unbounded can be passed as a maximum to leave a range open-ended.
const Unbounded = -1

// DepthFilter accepts links whose traversal depth lies in [min, max].
type DepthFilter struct {
	min int
	max int
}

// NewDepthFilter creates a DepthFilter. Pass Unbounded as max for no upper bound.
func NewDepthFilter(minDepth, maxDepth int) (*DepthFilter, error) {
	if err := checkRange(minDepth, maxDepth); err != nil {
		return nil, err
	}
	return &DepthFilter{min: minDepth, max: maxDepth}, nil
}

// ShouldCrawl checks fctx.Depth against the range.
func (f *DepthFilter) ShouldCrawl(_ string, fctx Context) bool {
	return inRange(fctx.Depth, f.min, f.max)
}

// Name returns "depth".
func (f *DepthFilter) Name() string {
	return "depth"
}

// PathDepthFilter accepts URLs whose path has between min and max
// non-empty segments. "/" has zero segments, "/a/b/" has two.
type PathDepthFilter struct {
	min int
	max int
}

// NewPathDepthFilter creates a PathDepthFilter. Pass Unbounded as max for no
// upper bound.
func NewPathDepthFilter(minSegments, maxSegments int) (*PathDepthFilter, error) {
	if err := checkRange(minSegments, maxSegments); err != nil {
		return nil, err
	}
	return &PathDepthFilter{min: minSegments, max: maxSegments}, nil
}

// ShouldCrawl counts the path segments of rawURL.
func (f *PathDepthFilter) ShouldCrawl(rawURL string, _ Context) bool {
	u, ok := parseHTTPURL(rawURL)
	if !ok {
		return false
	}
	return inRange(PathSegments(u.Path), f.min, f.max)
}

// Name returns "path_depth".
func (f *PathDepthFilter) Name() string {
	return "path_depth"
}

// PathSegments returns the number of non-empty segments in p.
func PathSegments(p string) int {
	n := 0
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			n++
		}
	}
	return n
}

func checkRange(minValue, maxValue int) error {
	if minValue < 0 || (maxValue != Unbounded && maxValue < minValue) {
		return fmt.Errorf("%w: [%d, %d]", ErrInvalidRange, minValue, maxValue)
	}
	return nil
}

func inRange(v, minValue, maxValue int) bool {
	if v < minValue {
		return false
	}
	return maxValue == Unbounded || v <= maxValue
}
