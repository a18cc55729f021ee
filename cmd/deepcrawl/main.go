// Package main provides the entry point for the deepcrawl CLI.
//
// deepcrawl crawls websites with a breadth-first, depth-first or
// best-first traversal under shared rate limiting, proxy rotation and
// load-aware concurrency, and keeps every run in a local database.
//
// Usage:
//
//	deepcrawl crawl https://example.com/
//	deepcrawl crawl --strategy best-first --keywords guide,api https://example.com/
//	deepcrawl history
//
// See --help for all available options.
package main

func main() {
	Execute()
}
