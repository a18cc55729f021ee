// Package model defines the core data structures shared across deepcrawl.
//
// This package contains the following main types:
//   - CrawlResult: one fetch attempt, successful or not
//   - FetchResponse: what a fetch backend reports for a URL
//   - CrawlRun: one strategy invocation with its ordered results
//   - RunStats: observability counters for a run, including limiter,
//     dispatcher and proxy snapshots
//
// Models live in their own package so that the crawler, database and report
// packages can share them without import cycles. All types serialize to JSON
// for reports and database storage.
package model
