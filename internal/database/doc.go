// Package database stores crawl runs in SQLite.
//
// RunDB keeps one row per run (strategy, start URL, state, timing and the
// run statistics as JSON) and one row per fetch attempt. Page bodies are not
// stored; the history command only needs titles, status codes and links.
//
// The driver is modernc.org/sqlite, which needs no cgo.
package database
