// Package tor runs an embedded Tor daemon as an egress path for crawling.
//
// The daemon is managed by tornago. Once bootstrapped, its SOCKS5 listener
// is exposed as a proxy.Config that is added to the proxy pool like any
// other SOCKS5 proxy, so rotation, health probing and failure accounting
// apply to it unchanged.
//
// Starting the daemon takes one to three minutes: it has to download
// directory information and build its first circuits.
package tor
