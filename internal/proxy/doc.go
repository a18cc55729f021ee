// Package proxy manages a pool of egress proxies.
//
// A Manager keeps a health record per proxy (request and success counts,
// consecutive failures, decayed average latency and a healthy flag) and
// delegates the choice of proxy to a RotationStrategy:
//
//   - RoundRobin cycles over healthy proxies, or the whole pool if none is healthy
//   - Weighted samples by 0.7*successRate + 0.3/avgLatencySeconds
//   - Failover prefers the primary and moves on while it is in cooldown
//
// A proxy is marked unhealthy after MaxFailures consecutive failures and
// recovers on the next success, usually reported by the background health
// loop (RunHealthChecks). HTTP proxies are probed with a GET through the
// proxy; SOCKS5 proxies with a protocol handshake.
package proxy
