package proxy

import "errors"

var (
	// ErrInvalidProxy is returned when a proxy has no host or an invalid port.
	ErrInvalidProxy = errors.New("invalid proxy: expected host and port between 1 and 65535")

	// ErrUnsupportedProtocol is returned for protocols other than http, https and socks5.
	ErrUnsupportedProtocol = errors.New("unsupported proxy protocol")

	// ErrDuplicateProxy is returned when the same address is added twice.
	ErrDuplicateProxy = errors.New("duplicate proxy address")

	// ErrUnknownStrategy is returned for an unrecognized rotation strategy name.
	ErrUnknownStrategy = errors.New("unknown rotation strategy")

	// ErrInvalidMaxFailures is returned when max failures is not positive.
	ErrInvalidMaxFailures = errors.New("max failures must be greater than 0")

	// ErrNotSOCKS5 is returned by the SOCKS5 probe when the peer does not
	// speak SOCKS5 or rejects every offered authentication method.
	ErrNotSOCKS5 = errors.New("proxy did not complete a SOCKS5 handshake")

	// ErrProbeStatus is returned by the HTTP probe for a 5xx response.
	ErrProbeStatus = errors.New("probe returned a server error status")
)
