package tor

import "errors"

var (
	// ErrNotRunning is returned when the embedded Tor daemon has not been
	// started or was stopped.
	ErrNotRunning = errors.New("embedded Tor daemon is not running")

	// ErrInvalidSocksAddress is returned when the daemon reports a SOCKS
	// address that is not host:port.
	ErrInvalidSocksAddress = errors.New("invalid SOCKS address: expected host:port")
)
