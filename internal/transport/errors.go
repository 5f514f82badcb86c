package transport

import "errors"

var (
	// ErrUnsupportedProxy is returned for proxy URLs with an unknown scheme.
	ErrUnsupportedProxy = errors.New("unsupported proxy scheme: use socks5, socks5h, http or https")

	// ErrTorNotRunning is returned when a client is requested from a stopped EmbeddedTor.
	ErrTorNotRunning = errors.New("embedded Tor daemon is not running")
)
