// Package transport builds the HTTP clients used to fetch pages and resources.
//
// Every client injects the configured User-Agent, cookie and extra headers
// into each request, including redirects. Requests can be routed directly,
// through a SOCKS5 or HTTP proxy, or through an embedded Tor daemon started
// with tornago, which makes .onion pages mirrorable.
package transport
