// Package client implements the high-level client peer: the initialize
// handshake, typed wrappers for the server's method surface, the
// client-owned root set, and the sampling handler for requests the server
// issues back over the same session.
package client
