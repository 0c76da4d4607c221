// Package protocol defines the wire envelopes and message types exchanged
// between peers: JSON-RPC 2.0 requests, responses, errors and notifications,
// the reserved MCP method surface, progress and cancellation payloads, the
// eight-level log severity order, and the opaque pagination cursor
// convention. It performs no I/O; higher layers serialize these types onto a
// duplex transport.
package protocol
