// Package session implements the connection-scoped protocol engine: the
// request-id counter and correlation table for outbound calls, dispatch of
// inbound requests and notifications, progress observation, cooperative
// cancellation in both directions, per-session resource subscriptions, and
// the severity-gated protocol log emitter.
//
// A Session is symmetric. Client and server run the same engine over the
// same duplex transport; what differs between the two roles is only which
// methods each registers handlers for and which it calls.
package session
