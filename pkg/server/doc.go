// Package server implements the high-level server peer: tool, prompt and
// resource registries with change broadcasting, cursor-paginated listings,
// resource subscriptions, severity-gated protocol logging, and the reserved
// method surface served over one session per connected transport. Requests
// can also flow the other way, to the client, for roots and sampling.
package server
