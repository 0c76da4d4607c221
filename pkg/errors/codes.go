package errors

// JSON-RPC 2.0 standard error codes.
const (
	// CodeParseError indicates invalid JSON was received.
	CodeParseError int = -32700

	// CodeInvalidRequest indicates the payload is not a valid request object.
	CodeInvalidRequest int = -32600

	// CodeMethodNotFound indicates the method does not exist.
	CodeMethodNotFound int = -32601

	// CodeInvalidParams indicates invalid method parameters.
	CodeInvalidParams int = -32602

	// CodeInternalError indicates an internal JSON-RPC error.
	CodeInternalError int = -32603
)

// Engine-specific error codes. Small negative integers in the
// implementation-defined range; they pass through to the wire unchanged.
const (
	// CodeResourceNotFound indicates a requested resource was not found.
	CodeResourceNotFound int = -32002

	// CodeOperationCancelled indicates the operation was cancelled by the
	// caller before a terminal message arrived.
	CodeOperationCancelled int = -32800

	// CodeConnectionClosed indicates the session's channel closed while
	// requests were outstanding.
	CodeConnectionClosed int = -32801

	// CodeInvalidCursor indicates a pagination cursor from an unrelated
	// query, or one the listing cannot decode.
	CodeInvalidCursor int = -32802
)
