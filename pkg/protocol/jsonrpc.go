package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	// JSONRPCVersion is the supported JSON-RPC version.
	JSONRPCVersion = "2.0"
)

// ErrorCode represents standard JSON-RPC 2.0 error codes.
type ErrorCode int

// Standard error codes as per the JSON-RPC 2.0 specification.
const (
	ParseError     ErrorCode = -32700
	InvalidRequest ErrorCode = -32600
	MethodNotFound ErrorCode = -32601
	InvalidParams  ErrorCode = -32602
	InternalError  ErrorCode = -32603
)

// RequestID is a JSON-RPC request identifier. The wire value is either a
// number or a string; the original representation is preserved across a
// decode/encode round trip so that a peer sees exactly the id it sent.
type RequestID struct {
	value any // nil, int64, or string
}

// NewIntID creates a numeric request id.
func NewIntID(n int64) RequestID {
	return RequestID{value: n}
}

// NewStringID creates a string request id.
func NewStringID(s string) RequestID {
	return RequestID{value: s}
}

// IsValid reports whether the id carries a value. A request with an invalid
// id is not correlatable and must be rejected at the envelope layer.
func (id RequestID) IsValid() bool {
	return id.value != nil
}

// Key returns a canonical map key for the id. Numeric and string ids never
// collide ("42" and 42 produce distinct keys).
func (id RequestID) Key() string {
	switch v := id.value.(type) {
	case int64:
		return fmt.Sprintf("n:%d", v)
	case string:
		return "s:" + v
	default:
		return ""
	}
}

// String returns the id as it would appear on the wire, for logging.
func (id RequestID) String() string {
	switch v := id.value.(type) {
	case int64:
		return fmt.Sprintf("%d", v)
	case string:
		return v
	default:
		return "<none>"
	}
}

// MarshalJSON implements json.Marshaler.
func (id RequestID) MarshalJSON() ([]byte, error) {
	if id.value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(id.value)
}

// UnmarshalJSON implements json.Unmarshaler. Accepts numbers and strings;
// fractional numeric ids are rejected.
func (id *RequestID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		id.value = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		id.value = v
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return fmt.Errorf("request id must be an integer or string: %q", v.String())
		}
		id.value = n
	default:
		return fmt.Errorf("request id must be a number or string, got %T", raw)
	}
	return nil
}

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      RequestID       `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// NewRequest creates a JSON-RPC 2.0 request, marshaling params if non-nil.
func NewRequest(id RequestID, method string, params any) (*Request, error) {
	paramsJSON, err := marshalOptional(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}
	return &Request{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Method:  method,
		Params:  paramsJSON,
	}, nil
}

// Validate checks the required envelope fields of a request.
func (r *Request) Validate() error {
	if r.JSONRPC != JSONRPCVersion {
		return fmt.Errorf("unsupported jsonrpc version %q", r.JSONRPC)
	}
	if !r.ID.IsValid() {
		return fmt.Errorf("request is missing an id")
	}
	if r.Method == "" {
		return fmt.Errorf("request is missing a method")
	}
	return nil
}

// Response represents a JSON-RPC 2.0 response, successful or failed.
// Exactly one of Result and Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      RequestID       `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// NewResponse creates a JSON-RPC 2.0 success response.
func NewResponse(id RequestID, result any) (*Response, error) {
	resultJSON, err := marshalOptional(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	if resultJSON == nil {
		// A success response must carry a result member, even if empty.
		resultJSON = json.RawMessage("{}")
	}
	return &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  resultJSON,
	}, nil
}

// NewErrorResponse creates a JSON-RPC 2.0 error response. The code and
// message pass through to the wire unchanged.
func NewErrorResponse(id RequestID, code ErrorCode, message string, data any) (*Response, error) {
	var dataJSON json.RawMessage
	if data != nil {
		var err error
		dataJSON, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal error data: %w", err)
		}
	}
	return &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error: &Error{
			Code:    code,
			Message: message,
			Data:    dataJSON,
		},
	}, nil
}

// Validate checks the required envelope fields of a response.
func (r *Response) Validate() error {
	if r.JSONRPC != JSONRPCVersion {
		return fmt.Errorf("unsupported jsonrpc version %q", r.JSONRPC)
	}
	if !r.ID.IsValid() {
		return fmt.Errorf("response is missing an id")
	}
	if r.Result == nil && r.Error == nil {
		return fmt.Errorf("response carries neither result nor error")
	}
	return nil
}

// Notification represents a JSON-RPC 2.0 notification. It never carries an
// id and is never correlated to a pending request.
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// NewNotification creates a JSON-RPC 2.0 notification.
func NewNotification(method string, params any) (*Notification, error) {
	paramsJSON, err := marshalOptional(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}
	return &Notification{
		JSONRPC: JSONRPCVersion,
		Method:  method,
		Params:  paramsJSON,
	}, nil
}

// Error represents a JSON-RPC 2.0 error object.
type Error struct {
	Code    ErrorCode       `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface so a wire error can surface directly
// to a caller.
func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// MessageKind classifies a decoded envelope.
type MessageKind int

const (
	KindInvalid MessageKind = iota
	KindRequest
	KindResponse
	KindNotification
)

// envelope is the superset shape used to classify incoming messages before
// committing to a concrete type.
type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Classify inspects raw message bytes and reports which envelope shape they
// carry. Malformed JSON or an envelope matching no shape yields KindInvalid
// with a descriptive error.
func Classify(data []byte) (MessageKind, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return KindInvalid, fmt.Errorf("malformed envelope: %w", err)
	}
	if env.JSONRPC != JSONRPCVersion {
		return KindInvalid, fmt.Errorf("unsupported jsonrpc version %q", env.JSONRPC)
	}
	hasID := len(env.ID) > 0 && !bytes.Equal(env.ID, []byte("null"))
	switch {
	case hasID && env.Method != "":
		return KindRequest, nil
	case hasID && (env.Result != nil || env.Error != nil):
		return KindResponse, nil
	case !hasID && env.Method != "":
		return KindNotification, nil
	default:
		return KindInvalid, fmt.Errorf("envelope matches no message shape")
	}
}

func marshalOptional(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(v)
}
