package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	// ProtocolVersion is the protocol revision spoken by this engine.
	ProtocolVersion = "2025-03-26"

	// Lifecycle methods.
	MethodInitialize = "initialize"
	MethodPing       = "ping"

	// Server feature methods.
	MethodToolsList              = "tools/list"
	MethodToolsCall              = "tools/call"
	MethodPromptsList            = "prompts/list"
	MethodPromptsGet             = "prompts/get"
	MethodResourcesList          = "resources/list"
	MethodResourcesTemplatesList = "resources/templates/list"
	MethodResourcesRead          = "resources/read"
	MethodResourcesSubscribe     = "resources/subscribe"
	MethodResourcesUnsubscribe   = "resources/unsubscribe"
	MethodCompletionComplete     = "completion/complete"
	MethodLoggingSetLevel        = "logging/setLevel"

	// Client feature methods (issued by the server against the client).
	MethodRootsList             = "roots/list"
	MethodSamplingCreateMessage = "sampling/createMessage"

	// Notification methods.
	NotificationInitialized          = "notifications/initialized"
	NotificationProgress             = "notifications/progress"
	NotificationCancelled            = "notifications/cancelled"
	NotificationMessage              = "notifications/message"
	NotificationToolsListChanged     = "notifications/tools/list_changed"
	NotificationPromptsListChanged   = "notifications/prompts/list_changed"
	NotificationResourcesListChanged = "notifications/resources/list_changed"
	NotificationResourceUpdated      = "notifications/resources/updated"
	NotificationRootsListChanged     = "notifications/roots/list_changed"
)

// ProgressToken is the caller-chosen opaque value that threads progress
// notifications back to the originating request. Like a request id it is a
// number or a string on the wire and the representation is preserved.
type ProgressToken struct {
	value any // nil, int64, or string
}

// NewIntToken creates a numeric progress token.
func NewIntToken(n int64) ProgressToken {
	return ProgressToken{value: n}
}

// NewStringToken creates a string progress token.
func NewStringToken(s string) ProgressToken {
	return ProgressToken{value: s}
}

// IsValid reports whether the token carries a value.
func (t ProgressToken) IsValid() bool {
	return t.value != nil
}

// Key returns a canonical map key; numeric and string tokens never collide.
func (t ProgressToken) Key() string {
	switch v := t.value.(type) {
	case int64:
		return fmt.Sprintf("n:%d", v)
	case string:
		return "s:" + v
	default:
		return ""
	}
}

// String returns the token as it would appear on the wire, for logging.
func (t ProgressToken) String() string {
	switch v := t.value.(type) {
	case int64:
		return fmt.Sprintf("%d", v)
	case string:
		return v
	default:
		return "<none>"
	}
}

// MarshalJSON implements json.Marshaler.
func (t ProgressToken) MarshalJSON() ([]byte, error) {
	if t.value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(t.value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *ProgressToken) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.value = nil
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
		t.value = v
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return fmt.Errorf("progress token must be an integer or string: %q", v.String())
		}
		t.value = n
	default:
		return fmt.Errorf("progress token must be a number or string, got %T", raw)
	}
	return nil
}

// ParamsMeta is the optional `_meta` member of request params. It carries
// the progress token for long-running operations.
type ParamsMeta struct {
	ProgressToken ProgressToken `json:"progressToken,omitempty"`
}

// InjectMeta marshals params and sets its `_meta` member. Params must
// marshal to a JSON object (or be nil, in which case an object holding only
// `_meta` is produced).
func InjectMeta(params any, meta *ParamsMeta) (json.RawMessage, error) {
	obj := map[string]json.RawMessage{}
	if params != nil {
		raw, err := marshalOptional(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("params must be a JSON object to carry _meta: %w", err)
		}
	}
	metaRaw, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	obj["_meta"] = metaRaw
	return json.Marshal(obj)
}

// ExtractMeta pulls the `_meta` member out of raw request params, if
// present. Missing or non-object params yield a nil meta, not an error:
// metadata is always optional.
func ExtractMeta(params json.RawMessage) *ParamsMeta {
	if len(params) == 0 {
		return nil
	}
	var probe struct {
		Meta *ParamsMeta `json:"_meta"`
	}
	if err := json.Unmarshal(params, &probe); err != nil {
		return nil
	}
	return probe.Meta
}

// ProgressParams is the payload of a notifications/progress notification.
type ProgressParams struct {
	ProgressToken ProgressToken `json:"progressToken"`
	Progress      float64       `json:"progress"`
	Total         *float64      `json:"total,omitempty"`
	Message       string        `json:"message,omitempty"`
}

// CancelledParams is the payload of a notifications/cancelled notification.
type CancelledParams struct {
	RequestID RequestID `json:"requestId"`
	Reason    string    `json:"reason,omitempty"`
}

// LoggingMessageParams is the payload of a notifications/message
// notification. Data is arbitrary structured content.
type LoggingMessageParams struct {
	Level  LogLevel        `json:"level"`
	Logger string          `json:"logger,omitempty"`
	Data   json.RawMessage `json:"data"`
}

// ResourceUpdatedParams is the payload of a notifications/resources/updated
// notification.
type ResourceUpdatedParams struct {
	URI string `json:"uri"`
}

// SetLevelParams is the payload of a logging/setLevel request.
type SetLevelParams struct {
	Level LogLevel `json:"level"`
}

// SubscribeParams is the payload of resources/subscribe and
// resources/unsubscribe requests.
type SubscribeParams struct {
	URI string `json:"uri"`
}

// Implementation identifies a peer.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeParams is the payload of the initialize request.
type InitializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      Implementation     `json:"clientInfo"`
}

// InitializeResult is the response to the initialize request.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Implementation     `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}

// ClientCapabilities advertises what the client peer supports.
type ClientCapabilities struct {
	Roots    *RootsCapability `json:"roots,omitempty"`
	Sampling *struct{}        `json:"sampling,omitempty"`
}

// RootsCapability describes the client's roots support.
type RootsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ServerCapabilities advertises what the server peer supports.
type ServerCapabilities struct {
	Tools       *ListChangedCapability `json:"tools,omitempty"`
	Prompts     *ListChangedCapability `json:"prompts,omitempty"`
	Resources   *ResourcesCapability   `json:"resources,omitempty"`
	Logging     *struct{}              `json:"logging,omitempty"`
	Completions *struct{}              `json:"completions,omitempty"`
}

// ListChangedCapability describes a registry that announces mutations.
type ListChangedCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ResourcesCapability describes the server's resources support.
type ResourcesCapability struct {
	Subscribe   bool `json:"subscribe,omitempty"`
	ListChanged bool `json:"listChanged,omitempty"`
}
