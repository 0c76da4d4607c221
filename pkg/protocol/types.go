package protocol

import "encoding/json"

// Cursor is an opaque pagination token. A nil *Cursor input means "first
// page" and is wire-distinct from a present empty cursor; the engine never
// inspects cursor contents.
type Cursor = string

// PaginatedParams is embedded by listing request params. Cursor is a
// pointer so that an omitted cursor and an empty-string cursor serialize
// differently on the wire.
type PaginatedParams struct {
	Cursor *Cursor `json:"cursor,omitempty"`
}

// PaginatedResult is embedded by listing results. An empty NextCursor means
// the listing is exhausted and is omitted from the wire.
type PaginatedResult struct {
	NextCursor Cursor `json:"nextCursor,omitempty"`
}

// Tool describes a callable capability exposed by a server. InputSchema is
// opaque to the engine.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// Prompt describes a named prompt template.
type Prompt struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

// PromptArgument describes one argument accepted by a prompt.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// Resource describes a readable resource identified by URI.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourceTemplate describes a parameterized family of resources.
type ResourceTemplate struct {
	URITemplate string `json:"uriTemplate"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// Root describes a directory or file the client grants the server access to.
type Root struct {
	URI  string `json:"uri"`
	Name string `json:"name,omitempty"`
}

// Content is one element of a tool or prompt result. Only the fields
// matching Type are populated; the engine treats the payload as opaque.
type Content struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	Data     string          `json:"data,omitempty"`
	MimeType string          `json:"mimeType,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
}

// TextContent builds a text content element.
func TextContent(text string) Content {
	return Content{Type: "text", Text: text}
}

// ListToolsParams is the payload of a tools/list request.
type ListToolsParams struct {
	PaginatedParams
}

// ListToolsResult is the response to tools/list.
type ListToolsResult struct {
	PaginatedResult
	Tools []Tool `json:"tools"`
}

// CallToolParams is the payload of a tools/call request.
type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// CallToolResult is the response to tools/call.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// ListPromptsParams is the payload of a prompts/list request.
type ListPromptsParams struct {
	PaginatedParams
}

// ListPromptsResult is the response to prompts/list.
type ListPromptsResult struct {
	PaginatedResult
	Prompts []Prompt `json:"prompts"`
}

// GetPromptParams is the payload of a prompts/get request.
type GetPromptParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments,omitempty"`
}

// PromptMessage is one message of an expanded prompt.
type PromptMessage struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

// GetPromptResult is the response to prompts/get.
type GetPromptResult struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}

// ListResourcesParams is the payload of a resources/list request.
type ListResourcesParams struct {
	PaginatedParams
}

// ListResourcesResult is the response to resources/list.
type ListResourcesResult struct {
	PaginatedResult
	Resources []Resource `json:"resources"`
}

// ListResourceTemplatesParams is the payload of resources/templates/list.
type ListResourceTemplatesParams struct {
	PaginatedParams
}

// ListResourceTemplatesResult is the response to resources/templates/list.
type ListResourceTemplatesResult struct {
	PaginatedResult
	ResourceTemplates []ResourceTemplate `json:"resourceTemplates"`
}

// ReadResourceParams is the payload of a resources/read request.
type ReadResourceParams struct {
	URI string `json:"uri"`
}

// ResourceContents is one piece of resource content returned by
// resources/read.
type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// ReadResourceResult is the response to resources/read.
type ReadResourceResult struct {
	Contents []ResourceContents `json:"contents"`
}

// ListRootsResult is the response to roots/list (issued by the server
// against the client; the request has no parameters).
type ListRootsResult struct {
	Roots []Root `json:"roots"`
}

// SamplingMessage is one message of a sampling conversation.
type SamplingMessage struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

// CreateMessageParams is the payload of a sampling/createMessage request.
// Model preferences and hints are opaque to the engine.
type CreateMessageParams struct {
	Messages      []SamplingMessage `json:"messages"`
	SystemPrompt  string            `json:"systemPrompt,omitempty"`
	MaxTokens     int               `json:"maxTokens,omitempty"`
	Temperature   *float64          `json:"temperature,omitempty"`
	StopSequences []string          `json:"stopSequences,omitempty"`
	Metadata      json.RawMessage   `json:"metadata,omitempty"`
}

// CreateMessageResult is the response to sampling/createMessage.
type CreateMessageResult struct {
	Role       string  `json:"role"`
	Content    Content `json:"content"`
	Model      string  `json:"model,omitempty"`
	StopReason string  `json:"stopReason,omitempty"`
}

// CompletionReference identifies what a completion request completes
// against: a prompt ("ref/prompt") or a resource template ("ref/resource").
type CompletionReference struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
	URI  string `json:"uri,omitempty"`
}

// CompletionArgument is the argument being completed.
type CompletionArgument struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CompleteParams is the payload of a completion/complete request.
type CompleteParams struct {
	Ref      CompletionReference `json:"ref"`
	Argument CompletionArgument  `json:"argument"`
}

// Completion carries completion values for one argument.
type Completion struct {
	Values  []string `json:"values"`
	Total   int      `json:"total,omitempty"`
	HasMore bool     `json:"hasMore,omitempty"`
}

// CompleteResult is the response to completion/complete.
type CompleteResult struct {
	Completion Completion `json:"completion"`
}
