package client

import (
	"context"
	"encoding/json"

	mcperrors "github.com/mcpwire/mcpwire/pkg/errors"
	"github.com/mcpwire/mcpwire/pkg/logging"
	"github.com/mcpwire/mcpwire/pkg/observability"
	"github.com/mcpwire/mcpwire/pkg/pagination"
	"github.com/mcpwire/mcpwire/pkg/protocol"
	"github.com/mcpwire/mcpwire/pkg/session"
	"github.com/mcpwire/mcpwire/pkg/transport"
)

// SamplingFunc serves sampling/createMessage requests issued by the server
// against this client.
type SamplingFunc func(ctx context.Context, params protocol.CreateMessageParams) (*protocol.CreateMessageResult, error)

// Client is the high-level client peer: a typed facade over one session,
// plus the client-owned root set and the sampling handler for requests
// flowing server-to-client.
type Client struct {
	sess *session.Session
	info protocol.Implementation

	logger   logging.Logger
	metrics  observability.Metrics
	tracer   *observability.Tracer
	sampling SamplingFunc

	roots *rootSet

	toolsChanged     func()
	promptsChanged   func()
	resourcesChanged func()
	resourceUpdated  func(uri string)
	logMessage       func(params protocol.LoggingMessageParams)

	serverInfo protocol.InitializeResult
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the diagnostic logger.
func WithLogger(logger logging.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTracer sets the tracer.
func WithTracer(t *observability.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// WithSamplingFunc enables sampling support. The handler serves model
// completion requests the server sends back over the session; without one
// the client advertises no sampling capability and rejects such requests.
func WithSamplingFunc(fn SamplingFunc) Option {
	return func(c *Client) { c.sampling = fn }
}

// WithToolsChangedFunc registers a callback for tools/list_changed.
func WithToolsChangedFunc(fn func()) Option {
	return func(c *Client) { c.toolsChanged = fn }
}

// WithPromptsChangedFunc registers a callback for prompts/list_changed.
func WithPromptsChangedFunc(fn func()) Option {
	return func(c *Client) { c.promptsChanged = fn }
}

// WithResourcesChangedFunc registers a callback for resources/list_changed.
func WithResourcesChangedFunc(fn func()) Option {
	return func(c *Client) { c.resourcesChanged = fn }
}

// WithResourceUpdatedFunc registers a callback for resources/updated
// notifications on subscribed resources.
func WithResourceUpdatedFunc(fn func(uri string)) Option {
	return func(c *Client) { c.resourceUpdated = fn }
}

// WithLogMessageFunc registers a callback for protocol log messages the
// server emits past this client's threshold.
func WithLogMessageFunc(fn func(params protocol.LoggingMessageParams)) Option {
	return func(c *Client) { c.logMessage = fn }
}

// New creates a Client over the transport. Call Start to begin traffic and
// Initialize to perform the handshake.
func New(t transport.Transport, info protocol.Implementation, opts ...Option) *Client {
	c := &Client{
		info:    info,
		logger:  logging.NewNop(),
		metrics: observability.NewNopMetrics(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.sess = session.New(t,
		session.WithLogger(c.logger),
		session.WithMetrics(c.metrics),
		session.WithTracer(c.tracer),
	)
	c.roots = newRootSet(c.sess)
	c.registerHandlers()
	return c
}

// Session exposes the underlying session for advanced use: raw calls,
// custom notification handlers, direct cancellation.
func (c *Client) Session() *session.Session {
	return c.sess
}

// Start runs the session until the context is cancelled or Close is called.
func (c *Client) Start(ctx context.Context) error {
	return c.sess.Start(ctx)
}

// Close tears the session down; outstanding calls settle with a
// connection-closed failure.
func (c *Client) Close() error {
	return c.sess.Close()
}

func (c *Client) registerHandlers() {
	c.sess.HandleRequest(protocol.MethodPing, func(ctx context.Context, req *session.IncomingRequest) (any, error) {
		return struct{}{}, nil
	})
	c.sess.HandleRequest(protocol.MethodRootsList, func(ctx context.Context, req *session.IncomingRequest) (any, error) {
		return protocol.ListRootsResult{Roots: c.roots.list()}, nil
	})
	if c.sampling != nil {
		c.sess.HandleRequest(protocol.MethodSamplingCreateMessage, func(ctx context.Context, req *session.IncomingRequest) (any, error) {
			var params protocol.CreateMessageParams
			if err := json.Unmarshal(req.Params, &params); err != nil {
				return nil, mcperrors.NewInvalidParams("malformed sampling params")
			}
			return c.sampling(ctx, params)
		})
	}

	c.sess.HandleNotification(protocol.NotificationToolsListChanged, func(json.RawMessage) {
		if c.toolsChanged != nil {
			c.toolsChanged()
		}
	})
	c.sess.HandleNotification(protocol.NotificationPromptsListChanged, func(json.RawMessage) {
		if c.promptsChanged != nil {
			c.promptsChanged()
		}
	})
	c.sess.HandleNotification(protocol.NotificationResourcesListChanged, func(json.RawMessage) {
		if c.resourcesChanged != nil {
			c.resourcesChanged()
		}
	})
	c.sess.HandleNotification(protocol.NotificationResourceUpdated, func(params json.RawMessage) {
		if c.resourceUpdated == nil {
			return
		}
		var up protocol.ResourceUpdatedParams
		if err := json.Unmarshal(params, &up); err != nil {
			c.logger.Warn("malformed resource update", logging.ErrorField(err))
			return
		}
		c.resourceUpdated(up.URI)
	})
	c.sess.HandleNotification(protocol.NotificationMessage, func(params json.RawMessage) {
		if c.logMessage == nil {
			return
		}
		var lm protocol.LoggingMessageParams
		if err := json.Unmarshal(params, &lm); err != nil {
			c.logger.Warn("malformed log message", logging.ErrorField(err))
			return
		}
		c.logMessage(lm)
	})
}

func (c *Client) capabilities() protocol.ClientCapabilities {
	caps := protocol.ClientCapabilities{
		Roots: &protocol.RootsCapability{ListChanged: true},
	}
	if c.sampling != nil {
		caps.Sampling = &struct{}{}
	}
	return caps
}

// Initialize performs the handshake: the initialize request followed by the
// initialized notification once the server answers.
func (c *Client) Initialize(ctx context.Context) (*protocol.InitializeResult, error) {
	var result protocol.InitializeResult
	err := c.call(ctx, protocol.MethodInitialize, protocol.InitializeParams{
		ProtocolVersion: protocol.ProtocolVersion,
		Capabilities:    c.capabilities(),
		ClientInfo:      c.info,
	}, &result)
	if err != nil {
		return nil, err
	}
	c.serverInfo = result
	if err := c.sess.Notify(protocol.NotificationInitialized, nil); err != nil {
		return nil, err
	}
	c.logger.Info("initialized",
		logging.String("server", result.ServerInfo.Name),
		logging.String("server_version", result.ServerInfo.Version))
	return &result, nil
}

// ServerInfo returns the initialize result from the last handshake.
func (c *Client) ServerInfo() protocol.InitializeResult {
	return c.serverInfo
}

// Ping checks liveness.
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, protocol.MethodPing, nil, nil)
}

// ListTools fetches one page of tools. A nil cursor in params requests the
// first page.
func (c *Client) ListTools(ctx context.Context, params protocol.ListToolsParams) (*protocol.ListToolsResult, error) {
	var result protocol.ListToolsResult
	if err := c.call(ctx, protocol.MethodToolsList, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListAllTools follows nextCursor until the listing is exhausted.
func (c *Client) ListAllTools(ctx context.Context) ([]protocol.Tool, error) {
	var tools []protocol.Tool
	collector := pagination.NewCollector()
	for !collector.Done() {
		page, err := c.ListTools(ctx, protocol.ListToolsParams{PaginatedParams: collector.NextParams()})
		if err != nil {
			return nil, err
		}
		tools = append(tools, page.Tools...)
		collector.Update(page.PaginatedResult, len(page.Tools))
	}
	return tools, nil
}

// CallTool invokes a tool. Pass session.WithProgress to observe progress
// streamed by the server and session.WithTimeout to bound the call.
func (c *Client) CallTool(ctx context.Context, name string, args any, opts ...session.CallOption) (*protocol.CallToolResult, error) {
	rawArgs, err := marshalArgs(args)
	if err != nil {
		return nil, err
	}
	var result protocol.CallToolResult
	if err := c.call(ctx, protocol.MethodToolsCall, protocol.CallToolParams{Name: name, Arguments: rawArgs}, &result, opts...); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListPrompts fetches one page of prompts.
func (c *Client) ListPrompts(ctx context.Context, params protocol.ListPromptsParams) (*protocol.ListPromptsResult, error) {
	var result protocol.ListPromptsResult
	if err := c.call(ctx, protocol.MethodPromptsList, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetPrompt expands a prompt with the given arguments.
func (c *Client) GetPrompt(ctx context.Context, name string, args map[string]string) (*protocol.GetPromptResult, error) {
	var result protocol.GetPromptResult
	if err := c.call(ctx, protocol.MethodPromptsGet, protocol.GetPromptParams{Name: name, Arguments: args}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListResources fetches one page of resources.
func (c *Client) ListResources(ctx context.Context, params protocol.ListResourcesParams) (*protocol.ListResourcesResult, error) {
	var result protocol.ListResourcesResult
	if err := c.call(ctx, protocol.MethodResourcesList, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListResourceTemplates fetches one page of resource templates.
func (c *Client) ListResourceTemplates(ctx context.Context, params protocol.ListResourceTemplatesParams) (*protocol.ListResourceTemplatesResult, error) {
	var result protocol.ListResourceTemplatesResult
	if err := c.call(ctx, protocol.MethodResourcesTemplatesList, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ReadResource reads a resource's contents by URI.
func (c *Client) ReadResource(ctx context.Context, uri string) (*protocol.ReadResourceResult, error) {
	var result protocol.ReadResourceResult
	if err := c.call(ctx, protocol.MethodResourcesRead, protocol.ReadResourceParams{URI: uri}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SubscribeResource asks the server for update notifications on a URI.
func (c *Client) SubscribeResource(ctx context.Context, uri string) error {
	return c.call(ctx, protocol.MethodResourcesSubscribe, protocol.SubscribeParams{URI: uri}, nil)
}

// UnsubscribeResource withdraws a resource subscription.
func (c *Client) UnsubscribeResource(ctx context.Context, uri string) error {
	return c.call(ctx, protocol.MethodResourcesUnsubscribe, protocol.SubscribeParams{URI: uri}, nil)
}

// Complete requests argument completions against a prompt or resource
// template reference.
func (c *Client) Complete(ctx context.Context, params protocol.CompleteParams) (*protocol.CompleteResult, error) {
	var result protocol.CompleteResult
	if err := c.call(ctx, protocol.MethodCompletionComplete, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SetLogLevel sets the server-side severity threshold for protocol log
// messages delivered to this client.
func (c *Client) SetLogLevel(ctx context.Context, level protocol.LogLevel) error {
	return c.call(ctx, protocol.MethodLoggingSetLevel, protocol.SetLevelParams{Level: level}, nil)
}

// AddRoot grants the server access to a root, announcing the change when
// the root set actually grows.
func (c *Client) AddRoot(root protocol.Root) {
	c.roots.add(root)
}

// RemoveRoot withdraws a root by URI, announcing the change when the root
// existed.
func (c *Client) RemoveRoot(uri string) {
	c.roots.remove(uri)
}

// Roots returns the current root set in URI order.
func (c *Client) Roots() []protocol.Root {
	return c.roots.list()
}

// CancelRequest cancels an outstanding call by id; see Session.CancelRequest.
func (c *Client) CancelRequest(id protocol.RequestID, reason string) bool {
	return c.sess.CancelRequest(id, reason)
}

func (c *Client) call(ctx context.Context, method string, params, out any, opts ...session.CallOption) error {
	raw, err := c.sess.Call(ctx, method, params, opts...)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return mcperrors.Wrap(err, mcperrors.CodeInternalError, "malformed "+method+" result", mcperrors.CategoryProtocol)
	}
	return nil
}

func marshalArgs(args any) (json.RawMessage, error) {
	if args == nil {
		return nil, nil
	}
	if raw, ok := args.(json.RawMessage); ok {
		return raw, nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, mcperrors.Wrap(err, mcperrors.CodeInvalidParams, "failed to marshal tool arguments", mcperrors.CategoryValidation)
	}
	return raw, nil
}
