package server

import (
	"context"
	"encoding/json"
	"sync"

	mcperrors "github.com/mcpwire/mcpwire/pkg/errors"
	"github.com/mcpwire/mcpwire/pkg/logging"
	"github.com/mcpwire/mcpwire/pkg/observability"
	"github.com/mcpwire/mcpwire/pkg/pagination"
	"github.com/mcpwire/mcpwire/pkg/protocol"
	"github.com/mcpwire/mcpwire/pkg/session"
	"github.com/mcpwire/mcpwire/pkg/transport"
)

// ToolFunc executes one tool call. Progress is non-nil when the caller
// supplied a progress token; handlers stream progress through it and watch
// ctx for cooperative cancellation.
type ToolFunc func(ctx context.Context, args json.RawMessage, progress *session.ProgressReporter) (*protocol.CallToolResult, error)

// PromptFunc expands one prompt with the given arguments.
type PromptFunc func(ctx context.Context, args map[string]string) (*protocol.GetPromptResult, error)

// ResourceReader reads the contents of one registered resource.
type ResourceReader func(ctx context.Context, uri string) ([]protocol.ResourceContents, error)

// CompletionFunc serves completion/complete requests.
type CompletionFunc func(ctx context.Context, params protocol.CompleteParams) (*protocol.CompleteResult, error)

type toolEntry struct {
	tool    protocol.Tool
	handler ToolFunc
}

type promptEntry struct {
	prompt  protocol.Prompt
	handler PromptFunc
}

type resourceEntry struct {
	resource protocol.Resource
	reader   ResourceReader
}

// Server is the high-level server peer. It owns the tool, prompt and
// resource registries and serves one Session per connected transport; all
// sessions see the same registries and every key-set mutation is broadcast
// to all of them.
type Server struct {
	info         protocol.Implementation
	instructions string
	pageSize     int

	logger  logging.Logger
	metrics observability.Metrics
	tracer  *observability.Tracer

	broadcaster *broadcaster
	tools       *registry[toolEntry]
	prompts     *registry[promptEntry]
	resources   *registry[resourceEntry]
	templates   *registry[protocol.ResourceTemplate]

	completionMu sync.RWMutex
	completion   CompletionFunc

	rootsChanged func(*session.Session)
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the diagnostic logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics sets the metrics sink shared by all sessions.
func WithMetrics(m observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithTracer sets the tracer shared by all sessions.
func WithTracer(t *observability.Tracer) Option {
	return func(s *Server) { s.tracer = t }
}

// WithInstructions sets the instructions text returned from initialize.
func WithInstructions(instructions string) Option {
	return func(s *Server) { s.instructions = instructions }
}

// WithPageSize sets the page size for the listing endpoints, clamped to the
// pagination limits.
func WithPageSize(size int) Option {
	return func(s *Server) { s.pageSize = pagination.ClampPageSize(size) }
}

// WithCompletionFunc sets the handler for completion/complete. Without one,
// completions resolve to an empty value list.
func WithCompletionFunc(fn CompletionFunc) Option {
	return func(s *Server) { s.completion = fn }
}

// WithRootsChangedCallback registers a callback invoked when a client
// announces notifications/roots/list_changed; the server may re-query
// roots/list on the same session.
func WithRootsChangedCallback(fn func(*session.Session)) Option {
	return func(s *Server) { s.rootsChanged = fn }
}

// New creates a Server identified by info.
func New(info protocol.Implementation, opts ...Option) *Server {
	s := &Server{
		info:     info,
		pageSize: pagination.DefaultPageSize,
		logger:   logging.NewNop(),
		metrics:  observability.NewNopMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.broadcaster = newBroadcaster(s.logger)
	s.tools = newRegistry[toolEntry]("tools", func() {
		s.broadcaster.broadcast(protocol.NotificationToolsListChanged, nil)
	})
	s.prompts = newRegistry[promptEntry]("prompts", func() {
		s.broadcaster.broadcast(protocol.NotificationPromptsListChanged, nil)
	})
	s.resources = newRegistry[resourceEntry]("resources", func() {
		s.broadcaster.broadcast(protocol.NotificationResourcesListChanged, nil)
	})
	s.templates = newRegistry[protocol.ResourceTemplate]("resource_templates", func() {
		s.broadcaster.broadcast(protocol.NotificationResourcesListChanged, nil)
	})
	return s
}

// AddTool registers or replaces a tool. Adding a new name broadcasts
// notifications/tools/list_changed; replacing an existing name does not.
func (s *Server) AddTool(tool protocol.Tool, handler ToolFunc) {
	s.tools.set(tool.Name, toolEntry{tool: tool, handler: handler})
}

// RemoveTool unregisters a tool, broadcasting when the name existed.
func (s *Server) RemoveTool(name string) {
	s.tools.remove(name)
}

// AddPrompt registers or replaces a prompt.
func (s *Server) AddPrompt(prompt protocol.Prompt, handler PromptFunc) {
	s.prompts.set(prompt.Name, promptEntry{prompt: prompt, handler: handler})
}

// RemovePrompt unregisters a prompt.
func (s *Server) RemovePrompt(name string) {
	s.prompts.remove(name)
}

// AddResource registers or replaces a readable resource keyed by URI.
func (s *Server) AddResource(resource protocol.Resource, reader ResourceReader) {
	s.resources.set(resource.URI, resourceEntry{resource: resource, reader: reader})
}

// RemoveResource unregisters a resource.
func (s *Server) RemoveResource(uri string) {
	s.resources.remove(uri)
}

// AddResourceTemplate registers or replaces a resource template keyed by
// its URI template.
func (s *Server) AddResourceTemplate(template protocol.ResourceTemplate) {
	s.templates.set(template.URITemplate, template)
}

// RemoveResourceTemplate unregisters a resource template.
func (s *Server) RemoveResourceTemplate(uriTemplate string) {
	s.templates.remove(uriTemplate)
}

// NotifyResourceUpdated announces a content change for a resource. Each
// subscribed session receives notifications/resources/updated; sessions
// without a subscription receive nothing.
func (s *Server) NotifyResourceUpdated(uri string) {
	s.broadcaster.resourceUpdated(uri)
}

// LogMessage emits a protocol log message to every connected session; each
// session applies its own severity threshold.
func (s *Server) LogMessage(level protocol.LogLevel, logger string, data any) {
	for _, sess := range s.broadcaster.snapshot() {
		if err := sess.LogMessage(level, logger, data); err != nil {
			s.logger.Warn("failed to emit log message",
				logging.String("session", sess.ID()),
				logging.ErrorField(err))
		}
	}
}

// Serve runs one session over the transport and blocks until it ends. Call
// it once per connection, typically one goroutine each.
func (s *Server) Serve(ctx context.Context, t transport.Transport) error {
	return s.NewSession(t).Start(ctx)
}

// NewSession builds a session over the transport with the server's full
// method surface registered, without starting it. The session joins the
// broadcast set immediately, so registry mutations made before the session
// loop runs are still announced to it; it leaves the set when it closes.
// Most callers want Serve; NewSession exists for embedders that drive the
// session lifecycle themselves.
func (s *Server) NewSession(t transport.Transport) *session.Session {
	sess := session.New(t,
		session.WithLogger(s.logger),
		session.WithMetrics(s.metrics),
		session.WithTracer(s.tracer),
	)
	s.registerHandlers(sess)
	s.broadcaster.attach(sess)
	sess.OnClose(func() { s.broadcaster.detach(sess) })
	return sess
}

// ListRoots queries the client peer's root set over an established session.
func (s *Server) ListRoots(ctx context.Context, sess *session.Session) (*protocol.ListRootsResult, error) {
	raw, err := sess.Call(ctx, protocol.MethodRootsList, nil)
	if err != nil {
		return nil, err
	}
	var result protocol.ListRootsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, mcperrors.Wrap(err, mcperrors.CodeInternalError, "malformed roots/list result", mcperrors.CategoryProtocol)
	}
	return &result, nil
}

// CreateMessage asks the client peer to sample a model completion. The
// request flows server-to-client over the same session the client opened.
func (s *Server) CreateMessage(ctx context.Context, sess *session.Session, params protocol.CreateMessageParams, opts ...session.CallOption) (*protocol.CreateMessageResult, error) {
	raw, err := sess.Call(ctx, protocol.MethodSamplingCreateMessage, params, opts...)
	if err != nil {
		return nil, err
	}
	var result protocol.CreateMessageResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, mcperrors.Wrap(err, mcperrors.CodeInternalError, "malformed sampling result", mcperrors.CategoryProtocol)
	}
	return &result, nil
}

func (s *Server) capabilities() protocol.ServerCapabilities {
	return protocol.ServerCapabilities{
		Tools:       &protocol.ListChangedCapability{ListChanged: true},
		Prompts:     &protocol.ListChangedCapability{ListChanged: true},
		Resources:   &protocol.ResourcesCapability{Subscribe: true, ListChanged: true},
		Logging:     &struct{}{},
		Completions: &struct{}{},
	}
}

func (s *Server) registerHandlers(sess *session.Session) {
	sess.HandleRequest(protocol.MethodInitialize, s.handleInitialize)
	sess.HandleRequest(protocol.MethodPing, func(ctx context.Context, req *session.IncomingRequest) (any, error) {
		return struct{}{}, nil
	})

	sess.HandleRequest(protocol.MethodToolsList, s.handleToolsList)
	sess.HandleRequest(protocol.MethodToolsCall, s.handleToolsCall)
	sess.HandleRequest(protocol.MethodPromptsList, s.handlePromptsList)
	sess.HandleRequest(protocol.MethodPromptsGet, s.handlePromptsGet)
	sess.HandleRequest(protocol.MethodResourcesList, s.handleResourcesList)
	sess.HandleRequest(protocol.MethodResourcesTemplatesList, s.handleResourceTemplatesList)
	sess.HandleRequest(protocol.MethodResourcesRead, s.handleResourcesRead)
	sess.HandleRequest(protocol.MethodResourcesSubscribe, s.handleResourcesSubscribe)
	sess.HandleRequest(protocol.MethodResourcesUnsubscribe, s.handleResourcesUnsubscribe)
	sess.HandleRequest(protocol.MethodLoggingSetLevel, s.handleSetLevel)
	sess.HandleRequest(protocol.MethodCompletionComplete, s.handleComplete)

	sess.HandleNotification(protocol.NotificationInitialized, func(json.RawMessage) {
		s.logger.Debug("client initialized", logging.String("session", sess.ID()))
	})
	sess.HandleNotification(protocol.NotificationRootsListChanged, func(json.RawMessage) {
		if s.rootsChanged != nil {
			s.rootsChanged(sess)
		}
	})
}

func (s *Server) handleInitialize(ctx context.Context, req *session.IncomingRequest) (any, error) {
	var params protocol.InitializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, mcperrors.NewInvalidParams("malformed initialize params")
		}
	}
	s.logger.Info("session initializing",
		logging.String("session", req.Session.ID()),
		logging.String("client", params.ClientInfo.Name),
		logging.String("client_version", params.ClientInfo.Version),
		logging.String("protocol_version", params.ProtocolVersion))
	return protocol.InitializeResult{
		ProtocolVersion: protocol.ProtocolVersion,
		Capabilities:    s.capabilities(),
		ServerInfo:      s.info,
		Instructions:    s.instructions,
	}, nil
}

func (s *Server) handleToolsList(ctx context.Context, req *session.IncomingRequest) (any, error) {
	var params protocol.ListToolsParams
	if err := decodeParams(req.Params, &params); err != nil {
		return nil, err
	}
	entries, next, err := s.tools.page(params.Cursor, s.pageSize)
	if err != nil {
		return nil, err
	}
	result := protocol.ListToolsResult{Tools: make([]protocol.Tool, 0, len(entries))}
	for _, e := range entries {
		result.Tools = append(result.Tools, e.tool)
	}
	result.NextCursor = next
	return result, nil
}

func (s *Server) handleToolsCall(ctx context.Context, req *session.IncomingRequest) (any, error) {
	var params protocol.CallToolParams
	if err := decodeParams(req.Params, &params); err != nil {
		return nil, err
	}
	entry, ok := s.tools.get(params.Name)
	if !ok {
		return nil, mcperrors.Newf(mcperrors.CodeInvalidParams, mcperrors.CategoryValidation, "unknown tool: %s", params.Name)
	}
	result, err := entry.handler(ctx, params.Arguments, req.Progress)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result = &protocol.CallToolResult{Content: []protocol.Content{}}
	}
	return result, nil
}

func (s *Server) handlePromptsList(ctx context.Context, req *session.IncomingRequest) (any, error) {
	var params protocol.ListPromptsParams
	if err := decodeParams(req.Params, &params); err != nil {
		return nil, err
	}
	entries, next, err := s.prompts.page(params.Cursor, s.pageSize)
	if err != nil {
		return nil, err
	}
	result := protocol.ListPromptsResult{Prompts: make([]protocol.Prompt, 0, len(entries))}
	for _, e := range entries {
		result.Prompts = append(result.Prompts, e.prompt)
	}
	result.NextCursor = next
	return result, nil
}

func (s *Server) handlePromptsGet(ctx context.Context, req *session.IncomingRequest) (any, error) {
	var params protocol.GetPromptParams
	if err := decodeParams(req.Params, &params); err != nil {
		return nil, err
	}
	entry, ok := s.prompts.get(params.Name)
	if !ok {
		return nil, mcperrors.Newf(mcperrors.CodeInvalidParams, mcperrors.CategoryValidation, "unknown prompt: %s", params.Name)
	}
	return entry.handler(ctx, params.Arguments)
}

func (s *Server) handleResourcesList(ctx context.Context, req *session.IncomingRequest) (any, error) {
	var params protocol.ListResourcesParams
	if err := decodeParams(req.Params, &params); err != nil {
		return nil, err
	}
	entries, next, err := s.resources.page(params.Cursor, s.pageSize)
	if err != nil {
		return nil, err
	}
	result := protocol.ListResourcesResult{Resources: make([]protocol.Resource, 0, len(entries))}
	for _, e := range entries {
		result.Resources = append(result.Resources, e.resource)
	}
	result.NextCursor = next
	return result, nil
}

func (s *Server) handleResourceTemplatesList(ctx context.Context, req *session.IncomingRequest) (any, error) {
	var params protocol.ListResourceTemplatesParams
	if err := decodeParams(req.Params, &params); err != nil {
		return nil, err
	}
	templates, next, err := s.templates.page(params.Cursor, s.pageSize)
	if err != nil {
		return nil, err
	}
	if templates == nil {
		templates = []protocol.ResourceTemplate{}
	}
	result := protocol.ListResourceTemplatesResult{ResourceTemplates: templates}
	result.NextCursor = next
	return result, nil
}

func (s *Server) handleResourcesRead(ctx context.Context, req *session.IncomingRequest) (any, error) {
	var params protocol.ReadResourceParams
	if err := decodeParams(req.Params, &params); err != nil {
		return nil, err
	}
	entry, ok := s.resources.get(params.URI)
	if !ok {
		return nil, mcperrors.NewResourceNotFound(params.URI)
	}
	contents, err := entry.reader(ctx, params.URI)
	if err != nil {
		return nil, err
	}
	return protocol.ReadResourceResult{Contents: contents}, nil
}

func (s *Server) handleResourcesSubscribe(ctx context.Context, req *session.IncomingRequest) (any, error) {
	var params protocol.SubscribeParams
	if err := decodeParams(req.Params, &params); err != nil {
		return nil, err
	}
	if _, ok := s.resources.get(params.URI); !ok {
		return nil, mcperrors.NewResourceNotFound(params.URI)
	}
	req.Session.SubscribeResource(params.URI)
	return struct{}{}, nil
}

func (s *Server) handleResourcesUnsubscribe(ctx context.Context, req *session.IncomingRequest) (any, error) {
	var params protocol.SubscribeParams
	if err := decodeParams(req.Params, &params); err != nil {
		return nil, err
	}
	req.Session.UnsubscribeResource(params.URI)
	return struct{}{}, nil
}

func (s *Server) handleSetLevel(ctx context.Context, req *session.IncomingRequest) (any, error) {
	var params protocol.SetLevelParams
	if err := decodeParams(req.Params, &params); err != nil {
		return nil, err
	}
	if err := req.Session.SetLogThreshold(params.Level); err != nil {
		return nil, err
	}
	return struct{}{}, nil
}

func (s *Server) handleComplete(ctx context.Context, req *session.IncomingRequest) (any, error) {
	var params protocol.CompleteParams
	if err := decodeParams(req.Params, &params); err != nil {
		return nil, err
	}
	s.completionMu.RLock()
	fn := s.completion
	s.completionMu.RUnlock()
	if fn == nil {
		return protocol.CompleteResult{Completion: protocol.Completion{Values: []string{}}}, nil
	}
	return fn(ctx, params)
}

// SetCompletionFunc replaces the completion handler at runtime.
func (s *Server) SetCompletionFunc(fn CompletionFunc) {
	s.completionMu.Lock()
	s.completion = fn
	s.completionMu.Unlock()
}

func decodeParams(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return mcperrors.NewInvalidParams("malformed request params")
	}
	return nil
}
