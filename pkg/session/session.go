package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mcpwire/mcpwire/pkg/logging"
	"github.com/mcpwire/mcpwire/pkg/observability"
	"github.com/mcpwire/mcpwire/pkg/protocol"
	"github.com/mcpwire/mcpwire/pkg/transport"
)

// RequestHandler processes one inbound request. The context is cancelled
// when the remote peer sends notifications/cancelled for the request or the
// session closes; long-running handlers are expected to observe ctx.Done()
// at their own checkpoints; cancellation is cooperative, never forced.
type RequestHandler func(ctx context.Context, req *IncomingRequest) (any, error)

// NotificationHandler processes one inbound notification's params.
type NotificationHandler func(params json.RawMessage)

// IncomingRequest is the engine's view of one inbound request handed to a
// RequestHandler.
type IncomingRequest struct {
	ID     protocol.RequestID
	Method string
	Params json.RawMessage

	// Progress is non-nil when the caller supplied a progress token.
	Progress *ProgressReporter

	// Session is the session the request arrived on.
	Session *Session
}

// Session is the scope of one connected peer pair. It owns the request-id
// counter, the correlation table for outstanding calls, the resource
// subscription set, and the protocol log threshold. Both peers of a
// connection run one Session each over the same duplex channel.
type Session struct {
	id        string
	transport transport.Transport
	logger    logging.Logger
	metrics   observability.Metrics
	tracer    *observability.Tracer

	// Correlation table. nextID only ever increases within the session.
	mu      sync.Mutex
	nextID  int64
	pending map[string]*pendingRequest

	progress *progressRegistry
	subs     *subscriptionSet
	inflight *inflightRequests

	thresholdMu sync.RWMutex
	threshold   protocol.LogLevel

	handlersMu           sync.RWMutex
	requestHandlers      map[string]RequestHandler
	notificationHandlers map[string]NotificationHandler

	// baseCtx parents every inbound handler invocation; cancelled on close.
	baseCtx    context.Context
	cancelBase context.CancelFunc

	closeOnce sync.Once
	closed    chan struct{}

	hooksMu    sync.Mutex
	closeHooks []func()
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the diagnostic logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m observability.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithTracer sets the tracer for call and dispatch spans.
func WithTracer(t *observability.Tracer) Option {
	return func(s *Session) {
		s.tracer = t
	}
}

// WithLogThreshold sets the initial protocol log threshold. The default is
// info.
func WithLogThreshold(level protocol.LogLevel) Option {
	return func(s *Session) {
		if level.Valid() {
			s.threshold = level
		}
	}
}

// New creates a Session over the given transport. The session does not
// process traffic until Start runs.
func New(t transport.Transport, opts ...Option) *Session {
	baseCtx, cancelBase := context.WithCancel(context.Background())
	s := &Session{
		id:                   uuid.New().String(),
		transport:            t,
		logger:               logging.NewNop(),
		metrics:              observability.NewNopMetrics(),
		nextID:               1,
		pending:              make(map[string]*pendingRequest),
		progress:             newProgressRegistry(),
		subs:                 newSubscriptionSet(),
		inflight:             newInflightRequests(),
		threshold:            protocol.LogLevelInfo,
		requestHandlers:      make(map[string]RequestHandler),
		notificationHandlers: make(map[string]NotificationHandler),
		baseCtx:              baseCtx,
		cancelBase:           cancelBase,
		closed:               make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithFields(logging.String("session", s.id))
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// HandleRequest registers the handler for an inbound request method.
// Registration must complete before Start.
func (s *Session) HandleRequest(method string, handler RequestHandler) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.requestHandlers[method] = handler
}

// HandleNotification registers the handler for an inbound notification
// method. Reserved engine notifications (progress, cancelled) are routed
// internally and cannot be overridden.
func (s *Session) HandleNotification(method string, handler NotificationHandler) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.notificationHandlers[method] = handler
}

// Start runs the session: it wires the dispatch loop to the transport and
// blocks until the context is cancelled, Close is called, or the channel
// fails. On return every outstanding call has been settled with
// ErrConnectionClosed.
func (s *Session) Start(ctx context.Context) error {
	s.transport.SetReceiveHandler(s.handleMessage)
	s.transport.SetErrorHandler(func(err error) {
		s.logger.Warn("transport error", logging.ErrorField(err))
	})

	s.metrics.SessionOpened()
	defer s.metrics.SessionClosed()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// The transport exiting on its own (peer EOF) closes the session
		// too, which also wakes the watcher below.
		defer s.shutdown()
		return s.transport.Start(gctx)
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return gctx.Err()
		case <-s.closed:
			return s.transport.Stop(context.Background())
		}
	})

	err := g.Wait()
	s.shutdown()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close tears the session down. All outstanding locally originated calls
// settle immediately with ErrConnectionClosed; no partial results are
// synthesized.
func (s *Session) Close() error {
	s.shutdown()
	return s.transport.Stop(context.Background())
}

// OnClose registers fn to run exactly once when the session shuts down.
// Registering after shutdown runs fn immediately.
func (s *Session) OnClose(fn func()) {
	s.hooksMu.Lock()
	select {
	case <-s.closed:
		s.hooksMu.Unlock()
		fn()
		return
	default:
	}
	s.closeHooks = append(s.closeHooks, fn)
	s.hooksMu.Unlock()
}

func (s *Session) shutdown() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.cancelBase()

		s.mu.Lock()
		orphaned := make([]*pendingRequest, 0, len(s.pending))
		for _, p := range s.pending {
			orphaned = append(orphaned, p)
		}
		s.pending = make(map[string]*pendingRequest)
		s.mu.Unlock()

		for _, p := range orphaned {
			s.progress.detach(p.token)
			p.settle(nil, ErrConnectionClosed)
		}
		if len(orphaned) > 0 {
			s.logger.Debug("settled outstanding requests on close",
				logging.Int("count", len(orphaned)))
		}

		s.hooksMu.Lock()
		hooks := s.closeHooks
		s.closeHooks = nil
		s.hooksMu.Unlock()
		for _, fn := range hooks {
			fn()
		}
	})
}

// CallOption configures one outbound call.
type CallOption func(*callSettings)

type callSettings struct {
	token    protocol.ProgressToken
	observer ProgressFunc
	timeout  time.Duration
}

// WithProgress attaches a caller-chosen progress token to the call and an
// observer for the progress notifications the callee echoes back. The token
// is valid only while the call is outstanding.
func WithProgress(token protocol.ProgressToken, observer ProgressFunc) CallOption {
	return func(cs *callSettings) {
		cs.token = token
		cs.observer = observer
	}
}

// WithTimeout bounds the call. On expiry the engine cancels locally,
// exactly as if the caller had invoked CancelRequest: the call settles with
// a CancelledError and a cancellation notification goes to the peer.
func WithTimeout(d time.Duration) CallOption {
	return func(cs *callSettings) {
		cs.timeout = d
	}
}

// Call submits a request and blocks until its single terminal state:
// resolved with a result, rejected by the peer (returned as
// *protocol.Error), or cancelled locally (returned as *CancelledError).
func (s *Session) Call(ctx context.Context, method string, params any, opts ...CallOption) (json.RawMessage, error) {
	var cs callSettings
	for _, opt := range opts {
		opt(&cs)
	}

	p, err := s.register(method, cs.token)
	if err != nil {
		return nil, err
	}
	if cs.observer != nil {
		s.progress.attach(cs.token, cs.observer)
	}
	s.metrics.RequestsInFlight(1)
	defer s.metrics.RequestsInFlight(-1)

	ctx, end := s.tracer.StartCall(ctx, method, p.id.String())
	var callErr error
	defer func() { end(callErr) }()

	data, err := s.encodeRequest(p.id, method, params, cs.token)
	if err != nil {
		s.unregister(p)
		callErr = err
		return nil, err
	}
	if err := s.transport.Send(ctx, data); err != nil {
		s.unregister(p)
		callErr = fmt.Errorf("failed to send request: %w", err)
		return nil, callErr
	}

	var timer <-chan time.Time
	if cs.timeout > 0 {
		t := time.NewTimer(cs.timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case <-p.done:
	case <-ctx.Done():
		s.CancelRequest(p.id, ctx.Err().Error())
		<-p.done
	case <-timer:
		s.CancelRequest(p.id, "deadline exceeded")
		<-p.done
	}

	status := observability.StatusOK
	switch p.err.(type) {
	case nil:
	case *CancelledError:
		status = observability.StatusCancelled
	default:
		status = observability.StatusError
	}
	s.metrics.RecordRequest(method, status, time.Duration(nowNanos()-p.start))

	callErr = p.err
	return p.result, p.err
}

// CancelRequest cancels an outstanding call. The call settles with a
// CancelledError immediately; the cancellation notification is enqueued on
// the channel before CancelRequest returns and the engine never waits for a
// remote acknowledgement. Returns false when the id is not outstanding.
func (s *Session) CancelRequest(id protocol.RequestID, reason string) bool {
	p := s.take(id.Key())
	if p == nil {
		return false
	}
	s.progress.detach(p.token)

	if err := s.Notify(protocol.NotificationCancelled, protocol.CancelledParams{
		RequestID: id,
		Reason:    reason,
	}); err != nil {
		s.logger.Warn("failed to send cancellation notification",
			logging.String("request_id", id.String()),
			logging.ErrorField(err))
	}
	s.metrics.RecordCancellation(p.method)

	p.settle(nil, &CancelledError{Reason: reason})
	return true
}

// Notify emits a free-standing notification, never correlated to a pending
// request.
func (s *Session) Notify(method string, params any) error {
	n, err := protocol.NewNotification(method, params)
	if err != nil {
		return err
	}
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if err := s.transport.Send(context.Background(), data); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	s.metrics.RecordNotification(method, true)
	return nil
}

// SubscribeResource records the peer's interest in update notifications for
// a resource URI. Idempotent.
func (s *Session) SubscribeResource(uri string) {
	s.subs.add(uri)
}

// UnsubscribeResource withdraws interest in a resource URI. Idempotent.
func (s *Session) UnsubscribeResource(uri string) {
	s.subs.remove(uri)
}

// IsSubscribed reports whether a resource URI is currently subscribed.
func (s *Session) IsSubscribed(uri string) bool {
	return s.subs.contains(uri)
}

// SubscribedResources lists the currently subscribed URIs.
func (s *Session) SubscribedResources() []string {
	return s.subs.list()
}

// NotifyResourceUpdated emits notifications/resources/updated for the URI,
// but only when the peer currently subscribes to it. An update on an
// unsubscribed resource is a normal occurrence and a silent no-op.
func (s *Session) NotifyResourceUpdated(uri string) error {
	if !s.subs.contains(uri) {
		return nil
	}
	return s.Notify(protocol.NotificationResourceUpdated, protocol.ResourceUpdatedParams{URI: uri})
}

// register allocates the next request id and inserts a pending request
// into the correlation table. Ids strictly increase and are never reused
// within the session. The closed check happens under the same lock the
// shutdown drain takes, so a request is either drained at close or never
// registered.
func (s *Session) register(method string, token protocol.ProgressToken) (*pendingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.closed:
		return nil, ErrConnectionClosed
	default:
	}
	id := protocol.NewIntID(s.nextID)
	s.nextID++
	p := newPendingRequest(id, method, token, nowNanos())
	s.pending[id.Key()] = p
	return p, nil
}

// take removes and returns the pending request for an id key, or nil when
// the id is unknown or already terminal.
func (s *Session) take(key string) *pendingRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[key]
	if !ok {
		return nil
	}
	delete(s.pending, key)
	return p
}

// unregister abandons a pending request that never made it onto the wire.
func (s *Session) unregister(p *pendingRequest) {
	s.take(p.id.Key())
	s.progress.detach(p.token)
}

func (s *Session) encodeRequest(id protocol.RequestID, method string, params any, token protocol.ProgressToken) ([]byte, error) {
	var payload any = params
	if token.IsValid() {
		raw, err := protocol.InjectMeta(params, &protocol.ParamsMeta{ProgressToken: token})
		if err != nil {
			return nil, err
		}
		payload = raw
	}
	req, err := protocol.NewRequest(id, method, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(req)
}

func nowNanos() int64 {
	return time.Now().UnixNano()
}
