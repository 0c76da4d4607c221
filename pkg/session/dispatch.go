package session

import (
	"context"
	"encoding/json"
	"runtime/debug"
	"time"

	mcperrors "github.com/mcpwire/mcpwire/pkg/errors"
	"github.com/mcpwire/mcpwire/pkg/logging"
	"github.com/mcpwire/mcpwire/pkg/observability"
	"github.com/mcpwire/mcpwire/pkg/protocol"
)

// handleMessage is the transport receive handler. It runs on the single
// dispatch goroutine: responses and notifications are processed inline, so
// messages take effect in arrival order and a progress notification sent
// before a terminal response is always observed before the call settles.
// Only inbound request handlers run concurrently, on their own goroutines.
func (s *Session) handleMessage(data []byte) {
	kind, err := protocol.Classify(data)
	switch kind {
	case protocol.KindResponse:
		s.handleResponse(data)
	case protocol.KindRequest:
		s.handleRequest(data)
	case protocol.KindNotification:
		s.handleNotification(data)
	default:
		s.logger.Warn("dropping unclassifiable message", logging.ErrorField(err))
	}
}

// handleResponse settles the matching pending call. A response whose id is
// unknown (already settled, cancelled locally, or never issued) is
// discarded without error.
func (s *Session) handleResponse(data []byte) {
	var resp protocol.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		s.logger.Warn("dropping malformed response", logging.ErrorField(err))
		return
	}
	if err := resp.Validate(); err != nil {
		s.logger.Warn("dropping invalid response", logging.ErrorField(err))
		return
	}

	p := s.take(resp.ID.Key())
	if p == nil {
		s.logger.Debug("discarding response for unknown request id",
			logging.String("request_id", resp.ID.String()))
		return
	}
	s.progress.detach(p.token)

	if resp.Error != nil {
		p.settle(nil, resp.Error)
		return
	}
	p.settle(resp.Result, nil)
}

// handleRequest looks up the registered handler for an inbound request and
// runs it on its own goroutine, so a slow handler never stalls dispatch.
func (s *Session) handleRequest(data []byte) {
	var req protocol.Request
	if err := json.Unmarshal(data, &req); err != nil {
		s.logger.Warn("dropping malformed request", logging.ErrorField(err))
		return
	}
	if err := req.Validate(); err != nil {
		s.logger.Warn("dropping invalid request", logging.ErrorField(err))
		return
	}

	s.handlersMu.RLock()
	handler := s.requestHandlers[req.Method]
	s.handlersMu.RUnlock()
	if handler == nil {
		s.metrics.RecordInboundRequest(req.Method, observability.StatusError, 0)
		s.respondError(req.ID, mcperrors.NewMethodNotFound(req.Method))
		return
	}

	incoming := &IncomingRequest{
		ID:      req.ID,
		Method:  req.Method,
		Params:  req.Params,
		Session: s,
	}
	if meta := protocol.ExtractMeta(req.Params); meta != nil && meta.ProgressToken.IsValid() {
		incoming.Progress = &ProgressReporter{session: s, token: meta.ProgressToken}
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	key := req.ID.Key()
	s.inflight.add(key, cancel)

	go func() {
		defer cancel()
		defer s.inflight.remove(key)
		s.runHandler(ctx, handler, incoming)
	}()
}

// runHandler invokes one request handler, converts its outcome to a
// response, and reports the inbound request metric. Panics become internal
// errors rather than taking the session down.
func (s *Session) runHandler(ctx context.Context, handler RequestHandler, req *IncomingRequest) {
	start := time.Now()
	dispatchCtx, end := s.tracer.StartDispatch(ctx, req.Method, req.ID.String())

	var (
		result any
		err    error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("request handler panicked",
					logging.String("method", req.Method),
					logging.Any("panic", r),
					logging.String("stack", string(debug.Stack())))
				err = mcperrors.New(mcperrors.CodeInternalError, "internal error", mcperrors.CategoryInternal)
			}
		}()
		result, err = handler(dispatchCtx, req)
	}()
	end(err)

	// The caller cancelled and has already settled the call on its side;
	// a response would only be discarded as unknown. Stay silent.
	if ctx.Err() != nil && err != nil {
		s.metrics.RecordInboundRequest(req.Method, observability.StatusCancelled, time.Since(start))
		return
	}

	if err != nil {
		s.metrics.RecordInboundRequest(req.Method, observability.StatusError, time.Since(start))
		s.respondError(req.ID, err)
		return
	}

	s.metrics.RecordInboundRequest(req.Method, observability.StatusOK, time.Since(start))
	resp, respErr := protocol.NewResponse(req.ID, result)
	if respErr != nil {
		s.logger.Error("failed to encode result",
			logging.String("method", req.Method),
			logging.ErrorField(respErr))
		s.respondError(req.ID, mcperrors.Wrap(respErr, mcperrors.CodeInternalError, "failed to encode result", mcperrors.CategoryInternal))
		return
	}
	s.sendResponse(resp)
}

// respondError maps a handler error onto the wire. Structured engine errors
// keep their code and data; anything else surfaces as an internal error.
func (s *Session) respondError(id protocol.RequestID, err error) {
	code := mcperrors.CodeInternalError
	message := "internal error"
	var data any
	if mcpErr, ok := mcperrors.As(err); ok {
		code = mcpErr.Code()
		message = mcpErr.Message()
		data = mcpErr.Data()
	}
	resp, buildErr := protocol.NewErrorResponse(id, protocol.ErrorCode(code), message, data)
	if buildErr != nil {
		s.logger.Error("failed to encode error response", logging.ErrorField(buildErr))
		return
	}
	s.sendResponse(resp)
}

func (s *Session) sendResponse(resp *protocol.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("failed to marshal response", logging.ErrorField(err))
		return
	}
	if err := s.transport.Send(context.Background(), data); err != nil {
		s.logger.Warn("failed to send response",
			logging.String("request_id", resp.ID.String()),
			logging.ErrorField(err))
	}
}

// handleNotification routes an inbound notification. Progress and
// cancellation are engine concerns handled inline; everything else goes to
// the registered handler for its method. A notification with no handler is
// discarded: notifications are fire-and-forget on both sides.
func (s *Session) handleNotification(data []byte) {
	var n protocol.Notification
	if err := json.Unmarshal(data, &n); err != nil {
		s.logger.Warn("dropping malformed notification", logging.ErrorField(err))
		return
	}

	s.metrics.RecordNotification(n.Method, false)

	switch n.Method {
	case protocol.NotificationProgress:
		s.handleProgress(n.Params)
	case protocol.NotificationCancelled:
		s.handleCancelled(n.Params)
	default:
		s.handlersMu.RLock()
		handler := s.notificationHandlers[n.Method]
		s.handlersMu.RUnlock()
		if handler == nil {
			s.logger.Debug("no handler for notification", logging.String("method", n.Method))
			return
		}
		handler(n.Params)
	}
}

// handleProgress routes a progress notification to the observer of the
// outstanding call that owns its token. Unknown tokens are dropped: the
// call may have settled or been cancelled while the event was in flight.
func (s *Session) handleProgress(params json.RawMessage) {
	var pp protocol.ProgressParams
	if err := json.Unmarshal(params, &pp); err != nil {
		s.logger.Warn("dropping malformed progress notification", logging.ErrorField(err))
		return
	}
	if !pp.ProgressToken.IsValid() {
		s.logger.Warn("dropping progress notification without a token")
		return
	}
	if !s.progress.deliver(pp) {
		s.logger.Debug("discarding progress for unknown token",
			logging.String("token", pp.ProgressToken.String()))
	}
}

// handleCancelled cancels the context of the matching in-flight inbound
// request. The handler is not interrupted; it is expected to notice the
// cancelled context and unwind. Ids with no running handler are ignored.
func (s *Session) handleCancelled(params json.RawMessage) {
	var cp protocol.CancelledParams
	if err := json.Unmarshal(params, &cp); err != nil {
		s.logger.Warn("dropping malformed cancellation notification", logging.ErrorField(err))
		return
	}
	if !cp.RequestID.IsValid() {
		return
	}
	if s.inflight.cancel(cp.RequestID.Key()) {
		s.logger.Debug("cancelled in-flight request",
			logging.String("request_id", cp.RequestID.String()),
			logging.String("reason", cp.Reason))
	}
}
