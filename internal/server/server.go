package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	segjson "github.com/segmentio/encoding/json"
	"golang.org/x/time/rate"

	"github.com/UCL-RITS/Submitty/pkg/types"
)

// Handler is the function signature for JSON-RPC method handlers.
type Handler func(ctx context.Context, session *Session, params json.RawMessage) (any, *types.RPCError)

const defaultMaxConcurrent = 1

// maxLineBytes bounds one NDJSON request; large expected outputs travel inline.
const maxLineBytes = 16 * 1024 * 1024

// Server reads NDJSON requests from an io.Reader and writes NDJSON responses to an io.Writer.
type Server struct {
	reader        *bufio.Scanner
	writer        *bufio.Writer
	mu            sync.Mutex // protects writer
	session       *Session
	handlers      map[string]Handler
	logger        *slog.Logger
	maxConcurrent int
	semaphore     chan struct{}
	limiter       *rate.Limiter
	inflight      sync.WaitGroup
}

// New creates a sequential Server reading from in and writing to out.
func New(in io.Reader, out io.Writer, logger *slog.Logger) *Server {
	return NewWithConcurrency(in, out, logger, defaultMaxConcurrent)
}

// NewWithConcurrency creates a Server that dispatches up to maxConcurrent
// requests at once. maxConcurrent <= 1 processes requests in order.
func NewWithConcurrency(in io.Reader, out io.Writer, logger *slog.Logger, maxConcurrent int) *Server {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	return &Server{
		reader:        scanner,
		writer:        bufio.NewWriter(out),
		session:       NewSession(),
		handlers:      make(map[string]Handler),
		logger:        logger,
		maxConcurrent: maxConcurrent,
		semaphore:     make(chan struct{}, maxConcurrent),
		limiter:       rate.NewLimiter(rate.Inf, 0),
	}
}

// SetRateLimit throttles dispatch to rps requests per second with the given
// burst. rps <= 0 removes the limit.
func (s *Server) SetRateLimit(rps float64, burst int) {
	if rps <= 0 {
		s.limiter = rate.NewLimiter(rate.Inf, 0)
		return
	}
	if burst < 1 {
		burst = 1
	}
	s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// RegisterHandler registers a handler for the given JSON-RPC method name.
func (s *Server) RegisterHandler(method string, h Handler) {
	s.handlers[method] = h
}

// Run reads NDJSON lines, dispatches them and writes responses until the
// input is closed, shutdown is called or ctx is canceled. In-flight requests
// finish before Run returns.
func (s *Server) Run(ctx context.Context) error {
	defer s.inflight.Wait()

	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	stopped := make(chan struct{})
	defer close(stopped)

	go func() {
		defer close(lines)
		for s.reader.Scan() {
			line := make([]byte, len(s.reader.Bytes()))
			copy(line, s.reader.Bytes())
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			case <-stopped:
				return
			}
		}
		if err := s.reader.Err(); err != nil {
			scanErr <- err
		}
	}()

	dispatchOne := func(line []byte) error {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		s.semaphore <- struct{}{}
		handle := func() {
			defer func() { <-s.semaphore }()
			s.writeResponse(s.dispatch(ctx, line))
		}
		if s.maxConcurrent > 1 {
			s.inflight.Add(1)
			go func() {
				defer s.inflight.Done()
				handle()
			}()
		} else {
			handle()
		}
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.session.ShuttingDown():
			return nil
		case err := <-scanErr:
			return err
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if len(line) == 0 {
				continue
			}
			if err := dispatchOne(line); err != nil {
				return err
			}
			select {
			case <-s.session.ShuttingDown():
				return nil
			default:
			}
		}
	}
}

// dispatch parses a raw JSON line into a Request and routes it to the appropriate handler.
func (s *Server) dispatch(ctx context.Context, line []byte) *types.Response {
	var req types.Request
	if err := segjson.Unmarshal(line, &req); err != nil {
		s.logger.Error("parse error", "err", err)
		return types.NewErrorResponse(0, &types.RPCError{
			Code:    -32700,
			Message: "parse error",
			Data: &types.ErrorData{
				ErrorType: "PARSE_ERROR",
				Retryable: false,
				Detail:    err.Error(),
			},
		})
	}

	if req.JSONRPC != "2.0" || req.Method == "" {
		s.logger.Error("invalid request", "id", req.ID, "method", req.Method)
		return types.NewErrorResponse(req.ID, &types.RPCError{
			Code:    -32600,
			Message: "invalid request",
			Data: &types.ErrorData{
				ErrorType: "INVALID_REQUEST",
				Retryable: false,
				Detail:    "jsonrpc must be \"2.0\" and method must be non-empty",
			},
		})
	}

	h, ok := s.handlers[req.Method]
	if !ok {
		s.logger.Warn("method not found", "method", req.Method)
		return types.NewErrorResponse(req.ID, &types.RPCError{
			Code:    -32601,
			Message: "method not found",
			Data: &types.ErrorData{
				ErrorType: "METHOD_NOT_FOUND",
				Retryable: false,
				Detail:    "unknown method: " + req.Method,
			},
		})
	}

	s.logger.Debug("dispatch", "id", req.ID, "method", req.Method)
	result, rpcErr := h(ctx, s.session, req.Params)
	if rpcErr != nil {
		s.logger.Warn("request failed", "id", req.ID, "method", req.Method, "code", rpcErr.Code, "message", rpcErr.Message)
		return types.NewErrorResponse(req.ID, rpcErr)
	}

	resp, err := types.NewSuccessResponse(req.ID, result)
	if err != nil {
		s.logger.Error("failed to marshal result", "method", req.Method, "err", err)
		return types.NewErrorResponse(req.ID, types.NewRPCError(
			types.ErrEngineError,
			"failed to marshal result",
			types.ErrTypeEngineError,
			false,
			err.Error(),
		))
	}
	return resp
}

// writeResponse serializes a Response as compact JSON followed by a newline.
func (s *Server) writeResponse(resp *types.Response) {
	data, err := segjson.Marshal(resp)
	if err != nil {
		s.logger.Error("failed to marshal response", "err", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.writer.Write(data)
	_ = s.writer.WriteByte('\n')
	_ = s.writer.Flush()
}
