package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/vibecampus/vibehub/internal/apperr"
	"github.com/vibecampus/vibehub/pkg/logging"
	"github.com/vibecampus/vibehub/pkg/telemetry"
)

// JSONRPCRequest represents a JSON-RPC 2.0 request
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC error
type JSONRPCError struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *ErrorData `json:"data,omitempty"`
}

// MethodHandler is a function that handles a JSON-RPC method
type MethodHandler func(ctx *gin.Context, params json.RawMessage) (interface{}, error)

// JSONRPCHandler handles JSON-RPC requests
type JSONRPCHandler struct {
	methods map[string]MethodHandler
	logger  *zap.Logger
}

// NewJSONRPCHandler creates a new JSON-RPC handler
func NewJSONRPCHandler() *JSONRPCHandler {
	return &JSONRPCHandler{
		methods: make(map[string]MethodHandler),
		logger:  logging.GetLogger().With(zap.String("component", "jsonrpc")),
	}
}

// RegisterMethod registers a method handler
func (h *JSONRPCHandler) RegisterMethod(method string, handler MethodHandler) {
	h.methods[method] = handler
}

// Methods returns the number of registered methods
func (h *JSONRPCHandler) Methods() int {
	return len(h.methods)
}

// Handle handles a JSON-RPC request
func (h *JSONRPCHandler) Handle(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "jsonrpc.handle")
	c.Request = c.Request.WithContext(ctx)

	var req JSONRPCRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendError(c, nil, &JSONRPCError{Code: ErrParseError, Message: "Parse error"}, err)
		telemetry.EndSpan(span, err)
		return
	}
	span.SetAttributes(attribute.String("rpc.method", req.Method))

	// Validate JSON-RPC version
	if req.JSONRPC != "2.0" {
		err := fmt.Errorf("invalid jsonrpc version %q", req.JSONRPC)
		h.sendError(c, req.ID, &JSONRPCError{Code: ErrInvalidRequest, Message: "Invalid Request"}, err)
		telemetry.EndSpan(span, err)
		return
	}

	// Find method handler
	handler, ok := h.methods[req.Method]
	if !ok {
		err := fmt.Errorf("method %s not found", req.Method)
		h.sendError(c, req.ID, &JSONRPCError{Code: ErrMethodNotFound, Message: "Method not found"}, err)
		telemetry.EndSpan(span, err)
		return
	}

	result, err := handler(c, req.Params)
	if err != nil {
		h.sendError(c, req.ID, toJSONRPCError(err), err)
		telemetry.EndSpan(span, err)
		return
	}

	h.sendResponse(c, req.ID, result)
	telemetry.EndSpan(span, nil)
}

// sendResponse sends a successful JSON-RPC response
func (h *JSONRPCHandler) sendResponse(c *gin.Context, id interface{}, result interface{}) {
	raw, err := json.Marshal(result)
	if err != nil {
		h.sendError(c, id, toJSONRPCError(apperr.Wrap(apperr.CodeInternal, "Something went wrong. Please try again.", err)), err)
		return
	}
	c.JSON(http.StatusOK, JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  raw,
	})
}

// sendError sends an error JSON-RPC response
func (h *JSONRPCHandler) sendError(c *gin.Context, id interface{}, rpcErr *JSONRPCError, err error) {
	if err != nil {
		switch code := apperr.CodeOf(err); code {
		case apperr.CodeInternal, apperr.CodeUnknown:
			h.logger.Error("JSON-RPC error", zap.String("message", rpcErr.Message), zap.Error(err))
		default:
			h.logger.Debug("JSON-RPC error", zap.String("code", string(code)), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   rpcErr,
	})
}

// bind decodes params into out; empty params leave out untouched
func bind(params json.RawMessage, out interface{}) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := json.Unmarshal(params, out); err != nil {
		return apperr.InvalidArg("Invalid parameters")
	}
	return nil
}
