package api

import (
	"github.com/vibecampus/vibehub/internal/apperr"
)

// Standard JSON-RPC error codes
const (
	ErrParseError     = -32700
	ErrInvalidRequest = -32600
	ErrMethodNotFound = -32601
	ErrInvalidParams  = -32602
	ErrInternalError  = -32603
)

// Server-defined error codes for application errors
const (
	ErrServerError        = -32000
	ErrUnauthenticated    = -32001
	ErrPermissionDenied   = -32003
	ErrNotFound           = -32004
	ErrAlreadyExists      = -32009
	ErrFailedPrecondition = -32010
)

// ErrorData is carried in JSON-RPC error.data so clients can rebuild
// the application error
type ErrorData struct {
	Code  apperr.Code `json:"code"`
	Field string      `json:"field,omitempty"`
}

var rpcCodes = map[apperr.Code]int{
	apperr.CodeInvalidArgument:    ErrInvalidParams,
	apperr.CodeNotFound:           ErrNotFound,
	apperr.CodeAlreadyExists:      ErrAlreadyExists,
	apperr.CodePermissionDenied:   ErrPermissionDenied,
	apperr.CodeUnauthenticated:    ErrUnauthenticated,
	apperr.CodeFailedPrecondition: ErrFailedPrecondition,
	apperr.CodeInternal:           ErrInternalError,
}

// RPCCode maps an application error code to a JSON-RPC error code
func RPCCode(code apperr.Code) int {
	if c, ok := rpcCodes[code]; ok {
		return c
	}
	return ErrServerError
}

// toJSONRPCError converts err into the error member of a response. The
// message is the application's message, never the wrapped cause.
func toJSONRPCError(err error) *JSONRPCError {
	code := apperr.CodeOf(err)
	return &JSONRPCError{
		Code:    RPCCode(code),
		Message: apperr.Message(err),
		Data:    &ErrorData{Code: code, Field: apperr.FieldOf(err)},
	}
}

// AsAppError turns a JSON-RPC error back into an application error
func (e *JSONRPCError) AsAppError() error {
	code := apperr.CodeUnknown
	field := ""
	if e.Data != nil && e.Data.Code != "" {
		code = e.Data.Code
		field = e.Data.Field
	}
	return &apperr.AppError{Code: code, Message: e.Message, Field: field}
}
