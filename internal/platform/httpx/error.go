// Package httpx holds the JSON response helpers shared by every handler.
package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/vendormart/api/internal/platform/requestctx"
)

// Error is an API failure rendered as the error envelope:
//
//	{"error": code, "message": ..., "status": 409, "request_id": ..., "trace_id": ..., "details": {...}}
type Error struct {
	Code    string
	Message string
	Status  int
	Details map[string]any
}

type envelope struct {
	Error     string         `json:"error"`
	Message   string         `json:"message"`
	Status    int            `json:"status"`
	RequestID string         `json:"request_id,omitempty"`
	TraceID   string         `json:"trace_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// NewError builds an Error. A zero status means 500.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{Code: oneLine(code, 80), Message: oneLine(message, 512), Status: status}
}

func (e Error) Error() string { return e.Code + ": " + e.Message }

// WithDetails returns a copy of e carrying details, such as the cart issues
// or the product that ran out of stock.
func (e Error) WithDetails(details map[string]any) Error {
	if len(details) == 0 {
		return e
	}
	e.Details = make(map[string]any, len(details))
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WriteError writes err with the request and trace IDs found on ctx.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	body := envelope{
		Error:     err.Code,
		Message:   err.Message,
		Status:    err.Status,
		RequestID: oneLine(middleware.GetReqID(ctx), 80),
		TraceID:   oneLine(requestctx.TraceID(ctx), 64),
		Details:   err.Details,
	}
	if body.Status == 0 {
		body.Status = http.StatusInternalServerError
	}
	WriteJSON(w, body.Status, body)
}

// WriteJSON encodes body as the JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func oneLine(value string, limit int) string {
	value = strings.TrimSpace(strings.NewReplacer("\r", " ", "\n", " ").Replace(value))
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
