package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/stitchfield/api/internal/platform/requestctx"
)

// Error is a failed request rendered in the response envelope with
// success=false. The zero Status maps to 500 at write time.
type Error struct {
	Code      string
	Message   string
	Status    int
	RequestID string
	TraceID   string
	Details   map[string]any
}

// NewError builds an Error from a machine readable code, a human
// readable message, and the HTTP status to respond with.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    sanitize(code, 80),
		Message: sanitize(message, 512),
		Status:  status,
	}
}

// WithRequestID overrides the request identifier taken from context.
func (e Error) WithRequestID(id string) Error {
	e.RequestID = sanitize(id, 80)
	return e
}

// WithTraceID overrides the trace identifier taken from context.
func (e Error) WithTraceID(id string) Error {
	e.TraceID = sanitize(id, 64)
	return e
}

// WithDetails attaches extra top-level fields to the error payload.
// Duplicate-order conflicts use this to return the stored order under
// "data".
func (e Error) WithDetails(details map[string]any) Error {
	if len(details) == 0 {
		return e
	}
	merged := make(map[string]any, len(details))
	for k, v := range details {
		merged[k] = v
	}
	e.Details = merged
	return e
}

// WriteError renders the error envelope. Request and trace identifiers
// fall back to the values recorded on the context.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	payload := map[string]any{
		"success": false,
		"error":   err.Code,
		"message": err.Message,
	}
	if id := requestID(ctx, err); id != "" {
		payload["request_id"] = id
	}
	if id := traceID(ctx, err); id != "" {
		payload["trace_id"] = id
	}
	for k, v := range err.Details {
		payload[k] = v
	}

	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func requestID(ctx context.Context, err Error) string {
	if err.RequestID != "" {
		return err.RequestID
	}
	return sanitize(middleware.GetReqID(ctx), 80)
}

func traceID(ctx context.Context, err Error) string {
	if err.TraceID != "" {
		return err.TraceID
	}
	return sanitize(requestctx.TraceID(ctx), 64)
}

// sanitize flattens newlines and caps length so caller-supplied text
// cannot break a single-line JSON log of the response.
func sanitize(value string, limit int) string {
	if limit <= 0 {
		limit = 256
	}
	value = strings.TrimSpace(strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return ' '
		}
		return r
	}, value))
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
