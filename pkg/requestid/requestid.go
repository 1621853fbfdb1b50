package requestid

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const (
	RequestIDKey contextKey = "request_id"

	// Header carries the request ID between the UI, the API and the providers.
	Header = "X-Request-Id"

	maxLength = 64
)

// Generate creates a new unique request ID
func Generate() string {
	return uuid.New().String()
}

// FromHeader returns the caller's request ID when it is safe to log and echo,
// or a freshly generated one.
func FromHeader(h http.Header) string {
	if id := h.Get(Header); valid(id) {
		return id
	}
	return Generate()
}

func valid(id string) bool {
	if id == "" || len(id) > maxLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == ':':
		default:
			return false
		}
	}
	return true
}

// ToContext adds a request ID to the context
func ToContext(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// FromContext extracts the request ID from the context.
// Returns empty string if request ID is not found.
func FromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

func FromContextPtr(ctx context.Context) *string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return &requestID
	}
	return nil
}

// Carry copies the request ID of from onto to. Rows run on the dispatcher's
// context and keep the ID of the upload that queued them.
func Carry(from, to context.Context) context.Context {
	if id := FromContext(from); id != "" {
		return ToContext(to, id)
	}
	return to
}
