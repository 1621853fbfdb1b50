package middleware

import (
	"net/http"

	"github.com/Champ-Deep/LakeB2B-SlideSmith/pkg/requestid"
)

// RequestID puts the caller's X-Request-Id, or a generated one, into the
// request context and echoes it on the response so the UI can quote it in
// support requests.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := requestid.FromHeader(r.Header)
		w.Header().Set(requestid.Header, requestID)
		next.ServeHTTP(w, r.WithContext(requestid.ToContext(r.Context(), requestID)))
	})
}
