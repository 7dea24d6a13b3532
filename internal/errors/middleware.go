package errors

import (
	"net/http"
)

// RequestIDHeader is the HTTP header carrying the request ID.
const RequestIDHeader = "X-Request-ID"

// Handler is an http handler that reports failures by returning an error
// instead of writing its own error response.
type Handler func(w http.ResponseWriter, r *http.Request) error

// HandleFunc adapts a Handler to a standard http.HandlerFunc, writing any
// returned error as the response envelope.
func HandleFunc(h Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			requestID := GetRequestID(r.Context())
			WriteError(w, requestID, err)
		}
	}
}
