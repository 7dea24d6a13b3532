package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/finwise/backend/internal/errors"
)

func TestRequestID(t *testing.T) {
	t.Run("generates an ID when absent", func(t *testing.T) {
		var fromContext string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fromContext = apperrors.GetRequestID(r.Context())
		}))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

		if fromContext == "" {
			t.Error("expected a generated request ID in context")
		}
		if got := w.Header().Get(apperrors.RequestIDHeader); got != fromContext {
			t.Errorf("header %q does not match context %q", got, fromContext)
		}
	})

	t.Run("preserves a caller-supplied ID", func(t *testing.T) {
		var fromContext string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fromContext = apperrors.GetRequestID(r.Context())
		}))
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set(apperrors.RequestIDHeader, "client-supplied")
		h.ServeHTTP(httptest.NewRecorder(), r)

		if fromContext != "client-supplied" {
			t.Errorf("request ID = %q, want client-supplied", fromContext)
		}
	})
}

func TestChain(t *testing.T) {
	var order []string
	tag := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}), tag("outer"), tag("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	want := []string{"outer", "inner", "handler"}
	for i, name := range want {
		if order[i] != name {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}
