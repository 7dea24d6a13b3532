package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestConstructorStatuses(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantCode   string
		wantStatus int
	}{
		{"bad request", BadRequest("nope"), CodeInvalidRequest, http.StatusBadRequest},
		{"validation", ValidationError("nope"), CodeValidationError, http.StatusBadRequest},
		{"conflict reports 400", Conflict("dup"), CodeConflict, http.StatusBadRequest},
		{"invalid credentials", InvalidCredentials(), CodeInvalidCredentials, http.StatusUnauthorized},
		{"unverified", Unverified(), CodeUnverified, http.StatusUnauthorized},
		{"invalid token", InvalidToken("Invalid or expired token"), CodeInvalidToken, http.StatusUnauthorized},
		{"forbidden", Forbidden("no"), CodeForbidden, http.StatusForbidden},
		{"not found", NotFound("Expense"), CodeNotFound, http.StatusNotFound},
		{"internal", InternalError("boom"), CodeInternalError, http.StatusInternalServerError},
		{"database", DatabaseError("boom"), CodeDatabaseError, http.StatusInternalServerError},
		{"email", EmailError("down"), CodeEmailError, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", tt.err.Code, tt.wantCode)
			}
			if tt.err.HTTPStatus != tt.wantStatus {
				t.Errorf("status = %d, want %d", tt.err.HTTPStatus, tt.wantStatus)
			}
		})
	}
}

func TestNotFoundMessage(t *testing.T) {
	if got := NotFound("Goal").Message; got != "Goal not found" {
		t.Errorf("message = %q, want %q", got, "Goal not found")
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := DatabaseError("query failed").WithCause(cause)
	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the cause through Unwrap")
	}
}

func TestWriteErrorEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, "req-123", NotFound("Budget"))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if got := w.Header().Get(RequestIDHeader); got != "req-123" {
		t.Errorf("request ID header = %q, want req-123", got)
	}

	var env Envelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	if env.Success {
		t.Error("success = true, want false")
	}
	if env.Error != "Budget not found" {
		t.Errorf("error = %q, want %q", env.Error, "Budget not found")
	}
	if env.Data != nil {
		t.Errorf("data = %v, want nil", env.Data)
	}
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, "", errors.New("pq: relation \"users\" does not exist"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	var env Envelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	if env.Error != "Internal server error" {
		t.Errorf("error = %q, internal detail must not leak", env.Error)
	}
}

func TestWriteSuccessEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, "req-456", http.StatusCreated, map[string]string{"id": "abc"}, "")

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", w.Code)
	}
	var env Envelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	if !env.Success {
		t.Error("success = false, want true")
	}
	data, ok := env.Data.(map[string]any)
	if !ok || data["id"] != "abc" {
		t.Errorf("data = %v, want {id: abc}", env.Data)
	}
}

func TestHandleFunc(t *testing.T) {
	t.Run("error path writes envelope", func(t *testing.T) {
		h := HandleFunc(func(w http.ResponseWriter, r *http.Request) error {
			return Forbidden("Insufficient permissions")
		})
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest("GET", "/", nil))

		if w.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", w.Code)
		}
		var env Envelope
		if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
			t.Fatalf("decoding envelope: %v", err)
		}
		if env.Error != "Insufficient permissions" {
			t.Errorf("error = %q", env.Error)
		}
	})

	t.Run("nil error writes nothing", func(t *testing.T) {
		h := HandleFunc(func(w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		})
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest("GET", "/", nil))
		if w.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", w.Code)
		}
	})
}

func TestCategoryPredicates(t *testing.T) {
	if !IsClientError(BadRequest("x")) || IsClientError(InternalError("x")) {
		t.Error("IsClientError misclassified")
	}
	if !IsServerError(DatabaseError("x")) || IsServerError(Conflict("x")) {
		t.Error("IsServerError misclassified")
	}
	if IsClientError(errors.New("plain")) || IsServerError(errors.New("plain")) {
		t.Error("plain errors are neither category")
	}
}
