package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"finledger/internal/core"
)

func TestJSONResponseBuilder(t *testing.T) {
	w := httptest.NewRecorder()
	Created(map[string]string{"id": "a1"}).Header("Location", "/api/accounts/a1").Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if loc := w.Header().Get("Location"); loc != "/api/accounts/a1" {
		t.Errorf("Location = %q", loc)
	}
	var env struct {
		Success bool              `json:"success"`
		Data    map[string]string `json:"data"`
		Error   *string           `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !env.Success || env.Data["id"] != "a1" || env.Error != nil {
		t.Errorf("envelope = %+v", env)
	}
}

func TestValidationErrorEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	ValidationError([]FieldError{{Field: "amount", Message: "This field is required", Type: "required"}}).Write(w)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	var env Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Success || env.Error != "invalid request data" || len(env.Details) != 1 || env.Details[0].Field != "amount" {
		t.Errorf("envelope = %+v", env)
	}
}

func TestTooManyRequestsError(t *testing.T) {
	w := httptest.NewRecorder()
	TooManyRequestsError().Write(w)
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") != "60" {
		t.Errorf("status = %d, Retry-After = %q", w.Code, w.Header().Get("Retry-After"))
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"unauthorized", core.ErrUnauthorized, http.StatusUnauthorized},
		{"not found", core.NotFound("account", "a1"), http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("load: %w", core.NotFound("transaction", "t1")), http.StatusNotFound},
		{"partial failure over not found", core.PartialFailure(core.NotFound("transaction", "t1")), http.StatusConflict},
		{"invalid amount", core.ErrInvalidAmount, http.StatusBadRequest},
		{"invalid interval", core.ErrInvalidInterval, http.StatusBadRequest},
		{"unresolvable schema", core.ErrUnresolvableSchema, http.StatusUnprocessableEntity},
		{"could not extract", core.ErrCouldNotExtract, http.StatusUnprocessableEntity},
		{"unclassified", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusFor(tt.err); got != tt.want {
				t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrorFromHidesInternalErrors(t *testing.T) {
	w := httptest.NewRecorder()
	ErrorFrom(errors.New("dial tcp 10.0.0.5:3306: connection refused")).Write(w)

	var env Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w.Code != http.StatusInternalServerError || env.Error != "internal server error" {
		t.Errorf("status = %d, error = %q", w.Code, env.Error)
	}

	w = httptest.NewRecorder()
	ErrorFrom(core.PartialFailure(fmt.Errorf("adjust balance of a1: %w", errors.New("database is locked (5) (SQLITE_BUSY)")))).Write(w)
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w.Code != http.StatusConflict || strings.Contains(env.Error, "SQLITE") || strings.Contains(env.Error, "a1") {
		t.Errorf("rolled back storage failure: status = %d, error = %q", w.Code, env.Error)
	}

	w = httptest.NewRecorder()
	ErrorFrom(core.PartialFailure(core.NotFound("transaction", "t9"))).Write(w)
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w.Code != http.StatusConflict || !strings.Contains(env.Error, "t9") {
		t.Errorf("rolled back missing row: status = %d, error = %q", w.Code, env.Error)
	}

	w = httptest.NewRecorder()
	ErrorFrom(core.NotFound("budget", "b1")).Write(w)
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w.Code != http.StatusNotFound || env.Error == "" {
		t.Errorf("status = %d, error = %q", w.Code, env.Error)
	}
}
