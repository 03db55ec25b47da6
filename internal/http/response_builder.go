// Package http exposes the ledger as a JSON API.
//
// Every response uses one envelope:
//
//	{"success": true, "data": ...}
//	{"success": false, "error": "...", "details": [...]}
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"finledger/internal/core"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Success bool         `json:"success"`
	Data    any          `json:"data,omitempty"`
	Error   string       `json:"error,omitempty"`
	Details []FieldError `json:"details,omitempty"`
}

// JSONResponseBuilder provides a fluent API for building enveloped responses.
type JSONResponseBuilder struct {
	statusCode int
	envelope   Envelope
	headers    map[string]string
}

// NewJSONResponse starts a successful 200 response.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		envelope:   Envelope{Success: true},
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	b.envelope.Data = v
	return b
}

// Error marks the response as failed with a user-facing message.
func (b *JSONResponseBuilder) Error(message string) *JSONResponseBuilder {
	b.envelope.Success = false
	b.envelope.Error = message
	return b
}

func (b *JSONResponseBuilder) Details(details []FieldError) *JSONResponseBuilder {
	b.envelope.Details = details
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.envelope)
}

func OK(data any) *JSONResponseBuilder {
	return NewJSONResponse().Data(data)
}

func Created(data any) *JSONResponseBuilder {
	return NewJSONResponse().Status(http.StatusCreated).Data(data)
}

// ErrorResponse creates a failed response with the given status.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Error(message)
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnauthorizedError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, message)
}

func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").
		Header("Retry-After", "60")
}

func InternalServerError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "internal server error")
}

// ValidationError is a 400 carrying one entry per invalid field.
func ValidationError(details []FieldError) *JSONResponseBuilder {
	return BadRequestError("invalid request data").Details(details)
}

// StatusFor maps the ledger error taxonomy to an HTTP status. A rolled back
// batch reports 409 even when the cause was a missing row.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrPartialFailure):
		return http.StatusConflict
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrUnresolvableSchema), errors.Is(err, core.ErrCouldNotExtract):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// ErrorFrom builds the response for a service error. Unclassified errors
// never leak their text, including when they caused a rollback.
func ErrorFrom(err error) *JSONResponseBuilder {
	status := StatusFor(err)
	switch {
	case status == http.StatusInternalServerError:
		return InternalServerError()
	case status == http.StatusConflict && !errors.Is(err, core.ErrNotFound) && !errors.Is(err, core.ErrInvalidInput):
		return ErrorResponse(status, core.ErrPartialFailure.Error()+"; no changes were applied")
	}
	return ErrorResponse(status, err.Error())
}
