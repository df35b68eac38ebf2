// Package api holds the JSON response helpers shared by the REST handlers.
package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/pkg/errors"

	"github.com/zillionme/2023-naaga/shared/protocol"
)

// Error is a failure that maps onto an HTTP status and an ErrorResponse body.
type Error struct {
	Status  int
	Code    int
	Message string
}

func (e *Error) Error() string { return e.Message }

func NewError(status, code int, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

var (
	ErrInvalidRequest = NewError(http.StatusBadRequest, protocol.CodeInvalidRequest, "invalid request body")
	ErrUnauthorized   = NewError(http.StatusUnauthorized, protocol.CodeUnauthorized, "unauthorized")
	ErrInternal       = NewError(http.StatusInternalServerError, protocol.CodeInternal, "unexpected error")
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

// WriteError writes err as an ErrorResponse. Errors that are not *Error are
// logged and reported as a 500.
func WriteError(w http.ResponseWriter, err error) {
	var ae *Error
	if !errors.As(err, &ae) {
		log.Printf("error = %+v", err)
		ae = ErrInternal
	} else if ae.Status >= 500 {
		log.Printf("error = %d %s", ae.Code, ae.Message)
	}
	WriteJSON(w, ae.Status, protocol.ErrorResponse{Code: ae.Code, Message: ae.Message})
}

// DecodeJSON reads a JSON request body into v.
func DecodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return ErrInvalidRequest
	}
	return nil
}
