// Package common provides the JSON helpers shared by the API features.
package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/leapstack-labs/cellsql/internal/state"
	"github.com/leapstack-labs/cellsql/internal/workspace"
	"github.com/leapstack-labs/cellsql/pkg/catalog"
	"github.com/leapstack-labs/cellsql/pkg/language"
)

// maxBodyBytes bounds request bodies. Cells are small.
const maxBodyBytes = 4 << 20

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes err with the status StatusFor picks.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, StatusFor(err), ErrorResponse{Error: err.Error()})
}

// BadRequest wraps err so StatusFor maps it to 400.
func BadRequest(err error) error {
	return &requestError{err: err}
}

type requestError struct{ err error }

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	var (
		reqErr  *requestError
		langErr *language.UnknownLanguageError
	)
	switch {
	case errors.Is(err, state.ErrNotFound), errors.Is(err, catalog.ErrUnknownConnection):
		return http.StatusNotFound
	case errors.Is(err, workspace.ErrNoConnections), errors.Is(err, workspace.ErrNoCatalogFile):
		return http.StatusConflict
	case errors.As(err, &reqErr), errors.As(err, &langErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSON reads the request body into v, rejecting unknown fields.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return BadRequest(fmt.Errorf("invalid request body: %w", err))
	}
	return nil
}
