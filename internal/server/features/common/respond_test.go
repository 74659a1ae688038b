package common

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/cellsql/internal/state"
	"github.com/leapstack-labs/cellsql/internal/workspace"
	"github.com/leapstack-labs/cellsql/pkg/catalog"
	"github.com/leapstack-labs/cellsql/pkg/language"
)

func TestStatusFor(t *testing.T) {
	_, langErr := language.ParseType("cobol")

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("cell x: %w", state.ErrNotFound), http.StatusNotFound},
		{"unknown connection", fmt.Errorf("%w: mysql", catalog.ErrUnknownConnection), http.StatusNotFound},
		{"not configured", workspace.ErrNoConnections, http.StatusConflict},
		{"bad request", BadRequest(errors.New("nope")), http.StatusBadRequest},
		{"unknown language", langErr, http.StatusBadRequest},
		{"anything else", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, BadRequest(errors.New("cell name is required")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"cell name is required"}`, rec.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"orders"}`))
	require.NoError(t, DecodeJSON(req, &v))
	assert.Equal(t, "orders", v.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nme":"orders"}`))
	err := DecodeJSON(req, &v)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, StatusFor(err))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	assert.Equal(t, http.StatusBadRequest, StatusFor(DecodeJSON(req, &v)))
}
