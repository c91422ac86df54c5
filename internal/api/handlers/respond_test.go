package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/contexta-ingest/internal/core"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: query is empty", core.ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("%w: .exe", core.ErrUnsupportedFormat), http.StatusBadRequest},
		{fmt.Errorf("get doc: %w", core.ErrNotFound), http.StatusNotFound},
		{core.ErrNotRequeueable, http.StatusConflict},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestWriteError_ClientErrorKeepsMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	writeError(rec, req, fmt.Errorf("%w: limit must be a positive integer", core.ErrInvalidInput))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid input: limit must be a positive integer"}`, rec.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	var body searchBody

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"query":"laine","limit":2}`))
	require.NoError(t, decodeJSON(rec, req, &body))
	assert.Equal(t, "laine", body.Query)
	assert.Equal(t, 2, body.Limit)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"query":"laine","extra":true}`))
	err := decodeJSON(rec, req, &body)
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	big := `{"query":"` + strings.Repeat("a", 2<<20) + `"}`
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))
	assert.ErrorIs(t, decodeJSON(rec, req, &body), core.ErrInvalidInput)
}
