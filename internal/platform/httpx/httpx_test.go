package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{err: fmt.Errorf("grn 4: %w", ErrNotFound), status: http.StatusNotFound},
		{err: fmt.Errorf("grn 4: %w", ErrConflict), status: http.StatusConflict},
		{err: ErrValidation, status: http.StatusBadRequest},
		{err: fmt.Errorf("connection refused"), status: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)
		require.Equal(t, tc.status, rr.Code, tc.err.Error())
		require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
		var p ProblemDetail
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&p))
		require.Equal(t, tc.status, p.Status)
	}
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	var target struct {
		SKUID int64 `json:"sku_id"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"sku_id":3,"extra":true}`))
	require.Error(t, DecodeJSON(req, &target))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"sku_id":3}`))
	require.NoError(t, DecodeJSON(req, &target))
	require.Equal(t, int64(3), target.SKUID)
}
