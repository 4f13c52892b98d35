package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/apperror"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleError_StatusByKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"validation fields", validator.ValidationErrors{{Field: "month", Message: "invalid"}}, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"validation kind", apperror.Validation("INVALID_AMOUNT", "bad amount"), http.StatusUnprocessableEntity, "INVALID_AMOUNT"},
		{"conflict wrapped", fmt.Errorf("check in: %w", apperror.Conflict("DUPLICATE_CHECK_IN", "dup")), http.StatusConflict, "DUPLICATE_CHECK_IN"},
		{"not found", apperror.NotFound("SHIFT_NOT_FOUND", "missing"), http.StatusNotFound, "SHIFT_NOT_FOUND"},
		{"transient", apperror.Transient(errors.New("conn refused")), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"plain", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HandleError(rec, tt.err)

			assert.Equal(t, tt.wantCode, rec.Code)
			var body Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.wantBody, body.Error.Code)
		})
	}
}
