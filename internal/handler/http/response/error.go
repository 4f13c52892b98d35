package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/apperror"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		slog.Error("Unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
		return
	}

	switch appErr.Kind {
	case apperror.KindValidation:
		Error(w, http.StatusUnprocessableEntity, appErr.Code, appErr.Message)
	case apperror.KindConflict:
		Error(w, http.StatusConflict, appErr.Code, appErr.Message)
	case apperror.KindNotFound:
		Error(w, http.StatusNotFound, appErr.Code, appErr.Message)
	case apperror.KindTransient:
		slog.Warn("Transient failure", "error", err)
		ServiceUnavailable(w, appErr.Message)
	default:
		slog.Error("Unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
