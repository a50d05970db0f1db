package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/shelfd/internal/api/shared"
	"github.com/phrazzld/shelfd/internal/domain"
	"github.com/phrazzld/shelfd/internal/schedule"
	"github.com/phrazzld/shelfd/internal/service"
	"github.com/phrazzld/shelfd/internal/service/auth"
	"github.com/phrazzld/shelfd/internal/store"
	"github.com/phrazzld/shelfd/internal/task"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// exposing their text.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid):
		return http.StatusUnauthorized

	case errors.Is(err, service.ErrAdminRequired),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden

	case errors.Is(err, task.ErrTaskNotFound),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, domain.ErrFormatNotFound):
		return http.StatusNotFound

	case errors.Is(err, task.ErrNotCancellable),
		errors.Is(err, task.ErrTaskFinished),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, schedule.ErrInvalidSettings),
		errors.Is(err, domain.ErrInvalidFormat),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	case errors.Is(err, task.ErrPoolStopped),
		errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for err.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid):
		return "Invalid token"
	case errors.Is(err, service.ErrAdminRequired):
		return "Administrator access required"
	case errors.Is(err, domain.ErrUnauthorized):
		return "Not permitted"
	case errors.Is(err, task.ErrTaskNotFound):
		return "Task not found"
	case errors.Is(err, task.ErrNotCancellable):
		return "Task cannot be cancelled"
	case errors.Is(err, task.ErrTaskFinished):
		return "Task already finished"
	case errors.Is(err, store.ErrBookNotFound):
		return "Book not found"
	case errors.Is(err, store.ErrNotFound):
		return "Not found"
	case errors.Is(err, domain.ErrFormatNotFound):
		return "Book has no file in the requested format"
	case errors.Is(err, schedule.ErrInvalidSettings):
		return "Invalid schedule settings"
	case errors.Is(err, domain.ErrInvalidFormat):
		return "Invalid format"
	case errors.Is(err, domain.ErrInvalidID):
		return "Invalid ID"
	case errors.Is(err, service.ErrInvalidRequest):
		// service messages are built from request fields only
		return "Invalid request: " + strings.TrimPrefix(err.Error(), service.ErrInvalidRequest.Error()+": ")
	case errors.Is(err, task.ErrPoolStopped):
		return "Task queue is shutting down"
	case errors.Is(err, store.ErrUnavailable):
		return "Library database unavailable"
	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError turns validator output into a short message that
// names the field and the failed rule.
func SanitizeValidationError(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag()))
	}
	return "Validation error"
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "email":
		return "invalid email format"
	case "gte", "min":
		return "too small"
	case "lte", "max":
		return "too large"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}

// HandleAPIError writes the mapped status and safe message for err and logs
// the redacted detail. A non-empty message overrides the mapped one.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := MapErrorToStatusCode(err)
	if message == "" {
		message = GetSafeErrorMessage(err)
	}

	var opts []shared.ResponseOption
	if status == http.StatusForbidden {
		opts = append(opts, shared.WithElevatedLogLevel())
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}
