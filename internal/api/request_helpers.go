package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/shelfd/internal/api/shared"
	"github.com/phrazzld/shelfd/internal/domain"
	"github.com/phrazzld/shelfd/internal/platform/logger"
	"github.com/phrazzld/shelfd/internal/service/auth"
)

// principalFromRequest returns the caller set by the auth middleware, or
// writes a 401 and returns false.
func principalFromRequest(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := shared.PrincipalFrom(r.Context())
	if !ok {
		logger.FromContextOrDefault(r.Context(), slog.Default()).
			Warn("principal not found in request context")
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return auth.Principal{}, false
	}
	return p, true
}

// pathID parses a positive integer path parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

// decodeAndValidate reads a JSON body into v and validates it, writing a 400
// on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := shared.DecodeJSON(r, v); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return false
	}
	if err := shared.ValidateRequest(v); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return false
	}
	return true
}
