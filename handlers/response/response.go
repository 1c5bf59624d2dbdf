package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"resumepersona/backend/services/identity"
	"resumepersona/backend/services/persona"
	"resumepersona/backend/services/provisioning"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	json.NewEncoder(w).Encode(v)
}

func Error(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, ErrorResponse{Error: msg})
}

// WorkflowError writes err with the status its type maps to. Messages of the
// provisioning error types are meant for users and are passed through.
func WorkflowError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var (
		verr *provisioning.ValidationError
		aerr *provisioning.AuthError
		perr *provisioning.ProvisioningError
		serr *provisioning.PersistenceError
		ferr *provisioning.FetchError
	)
	switch {
	case errors.As(err, &verr):
		JSON(w, http.StatusBadRequest, ErrorResponse{Error: "Please correct the highlighted fields.", Fields: verr.Fields})
	case errors.As(err, &aerr):
		Error(w, authStatus(aerr), aerr.Message)
	case errors.As(err, &perr):
		Error(w, http.StatusBadGateway, perr.Message)
	case errors.As(err, &serr):
		switch {
		case errors.Is(err, persona.ErrPersonaExists):
			Error(w, http.StatusConflict, serr.Message)
		case errors.Is(err, persona.ErrNotFound):
			Error(w, http.StatusNotFound, serr.Message)
		default:
			Error(w, http.StatusInternalServerError, serr.Message)
		}
	case errors.As(err, &ferr):
		if errors.Is(err, persona.ErrNotFound) {
			Error(w, http.StatusNotFound, ferr.Message)
			return
		}
		Error(w, http.StatusServiceUnavailable, ferr.Message)
	default:
		logger.Error("unhandled error", zap.Error(err))
		Error(w, http.StatusInternalServerError, "Internal server error")
	}
}

func authStatus(aerr *provisioning.AuthError) int {
	switch {
	case aerr.Err == nil:
		return http.StatusUnauthorized
	case errors.Is(aerr.Err, identity.ErrDuplicateAccount):
		return http.StatusConflict
	case errors.Is(aerr.Err, identity.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(aerr.Err, identity.ErrNotConfirmed):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
