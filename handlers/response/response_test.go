package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"resumepersona/backend/services/identity"
	"resumepersona/backend/services/persona"
	"resumepersona/backend/services/provisioning"
)

func TestWorkflowError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"validation", &provisioning.ValidationError{Fields: map[string]string{"password": "short"}}, http.StatusBadRequest, "Please correct the highlighted fields."},
		{"duplicate", &provisioning.AuthError{Message: provisioning.MsgDuplicateAccount, Err: identity.ErrDuplicateAccount}, http.StatusConflict, provisioning.MsgDuplicateAccount},
		{"credentials", &provisioning.AuthError{Message: provisioning.MsgInvalidCredentials, Err: identity.ErrInvalidCredentials}, http.StatusUnauthorized, provisioning.MsgInvalidCredentials},
		{"unconfirmed", &provisioning.AuthError{Message: provisioning.MsgNotConfirmed, Err: identity.ErrNotConfirmed}, http.StatusForbidden, provisioning.MsgNotConfirmed},
		{"no session", &provisioning.AuthError{Message: provisioning.MsgNotSignedIn}, http.StatusUnauthorized, provisioning.MsgNotSignedIn},
		{"account failure", &provisioning.AuthError{Message: provisioning.MsgAccountFailed, Err: errors.New("db")}, http.StatusInternalServerError, provisioning.MsgAccountFailed},
		{"agent", &provisioning.ProvisioningError{Message: provisioning.MsgAgentFailed, Err: errors.New("401")}, http.StatusBadGateway, provisioning.MsgAgentFailed},
		{"exists", &provisioning.PersistenceError{Message: provisioning.MsgPersonaExists, Err: persona.ErrPersonaExists}, http.StatusConflict, provisioning.MsgPersonaExists},
		{"missing persona", &provisioning.PersistenceError{Message: provisioning.MsgPersonaNotFound, Err: persona.ErrNotFound}, http.StatusNotFound, provisioning.MsgPersonaNotFound},
		{"save", &provisioning.PersistenceError{Message: provisioning.MsgPersonaSaveFailed, Err: errors.New("db")}, http.StatusInternalServerError, provisioning.MsgPersonaSaveFailed},
		{"fetch", &provisioning.FetchError{Message: provisioning.MsgListingFailed, Err: errors.New("db")}, http.StatusServiceUnavailable, provisioning.MsgListingFailed},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WorkflowError(rec, zap.NewNop(), tc.err)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var body ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tc.msg, body.Error)
		})
	}
}

func TestWorkflowError_Fields(t *testing.T) {
	rec := httptest.NewRecorder()
	WorkflowError(rec, zap.NewNop(), &provisioning.ValidationError{Fields: map[string]string{"resume_text": "empty"}})

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, map[string]string{"resume_text": "empty"}, body.Fields)
}
